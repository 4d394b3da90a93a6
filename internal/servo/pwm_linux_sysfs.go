//go:build linux && (arm || arm64)

package servo

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// sysfsPWM drives a hardware PWM channel via /sys/class/pwm.
//
// On Raspberry Pi this requires `dtoverlay=pwm-2chan` (or equivalent) so the
// header pin is exposed under /sys/class/pwm. GPIO12/13 map to channels 0/1 on
// the common overlay; GPIO18/19 likewise.
type sysfsPWM struct {
	pwmPath string // /sys/class/pwm/pwmchipN/pwmM
	period  time.Duration
	enabled bool
}

var pwmSysfsBase = "/sys/class/pwm"

func openPWM(pin int) (driver, error) {
	channel, err := pwmChannelForPin(pin)
	if err != nil {
		return nil, err
	}

	chipPath, err := findPWMChip()
	if err != nil {
		return nil, err
	}

	d := &sysfsPWM{
		pwmPath: filepath.Join(chipPath, fmt.Sprintf("pwm%d", channel)),
		period:  framePeriod,
	}
	if err := d.ensureExported(chipPath, channel); err != nil {
		return nil, err
	}
	if err := d.writeAttr("period", strconv.FormatInt(d.period.Nanoseconds(), 10)); err != nil {
		return nil, fmt.Errorf("servo: set pwm period: %w", err)
	}
	return d, nil
}

func pwmChannelForPin(pin int) (int, error) {
	switch pin {
	case 12, 18:
		return 0, nil
	case 13, 19:
		return 1, nil
	}
	return 0, fmt.Errorf("servo: gpio %d is not a hardware pwm pin (use 12/13/18/19 or the gpio backend)", pin)
}

func findPWMChip() (string, error) {
	entries, err := os.ReadDir(pwmSysfsBase)
	if err != nil {
		return "", fmt.Errorf("servo: read %s: %w", pwmSysfsBase, err)
	}
	// Prefer pwmchip0 (common on Pi); fall back to the first chip present.
	var first string
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, "pwmchip") {
			continue
		}
		if name == "pwmchip0" {
			return filepath.Join(pwmSysfsBase, name), nil
		}
		if first == "" {
			first = name
		}
	}
	if first == "" {
		return "", fmt.Errorf("servo: no pwmchip under %s (missing dtoverlay?)", pwmSysfsBase)
	}
	return filepath.Join(pwmSysfsBase, first), nil
}

func (d *sysfsPWM) ensureExported(chipPath string, channel int) error {
	if _, err := os.Stat(d.pwmPath); err == nil {
		return nil
	}
	exportPath := filepath.Join(chipPath, "export")
	if err := os.WriteFile(exportPath, []byte(strconv.Itoa(channel)), 0o644); err != nil {
		return fmt.Errorf("servo: export pwm channel %d: %w", channel, err)
	}
	// The pwmN directory can take a moment to appear after export.
	for i := 0; i < 20; i++ {
		if _, err := os.Stat(d.pwmPath); err == nil {
			return nil
		}
		time.Sleep(10 * time.Millisecond)
	}
	return fmt.Errorf("servo: pwm channel %d did not appear after export", channel)
}

func (d *sysfsPWM) SetPulseWidth(w time.Duration) error {
	if w < 0 {
		w = 0
	}
	if w > d.period {
		w = d.period
	}
	if err := d.writeAttr("duty_cycle", strconv.FormatInt(w.Nanoseconds(), 10)); err != nil {
		return fmt.Errorf("servo: set duty cycle: %w", err)
	}
	if !d.enabled {
		if err := d.writeAttr("enable", "1"); err != nil {
			return fmt.Errorf("servo: enable pwm: %w", err)
		}
		d.enabled = true
	}
	return nil
}

func (d *sysfsPWM) Close() error {
	if d == nil {
		return nil
	}
	err := d.writeAttr("enable", "0")
	d.enabled = false
	return err
}

func (d *sysfsPWM) writeAttr(name, value string) error {
	return os.WriteFile(filepath.Join(d.pwmPath, name), []byte(value), 0o644)
}
