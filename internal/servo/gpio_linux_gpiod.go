//go:build linux && (arm || arm64)

package servo

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/warthog618/go-gpiocdev"
)

// openGPIO returns a driver that bit-bangs the servo pulse on a plain GPIO
// line via the Linux GPIO character device. This covers pins without a
// hardware PWM channel; jitter is worse than sysfs PWM but acceptable for an
// airbrake servo.
func openGPIO(pin int) (driver, error) {
	if pin <= 0 {
		return nil, fmt.Errorf("servo: invalid gpio pin %d", pin)
	}

	// On Pi, line names are commonly "GPIO12", etc.
	lineName := fmt.Sprintf("GPIO%d", pin)

	chipCandidates := []string{"/dev/gpiochip0", "/dev/gpiochip4"}
	entries, _ := os.ReadDir("/dev")
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "gpiochip") {
			chipCandidates = append(chipCandidates, filepath.Join("/dev", e.Name()))
		}
	}

	for _, chipPath := range chipCandidates {
		chip, err := gpiocdev.NewChip(chipPath)
		if err != nil {
			continue
		}
		offset, err := chip.FindLine(lineName)
		if err != nil {
			_ = chip.Close()
			continue
		}
		line, err := chip.RequestLine(offset, gpiocdev.AsOutput(0), gpiocdev.WithConsumer("airbrakes-ng-servo"))
		if err != nil {
			_ = chip.Close()
			continue
		}
		g := &gpiodSoftPWM{chip: chip, line: line, stopCh: make(chan struct{})}
		g.wg.Add(1)
		go g.run()
		return g, nil
	}

	return nil, fmt.Errorf("servo: gpio line %q not found (or busy)", lineName)
}

type gpiodSoftPWM struct {
	chip *gpiocdev.Chip
	line *gpiocdev.Line

	// pulseNs is the commanded high time; 0 keeps the line idle low.
	pulseNs atomic.Int64

	wg       sync.WaitGroup
	stopOnce sync.Once
	stopCh   chan struct{}
}

func (g *gpiodSoftPWM) run() {
	defer g.wg.Done()
	t := time.NewTicker(framePeriod)
	defer t.Stop()
	for {
		select {
		case <-g.stopCh:
			return
		case <-t.C:
			pulse := time.Duration(g.pulseNs.Load())
			if pulse <= 0 {
				continue
			}
			if g.line.SetValue(1) != nil {
				continue
			}
			time.Sleep(pulse)
			_ = g.line.SetValue(0)
		}
	}
}

func (g *gpiodSoftPWM) SetPulseWidth(w time.Duration) error {
	if g == nil || g.line == nil {
		return fmt.Errorf("servo: gpio driver not initialized")
	}
	if w < 0 {
		w = 0
	}
	if w > framePeriod {
		w = framePeriod
	}
	g.pulseNs.Store(int64(w))
	return nil
}

func (g *gpiodSoftPWM) Close() error {
	if g == nil || g.line == nil {
		return nil
	}
	g.stopOnce.Do(func() { close(g.stopCh) })
	g.wg.Wait()
	_ = g.line.SetValue(0)
	err := g.line.Close()
	g.line = nil
	if g.chip != nil {
		_ = g.chip.Close()
		g.chip = nil
	}
	return err
}
