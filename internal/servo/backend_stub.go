//go:build !linux || (!arm && !arm64)

package servo

import "fmt"

// Stub backends for non-Linux and/or non-ARM platforms. The "off" backend and
// the mock driver used in tests still work everywhere.

func openPWM(pin int) (driver, error) {
	return nil, fmt.Errorf("servo: sysfs pwm unsupported on this platform")
}

func openGPIO(pin int) (driver, error) {
	return nil, fmt.Errorf("servo: gpio unsupported on this platform")
}
