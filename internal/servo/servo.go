package servo

import (
	"fmt"
	"sync"
	"time"
)

// driver is the minimal interface the servo service needs from a PWM backend.
// Pulse width is the high time of a standard 50 Hz servo frame. Close should
// be best-effort and leave the signal line in a safe state.
type driver interface {
	SetPulseWidth(w time.Duration) error
	Close() error
}

var (
	openPWMFn  = openPWM
	openGPIOFn = openGPIO
)

// framePeriod is the standard hobby-servo frame (50 Hz).
const framePeriod = 20 * time.Millisecond

type Config struct {
	// Backend selects "sysfs" (hardware PWM), "gpio" (software PWM via the
	// GPIO character device), or "off" (no hardware attached).
	Backend string

	// Pin is BCM GPIO numbering.
	Pin int

	// MinPulse and MaxPulse are the calibrated pulse widths at extension 0.0
	// (stowed) and 1.0 (fully deployed).
	MinPulse time.Duration
	MaxPulse time.Duration
}

type Snapshot struct {
	Enabled   bool    `json:"enabled"`
	Backend   string  `json:"backend"`
	Extension float64 `json:"extension"`
	LastError string  `json:"last_error,omitempty"`
}

// Service drives the airbrake servo. Extension is normalized: 0.0 stowed,
// 1.0 fully deployed. Out-of-range commands are clamped before they reach
// hardware, never passed through.
type Service struct {
	cfg Config

	mu   sync.RWMutex
	snap Snapshot

	drvMu sync.Mutex
	drv   driver
}

func New(cfg Config) *Service {
	if cfg.Backend == "" {
		cfg.Backend = "sysfs"
	}
	if cfg.Pin == 0 {
		cfg.Pin = 12
	}
	if cfg.MinPulse <= 0 {
		cfg.MinPulse = 1000 * time.Microsecond
	}
	if cfg.MaxPulse <= cfg.MinPulse {
		cfg.MaxPulse = cfg.MinPulse + 1000*time.Microsecond
	}
	return &Service{cfg: cfg, snap: Snapshot{Backend: cfg.Backend}}
}

func (s *Service) Snapshot() Snapshot {
	if s == nil {
		return Snapshot{}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// Start opens the configured backend and stows the airbrake.
func (s *Service) Start() error {
	if s == nil {
		return fmt.Errorf("servo: service is nil")
	}

	var drv driver
	var err error
	switch s.cfg.Backend {
	case "off":
		drv = nopDriver{}
	case "gpio":
		drv, err = openGPIOFn(s.cfg.Pin)
	case "sysfs":
		drv, err = openPWMFn(s.cfg.Pin)
	default:
		err = fmt.Errorf("servo: unknown backend %q", s.cfg.Backend)
	}
	if err != nil {
		s.setErr(err.Error())
		return err
	}

	s.drvMu.Lock()
	s.drv = drv
	s.drvMu.Unlock()

	s.mu.Lock()
	s.snap.Enabled = true
	s.mu.Unlock()

	return s.SetExtension(0)
}

// SetExtension commands the airbrake to v in [0, 1], clamping first.
func (s *Service) SetExtension(v float64) error {
	if s == nil {
		return fmt.Errorf("servo: service is nil")
	}
	v = clamp01(v)

	s.drvMu.Lock()
	drv := s.drv
	s.drvMu.Unlock()
	if drv == nil {
		return fmt.Errorf("servo: not started")
	}

	pulse := s.cfg.MinPulse + time.Duration(v*float64(s.cfg.MaxPulse-s.cfg.MinPulse))
	if err := drv.SetPulseWidth(pulse); err != nil {
		s.setErr(fmt.Sprintf("servo: set pulse failed: %v", err))
		return err
	}

	s.mu.Lock()
	s.snap.Extension = v
	s.snap.LastError = ""
	s.mu.Unlock()
	return nil
}

// Close stows the airbrake and releases the backend.
func (s *Service) Close() error {
	if s == nil {
		return nil
	}
	s.drvMu.Lock()
	drv := s.drv
	s.drv = nil
	s.drvMu.Unlock()
	if drv == nil {
		return nil
	}
	_ = drv.SetPulseWidth(s.cfg.MinPulse)
	return drv.Close()
}

func (s *Service) setErr(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.LastError = msg
}

// nopDriver backs the "off" backend for bench runs without hardware.
type nopDriver struct{}

func (nopDriver) SetPulseWidth(time.Duration) error { return nil }
func (nopDriver) Close() error                      { return nil }

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
