package servo

import (
	"fmt"
	"testing"
	"time"
)

type mockDriver struct {
	pulses []time.Duration
	closed bool
	fail   bool
}

func (m *mockDriver) SetPulseWidth(w time.Duration) error {
	if m.fail {
		return fmt.Errorf("hardware fault")
	}
	m.pulses = append(m.pulses, w)
	return nil
}

func (m *mockDriver) Close() error {
	m.closed = true
	return nil
}

func withMockPWM(t *testing.T, m *mockDriver) {
	t.Helper()
	old := openPWMFn
	openPWMFn = func(pin int) (driver, error) { return m, nil }
	t.Cleanup(func() { openPWMFn = old })
}

func TestStartStows(t *testing.T) {
	m := &mockDriver{}
	withMockPWM(t, m)

	s := New(Config{Backend: "sysfs"})
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if len(m.pulses) != 1 || m.pulses[0] != s.cfg.MinPulse {
		t.Fatalf("pulses=%v want one stow pulse at %s", m.pulses, s.cfg.MinPulse)
	}
	if snap := s.Snapshot(); !snap.Enabled || snap.Extension != 0 {
		t.Fatalf("snapshot=%+v want enabled and stowed", snap)
	}
}

func TestSetExtensionMapsPulseWidth(t *testing.T) {
	m := &mockDriver{}
	withMockPWM(t, m)

	s := New(Config{
		Backend:  "sysfs",
		MinPulse: 1 * time.Millisecond,
		MaxPulse: 2 * time.Millisecond,
	})
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	cases := []struct {
		in        float64
		wantPulse time.Duration
		wantExt   float64
	}{
		{0, 1 * time.Millisecond, 0},
		{0.5, 1500 * time.Microsecond, 0.5},
		{1, 2 * time.Millisecond, 1},
		{1.7, 2 * time.Millisecond, 1},  // clamped high
		{-0.3, 1 * time.Millisecond, 0}, // clamped low
	}
	for _, tc := range cases {
		if err := s.SetExtension(tc.in); err != nil {
			t.Fatalf("SetExtension(%v): %v", tc.in, err)
		}
		got := m.pulses[len(m.pulses)-1]
		if got != tc.wantPulse {
			t.Fatalf("SetExtension(%v): pulse=%s want %s", tc.in, got, tc.wantPulse)
		}
		if snap := s.Snapshot(); snap.Extension != tc.wantExt {
			t.Fatalf("SetExtension(%v): snapshot extension=%v want %v", tc.in, snap.Extension, tc.wantExt)
		}
	}
}

func TestGPIOBackendSelected(t *testing.T) {
	m := &mockDriver{}
	old := openGPIOFn
	openGPIOFn = func(pin int) (driver, error) {
		if pin != 13 {
			t.Fatalf("pin=%d want 13", pin)
		}
		return m, nil
	}
	t.Cleanup(func() { openGPIOFn = old })

	s := New(Config{Backend: "gpio", Pin: 13})
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if len(m.pulses) == 0 {
		t.Fatal("gpio backend never commanded")
	}
}

func TestOffBackend(t *testing.T) {
	s := New(Config{Backend: "off"})
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := s.SetExtension(0.8); err != nil {
		t.Fatalf("SetExtension: %v", err)
	}
	if snap := s.Snapshot(); snap.Extension != 0.8 {
		t.Fatalf("snapshot extension=%v want 0.8", snap.Extension)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestUnknownBackend(t *testing.T) {
	s := New(Config{Backend: "telepathy"})
	if err := s.Start(); err == nil {
		t.Fatal("want error for unknown backend")
	}
}

func TestSetExtensionBeforeStart(t *testing.T) {
	s := New(Config{Backend: "off"})
	if err := s.SetExtension(0.5); err == nil {
		t.Fatal("want error before Start")
	}
}

func TestCloseStowsAndReleases(t *testing.T) {
	m := &mockDriver{}
	withMockPWM(t, m)

	s := New(Config{Backend: "sysfs"})
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := s.SetExtension(1); err != nil {
		t.Fatalf("SetExtension: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if !m.closed {
		t.Fatal("driver not closed")
	}
	if last := m.pulses[len(m.pulses)-1]; last != s.cfg.MinPulse {
		t.Fatalf("final pulse=%s want stow at %s", last, s.cfg.MinPulse)
	}

	// Closed twice is a no-op.
	if err := s.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestDriverFailureSurfacesInSnapshot(t *testing.T) {
	m := &mockDriver{}
	withMockPWM(t, m)

	s := New(Config{Backend: "sysfs"})
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	m.fail = true
	if err := s.SetExtension(0.5); err == nil {
		t.Fatal("want error from failing driver")
	}
	if snap := s.Snapshot(); snap.LastError == "" {
		t.Fatal("snapshot should record the failure")
	}
}
