package flight

import "time"

// Phase is the flight phase. The machine only ever moves forward through
// StandBy -> MotorBurn -> Coast -> FreeFall; no phase is revisited and none
// is skipped.
type Phase int

const (
	StandBy Phase = iota
	MotorBurn
	Coast
	FreeFall
)

func (p Phase) String() string {
	switch p {
	case StandBy:
		return "StandBy"
	case MotorBurn:
		return "MotorBurn"
	case Coast:
		return "Coast"
	case FreeFall:
		return "FreeFall"
	}
	return "Unknown"
}

// Data is the per-tick snapshot the machine decides on. HaveData is false
// until the processor has seen at least one estimated packet; HaveAltitude is
// false until a pressure altitude has been seen. A phase holds rather than
// transitioning when the fields it needs are absent.
type Data struct {
	TimestampNs int64
	HaveData    bool

	AvgAccel    [3]float64
	AvgAccelMag float64

	CurrentAltitude float64
	HaveAltitude    bool
	MaxAltitude     float64
}

// CoastPolicy decides the airbrake extension while coasting. Coast is the
// only phase permitted to command a non-zero extension; the machine clamps
// the policy output to [0, 1].
type CoastPolicy interface {
	Extension(d Data) float64
}

// FixedExtension is the default policy: a constant coast target.
type FixedExtension float64

func (f FixedExtension) Extension(Data) float64 { return float64(f) }

// MachineConfig carries the transition thresholds. Dwell durations are
// measured against packet timestamps, not wall clock, so replayed and
// simulated streams behave identically to live ones.
type MachineConfig struct {
	// LaunchAccel is the average acceleration magnitude (m/s^2) that, held
	// for LaunchDwell, marks liftoff.
	LaunchAccel float64
	LaunchDwell time.Duration

	// BurnoutAccel is the magnitude (m/s^2) below which, held for
	// BurnoutDwell, the motor is considered burned out.
	BurnoutAccel float64
	BurnoutDwell time.Duration

	// ApogeeDropM is how far (m) current altitude must fall from the tracked
	// maximum before apogee is declared passed.
	ApogeeDropM float64

	Coast CoastPolicy
}

// Machine is the flight phase state machine. It is exclusively owned by the
// control loop goroutine and is the sole authority for actuation commands.
type Machine struct {
	cfg MachineConfig

	phase Phase

	// Dwell tracking for the current phase's exit condition.
	holding     bool
	condSinceNs int64
}

func NewMachine(cfg MachineConfig) *Machine {
	if cfg.LaunchAccel <= 0 {
		cfg.LaunchAccel = 10.0
	}
	if cfg.BurnoutAccel <= 0 {
		cfg.BurnoutAccel = 6.0
	}
	if cfg.ApogeeDropM <= 0 {
		cfg.ApogeeDropM = 5.0
	}
	if cfg.Coast == nil {
		cfg.Coast = FixedExtension(1.0)
	}
	return &Machine{cfg: cfg, phase: StandBy}
}

func (m *Machine) Phase() Phase { return m.phase }

// Update advances the machine by one tick and returns the commanded
// extension. At most one transition happens per call, and only the current
// phase's single defined successor is considered.
func (m *Machine) Update(d Data) float64 {
	switch m.phase {
	case StandBy:
		if m.held(d, d.HaveData && d.AvgAccelMag > m.cfg.LaunchAccel, m.cfg.LaunchDwell) {
			m.advance(MotorBurn)
		}
		return 0

	case MotorBurn:
		if m.held(d, d.HaveData && d.AvgAccelMag < m.cfg.BurnoutAccel, m.cfg.BurnoutDwell) {
			m.advance(Coast)
		}
		return 0

	case Coast:
		if d.HaveAltitude && d.MaxAltitude-d.CurrentAltitude > m.cfg.ApogeeDropM {
			m.advance(FreeFall)
			return 0
		}
		return clamp01(m.cfg.Coast.Extension(d))

	default: // FreeFall: retracted for recovery, no outgoing transition.
		return 0
	}
}

// held reports whether cond has been continuously true for at least dwell,
// measured in packet time. Any dropout resets the dwell window.
func (m *Machine) held(d Data, cond bool, dwell time.Duration) bool {
	if !cond {
		m.holding = false
		return false
	}
	if !m.holding {
		m.holding = true
		m.condSinceNs = d.TimestampNs
	}
	return time.Duration(d.TimestampNs-m.condSinceNs) >= dwell
}

func (m *Machine) advance(next Phase) {
	m.phase = next
	m.holding = false
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
