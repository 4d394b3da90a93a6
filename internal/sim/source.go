package sim

import (
	"fmt"
	"sync"
	"time"

	"airbrakes-ng/internal/imu"
)

// SourceConfig controls profile playback.
type SourceConfig struct {
	// Speed scales profile time against wall time; 2.0 plays a profile twice
	// as fast. Defaults to 1.0.
	Speed float64

	// RawEvery emits a raw packet alongside every Nth estimated packet,
	// mimicking the mixed descriptor stream of the real sensor. 0 disables
	// raw packets.
	RawEvery int
}

// ProfileSource plays a Profile back as an imu.Source. Packet timestamps are
// profile-relative nanoseconds and strictly non-decreasing.
type ProfileSource struct {
	prof *Profile
	cfg  SourceConfig

	mu      sync.Mutex
	started bool
	start   time.Time
	lastTs  int64
	seq     int
	closed  bool
}

func NewProfileSource(prof *Profile, cfg SourceConfig) (*ProfileSource, error) {
	if prof == nil {
		return nil, fmt.Errorf("sim: profile is nil")
	}
	if cfg.Speed <= 0 {
		cfg.Speed = 1.0
	}
	return &ProfileSource{prof: prof, cfg: cfg}, nil
}

// Receive paces like the hardware link (one batch per timeout window) and
// synthesizes packets for the current profile position.
func (s *ProfileSource) Receive(timeout time.Duration) ([]imu.Packet, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, fmt.Errorf("sim: source closed")
	}
	if !s.started {
		s.started = true
		s.start = time.Now()
	}
	s.mu.Unlock()

	time.Sleep(timeout)

	s.mu.Lock()
	defer s.mu.Unlock()

	elapsed := time.Duration(float64(time.Since(s.start)) * s.cfg.Speed)
	ts := elapsed.Nanoseconds()
	if ts <= s.lastTs {
		ts = s.lastTs + 1
	}
	s.lastTs = ts
	s.seq++

	st := s.prof.StateAt(elapsed)
	est := &imu.EstimatedPacket{
		TimestampNs:       ts,
		PressureAlt:       imu.Float64(st.PressureAltM),
		CompensatedAccelX: imu.Float64(st.Accel[0]),
		CompensatedAccelY: imu.Float64(st.Accel[1]),
		CompensatedAccelZ: imu.Float64(st.Accel[2]),
	}
	batch := []imu.Packet{est}

	if s.cfg.RawEvery > 0 && s.seq%s.cfg.RawEvery == 0 {
		const g = 9.80665
		batch = append(batch, &imu.RawPacket{
			TimestampNs:  ts,
			ScaledAccelX: imu.Float64(st.Accel[0] / g),
			ScaledAccelY: imu.Float64(st.Accel[1] / g),
			ScaledAccelZ: imu.Float64(st.Accel[2]/g + 1.0),
		})
	}
	return batch, nil
}

func (s *ProfileSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
