package replay

import (
	"fmt"
	"sync"
	"time"

	"airbrakes-ng/internal/imu"
)

// SourceConfig controls log playback.
type SourceConfig struct {
	// Speed scales recorded time against wall time. Defaults to 1.0.
	Speed float64
}

// Source plays a recorded flight log back as an imu.Source, pacing packet
// delivery by the recorded timestamps so the pipeline sees the flight at the
// same cadence it was captured.
//
// Records are replayed relative to the first packet's timestamp. Once the log
// is exhausted Receive keeps returning empty batches, like a quiet live link.
type Source struct {
	cfg  SourceConfig
	pkts []imu.Packet

	mu      sync.Mutex
	started bool
	start   time.Time
	origin  int64
	next    int
	closed  bool
}

func NewSource(recs []Record, cfg SourceConfig) (*Source, error) {
	if len(recs) == 0 {
		return nil, fmt.Errorf("replay: log is empty")
	}
	if cfg.Speed <= 0 {
		cfg.Speed = 1.0
	}

	pkts := make([]imu.Packet, len(recs))
	for i, r := range recs {
		pkts[i] = r.Packet
	}
	return &Source{cfg: cfg, pkts: pkts, origin: pkts[0].Timestamp()}, nil
}

// Receive waits out the poll window, then returns every packet whose recorded
// offset has elapsed.
func (s *Source) Receive(timeout time.Duration) ([]imu.Packet, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, fmt.Errorf("replay: source closed")
	}
	if !s.started {
		s.started = true
		s.start = time.Now()
	}
	s.mu.Unlock()

	time.Sleep(timeout)

	s.mu.Lock()
	defer s.mu.Unlock()

	elapsedNs := int64(float64(time.Since(s.start)) * s.cfg.Speed)
	var out []imu.Packet
	for s.next < len(s.pkts) && s.pkts[s.next].Timestamp()-s.origin <= elapsedNs {
		out = append(out, s.pkts[s.next])
		s.next++
	}
	return out, nil
}

// Remaining reports how many packets have not been delivered yet.
func (s *Source) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pkts) - s.next
}

func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
