package imu

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"
)

// Config controls the acquisition service.
//
// The receive timeout is derived from FrequencyHz: polling at 100 Hz gives the
// source a 10 ms window per iteration, matching the vendor link's own batching
// behavior.
type Config struct {
	FrequencyHz int

	// StopTimeout bounds how long Close waits for the poll goroutine.
	StopTimeout time.Duration
}

// Service continuously pulls packets from a Source on its own goroutine and
// publishes the most recent batch into a last-value slot. The control loop
// reads the slot once per tick; neither side ever blocks the other beyond the
// slot's critical section.
type Service struct {
	cfg Config
	src Source

	mu      sync.Mutex
	latest  []Packet
	seq     uint64
	readSeq uint64

	wg       sync.WaitGroup
	stopOnce sync.Once
	stopCh   chan struct{}
}

func New(cfg Config, src Source) *Service {
	if cfg.FrequencyHz <= 0 {
		cfg.FrequencyHz = 100
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = 2 * time.Second
	}
	return &Service{cfg: cfg, src: src, stopCh: make(chan struct{})}
}

// Start spawns the poll goroutine. A transient receive failure is logged and
// retried on the next iteration; it never terminates the goroutine.
func (s *Service) Start(ctx context.Context) error {
	if s == nil {
		return fmt.Errorf("imu: service is nil")
	}
	if s.src == nil {
		return fmt.Errorf("imu: source is nil")
	}
	if ctx == nil {
		return fmt.Errorf("imu: ctx is nil")
	}

	timeout := time.Second / time.Duration(s.cfg.FrequencyHz)
	log.Printf("imu acquisition started poll=%s", timeout)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopCh:
				return
			default:
			}

			batch, err := s.src.Receive(timeout)
			if err != nil {
				log.Printf("imu receive failed: %v", err)
				continue
			}
			if len(batch) == 0 {
				continue
			}
			s.publish(batch)
		}
	}()
	return nil
}

func (s *Service) publish(batch []Packet) {
	s.mu.Lock()
	s.latest = batch
	s.seq++
	s.mu.Unlock()
}

// LatestBatch returns the most recently published batch, or an empty batch if
// nothing new arrived since the previous call. The poll goroutine replaces the
// slot wholesale and never mutates a published slice, so the returned snapshot
// is always internally consistent.
func (s *Service) LatestBatch() []Packet {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seq == s.readSeq {
		return nil
	}
	s.readSeq = s.seq
	return s.latest
}

// Close stops the poll goroutine and joins it, bounded by StopTimeout. The
// source is closed afterwards. Safe to call more than once.
func (s *Service) Close() {
	if s == nil {
		return
	}
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(s.cfg.StopTimeout):
		log.Printf("imu stop timed out after %s; abandoning poll goroutine", s.cfg.StopTimeout)
	}

	if s.src != nil {
		_ = s.src.Close()
	}
}
