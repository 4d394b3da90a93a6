package imu

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

type fakeSource struct {
	mu     sync.Mutex
	fn     func(call int) ([]Packet, error)
	calls  int
	closed bool
}

func (f *fakeSource) Receive(timeout time.Duration) ([]Packet, error) {
	f.mu.Lock()
	f.calls++
	n := f.calls
	f.mu.Unlock()
	return f.fn(n)
}

func (f *fakeSource) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

func (f *fakeSource) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func TestLatestBatchConsumeOnce(t *testing.T) {
	s := New(Config{}, &fakeSource{})

	if got := s.LatestBatch(); got != nil {
		t.Fatalf("LatestBatch before publish: got %v want nil", got)
	}

	b1 := []Packet{&EstimatedPacket{TimestampNs: 1}}
	s.publish(b1)
	if got := s.LatestBatch(); len(got) != 1 || got[0].Timestamp() != 1 {
		t.Fatalf("got %v want b1", got)
	}
	if got := s.LatestBatch(); got != nil {
		t.Fatalf("second read without a new publish: got %v want nil", got)
	}

	b2 := []Packet{&EstimatedPacket{TimestampNs: 2}, &EstimatedPacket{TimestampNs: 3}}
	s.publish(b2)
	if got := s.LatestBatch(); len(got) != 2 || got[0].Timestamp() != 2 {
		t.Fatalf("got %v want b2", got)
	}
}

func TestPublishReplacesNotAppends(t *testing.T) {
	s := New(Config{}, &fakeSource{})
	s.publish([]Packet{&EstimatedPacket{TimestampNs: 1}})
	s.publish([]Packet{&EstimatedPacket{TimestampNs: 2}})

	got := s.LatestBatch()
	if len(got) != 1 || got[0].Timestamp() != 2 {
		t.Fatalf("got %v want only the newest batch", got)
	}
}

func TestStartRetriesAfterReceiveError(t *testing.T) {
	src := &fakeSource{fn: func(call int) ([]Packet, error) {
		if call <= 2 {
			return nil, fmt.Errorf("transient link error")
		}
		time.Sleep(time.Millisecond)
		return []Packet{&EstimatedPacket{TimestampNs: int64(call)}}, nil
	}}

	s := New(Config{FrequencyHz: 1000, StopTimeout: time.Second}, src)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Close()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if b := s.LatestBatch(); len(b) > 0 {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("no batch published after transient receive errors")
}

func TestLatestBatchNeverTorn(t *testing.T) {
	s := New(Config{}, &fakeSource{})

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for gen := int64(1); ; gen++ {
			select {
			case <-stop:
				return
			default:
			}
			b := make([]Packet, 8)
			for i := range b {
				b[i] = &EstimatedPacket{TimestampNs: gen}
			}
			s.publish(b)
		}
	}()

	deadline := time.Now().Add(200 * time.Millisecond)
	for time.Now().Before(deadline) {
		b := s.LatestBatch()
		for i := 1; i < len(b); i++ {
			if b[i].Timestamp() != b[0].Timestamp() {
				t.Fatalf("torn batch: packet %d has ts %d, packet 0 has ts %d",
					i, b[i].Timestamp(), b[0].Timestamp())
			}
		}
	}
	close(stop)
	wg.Wait()
}

func TestCloseIsBoundedAndClosesSource(t *testing.T) {
	src := &fakeSource{fn: func(call int) ([]Packet, error) {
		// A wedged link: Receive never honors its timeout.
		time.Sleep(10 * time.Second)
		return nil, nil
	}}

	s := New(Config{FrequencyHz: 100, StopTimeout: 50 * time.Millisecond}, src)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	start := time.Now()
	s.Close()
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("Close took %s, want bounded by StopTimeout", elapsed)
	}
	if !src.isClosed() {
		t.Fatal("source not closed")
	}

	// Close again must not panic or block.
	s.Close()
}

func TestStartValidates(t *testing.T) {
	if err := New(Config{}, nil).Start(context.Background()); err == nil {
		t.Fatal("Start with nil source: want error")
	}
}
