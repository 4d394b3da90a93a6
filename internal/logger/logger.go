package logger

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"airbrakes-ng/internal/imu"
)

// queueSize is large enough that the control loop is never starved even when
// the writer falls behind on slow storage.
const queueSize = 100000

type record struct {
	state     string
	extension float64
	// pkt == nil marks termination; the marker itself is never written.
	pkt imu.Packet
}

// Logger appends one CSV row per packet per tick to a numbered flight log,
// on its own goroutine, in exactly submission order. Submitting never blocks
// the control loop; a durability failure kills only the writer side and is
// surfaced through Err.
type Logger struct {
	path string

	ch   chan record
	done chan struct{}

	// stopCh is the out-of-band termination signal for the case where the
	// queue is so wedged the marker cannot even be enqueued.
	stopCh chan struct{}

	stopOnce    sync.Once
	stopTimeout time.Duration

	mu      sync.Mutex
	err     error
	dropped uint64

	f   *os.File
	buf *bufio.Writer
	w   *csv.Writer
}

// New creates the next numbered log file (log_<n+1>.csv) in dir and writes
// the header row.
func New(dir string) (*Logger, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("logger: create %s: %w", dir, err)
	}

	path := filepath.Join(dir, fmt.Sprintf("log_%d.csv", nextLogNumber(dir)))
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("logger: create %s: %w", path, err)
	}

	buf := bufio.NewWriterSize(f, 256*1024)
	w := csv.NewWriter(buf)
	if err := w.Write(Headers); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("logger: write header: %w", err)
	}

	return &Logger{
		path:        path,
		ch:          make(chan record, queueSize),
		done:        make(chan struct{}),
		stopCh:      make(chan struct{}),
		stopTimeout: 5 * time.Second,
		f:           f,
		buf:         buf,
		w:           w,
	}, nil
}

// nextLogNumber scans dir for log_<n>.csv and returns n+1 for the highest
// numeric suffix found, or 1 for an empty directory.
func nextLogNumber(dir string) int {
	matches, _ := filepath.Glob(filepath.Join(dir, "log_*.csv"))
	max := 0
	for _, m := range matches {
		base := strings.TrimSuffix(filepath.Base(m), ".csv")
		n, err := strconv.Atoi(strings.TrimPrefix(base, "log_"))
		if err != nil {
			continue
		}
		if n > max {
			max = n
		}
	}
	return max + 1
}

// Path is the flight log file for this run.
func (l *Logger) Path() string { return l.path }

// Start spawns the writer goroutine.
func (l *Logger) Start() {
	go l.run()
}

func (l *Logger) run() {
	defer close(l.done)

	failed := false
loop:
	for {
		var rec record
		select {
		case rec = <-l.ch:
		case <-l.stopCh:
			// Stop could not enqueue the marker within its bound; abandon
			// whatever is still buffered rather than drain forever.
			break loop
		}
		if rec.pkt == nil {
			break
		}
		if failed {
			// Keep draining so producers never block; rows are lost and the
			// condition is surfaced via Err.
			continue
		}
		if err := l.w.Write(row(rec.state, rec.extension, rec.pkt)); err != nil {
			l.setErr(fmt.Errorf("logger: write row: %w", err))
			failed = true
		}
	}

	l.w.Flush()
	if err := l.w.Error(); err != nil {
		l.setErr(fmt.Errorf("logger: flush: %w", err))
	}
	if err := l.buf.Flush(); err != nil {
		l.setErr(fmt.Errorf("logger: flush: %w", err))
	}
	if err := l.f.Sync(); err != nil {
		l.setErr(fmt.Errorf("logger: sync: %w", err))
	}
	if err := l.f.Close(); err != nil {
		l.setErr(fmt.Errorf("logger: close: %w", err))
	}
}

// Log enqueues one record per packet in the batch, in batch order, tagged
// with the tick's phase and extension. It never blocks: if the queue is
// saturated the records are dropped and counted, which is preferable to
// stalling flight control.
func (l *Logger) Log(state string, extension float64, batch []imu.Packet) {
	for _, pkt := range batch {
		select {
		case l.ch <- record{state: state, extension: extension, pkt: pkt}:
		default:
			l.mu.Lock()
			l.dropped++
			l.mu.Unlock()
		}
	}
}

// Stop enqueues the termination marker after all submitted records and waits,
// bounded, for the writer to drain and close the file. Every record submitted
// before Stop is durably written before Stop returns (unless the writer
// already failed, which Err reports).
//
// Every wait here is bounded by stopTimeout, including the marker enqueue:
// a writer wedged inside a storage write with a saturated queue gets the
// out-of-band signal instead, and Stop returns rather than hanging shutdown.
func (l *Logger) Stop() error {
	l.stopOnce.Do(func() {
		select {
		case l.ch <- record{}:
		case <-time.After(l.stopTimeout):
			log.Printf("logger queue wedged; abandoning buffered records")
			close(l.stopCh)
		}
	})
	select {
	case <-l.done:
	case <-time.After(l.stopTimeout):
		log.Printf("logger drain timed out after %s; proceeding", l.stopTimeout)
		return fmt.Errorf("logger: drain timed out after %s", l.stopTimeout)
	}
	if n := l.Dropped(); n > 0 {
		log.Printf("logger dropped %d records under write pressure", n)
	}
	return l.Err()
}

// Err reports the first durability error the writer hit, if any.
func (l *Logger) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

// Dropped reports how many records were discarded because the queue was full.
func (l *Logger) Dropped() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.dropped
}

func (l *Logger) setErr(err error) {
	log.Printf("%v", err)
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err == nil {
		l.err = err
	}
}
