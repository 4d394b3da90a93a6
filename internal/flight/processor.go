package flight

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"airbrakes-ng/internal/imu"
)

// Processor turns the estimated packet stream into the quantities the state
// machine decides on. It owns a bounded FIFO window of the most recent
// estimated packets; raw packets never enter the window and never affect
// altitude.
//
// The processor is exclusively owned by the control loop goroutine; no
// locking here.
type Processor struct {
	maxWindow int
	window    []*imu.EstimatedPacket

	avgAccel    [3]float64
	avgAccelMag float64

	// Ground reference captured from the first pressure altitude seen, so
	// current/max altitude are relative to the pad.
	groundAlt  float64
	groundSet  bool
	currentAlt float64
	haveAlt    bool
	maxAlt     float64

	latestTs int64
	haveTs   bool
}

func NewProcessor(windowSize int) *Processor {
	if windowSize <= 0 {
		windowSize = 50
	}
	return &Processor{maxWindow: windowSize}
}

// Update folds a batch into the window, evicts the oldest entries beyond the
// window bound, and recomputes every derived quantity.
func (p *Processor) Update(batch []imu.Packet) {
	for _, pkt := range batch {
		est, ok := pkt.(*imu.EstimatedPacket)
		if !ok {
			continue
		}
		// The ground reference is the first pressure altitude ever seen. It
		// is captured here, before eviction, so an oversized first batch
		// still zeroes against the pad rather than a mid-flight sample.
		if !p.groundSet && est.PressureAlt != nil {
			p.groundAlt = *est.PressureAlt
			p.groundSet = true
		}
		p.window = append(p.window, est)
		p.latestTs = est.TimestampNs
		p.haveTs = true
	}
	if excess := len(p.window) - p.maxWindow; excess > 0 {
		p.window = append(p.window[:0], p.window[excess:]...)
	}
	p.recompute()
}

func (p *Processor) recompute() {
	ax := make([]float64, 0, len(p.window))
	ay := make([]float64, 0, len(p.window))
	az := make([]float64, 0, len(p.window))
	for _, e := range p.window {
		if e.CompensatedAccelX == nil || e.CompensatedAccelY == nil || e.CompensatedAccelZ == nil {
			continue
		}
		ax = append(ax, *e.CompensatedAccelX)
		ay = append(ay, *e.CompensatedAccelY)
		az = append(az, *e.CompensatedAccelZ)
	}
	if len(ax) == 0 {
		p.avgAccel = [3]float64{}
		p.avgAccelMag = 0
	} else {
		p.avgAccel = [3]float64{stat.Mean(ax, nil), stat.Mean(ay, nil), stat.Mean(az, nil)}
		// Norm of the averaged vector, not the average of per-sample norms.
		p.avgAccelMag = floats.Norm(p.avgAccel[:], 2)
	}

	// Current altitude tracks the newest window entry that reports one; max
	// altitude considers every entry so a peak inside a batch is not missed.
	for i := len(p.window) - 1; i >= 0; i-- {
		alt := p.window[i].PressureAlt
		if alt == nil {
			continue
		}
		p.currentAlt = *alt - p.groundAlt
		p.haveAlt = true
		break
	}
	if p.groundSet {
		for _, e := range p.window {
			if e.PressureAlt == nil {
				continue
			}
			if zeroed := *e.PressureAlt - p.groundAlt; zeroed > p.maxAlt {
				p.maxAlt = zeroed
			}
		}
	}
}

// AvgAcceleration is the arithmetic mean of compensated acceleration over the
// window, per axis. Zero vector while the window is empty.
func (p *Processor) AvgAcceleration() [3]float64 { return p.avgAccel }

// AvgAccelerationMagnitude is the Euclidean norm of AvgAcceleration.
func (p *Processor) AvgAccelerationMagnitude() float64 { return p.avgAccelMag }

// CurrentAltitude is the pad-relative altitude from the newest window entry
// carrying pressure altitude. ok is false until one has been seen.
func (p *Processor) CurrentAltitude() (float64, bool) { return p.currentAlt, p.haveAlt }

// MaxAltitude is monotonically non-decreasing for the lifetime of the
// processor; it is never reset once flight begins.
func (p *Processor) MaxAltitude() float64 { return p.maxAlt }

// LatestTimestamp is the timestamp of the newest estimated packet processed.
func (p *Processor) LatestTimestamp() (int64, bool) { return p.latestTs, p.haveTs }

// WindowLen reports how many estimated packets the window currently holds.
func (p *Processor) WindowLen() int { return len(p.window) }
