package control

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/hashicorp/go-multierror"

	"airbrakes-ng/internal/flight"
	"airbrakes-ng/internal/imu"
	"airbrakes-ng/internal/logger"
	"airbrakes-ng/internal/servo"
)

// Acquirer is the control loop's view of the acquisition stage.
type Acquirer interface {
	LatestBatch() []imu.Packet
	Close()
}

// Observer receives a copy of each tick's outcome, e.g. for the status API.
// Implementations must not block.
type Observer interface {
	ObserveTick(phase string, extension float64, d flight.Data, packets int)
}

type Config struct {
	// FrequencyHz is the control loop tick rate.
	FrequencyHz int
}

// Controller orchestrates one full pipeline pass per tick: pull the latest
// batch, update the processor, advance the state machine, command the servo,
// submit the log record. All effects of tick i are sequenced before tick i+1.
type Controller struct {
	cfg Config

	acq     Acquirer
	proc    *flight.Processor
	machine *flight.Machine
	servo   *servo.Service
	logr    *logger.Logger
	obs     Observer
}

func New(cfg Config, acq Acquirer, proc *flight.Processor, machine *flight.Machine, srv *servo.Service, logr *logger.Logger) (*Controller, error) {
	if acq == nil || proc == nil || machine == nil || srv == nil || logr == nil {
		return nil, fmt.Errorf("control: all components are required")
	}
	if cfg.FrequencyHz <= 0 {
		cfg.FrequencyHz = 100
	}
	return &Controller{cfg: cfg, acq: acq, proc: proc, machine: machine, servo: srv, logr: logr}, nil
}

// SetObserver attaches an optional per-tick observer. Call before Run.
func (c *Controller) SetObserver(obs Observer) { c.obs = obs }

// Run ticks until ctx is canceled, then performs a bounded graceful drain of
// the background stages. Per-tick problems degrade to "no update this tick";
// Run never returns an error mid-flight.
func (c *Controller) Run(ctx context.Context) error {
	tick := time.NewTicker(time.Second / time.Duration(c.cfg.FrequencyHz))
	defer tick.Stop()

	log.Printf("control loop running at %d Hz", c.cfg.FrequencyHz)
	for {
		select {
		case <-ctx.Done():
			return c.shutdown()
		case <-tick.C:
			c.step()
		}
	}
}

func (c *Controller) step() {
	batch := c.acq.LatestBatch()
	c.proc.Update(batch)

	d := c.data()
	before := c.machine.Phase()
	ext := c.machine.Update(d)
	if after := c.machine.Phase(); after != before {
		log.Printf("flight phase %s -> %s alt=%.1fm max=%.1fm", before, after, d.CurrentAltitude, d.MaxAltitude)
	}

	if err := c.servo.SetExtension(ext); err != nil {
		log.Printf("servo command failed: %v", err)
	}

	c.logr.Log(c.machine.Phase().String(), ext, batch)

	if c.obs != nil {
		c.obs.ObserveTick(c.machine.Phase().String(), ext, d, len(batch))
	}
}

func (c *Controller) data() flight.Data {
	d := flight.Data{
		AvgAccel:    c.proc.AvgAcceleration(),
		AvgAccelMag: c.proc.AvgAccelerationMagnitude(),
		MaxAltitude: c.proc.MaxAltitude(),
	}
	if ts, ok := c.proc.LatestTimestamp(); ok {
		d.TimestampNs = ts
		d.HaveData = true
	}
	if alt, ok := c.proc.CurrentAltitude(); ok {
		d.CurrentAltitude = alt
		d.HaveAltitude = true
	}
	return d
}

// shutdown stows the airbrake, then drains acquisition and the logger, each
// with its own bounded wait. A component that refuses to stop is logged and
// abandoned rather than hanging the process.
func (c *Controller) shutdown() error {
	log.Printf("control loop stopping")

	var result *multierror.Error
	if err := c.servo.SetExtension(0); err != nil {
		result = multierror.Append(result, err)
	}
	if err := c.servo.Close(); err != nil {
		result = multierror.Append(result, err)
	}

	c.acq.Close()

	if err := c.logr.Stop(); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}
