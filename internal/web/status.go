package web

import (
	"sync/atomic"
	"time"

	"airbrakes-ng/internal/flight"
)

// Status aggregates the pieces of runtime state the ground-station page
// shows. Writers are the control loop and main; readers are HTTP handlers.
// Everything is atomic so a status poll can never stall a flight tick.
type Status struct {
	startUnixNano int64
	ticks         uint64
	packets       uint64
	lastTickNano  int64
	mode          atomic.Value // string
	logFile       atomic.Value // string
	flight        atomic.Value // FlightSnapshot
}

func NewStatus() *Status {
	s := &Status{}
	atomic.StoreInt64(&s.startUnixNano, time.Now().UTC().UnixNano())
	s.mode.Store("")
	s.logFile.Store("")
	s.flight.Store(FlightSnapshot{Phase: flight.StandBy.String()})
	return s
}

// FlightSnapshot is a small, UI-friendly view of the pipeline's last tick.
//
// This is for pre-flight checks and bench debugging, not a flight
// instrument.
type FlightSnapshot struct {
	Phase         string   `json:"phase"`
	Extension     float64  `json:"extension"`
	AltitudeM     *float64 `json:"altitude_m,omitempty"`
	MaxAltitudeM  float64  `json:"max_altitude_m"`
	AvgAccelMps2  float64  `json:"avg_accel_mps2"`
	LastUpdateUTC string   `json:"last_update_utc,omitempty"`
}

func (s *Status) SetStatic(mode, logFile string) {
	if mode != "" {
		s.mode.Store(mode)
	}
	if logFile != "" {
		s.logFile.Store(logFile)
	}
}

// ObserveTick records one control-loop pass.
func (s *Status) ObserveTick(phase string, extension float64, d flight.Data, packets int) {
	now := time.Now().UTC()
	atomic.StoreInt64(&s.lastTickNano, now.UnixNano())
	atomic.AddUint64(&s.ticks, 1)
	if packets > 0 {
		atomic.AddUint64(&s.packets, uint64(packets))
	}

	snap := FlightSnapshot{
		Phase:         phase,
		Extension:     extension,
		MaxAltitudeM:  d.MaxAltitude,
		AvgAccelMps2:  d.AvgAccelMag,
		LastUpdateUTC: now.Format(time.RFC3339Nano),
	}
	if d.HaveAltitude {
		alt := d.CurrentAltitude
		snap.AltitudeM = &alt
	}
	s.flight.Store(snap)
}

type StatusSnapshot struct {
	Service      string         `json:"service"`
	NowUTC       string         `json:"now_utc"`
	UptimeSec    int64          `json:"uptime_sec"`
	Mode         string         `json:"mode"`
	LogFile      string         `json:"log_file"`
	TicksTotal   uint64         `json:"ticks_total"`
	PacketsTotal uint64         `json:"packets_total"`
	LastTickUTC  string         `json:"last_tick_utc,omitempty"`
	Flight       FlightSnapshot `json:"flight"`
}

func (s *Status) Snapshot(nowUTC time.Time) StatusSnapshot {
	if nowUTC.IsZero() {
		nowUTC = time.Now().UTC()
	}
	start := time.Unix(0, atomic.LoadInt64(&s.startUnixNano)).UTC()
	lastTick := atomic.LoadInt64(&s.lastTickNano)

	snap := StatusSnapshot{
		Service:      "airbrakes-ng",
		NowUTC:       nowUTC.UTC().Format(time.RFC3339Nano),
		UptimeSec:    int64(nowUTC.Sub(start).Seconds()),
		Mode:         s.mode.Load().(string),
		LogFile:      s.logFile.Load().(string),
		TicksTotal:   atomic.LoadUint64(&s.ticks),
		PacketsTotal: atomic.LoadUint64(&s.packets),
		Flight:       s.flight.Load().(FlightSnapshot),
	}
	if lastTick != 0 {
		snap.LastTickUTC = time.Unix(0, lastTick).UTC().Format(time.RFC3339Nano)
	}
	return snap
}
