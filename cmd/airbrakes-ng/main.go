package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"airbrakes-ng/internal/config"
	"airbrakes-ng/internal/control"
	"airbrakes-ng/internal/flight"
	"airbrakes-ng/internal/imu"
	"airbrakes-ng/internal/logger"
	"airbrakes-ng/internal/replay"
	"airbrakes-ng/internal/servo"
	"airbrakes-ng/internal/sim"
	"airbrakes-ng/internal/web"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "./dev.yaml", "Path to YAML config")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	src, err := buildSource(cfg)
	if err != nil {
		log.Fatalf("imu source init failed: %v", err)
	}

	acq := imu.New(imu.Config{FrequencyHz: cfg.IMU.FrequencyHz}, src)
	proc := flight.NewProcessor(cfg.Flight.WindowSize)
	machine := flight.NewMachine(flight.MachineConfig{
		LaunchAccel:  cfg.Flight.LaunchAccelMps2,
		LaunchDwell:  cfg.Flight.LaunchDwell,
		BurnoutAccel: cfg.Flight.BurnoutAccelMps2,
		BurnoutDwell: cfg.Flight.BurnoutDwell,
		ApogeeDropM:  cfg.Flight.ApogeeDropM,
		Coast:        flight.FixedExtension(cfg.Flight.CoastExtension),
	})

	srv := servo.New(servo.Config{
		Backend:  cfg.Servo.Backend,
		Pin:      cfg.Servo.Pin,
		MinPulse: cfg.Servo.MinPulse,
		MaxPulse: cfg.Servo.MaxPulse,
	})
	if err := srv.Start(); err != nil {
		log.Fatalf("servo init failed: %v", err)
	}

	logr, err := logger.New(cfg.Logging.Dir)
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}
	log.Printf("airbrakes-ng starting log=%s", logr.Path())
	logr.Start()

	if err := acq.Start(ctx); err != nil {
		log.Fatalf("imu acquisition start failed: %v", err)
	}

	ctrl, err := control.New(control.Config{FrequencyHz: cfg.IMU.FrequencyHz}, acq, proc, machine, srv, logr)
	if err != nil {
		log.Fatalf("controller init failed: %v", err)
	}

	if cfg.Web.Enable {
		status := web.NewStatus()
		mode := "live"
		switch {
		case cfg.Sim.Enable:
			mode = "sim"
		case cfg.Replay.File != "":
			mode = "replay"
		}
		status.SetStatic(mode, logr.Path())
		ctrl.SetObserver(status)

		go func() {
			log.Printf("status api listening on %s", cfg.Web.Listen)
			if err := web.Serve(ctx, cfg.Web.Listen, web.Handler(status, srv, cfg.Logging.Dir)); err != nil {
				log.Printf("status api failed: %v", err)
			}
		}()
	}

	if err := ctrl.Run(ctx); err != nil {
		log.Printf("shutdown finished with errors: %v", err)
		os.Exit(1)
	}
	log.Printf("airbrakes-ng stopped")
}

func buildSource(cfg config.Config) (imu.Source, error) {
	if cfg.Replay.File != "" {
		recs, err := replay.ReadLog(cfg.Replay.File)
		if err != nil {
			return nil, err
		}
		log.Printf("replay enabled file=%s records=%d speed=%.1f", cfg.Replay.File, len(recs), cfg.Replay.Speed)
		return replay.NewSource(recs, replay.SourceConfig{Speed: cfg.Replay.Speed})
	}
	if cfg.Sim.Enable {
		script, err := sim.LoadProfileScript(cfg.Sim.Profile)
		if err != nil {
			return nil, err
		}
		prof, err := sim.NewProfile(script)
		if err != nil {
			return nil, err
		}
		log.Printf("sim enabled profile=%s duration=%s speed=%.1f", cfg.Sim.Profile, prof.Duration(), cfg.Sim.Speed)
		return sim.NewProfileSource(prof, sim.SourceConfig{Speed: cfg.Sim.Speed, RawEvery: 10})
	}
	return imu.NewSerialSource(cfg.IMU.Device, cfg.IMU.Baud, imu.NewLineDecoder())
}
