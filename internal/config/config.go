package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	IMU     IMUConfig     `yaml:"imu"`
	Servo   ServoConfig   `yaml:"servo"`
	Flight  FlightConfig  `yaml:"flight"`
	Logging LoggingConfig `yaml:"logging"`
	Sim     SimConfig     `yaml:"sim"`
	Replay  ReplayConfig  `yaml:"replay"`
	Web     WebConfig     `yaml:"web"`
}

type IMUConfig struct {
	Device      string `yaml:"device"`
	Baud        int    `yaml:"baud"`
	FrequencyHz int    `yaml:"frequency_hz"`
}

type ServoConfig struct {
	Backend  string        `yaml:"backend"`
	Pin      int           `yaml:"pin"`
	MinPulse time.Duration `yaml:"min_pulse"`
	MaxPulse time.Duration `yaml:"max_pulse"`
}

type FlightConfig struct {
	WindowSize       int           `yaml:"window_size"`
	LaunchAccelMps2  float64       `yaml:"launch_accel_mps2"`
	LaunchDwell      time.Duration `yaml:"launch_dwell"`
	BurnoutAccelMps2 float64       `yaml:"burnout_accel_mps2"`
	BurnoutDwell     time.Duration `yaml:"burnout_dwell"`
	ApogeeDropM      float64       `yaml:"apogee_drop_m"`
	CoastExtension   float64       `yaml:"coast_extension"`
}

type LoggingConfig struct {
	Dir string `yaml:"dir"`
}

type WebConfig struct {
	Enable bool   `yaml:"enable"`
	Listen string `yaml:"listen"`
}

type SimConfig struct {
	Enable  bool    `yaml:"enable"`
	Profile string  `yaml:"profile"`
	Speed   float64 `yaml:"speed"`
}

// ReplayConfig plays a previously recorded flight log back through the
// pipeline. Active when File is set.
type ReplayConfig struct {
	File  string  `yaml:"file"`
	Speed float64 `yaml:"speed"`
}

func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, err
	}

	if err := DefaultAndValidate(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// DefaultAndValidate fills defaults in place and rejects nonsensical
// combinations.
func DefaultAndValidate(cfg *Config) error {
	if cfg.IMU.Device == "" {
		cfg.IMU.Device = "/dev/ttyACM0"
	}
	if cfg.IMU.Baud <= 0 {
		cfg.IMU.Baud = 115200
	}
	if cfg.IMU.FrequencyHz <= 0 {
		cfg.IMU.FrequencyHz = 100
	}

	if cfg.Servo.Backend == "" {
		cfg.Servo.Backend = "sysfs"
	}
	switch cfg.Servo.Backend {
	case "sysfs", "gpio", "off":
	default:
		return fmt.Errorf("servo.backend must be sysfs, gpio, or off")
	}
	if cfg.Servo.Pin == 0 {
		cfg.Servo.Pin = 12
	}
	if cfg.Servo.MinPulse <= 0 {
		cfg.Servo.MinPulse = 1000 * time.Microsecond
	}
	if cfg.Servo.MaxPulse <= 0 {
		cfg.Servo.MaxPulse = 2000 * time.Microsecond
	}
	if cfg.Servo.MaxPulse <= cfg.Servo.MinPulse {
		return fmt.Errorf("servo.max_pulse must be greater than servo.min_pulse")
	}

	if cfg.Flight.WindowSize <= 0 {
		cfg.Flight.WindowSize = 50
	}
	if cfg.Flight.LaunchAccelMps2 <= 0 {
		cfg.Flight.LaunchAccelMps2 = 10.0
	}
	if cfg.Flight.LaunchDwell <= 0 {
		cfg.Flight.LaunchDwell = 100 * time.Millisecond
	}
	if cfg.Flight.BurnoutAccelMps2 <= 0 {
		cfg.Flight.BurnoutAccelMps2 = 6.0
	}
	if cfg.Flight.BurnoutDwell <= 0 {
		cfg.Flight.BurnoutDwell = 300 * time.Millisecond
	}
	if cfg.Flight.BurnoutAccelMps2 >= cfg.Flight.LaunchAccelMps2 {
		return fmt.Errorf("flight.burnout_accel_mps2 must be below flight.launch_accel_mps2")
	}
	if cfg.Flight.ApogeeDropM <= 0 {
		cfg.Flight.ApogeeDropM = 5.0
	}
	if cfg.Flight.CoastExtension == 0 {
		cfg.Flight.CoastExtension = 1.0
	}
	if cfg.Flight.CoastExtension < 0 || cfg.Flight.CoastExtension > 1 {
		return fmt.Errorf("flight.coast_extension must be in [0, 1]")
	}

	if cfg.Logging.Dir == "" {
		cfg.Logging.Dir = "logs"
	}

	if cfg.Sim.Enable && cfg.Sim.Profile == "" {
		return fmt.Errorf("sim.profile is required when sim.enable is true")
	}
	if cfg.Sim.Speed == 0 {
		cfg.Sim.Speed = 1.0
	}
	if cfg.Sim.Speed < 0 {
		return fmt.Errorf("sim.speed must be > 0")
	}

	if cfg.Replay.File != "" && cfg.Sim.Enable {
		return fmt.Errorf("replay.file and sim.enable are mutually exclusive")
	}
	if cfg.Replay.Speed == 0 {
		cfg.Replay.Speed = 1.0
	}
	if cfg.Replay.Speed < 0 {
		return fmt.Errorf("replay.speed must be > 0")
	}

	if cfg.Web.Listen == "" {
		cfg.Web.Listen = ":8080"
	}

	return nil
}
