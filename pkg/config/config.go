// Package config loads the session configuration used by the command
// line tools. Precedence is file over defaults; flags are applied by
// the commands themselves on top of the loaded configuration.
package config

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/urcontrol/urcl-go/pkg/wire"
)

// Default values mirroring a common lab setup.
const (
	// DefaultRobotAddr is the robot controller address.
	DefaultRobotAddr = "192.168.56.101"

	// DefaultCalibrationChecksum matches the simulator's kinematics.
	DefaultCalibrationChecksum = "calib_12788084448423163542"
)

// ForceModeConfig is the force-mode parameter set.
type ForceModeConfig struct {
	// TaskFrame is the force frame pose relative to the robot base.
	TaskFrame [6]float64 `yaml:"task_frame"`

	// Compliance selects the compliant axes.
	Compliance [6]bool `yaml:"compliance"`

	// Wrench is the target force/torque.
	Wrench [6]float64 `yaml:"wrench"`

	// Type is the task frame transform (1=point, 2=fixed, 3=motion).
	Type int32 `yaml:"type"`

	// Limits are speed limits on compliant axes, deviation limits on
	// the others.
	Limits [6]float64 `yaml:"limits"`

	// Damping is the force-mode damping factor, 0 to 1.
	Damping float64 `yaml:"damping"`

	// GainScaling is the force-controller gain scaling, 0 to 2. Only
	// encoded for firmware that accepts it.
	GainScaling float64 `yaml:"gain_scaling"`
}

// Params converts the configuration into wire parameters.
func (f ForceModeConfig) Params() wire.ForceModeParams {
	return wire.ForceModeParams{
		TaskFrame:  wire.Vector6D(f.TaskFrame),
		Compliance: wire.Selection(f.Compliance),
		Wrench:     wire.Vector6D(f.Wrench),
		Type:       wire.FrameTransform(f.Type),
		Limits:     wire.Vector6D(f.Limits),
		Damping:    f.Damping,
	}
}

// Config is the session configuration.
type Config struct {
	// RobotAddr is the robot controller host or host:port.
	RobotAddr string `yaml:"robot_addr"`

	// CalibrationChecksum is the expected kinematic calibration.
	// Empty disables the check.
	CalibrationChecksum string `yaml:"calibration_checksum"`

	// ScriptPath is the control script template file.
	ScriptPath string `yaml:"script_path"`

	// InputRecipePath and OutputRecipePath are the recipe files.
	InputRecipePath  string `yaml:"input_recipe_path"`
	OutputRecipePath string `yaml:"output_recipe_path"`

	// ReverseAddr is the reverse channel listen address.
	ReverseAddr string `yaml:"reverse_addr"`

	// CallbackHost overrides the callback host written into the
	// deployed script. Empty derives it from the route to the robot.
	CallbackHost string `yaml:"callback_host"`

	// ReadyTimeout bounds the wait for script confirmation.
	ReadyTimeout time.Duration `yaml:"ready_timeout"`

	// RobotReadTimeout is the liveness budget granted to the robot.
	RobotReadTimeout time.Duration `yaml:"robot_read_timeout"`

	// Duration is how long to hold the mode. Zero means run until
	// interrupted.
	Duration time.Duration `yaml:"duration"`

	// PowerOn powers the arm on and releases the brakes during startup.
	PowerOn bool `yaml:"power_on"`

	// LogFile is the session event log path. Empty disables it.
	LogFile string `yaml:"log_file"`

	// ForceMode holds the force-mode parameters.
	ForceMode ForceModeConfig `yaml:"force_mode"`
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		RobotAddr:           DefaultRobotAddr,
		CalibrationChecksum: DefaultCalibrationChecksum,
		ReadyTimeout:        10 * time.Second,
		RobotReadTimeout:    500 * time.Millisecond,
		ForceMode: ForceModeConfig{
			Compliance:  [6]bool{false, false, true, false, false, true},
			Wrench:      [6]float64{0, 0, -2, 0, 0, 0},
			Type:        int32(wire.TransformFixed),
			Limits:      [6]float64{0.1, 0.1, 1.5, 3.14, 3.14, 0.5},
			Damping:     0.005,
			GainScaling: 1.0,
		},
	}
}

// Load reads path on top of the defaults. Unknown keys are an error;
// a silently ignored typo in a safety-relevant parameter is worse than
// a failed start.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("load config: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration for values the session would
// reject later anyway.
func (c Config) Validate() error {
	if c.RobotAddr == "" {
		return fmt.Errorf("robot_addr must not be empty")
	}
	if c.ReadyTimeout <= 0 {
		return fmt.Errorf("ready_timeout must be positive")
	}
	if c.RobotReadTimeout <= 0 {
		return fmt.Errorf("robot_read_timeout must be positive")
	}
	if c.Duration < 0 {
		return fmt.Errorf("duration must not be negative")
	}
	if !wire.FrameTransform(c.ForceMode.Type).IsValid() {
		return fmt.Errorf("force_mode.type %d is not a valid frame transform", c.ForceMode.Type)
	}
	if c.ForceMode.Damping < 0 || c.ForceMode.Damping > 1 {
		return fmt.Errorf("force_mode.damping %v out of range [0, 1]", c.ForceMode.Damping)
	}
	if c.ForceMode.GainScaling < 0 || c.ForceMode.GainScaling > 2 {
		return fmt.Errorf("force_mode.gain_scaling %v out of range [0, 2]", c.ForceMode.GainScaling)
	}
	return nil
}
