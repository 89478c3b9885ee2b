// Package config loads the controller configuration: defaults, then an
// optional YAML file, then environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/teslashibe/go-pitchnav/pkg/audioio"
	"github.com/teslashibe/go-pitchnav/pkg/bridge"
	"github.com/teslashibe/go-pitchnav/pkg/camera"
	"github.com/teslashibe/go-pitchnav/pkg/control"
	"github.com/teslashibe/go-pitchnav/pkg/line"
	"github.com/teslashibe/go-pitchnav/pkg/nav"
	"github.com/teslashibe/go-pitchnav/pkg/pitch"
	"github.com/teslashibe/go-pitchnav/pkg/robot"
	"github.com/teslashibe/go-pitchnav/pkg/trace"
	"github.com/teslashibe/go-pitchnav/pkg/web"
	"gopkg.in/yaml.v3"
)

// ErrInvalid is wrapped by every validation error.
var ErrInvalid = errors.New("invalid configuration")

// Hardware modes.
const (
	ModeSim = "sim"
	ModeRig = "rig"
)

// Environment variables.
const (
	EnvConfig     = "PITCHNAV_CONFIG"
	EnvLogLevel   = "LOG_LEVEL"
	EnvHTTPPort   = "PITCHNAV_HTTP_PORT"
	EnvSerialPort = "PITCHNAV_SERIAL_PORT"
	EnvRigURL     = "PITCHNAV_RIG_URL"
)

// TraceConfig configures the serial diagnostic stream.
type TraceConfig struct {
	// SerialPort enables tracing when set, e.g. /dev/ttyUSB0.
	SerialPort string `yaml:"serial_port" json:"serial_port"`
	Baud       int    `yaml:"baud" json:"baud"`

	// Spectra adds binary spectrum frames to the stream.
	Spectra bool `yaml:"spectra" json:"spectra"`
}

// RigConfig configures the remote rig simulator.
type RigConfig struct {
	// URL of the controller's rig endpoint.
	URL  string `yaml:"url" json:"url"`
	Name string `yaml:"name" json:"name"`

	// Plucks are the frequencies played, one per listening phase.
	Plucks []float64 `yaml:"plucks" json:"plucks"`
}

// SimConfig configures the in-process simulation.
type SimConfig struct {
	Arena robot.SimConfig `yaml:"arena" json:"arena"`

	// Plucks are the frequencies played, one per listening phase.
	Plucks []float64 `yaml:"plucks" json:"plucks"`
}

// Config aggregates every component configuration.
type Config struct {
	LogLevel string `yaml:"log_level" json:"log_level"`

	// Mode selects the hardware: "sim" or "rig".
	Mode string `yaml:"mode" json:"mode"`

	Audio   audioio.Config `yaml:"audio" json:"audio"`
	Pitch   pitch.Config   `yaml:"pitch" json:"pitch"`
	Line    line.Config    `yaml:"line" json:"line"`
	Camera  camera.Config  `yaml:"camera" json:"camera"`
	Nav     nav.Config     `yaml:"nav" json:"nav"`
	Control control.Config `yaml:"control" json:"control"`
	Bridge  bridge.Config  `yaml:"bridge" json:"bridge"`
	Web     web.Config     `yaml:"web" json:"web"`
	Trace   TraceConfig    `yaml:"trace" json:"trace"`
	Sim     SimConfig      `yaml:"sim" json:"sim"`
	Rig     RigConfig      `yaml:"rig" json:"rig"`
}

// Default returns the calibrated defaults, simulated hardware.
func Default() Config {
	return Config{
		LogLevel: "info",
		Mode:     ModeSim,
		Audio:    audioio.DefaultConfig(),
		Pitch:    pitch.DefaultConfig(),
		Line:     line.DefaultConfig(),
		Camera:   camera.DefaultConfig(),
		Nav:      nav.DefaultConfig(),
		Control:  control.DefaultConfig(),
		Bridge:   bridge.DefaultConfig(),
		Web:      web.DefaultConfig(),
		Trace:    TraceConfig{Baud: trace.DefaultBaud},
		Sim: SimConfig{
			Arena:  robot.DefaultSimConfig(),
			Plucks: []float64{200, 110},
		},
		Rig: RigConfig{
			URL:    "ws://localhost:8080/ws/rig",
			Name:   "rig",
			Plucks: []float64{200, 110},
		},
	}
}

// Load reads path over the defaults, applies the environment and validates.
// An empty path falls back to $PITCHNAV_CONFIG, then to defaults only.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(EnvConfig)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from the environment.
func (c *Config) ApplyEnv() {
	c.LogLevel = envOr(EnvLogLevel, c.LogLevel)
	c.Web.Port = envOr(EnvHTTPPort, c.Web.Port)
	c.Trace.SerialPort = envOr(EnvSerialPort, c.Trace.SerialPort)
	c.Rig.URL = envOr(EnvRigURL, c.Rig.URL)
}

// Validate checks every component configuration.
func (c *Config) Validate() error {
	if c.Mode != ModeSim && c.Mode != ModeRig {
		return fmt.Errorf("%w: mode must be %q or %q, got %q", ErrInvalid, ModeSim, ModeRig, c.Mode)
	}

	checks := []struct {
		name string
		err  error
	}{
		{"audio", c.Audio.Validate()},
		{"pitch", c.Pitch.Validate()},
		{"line", c.Line.Validate()},
		{"camera", c.Camera.Err()},
		{"nav", c.Nav.Validate()},
		{"control", c.Control.Validate()},
		{"bridge", c.Bridge.Validate()},
		{"sim", c.Sim.Arena.Validate()},
	}
	for _, chk := range checks {
		if chk.err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalid, chk.name, chk.err)
		}
	}

	if c.Pitch.MicSampleRate != c.Audio.SampleRate {
		return fmt.Errorf("%w: pitch.mic_sample_rate %d differs from audio.sample_rate %d",
			ErrInvalid, c.Pitch.MicSampleRate, c.Audio.SampleRate)
	}
	if c.Pitch.Channel >= c.Audio.Channels {
		return fmt.Errorf("%w: pitch.channel %d out of %d audio channels",
			ErrInvalid, c.Pitch.Channel, c.Audio.Channels)
	}
	if c.Sim.Arena.RowWidth != c.Line.Width || c.Camera.RowWidth != c.Line.Width {
		return fmt.Errorf("%w: sim and camera row widths must equal line.width %d", ErrInvalid, c.Line.Width)
	}
	if c.Web.Port == "" {
		return fmt.Errorf("%w: web.port is required", ErrInvalid)
	}
	return nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
