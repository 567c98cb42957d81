package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nordic-dev-net/hydrophonitor-gps/internal/adapters/gpsd"
	"github.com/nordic-dev-net/hydrophonitor-gps/internal/ports"
)

type Config struct {
	OutputDir string        `yaml:"output_dir"`
	GPSD      gpsd.Config   `yaml:"gpsd"`
	Recording ports.Policy  `yaml:"recording"`
	Metrics   MetricsConfig `yaml:"metrics"`
	Archive   ArchiveConfig `yaml:"archive"`
	Log       LogConfig     `yaml:"log"`
}

// MetricsConfig controls the optional Prometheus endpoint. An empty Addr
// keeps the recorder free of any listening socket.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// ArchiveConfig enables the Postgres/Timescale mirror when ConnString is set.
// Timeout bounds each write; the recorder caps it at half the interval.
type ArchiveConfig struct {
	ConnString string        `yaml:"conn_string"`
	Table      string        `yaml:"table"`
	Timeout    time.Duration `yaml:"timeout"`
}

// Lower bounds for the recording timings. A bare YAML integer decodes as
// nanoseconds, so anything below these is almost certainly a unit mistake.
const (
	MinInterval = time.Second
	MinWindow   = time.Millisecond
)

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns a Config with every default applied and no output dir.
func Default() *Config {
	cfg := &Config{
		Recording: ports.Policy{ContinueOnReceiveError: true},
	}
	cfg.ApplyDefaults()
	return cfg
}

// Load reads YAML from path on top of Default, then validates.
func Load(path string) (*Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Read is Load without validation, for callers that still have overrides
// to apply.
func Read(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	cfg.ApplyDefaults()
	return cfg, nil
}

func (c *Config) ApplyDefaults() {
	if c.Recording.Interval == 0 {
		c.Recording.Interval = 10 * time.Second
	}
	if c.Recording.Window == 0 {
		c.Recording.Window = 1000 * time.Millisecond
	}
	if c.Archive.Table == "" {
		c.Archive.Table = "gps_observations"
	}
	if c.Archive.Timeout == 0 {
		c.Archive.Timeout = 2 * time.Second
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}

	c.GPSD.ApplyDefaults()
}

func (c *Config) Validate() error {
	if c.OutputDir == "" {
		return errors.New("output_dir is required")
	}
	if err := c.GPSD.Validate(); err != nil {
		return fmt.Errorf("gpsd config: %w", err)
	}
	if c.Recording.Interval < MinInterval {
		return fmt.Errorf("recording.interval must be at least %s, got %s (use a unit, e.g. 10s)",
			MinInterval, c.Recording.Interval)
	}
	if c.Recording.Window < MinWindow {
		return fmt.Errorf("recording.window must be at least %s, got %s (use a unit, e.g. 1000ms)",
			MinWindow, c.Recording.Window)
	}
	if c.Archive.Timeout <= 0 {
		return fmt.Errorf("archive.timeout must be > 0, got %s", c.Archive.Timeout)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	return nil
}
