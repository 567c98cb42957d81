package gpsrecorder

import (
	"github.com/nordic-dev-net/hydrophonitor-gps/internal/adapters/gpsd"
	"github.com/nordic-dev-net/hydrophonitor-gps/internal/app/config"
	"github.com/nordic-dev-net/hydrophonitor-gps/internal/ports"
)

// Config re-exports the root configuration struct so embedding programs can
// build or tweak it in code.
type Config = config.Config

type (
	// Policy controls the sampling interval, window and error handling.
	Policy = ports.Policy
	// GPSDConfig says where the daemon listens.
	GPSDConfig = gpsd.Config
	// MetricsConfig configures the optional metrics HTTP server.
	MetricsConfig = config.MetricsConfig
	// ArchiveConfig configures the optional Postgres mirror.
	ArchiveConfig = config.ArchiveConfig
	// LogConfig selects log level and format.
	LogConfig = config.LogConfig
)

// LoadConfig loads YAML from disk, applies defaults and validates.
func LoadConfig(path string) (*Config, error) {
	return config.Load(path)
}

// DefaultConfig returns a config with every default applied. OutputDir is
// left empty and must be set before use.
func DefaultConfig() *Config {
	return config.Default()
}
