package gpsrecorder

import (
	base "github.com/nordic-dev-net/hydrophonitor-gps/pkg/gpsrecorder"
)

// Re-exported errors for convenience.
var (
	ErrConnect           = base.ErrConnect
	ErrHandshake         = base.ErrHandshake
	ErrReceive           = base.ErrReceive
	ErrStorage           = base.ErrStorage
	ErrChannelSinkClosed = base.ErrChannelSinkClosed
	ErrChannelSinkFull   = base.ErrChannelSinkFull
)

// Type aliases so consumers can import github.com/nordic-dev-net/hydrophonitor-gps directly.
type (
	Config              = base.Config
	Policy              = base.Policy
	GPSDConfig          = base.GPSDConfig
	MetricsConfig       = base.MetricsConfig
	ArchiveConfig       = base.ArchiveConfig
	LogConfig           = base.LogConfig
	Runtime             = base.Runtime
	RuntimeOption       = base.RuntimeOption
	Observation         = base.Observation
	Report              = base.Report
	Kind                = base.Kind
	Log                 = base.Log
	ReportChannel       = base.ReportChannel
	Dialer              = base.Dialer
	LogStore            = base.LogStore
	StoreStats          = base.StoreStats
	ArchiveSink         = base.ArchiveSink
	Observability       = base.Observability
	Field               = base.Field
	Clock               = base.Clock
	State               = base.State
	RecordedObservation = base.RecordedObservation
	ObservationHandler  = base.ObservationHandler
)

// Config helpers.
func LoadConfig(path string) (*Config, error) {
	return base.LoadConfig(path)
}

func DefaultConfig() *Config {
	return base.DefaultConfig()
}

// Runtime and options.
func Conf(path string, opts ...RuntimeOption) (*Runtime, error) {
	return base.Conf(path, opts...)
}

func NewRuntime(cfg *Config, opts ...RuntimeOption) (*Runtime, error) {
	return base.NewRuntime(cfg, opts...)
}

func WithChannel(dial Dialer) RuntimeOption {
	return base.WithChannel(dial)
}

func WithStore(s LogStore) RuntimeOption {
	return base.WithStore(s)
}

func WithArchive(s ArchiveSink) RuntimeOption {
	return base.WithArchive(s)
}

func WithObservability(obs Observability) RuntimeOption {
	return base.WithObservability(obs)
}

func WithClock(c Clock) RuntimeOption {
	return base.WithClock(c)
}

func WithSessionID(id string) RuntimeOption {
	return base.WithSessionID(id)
}

// Sink adapters.
func NewCallbackSink(name string, fn ObservationHandler) ArchiveSink {
	return base.NewCallbackSink(name, fn)
}

func NewChannelSink(name string, buffer int) (ArchiveSink, <-chan RecordedObservation, func()) {
	return base.NewChannelSink(name, buffer)
}
