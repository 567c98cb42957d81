package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/nordic-dev-net/hydrophonitor-gps"
	"github.com/nordic-dev-net/hydrophonitor-gps/internal/adapters/observability"
	"github.com/nordic-dev-net/hydrophonitor-gps/internal/app/config"
	"github.com/nordic-dev-net/hydrophonitor-gps/internal/logging"
)

type runFlags struct {
	configPath             string
	outputPath             string
	hostname               string
	port                   int
	intervalSeconds        int
	windowMillis           int
	continueOnReceiveError bool
	reloadEachCycle        bool
	metricsAddr            string
	logLevel               string
}

func newRunFlagSet(f *runFlags) *pflag.FlagSet {
	fs := pflag.NewFlagSet("run", pflag.ContinueOnError)
	fs.StringVarP(&f.configPath, "config", "c", "", "path to a YAML config file; flags override its values")
	fs.StringVarP(&f.outputPath, "output-path", "o", "", "directory the session log file is created in")
	fs.StringVar(&f.hostname, "hostname", "", "gpsd host (default localhost)")
	fs.IntVarP(&f.port, "port", "p", 0, "gpsd port (default 2947)")
	fs.IntVarP(&f.intervalSeconds, "interval", "i", 0, "seconds between observations (default 10)")
	fs.IntVarP(&f.windowMillis, "window", "w", 0, "sampling window in milliseconds (default 1000)")
	fs.BoolVar(&f.continueOnReceiveError, "continue-on-receive-error", true, "keep sampling after a failed report read")
	fs.BoolVar(&f.reloadEachCycle, "reload-each-cycle", false, "re-read the log file before every append")
	fs.StringVar(&f.metricsAddr, "metrics-addr", "", "serve /metrics and /healthz on this address (disabled when empty)")
	fs.StringVar(&f.logLevel, "log-level", "", "debug, info, warn or error")
	return fs
}

// buildConfig parses run flags and layers them over the config file, if any.
// Only flags given on the command line override file values.
func buildConfig(args []string, stderr io.Writer) (*config.Config, error) {
	var f runFlags
	fs := newRunFlagSet(&f)
	fs.SetOutput(stderr)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if rest := fs.Args(); len(rest) > 0 {
		return nil, fmt.Errorf("unexpected argument: %s", rest[0])
	}

	cfg := config.Default()
	if f.configPath != "" {
		var err error
		if cfg, err = config.Read(f.configPath); err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
	}

	if fs.Changed("output-path") {
		cfg.OutputDir = f.outputPath
	}
	if fs.Changed("hostname") {
		cfg.GPSD.Host = f.hostname
	}
	if fs.Changed("port") {
		cfg.GPSD.Port = f.port
	}
	if fs.Changed("interval") {
		if f.intervalSeconds <= 0 {
			return nil, fmt.Errorf("--interval must be > 0, got %d", f.intervalSeconds)
		}
		cfg.Recording.Interval = time.Duration(f.intervalSeconds) * time.Second
	}
	if fs.Changed("window") {
		if f.windowMillis <= 0 {
			return nil, fmt.Errorf("--window must be > 0, got %d", f.windowMillis)
		}
		cfg.Recording.Window = time.Duration(f.windowMillis) * time.Millisecond
	}
	if fs.Changed("continue-on-receive-error") {
		cfg.Recording.ContinueOnReceiveError = f.continueOnReceiveError
	}
	if fs.Changed("reload-each-cycle") {
		cfg.Recording.ReloadEachCycle = f.reloadEachCycle
	}
	if fs.Changed("metrics-addr") {
		cfg.Metrics.Addr = f.metricsAddr
	}
	if fs.Changed("log-level") {
		cfg.Log.Level = f.logLevel
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runCommand(args []string) error {
	cfg, err := buildConfig(args, os.Stderr)
	if errors.Is(err, pflag.ErrHelp) {
		return nil
	}
	if err != nil {
		return err
	}

	logger := logging.Init(cfg.Log.Format, logging.ParseLevel(cfg.Log.Level))
	obs := observability.NewPromObs(nil, logger)

	rt, err := gpsrecorder.NewRuntime(cfg, gpsrecorder.WithObservability(obs))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = rt.Run(ctx)
	if errors.Is(err, context.Canceled) {
		logger.Info("recorder_stopped", "log", rt.LogPath(), "session_id", rt.SessionID())
		return nil
	}
	return err
}

func validateCommand(args []string, stdout io.Writer) error {
	fs := pflag.NewFlagSet("validate", pflag.ContinueOnError)
	cfgPath := fs.StringP("config", "c", "./data/config.yaml", "path to the configuration file to validate")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg, err := gpsrecorder.LoadConfig(*cfgPath)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "config %s is valid: gpsd %s, interval %s, window %s, output %s\n",
		*cfgPath, cfg.GPSD.Address(), cfg.Recording.Interval, cfg.Recording.Window, cfg.OutputDir)
	return nil
}
