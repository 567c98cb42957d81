package gpsrecorder

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nordic-dev-net/hydrophonitor-gps/internal/adapters/gpsd"
	"github.com/nordic-dev-net/hydrophonitor-gps/internal/adapters/logstore"
	"github.com/nordic-dev-net/hydrophonitor-gps/internal/adapters/observability"
	"github.com/nordic-dev-net/hydrophonitor-gps/internal/adapters/sink"
	"github.com/nordic-dev-net/hydrophonitor-gps/internal/app/recorder"
	"github.com/nordic-dev-net/hydrophonitor-gps/internal/clock"
	"github.com/nordic-dev-net/hydrophonitor-gps/internal/ports"
)

// RuntimeOption customizes the dependencies used by Runtime.
type RuntimeOption func(*runtimeOverrides)

type runtimeOverrides struct {
	dial          Dialer
	store         LogStore
	archive       ArchiveSink
	observability Observability
	clock         Clock
	sessionID     string
}

// WithChannel replaces the gpsd TCP dialer, e.g. with a replay or simulator.
func WithChannel(dial Dialer) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.dial = dial
	}
}

// WithStore replaces the per-session log file.
func WithStore(s LogStore) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.store = s
	}
}

// WithArchive mirrors observations to s instead of the configured Postgres table.
func WithArchive(s ArchiveSink) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.archive = s
	}
}

// WithObservability plugs in a custom logging and metrics backend.
func WithObservability(obs Observability) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.observability = obs
	}
}

// WithClock drives the recorder from c instead of wall time.
func WithClock(c Clock) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.clock = c
	}
}

// WithSessionID fixes the session id instead of generating a random one.
func WithSessionID(id string) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.sessionID = id
	}
}

// Runtime wires the gpsd channel, the session log file, the optional archive
// and the metrics endpoint around a single recorder.
type Runtime struct {
	cfg       *Config
	sessionID string
	obs       ports.Observability
	store     ports.LogStore
	archive   ports.ArchiveSink
	dial      recorder.Dialer
	clock     clock.Clock
	rec       *recorder.Recorder
	db        *sql.DB

	mu         sync.Mutex
	metricsSrv *http.Server
	metricsLn  net.Listener
}

// Conf loads YAML from disk and builds a Runtime from it.
func Conf(path string, opts ...RuntimeOption) (*Runtime, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	return NewRuntime(cfg, opts...)
}

// NewRuntime bootstraps the default adapters (gpsd TCP channel, a session
// file under cfg.OutputDir created after the handshake, Prometheus
// observability and, when a connection string is configured, the Postgres
// archive). Options override any of them.
func NewRuntime(cfg *Config, opts ...RuntimeOption) (*Runtime, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	var overrides runtimeOverrides
	for _, opt := range opts {
		if opt != nil {
			opt(&overrides)
		}
	}

	c := overrides.clock
	if c == nil {
		c = clock.Real()
	}

	obs := overrides.observability
	if obs == nil {
		obs = observability.NewPromObs(nil, nil)
	}

	sessionID := overrides.sessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	dial := overrides.dial
	if dial == nil {
		gpsdCfg := cfg.GPSD
		dial = func(ctx context.Context) (ports.ReportChannel, error) {
			ch, err := gpsd.Dial(ctx, gpsdCfg)
			if err != nil {
				return nil, err
			}
			return ch, nil
		}
	}

	store := overrides.store
	if store == nil {
		if cfg.OutputDir == "" {
			return nil, fmt.Errorf("output_dir is required")
		}
		// the file appears once the daemon handshake has succeeded
		store = logstore.NewSession(cfg.OutputDir, c.Now())
	}

	var db *sql.DB
	archive := overrides.archive
	if archive == nil && cfg.Archive.ConnString != "" {
		var err error
		db, err = sql.Open("postgres", cfg.Archive.ConnString)
		if err != nil {
			return nil, err
		}
		ts, err := sink.NewTimescaleSink(db, cfg.Archive.Table, sessionID)
		if err != nil {
			db.Close()
			return nil, err
		}
		archive = ts
	}

	rec, err := recorder.New(recorder.Config{
		Dial:           dial,
		Store:          store,
		Archive:        archive,
		ArchiveTimeout: cfg.Archive.Timeout,
		Policy:         cfg.Recording,
		Clock:          c,
		Obs:            obs,
		SessionID:      sessionID,
	})
	if err != nil {
		if db != nil {
			db.Close()
		}
		return nil, err
	}

	return &Runtime{
		cfg:       cfg,
		sessionID: sessionID,
		obs:       obs,
		store:     store,
		archive:   archive,
		dial:      dial,
		clock:     c,
		rec:       rec,
		db:        db,
	}, nil
}

// SessionID identifies this recording session in logs and archive rows.
func (r *Runtime) SessionID() string { return r.sessionID }

// LogPath is the session file observations are written to.
func (r *Runtime) LogPath() string { return r.store.Path() }

// State reports the recorder lifecycle state.
func (r *Runtime) State() State { return r.rec.State() }

// Run starts the metrics endpoint if configured, records until ctx is
// cancelled or a fatal error occurs, then shuts everything down. The
// recorder's error is returned; cancellation surfaces as context.Canceled.
func (r *Runtime) Run(ctx context.Context) error {
	if r.cfg.Metrics.Addr != "" {
		if err := r.startMetrics(); err != nil {
			return err
		}
	}

	r.obs.LogInfo("recorder_starting",
		ports.Field{Key: "session_id", Value: r.sessionID},
		ports.Field{Key: "log", Value: r.store.Path()},
		ports.Field{Key: "gpsd", Value: r.cfg.GPSD.Address()},
		ports.Field{Key: "interval", Value: r.cfg.Recording.Interval},
		ports.Field{Key: "window", Value: r.cfg.Recording.Window})

	runErr := r.rec.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.Shutdown(shutdownCtx); err != nil {
		r.obs.LogError("shutdown_failed", err)
	}
	return runErr
}

// Shutdown stops the metrics server and closes the archive database.
func (r *Runtime) Shutdown(ctx context.Context) error {
	var errs []error

	r.mu.Lock()
	srv := r.metricsSrv
	r.metricsSrv = nil
	r.mu.Unlock()
	if srv != nil {
		if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs = append(errs, err)
		}
	}

	if r.db != nil {
		if err := r.db.Close(); err != nil {
			errs = append(errs, err)
		}
		r.db = nil
	}

	return errors.Join(errs...)
}

// MetricsAddr returns the address the metrics server is bound to, or "" when
// it is not running.
func (r *Runtime) MetricsAddr() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.metricsLn == nil || r.metricsSrv == nil {
		return ""
	}
	return r.metricsLn.Addr().String()
}

func (r *Runtime) startMetrics() error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if r.rec.State() == recorder.StateTerminated {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(r.rec.State().String()))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	ln, err := net.Listen("tcp", r.cfg.Metrics.Addr)
	if err != nil {
		return fmt.Errorf("metrics listen %s: %w", r.cfg.Metrics.Addr, err)
	}
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	r.mu.Lock()
	r.metricsSrv = srv
	r.metricsLn = ln
	r.mu.Unlock()

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			r.obs.LogError("metrics_server_exited", err)
		}
	}()
	return nil
}
