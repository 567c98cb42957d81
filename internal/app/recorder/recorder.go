package recorder

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nordic-dev-net/hydrophonitor-gps/internal/clock"
	"github.com/nordic-dev-net/hydrophonitor-gps/internal/domain"
	"github.com/nordic-dev-net/hydrophonitor-gps/internal/ports"
)

var (
	ErrConnect   = errors.New("recorder: connect to positioning daemon")
	ErrHandshake = errors.New("recorder: handshake")
	ErrReceive   = errors.New("recorder: receive")
	ErrStorage   = errors.New("recorder: observation log storage")
)

type State int

const (
	StateIdle State = iota
	StateConnecting
	StateHandshaking
	StateRecording
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateHandshaking:
		return "handshaking"
	case StateRecording:
		return "recording"
	case StateTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Dialer opens the transport to the positioning daemon.
type Dialer func(ctx context.Context) (ports.ReportChannel, error)

// Config holds the collaborators of a Recorder. Archive and SessionID are
// optional; Clock defaults to the real clock. ArchiveTimeout bounds each
// archive write and is capped at half the interval.
type Config struct {
	Dial           Dialer
	Store          ports.LogStore
	Archive        ports.ArchiveSink
	ArchiveTimeout time.Duration
	Policy         ports.Policy
	Clock          clock.Clock
	Obs            ports.Observability
	SessionID      string
}

// Recorder runs the connect, handshake, record loop against one daemon and
// one log file. A Recorder runs once.
type Recorder struct {
	dial           Dialer
	store          ports.LogStore
	archive        ports.ArchiveSink
	archiveTimeout time.Duration
	policy         ports.Policy
	clock          clock.Clock
	obs            ports.Observability
	acc            *Accumulator
	sessionID      string

	mu      sync.Mutex
	started bool
	state   State
	err     error
}

func New(cfg Config) (*Recorder, error) {
	if cfg.Dial == nil {
		return nil, errors.New("recorder: dialer is required")
	}
	if cfg.Store == nil {
		return nil, errors.New("recorder: log store is required")
	}
	if cfg.Obs == nil {
		return nil, errors.New("recorder: observability is required")
	}
	if cfg.Policy.Interval <= 0 || cfg.Policy.Window <= 0 {
		return nil, fmt.Errorf("recorder: interval and window must be positive, got %s/%s",
			cfg.Policy.Interval, cfg.Policy.Window)
	}
	c := cfg.Clock
	if c == nil {
		c = clock.Real()
	}
	archiveTimeout := cfg.Policy.Interval / 2
	if cfg.ArchiveTimeout > 0 && cfg.ArchiveTimeout < archiveTimeout {
		archiveTimeout = cfg.ArchiveTimeout
	}
	return &Recorder{
		dial:           cfg.Dial,
		store:          cfg.Store,
		archive:        cfg.Archive,
		archiveTimeout: archiveTimeout,
		policy:         cfg.Policy,
		clock:          c,
		obs:            cfg.Obs,
		acc:            NewAccumulator(c, cfg.Obs, cfg.Policy.ContinueOnReceiveError),
		sessionID:      cfg.SessionID,
	}, nil
}

// State reports where the recorder is in its lifecycle.
func (r *Recorder) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Err returns the error that terminated the recorder, if any.
func (r *Recorder) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Run connects, performs the handshake and records until a fatal error or
// until ctx is cancelled. It always returns a non-nil error; cancellation
// surfaces as ctx.Err().
func (r *Recorder) Run(ctx context.Context) error {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return fmt.Errorf("recorder: already %s", r.state)
	}
	r.started = true
	r.mu.Unlock()

	err := r.run(ctx)
	r.terminate(ctx, err)
	return err
}

func (r *Recorder) run(ctx context.Context) error {
	r.setState(StateConnecting)
	ch, err := r.dial(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConnect, err)
	}
	defer ch.Close()

	r.setState(StateHandshaking)
	if err := ch.Handshake(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrHandshake, err)
	}

	log, err := r.store.Load()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}

	r.setState(StateRecording)
	for {
		if log, err = r.cycle(ctx, ch, log); err != nil {
			return err
		}
	}
}

// cycle records one observation and paces to the next interval boundary.
func (r *Recorder) cycle(ctx context.Context, ch ports.ReportChannel, log *domain.Log) (*domain.Log, error) {
	t0 := r.clock.Now()

	if r.policy.ReloadEachCycle {
		reloaded, err := r.store.Load()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrStorage, err)
		}
		log = reloaded
	}

	snapshot, err := r.acc.Observe(ctx, ch, r.policy.Window)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %w", ErrReceive, err)
	}

	log.Append(snapshot)
	persistStart := time.Now()
	if err := r.store.Persist(log); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	r.obs.ObserveLatency(ports.MetricPersistLatency, time.Since(persistStart).Seconds())
	r.obs.IncCounter(ports.MetricObservationsRecorded, 1)
	stats := r.store.Stats()
	r.obs.SetGauge(ports.MetricLogEntries, float64(stats.Entries))
	r.obs.SetGauge(ports.MetricLogSizeBytes, float64(stats.SizeBytes))

	seq := uint64(log.Len())
	r.mirror(ctx, seq, &snapshot)

	elapsed := clock.Since(r.clock, t0)
	r.obs.ObserveLatency(ports.MetricCycleDuration, elapsed.Seconds())
	r.obs.LogInfo("observation_recorded",
		ports.Field{Key: "seq", Value: seq},
		ports.Field{Key: "kinds", Value: kindNames(snapshot.Kinds())},
		ports.Field{Key: "elapsed", Value: elapsed})

	remaining := r.policy.Interval - elapsed
	if remaining <= 0 {
		r.obs.IncCounter(ports.MetricPacingUnderruns, 1)
		return log, nil
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-r.clock.After(remaining):
		return log, nil
	}
}

// mirror hands the observation to the archive. The write is bounded by
// archiveTimeout so a stalled archive cannot hold up the next cycle.
func (r *Recorder) mirror(ctx context.Context, seq uint64, snapshot *domain.Observation) {
	if r.archive == nil {
		return
	}
	actx, cancel := context.WithTimeout(ctx, r.archiveTimeout)
	defer cancel()
	if err := r.archive.WriteObservation(actx, seq, snapshot); err != nil {
		r.obs.IncCounter(ports.MetricArchiveFailures, 1)
		r.obs.LogError("archive_write_failed", err,
			ports.Field{Key: "sink", Value: r.archive.Name()},
			ports.Field{Key: "seq", Value: seq},
			ports.Field{Key: "timeout", Value: r.archiveTimeout})
	}
}

func (r *Recorder) setState(s State) {
	r.mu.Lock()
	prev := r.state
	r.state = s
	r.mu.Unlock()
	r.obs.LogInfo("recorder_state",
		ports.Field{Key: "from", Value: prev.String()},
		ports.Field{Key: "to", Value: s.String()},
		ports.Field{Key: "session_id", Value: r.sessionID})
}

// terminate records the final error. Ending because ctx was cancelled or
// hit its deadline is a normal stop and is not reported as critical.
func (r *Recorder) terminate(ctx context.Context, err error) {
	r.mu.Lock()
	r.err = err
	r.mu.Unlock()
	r.setState(StateTerminated)
	if err == nil {
		return
	}
	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		return
	}
	r.obs.LogCritical("recorder_terminated", err, ports.Field{Key: "log", Value: r.store.Path()})
}

func kindNames(kinds []domain.Kind) []string {
	out := make([]string, len(kinds))
	for i, k := range kinds {
		out[i] = k.Class()
	}
	return out
}
