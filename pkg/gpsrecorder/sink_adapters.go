package gpsrecorder

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrChannelSinkClosed is returned when a channel sink is written to after being closed.
	ErrChannelSinkClosed = errors.New("gpsrecorder: channel sink closed")
	// ErrChannelSinkFull is returned when the reader has fallen behind and the
	// buffer has no room; the observation is dropped.
	ErrChannelSinkFull = errors.New("gpsrecorder: channel sink full")
)

// RecordedObservation pairs an observation with its 1-based position in the
// session log.
type RecordedObservation struct {
	Seq         uint64
	Observation Observation
}

// ObservationHandler is invoked once for every persisted observation.
type ObservationHandler func(ctx context.Context, rec RecordedObservation) error

// NewCallbackSink adapts a function into an ArchiveSink so callers can plug
// arbitrary handlers without defining structs.
func NewCallbackSink(name string, fn ObservationHandler) ArchiveSink {
	if name == "" {
		name = "callback"
	}
	return &callbackSink{name: name, fn: fn}
}

// NewChannelSink exposes observations via a channel; it returns the sink, the
// read-only channel and a close function the caller should invoke during
// shutdown. Writes never wait for the reader: when the buffer is full the
// observation is dropped with ErrChannelSinkFull.
func NewChannelSink(name string, buffer int) (ArchiveSink, <-chan RecordedObservation, func()) {
	if name == "" {
		name = "channel"
	}
	if buffer < 0 {
		buffer = 0
	}
	ch := make(chan RecordedObservation, buffer)
	s := &channelSink{
		name:   name,
		ch:     ch,
		closed: make(chan struct{}),
	}
	return s, ch, func() { s.close() }
}

type callbackSink struct {
	name string
	fn   ObservationHandler
}

func (s *callbackSink) WriteObservation(ctx context.Context, seq uint64, obs *Observation) error {
	if s.fn == nil {
		return fmt.Errorf("callback sink %q: nil handler", s.name)
	}
	if obs == nil {
		return nil
	}
	return s.fn(ctx, RecordedObservation{Seq: seq, Observation: *obs})
}

func (s *callbackSink) Name() string { return s.name }

type channelSink struct {
	name   string
	ch     chan RecordedObservation
	closed chan struct{}
	once   sync.Once
	mu     sync.RWMutex
}

func (s *channelSink) WriteObservation(ctx context.Context, seq uint64, obs *Observation) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	select {
	case <-s.closed:
		return ErrChannelSinkClosed
	default:
	}

	if obs == nil {
		return nil
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	select {
	case s.ch <- RecordedObservation{Seq: seq, Observation: *obs}:
		return nil
	default:
		return fmt.Errorf("%w: seq %d dropped (buffer %d)", ErrChannelSinkFull, seq, cap(s.ch))
	}
}

func (s *channelSink) Name() string { return s.name }

func (s *channelSink) close() {
	s.once.Do(func() {
		close(s.closed)
		// wait for in-flight writers before closing the data channel
		s.mu.Lock()
		close(s.ch)
		s.mu.Unlock()
	})
}
