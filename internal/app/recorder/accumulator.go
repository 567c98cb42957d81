package recorder

import (
	"context"
	"errors"
	"time"

	"github.com/nordic-dev-net/hydrophonitor-gps/internal/clock"
	"github.com/nordic-dev-net/hydrophonitor-gps/internal/domain"
	"github.com/nordic-dev-net/hydrophonitor-gps/internal/ports"
)

// Accumulator folds the reports received during one sampling window into a
// single Observation.
type Accumulator struct {
	clock                  clock.Clock
	obs                    ports.Observability
	continueOnReceiveError bool
}

func NewAccumulator(c clock.Clock, obs ports.Observability, continueOnReceiveError bool) *Accumulator {
	return &Accumulator{clock: c, obs: obs, continueOnReceiveError: continueOnReceiveError}
}

// Observe reads from ch until window has elapsed and returns the latest
// report of each kind seen in that time. Reads are not interrupted at the
// window boundary; a report whose read completes after the window closed is
// dropped. Slots with no report stay nil.
func (a *Accumulator) Observe(ctx context.Context, ch ports.ReportChannel, window time.Duration) (domain.Observation, error) {
	var (
		snapshot domain.Observation
		t0       = a.clock.Now()
	)

	for clock.Since(a.clock, t0) < window {
		if err := ctx.Err(); err != nil {
			return domain.Observation{}, err
		}

		report, err := ch.Receive(ctx)
		if err == nil {
			if clock.Since(a.clock, t0) >= window {
				a.obs.IncCounter(ports.MetricLateReports, 1)
				break
			}
			err = snapshot.Merge(report)
		}
		if err != nil {
			a.obs.IncCounter(ports.MetricReceiveErrors, 1)
			if !a.recoverable(ctx, err) {
				return domain.Observation{}, err
			}
			a.obs.LogError("receive_failed", err,
				ports.Field{Key: "window_elapsed", Value: clock.Since(a.clock, t0)})
			continue
		}
		a.obs.IncCounter(ports.MetricReportsReceived, 1)
	}

	snapshot.Timestamp = a.clock.Now().UTC()
	return snapshot, nil
}

func (a *Accumulator) recoverable(ctx context.Context, err error) bool {
	if !a.continueOnReceiveError || ctx.Err() != nil {
		return false
	}
	if errors.Is(err, ports.ErrChannelClosed) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true
}
