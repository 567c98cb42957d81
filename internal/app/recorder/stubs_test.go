package recorder

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/nordic-dev-net/hydrophonitor-gps/internal/clock"
	"github.com/nordic-dev-net/hydrophonitor-gps/internal/domain"
	"github.com/nordic-dev-net/hydrophonitor-gps/internal/ports"
)

const (
	tpvA = `{"class":"TPV","mode":2,"lat":60.10,"lon":24.90}`
	tpvB = `{"class":"TPV","mode":3,"lat":60.11,"lon":24.91}`
	sky  = `{"class":"SKY","nSat":11,"uSat":8}`
	gst  = `{"class":"GST","rms":0.9}`
	pps  = `{"class":"PPS","real_sec":1714564800}`
	dev  = `{"class":"DEVICE","path":"/dev/ttyACM0"}`
)

var epoch = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// step is one scripted Receive: the clock moves by after, then body or err
// is returned.
type step struct {
	after time.Duration
	body  string
	err   error
}

type scriptChannel struct {
	t     *testing.T
	clock *clock.Fake
	steps []step

	handshakeErr error
	handshakes   int
	closed       bool
	// onExhausted runs when the script runs dry, typically to cancel the run.
	onExhausted func()
}

func (s *scriptChannel) Handshake(context.Context) error {
	s.handshakes++
	return s.handshakeErr
}

func (s *scriptChannel) Receive(ctx context.Context) (domain.Report, error) {
	if len(s.steps) == 0 {
		if s.onExhausted != nil {
			s.onExhausted()
		}
		if err := ctx.Err(); err != nil {
			return domain.Report{}, err
		}
		return domain.Report{}, ports.ErrChannelClosed
	}
	st := s.steps[0]
	s.steps = s.steps[1:]
	s.clock.Advance(st.after)
	if st.err != nil {
		return domain.Report{}, st.err
	}
	r, err := domain.NewReport([]byte(st.body))
	if err != nil {
		s.t.Fatalf("bad scripted report %q: %v", st.body, err)
	}
	return r, nil
}

func (s *scriptChannel) Close() error {
	s.closed = true
	return nil
}

type recordingObs struct {
	mu       sync.Mutex
	counters map[string]float64
	gauges   map[string]float64
	errors   []error
	critical []error
}

func newRecordingObs() *recordingObs {
	return &recordingObs{counters: map[string]float64{}, gauges: map[string]float64{}}
}

func (o *recordingObs) LogInfo(string, ...ports.Field) {}

func (o *recordingObs) LogError(_ string, err error, _ ...ports.Field) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.errors = append(o.errors, err)
}

func (o *recordingObs) LogCritical(_ string, err error, _ ...ports.Field) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.critical = append(o.critical, err)
}

func (o *recordingObs) IncCounter(name string, v float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.counters[name] += v
}

func (o *recordingObs) ObserveLatency(string, float64) {}

func (o *recordingObs) SetGauge(name string, v float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.gauges[name] = v
}

func (o *recordingObs) counter(name string) float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.counters[name]
}

var _ ports.Observability = (*recordingObs)(nil)
var _ ports.ReportChannel = (*scriptChannel)(nil)
