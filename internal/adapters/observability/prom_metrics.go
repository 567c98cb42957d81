package observability

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nordic-dev-net/hydrophonitor-gps/internal/ports"
)

type PromObs struct {
	logger   *slog.Logger
	counters map[string]prometheus.Counter
	gauges   map[string]prometheus.Gauge
	histos   map[string]prometheus.Observer
}

// NewPromObs registers the recorder metrics on reg (the default registerer
// when nil) and logs through logger (slog.Default when nil).
func NewPromObs(reg prometheus.Registerer, logger *slog.Logger) *PromObs {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if logger == nil {
		logger = slog.Default()
	}

	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{Name: name, Help: help})
	}
	counters := map[string]prometheus.Counter{
		ports.MetricReportsReceived:      counter(ports.MetricReportsReceived, "Reports read from gpsd and merged into an observation."),
		ports.MetricReceiveErrors:        counter(ports.MetricReceiveErrors, "Failed report reads."),
		ports.MetricLateReports:          counter(ports.MetricLateReports, "Reports that arrived after their sampling window closed."),
		ports.MetricObservationsRecorded: counter(ports.MetricObservationsRecorded, "Observations appended and persisted to the log file."),
		ports.MetricPacingUnderruns:      counter(ports.MetricPacingUnderruns, "Cycles that took longer than the recording interval."),
		ports.MetricArchiveFailures:      counter(ports.MetricArchiveFailures, "Observations the archive sink failed to store."),
	}
	gauges := map[string]prometheus.Gauge{
		ports.MetricLogEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: ports.MetricLogEntries,
			Help: "Observations in the current session log.",
		}),
		ports.MetricLogSizeBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: ports.MetricLogSizeBytes,
			Help: "Size of the session log file on disk.",
		}),
	}
	cycle := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    ports.MetricCycleDuration,
		Help:    "Wall time of one recording cycle, excluding the pacing sleep.",
		Buckets: prometheus.ExponentialBuckets(0.25, 2, 8),
	})
	persist := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    ports.MetricPersistLatency,
		Help:    "Time to rewrite the session log file.",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
	})

	collectors := []prometheus.Collector{cycle, persist}
	for _, c := range counters {
		collectors = append(collectors, c)
	}
	for _, g := range gauges {
		collectors = append(collectors, g)
	}
	reg.MustRegister(collectors...)

	return &PromObs{
		logger:   logger,
		counters: counters,
		gauges:   gauges,
		histos: map[string]prometheus.Observer{
			ports.MetricCycleDuration:  cycle,
			ports.MetricPersistLatency: persist,
		},
	}
}

func (p *PromObs) LogInfo(msg string, fields ...ports.Field) {
	p.logger.Info(msg, attrs(fields)...)
}

func (p *PromObs) LogError(msg string, err error, fields ...ports.Field) {
	p.logger.Error(msg, append(attrs(fields), "error", err)...)
}

func (p *PromObs) LogCritical(msg string, err error, fields ...ports.Field) {
	p.logger.Error(msg, append(attrs(fields), "error", err, "critical", true)...)
}

func (p *PromObs) IncCounter(name string, v float64) {
	if c, ok := p.counters[name]; ok {
		c.Add(v)
	}
}

func (p *PromObs) ObserveLatency(name string, seconds float64) {
	if h, ok := p.histos[name]; ok {
		h.Observe(seconds)
	}
}

func (p *PromObs) SetGauge(name string, v float64) {
	if g, ok := p.gauges[name]; ok {
		g.Set(v)
	}
}

func attrs(fields []ports.Field) []any {
	out := make([]any, 0, len(fields)*2)
	for _, f := range fields {
		out = append(out, f.Key, f.Value)
	}
	return out
}

var _ ports.Observability = (*PromObs)(nil)
