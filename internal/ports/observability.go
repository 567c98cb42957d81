package ports

type Observability interface {
	LogInfo(msg string, fields ...Field)
	LogError(msg string, err error, fields ...Field)
	LogCritical(msg string, err error, fields ...Field)

	IncCounter(name string, v float64)
	ObserveLatency(name string, seconds float64)

	SetGauge(name string, v float64)
}

type Field struct {
	Key   string
	Value any
}

// Metric names understood by Observability implementations.
const (
	MetricReportsReceived      = "gpsrec_reports_received_total"
	MetricReceiveErrors        = "gpsrec_receive_errors_total"
	MetricLateReports          = "gpsrec_late_reports_total"
	MetricObservationsRecorded = "gpsrec_observations_recorded_total"
	MetricPacingUnderruns      = "gpsrec_pacing_underruns_total"
	MetricArchiveFailures      = "gpsrec_archive_failures_total"

	MetricLogEntries   = "gpsrec_log_entries"
	MetricLogSizeBytes = "gpsrec_log_size_bytes"

	MetricCycleDuration  = "gpsrec_cycle_duration_seconds"
	MetricPersistLatency = "gpsrec_persist_latency_seconds"
)
