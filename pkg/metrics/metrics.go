package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Client-side pipeline metrics
	ProbeAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bulkmail_probe_attempts_total",
		Help: "Total number of readiness probe attempts grouped by result",
	}, []string{"result"})
	DispatchOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bulkmail_dispatch_outcomes_total",
		Help: "Total number of batch dispatch calls grouped by outcome kind",
	}, []string{"kind"})
	RunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bulkmail_runs_total",
		Help: "Total number of pipeline runs grouped by final status",
	}, []string{"status"})
	RunsRejectedBusy = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bulkmail_runs_rejected_busy_total",
		Help: "Total number of runs rejected because another run was in flight",
	})
	RunDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "bulkmail_run_duration_seconds",
		Help:    "Wall-clock duration of pipeline runs",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
	})

	// Backend metrics
	BatchesReceived = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bulkmail_batches_received_total",
		Help: "Total number of batch send requests received by the backend grouped by result",
	}, []string{"result"})
	BatchRecipients = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "bulkmail_batch_recipients",
		Help:    "Number of contacts per received batch",
		Buckets: prometheus.ExponentialBuckets(1, 4, 8),
	})
	MailSendSuccess = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bulkmail_mail_send_success_total",
		Help: "Total number of successful per-recipient mail sends",
	}, []string{"host"})
	MailSendFailure = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bulkmail_mail_send_failure_total",
		Help: "Total number of failed per-recipient mail sends",
	}, []string{"host"})
	SMTPSessionFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bulkmail_smtp_session_failures_total",
		Help: "Total number of SMTP sessions that could not be established",
	}, []string{"host", "reason"})
	RateLimited = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bulkmail_rate_limited_total",
		Help: "Total number of requests rejected by the rate limiter",
	}, []string{"path"})

	// Audit metrics
	AuditEventsWritten = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bulkmail_audit_events_written_total",
		Help: "Total number of audit events written grouped by sink",
	}, []string{"sink"})
	AuditEventsFailed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bulkmail_audit_events_failed_total",
		Help: "Total number of audit events that could not be written grouped by sink",
	}, []string{"sink"})
)

func init() {
	prometheus.MustRegister(ProbeAttempts)
	prometheus.MustRegister(DispatchOutcomes)
	prometheus.MustRegister(RunsTotal)
	prometheus.MustRegister(RunsRejectedBusy)
	prometheus.MustRegister(RunDuration)
	prometheus.MustRegister(BatchesReceived)
	prometheus.MustRegister(BatchRecipients)
	prometheus.MustRegister(MailSendSuccess)
	prometheus.MustRegister(MailSendFailure)
	prometheus.MustRegister(SMTPSessionFailures)
	prometheus.MustRegister(RateLimited)
	prometheus.MustRegister(AuditEventsWritten)
	prometheus.MustRegister(AuditEventsFailed)
}

// MetricsHandler returns an http.Handler exposing Prometheus metrics.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
