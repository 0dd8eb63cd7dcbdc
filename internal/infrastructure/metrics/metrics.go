package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the account gate service
type Metrics struct {
	// Login flow metrics
	LoginAttempts   prometheus.Counter
	LoginRejections *prometheus.CounterVec
	LoginSuccesses  prometheus.Counter

	// Finalization metrics
	Finalizations     *prometheus.CounterVec
	FinalizationRaces prometheus.Counter

	// Reconciliation metrics
	SweepsTotal   prometheus.Counter
	SweepJobs     *prometheus.CounterVec
	SweepDuration prometheus.Histogram

	// Audit metrics
	AuditUploads      prometheus.Counter
	AuditUploadErrors prometheus.Counter
}

// New creates and registers all metrics
func New() *Metrics {
	return &Metrics{
		LoginAttempts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "accountgate_login_attempts_total",
			Help: "Total number of login handshakes started",
		}),
		LoginRejections: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "accountgate_login_rejections_total",
			Help: "Login handshakes rejected before connecting, by reason",
		}, []string{"reason"}),
		LoginSuccesses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "accountgate_login_successes_total",
			Help: "Login handshakes that produced a pending record",
		}),
		Finalizations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "accountgate_finalizations_total",
			Help: "Committed terminal verdicts, by status",
		}, []string{"status"}),
		FinalizationRaces: promauto.NewCounter(prometheus.CounterOpts{
			Name: "accountgate_finalization_races_total",
			Help: "Finalization attempts that lost the commit race and no-oped",
		}),
		SweepsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "accountgate_sweeps_total",
			Help: "Total reconciliation sweeps executed",
		}),
		SweepJobs: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "accountgate_sweep_jobs_total",
			Help: "Reconciliation jobs dispatched, by kind",
		}, []string{"kind"}),
		SweepDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "accountgate_sweep_duration_seconds",
			Help:    "Duration of reconciliation sweeps",
			Buckets: prometheus.DefBuckets,
		}),
		AuditUploads: promauto.NewCounter(prometheus.CounterOpts{
			Name: "accountgate_audit_uploads_total",
			Help: "Artifacts successfully forwarded to the audit archive",
		}),
		AuditUploadErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "accountgate_audit_upload_errors_total",
			Help: "Audit forwarding attempts that gave up after retries",
		}),
	}
}
