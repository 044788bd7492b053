package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the verification gateway.
type Metrics struct {
	SessionsStarted     prometheus.Counter
	SessionsCompleted   *prometheus.CounterVec
	SessionsCancelled   prometheus.Counter
	TransitionsRefused  *prometheus.CounterVec
	PassphraseFailures  prometheus.Counter
	LocationBypasses    prometheus.Counter
	CameraDenials       prometheus.Counter
	HandlerLatency      *prometheus.HistogramVec
	HandoffRetries      prometheus.Counter
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		SessionsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fieldgate_sessions_started_total",
			Help: "Total number of verification sessions started",
		}),
		SessionsCompleted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "fieldgate_sessions_completed_total",
			Help: "Total number of verification sessions completed, by role",
		}, []string{"role"}),
		SessionsCancelled: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fieldgate_sessions_cancelled_total",
			Help: "Total number of verification sessions cancelled before completion",
		}),
		TransitionsRefused: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "fieldgate_transitions_refused_total",
			Help: "Step transitions refused because the gating predicate did not hold, by step",
		}, []string{"step"}),
		PassphraseFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fieldgate_admin_passphrase_failures_total",
			Help: "Failed administrator passphrase attempts",
		}),
		LocationBypasses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fieldgate_location_bypasses_total",
			Help: "Location locks satisfied by the bypass fallback instead of a genuine fix",
		}),
		CameraDenials: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fieldgate_camera_denials_total",
			Help: "Biometric captures resolved without a photo due to camera permission denial",
		}),
		HandlerLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fieldgate_http_request_duration_seconds",
			Help:    "HTTP handler latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		HandoffRetries: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fieldgate_profile_handoff_retries_total",
			Help: "Retries performed while delivering a completed profile to the sink",
		}),
	}
}
