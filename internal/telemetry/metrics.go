package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SessionRequests counts session store calls by operation and result code.
	SessionRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "quizlink",
		Name:      "session_requests_total",
		Help:      "Session store requests by operation and result code.",
	}, []string{"operation", "code"})

	// SessionRequestDuration observes session store round-trip time.
	SessionRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "quizlink",
		Name:      "session_request_duration_seconds",
		Help:      "Session store request duration.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation"})

	// PollTicks counts polling iterations by loop and outcome.
	PollTicks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "quizlink",
		Name:      "poll_ticks_total",
		Help:      "Polling loop iterations by loop name and outcome.",
	}, []string{"loop", "outcome"})
)
