package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BlocklistSize reports the number of agents with at least one
	// recorded violation.
	BlocklistSize = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "abuse",
			Name:      "blocklist_size",
			Help:      "Number of agents with at least one recorded violation",
		},
	)

	// Violations tracks blocklist violations by reason.
	Violations = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "abuse",
			Name:      "violations_total",
			Help:      "Total number of blocklist violations recorded",
		},
		[]string{"reason"},
	)

	// RateLimitRejections tracks connections rejected by the tumbling
	// hourly rate limiter.
	RateLimitRejections = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "abuse",
			Name:      "rate_limit_rejections_total",
			Help:      "Total number of requests rejected by the rate limiter",
		},
		[]string{"limit"}, // knocks, bytes
	)

	// PolicyDecisions tracks the external policy engine's accept/
	// reject verdicts.
	PolicyDecisions = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "abuse",
			Name:      "policy_decisions_total",
			Help:      "Total number of policy engine decisions",
		},
		[]string{"stage", "accept"},
	)
)
