package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// KnocksReceived tracks KNOCK messages a responder has seen,
	// broken down by how abuse control disposed of them.
	KnocksReceived = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "handshake",
			Name:      "knocks_total",
			Help:      "Total number of KNOCK messages received",
		},
		[]string{"outcome"}, // accepted, blocked, rate_limited, malformed
	)

	// WelcomesSent tracks WELCOME replies by acceptance status.
	WelcomesSent = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "handshake",
			Name:      "welcomes_total",
			Help:      "Total number of WELCOME messages sent",
		},
		[]string{"status"}, // accepted, refused
	)

	// HandshakeDuration tracks KNOCK-to-WELCOME latency.
	HandshakeDuration = promauto.With(Registry).NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "handshake",
			Name:      "duration_seconds",
			Help:      "Time from KNOCK receipt to WELCOME sent",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		},
	)

	// KeyAgreementFailures tracks ECDH/HKDF failures during a
	// handshake.
	KeyAgreementFailures = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "handshake",
			Name:      "key_agreement_failures_total",
			Help:      "Total number of ephemeral key agreement failures",
		},
	)
)
