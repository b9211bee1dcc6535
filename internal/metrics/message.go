package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MessagesProcessed tracks sealed messages processed by stage and
	// outcome.
	MessagesProcessed = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "messages",
			Name:      "processed_total",
			Help:      "Total number of sealed messages processed",
		},
		[]string{"stage", "status"}, // Stage.String() (WISH, GRANT, GIFT, THANK), success/failure
	)

	// ReplayAttacksDetected tracks counter-replay rejections.
	ReplayAttacksDetected = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "messages",
			Name:      "replay_attacks_detected_total",
			Help:      "Total number of replayed or non-increasing counters detected",
		},
	)

	// SizeViolations tracks per-stage frame size limit rejections.
	SizeViolations = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "messages",
			Name:      "size_violations_total",
			Help:      "Total number of messages rejected for exceeding their stage size limit",
		},
		[]string{"stage"},
	)

	// MessageProcessingDuration tracks message processing duration.
	MessageProcessingDuration = promauto.With(Registry).NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "messages",
			Name:      "processing_duration_seconds",
			Help:      "Message processing duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 12),
		},
	)

	// MessageSize tracks message sizes.
	MessageSize = promauto.With(Registry).NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "messages",
			Name:      "size_bytes",
			Help:      "Message size in bytes",
			Buckets:   prometheus.ExponentialBuckets(64, 4, 20), // 64B to 16TiB (64*4^19), covers GIFT's 20MiB cap
		},
	)
)
