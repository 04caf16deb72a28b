package achievements

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Evaluations counts engine runs by operation and result.
var Evaluations = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "deckhub",
	Subsystem: "achievements",
	Name:      "evaluations_total",
	Help:      "Achievement evaluations by operation and result.",
}, []string{"op", "result"})

// Unlocks counts badge awards written, by rarity.
var Unlocks = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "deckhub",
	Subsystem: "achievements",
	Name:      "unlocks_total",
	Help:      "Achievements unlocked, by rarity.",
}, []string{"rarity"})

// EvaluationLatency tracks how long one evaluation takes end to end.
var EvaluationLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "deckhub",
	Subsystem: "achievements",
	Name:      "evaluation_seconds",
	Help:      "Achievement evaluation duration in seconds.",
	Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
}, []string{"op"})

func observe(op string, start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	Evaluations.WithLabelValues(op, result).Inc()
	EvaluationLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
