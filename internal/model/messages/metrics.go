package messages

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"max.ks1230/expenses-bot/internal/entity/expense"
)

var (
	histogramResponseTime = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "expenses",
			Subsystem: "telegram",
			Name:      "histogram_response_time_seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"kind", "status"},
	)

	committedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "expenses",
			Subsystem: "conversation",
			Name:      "committed_total",
		},
		[]string{"source"},
	)

	discardedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "expenses",
			Subsystem: "conversation",
			Name:      "discarded_total",
		},
		[]string{"reason"},
	)
)

const (
	discardRejected    = "rejected"
	discardInterrupted = "interrupted"
	discardCancelled   = "cancelled"
)

func observeResponse(kind string, elapsed time.Duration, err bool) {
	histogramResponseTime.
		WithLabelValues(kind, strconv.FormatBool(err)).
		Observe(elapsed.Seconds())
}

func observeCommitted(source expense.Source) {
	committedTotal.WithLabelValues(string(source)).Inc()
}

func observeDiscarded(reason string, n int) {
	discardedTotal.WithLabelValues(reason).Add(float64(n))
}
