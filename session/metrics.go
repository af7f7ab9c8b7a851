package session

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "postboard_sessions_active",
			Help: "Number of live sessions",
		},
	)

	collectionLoadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "postboard_collection_loads_total",
			Help: "Initial loads of the remote collection by result",
		},
		[]string{"result"},
	)

	collectionLoadDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "postboard_collection_load_duration_seconds",
			Help:    "Duration of initial loads of the remote collection",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
	)

	postMutationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "postboard_post_mutations_total",
			Help: "Local post mutations by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)
)

func observeLoad(err error, took time.Duration) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	collectionLoadsTotal.WithLabelValues(result).Inc()
	collectionLoadDuration.Observe(took.Seconds())
}

func observeMutation(op string, err error, changed bool) {
	outcome := "applied"
	switch {
	case err != nil:
		outcome = "invalid"
	case !changed:
		outcome = "noop"
	}
	postMutationsTotal.WithLabelValues(op, outcome).Inc()
}
