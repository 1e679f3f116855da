// Package metrics holds the Prometheus collectors for the RAG service.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "syuka_rag"

var (
	TurnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Question-answering turns by terminal outcome.",
		},
		[]string{"outcome"},
	)

	FirstTokenSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_first_token_seconds",
			Help:      "Latency from turn start to the first forwarded text increment.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 4, 8, 16, 32},
		},
	)

	CollaboratorSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "collaborator_call_seconds",
			Help:      "Duration of external collaborator calls.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"call"},
	)

	CollaboratorErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "collaborator_errors_total",
			Help:      "Failed external collaborator calls, timeouts included.",
		},
		[]string{"call"},
	)

	KnowledgeBasesCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "knowledge_bases_created_total",
			Help:      "Knowledge-base create attempts by result.",
		},
		[]string{"result"},
	)
)

// ObserveCall records the duration of a collaborator call and counts it as
// failed when err is non-nil.
func ObserveCall(call string, start time.Time, err error) {
	CollaboratorSeconds.WithLabelValues(call).Observe(time.Since(start).Seconds())
	if err != nil {
		CollaboratorErrors.WithLabelValues(call).Inc()
	}
}

// Handler serves the default registry.
func Handler() http.Handler { return promhttp.Handler() }
