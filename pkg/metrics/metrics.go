package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	TargetDirectory = "directory"
	TargetKnowledge = "knowledge"
	TargetLLM       = "llm"
	TargetCrawl     = "crawl"

	OutcomeOK      = "ok"
	OutcomeError   = "error"
	OutcomeTimeout = "timeout"
)

var (
	ExternalRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "company_agent_external_request_duration_seconds",
			Help:    "Duration of calls to external APIs",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"target", "outcome"},
	)

	FallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "company_agent_fallbacks_total",
			Help: "Total number of times demo data replaced a live source",
		},
		[]string{"source"},
	)

	CompletionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "company_agent_completions_total",
			Help: "Total number of language model completions by outcome",
		},
		[]string{"model", "status"},
	)

	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "company_agent_active_sessions",
			Help: "Number of open chat sessions",
		},
	)
)

// ObserveRequest records one external call started at start.
func ObserveRequest(target, outcome string, start time.Time) {
	ExternalRequestDuration.WithLabelValues(target, outcome).Observe(time.Since(start).Seconds())
}
