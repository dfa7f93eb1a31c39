package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Reasoning pass metrics
	PassesStarted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "iudex_reasoning_passes_started_total",
			Help: "Total number of cognitive reasoning passes started",
		},
		[]string{"rag_mode"},
	)

	PassesCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "iudex_reasoning_passes_completed_total",
			Help: "Total number of cognitive reasoning passes completed",
		},
		[]string{"status"},
	)

	PassDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "iudex_reasoning_pass_duration_seconds",
			Help:    "Cognitive reasoning pass duration in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
	)

	RethinkIterations = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "iudex_rethink_iterations",
			Help:    "Number of rethink iterations per reasoning pass",
			Buckets: []float64{0, 1, 2, 3, 4, 5},
		},
	)

	Abstentions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "iudex_abstentions_total",
			Help: "Total number of passes that ended in abstention",
		},
		[]string{"reason"},
	)

	// Router metrics
	RouterDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "iudex_router_decisions_total",
			Help: "Total router decisions by resulting mode",
		},
		[]string{"decision"},
	)

	RouterArbitrationFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "iudex_router_arbitration_failures_total",
			Help: "Model arbitrations that fell back to the rule-based decision",
		},
	)

	// Model gateway metrics
	ProviderCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "iudex_provider_calls_total",
			Help: "Model provider calls by provider and outcome",
		},
		[]string{"provider", "outcome"},
	)

	ProviderLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "iudex_provider_latency_seconds",
			Help:    "Model provider call latency in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"provider"},
	)

	ProviderFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "iudex_provider_fallbacks_total",
			Help: "Times the gateway fell through to the next provider",
		},
		[]string{"from", "to"},
	)

	// Retrieval metrics
	RetrievalRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "iudex_retrieval_requests_total",
			Help: "Evidence retrieval requests by backend and outcome",
		},
		[]string{"backend", "outcome"},
	)

	EvidenceItems = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "iudex_evidence_items_retrieved",
			Help:    "Evidence items retrieved per sub-question by backend",
			Buckets: []float64{0, 1, 3, 5, 10, 20, 50},
		},
		[]string{"backend"},
	)

	EmbeddingRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "iudex_embedding_requests_total",
			Help: "Embedding generation requests by model and outcome",
		},
		[]string{"model", "outcome"},
	)

	EmbeddingLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "iudex_embedding_latency_seconds",
			Help:    "Embedding generation latency in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"model"},
	)

	// Consultation memory metrics
	MemoryLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "iudex_memory_lookups_total",
			Help: "Consultation memory lookups by result",
		},
		[]string{"result"},
	)

	MemoryWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "iudex_memory_writes_total",
			Help: "Consultation memory writes by backend and outcome",
		},
		[]string{"backend", "outcome"},
	)

	// Citer/verifier gate metrics
	CiterGateDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "iudex_citer_gate_decisions_total",
			Help: "Citer/verifier gate outcomes",
		},
		[]string{"decision"},
	)

	CiterCoverage = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "iudex_citer_coverage",
			Help:    "Claim coverage computed by the citer/verifier gate",
			Buckets: []float64{0, 0.1, 0.25, 0.5, 0.7, 0.85, 0.95, 1},
		},
	)

	// Verification metrics
	VerificationResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "iudex_verification_results_total",
			Help: "Verifier judgments by status",
		},
		[]string{"status"},
	)
)
