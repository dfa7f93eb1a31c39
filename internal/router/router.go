package router

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/NicholasJacob1990/iudex0-sub007/internal/config"
	"github.com/NicholasJacob1990/iudex0-sub007/internal/llm"
	"github.com/NicholasJacob1990/iudex0-sub007/internal/metrics"
)

const (
	RouteRetrievalOnly     = "retrieval_only"
	RouteRetrievalGraph    = "retrieval_graphrag"
	RouteRetrievalArgument = "retrieval_argumentrag"
	RouteRetrievalBoth     = "retrieval_both"
)

const weakSignal = 0.3

// Request carries one routing call.
type Request struct {
	Query         string `json:"query"`
	Mode          string `json:"mode"` // "auto" or "manual"
	GraphHops     int    `json:"graph_hops"`
	AllowGraph    bool   `json:"allow_graph"`
	AllowArgument bool   `json:"allow_argument"`
	// RiskLevel "strict" forces model arbitration and clamps the route
	// to at least retrieval_only.
	RiskLevel string `json:"risk_level,omitempty"`
	TenantID  string `json:"tenant_id,omitempty"`
}

// Decision is the routing outcome. Computed once per query, immutable.
type Decision struct {
	RagMode              string   `json:"rag_mode"`
	GraphRAGEnabled      bool     `json:"graph_rag_enabled"`
	ArgumentGraphEnabled bool     `json:"argument_graph_enabled"`
	GraphHops            int      `json:"graph_hops"`
	Reasons              []string `json:"reasons"`
	UsedModel            bool     `json:"used_model"`
	Confidence           float64  `json:"confidence"`
	Ambiguous            bool     `json:"ambiguous"`
	AmbiguityReason      string   `json:"ambiguity_reason,omitempty"`
	Signals              Signals  `json:"signals"`
}

// Arbiter is the slice of the model gateway the router needs.
type Arbiter interface {
	CompleteJSON(ctx context.Context, req llm.Request, out interface{}) error
}

// Router decides which retrieval strategies a query activates. It never
// decides access control or scope.
type Router struct {
	cfg     config.RouterConfig
	arbiter Arbiter
	logger  *zap.Logger
}

func New(cfg config.RouterConfig, arbiter Arbiter, logger *zap.Logger) *Router {
	if cfg.MaxGraphHops <= 0 {
		cfg.MaxGraphHops = 2
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{cfg: cfg, arbiter: arbiter, logger: logger}
}

// Route runs the three tiers. It always returns a usable decision.
func (r *Router) Route(ctx context.Context, req Request) Decision {
	query := strings.TrimSpace(req.Query)

	// Manual mode and empty queries short-circuit deterministically.
	if req.Mode == "manual" || query == "" {
		metrics.RouterDecisions.WithLabelValues("manual_or_empty").Inc()
		return Decision{
			RagMode:    "manual",
			GraphHops:  0,
			Reasons:    []string{"manual_mode_or_empty_query"},
			Confidence: 1.0,
		}
	}

	signals := ScoreSignals(query)
	decision := r.ruleDecision(req, signals)

	ambiguous, reason := ambiguity(query, signals)
	decision.Ambiguous = ambiguous
	decision.AmbiguityReason = reason

	forceArbitration := req.RiskLevel == "strict"
	if (!ambiguous && !forceArbitration) || !r.cfg.ArbitrationEnabled || r.arbiter == nil {
		metrics.RouterDecisions.WithLabelValues("rules").Inc()
		return decision
	}

	arbitrated, ok := r.arbitrate(ctx, req, signals, decision)
	if !ok {
		metrics.RouterArbitrationFailures.Inc()
		metrics.RouterDecisions.WithLabelValues("rules_after_arbitration_failure").Inc()
		decision.Reasons = append(decision.Reasons, "arbitration_failed")
		return decision
	}
	metrics.RouterDecisions.WithLabelValues("model").Inc()
	return arbitrated
}

// ruleDecision is the tier-1 rule-based outcome.
func (r *Router) ruleDecision(req Request, signals Signals) Decision {
	d := Decision{
		RagMode:    "auto",
		GraphHops:  r.graphHops(req.GraphHops),
		Confidence: 0.7,
		Signals:    signals,
	}

	if req.AllowGraph && signals.LegalScore >= weakSignal {
		d.GraphRAGEnabled = true
		d.Reasons = append(d.Reasons, "legal_citation_signals")
	}
	if req.AllowArgument && signals.ArgScore >= weakSignal {
		d.ArgumentGraphEnabled = true
		d.Reasons = append(d.Reasons, "argumentative_signals")
	}
	if !d.GraphRAGEnabled && !d.ArgumentGraphEnabled {
		d.Reasons = append(d.Reasons, "no_strong_signals")
		d.GraphHops = 0
	}
	return d
}

func (r *Router) graphHops(requested int) int {
	if requested <= 0 {
		return 1
	}
	if requested > r.cfg.MaxGraphHops {
		return r.cfg.MaxGraphHops
	}
	return requested
}

// ambiguity is the tier-2 check.
func ambiguity(query string, s Signals) (bool, string) {
	tokens := len(strings.Fields(query))
	maxSignal := s.LegalScore
	if s.ArgScore > maxSignal {
		maxSignal = s.ArgScore
	}

	switch {
	case tokens < 4 && maxSignal < weakSignal:
		return true, "short_query_weak_signals"
	case s.Complexity > 0.6 && s.LegalScore == 0 && s.ArgScore == 0:
		return true, "complex_query_no_signals"
	case s.Complexity > 0.6 && exactlyOneWeak(s):
		return true, "single_weak_signal_high_complexity"
	}
	return false, ""
}

func exactlyOneWeak(s Signals) bool {
	legalWeak := s.LegalScore > 0 && s.LegalScore < weakSignal
	argWeak := s.ArgScore > 0 && s.ArgScore < weakSignal
	return (legalWeak && s.ArgScore == 0) || (argWeak && s.LegalScore == 0)
}

type arbitrationVerdict struct {
	Route      string   `json:"route"`
	GraphHops  int      `json:"graph_hops"`
	Confidence float64  `json:"confidence"`
	Reasons    []string `json:"reasons"`
}

const arbitrationSystem = `Você é um roteador de estratégias de recuperação para consultas jurídicas.
Responda apenas com um objeto JSON:
{"route": "retrieval_only|retrieval_graphrag|retrieval_argumentrag|retrieval_both", "graph_hops": 1, "confidence": 0.0, "reasons": ["..."]}`

// arbitrate is the tier-3 model call. Malformed output falls back to the
// tier-1 decision.
func (r *Router) arbitrate(ctx context.Context, req Request, signals Signals, fallback Decision) (Decision, bool) {
	if r.cfg.ArbitrationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.ArbitrationTimeout)
		defer cancel()
	}

	// Complex queries with no signals get a larger thinking budget.
	maxTokens := 256
	if signals.Complexity > 0.6 && signals.LegalScore == 0 && signals.ArgScore == 0 {
		maxTokens = 512
	}

	var verdict arbitrationVerdict
	err := r.arbiter.CompleteJSON(ctx, llm.Request{
		System:    arbitrationSystem,
		Prompt:    req.Query,
		MaxTokens: maxTokens,
		AgentID:   "query-router",
	}, &verdict)
	if err != nil {
		r.logger.Warn("Router arbitration failed", zap.Error(err))
		return Decision{}, false
	}

	route := strings.TrimSpace(strings.ToLower(verdict.Route))
	if req.RiskLevel == "strict" && route != RouteRetrievalOnly && route != RouteRetrievalGraph &&
		route != RouteRetrievalArgument && route != RouteRetrievalBoth {
		// Strict risk never allows skipping retrieval entirely.
		route = RouteRetrievalOnly
		verdict.Reasons = append(verdict.Reasons, "clamped_to_retrieval_only")
	}

	d := Decision{
		RagMode:         "auto",
		UsedModel:       true,
		Confidence:      clamp01(verdict.Confidence),
		Reasons:         verdict.Reasons,
		Signals:         signals,
		Ambiguous:       fallback.Ambiguous,
		AmbiguityReason: fallback.AmbiguityReason,
		GraphHops:       r.graphHops(verdict.GraphHops),
	}
	switch route {
	case RouteRetrievalOnly:
		d.GraphHops = 0
	case RouteRetrievalGraph:
		d.GraphRAGEnabled = req.AllowGraph
	case RouteRetrievalArgument:
		d.ArgumentGraphEnabled = req.AllowArgument
		d.GraphHops = 0
	case RouteRetrievalBoth:
		d.GraphRAGEnabled = req.AllowGraph
		d.ArgumentGraphEnabled = req.AllowArgument
	default:
		return Decision{}, false
	}
	if len(d.Reasons) == 0 {
		d.Reasons = []string{"model_arbitration"}
	}
	return d, true
}
