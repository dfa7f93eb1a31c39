package citer

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/NicholasJacob1990/iudex0-sub007/internal/config"
	"github.com/NicholasJacob1990/iudex0-sub007/internal/llm"
	"github.com/NicholasJacob1990/iudex0-sub007/internal/metrics"
)

// Claim classification follows the legal triad.
const (
	ClaimLegal         = "direito"
	ClaimFactual       = "fato"
	ClaimArgumentative = "argumento"
)

const (
	StatusVerified   = "verified"
	StatusUnverified = "unverified"
)

// Decisions returned to the caller.
const (
	DecisionProceed      = "PROCEED"
	DecisionForceHIL     = "FORCE_HIL"
	DecisionNeedEvidence = "NEED_EVIDENCE"
)

// Source is one candidate grounding document.
type Source struct {
	ID      string `json:"id"`
	Kind    string `json:"kind"` // "legislacao", "jurisprudencia", "registro_interno", "trabalho_anterior"
	Title   string `json:"title,omitempty"`
	Excerpt string `json:"excerpt"`
}

// Claim is one extracted assertion mapped back to sources.
type Claim struct {
	Text          string  `json:"text"`
	Type          string  `json:"type"`
	Status        string  `json:"status"`
	SourceIndices []int   `json:"source_indices,omitempty"`
	Confidence    float64 `json:"confidence"`
}

// Result is the gate outcome. FinalDecision is always set.
type Result struct {
	VerifiedContext string  `json:"verified_context"`
	Claims          []Claim `json:"claims"`
	Coverage        float64 `json:"coverage"`
	CriticalGaps    []string `json:"critical_gaps,omitempty"`
	ForceHIL        bool    `json:"force_hil"`
	BlockDebate     bool    `json:"block_debate"`
	FinalDecision   string  `json:"final_decision"`
	Diagnostic      string  `json:"diagnostic,omitempty"`
	Skipped         bool    `json:"skipped"`
}

// Gate verifies that drafting context is grounded in cited sources
// before any generation step runs.
type Gate struct {
	cfg     config.CiterConfig
	gateway Extractor
	logger  *zap.Logger
}

// Extractor is the slice of the model gateway the gate needs.
type Extractor interface {
	CompleteJSON(ctx context.Context, req llm.Request, out interface{}) error
}

func New(cfg config.CiterConfig, gateway Extractor, logger *zap.Logger) *Gate {
	if cfg.MaxSources <= 0 {
		cfg.MaxSources = 20
	}
	if cfg.MaxExcerptChars <= 0 {
		cfg.MaxExcerptChars = 600
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{cfg: cfg, gateway: gateway, logger: logger}
}

type extractionResult struct {
	Claims   []Claim  `json:"claims"`
	Coverage float64  `json:"coverage"`
	Gaps     []string `json:"critical_gaps"`
}

const extractionSystem = `Você é um verificador de afirmações jurídicas.
Extraia as afirmações do contexto, classifique cada uma como "direito", "fato" ou "argumento",
e marque cada uma como "verified" (com os índices das fontes que a sustentam) ou "unverified".
Responda apenas com JSON:
{"claims": [{"text": "...", "type": "direito", "status": "verified", "source_indices": [0], "confidence": 0.0}],
 "coverage": 0.0, "critical_gaps": ["..."]}`

// Verify runs the gate over one drafting context.
func (g *Gate) Verify(ctx context.Context, researchContext string, sources []Source) (*Result, error) {
	researchContext = strings.TrimSpace(researchContext)

	// Nothing to verify: skipped, fully covered.
	if researchContext == "" {
		metrics.CiterGateDecisions.WithLabelValues("skipped").Inc()
		return &Result{
			Coverage:      1.0,
			FinalDecision: DecisionProceed,
			Skipped:       true,
		}, nil
	}

	// Context with zero grounding fails closed.
	if len(sources) == 0 {
		metrics.CiterGateDecisions.WithLabelValues("blocked_no_sources").Inc()
		metrics.CiterCoverage.Observe(0)
		res := &Result{
			VerifiedContext: researchContext,
			Coverage:        0.0,
			ForceHIL:        true,
			BlockDebate:     true,
			FinalDecision:   DecisionNeedEvidence,
			CriticalGaps:    []string{"nenhuma fonte candidata disponível"},
		}
		res.Diagnostic = renderDiagnostic(res)
		return res, nil
	}

	bounded := g.boundSources(sources)
	extraction, err := g.extract(ctx, researchContext, bounded)
	if err != nil {
		return nil, err
	}

	res := g.decide(researchContext, extraction)
	metrics.CiterCoverage.Observe(res.Coverage)
	return res, nil
}

func (g *Gate) boundSources(sources []Source) []Source {
	if len(sources) > g.cfg.MaxSources {
		sources = sources[:g.cfg.MaxSources]
	}
	out := make([]Source, len(sources))
	for i, s := range sources {
		s.Excerpt = truncateRunes(s.Excerpt, g.cfg.MaxExcerptChars)
		out[i] = s
	}
	return out
}

// truncateRunes cuts at max bytes without splitting a UTF-8 sequence.
func truncateRunes(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

func (g *Gate) extract(ctx context.Context, researchContext string, sources []Source) (*extractionResult, error) {
	var sb strings.Builder
	sb.WriteString("CONTEXTO:\n")
	sb.WriteString(researchContext)
	sb.WriteString("\n\nFONTES:\n")
	for i, s := range sources {
		label := sourceLabel(s.Kind)
		fmt.Fprintf(&sb, "[%d] (%s) %s: %s\n", i, label, s.Title, s.Excerpt)
	}

	var out extractionResult
	err := g.gateway.CompleteJSON(ctx, llm.Request{
		System:  extractionSystem,
		Prompt:  sb.String(),
		AgentID: "citer-verifier",
	}, &out)
	if err != nil {
		return nil, fmt.Errorf("claim extraction: %w", err)
	}
	return &out, nil
}

func sourceLabel(kind string) string {
	switch kind {
	case "legislacao":
		return "legislação"
	case "jurisprudencia":
		return "jurisprudência"
	case "registro_interno":
		return "registro interno"
	case "trabalho_anterior":
		return "trabalho anterior"
	default:
		return "fonte"
	}
}

// decide applies the two independent thresholds and assembles the
// verified context. Unverified claims stay visible as a pending list.
func (g *Gate) decide(researchContext string, extraction *extractionResult) *Result {
	coverage := clamp01(extraction.Coverage)

	var unverified []Claim
	for _, c := range extraction.Claims {
		if c.Status != StatusVerified {
			unverified = append(unverified, c)
		}
	}

	res := &Result{
		Claims:       extraction.Claims,
		Coverage:     coverage,
		CriticalGaps: extraction.Gaps,
	}

	res.ForceHIL = coverage < g.cfg.MinCoverage || len(extraction.Gaps) > g.cfg.MaxCriticalGaps
	res.BlockDebate = coverage < g.cfg.BlockCoverage && len(unverified) >= g.cfg.MinUnverifiedToBlock

	res.VerifiedContext = appendPendingList(researchContext, unverified)

	switch {
	case res.BlockDebate && !g.cfg.AutoApproveHuman:
		res.FinalDecision = DecisionNeedEvidence
		res.Diagnostic = renderDiagnostic(res)
		metrics.CiterGateDecisions.WithLabelValues("blocked").Inc()
	case res.ForceHIL:
		res.FinalDecision = DecisionForceHIL
		metrics.CiterGateDecisions.WithLabelValues("force_hil").Inc()
	default:
		res.FinalDecision = DecisionProceed
		metrics.CiterGateDecisions.WithLabelValues("proceed").Inc()
	}
	return res
}

// appendPendingList keeps unverified claims visible instead of silently
// dropping or trusting them.
func appendPendingList(researchContext string, unverified []Claim) string {
	if len(unverified) == 0 {
		return researchContext
	}
	var sb strings.Builder
	sb.WriteString(researchContext)
	sb.WriteString("\n\n## PENDENTE DE VERIFICAÇÃO\n")
	for _, c := range unverified {
		fmt.Fprintf(&sb, "- [%s] %s\n", c.Type, c.Text)
	}
	return sb.String()
}

// renderDiagnostic produces the human-readable remediation markdown for
// a NEED_EVIDENCE decision.
func renderDiagnostic(res *Result) string {
	var sb strings.Builder
	sb.WriteString("# Evidência insuficiente\n\n")
	fmt.Fprintf(&sb, "Cobertura de verificação: **%.0f%%** das afirmações possuem fonte citada.\n\n", res.Coverage*100)

	if len(res.CriticalGaps) > 0 {
		sb.WriteString("## Lacunas críticas\n")
		for _, gap := range res.CriticalGaps {
			fmt.Fprintf(&sb, "- %s\n", gap)
		}
		sb.WriteString("\n")
	}

	var unverified []Claim
	for _, c := range res.Claims {
		if c.Status != StatusVerified {
			unverified = append(unverified, c)
		}
	}
	if len(unverified) > 0 {
		sb.WriteString("## Afirmações sem fonte\n")
		for _, c := range unverified {
			fmt.Fprintf(&sb, "- [%s] %s\n", c.Type, c.Text)
		}
		sb.WriteString("\n")
	}

	sb.WriteString("## Como prosseguir\n")
	sb.WriteString("- Amplie o escopo da busca de fontes\n")
	sb.WriteString("- Anexe documentos adicionais ao caso\n")
	sb.WriteString("- Habilite a busca em bases externas\n")
	return sb.String()
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
