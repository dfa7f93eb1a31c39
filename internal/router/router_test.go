package router

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/NicholasJacob1990/iudex0-sub007/internal/config"
	"github.com/NicholasJacob1990/iudex0-sub007/internal/llm"
)

type stubArbiter struct {
	verdict arbitrationVerdict
	err     error
	called  bool
}

func (s *stubArbiter) CompleteJSON(_ context.Context, _ llm.Request, out interface{}) error {
	s.called = true
	if s.err != nil {
		return s.err
	}
	*(out.(*arbitrationVerdict)) = s.verdict
	return nil
}

func newRouter(t *testing.T, arbiter Arbiter) *Router {
	t.Helper()
	return New(config.RouterConfig{
		DefaultMode:        "auto",
		MaxGraphHops:       3,
		ArbitrationEnabled: true,
	}, arbiter, zaptest.NewLogger(t))
}

func TestManualModeIsDeterministic(t *testing.T) {
	arbiter := &stubArbiter{}
	r := newRouter(t, arbiter)

	d := r.Route(context.Background(), Request{
		Query: "Tema 1234 do STF", Mode: "manual", AllowGraph: true, AllowArgument: true,
	})

	assert.False(t, d.GraphRAGEnabled)
	assert.False(t, d.ArgumentGraphEnabled)
	assert.Equal(t, []string{"manual_mode_or_empty_query"}, d.Reasons)
	assert.False(t, arbiter.called)
}

func TestEmptyQueryIsDeterministic(t *testing.T) {
	arbiter := &stubArbiter{}
	r := newRouter(t, arbiter)

	d := r.Route(context.Background(), Request{
		Query: "   ", Mode: "auto", AllowGraph: true, AllowArgument: true,
	})

	assert.False(t, d.GraphRAGEnabled)
	assert.False(t, d.ArgumentGraphEnabled)
	assert.Equal(t, []string{"manual_mode_or_empty_query"}, d.Reasons)
	assert.False(t, d.UsedModel)
	assert.False(t, arbiter.called)
}

func TestLegalCitationEnablesGraph(t *testing.T) {
	r := newRouter(t, &stubArbiter{})

	d := r.Route(context.Background(), Request{
		Query: "Tema 1234 do STF", Mode: "auto", AllowGraph: true, AllowArgument: true,
	})

	assert.True(t, d.GraphRAGEnabled)
	assert.Contains(t, d.Reasons, "legal_citation_signals")
	assert.GreaterOrEqual(t, d.Signals.LegalScore, 0.3)
}

func TestGraphDisallowedByCaller(t *testing.T) {
	r := newRouter(t, &stubArbiter{})

	d := r.Route(context.Background(), Request{
		Query: "Súmula 331 do TST sobre terceirização e responsabilidade subsidiária da administração pública, como se aplica?",
		Mode:  "auto", AllowGraph: false, AllowArgument: true,
	})

	assert.False(t, d.GraphRAGEnabled)
}

func TestArgumentativeSignals(t *testing.T) {
	r := newRouter(t, &stubArbiter{})

	d := r.Route(context.Background(), Request{
		Query: "Quais provas contradizem o argumento da defesa sobre a evidência apresentada, quando e quem a produziu?",
		Mode:  "auto", AllowGraph: true, AllowArgument: true,
	})

	assert.True(t, d.ArgumentGraphEnabled)
	assert.Contains(t, d.Reasons, "argumentative_signals")
}

func TestGraphHopsClamped(t *testing.T) {
	r := newRouter(t, &stubArbiter{})

	d := r.Route(context.Background(), Request{
		Query: "Tema 1234 do STF", Mode: "auto", AllowGraph: true, GraphHops: 10,
	})

	assert.Equal(t, 3, d.GraphHops)
}

func TestAmbiguousShortQueryTriggersArbitration(t *testing.T) {
	arbiter := &stubArbiter{verdict: arbitrationVerdict{
		Route: "retrieval_graphrag", GraphHops: 2, Confidence: 0.85,
		Reasons: []string{"consulta curta sobre precedente"},
	}}
	r := newRouter(t, arbiter)

	d := r.Route(context.Background(), Request{
		Query: "cabe recurso?", Mode: "auto", AllowGraph: true, AllowArgument: true,
	})

	assert.True(t, arbiter.called)
	assert.True(t, d.UsedModel)
	assert.True(t, d.GraphRAGEnabled)
	assert.Equal(t, 2, d.GraphHops)
	assert.InDelta(t, 0.85, d.Confidence, 1e-9)
}

func TestArbitrationFailureFallsBackToRules(t *testing.T) {
	arbiter := &stubArbiter{err: errors.New("gateway down")}
	r := newRouter(t, arbiter)

	d := r.Route(context.Background(), Request{
		Query: "cabe recurso?", Mode: "auto", AllowGraph: true, AllowArgument: true,
	})

	assert.True(t, arbiter.called)
	assert.False(t, d.UsedModel)
	assert.Contains(t, d.Reasons, "arbitration_failed")
}

func TestMalformedArbitrationRouteFallsBack(t *testing.T) {
	arbiter := &stubArbiter{verdict: arbitrationVerdict{Route: "no_retrieval"}}
	r := newRouter(t, arbiter)

	d := r.Route(context.Background(), Request{
		Query: "cabe recurso?", Mode: "auto", AllowGraph: true, AllowArgument: true,
	})

	require.True(t, arbiter.called)
	assert.False(t, d.UsedModel)
	assert.Contains(t, d.Reasons, "arbitration_failed")
}

func TestStrictRiskClampsToRetrievalOnly(t *testing.T) {
	arbiter := &stubArbiter{verdict: arbitrationVerdict{Route: "none", Confidence: 0.9}}
	r := newRouter(t, arbiter)

	d := r.Route(context.Background(), Request{
		Query:     "Análise completa dos precedentes do STF sobre a modulação de efeitos",
		Mode:      "auto",
		AllowGraph: true,
		RiskLevel: "strict",
	})

	assert.True(t, arbiter.called)
	assert.True(t, d.UsedModel)
	assert.False(t, d.GraphRAGEnabled)
	assert.Equal(t, 0, d.GraphHops)
	assert.Contains(t, d.Reasons, "clamped_to_retrieval_only")
}

func TestClearQuerySkipsArbitration(t *testing.T) {
	arbiter := &stubArbiter{}
	r := newRouter(t, arbiter)

	d := r.Route(context.Background(), Request{
		Query: "Qual o prazo de prescrição do art. 206 do CC para reparação civil segundo o STJ?",
		Mode:  "auto", AllowGraph: true, AllowArgument: true,
	})

	assert.False(t, arbiter.called)
	assert.False(t, d.Ambiguous)
	assert.True(t, d.GraphRAGEnabled)
}

func TestScoreSignalsComplexity(t *testing.T) {
	short := ScoreSignals("cabe recurso")
	long := ScoreSignals("Considerando a decisão do tribunal, a tese fixada, o regime de repercussão geral, e os efeitos da modulação, como fica a execução; e quais embargos cabem?")

	assert.Less(t, short.Complexity, long.Complexity)
	assert.Greater(t, long.Complexity, 0.6)
}
