package citer

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/NicholasJacob1990/iudex0-sub007/internal/config"
	"github.com/NicholasJacob1990/iudex0-sub007/internal/llm"
)

type stubExtractor struct {
	result extractionResult
	err    error
	prompt string
}

func (s *stubExtractor) CompleteJSON(_ context.Context, req llm.Request, out interface{}) error {
	s.prompt = req.Prompt
	if s.err != nil {
		return s.err
	}
	*(out.(*extractionResult)) = s.result
	return nil
}

func testConfig() config.CiterConfig {
	return config.CiterConfig{
		MinCoverage:          0.7,
		BlockCoverage:        0.3,
		MaxCriticalGaps:      2,
		MinUnverifiedToBlock: 1,
		MaxSources:           10,
		MaxExcerptChars:      200,
	}
}

func TestGateSkippedWithoutContext(t *testing.T) {
	g := New(testConfig(), &stubExtractor{}, zaptest.NewLogger(t))

	res, err := g.Verify(context.Background(), "   ", nil)
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Equal(t, 1.0, res.Coverage)
	assert.Equal(t, DecisionProceed, res.FinalDecision)
	assert.False(t, res.BlockDebate)
}

func TestGateFailsClosedWithZeroSources(t *testing.T) {
	g := New(testConfig(), &stubExtractor{}, zaptest.NewLogger(t))

	res, err := g.Verify(context.Background(), "A prescrição intercorrente é de cinco anos.", nil)
	require.NoError(t, err)
	assert.Equal(t, 0.0, res.Coverage)
	assert.True(t, res.BlockDebate)
	assert.True(t, res.ForceHIL)
	assert.Equal(t, DecisionNeedEvidence, res.FinalDecision)
	assert.NotEmpty(t, res.Diagnostic)
}

func TestGateProceedsWithHighCoverage(t *testing.T) {
	extractor := &stubExtractor{result: extractionResult{
		Claims: []Claim{
			{Text: "Prazo de cinco anos", Type: ClaimLegal, Status: StatusVerified, SourceIndices: []int{0}, Confidence: 0.9},
		},
		Coverage: 0.95,
	}}
	g := New(testConfig(), extractor, zaptest.NewLogger(t))

	res, err := g.Verify(context.Background(), "A prescrição intercorrente é de cinco anos.", []Source{
		{ID: "lef-40", Kind: "legislacao", Title: "LEF art. 40", Excerpt: "O juiz suspenderá o curso da execução..."},
	})
	require.NoError(t, err)
	assert.Equal(t, DecisionProceed, res.FinalDecision)
	assert.False(t, res.ForceHIL)
	assert.False(t, res.BlockDebate)
	assert.InDelta(t, 0.95, res.Coverage, 1e-9)
}

func TestGateForceHILBelowMinCoverage(t *testing.T) {
	extractor := &stubExtractor{result: extractionResult{
		Claims: []Claim{
			{Text: "Afirmação A", Type: ClaimLegal, Status: StatusVerified, SourceIndices: []int{0}},
			{Text: "Afirmação B", Type: ClaimFactual, Status: StatusUnverified},
		},
		Coverage: 0.5,
	}}
	cfg := testConfig()
	cfg.MinUnverifiedToBlock = 5 // keep block_debate off for this case
	g := New(cfg, extractor, zaptest.NewLogger(t))

	res, err := g.Verify(context.Background(), "contexto", []Source{{ID: "s1", Excerpt: "x"}})
	require.NoError(t, err)
	assert.True(t, res.ForceHIL)
	assert.False(t, res.BlockDebate)
	assert.Equal(t, DecisionForceHIL, res.FinalDecision)
}

func TestGateBlocksLowCoverageWithUnverifiedClaims(t *testing.T) {
	extractor := &stubExtractor{result: extractionResult{
		Claims: []Claim{
			{Text: "Afirmação sem fonte", Type: ClaimArgumentative, Status: StatusUnverified},
		},
		Coverage: 0.25,
	}}
	g := New(testConfig(), extractor, zaptest.NewLogger(t))

	res, err := g.Verify(context.Background(), "contexto de pesquisa", []Source{
		{ID: "web-1", Kind: "fonte", Excerpt: "trecho de busca na web"},
	})
	require.NoError(t, err)
	assert.Equal(t, DecisionNeedEvidence, res.FinalDecision)
	assert.True(t, res.BlockDebate)
	require.NotEmpty(t, res.Diagnostic)
	assert.Contains(t, res.Diagnostic, "25%")
}

func TestGateAutoApproveHumanDowngradesBlock(t *testing.T) {
	extractor := &stubExtractor{result: extractionResult{
		Claims:   []Claim{{Text: "Afirmação", Type: ClaimLegal, Status: StatusUnverified}},
		Coverage: 0.1,
	}}
	cfg := testConfig()
	cfg.AutoApproveHuman = true
	g := New(cfg, extractor, zaptest.NewLogger(t))

	res, err := g.Verify(context.Background(), "contexto", []Source{{ID: "s1", Excerpt: "x"}})
	require.NoError(t, err)
	assert.True(t, res.BlockDebate)
	assert.Equal(t, DecisionForceHIL, res.FinalDecision)
}

func TestGateAppendsPendingVerificationList(t *testing.T) {
	extractor := &stubExtractor{result: extractionResult{
		Claims: []Claim{
			{Text: "Verificada", Type: ClaimLegal, Status: StatusVerified, SourceIndices: []int{0}},
			{Text: "Sem fonte", Type: ClaimFactual, Status: StatusUnverified},
		},
		Coverage: 0.8,
	}}
	g := New(testConfig(), extractor, zaptest.NewLogger(t))

	res, err := g.Verify(context.Background(), "contexto original", []Source{{ID: "s1", Excerpt: "x"}})
	require.NoError(t, err)
	assert.Contains(t, res.VerifiedContext, "contexto original")
	assert.Contains(t, res.VerifiedContext, "PENDENTE DE VERIFICAÇÃO")
	assert.Contains(t, res.VerifiedContext, "Sem fonte")
	assert.NotContains(t, res.VerifiedContext, "- [direito] Verificada")
}

func TestGateCoverageClamped(t *testing.T) {
	extractor := &stubExtractor{result: extractionResult{Coverage: 1.7}}
	g := New(testConfig(), extractor, zaptest.NewLogger(t))

	res, err := g.Verify(context.Background(), "contexto", []Source{{ID: "s1", Excerpt: "x"}})
	require.NoError(t, err)
	assert.Equal(t, 1.0, res.Coverage)
}

func TestGateBoundsSourceExcerpts(t *testing.T) {
	extractor := &stubExtractor{result: extractionResult{Coverage: 1.0}}
	cfg := testConfig()
	cfg.MaxSources = 2
	cfg.MaxExcerptChars = 10
	g := New(cfg, extractor, zaptest.NewLogger(t))

	long := strings.Repeat("a", 50)
	_, err := g.Verify(context.Background(), "contexto", []Source{
		{ID: "s1", Excerpt: long}, {ID: "s2", Excerpt: long}, {ID: "s3", Excerpt: long},
	})
	require.NoError(t, err)
	assert.NotContains(t, extractor.prompt, "[2]")
	assert.Contains(t, extractor.prompt, strings.Repeat("a", 10)+"...")
	assert.NotContains(t, extractor.prompt, strings.Repeat("a", 11))
}

func TestGateExcerptTruncationKeepsValidUTF8(t *testing.T) {
	extractor := &stubExtractor{result: extractionResult{Coverage: 1.0}}
	cfg := testConfig()
	// A 2-byte cut lands inside the two-byte "ç" sequence.
	cfg.MaxExcerptChars = 2
	g := New(cfg, extractor, zaptest.NewLogger(t))

	_, err := g.Verify(context.Background(), "contexto", []Source{
		{ID: "s1", Excerpt: "ação declaratória de inconstitucionalidade"},
	})
	require.NoError(t, err)
	assert.True(t, utf8.ValidString(extractor.prompt))
	assert.Contains(t, extractor.prompt, "a...")
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "curto", truncateRunes("curto", 10))
	assert.Equal(t, "sú...", truncateRunes("súmula", 3))
	assert.True(t, utf8.ValidString(truncateRunes("decisão vinculante", 7)))
}

func TestGateExtractionErrorPropagates(t *testing.T) {
	extractor := &stubExtractor{err: errors.New("gateway down")}
	g := New(testConfig(), extractor, zaptest.NewLogger(t))

	_, err := g.Verify(context.Background(), "contexto", []Source{{ID: "s1", Excerpt: "x"}})
	require.Error(t, err)
}
