package workflows

import (
	"context"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/testsuite"

	"github.com/NicholasJacob1990/iudex0-sub007/internal/activities"
	"github.com/NicholasJacob1990/iudex0-sub007/internal/retrieval"
	"github.com/NicholasJacob1990/iudex0-sub007/internal/router"
)

// passHarness holds overridable activity stubs plus call accounting so
// tests can assert which states the workflow visited.
type passHarness struct {
	mu            sync.Mutex
	calls         map[string]int
	lastIntegrate activities.IntegrateInput

	route     func(activities.RouteQueryInput) (activities.RouteQueryResult, error)
	plan      func(activities.PlanInput) (activities.PlanResult, error)
	retrieve  func(activities.RetrieveInput) (activities.RetrieveResult, error)
	verify    func(activities.VerifyInput) (activities.VerifyResult, error)
	integrate func(activities.IntegrateInput) (activities.IntegrateResult, error)
	store     func(activities.MemoryStoreInput) (activities.MemoryStoreResult, error)
}

func newPassHarness() *passHarness {
	h := &passHarness{calls: make(map[string]int)}
	h.route = func(in activities.RouteQueryInput) (activities.RouteQueryResult, error) {
		return activities.RouteQueryResult{Decision: router.Decision{
			RagMode:    "retrieval_only",
			Reasons:    []string{"no_strong_signals"},
			Confidence: 0.9,
		}}, nil
	}
	h.plan = func(in activities.PlanInput) (activities.PlanResult, error) {
		return activities.PlanResult{SubQuestions: []string{in.Query}}, nil
	}
	h.retrieve = func(in activities.RetrieveInput) (activities.RetrieveResult, error) {
		return activities.RetrieveResult{SubQuestion: in.SubQuestion, Evidence: []retrieval.Evidence{
			{ID: "ev-1", Title: "Lei 8.112/90", Excerpt: "Art. 40", Score: 0.9, Backend: "vector"},
		}}, nil
	}
	h.verify = func(in activities.VerifyInput) (activities.VerifyResult, error) {
		return activities.VerifyResult{Status: activities.VerificationApproved, Confidence: 0.9}, nil
	}
	h.integrate = func(in activities.IntegrateInput) (activities.IntegrateResult, error) {
		if len(in.SubAnswers) == 1 && !in.Abstain {
			return activities.IntegrateResult{
				Response:  in.SubAnswers[0].Answer,
				Citations: in.SubAnswers[0].Citations,
			}, nil
		}
		parts := make([]string, 0, len(in.SubAnswers))
		for _, a := range in.SubAnswers {
			parts = append(parts, a.Answer)
		}
		return activities.IntegrateResult{Response: strings.Join(parts, " ")}, nil
	}
	h.store = func(in activities.MemoryStoreInput) (activities.MemoryStoreResult, error) {
		return activities.MemoryStoreResult{EntryID: "entry-1"}, nil
	}
	return h
}

func (h *passHarness) count(name string) {
	h.mu.Lock()
	h.calls[name]++
	h.mu.Unlock()
}

func (h *passHarness) callCount(name string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.calls[name]
}

func (h *passHarness) register(env *testsuite.TestWorkflowEnvironment) {
	env.RegisterActivityWithOptions(
		func(ctx context.Context, in activities.RouteQueryInput) (activities.RouteQueryResult, error) {
			h.count("RouteQuery")
			return h.route(in)
		}, activity.RegisterOptions{Name: "RouteQuery"})
	env.RegisterActivityWithOptions(
		func(ctx context.Context, in activities.PlanInput) (activities.PlanResult, error) {
			h.count("PlanQuery")
			return h.plan(in)
		}, activity.RegisterOptions{Name: "PlanQuery"})
	env.RegisterActivityWithOptions(
		func(ctx context.Context, in activities.ThemeInput) (activities.ThemeResult, error) {
			h.count("ActivateThemes")
			return activities.ThemeResult{Themes: []string{"servidor público"}}, nil
		}, activity.RegisterOptions{Name: "ActivateThemes"})
	env.RegisterActivityWithOptions(
		func(ctx context.Context, in activities.RetrieveInput) (activities.RetrieveResult, error) {
			h.count("RetrieveEvidence")
			return h.retrieve(in)
		}, activity.RegisterOptions{Name: "RetrieveEvidence"})
	env.RegisterActivityWithOptions(
		func(ctx context.Context, in activities.RefineInput) (activities.RefineResult, error) {
			h.count("RefineEvidence")
			return activities.RefineResult{
				SubQuestion:  in.SubQuestion,
				Evidence:     in.Evidence,
				QualityScore: 0.8,
			}, nil
		}, activity.RegisterOptions{Name: "RefineEvidence"})
	env.RegisterActivityWithOptions(
		func(ctx context.Context, in activities.MemoryCheckInput) (activities.MemoryCheckResult, error) {
			h.count("CheckConsultationMemory")
			return activities.MemoryCheckResult{}, nil
		}, activity.RegisterOptions{Name: "CheckConsultationMemory"})
	env.RegisterActivityWithOptions(
		func(ctx context.Context, in activities.ReasonInput) (activities.SubAnswer, error) {
			h.count("ReasonSubQuestion")
			return activities.SubAnswer{
				SubQuestion: in.SubQuestion,
				Answer:      "Resposta fundamentada para: " + in.SubQuestion,
				Citations:   []string{"Art. 40 da Lei 8.112/90"},
				Confidence:  0.8,
			}, nil
		}, activity.RegisterOptions{Name: "ReasonSubQuestion"})
	env.RegisterActivityWithOptions(
		func(ctx context.Context, in activities.VerifyInput) (activities.VerifyResult, error) {
			h.count("VerifyAnswers")
			return h.verify(in)
		}, activity.RegisterOptions{Name: "VerifyAnswers"})
	env.RegisterActivityWithOptions(
		func(ctx context.Context, in activities.RewriteInput) (activities.RewriteResult, error) {
			h.count("RewriteQuery")
			return activities.RewriteResult{RewrittenQuery: in.Query + " (reformulada)"}, nil
		}, activity.RegisterOptions{Name: "RewriteQuery"})
	env.RegisterActivityWithOptions(
		func(ctx context.Context, in activities.IntegrateInput) (activities.IntegrateResult, error) {
			h.count("IntegrateAnswers")
			h.mu.Lock()
			h.lastIntegrate = in
			h.mu.Unlock()
			return h.integrate(in)
		}, activity.RegisterOptions{Name: "IntegrateAnswers"})
	env.RegisterActivityWithOptions(
		func(ctx context.Context, in activities.MemoryStoreInput) (activities.MemoryStoreResult, error) {
			h.count("StoreConsultationMemory")
			return h.store(in)
		}, activity.RegisterOptions{Name: "StoreConsultationMemory"})
	env.RegisterActivityWithOptions(
		func(ctx context.Context, in activities.PassMetricsInput) error {
			h.count("RecordPassMetrics")
			return nil
		}, activity.RegisterOptions{Name: "RecordPassMetrics"})
}

func runPass(t *testing.T, h *passHarness, in PassInput) PassResult {
	t.Helper()
	suite := &testsuite.WorkflowTestSuite{}
	env := suite.NewTestWorkflowEnvironment()
	h.register(env)
	env.RegisterWorkflow(CognitiveWorkflow)
	env.ExecuteWorkflow(CognitiveWorkflow, in)
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())
	var out PassResult
	require.NoError(t, env.GetWorkflowResult(&out))
	return out
}

func TestCognitiveWorkflowHappyPath(t *testing.T) {
	h := newPassHarness()
	h.plan = func(in activities.PlanInput) (activities.PlanResult, error) {
		return activities.PlanResult{SubQuestions: []string{
			"Qual é o prazo prescricional?",
			"Há súmula aplicável?",
		}}, nil
	}

	out := runPass(t, h, PassInput{
		Query:              "Prescrição de pretensão contra a Fazenda Pública",
		TenantID:           "tenant-a",
		EnableVerification: true,
		EnableMemory:       true,
	})

	require.Equal(t, StateDone, out.FinalState)
	require.Equal(t, activities.VerificationApproved, out.VerificationStatus)
	require.Contains(t, out.Response, "Resposta fundamentada")
	require.Equal(t, 2, out.Metrics.SubQuestions)
	require.Equal(t, 0, out.Metrics.RethinkCount)
	require.Equal(t, "entry-1", out.MemoryEntryID)
	require.Equal(t, 2, h.callCount("RetrieveEvidence"))
	require.Equal(t, 2, h.callCount("ReasonSubQuestion"))
	require.Equal(t, 1, h.callCount("RecordPassMetrics"))
}

func TestCognitiveWorkflowSingleAnswerPassthrough(t *testing.T) {
	h := newPassHarness()

	out := runPass(t, h, PassInput{
		Query:              "Cabe HC contra decisão do STJ?",
		TenantID:           "tenant-a",
		EnableVerification: true,
	})

	require.Equal(t, "Resposta fundamentada para: Cabe HC contra decisão do STJ?", out.Response)
	require.Nil(t, out.AbstainInfo)
	h.mu.Lock()
	defer h.mu.Unlock()
	require.False(t, h.lastIntegrate.Abstain)
	require.Len(t, h.lastIntegrate.SubAnswers, 1)
}

func TestCognitiveWorkflowMaxRethinkBound(t *testing.T) {
	h := newPassHarness()
	h.verify = func(in activities.VerifyInput) (activities.VerifyResult, error) {
		return activities.VerifyResult{
			Status:            activities.VerificationRejected,
			Issues:            []string{"citação sem fonte"},
			RequiresNewSearch: true,
		}, nil
	}

	out := runPass(t, h, PassInput{
		Query:                   "Tema 1234 do STF",
		TenantID:                "tenant-a",
		EnableVerification:      true,
		EnableHallucinationLoop: true,
		MaxRethink:              2,
	})

	require.Equal(t, StateDone, out.FinalState)
	require.Equal(t, 2, out.Metrics.RethinkCount)
	require.Equal(t, 2, h.callCount("RewriteQuery"))
	require.Equal(t, 3, h.callCount("VerifyAnswers"))
	require.Equal(t, activities.VerificationRejected, out.VerificationStatus)
	require.NotEmpty(t, out.Response)
	require.Contains(t, out.UnresolvedIssues, "citação sem fonte")
}

func TestCognitiveWorkflowRejectionWithoutNewSearchReasonsAgain(t *testing.T) {
	h := newPassHarness()
	first := true
	h.verify = func(in activities.VerifyInput) (activities.VerifyResult, error) {
		if first {
			first = false
			return activities.VerifyResult{
				Status: activities.VerificationRejected,
				Issues: []string{"conclusão inconsistente"},
			}, nil
		}
		return activities.VerifyResult{Status: activities.VerificationApproved, Confidence: 0.8}, nil
	}

	out := runPass(t, h, PassInput{
		Query:                   "Responsabilidade civil do Estado",
		TenantID:                "tenant-a",
		EnableVerification:      true,
		EnableHallucinationLoop: true,
		MaxRethink:              3,
	})

	require.Equal(t, activities.VerificationApproved, out.VerificationStatus)
	require.Equal(t, 1, out.Metrics.RethinkCount)
	require.Equal(t, 0, h.callCount("RewriteQuery"))
	require.Equal(t, 2, h.callCount("ReasonSubQuestion"))
	require.Equal(t, 1, h.callCount("RetrieveEvidence"))
}

func TestCognitiveWorkflowFailClosedVerifierRejectionSurvives(t *testing.T) {
	h := newPassHarness()
	h.verify = func(in activities.VerifyInput) (activities.VerifyResult, error) {
		return activities.VerifyResult{
			Status: activities.VerificationRejected,
			Issues: []string{"julgamento de verificação indisponível"},
		}, nil
	}

	out := runPass(t, h, PassInput{
		Query:              "Tema 1033 do STJ",
		TenantID:           "tenant-a",
		EnableVerification: true,
		MaxRethink:         1,
	})

	require.Equal(t, StateDone, out.FinalState)
	require.Equal(t, activities.VerificationRejected, out.VerificationStatus)
	require.Contains(t, out.UnresolvedIssues, "julgamento de verificação indisponível")
	require.Equal(t, 1, out.Metrics.RethinkCount)
	require.NotEmpty(t, out.Response)
}

func TestCognitiveWorkflowAbstention(t *testing.T) {
	h := newPassHarness()
	h.verify = func(in activities.VerifyInput) (activities.VerifyResult, error) {
		return activities.VerifyResult{Status: activities.VerificationAbstain, Confidence: 0.2}, nil
	}
	h.integrate = func(in activities.IntegrateInput) (activities.IntegrateResult, error) {
		return activities.IntegrateResult{
			Response:    "Não há elementos suficientes para responder com segurança.",
			AbstainInfo: &activities.AbstainInfo{Reason: in.AbstainReason, Confidence: 0.2},
		}, nil
	}

	out := runPass(t, h, PassInput{
		Query:              "Questão sem jurisprudência consolidada",
		TenantID:           "tenant-a",
		EnableVerification: true,
		EnableAbstention:   true,
		EnableMemory:       true,
	})

	require.NotNil(t, out.AbstainInfo)
	require.Equal(t, "verification_abstained", out.AbstainInfo.Reason)
	require.NotEmpty(t, out.Response)
	require.Equal(t, 0, h.callCount("StoreConsultationMemory"))
}

func TestCognitiveWorkflowMemoryDisabled(t *testing.T) {
	h := newPassHarness()

	out := runPass(t, h, PassInput{
		Query:    "Prazo para embargos de declaração",
		TenantID: "tenant-a",
	})

	require.Equal(t, StateDone, out.FinalState)
	require.Equal(t, 0, h.callCount("CheckConsultationMemory"))
	require.Equal(t, 0, h.callCount("StoreConsultationMemory"))
	require.Empty(t, out.MemoryEntryID)
}

func TestCognitiveWorkflowNeverReturnsEmptyAnswer(t *testing.T) {
	h := newPassHarness()
	h.integrate = func(in activities.IntegrateInput) (activities.IntegrateResult, error) {
		return activities.IntegrateResult{Response: "   "}, nil
	}

	out := runPass(t, h, PassInput{
		Query:              "Modulação de efeitos em controle concentrado",
		TenantID:           "tenant-a",
		EnableVerification: true,
	})

	require.NotEmpty(t, strings.TrimSpace(out.Response))
	require.Contains(t, out.Response, "Resposta fundamentada")
}

func TestSummarizeKeepsValidUTF8(t *testing.T) {
	long := strings.Repeat("decisão vinculante proferida em ação direta ", 30)
	got := summarize(long)
	require.True(t, utf8.ValidString(got))
	require.True(t, strings.HasSuffix(got, "..."))
	require.LessOrEqual(t, len(got), 603)
	require.Equal(t, "curta", summarize("  curta  "))
}
