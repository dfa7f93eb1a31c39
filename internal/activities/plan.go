package activities

import (
	"context"

	"go.uber.org/zap"

	"github.com/NicholasJacob1990/iudex0-sub007/internal/llm"
	"github.com/NicholasJacob1990/iudex0-sub007/internal/router"
)

const planSystem = `Você é um planejador de pesquisa jurídica.
Decomponha a consulta em sub-perguntas independentes e monte um mapa mental tema→resumo.
Responda apenas com JSON:
{"sub_questions": ["..."], "mind_map": {"tema": "resumo"}, "complexity": 0.0}`

type planVerdict struct {
	SubQuestions []string          `json:"sub_questions"`
	MindMap      map[string]string `json:"mind_map"`
	Complexity   float64           `json:"complexity"`
}

// PlanQuery decomposes the query into sub-questions. A failed or
// malformed planning call degrades to a single sub-question equal to
// the original query; planning never aborts the pass.
func (a *Activities) PlanQuery(ctx context.Context, in PlanInput) (PlanResult, error) {
	maxSub := in.MaxSubQuestions
	if maxSub <= 0 {
		maxSub = a.cfg.Reasoning.MaxSubQuestions
	}
	if maxSub <= 0 {
		maxSub = 5
	}

	fallback := PlanResult{
		SubQuestions: []string{in.Query},
		Complexity:   router.ScoreSignals(in.Query).Complexity,
	}

	var verdict planVerdict
	err := a.gateway.CompleteJSON(ctx, llm.Request{
		System:  planSystem,
		Prompt:  in.Query,
		AgentID: "planner",
	}, &verdict)
	if err != nil {
		a.logger.Warn("Planning failed, using single sub-question",
			zap.String("tenant_id", in.TenantID),
			zap.Error(err),
		)
		return fallback, nil
	}
	if len(verdict.SubQuestions) == 0 {
		return fallback, nil
	}
	if len(verdict.SubQuestions) > maxSub {
		verdict.SubQuestions = verdict.SubQuestions[:maxSub]
	}

	return PlanResult{
		SubQuestions: verdict.SubQuestions,
		MindMap:      verdict.MindMap,
		Complexity:   clamp01(verdict.Complexity),
	}, nil
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
