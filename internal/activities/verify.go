package activities

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/NicholasJacob1990/iudex0-sub007/internal/llm"
	"github.com/NicholasJacob1990/iudex0-sub007/internal/metrics"
)

const verifySystem = `Você é um revisor de consistência jurídica.
Avalie se as respostas são sustentadas pelas evidências e coerentes entre si.
Responda apenas com JSON:
{"is_consistent": true, "confidence": 0.0, "issues": ["..."], "requires_new_search": false}`

type verifyVerdict struct {
	IsConsistent      bool     `json:"is_consistent"`
	Confidence        float64  `json:"confidence"`
	Issues            []string `json:"issues"`
	RequiresNewSearch bool     `json:"requires_new_search"`
}

// VerifyAnswers checks the current iteration's sub-answers against their
// evidence. Disabled verification and empty answer sets auto-approve.
// A malformed or failed judgment follows the configured policy: fail-open
// approves with medium confidence, fail-closed rejects. Both are returned
// as results, never as errors, so the policy survives the workflow's
// activity-failure fallback.
func (a *Activities) VerifyAnswers(ctx context.Context, in VerifyInput) (VerifyResult, error) {
	if !in.Enabled || len(in.SubAnswers) == 0 {
		metrics.VerificationResults.WithLabelValues("auto_approved").Inc()
		return VerifyResult{Status: VerificationApproved, Confidence: 1.0}, nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "CONSULTA: %s\n\nRESPOSTAS:\n", in.Query)
	for i, ans := range in.SubAnswers {
		fmt.Fprintf(&sb, "%d. %s\n%s\n\n", i+1, ans.SubQuestion, ans.Answer)
	}
	if len(in.Evidence) > 0 {
		sb.WriteString("EVIDÊNCIAS:\n")
		for i, ev := range in.Evidence {
			fmt.Fprintf(&sb, "[%d] %s\n", i+1, ev.Excerpt)
		}
	}

	failOpen := VerifyResult{Status: VerificationApproved, Confidence: 0.5}

	var verdict verifyVerdict
	err := a.gateway.CompleteJSON(ctx, llm.Request{
		System:  verifySystem,
		Prompt:  sb.String(),
		AgentID: "verifier",
	}, &verdict)
	if err != nil {
		if !a.cfg.Reasoning.VerifierFailOpen {
			a.logger.Warn("Verification call failed, rejecting per fail-closed policy", zap.Error(err))
			metrics.VerificationResults.WithLabelValues("fail_closed").Inc()
			return VerifyResult{
				Status: VerificationRejected,
				Issues: []string{"julgamento de verificação indisponível"},
			}, nil
		}
		a.logger.Warn("Verification call failed, approving with medium confidence", zap.Error(err))
		metrics.VerificationResults.WithLabelValues("fail_open").Inc()
		return failOpen, nil
	}

	if verdict.IsConsistent {
		metrics.VerificationResults.WithLabelValues("approved").Inc()
		return VerifyResult{
			Status:     VerificationApproved,
			Confidence: clamp01(verdict.Confidence),
			Issues:     verdict.Issues,
		}, nil
	}

	metrics.VerificationResults.WithLabelValues("rejected").Inc()
	return VerifyResult{
		Status:            VerificationRejected,
		Confidence:        clamp01(verdict.Confidence),
		Issues:            verdict.Issues,
		RequiresNewSearch: verdict.RequiresNewSearch,
	}, nil
}
