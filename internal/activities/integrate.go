package activities

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/NicholasJacob1990/iudex0-sub007/internal/llm"
)

const integrateSystem = `Você é um redator jurídico. Integre as respostas parciais em um
parecer único e coerente, preservando todas as citações de fontes.`

const abstainSystem = `Você é um redator jurídico. Explique com clareza por que a consulta
não pode ser respondida com segurança a partir das evidências disponíveis,
e o que seria necessário para respondê-la.`

// IntegrateAnswers produces the final response. A single sub-answer
// passes through without a synthesis call. When every model path fails,
// a deterministic concatenation guarantees a non-empty answer whenever
// grounded sub-answers exist.
func (a *Activities) IntegrateAnswers(ctx context.Context, in IntegrateInput) (IntegrateResult, error) {
	if in.Abstain {
		return a.integrateAbstention(ctx, in)
	}
	if len(in.SubAnswers) == 0 {
		return IntegrateResult{}, fmt.Errorf("no sub-answers to integrate")
	}

	citations := mergeCitations(in.SubAnswers)

	if len(in.SubAnswers) == 1 {
		return IntegrateResult{
			Response:  in.SubAnswers[0].Answer,
			Citations: citations,
		}, nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "CONSULTA: %s\n\nRESPOSTAS PARCIAIS:\n", in.Query)
	for i, ans := range in.SubAnswers {
		fmt.Fprintf(&sb, "%d. %s (confiança %.2f)\n%s\n", i+1, ans.SubQuestion, ans.Confidence, ans.Answer)
		if len(ans.Citations) > 0 {
			fmt.Fprintf(&sb, "Citações: %s\n", strings.Join(ans.Citations, "; "))
		}
		sb.WriteString("\n")
	}

	resp, err := a.gateway.Complete(ctx, llm.Request{
		System:  integrateSystem,
		Prompt:  sb.String(),
		AgentID: "integrator",
	})
	if err != nil {
		a.logger.Warn("Synthesis failed, using rule-based integration", zap.Error(err))
		return IntegrateResult{
			Response:  ruleBasedIntegration(in.SubAnswers),
			Citations: citations,
		}, nil
	}
	if strings.TrimSpace(resp.Text) == "" {
		return IntegrateResult{
			Response:  ruleBasedIntegration(in.SubAnswers),
			Citations: citations,
		}, nil
	}

	return IntegrateResult{
		Response:  strings.TrimSpace(resp.Text),
		Citations: citations,
	}, nil
}

func (a *Activities) integrateAbstention(ctx context.Context, in IntegrateInput) (IntegrateResult, error) {
	reason := in.AbstainReason
	if reason == "" {
		reason = "low_confidence"
	}
	info := &AbstainInfo{Reason: reason, Confidence: lowestConfidence(in.SubAnswers)}

	resp, err := a.gateway.Complete(ctx, llm.Request{
		System:  abstainSystem,
		Prompt:  fmt.Sprintf("CONSULTA: %s\nMOTIVO: %s", in.Query, reason),
		AgentID: "integrator",
	})
	if err != nil || resp == nil || strings.TrimSpace(resp.Text) == "" {
		return IntegrateResult{
			Response:    "Não é possível responder a consulta com segurança a partir das evidências disponíveis.",
			AbstainInfo: info,
		}, nil
	}
	return IntegrateResult{
		Response:    strings.TrimSpace(resp.Text),
		AbstainInfo: info,
	}, nil
}

// ruleBasedIntegration concatenates sub-answers with transition phrases.
func ruleBasedIntegration(answers []SubAnswer) string {
	transitions := []string{
		"Quanto ao primeiro ponto,",
		"Além disso,",
		"Ainda sobre a questão,",
		"Por fim,",
	}
	var sb strings.Builder
	for i, ans := range answers {
		t := transitions[len(transitions)-1]
		if i < len(transitions) {
			t = transitions[i]
		}
		if i > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "%s %s", t, ans.Answer)
	}
	return sb.String()
}

// mergeCitations deduplicates case-insensitively across all sub-answers,
// preserving first-appearance order.
func mergeCitations(answers []SubAnswer) []string {
	seen := make(map[string]bool)
	var out []string
	for _, ans := range answers {
		for _, c := range ans.Citations {
			key := strings.ToLower(strings.TrimSpace(c))
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, c)
		}
	}
	return out
}

func lowestConfidence(answers []SubAnswer) float64 {
	if len(answers) == 0 {
		return 0
	}
	low := answers[0].Confidence
	for _, ans := range answers[1:] {
		if ans.Confidence < low {
			low = ans.Confidence
		}
	}
	return low
}
