package activities

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/NicholasJacob1990/iudex0-sub007/internal/llm"
)

const reasonSystem = `Você é um pesquisador jurídico. Responda a sub-pergunta usando
exclusivamente as evidências fornecidas, citando a fonte de cada afirmação.
Se as evidências não bastarem, diga isso explicitamente.`

// Patterns for citations as they appear in generated legal text.
var citationPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bart\.?\s*\d+[º°]?(\s*,?\s*(§\s*\d+[º°]?|inciso\s+[IVXLC]+|al[íi]nea\s+[a-z]))*(\s+d[aoe]\s+[A-ZÀ-Ü][\wÀ-ü./-]{1,20})?`),
	regexp.MustCompile(`(?i)\blei\s*(n[ºo°.]?\s*)?[\d./-]+(\s*/\s*\d{2,4})?`),
	regexp.MustCompile(`(?i)\bs[úu]mula(\s+vinculante)?\s*(n[ºo°.]?\s*)?\d+(\s+d[oa]\s+(STF|STJ|TST|TSE))?`),
	regexp.MustCompile(`(?i)\btema\s*(n[ºo°.]?\s*)?\d+(\s+d[oa]\s+(STF|STJ))?`),
	regexp.MustCompile(`(?i)\b(REsp|RE|AREsp|HC|MS|ADI|ADC|ADPF)\s*(n[ºo°.]?\s*)?[\d./-]+`),
	regexp.MustCompile(`(?i)\b(STF|STJ|TST|TSE|TRF\d?)\s*,?\s+(j\.|julgad[oa])`),
}

// ReasonSubQuestion answers one sub-question grounded in its refined
// evidence. Provider failure surfaces as an error so the workflow retry
// policy drives the fallback chain.
func (a *Activities) ReasonSubQuestion(ctx context.Context, in ReasonInput) (SubAnswer, error) {
	prompt := buildReasonPrompt(in)

	resp, err := a.gateway.Complete(ctx, llm.Request{
		System:  reasonSystem,
		Prompt:  prompt,
		AgentID: "reasoner",
	})
	if err != nil {
		return SubAnswer{}, err
	}

	answer := strings.TrimSpace(resp.Text)
	citations := ExtractCitations(answer)
	confidence := answerConfidence(answer, len(in.Evidence), in.QualityScore, in.HasConflicts)

	a.logger.Debug("Reasoned sub-question",
		zap.String("sub_question", in.SubQuestion),
		zap.Int("citations", len(citations)),
		zap.Float64("confidence", confidence),
	)
	return SubAnswer{
		SubQuestion: in.SubQuestion,
		Answer:      answer,
		Citations:   citations,
		Confidence:  confidence,
	}, nil
}

func buildReasonPrompt(in ReasonInput) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "SUB-PERGUNTA: %s\n\n", in.SubQuestion)
	if in.PriorSummary != "" {
		fmt.Fprintf(&sb, "CONSULTA ANTERIOR RELACIONADA:\n%s\n\n", in.PriorSummary)
	}
	sb.WriteString("EVIDÊNCIAS:\n")
	for i, ev := range in.Evidence {
		fmt.Fprintf(&sb, "[%d] (%s) %s: %s\n", i+1, ev.Backend, ev.Title, ev.Excerpt)
	}
	if in.HasConflicts {
		sb.WriteString("\nATENÇÃO: as evidências contêm entendimentos divergentes; aponte a divergência.\n")
	}
	return sb.String()
}

// ExtractCitations pulls legal citations out of generated text,
// deduplicated case-insensitively in order of first appearance.
func ExtractCitations(text string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, p := range citationPatterns {
		for _, m := range p.FindAllString(text, -1) {
			m = strings.TrimSpace(m)
			key := strings.ToLower(m)
			if m == "" || seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, m)
		}
	}
	return out
}

// answerConfidence scores an answer from its length, the evidence volume
// backing it, the refiner's quality score, and a penalty when the
// evidence set carried conflicts.
func answerConfidence(answer string, evidenceCount int, quality float64, hasConflicts bool) float64 {
	if answer == "" {
		return 0
	}
	lengthTerm := float64(len(answer)) / 800.0
	if lengthTerm > 1 {
		lengthTerm = 1
	}
	volumeTerm := float64(evidenceCount) / 5.0
	if volumeTerm > 1 {
		volumeTerm = 1
	}

	conf := 0.25 + 0.2*lengthTerm + 0.3*volumeTerm + 0.25*quality
	if hasConflicts {
		conf -= 0.15
	}
	return clamp01(conf)
}
