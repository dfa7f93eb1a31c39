package activities

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/NicholasJacob1990/iudex0-sub007/internal/llm"
	"github.com/NicholasJacob1990/iudex0-sub007/internal/memory"
)

const themeSystem = `Você é um classificador de temas jurídicos brasileiros.
Liste os ramos e institutos ativados pela consulta, do mais relevante ao menos relevante.
Responda apenas com JSON: {"themes": ["..."]}`

type themeVerdict struct {
	Themes []string `json:"themes"`
}

// ActivateThemes maps the query onto legal themes used to steer
// retrieval. On model failure it degrades to the query's own keywords.
func (a *Activities) ActivateThemes(ctx context.Context, in ThemeInput) (ThemeResult, error) {
	prompt := in.Query
	if len(in.SubQuestions) > 0 {
		prompt = in.Query + "\n\nSub-perguntas:\n- " + strings.Join(in.SubQuestions, "\n- ")
	}

	var verdict themeVerdict
	err := a.gateway.CompleteJSON(ctx, llm.Request{
		System:  themeSystem,
		Prompt:  prompt,
		AgentID: "theme-activator",
	}, &verdict)
	if err != nil || len(verdict.Themes) == 0 {
		if err != nil {
			a.logger.Warn("Theme activation failed, falling back to keywords", zap.Error(err))
		}
		return ThemeResult{Themes: memory.ExtractKeywords(in.Query)}, nil
	}
	return ThemeResult{Themes: verdict.Themes}, nil
}
