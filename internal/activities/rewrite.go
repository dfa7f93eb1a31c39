package activities

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/NicholasJacob1990/iudex0-sub007/internal/llm"
)

const rewriteSystem = `Você reformula consultas jurídicas para uma nova tentativa de busca.
Gere uma única reformulação que contorne os problemas apontados, mantendo o sentido original.
Responda apenas com JSON: {"rewritten_query": "..."}`

type rewriteVerdict struct {
	RewrittenQuery string `json:"rewritten_query"`
}

// RewriteQuery reformulates the query before a fresh retrieval attempt.
// On failure the original query is reused; the rethink counter still
// advances in the workflow, so the loop stays bounded.
func (a *Activities) RewriteQuery(ctx context.Context, in RewriteInput) (RewriteResult, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "CONSULTA ORIGINAL: %s\n", in.Query)
	if len(in.Issues) > 0 {
		sb.WriteString("PROBLEMAS APONTADOS:\n")
		for _, issue := range in.Issues {
			fmt.Fprintf(&sb, "- %s\n", issue)
		}
	}
	fmt.Fprintf(&sb, "TENTATIVA: %d\n", in.Attempt)

	var verdict rewriteVerdict
	err := a.gateway.CompleteJSON(ctx, llm.Request{
		System:  rewriteSystem,
		Prompt:  sb.String(),
		AgentID: "query-rewriter",
	}, &verdict)
	if err != nil || strings.TrimSpace(verdict.RewrittenQuery) == "" {
		if err != nil {
			a.logger.Warn("Query rewrite failed, reusing original query", zap.Error(err))
		}
		return RewriteResult{RewrittenQuery: in.Query}, nil
	}
	return RewriteResult{RewrittenQuery: strings.TrimSpace(verdict.RewrittenQuery)}, nil
}
