package activities

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/NicholasJacob1990/iudex0-sub007/internal/retrieval"
)

// RetrieveEvidence runs the dual retrieval for one sub-question. Themes
// are appended to the query text to bias both backends toward the
// activated branches of law.
func (a *Activities) RetrieveEvidence(ctx context.Context, in RetrieveInput) (RetrieveResult, error) {
	text := in.SubQuestion
	if len(in.Themes) > 0 {
		text = text + " " + strings.Join(in.Themes, " ")
	}

	evidence, err := a.retriever.Retrieve(ctx, retrieval.Query{
		Text:      text,
		TenantID:  in.TenantID,
		TopK:      in.TopK,
		GraphHops: in.GraphHops,
	})
	if err != nil {
		return RetrieveResult{}, err
	}

	a.logger.Debug("Retrieved evidence",
		zap.String("sub_question", in.SubQuestion),
		zap.Int("items", len(evidence)),
	)
	return RetrieveResult{SubQuestion: in.SubQuestion, Evidence: evidence}, nil
}
