package activities

import (
	"context"

	"go.uber.org/zap"
)

// CiterVerifier runs the pre-generation gate over the drafting context.
func (a *Activities) CiterVerifier(ctx context.Context, in CiterInput) (CiterResult, error) {
	res, err := a.gate.Verify(ctx, in.ResearchContext, in.Sources)
	if err != nil {
		return CiterResult{}, err
	}

	a.logger.Info("Citer gate decision",
		zap.String("decision", res.FinalDecision),
		zap.Float64("coverage", res.Coverage),
		zap.Bool("force_hil", res.ForceHIL),
		zap.Bool("block_debate", res.BlockDebate),
	)
	return CiterResult{Result: *res}, nil
}
