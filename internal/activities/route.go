package activities

import (
	"context"

	"go.uber.org/zap"

	"github.com/NicholasJacob1990/iudex0-sub007/internal/metrics"
	"github.com/NicholasJacob1990/iudex0-sub007/internal/router"
)

// RouteQuery runs the three-tier routing decision as an activity so the
// workflow history records the exact decision used by the pass.
func (a *Activities) RouteQuery(ctx context.Context, in RouteQueryInput) (RouteQueryResult, error) {
	decision := a.router.Route(ctx, router.Request{
		Query:         in.Query,
		Mode:          in.Mode,
		GraphHops:     in.GraphHops,
		AllowGraph:    in.AllowGraph,
		AllowArgument: in.AllowArgument,
		RiskLevel:     in.RiskLevel,
		TenantID:      in.TenantID,
	})

	metrics.PassesStarted.WithLabelValues(decision.RagMode).Inc()
	a.logger.Info("Routed query",
		zap.String("tenant_id", in.TenantID),
		zap.Bool("graph_rag", decision.GraphRAGEnabled),
		zap.Bool("argument_graph", decision.ArgumentGraphEnabled),
		zap.Bool("used_model", decision.UsedModel),
		zap.Strings("reasons", decision.Reasons),
	)
	return RouteQueryResult{Decision: decision}, nil
}
