package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/NicholasJacob1990/iudex0-sub007/internal/activities"
	"github.com/NicholasJacob1990/iudex0-sub007/internal/router"
)

// RouterWorkflow exposes routing as a standalone workflow for callers
// that want the decision without running a full reasoning pass.
func RouterWorkflow(ctx workflow.Context, in activities.RouteQueryInput) (router.Decision, error) {
	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumAttempts:    2,
		},
	})

	var out activities.RouteQueryResult
	if err := workflow.ExecuteActivity(ctx, "RouteQuery", in).Get(ctx, &out); err != nil {
		return router.Decision{}, err
	}
	return out.Decision, nil
}
