package activities

import (
	"context"

	"go.uber.org/zap"

	"github.com/NicholasJacob1990/iudex0-sub007/internal/citer"
	"github.com/NicholasJacob1990/iudex0-sub007/internal/config"
	"github.com/NicholasJacob1990/iudex0-sub007/internal/llm"
	"github.com/NicholasJacob1990/iudex0-sub007/internal/memory"
	"github.com/NicholasJacob1990/iudex0-sub007/internal/metrics"
	"github.com/NicholasJacob1990/iudex0-sub007/internal/retrieval"
	"github.com/NicholasJacob1990/iudex0-sub007/internal/router"
)

// Gateway is the model access the activities need.
type Gateway interface {
	Complete(ctx context.Context, req llm.Request) (*llm.Response, error)
	CompleteJSON(ctx context.Context, req llm.Request, out interface{}) error
}

// Retriever is the evidence access the activities need.
type Retriever interface {
	Retrieve(ctx context.Context, q retrieval.Query) ([]retrieval.Evidence, error)
}

// Archiver records completed passes durably. Optional.
type Archiver interface {
	Archive(ctx context.Context, e memory.Entry) error
}

// Activities holds the injected collaborators for every workflow step.
// Instances are constructed at worker startup and registered with the
// Temporal worker; nothing here is ambient or global.
type Activities struct {
	cfg       *config.Config
	gateway   Gateway
	retriever Retriever
	memStore  memory.Store
	archive   Archiver
	router    *router.Router
	gate      *citer.Gate
	logger    *zap.Logger
}

// Deps bundles construction inputs.
type Deps struct {
	Config    *config.Config
	Gateway   Gateway
	Retriever Retriever
	Memory    memory.Store
	Archive   Archiver
	Router    *router.Router
	Gate      *citer.Gate
	Logger    *zap.Logger
}

func New(d Deps) *Activities {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Activities{
		cfg:       d.Config,
		gateway:   d.Gateway,
		retriever: d.Retriever,
		memStore:  d.Memory,
		archive:   d.Archive,
		router:    d.Router,
		gate:      d.Gate,
		logger:    logger,
	}
}

// RecordPassMetrics folds one finished pass into the Prometheus counters.
func (a *Activities) RecordPassMetrics(ctx context.Context, in PassMetricsInput) error {
	metrics.PassesCompleted.WithLabelValues(in.Outcome).Inc()
	metrics.PassDuration.Observe(in.DurationSecs)
	metrics.RethinkIterations.Observe(float64(in.RethinkCount))
	if in.Abstained {
		reason := in.AbstainReason
		if reason == "" {
			reason = "unspecified"
		}
		metrics.Abstentions.WithLabelValues(reason).Inc()
	}
	return nil
}
