package retrieval

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DualRetriever fans a query out to the vector and lexical backends in
// parallel, optionally expands the merged hits through the citation
// graph, and returns a deduplicated ranked list.
//
// A single failing backend degrades to the surviving one. The retriever
// only errors when every enabled backend fails.
type DualRetriever struct {
	vector      VectorSearcher
	lexical     LexicalSearcher
	graph       GraphExpander
	concurrency int
	logger      *zap.Logger
}

func NewDualRetriever(vector VectorSearcher, lexical LexicalSearcher, graph GraphExpander, concurrency int, logger *zap.Logger) *DualRetriever {
	if vector == nil {
		vector = NoopVector{}
	}
	if lexical == nil {
		lexical = NoopLexical{}
	}
	if graph == nil {
		graph = NoopGraph{}
	}
	if concurrency <= 0 {
		concurrency = 4
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DualRetriever{
		vector:      vector,
		lexical:     lexical,
		graph:       graph,
		concurrency: concurrency,
		logger:      logger,
	}
}

// Retrieve runs the dual search for one sub-question.
func (r *DualRetriever) Retrieve(ctx context.Context, q Query) ([]Evidence, error) {
	var (
		mu       sync.Mutex
		merged   []Evidence
		errCount int
		lastErr  error
	)

	collect := func(backend string, evs []Evidence, err error) {
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			errCount++
			lastErr = err
			r.logger.Warn("Retrieval backend failed",
				zap.String("backend", backend),
				zap.Error(err),
			)
			return
		}
		merged = append(merged, evs...)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)

	g.Go(func() error {
		evs, err := r.vector.SearchVector(gctx, q)
		collect("vector", evs, err)
		return nil
	})
	g.Go(func() error {
		evs, err := r.lexical.SearchLexical(gctx, q)
		collect("lexical", evs, err)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if errCount >= 2 {
		return nil, fmt.Errorf("all retrieval backends failed: %w", lastErr)
	}

	merged = dedupe(merged)

	if q.GraphHops > 0 && len(merged) > 0 {
		expansions, err := r.graph.Expand(ctx, merged, q.GraphHops, q.TenantID)
		if err != nil {
			r.logger.Warn("Graph expansion failed, continuing with flat results", zap.Error(err))
		} else {
			merged = dedupe(append(merged, expansions...))
		}
	}

	sort.SliceStable(merged, func(i, j int) bool { return merged[i].Score > merged[j].Score })
	if q.TopK > 0 && len(merged) > q.TopK {
		merged = merged[:q.TopK]
	}
	return merged, nil
}

// dedupe keeps the highest scoring copy of each document ID.
func dedupe(evs []Evidence) []Evidence {
	best := make(map[string]int, len(evs))
	var out []Evidence
	for _, ev := range evs {
		if idx, ok := best[ev.ID]; ok {
			if ev.Score > out[idx].Score {
				out[idx] = ev
			}
			continue
		}
		best[ev.ID] = len(out)
		out = append(out, ev)
	}
	return out
}
