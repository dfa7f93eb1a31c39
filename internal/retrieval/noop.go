package retrieval

import "context"

// Noop backends stand in when a retrieval service is disabled in config.
// They return no evidence and no error so the rest of the pipeline runs.

type NoopVector struct{}

func (NoopVector) SearchVector(context.Context, Query) ([]Evidence, error) { return nil, nil }

type NoopLexical struct{}

func (NoopLexical) SearchLexical(context.Context, Query) ([]Evidence, error) { return nil, nil }

type NoopGraph struct{}

func (NoopGraph) Expand(context.Context, []Evidence, int, string) ([]Evidence, error) {
	return nil, nil
}
