package retrieval

import "context"

// Evidence is a single retrieved source passage.
type Evidence struct {
	ID       string                 `json:"id"`
	Title    string                 `json:"title,omitempty"`
	Excerpt  string                 `json:"excerpt"`
	Score    float64                `json:"score"`
	Backend  string                 `json:"backend"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// Query carries a retrieval request for one sub-question.
type Query struct {
	Text     string
	TenantID string
	TopK     int
	// GraphHops enables graph expansion when > 0
	GraphHops int
}

// VectorSearcher performs semantic search over embedded documents.
type VectorSearcher interface {
	SearchVector(ctx context.Context, q Query) ([]Evidence, error)
}

// LexicalSearcher performs keyword search.
type LexicalSearcher interface {
	SearchLexical(ctx context.Context, q Query) ([]Evidence, error)
}

// GraphExpander walks citation and precedent edges out from seed documents.
type GraphExpander interface {
	Expand(ctx context.Context, seeds []Evidence, maxHops int, tenantID string) ([]Evidence, error)
}
