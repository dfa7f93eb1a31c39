package memory

import (
	"context"
	"time"
)

// Entry is one stored consultation: the trace of a completed reasoning
// pass, reusable as a hint for similar later queries from the same tenant.
type Entry struct {
	ID            string              `json:"id"`
	QueryHash     string              `json:"query_hash"`
	Query         string              `json:"query"`
	Keywords      []string            `json:"keywords"`
	TenantID      string              `json:"tenant_id"`
	MindMap       map[string]string   `json:"mind_map,omitempty"`
	SubQuestions  []string            `json:"sub_questions,omitempty"`
	EvidenceMap   map[string][]string `json:"evidence_map,omitempty"`
	AnswerSummary string              `json:"answer_summary,omitempty"`
	CreatedAt     time.Time           `json:"created_at"`
}

// Match pairs an entry with its similarity to the lookup query.
type Match struct {
	Entry      Entry   `json:"entry"`
	Similarity float64 `json:"similarity"`
}

// Store is the consultation memory contract. Lookups never cross tenants.
type Store interface {
	FindSimilar(ctx context.Context, query, tenantID string, threshold float64, limit int) ([]Match, error)
	Store(ctx context.Context, e Entry) (string, error)
}
