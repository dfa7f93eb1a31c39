package activities

import (
	"github.com/NicholasJacob1990/iudex0-sub007/internal/citer"
	"github.com/NicholasJacob1990/iudex0-sub007/internal/memory"
	"github.com/NicholasJacob1990/iudex0-sub007/internal/retrieval"
	"github.com/NicholasJacob1990/iudex0-sub007/internal/router"
)

// Verification statuses for one reasoning iteration.
const (
	VerificationApproved = "approved"
	VerificationRejected = "rejected"
	VerificationAbstain  = "abstain"
)

// RouteQueryInput mirrors the router request across the activity boundary.
type RouteQueryInput struct {
	Query         string `json:"query"`
	TenantID      string `json:"tenant_id"`
	Mode          string `json:"mode"`
	GraphHops     int    `json:"graph_hops"`
	AllowGraph    bool   `json:"allow_graph"`
	AllowArgument bool   `json:"allow_argument"`
	RiskLevel     string `json:"risk_level,omitempty"`
}

// RouteQueryResult wraps the immutable routing decision.
type RouteQueryResult struct {
	Decision router.Decision `json:"decision"`
}

// PlanInput asks the planner to decompose a query.
type PlanInput struct {
	Query           string `json:"query"`
	TenantID        string `json:"tenant_id"`
	MaxSubQuestions int    `json:"max_sub_questions"`
}

// PlanResult is the mind map plus ordered sub-questions.
type PlanResult struct {
	SubQuestions []string          `json:"sub_questions"`
	MindMap      map[string]string `json:"mind_map,omitempty"`
	Complexity   float64           `json:"complexity"`
}

// ThemeInput activates legal themes for retrieval steering.
type ThemeInput struct {
	Query        string   `json:"query"`
	SubQuestions []string `json:"sub_questions"`
}

// ThemeResult lists activated themes, most relevant first.
type ThemeResult struct {
	Themes []string `json:"themes"`
}

// RetrieveInput runs dual retrieval for one sub-question.
type RetrieveInput struct {
	SubQuestion string   `json:"sub_question"`
	Themes      []string `json:"themes,omitempty"`
	TenantID    string   `json:"tenant_id"`
	TopK        int      `json:"top_k"`
	GraphHops   int      `json:"graph_hops"`
}

// RetrieveResult carries the merged ranked evidence.
type RetrieveResult struct {
	SubQuestion string               `json:"sub_question"`
	Evidence    []retrieval.Evidence `json:"evidence"`
}

// RefineInput filters and ranks raw evidence for one sub-question.
type RefineInput struct {
	SubQuestion string               `json:"sub_question"`
	Evidence    []retrieval.Evidence `json:"evidence"`
	MaxItems    int                  `json:"max_items"`
}

// RefineResult is the bounded evidence set plus quality accounting.
type RefineResult struct {
	SubQuestion  string               `json:"sub_question"`
	Evidence     []retrieval.Evidence `json:"evidence"`
	QualityScore float64              `json:"quality_score"`
	HasConflicts bool                 `json:"has_conflicts"`
}

// MemoryCheckInput looks up prior consultations for reuse.
type MemoryCheckInput struct {
	Query     string  `json:"query"`
	TenantID  string  `json:"tenant_id"`
	Threshold float64 `json:"threshold"`
	Limit     int     `json:"limit"`
}

// MemoryCheckResult lists tenant-scoped matches by similarity.
type MemoryCheckResult struct {
	Matches []memory.Match `json:"matches"`
}

// MemoryStoreInput persists a completed pass.
type MemoryStoreInput struct {
	Query         string              `json:"query"`
	TenantID      string              `json:"tenant_id"`
	MindMap       map[string]string   `json:"mind_map,omitempty"`
	SubQuestions  []string            `json:"sub_questions,omitempty"`
	EvidenceMap   map[string][]string `json:"evidence_map,omitempty"`
	AnswerSummary string              `json:"answer_summary"`
}

// MemoryStoreResult returns the stored entry id.
type MemoryStoreResult struct {
	EntryID string `json:"entry_id"`
}

// ReasonInput answers one sub-question against its evidence.
type ReasonInput struct {
	SubQuestion  string               `json:"sub_question"`
	Evidence     []retrieval.Evidence `json:"evidence"`
	QualityScore float64              `json:"quality_score"`
	HasConflicts bool                 `json:"has_conflicts"`
	PriorSummary string               `json:"prior_summary,omitempty"`
}

// SubAnswer is one grounded answer with extracted citations.
type SubAnswer struct {
	SubQuestion string   `json:"sub_question"`
	Answer      string   `json:"answer"`
	Citations   []string `json:"citations,omitempty"`
	Confidence  float64  `json:"confidence"`
}

// VerifyInput checks the sub-answers of the current iteration.
type VerifyInput struct {
	Query      string               `json:"query"`
	SubAnswers []SubAnswer          `json:"sub_answers"`
	Evidence   []retrieval.Evidence `json:"evidence,omitempty"`
	Enabled    bool                 `json:"enabled"`
}

// VerifyResult is the structured consistency judgment.
type VerifyResult struct {
	Status            string   `json:"status"`
	Confidence        float64  `json:"confidence"`
	Issues            []string `json:"issues,omitempty"`
	RequiresNewSearch bool     `json:"requires_new_search"`
}

// RewriteInput reformulates the query for another retrieval attempt.
type RewriteInput struct {
	Query   string   `json:"query"`
	Issues  []string `json:"issues,omitempty"`
	Attempt int      `json:"attempt"`
}

// RewriteResult carries the reformulated query.
type RewriteResult struct {
	RewrittenQuery string `json:"rewritten_query"`
}

// IntegrateInput synthesizes the final response.
type IntegrateInput struct {
	Query         string      `json:"query"`
	SubAnswers    []SubAnswer `json:"sub_answers"`
	Abstain       bool        `json:"abstain"`
	AbstainReason string      `json:"abstain_reason,omitempty"`
}

// AbstainInfo is the machine-readable abstention record.
type AbstainInfo struct {
	Reason     string  `json:"reason"`
	Confidence float64 `json:"confidence"`
}

// IntegrateResult is the final synthesized answer.
type IntegrateResult struct {
	Response    string       `json:"response"`
	Citations   []string     `json:"citations,omitempty"`
	AbstainInfo *AbstainInfo `json:"abstain_info,omitempty"`
}

// CiterInput runs the pre-generation gate.
type CiterInput struct {
	ResearchContext string         `json:"research_context"`
	Sources         []citer.Source `json:"sources"`
}

// CiterResult wraps the gate outcome.
type CiterResult struct {
	Result citer.Result `json:"result"`
}

// PassMetricsInput records the outcome of one reasoning pass.
type PassMetricsInput struct {
	TenantID     string  `json:"tenant_id"`
	Outcome      string  `json:"outcome"`
	RethinkCount int     `json:"rethink_count"`
	DurationSecs float64 `json:"duration_secs"`
	Abstained    bool    `json:"abstained"`
	AbstainReason string `json:"abstain_reason,omitempty"`
}
