package workflows

import (
	"github.com/NicholasJacob1990/iudex0-sub007/internal/activities"
	"github.com/NicholasJacob1990/iudex0-sub007/internal/router"
)

// Pass states, in the order the state machine visits them.
const (
	StatePlanning           = "planning"
	StateThemeActivation    = "theme_activation"
	StateRetrieval          = "retrieval"
	StateEvidenceRefinement = "evidence_refinement"
	StateMemoryCheck        = "memory_check"
	StateReasoning          = "reasoning"
	StateVerification       = "verification"
	StateRewriting          = "rewriting"
	StateIntegration        = "integration"
	StateExplainability     = "explainability"
	StateMemoryStore        = "memory_store"
	StateDone               = "done"
)

// PassInput starts one cognitive reasoning pass. Immutable once the
// pass begins.
type PassInput struct {
	Query    string   `json:"query"`
	TenantID string   `json:"tenant_id"`
	UserID   string   `json:"user_id,omitempty"`
	GroupIDs []string `json:"group_ids,omitempty"`
	Scope    string   `json:"scope,omitempty"`

	Mode          string `json:"mode"`
	GraphHops     int    `json:"graph_hops"`
	AllowGraph    bool   `json:"allow_graph"`
	AllowArgument bool   `json:"allow_argument"`
	RiskLevel     string `json:"risk_level,omitempty"`

	MaxSubQuestions         int     `json:"max_sub_questions"`
	MaxRethink              int     `json:"max_rethink"`
	TopEvidencePerQuestion  int     `json:"top_evidence_per_question"`
	RetrievalTopK           int     `json:"retrieval_top_k"`
	EnableVerification      bool    `json:"enable_verification"`
	EnableHallucinationLoop bool    `json:"enable_hallucination_loop"`
	EnableAbstention        bool    `json:"enable_abstention"`
	EnableMemory            bool    `json:"enable_memory"`
	AbstainBelowConfidence  float64 `json:"abstain_below_confidence"`
	MemoryThreshold         float64 `json:"memory_threshold"`
	MemoryLimit             int     `json:"memory_limit"`
}

// PassMetrics summarizes one finished pass.
type PassMetrics struct {
	SubQuestions  int `json:"sub_questions"`
	EvidenceItems int `json:"evidence_items"`
	RethinkCount  int `json:"rethink_count"`
	MemoryMatches int `json:"memory_matches"`
}

// Explanation is the deterministic trace assembled in the
// explainability step.
type Explanation struct {
	RouterReasons      []string           `json:"router_reasons"`
	SubQuestions       []string           `json:"sub_questions"`
	Confidences        map[string]float64 `json:"confidences"`
	VerificationStatus string             `json:"verification_status"`
	VerificationIssues []string           `json:"verification_issues,omitempty"`
	RethinkCount       int                `json:"rethink_count"`
	ReusedMemory       bool               `json:"reused_memory"`
}

// PassResult is the structured outcome of a pass. FinalState is always
// "done"; failures inside steps degrade, they do not abort the pass.
type PassResult struct {
	Response           string                  `json:"integrated_response"`
	Citations          []string                `json:"citations_used,omitempty"`
	AbstainInfo        *activities.AbstainInfo `json:"abstain_info,omitempty"`
	Decision           router.Decision         `json:"router_decision"`
	VerificationStatus string                  `json:"verification_status"`
	UnresolvedIssues   []string                `json:"unresolved_issues,omitempty"`
	Explanation        Explanation             `json:"explanation"`
	Metrics            PassMetrics             `json:"metrics"`
	FinalState         string                  `json:"final_state"`
	MemoryEntryID      string                  `json:"memory_entry_id,omitempty"`
}
