package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/sdk/client"
	"go.uber.org/zap"

	"github.com/NicholasJacob1990/iudex0-sub007/internal/citer"
	"github.com/NicholasJacob1990/iudex0-sub007/internal/config"
	"github.com/NicholasJacob1990/iudex0-sub007/internal/router"
	"github.com/NicholasJacob1990/iudex0-sub007/internal/workflows"
)

// WorkflowStarter is the slice of the Temporal client the API needs.
type WorkflowStarter interface {
	ExecuteWorkflow(ctx context.Context, options client.StartWorkflowOptions, workflow interface{}, args ...interface{}) (client.WorkflowRun, error)
}

// Handler serves the reasoning API. Routing and the citer gate run
// in-process; full reasoning passes run as Temporal workflows.
type Handler struct {
	temporal WorkflowStarter
	router   *router.Router
	gate     *citer.Gate
	cfg      *config.Config
	logger   *zap.Logger
}

// NewHandler creates the API handler.
func NewHandler(t WorkflowStarter, rt *router.Router, gate *citer.Gate, cfg *config.Config, logger *zap.Logger) *Handler {
	return &Handler{temporal: t, router: rt, gate: gate, cfg: cfg, logger: logger}
}

// RegisterRoutes registers the API routes on the provided mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/v1/route", h.handleRoute)
	mux.HandleFunc("/api/v1/reason", h.handleReason)
	mux.HandleFunc("/api/v1/citer", h.handleCiter)
}

type routeRequest struct {
	Query         string `json:"query"`
	TenantID      string `json:"tenant_id"`
	Mode          string `json:"mode,omitempty"`
	GraphHops     int    `json:"graph_hops,omitempty"`
	AllowGraph    bool   `json:"allow_graph"`
	AllowArgument bool   `json:"allow_argument"`
	RiskLevel     string `json:"risk_level,omitempty"`
}

func (h *Handler) handleRoute(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req routeRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Query == "" {
		h.writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	decision := h.router.Route(r.Context(), router.Request{
		Query:         req.Query,
		TenantID:      req.TenantID,
		Mode:          req.Mode,
		GraphHops:     req.GraphHops,
		AllowGraph:    req.AllowGraph,
		AllowArgument: req.AllowArgument,
		RiskLevel:     req.RiskLevel,
	})
	h.writeJSON(w, http.StatusOK, decision)
}

type reasonRequest struct {
	Query    string   `json:"query"`
	TenantID string   `json:"tenant_id"`
	UserID   string   `json:"user_id,omitempty"`
	GroupIDs []string `json:"group_ids,omitempty"`
	Scope    string   `json:"scope,omitempty"`

	Mode          string `json:"mode,omitempty"`
	GraphHops     int    `json:"graph_hops,omitempty"`
	AllowGraph    bool   `json:"allow_graph"`
	AllowArgument bool   `json:"allow_argument"`
	RiskLevel     string `json:"risk_level,omitempty"`

	// Optional per-request overrides of the configured defaults.
	MaxRethink             *int     `json:"max_rethink,omitempty"`
	EnableVerification     *bool    `json:"enable_verification,omitempty"`
	EnableAbstention       *bool    `json:"enable_abstention,omitempty"`
	EnableMemory           *bool    `json:"enable_memory,omitempty"`
	AbstainBelowConfidence *float64 `json:"abstain_below_confidence,omitempty"`
}

func (h *Handler) handleReason(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req reasonRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Query == "" || req.TenantID == "" {
		h.writeError(w, http.StatusBadRequest, "query and tenant_id are required")
		return
	}

	in := h.passInput(req)
	workflowID := fmt.Sprintf("iudex-pass-%s", uuid.New().String())
	opts := client.StartWorkflowOptions{
		ID:                       workflowID,
		TaskQueue:                h.cfg.Temporal.TaskQueue,
		WorkflowExecutionTimeout: h.cfg.Reasoning.PassTimeout,
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.cfg.Reasoning.PassTimeout)
	defer cancel()

	run, err := h.temporal.ExecuteWorkflow(ctx, opts, workflows.CognitiveWorkflow, in)
	if err != nil {
		h.logger.Error("Failed to start reasoning pass",
			zap.String("tenant_id", req.TenantID), zap.Error(err))
		h.writeError(w, http.StatusBadGateway, "failed to start reasoning pass")
		return
	}

	var result workflows.PassResult
	if err := run.Get(ctx, &result); err != nil {
		h.logger.Error("Reasoning pass failed",
			zap.String("workflow_id", workflowID),
			zap.String("tenant_id", req.TenantID),
			zap.Error(err))
		h.writeError(w, http.StatusBadGateway, "reasoning pass failed")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"workflow_id":         workflowID,
		"integrated_response": result.Response,
		"citations_used":      result.Citations,
		"abstain_info":        result.AbstainInfo,
		"router_decision":     result.Decision,
		"verification_status": result.VerificationStatus,
		"explanation":         result.Explanation,
		"metrics":             result.Metrics,
	})
}

// passInput merges configured defaults with per-request overrides.
func (h *Handler) passInput(req reasonRequest) workflows.PassInput {
	rc := h.cfg.Reasoning
	in := workflows.PassInput{
		Query:    req.Query,
		TenantID: req.TenantID,
		UserID:   req.UserID,
		GroupIDs: req.GroupIDs,
		Scope:    req.Scope,

		Mode:          req.Mode,
		GraphHops:     req.GraphHops,
		AllowGraph:    req.AllowGraph,
		AllowArgument: req.AllowArgument,
		RiskLevel:     req.RiskLevel,

		MaxSubQuestions:         rc.MaxSubQuestions,
		MaxRethink:              rc.MaxRethink,
		TopEvidencePerQuestion:  rc.TopEvidencePerQuestion,
		RetrievalTopK:           h.cfg.Retrieval.Qdrant.TopK,
		EnableVerification:      rc.EnableVerification,
		EnableHallucinationLoop: rc.EnableHallucinationLoop,
		EnableAbstention:        rc.EnableAbstention,
		EnableMemory:            rc.EnableMemory,
		AbstainBelowConfidence:  rc.AbstainBelowConfidence,
		MemoryThreshold:         h.cfg.Memory.SimilarityThreshold,
		MemoryLimit:             h.cfg.Memory.MaxResults,
	}
	if in.Mode == "" {
		in.Mode = h.cfg.Router.DefaultMode
	}
	if req.MaxRethink != nil {
		in.MaxRethink = *req.MaxRethink
	}
	if req.EnableVerification != nil {
		in.EnableVerification = *req.EnableVerification
	}
	if req.EnableAbstention != nil {
		in.EnableAbstention = *req.EnableAbstention
	}
	if req.EnableMemory != nil {
		in.EnableMemory = *req.EnableMemory
	}
	if req.AbstainBelowConfidence != nil {
		in.AbstainBelowConfidence = *req.AbstainBelowConfidence
	}
	return in
}

type citerRequest struct {
	Context string         `json:"context"`
	Sources []citer.Source `json:"sources"`
}

func (h *Handler) handleCiter(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req citerRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	res, err := h.gate.Verify(r.Context(), req.Context, req.Sources)
	if err != nil {
		h.logger.Error("Citer gate failed", zap.Error(err))
		h.writeError(w, http.StatusBadGateway, "citer gate failed")
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}

func decodeJSON(r *http.Request, out any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(out)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error":     message,
		"timestamp": time.Now().Unix(),
	})
}

// StartServer starts the API HTTP server.
func StartServer(h *Handler, port int, logger *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		logger.Info("Starting reasoning API server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Reasoning API server failed", zap.Error(err))
		}
	}()
	return srv
}
