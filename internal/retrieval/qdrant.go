package retrieval

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/NicholasJacob1990/iudex0-sub007/internal/circuitbreaker"
	"github.com/NicholasJacob1990/iudex0-sub007/internal/config"
	"github.com/NicholasJacob1990/iudex0-sub007/internal/embeddings"
	"github.com/NicholasJacob1990/iudex0-sub007/internal/metrics"
	"github.com/NicholasJacob1990/iudex0-sub007/internal/tracing"
)

// QdrantSearcher is a minimal Qdrant HTTP client scoped to one collection.
// Tenant isolation is enforced through a payload filter on tenant_id.
type QdrantSearcher struct {
	cfg      config.QdrantConfig
	base     string
	httpw    *circuitbreaker.HTTPWrapper
	embedder *embeddings.Client
	log      *zap.Logger
}

func NewQdrantSearcher(cfg config.QdrantConfig, embedder *embeddings.Client, logger *zap.Logger) *QdrantSearcher {
	if cfg.Port == 0 {
		cfg.Port = 6333
	}
	if cfg.TopK == 0 {
		cfg.TopK = 5
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.Collection == "" {
		cfg.Collection = "legal_documents"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	httpClient := &http.Client{Timeout: cfg.Timeout}
	return &QdrantSearcher{
		cfg:      cfg,
		base:     fmt.Sprintf("http://%s:%d", cfg.Host, cfg.Port),
		httpw:    circuitbreaker.NewHTTPWrapper(httpClient, "qdrant", "retrieval", logger),
		embedder: embedder,
		log:      logger,
	}
}

type qdrantQueryRequest struct {
	Query          []float32              `json:"query"`
	Limit          int                    `json:"limit"`
	ScoreThreshold *float64               `json:"score_threshold,omitempty"`
	WithPayload    bool                   `json:"with_payload"`
	Filter         map[string]interface{} `json:"filter,omitempty"`
}

type qdrantPoint struct {
	ID      interface{}            `json:"id"`
	Score   float64                `json:"score"`
	Payload map[string]interface{} `json:"payload"`
}

type qdrantQueryResponse struct {
	Result struct {
		Points []qdrantPoint `json:"points"`
	} `json:"result"`
	Status string `json:"status"`
}

func tenantFilter(tenantID string) map[string]interface{} {
	if tenantID == "" {
		return nil
	}
	return map[string]interface{}{
		"must": []map[string]interface{}{
			{"key": "tenant_id", "match": map[string]interface{}{"value": tenantID}},
		},
	}
}

// SearchVector embeds the query text and runs a filtered similarity search.
func (c *QdrantSearcher) SearchVector(ctx context.Context, q Query) ([]Evidence, error) {
	if c == nil || !c.cfg.Enabled {
		return nil, fmt.Errorf("qdrant: search called while disabled")
	}
	vec, err := c.embedder.Embed(ctx, q.Text, "")
	if err != nil {
		metrics.RetrievalRequests.WithLabelValues("qdrant", "embed_error").Inc()
		return nil, fmt.Errorf("embed query: %w", err)
	}

	limit := q.TopK
	if limit <= 0 {
		limit = c.cfg.TopK
	}
	var thr *float64
	if c.cfg.Threshold > 0 {
		t := c.cfg.Threshold
		thr = &t
	}
	reqBody := qdrantQueryRequest{
		Query:          vec,
		Limit:          limit,
		ScoreThreshold: thr,
		WithPayload:    true,
		Filter:         tenantFilter(q.TenantID),
	}
	buf, _ := json.Marshal(reqBody)

	url := fmt.Sprintf("%s/collections/%s/points/query", c.base, c.cfg.Collection)
	ctx, span := tracing.StartHTTPSpan(ctx, "POST", url)
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(buf))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	tracing.InjectTraceparent(ctx, req)

	resp, err := c.httpw.Do(req)
	if err != nil {
		metrics.RetrievalRequests.WithLabelValues("qdrant", "error").Inc()
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		metrics.RetrievalRequests.WithLabelValues("qdrant", "error").Inc()
		return nil, fmt.Errorf("qdrant status %d", resp.StatusCode)
	}

	var qr qdrantQueryResponse
	if err := json.NewDecoder(resp.Body).Decode(&qr); err != nil {
		metrics.RetrievalRequests.WithLabelValues("qdrant", "error").Inc()
		return nil, err
	}
	metrics.RetrievalRequests.WithLabelValues("qdrant", "ok").Inc()

	out := make([]Evidence, 0, len(qr.Result.Points))
	for _, p := range qr.Result.Points {
		out = append(out, pointToEvidence(p))
	}
	metrics.EvidenceItems.WithLabelValues("qdrant").Observe(float64(len(out)))
	return out, nil
}

// Upsert inserts or updates one document point.
func (c *QdrantSearcher) Upsert(ctx context.Context, vec []float32, payload map[string]interface{}) error {
	if c == nil || !c.cfg.Enabled {
		return fmt.Errorf("qdrant: upsert called while disabled")
	}
	url := fmt.Sprintf("%s/collections/%s/points", c.base, c.cfg.Collection)
	body := map[string]interface{}{
		"points": []map[string]interface{}{
			{"id": uuid.New().String(), "vector": vec, "payload": payload},
		},
	}
	buf, _ := json.Marshal(body)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(buf))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	tracing.InjectTraceparent(ctx, req)

	resp, err := c.httpw.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("qdrant upsert status %d", resp.StatusCode)
	}
	return nil
}

func pointToEvidence(p qdrantPoint) Evidence {
	ev := Evidence{
		ID:       fmt.Sprintf("%v", p.ID),
		Score:    p.Score,
		Backend:  "qdrant",
		Metadata: p.Payload,
	}
	if t, ok := p.Payload["title"].(string); ok {
		ev.Title = t
	}
	if x, ok := p.Payload["excerpt"].(string); ok {
		ev.Excerpt = x
	} else if x, ok := p.Payload["text"].(string); ok {
		ev.Excerpt = x
	}
	return ev
}
