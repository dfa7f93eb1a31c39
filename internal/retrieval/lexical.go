package retrieval

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/NicholasJacob1990/iudex0-sub007/internal/circuitbreaker"
	"github.com/NicholasJacob1990/iudex0-sub007/internal/config"
	"github.com/NicholasJacob1990/iudex0-sub007/internal/metrics"
	"github.com/NicholasJacob1990/iudex0-sub007/internal/tracing"
)

// LexicalClient runs keyword search against the document index service.
type LexicalClient struct {
	cfg   config.LexicalConfig
	base  string
	httpw *circuitbreaker.HTTPWrapper
}

func NewLexicalClient(cfg config.LexicalConfig, logger *zap.Logger) *LexicalClient {
	if cfg.TopK == 0 {
		cfg.TopK = 10
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	httpClient := &http.Client{Timeout: cfg.Timeout}
	return &LexicalClient{
		cfg:   cfg,
		base:  strings.TrimRight(cfg.BaseURL, "/"),
		httpw: circuitbreaker.NewHTTPWrapper(httpClient, "lexical", "retrieval", logger),
	}
}

type lexicalSearchRequest struct {
	Query    string `json:"query"`
	TopK     int    `json:"top_k"`
	TenantID string `json:"tenant_id,omitempty"`
}

type lexicalSearchResponse struct {
	Hits []struct {
		ID      string                 `json:"id"`
		Title   string                 `json:"title"`
		Excerpt string                 `json:"excerpt"`
		Score   float64                `json:"score"`
		Meta    map[string]interface{} `json:"metadata"`
	} `json:"hits"`
}

// SearchLexical queries the index service for keyword matches.
func (c *LexicalClient) SearchLexical(ctx context.Context, q Query) ([]Evidence, error) {
	if c == nil || !c.cfg.Enabled {
		return nil, fmt.Errorf("lexical: search called while disabled")
	}
	limit := q.TopK
	if limit <= 0 {
		limit = c.cfg.TopK
	}
	buf, _ := json.Marshal(lexicalSearchRequest{Query: q.Text, TopK: limit, TenantID: q.TenantID})

	url := c.base + "/search"
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
		metrics.RetrievalRequests.WithLabelValues("lexical", "error").Inc()
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		metrics.RetrievalRequests.WithLabelValues("lexical", "error").Inc()
		return nil, fmt.Errorf("lexical search status %d", resp.StatusCode)
	}

	var out lexicalSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		metrics.RetrievalRequests.WithLabelValues("lexical", "error").Inc()
		return nil, err
	}
	metrics.RetrievalRequests.WithLabelValues("lexical", "ok").Inc()

	evs := make([]Evidence, 0, len(out.Hits))
	for _, h := range out.Hits {
		evs = append(evs, Evidence{
			ID:       h.ID,
			Title:    h.Title,
			Excerpt:  h.Excerpt,
			Score:    h.Score,
			Backend:  "lexical",
			Metadata: h.Meta,
		})
	}
	metrics.EvidenceItems.WithLabelValues("lexical").Observe(float64(len(evs)))
	return evs, nil
}
