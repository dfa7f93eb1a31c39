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

// GraphClient expands retrieval through the citation graph service.
// Precedents, súmulas and bound theses reference each other, so walking
// a bounded number of hops out from the seed documents surfaces
// authority the flat searches miss.
type GraphClient struct {
	cfg   config.GraphConfig
	base  string
	httpw *circuitbreaker.HTTPWrapper
}

func NewGraphClient(cfg config.GraphConfig, logger *zap.Logger) *GraphClient {
	if cfg.MaxHops == 0 {
		cfg.MaxHops = 2
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	httpClient := &http.Client{Timeout: cfg.Timeout}
	return &GraphClient{
		cfg:   cfg,
		base:  strings.TrimRight(cfg.BaseURL, "/"),
		httpw: circuitbreaker.NewHTTPWrapper(httpClient, "graph", "retrieval", logger),
	}
}

type graphExpandRequest struct {
	SeedIDs  []string `json:"seed_ids"`
	MaxHops  int      `json:"max_hops"`
	TenantID string   `json:"tenant_id,omitempty"`
}

type graphExpandResponse struct {
	Nodes []struct {
		ID      string                 `json:"id"`
		Title   string                 `json:"title"`
		Excerpt string                 `json:"excerpt"`
		Weight  float64                `json:"weight"`
		Meta    map[string]interface{} `json:"metadata"`
	} `json:"nodes"`
}

// Expand walks up to maxHops citation edges out from the seed evidence.
func (c *GraphClient) Expand(ctx context.Context, seeds []Evidence, maxHops int, tenantID string) ([]Evidence, error) {
	if c == nil || !c.cfg.Enabled {
		return nil, fmt.Errorf("graph: expand called while disabled")
	}
	if len(seeds) == 0 {
		return nil, nil
	}
	if maxHops <= 0 || maxHops > c.cfg.MaxHops {
		maxHops = c.cfg.MaxHops
	}

	ids := make([]string, 0, len(seeds))
	for _, s := range seeds {
		ids = append(ids, s.ID)
	}
	buf, _ := json.Marshal(graphExpandRequest{SeedIDs: ids, MaxHops: maxHops, TenantID: tenantID})

	url := c.base + "/expand"
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
		metrics.RetrievalRequests.WithLabelValues("graph", "error").Inc()
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		metrics.RetrievalRequests.WithLabelValues("graph", "error").Inc()
		return nil, fmt.Errorf("graph expand status %d", resp.StatusCode)
	}

	var out graphExpandResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		metrics.RetrievalRequests.WithLabelValues("graph", "error").Inc()
		return nil, err
	}
	metrics.RetrievalRequests.WithLabelValues("graph", "ok").Inc()

	evs := make([]Evidence, 0, len(out.Nodes))
	for _, n := range out.Nodes {
		evs = append(evs, Evidence{
			ID:       n.ID,
			Title:    n.Title,
			Excerpt:  n.Excerpt,
			Score:    n.Weight,
			Backend:  "graph",
			Metadata: n.Meta,
		})
	}
	metrics.EvidenceItems.WithLabelValues("graph").Observe(float64(len(evs)))
	return evs, nil
}
