package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/NicholasJacob1990/iudex0-sub007/internal/metrics"
	"github.com/NicholasJacob1990/iudex0-sub007/internal/tracing"
)

// Client generates embeddings through the embedding service with a
// two-level cache (in-process LRU, then Redis).
type Client struct {
	cfg   Config
	http  *http.Client
	cache Cache
	lru   *LocalLRU
}

// NewClient builds an embedding client. The Redis cache layer is optional
// and skipped with a warning when unreachable.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "text-embedding-3-small"
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = time.Hour
	}
	if cfg.MaxLRU == 0 {
		cfg.MaxLRU = 2048
	}

	var cache Cache
	if cfg.EnableRedis && cfg.RedisAddr != "" {
		rc, err := NewRedisCache(cfg.RedisAddr, logger)
		if err != nil {
			if logger != nil {
				logger.Warn("Embedding Redis cache unavailable, using LRU only",
					zap.String("addr", cfg.RedisAddr),
					zap.Error(err),
				)
			}
		} else {
			cache = rc
		}
	}

	return &Client{
		cfg:   cfg,
		http:  &http.Client{Timeout: cfg.Timeout},
		cache: cache,
		lru:   NewLocalLRU(cfg.MaxLRU),
	}
}

type embedRequest struct {
	Texts []string `json:"texts"`
	Model string   `json:"model"`
}

type embedResponse struct {
	Embeddings [][]float64 `json:"embeddings"`
	Dimensions int         `json:"dimensions"`
	ModelUsed  string      `json:"model_used"`
}

// Embed returns the vector for a single text.
func (c *Client) Embed(ctx context.Context, text string, model string) ([]float32, error) {
	if c == nil {
		return nil, fmt.Errorf("embedding client not initialized")
	}
	m := model
	if m == "" {
		m = c.cfg.DefaultModel
	}
	key := MakeKey(m, text)

	if v, ok := c.lru.Get(ctx, key); ok {
		metrics.EmbeddingRequests.WithLabelValues(m, "lru_hit").Inc()
		return v, nil
	}
	if c.cache != nil {
		if v, ok := c.cache.Get(ctx, key); ok {
			c.lru.Set(ctx, key, v, 30*time.Minute)
			metrics.EmbeddingRequests.WithLabelValues(m, "cache_hit").Inc()
			return v, nil
		}
	}

	vecs, err := c.fetch(ctx, []string{text}, m)
	if err != nil {
		return nil, err
	}
	out := vecs[0]

	c.lru.Set(ctx, key, out, 30*time.Minute)
	if c.cache != nil {
		c.cache.Set(ctx, key, out, c.cfg.CacheTTL)
	}
	return out, nil
}

// EmbedBatch embeds multiple texts in one request, serving cached entries
// locally and fetching only the misses.
func (c *Client) EmbedBatch(ctx context.Context, texts []string, model string) ([][]float32, error) {
	if c == nil {
		return nil, fmt.Errorf("embedding client not initialized")
	}
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	m := model
	if m == "" {
		m = c.cfg.DefaultModel
	}

	results := make([][]float32, len(texts))
	var missTexts []string
	var missIdx []int

	for i, text := range texts {
		key := MakeKey(m, text)
		if v, ok := c.lru.Get(ctx, key); ok {
			results[i] = v
			metrics.EmbeddingRequests.WithLabelValues(m, "lru_hit").Inc()
			continue
		}
		if c.cache != nil {
			if v, ok := c.cache.Get(ctx, key); ok {
				results[i] = v
				c.lru.Set(ctx, key, v, 30*time.Minute)
				metrics.EmbeddingRequests.WithLabelValues(m, "cache_hit").Inc()
				continue
			}
		}
		missTexts = append(missTexts, text)
		missIdx = append(missIdx, i)
	}

	if len(missTexts) == 0 {
		return results, nil
	}

	vecs, err := c.fetch(ctx, missTexts, m)
	if err != nil {
		return nil, err
	}
	for i, v := range vecs {
		results[missIdx[i]] = v
		key := MakeKey(m, missTexts[i])
		c.lru.Set(ctx, key, v, 30*time.Minute)
		if c.cache != nil {
			c.cache.Set(ctx, key, v, c.cfg.CacheTTL)
		}
	}
	return results, nil
}

func (c *Client) fetch(ctx context.Context, texts []string, model string) ([][]float32, error) {
	start := time.Now()
	url := fmt.Sprintf("%s/embeddings", c.cfg.BaseURL)

	ctx, span := tracing.StartHTTPSpan(ctx, "POST", url)
	defer span.End()

	buf, _ := json.Marshal(embedRequest{Texts: texts, Model: model})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(buf))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	tracing.InjectTraceparent(ctx, req)

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.EmbeddingRequests.WithLabelValues(model, "error").Inc()
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		metrics.EmbeddingRequests.WithLabelValues(model, "error").Inc()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("embedding service returned %d: %s", resp.StatusCode, string(body))
	}

	var er embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		metrics.EmbeddingRequests.WithLabelValues(model, "error").Inc()
		return nil, err
	}
	if len(er.Embeddings) != len(texts) {
		metrics.EmbeddingRequests.WithLabelValues(model, "error").Inc()
		return nil, fmt.Errorf("embedding service returned %d embeddings for %d texts", len(er.Embeddings), len(texts))
	}

	out := make([][]float32, len(er.Embeddings))
	for i, emb := range er.Embeddings {
		vec := make([]float32, len(emb))
		for j, f := range emb {
			vec[j] = float32(f)
		}
		out[i] = vec
	}

	metrics.EmbeddingRequests.WithLabelValues(model, "ok").Inc()
	metrics.EmbeddingLatency.WithLabelValues(model).Observe(time.Since(start).Seconds())
	return out, nil
}
