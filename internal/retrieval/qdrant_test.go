package retrieval

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/NicholasJacob1990/iudex0-sub007/internal/config"
	"github.com/NicholasJacob1990/iudex0-sub007/internal/embeddings"
)

// newQdrantStub serves both the embedding endpoint and the Qdrant query
// and upsert endpoints so the searcher can run end to end.
func newQdrantStub(t *testing.T, capture *map[string]interface{}) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/embeddings", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Texts []string `json:"texts"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		embs := make([][]float64, len(req.Texts))
		for i := range embs {
			embs[i] = []float64{0.1, 0.2, 0.3}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"embeddings": embs,
			"dimensions": 3,
		})
	})
	mux.HandleFunc("/collections/legal_chunks/points/query", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if capture != nil {
			*capture = body
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": "ok",
			"result": map[string]any{
				"points": []map[string]any{
					{"id": "p1", "score": 0.91, "payload": map[string]any{
						"title":     "Lei 8.112/90",
						"excerpt":   "Art. 40. Vencimento é a retribuição pecuniária...",
						"tenant_id": "t1",
					}},
					{"id": "p2", "score": 0.74, "payload": map[string]any{
						"text":      "Súmula 473 do STF",
						"tenant_id": "t1",
					}},
				},
			},
		})
	})
	mux.HandleFunc("/collections/legal_chunks/points", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if capture != nil {
			*capture = body
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "ok"})
	})
	return httptest.NewServer(mux)
}

func newTestSearcher(t *testing.T, srv *httptest.Server) *QdrantSearcher {
	t.Helper()
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)

	logger := zaptest.NewLogger(t)
	embedder := embeddings.NewClient(embeddings.Config{
		BaseURL: srv.URL,
		Timeout: 2 * time.Second,
		MaxLRU:  8,
	}, logger)
	return NewQdrantSearcher(config.QdrantConfig{
		Enabled:    true,
		Host:       u.Hostname(),
		Port:       port,
		Collection: "legal_chunks",
		TopK:       5,
		Timeout:    2 * time.Second,
	}, embedder, logger)
}

func TestQdrantSearchAppliesTenantFilter(t *testing.T) {
	var captured map[string]interface{}
	srv := newQdrantStub(t, &captured)
	defer srv.Close()

	s := newTestSearcher(t, srv)
	out, err := s.SearchVector(context.Background(), Query{
		Text:     "vencimento de servidor público",
		TenantID: "t1",
		TopK:     5,
	})
	require.NoError(t, err)
	require.Len(t, out, 2)

	assert.Equal(t, "p1", out[0].ID)
	assert.Equal(t, "Lei 8.112/90", out[0].Title)
	assert.Equal(t, "qdrant", out[0].Backend)
	// Payload "text" backs the excerpt when "excerpt" is absent.
	assert.Equal(t, "Súmula 473 do STF", out[1].Excerpt)

	filter, ok := captured["filter"].(map[string]interface{})
	require.True(t, ok, "query must carry a tenant filter")
	must, ok := filter["must"].([]interface{})
	require.True(t, ok)
	cond := must[0].(map[string]interface{})
	assert.Equal(t, "tenant_id", cond["key"])
}

func TestQdrantSearchWithoutTenantOmitsFilter(t *testing.T) {
	var captured map[string]interface{}
	srv := newQdrantStub(t, &captured)
	defer srv.Close()

	s := newTestSearcher(t, srv)
	_, err := s.SearchVector(context.Background(), Query{Text: "consulta"})
	require.NoError(t, err)
	_, hasFilter := captured["filter"]
	assert.False(t, hasFilter)
}

func TestQdrantUpsert(t *testing.T) {
	var captured map[string]interface{}
	srv := newQdrantStub(t, &captured)
	defer srv.Close()

	s := newTestSearcher(t, srv)
	err := s.Upsert(context.Background(), []float32{0.1, 0.2, 0.3}, map[string]interface{}{
		"title":     "Lei 14.133/21",
		"tenant_id": "t1",
	})
	require.NoError(t, err)

	points, ok := captured["points"].([]interface{})
	require.True(t, ok)
	require.Len(t, points, 1)
	point := points[0].(map[string]interface{})
	assert.NotEmpty(t, point["id"])
	payload := point["payload"].(map[string]interface{})
	assert.Equal(t, "t1", payload["tenant_id"])
}
