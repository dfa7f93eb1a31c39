package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"
)

func TestManagerReadiness(t *testing.T) {
	m := NewManager(zaptest.NewLogger(t))
	m.Register("redis", true, func(ctx context.Context) error { return nil })
	m.Register("lexical", false, func(ctx context.Context) error { return errors.New("down") })

	assert.True(t, m.IsReady(context.Background()))

	m.Register("temporal", true, func(ctx context.Context) error { return errors.New("unreachable") })
	assert.False(t, m.IsReady(context.Background()))
}

func TestHealthEndpoint(t *testing.T) {
	logger := zaptest.NewLogger(t)
	m := NewManager(logger)
	m.Register("redis", true, func(ctx context.Context) error { return nil })

	mux := http.NewServeMux()
	NewHTTPHandler(m, logger).RegisterRoutes(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	m.Register("postgres", true, func(ctx context.Context) error { return errors.New("no route") })
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
