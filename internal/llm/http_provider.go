package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/NicholasJacob1990/iudex0-sub007/internal/tracing"
)

// HTTPProvider talks to an internal model service over JSON HTTP.
// The service exposes POST {base}/api/complete.
type HTTPProvider struct {
	name    string
	baseURL string
	model   string
	client  *http.Client
}

// NewHTTPProvider creates a provider against an internal model service.
func NewHTTPProvider(name, baseURL, model string, timeout time.Duration) *HTTPProvider {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPProvider{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		client:  &http.Client{Timeout: timeout},
	}
}

func (p *HTTPProvider) Name() string { return p.name }

type httpCompletionResponse struct {
	Completion string `json:"completion"`
	Model      string `json:"model"`
	TokensUsed int    `json:"tokens_used"`
}

// Complete sends the request to the model service and decodes the completion.
func (p *HTTPProvider) Complete(ctx context.Context, req Request) (*Response, error) {
	if req.Model == "" {
		req.Model = p.model
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, &ProviderError{Provider: p.name, Message: fmt.Sprintf("encode request: %v", err)}
	}

	url := p.baseURL + "/api/complete"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, &ProviderError{Provider: p.name, Message: err.Error()}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if req.AgentID != "" {
		httpReq.Header.Set("X-Agent-ID", req.AgentID)
	}
	tracing.InjectTraceparent(ctx, httpReq)

	start := time.Now()
	resp, err := p.client.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return nil, &ProviderTimeout{Provider: p.name}
		}
		return nil, &ProviderError{Provider: p.name, Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, &ProviderError{Provider: p.name, Status: resp.StatusCode, Message: strings.TrimSpace(string(msg))}
	}

	var out httpCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &ProviderError{Provider: p.name, Message: fmt.Sprintf("decode response: %v", err)}
	}
	model := out.Model
	if model == "" {
		model = req.Model
	}
	return &Response{
		Text:       out.Completion,
		Model:      model,
		Provider:   p.name,
		TokensUsed: out.TokensUsed,
		Latency:    time.Since(start),
	}, nil
}

func isTimeout(err error) bool {
	type timeouter interface{ Timeout() bool }
	var te timeouter
	return errors.As(err, &te) && te.Timeout()
}
