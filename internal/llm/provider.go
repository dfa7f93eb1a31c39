package llm

import (
	"context"
	"time"
)

// Request is a single completion request against a model provider.
type Request struct {
	System      string  `json:"system,omitempty"`
	Prompt      string  `json:"prompt"`
	Model       string  `json:"model,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
	Temperature float64 `json:"temperature"`
	AgentID     string  `json:"agent_id,omitempty"`
}

// Response carries the completion text plus provider accounting.
type Response struct {
	Text       string        `json:"text"`
	Model      string        `json:"model"`
	Provider   string        `json:"provider"`
	TokensUsed int           `json:"tokens_used"`
	Latency    time.Duration `json:"-"`
}

// Provider is a single model backend. Implementations must honor the
// context deadline and return ProviderError/ProviderTimeout so the
// gateway can decide whether to fall through.
type Provider interface {
	Name() string
	Complete(ctx context.Context, req Request) (*Response, error)
}
