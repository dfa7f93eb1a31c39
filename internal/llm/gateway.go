package llm

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/NicholasJacob1990/iudex0-sub007/internal/config"
	"github.com/NicholasJacob1990/iudex0-sub007/internal/metrics"
)

// Gateway fronts an ordered chain of providers. Each call tries providers
// in configuration order; a failure falls through to the next one. Per
// provider rate limits are enforced before the call is made.
type Gateway struct {
	providers []Provider
	limiters  map[string]*rate.Limiter
	logger    *zap.Logger
}

// NewGateway builds the provider chain from configuration. Providers that
// fail to initialize (missing API keys) are skipped with a warning so a
// partially configured deployment still comes up.
func NewGateway(cfg config.LLMConfig, logger *zap.Logger) (*Gateway, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	g := &Gateway{limiters: make(map[string]*rate.Limiter), logger: logger}

	for _, pc := range cfg.Providers {
		var (
			p   Provider
			err error
		)
		switch pc.Kind {
		case "openai":
			p, err = NewOpenAIProvider(pc.Name, pc.Model, pc.APIKeyEnv)
		case "http":
			p = NewHTTPProvider(pc.Name, pc.BaseURL, pc.Model, pc.Timeout)
		default:
			err = fmt.Errorf("unknown provider kind %q", pc.Kind)
		}
		if err != nil {
			logger.Warn("Skipping provider",
				zap.String("provider", pc.Name),
				zap.Error(err),
			)
			continue
		}
		g.providers = append(g.providers, p)
		if pc.RPS > 0 {
			g.limiters[pc.Name] = rate.NewLimiter(rate.Limit(pc.RPS), 1)
		}
	}
	if len(g.providers) == 0 {
		return nil, ErrNoProviders
	}
	return g, nil
}

// NewGatewayWithProviders wires an explicit chain, used by tests and by
// callers that construct providers themselves.
func NewGatewayWithProviders(logger *zap.Logger, providers ...Provider) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gateway{
		providers: providers,
		limiters:  make(map[string]*rate.Limiter),
		logger:    logger,
	}
}

// Providers returns the names of the configured chain in order.
func (g *Gateway) Providers() []string {
	names := make([]string, len(g.providers))
	for i, p := range g.providers {
		names[i] = p.Name()
	}
	return names
}

// Complete tries each provider in order until one succeeds.
func (g *Gateway) Complete(ctx context.Context, req Request) (*Response, error) {
	if len(g.providers) == 0 {
		return nil, ErrNoProviders
	}

	var lastErr error
	for i, p := range g.providers {
		if lim, ok := g.limiters[p.Name()]; ok {
			if err := lim.Wait(ctx); err != nil {
				return nil, err
			}
		}

		resp, err := p.Complete(ctx, req)
		if err == nil {
			metrics.ProviderCalls.WithLabelValues(p.Name(), "success").Inc()
			metrics.ProviderLatency.WithLabelValues(p.Name()).Observe(resp.Latency.Seconds())
			return resp, nil
		}

		metrics.ProviderCalls.WithLabelValues(p.Name(), "error").Inc()
		lastErr = err

		// Honor caller cancellation instead of walking the chain.
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		if i+1 < len(g.providers) {
			next := g.providers[i+1].Name()
			metrics.ProviderFallbacks.WithLabelValues(p.Name(), next).Inc()
			g.logger.Warn("Provider failed, falling through",
				zap.String("provider", p.Name()),
				zap.String("next", next),
				zap.Error(err),
			)
		}
	}
	if lastErr == nil {
		lastErr = ErrNoProviders
	}
	return nil, fmt.Errorf("all providers failed: %w", lastErr)
}

// CompleteJSON runs a completion and parses the first JSON object from
// the result into out.
func (g *Gateway) CompleteJSON(ctx context.Context, req Request, out interface{}) error {
	resp, err := g.Complete(ctx, req)
	if err != nil {
		return err
	}
	if err := ExtractJSON(resp.Text, out); err != nil {
		return fmt.Errorf("parse completion from %s: %w", resp.Provider, err)
	}
	return nil
}

// IsTerminal reports whether err is a provider error not worth retrying.
func IsTerminal(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.Terminal()
}
