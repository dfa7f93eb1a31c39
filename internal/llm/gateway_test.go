package llm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeProvider struct {
	name  string
	text  string
	err   error
	calls int
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Complete(ctx context.Context, req Request) (*Response, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &Response{Text: f.text, Provider: f.name, Model: "fake", Latency: time.Millisecond}, nil
}

func TestGatewayFallsThroughOnError(t *testing.T) {
	primary := &fakeProvider{name: "primary", err: &ProviderError{Provider: "primary", Status: 503, Message: "down"}}
	backup := &fakeProvider{name: "backup", text: "ok"}
	g := NewGatewayWithProviders(zaptest.NewLogger(t), primary, backup)

	resp, err := g.Complete(context.Background(), Request{Prompt: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Text)
	assert.Equal(t, "backup", resp.Provider)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 1, backup.calls)
}

func TestGatewayAllProvidersFail(t *testing.T) {
	a := &fakeProvider{name: "a", err: &ProviderTimeout{Provider: "a"}}
	b := &fakeProvider{name: "b", err: &ProviderError{Provider: "b", Status: 500, Message: "boom"}}
	g := NewGatewayWithProviders(zaptest.NewLogger(t), a, b)

	_, err := g.Complete(context.Background(), Request{Prompt: "hello"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all providers failed")
}

func TestGatewayHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	failing := &fakeProvider{name: "failing", err: &ProviderError{Provider: "failing", Status: 500, Message: "boom"}}
	backup := &fakeProvider{name: "backup", text: "should not run"}
	g := NewGatewayWithProviders(zaptest.NewLogger(t), &cancelOnCall{inner: failing, cancel: cancel}, backup)

	_, err := g.Complete(ctx, Request{Prompt: "hello"})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, backup.calls)
}

type cancelOnCall struct {
	inner  *fakeProvider
	cancel context.CancelFunc
}

func (c *cancelOnCall) Name() string { return c.inner.name }

func (c *cancelOnCall) Complete(ctx context.Context, req Request) (*Response, error) {
	c.cancel()
	return c.inner.Complete(ctx, req)
}

func TestExtractJSON(t *testing.T) {
	var out struct {
		Score float64 `json:"score"`
		Label string  `json:"label"`
	}

	err := ExtractJSON("Here is the result:\n```json\n{\"score\": 0.8, \"label\": \"ok\"}\n```\n", &out)
	require.NoError(t, err)
	assert.Equal(t, 0.8, out.Score)
	assert.Equal(t, "ok", out.Label)

	err = ExtractJSON("no json here", &out)
	assert.Error(t, err)
}

func TestProviderErrorTerminal(t *testing.T) {
	assert.True(t, (&ProviderError{Status: 400}).Terminal())
	assert.True(t, (&ProviderError{Status: 401}).Terminal())
	assert.False(t, (&ProviderError{Status: 429}).Terminal())
	assert.False(t, (&ProviderError{Status: 500}).Terminal())
	assert.False(t, (&ProviderError{Status: 0}).Terminal())
	assert.False(t, IsTerminal(&ProviderTimeout{Provider: "x"}))
	assert.True(t, IsTerminal(&ProviderError{Status: 404}))
}
