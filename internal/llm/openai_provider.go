package llm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIProvider calls the OpenAI chat completion API.
type OpenAIProvider struct {
	name   string
	client *openai.Client
	model  string
}

// NewOpenAIProvider builds a provider from an API key environment variable.
func NewOpenAIProvider(name, model, apiKeyEnv string) (*OpenAIProvider, error) {
	if apiKeyEnv == "" {
		apiKeyEnv = "OPENAI_API_KEY"
	}
	apiKey := os.Getenv(apiKeyEnv)
	if apiKey == "" {
		return nil, fmt.Errorf("%s environment variable not set", apiKeyEnv)
	}
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAIProvider{
		name:   name,
		client: openai.NewClient(apiKey),
		model:  model,
	}, nil
}

func (p *OpenAIProvider) Name() string { return p.name }

// Complete runs a chat completion and maps API failures onto provider errors.
func (p *OpenAIProvider) Complete(ctx context.Context, req Request) (*Response, error) {
	model := req.Model
	if model == "" {
		model = p.model
	}

	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Prompt,
	})

	apiReq := openai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		Temperature: float32(req.Temperature),
	}
	if req.MaxTokens > 0 {
		apiReq.MaxCompletionTokens = req.MaxTokens
	}

	start := time.Now()
	resp, err := p.client.CreateChatCompletion(ctx, apiReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, &ProviderTimeout{Provider: p.name}
		}
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return nil, &ProviderError{Provider: p.name, Status: apiErr.HTTPStatusCode, Message: apiErr.Message}
		}
		return nil, &ProviderError{Provider: p.name, Message: err.Error()}
	}
	if len(resp.Choices) == 0 {
		return nil, &ProviderError{Provider: p.name, Message: "no choices returned"}
	}

	return &Response{
		Text:       resp.Choices[0].Message.Content,
		Model:      resp.Model,
		Provider:   p.name,
		TokensUsed: resp.Usage.TotalTokens,
		Latency:    time.Since(start),
	}, nil
}
