package openai

import (
	"context"
	"fmt"
	"log"
	"math"
	"net/http"
	"time"

	goopenai "github.com/sashabaranov/go-openai"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gpt-4o-mini"

// Provider implements the completion interface against any OpenAI-compatible
// chat completion endpoint.
type Provider struct {
	client *goopenai.Client
	model  string
}

// NewProvider creates a new OpenAI provider. An empty baseURL keeps the public API.
func NewProvider(apiKey, baseURL, model string, timeout time.Duration) *Provider {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}

	cfg := goopenai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	cfg.HTTPClient = &http.Client{Timeout: timeout}

	return &Provider{
		client: goopenai.NewClientWithConfig(cfg),
		model:  model,
	}
}

// Name returns the provider name
func (p *Provider) Name() string {
	return "openai"
}

// Complete runs a single deterministic chat completion.
func (p *Provider) Complete(ctx context.Context, system, prompt string) (string, error) {
	log.Printf("[OpenAI] Requesting completion (model: %s, prompt length: %d chars)", p.model, len(prompt))

	startTime := time.Now()
	resp, err := p.client.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model: p.model,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleSystem, Content: system},
			{Role: goopenai.ChatMessageRoleUser, Content: prompt},
		},
		// A literal zero is dropped by omitempty and the server would fall back to 1.
		Temperature: math.SmallestNonzeroFloat32,
	})
	if err != nil {
		return "", fmt.Errorf("openai completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai completion returned no choices")
	}

	content := resp.Choices[0].Message.Content
	log.Printf("[OpenAI] Completion finished in %v, response length: %d characters", time.Since(startTime), len(content))
	return content, nil
}
