package provider

import (
	"fmt"
	"time"

	"github.com/cexll/issuebot/internal/provider/codex"
	"github.com/cexll/issuebot/internal/provider/openai"
)

// Config contains provider configuration
type Config struct {
	// Provider name: "openai", "codex"
	Name string

	// OpenAI-compatible chat completion endpoint
	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string

	// Codex CLI
	CodexModel string

	// Timeout bounds a single completion call.
	Timeout time.Duration
}

// NewProvider creates a provider based on configuration
func NewProvider(cfg *Config) (Provider, error) {
	switch cfg.Name {
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("openai: OPENAI_API_KEY is required")
		}
		model := cfg.OpenAIModel
		if model == "" {
			model = openai.DefaultModel
		}
		return openai.NewProvider(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, model, cfg.Timeout), nil

	case "codex":
		model := cfg.CodexModel
		if model == "" {
			model = codex.DefaultModel
		}
		return codex.NewProvider(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, model, cfg.Timeout), nil

	default:
		return nil, fmt.Errorf("unknown provider: %s (supported: openai, codex)", cfg.Name)
	}
}
