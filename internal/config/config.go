// Package config loads issuebot settings from the environment and an optional config file.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/cexll/issuebot/internal/github"
	"github.com/cexll/issuebot/internal/provider"
)

// Config holds all configuration for issuebot
type Config struct {
	// Tracker settings
	Repo          string `mapstructure:"github_repo"`
	Token         string `mapstructure:"github_token"`
	AppID         string `mapstructure:"github_app_id"`
	PrivateKey    string `mapstructure:"github_private_key"`
	WebhookSecret string `mapstructure:"github_webhook_secret"`

	// Completion provider: "openai" or "codex"
	Provider      string `mapstructure:"provider"`
	OpenAIAPIKey  string `mapstructure:"openai_api_key"`
	OpenAIBaseURL string `mapstructure:"openai_base_url"`
	OpenAIModel   string `mapstructure:"openai_model"`
	CodexModel    string `mapstructure:"codex_model"`

	SlackWebhookURL string `mapstructure:"slack_webhook_url"`

	// Working copy
	RepoPath           string `mapstructure:"repo_path"`
	DefaultBranch      string `mapstructure:"default_branch"`
	GitRemote          string `mapstructure:"git_remote"`
	GitUserName        string `mapstructure:"git_user_name"`
	GitUserEmail       string `mapstructure:"git_user_email"`
	TargetPathTemplate string `mapstructure:"target_path_template"`
	PlaceholderOnEmpty bool   `mapstructure:"placeholder_on_empty"`

	// Timeouts, in seconds
	HTTPTimeoutSeconds       int `mapstructure:"http_timeout_seconds"`
	GitTimeoutSeconds        int `mapstructure:"git_timeout_seconds"`
	CompletionTimeoutSeconds int `mapstructure:"completion_timeout_seconds"`
	NotifyTimeoutSeconds     int `mapstructure:"notify_timeout_seconds"`

	Port int `mapstructure:"port"`
	// RunToken guards POST /runs; the route is off when empty.
	RunToken string `mapstructure:"run_token"`

	// Tracing
	Trace        bool   `mapstructure:"trace"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	OTLPInsecure bool   `mapstructure:"otlp_insecure"`
}

var defaults = map[string]any{
	"github_repo":                "",
	"github_token":               "",
	"github_app_id":              "",
	"github_private_key":         "",
	"github_webhook_secret":      "",
	"provider":                   "openai",
	"openai_api_key":             "",
	"openai_base_url":            "",
	"openai_model":               "gpt-4o-mini",
	"codex_model":                "gpt-5-codex",
	"slack_webhook_url":          "",
	"repo_path":                  ".",
	"default_branch":             "",
	"git_remote":                 "origin",
	"git_user_name":              "",
	"git_user_email":             "",
	"target_path_template":       "src/example_issue{id}.py",
	"placeholder_on_empty":       false,
	"http_timeout_seconds":       30,
	"git_timeout_seconds":        120,
	"completion_timeout_seconds": 120,
	"notify_timeout_seconds":     10,
	"port":                       8000,
	"run_token":                  "",
	"trace":                      false,
	"otlp_endpoint":              "",
	"otlp_insecure":              false,
}

// NewViper returns a viper instance with defaults registered and environment lookup enabled.
// Keys map to upper-case environment variables (github_repo => GITHUB_REPO).
func NewViper() *viper.Viper {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()
	return v
}

// Load reads configuration from v, reading configFile first when set.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.PrivateKey = normalizePrivateKey(cfg.PrivateKey)
	cfg.Provider = strings.ToLower(strings.TrimSpace(cfg.Provider))

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func normalizePrivateKey(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}

	if strings.HasPrefix(trimmed, "\"") && strings.HasSuffix(trimmed, "\"") {
		trimmed = strings.TrimPrefix(trimmed, "\"")
		trimmed = strings.TrimSuffix(trimmed, "\"")
	}
	if strings.HasPrefix(trimmed, "'") && strings.HasSuffix(trimmed, "'") {
		trimmed = strings.TrimPrefix(trimmed, "'")
		trimmed = strings.TrimSuffix(trimmed, "'")
	}

	trimmed = strings.ReplaceAll(trimmed, "\r\n", "\n")
	trimmed = strings.ReplaceAll(trimmed, "\r", "\n")
	if strings.Contains(trimmed, "\\n") {
		trimmed = strings.ReplaceAll(trimmed, "\\r", "")
		trimmed = strings.ReplaceAll(trimmed, "\\n", "\n")
	}

	return trimmed
}

// validate reports every missing or invalid setting at once
func (c *Config) validate() error {
	var errs []error

	if c.Repo == "" {
		errs = append(errs, errors.New("GITHUB_REPO is required"))
	} else if _, _, err := github.ParseRepo(c.Repo); err != nil {
		errs = append(errs, fmt.Errorf("GITHUB_REPO: %w", err))
	}

	if c.Token == "" {
		switch {
		case c.AppID == "" && c.PrivateKey == "":
			errs = append(errs, errors.New("GITHUB_TOKEN or GITHUB_APP_ID with GITHUB_PRIVATE_KEY is required"))
		case c.AppID == "":
			errs = append(errs, errors.New("GITHUB_APP_ID is required when GITHUB_PRIVATE_KEY is set"))
		case c.PrivateKey == "":
			errs = append(errs, errors.New("GITHUB_PRIVATE_KEY is required when GITHUB_APP_ID is set"))
		}
	}

	switch c.Provider {
	case "openai":
		if c.OpenAIAPIKey == "" {
			errs = append(errs, errors.New("OPENAI_API_KEY is required for openai provider"))
		}
	case "codex":
	default:
		errs = append(errs, fmt.Errorf("invalid provider: %s (must be 'openai' or 'codex')", c.Provider))
	}

	if !strings.Contains(c.TargetPathTemplate, "{id}") {
		errs = append(errs, errors.New("TARGET_PATH_TEMPLATE must contain {id}"))
	}

	for name, value := range map[string]int{
		"HTTP_TIMEOUT_SECONDS":       c.HTTPTimeoutSeconds,
		"GIT_TIMEOUT_SECONDS":        c.GitTimeoutSeconds,
		"COMPLETION_TIMEOUT_SECONDS": c.CompletionTimeoutSeconds,
		"NOTIFY_TIMEOUT_SECONDS":     c.NotifyTimeoutSeconds,
	} {
		if value <= 0 {
			errs = append(errs, fmt.Errorf("%s must be greater than 0", name))
		}
	}
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT must be between 1 and 65535"))
	}

	return errors.Join(errs...)
}

// TokenSource picks the tracker credential; a bearer token wins over App credentials.
func (c *Config) TokenSource() github.TokenSource {
	if c.Token != "" {
		return github.StaticToken(c.Token)
	}
	return github.NewAppAuth(c.AppID, c.PrivateKey, c.Repo)
}

// ProviderConfig returns the completion provider settings.
func (c *Config) ProviderConfig() *provider.Config {
	return &provider.Config{
		Name:          c.Provider,
		OpenAIAPIKey:  c.OpenAIAPIKey,
		OpenAIBaseURL: c.OpenAIBaseURL,
		OpenAIModel:   c.OpenAIModel,
		CodexModel:    c.CodexModel,
		Timeout:       c.CompletionTimeout(),
	}
}

func (c *Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutSeconds) * time.Second
}

func (c *Config) GitTimeout() time.Duration {
	return time.Duration(c.GitTimeoutSeconds) * time.Second
}

func (c *Config) CompletionTimeout() time.Duration {
	return time.Duration(c.CompletionTimeoutSeconds) * time.Second
}

func (c *Config) NotifyTimeout() time.Duration {
	return time.Duration(c.NotifyTimeoutSeconds) * time.Second
}
