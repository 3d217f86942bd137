package codex

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"strings"
	"time"
)

const (
	codexCommand = "codex"

	// DefaultModel is used when CODEX_MODEL is unset.
	DefaultModel = "gpt-5-codex"
)

var execCommandContext = exec.CommandContext

// Provider drives the Codex CLI in non-interactive mode and returns its final message.
type Provider struct {
	model   string
	apiKey  string
	baseURL string
	timeout time.Duration
}

// NewProvider creates a new Codex provider
func NewProvider(apiKey, baseURL, model string, timeout time.Duration) *Provider {
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return &Provider{
		model:   model,
		apiKey:  apiKey,
		baseURL: baseURL,
		timeout: timeout,
	}
}

// Name returns the provider name
func (p *Provider) Name() string {
	return "codex"
}

// Complete runs `codex exec` read-only in a scratch directory and returns stdout.
func (p *Provider) Complete(ctx context.Context, system, prompt string) (string, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	workDir, err := os.MkdirTemp("", "codex-")
	if err != nil {
		return "", fmt.Errorf("failed to create codex workdir: %w", err)
	}
	defer os.RemoveAll(workDir)

	fullPrompt := strings.TrimSpace(system + "\n\n" + prompt)
	args := []string{
		"exec",
		"-m", p.model,
		"--sandbox", "read-only",
		"--skip-git-repo-check",
		"-C", workDir,
		fullPrompt,
	}

	cmd := execCommandContext(ctx, codexCommand, args...)

	env := cmd.Env
	if env == nil {
		env = os.Environ()
	}
	if p.apiKey != "" {
		env = append(env, "OPENAI_API_KEY="+p.apiKey)
	}
	if p.baseURL != "" {
		env = append(env, "OPENAI_BASE_URL="+p.baseURL)
	}
	cmd.Env = env

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	log.Printf("[Codex] Executing: codex exec -m %s --sandbox read-only (prompt length: %d characters)", p.model, len(fullPrompt))

	startTime := time.Now()
	if err := cmd.Run(); err != nil {
		duration := time.Since(startTime)
		log.Printf("[Codex] Command failed after %v", duration)

		stderrText := strings.TrimSpace(stderr.String())
		if stderrText == "" {
			stderrText = err.Error()
		}

		if ctx.Err() == context.DeadlineExceeded {
			return "", fmt.Errorf("codex CLI timeout after %v: %s", duration, stderrText)
		}
		return "", fmt.Errorf("codex CLI error: %s", stderrText)
	}

	output := strings.TrimSpace(stdout.String())
	log.Printf("[Codex] Command completed in %v, output length: %d bytes", time.Since(startTime), len(output))
	if output == "" {
		return "", fmt.Errorf("codex CLI returned no output")
	}
	return output, nil
}
