package codex

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"
)

func TestNewProvider_Name(t *testing.T) {
	provider := NewProvider("", "", "gpt-5-codex", 0)
	if provider.Name() != "codex" {
		t.Fatalf("Name() = %s, want codex", provider.Name())
	}
}

func stubExec(t *testing.T, mode string) {
	t.Helper()
	originalExec := execCommandContext
	t.Cleanup(func() { execCommandContext = originalExec })

	execCommandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		cmdArgs := []string{"-test.run=TestCodexHelperProcess", "--", name}
		cmdArgs = append(cmdArgs, args...)
		cmd := exec.CommandContext(ctx, os.Args[0], cmdArgs...)
		cmd.Env = append(os.Environ(), "GO_WANT_CODEX_HELPER="+mode)
		return cmd
	}
}

func TestProvider_Complete(t *testing.T) {
	stubExec(t, "ok")

	provider := NewProvider("sk-test", "", "test-model", time.Minute)
	got, err := provider.Complete(context.Background(), "You are a senior Python developer.", "Write hello world")
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if got != "print('hello')" {
		t.Errorf("Complete() = %q, want %q", got, "print('hello')")
	}
}

func TestProvider_CompleteFailure(t *testing.T) {
	stubExec(t, "fail")

	provider := NewProvider("", "", "test-model", time.Minute)
	_, err := provider.Complete(context.Background(), "sys", "prompt")
	if err == nil {
		t.Fatal("Complete() expected error")
	}
	if !strings.Contains(err.Error(), "codex CLI error: quota exceeded") {
		t.Errorf("error = %v, want codex CLI error with stderr", err)
	}
}

func TestProvider_CompleteEmptyOutput(t *testing.T) {
	stubExec(t, "empty")

	_, err := NewProvider("", "", "test-model", time.Minute).Complete(context.Background(), "sys", "prompt")
	if err == nil || !strings.Contains(err.Error(), "no output") {
		t.Fatalf("Complete() error = %v, want no output error", err)
	}
}

func TestProvider_CompleteKeepsCommandEnvironment(t *testing.T) {
	originalExec := execCommandContext
	t.Cleanup(func() { execCommandContext = originalExec })
	execCommandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		cmdArgs := append([]string{"-test.run=TestCodexHelperProcess", "--", name}, args...)
		cmd := exec.CommandContext(ctx, os.Args[0], cmdArgs...)
		cmd.Env = append(os.Environ(), "GO_WANT_CODEX_HELPER=env", "CODEX_TEST_MARKER=kept")
		return cmd
	}

	got, err := NewProvider("sk-test", "https://llm.internal/v1", "test-model", time.Minute).
		Complete(context.Background(), "sys", "prompt")
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if got != "kept|https://llm.internal/v1" {
		t.Errorf("Complete() = %q, want command env kept and base URL forwarded", got)
	}
}

func TestCodexHelperProcess(t *testing.T) {
	mode := os.Getenv("GO_WANT_CODEX_HELPER")
	if mode == "" {
		return
	}
	defer os.Exit(0)

	args := os.Args
	idx := -1
	for i, arg := range args {
		if arg == "--" {
			idx = i
			break
		}
	}
	if idx == -1 || idx+1 >= len(args) || args[idx+1] != codexCommand {
		fmt.Fprintf(os.Stderr, "unexpected command: %v", args)
		os.Exit(1)
	}
	rest := args[idx+2:]

	switch mode {
	case "fail":
		fmt.Fprint(os.Stderr, "quota exceeded")
		os.Exit(1)
	case "empty":
		return
	case "env":
		fmt.Fprintf(os.Stdout, "%s|%s", os.Getenv("CODEX_TEST_MARKER"), os.Getenv("OPENAI_BASE_URL"))
		return
	}

	want := []string{"exec", "-m", "test-model", "--sandbox", "read-only", "--skip-git-repo-check", "-C"}
	if len(rest) != len(want)+2 {
		fmt.Fprintf(os.Stderr, "unexpected args: %v", rest)
		os.Exit(1)
	}
	for i, w := range want {
		if rest[i] != w {
			fmt.Fprintf(os.Stderr, "arg %d = %s, want %s", i, rest[i], w)
			os.Exit(1)
		}
	}
	prompt := rest[len(rest)-1]
	if !strings.HasPrefix(prompt, "You are a senior Python developer.\n\n") {
		fmt.Fprintf(os.Stderr, "system instruction missing from prompt: %q", prompt)
		os.Exit(1)
	}
	if os.Getenv("OPENAI_API_KEY") != "sk-test" {
		fmt.Fprint(os.Stderr, "OPENAI_API_KEY not forwarded")
		os.Exit(1)
	}

	fmt.Fprintln(os.Stdout, "print('hello')")
}
