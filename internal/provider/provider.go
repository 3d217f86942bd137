package provider

import "context"

// Provider is the interface that all completion backends must implement
type Provider interface {
	// Complete sends one system instruction and one task prompt and returns the raw reply text
	Complete(ctx context.Context, system, prompt string) (string, error)

	// Name returns the provider name
	Name() string
}
