// Package ai provides chat replies through external text-generation
// providers with fallback between them.
package ai

import "context"

// Provider is a text-generation backend.
type Provider interface {
	// Name identifies the provider in logs and metrics.
	Name() string

	// Complete generates a reply to the prompt.
	Complete(ctx context.Context, prompt string) (string, error)
}
