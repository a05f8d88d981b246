// Package generation drives a single itinerary generation: it renders the
// prompt, calls the configured LLM provider, relays the accumulated text as
// it streams, validates the final document and hands it to the store.
package generation

import "context"

// Provider is a chat-completion backend.
//
// Stream returns a content channel carrying text deltas and an error channel
// carrying at most one error. Both are closed when the provider is done; the
// error channel is closed first, so a receiver that has seen content close
// can read the error without blocking. A provider stops sending when ctx is
// cancelled.
type Provider interface {
	Name() string
	Complete(ctx context.Context, system, user string) (string, error)
	Stream(ctx context.Context, system, user string) (<-chan string, <-chan error)
}

const (
	temperature = 0.7
	// contentBuffer lets a provider run slightly ahead of a slow consumer.
	contentBuffer = 100
)
