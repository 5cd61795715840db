// Package llm defines the Provider interface for the language model backends
// voxos can talk to.
//
// A provider wraps a model API (a local Ollama instance by default, or any
// backend supported by any-llm-go) and exposes a uniform surface for the
// command pipeline: one-shot completion, incremental streaming, and model
// listing. Implementors must be safe for concurrent use and must close the
// channel returned by StreamCompletion when the stream ends or the supplied
// context is cancelled.
package llm

import (
	"context"
	"errors"
)

// ErrNoModelListing is returned by Models for backends that cannot enumerate
// their available models.
var ErrNoModelListing = errors.New("llm: backend does not support model listing")

// Message is a single entry of the conversation sent to the model.
type Message struct {
	// Role is one of "system", "user", or "assistant".
	Role string

	// Content is the text content of the message.
	Content string
}

// CompletionRequest carries everything the model needs for one reply.
type CompletionRequest struct {
	// Model selects the model by name. Empty means the provider default.
	Model string

	// Messages is the ordered conversation history; the final message is the
	// new user utterance.
	Messages []Message

	// SystemPrompt is injected before the history. It carries the capability
	// catalog, the state context, and the response contract.
	SystemPrompt string

	// Temperature controls output randomness. Zero means provider default.
	Temperature float64
}

// Chunk is one increment of a streamed reply.
type Chunk struct {
	// Text is the incremental reply text. May be empty on the final chunk.
	Text string

	// Done is set on the final chunk of a successful stream.
	Done bool

	// Err is set instead of Text when the stream fails mid-flight. A chunk
	// carrying Err is always the last one before the channel closes.
	Err error
}

// Provider is the abstraction over a model backend.
type Provider interface {
	// Complete sends req and waits for the full reply text.
	Complete(ctx context.Context, req CompletionRequest) (string, error)

	// StreamCompletion sends req and returns a channel of reply increments.
	// The channel is closed after the Done (or Err) chunk, or as soon as ctx
	// is cancelled. Callers must drain the channel.
	StreamCompletion(ctx context.Context, req CompletionRequest) (<-chan Chunk, error)

	// Models lists the model names available at the endpoint, or
	// [ErrNoModelListing].
	Models(ctx context.Context) ([]string, error)
}
