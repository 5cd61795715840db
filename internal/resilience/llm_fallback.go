package resilience

import (
	"context"

	"github.com/voxos-ai/voxos/pkg/provider/llm"
)

// LLMFallback implements [llm.Provider] with automatic failover across
// multiple model backends. Each backend has its own circuit breaker; when
// the primary fails or its breaker is open, the next healthy fallback is
// tried. Typical wiring is a native Ollama primary with an any-llm-go
// fallback.
type LLMFallback struct {
	group *FallbackGroup[llm.Provider]
}

// Compile-time interface assertion.
var _ llm.Provider = (*LLMFallback)(nil)

// NewLLMFallback creates an [LLMFallback] with primary as the preferred
// backend.
func NewLLMFallback(primary llm.Provider, primaryName string, cfg FallbackConfig) *LLMFallback {
	return &LLMFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional model backend as a fallback.
func (f *LLMFallback) AddFallback(name string, provider llm.Provider) {
	f.group.AddFallback(name, provider)
}

// Complete sends the request to the first healthy backend and returns its
// reply text.
func (f *LLMFallback) Complete(ctx context.Context, req llm.CompletionRequest) (string, error) {
	return ExecuteWithResult(f.group, func(p llm.Provider) (string, error) {
		return p.Complete(ctx, req)
	})
}

// StreamCompletion sends the request to the first healthy backend and
// returns its chunk channel. Only the initial connection attempt is covered
// by failover; once a stream is established, mid-stream errors are the
// caller's responsibility.
func (f *LLMFallback) StreamCompletion(ctx context.Context, req llm.CompletionRequest) (<-chan llm.Chunk, error) {
	return ExecuteWithResult(f.group, func(p llm.Provider) (<-chan llm.Chunk, error) {
		return p.StreamCompletion(ctx, req)
	})
}

// Models lists models from the first backend that can enumerate them.
// Listing bypasses the circuit breakers: a backend that merely cannot
// enumerate models ([llm.ErrNoModelListing]) is still healthy for
// completions.
func (f *LLMFallback) Models(ctx context.Context) ([]string, error) {
	var lastErr error = llm.ErrNoModelListing
	for i := range f.group.entries {
		models, err := f.group.entries[i].value.Models(ctx)
		if err == nil {
			return models, nil
		}
		lastErr = err
	}
	return nil, lastErr
}
