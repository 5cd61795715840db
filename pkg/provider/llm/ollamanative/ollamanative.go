// Package ollamanative implements [llm.Provider] against a local Ollama
// endpoint using the raw /api/chat NDJSON stream.
//
// Unlike SDK-level clients, this provider consumes the chunked response body
// itself and reconstructs the reply with a [stream.Assembler], so a
// connection that drops before the protocol's done marker surfaces as
// [stream.ErrIncomplete] rather than a silently truncated reply. Model
// listing goes through the official client from github.com/ollama/ollama/api.
package ollamanative

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	ollama "github.com/ollama/ollama/api"

	"github.com/voxos-ai/voxos/internal/stream"
	"github.com/voxos-ai/voxos/pkg/provider/llm"
)

// DefaultBaseURL is the standard local Ollama address.
const DefaultBaseURL = "http://localhost:11434"

// Provider talks to one Ollama endpoint. Safe for concurrent use.
type Provider struct {
	baseURL    string
	model      string
	httpClient *http.Client
	listClient *ollama.Client
}

// New creates a Provider for the endpoint at baseURL (DefaultBaseURL when
// empty) using model as the default model. Request deadlines are supplied by
// the caller's context, not by the HTTP client, so streamed replies are not
// cut off by a fixed client timeout.
func New(baseURL, model string) (*Provider, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("ollamanative: invalid base URL %q: %w", baseURL, err)
	}

	httpClient := &http.Client{}
	return &Provider{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: httpClient,
		listClient: ollama.NewClient(u, httpClient),
	}, nil
}

// chatRequest is the /api/chat request body.
type chatRequest struct {
	Model    string         `json:"model"`
	Messages []chatMessage  `json:"messages"`
	Stream   bool           `json:"stream"`
	Options  map[string]any `json:"options,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatLine is one NDJSON line of the /api/chat response stream.
type chatLine struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	Done       bool   `json:"done"`
	DoneReason string `json:"done_reason"`
	Error      string `json:"error"`
}

// StreamCompletion implements llm.Provider.
func (p *Provider) StreamCompletion(ctx context.Context, req llm.CompletionRequest) (<-chan llm.Chunk, error) {
	body, err := p.start(ctx, req)
	if err != nil {
		return nil, err
	}

	ch := make(chan llm.Chunk, 16)
	go func() {
		defer close(ch)
		defer body.Close()

		asm := stream.New(stream.NDJSONDone())
		reader := bufio.NewReader(body)

		for {
			line, readErr := reader.ReadBytes('\n')

			if len(line) > 0 {
				// A final line may arrive without its newline; restore it so
				// the terminator detector sees a complete line.
				if line[len(line)-1] != '\n' {
					line = append(line, '\n')
				}

				_, done, pushErr := asm.Push(line)
				if pushErr != nil {
					emit(ctx, ch, llm.Chunk{Err: pushErr})
					return
				}

				var parsed chatLine
				if err := json.Unmarshal(bytes.TrimSpace(line), &parsed); err != nil {
					emit(ctx, ch, llm.Chunk{Err: fmt.Errorf("ollamanative: malformed stream line: %w", err)})
					asm.Cancel()
					return
				}
				if parsed.Error != "" {
					emit(ctx, ch, llm.Chunk{Err: fmt.Errorf("ollamanative: endpoint error: %s", parsed.Error)})
					asm.Cancel()
					return
				}
				if parsed.Message.Content != "" {
					if !emit(ctx, ch, llm.Chunk{Text: parsed.Message.Content}) {
						asm.Cancel()
						return
					}
				}
				if done || parsed.Done {
					emit(ctx, ch, llm.Chunk{Done: true})
					return
				}
			}

			if readErr != nil {
				if ctx.Err() != nil {
					asm.Cancel()
					emit(ctx, ch, llm.Chunk{Err: ctx.Err()})
					return
				}
				if errors.Is(readErr, io.EOF) {
					// Stream ended without the done marker.
					emit(ctx, ch, llm.Chunk{Err: asm.Close()})
					return
				}
				asm.Cancel()
				emit(ctx, ch, llm.Chunk{Err: fmt.Errorf("ollamanative: read stream: %w", readErr)})
				return
			}
		}
	}()

	return ch, nil
}

// Complete implements llm.Provider by draining the stream.
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (string, error) {
	ch, err := p.StreamCompletion(ctx, req)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for chunk := range ch {
		if chunk.Err != nil {
			return "", chunk.Err
		}
		b.WriteString(chunk.Text)
		if chunk.Done {
			return b.String(), nil
		}
	}
	return "", fmt.Errorf("ollamanative: stream closed without done chunk")
}

// Models implements llm.Provider using the official Ollama client.
func (p *Provider) Models(ctx context.Context) ([]string, error) {
	resp, err := p.listClient.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("ollamanative: list models: %w", err)
	}
	names := make([]string, 0, len(resp.Models))
	for _, m := range resp.Models {
		if m.Name != "" {
			names = append(names, m.Name)
		}
	}
	return names, nil
}

// start issues the chat request and returns the response body on success.
func (p *Provider) start(ctx context.Context, req llm.CompletionRequest) (io.ReadCloser, error) {
	model := req.Model
	if model == "" {
		model = p.model
	}

	out := chatRequest{Model: model, Stream: true}
	if req.SystemPrompt != "" {
		out.Messages = append(out.Messages, chatMessage{Role: "system", Content: req.SystemPrompt})
	}
	for _, m := range req.Messages {
		out.Messages = append(out.Messages, chatMessage{Role: m.Role, Content: m.Content})
	}
	if req.Temperature != 0 {
		out.Options = map[string]any{"temperature": req.Temperature}
	}

	payload, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("ollamanative: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/chat", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("ollamanative: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("ollamanative: request %s: %w", p.baseURL, err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("ollamanative: endpoint returned %s: %s", resp.Status, bytes.TrimSpace(msg))
	}
	return resp.Body, nil
}

// emit sends chunk unless ctx is cancelled first. Reports whether the send
// happened.
func emit(ctx context.Context, ch chan<- llm.Chunk, chunk llm.Chunk) bool {
	select {
	case ch <- chunk:
		return true
	case <-ctx.Done():
		return false
	}
}
