// Package protocol implements the tool-call wire contract between the
// pipeline and the model: the encoder renders the capability catalog,
// conversation window, and system state into a completion request, and the
// decoder extracts at most one function call from the model's raw reply.
package protocol

import (
	"fmt"
	"strings"

	"github.com/voxos-ai/voxos/internal/capability"
	"github.com/voxos-ai/voxos/internal/convo"
	"github.com/voxos-ai/voxos/pkg/provider/llm"
)

// preambles maps an interface language code to the opening line of the
// system prompt. Unknown languages fall back to English.
var preambles = map[string]string{
	"en": "You are a desktop assistant that controls the local system. You understand natural-language commands.",
	"de": "Du bist ein Desktop-Assistent, der das lokale System steuert. Du verstehst Befehle in natürlicher Sprache.",
}

// Encoder builds the outbound completion request for one conversation turn.
// It is immutable after construction and safe for concurrent use.
type Encoder struct {
	reg      *capability.Registry
	window   int
	language string
}

// NewEncoder creates an Encoder that advertises the capabilities in reg,
// includes the trailing window turns of history, and writes its preamble in
// the given interface language. A window of 0 or less falls back to 10.
func NewEncoder(reg *capability.Registry, window int, language string) *Encoder {
	if window <= 0 {
		window = 10
	}
	return &Encoder{reg: reg, window: window, language: language}
}

// Encode produces the completion request for utterance given the current
// history and system state.
func (e *Encoder) Encode(history []convo.Turn, snap convo.Snapshot, utterance string) llm.CompletionRequest {
	req := llm.CompletionRequest{
		SystemPrompt: e.systemPrompt(snap),
	}

	start := 0
	if len(history) > e.window {
		start = len(history) - e.window
	}
	for _, turn := range history[start:] {
		req.Messages = append(req.Messages, llm.Message{
			Role:    string(turn.Role),
			Content: turn.Text,
		})
	}

	req.Messages = append(req.Messages, llm.Message{Role: "user", Content: utterance})
	return req
}

// systemPrompt renders the preamble, the capability catalog, the state
// context, and the response contract.
func (e *Encoder) systemPrompt(snap convo.Snapshot) string {
	var b strings.Builder

	preamble, ok := preambles[e.language]
	if !ok {
		preamble = preambles["en"]
	}
	b.WriteString(preamble)
	b.WriteString("\n\nAvailable functions:\n")

	for _, spec := range e.reg.Specs() {
		fmt.Fprintf(&b, "\nFunction: %s\nDescription: %s\n", spec.Name, spec.Description)
		if len(spec.Params) > 0 {
			b.WriteString("Parameters:\n")
			for _, p := range spec.Params {
				fmt.Fprintf(&b, "  - %s (%s%s): %s\n", p.Name, p.Type, requiredTag(p), p.Description)
			}
		}
		if spec.Example != "" {
			fmt.Fprintf(&b, "Example: %s\n", spec.Example)
		}
	}

	b.WriteString("\nCurrent system state:\n")
	fmt.Fprintf(&b, "  brightness: %d%%\n", snap.Brightness)
	fmt.Fprintf(&b, "  volume: %d%% (muted: %v)\n", snap.Volume, snap.Muted)
	if snap.Background != "" {
		fmt.Fprintf(&b, "  background: %s\n", snap.Background)
	}
	fmt.Fprintf(&b, "  active model: %s\n", snap.ActiveModel)

	b.WriteString(`
Decide whether the user is requesting a system function or having a conversation.

For a system command respond with exactly one JSON object:
{"name": "function_name", "args": {"param": "value"}, "confidence": 0.0-1.0}

For a question or general conversation respond with:
{"type": "chat", "response": "your conversational reply"}

Respond with JSON only, no markdown and no other text.`)

	return b.String()
}

func requiredTag(p capability.Param) string {
	if p.Required {
		return ", required"
	}
	return ""
}
