package protocol

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/voxos-ai/voxos/internal/capability"
)

// Decoder extracts at most one function call from a reassembled model reply.
//
// The decoder is deliberately tolerant: models wrap JSON in markdown fences,
// embed it in prose, omit the confidence field, quote numbers, and invent
// extra fields. None of that is an error — a reply from which no structured
// segment can be recovered is simply treated as conversational chat.
type Decoder struct {
	// defaultConfidence is filled in when the reply omits the confidence
	// field (e.g. 0.5).
	defaultConfidence float64
}

// NewDecoder creates a Decoder with the given default confidence for replies
// that omit the field.
func NewDecoder(defaultConfidence float64) *Decoder {
	return &Decoder{defaultConfidence: defaultConfidence}
}

// fenceRe matches a ```json ... ``` (or bare ```) markdown code fence.
var fenceRe = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")

// Decode extracts a function call from reply. The second return value is the
// conversational text to show the user when the reply is not a command:
// either the model's explicit chat response or, when no structured segment
// is recognisable at all, the raw reply itself. Exactly one of the two
// returns is non-zero.
func (d *Decoder) Decode(reply string) (*capability.FunctionCall, string) {
	obj, raw := extractObject(reply)
	if obj == nil {
		return nil, strings.TrimSpace(reply)
	}

	// Explicit chat envelope.
	if t, _ := obj["type"].(string); t == "chat" {
		if resp, _ := obj["response"].(string); resp != "" {
			return nil, resp
		}
		return nil, strings.TrimSpace(reply)
	}

	name := callName(obj)
	if name == "" {
		// A JSON object with no function name is not a command.
		return nil, strings.TrimSpace(reply)
	}

	call := &capability.FunctionCall{
		Name:       name,
		Args:       callArgs(obj),
		Confidence: d.confidence(obj),
		RawText:    raw,
	}
	return call, ""
}

// extractObject finds the first JSON object in text, trying a direct parse,
// then a markdown fence, then a balanced-brace scan. Returns the decoded
// object and the matched raw segment, or (nil, "").
func extractObject(text string) (map[string]any, string) {
	text = strings.TrimSpace(text)

	var obj map[string]any
	if err := json.Unmarshal([]byte(text), &obj); err == nil {
		return obj, text
	}

	if m := fenceRe.FindStringSubmatch(text); m != nil {
		if err := json.Unmarshal([]byte(m[1]), &obj); err == nil {
			return obj, m[1]
		}
	}

	if seg := firstBalancedObject(text); seg != "" {
		if err := json.Unmarshal([]byte(seg), &obj); err == nil {
			return obj, seg
		}
	}
	return nil, ""
}

// firstBalancedObject returns the first balanced {...} segment of text,
// respecting string literals and escapes, or "" when none exists.
func firstBalancedObject(text string) string {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return text[start : i+1]
			}
		}
	}
	return ""
}

// callName accepts both the voxos contract ("name") and the legacy shape
// some models fall back to ("function").
func callName(obj map[string]any) string {
	if n, _ := obj["name"].(string); n != "" {
		return n
	}
	if n, _ := obj["function"].(string); n != "" {
		return n
	}
	return ""
}

// callArgs collects the call arguments. Preferred is a nested "args" (or
// "params") object; otherwise every top-level field that is not part of the
// call envelope is treated as an argument, matching replies like
// {"function": "set_volume", "level": 50}.
func callArgs(obj map[string]any) map[string]any {
	for _, key := range []string{"args", "params"} {
		if nested, ok := obj[key].(map[string]any); ok {
			return nested
		}
	}

	args := make(map[string]any)
	for k, v := range obj {
		switch k {
		case "name", "function", "confidence", "type", "metadata":
			continue
		}
		args[k] = v
	}
	return args
}

// confidence reads the model-reported confidence, accepting both the [0, 1]
// contract scale and the 0-100 scale some models produce, and clamping the
// result to [0, 1]. Absent or unreadable values yield the default.
func (d *Decoder) confidence(obj map[string]any) float64 {
	raw, ok := obj["confidence"]
	if !ok {
		if meta, isMap := obj["metadata"].(map[string]any); isMap {
			raw, ok = meta["confidence"]
		}
	}
	if !ok {
		return d.defaultConfidence
	}

	var c float64
	switch v := raw.(type) {
	case float64:
		c = v
	case string:
		if err := json.Unmarshal([]byte(strings.TrimSpace(v)), &c); err != nil {
			return d.defaultConfidence
		}
	default:
		return d.defaultConfidence
	}

	if c > 1 {
		c /= 100
	}
	if c < 0 {
		c = 0
	}
	if c > 1 {
		c = 1
	}
	return c
}
