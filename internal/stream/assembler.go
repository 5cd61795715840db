// Package stream reassembles incremental model output into complete replies.
//
// The model endpoint delivers its reply as discrete chunks rather than one
// message. [Assembler] is a small state machine that accumulates chunks,
// watches for the protocol's end-of-message signal, and emits the full buffer
// exactly once. Terminator detection is pluggable via [Detector] so the same
// machine serves both a literal end marker and Ollama's NDJSON done flag.
package stream

import (
	"bytes"
	"errors"
	"fmt"
	"sync"
)

// ErrIncomplete is reported when the connection closes before a terminator
// has been seen.
var ErrIncomplete = errors.New("stream: response ended without terminator")

// ErrCancelled is reported for operations on an assembler whose stream was
// cancelled before completing.
var ErrCancelled = errors.New("stream: assembly cancelled")

// State is the assembler's position in its lifecycle.
type State int

const (
	// AwaitingFirstChunk is the initial state before any chunk has arrived.
	AwaitingFirstChunk State = iota

	// Accumulating means at least one chunk has been buffered and no
	// terminator has been seen yet.
	Accumulating

	// Complete is terminal: the terminator was detected and the full buffer
	// was emitted.
	Complete

	// Failed is terminal: the stream ended early or was cancelled.
	Failed
)

// String returns the human-readable name of the state.
func (s State) String() string {
	switch s {
	case AwaitingFirstChunk:
		return "awaiting_first_chunk"
	case Accumulating:
		return "accumulating"
	case Complete:
		return "complete"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// terminal reports whether the state admits no further transitions.
func (s State) terminal() bool { return s == Complete || s == Failed }

// Detector inspects the accumulated buffer after each chunk and reports
// whether the terminator has arrived. When found, end is the byte offset at
// which the message proper ends (the terminator itself is excluded from the
// emitted buffer).
type Detector func(buf []byte) (end int, found bool)

// Marker returns a Detector for a literal end-of-message marker. The marker
// may arrive split across chunks; detection always scans the full buffer.
func Marker(marker string) Detector {
	return func(buf []byte) (int, bool) {
		idx := bytes.Index(buf, []byte(marker))
		if idx < 0 {
			return 0, false
		}
		return idx, true
	}
}

// NDJSONDone returns a Detector for newline-delimited JSON streams that end
// with an object whose "done" field is true (the Ollama chat protocol). Only
// complete lines are considered; a partial trailing line never terminates.
func NDJSONDone() Detector {
	needle := []byte(`"done":true`)
	spaced := []byte(`"done": true`)
	return func(buf []byte) (int, bool) {
		rest := buf
		offset := 0
		for {
			nl := bytes.IndexByte(rest, '\n')
			if nl < 0 {
				return 0, false
			}
			line := rest[:nl]
			if bytes.Contains(line, needle) || bytes.Contains(line, spaced) {
				return offset, true
			}
			offset += nl + 1
			rest = rest[nl+1:]
		}
	}
}

// Assembler reconstructs one complete message from a chunk stream. It is safe
// for concurrent use: chunk consumption typically runs on a network goroutine
// while cancellation arrives from the turn loop.
//
// An Assembler is single-use. Once it reaches a terminal state every further
// Push fails.
type Assembler struct {
	detect Detector

	mu    sync.Mutex
	state State
	buf   bytes.Buffer
	err   error
}

// New creates an Assembler using detect to recognise the end of the message.
func New(detect Detector) *Assembler {
	return &Assembler{detect: detect}
}

// Push appends chunk to the internal buffer and attempts terminator
// detection. When the terminator is found the assembler transitions to
// [Complete] and returns the full message (terminator excluded) with
// done=true. Otherwise it stays in [Accumulating].
//
// Pushing into a terminal assembler returns an error; chunks are never
// dropped silently.
func (a *Assembler) Push(chunk []byte) (msg string, done bool, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state.terminal() {
		if a.err != nil {
			return "", false, fmt.Errorf("stream: push after terminal state %s: %w", a.state, a.err)
		}
		return "", false, fmt.Errorf("stream: push after terminal state %s", a.state)
	}

	a.buf.Write(chunk)
	a.state = Accumulating

	if end, found := a.detect(a.buf.Bytes()); found {
		a.state = Complete
		msg = string(a.buf.Bytes()[:end])
		a.buf.Reset()
		return msg, true, nil
	}
	return "", false, nil
}

// Close signals that the connection ended. If the terminator was never seen
// the assembler transitions to [Failed] and returns [ErrIncomplete]; closing
// a completed assembler is a no-op.
func (a *Assembler) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch a.state {
	case Complete:
		return nil
	case Failed:
		return a.err
	}
	a.state = Failed
	a.err = ErrIncomplete
	a.buf.Reset()
	return a.err
}

// Cancel aborts assembly and releases the partial buffer without emitting a
// result. It is idempotent and a no-op after [Complete].
func (a *Assembler) Cancel() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state.terminal() {
		return
	}
	a.state = Failed
	a.err = ErrCancelled
	a.buf.Reset()
}

// State returns the current state.
func (a *Assembler) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Buffered returns the number of bytes currently accumulated. Terminal
// assemblers report zero because the buffer has been released or emitted.
func (a *Assembler) Buffered() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.buf.Len()
}

// Err returns the terminal error, if any.
func (a *Assembler) Err() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.err
}

// Assemble is a convenience that drains chunks from ch into a fresh
// assembler using detect, returning the completed message. It returns
// [ErrIncomplete] when ch closes before the terminator arrives.
func Assemble(ch <-chan []byte, detect Detector) (string, error) {
	a := New(detect)
	for chunk := range ch {
		msg, done, err := a.Push(chunk)
		if err != nil {
			return "", err
		}
		if done {
			return msg, nil
		}
	}
	return "", a.Close()
}
