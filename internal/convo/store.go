// Package convo holds the conversational context the pipeline maintains
// across turns: the rolling history window, the last-known system state
// snapshot, and an optional persistent archive backed by SQLite.
//
// The in-memory [Store] is the authoritative working set. It is bounded:
// once the configured maximum is exceeded the oldest turns are evicted
// first. Readers always observe a consistent snapshot — a turn is never
// visible half-appended.
package convo

import (
	"log/slog"
	"sync"
	"time"

	"github.com/voxos-ai/voxos/internal/capability"
)

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Turn is one entry in the conversation history.
type Turn struct {
	Role Role
	Text string
	Time time.Time

	// Call is the function call decoded from this turn, if any.
	Call *capability.FunctionCall

	// Result is a short user-facing summary of the execution outcome.
	Result string
}

// Snapshot carries the last-known values of the mutable external state the
// pipeline tracks. It is read by the tool-call encoder to give the model
// situational context and mutated only by the dispatcher after a successful
// effector call (or by configuration at startup).
type Snapshot struct {
	Brightness  int
	Volume      int
	Muted       bool
	Background  string
	ActiveModel string
	AutoConfirm bool
}

// Store is the conversation and system-state store. All methods are safe for
// concurrent use.
type Store struct {
	maxHistory int
	archive    *Archive // nil when persistence is disabled

	mu    sync.RWMutex
	turns []Turn
	state Snapshot
}

// NewStore creates a Store bounded to maxHistory turns. A maxHistory of 0 or
// less falls back to 50. archive may be nil.
func NewStore(maxHistory int, initial Snapshot, archive *Archive) *Store {
	if maxHistory <= 0 {
		maxHistory = 50
	}
	return &Store{
		maxHistory: maxHistory,
		archive:    archive,
		state:      initial,
	}
}

// Append adds turn to the history, evicting the oldest turn first when the
// bound is exceeded. The turn is also recorded in the archive when one is
// configured; archive failures are logged and never propagate.
func (s *Store) Append(turn Turn) {
	if turn.Time.IsZero() {
		turn.Time = time.Now()
	}

	s.mu.Lock()
	s.turns = append(s.turns, turn)
	for len(s.turns) > s.maxHistory {
		s.turns = s.turns[1:]
	}
	s.mu.Unlock()

	if s.archive != nil {
		if err := s.archive.RecordTurn(turn); err != nil {
			slog.Warn("failed to archive turn", "role", turn.Role, "err", err)
		}
	}
}

// History returns a copy of the full retained history, oldest first.
func (s *Store) History() []Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

// Window returns a copy of the trailing n turns (all turns when n exceeds
// the retained count).
func (s *Store) Window(n int) []Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if n > len(s.turns) {
		n = len(s.turns)
	}
	out := make([]Turn, n)
	copy(out, s.turns[len(s.turns)-n:])
	return out
}

// Len returns the number of retained turns.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.turns)
}

// Snapshot returns a copy of the current system state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// MutateState applies fn to the system state under the store's lock. Only
// the dispatcher's success path and startup configuration may call this.
func (s *Store) MutateState(fn func(*Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.state)
}
