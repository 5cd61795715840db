// Package sched schedules validated commands for deferred execution.
//
// A Scheduler owns a min-heap of pending tasks ordered by due time, with
// submission order breaking ties, and fires each task exactly once into the
// dispatch callback it was constructed with. Due times derive from the
// process clock, which carries a monotonic reading, so a wall-clock jump
// never fires tasks early or late.
package sched

import (
	"container/heap"
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/voxos-ai/voxos/internal/capability"
)

// Clock abstracts time for the scheduler so tests can drive it
// deterministically.
type Clock interface {
	Now() time.Time
	// After behaves like time.After relative to this clock.
	After(d time.Duration) <-chan time.Time
}

// SystemClock is the real-time Clock used outside tests.
type SystemClock struct{}

func (SystemClock) Now() time.Time                         { return time.Now() }
func (SystemClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// FireFunc receives a task's command when it comes due. It is called from the
// scheduler's run loop, so long-running dispatch should not block it longer
// than necessary.
type FireFunc func(ctx context.Context, call capability.ValidatedCall)

// Handle identifies a scheduled task for later cancellation.
type Handle struct {
	// ID is the unique task identifier.
	ID uuid.UUID

	// Due is when the task will fire.
	Due time.Time
}

type task struct {
	id        uuid.UUID
	call      capability.ValidatedCall
	due       time.Time
	seq       uint64
	cancelled bool
}

// taskHeap orders tasks by due time, then submission sequence.
type taskHeap []*task

func (h taskHeap) Len() int { return len(h) }
func (h taskHeap) Less(i, j int) bool {
	if h[i].due.Equal(h[j].due) {
		return h[i].seq < h[j].seq
	}
	return h[i].due.Before(h[j].due)
}
func (h taskHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *taskHeap) Push(x any)        { *h = append(*h, x.(*task)) }
func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return t
}

// Scheduler fires deferred commands. Create one with New, run its loop with
// Run, and feed it through Schedule. Safe for concurrent use.
type Scheduler struct {
	clock  Clock
	fire   FireFunc
	logger *slog.Logger

	mu   sync.Mutex
	heap taskHeap
	byID map[uuid.UUID]*task
	seq  uint64

	wake chan struct{}
}

// New creates a Scheduler that fires due tasks into fire. A nil clock means
// SystemClock; a nil logger means slog.Default.
func New(clock Clock, fire FireFunc, logger *slog.Logger) *Scheduler {
	if clock == nil {
		clock = SystemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		clock:  clock,
		fire:   fire,
		logger: logger,
		byID:   make(map[uuid.UUID]*task),
		wake:   make(chan struct{}, 1),
	}
}

// Schedule enqueues call to fire after delay and returns a Handle for it.
// A non-positive delay fires on the loop's next pass. Tasks due at the same
// instant fire in submission order.
func (s *Scheduler) Schedule(call capability.ValidatedCall, delay time.Duration) Handle {
	s.mu.Lock()
	t := &task{
		id:   uuid.New(),
		call: call,
		due:  s.clock.Now().Add(delay),
		seq:  s.seq,
	}
	s.seq++
	heap.Push(&s.heap, t)
	s.byID[t.id] = t
	s.mu.Unlock()

	s.logger.Debug("task scheduled",
		"task_id", t.id,
		"capability", call.Spec.Name,
		"delay", delay)

	select {
	case s.wake <- struct{}{}:
	default:
	}
	return Handle{ID: t.id, Due: t.due}
}

// Cancel removes a pending task. It reports false when the task already fired
// or was cancelled before, in which case nothing changes.
func (s *Scheduler) Cancel(id uuid.UUID) bool {
	s.mu.Lock()
	t, ok := s.byID[id]
	if ok {
		t.cancelled = true
		delete(s.byID, id)
	}
	s.mu.Unlock()

	if ok {
		s.logger.Debug("task cancelled", "task_id", id, "capability", t.call.Spec.Name)
	}
	return ok
}

// Pending reports the number of tasks waiting to fire.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byID)
}

// Run drives the scheduler until ctx is cancelled. Each task fires exactly
// once; cancelled tasks are skipped when they surface. Tasks still pending at
// shutdown are dropped.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		wait := s.fireDue(ctx)

		if wait == nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-s.wake:
			}
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.wake:
		case <-wait:
		}
	}
}

// fireDue fires every task whose due time has passed and returns a channel
// that signals when the next pending task comes due, or nil when the heap is
// empty.
func (s *Scheduler) fireDue(ctx context.Context) <-chan time.Time {
	for {
		s.mu.Lock()
		if s.heap.Len() == 0 {
			s.mu.Unlock()
			return nil
		}
		next := s.heap[0]
		now := s.clock.Now()
		if next.due.After(now) {
			wait := s.clock.After(next.due.Sub(now))
			s.mu.Unlock()
			return wait
		}

		heap.Pop(&s.heap)
		skip := next.cancelled
		if !skip {
			delete(s.byID, next.id)
		}
		s.mu.Unlock()

		if skip {
			continue
		}
		s.logger.Info("scheduled task firing",
			"task_id", next.id,
			"capability", next.call.Spec.Name)
		s.fire(ctx, next.call)
	}
}
