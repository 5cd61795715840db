package sched

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/voxos-ai/voxos/internal/capability"
	"github.com/voxos-ai/voxos/internal/sched/mock"
)

// recorder collects fired calls in order.
type recorder struct {
	mu    sync.Mutex
	calls []capability.ValidatedCall
	fired chan string
}

func newRecorder() *recorder {
	return &recorder{fired: make(chan string, 16)}
}

func (r *recorder) fire(_ context.Context, call capability.ValidatedCall) {
	r.mu.Lock()
	r.calls = append(r.calls, call)
	r.mu.Unlock()
	r.fired <- call.Spec.Name
}

func (r *recorder) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, len(r.calls))
	for i, c := range r.calls {
		names[i] = c.Spec.Name
	}
	return names
}

func call(name string) capability.ValidatedCall {
	return capability.ValidatedCall{Spec: capability.Spec{Name: name}}
}

func waitFired(t *testing.T, r *recorder, want string) {
	t.Helper()
	select {
	case got := <-r.fired:
		if got != want {
			t.Fatalf("fired %q, want %q", got, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %q to fire", want)
	}
}

func TestScheduler_FiresAfterDelay(t *testing.T) {
	clk := mock.NewClock(time.Unix(1000, 0))
	rec := newRecorder()
	s := New(clk, rec.fire, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	s.Schedule(call("change_background"), 5*time.Second)
	clk.BlockUntil(1)

	clk.Advance(4 * time.Second)
	select {
	case name := <-rec.fired:
		t.Fatalf("%q fired before its delay elapsed", name)
	case <-time.After(50 * time.Millisecond):
	}

	clk.Advance(time.Second)
	waitFired(t, rec, "change_background")
}

func TestScheduler_ShorterDelayFiresFirst(t *testing.T) {
	clk := mock.NewClock(time.Unix(1000, 0))
	rec := newRecorder()
	s := New(clk, rec.fire, nil)

	s.Schedule(call("slow"), 5*time.Second)
	s.Schedule(call("fast"), 2*time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	clk.BlockUntil(1)
	clk.Advance(2 * time.Second)
	waitFired(t, rec, "fast")

	clk.BlockUntil(1)
	clk.Advance(3 * time.Second)
	waitFired(t, rec, "slow")

	got := rec.names()
	if len(got) != 2 || got[0] != "fast" || got[1] != "slow" {
		t.Errorf("firing order = %v", got)
	}
}

func TestScheduler_SameDueFiresInSubmissionOrder(t *testing.T) {
	clk := mock.NewClock(time.Unix(1000, 0))
	rec := newRecorder()
	s := New(clk, rec.fire, nil)

	s.Schedule(call("first"), 2*time.Second)
	s.Schedule(call("second"), 2*time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	clk.BlockUntil(1)
	clk.Advance(2 * time.Second)
	waitFired(t, rec, "first")
	waitFired(t, rec, "second")
}

func TestScheduler_CancelBeforeFire(t *testing.T) {
	clk := mock.NewClock(time.Unix(1000, 0))
	rec := newRecorder()
	s := New(clk, rec.fire, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	h := s.Schedule(call("doomed"), 5*time.Second)
	// The sentinel proves the cancelled task's due time has passed.
	s.Schedule(call("sentinel"), 6*time.Second)
	clk.BlockUntil(1)

	if !s.Cancel(h.ID) {
		t.Fatal("Cancel returned false for a pending task")
	}
	if got := s.Pending(); got != 1 {
		t.Errorf("Pending = %d, want 1", got)
	}

	clk.Advance(6 * time.Second)
	waitFired(t, rec, "sentinel")

	if got := rec.names(); len(got) != 1 {
		t.Errorf("cancelled task fired: %v", got)
	}
}

func TestScheduler_CancelAfterFire(t *testing.T) {
	clk := mock.NewClock(time.Unix(1000, 0))
	rec := newRecorder()
	s := New(clk, rec.fire, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	h := s.Schedule(call("prompt"), 2*time.Second)
	clk.BlockUntil(1)
	clk.Advance(2 * time.Second)
	waitFired(t, rec, "prompt")

	if s.Cancel(h.ID) {
		t.Error("Cancel returned true for an already-fired task")
	}
}

func TestScheduler_CancelTwice(t *testing.T) {
	s := New(mock.NewClock(time.Unix(1000, 0)), func(context.Context, capability.ValidatedCall) {}, nil)

	h := s.Schedule(call("x"), time.Minute)
	if !s.Cancel(h.ID) {
		t.Fatal("first Cancel returned false")
	}
	if s.Cancel(h.ID) {
		t.Error("second Cancel returned true")
	}
}

func TestScheduler_ZeroDelayFiresPromptly(t *testing.T) {
	rec := newRecorder()
	s := New(nil, rec.fire, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	s.Schedule(call("now"), 0)
	waitFired(t, rec, "now")
}

func TestScheduler_PendingCount(t *testing.T) {
	s := New(mock.NewClock(time.Unix(1000, 0)), func(context.Context, capability.ValidatedCall) {}, nil)

	if got := s.Pending(); got != 0 {
		t.Fatalf("Pending = %d on empty scheduler", got)
	}
	h1 := s.Schedule(call("a"), time.Minute)
	s.Schedule(call("b"), time.Minute)
	if got := s.Pending(); got != 2 {
		t.Errorf("Pending = %d, want 2", got)
	}
	s.Cancel(h1.ID)
	if got := s.Pending(); got != 1 {
		t.Errorf("Pending = %d after cancel, want 1", got)
	}
}
