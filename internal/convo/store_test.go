package convo

import (
	"fmt"
	"sync"
	"testing"

	"github.com/voxos-ai/voxos/internal/capability"
)

func TestStore_AppendAndHistory(t *testing.T) {
	s := NewStore(10, Snapshot{}, nil)
	s.Append(Turn{Role: RoleUser, Text: "set brightness to 50%"})
	s.Append(Turn{Role: RoleAssistant, Text: "done", Result: "brightness set to 50"})

	hist := s.History()
	if len(hist) != 2 {
		t.Fatalf("len(History) = %d, want 2", len(hist))
	}
	if hist[0].Role != RoleUser || hist[1].Role != RoleAssistant {
		t.Errorf("history order wrong: %v, %v", hist[0].Role, hist[1].Role)
	}
	if hist[0].Time.IsZero() {
		t.Error("Append did not stamp the turn time")
	}
}

func TestStore_FIFOEviction(t *testing.T) {
	s := NewStore(3, Snapshot{}, nil)
	for i := 0; i < 5; i++ {
		s.Append(Turn{Role: RoleUser, Text: fmt.Sprintf("turn %d", i)})
	}

	hist := s.History()
	if len(hist) != 3 {
		t.Fatalf("len(History) = %d, want 3", len(hist))
	}
	// Oldest evicted first: turns 2, 3, 4 remain.
	for i, want := range []string{"turn 2", "turn 3", "turn 4"} {
		if hist[i].Text != want {
			t.Errorf("hist[%d].Text = %q, want %q", i, hist[i].Text, want)
		}
	}
}

func TestStore_Window(t *testing.T) {
	s := NewStore(10, Snapshot{}, nil)
	for i := 0; i < 4; i++ {
		s.Append(Turn{Role: RoleUser, Text: fmt.Sprintf("turn %d", i)})
	}

	w := s.Window(2)
	if len(w) != 2 {
		t.Fatalf("len(Window(2)) = %d, want 2", len(w))
	}
	if w[0].Text != "turn 2" || w[1].Text != "turn 3" {
		t.Errorf("window = %q, %q", w[0].Text, w[1].Text)
	}

	if got := len(s.Window(100)); got != 4 {
		t.Errorf("len(Window(100)) = %d, want 4", got)
	}
}

func TestStore_SnapshotAndMutate(t *testing.T) {
	s := NewStore(10, Snapshot{Brightness: 70, ActiveModel: "mistral"}, nil)

	snap := s.Snapshot()
	if snap.Brightness != 70 || snap.ActiveModel != "mistral" {
		t.Fatalf("initial snapshot = %+v", snap)
	}

	s.MutateState(func(st *Snapshot) {
		st.Brightness = 50
		st.Muted = true
	})

	// The earlier copy must be unaffected.
	if snap.Brightness != 70 {
		t.Error("Snapshot returned a live reference, not a copy")
	}
	got := s.Snapshot()
	if got.Brightness != 50 || !got.Muted {
		t.Errorf("mutated snapshot = %+v", got)
	}
}

func TestStore_ConcurrentReadersSeeWholeTurns(t *testing.T) {
	s := NewStore(100, Snapshot{}, nil)

	var wg sync.WaitGroup
	stop := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			s.Append(Turn{Role: RoleUser, Text: "ping"})
		}
		close(stop)
	}()

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				for _, turn := range s.History() {
					if turn.Text != "ping" {
						t.Error("observed partially appended turn")
						return
					}
				}
			}
		}()
	}
	wg.Wait()
}

func TestArchive_RoundTrip(t *testing.T) {
	a, err := OpenArchive(":memory:")
	if err != nil {
		t.Fatalf("OpenArchive: %v", err)
	}
	defer a.Close()

	call := &capability.FunctionCall{
		Name:       "set_brightness",
		Args:       map[string]any{"level": 50},
		Confidence: 0.92,
	}
	if err := a.RecordTurn(Turn{Role: RoleUser, Text: "set brightness to 50%", Call: call}); err != nil {
		t.Fatalf("RecordTurn: %v", err)
	}
	if err := a.RecordCall("set_brightness", map[string]any{"level": 50}, true, ""); err != nil {
		t.Fatalf("RecordCall: %v", err)
	}
	if err := a.RecordCall("open_application", map[string]any{"app_name": "ghost"}, false, "not found"); err != nil {
		t.Fatalf("RecordCall: %v", err)
	}

	n, err := a.TurnCount()
	if err != nil || n != 1 {
		t.Fatalf("TurnCount = %d, %v; want 1", n, err)
	}

	stats, err := a.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Total != 2 || stats.Succeeded != 1 || stats.Failed != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.PerCapability["set_brightness"] != 1 {
		t.Errorf("per-capability stats = %+v", stats.PerCapability)
	}
}

func TestStore_AppendWritesArchive(t *testing.T) {
	a, err := OpenArchive(":memory:")
	if err != nil {
		t.Fatalf("OpenArchive: %v", err)
	}
	defer a.Close()

	s := NewStore(10, Snapshot{}, a)
	s.Append(Turn{Role: RoleUser, Text: "hello"})

	n, err := a.TurnCount()
	if err != nil || n != 1 {
		t.Fatalf("TurnCount = %d, %v; want 1", n, err)
	}
}
