package convo

import (
	"testing"
	"time"

	"github.com/voxos-ai/voxos/internal/capability"
)

func openTestArchive(t *testing.T) *Archive {
	t.Helper()
	a, err := OpenArchive(":memory:")
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

func TestArchive_RecordTurn(t *testing.T) {
	a := openTestArchive(t)

	err := a.RecordTurn(Turn{
		Role: RoleUser,
		Text: "set brightness to 50",
		Time: time.Now(),
	})
	if err != nil {
		t.Fatalf("record turn: %v", err)
	}
	err = a.RecordTurn(Turn{
		Role:   RoleAssistant,
		Text:   "Done.",
		Time:   time.Now(),
		Call:   &capability.FunctionCall{Name: "set_brightness", Args: map[string]any{"level": 50}, Confidence: 0.9},
		Result: "Done.",
	})
	if err != nil {
		t.Fatalf("record turn with call: %v", err)
	}

	n, err := a.TurnCount()
	if err != nil {
		t.Fatalf("turn count: %v", err)
	}
	if n != 2 {
		t.Errorf("TurnCount = %d, want 2", n)
	}
}

func TestArchive_Stats(t *testing.T) {
	a := openTestArchive(t)

	record := func(name string, ok bool) {
		t.Helper()
		if err := a.RecordCall(name, map[string]any{"level": 1}, ok, ""); err != nil {
			t.Fatalf("record call: %v", err)
		}
	}
	record("set_brightness", true)
	record("set_brightness", true)
	record("set_volume", false)

	stats, err := a.Stats()
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Total != 3 || stats.Succeeded != 2 || stats.Failed != 1 {
		t.Errorf("stats = %+v, want 3 total, 2 ok, 1 failed", stats)
	}
	if stats.PerCapability["set_brightness"] != 2 {
		t.Errorf("set_brightness count = %d, want 2", stats.PerCapability["set_brightness"])
	}
	if stats.PerCapability["set_volume"] != 1 {
		t.Errorf("set_volume count = %d, want 1", stats.PerCapability["set_volume"])
	}
}

func TestArchive_Prune(t *testing.T) {
	a := openTestArchive(t)

	old := time.Now().Add(-48 * time.Hour)
	if err := a.RecordTurn(Turn{Role: RoleUser, Text: "old", Time: old}); err != nil {
		t.Fatal(err)
	}
	if err := a.RecordTurn(Turn{Role: RoleUser, Text: "recent", Time: time.Now()}); err != nil {
		t.Fatal(err)
	}

	removed, err := a.Prune(time.Now().Add(-24 * time.Hour))
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
	n, err := a.TurnCount()
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("TurnCount after prune = %d, want 1", n)
	}
}

func TestArchive_Preferences(t *testing.T) {
	a := openTestArchive(t)

	got, err := a.Preference("active_model")
	if err != nil {
		t.Fatalf("unset preference: %v", err)
	}
	if got != "" {
		t.Errorf("unset preference = %q, want empty", got)
	}

	if err := a.SetPreference("active_model", "mistral"); err != nil {
		t.Fatal(err)
	}
	if err := a.SetPreference("active_model", "llama3"); err != nil {
		t.Fatal(err)
	}

	got, err = a.Preference("active_model")
	if err != nil {
		t.Fatal(err)
	}
	if got != "llama3" {
		t.Errorf("preference = %q, want llama3 (last write wins)", got)
	}
}
