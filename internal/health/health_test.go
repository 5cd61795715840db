package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/voxos-ai/voxos/pkg/provider/llm"
	"github.com/voxos-ai/voxos/pkg/provider/llm/mock"
)

func TestHealthz_AlwaysReturns200(t *testing.T) {
	h := New()

	rec := httptest.NewRecorder()
	h.Healthz(rec, httptest.NewRequest("GET", "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	var body result
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if body.Status != "ok" {
		t.Errorf("status = %q, want ok", body.Status)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}
}

func TestReadyz_AllProbesPass(t *testing.T) {
	h := New(
		Probe{Name: "backend", Check: func(context.Context) error { return nil }},
		Probe{Name: "archive", Check: func(context.Context) error { return nil }},
	)

	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest("GET", "/readyz", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	var body result
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if body.Checks["backend"] != "ok" || body.Checks["archive"] != "ok" {
		t.Errorf("checks = %v, want all ok", body.Checks)
	}
}

func TestReadyz_ProbeFails(t *testing.T) {
	h := New(
		Probe{Name: "backend", Check: func(context.Context) error {
			return errors.New("connection refused")
		}},
		Probe{Name: "archive", Check: func(context.Context) error { return nil }},
	)

	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest("GET", "/readyz", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
	var body result
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if body.Status != "fail" {
		t.Errorf("status = %q, want fail", body.Status)
	}
	if body.Checks["backend"] != "fail: connection refused" {
		t.Errorf("backend check = %q", body.Checks["backend"])
	}
	if body.Checks["archive"] != "ok" {
		t.Errorf("archive check = %q, want ok", body.Checks["archive"])
	}
}

func TestReadyz_NoProbes(t *testing.T) {
	h := New()

	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest("GET", "/readyz", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestBackend_Reachable(t *testing.T) {
	p := &mock.Provider{ModelList: []string{"mistral"}}
	probe := Backend(p)

	if probe.Name != "backend" {
		t.Errorf("Name = %q, want backend", probe.Name)
	}
	if err := probe.Check(context.Background()); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestBackend_NoListingIsHealthy(t *testing.T) {
	p := &mock.Provider{ModelsErr: llm.ErrNoModelListing}
	if err := Backend(p).Check(context.Background()); err != nil {
		t.Errorf("ErrNoModelListing should count as healthy, got %v", err)
	}
}

func TestBackend_Unreachable(t *testing.T) {
	p := &mock.Provider{ModelsErr: errors.New("dial tcp: connection refused")}
	if err := Backend(p).Check(context.Background()); err == nil {
		t.Error("expected error for unreachable backend")
	}
}

type fakePinger struct{ err error }

func (f fakePinger) TurnCount() (int, error) { return 0, f.err }

func TestArchive_Probe(t *testing.T) {
	if err := Archive(fakePinger{}).Check(context.Background()); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	want := errors.New("database is locked")
	if err := Archive(fakePinger{err: want}).Check(context.Background()); !errors.Is(err, want) {
		t.Errorf("err = %v, want %v", err, want)
	}
}

func TestRegister_RoutesWork(t *testing.T) {
	h := New(Probe{Name: "test", Check: func(context.Context) error { return nil }})

	mux := http.NewServeMux()
	h.Register(mux)

	for _, path := range []string{"/healthz", "/readyz"} {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest("GET", path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("%s status = %d, want 200", path, rec.Code)
		}
	}
}

func TestReadyz_RespectsContextCancellation(t *testing.T) {
	h := New(Probe{Name: "slow", Check: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest("GET", "/readyz", nil).WithContext(ctx))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}
