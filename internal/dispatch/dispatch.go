// Package dispatch routes validated commands to their effectors.
//
// The Dispatcher owns the confirmation gate: a call flagged as requiring
// confirmation suspends here, with auto-confirm off, until the presentation
// layer answers through Confirm. It is also the only writer of the system
// state snapshot — a capability's declared state effects are applied after,
// and only after, its effector reports success.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"

	"github.com/voxos-ai/voxos/internal/capability"
	"github.com/voxos-ai/voxos/internal/convo"
	"github.com/voxos-ai/voxos/internal/effector"
	"github.com/voxos-ai/voxos/internal/observe"
)

// EffectorError wraps a failure reported by an effector. It never propagates
// past the dispatcher as a panic or a bare error; callers find it on
// ExecutionResult.Err.
type EffectorError struct {
	Capability string
	Err        error
}

func (e *EffectorError) Error() string {
	return fmt.Sprintf("effector %s: %v", e.Capability, e.Err)
}

func (e *EffectorError) Unwrap() error { return e.Err }

// ExecutionResult is the user-facing record of one dispatch.
type ExecutionResult struct {
	// Capability is the name of the capability that was dispatched.
	Capability string

	// Message is the effector's human-readable summary on success.
	Message string

	// Data carries structured payloads for query-style capabilities.
	Data map[string]any

	// Cancelled is set when the call was rejected at the confirmation gate,
	// or the wait for confirmation was abandoned. The effector was not
	// invoked.
	Cancelled bool

	// Err is the *EffectorError when the effector failed. Nil on success or
	// cancellation.
	Err error
}

// ConfirmRequest announces a dispatch suspended on the confirmation gate.
// The presentation layer answers it through Dispatcher.Confirm.
type ConfirmRequest struct {
	ID   uuid.UUID
	Call capability.ValidatedCall
}

type pendingConfirm struct {
	decision chan bool
}

// Dispatcher executes validated calls. Safe for concurrent use: immediate
// dispatches and scheduler-fired tasks may overlap.
type Dispatcher struct {
	effectors map[string]effector.Effector
	store     *convo.Store
	archive   *convo.Archive
	metrics   *observe.Metrics
	logger    *slog.Logger

	confirms chan ConfirmRequest

	mu      sync.Mutex
	pending map[uuid.UUID]*pendingConfirm
}

// New creates a Dispatcher over the given effector set. store is the state
// snapshot owner; archive may be nil to skip call bookkeeping; nil metrics
// means observe.DefaultMetrics and a nil logger means slog.Default.
func New(effectors map[string]effector.Effector, store *convo.Store, archive *convo.Archive, metrics *observe.Metrics, logger *slog.Logger) *Dispatcher {
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		effectors: effectors,
		store:     store,
		archive:   archive,
		metrics:   metrics,
		logger:    logger,
		confirms:  make(chan ConfirmRequest, 16),
		pending:   make(map[uuid.UUID]*pendingConfirm),
	}
}

// Confirmations delivers one ConfirmRequest per dispatch suspended on the
// confirmation gate.
func (d *Dispatcher) Confirmations() <-chan ConfirmRequest {
	return d.confirms
}

// Confirm resolves a suspended dispatch. accept true releases the call to its
// effector; false cancels it. Reports false when no dispatch with that ID is
// waiting.
func (d *Dispatcher) Confirm(id uuid.UUID, accept bool) bool {
	d.mu.Lock()
	p, ok := d.pending[id]
	if ok {
		delete(d.pending, id)
	}
	d.mu.Unlock()

	if !ok {
		return false
	}
	p.decision <- accept
	return true
}

// Dispatch routes call to its effector and returns the outcome. It blocks on
// the confirmation gate when the call requires confirmation and auto-confirm
// is off; cancelling ctx abandons the wait and yields a cancelled result.
func (d *Dispatcher) Dispatch(ctx context.Context, call capability.ValidatedCall) ExecutionResult {
	ctx, span := observe.StartSpan(ctx, "dispatch")
	defer span.End()
	span.SetAttributes(observe.Attr("capability", call.Spec.Name))

	if call.RequiresConfirmation && !d.store.Snapshot().AutoConfirm {
		accepted, err := d.awaitConfirmation(ctx, call)
		if err != nil || !accepted {
			d.logger.Info("dispatch cancelled at confirmation gate",
				"capability", call.Spec.Name, "accepted", accepted)
			d.metrics.RecordToolCall(ctx, call.Spec.Name, "cancelled")
			d.recordCall(call, false, "cancelled")
			return ExecutionResult{Capability: call.Spec.Name, Cancelled: true}
		}
	}
	return d.execute(ctx, call)
}

// awaitConfirmation suspends until the presentation layer answers or ctx is
// cancelled.
func (d *Dispatcher) awaitConfirmation(ctx context.Context, call capability.ValidatedCall) (bool, error) {
	id := uuid.New()
	p := &pendingConfirm{decision: make(chan bool, 1)}

	d.mu.Lock()
	d.pending[id] = p
	d.mu.Unlock()

	d.metrics.PendingConfirmations.Add(ctx, 1)
	defer d.metrics.PendingConfirmations.Add(ctx, -1)

	select {
	case d.confirms <- ConfirmRequest{ID: id, Call: call}:
	case <-ctx.Done():
		d.abandon(id)
		return false, ctx.Err()
	}

	select {
	case accepted := <-p.decision:
		return accepted, nil
	case <-ctx.Done():
		d.abandon(id)
		return false, ctx.Err()
	}
}

func (d *Dispatcher) abandon(id uuid.UUID) {
	d.mu.Lock()
	delete(d.pending, id)
	d.mu.Unlock()
}

// execute invokes the effector and, on success, applies the capability's
// declared state effects.
func (d *Dispatcher) execute(ctx context.Context, call capability.ValidatedCall) ExecutionResult {
	result := ExecutionResult{Capability: call.Spec.Name}

	eff, ok := d.effectors[call.Spec.Name]
	if !ok {
		result.Err = &EffectorError{Capability: call.Spec.Name, Err: fmt.Errorf("no effector registered")}
		d.metrics.RecordToolCall(ctx, call.Spec.Name, "error")
		d.recordCall(call, false, result.Err.Error())
		return result
	}

	start := time.Now()
	res, err := d.runEffector(ctx, eff, call)
	d.metrics.EffectorDuration.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(observe.Attr("capability", call.Spec.Name)))

	if err != nil {
		result.Err = &EffectorError{Capability: call.Spec.Name, Err: err}
		d.logger.Warn("effector failed", "capability", call.Spec.Name, "error", err)
		d.metrics.RecordToolCall(ctx, call.Spec.Name, "error")
		d.recordCall(call, false, err.Error())
		return result
	}

	d.store.MutateState(func(snap *convo.Snapshot) {
		applyEffects(snap, call)
	})
	d.persistPreferences(call)

	result.Message = res.Message
	result.Data = res.Data
	d.logger.Info("dispatched", "capability", call.Spec.Name, "message", res.Message)
	d.metrics.RecordToolCall(ctx, call.Spec.Name, "ok")
	d.recordCall(call, true, res.Message)
	return result
}

// runEffector contains effector panics; a panicking effector surfaces as an
// error like any other failure.
func (d *Dispatcher) runEffector(ctx context.Context, eff effector.Effector, call capability.ValidatedCall) (res effector.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return eff.Execute(ctx, call)
}

// persistPreferences writes durable preferences to the archive so they can be
// restored at startup. Currently only the active model qualifies.
func (d *Dispatcher) persistPreferences(call capability.ValidatedCall) {
	if d.archive == nil {
		return
	}
	for _, field := range call.Spec.Affects {
		if field != capability.StateActiveModel {
			continue
		}
		if err := d.archive.SetPreference("active_model", call.String("model")); err != nil {
			d.logger.Warn("preference archive write failed", "error", err)
		}
	}
}

func (d *Dispatcher) recordCall(call capability.ValidatedCall, ok bool, detail string) {
	if d.archive == nil {
		return
	}
	if err := d.archive.RecordCall(call.Spec.Name, call.Args, ok, detail); err != nil {
		d.logger.Warn("call archive write failed", "error", err)
	}
}

// applyEffects writes a successful call's outcome into the snapshot for every
// state field the capability declares.
func applyEffects(snap *convo.Snapshot, call capability.ValidatedCall) {
	for _, field := range call.Spec.Affects {
		switch field {
		case capability.StateBrightness:
			snap.Brightness = call.Int("level")
		case capability.StateBackground:
			snap.Background = call.String("color")
		case capability.StateActiveModel:
			snap.ActiveModel = call.String("model")
		case capability.StateVolume:
			if v, ok := volumeTarget(snap.Volume, call); ok {
				snap.Volume = v
			}
		case capability.StateMuted:
			switch {
			case call.String("action") == "mute":
				snap.Muted = true
			case call.String("action") == "unmute":
				snap.Muted = false
			case call.Has("level") || call.Has("level_text"):
				// Setting an explicit level unmutes.
				snap.Muted = false
			}
		}
	}
}

// volumeTarget resolves the volume a call lands on, from an explicit level, a
// named preset, or a step action.
func volumeTarget(current int, call capability.ValidatedCall) (int, bool) {
	if call.Has("level") {
		return call.Int("level"), true
	}
	if call.Has("level_text") {
		if v, ok := effector.PresetLevel(call.String("level_text")); ok {
			return v, true
		}
		return 0, false
	}
	switch call.String("action") {
	case "increase":
		return min(100, current+effector.VolumeStep), true
	case "decrease":
		return max(0, current-effector.VolumeStep), true
	}
	return 0, false
}
