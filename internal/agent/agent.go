// Package agent runs the command interpretation pipeline: one natural
// language utterance in, one reply out. A turn flows through delay
// extraction, prompt encoding, the model backend, function call decoding,
// schema validation, and finally either immediate dispatch or deferred
// scheduling.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/voxos-ai/voxos/internal/capability"
	"github.com/voxos-ai/voxos/internal/convo"
	"github.com/voxos-ai/voxos/internal/dispatch"
	"github.com/voxos-ai/voxos/internal/observe"
	"github.com/voxos-ai/voxos/internal/protocol"
	"github.com/voxos-ai/voxos/internal/sched"
	"github.com/voxos-ai/voxos/pkg/provider/llm"
)

// ErrUpstreamTimeout is returned when the model backend does not answer
// within the configured request timeout.
var ErrUpstreamTimeout = errors.New("agent: model request timed out")

// Reply is the outcome of one conversation turn.
type Reply struct {
	// Text is the user-facing response: the model's conversational reply, an
	// execution summary, or a failure explanation.
	Text string

	// Call is the validated command, when the turn carried one.
	Call *capability.ValidatedCall

	// Scheduled is set when execution was deferred instead of dispatched.
	Scheduled *sched.Handle

	// Result is set when the command was dispatched immediately.
	Result *dispatch.ExecutionResult
}

// Options configures an [Agent].
type Options struct {
	Provider   llm.Provider
	Encoder    *protocol.Encoder
	Decoder    *protocol.Decoder
	Validator  *capability.Validator
	Dispatcher *dispatch.Dispatcher
	Store      *convo.Store

	// Clock drives the deferred-execution scheduler. Nil means wall clock.
	Clock sched.Clock

	// Temperature is forwarded to the backend on every request.
	Temperature float64

	// RequestTimeout bounds one model request. Zero means 60s.
	RequestTimeout time.Duration

	Metrics *observe.Metrics
	Logger  *slog.Logger
}

// Agent orchestrates the pipeline. Turns are serialized: a second Handle
// call blocks until the first completes, so history and state mutations
// observe a consistent order.
type Agent struct {
	provider   llm.Provider
	enc        *protocol.Encoder
	dec        *protocol.Decoder
	validator  *capability.Validator
	dispatcher *dispatch.Dispatcher
	scheduler  *sched.Scheduler
	store      *convo.Store

	temperature    float64
	requestTimeout time.Duration

	metrics *observe.Metrics
	logger  *slog.Logger

	mu sync.Mutex
}

// New creates an Agent. The scheduler it owns does not tick until [Agent.Run]
// is started.
func New(opts Options) *Agent {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 60 * time.Second
	}
	if opts.Metrics == nil {
		opts.Metrics = observe.DefaultMetrics()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	a := &Agent{
		provider:       opts.Provider,
		enc:            opts.Encoder,
		dec:            opts.Decoder,
		validator:      opts.Validator,
		dispatcher:     opts.Dispatcher,
		store:          opts.Store,
		temperature:    opts.Temperature,
		requestTimeout: opts.RequestTimeout,
		metrics:        opts.Metrics,
		logger:         opts.Logger,
	}
	a.scheduler = sched.New(opts.Clock, a.fireScheduled, opts.Logger)
	return a
}

// Run drives the deferred-execution scheduler until ctx is cancelled.
func (a *Agent) Run(ctx context.Context) error {
	return a.scheduler.Run(ctx)
}

// PendingScheduled returns the number of deferred commands not yet fired.
func (a *Agent) PendingScheduled() int {
	return a.scheduler.Pending()
}

// CancelScheduled cancels a deferred command by handle ID.
func (a *Agent) CancelScheduled(h sched.Handle) bool {
	ok := a.scheduler.Cancel(h.ID)
	if ok {
		a.metrics.ScheduledTasks.Add(context.Background(), -1)
	}
	return ok
}

// Handle processes one user utterance and returns the reply. An error is
// returned only for pipeline-level failures (the backend unreachable or
// timed out); command execution failures are reported in the reply text and
// Result.
func (a *Agent) Handle(ctx context.Context, utterance string) (Reply, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	ctx, span := observe.StartSpan(ctx, "agent.turn")
	defer span.End()

	start := time.Now()
	defer func() {
		a.metrics.TurnDuration.Record(ctx, time.Since(start).Seconds())
	}()

	cleaned, delay := ExtractDelay(utterance)
	if strings.TrimSpace(cleaned) == "" {
		cleaned = utterance
		delay = 0
	}

	history := a.store.History()
	snap := a.store.Snapshot()
	a.store.Append(convo.Turn{Role: convo.RoleUser, Text: utterance})

	req := a.enc.Encode(history, snap, cleaned)
	req.Model = snap.ActiveModel
	req.Temperature = a.temperature

	reply, err := a.complete(ctx, req)
	if err != nil {
		return Reply{}, err
	}

	call, chat := a.dec.Decode(reply)
	if call == nil {
		// Structured content that yielded neither a command nor a chat
		// envelope counts as a decode miss; the text is still shown.
		if strings.Contains(chat, "{") {
			a.metrics.DecodeFailures.Add(ctx, 1)
			a.logger.Debug("no function call recovered from reply", "reply", reply)
		}
		a.store.Append(convo.Turn{Role: convo.RoleAssistant, Text: chat})
		return Reply{Text: chat}, nil
	}
	call.Delay = delay

	span.SetAttributes(observe.Attr("capability", call.Name))

	vcall, err := a.validator.Validate(*call)
	if err != nil {
		text := a.explainInvalid(ctx, call, err)
		a.store.Append(convo.Turn{Role: convo.RoleAssistant, Text: text, Call: call})
		return Reply{Text: text}, nil
	}

	if vcall.Delay > 0 {
		handle := a.scheduler.Schedule(*vcall, vcall.Delay)
		a.metrics.ScheduledTasks.Add(ctx, 1)
		a.logger.Info("command scheduled",
			"capability", vcall.Spec.Name,
			"delay", vcall.Delay,
			"id", handle.ID,
		)
		text := fmt.Sprintf("Okay, I'll run %s in %s.", vcall.Spec.Name, vcall.Delay)
		a.store.Append(convo.Turn{Role: convo.RoleAssistant, Text: text, Call: call})
		return Reply{Text: text, Call: vcall, Scheduled: &handle}, nil
	}

	res := a.dispatcher.Dispatch(ctx, *vcall)
	text := summarize(vcall, res)
	a.store.Append(convo.Turn{Role: convo.RoleAssistant, Text: text, Call: call, Result: text})
	return Reply{Text: text, Call: vcall, Result: &res}, nil
}

// complete sends the request under the configured timeout and records model
// latency.
func (a *Agent) complete(ctx context.Context, req llm.CompletionRequest) (string, error) {
	tctx, cancel := context.WithTimeout(ctx, a.requestTimeout)
	defer cancel()

	start := time.Now()
	reply, err := a.provider.Complete(tctx, req)
	a.metrics.LLMDuration.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(observe.Attr("model", req.Model)))

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			a.metrics.RecordProviderError(ctx, "timeout")
			return "", fmt.Errorf("%w after %s: %v", ErrUpstreamTimeout, a.requestTimeout, err)
		}
		a.metrics.RecordProviderError(ctx, "request")
		return "", fmt.Errorf("agent: model request: %w", err)
	}
	return reply, nil
}

// explainInvalid records the validation failure and builds the user-facing
// explanation.
func (a *Agent) explainInvalid(ctx context.Context, call *capability.FunctionCall, err error) string {
	kind := "unknown_capability"
	var verr *capability.ValidationError
	if errors.As(err, &verr) {
		kind = string(verr.Kind)
	}
	a.metrics.RecordValidationFailure(ctx, call.Name, kind)
	a.logger.Warn("function call failed validation",
		"capability", call.Name, "kind", kind, "err", err)

	if errors.Is(err, capability.ErrUnknown) {
		return fmt.Sprintf("I don't know how to do %q.", call.Name)
	}
	return fmt.Sprintf("I couldn't run that: %v", err)
}

// fireScheduled executes a deferred command when its due time arrives.
func (a *Agent) fireScheduled(ctx context.Context, call capability.ValidatedCall) {
	a.metrics.ScheduledTasks.Add(ctx, -1)

	res := a.dispatcher.Dispatch(ctx, call)
	text := summarize(&call, res)
	a.store.Append(convo.Turn{Role: convo.RoleSystem, Text: text, Result: text})

	if res.Err != nil {
		a.logger.Warn("scheduled command failed",
			"capability", call.Spec.Name, "err", res.Err)
		return
	}
	a.logger.Info("scheduled command executed", "capability", call.Spec.Name)
}

// summarize builds the user-facing outcome text for a dispatched command.
func summarize(call *capability.ValidatedCall, res dispatch.ExecutionResult) string {
	switch {
	case res.Cancelled:
		return fmt.Sprintf("Okay, I won't run %s.", call.Spec.Name)
	case res.Err != nil:
		return fmt.Sprintf("Sorry, %s failed: %v", call.Spec.Name, res.Err)
	case res.Message != "":
		return res.Message
	default:
		return "Done."
	}
}
