package webhook

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"golang.org/x/sync/errgroup"

	"datemate/pkg/alert"
	"datemate/pkg/logger"
)

const notifyTimeout = 10 * time.Second

// ErrHandlerTimeout is the fault recorded when a handler exceeds its deadline.
var ErrHandlerTimeout = errors.New("handler timed out")

// Dispatcher routes tool calls to registered handlers. Every call produces
// exactly one result, in input order; faults never escape Dispatch.
type Dispatcher struct {
	registry    *Registry
	log         *slog.Logger
	timeout     time.Duration
	parallelism int
	notifier    alert.Notifier
	now         func() time.Time
}

// Option customizes a Dispatcher.
type Option func(*Dispatcher)

// WithHandlerTimeout bounds each handler invocation. Zero disables it.
func WithHandlerTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.timeout = timeout
		}
	}
}

// WithParallelism runs up to n calls of one event concurrently. n <= 1 keeps
// sequential dispatch.
func WithParallelism(n int) Option {
	return func(d *Dispatcher) {
		if n > 1 {
			d.parallelism = n
		}
	}
}

// WithNotifier forwards handler faults to n asynchronously.
func WithNotifier(n alert.Notifier) Option {
	return func(d *Dispatcher) {
		if n != nil {
			d.notifier = n
		}
	}
}

// NewDispatcher builds a dispatcher over an immutable registry.
func NewDispatcher(registry *Registry, log *slog.Logger, opts ...Option) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	d := &Dispatcher{
		registry:    registry,
		log:         log.With("component", "webhook.dispatcher"),
		parallelism: 1,
		notifier:    alert.Nop{},
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch executes calls and returns one result per call in the same order.
func (d *Dispatcher) Dispatch(ctx context.Context, calls []ToolCall) []ToolResult {
	if ctx == nil {
		ctx = context.Background()
	}
	results := make([]ToolResult, len(calls))
	if len(calls) == 0 {
		return results
	}

	if d.parallelism <= 1 || len(calls) == 1 {
		for i, call := range calls {
			results[i] = d.dispatchOne(ctx, call)
		}
		return results
	}

	// Each goroutine owns its slot; dispatchOne never returns an error.
	var group errgroup.Group
	group.SetLimit(d.parallelism)
	for i, call := range calls {
		group.Go(func() error {
			results[i] = d.dispatchOne(ctx, call)
			return nil
		})
	}
	_ = group.Wait()

	return results
}

func (d *Dispatcher) dispatchOne(ctx context.Context, call ToolCall) ToolResult {
	name := call.Function.Name

	args, failure := DecodeArguments(call)
	if failure != nil {
		d.log.WarnContext(ctx, "Tool call arguments rejected",
			"tool", name,
			"tool_call_id", call.ID,
			"error", failure.ErrorMessage(),
		)
		return *failure
	}

	handler, ok := d.registry.Lookup(name)
	if !ok {
		d.log.WarnContext(ctx, "Tool not implemented", "tool", name, "tool_call_id", call.ID)
		return Failuref(call.ID, "Tool '%s' not implemented.", name)
	}

	started := d.now()
	result, err := d.execute(ctx, handler, args, call.ID)
	if err != nil {
		attrs := []any{
			"tool", name,
			"tool_call_id", call.ID,
			"duration", d.now().Sub(started),
			"error", err,
		}
		var panicked *panicError
		if errors.As(err, &panicked) {
			attrs = append(attrs, "stack", string(panicked.stack))
		}
		d.log.ErrorContext(ctx, "Tool handler fault", attrs...)
		d.notify(ctx, alert.Fault{
			Tool:       name,
			ToolCallID: call.ID,
			Detail:     err.Error(),
			RequestID:  logger.RequestIDFromContext(ctx),
			OccurredAt: d.now(),
		})
		return Failuref(call.ID, "Error executing tool %s: %v", name, err)
	}

	// Handlers own the payload; correlation is the dispatcher's job.
	result.ToolCallID = call.ID
	if result.Result == nil {
		result.Result = map[string]any{"success": false, "error": fmt.Sprintf("Tool %s returned no result", name)}
	}

	d.log.DebugContext(ctx, "Tool call completed",
		"tool", name,
		"tool_call_id", call.ID,
		"success", result.Succeeded(),
		"duration", d.now().Sub(started),
	)
	return result
}

type outcome struct {
	result ToolResult
	err    error
}

// execute runs the handler with panic recovery and the optional timeout.
func (d *Dispatcher) execute(ctx context.Context, handler ToolHandler, args map[string]any, toolCallID string) (ToolResult, error) {
	if d.timeout <= 0 {
		return safeExecute(ctx, handler, args, toolCallID)
	}

	runCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	done := make(chan outcome, 1)
	go func() {
		result, err := safeExecute(runCtx, handler, args, toolCallID)
		done <- outcome{result: result, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil && ctx.Err() == nil && errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return ToolResult{}, d.timeoutError()
		}
		return out.result, out.err
	case <-runCtx.Done():
		if ctx.Err() != nil {
			return ToolResult{}, ctx.Err()
		}
		return ToolResult{}, d.timeoutError()
	}
}

func (d *Dispatcher) timeoutError() error {
	return fmt.Errorf("%w after %s", ErrHandlerTimeout, d.timeout)
}

func safeExecute(ctx context.Context, handler ToolHandler, args map[string]any, toolCallID string) (result ToolResult, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = &panicError{value: recovered, stack: debug.Stack()}
		}
	}()
	return handler.Execute(ctx, args, toolCallID)
}

type panicError struct {
	value any
	stack []byte
}

func (e *panicError) Error() string {
	return fmt.Sprintf("panic: %v", e.value)
}

func (d *Dispatcher) notify(ctx context.Context, fault alert.Fault) {
	if _, nop := d.notifier.(alert.Nop); nop {
		return
	}
	notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	go func() {
		defer cancel()
		if err := d.notifier.NotifyFault(notifyCtx, fault); err != nil {
			d.log.Warn("Fault notification failed", "tool", fault.Tool, "error", err)
		}
	}()
}
