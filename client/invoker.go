package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/c360/actionkit/action"
	akerrors "github.com/c360/actionkit/errors"
	"github.com/c360/actionkit/pkg/ratelimit"
)

// DedupeMode controls how overlapping calls on one invoker interact.
type DedupeMode int

const (
	// DedupeNone lets calls overlap freely; the latest settle wins the
	// shared state.
	DedupeNone DedupeMode = iota
	// DedupeCancel aborts the in-flight call when a new one starts.
	DedupeCancel
	// DedupeDefer returns the in-flight call instead of starting a new one.
	DedupeDefer
)

// Options configures an Invoker.
type Options struct {
	Path      string
	Method    string // defaults to POST
	Transport Transport
	Dedupe    DedupeMode
	// Debounce and Throttle are rate-limit windows applied to the
	// transport call; all callers collapsed into one window share its
	// outcome. Debounce takes precedence when both are set.
	Debounce time.Duration
	Throttle time.Duration

	OnBefore  func(input any)
	OnSuccess func(data any)
	OnError   func(err *akerrors.ActionError)
	OnFinally func(result *action.Result)

	Logger *slog.Logger
}

// Call is the settled-or-pending outcome of one Execute. Result blocks
// until the call settles; it always returns an envelope, never panics.
type Call struct {
	done   chan struct{}
	result *action.Result
}

func newCall() *Call { return &Call{done: make(chan struct{})} }

func settledCall(res *action.Result) *Call {
	c := newCall()
	c.result = res
	close(c.done)
	return c
}

// Done is closed when the call has settled.
func (c *Call) Done() <-chan struct{} { return c.done }

// Result blocks until the call settles and returns its envelope.
func (c *Call) Result() *action.Result {
	<-c.done
	return c.result
}

// Invoker executes one remote action and tracks its lifecycle in an
// observable ExecState store. Every call settles with an envelope;
// transport failures are folded into failure envelopes rather than
// surfaced as bare errors.
type Invoker struct {
	opts    Options
	logger  *slog.Logger
	state   *Store[ExecState]
	limiter *ratelimit.Limiter

	mu             sync.Mutex
	generation     uint64
	inFlight       *Call
	cancelInFlight context.CancelFunc
	closed         bool
}

// NewInvoker validates the options and builds an invoker.
func NewInvoker(opts Options) (*Invoker, error) {
	if opts.Path == "" {
		return nil, errors.New("client: invoker requires a path")
	}
	if opts.Transport == nil {
		return nil, errors.New("client: invoker requires a transport")
	}
	if opts.Method == "" {
		opts.Method = http.MethodPost
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	inv := &Invoker{
		opts:   opts,
		logger: logger.With("action_path", opts.Path),
		state:  NewStore(ExecState{Status: StatusIdle}),
	}
	call := func(ctx context.Context, args any) (any, error) {
		return inv.transportCall(ctx, args), nil
	}
	// Debounce takes precedence when both windows are configured.
	switch {
	case opts.Debounce > 0:
		inv.limiter = ratelimit.NewDebounce(call, opts.Debounce)
	case opts.Throttle > 0:
		inv.limiter = ratelimit.NewThrottle(call, opts.Throttle)
	}
	return inv, nil
}

// State exposes the invoker's observable lifecycle.
func (inv *Invoker) State() *Store[ExecState] { return inv.state }

// Execute starts a call and returns immediately. Depending on the
// dedupe mode an overlapping call may abort the previous one or reuse
// it; debounce and throttle windows may collapse several Executes into
// one transport call whose outcome all of them share.
func (inv *Invoker) Execute(ctx context.Context, input any) *Call {
	return inv.executeWith(ctx, input, nil, nil)
}

// ExecuteData runs the call to completion and unwraps the envelope,
// returning the failure as an error.
func (inv *Invoker) ExecuteData(ctx context.Context, input any) (any, error) {
	res := inv.Execute(ctx, input).Result()
	if res.OK {
		return res.Data, nil
	}
	if res.Error != nil {
		return nil, res.Error
	}
	return nil, fmt.Errorf("action %s failed without error detail", inv.opts.Path)
}

// executeWith is Execute with per-call hooks used by the optimistic
// invoker: began fires synchronously once a new call is committed,
// before any transport work; settle fires with the envelope before the
// call is released to waiters.
func (inv *Invoker) executeWith(ctx context.Context, input any, began func(), settle func(*action.Result)) *Call {
	inv.mu.Lock()
	if inv.closed {
		inv.mu.Unlock()
		return settledCall(action.Fail(akerrors.Abort()))
	}
	if inv.opts.Dedupe == DedupeDefer && inv.inFlight != nil {
		call := inv.inFlight
		inv.mu.Unlock()
		return call
	}
	if inv.opts.Dedupe == DedupeCancel && inv.cancelInFlight != nil {
		inv.cancelInFlight()
	}
	inv.generation++
	gen := inv.generation
	cctx, cancel := context.WithCancel(ctx)
	call := newCall()
	inv.inFlight = call
	inv.cancelInFlight = cancel
	prev := inv.state.Get()
	inv.mu.Unlock()

	if began != nil {
		began()
	}
	inv.state.Set(ExecState{Status: StatusExecuting, Data: prev.Data})

	go inv.run(cctx, cancel, gen, input, call, settle)
	return call
}

func (inv *Invoker) run(ctx context.Context, cancel context.CancelFunc, gen uint64, input any, call *Call, settleHook func(*action.Result)) {
	defer cancel()

	if inv.opts.OnBefore != nil {
		inv.opts.OnBefore(input)
	}

	var res *action.Result
	if inv.limiter != nil {
		value, err := inv.limiter.Call(ctx, input).Wait(ctx)
		switch {
		case err == nil:
			res = value.(*action.Result)
		case errors.Is(err, ratelimit.ErrCanceled), errors.Is(err, context.Canceled):
			res = action.Fail(akerrors.Abort())
		case errors.Is(err, context.DeadlineExceeded):
			res = action.Fail(akerrors.Timeout())
		default:
			res = action.Fail(akerrors.Fetch(err.Error()))
		}
	} else {
		res = inv.transportCall(ctx, input)
	}

	inv.settle(gen, call, res, settleHook)
}

// transportCall runs one transport round trip and folds any transport
// error into a failure envelope.
func (inv *Invoker) transportCall(ctx context.Context, input any) *action.Result {
	res, err := inv.opts.Transport.Do(ctx, inv.opts.Method, inv.opts.Path, input)
	if err == nil {
		return res
	}
	switch {
	case errors.Is(err, context.Canceled) || ctx.Err() == context.Canceled:
		return action.Fail(akerrors.Abort())
	case errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded:
		return action.Fail(akerrors.Timeout())
	default:
		inv.logger.Warn("transport call failed", "error", err)
		return action.Fail(akerrors.Fetch(err.Error()))
	}
}

func (inv *Invoker) settle(gen uint64, call *Call, res *action.Result, settleHook func(*action.Result)) {
	inv.mu.Lock()
	latest := gen == inv.generation && !inv.closed
	if inv.inFlight == call {
		inv.inFlight = nil
		inv.cancelInFlight = nil
	}
	inv.mu.Unlock()

	// A superseded call keeps its envelope but no longer owns the
	// shared state. An aborted latest call resets to idle: the abort
	// was caller-driven, not a failure worth displaying.
	if latest {
		switch {
		case res.OK:
			inv.state.Set(ExecState{Status: StatusSuccess, Data: res.Data})
		case res.Error != nil && res.Error.Code == akerrors.CodeAbort:
			inv.state.Set(ExecState{Status: StatusIdle})
		default:
			inv.state.Set(ExecState{Status: StatusError, Error: res.Error})
		}
	}

	if settleHook != nil {
		settleHook(res)
	}
	if res.OK {
		if inv.opts.OnSuccess != nil {
			inv.opts.OnSuccess(res.Data)
		}
	} else if inv.opts.OnError != nil {
		inv.opts.OnError(res.Error)
	}
	if inv.opts.OnFinally != nil {
		inv.opts.OnFinally(res)
	}

	call.result = res
	close(call.done)
}

// Reset aborts any in-flight call and returns the state to idle.
func (inv *Invoker) Reset() {
	inv.mu.Lock()
	inv.generation++
	cancel := inv.cancelInFlight
	inv.inFlight = nil
	inv.cancelInFlight = nil
	inv.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	inv.state.Set(ExecState{Status: StatusIdle})
}

// Close disposes the invoker: the in-flight call is aborted, pending
// rate-limited callers are settled with aborts, and later Executes
// settle immediately with an abort envelope.
func (inv *Invoker) Close() {
	inv.mu.Lock()
	if inv.closed {
		inv.mu.Unlock()
		return
	}
	inv.closed = true
	cancel := inv.cancelInFlight
	inv.inFlight = nil
	inv.cancelInFlight = nil
	inv.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if inv.limiter != nil {
		inv.limiter.Cancel()
	}
	inv.state.Set(ExecState{Status: StatusIdle})
}
