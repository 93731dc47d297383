// Package ratelimit wraps an async function with debounce or throttle
// scheduling. Callers that collapse into one underlying execution all share
// that execution's outcome, and Cancel settles every waiter instead of
// leaving promises pending forever.
package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrCanceled settles every waiter of a pending execution that was
// cancelled before it fired.
var ErrCanceled = errors.New("rate-limited call canceled")

// Fn is the wrapped async function.
type Fn func(ctx context.Context, args any) (any, error)

// Pending is the shared outcome of one underlying execution. Every caller
// collapsed into that execution receives the same Pending.
type Pending struct {
	once  sync.Once
	done  chan struct{}
	value any
	err   error
}

func newPending() *Pending {
	return &Pending{done: make(chan struct{})}
}

func (p *Pending) settle(value any, err error) {
	p.once.Do(func() {
		p.value = value
		p.err = err
		close(p.done)
	})
}

// Wait blocks until the execution settles or ctx is done.
func (p *Pending) Wait(ctx context.Context) (any, error) {
	select {
	case <-p.done:
		return p.value, p.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Done is closed once the outcome is settled.
func (p *Pending) Done() <-chan struct{} { return p.done }

// Limiter schedules calls to a wrapped function under debounce or throttle
// semantics. The zero value is not usable; construct with NewDebounce or
// NewThrottle.
type Limiter struct {
	fn       Fn
	delay    time.Duration
	throttle bool

	mu          sync.Mutex
	timer       *time.Timer
	pending     *Pending
	pendingCtx  context.Context
	pendingArgs any
	lastExec    time.Time
}

// NewDebounce wraps fn so that each call resets a single trailing timer.
// The timer fires delay after the most recent call, using that call's
// arguments; every caller in the window shares the one outcome.
func NewDebounce(fn Fn, delay time.Duration) *Limiter {
	return &Limiter{fn: fn, delay: delay}
}

// NewThrottle wraps fn so the first call in a window executes immediately
// and calls inside the window collapse into one trailing execution using
// the latest arguments at fire time.
func NewThrottle(fn Fn, window time.Duration) *Limiter {
	return &Limiter{fn: fn, delay: window, throttle: true}
}

// Call schedules an execution and returns its shared outcome.
func (l *Limiter) Call(ctx context.Context, args any) *Pending {
	if l.throttle {
		return l.callThrottle(ctx, args)
	}
	return l.callDebounce(ctx, args)
}

func (l *Limiter) callDebounce(ctx context.Context, args any) *Pending {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.pending == nil {
		l.pending = newPending()
	}
	l.pendingCtx = ctx
	l.pendingArgs = args

	if l.timer != nil {
		l.timer.Stop()
	}
	l.timer = time.AfterFunc(l.delay, l.fire)
	return l.pending
}

func (l *Limiter) callThrottle(ctx context.Context, args any) *Pending {
	l.mu.Lock()

	now := time.Now()
	if l.lastExec.IsZero() || now.Sub(l.lastExec) >= l.delay {
		// Window fully elapsed. A stale trailing timer may still exist;
		// clear it and fold its waiters into this immediate execution.
		if l.timer != nil {
			l.timer.Stop()
			l.timer = nil
		}
		p := l.pending
		l.pending = nil
		if p == nil {
			p = newPending()
		}
		l.lastExec = now
		l.mu.Unlock()

		value, err := l.fn(ctx, args)
		p.settle(value, err)
		return p
	}

	// Inside the window: defer to a single trailing execution scheduled
	// for the remainder of the window, latest arguments winning.
	if l.pending == nil {
		l.pending = newPending()
		l.timer = time.AfterFunc(l.delay-now.Sub(l.lastExec), l.fire)
	}
	l.pendingCtx = ctx
	l.pendingArgs = args
	p := l.pending
	l.mu.Unlock()
	return p
}

// fire runs the pending execution with the most recently supplied
// arguments.
func (l *Limiter) fire() {
	l.mu.Lock()
	p := l.pending
	ctx := l.pendingCtx
	args := l.pendingArgs
	l.pending = nil
	l.timer = nil
	if l.throttle {
		l.lastExec = time.Now()
	}
	l.mu.Unlock()

	if p == nil {
		return
	}
	value, err := l.fn(ctx, args)
	p.settle(value, err)
}

// Cancel clears any pending timer and settles its waiters with ErrCanceled.
// An execution that already fired is unaffected.
func (l *Limiter) Cancel() {
	l.mu.Lock()
	if l.timer != nil {
		l.timer.Stop()
		l.timer = nil
	}
	p := l.pending
	l.pending = nil
	l.mu.Unlock()

	if p != nil {
		p.settle(nil, ErrCanceled)
	}
}
