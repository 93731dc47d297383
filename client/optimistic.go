package client

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/c360/actionkit/action"
	akerrors "github.com/c360/actionkit/errors"
)

// OptimisticOptions configures an OptimisticInvoker. Apply is the pure
// transform producing the optimistic view from the call input and the
// current value. Current optionally supplies the baseline from outside
// the invoker; when nil the invoker's own last value is the baseline.
type OptimisticOptions struct {
	Options
	Current func() any
	Apply   func(input, current any) any
}

// OptimisticInvoker layers optimistic updates on an Invoker. Each call
// snapshots the current value, publishes the transformed view
// synchronously before any transport work, then reconciles when the
// call settles: success overwrites the view with server truth, failure
// rolls back to the snapshot unless a newer call has started, and an
// abort leaves the view alone entirely.
type OptimisticInvoker struct {
	inv  *Invoker
	opts OptimisticOptions

	mu         sync.Mutex
	generation uint64
	value      *Store[any]
}

// NewOptimistic builds an optimistic invoker.
func NewOptimistic(opts OptimisticOptions) (*OptimisticInvoker, error) {
	if opts.Apply == nil {
		return nil, errors.New("client: optimistic invoker requires an apply transform")
	}
	inv, err := NewInvoker(opts.Options)
	if err != nil {
		return nil, err
	}
	return &OptimisticInvoker{
		inv:   inv,
		opts:  opts,
		value: NewStore[any](nil),
	}, nil
}

// Value exposes the observable optimistic view.
func (o *OptimisticInvoker) Value() *Store[any] { return o.value }

// State exposes the underlying invoker lifecycle.
func (o *OptimisticInvoker) State() *Store[ExecState] { return o.inv.State() }

// Execute publishes the optimistic view and starts the remote call.
func (o *OptimisticInvoker) Execute(ctx context.Context, input any) *Call {
	var gen uint64
	var snapshot any

	began := func() {
		o.mu.Lock()
		o.generation++
		gen = o.generation
		base := o.value.Get()
		if o.opts.Current != nil {
			base = o.opts.Current()
		}
		snapshot = cloneValue(base)
		next := o.opts.Apply(input, base)
		o.mu.Unlock()
		o.value.Set(next)
	}

	settle := func(res *action.Result) {
		if res.OK {
			o.value.Set(res.Data)
			return
		}
		if res.Error != nil && res.Error.Code == akerrors.CodeAbort {
			return
		}
		o.mu.Lock()
		latest := gen == o.generation
		o.mu.Unlock()
		if latest {
			o.value.Set(snapshot)
		}
	}

	return o.inv.executeWith(ctx, input, began, settle)
}

// ExecuteData runs the call to completion and unwraps the envelope.
func (o *OptimisticInvoker) ExecuteData(ctx context.Context, input any) (any, error) {
	res := o.Execute(ctx, input).Result()
	if res.OK {
		return res.Data, nil
	}
	return nil, res.Error
}

// Reset aborts any in-flight call and returns the lifecycle to idle.
// The optimistic view is left as-is.
func (o *OptimisticInvoker) Reset() { o.inv.Reset() }

// Close disposes the underlying invoker.
func (o *OptimisticInvoker) Close() { o.inv.Close() }

// cloneValue deep-clones JSON-representable values so later mutation of
// the live view cannot corrupt a rollback snapshot. Values that do not
// survive a JSON round trip are kept by reference.
func cloneValue(v any) any {
	if v == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return v
	}
	return out
}
