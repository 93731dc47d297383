package action

import (
	"context"
	"errors"
	"log/slog"

	"github.com/c360/actionkit/pkg/deepmerge"
)

// Middleware is one context-transforming step. It receives the request and
// a single-use continuation; calling the continuation returns the current
// accumulated context, optionally deep-merging a contributed fragment first.
// A step that returns an error aborts the remaining chain and the handler.
type Middleware func(ctx context.Context, req *Request, next Next) error

// Next is the continuation handed to a middleware step. The fragment may be
// nil when the step only wants to read the accumulator. Calling Next more
// than once within the same step is a programming error and fails the chain.
type Next func(fragment map[string]any) (map[string]any, error)

// ErrContinuationReused is the fatal signal raised when a middleware step
// invokes its continuation a second time.
var ErrContinuationReused = errors.New("middleware continuation invoked more than once")

// runChain executes the middleware steps strictly in declaration order,
// accumulating contributed context fragments by deep merge. The returned
// map is the context handed to the handler.
func runChain(ctx context.Context, logger *slog.Logger, name string, req *Request, steps []Middleware) (map[string]any, error) {
	acc := map[string]any{}
	for i, step := range steps {
		calls := 0
		next := func(fragment map[string]any) (map[string]any, error) {
			calls++
			if calls > 1 {
				return nil, ErrContinuationReused
			}
			if fragment != nil {
				acc = deepmerge.Merge(acc, fragment)
			}
			return acc, nil
		}

		if err := step(ctx, req, next); err != nil {
			return nil, err
		}
		// The reuse signal is fatal even when the step swallowed it.
		if calls > 1 {
			return nil, ErrContinuationReused
		}
		if calls == 0 {
			// Intentional short-circuits are legitimate, so this is a
			// diagnostic rather than a failure.
			logger.Warn("middleware completed without calling next",
				"action", name, "step", i)
		}
	}
	return acc, nil
}
