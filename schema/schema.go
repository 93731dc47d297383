// Package schema defines the validation contract the action pipeline runs
// input and output values through, plus adapters that normalize third-party
// validators into it. The contract is deliberately small: a validator takes
// a raw value and reports either a (possibly transformed) value or a list of
// issues with field paths.
package schema

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Issue is a single validation failure. Path locates the offending value;
// an empty path means the failure applies to the value as a whole.
type Issue struct {
	Message string
	Path    []string
}

// Schema is the validation capability accepted by the action pipeline.
// Validate returns the validated (possibly transformed) value, or a
// non-empty issue list on rejection. Implementations may block on ctx.
type Schema interface {
	Validate(ctx context.Context, value any) (any, []Issue)
}

// Func adapts a plain function to Schema.
type Func func(ctx context.Context, value any) (any, []Issue)

// Validate implements Schema.
func (f Func) Validate(ctx context.Context, value any) (any, []Issue) {
	return f(ctx, value)
}

// simpleValidator is the shape exposed by single-error validation libraries.
type simpleValidator interface {
	Validate(value any) (any, error)
}

// issuer is implemented by validator errors that carry structured issues.
type issuer interface {
	Issues() []Issue
}

// pather is implemented by validator errors that locate a single field.
type pather interface {
	Path() []string
}

// ErrUnsupportedValidator reports a configured validator that satisfies none
// of the accepted shapes. This is a programming error surfaced at action
// registration, before any request-specific work occurs.
var ErrUnsupportedValidator = errors.New("unsupported validator: value does not implement a known validation contract")

// Adapt normalizes a pluggable validator value into a Schema. Accepted
// shapes, in order: Schema itself, Func-compatible functions, and
// single-error validators with Validate(any) (any, error). Anything else
// fails fast with ErrUnsupportedValidator.
func Adapt(v any) (Schema, error) {
	switch s := v.(type) {
	case nil:
		return nil, fmt.Errorf("%w: nil validator", ErrUnsupportedValidator)
	case Schema:
		return s, nil
	case func(ctx context.Context, value any) (any, []Issue):
		return Func(s), nil
	case simpleValidator:
		return Func(func(_ context.Context, value any) (any, []Issue) {
			out, err := s.Validate(value)
			if err != nil {
				return nil, issuesFromError(err)
			}
			return out, nil
		}), nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedValidator, v)
	}
}

// issuesFromError converts a single-error validator failure to issues,
// preserving structure when the error exposes it.
func issuesFromError(err error) []Issue {
	var is issuer
	if errors.As(err, &is) {
		return is.Issues()
	}
	issue := Issue{Message: err.Error()}
	var p pather
	if errors.As(err, &p) {
		issue.Path = p.Path()
	}
	return []Issue{issue}
}

// rootKey is the field-error key for issues without a path.
const rootKey = "_root"

// FieldErrors folds issues into a map keyed by dotted field path. Multiple
// issues on the same path accumulate in issue order.
func FieldErrors(issues []Issue) map[string][]string {
	if len(issues) == 0 {
		return nil
	}
	out := make(map[string][]string, len(issues))
	for _, issue := range issues {
		key := rootKey
		if len(issue.Path) > 0 {
			key = strings.Join(issue.Path, ".")
		}
		out[key] = append(out[key], issue.Message)
	}
	return out
}
