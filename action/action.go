// Package action implements the server-side action execution pipeline:
// validated request handlers producing a uniform result envelope, with a
// middleware chain that accumulates context across steps, and a streaming
// variant that pushes chunks over a server-sent event channel.
package action

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/c360/actionkit/errors"
	"github.com/c360/actionkit/schema"
)

// HandlerFunc is the business logic of an action. It receives the validated
// (possibly schema-transformed) input and the middleware-accumulated
// context, and returns the output value or an error for the classifier.
type HandlerFunc func(ctx context.Context, input any, actx map[string]any) (any, error)

// StreamHandlerFunc is the business logic of a streaming action. Instead of
// returning a single value it emits chunks through the sender until it
// closes the stream or returns.
type StreamHandlerFunc func(ctx context.Context, input any, actx map[string]any, sender *Sender) error

// Action is an immutable action configuration. Builder methods return a
// modified copy, so an Action can safely serve as a base for multiple
// variants. Construct with New, configure with the chainable methods, and
// check Err before serving requests.
type Action struct {
	name          string
	inputSchema   schema.Schema
	outputSchema  schema.Schema
	middlewares   []Middleware
	handler       HandlerFunc
	streamHandler StreamHandlerFunc
	onServerError errors.ServerErrorHook
	streamBuffer  int
	logger        *slog.Logger
	configErr     error
}

// New creates an empty action configuration.
func New(name string) *Action {
	return &Action{
		name:         name,
		streamBuffer: defaultStreamBuffer,
		logger:       slog.Default(),
	}
}

const defaultStreamBuffer = 16

// clone returns a shallow copy with its own middleware slice.
func (a *Action) clone() *Action {
	c := *a
	c.middlewares = append([]Middleware(nil), a.middlewares...)
	return &c
}

// Name returns the action name used in logs and metrics.
func (a *Action) Name() string { return a.name }

// Input configures the input validator. Any value satisfying a known
// validation contract is accepted (see schema.Adapt); anything else is a
// programming error recorded for Err.
func (a *Action) Input(v any) *Action {
	c := a.clone()
	s, err := schema.Adapt(v)
	if err != nil {
		c.configErr = fmt.Errorf("action %q: input schema: %w", a.name, err)
		return c
	}
	c.inputSchema = s
	return c
}

// Output configures the output validator.
func (a *Action) Output(v any) *Action {
	c := a.clone()
	s, err := schema.Adapt(v)
	if err != nil {
		c.configErr = fmt.Errorf("action %q: output schema: %w", a.name, err)
		return c
	}
	c.outputSchema = s
	return c
}

// Use appends middleware steps. Steps run strictly in declaration order.
func (a *Action) Use(mw ...Middleware) *Action {
	c := a.clone()
	c.middlewares = append(c.middlewares, mw...)
	return c
}

// Handler sets the single-result handler.
func (a *Action) Handler(h HandlerFunc) *Action {
	c := a.clone()
	c.handler = h
	return c
}

// StreamHandler sets the streaming handler.
func (a *Action) StreamHandler(h StreamHandlerFunc) *Action {
	c := a.clone()
	c.streamHandler = h
	return c
}

// OnServerError installs a hook translating generic handler errors into
// application-defined codes before the opaque INTERNAL_ERROR fallback.
func (a *Action) OnServerError(hook errors.ServerErrorHook) *Action {
	c := a.clone()
	c.onServerError = hook
	return c
}

// StreamBuffer sets the channel buffer used by the streaming pipeline.
func (a *Action) StreamBuffer(n int) *Action {
	c := a.clone()
	if n > 0 {
		c.streamBuffer = n
	}
	return c
}

// WithLogger sets the structured logger used for diagnostics.
func (a *Action) WithLogger(logger *slog.Logger) *Action {
	c := a.clone()
	if logger != nil {
		c.logger = logger
	}
	return c
}

// Err reports configuration errors: an unsupported validator shape or a
// missing handler. This is the one failure class that propagates instead of
// becoming a result envelope, because it is discoverable at development
// time. Callers must check it before serving requests.
func (a *Action) Err() error {
	if a.configErr != nil {
		return a.configErr
	}
	if a.handler == nil && a.streamHandler == nil {
		return fmt.Errorf("action %q: no handler configured", a.name)
	}
	return nil
}

// IsStream reports whether the action is configured for streaming.
func (a *Action) IsStream() bool { return a.streamHandler != nil }
