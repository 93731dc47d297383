package action

import (
	"context"
	"errors"
	"sync"

	akerrors "github.com/c360/actionkit/errors"
)

// Frame is one event on a stream channel: a data chunk, an error marker, or
// the terminal done marker. Exactly one field is meaningful per frame.
type Frame struct {
	Data any
	Err  *akerrors.ActionError
	Done bool
}

// ErrStreamClosed is returned by Send after the stream was closed.
var ErrStreamClosed = errors.New("stream already closed")

// Sender is the capability handed to a streaming handler. Send pushes one
// chunk to the caller; Close emits the terminal marker. Both are safe for
// use from the handler goroutine only.
type Sender struct {
	ctx context.Context
	ch  chan<- Frame

	mu     sync.Mutex
	closed bool
}

// Send pushes one data chunk. It fails once the stream is closed or the
// request context is done.
func (s *Sender) Send(chunk any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStreamClosed
	}
	select {
	case s.ch <- Frame{Data: chunk}:
		return nil
	case <-s.ctx.Done():
		return s.ctx.Err()
	}
}

// Close emits the terminal done marker. Subsequent Send and Close calls
// are no-ops.
func (s *Sender) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	select {
	case s.ch <- Frame{Done: true}:
	case <-s.ctx.Done():
	}
}

func (s *Sender) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// streamPrologue runs the shared prologue with the same panic boundary
// Execute has, so a panicking validator or middleware still yields a
// well-formed error frame instead of escaping to the caller.
func (a *Action) streamPrologue(ctx context.Context, req *Request) (input any, actx map[string]any, aerr *akerrors.ActionError) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("stream prologue panicked", "action", a.name, "panic", r)
			aerr = akerrors.Internal()
		}
	}()
	return a.prologue(ctx, req)
}

// ExecuteStream runs the streaming variant of the pipeline. The prologue
// (parse, input validation, middleware) runs before the channel opens; a
// prologue failure is delivered as a single error frame on a channel opened
// solely for that purpose, so the caller always receives a well-formed
// stream. Once the handler is running, chunks flow until it closes the
// stream or returns; a handler failure after that point is pushed as one
// error frame because the initial response can no longer carry it.
func (a *Action) ExecuteStream(ctx context.Context, req *Request) <-chan Frame {
	ch := make(chan Frame, a.streamBuffer)

	input, actx, aerr := a.streamPrologue(ctx, req)
	if aerr != nil {
		go func() {
			defer close(ch)
			ch <- Frame{Err: aerr}
		}()
		return ch
	}

	sender := &Sender{ctx: ctx, ch: ch}
	go func() {
		defer close(ch)
		defer func() {
			if r := recover(); r != nil {
				a.logger.Error("stream handler panicked", "action", a.name, "panic", r)
				if !sender.isClosed() {
					ch <- Frame{Err: akerrors.Internal()}
				}
			}
		}()

		err := a.streamHandler(ctx, input, actx, sender)
		if err != nil {
			if sender.isClosed() {
				// The done marker already went out; the error can only be
				// logged at this point.
				a.logger.Error("stream handler failed after close",
					"action", a.name, "error", err)
				return
			}
			select {
			case ch <- Frame{Err: akerrors.Classify(err, a.onServerError)}:
			case <-ctx.Done():
			}
			return
		}

		// Handler returned cleanly without closing: emit the terminal
		// marker on its behalf.
		sender.Close()
	}()

	return ch
}
