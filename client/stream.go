package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/c360/actionkit/action"
	akerrors "github.com/c360/actionkit/errors"
)

// StreamStatus is the lifecycle phase of a StreamConsumer.
type StreamStatus string

const (
	StreamIdle      StreamStatus = "idle"
	StreamStreaming StreamStatus = "streaming"
	StreamDone      StreamStatus = "done"
	StreamError     StreamStatus = "error"
)

// StreamState is the observable state of a StreamConsumer. Chunks
// accumulates every data payload of the current call in arrival order.
type StreamState struct {
	Status StreamStatus
	Chunks []any
	Error  *akerrors.ActionError
}

// StreamOptions configures a StreamConsumer.
type StreamOptions struct {
	Path      string
	Method    string // defaults to POST
	Transport Transport
	// Timeout caps the total stream duration from call start; 0 means none.
	Timeout time.Duration

	OnChunk func(chunk any)
	OnDone  func(chunks []any)
	OnError func(err *akerrors.ActionError)

	Logger *slog.Logger
}

// StreamConsumer executes a streaming action and decodes its SSE frames
// incrementally: events split across network reads are reassembled, and
// payloads carrying the reserved error or done marker keys terminate
// the stream. Starting a new call silently abandons the previous one.
type StreamConsumer struct {
	opts   StreamOptions
	logger *slog.Logger
	state  *Store[StreamState]

	mu         sync.Mutex
	generation uint64
	cancel     context.CancelFunc
	current    *streamCall
}

type streamCall struct {
	stopped  atomic.Bool
	timedOut atomic.Bool
}

// NewStreamConsumer validates the options and builds a consumer.
func NewStreamConsumer(opts StreamOptions) (*StreamConsumer, error) {
	if opts.Path == "" {
		return nil, errors.New("client: stream consumer requires a path")
	}
	if opts.Transport == nil {
		return nil, errors.New("client: stream consumer requires a transport")
	}
	if opts.Method == "" {
		opts.Method = http.MethodPost
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &StreamConsumer{
		opts:   opts,
		logger: logger.With("action_path", opts.Path),
		state:  NewStore(StreamState{Status: StreamIdle}),
	}, nil
}

// State exposes the consumer's observable lifecycle.
func (s *StreamConsumer) State() *Store[StreamState] { return s.state }

// Execute starts a streaming call, abandoning any previous one. Chunk
// accumulation restarts from empty.
func (s *StreamConsumer) Execute(ctx context.Context, input any) {
	s.mu.Lock()
	s.generation++
	gen := s.generation
	if s.cancel != nil {
		s.cancel()
	}
	cctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	call := &streamCall{}
	s.current = call
	s.mu.Unlock()

	s.state.Set(StreamState{Status: StreamStreaming})
	go s.run(cctx, cancel, gen, call, input)
}

// Stop ends the current stream without an error; accumulated chunks are
// delivered through the completion hook.
func (s *StreamConsumer) Stop() {
	s.mu.Lock()
	if s.current != nil {
		s.current.stopped.Store(true)
	}
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (s *StreamConsumer) run(ctx context.Context, cancel context.CancelFunc, gen uint64, call *streamCall, input any) {
	defer cancel()

	if s.opts.Timeout > 0 {
		timer := time.AfterFunc(s.opts.Timeout, func() {
			call.timedOut.Store(true)
			cancel()
		})
		defer timer.Stop()
	}

	body, err := s.opts.Transport.Stream(ctx, s.opts.Method, s.opts.Path, input)
	if err != nil {
		s.finishAfterError(gen, call, nil, err)
		return
	}
	defer func() { _ = body.Close() }()

	var chunks []any
	var leftover []byte
	buf := make([]byte, 4096)
	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			leftover = append(leftover, buf[:n]...)
			for {
				idx := bytes.IndexByte(leftover, '\n')
				if idx < 0 {
					break
				}
				line := leftover[:idx]
				leftover = leftover[idx+1:]
				if terminal := s.handleLine(gen, line, &chunks); terminal {
					return
				}
			}
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				// Server closed without a done marker; treat as done.
				s.finishDone(gen, chunks)
				return
			}
			s.finishAfterError(gen, call, chunks, readErr)
			return
		}
	}
}

// handleLine processes one SSE line, reporting whether the stream
// reached a terminal marker.
func (s *StreamConsumer) handleLine(gen uint64, line []byte, chunks *[]any) bool {
	line = bytes.TrimSuffix(line, []byte("\r"))
	if len(line) == 0 || line[0] == ':' {
		return false
	}
	payload, ok := bytes.CutPrefix(line, []byte("data:"))
	if !ok {
		// Other SSE fields (event, id, retry) carry no action payload.
		return false
	}
	payload = bytes.TrimSpace(payload)

	var value any
	if err := json.Unmarshal(payload, &value); err != nil {
		s.logger.Warn("skipping malformed stream payload", "error", err)
		return false
	}

	if fields, isMap := value.(map[string]any); isMap {
		if raw, found := fields[action.ErrorMarkerKey]; found {
			s.finishError(gen, *chunks, decodeStreamError(raw))
			return true
		}
		if _, found := fields[action.DoneMarkerKey]; found {
			s.finishDone(gen, *chunks)
			return true
		}
	}

	*chunks = append(*chunks, value)
	if s.isLatest(gen) {
		s.state.Set(StreamState{Status: StreamStreaming, Chunks: copyChunks(*chunks)})
		if s.opts.OnChunk != nil {
			s.opts.OnChunk(value)
		}
	}
	return false
}

// finishAfterError maps a transport or read failure to the terminal
// state: a user stop or caller cancellation ends the stream cleanly, a
// timeout yields TIMEOUT_ERROR, anything else STREAM_ERROR.
func (s *StreamConsumer) finishAfterError(gen uint64, call *streamCall, chunks []any, err error) {
	switch {
	case call.timedOut.Load():
		s.finishError(gen, chunks, akerrors.Timeout())
	case call.stopped.Load(), errors.Is(err, context.Canceled):
		s.finishDone(gen, chunks)
	case errors.Is(err, context.DeadlineExceeded):
		s.finishError(gen, chunks, akerrors.Timeout())
	default:
		s.finishError(gen, chunks, akerrors.Stream(err.Error()))
	}
}

func (s *StreamConsumer) finishDone(gen uint64, chunks []any) {
	if !s.isLatest(gen) {
		return
	}
	s.state.Set(StreamState{Status: StreamDone, Chunks: copyChunks(chunks)})
	if s.opts.OnDone != nil {
		s.opts.OnDone(chunks)
	}
}

func (s *StreamConsumer) finishError(gen uint64, chunks []any, streamErr *akerrors.ActionError) {
	if !s.isLatest(gen) {
		return
	}
	s.state.Set(StreamState{Status: StreamError, Chunks: copyChunks(chunks), Error: streamErr})
	if s.opts.OnError != nil {
		s.opts.OnError(streamErr)
	}
}

func (s *StreamConsumer) isLatest(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return gen == s.generation
}

// decodeStreamError rebuilds the ActionError carried by an error
// marker. Payloads that do not decode fall back to a generic stream
// error so the terminal state always has a typed cause.
func decodeStreamError(raw any) *akerrors.ActionError {
	encoded, err := json.Marshal(raw)
	if err != nil {
		return akerrors.Stream("stream terminated with undecodable error")
	}
	var actionErr akerrors.ActionError
	if err := json.Unmarshal(encoded, &actionErr); err != nil || actionErr.Code == "" {
		return akerrors.Stream("stream terminated with undecodable error")
	}
	return &actionErr
}

func copyChunks(chunks []any) []any {
	out := make([]any, len(chunks))
	copy(out, chunks)
	return out
}
