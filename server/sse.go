package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/c360/actionkit/action"
	"github.com/c360/actionkit/errors"
)

// serveStream runs a streaming action and writes its frames as
// server-sent events. Every frame carries one JSON payload on a data line;
// control signals use the reserved marker keys so the client can
// distinguish them from ordinary chunks.
func (s *Server) serveStream(ctx context.Context, w http.ResponseWriter, act *action.Action, req *action.Request, requestID string) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	flusher, canFlush := w.(http.Flusher)
	if canFlush {
		flusher.Flush()
	}

	if s.metrics != nil {
		s.metrics.Metrics.StreamsActive.Inc()
		defer s.metrics.Metrics.StreamsActive.Dec()
	}

	frames := act.ExecuteStream(ctx, req)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("stream client disconnected",
				"action", act.Name(), "request_id", requestID)
			return

		case frame, ok := <-frames:
			if !ok {
				return
			}
			if err := s.writeSSEFrame(w, act.Name(), frame); err != nil {
				s.logger.Warn("failed to write stream frame",
					"action", act.Name(), "request_id", requestID, "error", err)
				return
			}
			if canFlush {
				flusher.Flush()
			}
		}
	}
}

func (s *Server) writeSSEFrame(w http.ResponseWriter, actionName string, frame action.Frame) error {
	payload, err := marshalFramePayload(frame)
	if err != nil {
		s.logger.Error("failed to marshal stream frame", "action", actionName, "error", err)
		return nil // skip the frame, keep the stream alive
	}

	if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
		return err
	}
	if s.metrics != nil && frame.Data != nil {
		s.metrics.Metrics.StreamChunks.WithLabelValues(actionName).Inc()
	}
	return nil
}

func marshalFramePayload(frame action.Frame) ([]byte, error) {
	switch {
	case frame.Err != nil:
		return json.Marshal(map[string]*errors.ActionError{action.ErrorMarkerKey: frame.Err})
	case frame.Done:
		return json.Marshal(map[string]bool{action.DoneMarkerKey: true})
	default:
		return json.Marshal(frame.Data)
	}
}
