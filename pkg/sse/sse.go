// Package sse writes Server-Sent Events.
//
//	stream, err := sse.New(w, r)
//	if err != nil { return }
//	stream.Send("order.status_changed", payload)
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// Stream is an open event stream to one client.
type Stream struct {
	w  http.ResponseWriter
	r  *http.Request
	rc *http.ResponseController
}

// New writes the stream headers and flushes them. It fails when no writer
// in the middleware chain supports flushing.
func New(w http.ResponseWriter, r *http.Request) (*Stream, error) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	s := &Stream{w: w, r: r, rc: http.NewResponseController(w)}
	if err := s.rc.Flush(); err != nil {
		return nil, fmt.Errorf("sse: flush unsupported: %w", err)
	}
	return s, nil
}

// Send writes a named event with a JSON payload.
func (s *Stream) Send(event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("sse: marshal: %w", err)
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event, payload); err != nil {
		return err
	}
	return s.rc.Flush()
}

// Comment writes a comment line, used as a keepalive.
func (s *Stream) Comment(msg string) error {
	if _, err := fmt.Fprintf(s.w, ": %s\n\n", strings.ReplaceAll(msg, "\n", " ")); err != nil {
		return err
	}
	return s.rc.Flush()
}

// Done is closed when the client goes away.
func (s *Stream) Done() <-chan struct{} { return s.r.Context().Done() }
