// Package stream serializes tagged events onto a server-sent-events HTTP
// response. A Writer multiplexes status, message, data and error events from
// the orchestration goroutines into one ordered wire stream and guarantees a
// single terminal end event.
package stream

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"animbridge/pkg/models"
)

// ErrStreamClosed is returned by Send after End has run or after a transport
// write failed.
var ErrStreamClosed = errors.New("stream closed")

// ErrStreamingUnsupported is returned by NewWriter when the ResponseWriter
// cannot flush incrementally.
var ErrStreamingUnsupported = errors.New("response writer does not support streaming")

// Writer frames events as SSE `data:` lines and flushes each one
// immediately. All methods are safe for concurrent use; events are written in
// the order Send is called.
type Writer struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	flusher http.Flusher
	closed  bool
	sent    int
}

// NewWriter prepares w for server-sent events and returns a Writer over it.
// Response headers are written here, so they must not have been sent yet.
func NewWriter(w http.ResponseWriter) (*Writer, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, ErrStreamingUnsupported
	}
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	return &Writer{w: w, flusher: flusher}, nil
}

// Send frames one event and flushes it. A failed transport write closes the
// stream; subsequent sends return ErrStreamClosed.
func (s *Writer) Send(ev models.StreamEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStreamClosed
	}
	return s.write(ev)
}

// End emits the terminal end event and closes the stream. It is idempotent:
// only the first call writes anything, and the end event is never emitted
// twice even if an earlier Send failed.
func (s *Writer) End() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	err := s.write(models.EndEvent())
	s.closed = true
	return err
}

// Sent reports how many events were written, including any end event.
func (s *Writer) Sent() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sent
}

// write holds s.mu.
func (s *Writer) write(ev models.StreamEvent) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal stream event: %w", err)
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", b); err != nil {
		s.closed = true
		return fmt.Errorf("write stream event: %w", err)
	}
	s.flusher.Flush()
	s.sent++
	return nil
}
