package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
)

// Stream wraps one open SSE connection for a session, grounded on the
// teacher's server.SSEStream (internal/mcpserver/server/sse.go).
type Stream struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	flusher http.Flusher
	eventID int
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewStream upgrades w into an SSE stream bound to ctx. Returns an error
// if the underlying ResponseWriter cannot be flushed incrementally.
func NewStream(ctx context.Context, w http.ResponseWriter) (*Stream, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming not supported")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache, no-transform")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	streamCtx, cancel := context.WithCancel(ctx)
	return &Stream{w: w, flusher: flusher, ctx: streamCtx, cancel: cancel}, nil
}

// Send writes one JSON-RPC message as an SSE event.
func (s *Stream) Send(msg any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.eventID++
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	fmt.Fprintf(s.w, "event: message\n")
	fmt.Fprintf(s.w, "id: %d\n", s.eventID)
	fmt.Fprintf(s.w, "data: %s\n\n", data)
	s.flusher.Flush()
	return nil
}

// Close tears down the stream's context, unblocking Done().
func (s *Stream) Close() {
	s.cancel()
}

// Done returns a channel closed once the stream is closed, either by the
// client disconnecting or by Close being called.
func (s *Stream) Done() <-chan struct{} {
	return s.ctx.Done()
}
