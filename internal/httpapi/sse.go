// Package httpapi is the HTTP surface (spec.md §6): chi-routed handlers for
// chat, the Pilot tool-calling agent, MCP introspection, and MCP learning,
// each SSE-streamed the way the teacher's control-plane handlers stream
// model and kitchen events.
package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// sseWriter wraps a ResponseWriter already prepared for SSE and flushes
// after every event, matching the teacher's streaming handlers.
type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// newSSEWriter sets the SSE response headers and returns a writer, or nil
// and false if the underlying ResponseWriter cannot flush incrementally.
func newSSEWriter(w http.ResponseWriter) (*sseWriter, bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, false
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()
	return &sseWriter{w: w, flusher: flusher}, true
}

// send writes one `data: {...}\n\n` frame, merging "type": kind into fields.
func (s *sseWriter) send(kind string, fields map[string]any) {
	envelope := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		envelope[k] = v
	}
	envelope["type"] = kind
	data, err := json.Marshal(envelope)
	if err != nil {
		return
	}
	fmt.Fprintf(s.w, "data: %s\n\n", data)
	s.flusher.Flush()
}
