package http

import (
	"bufio"
	"encoding/json"
	"io"
	stdhttp "net/http"
	"sync"
)

// EventWriter emits newline-delimited JSON records, flushing after each one
// so consumers can act on events before the stream ends
type EventWriter struct {
	mu    sync.Mutex
	enc   *json.Encoder
	buf   *bufio.Writer
	flush func()
}

// NewEventWriter wraps any io.Writer as an NDJSON event sink
func NewEventWriter(w io.Writer) *EventWriter {
	buf := bufio.NewWriter(w)
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	return &EventWriter{enc: enc, buf: buf}
}

// StartStream prepares w for NDJSON streaming and returns an EventWriter
// bound to it. Headers go out here; per-event flushes reach the client
// through the http.Flusher when one is available
func StartStream(w stdhttp.ResponseWriter) *EventWriter {
	w.Header().Set("Content-Type", "application/x-ndjson; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(stdhttp.StatusOK)

	ew := NewEventWriter(w)
	if f, ok := w.(stdhttp.Flusher); ok {
		ew.flush = f.Flush
	}
	return ew
}

// Emit encodes one record followed by a newline and flushes it downstream.
// Records are never reordered or coalesced
func (e *EventWriter) Emit(v any) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.enc.Encode(v); err != nil {
		return err
	}
	if err := e.buf.Flush(); err != nil {
		return err
	}
	if e.flush != nil {
		e.flush()
	}
	return nil
}
