package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"solana-holder-scan/internal/observability"
)

// ErrClosed is returned by a sink whose consumer went away.
var ErrClosed = errors.New("stream closed by consumer")

// Sink delivers events to one consumer. Send must not be called after it
// returned an error.
type Sink interface {
	Send(ctx context.Context, ev Event) error
}

// SSEWriter writes events as Server-Sent Events "data:" frames.
type SSEWriter struct {
	mu      sync.Mutex
	w       io.Writer
	flusher http.Flusher
}

// NewSSEWriter prepares w for an event stream and writes the headers.
func NewSSEWriter(w http.ResponseWriter) (*SSEWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, errors.New("response writer does not support flushing")
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	return &SSEWriter{w: w, flusher: flusher}, nil
}

// Send writes one "data: <json>\n\n" frame and flushes it.
func (s *SSEWriter) Send(ctx context.Context, ev Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", ev.EventName(), err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", payload); err != nil {
		return fmt.Errorf("%w: %v", ErrClosed, err)
	}
	s.flusher.Flush()
	observability.RecordEventStreamed(ev.EventName())
	return nil
}

// Ping writes an SSE comment line so idle proxies keep the connection open.
func (s *SSEWriter) Ping() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := io.WriteString(s.w, ": ping\n\n"); err != nil {
		return fmt.Errorf("%w: %v", ErrClosed, err)
	}
	s.flusher.Flush()
	return nil
}

// DefaultWSWriteTimeout bounds a single WebSocket frame write.
const DefaultWSWriteTimeout = 10 * time.Second

// WSWriter writes each event as one JSON text frame.
type WSWriter struct {
	mu           sync.Mutex
	conn         *websocket.Conn
	writeTimeout time.Duration
}

// NewWSWriter wraps an upgraded connection.
func NewWSWriter(conn *websocket.Conn, writeTimeout time.Duration) *WSWriter {
	if writeTimeout <= 0 {
		writeTimeout = DefaultWSWriteTimeout
	}
	return &WSWriter{conn: conn, writeTimeout: writeTimeout}
}

// Send writes one text frame.
func (s *WSWriter) Send(ctx context.Context, ev Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	if err := s.conn.WriteJSON(ev); err != nil {
		return fmt.Errorf("%w: %v", ErrClosed, err)
	}
	observability.RecordEventStreamed(ev.EventName())
	return nil
}

// Close sends a normal close frame.
func (s *WSWriter) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	return s.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// JSONLines writes one JSON object per line, for command-line use.
type JSONLines struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewJSONLines creates a JSON lines sink over w.
func NewJSONLines(w io.Writer) *JSONLines {
	return &JSONLines{enc: json.NewEncoder(w)}
}

// Send writes one line.
func (s *JSONLines) Send(ctx context.Context, ev Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enc.Encode(ev); err != nil {
		return fmt.Errorf("%w: %v", ErrClosed, err)
	}
	return nil
}
