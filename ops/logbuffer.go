// Package ops exposes a small local observability surface for the plugin:
// recent log records, the live instance table, and a streaming log tail.
package ops

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Record is one captured log line.
type Record struct {
	Time    time.Time `json:"time"`
	Level   string    `json:"level"`
	Message string    `json:"msg"`
	Attrs   string    `json:"attrs,omitempty"`
}

// Buffer keeps the most recent log records in a fixed-size ring and fans new
// records out to any subscribed tails.
type Buffer struct {
	mu      sync.RWMutex
	records []Record
	next    int
	filled  bool

	subMu sync.RWMutex
	subs  map[string]chan Record
}

// NewBuffer allocates a buffer holding up to capacity records.
func NewBuffer(capacity int) *Buffer {
	if capacity < 1 {
		capacity = 1
	}
	return &Buffer{
		records: make([]Record, capacity),
		subs:    make(map[string]chan Record),
	}
}

// Append stores a record, evicting the oldest when full, and pushes it to all
// subscribers. Slow subscribers drop records rather than block logging.
func (b *Buffer) Append(rec Record) {
	b.mu.Lock()
	b.records[b.next] = rec
	b.next++
	if b.next == len(b.records) {
		b.next = 0
		b.filled = true
	}
	b.mu.Unlock()

	b.subMu.RLock()
	for _, ch := range b.subs {
		select {
		case ch <- rec:
		default:
		}
	}
	b.subMu.RUnlock()
}

// Recent returns up to n of the newest records, oldest first.
func (b *Buffer) Recent(n int) []Record {
	b.mu.RLock()
	defer b.mu.RUnlock()

	size := b.next
	if b.filled {
		size = len(b.records)
	}
	if n > size {
		n = size
	}
	if n <= 0 {
		return nil
	}

	out := make([]Record, n)
	start := b.next - n
	if start < 0 {
		start += len(b.records)
	}
	for i := range out {
		out[i] = b.records[(start+i)%len(b.records)]
	}
	return out
}

// Subscribe registers a tail and returns its id and channel. The channel is
// buffered; records overflowing it are dropped for that subscriber.
func (b *Buffer) Subscribe() (string, <-chan Record) {
	id := uuid.NewString()
	ch := make(chan Record, 64)
	b.subMu.Lock()
	b.subs[id] = ch
	b.subMu.Unlock()
	return id, ch
}

// Unsubscribe removes a tail and closes its channel.
func (b *Buffer) Unsubscribe(id string) {
	b.subMu.Lock()
	ch, ok := b.subs[id]
	delete(b.subs, id)
	b.subMu.Unlock()
	if ok {
		close(ch)
	}
}

// CaptureHandler is an slog.Handler that copies every record into a Buffer
// before delegating to the wrapped handler.
type CaptureHandler struct {
	next slog.Handler
	buf  *Buffer
}

var _ slog.Handler = (*CaptureHandler)(nil)

// NewCaptureHandler wraps next so records also land in buf.
func NewCaptureHandler(next slog.Handler, buf *Buffer) *CaptureHandler {
	return &CaptureHandler{next: next, buf: buf}
}

func (h *CaptureHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *CaptureHandler) Handle(ctx context.Context, r slog.Record) error {
	var sb strings.Builder
	r.Attrs(func(a slog.Attr) bool {
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%s=%v", a.Key, a.Value.Any())
		return true
	})

	h.buf.Append(Record{
		Time:    r.Time,
		Level:   r.Level.String(),
		Message: r.Message,
		Attrs:   sb.String(),
	})

	return h.next.Handle(ctx, r)
}

func (h *CaptureHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &CaptureHandler{next: h.next.WithAttrs(attrs), buf: h.buf}
}

func (h *CaptureHandler) WithGroup(name string) slog.Handler {
	return &CaptureHandler{next: h.next.WithGroup(name), buf: h.buf}
}
