package console

import "sync"

// History is an append-only record of bytes read from a console
// transport. Offsets are logical positions into the full stream, stable
// across the console's lifetime, so waiters can be registered against
// "everything from here on" without racing an in-progress append.
type History struct {
	mu  sync.Mutex
	buf []byte
}

// NewHistory returns an empty history.
func NewHistory() *History {
	return &History{}
}

// Append adds newly read bytes to the history and returns the offset at
// which they were inserted (i.e. the history length before the append).
func (h *History) Append(data []byte) (offset int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	offset = len(h.buf)
	h.buf = append(h.buf, data...)
	return offset
}

// Len returns the current history length (the next append offset).
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.buf)
}

// Since returns a copy of all bytes appended at or after offset.
func (h *History) Since(offset int) []byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	if offset >= len(h.buf) {
		return nil
	}
	if offset < 0 {
		offset = 0
	}
	out := make([]byte, len(h.buf)-offset)
	copy(out, h.buf[offset:])
	return out
}

// Range returns a copy of bytes in [start, end).
func (h *History) Range(start, end int) []byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	if start < 0 {
		start = 0
	}
	if end > len(h.buf) {
		end = len(h.buf)
	}
	if start >= end {
		return nil
	}
	out := make([]byte, end-start)
	copy(out, h.buf[start:end])
	return out
}

// All returns a copy of the entire retained history, used by dump_log.
func (h *History) All() []byte {
	return h.Range(0, h.Len())
}
