package console

import (
	"strings"
	"sync"
)

// CountSubstring counts non-overlapping occurrences of substr in s, capped
// at n (returns early once n is reached). Overlapping matches count once:
// each match advances the scan past its own end, never re-examining bytes
// already consumed by a prior match.
func CountSubstring(s, substr string, n int) int {
	if substr == "" {
		return 0
	}
	count := 0
	start := 0
	for {
		idx := strings.Index(s[start:], substr)
		if idx < 0 {
			break
		}
		count++
		start += idx + len(substr)
		if count >= n {
			break
		}
	}
	return count
}

// matchResult is delivered to a waiter's channel when its pattern count is
// satisfied. Worker.WaitPattern wraps this into the public WaitResult,
// adding the Found flag for the timeout case.
type matchResult struct {
	Offset int // history offset at which the nth match completed
}

type waiter struct {
	pattern string
	target  int
	regOff  int // registration watermark: matches before this offset don't count
	done    chan matchResult
}

// Matcher evaluates registered waiters against a History each time new
// bytes are appended. A pattern already present before registration does
// not count toward that waiter — only bytes appended at or after the
// registration offset are considered.
type Matcher struct {
	mu      sync.Mutex
	history *History
	waiters []*waiter
}

// NewMatcher binds a Matcher to the History it will scan.
func NewMatcher(history *History) *Matcher {
	return &Matcher{history: history}
}

// Register adds a waiter for pattern appearing at least n times after the
// current history watermark, and immediately checks whether it is already
// satisfied by bytes already in history since registration. The returned
// channel receives exactly one matchResult when satisfied; callers should
// select on it with their own timeout/deadline.
func (m *Matcher) Register(pattern string, n int) <-chan matchResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	w := &waiter{
		pattern: pattern,
		target:  n,
		regOff:  m.history.Len(),
		done:    make(chan matchResult, 1),
	}
	m.waiters = append(m.waiters, w)
	m.checkLocked(w)
	return w.done
}

// OnAppend must be called by the transport read loop after every History
// append; it rescans all pending waiters.
func (m *Matcher) OnAppend() {
	m.mu.Lock()
	defer m.mu.Unlock()

	remaining := m.waiters[:0]
	for _, w := range m.waiters {
		if !m.checkLocked(w) {
			remaining = append(remaining, w)
		}
	}
	m.waiters = remaining
}

// checkLocked evaluates one waiter against history since its registration
// offset and fires it if satisfied. Returns true if the waiter fired.
func (m *Matcher) checkLocked(w *waiter) bool {
	region := m.history.Since(w.regOff)
	count := CountSubstring(string(region), w.pattern, w.target)
	if count < w.target {
		return false
	}
	// Locate the offset of the nth match for the result.
	offset := w.regOff + locateNth(string(region), w.pattern, w.target)
	w.done <- matchResult{Offset: offset}
	return true
}

func locateNth(s, substr string, n int) int {
	start := 0
	count := 0
	for {
		idx := strings.Index(s[start:], substr)
		if idx < 0 {
			return start
		}
		count++
		pos := start + idx
		if count == n {
			return pos + len(substr)
		}
		start = pos + len(substr)
	}
}
