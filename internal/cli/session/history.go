package session

import (
	"sync"
	"time"
)

// Entry is one recorded command line: what was typed, when, and from
// where, matching the (command, timestamp, client_ip) tuple the
// per-session ring and the 200-entry shared ring both store.
type Entry struct {
	Command   string
	Timestamp time.Time
	ClientIP  string
}

// History is a bounded ring of past command entries with a cursor for
// Up/Down recall, the way a terminal's command history works. One
// instance lives per session (capacity 20); a second, shared instance
// (capacity 200) is injected from the CLI server and records every
// command across every session. The TCP server and the websocket
// console each own one such instance; the admin HTTP surface does not
// read it.
type History struct {
	mu       sync.Mutex
	entries  []Entry
	capacity int
	cursor   int // index into entries while recalling; len(entries) means "not recalling"
}

// NewHistory creates a ring bounded to capacity entries.
func NewHistory(capacity int) *History {
	return &History{capacity: capacity}
}

// Push appends an entry for command from clientIP, evicting the oldest
// entry once capacity is exceeded, and resets the recall cursor. A
// command identical to the newest entry's command is not pushed again,
// so holding Enter on a repeated command doesn't fill the ring with
// duplicates.
func (h *History) Push(command, clientIP string) {
	if command == "" {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if n := len(h.entries); n > 0 && h.entries[n-1].Command == command {
		h.cursor = len(h.entries)
		return
	}
	h.entries = append(h.entries, Entry{Command: command, Timestamp: time.Now(), ClientIP: clientIP})
	if len(h.entries) > h.capacity {
		h.entries = h.entries[len(h.entries)-h.capacity:]
	}
	h.cursor = len(h.entries)
}

// Prev moves the recall cursor back one entry and returns its command,
// or ok false if already at the oldest entry.
func (h *History) Prev() (command string, ok bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cursor == 0 {
		return "", false
	}
	h.cursor--
	return h.entries[h.cursor].Command, true
}

// Next moves the recall cursor forward one entry, returning "" once it
// passes the newest entry (the usual "back to an empty line" behavior).
func (h *History) Next() (command string, ok bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cursor >= len(h.entries) {
		return "", false
	}
	h.cursor++
	if h.cursor == len(h.entries) {
		return "", true
	}
	return h.entries[h.cursor].Command, true
}

// ResetCursor puts the recall cursor back at the newest entry, called
// once a line is actually submitted rather than recalled.
func (h *History) ResetCursor() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cursor = len(h.entries)
}

// Snapshot returns a copy of the current entries, oldest first.
func (h *History) Snapshot() []Entry {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Entry, len(h.entries))
	copy(out, h.entries)
	return out
}
