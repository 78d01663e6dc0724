package main

// SessionLogEntry is one warning or error from the current run.
type SessionLogEntry struct {
	// Seq increases with every entry and never resets during a run.
	Seq       uint64 `json:"seq"`
	Timestamp string `json:"ts"`    // RFC 3339, UTC
	Level     string `json:"level"` // "warn" or "error"
	Message   string `json:"msg"`
	Source    string `json:"source,omitempty"`
	Error     string `json:"error,omitempty"`
}

// sessionLogRing keeps the newest entries in a fixed array. Callers hold
// sessionLogMu.
type sessionLogRing struct {
	buf   []SessionLogEntry
	head  int
	count int
}

func newSessionLogRing(capacity int) sessionLogRing {
	return sessionLogRing{buf: make([]SessionLogEntry, max(capacity, 1))}
}

func (r *sessionLogRing) push(entry SessionLogEntry) {
	size := len(r.buf)
	if size == 0 {
		return
	}
	if r.count < size {
		r.buf[(r.head+r.count)%size] = entry
		r.count++
		return
	}
	r.buf[r.head] = entry
	r.head = (r.head + 1) % size
}

// snapshot returns the entries oldest first in a new slice.
func (r *sessionLogRing) snapshot() []SessionLogEntry {
	out := make([]SessionLogEntry, 0, r.count)
	for i := range r.count {
		out = append(out, r.buf[(r.head+i)%len(r.buf)])
	}
	return out
}
