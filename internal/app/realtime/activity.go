package realtime

// DefaultActivityLogSize is the per-session capacity used when none is configured.
const DefaultActivityLogSize = 200

// ActivityLog keeps the most recent activities of each session in memory.
// Appends beyond capacity evict the oldest entry. Owned by the Hub goroutine.
type ActivityLog struct {
	capacity int
	sessions map[SessionID][]SessionActivity
}

// NewActivityLog returns a log keeping up to capacity entries per session.
func NewActivityLog(capacity int) *ActivityLog {
	if capacity <= 0 {
		capacity = DefaultActivityLogSize
	}
	return &ActivityLog{
		capacity: capacity,
		sessions: make(map[SessionID][]SessionActivity),
	}
}

// Append adds entry to its session's log.
func (l *ActivityLog) Append(entry SessionActivity) {
	entries := append(l.sessions[entry.SessionID], entry)
	if over := len(entries) - l.capacity; over > 0 {
		entries = append(entries[:0:0], entries[over:]...)
	}
	l.sessions[entry.SessionID] = entries
}

// History returns a copy of the session's entries, oldest first.
func (l *ActivityLog) History(id SessionID) []SessionActivity {
	entries := l.sessions[id]
	out := make([]SessionActivity, len(entries))
	copy(out, entries)
	return out
}

// Sessions returns the number of sessions with at least one entry.
func (l *ActivityLog) Sessions() int {
	return len(l.sessions)
}
