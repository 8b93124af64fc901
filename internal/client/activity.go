package client

import (
	"sync"

	"mentormatch/internal/app/realtime"
)

// ActivityFeed keeps the recent activity of every session the client has
// seen, capped per session.
type ActivityFeed struct {
	capacity int

	mu       sync.RWMutex
	sessions map[realtime.SessionID][]realtime.SessionActivity
}

// NewActivityFeed returns a feed keeping up to capacity entries per session.
func NewActivityFeed(capacity int) *ActivityFeed {
	if capacity <= 0 {
		capacity = realtime.DefaultActivityLogSize
	}
	return &ActivityFeed{
		capacity: capacity,
		sessions: make(map[realtime.SessionID][]realtime.SessionActivity),
	}
}

// Add appends one relayed activity.
func (f *ActivityFeed) Add(a realtime.SessionActivity) {
	f.mu.Lock()
	defer f.mu.Unlock()

	entries := append(f.sessions[a.SessionID], a)
	if over := len(entries) - f.capacity; over > 0 {
		entries = append([]realtime.SessionActivity(nil), entries[over:]...)
	}
	f.sessions[a.SessionID] = entries
}

// Load replaces a session's entries with its history.
func (f *ActivityFeed) Load(h realtime.SessionHistory) {
	entries := h.Entries
	if over := len(entries) - f.capacity; over > 0 {
		entries = entries[over:]
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[h.SessionID] = append([]realtime.SessionActivity(nil), entries...)
}

// Forget drops a session's entries.
func (f *ActivityFeed) Forget(id realtime.SessionID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sessions, id)
}

// Entries returns a copy of a session's entries, oldest first.
func (f *ActivityFeed) Entries(id realtime.SessionID) []realtime.SessionActivity {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]realtime.SessionActivity(nil), f.sessions[id]...)
}
