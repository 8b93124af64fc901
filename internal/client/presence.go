package client

import (
	"encoding/json"
	"sort"
	"sync"

	"mentormatch/internal/app/realtime"
)

// presenceIn covers both presence_update shapes: registry transitions and
// rebroadcast client updates.
type presenceIn struct {
	UserID    string                    `json:"userId"`
	Name      string                    `json:"name"`
	Status    realtime.Status           `json:"status"`
	Activity  *realtime.CurrentActivity `json:"activity"`
	LastSeen  int64                     `json:"lastSeen"`
	Timestamp int64                     `json:"timestamp"`
}

// PresenceStore mirrors the server's online presence list.
type PresenceStore struct {
	mu      sync.RWMutex
	entries map[string]realtime.Presence
}

// NewPresenceStore returns an empty store.
func NewPresenceStore() *PresenceStore {
	return &PresenceStore{entries: make(map[string]realtime.Presence)}
}

// Reset replaces the store with a presence_snapshot.
func (s *PresenceStore) Reset(snapshot []realtime.Presence) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = make(map[string]realtime.Presence, len(snapshot))
	for _, p := range snapshot {
		s.entries[p.UserID] = p
	}
}

// Apply merges one presence_update payload. An offline status removes the user.
func (s *PresenceStore) Apply(data json.RawMessage) error {
	var in presenceIn
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	if in.UserID == "" {
		return errMissingUser
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if in.Status == realtime.StatusOffline {
		delete(s.entries, in.UserID)
		return nil
	}

	entry, ok := s.entries[in.UserID]
	if !ok {
		entry = realtime.Presence{UserID: in.UserID, Status: realtime.StatusOnline}
	}
	if in.Name != "" {
		entry.Name = in.Name
	}
	if in.Status != "" {
		entry.Status = in.Status
	}
	if in.Activity != nil {
		entry.Activity = in.Activity
	}
	if in.Timestamp > entry.LastSeen {
		entry.LastSeen = in.Timestamp
	}
	s.entries[in.UserID] = entry
	return nil
}

// Clear empties the store, e.g. after logout.
func (s *PresenceStore) Clear() {
	s.mu.Lock()
	s.entries = make(map[string]realtime.Presence)
	s.mu.Unlock()
}

// Get returns the presence of userID.
func (s *PresenceStore) Get(userID string) (realtime.Presence, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.entries[userID]
	return p, ok
}

// IsOnline reports whether userID has any live connection.
func (s *PresenceStore) IsOnline(userID string) bool {
	_, ok := s.Get(userID)
	return ok
}

// List returns every known presence ordered by user id.
func (s *PresenceStore) List() []realtime.Presence {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]realtime.Presence, 0, len(s.entries))
	for _, p := range s.entries {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}
