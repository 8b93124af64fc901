package realtime

import (
	"sort"
	"time"

	"mentormatch/internal/app/user"
)

// Status is a user's presence status.
type Status string

const (
	StatusOnline  Status = "online"
	StatusOffline Status = "offline"
	StatusAway    Status = "away"
	StatusBusy    Status = "busy"
)

// Settable reports whether a connected client may set s explicitly. Offline is
// derived from the registry only.
func (s Status) Settable() bool {
	return s == StatusOnline || s == StatusAway || s == StatusBusy
}

// CurrentActivity describes what a user is doing, e.g. {type: "session", details: "42"}.
type CurrentActivity struct {
	Type    string `json:"type"`
	Details string `json:"details,omitempty"`
}

// Presence is the derived presence of one user.
type Presence struct {
	UserID   string           `json:"userId"`
	Name     string           `json:"name,omitempty"`
	Role     string           `json:"role,omitempty"`
	Status   Status           `json:"status"`
	Activity *CurrentActivity `json:"activity,omitempty"`
	LastSeen int64            `json:"lastSeen"`
}

// PresenceTracker holds the presence of every online user. A user has an
// entry iff the registry holds at least one connection for them. It is owned
// by the Hub goroutine and is not safe for concurrent use.
type PresenceTracker struct {
	entries map[string]*Presence
}

// NewPresenceTracker returns an empty tracker.
func NewPresenceTracker() *PresenceTracker {
	return &PresenceTracker{entries: make(map[string]*Presence)}
}

// Online records id as online and returns the new presence.
func (p *PresenceTracker) Online(id user.Identity, now time.Time) Presence {
	entry := &Presence{
		UserID:   id.ID,
		Name:     id.Name,
		Role:     id.Role,
		Status:   StatusOnline,
		LastSeen: Timestamp(now),
	}
	p.entries[id.ID] = entry
	return *entry
}

// Offline drops the user's entry and returns their final presence.
func (p *PresenceTracker) Offline(userID string, now time.Time) Presence {
	final := Presence{UserID: userID}
	if entry, ok := p.entries[userID]; ok {
		final = *entry
		delete(p.entries, userID)
	}
	final.Status = StatusOffline
	final.Activity = nil
	final.LastSeen = Timestamp(now)
	return final
}

// Update applies an explicit status or activity change for an online user.
// An empty status keeps the current one. It reports false when the user is
// not tracked.
func (p *PresenceTracker) Update(userID string, status Status, activity *CurrentActivity, now time.Time) (Presence, bool) {
	entry, ok := p.entries[userID]
	if !ok {
		return Presence{}, false
	}
	if status != "" {
		entry.Status = status
	}
	if activity != nil {
		entry.Activity = activity
	}
	entry.LastSeen = Timestamp(now)
	return *entry, true
}

// Touch refreshes the last-seen time of an online user.
func (p *PresenceTracker) Touch(userID string, now time.Time) {
	if entry, ok := p.entries[userID]; ok {
		entry.LastSeen = Timestamp(now)
	}
}

// get returns the presence of userID if online.
func (p *PresenceTracker) get(userID string) (Presence, bool) {
	entry, ok := p.entries[userID]
	if !ok {
		return Presence{}, false
	}
	return *entry, true
}

// Snapshot returns every online presence ordered by user id.
func (p *PresenceTracker) Snapshot() []Presence {
	out := make([]Presence, 0, len(p.entries))
	for _, entry := range p.entries {
		out = append(out, *entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}
