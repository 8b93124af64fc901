package notification

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]*Notification
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]*Notification)}
}

func (s *MemoryStore) Create(_ context.Context, n *Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *n
	s.items[n.ID] = &cp
	return nil
}

func (s *MemoryStore) List(_ context.Context, userID string, opts ListOptions) ([]Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []Notification{}
	for _, n := range s.items {
		if n.UserID != userID || (opts.UnreadOnly && n.Read) {
			continue
		}
		out = append(out, *n)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) UnreadCount(_ context.Context, userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, n := range s.items {
		if n.UserID == userID && !n.Read {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStore) MarkRead(_ context.Context, userID, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.items[id]
	if !ok || n.UserID != userID {
		return ErrNotFound
	}
	if !n.Read {
		n.Read = true
		n.ReadAt = &at
	}
	return nil
}

func (s *MemoryStore) MarkAllRead(_ context.Context, userID string, at time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var changed int64
	for _, n := range s.items {
		if n.UserID == userID && !n.Read {
			n.Read = true
			n.ReadAt = &at
			changed++
		}
	}
	return changed, nil
}

func (s *MemoryStore) Delete(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.items[id]
	if !ok || n.UserID != userID {
		return ErrNotFound
	}
	delete(s.items, id)
	return nil
}

func (s *MemoryStore) PurgeRead(_ context.Context, readBefore time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	for id, n := range s.items {
		if n.Read && n.ReadAt != nil && n.ReadAt.Before(readBefore) {
			delete(s.items, id)
			removed++
		}
	}
	return removed, nil
}
