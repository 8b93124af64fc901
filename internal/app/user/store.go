package user

import (
	"context"
	"errors"
	"sync"
)

var (
	// ErrNotFound is returned when no account matches the lookup.
	ErrNotFound = errors.New("user not found")

	// ErrEmailTaken is returned when registering an email that already exists.
	ErrEmailTaken = errors.New("email already registered")
)

// Store persists accounts.
type Store interface {
	Create(ctx context.Context, account *Account) error
	GetByID(ctx context.Context, id string) (*Account, error)
	GetByEmail(ctx context.Context, email string) (*Account, error)
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu      sync.RWMutex
	byID    map[string]*Account
	byEmail map[string]string
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:    make(map[string]*Account),
		byEmail: make(map[string]string),
	}
}

func (s *MemoryStore) Create(_ context.Context, account *Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := NormalizeEmail(account.Email)
	if _, ok := s.byEmail[email]; ok {
		return ErrEmailTaken
	}

	stored := *account
	stored.Email = email
	s.byID[stored.ID] = &stored
	s.byEmail[email] = stored.ID
	return nil
}

func (s *MemoryStore) GetByID(_ context.Context, id string) (*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	account, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *account
	return &cp, nil
}

func (s *MemoryStore) GetByEmail(ctx context.Context, email string) (*Account, error) {
	s.mu.RLock()
	id, ok := s.byEmail[NormalizeEmail(email)]
	s.mu.RUnlock()

	if !ok {
		return nil, ErrNotFound
	}
	return s.GetByID(ctx, id)
}
