package bot

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store for DB-less dev mode and tests.
type MemoryStore struct {
	mu     sync.Mutex
	byID   map[string]*Row
	byHash map[string]string // token hash -> id
}

// NewMemoryStore creates an empty in-memory bot store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:   make(map[string]*Row),
		byHash: make(map[string]string),
	}
}

// Put inserts or replaces a bot row (test/dev seeding).
func (s *MemoryStore) Put(row Row) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.byID[row.ID]; ok {
		delete(s.byHash, old.TokenHash)
	}
	r := row
	s.byID[row.ID] = &r
	s.byHash[row.TokenHash] = row.ID
}

// GetByTokenHash resolves a hashed bot access token to the owning bot.
func (s *MemoryStore) GetByTokenHash(_ context.Context, tokenHash string) (Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byHash[tokenHash]
	if !ok {
		return Row{}, ErrNotFound
	}
	return *s.byID[id], nil
}

// RegenerateToken replaces hash and ciphertext together under one lock.
func (s *MemoryStore) RegenerateToken(_ context.Context, now time.Time, botID string, tokenHash string, tokenEnc string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.byID[botID]
	if !ok {
		return ErrNotFound
	}

	delete(s.byHash, row.TokenHash)
	row.TokenHash = tokenHash
	row.TokenEnc = &tokenEnc
	row.UpdatedAt = now
	s.byHash[tokenHash] = botID
	return nil
}

// ListByServiceType returns all bots of a service type.
func (s *MemoryStore) ListByServiceType(_ context.Context, serviceType string) ([]Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Row
	for _, row := range s.byID {
		if row.ServiceType == serviceType {
			out = append(out, *row)
		}
	}
	return out, nil
}
