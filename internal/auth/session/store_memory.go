package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// MemoryStore is an in-memory Store used for DB-less dev mode and tests.
//
// It implements the same atomic-consume semantics as PostgresStore, with a
// single mutex standing in for the database's row-level atomicity.
type MemoryStore struct {
	mu     sync.Mutex
	byID   map[string]*Row
	byHash map[string]string // token hash -> id
}

// NewMemoryStore creates an empty in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:   make(map[string]*Row),
		byHash: make(map[string]string),
	}
}

// Create inserts a new active session row and returns its ULID.
// The token-hash uniqueness constraint is enforced here exactly as the
// database unique index would; a collision is a bug, not a recoverable state.
func (s *MemoryStore) Create(_ context.Context, now time.Time, userID string, persistent bool, prov Provenance, tokenHash string, expiresAt time.Time) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byHash[tokenHash]; exists {
		return "", errors.New("session: duplicate token hash")
	}

	id := ulid.Make().String()
	created := now
	lastUsed := now

	var ua *string
	if prov.UserAgent != "" {
		v := prov.UserAgent
		ua = &v
	}

	s.byID[id] = &Row{
		ID:         id,
		UserID:     userID,
		TokenHash:  tokenHash,
		Persistent: persistent,
		CreatedAt:  created,
		LastUsedAt: &lastUsed,
		ExpiresAt:  expiresAt,
		UserAgent:  ua,
	}
	s.byHash[tokenHash] = id

	return id, nil
}

// GetByID loads a session row by ID.
func (s *MemoryStore) GetByID(_ context.Context, id string) (Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.byID[id]
	if !ok {
		return Row{}, ErrSessionNotFound
	}
	return cloneRow(row), nil
}

// GetByTokenHash loads a session row by refresh-credential hash.
func (s *MemoryStore) GetByTokenHash(_ context.Context, tokenHash string) (Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byHash[tokenHash]
	if !ok {
		return Row{}, ErrSessionNotFound
	}
	return cloneRow(s.byID[id]), nil
}

// Consume atomically transitions a row from active to revoked.
func (s *MemoryStore) Consume(_ context.Context, now time.Time, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.byID[id]
	if !ok {
		return false, nil
	}
	if row.RevokedAt != nil || !row.ExpiresAt.After(now) {
		return false, nil
	}

	t := now
	row.RevokedAt = &t
	row.LastUsedAt = &t
	return true, nil
}

// SetReplacedBy links a consumed row to its successor.
func (s *MemoryStore) SetReplacedBy(_ context.Context, id string, replacedBy string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.byID[id]
	if !ok {
		return ErrSessionNotFound
	}
	row.ReplacedByTokenID = &replacedBy
	return nil
}

// Revoke revokes a single session (idempotent).
func (s *MemoryStore) Revoke(_ context.Context, now time.Time, id string, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.byID[id]
	if !ok {
		return nil
	}
	if row.RevokedAt == nil {
		t := now
		row.RevokedAt = &t
	}
	return nil
}

// RevokeAllForUser revokes all sessions for a user (idempotent).
func (s *MemoryStore) RevokeAllForUser(_ context.Context, now time.Time, userID string, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, row := range s.byID {
		if row.UserID != userID || row.RevokedAt != nil {
			continue
		}
		t := now
		row.RevokedAt = &t
	}
	return nil
}

// Touch updates last_used_at for a session.
func (s *MemoryStore) Touch(_ context.Context, now time.Time, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if row, ok := s.byID[id]; ok {
		t := now
		row.LastUsedAt = &t
	}
	return nil
}

// ActiveCountForUser reports how many unexpired, unrevoked sessions a user
// holds. Used by dev diagnostics and tests.
func (s *MemoryStore) ActiveCountForUser(userID string, now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, row := range s.byID {
		if row.UserID == userID && row.RevokedAt == nil && row.ExpiresAt.After(now) {
			n++
		}
	}
	return n
}

func cloneRow(r *Row) Row {
	out := *r
	if r.LastUsedAt != nil {
		t := *r.LastUsedAt
		out.LastUsedAt = &t
	}
	if r.RevokedAt != nil {
		t := *r.RevokedAt
		out.RevokedAt = &t
	}
	if r.ReplacedByTokenID != nil {
		v := *r.ReplacedByTokenID
		out.ReplacedByTokenID = &v
	}
	if r.UserAgent != nil {
		v := *r.UserAgent
		out.UserAgent = &v
	}
	return out
}
