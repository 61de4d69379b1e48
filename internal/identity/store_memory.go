package identity

import (
	"context"
	"sync"

	"github.com/oklog/ulid/v2"
)

// MemoryStore is an in-memory Store for tests and dev mode.
type MemoryStore struct {
	mu     sync.Mutex
	byID   map[string]User
	byName map[string]string // username_norm -> id
	byMail map[string]string // email_norm -> id
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:   make(map[string]User),
		byName: make(map[string]string),
		byMail: make(map[string]string),
	}
}

func (s *MemoryStore) CreateUser(_ context.Context, in CreateUserInput) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	nameNorm := NormalizeIdentifier(in.Username)
	mailNorm := NormalizeIdentifier(in.Email)
	if _, ok := s.byName[nameNorm]; ok {
		return User{}, ErrUserExists
	}
	if mailNorm != "" {
		if _, ok := s.byMail[mailNorm]; ok {
			return User{}, ErrUserExists
		}
	}

	u := User{
		ID:           ulid.Make().String(),
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: in.PasswordHash,
		CreatedAt:    in.Now,
	}
	s.byID[u.ID] = u
	s.byName[nameNorm] = u.ID
	if mailNorm != "" {
		s.byMail[mailNorm] = u.ID
	}
	return u, nil
}

func (s *MemoryStore) GetUserByID(_ context.Context, id string) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (s *MemoryStore) GetUserByUsername(ctx context.Context, username string) (User, error) {
	s.mu.Lock()
	id, ok := s.byName[NormalizeIdentifier(username)]
	s.mu.Unlock()
	if !ok {
		return User{}, ErrNotFound
	}
	return s.GetUserByID(ctx, id)
}

func (s *MemoryStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	s.mu.Lock()
	id, ok := s.byMail[NormalizeIdentifier(email)]
	s.mu.Unlock()
	if !ok {
		return User{}, ErrNotFound
	}
	return s.GetUserByID(ctx, id)
}
