package memory

import (
	"context"
	"strings"
	"time"

	"github.com/YiberMelo/ChronosSuite/internal/model"
	"github.com/YiberMelo/ChronosSuite/internal/store"

	"github.com/google/uuid"
)

func (s *Store) CreateUser(_ context.Context, u model.User) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, err := store.NormalizeUser(u)
	if err != nil {
		return model.User{}, err
	}

	for _, existing := range s.users {
		if strings.EqualFold(existing.Username, u.Username) {
			return model.User{}, store.ErrConflict
		}
	}

	now := time.Now().UTC()
	u.ID = uuid.NewString()
	u.CreatedAt = now
	u.UpdatedAt = now
	s.users[u.ID] = u
	return u, nil
}

func (s *Store) GetUserByUsername(_ context.Context, username string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if strings.EqualFold(u.Username, username) {
			return &u, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) GetUserByID(_ context.Context, id string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &u, nil
}

func (s *Store) EnableTwoFactor(_ context.Context, userID, secret string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return store.ErrNotFound
	}
	if u.TwoFactorEnabled {
		return store.ErrConflict
	}

	u.TwoFactorSecret = secret
	u.TwoFactorEnabled = true
	u.UpdatedAt = time.Now().UTC()
	s.users[u.ID] = u
	return nil
}
