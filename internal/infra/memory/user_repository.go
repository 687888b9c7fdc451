package memory

import (
	"context"
	"fmt"
	"sync"

	"fipabet-seal-service/internal/domain"
	"fipabet-seal-service/internal/identity"
)

// UserRepository is an in-memory implementation of identity.UserRepository.
type UserRepository struct {
	mu         sync.RWMutex
	byID       map[string]identity.User
	byUsername map[string]string
}

func NewUserRepository() *UserRepository {
	return &UserRepository{
		byID:       make(map[string]identity.User),
		byUsername: make(map[string]string),
	}
}

func (r *UserRepository) Create(_ context.Context, u identity.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, taken := r.byUsername[u.Username]; taken {
		return fmt.Errorf("%w: username %q exists", domain.ErrConflict, u.Username)
	}
	r.byID[u.ID] = u
	r.byUsername[u.Username] = u.ID
	return nil
}

func (r *UserRepository) FindByUsername(_ context.Context, username string) (identity.User, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byUsername[username]
	if !ok {
		return identity.User{}, false, nil
	}
	return r.byID[id], true, nil
}

func (r *UserRepository) FindByIDs(_ context.Context, ids []string) ([]identity.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]identity.User, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if u, ok := r.byID[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}
