package repository

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/storefront-auth/internal/model"
)

// MemoryUserStore is an in-process UserStore used for local development
// (STORE_DRIVER=memory) and tests.  It enforces the same uniqueness rules
// as the database backends.
type MemoryUserStore struct {
	mu    sync.RWMutex
	users map[string]model.User
	order []string
}

func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{users: make(map[string]model.User)}
}

// Len returns the number of stored users.
func (r *MemoryUserStore) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users)
}

func (r *MemoryUserStore) FindByHandleOrEmail(_ context.Context, handle, email string) (*model.User, error) {
	handle = strings.TrimSpace(handle)
	email = model.NormalizeEmail(email)
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, id := range r.order {
		u := r.users[id]
		if (handle != "" && u.Username == handle) || (email != "" && u.Email == email) {
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

func (r *MemoryUserStore) FindByID(_ context.Context, id string) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (r *MemoryUserStore) ExistsByRole(_ context.Context, role model.Role) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if u.Role == role {
			return true, nil
		}
	}
	return false, nil
}

func (r *MemoryUserStore) Insert(_ context.Context, u *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	email := model.NormalizeEmail(u.Email)
	if r.conflicts("", u.Username, email) {
		return ErrDuplicate
	}
	now := time.Now().UTC()
	u.ID = uuid.NewString()
	u.Email = email
	u.CreatedAt, u.UpdatedAt = now, now
	r.users[u.ID] = *u
	r.order = append(r.order, u.ID)
	return nil
}

func (r *MemoryUserStore) UpdateByID(_ context.Context, id string, patch model.UserPatch) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	if patch.Email != nil && r.conflicts(id, "", model.NormalizeEmail(*patch.Email)) {
		return nil, ErrDuplicate
	}
	patch.Apply(&u)
	u.UpdatedAt = time.Now().UTC()
	r.users[id] = u
	return &u, nil
}

func (r *MemoryUserStore) DeleteByID(_ context.Context, id string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	delete(r.users, id)
	for i, v := range r.order {
		if v == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return &u, nil
}

// conflicts reports whether another user (not self) already owns handle
// or email.  Callers hold the lock.
func (r *MemoryUserStore) conflicts(self, handle, email string) bool {
	for id, u := range r.users {
		if id == self {
			continue
		}
		if (handle != "" && u.Username == handle) || (email != "" && u.Email == email) {
			return true
		}
	}
	return false
}
