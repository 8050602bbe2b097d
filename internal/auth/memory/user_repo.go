// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SignLogin Contributors

// Package memory implements auth repositories in process memory. It is
// meant for tests and for running the server without a database.
package memory

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/VarshithSidhoju/sign-loginfull/internal/auth"
)

// UserRepository is an in-memory auth.UserRepository. Email uniqueness is
// case-insensitive, like the PostgreSQL index.
type UserRepository struct {
	mu      sync.RWMutex
	byID    map[ulid.ULID]auth.User
	byEmail map[string]ulid.ULID
}

// NewUserRepository creates an empty repository.
func NewUserRepository() *UserRepository {
	return &UserRepository{
		byID:    make(map[ulid.ULID]auth.User),
		byEmail: make(map[string]ulid.ULID),
	}
}

func emailKey(email string) string {
	return strings.ToLower(email)
}

// Create stores a new user.
func (r *UserRepository) Create(_ context.Context, user *auth.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := emailKey(user.Email)
	if _, taken := r.byEmail[key]; taken {
		return oops.Code("USER_EMAIL_TAKEN").With("email", user.Email).Wrap(auth.ErrEmailTaken)
	}
	if _, exists := r.byID[user.ID]; exists {
		return oops.Code("USER_CREATE_FAILED").With("id", user.ID.String()).Errorf("duplicate user id")
	}
	r.byID[user.ID] = *user
	r.byEmail[key] = user.ID
	return nil
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(_ context.Context, id ulid.ULID) (*auth.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.byID[id]
	if !ok {
		return nil, oops.Code("USER_NOT_FOUND").With("id", id.String()).Wrap(auth.ErrNotFound)
	}
	return &u, nil
}

// GetByEmail retrieves a user by email, ignoring case.
func (r *UserRepository) GetByEmail(_ context.Context, email string) (*auth.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[emailKey(email)]
	if !ok {
		return nil, oops.Code("USER_NOT_FOUND").With("email", email).Wrap(auth.ErrNotFound)
	}
	u := r.byID[id]
	return &u, nil
}

// List returns all users ordered by creation time, then id.
func (r *UserRepository) List(_ context.Context) ([]*auth.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]*auth.User, 0, len(r.byID))
	for _, u := range r.byID {
		users = append(users, &u)
	}
	slices.SortFunc(users, func(a, b *auth.User) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID.String(), b.ID.String())
	})
	return users, nil
}

// Update replaces name, email, password hash and updated_at.
func (r *UserRepository) Update(_ context.Context, user *auth.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.byID[user.ID]
	if !ok {
		return oops.Code("USER_NOT_FOUND").With("id", user.ID.String()).Wrap(auth.ErrNotFound)
	}

	oldKey, newKey := emailKey(current.Email), emailKey(user.Email)
	if oldKey != newKey {
		if owner, taken := r.byEmail[newKey]; taken && owner != user.ID {
			return oops.Code("USER_EMAIL_TAKEN").
				With("id", user.ID.String()).
				With("email", user.Email).
				Wrap(auth.ErrEmailTaken)
		}
		delete(r.byEmail, oldKey)
		r.byEmail[newKey] = user.ID
	}

	current.Name = user.Name
	current.Email = user.Email
	current.PasswordHash = user.PasswordHash
	current.UpdatedAt = user.UpdatedAt
	r.byID[user.ID] = current
	return nil
}

var _ auth.UserRepository = (*UserRepository)(nil)
