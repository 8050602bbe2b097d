// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SignLogin Contributors

// Package session holds the client's logged-in state: the session token
// and a snapshot of the user it belongs to. The state is persisted in a
// Store so it survives between invocations of the client.
package session

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"

	"github.com/samber/oops"

	"github.com/VarshithSidhoju/sign-loginfull/internal/auth"
)

// CodeNotAuthenticated is returned by mutations that need a session.
const CodeNotAuthenticated = "SESSION_NOT_AUTHENTICATED"

// State is a point-in-time view of the session.
type State struct {
	Token         string
	User          *auth.Profile
	Authenticated bool
	// Loading is true until Hydrate has completed.
	Loading bool
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger. The default discards.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// Manager owns the client session. Methods are safe for concurrent use.
// Observers registered with Subscribe must not call Login, Logout or
// UpdateUser.
type Manager struct {
	store  Store
	logger *slog.Logger

	// writeMu serializes mutations together with their notifications so
	// observers see states in order.
	writeMu sync.Mutex

	mu       sync.RWMutex
	hydrated bool
	token    string
	user     *auth.Profile
	subs     map[int]func(State)
	nextSub  int
}

// NewManager creates a Manager backed by store. Call Hydrate before use.
func NewManager(store Store, opts ...Option) *Manager {
	m := &Manager{
		store:  store,
		logger: slog.New(slog.DiscardHandler),
		subs:   make(map[int]func(State)),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Loading reports whether Hydrate has not completed yet.
func (m *Manager) Loading() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return !m.hydrated
}

// Hydrate loads the persisted session. Only the first call does work;
// later calls return nil. A token without a readable user snapshot, or a
// snapshot without a token, is discarded and both keys are cleared.
func (m *Manager) Hydrate(ctx context.Context) error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	if !m.Loading() {
		return nil
	}

	token, user, err := m.read(ctx)
	m.set(true, token, user)
	m.notify()
	return err
}

func (m *Manager) read(ctx context.Context) (string, *auth.Profile, error) {
	rawToken, hasToken, err := m.store.Get(ctx, KeyToken)
	if err != nil {
		return "", nil, oops.Code("SESSION_HYDRATE_FAILED").With("key", KeyToken).Wrap(err)
	}
	rawUser, hasUser, err := m.store.Get(ctx, KeyUser)
	if err != nil {
		return "", nil, oops.Code("SESSION_HYDRATE_FAILED").With("key", KeyUser).Wrap(err)
	}
	if !hasToken && !hasUser {
		return "", nil, nil
	}

	token := strings.TrimSpace(string(rawToken))
	var user auth.Profile
	if token != "" && hasUser && json.Unmarshal(rawUser, &user) == nil && user.ID != "" {
		return token, &user, nil
	}

	m.logger.WarnContext(ctx, "discarding incomplete stored session",
		"has_token", token != "",
		"has_user", hasUser)
	if err := m.store.Delete(ctx, KeyToken, KeyUser); err != nil {
		return "", nil, oops.Code("SESSION_HYDRATE_FAILED").With("operation", "clear").Wrap(err)
	}
	return "", nil, nil
}

// Login persists the result of a successful register or login and makes
// it the current session.
func (m *Manager) Login(ctx context.Context, result *auth.AuthResult) error {
	if result == nil || strings.TrimSpace(result.Token) == "" || result.User.ID == "" {
		return oops.Code("SESSION_INVALID_RESULT").Errorf("auth result has no token or user")
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	user := result.User
	rawUser, err := json.Marshal(user)
	if err != nil {
		return oops.Code("SESSION_ENCODE_FAILED").Wrap(err)
	}
	if err := m.store.Put(ctx, map[string][]byte{
		KeyToken: []byte(result.Token),
		KeyUser:  rawUser,
	}); err != nil {
		return oops.With("operation", "login").Wrap(err)
	}

	m.set(true, result.Token, &user)
	m.notify()
	return nil
}

// Logout forgets the session locally. Tokens are not revoked server-side.
func (m *Manager) Logout(ctx context.Context) error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	if err := m.store.Delete(ctx, KeyToken, KeyUser); err != nil {
		return oops.With("operation", "logout").Wrap(err)
	}

	m.set(true, "", nil)
	m.notify()
	return nil
}

// UpdateUser replaces the stored user snapshot and keeps the token.
func (m *Manager) UpdateUser(ctx context.Context, user auth.Profile) error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	m.mu.RLock()
	token := m.token
	m.mu.RUnlock()
	if token == "" {
		return oops.Code(CodeNotAuthenticated).Errorf("not logged in")
	}

	rawUser, err := json.Marshal(user)
	if err != nil {
		return oops.Code("SESSION_ENCODE_FAILED").Wrap(err)
	}
	if err := m.store.Put(ctx, map[string][]byte{KeyUser: rawUser}); err != nil {
		return oops.With("operation", "update user").Wrap(err)
	}

	m.set(true, token, &user)
	m.notify()
	return nil
}

// State returns a snapshot of the session.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stateLocked()
}

// Token returns the current token, or "" when logged out.
func (m *Manager) Token() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token
}

// Subscribe registers fn to be called with the new state after every
// change. The returned function removes it.
func (m *Manager) Subscribe(fn func(State)) (unsubscribe func()) {
	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subs, id)
			m.mu.Unlock()
		})
	}
}

func (m *Manager) set(hydrated bool, token string, user *auth.Profile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hydrated = hydrated
	m.token = token
	m.user = user
}

func (m *Manager) stateLocked() State {
	st := State{
		Token:         m.token,
		Authenticated: m.token != "",
		Loading:       !m.hydrated,
	}
	if m.user != nil {
		u := *m.user
		st.User = &u
	}
	return st
}

// notify runs with writeMu held.
func (m *Manager) notify() {
	m.mu.RLock()
	st := m.stateLocked()
	subs := make([]func(State), 0, len(m.subs))
	for _, fn := range m.subs {
		subs = append(subs, fn)
	}
	m.mu.RUnlock()

	for _, fn := range subs {
		fn(st)
	}
}
