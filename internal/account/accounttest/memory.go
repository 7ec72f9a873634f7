// Package accounttest provides an in-memory account.Store for tests.
package accounttest

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"campushub/internal/account"
)

type refresh struct {
	userID  string
	expires time.Time
	revoked bool
}

type Memory struct {
	mu     sync.Mutex
	users  map[string]account.User
	tokens map[string]*refresh
}

func New() *Memory {
	return &Memory{users: map[string]account.User{}, tokens: map[string]*refresh{}}
}

func (m *Memory) CreateUser(_ context.Context, u account.User) (account.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return account.User{}, account.ErrEmailTaken
		}
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.CreatedAt = time.Now().UTC()
	m.users[u.ID] = u
	return u, nil
}

func (m *Memory) UserByEmail(_ context.Context, email string) (*account.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range m.users {
		if u.Email == email {
			cp := u
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *Memory) UserByID(_ context.Context, id string) (*account.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (m *Memory) TouchSignIn(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		u.LastSignIn = &at
		m.users[id] = u
	}
	return nil
}

func (m *Memory) SaveRefreshToken(_ context.Context, userID, token string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[token] = &refresh{userID: userID, expires: expiresAt}
	return nil
}

func (m *Memory) ConsumeRefreshToken(_ context.Context, token string, now time.Time) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.tokens[token]
	if !ok || r.revoked || !r.expires.After(now) {
		return "", account.ErrTokenNotFound
	}
	r.revoked = true
	return r.userID, nil
}

func (m *Memory) RevokeRefreshToken(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.tokens[token]; ok {
		r.revoked = true
	}
	return nil
}
