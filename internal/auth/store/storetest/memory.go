// Package storetest provides an in-memory store.Store for exercising
// service and handler flows without a database. Transactions are
// flattened: repos mutate the same maps and rollback is a no-op, which
// is fine for the happy/error paths tests cover.
package storetest

import (
	"context"
	"sync"
	"time"

	"github.com/paysignal/console-auth/internal/auth/domain"
	"github.com/paysignal/console-auth/internal/auth/store"
)

type Store struct {
	mu       sync.Mutex
	users    map[string]domain.User
	tokens   map[string]domain.RefreshToken
	sessions map[string]domain.Session
	ott      map[string]domain.OneTimeToken
	oauth    map[string]domain.OAuthAccount // keyed by provider + ":" + provider user id
}

func New() *Store {
	return &Store{
		users:    make(map[string]domain.User),
		tokens:   make(map[string]domain.RefreshToken),
		sessions: make(map[string]domain.Session),
		ott:      make(map[string]domain.OneTimeToken),
		oauth:    make(map[string]domain.OAuthAccount),
	}
}

// PutUser inserts or overwrites a user record directly, bypassing the
// uniqueness check. Useful for mutating role or verification state
// mid-test.
func (s *Store) PutUser(u domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

// SessionCount reports the number of live session records.
func (s *Store) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

type memTx struct{ *Store }

func (t memTx) Commit() error   { return nil }
func (t memTx) Rollback() error { return nil }

func (s *Store) Users() store.Users                 { return (*memUsers)(s) }
func (s *Store) RefreshTokens() store.RefreshTokens { return (*memTokens)(s) }
func (s *Store) Sessions() store.Sessions           { return (*memSessions)(s) }
func (s *Store) OneTimeTokens() store.OneTimeTokens { return (*memOTT)(s) }
func (s *Store) OAuthAccounts() store.OAuthAccounts { return (*memOAuth)(s) }

func (s *Store) ApplyMigrations() error                  { return nil }
func (s *Store) Close() error                            { return nil }
func (s *Store) Ping(ctx context.Context) error          { return nil }
func (s *Store) Tx(ctx context.Context) (store.Tx, error) { return memTx{s}, nil }

func (s *Store) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	return fn(memTx{s})
}

type memUsers Store

func (m *memUsers) GetUserByID(_ context.Context, id string) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return domain.User{}, store.ErrNotFound
	}
	return u, nil
}

func (m *memUsers) GetUserByEmail(_ context.Context, email string) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return domain.User{}, store.ErrNotFound
}

func (m *memUsers) CreateUser(_ context.Context, u domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return store.ErrAlreadyExists
		}
	}
	m.users[u.ID] = u
	return nil
}

func (m *memUsers) UpdatePasswordHash(_ context.Context, userID, newHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return store.ErrNotFound
	}
	u.PasswordHash = newHash
	u.UpdatedAt = time.Now()
	m.users[userID] = u
	return nil
}

func (m *memUsers) MarkEmailVerified(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok || u.EmailVerified != nil {
		return store.ErrNotFound
	}
	now := time.Now()
	u.EmailVerified = &now
	m.users[userID] = u
	return nil
}

func (m *memUsers) DeleteUser(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.users, userID)
	return nil
}

type memTokens Store

func (m *memTokens) CreateRefreshToken(_ context.Context, t domain.RefreshToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[t.ID] = t
	return nil
}

func (m *memTokens) GetRefreshTokenByHash(_ context.Context, hash string) (domain.RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tokens {
		if t.TokenHash == hash {
			return t, nil
		}
	}
	return domain.RefreshToken{}, store.ErrNotFound
}

func (m *memTokens) RevokeRefreshToken(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tokens[id]
	if ok && t.RevokedAt == nil {
		now := time.Now()
		t.RevokedAt = &now
		m.tokens[id] = t
	}
	return nil
}

func (m *memTokens) RevokeFamily(_ context.Context, familyID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	for id, t := range m.tokens {
		if t.FamilyID == familyID && t.RevokedAt == nil {
			t.RevokedAt = &now
			m.tokens[id] = t
		}
	}
	return nil
}

func (m *memTokens) RevokeAllForUser(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	for id, t := range m.tokens {
		if t.UserID == userID && t.RevokedAt == nil {
			t.RevokedAt = &now
			m.tokens[id] = t
		}
	}
	return nil
}

func (m *memTokens) DeleteExpiredRefreshTokens(_ context.Context, retain time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := time.Now().Add(-retain)
	for id, t := range m.tokens {
		if t.ExpiresAt.Before(cutoff) {
			delete(m.tokens, id)
		}
	}
	return nil
}

type memSessions Store

func (m *memSessions) CreateSession(_ context.Context, s domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s
	return nil
}

func (m *memSessions) GetSessionByID(_ context.Context, id string) (domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return domain.Session{}, store.ErrNotFound
	}
	return s, nil
}

func (m *memSessions) GetSessionByRefreshTokenID(_ context.Context, rtID string) (domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		if s.RefreshTokenID == rtID {
			return s, nil
		}
	}
	return domain.Session{}, store.ErrNotFound
}

func (m *memSessions) TouchSession(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		s.LastActiveAt = at
		m.sessions[id] = s
	}
	return nil
}

func (m *memSessions) DeleteSession(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

func (m *memSessions) DeleteSessionsForUser(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, s := range m.sessions {
		if s.UserID == userID {
			delete(m.sessions, id)
		}
	}
	return nil
}

func (m *memSessions) DeleteStaleSessions(_ context.Context, maxIdle time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := time.Now().Add(-maxIdle)
	for id, s := range m.sessions {
		if s.LastActiveAt.Before(cutoff) {
			delete(m.sessions, id)
		}
	}
	return nil
}

type memOAuth Store

func (m *memOAuth) UpsertOAuthAccount(_ context.Context, a domain.OAuthAccount) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := a.Provider + ":" + a.ProviderUserID
	if existing, ok := m.oauth[key]; ok {
		existing.Email = a.Email
		existing.UpdatedAt = time.Now()
		m.oauth[key] = existing
		return nil
	}
	m.oauth[key] = a
	return nil
}

func (m *memOAuth) GetOAuthAccountByProviderID(_ context.Context, provider, providerUserID string) (domain.OAuthAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.oauth[provider+":"+providerUserID]
	if !ok {
		return domain.OAuthAccount{}, store.ErrNotFound
	}
	return a, nil
}

func (m *memOAuth) CountOAuthAccountsForUser(_ context.Context, userID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, a := range m.oauth {
		if a.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (m *memOAuth) DeleteOAuthAccountsForProvider(_ context.Context, userID, provider string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, a := range m.oauth {
		if a.UserID == userID && a.Provider == provider {
			delete(m.oauth, key)
		}
	}
	return nil
}

type memOTT Store

func (m *memOTT) CreateOneTimeToken(_ context.Context, t domain.OneTimeToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ott[t.ID] = t
	return nil
}

func (m *memOTT) GetOneTimeTokenByHash(_ context.Context, hash string) (domain.OneTimeToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.ott {
		if t.TokenHash == hash {
			return t, nil
		}
	}
	return domain.OneTimeToken{}, store.ErrNotFound
}

func (m *memOTT) ConsumeOneTimeToken(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.ott[id]
	if !ok || t.ConsumedAt != nil {
		return store.ErrNotFound
	}
	t.ConsumedAt = &at
	m.ott[id] = t
	return nil
}

func (m *memOTT) SupersedeOneTimeTokens(_ context.Context, userID string, purpose domain.OneTimeTokenPurpose, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, t := range m.ott {
		if t.UserID == userID && t.Purpose == purpose && t.ConsumedAt == nil {
			t.ConsumedAt = &at
			m.ott[id] = t
		}
	}
	return nil
}

func (m *memOTT) DeleteExpiredOneTimeTokens(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	for id, t := range m.ott {
		if t.ExpiresAt.Before(now) {
			delete(m.ott, id)
		}
	}
	return nil
}
