// AngelaMos | 2026
// service_test.go

package auth

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/juju/clock/testclock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/erasure/internal/config"
	"github.com/carterperez-dev/erasure/internal/core"
)

type memTokens struct {
	mu     sync.Mutex
	tokens map[string]*RefreshToken
}

func (m *memTokens) Create(_ context.Context, t *RefreshToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t.CreatedAt = time.Now()
	cp := *t
	m.tokens[t.ID] = &cp
	return nil
}

func (m *memTokens) FindByHash(_ context.Context, hash string) (*RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tokens {
		if t.TokenHash == hash {
			cp := *t
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("find: %w", core.ErrNotFound)
}

func (m *memTokens) RevokeByID(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tokens[id]
	if !ok || t.RevokedAt != nil {
		return fmt.Errorf("revoke: %w", core.ErrNotFound)
	}
	now := time.Now()
	t.RevokedAt = &now
	return nil
}

func (m *memTokens) RevokeAllForUser(_ context.Context, userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, t := range m.tokens {
		if t.UserID == userID && t.RevokedAt == nil {
			now := time.Now()
			t.RevokedAt = &now
			n++
		}
	}
	return n, nil
}

func (m *memTokens) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, t := range m.tokens {
		if t.ExpiresAt.Before(before) {
			delete(m.tokens, id)
			n++
		}
	}
	return n, nil
}

func (m *memTokens) active(userID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.tokens {
		if t.UserID == userID && t.RevokedAt == nil {
			n++
		}
	}
	return n
}

type memUsers struct {
	mu    sync.Mutex
	users map[string]*UserInfo
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (*UserInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == strings.ToLower(email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("get: %w", core.ErrNotFound)
}

func (m *memUsers) GetByID(_ context.Context, id string) (*UserInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, fmt.Errorf("get: %w", core.ErrNotFound)
	}
	cp := *u
	return &cp, nil
}

func (m *memUsers) Create(_ context.Context, email, hash, name string) (*UserInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return nil, fmt.Errorf("create: %w", core.ErrDuplicateKey)
		}
	}
	u := &UserInfo{
		ID:           uuid.New().String(),
		Email:        strings.ToLower(email),
		Name:         name,
		PasswordHash: hash,
		Role:         "user",
		Lifecycle:    "active",
	}
	m.users[u.ID] = u
	cp := *u
	return &cp, nil
}

func (m *memUsers) IncrementTokenVersion(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[id].TokenVersion++
	return nil
}

func (m *memUsers) UpdatePassword(_ context.Context, id, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[id].PasswordHash = hash
	return nil
}

func (m *memUsers) setLifecycle(id, lifecycle string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[id].Lifecycle = lifecycle
}

type harness struct {
	svc    *Service
	jwt    *JWTManager
	tokens *memTokens
	users  *memUsers
	clock  *testclock.Clock
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	jwtManager, err := NewJWTManagerFromKey(key, config.JWTConfig{
		AccessTokenExpire:  15 * time.Minute,
		RefreshTokenExpire: 7 * 24 * time.Hour,
		Issuer:             "erasure-test",
		Audience:           "erasure-test-api",
	})
	require.NoError(t, err)

	h := &harness{
		jwt:    jwtManager,
		tokens: &memTokens{tokens: map[string]*RefreshToken{}},
		users:  &memUsers{users: map[string]*UserInfo{}},
		clock:  testclock.NewClock(time.Now()),
	}
	h.svc = NewService(h.tokens, h.jwt, h.users, h.clock, nil)
	return h
}

func (h *harness) register(t *testing.T, email string) *AuthResponse {
	t.Helper()
	resp, err := h.svc.Register(context.Background(), RegisterRequest{
		Email:    email,
		Password: "correct horse battery",
		Name:     "Test",
	})
	require.NoError(t, err)
	return resp
}

func TestRegisterAndLogin(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	registered := h.register(t, "Ada@Example.com")
	assert.Equal(t, "ada@example.com", registered.User.Email)
	assert.Equal(t, "Bearer", registered.Tokens.TokenType)
	assert.Equal(t, 900, registered.Tokens.ExpiresIn)

	resp, err := h.svc.Login(ctx, LoginRequest{
		Email:    "ada@example.com",
		Password: "correct horse battery",
	})
	require.NoError(t, err)

	claims, err := h.jwt.VerifyAccessToken(ctx, resp.Tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, registered.User.ID, claims.UserID)
	assert.Equal(t, "user", claims.Role)
	assert.Equal(t, 0, claims.TokenVersion)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	h := newHarness(t)
	h.register(t, "dup@example.com")

	_, err := h.svc.Register(context.Background(), RegisterRequest{
		Email:    "dup@example.com",
		Password: "another password",
		Name:     "Dup",
	})
	assert.ErrorIs(t, err, ErrEmailExists)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.register(t, "ada@example.com")

	_, err := h.svc.Login(ctx, LoginRequest{Email: "ada@example.com", Password: "wrong password"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = h.svc.Login(ctx, LoginRequest{Email: "nobody@example.com", Password: "whatever1"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginLifecycle(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	user := h.register(t, "ada@example.com").User
	req := LoginRequest{Email: "ada@example.com", Password: "correct horse battery"}

	h.users.setLifecycle(user.ID, "pending")
	_, err := h.svc.Login(ctx, req)
	require.NoError(t, err, "a pending account must be able to sign in to cancel")

	h.users.setLifecycle(user.ID, "failed")
	_, err = h.svc.Login(ctx, req)
	require.ErrorIs(t, err, core.ErrAccountLocked)

	appErr, ok := core.IsAppError(err)
	require.True(t, ok)
	assert.Equal(t, "ACCOUNT_LOCKED", appErr.Code)
}

func TestRefreshRotatesAndDetectsReuse(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	first := h.register(t, "ada@example.com")

	second, err := h.svc.Refresh(ctx, first.Tokens.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, first.Tokens.RefreshToken, second.Tokens.RefreshToken)
	assert.Equal(t, 1, h.tokens.active(first.User.ID))

	_, err = h.svc.Refresh(ctx, first.Tokens.RefreshToken)
	require.ErrorIs(t, err, ErrTokenReuse)

	assert.Equal(t, 0, h.tokens.active(first.User.ID))
	err = h.svc.ValidateTokenVersion(ctx, first.User.ID, 0)
	assert.ErrorIs(t, err, core.ErrTokenRevoked)
}

func TestRefreshExpired(t *testing.T) {
	h := newHarness(t)
	first := h.register(t, "ada@example.com")

	h.clock.Advance(8 * 24 * time.Hour)

	_, err := h.svc.Refresh(context.Background(), first.Tokens.RefreshToken)
	assert.ErrorIs(t, err, core.ErrTokenExpired)
}

func TestRefreshUnknownToken(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.Refresh(context.Background(), "not-a-token")
	assert.ErrorIs(t, err, core.ErrTokenInvalid)
}

func TestRevokeSessionsInvalidatesTokens(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	resp := h.register(t, "ada@example.com")

	require.NoError(t, h.svc.ValidateTokenVersion(ctx, resp.User.ID, 0))

	id := uuid.MustParse(resp.User.ID)
	require.NoError(t, h.svc.RevokeSessions(ctx, id))

	assert.Equal(t, 0, h.tokens.active(resp.User.ID))
	assert.ErrorIs(t, h.svc.ValidateTokenVersion(ctx, resp.User.ID, 0), core.ErrTokenRevoked)
	assert.NoError(t, h.svc.ValidateTokenVersion(ctx, resp.User.ID, 1))

	_, err := h.svc.Refresh(ctx, resp.Tokens.RefreshToken)
	assert.ErrorIs(t, err, ErrTokenReuse)
}

func TestLogoutOtherUsersToken(t *testing.T) {
	h := newHarness(t)
	a := h.register(t, "a@example.com")
	b := h.register(t, "b@example.com")

	err := h.svc.Logout(context.Background(), a.Tokens.RefreshToken, b.User.ID)
	assert.ErrorIs(t, err, core.ErrForbidden)

	require.NoError(t, h.svc.Logout(context.Background(), a.Tokens.RefreshToken, a.User.ID))
	assert.Equal(t, 0, h.tokens.active(a.User.ID))
}

func TestVerifyRejectsForeignSigningKey(t *testing.T) {
	h := newHarness(t)
	resp := h.register(t, "ada@example.com")

	other, err := NewJWTManagerFromKey(mustKey(t), config.JWTConfig{
		AccessTokenExpire: time.Minute,
		Issuer:            "erasure-test",
		Audience:          "erasure-test-api",
	})
	require.NoError(t, err)

	_, err = other.VerifyAccessToken(context.Background(), resp.Tokens.AccessToken)
	assert.ErrorIs(t, err, core.ErrTokenInvalid)
}

func mustKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	return key
}
