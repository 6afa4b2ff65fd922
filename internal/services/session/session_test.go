// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package session

import (
	"net/http/httptest"
	"testing"

	"codeberg.org/wellbank/wellbank-api/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(&config.SessionConfig{
		CookieName: "_session",
		MaxAge:     3600,
	}, false)
	require.NoError(t, err)
	return m
}

func TestCreateAndParse(t *testing.T) {
	m := newTestManager(t)

	cookie, err := m.Create(42, "jane@example.com")
	require.NoError(t, err)
	assert.Equal(t, "_session", cookie.Name)
	assert.True(t, cookie.HttpOnly)

	req := httptest.NewRequest("GET", "/auth/me", nil)
	req.AddCookie(cookie)

	su := m.Parse(req)
	require.NotNil(t, su)
	assert.Equal(t, int64(42), su.ID)
	assert.Equal(t, "jane@example.com", su.Email)
}

func TestParse_NoCookie(t *testing.T) {
	m := newTestManager(t)

	req := httptest.NewRequest("GET", "/auth/me", nil)

	assert.Nil(t, m.Parse(req))
}

func TestParse_TamperedCookie(t *testing.T) {
	m := newTestManager(t)

	cookie, err := m.Create(42, "jane@example.com")
	require.NoError(t, err)
	cookie.Value += "tampered"

	req := httptest.NewRequest("GET", "/auth/me", nil)
	req.AddCookie(cookie)

	assert.Nil(t, m.Parse(req))
}

func TestParse_ForeignManager(t *testing.T) {
	// A cookie signed with different keys must not parse.
	m1 := newTestManager(t)
	m2 := newTestManager(t)

	cookie, err := m1.Create(42, "jane@example.com")
	require.NoError(t, err)

	req := httptest.NewRequest("GET", "/auth/me", nil)
	req.AddCookie(cookie)

	assert.Nil(t, m2.Parse(req))
}

func TestExpire(t *testing.T) {
	m := newTestManager(t)

	cookie := m.Expire()

	assert.Equal(t, "_session", cookie.Name)
	assert.Empty(t, cookie.Value)
	assert.Negative(t, cookie.MaxAge)
}

func TestNewManager_InvalidHashKey(t *testing.T) {
	_, err := NewManager(&config.SessionConfig{
		CookieName: "_session",
		HashKey:    "not-hex",
	}, false)

	assert.Error(t, err)
}
