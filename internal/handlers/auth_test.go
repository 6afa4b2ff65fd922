// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"codeberg.org/wellbank/wellbank-api/internal/config"
	"codeberg.org/wellbank/wellbank-api/internal/handlers"
	"codeberg.org/wellbank/wellbank-api/internal/services/auth"
	"codeberg.org/wellbank/wellbank-api/internal/services/session"
	"codeberg.org/wellbank/wellbank-api/internal/testutil"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthFixture(t *testing.T) (*echo.Echo, *handlers.AuthHandlers, *session.Manager) {
	t.Helper()
	_, repo := testutil.NewTestDB(t)

	hash, err := auth.HashPassword("correct horse battery staple")
	require.NoError(t, err)
	testutil.NewTestUser(t, repo, "jane@example.com", hash)

	sessions, err := session.NewManager(&config.SessionConfig{CookieName: "_session", MaxAge: 3600}, false)
	require.NoError(t, err)

	return echo.New(), handlers.NewAuth(repo, sessions), sessions
}

func TestLogin(t *testing.T) {
	e, h, _ := newAuthFixture(t)

	body := `{"email":"jane@example.com","password":"correct horse battery staple"}`
	c, rec := testutil.NewEchoContext(e, http.MethodPost, "/auth/login", strings.NewReader(body))

	require.NoError(t, h.Login(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"success"`)
	assert.NotContains(t, rec.Body.String(), "password_hash")

	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)
	assert.Equal(t, "_session", cookies[0].Name)
}

func TestLogin_WrongPassword(t *testing.T) {
	e, h, _ := newAuthFixture(t)

	body := `{"email":"jane@example.com","password":"wrong"}`
	c, rec := testutil.NewEchoContext(e, http.MethodPost, "/auth/login", strings.NewReader(body))

	require.NoError(t, h.Login(c))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogin_UnknownEmail(t *testing.T) {
	e, h, _ := newAuthFixture(t)

	body := `{"email":"nobody@example.com","password":"whatever"}`
	c, rec := testutil.NewEchoContext(e, http.MethodPost, "/auth/login", strings.NewReader(body))

	require.NoError(t, h.Login(c))

	// Unknown email and wrong password are indistinguishable
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMe(t *testing.T) {
	e, h, sessions := newAuthFixture(t)

	cookie, err := sessions.Create(1, "jane@example.com")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, h.Me(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "jane@example.com")
}

func TestMe_Unauthenticated(t *testing.T) {
	e, h, _ := newAuthFixture(t)

	c, rec := testutil.NewEchoContext(e, http.MethodGet, "/auth/me", nil)

	require.NoError(t, h.Me(c))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogout(t *testing.T) {
	e, h, _ := newAuthFixture(t)

	c, rec := testutil.NewEchoContext(e, http.MethodPost, "/auth/logout", nil)

	require.NoError(t, h.Logout(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)
	assert.Negative(t, cookies[0].MaxAge)
}
