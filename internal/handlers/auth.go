// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"codeberg.org/wellbank/wellbank-api/internal/repository"
	"codeberg.org/wellbank/wellbank-api/internal/services/auth"
	"codeberg.org/wellbank/wellbank-api/internal/services/session"
	"github.com/labstack/echo/v4"
)

// AuthHandlers contains handlers for login and session introspection.
type AuthHandlers struct {
	repo     *repository.Repository
	sessions *session.Manager
}

// NewAuth creates a new AuthHandlers instance.
func NewAuth(repo *repository.Repository, sessions *session.Manager) *AuthHandlers {
	return &AuthHandlers{
		repo:     repo,
		sessions: sessions,
	}
}

// LoginRequest is the request body for logging in.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login authenticates a finalized account and sets a session cookie.
func (h *AuthHandlers) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid request")
	}
	if req.Email == "" || req.Password == "" {
		return fail(c, http.StatusBadRequest, "email and password are required")
	}

	user, err := h.repo.GetUserByEmail(c.Request().Context(), req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fail(c, http.StatusUnauthorized, "Invalid email or password")
		}
		slog.Error("failed to load user", "error", err)
		return fail(c, http.StatusInternalServerError, "login failed")
	}

	if !user.HasCredentials() || !auth.CheckPassword(user.PasswordHash, req.Password) {
		return fail(c, http.StatusUnauthorized, "Invalid email or password")
	}

	cookie, err := h.sessions.Create(user.ID, user.Email)
	if err != nil {
		slog.Error("failed to create session", "error", err)
		return fail(c, http.StatusInternalServerError, "login failed")
	}
	c.SetCookie(cookie)

	return success(c, user)
}

// Logout expires the session cookie.
func (h *AuthHandlers) Logout(c echo.Context) error {
	c.SetCookie(h.sessions.Expire())
	return successMessage(c, "Logged out")
}

// Me returns the account behind the current session.
func (h *AuthHandlers) Me(c echo.Context) error {
	su := h.sessions.Parse(c.Request())
	if su == nil {
		return fail(c, http.StatusUnauthorized, "Not authenticated")
	}

	user, err := h.repo.GetUserByID(c.Request().Context(), su.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fail(c, http.StatusUnauthorized, "Not authenticated")
		}
		slog.Error("failed to load user", "error", err)
		return fail(c, http.StatusInternalServerError, "failed to load account")
	}

	return success(c, user)
}
