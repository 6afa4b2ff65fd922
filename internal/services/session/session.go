// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package session implements signed cookie sessions for finalized accounts.
package session

import (
	"encoding/hex"
	"fmt"
	"net/http"
	"time"

	"codeberg.org/wellbank/wellbank-api/internal/config"
	"github.com/gorilla/securecookie"
)

// SessionUser is the user data carried inside a session cookie.
type SessionUser struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
}

// Manager creates and parses session cookies.
type Manager struct {
	sc         *securecookie.SecureCookie
	cookieName string
	maxAge     int
	secure     bool
}

// NewManager creates a session manager from config. Missing keys are
// generated at startup, which invalidates sessions across restarts; set
// session.hash_key in production.
func NewManager(cfg *config.SessionConfig, secure bool) (*Manager, error) {
	hashKey, err := keyFromHex(cfg.HashKey, 32)
	if err != nil {
		return nil, fmt.Errorf("session hash key: %w", err)
	}

	var blockKey []byte
	if cfg.BlockKey != "" {
		blockKey, err = keyFromHex(cfg.BlockKey, 32)
		if err != nil {
			return nil, fmt.Errorf("session block key: %w", err)
		}
	}

	sc := securecookie.New(hashKey, blockKey)
	sc.MaxAge(cfg.MaxAge)

	return &Manager{
		sc:         sc,
		cookieName: cfg.CookieName,
		maxAge:     cfg.MaxAge,
		secure:     secure,
	}, nil
}

// Create builds a signed session cookie for a user.
func (m *Manager) Create(userID int64, email string) (*http.Cookie, error) {
	value := SessionUser{ID: userID, Email: email}
	encoded, err := m.sc.Encode(m.cookieName, value)
	if err != nil {
		return nil, fmt.Errorf("encoding session: %w", err)
	}

	return &http.Cookie{
		Name:     m.cookieName,
		Value:    encoded,
		Path:     "/",
		MaxAge:   m.maxAge,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	}, nil
}

// Parse extracts the session user from a request. Returns nil without error
// when no valid session cookie is present.
func (m *Manager) Parse(r *http.Request) *SessionUser {
	cookie, err := r.Cookie(m.cookieName)
	if err != nil {
		return nil
	}

	var value SessionUser
	if err := m.sc.Decode(m.cookieName, cookie.Value, &value); err != nil {
		return nil
	}
	if value.ID == 0 {
		return nil
	}
	return &value
}

// Expire returns a cookie that removes the session.
func (m *Manager) Expire() *http.Cookie {
	return &http.Cookie{
		Name:     m.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// keyFromHex decodes a hex key of the given byte length, generating a random
// one when empty.
func keyFromHex(s string, length int) ([]byte, error) {
	if s == "" {
		return securecookie.GenerateRandomKey(length), nil
	}
	key, err := hex.DecodeString(s)
	if err != nil {
		return nil, err
	}
	if len(key) != length {
		return nil, fmt.Errorf("expected %d bytes, got %d", length, len(key))
	}
	return key, nil
}
