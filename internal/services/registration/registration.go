// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package registration checkpoints a multi-step signup wizard so a registrant
// can resume it later, from the same or another device. Every save re-mints
// the resume token and replaces step and payload wholesale; a checkpoint
// whose account has since set a password is never resumable again.
package registration

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"codeberg.org/wellbank/wellbank-api/internal/repository"
)

const tokenLength = 32 // random bytes per resume token

var (
	// ErrNoState signals that no resumable checkpoint exists. Absent,
	// expired and finalized checkpoints are deliberately indistinguishable
	// so callers cannot probe which of the three it was.
	ErrNoState = errors.New("no registration state")

	// ErrInvalidInput is returned for a missing identity or negative step.
	ErrInvalidInput = errors.New("invalid registration input")
)

// State is the caller-visible part of a checkpoint.
type State struct {
	Step int             `json:"step"`
	Data json.RawMessage `json:"data"`
}

// Mailer delivers the resume link carrying the freshly minted token. It is
// optional; without it the token is simply not distributed.
type Mailer interface {
	SendResumeLink(ctx context.Context, toEmail, token string, expiresAt time.Time) error
}

// Service coordinates checkpoint saves and resumption.
type Service struct {
	repo     *repository.Repository
	mailer   Mailer
	tokenTTL time.Duration
	now      func() time.Time
}

// NewService creates a registration coordinator. mailer may be nil.
func NewService(repo *repository.Repository, mailer Mailer, tokenTTL time.Duration) *Service {
	return &Service{
		repo:     repo,
		mailer:   mailer,
		tokenTTL: tokenTTL,
		now:      time.Now,
	}
}

// SaveStep checkpoints the given wizard step for an email. The payload
// replaces the previous one entirely; callers must resend all accumulated
// fields. A fresh resume token is minted on every save, invalidating the
// previous one for GetState.
func (s *Service) SaveStep(ctx context.Context, email string, step int, data json.RawMessage) (*State, error) {
	if email == "" || step < 0 {
		return nil, ErrInvalidInput
	}

	finalized, err := s.finalized(ctx, email)
	if err != nil {
		return nil, err
	}
	if finalized {
		// FINALIZED is terminal: a completed registration cannot be reopened.
		return nil, ErrNoState
	}

	token, err := newToken()
	if err != nil {
		return nil, fmt.Errorf("minting resume token: %w", err)
	}
	expiresAt := s.now().Add(s.tokenTTL)

	if err := s.repo.UpsertRegistrationCheckpoint(ctx, email, step, data, HashToken(token), expiresAt); err != nil {
		return nil, fmt.Errorf("saving registration checkpoint: %w", err)
	}

	// The token is never echoed in the save response; it reaches the
	// registrant out of band.
	if s.mailer != nil {
		if err := s.mailer.SendResumeLink(ctx, email, token, expiresAt); err != nil {
			slog.Warn("failed to send resume link", "error", err)
		}
	}

	return &State{Step: step, Data: data}, nil
}

// GetState returns the checkpoint matching the email and resume token. Any
// of: no checkpoint, token mismatch, token expired, account finalized, yields
// ErrNoState.
func (s *Service) GetState(ctx context.Context, email, token string) (*State, error) {
	if email == "" || token == "" {
		return nil, ErrNoState
	}

	cp, err := s.repo.GetRegistrationCheckpointByToken(ctx, email, HashToken(token))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNoState
		}
		return nil, fmt.Errorf("loading registration checkpoint: %w", err)
	}

	if s.expired(cp.TokenExpiresAt) {
		return nil, ErrNoState
	}

	finalized, err := s.finalized(ctx, email)
	if err != nil {
		return nil, err
	}
	if finalized {
		return nil, ErrNoState
	}

	return &State{Step: cp.Step, Data: cp.StepData}, nil
}

// ResumeByEmail returns the checkpoint for an email without a token. This
// backs the "continue where you left off" flow entered by typing an email
// only; the weaker proof of identity is an accepted product trade-off for
// pre-account data.
func (s *Service) ResumeByEmail(ctx context.Context, email string) (*State, error) {
	if email == "" {
		return nil, ErrNoState
	}

	cp, err := s.repo.GetRegistrationCheckpointByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNoState
		}
		return nil, fmt.Errorf("loading registration checkpoint: %w", err)
	}

	// A cleared row has no token; it is not resumable.
	if cp.ResumeTokenHash == "" || s.expired(cp.TokenExpiresAt) {
		return nil, ErrNoState
	}

	finalized, err := s.finalized(ctx, email)
	if err != nil {
		return nil, err
	}
	if finalized {
		return nil, ErrNoState
	}

	return &State{Step: cp.Step, Data: cp.StepData}, nil
}

// ClearState resets the checkpoint for an email. Idempotent: clearing an
// unknown email succeeds. Callers must invoke this after account creation so
// the checkpoint cannot outlive the finalized account.
func (s *Service) ClearState(ctx context.Context, email string) error {
	if email == "" {
		return ErrInvalidInput
	}
	if err := s.repo.ResetRegistrationCheckpoint(ctx, email); err != nil {
		return fmt.Errorf("clearing registration checkpoint: %w", err)
	}
	return nil
}

// expired reports whether the expiry has passed. A checkpoint is live only
// strictly before its expiry; exactly-now counts as expired.
func (s *Service) expired(expiresAt *time.Time) bool {
	if expiresAt == nil {
		return true
	}
	return !s.now().Before(*expiresAt)
}

// finalized reports whether the email belongs to an account that already has
// credentials set.
func (s *Service) finalized(ctx context.Context, email string) (bool, error) {
	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("checking account state: %w", err)
	}
	return user.HasCredentials(), nil
}

// newToken generates an opaque resume token.
func newToken() (string, error) {
	bytes := make([]byte, tokenLength)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

// HashToken computes the SHA256 hash of a token for storage and lookup.
func HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}
