// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package otp issues and verifies short-lived one-time codes sent by email.
// The verification token returned by VerifyCode is an opaque receipt the
// registration wizard carries in its step data; the coordinator stores it
// without validating it.
package otp

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"time"

	"codeberg.org/wellbank/wellbank-api/internal/repository"
	"github.com/google/uuid"
)

const codeDigits = 6

var (
	// ErrRejected covers every failed verification: unknown challenge,
	// wrong code, expired or already consumed. Callers cannot tell which.
	ErrRejected = errors.New("verification rejected")

	// ErrInvalidDestination is returned when no destination is given.
	ErrInvalidDestination = errors.New("destination is required")
)

// Challenge identifies an outstanding code.
type Challenge struct {
	ID        string    `json:"challenge_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Mailer delivers the plaintext code to the destination.
type Mailer interface {
	SendOTPCode(ctx context.Context, toEmail, code string, ttl time.Duration) error
}

// Service issues and verifies one-time codes.
type Service struct {
	repo   *repository.Repository
	mailer Mailer
	ttl    time.Duration
	now    func() time.Time
}

// NewService creates an OTP service. mailer may be nil, in which case codes
// are stored but not delivered (useful for local development).
func NewService(repo *repository.Repository, mailer Mailer, ttl time.Duration) *Service {
	return &Service{
		repo:   repo,
		mailer: mailer,
		ttl:    ttl,
		now:    time.Now,
	}
}

// SendCode creates a challenge for the destination and emails the code.
func (s *Service) SendCode(ctx context.Context, destination string) (*Challenge, error) {
	if destination == "" {
		return nil, ErrInvalidDestination
	}

	code, err := newCode()
	if err != nil {
		return nil, fmt.Errorf("generating code: %w", err)
	}

	challenge := uuid.NewString()
	expiresAt := s.now().Add(s.ttl)

	if err := s.repo.CreateOTPChallenge(ctx, challenge, destination, hashCode(code), expiresAt); err != nil {
		return nil, fmt.Errorf("storing challenge: %w", err)
	}

	if s.mailer != nil {
		if err := s.mailer.SendOTPCode(ctx, destination, code, s.ttl); err != nil {
			return nil, fmt.Errorf("sending code: %w", err)
		}
	}

	return &Challenge{ID: challenge, ExpiresAt: expiresAt}, nil
}

// VerifyCode checks the code against an outstanding challenge and consumes
// it. On success it returns an opaque verification token for the wizard to
// carry forward.
func (s *Service) VerifyCode(ctx context.Context, challengeID, code string) (string, error) {
	if challengeID == "" || code == "" {
		return "", ErrRejected
	}

	challenge, err := s.repo.GetOTPChallenge(ctx, challengeID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", ErrRejected
		}
		return "", fmt.Errorf("loading challenge: %w", err)
	}

	if challenge.Consumed() || !s.now().Before(challenge.ExpiresAt) {
		return "", ErrRejected
	}

	if subtle.ConstantTimeCompare([]byte(hashCode(code)), []byte(challenge.CodeHash)) != 1 {
		return "", ErrRejected
	}

	// Consuming atomically guards against a concurrent double verify.
	if err := s.repo.ConsumeOTPChallenge(ctx, challenge.ID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", ErrRejected
		}
		return "", fmt.Errorf("consuming challenge: %w", err)
	}

	token := make([]byte, 32)
	if _, err := rand.Read(token); err != nil {
		return "", fmt.Errorf("generating verification token: %w", err)
	}
	return hex.EncodeToString(token), nil
}

// newCode generates a uniformly random numeric code.
func newCode() (string, error) {
	max := big.NewInt(1)
	for range codeDigits {
		max.Mul(max, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", codeDigits, n), nil
}

func hashCode(code string) string {
	hash := sha256.Sum256([]byte(code))
	return hex.EncodeToString(hash[:])
}
