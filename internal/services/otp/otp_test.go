// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package otp

import (
	"context"
	"testing"
	"time"

	"codeberg.org/wellbank/wellbank-api/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureMailer records the last delivered code instead of sending mail.
type captureMailer struct {
	lastEmail string
	lastCode  string
}

func (m *captureMailer) SendOTPCode(_ context.Context, toEmail, code string, _ time.Duration) error {
	m.lastEmail = toEmail
	m.lastCode = code
	return nil
}

func newTestService(t *testing.T) (*Service, *captureMailer) {
	t.Helper()
	_, repo := testutil.NewTestDB(t)
	mailer := &captureMailer{}
	return NewService(repo, mailer, 5*time.Minute), mailer
}

func TestSendCode(t *testing.T) {
	svc, mailer := newTestService(t)
	ctx := context.Background()

	challenge, err := svc.SendCode(ctx, "jane@example.com")

	require.NoError(t, err)
	assert.NotEmpty(t, challenge.ID)
	assert.WithinDuration(t, time.Now().Add(5*time.Minute), challenge.ExpiresAt, time.Second)
	assert.Equal(t, "jane@example.com", mailer.lastEmail)
	assert.Len(t, mailer.lastCode, 6)
}

func TestSendCode_MissingDestination(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.SendCode(context.Background(), "")

	assert.ErrorIs(t, err, ErrInvalidDestination)
}

func TestVerifyCode(t *testing.T) {
	svc, mailer := newTestService(t)
	ctx := context.Background()

	challenge, err := svc.SendCode(ctx, "jane@example.com")
	require.NoError(t, err)

	token, err := svc.VerifyCode(ctx, challenge.ID, mailer.lastCode)

	require.NoError(t, err)
	assert.NotEmpty(t, token)
}

func TestVerifyCode_WrongCode(t *testing.T) {
	svc, mailer := newTestService(t)
	ctx := context.Background()

	challenge, err := svc.SendCode(ctx, "jane@example.com")
	require.NoError(t, err)

	wrong := "000000"
	if mailer.lastCode == wrong {
		wrong = "000001"
	}

	_, err = svc.VerifyCode(ctx, challenge.ID, wrong)

	assert.ErrorIs(t, err, ErrRejected)
}

func TestVerifyCode_UnknownChallenge(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.VerifyCode(context.Background(), "unknown", "123456")

	assert.ErrorIs(t, err, ErrRejected)
}

func TestVerifyCode_SingleUse(t *testing.T) {
	svc, mailer := newTestService(t)
	ctx := context.Background()

	challenge, err := svc.SendCode(ctx, "jane@example.com")
	require.NoError(t, err)

	_, err = svc.VerifyCode(ctx, challenge.ID, mailer.lastCode)
	require.NoError(t, err)

	_, err = svc.VerifyCode(ctx, challenge.ID, mailer.lastCode)
	assert.ErrorIs(t, err, ErrRejected)
}

func TestVerifyCode_Expired(t *testing.T) {
	svc, mailer := newTestService(t)
	ctx := context.Background()

	challenge, err := svc.SendCode(ctx, "jane@example.com")
	require.NoError(t, err)

	svc.now = func() time.Time { return time.Now().Add(6 * time.Minute) }

	_, err = svc.VerifyCode(ctx, challenge.ID, mailer.lastCode)

	assert.ErrorIs(t, err, ErrRejected)
}
