// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"codeberg.org/wellbank/wellbank-api/internal/config"
	"codeberg.org/wellbank/wellbank-api/internal/handlers"
	"codeberg.org/wellbank/wellbank-api/internal/repository"
	"codeberg.org/wellbank/wellbank-api/internal/services/otp"
	"codeberg.org/wellbank/wellbank-api/internal/services/registration"
	"codeberg.org/wellbank/wellbank-api/internal/services/session"
	"codeberg.org/wellbank/wellbank-api/internal/testutil"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// envelope mirrors the uniform response shape.
type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// stateData is the payload of successful state responses.
type stateData struct {
	Step int             `json:"step"`
	Data json.RawMessage `json:"data"`
}

// otpMailer captures codes instead of sending them.
type otpMailer struct {
	lastCode string
}

func (m *otpMailer) SendOTPCode(_ context.Context, _, code string, _ time.Duration) error {
	m.lastCode = code
	return nil
}

// resumeMailer captures resume tokens instead of sending them.
type resumeMailer struct {
	lastToken string
}

func (m *resumeMailer) SendResumeLink(_ context.Context, _, token string, _ time.Time) error {
	m.lastToken = token
	return nil
}

type fixture struct {
	e      *echo.Echo
	repo   *repository.Repository
	h      *handlers.RegistrationHandlers
	otp    *otpMailer
	resume *resumeMailer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	_, repo := testutil.NewTestDB(t)

	om := &otpMailer{}
	rm := &resumeMailer{}
	regSvc := registration.NewService(repo, rm, 7*24*time.Hour)
	otpSvc := otp.NewService(repo, om, 5*time.Minute)

	sessions, err := session.NewManager(&config.SessionConfig{CookieName: "_session", MaxAge: 3600}, false)
	require.NoError(t, err)

	return &fixture{
		e:      echo.New(),
		repo:   repo,
		h:      handlers.NewRegistration(repo, regSvc, otpSvc, sessions),
		otp:    om,
		resume: rm,
	}
}

func decode(t *testing.T, body string) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal([]byte(body), &env))
	return env
}

func decodeState(t *testing.T, body string) stateData {
	t.Helper()
	env := decode(t, body)
	require.Equal(t, "success", env.Status)
	var st stateData
	require.NoError(t, json.Unmarshal(env.Data, &st))
	return st
}

func TestSaveStep(t *testing.T) {
	f := newFixture(t)

	body := `{"email":"jane@example.com","step":1,"data":{"role":"patient"}}`
	c, rec := testutil.NewEchoContext(f.e, http.MethodPost, "/auth/register/save-step", strings.NewReader(body))

	require.NoError(t, f.h.SaveStep(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	st := decodeState(t, rec.Body.String())
	assert.Equal(t, 1, st.Step)
	assert.JSONEq(t, `{"role":"patient"}`, string(st.Data))

	// The resume token is not echoed in the response body.
	assert.NotEmpty(t, f.resume.lastToken)
	assert.NotContains(t, rec.Body.String(), f.resume.lastToken)
}

func TestSaveStep_MissingEmail(t *testing.T) {
	f := newFixture(t)

	c, rec := testutil.NewEchoContext(f.e, http.MethodPost, "/auth/register/save-step", strings.NewReader(`{"step":1}`))

	require.NoError(t, f.h.SaveStep(c))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "error", decode(t, rec.Body.String()).Status)
}

func TestSaveStep_NegativeStep(t *testing.T) {
	f := newFixture(t)

	body := `{"email":"jane@example.com","step":-1}`
	c, rec := testutil.NewEchoContext(f.e, http.MethodPost, "/auth/register/save-step", strings.NewReader(body))

	require.NoError(t, f.h.SaveStep(c))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestState(t *testing.T) {
	f := newFixture(t)

	save := `{"email":"jane@example.com","step":2,"data":{"role":"doctor"}}`
	c, _ := testutil.NewEchoContext(f.e, http.MethodPost, "/auth/register/save-step", strings.NewReader(save))
	require.NoError(t, f.h.SaveStep(c))

	body := `{"email":"jane@example.com","token":"` + f.resume.lastToken + `"}`
	c, rec := testutil.NewEchoContext(f.e, http.MethodPost, "/auth/register/state", strings.NewReader(body))
	require.NoError(t, f.h.State(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	st := decodeState(t, rec.Body.String())
	assert.Equal(t, 2, st.Step)
	assert.JSONEq(t, `{"role":"doctor"}`, string(st.Data))
}

func TestState_WrongToken(t *testing.T) {
	f := newFixture(t)

	save := `{"email":"jane@example.com","step":2,"data":{}}`
	c, _ := testutil.NewEchoContext(f.e, http.MethodPost, "/auth/register/save-step", strings.NewReader(save))
	require.NoError(t, f.h.SaveStep(c))

	body := `{"email":"jane@example.com","token":"bogus"}`
	c, rec := testutil.NewEchoContext(f.e, http.MethodPost, "/auth/register/state", strings.NewReader(body))
	require.NoError(t, f.h.State(c))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	env := decode(t, rec.Body.String())
	assert.Equal(t, "error", env.Status)
	assert.Equal(t, "No registration state found or token expired", env.Message)
}

func TestResume(t *testing.T) {
	f := newFixture(t)

	save := `{"email":"jane@example.com","step":1,"data":{"role":"patient"}}`
	c, _ := testutil.NewEchoContext(f.e, http.MethodPost, "/auth/register/save-step", strings.NewReader(save))
	require.NoError(t, f.h.SaveStep(c))

	c, rec := testutil.NewEchoContext(f.e, http.MethodPost, "/auth/register/resume", strings.NewReader(`{"email":"jane@example.com"}`))
	require.NoError(t, f.h.Resume(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	st := decodeState(t, rec.Body.String())
	assert.Equal(t, 1, st.Step)
}

func TestResume_NothingToResume(t *testing.T) {
	f := newFixture(t)

	c, rec := testutil.NewEchoContext(f.e, http.MethodPost, "/auth/register/resume", strings.NewReader(`{"email":"nobody@example.com"}`))
	require.NoError(t, f.h.Resume(c))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	env := decode(t, rec.Body.String())
	assert.Equal(t, "error", env.Status)
	assert.Equal(t, "No registration to resume", env.Message)
}

func TestClear_Idempotent(t *testing.T) {
	f := newFixture(t)

	save := `{"email":"jane@example.com","step":3,"data":{}}`
	c, _ := testutil.NewEchoContext(f.e, http.MethodPost, "/auth/register/save-step", strings.NewReader(save))
	require.NoError(t, f.h.SaveStep(c))

	for range 2 {
		c, rec := testutil.NewEchoContext(f.e, http.MethodPost, "/auth/register/clear", strings.NewReader(`{"email":"jane@example.com"}`))
		require.NoError(t, f.h.Clear(c))
		assert.Equal(t, http.StatusOK, rec.Code)
		env := decode(t, rec.Body.String())
		assert.Equal(t, "success", env.Status)
		assert.Equal(t, "Registration state cleared", env.Message)
	}

	c, rec := testutil.NewEchoContext(f.e, http.MethodPost, "/auth/register/resume", strings.NewReader(`{"email":"jane@example.com"}`))
	require.NoError(t, f.h.Resume(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOTPSendAndVerify(t *testing.T) {
	f := newFixture(t)

	c, rec := testutil.NewEchoContext(f.e, http.MethodPost, "/auth/otp/send", strings.NewReader(`{"destination":"jane@example.com"}`))
	require.NoError(t, f.h.SendCode(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	env := decode(t, rec.Body.String())
	require.Equal(t, "success", env.Status)
	var challenge struct {
		ID string `json:"challenge_id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &challenge))
	require.NotEmpty(t, challenge.ID)
	require.Len(t, f.otp.lastCode, 6)

	verify := `{"challenge_id":"` + challenge.ID + `","code":"` + f.otp.lastCode + `"}`
	c, rec = testutil.NewEchoContext(f.e, http.MethodPost, "/auth/otp/verify", strings.NewReader(verify))
	require.NoError(t, f.h.VerifyCode(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	env = decode(t, rec.Body.String())
	require.Equal(t, "success", env.Status)
	var result struct {
		VerificationToken string `json:"verification_token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.NotEmpty(t, result.VerificationToken)
}

func TestOTPVerify_WrongCode(t *testing.T) {
	f := newFixture(t)

	c, rec := testutil.NewEchoContext(f.e, http.MethodPost, "/auth/otp/send", strings.NewReader(`{"destination":"jane@example.com"}`))
	require.NoError(t, f.h.SendCode(c))
	env := decode(t, rec.Body.String())
	var challenge struct {
		ID string `json:"challenge_id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &challenge))

	wrong := "000000"
	if f.otp.lastCode == wrong {
		wrong = "000001"
	}
	verify := `{"challenge_id":"` + challenge.ID + `","code":"` + wrong + `"}`
	c, rec = testutil.NewEchoContext(f.e, http.MethodPost, "/auth/otp/verify", strings.NewReader(verify))
	require.NoError(t, f.h.VerifyCode(c))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestComplete_FinalizesAndLocksOut(t *testing.T) {
	f := newFixture(t)

	save := `{"email":"jane@example.com","step":2,"data":{"role":"patient","verificationToken":"abc"}}`
	c, _ := testutil.NewEchoContext(f.e, http.MethodPost, "/auth/register/save-step", strings.NewReader(save))
	require.NoError(t, f.h.SaveStep(c))

	complete := `{"email":"jane@example.com","password":"correct horse battery staple","role":"patient"}`
	c, rec := testutil.NewEchoContext(f.e, http.MethodPost, "/auth/register/complete", strings.NewReader(complete))
	require.NoError(t, f.h.Complete(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	env := decode(t, rec.Body.String())
	assert.Equal(t, "success", env.Status)
	assert.NotContains(t, rec.Body.String(), "password")

	// A session cookie is issued right away
	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)
	assert.Equal(t, "_session", cookies[0].Name)

	// The checkpoint is gone
	c, rec = testutil.NewEchoContext(f.e, http.MethodPost, "/auth/register/resume", strings.NewReader(`{"email":"jane@example.com"}`))
	require.NoError(t, f.h.Resume(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Completing again conflicts
	c, rec = testutil.NewEchoContext(f.e, http.MethodPost, "/auth/register/complete", strings.NewReader(complete))
	require.NoError(t, f.h.Complete(c))
	assert.Equal(t, http.StatusConflict, rec.Code)

	// And so does checkpointing for the finalized identity
	c, rec = testutil.NewEchoContext(f.e, http.MethodPost, "/auth/register/save-step", strings.NewReader(save))
	require.NoError(t, f.h.SaveStep(c))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestComplete_WeakPassword(t *testing.T) {
	f := newFixture(t)

	complete := `{"email":"jane@example.com","password":"short","role":"patient"}`
	c, rec := testutil.NewEchoContext(f.e, http.MethodPost, "/auth/register/complete", strings.NewReader(complete))
	require.NoError(t, f.h.Complete(c))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "error", decode(t, rec.Body.String()).Status)
}
