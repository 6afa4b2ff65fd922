// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"codeberg.org/wellbank/wellbank-api/internal/repository"
	"codeberg.org/wellbank/wellbank-api/internal/services/auth"
	"codeberg.org/wellbank/wellbank-api/internal/services/otp"
	"codeberg.org/wellbank/wellbank-api/internal/services/registration"
	"codeberg.org/wellbank/wellbank-api/internal/services/session"
	"github.com/labstack/echo/v4"
)

// Caller-visible messages for the registration endpoints.
const (
	msgNoState      = "No registration state found or token expired"
	msgNoResume     = "No registration to resume"
	msgStateCleared = "Registration state cleared"
)

// RegistrationHandlers contains handlers for the signup wizard: OTP gate,
// step checkpointing and finalization.
type RegistrationHandlers struct {
	repo      *repository.Repository
	reg       *registration.Service
	otp       *otp.Service
	sessions  *session.Manager
	validator *auth.PasswordValidator
}

// NewRegistration creates a new RegistrationHandlers instance.
func NewRegistration(repo *repository.Repository, reg *registration.Service, otpSvc *otp.Service, sessions *session.Manager) *RegistrationHandlers {
	return &RegistrationHandlers{
		repo:      repo,
		reg:       reg,
		otp:       otpSvc,
		sessions:  sessions,
		validator: auth.DefaultPasswordValidator(),
	}
}

// SendCodeRequest is the request body for requesting a verification code.
type SendCodeRequest struct {
	Destination string `json:"destination"`
}

// SendCode issues a one-time code to the destination address.
func (h *RegistrationHandlers) SendCode(c echo.Context) error {
	var req SendCodeRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid request")
	}

	challenge, err := h.otp.SendCode(c.Request().Context(), req.Destination)
	if err != nil {
		if errors.Is(err, otp.ErrInvalidDestination) {
			return fail(c, http.StatusBadRequest, "destination is required")
		}
		slog.Error("failed to send verification code", "error", err)
		return fail(c, http.StatusInternalServerError, "failed to send verification code")
	}

	return success(c, challenge)
}

// VerifyCodeRequest is the request body for verifying a code.
type VerifyCodeRequest struct {
	ChallengeID string `json:"challenge_id"`
	Code        string `json:"code"`
}

// VerifyCode checks a one-time code and returns a verification token.
func (h *RegistrationHandlers) VerifyCode(c echo.Context) error {
	var req VerifyCodeRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid request")
	}

	token, err := h.otp.VerifyCode(c.Request().Context(), req.ChallengeID, req.Code)
	if err != nil {
		if errors.Is(err, otp.ErrRejected) {
			return fail(c, http.StatusBadRequest, "Invalid or expired verification code")
		}
		slog.Error("failed to verify code", "error", err)
		return fail(c, http.StatusInternalServerError, "verification failed")
	}

	return success(c, map[string]string{"verification_token": token})
}

// SaveStepRequest is the request body for checkpointing a wizard step.
type SaveStepRequest struct { //nolint:govet // fieldalignment: readability over optimization
	Email string          `json:"email"`
	Step  int             `json:"step"`
	Data  json.RawMessage `json:"data"`
}

// SaveStep checkpoints the registrant's progress.
func (h *RegistrationHandlers) SaveStep(c echo.Context) error {
	var req SaveStepRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid request")
	}
	if req.Email == "" {
		return fail(c, http.StatusBadRequest, "email is required")
	}
	if req.Step < 0 {
		return fail(c, http.StatusBadRequest, "step must not be negative")
	}

	state, err := h.reg.SaveStep(c.Request().Context(), req.Email, req.Step, req.Data)
	if err != nil {
		if errors.Is(err, registration.ErrNoState) {
			return fail(c, http.StatusConflict, "Registration already completed")
		}
		slog.Error("failed to save registration step", "error", err)
		return fail(c, http.StatusInternalServerError, "failed to save registration state")
	}

	return success(c, state)
}

// StateRequest is the request body for fetching state by email and token.
type StateRequest struct {
	Email string `json:"email"`
	Token string `json:"token"`
}

// State returns the checkpoint matching email and resume token.
func (h *RegistrationHandlers) State(c echo.Context) error {
	var req StateRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid request")
	}
	if req.Email == "" {
		return fail(c, http.StatusBadRequest, "email is required")
	}

	state, err := h.reg.GetState(c.Request().Context(), req.Email, req.Token)
	if err != nil {
		if errors.Is(err, registration.ErrNoState) {
			return fail(c, http.StatusNotFound, msgNoState)
		}
		slog.Error("failed to load registration state", "error", err)
		return fail(c, http.StatusInternalServerError, "failed to load registration state")
	}

	return success(c, state)
}

// ResumeRequest is the request body for resuming by email only.
type ResumeRequest struct {
	Email string `json:"email"`
}

// Resume returns the checkpoint for an email without a token.
func (h *RegistrationHandlers) Resume(c echo.Context) error {
	var req ResumeRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid request")
	}
	if req.Email == "" {
		return fail(c, http.StatusBadRequest, "email is required")
	}

	state, err := h.reg.ResumeByEmail(c.Request().Context(), req.Email)
	if err != nil {
		if errors.Is(err, registration.ErrNoState) {
			return fail(c, http.StatusNotFound, msgNoResume)
		}
		slog.Error("failed to resume registration", "error", err)
		return fail(c, http.StatusInternalServerError, "failed to resume registration")
	}

	return success(c, state)
}

// ClearRequest is the request body for clearing a checkpoint.
type ClearRequest struct {
	Email string `json:"email"`
}

// Clear resets the checkpoint for an email. Idempotent.
func (h *RegistrationHandlers) Clear(c echo.Context) error {
	var req ClearRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid request")
	}
	if req.Email == "" {
		return fail(c, http.StatusBadRequest, "email is required")
	}

	if err := h.reg.ClearState(c.Request().Context(), req.Email); err != nil {
		slog.Error("failed to clear registration state", "error", err)
		return fail(c, http.StatusInternalServerError, "failed to clear registration state")
	}

	return successMessage(c, msgStateCleared)
}

// CompleteRequest is the request body for finalizing a registration.
type CompleteRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// Complete finalizes the registration: it creates the account with a hashed
// password and clears the checkpoint so the flow is never resumable again.
func (h *RegistrationHandlers) Complete(c echo.Context) error {
	var req CompleteRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid request")
	}
	if req.Email == "" {
		return fail(c, http.StatusBadRequest, "email is required")
	}
	if req.Password == "" {
		return fail(c, http.StatusBadRequest, "password is required")
	}

	ctx := c.Request().Context()

	if user, err := h.repo.GetUserByEmail(ctx, req.Email); err == nil && user.HasCredentials() {
		return fail(c, http.StatusConflict, "Registration already completed")
	} else if err != nil && !errors.Is(err, repository.ErrNotFound) {
		slog.Error("failed to check existing account", "error", err)
		return fail(c, http.StatusInternalServerError, "failed to complete registration")
	}

	if errs := h.validator.Validate(req.Password, req.Email); len(errs) > 0 {
		return fail(c, http.StatusBadRequest, errs[0].Message)
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		slog.Error("failed to hash password", "error", err)
		return fail(c, http.StatusInternalServerError, "failed to complete registration")
	}

	user, err := h.repo.CreateUser(ctx, req.Email, hash, req.Role)
	if err != nil {
		slog.Error("failed to create user", "error", err, "email", req.Email)
		return fail(c, http.StatusInternalServerError, "failed to complete registration")
	}

	// The checkpoint must not outlive the finalized account.
	if err := h.reg.ClearState(ctx, req.Email); err != nil {
		slog.Error("failed to clear registration state after completion", "error", err, "email", req.Email)
	}

	cookie, err := h.sessions.Create(user.ID, user.Email)
	if err != nil {
		slog.Error("failed to create session", "error", err)
		return fail(c, http.StatusInternalServerError, "failed to create session")
	}
	c.SetCookie(cookie)

	return success(c, user)
}
