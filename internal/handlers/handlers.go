// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"net/http"

	"codeberg.org/wellbank/wellbank-api/internal/repository"
	"github.com/labstack/echo/v4"
)

// Handlers contains general HTTP handlers.
type Handlers struct {
	repo *repository.Repository
}

// New creates a new Handlers instance.
func New(repo *repository.Repository) *Handlers {
	return &Handlers{repo: repo}
}

// Health returns the health status.
func (h *Handlers) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// success writes the uniform success envelope.
func success(c echo.Context, data any) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status": "success",
		"data":   data,
	})
}

// successMessage writes a success envelope carrying only a message.
func successMessage(c echo.Context, message string) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":  "success",
		"message": message,
	})
}

// fail writes the uniform error envelope.
func fail(c echo.Context, status int, message string) error {
	return c.JSON(status, map[string]any{
		"status":  "error",
		"message": message,
	})
}
