// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"codeberg.org/wellbank/wellbank-api/internal/config"
	"codeberg.org/wellbank/wellbank-api/internal/database"
	"codeberg.org/wellbank/wellbank-api/internal/handlers"
	"codeberg.org/wellbank/wellbank-api/internal/i18n"
	"codeberg.org/wellbank/wellbank-api/internal/repository"
	"codeberg.org/wellbank/wellbank-api/internal/services/email"
	"codeberg.org/wellbank/wellbank-api/internal/services/otp"
	"codeberg.org/wellbank/wellbank-api/internal/services/registration"
	"codeberg.org/wellbank/wellbank-api/internal/services/session"
	"github.com/labstack/echo/v4"
	"github.com/urfave/cli/v3"
)

// Run starts the server with the given CLI command.
func Run(ctx context.Context, cmd *cli.Command) error {
	cfg := config.NewFromCLI(cmd)
	setupLogger(cfg.Log.Level, cfg.Log.Format)

	slog.Info("starting server",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"base_url", cfg.Server.BaseURL,
	)

	// Database (migrations run on open)
	db, err := database.Open(cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("failed to close database", "error", closeErr)
		}
	}()

	// i18n
	if initErr := i18n.Init(); initErr != nil {
		return fmt.Errorf("failed to init i18n: %w", initErr)
	}

	// Repository
	repo := repository.New(db)

	// Mail is optional; without SMTP the OTP gate stores codes but cannot
	// deliver them and resume links are not distributed.
	var mailer *email.Service
	if cfg.SMTP.Host != "" {
		mailer, err = email.NewService(&cfg.SMTP, cfg.Server.BaseURL)
		if err != nil {
			return fmt.Errorf("failed to init mail service: %w", err)
		}
	} else {
		slog.Warn("SMTP not configured, email delivery disabled")
	}

	// Services
	regSvc := newRegistrationService(repo, mailer, cfg)
	otpSvc := newOTPService(repo, mailer, cfg)

	secure := strings.HasPrefix(cfg.Server.BaseURL, "https://")
	sessions, err := session.NewManager(&cfg.Session, secure)
	if err != nil {
		return fmt.Errorf("failed to init session manager: %w", err)
	}

	// Echo
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	setupMiddleware(e, cfg)
	setupRoutes(e, repo, regSvc, otpSvc, sessions)

	return startWithGracefulShutdown(e, cfg)
}

func newRegistrationService(repo *repository.Repository, mailer *email.Service, cfg *config.Config) *registration.Service {
	tokenTTL := time.Duration(cfg.Registration.TokenTTLDays) * 24 * time.Hour
	if mailer == nil {
		return registration.NewService(repo, nil, tokenTTL)
	}
	return registration.NewService(repo, mailer, tokenTTL)
}

func newOTPService(repo *repository.Repository, mailer *email.Service, cfg *config.Config) *otp.Service {
	ttl := time.Duration(cfg.Registration.OTPTTLMinutes) * time.Minute
	if mailer == nil {
		return otp.NewService(repo, nil, ttl)
	}
	return otp.NewService(repo, mailer, ttl)
}

func setupRoutes(e *echo.Echo, repo *repository.Repository, regSvc *registration.Service, otpSvc *otp.Service, sessions *session.Manager) {
	h := handlers.New(repo)
	regHandlers := handlers.NewRegistration(repo, regSvc, otpSvc, sessions)
	authHandlers := handlers.NewAuth(repo, sessions)

	e.GET("/health", h.Health)

	a := e.Group("/auth")
	a.POST("/otp/send", regHandlers.SendCode)
	a.POST("/otp/verify", regHandlers.VerifyCode)
	a.POST("/register/save-step", regHandlers.SaveStep)
	a.POST("/register/state", regHandlers.State)
	a.POST("/register/resume", regHandlers.Resume)
	a.POST("/register/clear", regHandlers.Clear)
	a.POST("/register/complete", regHandlers.Complete)
	a.POST("/login", authHandlers.Login)
	a.POST("/logout", authHandlers.Logout)
	a.GET("/me", authHandlers.Me)
}

func startWithGracefulShutdown(e *echo.Echo, cfg *config.Config) error {
	errChan := make(chan error, 1)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	go func() {
		slog.Info("Server running", "url", cfg.Server.BaseURL)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		slog.Info("shutting down server")
	case err := <-errChan:
		slog.Error("server error", "error", err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to shutdown server", "error", err)
	}

	slog.Info("server stopped")
	return nil
}
