// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package email

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"codeberg.org/wellbank/wellbank-api/internal/config"
	"codeberg.org/wellbank/wellbank-api/internal/i18n"
	"github.com/wneessen/go-mail"
)

// Service sends transactional mail: one-time verification codes and
// registration resume links.
type Service struct {
	cfg     *config.SMTPConfig
	baseURL string
}

// NewService creates a new email service.
func NewService(cfg *config.SMTPConfig, baseURL string) (*Service, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("SMTP host is required")
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("SMTP from address is required")
	}

	return &Service{
		cfg:     cfg,
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}, nil
}

// SendOTPCode sends a one-time verification code.
func (s *Service) SendOTPCode(ctx context.Context, toEmail, code string, ttl time.Duration) error {
	subject := i18n.T(ctx, "otp_code_subject")
	body := i18n.TData(ctx, "otp_code_body", map[string]any{
		"Code":    code,
		"Minutes": int(ttl.Minutes()),
	})

	return s.send(toEmail, subject, body)
}

// SendResumeLink sends a link that reopens a saved registration at its last
// checkpoint from any device.
func (s *Service) SendResumeLink(ctx context.Context, toEmail, token string, expiresAt time.Time) error {
	resumeURL := fmt.Sprintf("%s/register/resume?email=%s&token=%s",
		s.baseURL, url.QueryEscape(toEmail), url.QueryEscape(token))

	subject := i18n.T(ctx, "resume_link_subject")
	body := i18n.TData(ctx, "resume_link_body", map[string]any{
		"ResumeURL": resumeURL,
		"ExpiresAt": expiresAt.Format(time.RFC1123),
	})

	return s.send(toEmail, subject, body)
}

// send sends an email via SMTP using go-mail.
func (s *Service) send(to, subject, body string) error {
	msg := mail.NewMsg()

	if s.cfg.FromName != "" {
		if err := msg.FromFormat(s.cfg.FromName, s.cfg.From); err != nil {
			return fmt.Errorf("setting from address: %w", err)
		}
	} else {
		if err := msg.From(s.cfg.From); err != nil {
			return fmt.Errorf("setting from address: %w", err)
		}
	}

	if err := msg.To(to); err != nil {
		return fmt.Errorf("setting to address: %w", err)
	}

	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)

	opts := []mail.Option{
		mail.WithPort(s.cfg.Port),
	}

	// Implicit TLS (SSL) for port 465, STARTTLS for others
	if s.cfg.TLS {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
		if s.cfg.Port == 465 {
			opts = append(opts, mail.WithSSL())
		}
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.NoTLS))
	}

	if s.cfg.Username != "" && s.cfg.Password != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.cfg.Username),
			mail.WithPassword(s.cfg.Password),
		)
	}

	client, err := mail.NewClient(s.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("creating mail client: %w", err)
	}

	if err := client.DialAndSend(msg); err != nil {
		return fmt.Errorf("sending email: %w", err)
	}

	return nil
}
