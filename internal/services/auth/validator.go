// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package auth

import (
	"bufio"
	"embed"
	"fmt"
	"strings"
)

//go:embed common_passwords.txt
var commonPasswordsFS embed.FS

var commonPasswords map[string]struct{}

func init() {
	commonPasswords = make(map[string]struct{})
	file, err := commonPasswordsFS.Open("common_passwords.txt")
	if err != nil {
		return
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		password := strings.ToLower(strings.TrimSpace(scanner.Text()))
		if password != "" {
			commonPasswords[password] = struct{}{}
		}
	}
}

// PasswordValidator validates passwords against various criteria.
type PasswordValidator struct {
	MinLength            int
	CheckCommonPasswords bool
}

// DefaultPasswordValidator returns a validator with sensible defaults.
func DefaultPasswordValidator() *PasswordValidator {
	return &PasswordValidator{
		MinLength:            12,
		CheckCommonPasswords: true,
	}
}

// ValidationError represents a single password validation error.
type ValidationError struct {
	Code    string
	Message string
}

func (e ValidationError) Error() string {
	return e.Message
}

// Validate checks a password against all configured criteria. userAttributes
// (email etc.) must not appear verbatim inside the password.
func (v *PasswordValidator) Validate(password string, userAttributes ...string) []ValidationError {
	var errs []ValidationError

	if len(password) < v.MinLength {
		errs = append(errs, ValidationError{
			Code:    "min_length",
			Message: fmt.Sprintf("Password must be at least %d characters long.", v.MinLength),
		})
	}

	if v.CheckCommonPasswords {
		if _, ok := commonPasswords[strings.ToLower(password)]; ok {
			errs = append(errs, ValidationError{
				Code:    "common_password",
				Message: "Password is too common.",
			})
		}
	}

	lower := strings.ToLower(password)
	for _, attr := range userAttributes {
		attr = strings.ToLower(strings.TrimSpace(attr))
		if attr != "" && strings.Contains(lower, attr) {
			errs = append(errs, ValidationError{
				Code:    "user_similarity",
				Message: "Password must not contain your email address.",
			})
			break
		}
	}

	return errs
}
