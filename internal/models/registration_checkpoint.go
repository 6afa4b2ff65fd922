// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

import (
	"encoding/json"
	"time"
)

// RegistrationCheckpoint stores the last completed wizard step for an email
// identity that has not finished signing up yet. There is at most one row per
// email; saving again replaces step and payload wholesale.
//
// StepData is an opaque JSON blob accumulated by the client across steps.
// The server never merges payloads; the last save wins.
type RegistrationCheckpoint struct { //nolint:govet // fieldalignment: readability over optimization
	ID              int64           `db:"id" json:"id"`
	Email           string          `db:"email" json:"email"`
	Step            int             `db:"step" json:"step"`
	StepData        json.RawMessage `db:"step_data" json:"step_data"`
	ResumeTokenHash string          `db:"resume_token_hash" json:"-"` // SHA256 hash
	TokenExpiresAt  *time.Time      `db:"token_expires_at" json:"token_expires_at"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
}
