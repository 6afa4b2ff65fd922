// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"encoding/json"
	"time"

	"codeberg.org/wellbank/wellbank-api/internal/models"
)

// UpsertRegistrationCheckpoint creates or replaces the checkpoint for an
// email. Step, payload, token hash and expiry are replaced wholesale; there is
// at most one row per email and concurrent saves are last-write-wins.
func (r *Repository) UpsertRegistrationCheckpoint(ctx context.Context, email string, step int, stepData json.RawMessage, tokenHash string, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO registration_checkpoints (email, step, step_data, resume_token_hash, token_expires_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(email) DO UPDATE SET
		     step = excluded.step,
		     step_data = excluded.step_data,
		     resume_token_hash = excluded.resume_token_hash,
		     token_expires_at = excluded.token_expires_at,
		     updated_at = CURRENT_TIMESTAMP`,
		email, step, []byte(stepData), tokenHash, expiresAt)
	return err
}

// GetRegistrationCheckpointByEmail retrieves the checkpoint for an email.
func (r *Repository) GetRegistrationCheckpointByEmail(ctx context.Context, email string) (*models.RegistrationCheckpoint, error) {
	var cp models.RegistrationCheckpoint
	err := r.db.GetContext(ctx, &cp, `SELECT * FROM registration_checkpoints WHERE email = ?`, email)
	if err != nil {
		return nil, wrapError(err)
	}
	return &cp, nil
}

// GetRegistrationCheckpointByToken retrieves the checkpoint matching both the
// email and the resume token hash. A stale token from an earlier save no
// longer matches once a newer save has replaced the hash.
func (r *Repository) GetRegistrationCheckpointByToken(ctx context.Context, email, tokenHash string) (*models.RegistrationCheckpoint, error) {
	var cp models.RegistrationCheckpoint
	err := r.db.GetContext(ctx, &cp,
		`SELECT * FROM registration_checkpoints WHERE email = ? AND resume_token_hash = ? AND resume_token_hash != ''`,
		email, tokenHash)
	if err != nil {
		return nil, wrapError(err)
	}
	return &cp, nil
}

// ResetRegistrationCheckpoint zeroes the checkpoint for an email: step back to
// 0, payload, token and expiry discarded. The row is kept, not deleted. It is
// a no-op when no checkpoint exists.
func (r *Repository) ResetRegistrationCheckpoint(ctx context.Context, email string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE registration_checkpoints
		 SET step = 0, step_data = NULL, resume_token_hash = '', token_expires_at = NULL, updated_at = CURRENT_TIMESTAMP
		 WHERE email = ?`,
		email)
	return err
}
