// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"time"

	"codeberg.org/wellbank/wellbank-api/internal/models"
)

// CreateOTPChallenge stores a new OTP challenge with a hashed code.
func (r *Repository) CreateOTPChallenge(ctx context.Context, challenge, destination, codeHash string, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO otp_challenges (challenge, destination, code_hash, expires_at) VALUES (?, ?, ?, ?)`,
		challenge, destination, codeHash, expiresAt)
	return err
}

// GetOTPChallenge retrieves an OTP challenge by its challenge ID.
func (r *Repository) GetOTPChallenge(ctx context.Context, challenge string) (*models.OTPChallenge, error) {
	var c models.OTPChallenge
	if err := r.db.GetContext(ctx, &c, `SELECT * FROM otp_challenges WHERE challenge = ?`, challenge); err != nil {
		return nil, wrapError(err)
	}
	return &c, nil
}

// ConsumeOTPChallenge marks a challenge as used. Returns ErrNotFound if the
// challenge does not exist or has already been consumed, which keeps codes
// single use under concurrent verify attempts.
func (r *Repository) ConsumeOTPChallenge(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE otp_challenges SET consumed_at = CURRENT_TIMESTAMP WHERE id = ? AND consumed_at IS NULL`,
		id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteExpiredOTPChallenges deletes challenges past their expiry.
func (r *Repository) DeleteExpiredOTPChallenges(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM otp_challenges WHERE expires_at < ?`, time.Now())
	return err
}
