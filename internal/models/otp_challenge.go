// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

import "time"

// OTPChallenge stores a hashed one-time code sent to a destination address.
// A challenge is single use: ConsumedAt is set on the first successful verify.
type OTPChallenge struct { //nolint:govet // fieldalignment: readability over optimization
	ID          int64      `db:"id" json:"id"`
	Challenge   string     `db:"challenge" json:"challenge"`
	Destination string     `db:"destination" json:"destination"`
	CodeHash    string     `db:"code_hash" json:"-"` // SHA256 hash
	ExpiresAt   time.Time  `db:"expires_at" json:"expires_at"`
	ConsumedAt  *time.Time `db:"consumed_at" json:"consumed_at,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
}

// Consumed reports whether the challenge has already been used.
func (c *OTPChallenge) Consumed() bool {
	return c.ConsumedAt != nil
}
