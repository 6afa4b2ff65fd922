// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

import "time"

// User is a finalized WellBank account. An account counts as finalized once
// PasswordHash is non-empty; registration checkpoints for that email become
// permanently inert at that point.
type User struct { //nolint:govet // fieldalignment: readability over optimization
	ID           int64     `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Role         string    `db:"role" json:"role"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// HasCredentials reports whether the account has a password set.
func (u *User) HasCredentials() bool {
	return u.PasswordHash != ""
}
