// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package auth

import (
	"context"
	"time"

	"github.com/gatehouse/gatehouse/internal/crypt"
)

// CredentialStore is the durable read/write contract the engine and the
// join pipeline consume. Implementations report a missing record with
// ErrNotFound and a create conflict with ErrDuplicate; any other error is a
// store failure and aborts the surrounding operation.
//
// The engine requires only that a single write or delete be atomic; it
// never asks for multi-record transactions.
type CredentialStore interface {
	// FindRecord retrieves the record for an identity.
	FindRecord(ctx context.Context, identity string) (*CredentialRecord, error)

	// CreateRecord stores a new record.
	CreateRecord(ctx context.Context, record *CredentialRecord) error

	// UpdateHash replaces the stored hash (and algorithm tag) for an identity.
	UpdateHash(ctx context.Context, identity string, password crypt.HashedPassword, algorithm string) error

	// UpdateRealName replaces the stored display form for an identity.
	UpdateRealName(ctx context.Context, identity, realName string) error

	// UpdateEmail replaces the stored email for an identity.
	UpdateEmail(ctx context.Context, identity, email string) error

	// UpdateLastLogin records last-login metadata for an identity.
	UpdateLastLogin(ctx context.Context, identity string, at time.Time, ip string) error

	// DeleteRecord removes the record for an identity.
	DeleteRecord(ctx context.Context, identity string) error
}
