// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

// Package postgres implements the credential store on PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"

	"github.com/gatehouse/gatehouse/internal/auth"
	"github.com/gatehouse/gatehouse/internal/crypt"
)

// poolIface is the subset of pgxpool.Pool the store needs. pgxmock
// implements it for unit tests.
type poolIface interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// CredentialStore implements auth.CredentialStore using PostgreSQL.
type CredentialStore struct {
	pool poolIface
}

// NewCredentialStore creates a store over an established pool.
func NewCredentialStore(pool poolIface) *CredentialStore {
	return &CredentialStore{pool: pool}
}

// FindRecord retrieves the credential record for a lowercased identity.
func (s *CredentialStore) FindRecord(ctx context.Context, identity string) (*auth.CredentialRecord, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT identity, real_name, password_hash, password_salt,
		       algorithm, email, registered_at, last_login_at, last_login_ip
		FROM credentials
		WHERE identity = $1
	`, auth.NormalizeIdentity(identity))

	record, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("CREDENTIAL_NOT_FOUND").
			With("identity", identity).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("CREDENTIAL_FIND_FAILED").
			With("operation", "find credential record").
			With("identity", identity).
			Wrap(err)
	}
	return record, nil
}

// CreateRecord stores a new credential record.
func (s *CredentialStore) CreateRecord(ctx context.Context, record *auth.CredentialRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO credentials (
			identity, real_name, password_hash, password_salt,
			algorithm, email, registered_at, last_login_at, last_login_ip
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		record.Identity,
		record.RealName,
		record.Password.Hash,
		record.Password.Salt,
		record.Algorithm,
		record.Email,
		record.RegisteredAt,
		record.LastLoginAt,
		record.LastLoginIP,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return oops.Code("CREDENTIAL_DUPLICATE").
				With("identity", record.Identity).
				Wrap(auth.ErrDuplicate)
		}
		return oops.Code("CREDENTIAL_CREATE_FAILED").
			With("operation", "insert credential record").
			With("identity", record.Identity).
			Wrap(err)
	}
	return nil
}

// UpdateHash replaces the stored hash and algorithm tag.
func (s *CredentialStore) UpdateHash(ctx context.Context, identity string, password crypt.HashedPassword, algorithm string) error {
	result, err := s.pool.Exec(ctx, `
		UPDATE credentials
		SET password_hash = $2, password_salt = $3, algorithm = $4
		WHERE identity = $1
	`, auth.NormalizeIdentity(identity), password.Hash, password.Salt, algorithm)
	return checkUpdate(result, err, "update credential hash", identity)
}

// UpdateRealName replaces the stored display form.
func (s *CredentialStore) UpdateRealName(ctx context.Context, identity, realName string) error {
	result, err := s.pool.Exec(ctx, `
		UPDATE credentials SET real_name = $2 WHERE identity = $1
	`, auth.NormalizeIdentity(identity), realName)
	return checkUpdate(result, err, "update real name", identity)
}

// UpdateEmail replaces the stored email address.
func (s *CredentialStore) UpdateEmail(ctx context.Context, identity, email string) error {
	result, err := s.pool.Exec(ctx, `
		UPDATE credentials SET email = $2 WHERE identity = $1
	`, auth.NormalizeIdentity(identity), email)
	return checkUpdate(result, err, "update email", identity)
}

// UpdateLastLogin records last-login metadata.
func (s *CredentialStore) UpdateLastLogin(ctx context.Context, identity string, at time.Time, ip string) error {
	result, err := s.pool.Exec(ctx, `
		UPDATE credentials SET last_login_at = $2, last_login_ip = $3 WHERE identity = $1
	`, auth.NormalizeIdentity(identity), at, ip)
	return checkUpdate(result, err, "update last login", identity)
}

// DeleteRecord removes a credential record.
func (s *CredentialStore) DeleteRecord(ctx context.Context, identity string) error {
	result, err := s.pool.Exec(ctx, `
		DELETE FROM credentials WHERE identity = $1
	`, auth.NormalizeIdentity(identity))
	if err != nil {
		return oops.Code("CREDENTIAL_DELETE_FAILED").
			With("operation", "delete credential record").
			With("identity", identity).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("CREDENTIAL_NOT_FOUND").
			With("identity", identity).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// checkUpdate maps an UPDATE result to the store contract: zero affected
// rows means the record does not exist.
func checkUpdate(result pgconn.CommandTag, err error, operation, identity string) error {
	if err != nil {
		return oops.Code("CREDENTIAL_UPDATE_FAILED").
			With("operation", operation).
			With("identity", identity).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("CREDENTIAL_NOT_FOUND").
			With("identity", identity).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// scanRecord scans a single row into a CredentialRecord.
// Callers are responsible for handling pgx.ErrNoRows.
func scanRecord(row pgx.Row) (*auth.CredentialRecord, error) {
	var (
		record      auth.CredentialRecord
		lastLoginAt *time.Time
	)

	err := row.Scan(
		&record.Identity,
		&record.RealName,
		&record.Password.Hash,
		&record.Password.Salt,
		&record.Algorithm,
		&record.Email,
		&record.RegisteredAt,
		&lastLoginAt,
		&record.LastLoginIP,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // Callers wrap with context-specific info
		}
		return nil, oops.Code("CREDENTIAL_SCAN_FAILED").
			With("operation", "scan credential record").
			Wrap(err)
	}

	record.LastLoginAt = lastLoginAt
	return &record, nil
}

// Compile-time interface check.
var _ auth.CredentialStore = (*CredentialStore)(nil)
