// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatehouse/gatehouse/internal/auth"
	"github.com/gatehouse/gatehouse/internal/crypt"
)

func newMockStore(t *testing.T) (pgxmock.PgxPoolIface, *CredentialStore) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err, "failed to create mock")
	t.Cleanup(mock.Close)
	return mock, NewCredentialStore(mock)
}

func credentialColumns() []string {
	return []string{
		"identity", "real_name", "password_hash", "password_salt",
		"algorithm", "email", "registered_at", "last_login_at", "last_login_ip",
	}
}

func TestCredentialStoreFindRecord(t *testing.T) {
	ctx := context.Background()

	t.Run("returns the stored record", func(t *testing.T) {
		mock, store := newMockStore(t)
		registered := time.Now().UTC()
		lastLogin := registered.Add(time.Hour)

		mock.ExpectQuery(`SELECT identity, real_name, password_hash, password_salt`).
			WithArgs("bob").
			WillReturnRows(pgxmock.NewRows(credentialColumns()).
				AddRow("bob", "Bob", "$2a$10$hash", "", "bcrypt", "bob@example.com", registered, &lastLogin, "203.0.113.9"))

		record, err := store.FindRecord(ctx, "Bob")
		require.NoError(t, err)
		assert.Equal(t, "bob", record.Identity)
		assert.Equal(t, "Bob", record.RealName)
		assert.Equal(t, "$2a$10$hash", record.Password.Hash)
		assert.Equal(t, "bcrypt", record.Algorithm)
		require.NotNil(t, record.LastLoginAt)
		assert.Equal(t, lastLogin, *record.LastLoginAt)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("maps no rows to ErrNotFound", func(t *testing.T) {
		mock, store := newMockStore(t)
		mock.ExpectQuery(`SELECT identity, real_name, password_hash, password_salt`).
			WithArgs("ghost").
			WillReturnError(pgx.ErrNoRows)

		_, err := store.FindRecord(ctx, "ghost")
		assert.ErrorIs(t, err, auth.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("propagates database errors", func(t *testing.T) {
		mock, store := newMockStore(t)
		mock.ExpectQuery(`SELECT identity, real_name, password_hash, password_salt`).
			WithArgs("bob").
			WillReturnError(errors.New("connection refused"))

		_, err := store.FindRecord(ctx, "bob")
		require.Error(t, err)
		assert.NotErrorIs(t, err, auth.ErrNotFound)
		assert.Contains(t, err.Error(), "connection refused")
	})
}

func TestCredentialStoreCreateRecord(t *testing.T) {
	ctx := context.Background()

	record, err := auth.NewCredentialRecord("Bob", crypt.NewHashedPassword("$2a$10$hash"), "bcrypt", "bob@example.com")
	require.NoError(t, err)

	t.Run("inserts a record", func(t *testing.T) {
		mock, store := newMockStore(t)
		mock.ExpectExec(`INSERT INTO credentials`).
			WithArgs("bob", "Bob", "$2a$10$hash", "", "bcrypt", "bob@example.com",
				record.RegisteredAt, record.LastLoginAt, "").
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		require.NoError(t, store.CreateRecord(ctx, record))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("maps unique violation to ErrDuplicate", func(t *testing.T) {
		mock, store := newMockStore(t)
		mock.ExpectExec(`INSERT INTO credentials`).
			WithArgs("bob", "Bob", "$2a$10$hash", "", "bcrypt", "bob@example.com",
				record.RegisteredAt, record.LastLoginAt, "").
			WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation})

		err := store.CreateRecord(ctx, record)
		assert.ErrorIs(t, err, auth.ErrDuplicate)
	})
}

func TestCredentialStoreUpdates(t *testing.T) {
	ctx := context.Background()

	t.Run("update hash", func(t *testing.T) {
		mock, store := newMockStore(t)
		mock.ExpectExec(`UPDATE credentials`).
			WithArgs("bob", "newhash", "newsalt", "pbkdf2").
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		err := store.UpdateHash(ctx, "Bob", crypt.HashedPassword{Hash: "newhash", Salt: "newsalt"}, "pbkdf2")
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("update of a missing record is ErrNotFound", func(t *testing.T) {
		mock, store := newMockStore(t)
		mock.ExpectExec(`UPDATE credentials`).
			WithArgs("ghost", "newhash", "", "pbkdf2").
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err := store.UpdateHash(ctx, "ghost", crypt.NewHashedPassword("newhash"), "pbkdf2")
		assert.ErrorIs(t, err, auth.ErrNotFound)
	})

	t.Run("update real name", func(t *testing.T) {
		mock, store := newMockStore(t)
		mock.ExpectExec(`UPDATE credentials SET real_name`).
			WithArgs("bob", "BoB").
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		require.NoError(t, store.UpdateRealName(ctx, "bob", "BoB"))
	})

	t.Run("update email", func(t *testing.T) {
		mock, store := newMockStore(t)
		mock.ExpectExec(`UPDATE credentials SET email`).
			WithArgs("bob", "new@example.com").
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		require.NoError(t, store.UpdateEmail(ctx, "bob", "new@example.com"))
	})

	t.Run("update last login", func(t *testing.T) {
		mock, store := newMockStore(t)
		at := time.Now()
		mock.ExpectExec(`UPDATE credentials SET last_login_at`).
			WithArgs("bob", at, "203.0.113.9").
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		require.NoError(t, store.UpdateLastLogin(ctx, "bob", at, "203.0.113.9"))
	})
}

func TestCredentialStoreDeleteRecord(t *testing.T) {
	ctx := context.Background()

	t.Run("deletes the record", func(t *testing.T) {
		mock, store := newMockStore(t)
		mock.ExpectExec(`DELETE FROM credentials`).
			WithArgs("bob").
			WillReturnResult(pgxmock.NewResult("DELETE", 1))

		require.NoError(t, store.DeleteRecord(ctx, "Bob"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing record is ErrNotFound", func(t *testing.T) {
		mock, store := newMockStore(t)
		mock.ExpectExec(`DELETE FROM credentials`).
			WithArgs("ghost").
			WillReturnResult(pgxmock.NewResult("DELETE", 0))

		assert.ErrorIs(t, store.DeleteRecord(ctx, "ghost"), auth.ErrNotFound)
	})
}
