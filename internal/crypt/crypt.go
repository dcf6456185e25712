// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

// Package crypt provides the pluggable credential-hashing methods used to
// store and verify player passwords.
//
// Each algorithm implements the Method interface. Stored hashes carry an
// algorithm tag in the credential record, so a deployment can verify
// passwords hashed by legacy algorithms while writing new hashes with the
// configured one.
//
// ComparePassword implementations never return an error and never panic on
// malformed stored data: any parse or format failure is treated as a
// non-match and logged without the plaintext.
package crypt

import (
	"crypto/rand"
	"encoding/hex"
	"log/slog"

	"github.com/samber/oops"
)

// HashedPassword is an algorithm-tagged opaque hash plus an optional
// separately stored salt. Salt is empty for methods that embed the salt in
// the hash string (argon2id, bcrypt) or use none at all (md5).
type HashedPassword struct {
	Hash string
	Salt string
}

// NewHashedPassword creates a HashedPassword without a separate salt.
func NewHashedPassword(hash string) HashedPassword {
	return HashedPassword{Hash: hash}
}

// SaltType describes how a method obtains its salt.
type SaltType int

const (
	// SaltNone means the method uses no salt at all.
	SaltNone SaltType = iota
	// SaltNumeric means the method expects a numeric salt.
	SaltNumeric
	// SaltText means the method expects a textual salt.
	SaltText
)

// Usage is a migration-policy recommendation for a method. It is exposed to
// callers and never enforced here.
type Usage int

const (
	// UsageRecommended methods are safe defaults for new deployments.
	UsageRecommended Usage = iota
	// UsageDeprecated methods verify existing hashes but should not be used
	// for new ones.
	UsageDeprecated
	// UsageInsecure methods exist only to verify ancient imported data.
	UsageInsecure
)

// String returns the usage label.
func (u Usage) String() string {
	switch u {
	case UsageRecommended:
		return "recommended"
	case UsageDeprecated:
		return "deprecated"
	case UsageInsecure:
		return "insecure"
	default:
		return "unknown"
	}
}

// Method is one credential-hashing algorithm.
type Method interface {
	// Name returns the algorithm tag stored alongside hashes.
	Name() string

	// ComputeHash hashes the password with a freshly generated salt.
	// name is the account identity, passed for methods that mix it in.
	ComputeHash(password, name string) (HashedPassword, error)

	// ComputeHashWithSalt hashes the password with an externally supplied
	// salt. Methods whose primitive cannot accept an external salt return
	// ErrSaltUnsupported.
	ComputeHashWithSalt(password, salt, name string) (string, error)

	// ComparePassword reports whether password matches the stored hash.
	// Malformed stored data is a non-match, never an error.
	ComparePassword(password string, hash HashedPassword, name string) bool

	// GenerateSalt produces a new salt in the method's expected format.
	GenerateSalt() (string, error)

	// HasSeparateSalt reports whether the salt is stored in its own field
	// rather than embedded in the hash string.
	HasSeparateSalt() bool

	// SaltType describes the method's salt handling.
	SaltType() SaltType

	// Usage is the migration-policy recommendation for this method.
	Usage() Usage
}

// ErrSaltUnsupported is returned by ComputeHashWithSalt for methods whose
// underlying primitive generates its own salt.
var ErrSaltUnsupported = oops.Code("CRYPT_SALT_UNSUPPORTED").Errorf("method does not accept an external salt")

// ErrEmptyPassword is returned when attempting to hash an empty password.
var ErrEmptyPassword = oops.Code("CRYPT_EMPTY_PASSWORD").Errorf("password cannot be empty")

// minStoredHashLength is the sanity threshold applied before handing a
// stored hash to any primitive. Anything shorter is a non-match.
const minStoredHashLength = 4

// saltBytes is the length of generated textual salts in bytes (hex doubles it).
const saltBytes = 8

// Settings carries configuration-supplied cost parameters. Costs are fixed
// per deployment, not per password.
type Settings struct {
	// BCryptCost is the bcrypt work factor (log2 rounds).
	BCryptCost int

	// PBKDF2Iterations is the iteration count for pbkdf2 hashes.
	PBKDF2Iterations int
}

// ForName returns the method registered under the given algorithm tag. An
// unknown tag is a configuration fault: the recommended default (argon2id)
// is returned and a warning logged, so a misconfigured deployment still
// hashes safely instead of failing every operation.
func ForName(tag string, settings Settings) Method {
	switch tag {
	case "", NameArgon2id:
		return NewArgon2id()
	case NameBCrypt:
		return NewBCrypt(settings.BCryptCost)
	case NamePBKDF2:
		return NewPBKDF2(settings.PBKDF2Iterations)
	case NameSHA256Salted:
		return NewSHA256Salted()
	case NameMD5:
		return NewMD5()
	default:
		slog.Warn("unknown hash algorithm, falling back to argon2id", "algorithm", tag)
		return NewArgon2id()
	}
}

// All returns every supported method, constructed with the given settings.
// Ordered from recommended to insecure.
func All(settings Settings) []Method {
	return []Method{
		NewArgon2id(),
		NewBCrypt(settings.BCryptCost),
		NewPBKDF2(settings.PBKDF2Iterations),
		NewSHA256Salted(),
		NewMD5(),
	}
}

// generateTextSalt produces a random hex salt shared by the salted methods.
func generateTextSalt() (string, error) {
	buf := make([]byte, saltBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", oops.Code("CRYPT_SALT_FAILED").Wrap(err)
	}
	return hex.EncodeToString(buf), nil
}

// storedHashTooShort applies the minimum-length sanity check and logs the
// rejection. The plaintext never reaches the log.
func storedHashTooShort(method, name, hash string) bool {
	if len(hash) >= minStoredHashLength {
		return false
	}
	slog.Warn("stored hash below minimum length, treating as non-match",
		"method", method,
		"name", name,
		"hash_length", len(hash),
	)
	return true
}
