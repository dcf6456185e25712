// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package crypt

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

// NamePBKDF2 is the algorithm tag for pbkdf2 hashes.
const NamePBKDF2 = "pbkdf2"

const (
	pbkdf2DefaultIterations = 10000
	pbkdf2KeyLen            = 64
)

// PBKDF2 verifies and produces legacy hashes in the format
// pbkdf2_sha256$<iterations>$<salt>$<hex digest>. The salt is stored in the
// separate salt field of the credential record.
type PBKDF2 struct {
	iterations int
}

// NewPBKDF2 creates the pbkdf2 method with the configured iteration count.
func NewPBKDF2(iterations int) *PBKDF2 {
	if iterations <= 0 {
		iterations = pbkdf2DefaultIterations
	}
	return &PBKDF2{iterations: iterations}
}

// Name returns the algorithm tag.
func (m *PBKDF2) Name() string { return NamePBKDF2 }

// ComputeHash hashes the password with a fresh salt.
func (m *PBKDF2) ComputeHash(password, name string) (HashedPassword, error) {
	salt, err := generateTextSalt()
	if err != nil {
		return HashedPassword{}, err
	}
	hash, err := m.ComputeHashWithSalt(password, salt, name)
	if err != nil {
		return HashedPassword{}, err
	}
	return HashedPassword{Hash: hash, Salt: salt}, nil
}

// ComputeHashWithSalt hashes the password with the supplied salt.
func (m *PBKDF2) ComputeHashWithSalt(password, salt, name string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	key := pbkdf2.Key([]byte(password), []byte(salt), m.iterations, pbkdf2KeyLen, sha256.New)
	return fmt.Sprintf("pbkdf2_sha256$%d$%s$%s", m.iterations, salt, hex.EncodeToString(key)), nil
}

// ComparePassword verifies against the stored format. The iteration count
// and salt embedded in the stored hash take precedence over configuration so
// hashes written under older settings still verify.
func (m *PBKDF2) ComparePassword(password string, hash HashedPassword, name string) bool {
	if storedHashTooShort(NamePBKDF2, name, hash.Hash) {
		return false
	}

	parts := strings.Split(hash.Hash, "$")
	if len(parts) != 4 || parts[0] != "pbkdf2_sha256" {
		slog.Warn("malformed pbkdf2 hash", "name", name)
		return false
	}
	iterations, err := strconv.Atoi(parts[1])
	if err != nil || iterations <= 0 {
		slog.Warn("malformed pbkdf2 iteration count", "name", name)
		return false
	}
	expected, err := hex.DecodeString(parts[3])
	if err != nil || len(expected) == 0 {
		slog.Warn("malformed pbkdf2 digest", "name", name)
		return false
	}

	computed := pbkdf2.Key([]byte(password), []byte(parts[2]), iterations, len(expected), sha256.New)
	return subtle.ConstantTimeCompare(computed, expected) == 1
}

// GenerateSalt produces a textual salt for the separate salt field.
func (m *PBKDF2) GenerateSalt() (string, error) {
	return generateTextSalt()
}

// HasSeparateSalt reports true: the salt is persisted in its own column.
func (m *PBKDF2) HasSeparateSalt() bool { return true }

// SaltType reports the separate textual salt.
func (m *PBKDF2) SaltType() SaltType { return SaltText }

// Usage reports the migration recommendation.
func (m *PBKDF2) Usage() Usage { return UsageDeprecated }

var _ Method = (*PBKDF2)(nil)
