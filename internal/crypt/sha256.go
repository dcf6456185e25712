// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package crypt

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
)

// NameSHA256Salted is the algorithm tag for legacy salted sha256 hashes.
const NameSHA256Salted = "sha256salted"

// SHA256Salted verifies and produces legacy hashes in the format
// $SHA$<salt>$<hex(sha256(hex(sha256(password)) + salt))>. The salt is also
// stored in the separate salt field of the credential record.
type SHA256Salted struct{}

// NewSHA256Salted creates the legacy salted sha256 method.
func NewSHA256Salted() *SHA256Salted {
	return &SHA256Salted{}
}

// Name returns the algorithm tag.
func (m *SHA256Salted) Name() string { return NameSHA256Salted }

// ComputeHash hashes the password with a fresh salt.
func (m *SHA256Salted) ComputeHash(password, name string) (HashedPassword, error) {
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
func (m *SHA256Salted) ComputeHashWithSalt(password, salt, name string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	return fmt.Sprintf("$SHA$%s$%s", salt, saltedDigest(password, salt)), nil
}

// ComparePassword verifies against the stored $SHA$ format. The salt inside
// the stored hash is authoritative.
func (m *SHA256Salted) ComparePassword(password string, hash HashedPassword, name string) bool {
	if storedHashTooShort(NameSHA256Salted, name, hash.Hash) {
		return false
	}

	parts := strings.Split(hash.Hash, "$")
	if len(parts) != 4 || parts[1] != "SHA" {
		slog.Warn("malformed salted sha256 hash", "name", name)
		return false
	}
	computed := saltedDigest(password, parts[2])
	return subtle.ConstantTimeCompare([]byte(computed), []byte(parts[3])) == 1
}

func saltedDigest(password, salt string) string {
	inner := sha256.Sum256([]byte(password))
	outer := sha256.Sum256([]byte(hex.EncodeToString(inner[:]) + salt))
	return hex.EncodeToString(outer[:])
}

// GenerateSalt produces a textual salt for the separate salt field.
func (m *SHA256Salted) GenerateSalt() (string, error) {
	return generateTextSalt()
}

// HasSeparateSalt reports true.
func (m *SHA256Salted) HasSeparateSalt() bool { return true }

// SaltType reports the separate textual salt.
func (m *SHA256Salted) SaltType() SaltType { return SaltText }

// Usage reports the migration recommendation.
func (m *SHA256Salted) Usage() Usage { return UsageDeprecated }

var _ Method = (*SHA256Salted)(nil)
