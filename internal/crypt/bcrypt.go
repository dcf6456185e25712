// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package crypt

import (
	"errors"
	"log/slog"

	"golang.org/x/crypto/bcrypt"
)

// NameBCrypt is the algorithm tag for bcrypt hashes.
const NameBCrypt = "bcrypt"

// BCrypt hashes passwords with bcrypt. The work factor comes from
// configuration and is fixed per deployment. The salt is embedded in the
// modular crypt string produced by the primitive.
type BCrypt struct {
	cost int
}

// NewBCrypt creates the bcrypt method with the given log2 rounds. Costs
// outside the primitive's supported range fall back to the library default.
func NewBCrypt(cost int) *BCrypt {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &BCrypt{cost: cost}
}

// Name returns the algorithm tag.
func (m *BCrypt) Name() string { return NameBCrypt }

// ComputeHash produces a bcrypt hash; the primitive generates the salt.
func (m *BCrypt) ComputeHash(password, name string) (HashedPassword, error) {
	if password == "" {
		return HashedPassword{}, ErrEmptyPassword
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), m.cost)
	if err != nil {
		return HashedPassword{}, err
	}
	return NewHashedPassword(string(hashed)), nil
}

// ComputeHashWithSalt is unsupported: the Go bcrypt primitive does not
// accept externally supplied salts.
func (m *BCrypt) ComputeHashWithSalt(password, salt, name string) (string, error) {
	return "", ErrSaltUnsupported
}

// ComparePassword verifies the password. A stored hash the primitive cannot
// parse is a non-match.
func (m *BCrypt) ComparePassword(password string, hash HashedPassword, name string) bool {
	if storedHashTooShort(NameBCrypt, name, hash.Hash) {
		return false
	}
	err := bcrypt.CompareHashAndPassword([]byte(hash.Hash), []byte(password))
	if err == nil {
		return true
	}
	if !errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		slog.Warn("bcrypt comparison failed on stored hash", "name", name, "error", err)
	}
	return false
}

// GenerateSalt is handled inside the primitive; the returned salt is a fresh
// random text usable by callers that persist salts separately.
func (m *BCrypt) GenerateSalt() (string, error) {
	return generateTextSalt()
}

// HasSeparateSalt reports false: bcrypt embeds the salt in the hash string.
func (m *BCrypt) HasSeparateSalt() bool { return false }

// SaltType reports the embedded textual salt.
func (m *BCrypt) SaltType() SaltType { return SaltText }

// Usage reports the migration recommendation.
func (m *BCrypt) Usage() Usage { return UsageRecommended }

var _ Method = (*BCrypt)(nil)
