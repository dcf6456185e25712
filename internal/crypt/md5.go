// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package crypt

import (
	"crypto/md5" //nolint:gosec // legacy verification only, never written for new accounts
	"crypto/subtle"
	"encoding/hex"
)

// NameMD5 is the algorithm tag for bare md5 hashes.
const NameMD5 = "md5"

// MD5 verifies unsalted hex md5 hashes imported from ancient deployments.
// It exists solely so those accounts can log in once and be migrated; Usage
// reports it as insecure.
type MD5 struct{}

// NewMD5 creates the legacy md5 method.
func NewMD5() *MD5 {
	return &MD5{}
}

// Name returns the algorithm tag.
func (m *MD5) Name() string { return NameMD5 }

// ComputeHash produces a bare hex md5 digest.
func (m *MD5) ComputeHash(password, name string) (HashedPassword, error) {
	if password == "" {
		return HashedPassword{}, ErrEmptyPassword
	}
	return NewHashedPassword(digestMD5(password)), nil
}

// ComputeHashWithSalt ignores the salt: the method has none.
func (m *MD5) ComputeHashWithSalt(password, salt, name string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	return digestMD5(password), nil
}

// ComparePassword verifies the password against a hex md5 digest.
func (m *MD5) ComparePassword(password string, hash HashedPassword, name string) bool {
	if storedHashTooShort(NameMD5, name, hash.Hash) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(digestMD5(password)), []byte(hash.Hash)) == 1
}

func digestMD5(password string) string {
	sum := md5.Sum([]byte(password)) //nolint:gosec // legacy verification only
	return hex.EncodeToString(sum[:])
}

// GenerateSalt returns an empty salt: the method uses none.
func (m *MD5) GenerateSalt() (string, error) { return "", nil }

// HasSeparateSalt reports false.
func (m *MD5) HasSeparateSalt() bool { return false }

// SaltType reports no salt.
func (m *MD5) SaltType() SaltType { return SaltNone }

// Usage reports the migration recommendation.
func (m *MD5) Usage() Usage { return UsageInsecure }

var _ Method = (*MD5)(nil)
