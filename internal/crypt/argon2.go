// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package crypt

import (
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/crypto/argon2"
)

// OWASP-recommended argon2id parameters.
const (
	argon2Time    = 1         // iterations
	argon2Memory  = 64 * 1024 // 64 MB
	argon2Threads = 4         // parallelism
	argon2SaltLen = 16        // salt length in bytes
	argon2KeyLen  = 32        // output length in bytes
)

// NameArgon2id is the algorithm tag for argon2id hashes.
const NameArgon2id = "argon2id"

// Argon2id hashes passwords with argon2id in PHC string format:
// $argon2id$v=19$m=65536,t=1,p=4$<salt>$<hash>. The salt is embedded in the
// hash string, so HasSeparateSalt is false.
type Argon2id struct{}

// NewArgon2id creates the argon2id method.
func NewArgon2id() *Argon2id {
	return &Argon2id{}
}

// Name returns the algorithm tag.
func (m *Argon2id) Name() string { return NameArgon2id }

// ComputeHash produces a PHC-encoded argon2id hash with a fresh salt.
func (m *Argon2id) ComputeHash(password, name string) (HashedPassword, error) {
	if password == "" {
		return HashedPassword{}, ErrEmptyPassword
	}
	salt, err := generateTextSalt()
	if err != nil {
		return HashedPassword{}, err
	}
	return NewHashedPassword(m.encode(password, []byte(salt))), nil
}

// ComputeHashWithSalt hashes with the supplied salt taken as raw bytes.
func (m *Argon2id) ComputeHashWithSalt(password, salt, name string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	return m.encode(password, []byte(salt)), nil
}

func (m *Argon2id) encode(password string, salt []byte) string {
	hash := argon2.IDKey([]byte(password), salt, argon2Time, argon2Memory, argon2Threads, argon2KeyLen)
	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		argon2Memory,
		argon2Time,
		argon2Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	)
}

// ComparePassword verifies the password against a PHC argon2id hash.
// Malformed stored data is a non-match.
func (m *Argon2id) ComparePassword(password string, hash HashedPassword, name string) bool {
	if storedHashTooShort(NameArgon2id, name, hash.Hash) {
		return false
	}

	parts := strings.Split(hash.Hash, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		slog.Warn("malformed argon2id hash", "name", name)
		return false
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		slog.Warn("malformed argon2id version", "name", name, "error", err)
		return false
	}

	var memory, time, threads uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &time, &threads); err != nil {
		slog.Warn("malformed argon2id parameters", "name", name, "error", err)
		return false
	}
	// threads must fit in uint8 for the primitive
	if threads == 0 || threads > 255 {
		slog.Warn("argon2id threads out of range", "name", name, "threads", threads)
		return false
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		slog.Warn("malformed argon2id salt", "name", name, "error", err)
		return false
	}
	expected, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		slog.Warn("malformed argon2id digest", "name", name, "error", err)
		return false
	}
	if len(expected) == 0 || len(expected) > 1<<30 {
		slog.Warn("argon2id digest length out of range", "name", name, "length", len(expected))
		return false
	}

	computed := argon2.IDKey([]byte(password), salt, time, memory, uint8(threads), uint32(len(expected)))
	return subtle.ConstantTimeCompare(computed, expected) == 1
}

// GenerateSalt produces a raw textual salt. Callers normally never need it
// because ComputeHash salts internally.
func (m *Argon2id) GenerateSalt() (string, error) {
	return generateTextSalt()
}

// HasSeparateSalt reports false: the salt lives inside the PHC string.
func (m *Argon2id) HasSeparateSalt() bool { return false }

// SaltType reports the embedded textual salt.
func (m *Argon2id) SaltType() SaltType { return SaltText }

// Usage reports the migration recommendation.
func (m *Argon2id) Usage() Usage { return UsageRecommended }

var _ Method = (*Argon2id)(nil)
