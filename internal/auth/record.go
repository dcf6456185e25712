// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package auth

import (
	"strings"
	"time"

	"github.com/samber/oops"

	"github.com/gatehouse/gatehouse/internal/crypt"
)

// PlaceholderRealName is the value legacy imports stored when the display
// form of a name was unknown. The name-casing check self-heals it.
const PlaceholderRealName = "Player"

// NormalizeIdentity lowercases a username into the canonical key used by
// the store, the cache and the pipeline.
func NormalizeIdentity(name string) string {
	return strings.ToLower(name)
}

// CredentialRecord is the durable record of a registered identity.
// Exactly one record exists per identity, or none.
type CredentialRecord struct {
	// Identity is the canonical lowercase key.
	Identity string

	// RealName is the display form as registered; differs from Identity
	// only in case.
	RealName string

	// Password is the algorithm-tagged hash with optional separate salt.
	Password crypt.HashedPassword

	// Algorithm is the tag of the method that produced Password.
	Algorithm string

	Email        string
	RegisteredAt time.Time
	LastLoginAt  *time.Time
	LastLoginIP  string
}

// NewCredentialRecord builds a validated record for a newly registered name.
func NewCredentialRecord(realName string, password crypt.HashedPassword, algorithm, email string) (*CredentialRecord, error) {
	if realName == "" {
		return nil, oops.Code("AUTH_INVALID_NAME").Errorf("name cannot be empty")
	}
	if password.Hash == "" {
		return nil, oops.Code("AUTH_INVALID_HASH").Errorf("password hash cannot be empty")
	}
	if algorithm == "" {
		return nil, oops.Code("AUTH_INVALID_HASH").Errorf("algorithm tag cannot be empty")
	}
	return &CredentialRecord{
		Identity:     NormalizeIdentity(realName),
		RealName:     realName,
		Password:     password,
		Algorithm:    algorithm,
		Email:        email,
		RegisteredAt: time.Now(),
	}, nil
}

// copyRecord returns a defensive copy so cache readers never alias engine
// state.
func copyRecord(r *CredentialRecord) *CredentialRecord {
	if r == nil {
		return nil
	}
	dup := *r
	if r.LastLoginAt != nil {
		at := *r.LastLoginAt
		dup.LastLoginAt = &at
	}
	return &dup
}
