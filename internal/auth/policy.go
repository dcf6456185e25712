// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package auth

import (
	"regexp"
	"strings"

	"github.com/samber/oops"
)

// Password policy defaults.
const (
	DefaultMinPasswordLength = 5
	DefaultMaxPasswordLength = 64
)

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// PolicyValidator is the delegated password/email policy the engine invokes
// during register and credential-change operations. A non-nil error maps to
// OutcomePolicyRejected.
type PolicyValidator interface {
	ValidatePassword(password, name string) error
	ValidateEmail(email string) error
}

// PolicySettings configures the default validator.
type PolicySettings struct {
	MinPasswordLength int
	MaxPasswordLength int
	// UnsafePasswords are disallowed outright (e.g. "password", "123456").
	UnsafePasswords []string
}

// DefaultPolicy is a length/denylist password policy plus a basic email
// shape check.
type DefaultPolicy struct {
	minLen int
	maxLen int
	unsafe map[string]struct{}
}

// NewDefaultPolicy creates the default validator.
func NewDefaultPolicy(settings PolicySettings) *DefaultPolicy {
	minLen := settings.MinPasswordLength
	if minLen <= 0 {
		minLen = DefaultMinPasswordLength
	}
	maxLen := settings.MaxPasswordLength
	if maxLen <= 0 {
		maxLen = DefaultMaxPasswordLength
	}
	unsafe := make(map[string]struct{}, len(settings.UnsafePasswords))
	for _, p := range settings.UnsafePasswords {
		unsafe[strings.ToLower(p)] = struct{}{}
	}
	return &DefaultPolicy{minLen: minLen, maxLen: maxLen, unsafe: unsafe}
}

// ValidatePassword applies length, equality-with-name and denylist rules.
func (p *DefaultPolicy) ValidatePassword(password, name string) error {
	if len(password) < p.minLen {
		return oops.Code("POLICY_PASSWORD_LENGTH").
			With("min", p.minLen).
			Errorf("password must be at least %d characters", p.minLen)
	}
	if len(password) > p.maxLen {
		return oops.Code("POLICY_PASSWORD_LENGTH").
			With("max", p.maxLen).
			Errorf("password must be at most %d characters", p.maxLen)
	}
	if strings.EqualFold(password, name) {
		return oops.Code("POLICY_PASSWORD_IS_NAME").Errorf("password cannot equal the username")
	}
	if _, bad := p.unsafe[strings.ToLower(password)]; bad {
		return oops.Code("POLICY_PASSWORD_UNSAFE").Errorf("password is on the unsafe list")
	}
	return nil
}

// ValidateEmail applies a minimal shape check. Empty is allowed: email is
// optional.
func (p *DefaultPolicy) ValidateEmail(email string) error {
	if email == "" {
		return nil
	}
	if !emailPattern.MatchString(email) {
		return oops.Code("POLICY_EMAIL_INVALID").Errorf("email address is malformed")
	}
	return nil
}

var _ PolicyValidator = (*DefaultPolicy)(nil)
