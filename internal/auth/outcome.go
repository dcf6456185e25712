// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package auth

import "fmt"

// Outcome is the result of a state-changing engine operation. Denial
// outcomes (wrong password, not registered, ...) are part of normal
// operation and are never faults; only StoreFailure indicates an
// infrastructure problem.
type Outcome int

const (
	// OutcomeSuccess means the operation completed and any cache/store
	// writes were applied.
	OutcomeSuccess Outcome = iota
	// OutcomeWrongPassword means the credential did not verify. No state
	// changed.
	OutcomeWrongPassword
	// OutcomeNotRegistered means no credential record exists for the
	// identity.
	OutcomeNotRegistered
	// OutcomeAlreadyRegistered means a record already exists and
	// registration was refused.
	OutcomeAlreadyRegistered
	// OutcomeNotAuthenticated means the operation requires an
	// authenticated session the identity does not have.
	OutcomeNotAuthenticated
	// OutcomeStoreFailure means a store read or write failed; the prior
	// state is intact.
	OutcomeStoreFailure
	// OutcomePolicyRejected means a delegated password/email policy check
	// refused the input.
	OutcomePolicyRejected
)

// String returns the outcome label.
func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeWrongPassword:
		return "wrong_password"
	case OutcomeNotRegistered:
		return "not_registered"
	case OutcomeAlreadyRegistered:
		return "already_registered"
	case OutcomeNotAuthenticated:
		return "not_authenticated"
	case OutcomeStoreFailure:
		return "store_failure"
	case OutcomePolicyRejected:
		return "policy_rejected"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// DenyReason identifies which join-time check refused a connection.
type DenyReason int

const (
	// DenySuspectedAutomation: the anti-automation monitor is active and
	// the identity has no credential record.
	DenySuspectedAutomation DenyReason = iota
	// DenyInvalidNameLength: the name is outside the configured length range.
	DenyInvalidNameLength
	// DenyInvalidNameCharacters: the name does not match the configured
	// character pattern.
	DenyInvalidNameCharacters
	// DenyMustRegister: registration is mandatory and no record exists.
	DenyMustRegister
	// DenyNameCaseMismatch: the connecting form's casing differs from the
	// registered display form.
	DenyNameCaseMismatch
	// DenyCountryRestricted: the source country is not on the admitted list.
	DenyCountryRestricted
	// DenyAlreadyOnline: another active session exists for the identity.
	DenyAlreadyOnline
	// DenyServerFull: the server is at capacity and no eviction applied.
	DenyServerFull
)

// String returns the denial label.
func (r DenyReason) String() string {
	switch r {
	case DenySuspectedAutomation:
		return "suspected_automation"
	case DenyInvalidNameLength:
		return "invalid_name_length"
	case DenyInvalidNameCharacters:
		return "invalid_name_characters"
	case DenyMustRegister:
		return "must_register"
	case DenyNameCaseMismatch:
		return "name_case_mismatch"
	case DenyCountryRestricted:
		return "country_restricted"
	case DenyAlreadyOnline:
		return "already_online"
	case DenyServerFull:
		return "server_full"
	default:
		return fmt.Sprintf("deny(%d)", int(r))
	}
}

// VerificationOutcome is the admit/deny decision of the join pipeline.
// Exactly one denial reason surfaces; later checks are never evaluated.
type VerificationOutcome struct {
	Admitted bool
	Reason   DenyReason
	// Detail carries reason-specific context, e.g. expected and actual
	// name forms for a case mismatch.
	Detail string
}

// Admit is the admitted outcome.
func Admit() VerificationOutcome {
	return VerificationOutcome{Admitted: true}
}

// Deny builds a denial with the given reason.
func Deny(reason DenyReason) VerificationOutcome {
	return VerificationOutcome{Reason: reason}
}

// DenyDetail builds a denial with reason-specific detail.
func DenyDetail(reason DenyReason, format string, args ...any) VerificationOutcome {
	return VerificationOutcome{Reason: reason, Detail: fmt.Sprintf(format, args...)}
}
