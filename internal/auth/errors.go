// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package auth

import "errors"

// ErrNotFound is returned by a CredentialStore when no record exists for an
// identity.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned by a CredentialStore when creating a record for
// an identity that already has one.
var ErrDuplicate = errors.New("duplicate record")
