// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

// Package auth implements the authentication subsystem: the session state
// engine, the join verification pipeline and their supporting caches.
//
// # State
//
// Live connections are tracked in a SessionCache of SessionState snapshots.
// A session becomes authenticated only through the Engine; identities
// waiting to log in or register sit in a HoldingCache with per-identity
// timers managed by a TaskManager.
//
// # Operations
//
// The Engine exposes Register, Login, Logout, Unregister, ChangePassword
// and the email operations, each serializing work per identity. ProcessJoin
// runs the JoinVerifier checks and, on admission, seeds the session and
// holding state. Side effects (group moves, teleports, messages, evictions)
// are published through a Notifier; the engine never disconnects anyone
// itself.
//
// Credential persistence is behind the CredentialStore interface; the
// production implementation lives in the postgres subpackage and the test
// fakes in authtest.
package auth
