// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package auth

import (
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// SessionState is the in-memory authentication snapshot for a connected
// identity. Its lifetime is the connection: created when login or
// registration succeeds (or when an unauthenticated join is admitted),
// destroyed on logout, unregister, disconnect or kick.
type SessionState struct {
	// Identity is the canonical lowercase key.
	Identity string

	// RealName is the display form the connection presented.
	RealName string

	// Record is the credential snapshot valid at authentication time. It
	// diverges from the store only through a credential-change operation
	// that updates both together. Nil while unauthenticated and no record
	// snapshot has been taken.
	Record *CredentialRecord

	// Authenticated reports whether the identity has proven its credential
	// this connection.
	Authenticated bool

	// SessionID identifies this connection's session.
	SessionID ulid.ULID

	// Seq is the connection-order sequence number, used by capacity
	// eviction to find the earliest connected identity.
	Seq uint64

	// Addr is the connection's source address.
	Addr string

	ConnectedAt time.Time
}

// copyState returns a defensive copy so readers never alias cache state.
func copyState(s *SessionState) *SessionState {
	if s == nil {
		return nil
	}
	dup := *s
	dup.Record = copyRecord(s.Record)
	return &dup
}

// SessionCache is the authoritative in-memory mapping of connected
// identities to their session state. All operations key by lowercased
// identity. Reads and writes for different identities only contend on the
// map lock; same-identity linearizability is enforced by the engine's
// per-identity locks, not here.
type SessionCache struct {
	mu      sync.RWMutex
	states  map[string]*SessionState
	nextSeq uint64
}

// NewSessionCache creates an empty session cache.
func NewSessionCache() *SessionCache {
	return &SessionCache{states: make(map[string]*SessionState)}
}

// Get returns a copy of the session state for an identity, or nil.
func (c *SessionCache) Get(identity string) *SessionState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return copyState(c.states[NormalizeIdentity(identity)])
}

// Put stores a copy of the state under the lowercased identity. A new
// identity is assigned the next connection sequence number; replacing an
// existing entry keeps its original one so join order survives
// authentication.
func (c *SessionCache) Put(identity string, state *SessionState) {
	key := NormalizeIdentity(identity)

	c.mu.Lock()
	defer c.mu.Unlock()

	dup := copyState(state)
	dup.Identity = key
	if prev, ok := c.states[key]; ok {
		dup.Seq = prev.Seq
	} else {
		c.nextSeq++
		dup.Seq = c.nextSeq
	}
	c.states[key] = dup
}

// Remove deletes the entry for an identity. Removing an absent identity is
// a no-op.
func (c *SessionCache) Remove(identity string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.states, NormalizeIdentity(identity))
}

// Contains reports whether an identity currently has a session entry.
func (c *SessionCache) Contains(identity string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.states[NormalizeIdentity(identity)]
	return ok
}

// IsAuthenticated reports whether an identity is present and authenticated.
func (c *SessionCache) IsAuthenticated(identity string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.states[NormalizeIdentity(identity)]
	return ok && s.Authenticated
}

// Len returns the number of connected identities.
func (c *SessionCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.states)
}

// Snapshot returns copies of all session states in connection order.
func (c *SessionCache) Snapshot() []*SessionState {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]*SessionState, 0, len(c.states))
	for _, s := range c.states {
		result = append(result, copyState(s))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Seq < result[j].Seq })
	return result
}
