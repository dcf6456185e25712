// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package auth

import (
	"sync"
	"time"
)

// HoldingReason says why an identity sits in the pre-authentication holding
// state.
type HoldingReason int

const (
	// HoldingPendingLogin: a record exists, the identity must log in.
	HoldingPendingLogin HoldingReason = iota
	// HoldingPendingRegistration: no record exists (or it was just
	// deleted), the identity must register.
	HoldingPendingRegistration
)

// HoldingEntry is the transient staging applied to a connection pending
// login or registration. The staging collaborator owns what the holding
// area looks like; the core only tracks who is in it and why.
type HoldingEntry struct {
	Identity string
	Reason   HoldingReason
	StagedAt time.Time
}

// HoldingCache tracks identities in the holding state.
type HoldingCache struct {
	mu      sync.RWMutex
	entries map[string]HoldingEntry
}

// NewHoldingCache creates an empty holding cache.
func NewHoldingCache() *HoldingCache {
	return &HoldingCache{entries: make(map[string]HoldingEntry)}
}

// Stage puts an identity into the holding state, replacing any prior entry.
func (h *HoldingCache) Stage(identity string, reason HoldingReason) {
	key := NormalizeIdentity(identity)

	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries[key] = HoldingEntry{Identity: key, Reason: reason, StagedAt: time.Now()}
}

// Release removes an identity from the holding state.
func (h *HoldingCache) Release(identity string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.entries, NormalizeIdentity(identity))
}

// Get returns the holding entry for an identity.
func (h *HoldingCache) Get(identity string) (HoldingEntry, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	e, ok := h.entries[NormalizeIdentity(identity)]
	return e, ok
}

// Len returns the number of held identities.
func (h *HoldingCache) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.entries)
}
