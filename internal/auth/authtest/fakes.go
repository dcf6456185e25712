// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

// Package authtest provides test helpers for the authentication core.
package authtest

import (
	"context"
	"sync"
	"time"

	"github.com/gatehouse/gatehouse/internal/auth"
	"github.com/gatehouse/gatehouse/internal/crypt"
)

// MemoryStore is a CredentialStore backed by a map, with per-method failure
// injection for store-failure paths.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]*auth.CredentialRecord

	// FailFind etc., when set, are returned by the corresponding method
	// before touching the map.
	FailFind   error
	FailCreate error
	FailUpdate error
	FailDelete error
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*auth.CredentialRecord)}
}

// Seed inserts a record directly, bypassing failure injection.
func (s *MemoryStore) Seed(record *auth.CredentialRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *record
	s.records[record.Identity] = &c
}

// FindRecord implements CredentialStore.
func (s *MemoryStore) FindRecord(_ context.Context, identity string) (*auth.CredentialRecord, error) {
	if s.FailFind != nil {
		return nil, s.FailFind
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[auth.NormalizeIdentity(identity)]
	if !ok {
		return nil, auth.ErrNotFound
	}
	c := *record
	return &c, nil
}

// CreateRecord implements CredentialStore.
func (s *MemoryStore) CreateRecord(_ context.Context, record *auth.CredentialRecord) error {
	if s.FailCreate != nil {
		return s.FailCreate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[record.Identity]; ok {
		return auth.ErrDuplicate
	}
	c := *record
	s.records[record.Identity] = &c
	return nil
}

// UpdateHash implements CredentialStore.
func (s *MemoryStore) UpdateHash(_ context.Context, identity string, password crypt.HashedPassword, algorithm string) error {
	if s.FailUpdate != nil {
		return s.FailUpdate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[auth.NormalizeIdentity(identity)]
	if !ok {
		return auth.ErrNotFound
	}
	record.Password = password
	record.Algorithm = algorithm
	return nil
}

// UpdateRealName implements CredentialStore.
func (s *MemoryStore) UpdateRealName(_ context.Context, identity, realName string) error {
	if s.FailUpdate != nil {
		return s.FailUpdate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[auth.NormalizeIdentity(identity)]
	if !ok {
		return auth.ErrNotFound
	}
	record.RealName = realName
	return nil
}

// UpdateEmail implements CredentialStore.
func (s *MemoryStore) UpdateEmail(_ context.Context, identity, email string) error {
	if s.FailUpdate != nil {
		return s.FailUpdate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[auth.NormalizeIdentity(identity)]
	if !ok {
		return auth.ErrNotFound
	}
	record.Email = email
	return nil
}

// UpdateLastLogin implements CredentialStore.
func (s *MemoryStore) UpdateLastLogin(_ context.Context, identity string, at time.Time, ip string) error {
	if s.FailUpdate != nil {
		return s.FailUpdate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[auth.NormalizeIdentity(identity)]
	if !ok {
		return auth.ErrNotFound
	}
	record.LastLoginAt = &at
	record.LastLoginIP = ip
	return nil
}

// DeleteRecord implements CredentialStore.
func (s *MemoryStore) DeleteRecord(_ context.Context, identity string) error {
	if s.FailDelete != nil {
		return s.FailDelete
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := auth.NormalizeIdentity(identity)
	if _, ok := s.records[key]; !ok {
		return auth.ErrNotFound
	}
	delete(s.records, key)
	return nil
}

// Len returns the number of stored records.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// CaptureNotifier records every command for assertion.
type CaptureNotifier struct {
	mu            sync.Mutex
	groupChanges  []auth.GroupChange
	teleports     []auth.TeleportStage
	messages      []auth.TimedMessage
	evictions     []auth.Evict
	loginFailures []auth.LoginFailure
}

// NewCaptureNotifier creates an empty capture notifier.
func NewCaptureNotifier() *CaptureNotifier {
	return &CaptureNotifier{}
}

// GroupChange implements Notifier.
func (n *CaptureNotifier) GroupChange(cmd auth.GroupChange) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.groupChanges = append(n.groupChanges, cmd)
}

// TeleportStage implements Notifier.
func (n *CaptureNotifier) TeleportStage(cmd auth.TeleportStage) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.teleports = append(n.teleports, cmd)
}

// TimedMessage implements Notifier.
func (n *CaptureNotifier) TimedMessage(cmd auth.TimedMessage) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, cmd)
}

// Evict implements Notifier.
func (n *CaptureNotifier) Evict(cmd auth.Evict) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.evictions = append(n.evictions, cmd)
}

// LoginFailure implements Notifier.
func (n *CaptureNotifier) LoginFailure(cmd auth.LoginFailure) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.loginFailures = append(n.loginFailures, cmd)
}

// GroupChanges returns the captured group commands.
func (n *CaptureNotifier) GroupChanges() []auth.GroupChange {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]auth.GroupChange(nil), n.groupChanges...)
}

// Teleports returns the captured teleport commands.
func (n *CaptureNotifier) Teleports() []auth.TeleportStage {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]auth.TeleportStage(nil), n.teleports...)
}

// Messages returns the captured timed messages.
func (n *CaptureNotifier) Messages() []auth.TimedMessage {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]auth.TimedMessage(nil), n.messages...)
}

// Evictions returns the captured disconnect commands.
func (n *CaptureNotifier) Evictions() []auth.Evict {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]auth.Evict(nil), n.evictions...)
}

// LoginFailures returns the captured failed-attempt events.
func (n *CaptureNotifier) LoginFailures() []auth.LoginFailure {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]auth.LoginFailure(nil), n.loginFailures...)
}

// StaticPrivileges is a PrivilegeChecker backed by a fixed set.
type StaticPrivileges struct {
	Privileged map[string]bool
}

// HasJoinPrivilege implements PrivilegeChecker.
func (p *StaticPrivileges) HasJoinPrivilege(identity string) bool {
	return p.Privileged[auth.NormalizeIdentity(identity)]
}

// Verify interfaces are satisfied.
var (
	_ auth.CredentialStore  = (*MemoryStore)(nil)
	_ auth.Notifier         = (*CaptureNotifier)(nil)
	_ auth.PrivilegeChecker = (*StaticPrivileges)(nil)
)
