// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package auth

import (
	"sync"
	"time"
)

// TimerPurpose distinguishes the per-identity timers the engine schedules.
// At most one timer exists per (identity, purpose).
type TimerPurpose int

const (
	// PurposeRegistrationWindow is the window in which an identity must
	// register (or re-register after unregistering) before being removed.
	PurposeRegistrationWindow TimerPurpose = iota
	// PurposeReminder is the recurring "please log in / register" message.
	PurposeReminder
)

type timerKey struct {
	identity string
	purpose  TimerPurpose
}

// TaskManager owns the per-identity timers. Scheduling a timer for a
// (identity, purpose) pair replaces any pending one; completing the
// expected follow-up action or disconnecting cancels it.
type TaskManager struct {
	mu     sync.Mutex
	timers map[timerKey]*time.Timer
	closed bool
}

// NewTaskManager creates an empty task manager.
func NewTaskManager() *TaskManager {
	return &TaskManager{timers: make(map[timerKey]*time.Timer)}
}

// Schedule arms fn to fire after d, replacing any pending timer for the
// same identity and purpose. fn runs on the timer goroutine after the entry
// has been removed, so a callback can reschedule itself.
func (t *TaskManager) Schedule(identity string, purpose TimerPurpose, d time.Duration, fn func()) {
	key := timerKey{identity: NormalizeIdentity(identity), purpose: purpose}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return
	}
	if prev, ok := t.timers[key]; ok {
		prev.Stop()
	}

	// The callback compares the stored timer against itself: a firing that
	// lost the race with cancellation or replacement must not run, and must
	// not remove its replacement's entry. The mutex held here orders the
	// assignment below before any callback reads timer.
	var timer *time.Timer
	timer = time.AfterFunc(d, func() {
		t.mu.Lock()
		live := t.timers[key] == timer
		if live {
			delete(t.timers, key)
		}
		closed := t.closed
		t.mu.Unlock()

		if live && !closed {
			fn()
		}
	})
	t.timers[key] = timer
}

// Cancel stops the pending timer for an identity and purpose, if any.
func (t *TaskManager) Cancel(identity string, purpose TimerPurpose) {
	key := timerKey{identity: NormalizeIdentity(identity), purpose: purpose}

	t.mu.Lock()
	defer t.mu.Unlock()

	if timer, ok := t.timers[key]; ok {
		timer.Stop()
		delete(t.timers, key)
	}
}

// CancelAll stops every pending timer for an identity.
func (t *TaskManager) CancelAll(identity string) {
	id := NormalizeIdentity(identity)

	t.mu.Lock()
	defer t.mu.Unlock()

	for key, timer := range t.timers {
		if key.identity == id {
			timer.Stop()
			delete(t.timers, key)
		}
	}
}

// Pending reports whether a timer is armed for the identity and purpose.
func (t *TaskManager) Pending(identity string, purpose TimerPurpose) bool {
	key := timerKey{identity: NormalizeIdentity(identity), purpose: purpose}

	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.timers[key]
	return ok
}

// Close cancels every timer and rejects further scheduling.
func (t *TaskManager) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.closed = true
	for key, timer := range t.timers {
		timer.Stop()
		delete(t.timers, key)
	}
}
