// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package auth

import (
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Default anti-automation parameters.
const (
	// DefaultJoinsPerSecond is the sustained join rate above which the
	// monitor considers the server under automated join pressure.
	DefaultJoinsPerSecond = 4.0

	// DefaultJoinBurst is the burst of joins tolerated before the rate
	// matters.
	DefaultJoinBurst = 12

	// DefaultActiveDuration is how long the monitor stays in the active
	// block state after triggering.
	DefaultActiveDuration = 10 * time.Minute
)

// MonitorStatus is the anti-automation monitor state.
type MonitorStatus int

const (
	// MonitorDisabled means the monitor never blocks.
	MonitorDisabled MonitorStatus = iota
	// MonitorListening means the monitor is tracking join rate but not
	// blocking.
	MonitorListening
	// MonitorActive means unregistered joins are currently blocked.
	MonitorActive
)

// AntiBotSettings configures the join-rate monitor.
type AntiBotSettings struct {
	Enabled        bool
	JoinsPerSecond float64
	JoinBurst      int
	ActiveDuration time.Duration
}

func (s AntiBotSettings) withDefaults() AntiBotSettings {
	if s.JoinsPerSecond <= 0 {
		s.JoinsPerSecond = DefaultJoinsPerSecond
	}
	if s.JoinBurst <= 0 {
		s.JoinBurst = DefaultJoinBurst
	}
	if s.ActiveDuration <= 0 {
		s.ActiveDuration = DefaultActiveDuration
	}
	return s
}

// AntiBot watches the overall join rate and flips into an active block
// state when it exceeds the configured sustained rate. While active, the
// join pipeline denies unregistered identities and records them. The state
// decays back to listening once the active window passes.
type AntiBot struct {
	mu          sync.Mutex
	settings    AntiBotSettings
	limiter     *rate.Limiter
	activeUntil time.Time
	recorded    map[string]struct{}
}

// NewAntiBot creates a join-rate monitor.
func NewAntiBot(settings AntiBotSettings) *AntiBot {
	settings = settings.withDefaults()
	return &AntiBot{
		settings: settings,
		limiter:  rate.NewLimiter(rate.Limit(settings.JoinsPerSecond), settings.JoinBurst),
		recorded: make(map[string]struct{}),
	}
}

// RecordJoin notes one join attempt. When the sustained rate is exceeded
// the monitor activates for the configured duration.
func (a *AntiBot) RecordJoin() {
	if !a.settings.Enabled {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.limiter.Allow() && time.Now().After(a.activeUntil) {
		a.activeUntil = time.Now().Add(a.settings.ActiveDuration)
		slog.Warn("automated join pressure detected, blocking unregistered joins",
			"duration", a.settings.ActiveDuration,
		)
	}
}

// Status returns the current monitor state.
func (a *AntiBot) Status() MonitorStatus {
	if !a.settings.Enabled {
		return MonitorDisabled
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if time.Now().Before(a.activeUntil) {
		return MonitorActive
	}
	return MonitorListening
}

// RecordBlocked tracks an identity denied while the monitor was active.
func (a *AntiBot) RecordBlocked(identity string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.recorded[NormalizeIdentity(identity)] = struct{}{}
}

// WasBlocked reports whether an identity was denied by the monitor.
func (a *AntiBot) WasBlocked(identity string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.recorded[NormalizeIdentity(identity)]
	return ok
}

// BlockedCount returns how many identities the monitor has denied.
func (a *AntiBot) BlockedCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.recorded)
}
