// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"sync/atomic"
	"unicode/utf8"

	"github.com/samber/oops"

	"github.com/gatehouse/gatehouse/internal/geo"
)

// EvictReasonCapacity names the disconnect applied to a non-privileged
// identity evicted to make room for a privileged joiner.
const EvictReasonCapacity = "capacity_eviction"

// permissiveNamePattern admits any name. It is the fallback when the
// configured pattern fails to compile: a bad pattern must not fail every
// join.
var permissiveNamePattern = regexp.MustCompile(`.*`)

// PipelineSettings configures the join checks. Reload swaps the whole set
// atomically.
type PipelineSettings struct {
	MinNameLength int
	MaxNameLength int
	// NamePattern is the regular expression names must match in full.
	NamePattern string
	// RequireRegistration denies unregistered identities outright.
	RequireRegistration bool
	// EnforceNameCase denies names whose casing differs from the
	// registered display form.
	EnforceNameCase bool
	// CountryProtection restricts unregistered joins to admitted countries.
	CountryProtection bool
	AdmittedCountries []string
	// SingleSession denies a join while another session is active for the
	// same identity.
	SingleSession bool
	// MaxPlayers is the capacity consulted when the host signals a full
	// server.
	MaxPlayers int
}

type compiledSettings struct {
	PipelineSettings
	pattern   *regexp.Regexp
	countries map[string]struct{}
}

// PrivilegeChecker answers whether an identity holds the elevated join
// privilege consulted by the capacity check. The permission model itself is
// external.
type PrivilegeChecker interface {
	HasJoinPrivilege(identity string) bool
}

// JoinRequest describes one connection attempt.
type JoinRequest struct {
	// Name is the connecting display form.
	Name string
	// Addr is the source IP address.
	Addr string
	// ServerFull is the host's capacity signal for this attempt.
	ServerFull bool
}

// JoinVerifierConfig wires the pipeline's collaborators.
type JoinVerifierConfig struct {
	Store      CredentialStore
	Cache      *SessionCache
	AntiBot    *AntiBot
	Resolver   geo.Resolver
	Privileges PrivilegeChecker
	Notifier   Notifier
	Logger     *slog.Logger
	Metrics    *Metrics
}

// JoinVerifier runs the ordered admission checks for every connection
// attempt. Checks short-circuit: the first denial is the only one reported
// and later checks never run.
type JoinVerifier struct {
	store    CredentialStore
	cache    *SessionCache
	antibot  *AntiBot
	resolver geo.Resolver
	priv     PrivilegeChecker
	notifier Notifier
	logger   *slog.Logger
	metrics  *Metrics

	settings atomic.Pointer[compiledSettings]
}

// NewJoinVerifier creates the pipeline and compiles the initial settings.
func NewJoinVerifier(cfg JoinVerifierConfig, settings PipelineSettings) (*JoinVerifier, error) {
	if cfg.Store == nil {
		return nil, oops.Errorf("credential store is required")
	}
	if cfg.Cache == nil {
		return nil, oops.Errorf("session cache is required")
	}
	if cfg.AntiBot == nil {
		return nil, oops.Errorf("anti-automation monitor is required")
	}
	if cfg.Notifier == nil {
		return nil, oops.Errorf("notifier is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	v := &JoinVerifier{
		store:    cfg.Store,
		cache:    cfg.Cache,
		antibot:  cfg.AntiBot,
		resolver: cfg.Resolver,
		priv:     cfg.Privileges,
		notifier: cfg.Notifier,
		logger:   logger,
		metrics:  cfg.Metrics,
	}
	v.Reload(settings)
	return v, nil
}

// Reload recompiles the settings. A name pattern that fails to compile
// falls back to the permissive default with a warning instead of failing
// every subsequent join.
func (v *JoinVerifier) Reload(settings PipelineSettings) {
	compiled := &compiledSettings{PipelineSettings: settings}

	compiled.pattern = permissiveNamePattern
	if settings.NamePattern != "" {
		pattern, err := regexp.Compile("^(?:" + settings.NamePattern + ")$")
		if err != nil {
			v.logger.Warn("name pattern failed to compile, using permissive default",
				"pattern", settings.NamePattern,
				"error", err.Error(),
			)
		} else {
			compiled.pattern = pattern
		}
	}

	compiled.countries = make(map[string]struct{}, len(settings.AdmittedCountries))
	for _, c := range settings.AdmittedCountries {
		compiled.countries[c] = struct{}{}
	}

	v.settings.Store(compiled)
}

// VerifyJoin runs the admission checks in order. A store failure aborts the
// attempt with an error; every other refusal is a denial outcome.
func (v *JoinVerifier) VerifyJoin(ctx context.Context, req JoinRequest) (VerificationOutcome, error) {
	s := v.settings.Load()
	identity := NormalizeIdentity(req.Name)

	v.antibot.RecordJoin()

	record, err := v.store.FindRecord(ctx, identity)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return VerificationOutcome{}, oops.Code("JOIN_STORE_FAILED").
			With("identity", identity).
			Wrap(err)
	}
	registered := record != nil

	// 1. anti-automation
	if v.antibot.Status() == MonitorActive && !registered {
		v.antibot.RecordBlocked(identity)
		return v.deny(identity, Deny(DenySuspectedAutomation)), nil
	}

	// 2. name length and charset
	nameLen := utf8.RuneCountInString(req.Name)
	if nameLen < s.MinNameLength || nameLen > s.MaxNameLength {
		return v.deny(identity, DenyDetail(DenyInvalidNameLength,
			"length %d outside [%d, %d]", nameLen, s.MinNameLength, s.MaxNameLength)), nil
	}
	if !s.pattern.MatchString(req.Name) {
		return v.deny(identity, DenyDetail(DenyInvalidNameCharacters,
			"allowed pattern: %s", s.NamePattern)), nil
	}

	// 3. registration required
	if !registered && s.RequireRegistration {
		return v.deny(identity, Deny(DenyMustRegister)), nil
	}

	// 4. name casing
	if registered && s.EnforceNameCase {
		switch {
		case record.RealName == "" || record.RealName == PlaceholderRealName:
			// self-heal the stored display form, not a denial
			if err := v.store.UpdateRealName(ctx, identity, req.Name); err != nil {
				return VerificationOutcome{}, oops.Code("JOIN_STORE_FAILED").
					With("identity", identity).
					With("operation", "update real name").
					Wrap(err)
			}
		case record.RealName != req.Name:
			return v.deny(identity, DenyDetail(DenyNameCaseMismatch,
				"expected %s, got %s", record.RealName, req.Name)), nil
		}
	}

	// 5. country restriction, fail-open on lookup trouble
	if !registered && s.CountryProtection && v.resolver != nil {
		code, err := v.resolver.CountryCode(ctx, req.Addr)
		switch {
		case err != nil:
			v.logger.Warn("country lookup failed, admitting",
				"identity", identity,
				"addr", req.Addr,
				"error", err.Error(),
			)
		case code == geo.CodeUnknown:
			// unknown is admitted
		default:
			if _, ok := s.countries[code]; !ok {
				return v.deny(identity, DenyDetail(DenyCountryRestricted, "country %s", code)), nil
			}
		}
	}

	// 6. single session
	if s.SingleSession && v.cache.Contains(identity) {
		return v.deny(identity, Deny(DenyAlreadyOnline)), nil
	}

	// 7. capacity
	if req.ServerFull {
		if v.priv == nil || !v.priv.HasJoinPrivilege(identity) {
			return v.deny(identity, Deny(DenyServerFull)), nil
		}
		// a slot may have freed since the host raised the signal
		if v.cache.Len() < s.MaxPlayers {
			return Admit(), nil
		}
		if victim := v.firstEvictable(); victim != "" {
			v.notifier.Evict(Evict{Identity: victim, Reason: EvictReasonCapacity})
			v.logger.Info("evicting to admit privileged identity",
				"evicted", victim,
				"admitted", identity,
			)
			return Admit(), nil
		}
		v.logger.Info("privileged identity denied, all connected identities privileged",
			"identity", identity,
		)
		return v.deny(identity, Deny(DenyServerFull)), nil
	}

	return Admit(), nil
}

// firstEvictable scans connected identities in connection order for the
// first without the join privilege.
func (v *JoinVerifier) firstEvictable() string {
	for _, state := range v.cache.Snapshot() {
		if !v.priv.HasJoinPrivilege(state.Identity) {
			return state.Identity
		}
	}
	return ""
}

// deny logs the refusal at info level (denials are normal operation, not
// errors) and records the metric.
func (v *JoinVerifier) deny(identity string, outcome VerificationOutcome) VerificationOutcome {
	v.logger.Info("join denied",
		"identity", identity,
		"reason", outcome.Reason.String(),
		"detail", outcome.Detail,
	)
	v.metrics.recordDenial(outcome.Reason)
	return outcome
}
