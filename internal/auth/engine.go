// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/gatehouse/gatehouse/internal/crypt"
	"github.com/gatehouse/gatehouse/pkg/errutil"
)

// Message keys handed to the messaging collaborator. Rendering is external.
const (
	MsgLoginRequired    = "login_required"
	MsgRegisterRequired = "register_required"
	MsgUnregistered     = "unregistered"
)

// Evict reasons raised by timer expiry.
const (
	EvictReasonAuthTimeout        = "auth_timeout"
	EvictReasonRegistrationExpiry = "registration_window_expired"
)

// Default engine windows.
const (
	DefaultAuthTimeout        = 30 * time.Second
	DefaultRegistrationWindow = 2 * time.Minute
	DefaultReminderInterval   = 10 * time.Second
)

// EngineSettings configures the state engine's behavior around holding
// state and timers.
type EngineSettings struct {
	// ForceRegistration stages unregistered identities in the holding
	// state and evicts them when the registration window expires.
	ForceRegistration bool
	// AuthTimeout is how long a registered identity may sit
	// unauthenticated before eviction.
	AuthTimeout time.Duration
	// RegistrationWindow is how long an unregistered identity may sit in
	// the holding state before eviction.
	RegistrationWindow time.Duration
	// ReminderInterval spaces the recurring login/register messages.
	ReminderInterval time.Duration
}

func (s EngineSettings) withDefaults() EngineSettings {
	if s.AuthTimeout <= 0 {
		s.AuthTimeout = DefaultAuthTimeout
	}
	if s.RegistrationWindow <= 0 {
		s.RegistrationWindow = DefaultRegistrationWindow
	}
	if s.ReminderInterval <= 0 {
		s.ReminderInterval = DefaultReminderInterval
	}
	return s
}

// EngineConfig wires the engine's collaborators.
type EngineConfig struct {
	Cache    *SessionCache
	Store    CredentialStore
	Method   crypt.Method
	Crypt    crypt.Settings
	Policy   PolicyValidator
	Notifier Notifier
	Tasks    *TaskManager
	Holding  *HoldingCache
	Verifier *JoinVerifier
	Logger   *slog.Logger
	Metrics  *Metrics
	Settings EngineSettings
}

// Engine advances each connected identity through the register / login /
// logout / unregister / credential-change transitions while keeping the
// session cache consistent with the credential store.
//
// Every mutating operation acquires the identity's lock, so at most one
// credential-mutating operation is in flight per identity; operations for
// different identities proceed fully in parallel. Pipeline reads run
// against the cache's last-committed snapshots and never wait on a
// mutation.
type Engine struct {
	cache    *SessionCache
	store    CredentialStore
	method   crypt.Method
	crypt    crypt.Settings
	policy   PolicyValidator
	notifier Notifier
	tasks    *TaskManager
	holding  *HoldingCache
	verifier *JoinVerifier
	logger   *slog.Logger
	metrics  *Metrics
	settings EngineSettings

	// locks serializes mutating operations per identity. Entries are kept
	// for the process lifetime; the table is bounded by distinct
	// identities seen.
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewEngine creates the state engine. Returns an error if a required
// collaborator is missing.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if cfg.Cache == nil {
		return nil, oops.Errorf("session cache is required")
	}
	if cfg.Store == nil {
		return nil, oops.Errorf("credential store is required")
	}
	if cfg.Method == nil {
		return nil, oops.Errorf("hashing method is required")
	}
	if cfg.Policy == nil {
		return nil, oops.Errorf("policy validator is required")
	}
	if cfg.Notifier == nil {
		return nil, oops.Errorf("notifier is required")
	}
	if cfg.Tasks == nil {
		return nil, oops.Errorf("task manager is required")
	}
	if cfg.Holding == nil {
		return nil, oops.Errorf("holding cache is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Engine{
		cache:    cfg.Cache,
		store:    cfg.Store,
		method:   cfg.Method,
		crypt:    cfg.Crypt,
		policy:   cfg.Policy,
		notifier: cfg.Notifier,
		tasks:    cfg.Tasks,
		holding:  cfg.Holding,
		verifier: cfg.Verifier,
		logger:   logger,
		metrics:  cfg.Metrics,
		settings: cfg.Settings.withDefaults(),
		locks:    make(map[string]*sync.Mutex),
	}, nil
}

// lockIdentity acquires the per-identity mutex and returns its unlock.
func (e *Engine) lockIdentity(identity string) func() {
	e.mu.Lock()
	l, ok := e.locks[identity]
	if !ok {
		l = &sync.Mutex{}
		e.locks[identity] = l
	}
	e.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// perform schedules an operation as its own unit of asynchronous work and
// delivers the outcome on the returned channel. Hashing and store I/O are
// latency-bearing; they must not stall the caller.
func perform(op func() Outcome) <-chan Outcome {
	ch := make(chan Outcome, 1)
	go func() { ch <- op() }()
	return ch
}

// Register creates a credential record for an unregistered identity.
func (e *Engine) Register(ctx context.Context, name, password, email string, autoLogin bool) Outcome {
	identity := NormalizeIdentity(name)
	unlock := e.lockIdentity(identity)
	defer unlock()

	_, err := e.store.FindRecord(ctx, identity)
	switch {
	case err == nil:
		return e.finish("register", identity, OutcomeAlreadyRegistered)
	case !errors.Is(err, ErrNotFound):
		return e.storeFailure("register", identity, err)
	}

	if err := e.policy.ValidatePassword(password, name); err != nil {
		errutil.LogDenial(e.logger.With("identity", identity), "registration rejected by password policy", err)
		return e.finish("register", identity, OutcomePolicyRejected)
	}
	if err := e.policy.ValidateEmail(email); err != nil {
		errutil.LogDenial(e.logger.With("identity", identity), "registration rejected by email policy", err)
		return e.finish("register", identity, OutcomePolicyRejected)
	}

	hp, err := e.method.ComputeHash(password, name)
	if err != nil {
		errutil.LogError(e.logger, "hash computation failed", err)
		return e.finish("register", identity, OutcomeStoreFailure)
	}

	record, err := NewCredentialRecord(name, hp, e.method.Name(), email)
	if err != nil {
		errutil.LogError(e.logger, "invalid registration input", err)
		return e.finish("register", identity, OutcomePolicyRejected)
	}

	if err := e.store.CreateRecord(ctx, record); err != nil {
		if errors.Is(err, ErrDuplicate) {
			return e.finish("register", identity, OutcomeAlreadyRegistered)
		}
		return e.storeFailure("register", identity, err)
	}

	e.tasks.CancelAll(identity)
	e.holding.Release(identity)

	if autoLogin {
		e.authenticate(identity, name, record)
	} else {
		// keep a connected session unauthenticated but refresh its snapshot
		if state := e.cache.Get(identity); state != nil {
			state.Record = record
			state.Authenticated = false
			e.cache.Put(identity, state)
		}
		e.notifier.GroupChange(GroupChange{Identity: identity, Group: GroupRegistered})
	}

	e.logger.Info("identity registered", "identity", identity, "auto_login", autoLogin)
	return e.finish("register", identity, OutcomeSuccess)
}

// Login authenticates an identity against its stored credential.
func (e *Engine) Login(ctx context.Context, name, password string, forceLogin bool) Outcome {
	identity := NormalizeIdentity(name)
	unlock := e.lockIdentity(identity)
	defer unlock()

	record, err := e.store.FindRecord(ctx, identity)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			e.logger.Info("login for unregistered identity", "identity", identity)
			return e.finish("login", identity, OutcomeNotRegistered)
		}
		return e.storeFailure("login", identity, err)
	}

	if !forceLogin && !e.verifyPassword(password, record) {
		state := e.cache.Get(identity)
		addr := ""
		if state != nil {
			addr = state.Addr
		}
		e.notifier.LoginFailure(LoginFailure{Identity: identity, Addr: addr})
		e.logger.Info("wrong password", "identity", identity)
		return e.finish("login", identity, OutcomeWrongPassword)
	}

	e.authenticate(identity, record.RealName, record)

	// last-login metadata is best effort, login succeeds regardless
	state := e.cache.Get(identity)
	if err := e.store.UpdateLastLogin(ctx, identity, time.Now(), state.Addr); err != nil {
		errutil.LogError(e.logger, "failed to record last login", err)
	}

	e.logger.Info("identity authenticated", "identity", identity, "forced", forceLogin)
	return e.finish("login", identity, OutcomeSuccess)
}

// authenticate installs an authenticated session state, preserving the
// connection identity of an existing unauthenticated entry.
func (e *Engine) authenticate(identity, realName string, record *CredentialRecord) {
	state := e.cache.Get(identity)
	if state == nil {
		state = &SessionState{
			Identity:    identity,
			RealName:    realName,
			SessionID:   ulid.Make(),
			ConnectedAt: time.Now(),
		}
	}
	state.Record = record
	state.Authenticated = true
	e.cache.Put(identity, state)
	e.metrics.setOnline(e.cache.Len())

	e.tasks.CancelAll(identity)
	e.holding.Release(identity)
	e.notifier.GroupChange(GroupChange{Identity: identity, Group: GroupLoggedIn})
	e.notifier.TeleportStage(TeleportStage{Identity: identity, Holding: false})
}

// Logout returns an authenticated identity to the unauthenticated state.
func (e *Engine) Logout(ctx context.Context, name string) Outcome {
	identity := NormalizeIdentity(name)
	unlock := e.lockIdentity(identity)
	defer unlock()

	if !e.cache.IsAuthenticated(identity) {
		return e.finish("logout", identity, OutcomeNotAuthenticated)
	}

	// unauthenticated state is reconstructible from the store on next
	// join, so the entry is removed outright
	e.cache.Remove(identity)
	e.metrics.setOnline(e.cache.Len())

	e.stagePendingLogin(identity)
	e.notifier.GroupChange(GroupChange{Identity: identity, Group: GroupRegistered})

	e.logger.Info("identity logged out", "identity", identity)
	return e.finish("logout", identity, OutcomeSuccess)
}

// Unregister deletes the identity's credential record. force is the
// administrative override that skips both the session requirement and the
// password check. Both exits converge on the same final state: cache entry
// cleared, holding state staged.
func (e *Engine) Unregister(ctx context.Context, name, password string, force bool) Outcome {
	identity := NormalizeIdentity(name)
	unlock := e.lockIdentity(identity)
	defer unlock()

	state := e.cache.Get(identity)
	if !force {
		if state == nil || !state.Authenticated {
			return e.finish("unregister", identity, OutcomeNotAuthenticated)
		}
		if !e.verifyPassword(password, state.Record) {
			e.logger.Info("wrong password", "identity", identity)
			return e.finish("unregister", identity, OutcomeWrongPassword)
		}
	}

	if err := e.store.DeleteRecord(ctx, identity); err != nil {
		if errors.Is(err, ErrNotFound) {
			return e.finish("unregister", identity, OutcomeNotRegistered)
		}
		// deletion failed: no cache mutation, prior state intact
		return e.storeFailure("unregister", identity, err)
	}

	e.cache.Remove(identity)
	e.metrics.setOnline(e.cache.Len())
	e.tasks.CancelAll(identity)
	e.notifier.GroupChange(GroupChange{Identity: identity, Group: GroupUnregistered})
	e.notifier.TimedMessage(TimedMessage{Identity: identity, Key: MsgUnregistered})

	if e.settings.ForceRegistration {
		e.stagePendingRegistration(identity)
	}

	e.logger.Info("identity unregistered", "identity", identity, "forced", force)
	return e.finish("unregister", identity, OutcomeSuccess)
}

// ChangePassword re-verifies the old credential and replaces the stored
// hash and the cached snapshot together.
func (e *Engine) ChangePassword(ctx context.Context, name, oldPassword, newPassword string) Outcome {
	identity := NormalizeIdentity(name)
	unlock := e.lockIdentity(identity)
	defer unlock()

	state := e.cache.Get(identity)
	if state == nil || !state.Authenticated {
		return e.finish("change_password", identity, OutcomeNotAuthenticated)
	}
	if !e.verifyPassword(oldPassword, state.Record) {
		e.logger.Info("wrong password", "identity", identity)
		return e.finish("change_password", identity, OutcomeWrongPassword)
	}
	if err := e.policy.ValidatePassword(newPassword, state.RealName); err != nil {
		errutil.LogDenial(e.logger.With("identity", identity), "new password rejected by policy", err)
		return e.finish("change_password", identity, OutcomePolicyRejected)
	}

	hp, err := e.method.ComputeHash(newPassword, state.RealName)
	if err != nil {
		errutil.LogError(e.logger, "hash computation failed", err)
		return e.finish("change_password", identity, OutcomeStoreFailure)
	}

	// store first; a failed write leaves cache and store in their prior
	// consistent pair
	if err := e.store.UpdateHash(ctx, identity, hp, e.method.Name()); err != nil {
		return e.storeFailure("change_password", identity, err)
	}

	state.Record.Password = hp
	state.Record.Algorithm = e.method.Name()
	e.cache.Put(identity, state)

	e.logger.Info("password changed", "identity", identity)
	return e.finish("change_password", identity, OutcomeSuccess)
}

// ChangeEmail replaces the stored email after verifying the old one.
func (e *Engine) ChangeEmail(ctx context.Context, name, oldEmail, newEmail string) Outcome {
	identity := NormalizeIdentity(name)
	unlock := e.lockIdentity(identity)
	defer unlock()

	state := e.cache.Get(identity)
	if state == nil || !state.Authenticated {
		return e.finish("change_email", identity, OutcomeNotAuthenticated)
	}
	if state.Record.Email != oldEmail {
		e.logger.Info("old email does not match", "identity", identity)
		return e.finish("change_email", identity, OutcomePolicyRejected)
	}
	return e.updateEmail(ctx, "change_email", identity, state, newEmail)
}

// AddEmail sets the email of a record that has none.
func (e *Engine) AddEmail(ctx context.Context, name, email string) Outcome {
	identity := NormalizeIdentity(name)
	unlock := e.lockIdentity(identity)
	defer unlock()

	state := e.cache.Get(identity)
	if state == nil || !state.Authenticated {
		return e.finish("add_email", identity, OutcomeNotAuthenticated)
	}
	if state.Record.Email != "" {
		e.logger.Info("email already set", "identity", identity)
		return e.finish("add_email", identity, OutcomePolicyRejected)
	}
	return e.updateEmail(ctx, "add_email", identity, state, email)
}

func (e *Engine) updateEmail(ctx context.Context, operation, identity string, state *SessionState, email string) Outcome {
	if err := e.policy.ValidateEmail(email); err != nil {
		errutil.LogDenial(e.logger.With("identity", identity), "email rejected by policy", err)
		return e.finish(operation, identity, OutcomePolicyRejected)
	}
	if email == "" {
		e.logger.Info("email rejected by policy", "identity", identity, "error", "email cannot be empty")
		return e.finish(operation, identity, OutcomePolicyRejected)
	}

	if err := e.store.UpdateEmail(ctx, identity, email); err != nil {
		return e.storeFailure(operation, identity, err)
	}

	state.Record.Email = email
	e.cache.Put(identity, state)

	e.logger.Info("email updated", "identity", identity, "operation", operation)
	return e.finish(operation, identity, OutcomeSuccess)
}

// ProcessJoin is the bridge point for the connection lifecycle: it runs the
// verification pipeline and, on admission, stages the holding state and
// timers appropriate for the identity's registration status.
func (e *Engine) ProcessJoin(ctx context.Context, name, addr string, serverFull bool) (VerificationOutcome, error) {
	if e.verifier == nil {
		return VerificationOutcome{}, oops.Errorf("join verifier not configured")
	}

	outcome, err := e.verifier.VerifyJoin(ctx, JoinRequest{Name: name, Addr: addr, ServerFull: serverFull})
	if err != nil || !outcome.Admitted {
		return outcome, err
	}

	identity := NormalizeIdentity(name)
	unlock := e.lockIdentity(identity)
	defer unlock()

	record, err := e.store.FindRecord(ctx, identity)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return VerificationOutcome{}, oops.Code("JOIN_STORE_FAILED").
			With("identity", identity).
			Wrap(err)
	}

	e.cache.Put(identity, &SessionState{
		Identity:    identity,
		RealName:    name,
		Record:      record,
		SessionID:   ulid.Make(),
		Addr:        addr,
		ConnectedAt: time.Now(),
	})
	e.metrics.setOnline(e.cache.Len())

	switch {
	case record != nil:
		e.stagePendingLogin(identity)
		e.notifier.GroupChange(GroupChange{Identity: identity, Group: GroupRegistered})
	case e.settings.ForceRegistration:
		e.stagePendingRegistration(identity)
		e.notifier.GroupChange(GroupChange{Identity: identity, Group: GroupUnregistered})
	default:
		e.notifier.GroupChange(GroupChange{Identity: identity, Group: GroupUnregistered})
	}

	e.logger.Info("join admitted", "identity", identity, "registered", record != nil)
	return outcome, nil
}

// ProcessQuit clears the identity's session regardless of authentication
// state and cancels its timers.
func (e *Engine) ProcessQuit(name string, isKick bool) {
	identity := NormalizeIdentity(name)
	unlock := e.lockIdentity(identity)
	defer unlock()

	e.cache.Remove(identity)
	e.metrics.setOnline(e.cache.Len())
	e.tasks.CancelAll(identity)
	e.holding.Release(identity)

	e.logger.Info("identity disconnected", "identity", identity, "kick", isKick)
}

// stagePendingLogin stages holding state and timers for a registered but
// unauthenticated identity.
func (e *Engine) stagePendingLogin(identity string) {
	e.holding.Stage(identity, HoldingPendingLogin)
	e.notifier.TeleportStage(TeleportStage{Identity: identity, Holding: true})
	e.scheduleWindow(identity, e.settings.AuthTimeout, EvictReasonAuthTimeout)
	e.scheduleReminder(identity, MsgLoginRequired)
}

// stagePendingRegistration stages holding state and timers for an
// unregistered identity under forced registration.
func (e *Engine) stagePendingRegistration(identity string) {
	e.holding.Stage(identity, HoldingPendingRegistration)
	e.notifier.TeleportStage(TeleportStage{Identity: identity, Holding: true})
	e.scheduleWindow(identity, e.settings.RegistrationWindow, EvictReasonRegistrationExpiry)
	e.scheduleReminder(identity, MsgRegisterRequired)
}

// scheduleWindow arms the single eviction timer for the identity. Expiry
// only issues the eviction command; the lifecycle collaborator disconnects
// the identity, which funnels through ProcessQuit for cleanup.
func (e *Engine) scheduleWindow(identity string, window time.Duration, reason string) {
	e.tasks.Schedule(identity, PurposeRegistrationWindow, window, func() {
		e.notifier.Evict(Evict{Identity: identity, Reason: reason})
	})
}

// scheduleReminder arms the recurring message timer; each firing
// reschedules itself until cancelled.
func (e *Engine) scheduleReminder(identity, key string) {
	e.notifier.TimedMessage(TimedMessage{Identity: identity, Key: key})

	var remind func()
	remind = func() {
		e.notifier.TimedMessage(TimedMessage{Identity: identity, Key: key})
		e.tasks.Schedule(identity, PurposeReminder, e.settings.ReminderInterval, remind)
	}
	e.tasks.Schedule(identity, PurposeReminder, e.settings.ReminderInterval, remind)
}

// verifyPassword compares against the record's algorithm-tagged hash.
func (e *Engine) verifyPassword(password string, record *CredentialRecord) bool {
	if record == nil {
		return false
	}
	method := crypt.ForName(record.Algorithm, e.crypt)
	return method.ComparePassword(password, record.Password, record.RealName)
}

func (e *Engine) finish(operation, identity string, outcome Outcome) Outcome {
	e.metrics.recordOutcome(operation, outcome)
	return outcome
}

func (e *Engine) storeFailure(operation, identity string, err error) Outcome {
	errutil.LogError(e.logger, "store failure during "+operation, oops.
		Code("AUTH_STORE_FAILED").
		With("identity", identity).
		With("operation", operation).
		Wrap(err))
	return e.finish(operation, identity, OutcomeStoreFailure)
}

// PerformRegister schedules Register as an independent unit of work.
func (e *Engine) PerformRegister(ctx context.Context, name, password, email string, autoLogin bool) <-chan Outcome {
	return perform(func() Outcome { return e.Register(ctx, name, password, email, autoLogin) })
}

// PerformLogin schedules Login as an independent unit of work.
func (e *Engine) PerformLogin(ctx context.Context, name, password string, forceLogin bool) <-chan Outcome {
	return perform(func() Outcome { return e.Login(ctx, name, password, forceLogin) })
}

// PerformLogout schedules Logout as an independent unit of work.
func (e *Engine) PerformLogout(ctx context.Context, name string) <-chan Outcome {
	return perform(func() Outcome { return e.Logout(ctx, name) })
}

// PerformUnregister schedules Unregister as an independent unit of work.
func (e *Engine) PerformUnregister(ctx context.Context, name, password string, force bool) <-chan Outcome {
	return perform(func() Outcome { return e.Unregister(ctx, name, password, force) })
}

// PerformChangePassword schedules ChangePassword as an independent unit of
// work.
func (e *Engine) PerformChangePassword(ctx context.Context, name, oldPassword, newPassword string) <-chan Outcome {
	return perform(func() Outcome { return e.ChangePassword(ctx, name, oldPassword, newPassword) })
}
