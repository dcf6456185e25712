// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package auth

import (
	"github.com/asaskevich/EventBus"
)

// Event bus topics for outcome notifications. Collaborators subscribe to
// the commands they care about; nothing returns to the core.
const (
	TopicGroupChange   = "auth.group"
	TopicTeleportStage = "auth.teleport"
	TopicTimedMessage  = "auth.message"
	TopicEvict         = "auth.evict"
	TopicLoginFailure  = "auth.login_failure"
)

// GroupKind is the abstract permission group an identity should be moved
// to. The group model itself lives with an external collaborator.
type GroupKind int

const (
	// GroupUnregistered: no credential record exists.
	GroupUnregistered GroupKind = iota
	// GroupRegistered: a record exists but the session is unauthenticated.
	GroupRegistered
	// GroupLoggedIn: the session is authenticated.
	GroupLoggedIn
)

// GroupChange asks the permission collaborator to move an identity.
type GroupChange struct {
	Identity string
	Group    GroupKind
}

// TeleportStage asks the staging collaborator to move an identity into or
// out of the pre-authentication holding area.
type TeleportStage struct {
	Identity string
	// Holding is true when entering the holding area, false when released
	// into the environment.
	Holding bool
}

// TimedMessage asks the messaging collaborator to show a localized message.
type TimedMessage struct {
	Identity string
	// Key names the message; rendering is external.
	Key string
}

// Evict asks the connection collaborator to disconnect an identity.
type Evict struct {
	Identity string
	// Reason names the disconnect cause (capacity eviction, registration
	// window expiry, automation block).
	Reason string
}

// LoginFailure reports a failed credential check so an external
// failed-attempt policy can count it.
type LoginFailure struct {
	Identity string
	Addr     string
}

// Notifier delivers fire-and-forget outcome commands to collaborators.
type Notifier interface {
	GroupChange(cmd GroupChange)
	TeleportStage(cmd TeleportStage)
	TimedMessage(cmd TimedMessage)
	Evict(cmd Evict)
	LoginFailure(cmd LoginFailure)
}

// BusNotifier publishes commands on an event bus. Publish is asynchronous
// from the core's perspective: subscribers run on the bus, never on the
// engine's critical path.
type BusNotifier struct {
	bus EventBus.Bus
}

// NewBusNotifier creates a notifier over the given bus. A nil bus gets a
// fresh private one.
func NewBusNotifier(bus EventBus.Bus) *BusNotifier {
	if bus == nil {
		bus = EventBus.New()
	}
	return &BusNotifier{bus: bus}
}

// Bus exposes the underlying bus so collaborators can subscribe.
func (n *BusNotifier) Bus() EventBus.Bus { return n.bus }

// GroupChange publishes a group-assignment command.
func (n *BusNotifier) GroupChange(cmd GroupChange) {
	n.bus.Publish(TopicGroupChange, cmd)
}

// TeleportStage publishes a teleport-staging command.
func (n *BusNotifier) TeleportStage(cmd TeleportStage) {
	n.bus.Publish(TopicTeleportStage, cmd)
}

// TimedMessage publishes a timed-message command.
func (n *BusNotifier) TimedMessage(cmd TimedMessage) {
	n.bus.Publish(TopicTimedMessage, cmd)
}

// Evict publishes a disconnect command.
func (n *BusNotifier) Evict(cmd Evict) {
	n.bus.Publish(TopicEvict, cmd)
}

// LoginFailure publishes a failed-attempt event.
func (n *BusNotifier) LoginFailure(cmd LoginFailure) {
	n.bus.Publish(TopicLoginFailure, cmd)
}

var _ Notifier = (*BusNotifier)(nil)
