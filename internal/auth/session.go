// Copyright (c) 2025 Classpass
// Licensed under the MIT License. See LICENSE file in the project root for details.

package auth

import (
	"time"

	"classpass/cli/internal/identity"
)

// Status tells callers whether the session state is known yet.
type Status string

const (
	// StatusInitializing means Restore has not completed.
	StatusInitializing  Status = "initializing"
	StatusLoggedOut     Status = "logged_out"
	StatusAuthenticated Status = "authenticated"
)

// Session wraps an Identity with lifecycle metadata.
type Session struct {
	ID        string
	Identity  identity.Identity
	CreatedAt time.Time
	// ExpiresAt is zero for sessions that never expire.
	ExpiresAt time.Time
}

// Expired reports whether the session is past its expiry at now.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// Patch lists the profile fields to change. Nil fields are left alone.
// ID and Email are accepted so callers can pass whole forms, but are never applied.
type Patch struct {
	ID          *string
	Email       *string
	DisplayName *string
	AvatarURL   *string
	Role        *string
}

// EventKind names a session transition.
type EventKind string

const (
	EventRestored       EventKind = "restored"
	EventLoggedIn       EventKind = "logged_in"
	EventLoggedOut      EventKind = "logged_out"
	EventProfileUpdated EventKind = "profile_updated"
	EventExpired        EventKind = "expired"
)

// Event is delivered to subscribers after a transition has been committed.
// Session is the state after the transition, or nil when logged out.
// For EventLoggedOut and EventExpired, Previous holds the session that ended.
type Event struct {
	Kind     EventKind
	Session  *Session
	Previous *Session
}
