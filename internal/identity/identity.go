// Copyright (c) 2025 Classpass
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package identity defines the authenticated principal and the identity-provider
// collaborators that verify credentials for the session layer.
//
// A Provider answers one question: do these credentials belong to a known user, and
// if so which Identity? Credential storage and hashing are the provider's business.
// Four providers ship with classpass: a local YAML roster (Directory), a PostgreSQL
// users table (Postgres), a REST identity API (HTTP) and a gRPC identity service (GRPC).
package identity

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/text/cases"
)

// Role is the single authorization attribute carried by an Identity.
type Role string

const (
	RoleInstructor Role = "instructor"
	RoleStudent    Role = "student"
	RoleAssistant  Role = "assistant"
)

// Roles lists every known role.
var Roles = []Role{RoleInstructor, RoleStudent, RoleAssistant}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	for _, known := range Roles {
		if r == known {
			return true
		}
	}
	return false
}

// ParseRole converts user input into a Role.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

// Identity represents an authenticated principal.
type Identity struct {
	ID          string `json:"id" yaml:"id"`
	DisplayName string `json:"displayName" yaml:"display_name"`
	Email       string `json:"email" yaml:"email"`
	Role        Role   `json:"role" yaml:"role"`
	AvatarURL   string `json:"avatarUrl,omitempty" yaml:"avatar_url,omitempty"`
}

// Provider verifies credentials. Implementations return an *errors.E of kind
// InvalidCredentials for rejected credentials, Timeout when ctx expires and
// ProviderUnavailable when the backing service cannot be reached.
type Provider interface {
	Verify(ctx context.Context, email, password string) (Identity, error)
}

// ProfileUpdater is implemented by providers that keep profile data themselves.
// The session layer pushes merged profiles to it before committing them locally.
type ProfileUpdater interface {
	UpdateProfile(ctx context.Context, id Identity) error
}

// NormalizeEmail performs case-insensitive canonicalization.
// A Caser is stateful, so each call folds with its own.
func NormalizeEmail(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}

// SameEmail reports whether a and b name the same mailbox.
func SameEmail(a, b string) bool {
	return NormalizeEmail(a) == NormalizeEmail(b)
}

// AvatarFor derives a placeholder avatar URL from a display name.
func AvatarFor(displayName string) string {
	name := strings.TrimSpace(displayName)
	if name == "" {
		return ""
	}
	return "https://ui-avatars.com/api/?name=" + url.QueryEscape(name)
}

// withDerivedAvatar fills AvatarURL when the provider stores none.
func withDerivedAvatar(id Identity) Identity {
	if id.AvatarURL == "" {
		id.AvatarURL = AvatarFor(id.DisplayName)
	}
	return id
}
