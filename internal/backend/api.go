// Copyright (c) 2025 Classpass
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package backend provides the client for a remote identity API.
// It defines the API contract used by the HTTP identity provider (login and version
// checking) and an HTTP-based implementation of it.
package backend

import (
	"context"
	"errors"
)

// ErrUnauthorized is returned when the API rejects the submitted credentials.
var ErrUnauthorized = errors.New("unauthorized")

// User is the profile returned by the identity API.
type User struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	Avatar string `json:"avatar"`
}

// API defines backend operations the identity provider depends on.
// Implementations may call real HTTP endpoints or provide mocks for tests.
type API interface {
	// Login posts credentials and returns the matching user.
	// Rejected credentials yield ErrUnauthorized.
	Login(ctx context.Context, email, password string) (User, error)
	// GetVersion returns the API version string when available.
	GetVersion(ctx context.Context) (string, error)
}

// Endpoints contains REST API endpoint paths.
type Endpoints struct {
	Login   string // e.g., "/api/auth/login"
	Version string // e.g., "/api/version"
}

// DefaultEndpoints returns the standard endpoint layout.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		Login:   "/api/auth/login",
		Version: "/api/version",
	}
}

// New creates a backend API implementation for baseURL.
func New(baseURL string, endpoints Endpoints) API {
	return newHTTP(baseURL, endpoints)
}
