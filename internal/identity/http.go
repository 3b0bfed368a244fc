// Copyright (c) 2025 Classpass
// Licensed under the MIT License. See LICENSE file in the project root for details.

package identity

import (
	"context"
	"errors"

	"classpass/cli/internal/backend"
)

// HTTP verifies credentials against a remote identity API.
type HTTP struct {
	api backend.API
}

// NewHTTP constructs an HTTP provider for the API at baseURL.
func NewHTTP(baseURL string) *HTTP {
	return &HTTP{api: backend.New(baseURL, backend.DefaultEndpoints())}
}

// NewHTTPWithAPI constructs an HTTP provider over an existing API client.
func NewHTTPWithAPI(api backend.API) *HTTP {
	return &HTTP{api: api}
}

// Verify implements Provider.
func (h *HTTP) Verify(ctx context.Context, email, password string) (Identity, error) {
	u, err := h.api.Login(ctx, NormalizeEmail(email), password)
	if errors.Is(err, backend.ErrUnauthorized) {
		return Identity{}, rejected()
	}
	if err != nil {
		return Identity{}, classify(ctx, "http verify", err)
	}
	return withDerivedAvatar(Identity{
		ID:          u.ID,
		DisplayName: u.Name,
		Email:       u.Email,
		Role:        Role(u.Role),
		AvatarURL:   u.Avatar,
	}), nil
}

// Version reports the remote API version.
func (h *HTTP) Version(ctx context.Context) (string, error) {
	return h.api.GetVersion(ctx)
}

var _ Provider = (*HTTP)(nil)
