// Copyright (c) 2025 Classpass
// Licensed under the MIT License. See LICENSE file in the project root for details.

package auth

import (
	"encoding/json"
	"time"

	apperrors "classpass/cli/internal/errors"
	"classpass/cli/internal/identity"

	"github.com/go-playground/validator/v10"
)

// recordVersion is written into every persisted record.
const recordVersion = 1

// record is the persisted form of a Session. Unknown fields are ignored on read.
type record struct {
	Version     int        `json:"version,omitempty"`
	SessionID   string     `json:"sessionId,omitempty"`
	ID          string     `json:"id" validate:"required"`
	DisplayName string     `json:"displayName" validate:"required"`
	Email       string     `json:"email" validate:"required,email"`
	Role        string     `json:"role" validate:"required,oneof=instructor student assistant"`
	AvatarURL   string     `json:"avatarUrl,omitempty" validate:"omitempty,url"`
	CreatedAt   *time.Time `json:"createdAt" validate:"required"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
}

func newValidator() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
}

func encodeRecord(s Session) ([]byte, error) {
	created := s.CreatedAt
	r := record{
		Version:     recordVersion,
		SessionID:   s.ID,
		ID:          s.Identity.ID,
		DisplayName: s.Identity.DisplayName,
		Email:       s.Identity.Email,
		Role:        string(s.Identity.Role),
		AvatarURL:   s.Identity.AvatarURL,
		CreatedAt:   &created,
	}
	if !s.ExpiresAt.IsZero() {
		exp := s.ExpiresAt
		r.ExpiresAt = &exp
	}
	return json.Marshal(r)
}

// decodeRecord parses and validates data. Every failure is a CorruptedRecord.
func decodeRecord(v *validator.Validate, data []byte) (Session, error) {
	var r record
	if err := json.Unmarshal(data, &r); err != nil {
		return Session{}, apperrors.Wrap(apperrors.CorruptedRecord, "decode session record", err)
	}
	if err := v.Struct(r); err != nil {
		return Session{}, apperrors.Wrap(apperrors.CorruptedRecord, "validate session record", err)
	}
	s := Session{
		ID: r.SessionID,
		Identity: identity.Identity{
			ID:          r.ID,
			DisplayName: r.DisplayName,
			Email:       identity.NormalizeEmail(r.Email),
			Role:        identity.Role(r.Role),
			AvatarURL:   r.AvatarURL,
		},
		CreatedAt: *r.CreatedAt,
	}
	if r.ExpiresAt != nil {
		s.ExpiresAt = *r.ExpiresAt
	}
	return s, nil
}
