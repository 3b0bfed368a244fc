// Copyright (c) 2025 Classpass
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package errors defines typed errors with categories for user-friendly reporting.
// Every expected failure of the session layer (bad input, rejected credentials,
// missing session, slow provider, unavailable storage) is returned as an *E carrying
// a machine-readable Kind, so callers branch on the kind instead of on message text.
//
// The package supports wrapping underlying errors while maintaining error kind information,
// and *E values compare equal under errors.Is when their kinds match.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind is a machine-readable error category.
type Kind string

const (
	// InvalidInput indicates a missing or malformed argument (empty email/password, unknown role).
	InvalidInput Kind = "invalid_input"
	// InvalidCredentials indicates the identity provider rejected the credentials.
	InvalidCredentials Kind = "invalid_credentials"
	// NoActiveSession indicates an operation that needs a session ran while logged out.
	NoActiveSession Kind = "no_active_session"
	// Timeout indicates the identity provider did not answer in time.
	Timeout Kind = "timeout"
	// StorageUnavailable indicates the durable session store could not be read or written.
	StorageUnavailable Kind = "storage_unavailable"
	// CorruptedRecord indicates a stored session failed to decode or validate.
	// It never leaves the session layer: restore downgrades it to "logged out".
	CorruptedRecord Kind = "corrupted_record"
	// ProviderUnavailable indicates the identity provider could not be reached at all.
	ProviderUnavailable Kind = "provider_unavailable"
)

// E wraps an error with kind and human-friendly message.
type E struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *E) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the underlying cause.
func (e *E) Unwrap() error { return e.Err }

// Is reports whether target is an *E of the same kind.
func (e *E) Is(target error) bool {
	t, ok := target.(*E)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func Wrap(kind Kind, msg string, err error) *E { return &E{Kind: kind, Message: msg, Err: err} }
func New(kind Kind, msg string) *E             { return &E{Kind: kind, Message: msg} }

// KindOf returns the kind of the first *E in err's chain, or "" when there is none.
func KindOf(err error) Kind {
	var e *E
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Retryable reports whether the caller may retry the failed operation unchanged.
func Retryable(err error) bool {
	switch KindOf(err) {
	case StorageUnavailable, ProviderUnavailable:
		return true
	}
	return false
}
