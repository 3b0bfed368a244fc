// Copyright (c) 2025 Classpass
// Licensed under the MIT License. See LICENSE file in the project root for details.

package identity

import (
	"context"
	"errors"

	apperrors "classpass/cli/internal/errors"
	"classpass/cli/internal/httperrors"
)

// rejected is the single answer for unknown users, wrong passwords and disabled
// accounts, so callers cannot probe which emails exist.
func rejected() error {
	return apperrors.New(apperrors.InvalidCredentials, "email or password is incorrect")
}

// classify maps a transport failure to Timeout or ProviderUnavailable.
// Errors that already carry a kind pass through unchanged.
func classify(ctx context.Context, op string, err error) error {
	if err == nil {
		return nil
	}
	if apperrors.KindOf(err) != "" {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) ||
		ctx.Err() != nil || httperrors.IsTimeout(err) {
		return apperrors.Wrap(apperrors.Timeout, op, err)
	}
	return apperrors.Wrap(apperrors.ProviderUnavailable, op, err)
}
