// Copyright (c) 2025 Classpass
// Licensed under the MIT License. See LICENSE file in the project root for details.

package store

import (
	"context"
	"errors"

	apperrors "classpass/cli/internal/errors"
	"classpass/cli/internal/keychain"
)

// Keychain keeps the record as one item in the OS keychain. Keychain backends
// replace items as a unit, so Set already has atomic-replace semantics.
type Keychain struct {
	km  *keychain.Manager
	key string
}

// NewKeychain returns a store writing the keychain.KeySession item of km.
func NewKeychain(km *keychain.Manager) *Keychain {
	return &Keychain{km: km, key: keychain.KeySession}
}

func (k *Keychain) Read(context.Context) ([]byte, error) {
	data, err := k.km.Get(k.key)
	if errors.Is(err, keychain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.StorageUnavailable, "read keychain item", err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	return data, nil
}

func (k *Keychain) Write(_ context.Context, data []byte) error {
	if err := k.km.Set(k.key, data); err != nil {
		return apperrors.Wrap(apperrors.StorageUnavailable, "write keychain item", err)
	}
	return nil
}

func (k *Keychain) Clear(context.Context) error {
	if err := k.km.Remove(k.key); err != nil {
		return apperrors.Wrap(apperrors.StorageUnavailable, "remove keychain item", err)
	}
	return nil
}
