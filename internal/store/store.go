// Copyright (c) 2025 Classpass
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package store provides the durable backends that hold the serialized session record.
//
// A Store keeps exactly one opaque record. Write replaces it atomically: a reader
// observes either the previous record or the new one, never a mix. Read reports a
// missing record as (nil, nil). Every backend failure is returned as an
// errors.StorageUnavailable so the session layer can surface it unchanged.
package store

import (
	"context"
	"sync"
)

// Store persists a single session record.
type Store interface {
	// Read returns the stored record, or nil when nothing is stored.
	Read(ctx context.Context) ([]byte, error)
	// Write atomically replaces the stored record.
	Write(ctx context.Context, data []byte) error
	// Clear removes the stored record; clearing an empty store is not an error.
	Clear(ctx context.Context) error
}

// Memory is an in-process Store, used when nothing should outlive the process.
type Memory struct {
	mu   sync.Mutex
	data []byte
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory { return &Memory{} }

func (m *Memory) Read(context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		return nil, nil
	}
	return append([]byte(nil), m.data...), nil
}

func (m *Memory) Write(_ context.Context, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = append([]byte(nil), data...)
	return nil
}

func (m *Memory) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = nil
	return nil
}

var (
	_ Store = (*Memory)(nil)
	_ Store = (*File)(nil)
	_ Store = (*Keychain)(nil)
	_ Store = (*Redis)(nil)
)
