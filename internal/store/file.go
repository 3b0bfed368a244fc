// Copyright (c) 2025 Classpass
// Licensed under the MIT License. See LICENSE file in the project root for details.

package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"classpass/cli/internal/atomicfile"
	apperrors "classpass/cli/internal/errors"
	"classpass/cli/internal/xdg"
)

// SessionFileName is the record file name inside the XDG state directory.
const SessionFileName = "session.json"

// File keeps the record in a private file, replaced with write-temp-then-rename.
type File struct {
	path string
}

// NewFile returns a store backed by path.
func NewFile(path string) *File {
	return &File{path: path}
}

// DefaultFile returns the store at $XDG_STATE_HOME/classpass/session.json.
func DefaultFile() (*File, error) {
	dir, err := xdg.StateDir()
	if err != nil {
		return nil, apperrors.Wrap(apperrors.StorageUnavailable, "resolve state directory", err)
	}
	return NewFile(filepath.Join(dir, SessionFileName)), nil
}

// Path returns the record location.
func (f *File) Path() string { return f.path }

func (f *File) Read(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.StorageUnavailable, "read session file", err)
	}
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.StorageUnavailable, "read session file", err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	return data, nil
}

func (f *File) Write(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return apperrors.Wrap(apperrors.StorageUnavailable, "write session file", err)
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return apperrors.Wrap(apperrors.StorageUnavailable, "create session directory", err)
	}
	if err := atomicfile.Write(f.path, data, 0o600); err != nil {
		return apperrors.Wrap(apperrors.StorageUnavailable, "write session file", err)
	}
	return nil
}

func (f *File) Clear(context.Context) error {
	if err := atomicfile.Remove(f.path); err != nil {
		return apperrors.Wrap(apperrors.StorageUnavailable, "remove session file", err)
	}
	return nil
}
