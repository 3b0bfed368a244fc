// Copyright (c) 2025 Classpass
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package xdg provides helpers to resolve XDG Base Directory paths for classpass.
// Configuration (config.json, roster.yaml) lives under the config directory, while
// the persisted session record lives under the state directory because it changes
// on every login and is safe to delete.
//
// Both helpers fall back to the traditional locations when the XDG environment
// variables are not set and create the directory with private permissions.
package xdg

import (
	"os"
	"path/filepath"
)

// AppName is the directory name used under every XDG base directory.
const AppName = "classpass"

// ConfigDir returns the XDG config directory for classpass.
// The directory is created with private permissions (0700) if missing.
// It falls back to ~/.config/classpass when XDG_CONFIG_HOME is unset.
func ConfigDir() (string, error) {
	return resolve("XDG_CONFIG_HOME", ".config")
}

// StateDir returns the XDG state directory for classpass.
// The directory is created with private permissions (0700) if missing.
// It falls back to ~/.local/state/classpass when XDG_STATE_HOME is unset.
func StateDir() (string, error) {
	return resolve("XDG_STATE_HOME", filepath.Join(".local", "state"))
}

func resolve(envVar, homeFallback string) (string, error) {
	base := os.Getenv(envVar)
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, homeFallback)
	}
	dir := filepath.Join(base, AppName)
	if err := os.MkdirAll(dir, 0o700); err != nil { // private dir
		return "", err
	}
	return dir, nil
}
