// Copyright (c) 2025 Classpass
// Licensed under the MIT License. See LICENSE file in the project root for details.

package identity

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"

	"classpass/cli/internal/atomicfile"
	apperrors "classpass/cli/internal/errors"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
)

// RosterEntry is one user in the local roster file.
type RosterEntry struct {
	ID           string `yaml:"id" validate:"required"`
	DisplayName  string `yaml:"display_name" validate:"required"`
	Email        string `yaml:"email" validate:"required,email"`
	Role         Role   `yaml:"role" validate:"required,oneof=instructor student assistant"`
	AvatarURL    string `yaml:"avatar_url,omitempty" validate:"omitempty,url"`
	PasswordHash string `yaml:"password_hash" validate:"required"`
	Disabled     bool   `yaml:"disabled,omitempty"`
}

// Identity returns the public part of the entry.
func (e RosterEntry) Identity() Identity {
	return withDerivedAvatar(Identity{
		ID:          e.ID,
		DisplayName: e.DisplayName,
		Email:       e.Email,
		Role:        e.Role,
		AvatarURL:   e.AvatarURL,
	})
}

type rosterFile struct {
	Users []RosterEntry `yaml:"users"`
}

// Directory verifies credentials against a YAML roster with bcrypt password hashes.
// The file is re-read on every call so edits take effect without a restart.
type Directory struct {
	path     string
	mu       sync.Mutex
	validate *validator.Validate
	cost     int
}

// DirectoryOption customizes a Directory.
type DirectoryOption func(*Directory)

// WithBcryptCost overrides the hashing cost used by Add.
func WithBcryptCost(cost int) DirectoryOption {
	return func(d *Directory) { d.cost = cost }
}

// NewDirectory constructs a Directory backed by the roster at path.
func NewDirectory(path string, opts ...DirectoryOption) *Directory {
	d := &Directory{
		path:     path,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		cost:     bcrypt.DefaultCost,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Path returns the roster file location.
func (d *Directory) Path() string { return d.path }

// Verify implements Provider.
func (d *Directory) Verify(ctx context.Context, email, password string) (Identity, error) {
	if err := ctx.Err(); err != nil {
		return Identity{}, classify(ctx, "directory verify", err)
	}
	d.mu.Lock()
	users, err := d.load()
	d.mu.Unlock()
	if err != nil {
		return Identity{}, apperrors.Wrap(apperrors.ProviderUnavailable, "read roster", err)
	}

	for _, u := range users {
		if !SameEmail(u.Email, email) {
			continue
		}
		if u.Disabled {
			return Identity{}, rejected()
		}
		if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
			return Identity{}, rejected()
		}
		return u.Identity(), nil
	}
	// Unknown emails pay for a comparison too, so response time does not reveal them.
	_ = bcrypt.CompareHashAndPassword(dummyHash(), []byte(password))
	return Identity{}, rejected()
}

var (
	dummyOnce sync.Once
	dummy     []byte
)

// dummyHash returns a bcrypt hash at the default cost that matches no password.
func dummyHash() []byte {
	dummyOnce.Do(func() {
		dummy, _ = bcrypt.GenerateFromPassword([]byte("classpass-unknown-user"), bcrypt.DefaultCost)
	})
	return dummy
}

// UpdateProfile implements ProfileUpdater: the roster keeps the new display
// name, avatar and role so the next login returns them.
func (d *Directory) UpdateProfile(ctx context.Context, id Identity) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	users, err := d.load()
	if err != nil {
		return apperrors.Wrap(apperrors.ProviderUnavailable, "read roster", err)
	}
	for i := range users {
		if users[i].ID != id.ID {
			continue
		}
		users[i].DisplayName = id.DisplayName
		users[i].Role = id.Role
		users[i].AvatarURL = id.AvatarURL
		if id.AvatarURL == AvatarFor(id.DisplayName) {
			users[i].AvatarURL = ""
		}
		if err := d.save(users); err != nil {
			return apperrors.Wrap(apperrors.ProviderUnavailable, "write roster", err)
		}
		return nil
	}
	return apperrors.New(apperrors.InvalidCredentials, fmt.Sprintf("user %s is no longer in the roster", id.ID))
}

// Add hashes password and appends the user, rejecting duplicate ids and emails.
func (d *Directory) Add(id Identity, password string) error {
	if password == "" {
		return apperrors.New(apperrors.InvalidInput, "password is required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), d.cost)
	if err != nil {
		return apperrors.Wrap(apperrors.InvalidInput, "hash password", err)
	}
	entry := RosterEntry{
		ID:           id.ID,
		DisplayName:  id.DisplayName,
		Email:        NormalizeEmail(id.Email),
		Role:         id.Role,
		AvatarURL:    id.AvatarURL,
		PasswordHash: string(hash),
	}
	if err := d.validate.Struct(entry); err != nil {
		return apperrors.Wrap(apperrors.InvalidInput, "roster entry", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	users, err := d.load()
	if err != nil {
		return err
	}
	for _, u := range users {
		if u.ID == entry.ID {
			return apperrors.New(apperrors.InvalidInput, fmt.Sprintf("id %q already exists", entry.ID))
		}
		if SameEmail(u.Email, entry.Email) {
			return apperrors.New(apperrors.InvalidInput, fmt.Sprintf("email %q already exists", entry.Email))
		}
	}
	return d.save(append(users, entry))
}

// List returns every roster user sorted by email.
func (d *Directory) List() ([]Identity, error) {
	d.mu.Lock()
	users, err := d.load()
	d.mu.Unlock()
	if err != nil {
		return nil, err
	}
	out := make([]Identity, 0, len(users))
	for _, u := range users {
		out = append(out, u.Identity())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

// load reads and validates the roster; a missing file is an empty roster.
func (d *Directory) load() ([]RosterEntry, error) {
	data, err := os.ReadFile(d.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var f rosterFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", d.path, err)
	}
	for i, u := range f.Users {
		if err := d.validate.Struct(u); err != nil {
			return nil, fmt.Errorf("%s: user #%d: %w", d.path, i+1, err)
		}
	}
	return f.Users, nil
}

func (d *Directory) save(users []RosterEntry) error {
	data, err := yaml.Marshal(rosterFile{Users: users})
	if err != nil {
		return err
	}
	return atomicfile.Write(d.path, data, 0o600)
}

var (
	_ Provider       = (*Directory)(nil)
	_ ProfileUpdater = (*Directory)(nil)
)
