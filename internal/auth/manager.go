// Copyright (c) 2025 Classpass
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package auth owns the "who is logged in" state of classpass.
//
// A SessionManager verifies credentials through an identity.Provider, persists the
// resulting Session to a store.Store and restores it on the next start. Reads of the
// current session are lock-free. Mutations verify outside the lock and then commit
// inside it (persist, publish, notify), so the login that completes last decides the
// final session regardless of the order the calls were issued in.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	apperrors "classpass/cli/internal/errors"
	"classpass/cli/internal/identity"
	"classpass/cli/internal/logging"
	"classpass/cli/internal/store"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// DefaultVerifyTimeout bounds a single provider verification.
const DefaultVerifyTimeout = 10 * time.Second

// SessionManager is the single owner of the current session.
type SessionManager struct {
	store    store.Store
	provider identity.Provider

	log           *slog.Logger
	now           func() time.Time
	verifyTimeout time.Duration
	ttl           time.Duration
	validate      *validator.Validate

	// mu serializes commits; current and status are only written while it is held.
	mu      sync.Mutex
	current atomic.Pointer[Session]
	status  atomic.Value

	subMu   sync.Mutex
	subs    []subscriber
	nextSub int
}

type subscriber struct {
	id int
	fn func(Event)
}

// Option customizes a SessionManager.
type Option func(*SessionManager)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *SessionManager) {
		if l != nil {
			m.log = l
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *SessionManager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithVerifyTimeout bounds provider verification. Zero or negative keeps the default.
func WithVerifyTimeout(d time.Duration) Option {
	return func(m *SessionManager) {
		if d > 0 {
			m.verifyTimeout = d
		}
	}
}

// WithSessionTTL makes new sessions expire ttl after login. Zero means no expiry.
func WithSessionTTL(ttl time.Duration) Option {
	return func(m *SessionManager) { m.ttl = ttl }
}

// WithValidator shares a validator instance.
func WithValidator(v *validator.Validate) Option {
	return func(m *SessionManager) {
		if v != nil {
			m.validate = v
		}
	}
}

// NewSessionManager returns a manager in StatusInitializing. Call Restore once at startup.
func NewSessionManager(st store.Store, provider identity.Provider, opts ...Option) *SessionManager {
	m := &SessionManager{
		store:         st,
		provider:      provider,
		log:           logging.Discard(),
		now:           time.Now,
		verifyTimeout: DefaultVerifyTimeout,
		validate:      newValidator(),
	}
	for _, o := range opts {
		o(m)
	}
	m.status.Store(StatusInitializing)
	return m
}

// Status reports whether the session state is known and whether someone is logged in.
func (m *SessionManager) Status() Status {
	st := m.status.Load().(Status)
	if st == StatusAuthenticated {
		if s := m.current.Load(); s == nil || s.Expired(m.now()) {
			return StatusLoggedOut
		}
	}
	return st
}

// Current returns a snapshot of the active session.
// A session past its expiry is reported absent; call Expire to clear it for good.
func (m *SessionManager) Current() (Session, bool) {
	s := m.current.Load()
	if s == nil || s.Expired(m.now()) {
		return Session{}, false
	}
	return *s, true
}

// Restore loads the persisted session. It is meant to run once at startup.
// A missing, malformed or expired record yields (nil, nil); only a store failure is
// returned as an error. The status leaves StatusInitializing on every path.
func (m *SessionManager) Restore(ctx context.Context) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := m.store.Read(ctx)
	if err != nil {
		m.publish(nil)
		m.log.Error("restore session", slog.Any("error", err))
		return nil, storageError("read session", err)
	}
	if data == nil {
		m.publish(nil)
		m.notify(Event{Kind: EventRestored})
		return nil, nil
	}

	s, err := decodeRecord(m.validate, data)
	if err != nil {
		m.log.Warn("discarding unreadable session record", slog.Any("error", err))
		m.publish(nil)
		m.notify(Event{Kind: EventRestored})
		return nil, nil
	}
	if s.Expired(m.now()) {
		m.log.Info("stored session expired", slog.String("session", s.ID), slog.Time("expires_at", s.ExpiresAt))
		if err := m.store.Clear(ctx); err != nil {
			m.log.Warn("clear expired session", slog.Any("error", err))
		}
		m.publish(nil)
		snap := s
		m.notify(Event{Kind: EventExpired, Previous: &snap})
		return nil, nil
	}

	m.publish(&s)
	m.log.Debug("session restored", slog.String("session", s.ID), slog.String("user", s.Identity.ID))
	snap := s
	m.notify(Event{Kind: EventRestored, Session: &snap})
	out := s
	return &out, nil
}

// Login verifies the credentials and makes the verified identity the current session.
// On any failure the previous session, if any, stays in place.
func (m *SessionManager) Login(ctx context.Context, email, password string) (identity.Identity, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return identity.Identity{}, apperrors.New(apperrors.InvalidInput, "email and password are required")
	}

	id, err := m.verify(ctx, email, password)
	if err != nil {
		m.log.Debug("login rejected", slog.String("kind", string(apperrors.KindOf(err))), slog.Any("error", err))
		return identity.Identity{}, err
	}

	now := m.now().UTC().Round(0)
	s := Session{ID: uuid.NewString(), Identity: id, CreatedAt: now}
	if m.ttl > 0 {
		s.ExpiresAt = now.Add(m.ttl)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.persist(ctx, s); err != nil {
		return identity.Identity{}, err
	}
	m.publish(&s)
	m.log.Info("logged in", slog.String("session", s.ID), slog.String("user", id.ID), slog.String("role", string(id.Role)))
	snap := s
	m.notify(Event{Kind: EventLoggedIn, Session: &snap})
	return id, nil
}

func (m *SessionManager) verify(ctx context.Context, email, password string) (identity.Identity, error) {
	vctx, cancel := context.WithTimeout(ctx, m.verifyTimeout)
	defer cancel()

	id, err := m.provider.Verify(vctx, email, password)
	if err != nil {
		return identity.Identity{}, verifyError(vctx, err)
	}
	id.Email = identity.NormalizeEmail(id.Email)
	if err := m.validateIdentity(id); err != nil {
		return identity.Identity{}, apperrors.Wrap(apperrors.ProviderUnavailable, "provider returned an invalid identity", err)
	}
	return id, nil
}

// verifyError gives provider failures a kind. An expired verification context always
// reads as Timeout unless the provider already rejected the credentials.
func verifyError(vctx context.Context, err error) error {
	kind := apperrors.KindOf(err)
	if kind == apperrors.InvalidCredentials || kind == apperrors.InvalidInput {
		return err
	}
	if vctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return apperrors.Wrap(apperrors.Timeout, "identity provider did not answer in time", err)
	}
	if kind != "" {
		return err
	}
	return apperrors.Wrap(apperrors.ProviderUnavailable, "verify credentials", err)
}

func (m *SessionManager) validateIdentity(id identity.Identity) error {
	r := record{
		ID:          id.ID,
		DisplayName: id.DisplayName,
		Email:       id.Email,
		Role:        string(id.Role),
		AvatarURL:   id.AvatarURL,
		CreatedAt:   &time.Time{},
	}
	return m.validate.Struct(r)
}

// Logout ends the current session. Logging out with no session is a no-op apart
// from clearing the store.
func (m *SessionManager) Logout(ctx context.Context) error {
	return m.end(ctx, EventLoggedOut)
}

// Expire ends the current session the way Logout does, but reports EventExpired.
func (m *SessionManager) Expire(ctx context.Context) error {
	return m.end(ctx, EventExpired)
}

func (m *SessionManager) end(ctx context.Context, kind EventKind) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	prev := m.current.Load()
	if err := m.store.Clear(ctx); err != nil {
		if prev != nil {
			return storageError("clear session", err)
		}
		// Nothing is signed in, so a leftover record only matters to the next Restore.
		m.log.Warn("clear session store", slog.Any("error", err))
	}
	m.publish(nil)
	if prev == nil {
		return nil
	}
	m.log.Info(string(kind), slog.String("session", prev.ID), slog.String("user", prev.Identity.ID))
	snap := *prev
	m.notify(Event{Kind: kind, Previous: &snap})
	return nil
}

// UpdateProfile merges p into the current identity. ID and Email never change.
// Providers that implement identity.ProfileUpdater receive the merged identity
// before it is committed locally.
func (m *SessionManager) UpdateProfile(ctx context.Context, p Patch) (identity.Identity, error) {
	cur, ok := m.Current()
	if !ok {
		return identity.Identity{}, apperrors.New(apperrors.NoActiveSession, "log in before updating the profile")
	}

	merged, err := applyPatch(cur.Identity, p)
	if err != nil {
		return identity.Identity{}, err
	}
	if err := m.validateIdentity(merged); err != nil {
		return identity.Identity{}, apperrors.Wrap(apperrors.InvalidInput, "profile", err)
	}

	if up, ok := m.provider.(identity.ProfileUpdater); ok {
		vctx, cancel := context.WithTimeout(ctx, m.verifyTimeout)
		err := up.UpdateProfile(vctx, merged)
		if err != nil {
			err = verifyError(vctx, err)
		}
		cancel()
		if err != nil {
			return identity.Identity{}, err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// A login or logout may have committed while the provider was being updated.
	latest := m.current.Load()
	if latest == nil || latest.Expired(m.now()) {
		return identity.Identity{}, apperrors.New(apperrors.NoActiveSession, "session ended during profile update")
	}
	if latest.ID != cur.ID {
		return identity.Identity{}, apperrors.New(apperrors.NoActiveSession, "session changed during profile update")
	}

	next := *latest
	next.Identity = merged
	if err := m.persist(ctx, next); err != nil {
		return identity.Identity{}, err
	}
	m.publish(&next)
	m.log.Info("profile updated", slog.String("session", next.ID), slog.String("user", merged.ID))
	snap := next
	m.notify(Event{Kind: EventProfileUpdated, Session: &snap})
	return merged, nil
}

func applyPatch(id identity.Identity, p Patch) (identity.Identity, error) {
	if p.DisplayName != nil {
		name := strings.TrimSpace(*p.DisplayName)
		if name == "" {
			return identity.Identity{}, apperrors.New(apperrors.InvalidInput, "display name cannot be empty")
		}
		if id.AvatarURL == identity.AvatarFor(id.DisplayName) && p.AvatarURL == nil {
			id.AvatarURL = identity.AvatarFor(name)
		}
		id.DisplayName = name
	}
	if p.AvatarURL != nil {
		id.AvatarURL = strings.TrimSpace(*p.AvatarURL)
		if id.AvatarURL == "" {
			id.AvatarURL = identity.AvatarFor(id.DisplayName)
		}
	}
	if p.Role != nil {
		r, err := identity.ParseRole(*p.Role)
		if err != nil {
			return identity.Identity{}, apperrors.Wrap(apperrors.InvalidInput, "role", err)
		}
		id.Role = r
	}
	return id, nil
}

// Subscribe registers fn for session transitions and returns a function that
// removes it. Events are delivered synchronously, in commit order, while the commit
// lock is held: fn may call Current and Status but must not call Login, Logout,
// UpdateProfile, Expire or Restore.
func (m *SessionManager) Subscribe(fn func(Event)) (unsubscribe func()) {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	m.nextSub++
	id := m.nextSub
	m.subs = append(m.subs, subscriber{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() {
			m.subMu.Lock()
			defer m.subMu.Unlock()
			for i, s := range m.subs {
				if s.id == id {
					m.subs = append(m.subs[:i:i], m.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// persist writes s to the store. Callers hold mu.
func (m *SessionManager) persist(ctx context.Context, s Session) error {
	data, err := encodeRecord(s)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := m.store.Write(ctx, data); err != nil {
		m.log.Error("persist session", slog.String("session", s.ID), slog.Any("error", err))
		return storageError("write session", err)
	}
	return nil
}

// publish swaps the in-memory session. Callers hold mu.
func (m *SessionManager) publish(s *Session) {
	m.current.Store(s)
	if s == nil {
		m.status.Store(StatusLoggedOut)
		return
	}
	m.status.Store(StatusAuthenticated)
}

// notify delivers ev to a snapshot of the subscribers. Callers hold mu.
func (m *SessionManager) notify(ev Event) {
	m.subMu.Lock()
	subs := append([]subscriber(nil), m.subs...)
	m.subMu.Unlock()
	for _, s := range subs {
		s.fn(ev)
	}
}

func storageError(op string, err error) error {
	if apperrors.KindOf(err) == apperrors.StorageUnavailable {
		return err
	}
	return apperrors.Wrap(apperrors.StorageUnavailable, op, err)
}
