// Copyright (c) 2025 Classpass
// Licensed under the MIT License. See LICENSE file in the project root for details.

package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	apperrors "classpass/cli/internal/errors"
	"classpass/cli/internal/identity"
	"classpass/cli/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

var (
	instructor = identity.Identity{
		ID:          "u-1",
		DisplayName: "John Smith",
		Email:       "instructor@test.com",
		Role:        identity.RoleInstructor,
		AvatarURL:   identity.AvatarFor("John Smith"),
	}
	student = identity.Identity{
		ID:          "u-2",
		DisplayName: "Jane Doe",
		Email:       "student@test.com",
		Role:        identity.RoleStudent,
		AvatarURL:   identity.AvatarFor("Jane Doe"),
	}
)

// fakeProvider accepts "secret" for every known user. A gate, when set for an email,
// blocks Verify until it is closed.
type fakeProvider struct {
	mu      sync.Mutex
	users   map[string]identity.Identity
	gates   map[string]chan struct{}
	err     error
	updates []identity.Identity
	upErr   error
}

func newFakeProvider(users ...identity.Identity) *fakeProvider {
	p := &fakeProvider{users: map[string]identity.Identity{}, gates: map[string]chan struct{}{}}
	for _, u := range users {
		p.users[u.Email] = u
	}
	return p
}

func (p *fakeProvider) gate(email string) chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	ch := make(chan struct{})
	p.gates[email] = ch
	return ch
}

func (p *fakeProvider) Verify(ctx context.Context, email, password string) (identity.Identity, error) {
	key := identity.NormalizeEmail(email)
	p.mu.Lock()
	gate := p.gates[key]
	u, ok := p.users[key]
	err := p.err
	p.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return identity.Identity{}, ctx.Err()
		}
	}
	if err != nil {
		return identity.Identity{}, err
	}
	if !ok || password != "secret" {
		return identity.Identity{}, apperrors.New(apperrors.InvalidCredentials, "email or password is incorrect")
	}
	return u, nil
}

// profileProvider adds identity.ProfileUpdater to fakeProvider.
type profileProvider struct {
	*fakeProvider
}

func (p profileProvider) UpdateProfile(_ context.Context, id identity.Identity) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.upErr != nil {
		return p.upErr
	}
	p.updates = append(p.updates, id)
	return nil
}

// flakyStore fails writes, reads or clears on demand.
type flakyStore struct {
	*store.Memory
	failRead, failWrite, failClear bool
	writes                         int
}

func (s *flakyStore) Read(ctx context.Context) ([]byte, error) {
	if s.failRead {
		return nil, errors.New("disk on fire")
	}
	return s.Memory.Read(ctx)
}

func (s *flakyStore) Write(ctx context.Context, data []byte) error {
	if s.failWrite {
		return apperrors.New(apperrors.StorageUnavailable, "read-only file system")
	}
	s.writes++
	return s.Memory.Write(ctx, data)
}

func (s *flakyStore) Clear(ctx context.Context) error {
	if s.failClear {
		return errors.New("permission denied")
	}
	return s.Memory.Clear(ctx)
}

func newManager(t *testing.T, st store.Store, p identity.Provider, opts ...Option) *SessionManager {
	t.Helper()
	m := NewSessionManager(st, p, opts...)
	_, err := m.Restore(context.Background())
	require.NoError(t, err)
	return m
}

func TestLoginRejectsEmptyInput(t *testing.T) {
	m := newManager(t, store.NewMemory(), newFakeProvider(instructor))
	ctx := context.Background()
	_, err := m.Login(ctx, instructor.Email, "secret")
	require.NoError(t, err)

	for _, tc := range []struct{ email, password string }{
		{"", "secret"},
		{"   ", "secret"},
		{"student@test.com", ""},
		{"", ""},
	} {
		_, err := m.Login(ctx, tc.email, tc.password)
		assert.True(t, apperrors.IsKind(err, apperrors.InvalidInput), "login(%q, %q): %v", tc.email, tc.password, err)

		cur, ok := m.Current()
		require.True(t, ok)
		assert.Equal(t, instructor, cur.Identity, "current session unchanged")
	}
}

func TestLoginSetsCurrent(t *testing.T) {
	m := newManager(t, store.NewMemory(), newFakeProvider(instructor, student))
	assert.Equal(t, StatusLoggedOut, m.Status())

	id, err := m.Login(context.Background(), "  Student@Test.com ", "secret")
	require.NoError(t, err)
	assert.Equal(t, student, id)

	cur, ok := m.Current()
	require.True(t, ok)
	assert.Equal(t, student, cur.Identity)
	assert.NotEmpty(t, cur.ID)
	assert.False(t, cur.CreatedAt.IsZero())
	assert.True(t, cur.ExpiresAt.IsZero())
	assert.Equal(t, StatusAuthenticated, m.Status())
}

func TestFailedReloginKeepsSession(t *testing.T) {
	m := newManager(t, store.NewMemory(), newFakeProvider(instructor, student))
	ctx := context.Background()
	_, err := m.Login(ctx, instructor.Email, "secret")
	require.NoError(t, err)

	_, err = m.Login(ctx, student.Email, "wrong")
	assert.True(t, apperrors.IsKind(err, apperrors.InvalidCredentials))
	assert.False(t, apperrors.Retryable(err))

	cur, ok := m.Current()
	require.True(t, ok)
	assert.Equal(t, instructor, cur.Identity)
}

func TestTimeoutIsDistinctFromInvalidCredentials(t *testing.T) {
	p := newFakeProvider(instructor)
	p.gate(instructor.Email)
	m := newManager(t, store.NewMemory(), p, WithVerifyTimeout(20*time.Millisecond))

	_, err := m.Login(context.Background(), instructor.Email, "secret")
	assert.True(t, apperrors.IsKind(err, apperrors.Timeout), "got %v", err)
	assert.False(t, apperrors.IsKind(err, apperrors.InvalidCredentials))
	_, ok := m.Current()
	assert.False(t, ok)
}

func TestProviderFailureKinds(t *testing.T) {
	p := newFakeProvider(instructor)
	m := newManager(t, store.NewMemory(), p)

	p.err = errors.New("connection refused")
	_, err := m.Login(context.Background(), instructor.Email, "secret")
	assert.True(t, apperrors.IsKind(err, apperrors.ProviderUnavailable), "got %v", err)
	assert.True(t, apperrors.Retryable(err))

	p.err = nil
	p.users[instructor.Email] = identity.Identity{ID: "x", DisplayName: "No Role", Email: instructor.Email}
	_, err = m.Login(context.Background(), instructor.Email, "secret")
	assert.True(t, apperrors.IsKind(err, apperrors.ProviderUnavailable), "invalid identity from provider: %v", err)
}

func TestLoginStorageFailureLeavesMemoryUnchanged(t *testing.T) {
	st := &flakyStore{Memory: store.NewMemory()}
	m := newManager(t, st, newFakeProvider(instructor, student))
	ctx := context.Background()
	_, err := m.Login(ctx, instructor.Email, "secret")
	require.NoError(t, err)

	st.failWrite = true
	_, err = m.Login(ctx, student.Email, "secret")
	assert.True(t, apperrors.IsKind(err, apperrors.StorageUnavailable), "got %v", err)
	assert.True(t, apperrors.Retryable(err))

	cur, ok := m.Current()
	require.True(t, ok)
	assert.Equal(t, instructor, cur.Identity)
}

func TestLogoutIsIdempotent(t *testing.T) {
	st := store.NewMemory()
	m := newManager(t, st, newFakeProvider(instructor))
	ctx := context.Background()
	_, err := m.Login(ctx, instructor.Email, "secret")
	require.NoError(t, err)

	var events []EventKind
	m.Subscribe(func(ev Event) { events = append(events, ev.Kind) })

	require.NoError(t, m.Logout(ctx))
	require.NoError(t, m.Logout(ctx))

	_, ok := m.Current()
	assert.False(t, ok)
	assert.Equal(t, StatusLoggedOut, m.Status())
	data, err := st.Read(ctx)
	require.NoError(t, err)
	assert.Nil(t, data)
	assert.Equal(t, []EventKind{EventLoggedOut}, events, "second logout is a no-op")
}

func TestLogoutStorageFailure(t *testing.T) {
	st := &flakyStore{Memory: store.NewMemory()}
	m := newManager(t, st, newFakeProvider(instructor))
	ctx := context.Background()
	_, err := m.Login(ctx, instructor.Email, "secret")
	require.NoError(t, err)

	st.failClear = true
	err = m.Logout(ctx)
	assert.True(t, apperrors.IsKind(err, apperrors.StorageUnavailable), "got %v", err)
	_, ok := m.Current()
	assert.True(t, ok, "memory keeps matching the store")
}

func TestLogoutNoSessionBrokenStore(t *testing.T) {
	st := &flakyStore{Memory: store.NewMemory(), failClear: true}
	m := newManager(t, st, newFakeProvider(instructor))

	var events []EventKind
	m.Subscribe(func(ev Event) { events = append(events, ev.Kind) })

	require.NoError(t, m.Logout(context.Background()))
	assert.Equal(t, StatusLoggedOut, m.Status())
	assert.Empty(t, events)
}

func TestRestoreRoundTrip(t *testing.T) {
	st := store.NewMemory()
	p := newFakeProvider(instructor)
	first := newManager(t, st, p)
	id, err := first.Login(context.Background(), instructor.Email, "secret")
	require.NoError(t, err)
	want, _ := first.Current()

	restarted := NewSessionManager(st, p)
	assert.Equal(t, StatusInitializing, restarted.Status())
	s, err := restarted.Restore(context.Background())
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, id, s.Identity)
	assert.Equal(t, want.ID, s.ID)
	assert.True(t, want.CreatedAt.Equal(s.CreatedAt))
	assert.Equal(t, StatusAuthenticated, restarted.Status())
}

func TestRestoreCorruptedRecord(t *testing.T) {
	payloads := map[string]string{
		"not json":        `{"id":`,
		"missing email":   `{"id":"1","displayName":"A","role":"student","createdAt":"2025-01-01T00:00:00Z"}`,
		"unknown role":    `{"id":"1","displayName":"A","email":"a@test.com","role":"dean","createdAt":"2025-01-01T00:00:00Z"}`,
		"bad email":       `{"id":"1","displayName":"A","email":"nope","role":"student","createdAt":"2025-01-01T00:00:00Z"}`,
		"missing created": `{"id":"1","displayName":"A","email":"a@test.com","role":"student"}`,
		"wrong type":      `["id","1"]`,
	}
	for name, payload := range payloads {
		t.Run(name, func(t *testing.T) {
			st := store.NewMemory()
			require.NoError(t, st.Write(context.Background(), []byte(payload)))
			m := NewSessionManager(st, newFakeProvider())

			s, err := m.Restore(context.Background())
			assert.NoError(t, err)
			assert.Nil(t, s)
			assert.Equal(t, StatusLoggedOut, m.Status())
		})
	}
}

func TestRestoreIgnoresUnknownFields(t *testing.T) {
	st := store.NewMemory()
	require.NoError(t, st.Write(context.Background(), []byte(`{
		"id":"1","displayName":"A","email":"A@Test.com","role":"assistant",
		"createdAt":"2025-01-01T00:00:00Z","theme":"dark"}`)))
	m := NewSessionManager(st, newFakeProvider())

	s, err := m.Restore(context.Background())
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, "a@test.com", s.Identity.Email)
	assert.Equal(t, identity.RoleAssistant, s.Identity.Role)
	assert.Empty(t, s.ID, "records written before session ids existed have none")
}

func TestRestoreStorageFailure(t *testing.T) {
	st := &flakyStore{Memory: store.NewMemory(), failRead: true}
	m := NewSessionManager(st, newFakeProvider())

	s, err := m.Restore(context.Background())
	assert.Nil(t, s)
	assert.True(t, apperrors.IsKind(err, apperrors.StorageUnavailable), "got %v", err)
	assert.Equal(t, StatusLoggedOut, m.Status())
}

func TestSessionExpiry(t *testing.T) {
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	st := store.NewMemory()
	p := newFakeProvider(instructor)
	m := newManager(t, st, p, WithClock(clock), WithSessionTTL(time.Hour))

	_, err := m.Login(context.Background(), instructor.Email, "secret")
	require.NoError(t, err)
	cur, ok := m.Current()
	require.True(t, ok)
	assert.Equal(t, now.Add(time.Hour), cur.ExpiresAt)

	now = now.Add(2 * time.Hour)
	_, ok = m.Current()
	assert.False(t, ok)
	assert.Equal(t, StatusLoggedOut, m.Status())

	restarted := NewSessionManager(st, p, WithClock(clock))
	s, err := restarted.Restore(context.Background())
	require.NoError(t, err)
	assert.Nil(t, s)
	data, err := st.Read(context.Background())
	require.NoError(t, err)
	assert.Nil(t, data, "expired record is cleared")
}

func TestRestoreExpiredRecordFiresExpired(t *testing.T) {
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	st := store.NewMemory()
	p := newFakeProvider(instructor)
	m := newManager(t, st, p, WithClock(clock), WithSessionTTL(time.Hour))
	_, err := m.Login(context.Background(), instructor.Email, "secret")
	require.NoError(t, err)
	now = now.Add(2 * time.Hour)

	restarted := NewSessionManager(st, p, WithClock(clock))
	var got []Event
	restarted.Subscribe(func(ev Event) { got = append(got, ev) })
	s, err := restarted.Restore(context.Background())
	require.NoError(t, err)
	assert.Nil(t, s)

	require.Len(t, got, 1)
	assert.Equal(t, EventExpired, got[0].Kind)
	assert.Nil(t, got[0].Session)
	require.NotNil(t, got[0].Previous)
	assert.Equal(t, instructor, got[0].Previous.Identity)
	assert.Equal(t, StatusLoggedOut, restarted.Status())
}

func TestExpireFiresExpired(t *testing.T) {
	m := newManager(t, store.NewMemory(), newFakeProvider(instructor))
	_, err := m.Login(context.Background(), instructor.Email, "secret")
	require.NoError(t, err)

	var got []Event
	m.Subscribe(func(ev Event) { got = append(got, ev) })
	require.NoError(t, m.Expire(context.Background()))

	require.Len(t, got, 1)
	assert.Equal(t, EventExpired, got[0].Kind)
	assert.Nil(t, got[0].Session)
	require.NotNil(t, got[0].Previous)
	assert.Equal(t, instructor, got[0].Previous.Identity)
}

func TestUpdateProfile(t *testing.T) {
	st := store.NewMemory()
	p := newFakeProvider(instructor)
	m := newManager(t, st, p)
	ctx := context.Background()

	_, err := m.UpdateProfile(ctx, Patch{DisplayName: ptr("Nobody")})
	assert.True(t, apperrors.IsKind(err, apperrors.NoActiveSession))

	_, err = m.Login(ctx, instructor.Email, "secret")
	require.NoError(t, err)

	got, err := m.UpdateProfile(ctx, Patch{
		ID:          ptr("hijack"),
		Email:       ptr("new@x.com"),
		DisplayName: ptr("Johnny Smith"),
	})
	require.NoError(t, err)
	assert.Equal(t, instructor.ID, got.ID)
	assert.Equal(t, instructor.Email, got.Email)
	assert.Equal(t, "Johnny Smith", got.DisplayName)
	assert.Equal(t, identity.AvatarFor("Johnny Smith"), got.AvatarURL, "derived avatar follows the name")

	restarted := NewSessionManager(st, p)
	s, err := restarted.Restore(ctx)
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, instructor.Email, s.Identity.Email, "stored email never changes")
	assert.Equal(t, "Johnny Smith", s.Identity.DisplayName)

	_, err = m.UpdateProfile(ctx, Patch{Role: ptr("dean")})
	assert.True(t, apperrors.IsKind(err, apperrors.InvalidInput))
	_, err = m.UpdateProfile(ctx, Patch{DisplayName: ptr("  ")})
	assert.True(t, apperrors.IsKind(err, apperrors.InvalidInput))

	got, err = m.UpdateProfile(ctx, Patch{Role: ptr("Assistant"), AvatarURL: ptr("https://cdn.example.com/j.png")})
	require.NoError(t, err)
	assert.Equal(t, identity.RoleAssistant, got.Role)
	assert.Equal(t, "https://cdn.example.com/j.png", got.AvatarURL)
	assert.Equal(t, "Johnny Smith", got.DisplayName)
}

func TestUpdateProfilePushesToProvider(t *testing.T) {
	p := profileProvider{newFakeProvider(student)}
	m := newManager(t, store.NewMemory(), p)
	ctx := context.Background()
	_, err := m.Login(ctx, student.Email, "secret")
	require.NoError(t, err)

	_, err = m.UpdateProfile(ctx, Patch{DisplayName: ptr("Jane Q. Doe")})
	require.NoError(t, err)
	require.Len(t, p.updates, 1)
	assert.Equal(t, "Jane Q. Doe", p.updates[0].DisplayName)

	p.upErr = apperrors.New(apperrors.ProviderUnavailable, "directory offline")
	_, err = m.UpdateProfile(ctx, Patch{DisplayName: ptr("J")})
	assert.True(t, apperrors.IsKind(err, apperrors.ProviderUnavailable))
	cur, _ := m.Current()
	assert.Equal(t, "Jane Q. Doe", cur.Identity.DisplayName, "failed push is not committed")
}

func TestConcurrentLoginsCompletionOrderWins(t *testing.T) {
	for _, lastDone := range []identity.Identity{instructor, student} {
		t.Run("last="+lastDone.Email, func(t *testing.T) {
			p := newFakeProvider(instructor, student)
			st := store.NewMemory()
			m := newManager(t, st, p)
			// The login issued first is made to complete last, so call order and
			// completion order disagree.
			first, second := instructor, student
			if lastDone == student {
				first, second = student, instructor
			}
			gateFirst := p.gate(first.Email)
			gateSecond := p.gate(second.Email)

			ctx := context.Background()
			firstDone := make(chan struct{})
			var g errgroup.Group
			g.Go(func() error {
				defer close(firstDone)
				_, err := m.Login(ctx, first.Email, "secret")
				return err
			})
			secondDone := make(chan struct{})
			g.Go(func() error {
				defer close(secondDone)
				_, err := m.Login(ctx, second.Email, "secret")
				return err
			})

			// The call issued second completes first.
			close(gateSecond)
			<-secondDone
			close(gateFirst)
			<-firstDone
			require.NoError(t, g.Wait())

			cur, ok := m.Current()
			require.True(t, ok)
			assert.Equal(t, lastDone, cur.Identity)

			restarted := NewSessionManager(st, p)
			s, err := restarted.Restore(ctx)
			require.NoError(t, err)
			require.NotNil(t, s)
			assert.Equal(t, lastDone, s.Identity, "store agrees with memory")
		})
	}
}

func TestEventsArriveInCommitOrder(t *testing.T) {
	st := store.NewMemory()
	m := NewSessionManager(st, newFakeProvider(instructor, student))
	ctx := context.Background()

	var (
		kinds    []EventKind
		statuses []Status
	)
	unsubscribe := m.Subscribe(func(ev Event) {
		kinds = append(kinds, ev.Kind)
		statuses = append(statuses, m.Status())
	})

	_, err := m.Restore(ctx)
	require.NoError(t, err)
	_, err = m.Login(ctx, instructor.Email, "secret")
	require.NoError(t, err)
	_, err = m.UpdateProfile(ctx, Patch{DisplayName: ptr("J. Smith")})
	require.NoError(t, err)
	_, err = m.Login(ctx, student.Email, "secret")
	require.NoError(t, err)
	require.NoError(t, m.Logout(ctx))

	unsubscribe()
	unsubscribe()
	_, err = m.Login(ctx, student.Email, "secret")
	require.NoError(t, err)

	assert.Equal(t, []EventKind{EventRestored, EventLoggedIn, EventProfileUpdated, EventLoggedIn, EventLoggedOut}, kinds)
	assert.Equal(t, []Status{StatusLoggedOut, StatusAuthenticated, StatusAuthenticated, StatusAuthenticated, StatusLoggedOut}, statuses,
		"subscribers observe the committed state")
}

func TestCurrentIsSnapshot(t *testing.T) {
	m := newManager(t, store.NewMemory(), newFakeProvider(instructor))
	_, err := m.Login(context.Background(), instructor.Email, "secret")
	require.NoError(t, err)

	cur, _ := m.Current()
	cur.Identity.DisplayName = "mutated"
	again, _ := m.Current()
	assert.Equal(t, instructor.DisplayName, again.Identity.DisplayName)
}

func ptr(s string) *string { return &s }
