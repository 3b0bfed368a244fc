// Copyright (c) 2025 Classpass
// Licensed under the MIT License. See LICENSE file in the project root for details.

package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	apperrors "classpass/cli/internal/errors"
	"classpass/cli/internal/keychain"

	"github.com/99designs/keyring"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// exerciseStore checks the contract every backend shares.
func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	got, err := s.Read(ctx)
	require.NoError(t, err)
	assert.Nil(t, got, "empty store reads as nil")

	require.NoError(t, s.Write(ctx, []byte(`{"id":"1"}`)))
	got, err = s.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, `{"id":"1"}`, string(got))

	require.NoError(t, s.Write(ctx, []byte(`{"id":"2"}`)))
	got, err = s.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, `{"id":"2"}`, string(got), "write replaces the record")

	require.NoError(t, s.Clear(ctx))
	require.NoError(t, s.Clear(ctx), "clearing twice is not an error")
	got, err = s.Read(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemory(t *testing.T) {
	exerciseStore(t, NewMemory())
}

func TestFile(t *testing.T) {
	dir := t.TempDir()
	f := NewFile(filepath.Join(dir, "nested", SessionFileName))
	exerciseStore(t, f)

	require.NoError(t, f.Write(context.Background(), []byte("x")))
	info, err := os.Stat(f.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	entries, err := os.ReadDir(filepath.Dir(f.Path()))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestFileUnreadable(t *testing.T) {
	dir := t.TempDir()
	// A directory where the record should be makes both read and write fail.
	p := filepath.Join(dir, SessionFileName)
	require.NoError(t, os.Mkdir(p, 0o700))
	f := NewFile(p)

	_, err := f.Read(context.Background())
	assert.True(t, apperrors.IsKind(err, apperrors.StorageUnavailable), "got %v", err)

	err = f.Write(context.Background(), []byte("x"))
	assert.True(t, apperrors.IsKind(err, apperrors.StorageUnavailable), "got %v", err)
}

func TestDefaultFile(t *testing.T) {
	t.Setenv("XDG_STATE_HOME", t.TempDir())
	f, err := DefaultFile()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(os.Getenv("XDG_STATE_HOME"), "classpass", SessionFileName), f.Path())
}

func TestKeychain(t *testing.T) {
	ring := keyring.NewArrayKeyring(nil)
	exerciseStore(t, NewKeychain(keychain.NewManager(ring)))

	k := NewKeychain(keychain.NewManager(ring))
	require.NoError(t, k.Write(context.Background(), []byte("rec")))
	item, err := ring.Get(keychain.KeySession)
	require.NoError(t, err)
	assert.Equal(t, "rec", string(item.Data))
}

func TestRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	exerciseStore(t, NewRedis(client, "classpass:session"))
}

func TestRedisTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	r, err := DialRedis(context.Background(), mr.Addr(), "classpass:session", WithTTL(time.Hour))
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })

	require.NoError(t, r.Write(context.Background(), []byte("rec")))
	assert.Equal(t, time.Hour, mr.TTL("classpass:session"))

	mr.FastForward(2 * time.Hour)
	got, err := r.Read(context.Background())
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	r := NewRedis(client, "classpass:session")

	mr.Close()
	_, err := r.Read(context.Background())
	assert.True(t, apperrors.IsKind(err, apperrors.StorageUnavailable), "got %v", err)
	err = r.Write(context.Background(), []byte("rec"))
	assert.True(t, apperrors.IsKind(err, apperrors.StorageUnavailable), "got %v", err)

	_, err = DialRedis(context.Background(), mr.Addr(), "classpass:session")
	assert.True(t, apperrors.IsKind(err, apperrors.StorageUnavailable), "got %v", err)
}
