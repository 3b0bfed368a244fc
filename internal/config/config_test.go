// Copyright (c) 2025 Classpass
// Licensed under the MIT License. See LICENSE file in the project root for details.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromMissingFileReturnsDefaults(t *testing.T) {
	c, err := LoadFrom(filepath.Join(t.TempDir(), "config.json"))
	require.NoError(t, err)
	assert.Equal(t, Defaults(), c)
}

func TestLoadFromFileAndEnv(t *testing.T) {
	p := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(p, []byte(`{
  "store": "redis",
  "redis_addr": "127.0.0.1:6379",
  "provider": "http",
  "http_base_url": "https://identity.example.com",
  "verify_timeout": "3s",
  "session_ttl": "12h"
}`), 0o600))
	t.Setenv("CLASSPASS_VERIFY_TIMEOUT", "750ms")
	t.Setenv("CLASSPASS_LOG_LEVEL", "debug")

	c, err := LoadFrom(p)
	require.NoError(t, err)
	assert.Equal(t, StoreRedis, c.Store)
	assert.Equal(t, ProviderHTTP, c.Provider)
	assert.Equal(t, 750*time.Millisecond, c.VerifyTimeout.Std())
	assert.Equal(t, 12*time.Hour, c.SessionTTL.Std())
	assert.Equal(t, "debug", c.LogLevel)
	assert.Equal(t, "classpass:session", c.RedisKey, "unset keys keep their defaults")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "unknown store", mutate: func(c *Config) { c.Store = "sqlite" }, wantErr: "unknown store"},
		{name: "redis without addr", mutate: func(c *Config) { c.Store = StoreRedis }, wantErr: "redis_addr"},
		{name: "unknown provider", mutate: func(c *Config) { c.Provider = "ldap" }, wantErr: "unknown provider"},
		{name: "grpc without addr", mutate: func(c *Config) { c.Provider = ProviderGRPC }, wantErr: "grpc_addr"},
		{name: "negative ttl", mutate: func(c *Config) { c.SessionTTL = Duration(-time.Second) }, wantErr: "negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Defaults()
			tt.mutate(&c)
			err := c.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	c := Defaults()
	c.SessionTTL = Duration(90 * time.Minute)
	require.NoError(t, Save(c))

	got, err := Load()
	require.NoError(t, err)
	assert.Equal(t, c, got)

	p, err := Path()
	require.NoError(t, err)
	info, err := os.Stat(p)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}
