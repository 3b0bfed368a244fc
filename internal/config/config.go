// Copyright (c) 2025 Classpass
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package config loads and stores CLI configuration in the XDG config dir.
// Only non-secret settings are kept here; secrets (the directory DSN) go to the OS keychain.
// Every key can be overridden from the environment with a CLASSPASS_ prefix,
// e.g. CLASSPASS_STORE=redis or CLASSPASS_VERIFY_TIMEOUT=3s.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"classpass/cli/internal/xdg"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix is the prefix of every environment override.
const EnvPrefix = "CLASSPASS"

// Store backends.
const (
	StoreFile     = "file"
	StoreKeychain = "keychain"
	StoreRedis    = "redis"
)

// Identity providers.
const (
	ProviderDirectory = "directory"
	ProviderPostgres  = "postgres"
	ProviderHTTP      = "http"
	ProviderGRPC      = "grpc"
)

// Config holds non-sensitive CLI settings.
type Config struct {
	LogLevel string `json:"log_level" envconfig:"LOG_LEVEL"`

	Store            string   `json:"store" envconfig:"STORE"`
	KeychainBackends []string `json:"keychain_backends,omitempty" envconfig:"KEYCHAIN_BACKENDS"`
	RedisAddr        string   `json:"redis_addr,omitempty" envconfig:"REDIS_ADDR"`
	RedisKey         string   `json:"redis_key,omitempty" envconfig:"REDIS_KEY"`

	Provider    string `json:"provider" envconfig:"PROVIDER"`
	RosterPath  string `json:"roster_path,omitempty" envconfig:"ROSTER_PATH"`
	HTTPBaseURL string `json:"http_base_url,omitempty" envconfig:"HTTP_BASE_URL"`
	GRPCAddr    string `json:"grpc_addr,omitempty" envconfig:"GRPC_ADDR"`

	VerifyTimeout Duration `json:"verify_timeout" envconfig:"VERIFY_TIMEOUT"`
	SessionTTL    Duration `json:"session_ttl" envconfig:"SESSION_TTL"`
}

// Duration is a time.Duration that reads and writes as "10s" in JSON and env.
type Duration time.Duration

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		// Accept bare nanosecond integers written by older configs.
		var n int64
		if nErr := json.Unmarshal(b, &n); nErr != nil {
			return err
		}
		*d = Duration(n)
		return nil
	}
	return d.Decode(s)
}

// Decode implements envconfig.Decoder.
func (d *Duration) Decode(value string) error {
	if strings.TrimSpace(value) == "" {
		*d = 0
		return nil
	}
	v, err := time.ParseDuration(value)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Defaults returns the settings used when no config file exists.
func Defaults() Config {
	return Config{
		LogLevel:      "info",
		Store:         StoreFile,
		RedisKey:      "classpass:session",
		Provider:      ProviderDirectory,
		VerifyTimeout: Duration(10 * time.Second),
	}
}

// Path returns the path to the config file.
func Path() (string, error) {
	dir, err := xdg.ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Load reads configuration from the default path; see LoadFrom.
func Load() (Config, error) {
	p, err := Path()
	if err != nil {
		return Config{}, err
	}
	return LoadFrom(p)
}

// LoadFrom reads configuration from p; a missing file yields defaults.
// Environment overrides are applied on top and the result is validated.
func LoadFrom(p string) (Config, error) {
	c := Defaults()
	data, err := os.ReadFile(p)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return c, err
	default:
		if err := json.Unmarshal(data, &c); err != nil {
			return c, fmt.Errorf("parse %s: %w", p, err)
		}
	}
	if err := envconfig.Process(EnvPrefix, &c); err != nil {
		return c, fmt.Errorf("environment overrides: %w", err)
	}
	if err := c.Validate(); err != nil {
		return c, err
	}
	return c, nil
}

// Validate checks the enumerated settings.
func (c Config) Validate() error {
	switch c.Store {
	case StoreFile, StoreKeychain:
	case StoreRedis:
		if c.RedisAddr == "" {
			return errors.New("store \"redis\" requires redis_addr")
		}
	default:
		return fmt.Errorf("unknown store %q (want file, keychain or redis)", c.Store)
	}
	switch c.Provider {
	case ProviderDirectory, ProviderPostgres:
	case ProviderHTTP:
		if c.HTTPBaseURL == "" {
			return errors.New("provider \"http\" requires http_base_url")
		}
	case ProviderGRPC:
		if c.GRPCAddr == "" {
			return errors.New("provider \"grpc\" requires grpc_addr")
		}
	default:
		return fmt.Errorf("unknown provider %q (want directory, postgres, http or grpc)", c.Provider)
	}
	if c.VerifyTimeout < 0 || c.SessionTTL < 0 {
		return errors.New("durations must not be negative")
	}
	return nil
}

// Save writes configuration to the default path with 0600 permissions.
func Save(c Config) error {
	p, err := Path()
	if err != nil {
		return err
	}
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(p, b, 0o600)
}
