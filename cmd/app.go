// Copyright (c) 2025 Classpass
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"classpass/cli/internal/auth"
	"classpass/cli/internal/config"
	"classpass/cli/internal/identity"
	"classpass/cli/internal/keychain"
	"classpass/cli/internal/store"
	"classpass/cli/internal/xdg"
)

// DirectoryDSNEnv overrides the directory DSN saved by 'classpass connect'.
const DirectoryDSNEnv = "CLASSPASS_DIRECTORY_DSN"

// app holds the collaborators built from the loaded config for one command run.
type app struct {
	cfg      config.Config
	log      *slog.Logger
	km       *keychain.Manager
	store    store.Store
	provider identity.Provider
	closers  []func()
}

func newApp(cfg config.Config, log *slog.Logger) *app {
	return &app{cfg: cfg, log: log}
}

// Close releases every connection opened by the app.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// keychain opens the OS keychain once per run.
func (a *app) keychain() (*keychain.Manager, error) {
	if a.km != nil {
		return a.km, nil
	}
	km, err := keychain.Open(a.cfg.KeychainBackends)
	if err != nil {
		return nil, err
	}
	a.km = km
	return km, nil
}

// openStore builds the configured session store.
func (a *app) openStore(ctx context.Context) (store.Store, error) {
	if a.store != nil {
		return a.store, nil
	}
	var (
		st  store.Store
		err error
	)
	switch a.cfg.Store {
	case config.StoreKeychain:
		km, kerr := a.keychain()
		if kerr != nil {
			return nil, kerr
		}
		st = store.NewKeychain(km)
	case config.StoreRedis:
		r, rerr := store.DialRedis(ctx, a.cfg.RedisAddr, a.cfg.RedisKey, store.WithTTL(a.cfg.SessionTTL.Std()))
		if rerr != nil {
			return nil, rerr
		}
		a.closers = append(a.closers, func() { _ = r.Close() })
		st = r
	default:
		st, err = store.DefaultFile()
		if err != nil {
			return nil, err
		}
	}
	a.log.Debug("session store ready", slog.String("store", a.cfg.Store))
	a.store = st
	return st, nil
}

// rosterPath returns the configured roster file or the default in the config dir.
func (a *app) rosterPath() (string, error) {
	if a.cfg.RosterPath != "" {
		return a.cfg.RosterPath, nil
	}
	dir, err := xdg.ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "roster.yaml"), nil
}

// directoryDSN returns the Postgres DSN from the environment or the keychain.
func (a *app) directoryDSN() (string, error) {
	if dsn := os.Getenv(DirectoryDSNEnv); dsn != "" {
		return dsn, nil
	}
	km, err := a.keychain()
	if err != nil {
		return "", err
	}
	dsn, err := km.LoadDirectoryDSN()
	if errors.Is(err, keychain.ErrNotFound) {
		return "", errors.New("no directory database configured; run 'classpass connect'")
	}
	return dsn, err
}

func (a *app) openDirectory() (*identity.Directory, error) {
	p, err := a.rosterPath()
	if err != nil {
		return nil, err
	}
	return identity.NewDirectory(p), nil
}

func (a *app) openPostgres(ctx context.Context) (*identity.Postgres, error) {
	dsn, err := a.directoryDSN()
	if err != nil {
		return nil, err
	}
	pg, err := identity.ConnectPostgres(ctx, dsn)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, pg.Close)
	return pg, nil
}

// openProvider builds the configured identity provider.
func (a *app) openProvider(ctx context.Context) (identity.Provider, error) {
	if a.provider != nil {
		return a.provider, nil
	}
	var p identity.Provider
	switch a.cfg.Provider {
	case config.ProviderPostgres:
		pg, err := a.openPostgres(ctx)
		if err != nil {
			return nil, err
		}
		p = pg
	case config.ProviderHTTP:
		p = identity.NewHTTP(a.cfg.HTTPBaseURL)
	case config.ProviderGRPC:
		g, err := identity.DialGRPC(a.cfg.GRPCAddr)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = g.Close() })
		p = g
	default:
		d, err := a.openDirectory()
		if err != nil {
			return nil, err
		}
		p = d
	}
	a.log.Debug("identity provider ready", slog.String("provider", a.cfg.Provider))
	a.provider = p
	return p, nil
}

// sessionManager builds the manager over the configured store and provider and
// restores the persisted session.
func (a *app) sessionManager(ctx context.Context) (*auth.SessionManager, error) {
	st, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}
	p, err := a.openProvider(ctx)
	if err != nil {
		return nil, err
	}
	m := auth.NewSessionManager(st, p,
		auth.WithLogger(a.log),
		auth.WithVerifyTimeout(a.cfg.VerifyTimeout.Std()),
		auth.WithSessionTTL(a.cfg.SessionTTL.Std()),
	)
	if _, err := m.Restore(ctx); err != nil {
		return nil, err
	}
	return m, nil
}

// localSession builds a manager that only reads the store, for commands that never
// verify credentials (whoami, logout, watch). The provider is opened lazily by
// login and profile instead, so those commands work while the provider is down.
func (a *app) localSession(ctx context.Context) (*auth.SessionManager, error) {
	st, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}
	m := auth.NewSessionManager(st, offlineProvider{},
		auth.WithLogger(a.log),
		auth.WithSessionTTL(a.cfg.SessionTTL.Std()),
	)
	if _, err := m.Restore(ctx); err != nil {
		return nil, err
	}
	return m, nil
}

// offlineProvider refuses every verification.
type offlineProvider struct{}

func (offlineProvider) Verify(context.Context, string, string) (identity.Identity, error) {
	return identity.Identity{}, fmt.Errorf("identity provider not opened for this command")
}
