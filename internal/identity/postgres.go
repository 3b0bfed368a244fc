// Copyright (c) 2025 Classpass
// Licensed under the MIT License. See LICENSE file in the project root for details.

package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	apperrors "classpass/cli/internal/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"
)

// Querier is the subset of pgxpool.Pool used by Postgres.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

const (
	schemaSQL = `CREATE TABLE IF NOT EXISTS classpass_users (
	id            TEXT PRIMARY KEY,
	display_name  TEXT NOT NULL,
	email         TEXT NOT NULL,
	role          TEXT NOT NULL,
	avatar_url    TEXT,
	password_hash TEXT NOT NULL,
	disabled      BOOLEAN NOT NULL DEFAULT FALSE,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE UNIQUE INDEX IF NOT EXISTS classpass_users_email_idx ON classpass_users (lower(email));`

	findByEmailSQL = `SELECT id, display_name, email, role, COALESCE(avatar_url, ''), password_hash, disabled
FROM classpass_users WHERE lower(email) = lower($1)`

	insertUserSQL = `INSERT INTO classpass_users (id, display_name, email, role, avatar_url, password_hash)
VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6)`

	updateProfileSQL = `UPDATE classpass_users
SET display_name = $2, role = $3, avatar_url = NULLIF($4, ''), updated_at = now()
WHERE id = $1`

	listUsersSQL = `SELECT id, display_name, email, role, COALESCE(avatar_url, '')
FROM classpass_users ORDER BY lower(email)`
)

// Postgres verifies credentials against the classpass_users table.
type Postgres struct {
	db   Querier
	pool *pgxpool.Pool
	cost int
}

// ConnectPostgres opens a pool for dsn and verifies connectivity.
func ConnectPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ProviderUnavailable, "open directory database", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, classify(pingCtx, "ping directory database", err)
	}
	return &Postgres{db: pool, pool: pool, cost: bcrypt.DefaultCost}, nil
}

// NewPostgres wraps an existing connection or pool.
func NewPostgres(db Querier) *Postgres {
	return &Postgres{db: db, cost: bcrypt.DefaultCost}
}

// Close releases the pool opened by ConnectPostgres.
func (p *Postgres) Close() {
	if p.pool != nil {
		p.pool.Close()
	}
}

// EnsureSchema creates the users table when missing.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.Exec(ctx, schemaSQL); err != nil {
		return classify(ctx, "create schema", err)
	}
	return nil
}

// Verify implements Provider.
func (p *Postgres) Verify(ctx context.Context, email, password string) (Identity, error) {
	var (
		id       Identity
		role     string
		hash     string
		disabled bool
	)
	err := p.db.QueryRow(ctx, findByEmailSQL, NormalizeEmail(email)).
		Scan(&id.ID, &id.DisplayName, &id.Email, &role, &id.AvatarURL, &hash, &disabled)
	if errors.Is(err, pgx.ErrNoRows) {
		_ = bcrypt.CompareHashAndPassword(dummyHash(), []byte(password))
		return Identity{}, rejected()
	}
	if err != nil {
		return Identity{}, classify(ctx, "query user", err)
	}
	if disabled {
		return Identity{}, rejected()
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return Identity{}, rejected()
	}
	id.Role = Role(role)
	return withDerivedAvatar(id), nil
}

// UpdateProfile implements ProfileUpdater.
func (p *Postgres) UpdateProfile(ctx context.Context, id Identity) error {
	avatar := id.AvatarURL
	if avatar == AvatarFor(id.DisplayName) {
		avatar = ""
	}
	tag, err := p.db.Exec(ctx, updateProfileSQL, id.ID, id.DisplayName, string(id.Role), avatar)
	if err != nil {
		return classify(ctx, "update profile", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.New(apperrors.InvalidCredentials, fmt.Sprintf("user %s is no longer in the directory", id.ID))
	}
	return nil
}

// Add hashes password and inserts the user.
func (p *Postgres) Add(ctx context.Context, id Identity, password string) error {
	if password == "" {
		return apperrors.New(apperrors.InvalidInput, "password is required")
	}
	if !id.Role.Valid() {
		return apperrors.New(apperrors.InvalidInput, fmt.Sprintf("unknown role %q", id.Role))
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.cost)
	if err != nil {
		return apperrors.Wrap(apperrors.InvalidInput, "hash password", err)
	}
	_, err = p.db.Exec(ctx, insertUserSQL, id.ID, id.DisplayName, NormalizeEmail(id.Email), string(id.Role), id.AvatarURL, string(hash))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return apperrors.Wrap(apperrors.InvalidInput, "user already exists", err)
		}
		return classify(ctx, "insert user", err)
	}
	return nil
}

// List returns every user ordered by email.
func (p *Postgres) List(ctx context.Context) ([]Identity, error) {
	rows, err := p.db.Query(ctx, listUsersSQL)
	if err != nil {
		return nil, classify(ctx, "list users", err)
	}
	defer rows.Close()

	var out []Identity
	for rows.Next() {
		var (
			id   Identity
			role string
		)
		if err := rows.Scan(&id.ID, &id.DisplayName, &id.Email, &role, &id.AvatarURL); err != nil {
			return nil, err
		}
		id.Role = Role(role)
		out = append(out, withDerivedAvatar(id))
	}
	return out, rows.Err()
}

var (
	_ Provider       = (*Postgres)(nil)
	_ ProfileUpdater = (*Postgres)(nil)
)
