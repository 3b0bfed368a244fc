// Copyright (c) 2025 Classpass
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"classpass/cli/internal/config"
	"classpass/cli/internal/identity"
	"classpass/cli/internal/terminal"

	"github.com/google/uuid"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var (
	rosterID    string
	rosterName  string
	rosterEmail string
	rosterRole  string
)

// rosterCmd groups the user management commands of the local identity providers.
var rosterCmd = &cobra.Command{
	Use:   "roster",
	Short: "Manage users of the local roster or the PostgreSQL directory",
	Long: `The roster commands add and list users of the configured identity provider.
They work with the "directory" provider (a YAML roster in the config directory)
and the "postgres" provider (the classpass_users table). Passwords are stored
as bcrypt hashes only.`,
}

// rosterUsers is implemented by the providers that manage their own users.
type rosterUsers interface {
	add(ctx context.Context, id identity.Identity, password string) error
	list(ctx context.Context) ([]identity.Identity, error)
	where() string
}

type directoryRoster struct{ d *identity.Directory }

func (r directoryRoster) add(_ context.Context, id identity.Identity, pw string) error {
	return r.d.Add(id, pw)
}
func (r directoryRoster) list(context.Context) ([]identity.Identity, error) { return r.d.List() }
func (r directoryRoster) where() string { return r.d.Path() }

type postgresRoster struct{ p *identity.Postgres }

func (r postgresRoster) add(ctx context.Context, id identity.Identity, pw string) error {
	if err := r.p.EnsureSchema(ctx); err != nil {
		return err
	}
	return r.p.Add(ctx, id, pw)
}
func (r postgresRoster) list(ctx context.Context) ([]identity.Identity, error) { return r.p.List(ctx) }
func (r postgresRoster) where() string { return "directory database" }

func openRoster(ctx context.Context, a *app) (rosterUsers, error) {
	switch a.cfg.Provider {
	case config.ProviderDirectory:
		d, err := a.openDirectory()
		if err != nil {
			return nil, err
		}
		return directoryRoster{d}, nil
	case config.ProviderPostgres:
		p, err := a.openPostgres(ctx)
		if err != nil {
			return nil, err
		}
		return postgresRoster{p}, nil
	default:
		return nil, fmt.Errorf("provider %q manages its users remotely; roster commands need the directory or postgres provider", a.cfg.Provider)
	}
}

var rosterAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a user",
	Example: `  classpass roster add --email instructor@test.com --name "John Smith" --role instructor
  classpass roster add --email student@test.com --name "Jane Doe" --role student`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		role, err := identity.ParseRole(rosterRole)
		if err != nil {
			return err
		}
		if strings.TrimSpace(rosterEmail) == "" || strings.TrimSpace(rosterName) == "" {
			return errors.New("--email and --name are required")
		}
		id := rosterID
		if id == "" {
			id = uuid.NewString()
		}

		prompter := terminal.NewPrompter()
		pw, err := prompter.Password(fmt.Sprintf("Password for %s: ", rosterEmail))
		if err != nil {
			return fmt.Errorf("read password: %w", err)
		}
		confirm, err := prompter.Password("Repeat password: ")
		if err != nil {
			return fmt.Errorf("read password: %w", err)
		}
		if pw != confirm {
			return errors.New("passwords do not match")
		}

		a := newApp(cfg, logger)
		defer a.Close()
		r, err := openRoster(ctx, a)
		if err != nil {
			return err
		}
		user := identity.Identity{
			ID:          id,
			DisplayName: strings.TrimSpace(rosterName),
			Email:       rosterEmail,
			Role:        role,
		}
		if err := r.add(ctx, user, pw); err != nil {
			return reported(err)
		}
		pterm.Success.Printf("Added %s (%s) to %s\n", identity.NormalizeEmail(rosterEmail), role, r.where())
		return nil
	},
}

var rosterListCmd = &cobra.Command{
	Use:   "list",
	Short: "List users",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a := newApp(cfg, logger)
		defer a.Close()
		r, err := openRoster(ctx, a)
		if err != nil {
			return err
		}
		users, err := r.list(ctx)
		if err != nil {
			return reported(err)
		}
		if len(users) == 0 {
			pterm.Println("No users yet. Add one with: classpass roster add")
			return nil
		}
		data := pterm.TableData{{"ID", "Name", "Email", "Role"}}
		for _, u := range users {
			data = append(data, []string{u.ID, u.DisplayName, u.Email, string(u.Role)})
		}
		return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
	},
}

func init() {
	rootCmd.AddCommand(rosterCmd)
	rosterCmd.AddCommand(rosterAddCmd, rosterListCmd)
	rosterAddCmd.Flags().StringVar(&rosterID, "id", "", "User id (generated when empty)")
	rosterAddCmd.Flags().StringVar(&rosterName, "name", "", "Display name")
	rosterAddCmd.Flags().StringVar(&rosterEmail, "email", "", "Email used to log in")
	rosterAddCmd.Flags().StringVar(&rosterRole, "role", string(identity.RoleStudent), "Role: instructor, student or assistant")
}
