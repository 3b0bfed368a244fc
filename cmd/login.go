// Copyright (c) 2025 Classpass
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"fmt"
	"io"
	"math/rand"
	"os"
	"strings"
	"time"

	"classpass/cli/internal/config"
	apperrors "classpass/cli/internal/errors"
	"classpass/cli/internal/httperrors"
	"classpass/cli/internal/terminal"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var (
	loginEmail         string
	loginPasswordStdin bool
)

// loginCmd verifies credentials with the configured identity provider and stores
// the resulting session.
var loginCmd = &cobra.Command{
	Use:     "login",
	Aliases: []string{"auth"},
	Short:   "Log in with your email and password",
	Long: `The login command asks for your email and password and verifies them with the
configured identity provider. On success the session is saved to the configured
store so later commands (and later runs) know who is logged in.

A failed login never logs you out: if you were already logged in, that session stays.
Use --password-stdin to pipe the password from a secret manager.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a := newApp(cfg, logger)
		defer a.Close()

		m, err := a.sessionManager(ctx)
		if err != nil {
			return reported(err)
		}
		if cur, ok := m.Current(); ok {
			pterm.Printf("Currently logged in as %s; logging in again replaces that session.\n", cur.Identity.Email)
		}

		prompter := terminal.NewPrompter()
		email := strings.TrimSpace(loginEmail)
		if email == "" {
			promptText := "Email: "
			email, err = prompter.Line(promptText)
			if err != nil {
				return fmt.Errorf("read email: %w", err)
			}
		}

		var password string
		if loginPasswordStdin {
			b, err := io.ReadAll(os.Stdin)
			if err != nil {
				return fmt.Errorf("read password: %w", err)
			}
			password = strings.TrimRight(string(b), "\r\n")
		} else {
			promptText := "Password: "
			password, err = prompter.Password(promptText)
			if err != nil {
				return fmt.Errorf("read password: %w", err)
			}
			// Clear the prompt line from terminal
			terminal.ClearPreviousLines(len(promptText))
		}

		stop := startInlineSpinner(os.Stdout, "Verifying credentials", spinnerFrames, 120*time.Millisecond)
		id, err := m.Login(ctx, email, password)
		stop()
		if err != nil {
			rerr := reported(err)
			if k := apperrors.KindOf(err); k == apperrors.ProviderUnavailable || k == apperrors.Timeout {
				httperrors.PresentNetworkError(err, providerAddress(a.cfg))
			}
			return rerr
		}

		pterm.Println(getRandomLoginGreeting(id.DisplayName))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(loginCmd)
	loginCmd.Flags().StringVarP(&loginEmail, "email", "e", "", "Email to log in with (prompted when empty)")
	loginCmd.Flags().BoolVar(&loginPasswordStdin, "password-stdin", false, "Read the password from stdin")
}

// providerAddress names the remote endpoint of the configured provider for hints.
func providerAddress(c config.Config) string {
	switch c.Provider {
	case config.ProviderHTTP:
		return c.HTTPBaseURL
	case config.ProviderGRPC:
		return c.GRPCAddr
	case config.ProviderPostgres:
		return "directory database"
	default:
		return c.RosterPath
	}
}

// getRandomLoginGreeting returns a random greeting phrase with the user's name
func getRandomLoginGreeting(name string) string {
	greetings := []string{
		"🎉 Welcome back, %s!",
		"✨ Great to see you, %s!",
		"🚀 You're all set, %s!",
		"👋 Hello %s! Ready for class?",
		"💫 Successfully authenticated as %s",
		"✅ Authentication complete! Hi %s!",
		"🔓 Access granted! Welcome %s!",
	}
	return fmt.Sprintf(greetings[rand.Intn(len(greetings))], name)
}
