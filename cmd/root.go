// Copyright (c) 2025 Classpass
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package cmd provides the command-line interface for classpass.
// It implements the login, logout, whoami and profile commands on top of the session
// manager, plus roster and connection management for the identity providers, using
// the Cobra CLI framework with pterm for terminal output.
package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"classpass/cli/internal/config"
	"classpass/cli/internal/logging"

	"github.com/spf13/cobra"
)

var (
	showVersion bool
	configPath  string
	verbose     bool

	cfg    config.Config
	logger = logging.Discard()
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "classpass",
	Short: "Manage your classpass login session",
	Long: `classpass keeps track of who is logged in to the course platform on this machine.
Credentials are verified by the configured identity provider (a local roster, a
PostgreSQL directory, or a remote identity service) and the session is stored in a
private file, the OS keychain, or Redis.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if configPath != "" {
			cfg, err = config.LoadFrom(configPath)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		level := cfg.LogLevel
		if verbose || os.Getenv("CLASSPASS_VERBOSE") == "1" {
			level = "debug"
		}
		logger = logging.NewLogger(os.Stderr, level)
		logger.Debug("config loaded", slog.String("store", cfg.Store), slog.String("provider", cfg.Provider))
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if showVersion {
			printVersion(cmd.Context())
			return nil
		}
		// If no flag is set, show help
		return cmd.Help()
	},
}

// Execute runs the CLI application.
// It executes the root command and handles any errors that occur during execution.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintln(os.Stderr, logging.Mask(err.Error()))
		}
		os.Exit(1)
	}
}

// errReported marks failures that were already explained to the user.
var errReported = errors.New("reported")

// reported prints err as a session error and returns an error that Execute will not print again.
func reported(err error) error {
	logging.PresentSessionError(err)
	return fmt.Errorf("%w: %w", errReported, err)
}

func init() {
	rootCmd.Flags().BoolVar(&showVersion, "version", false, "Show CLI and identity provider version information")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config.json (default: $XDG_CONFIG_HOME/classpass/config.json)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}
