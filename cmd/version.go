// Copyright (c) 2025 Classpass
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"context"
	"time"

	"classpass/cli/internal/config"
	"classpass/cli/internal/identity"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var (
	// Version holds the CLI version information.
	// This value is typically set at build time using -ldflags.
	Version = "0.0.0-dev"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show CLI and identity provider version information",
	Run: func(cmd *cobra.Command, args []string) {
		printVersion(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

// printVersion prints the CLI version and, for the HTTP provider, the remote API version.
func printVersion(ctx context.Context) {
	pterm.Printf("classpass %s\n", Version)
	if cfg.Provider != config.ProviderHTTP {
		pterm.Printf("provider  %s\n", cfg.Provider)
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	v, err := identity.NewHTTP(cfg.HTTPBaseURL).Version(ctx)
	if err != nil || v == "" {
		v = "unknown"
	}
	pterm.Printf("provider  http %s\n", v)
}
