// Copyright (c) 2025 Classpass
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var logoutAll bool

// logoutCmd ends the current session.
var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "End the current session",
	Long: `The logout command clears the current session from memory and from the configured
store. Running it while logged out is harmless.

With --all it also removes the directory DSN saved by 'classpass connect' from the
OS keychain.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a := newApp(cfg, logger)
		defer a.Close()

		m, err := a.localSession(ctx)
		if err != nil {
			return reported(err)
		}
		cur, had := m.Current()
		if err := m.Logout(ctx); err != nil {
			return reported(err)
		}

		if logoutAll {
			if km, err := a.keychain(); err == nil {
				_ = km.ClearAll()
			}
		}

		if had {
			pterm.Printf("👋 Logged out %s\n", cur.Identity.Email)
			return nil
		}
		pterm.Println("✅ No active session; nothing to do")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(logoutCmd)
	logoutCmd.Flags().BoolVar(&logoutAll, "all", false, "Also remove saved directory credentials from the keychain")
}
