// Copyright (c) 2025 Classpass
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"encoding/json"
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var whoamiJSON bool

// whoamiCmd shows the identity of the current session.
var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the currently logged in user",
	Long: `The whoami command prints the identity of the current session as stored locally.
It does not contact the identity provider, so it works offline.

Use --json for machine-readable output; it prints null when nobody is logged in.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a := newApp(cfg, logger)
		defer a.Close()

		m, err := a.localSession(ctx)
		if err != nil {
			return reported(err)
		}
		s, ok := m.Current()

		if whoamiJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if !ok {
				return enc.Encode(nil)
			}
			return enc.Encode(s.Identity)
		}

		if !ok {
			printNotLoggedIn()
			return nil
		}
		pterm.Println(getRandomWhoAmIPhrase(s.Identity.Email))
		pterm.Println()
		printIdentity("Current session", s)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(whoamiCmd)
	whoamiCmd.Flags().BoolVar(&whoamiJSON, "json", false, "Print the identity as JSON")
}

// getRandomWhoAmIPhrase returns a friendly phrase with the user's identifier
func getRandomWhoAmIPhrase(identifier string) string {
	return "👤 Current user: " + identifier
}
