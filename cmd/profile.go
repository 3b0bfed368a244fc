// Copyright (c) 2025 Classpass
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"errors"

	"classpass/cli/internal/auth"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var (
	profileName   string
	profileAvatar string
	profileRole   string
	profileEmail  string
)

// profileCmd updates the profile of the current session.
var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Update the display name, avatar or role of the current session",
	Long: `The profile command changes profile fields of the logged in user. Only the flags
you pass are changed. Your id and email cannot be changed here: --email is accepted
for form compatibility but always ignored.

When the identity provider keeps profiles itself (the local roster and the
PostgreSQL directory do), the change is saved there too, so it survives the next login.`,
	Example: `  classpass profile --name "Jane Q. Doe"
  classpass profile --avatar https://cdn.example.com/jane.png --role assistant`,

	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		flags := cmd.Flags()

		var p auth.Patch
		if flags.Changed("name") {
			p.DisplayName = &profileName
		}
		if flags.Changed("avatar") {
			p.AvatarURL = &profileAvatar
		}
		if flags.Changed("role") {
			p.Role = &profileRole
		}
		if flags.Changed("email") {
			p.Email = &profileEmail
			pterm.Warning.Println("Email cannot be changed; ignoring --email")
		}
		if p.DisplayName == nil && p.AvatarURL == nil && p.Role == nil {
			return errors.New("nothing to update; pass --name, --avatar or --role")
		}

		a := newApp(cfg, logger)
		defer a.Close()
		m, err := a.sessionManager(ctx)
		if err != nil {
			return reported(err)
		}
		if _, err := m.UpdateProfile(ctx, p); err != nil {
			return reported(err)
		}

		s, _ := m.Current()
		pterm.Success.Println("Profile updated")
		printIdentity("Profile", s)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(profileCmd)
	profileCmd.Flags().StringVar(&profileName, "name", "", "New display name")
	profileCmd.Flags().StringVar(&profileAvatar, "avatar", "", "New avatar URL (empty to fall back to the generated one)")
	profileCmd.Flags().StringVar(&profileRole, "role", "", "New role: instructor, student or assistant")
	profileCmd.Flags().StringVar(&profileEmail, "email", "", "Ignored; email cannot be changed")
}
