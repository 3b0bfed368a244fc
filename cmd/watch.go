// Copyright (c) 2025 Classpass
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"classpass/cli/internal/auth"
	apperrors "classpass/cli/internal/errors"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var watchInterval time.Duration

// watchCmd follows the stored session and prints every change.
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print session changes as they happen",
	Long: `The watch command re-reads the session store at a fixed interval and prints a line
whenever someone logs in, logs out, updates the profile, or the session expires.
Stop it with Ctrl+C.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := validateWatchInterval(watchInterval); err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a := newApp(cfg, logger)
		defer a.Close()
		m, err := a.localSession(ctx)
		if err != nil {
			return reported(err)
		}

		last, _ := m.Current()
		describeSession("Watching", last)
		unsubscribe := m.Subscribe(func(ev auth.Event) {
			next := auth.Session{}
			if ev.Session != nil {
				next = *ev.Session
			}
			change := sessionChange(last, next)
			if ev.Kind == auth.EventExpired {
				change = "Expired"
			}
			if change != "" {
				describeSession(change, next)
			}
			last = next
		})
		defer unsubscribe()

		ticker := time.NewTicker(watchInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				pterm.Println()
				return nil
			case <-ticker.C:
				if _, ok := m.Current(); !ok && last.Identity.ID != "" {
					// Expired in place: clear it so the store agrees.
					if err := m.Expire(ctx); err != nil {
						logger.Warn("expire session", slog.Any("error", err))
					}
					continue
				}
				if _, err := m.Restore(ctx); err != nil {
					logger.Warn("re-read session store", slog.Any("error", err))
				}
			}
		}
	},
}

// validateWatchInterval rejects intervals time.NewTicker cannot run with.
func validateWatchInterval(d time.Duration) error {
	if d <= 0 {
		return apperrors.New(apperrors.InvalidInput, fmt.Sprintf("--interval must be positive, got %s", d))
	}
	return nil
}

// sessionChange names the transition from prev to next, or "" when nothing changed.
func sessionChange(prev, next auth.Session) string {
	switch {
	case prev.Identity.ID == "" && next.Identity.ID == "":
		return ""
	case next.Identity.ID == "":
		return "Logged out"
	case prev.Identity.ID == "" || prev.ID != next.ID || prev.Identity.ID != next.Identity.ID:
		return "Logged in"
	case prev.Identity != next.Identity:
		return "Profile updated"
	}
	return ""
}

func describeSession(what string, s auth.Session) {
	ts := pterm.NewStyle(pterm.FgGray).Sprint(time.Now().Format("15:04:05"))
	if s.Identity.ID == "" {
		pterm.Printf("%s %s: nobody is logged in\n", ts, what)
		return
	}
	pterm.Printf("%s %s: %s <%s> (%s)\n", ts, what, s.Identity.DisplayName, s.Identity.Email, s.Identity.Role)
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().DurationVar(&watchInterval, "interval", 2*time.Second, "How often to re-read the session store")
}
