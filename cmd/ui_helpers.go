// Copyright (c) 2025 Classpass
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"classpass/cli/internal/auth"
	"classpass/cli/internal/identity"

	"github.com/pterm/pterm"
)

// startInlineSpinner starts a simple inline spinner animation on a single line.
// It displays rotating animation frames followed by the provided text, updating
// the same line in the terminal. The spinner runs in a separate goroutine and
// can be stopped by calling the returned function, which clears the line.
func startInlineSpinner(w io.Writer, text string, frames []string, interval time.Duration) func() {
	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		i := 0
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				line := fmt.Sprintf("%s %s", frames[i%len(frames)], text)
				// Clear the spinner line completely, then return
				fmt.Fprintf(w, "\r%*s\r", len(line), "")
				return
			case <-ticker.C:
				fmt.Fprintf(w, "\r%s %s", frames[i%len(frames)], text)
				i++
			}
		}
	}()
	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			wg.Wait()
		})
	}
}

var spinnerFrames = []string{"|", "/", "-", "\\"}

// printNotLoggedIn tells the user how to start a session.
func printNotLoggedIn() {
	pterm.Println("🔒 You're not logged in yet!")
	pterm.Println("   Run 'classpass login' to get started.")
}

// printIdentity renders the identity card shown by whoami and profile.
func printIdentity(title string, s auth.Session) {
	label := pterm.NewStyle(pterm.FgLightCyan)
	value := pterm.NewStyle(pterm.FgCyan, pterm.Bold)
	lines := []string{
		label.Sprint("Name:    ") + value.Sprint(s.Identity.DisplayName),
		label.Sprint("Email:   ") + value.Sprint(s.Identity.Email),
		label.Sprint("Role:    ") + value.Sprint(roleLabel(s.Identity.Role)),
	}
	if s.Identity.AvatarURL != "" {
		lines = append(lines, label.Sprint("Avatar:  ")+pterm.NewStyle(pterm.FgLightBlue).Sprint(s.Identity.AvatarURL))
	}
	if !s.CreatedAt.IsZero() {
		lines = append(lines, label.Sprint("Since:   ")+s.CreatedAt.Local().Format(time.RFC1123))
	}
	if !s.ExpiresAt.IsZero() {
		lines = append(lines, label.Sprint("Expires: ")+s.ExpiresAt.Local().Format(time.RFC1123))
	}
	pterm.DefaultBox.
		WithTitle(pterm.NewStyle(pterm.FgCyan, pterm.Bold).Sprint(title)).
		WithTopPadding(1).WithBottomPadding(1).WithLeftPadding(1).WithRightPadding(1).
		Println(strings.Join(lines, "\n"))
}

func roleLabel(r identity.Role) string {
	switch r {
	case identity.RoleInstructor:
		return "🎓 instructor"
	case identity.RoleAssistant:
		return "🧑‍🏫 assistant"
	default:
		return "📚 " + string(r)
	}
}
