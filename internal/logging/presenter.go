// Copyright (c) 2025 Classpass
// Licensed under the MIT License. See LICENSE file in the project root for details.

package logging

import (
	"fmt"
	"strings"

	apperrors "classpass/cli/internal/errors"

	"github.com/pterm/pterm"
)

// PresentError formats an error for user display with masking.
func PresentError(context string, err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", context, Mask(err.Error()))
}

// FormatSessionError renders a session-layer error as a short explanation plus the
// action the user should take, keyed on the error kind.
func FormatSessionError(err error) string {
	if err == nil {
		return ""
	}

	var builder strings.Builder
	title, hint := describe(apperrors.KindOf(err))

	builder.WriteString(pterm.NewStyle(pterm.FgRed, pterm.Bold).Sprint(title))
	builder.WriteString("\n")
	if hint != "" {
		builder.WriteString(pterm.NewStyle(pterm.FgYellow).Sprint("→ " + hint))
		builder.WriteString("\n")
	}
	builder.WriteString(pterm.NewStyle(pterm.FgGray).Sprint("Technical details: " + Mask(err.Error())))
	return builder.String()
}

func describe(kind apperrors.Kind) (title, hint string) {
	switch kind {
	case apperrors.InvalidInput:
		return "Missing or invalid input", "Check the email, password or profile values you entered"
	case apperrors.InvalidCredentials:
		return "Invalid credentials", "Check the email and password and try again"
	case apperrors.NoActiveSession:
		return "You're not logged in", "Run 'classpass login' first"
	case apperrors.Timeout:
		return "The identity provider did not answer in time", "Try again, or raise verify_timeout in the config"
	case apperrors.ProviderUnavailable:
		return "The identity provider is unreachable", "Check the provider address and your connection, then retry"
	case apperrors.StorageUnavailable:
		return "The session store is unavailable", "Check the configured store (file, keychain or redis), then retry"
	default:
		return "Unexpected error", ""
	}
}

// PresentSessionError prints a formatted session error to stdout.
func PresentSessionError(err error) {
	if err == nil {
		return
	}
	fmt.Println()
	fmt.Println(FormatSessionError(err))
	fmt.Println()
}
