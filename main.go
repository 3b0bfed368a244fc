// Copyright (c) 2025 Classpass
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package main is the entry point for the classpass CLI.
// It manages the login session of a course-platform user on this machine.
package main

import (
	"classpass/cli/cmd"
)

// main is the entry point for the classpass CLI application.
// It initializes and executes the command-line interface.
func main() {
	cmd.Execute()
}
