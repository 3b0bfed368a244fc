// Copyright (c) 2025 Classpass
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package terminal provides prompt helpers for the interactive commands: reading
// lines and passwords from the terminal and removing prompts from the screen afterwards.
package terminal

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"atomicgo.dev/cursor"
	"golang.org/x/term"
)

// ClearPreviousLines clears text from the terminal that was previously printed.
// It calculates how many lines were used by the provided text based on the current
// terminal width, then moves up and clears each line. The extra line created when
// the user presses Enter is cleared as well.
func ClearPreviousLines(textLength int) {
	if !IsInteractive() {
		return
	}
	// Get terminal width to calculate line wrapping
	termWidth := 80 // default fallback
	if width, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && width > 0 {
		termWidth = width
	}
	// The cursor sits on the empty row below the input after Enter.
	cursor.ClearLinesUp(linesUsed(textLength, termWidth))
	cursor.StartOfLine()
}

// linesUsed returns the rows occupied by textLength characters at the given width.
func linesUsed(textLength, width int) int {
	totalLines := int(math.Ceil(float64(textLength) / float64(width)))
	if totalLines < 1 {
		totalLines = 1
	}
	return totalLines
}

// IsInteractive reports whether stdin and stdout are both terminals.
func IsInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

// Prompter reads answers from a reader, hiding passwords when it is a terminal.
type Prompter struct {
	in  *bufio.Reader
	out io.Writer
	fd  int
	tty bool
}

// NewPrompter returns a Prompter on stdin and stdout.
func NewPrompter() *Prompter {
	fd := int(os.Stdin.Fd())
	return &Prompter{in: bufio.NewReader(os.Stdin), out: os.Stdout, fd: fd, tty: term.IsTerminal(fd)}
}

// NewPrompterFrom returns a non-interactive Prompter reading from r.
func NewPrompterFrom(r io.Reader, w io.Writer) *Prompter {
	return &Prompter{in: bufio.NewReader(r), out: w, fd: -1}
}

// Line prints prompt and returns the trimmed answer.
func (p *Prompter) Line(prompt string) (string, error) {
	fmt.Fprint(p.out, prompt)
	s, err := p.in.ReadString('\n')
	if err != nil && !(err == io.EOF && s != "") {
		return "", err
	}
	return strings.TrimSpace(s), nil
}

// Password prints prompt and reads a line without echo when attached to a terminal.
func (p *Prompter) Password(prompt string) (string, error) {
	if !p.tty {
		s, err := p.Line(prompt)
		return s, err
	}
	fmt.Fprint(p.out, prompt)
	b, err := term.ReadPassword(p.fd)
	fmt.Fprintln(p.out)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
