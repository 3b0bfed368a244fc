// Copyright (c) 2025 Classpass
// Licensed under the MIT License. See LICENSE file in the project root for details.

package terminal

import (
	"bytes"
	"strings"
	"testing"
)

func TestLinesUsed(t *testing.T) {
	tests := []struct {
		length, width, want int
	}{
		{0, 80, 1},
		{79, 80, 1},
		{80, 80, 1},
		{81, 80, 2},
		{250, 80, 4},
	}
	for _, tt := range tests {
		if got := linesUsed(tt.length, tt.width); got != tt.want {
			t.Errorf("linesUsed(%d, %d) = %d, want %d", tt.length, tt.width, got, tt.want)
		}
	}
}

func TestPrompterReadsLines(t *testing.T) {
	var out bytes.Buffer
	p := NewPrompterFrom(strings.NewReader("  student@test.com \nsecret"), &out)

	email, err := p.Line("Email: ")
	if err != nil || email != "student@test.com" {
		t.Fatalf("Line() = %q, %v", email, err)
	}
	pw, err := p.Password("Password: ")
	if err != nil || pw != "secret" {
		t.Fatalf("Password() = %q, %v", pw, err)
	}
	if got := out.String(); got != "Email: Password: " {
		t.Errorf("prompts = %q", got)
	}
	if _, err := p.Line("More: "); err == nil {
		t.Error("expected EOF")
	}
}
