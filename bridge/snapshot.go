// Copyright 2026 The Agent Messenger Bridge Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"strings"

	"github.com/charmbracelet/x/ansi"

	"github.com/siisee11/agent-messenger-bridge/runtime"
)

// FlattenFrame renders a styled frame to plain text: each line's
// segment texts concatenated in order, lines joined with newlines.
func FlattenFrame(frame *runtime.StyledFrame) string {
	lines := make([]string, len(frame.Lines))
	for i, line := range frame.Lines {
		var builder strings.Builder
		for _, segment := range line.Segments {
			builder.WriteString(segment.Text)
		}
		lines[i] = builder.String()
	}
	return strings.Join(lines, "\n")
}

// ExtractTurn cleans a captured screen for delivery: strips ANSI
// escape sequences, cuts everything before the last line that begins
// (no leading whitespace) with the agent's prompt marker, and trims
// trailing blank lines. The cut discards prior turns and any startup
// banner still on screen; when no marker line exists the whole capture
// survives. Returns "" when nothing deliverable remains.
func ExtractTurn(captured, promptMarker string) string {
	stripped := ansi.Strip(captured)
	lines := strings.Split(stripped, "\n")

	if promptMarker != "" {
		for i := len(lines) - 1; i >= 0; i-- {
			if strings.HasPrefix(lines[i], promptMarker) {
				lines = lines[i:]
				break
			}
		}
	}

	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}

	text := strings.Join(lines, "\n")
	if strings.TrimSpace(text) == "" {
		return ""
	}
	return text
}
