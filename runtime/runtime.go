// Copyright 2026 The Agent Messenger Bridge Authors
// SPDX-License-Identifier: Apache-2.0

package runtime

import (
	"errors"
	"strings"
)

// Runtime is the process-runtime surface the bridge drives. All
// methods are safe for concurrent use.
//
// agentType is passed through because some agent CLIs need
// type-specific key handling; adapters may ignore it.
type Runtime interface {
	// TypeKeys types text into the window without submitting it.
	TypeKeys(session, window, text, agentType string) error

	// SendEnter submits whatever is typed in the window.
	SendEnter(session, window, agentType string) error

	// SendKeys types text and submits it in one call.
	SendKeys(session, window, text, agentType string) error

	// WindowBuffer captures the window's visible screen as plain text.
	WindowBuffer(session, window string) (string, error)

	// WindowExists reports whether the window currently exists.
	WindowExists(session, window string) bool
}

// FrameCapturer is an optional capability: capturing the window as a
// styled frame instead of a flat string. Runtimes backed by a terminal
// emulator implement it; the bridge prefers it when present.
type FrameCapturer interface {
	// WindowFrame captures the window as decomposed styled lines.
	WindowFrame(session, window string) (*StyledFrame, error)
}

// StyledFrame is a captured screen as lines of styled segments.
type StyledFrame struct {
	Lines []StyledLine
}

// StyledLine is one screen row.
type StyledLine struct {
	Segments []StyledSegment
}

// StyledSegment is a run of text sharing one style.
type StyledSegment struct {
	// Text is the segment's plain text.
	Text string

	// Style is an adapter-defined style tag. The bridge never
	// interprets it.
	Style string
}

// ErrWindowNotFound wraps runtime errors caused by the target window or
// session being gone. The router shows window-recovery guidance when an
// error matches this.
var ErrWindowNotFound = errors.New("runtime: window not found")

// IsWindowNotFound reports whether err indicates the target window or
// its session no longer exists.
func IsWindowNotFound(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrWindowNotFound) {
		return true
	}
	// Tmux phrasing varies by version and by whether the whole server
	// is gone.
	message := err.Error()
	return strings.Contains(message, "can't find window") ||
		strings.Contains(message, "can't find pane") ||
		strings.Contains(message, "can't find session") ||
		strings.Contains(message, "no server running")
}
