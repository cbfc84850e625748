// Copyright 2026 The Agent Messenger Bridge Authors
// SPDX-License-Identifier: Apache-2.0

// Package runtime abstracts the process runtime that hosts agent CLIs.
//
// The bridge types keystrokes into a named window of a named session
// and captures the window's screen for fallback delivery. The default
// implementation is [Tmux], which targets a dedicated tmux server
// socket — never the user's personal tmux.
//
// Styled snapshots ([StyledFrame]) are an optional capability: a
// runtime with a terminal emulator behind it can expose decomposed
// lines of styled segments via [FrameCapturer], which the bridge
// prefers over the raw buffer. Tmux does not implement it; the bridge
// falls back to [Runtime.WindowBuffer].
package runtime
