// Copyright 2026 The Agent Messenger Bridge Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import "strings"

// Split breaks text into chunks of at most limit runes, splitting only
// at newline boundaries so that strings.Join(chunks, "\n") reproduces
// the original text exactly. A single line longer than limit is
// returned as its own oversized chunk — exact reproduction wins over
// the limit.
//
// Text within the limit (including the empty string) is returned as a
// single chunk.
func Split(text string, limit int) []string {
	if limit <= 0 || len([]rune(text)) <= limit {
		return []string{text}
	}

	lines := strings.Split(text, "\n")
	var chunks []string
	var current []string
	currentRunes := 0

	flush := func() {
		if len(current) > 0 {
			chunks = append(chunks, strings.Join(current, "\n"))
			current = nil
			currentRunes = 0
		}
	}

	for _, line := range lines {
		lineRunes := len([]rune(line))

		// Cost of appending: the line plus the joining newline when
		// the chunk already has content.
		cost := lineRunes
		if len(current) > 0 {
			cost++
		}

		if currentRunes+cost > limit {
			flush()
		}
		current = append(current, line)
		currentRunes += lineRunes
		if len(current) > 1 {
			currentRunes++ // the joining newline
		}
	}
	flush()

	return chunks
}
