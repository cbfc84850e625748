// Copyright 2026 The Agent Messenger Bridge Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"strings"
	"testing"
)

func TestSplitShortTextIsSingleChunk(t *testing.T) {
	chunks := Split("hello\nworld", 100)
	if len(chunks) != 1 || chunks[0] != "hello\nworld" {
		t.Fatalf("Split = %q, want single original chunk", chunks)
	}
}

func TestSplitEmptyText(t *testing.T) {
	chunks := Split("", 10)
	if len(chunks) != 1 || chunks[0] != "" {
		t.Fatalf("Split(\"\") = %q", chunks)
	}
}

func TestSplitJoinReproducesOriginal(t *testing.T) {
	texts := []string{
		strings.Repeat("line of output\n", 100) + "tail",
		"a\n\n\nb\n\nc",
		strings.Repeat("x", 50) + "\n" + strings.Repeat("y", 50),
		"no newlines at all " + strings.Repeat("z", 200),
	}
	for _, text := range texts {
		chunks := Split(text, 40)
		if got := strings.Join(chunks, "\n"); got != text {
			t.Errorf("join(Split(%.20q...)) != original\n got: %q\nwant: %q", text, got, text)
		}
	}
}

func TestSplitRespectsLimit(t *testing.T) {
	text := strings.Repeat("0123456789\n", 20)
	for _, chunk := range Split(text, 25) {
		if n := len([]rune(chunk)); n > 25 {
			t.Errorf("chunk of %d runes exceeds limit: %q", n, chunk)
		}
	}
}

func TestSplitOversizedLineIsItsOwnChunk(t *testing.T) {
	long := strings.Repeat("w", 60)
	text := "before\n" + long + "\nafter"
	chunks := Split(text, 20)

	found := false
	for _, chunk := range chunks {
		if chunk == long {
			found = true
		}
	}
	if !found {
		t.Fatalf("oversized line not preserved whole, chunks: %q", chunks)
	}
	if got := strings.Join(chunks, "\n"); got != text {
		t.Fatalf("join mismatch: %q", got)
	}
}

func TestSplitCountsRunesNotBytes(t *testing.T) {
	// 30 multi-byte runes fit a limit of 30 even though the byte
	// length is larger.
	text := strings.Repeat("❯", 30)
	chunks := Split(text, 30)
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}
}
