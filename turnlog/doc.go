// Copyright 2026 The Agent Messenger Bridge Authors
// SPDX-License-Identifier: Apache-2.0

// Package turnlog persists a per-turn lifecycle audit trail to SQLite.
//
// Every turn the bridge tracks gets a row per transition: pending when
// the user's message is submitted, then completed, error, or
// fallback-delivered. Operators query the log to answer "did the agent
// ever answer, and how" after the fact; nothing in the bridge's hot
// path reads it back.
//
// The log is optional: a nil *Log is a valid receiver and every method
// on it is a no-op, so callers never need to branch on whether logging
// is configured.
package turnlog
