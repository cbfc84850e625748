// Copyright 2026 The Agent Messenger Bridge Authors
// SPDX-License-Identifier: Apache-2.0

// Package state holds the bridge's view of configured projects and
// their agent instances.
//
// The bridge core only reads this state: projects are created and
// edited externally (by an operator or a provisioning tool) in a JSONC
// file. [FileStore] parses the file, validates the channel↔instance
// bijection, and serves immutable snapshots. A reload — explicit via
// [FileStore.Reload] (the /reload hook endpoint) or automatic via
// fsnotify — replaces the whole snapshot; in-flight turns keep the
// project value they resolved at submission time.
//
// Key exports:
//
//   - [Project], [AgentInstance] -- the data model
//   - [Store] -- the read interface the bridge core consumes
//   - [FileStore] -- the JSONC-file-backed implementation
package state
