// Copyright 2026 The Agent Messenger Bridge Authors
// SPDX-License-Identifier: Apache-2.0

// Package messaging defines the chat-platform client interface the
// bridge drives. One implementation exists per platform; the bridge
// core is platform-agnostic and never sees a wire protocol.
//
// Capabilities vary across platforms. Everything a platform must
// support is on [Messenger]; retrieving the id of a sent message and
// threaded replies are optional and modeled as the [IDSender] and
// [ThreadReplier] sub-interfaces. Callers type-assert and fall back
// when the capability is absent — never by reflection.
//
// Key exports:
//
//   - [Messenger] -- required send/reaction surface
//   - [IDSender], [ThreadReplier] -- optional capabilities
//   - [Inbound] -- an inbound chat message handed to the router
//   - [Split] -- length-limited splitting at newline boundaries
package messaging
