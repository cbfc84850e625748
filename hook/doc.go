// Copyright 2026 The Agent Messenger Bridge Authors
// SPDX-License-Identifier: Apache-2.0

// Package hook serves the HTTP surface that agent-side hook scripts
// call to report lifecycle events: turn completion, errors, tool
// activity, and session notifications. Events are dispatched by the
// "type" field of the JSON body and fan back out to chat through the
// messenger and the pending tracker.
//
// Every handler isolates its own failures. A messaging send that fails
// on the primary path returns 500 to the hook script, but the server
// keeps answering subsequent requests; nothing a downstream
// collaborator does can take the endpoint down.
package hook
