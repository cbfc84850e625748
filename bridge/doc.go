// Copyright 2026 The Agent Messenger Bridge Authors
// SPDX-License-Identifier: Apache-2.0

// Package bridge is the delivery engine between chat channels and
// agent processes running in runtime windows.
//
// Three cooperating pieces live here:
//
//   - [Tracker] owns per-instance acknowledgement state for in-flight
//     turns: the ⏳/✅/❌ reaction lifecycle on the user's message, the
//     "Processing…" placeholder used as a thread anchor, and a short
//     trailing cache of just-completed turns so late tool-activity
//     events can still find their anchor.
//
//   - [Router] consumes inbound chat messages, resolves the target
//     agent instance by channel identity, forwards keystrokes to the
//     runtime, and arms the fallback poller.
//
//   - The fallback poller guarantees the user eventually sees
//     something even when the agent's own completion hook never fires:
//     it samples the runtime window until the screen stops changing,
//     then delivers the current turn's output as a code block.
//
// All timers go through lib/clock, so the whole engine is
// deterministic under test.
package bridge
