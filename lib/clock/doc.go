// Copyright 2026 The Agent Messenger Bridge Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock abstracts time for the bridge's timers and delays.
//
// The fallback poller is a chain of short timers with cancellation, and
// keystroke submission has a configurable inter-key delay. Testing either
// against the real time package would make every test sleep-based and
// flaky. Production code injects [Real]; tests inject [Fake] and advance
// time explicitly.
//
// Key exports:
//
//   - [Clock] -- the interface (Now, After, AfterFunc, Sleep)
//   - [Real] -- backed by the time package
//   - [Fake] -- deterministic clock driven by Advance
package clock
