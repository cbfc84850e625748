// Copyright 2026 The Agent Messenger Bridge Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"context"
	"fmt"
	"time"

	"github.com/siisee11/agent-messenger-bridge/lib/clock"
	"github.com/siisee11/agent-messenger-bridge/runtime"
	"github.com/siisee11/agent-messenger-bridge/state"
	"github.com/siisee11/agent-messenger-bridge/turnlog"
)

// Fallback poll timing. The first check waits long enough for the
// agent to start producing output; subsequent checks compare
// successive screen captures until the screen stops changing.
const (
	fallbackInitialDelay   = 3 * time.Second
	fallbackCheckInterval  = 2 * time.Second
	fallbackStabilityCheck = 3 // comparisons before giving up
)

// fallbackPoll is the per-instance timer chain that captures and
// delivers raw terminal output when the agent never reports
// completion. At most one live poll exists per instance key; a new
// message for the key cancels the previous chain before starting its
// own, and a cancelled chain performs no further side effects.
type fallbackPoll struct {
	key       instanceKey
	session   string
	window    string
	agentType string
	channelID string

	timer           *clock.Timer
	checksRemaining int
	lastSnapshot    string
	hasSnapshot     bool
	cancelled       bool
}

// scheduleFallback arms the fallback chain for the instance, replacing
// (and cancelling) any previous chain for the same key. State for
// different keys is fully independent.
func (r *Router) scheduleFallback(ctx context.Context, project *state.Project, instance state.AgentInstance, agentType, inboundChannelID string) {
	key := newInstanceKey(project.Name, agentType, instance.InstanceID)

	channelID := instance.ChannelID
	if channelID == "" {
		// Legacy projects may have no channel mapping for the agent
		// type; deliveries then go to wherever the message came from.
		channelID = inboundChannelID
	}

	poll := &fallbackPoll{
		key:             key,
		session:         project.RuntimeSession,
		window:          instance.Window,
		agentType:       agentType,
		channelID:       channelID,
		checksRemaining: fallbackStabilityCheck,
	}

	r.mu.Lock()
	if previous, ok := r.fallbacks[key]; ok {
		previous.cancel()
	}
	r.fallbacks[key] = poll
	poll.timer = r.clock.AfterFunc(fallbackInitialDelay, func() {
		r.fallbackStep(ctx, poll, true)
	})
	r.mu.Unlock()
}

// cancel stops the chain's pending timer and marks it dead. Callers
// hold r.mu.
func (p *fallbackPoll) cancel() {
	p.cancelled = true
	if p.timer != nil {
		p.timer.Stop()
	}
}

// finishFallback removes a chain that ran to its natural end. Holding
// the map slot until now is what lets a newer message reliably cancel
// an older chain.
func (r *Router) finishFallback(poll *fallbackPoll) {
	r.mu.Lock()
	if r.fallbacks[poll.key] == poll {
		delete(r.fallbacks, poll.key)
	}
	r.mu.Unlock()
}

// fallbackStep runs one check of the chain. The initial step only
// seeds the snapshot; each later step consumes one stability check and
// delivers when two successive captures are identical.
func (r *Router) fallbackStep(ctx context.Context, poll *fallbackPoll, initial bool) {
	r.mu.Lock()
	if poll.cancelled {
		r.mu.Unlock()
		return
	}
	r.mu.Unlock()

	// The hook may have completed the turn while we waited.
	if !r.config.Tracker.HasPending(poll.key.project, poll.key.agentType, poll.key.instanceID) {
		r.finishFallback(poll)
		return
	}

	snapshot, captured := r.captureSnapshot(poll.session, poll.window)

	r.mu.Lock()
	if poll.cancelled {
		// A new message arrived during the capture; no stale side
		// effects past this point.
		r.mu.Unlock()
		return
	}

	stable := captured && poll.hasSnapshot && snapshot == poll.lastSnapshot
	if captured {
		poll.lastSnapshot = snapshot
		poll.hasSnapshot = true
	}

	if !initial && !stable {
		poll.checksRemaining--
	}
	exhausted := poll.checksRemaining <= 0

	if !stable && !exhausted {
		poll.timer = r.clock.AfterFunc(fallbackCheckInterval, func() {
			r.fallbackStep(ctx, poll, false)
		})
		r.mu.Unlock()
		return
	}
	r.mu.Unlock()

	if stable {
		r.deliverFallback(ctx, poll, snapshot)
	}
	// Exhausted without stabilizing: give up silently — never send a
	// changing buffer.
	r.finishFallback(poll)
}

// captureSnapshot reads the window's current screen, preferring a
// styled frame when the runtime can produce one. An error or an
// effectively empty capture counts as "no snapshot yet" — the chain
// keeps polling rather than deliver it.
func (r *Router) captureSnapshot(session, window string) (string, bool) {
	if capturer, ok := r.config.Runtime.(runtime.FrameCapturer); ok {
		frame, err := capturer.WindowFrame(session, window)
		if err == nil && frame != nil {
			flattened := FlattenFrame(frame)
			if len(flattened) > 0 {
				return flattened, true
			}
		}
		if err != nil {
			r.logger.Debug("frame capture failed; falling back to buffer",
				"session", session, "window", window, "error", err)
		}
	}

	buffer, err := r.config.Runtime.WindowBuffer(session, window)
	if err != nil {
		r.logger.Debug("buffer capture failed", "session", session, "window", window, "error", err)
		return "", false
	}
	if isBlank(buffer) {
		return "", false
	}
	return buffer, true
}

// deliverFallback cleans the stabilized capture and posts it as a
// code block, completing the turn.
func (r *Router) deliverFallback(ctx context.Context, poll *fallbackPoll, snapshot string) {
	text := ExtractTurn(snapshot, r.config.PromptMarker(poll.agentType))
	if text == "" {
		// Nothing deliverable on screen; the turn still completes so
		// the ⏳ does not dangle forever.
		r.config.Tracker.MarkCompleted(ctx, poll.key.project, poll.key.agentType, poll.key.instanceID)
		return
	}

	entry, _ := r.config.Tracker.GetPending(poll.key.project, poll.key.agentType, poll.key.instanceID)
	r.sendf(ctx, poll.channelID, "```\n%s\n```", text)
	r.config.Tracker.MarkCompleted(ctx, poll.key.project, poll.key.agentType, poll.key.instanceID)

	r.config.TurnLog.Record(ctx, turnlog.Entry{
		TurnID: entry.TurnID, Project: poll.key.project, AgentType: poll.key.agentType,
		InstanceID: poll.key.instanceID, ChannelID: poll.channelID,
		Event: turnlog.EventFallback, Detail: fmt.Sprintf("%d bytes", len(text)),
	})
}

// isBlank reports whether a capture has no visible content.
func isBlank(s string) bool {
	for _, r := range s {
		switch r {
		case ' ', '\t', '\n', '\r':
		default:
			return false
		}
	}
	return true
}
