// Copyright 2026 The Agent Messenger Bridge Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/siisee11/agent-messenger-bridge/lib/clock"
	"github.com/siisee11/agent-messenger-bridge/messaging"
	"github.com/siisee11/agent-messenger-bridge/turnlog"
)

// Acknowledgement reactions and the placeholder posted when a turn
// starts.
const (
	reactionPending   = "⏳"
	reactionCompleted = "✅"
	reactionError     = "❌"

	processingPlaceholder = "⏳ Processing..."
)

// recentCompletedTTL is how long a completed turn stays queryable via
// GetPending. Hook events routinely race slightly behind completion
// (a tool.activity arriving just after session.idle), so the entry
// must outlive the turn by a beat. Tunable constant, not a business
// rule.
const recentCompletedTTL = 10 * time.Second

// instanceKey identifies one agent instance's acknowledgement state.
type instanceKey struct {
	project    string
	agentType  string
	instanceID string
}

// newInstanceKey builds a key, defaulting the instance id to the agent
// type so single-instance projects work without explicit ids.
func newInstanceKey(project, agentType, instanceID string) instanceKey {
	if instanceID == "" {
		instanceID = agentType
	}
	return instanceKey{project: project, agentType: agentType, instanceID: instanceID}
}

// PendingEntry is the tracked acknowledgement state for one in-flight
// turn.
type PendingEntry struct {
	// TurnID uniquely identifies the turn across logs and the turn
	// event log.
	TurnID string

	// ChannelID is the channel the turn belongs to.
	ChannelID string

	// MessageID is the user's message, target of reaction updates.
	// Empty for runtime-initiated turns.
	MessageID string

	// StartMessageID is the bot's placeholder message, the anchor for
	// threaded replies. Empty when the platform cannot return sent
	// message ids.
	StartMessageID string
}

// recentEntry is a completed entry retained for late-arriving events.
type recentEntry struct {
	entry   PendingEntry
	expires time.Time
}

// TrackerConfig holds parameters for creating a Tracker.
type TrackerConfig struct {
	// Messenger delivers reactions and the placeholder message.
	// Required.
	Messenger messaging.Messenger

	// Clock drives the recently-completed retention window. If nil,
	// clock.Real() is used.
	Clock clock.Clock

	// Logger receives structured log output. If nil, slog.Default()
	// is used.
	Logger *slog.Logger

	// TurnLog records lifecycle transitions. Nil disables recording.
	TurnLog *turnlog.Log
}

// Tracker is the per-instance acknowledgement state machine. All
// methods are safe for concurrent use, and none of them ever fails on
// a messaging error: reactions and placeholders are attempted once and
// swallowed, because acknowledgement cosmetics must never block or
// fail a turn.
type Tracker struct {
	messenger messaging.Messenger
	clock     clock.Clock
	logger    *slog.Logger
	turnLog   *turnlog.Log

	mu     sync.Mutex
	active map[instanceKey]PendingEntry
	recent map[instanceKey]recentEntry
}

// NewTracker creates a Tracker.
func NewTracker(config TrackerConfig) *Tracker {
	clk := config.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		messenger: config.Messenger,
		clock:     clk,
		logger:    logger,
		turnLog:   config.TurnLog,
		active:    make(map[instanceKey]PendingEntry),
		recent:    make(map[instanceKey]recentEntry),
	}
}

// MarkPending records a new in-flight turn, overwriting any existing
// entry for the key (a second user message before the first completes
// replaces it). Adds the ⏳ reaction to messageID when present and
// posts the placeholder message to obtain a thread anchor when the
// platform supports message ids. Both are best-effort.
func (t *Tracker) MarkPending(ctx context.Context, project, agentType, channelID, messageID, instanceID string) PendingEntry {
	key := newInstanceKey(project, agentType, instanceID)

	entry := PendingEntry{
		TurnID:    uuid.NewString(),
		ChannelID: channelID,
		MessageID: messageID,
	}

	if messageID != "" {
		if err := t.messenger.AddReaction(ctx, channelID, messageID, reactionPending); err != nil {
			t.logger.Warn("pending reaction failed", "channel", channelID, "error", err)
		}
	}

	if sender, ok := t.messenger.(messaging.IDSender); ok {
		startMessageID, err := sender.SendToChannelWithID(ctx, channelID, processingPlaceholder)
		if err != nil {
			t.logger.Warn("placeholder send failed", "channel", channelID, "error", err)
		} else {
			entry.StartMessageID = startMessageID
		}
	}

	t.mu.Lock()
	t.active[key] = entry
	t.mu.Unlock()

	t.turnLog.Record(ctx, turnlog.Entry{
		TurnID: entry.TurnID, Project: project, AgentType: agentType,
		InstanceID: key.instanceID, ChannelID: channelID, Event: turnlog.EventPending,
	})
	return entry
}

// MarkCompleted acknowledges a successful turn: ⏳ becomes ✅ and the
// entry moves to the recently-completed cache. No-op — no messenger
// calls — when no active entry exists.
func (t *Tracker) MarkCompleted(ctx context.Context, project, agentType, instanceID string) {
	t.resolve(ctx, project, agentType, instanceID, reactionCompleted, turnlog.EventCompleted)
}

// MarkError acknowledges a failed turn: ⏳ becomes ❌ and the entry
// moves to the recently-completed cache. No-op when no active entry
// exists.
func (t *Tracker) MarkError(ctx context.Context, project, agentType, instanceID string) {
	t.resolve(ctx, project, agentType, instanceID, reactionError, turnlog.EventError)
}

// resolve retires an active entry with the given final reaction.
func (t *Tracker) resolve(ctx context.Context, project, agentType, instanceID, reaction string, event turnlog.Event) {
	key := newInstanceKey(project, agentType, instanceID)

	t.mu.Lock()
	entry, ok := t.active[key]
	if ok {
		delete(t.active, key)
		t.recent[key] = recentEntry{entry: entry, expires: t.clock.Now().Add(recentCompletedTTL)}
	}
	t.mu.Unlock()

	if !ok {
		return
	}

	if entry.MessageID != "" {
		err := t.messenger.ReplaceReaction(ctx, entry.ChannelID, entry.MessageID, reactionPending, reaction)
		if err != nil {
			t.logger.Warn("reaction update failed",
				"channel", entry.ChannelID, "reaction", reaction, "error", err)
		}
	}

	t.turnLog.Record(ctx, turnlog.Entry{
		TurnID: entry.TurnID, Project: project, AgentType: agentType,
		InstanceID: key.instanceID, ChannelID: entry.ChannelID, Event: event,
	})
}

// HasPending reports whether an active entry exists for the key. The
// recently-completed cache is not consulted.
func (t *Tracker) HasPending(project, agentType, instanceID string) bool {
	key := newInstanceKey(project, agentType, instanceID)
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.active[key]
	return ok
}

// GetPending returns the active entry for the key, or the
// recently-completed one while it is within its retention window.
func (t *Tracker) GetPending(project, agentType, instanceID string) (PendingEntry, bool) {
	key := newInstanceKey(project, agentType, instanceID)
	t.mu.Lock()
	defer t.mu.Unlock()

	if entry, ok := t.active[key]; ok {
		return entry, true
	}
	if recent, ok := t.recent[key]; ok {
		if t.clock.Now().Before(recent.expires) {
			return recent.entry, true
		}
		delete(t.recent, key)
	}
	return PendingEntry{}, false
}

// EnsurePending establishes an entry for a runtime-initiated turn: if
// no active or recent entry exists, it marks one pending with no user
// message. Safe to call redundantly.
func (t *Tracker) EnsurePending(ctx context.Context, project, agentType, channelID, instanceID string) (PendingEntry, error) {
	if entry, ok := t.GetPending(project, agentType, instanceID); ok {
		return entry, nil
	}
	return t.MarkPending(ctx, project, agentType, channelID, "", instanceID), nil
}
