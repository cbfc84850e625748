// Copyright 2026 The Agent Messenger Bridge Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/siisee11/agent-messenger-bridge/attach"
	"github.com/siisee11/agent-messenger-bridge/lib/clock"
	"github.com/siisee11/agent-messenger-bridge/messaging"
	"github.com/siisee11/agent-messenger-bridge/runtime"
	"github.com/siisee11/agent-messenger-bridge/state"
	"github.com/siisee11/agent-messenger-bridge/turnlog"
)

// RouterConfig holds the collaborators and tuning for a Router.
type RouterConfig struct {
	// State resolves project names to projects. Required.
	State state.Store

	// Runtime receives keystrokes and serves screen captures. Required.
	Runtime runtime.Runtime

	// Messenger delivers warnings, guidance, and fallback output.
	// Required.
	Messenger messaging.Messenger

	// Tracker owns the acknowledgement lifecycle. Required.
	Tracker *Tracker

	// Clock drives the enter delay and the fallback poll chain. If
	// nil, clock.Real() is used.
	Clock clock.Clock

	// Logger receives structured log output. If nil, slog.Default()
	// is used.
	Logger *slog.Logger

	// TurnLog records fallback deliveries. Nil disables recording.
	TurnLog *turnlog.Log

	// Downloader fetches inbound attachments. Nil disables attachment
	// handling.
	Downloader *attach.Downloader

	// Injector copies attachments into container-mode instances. Nil
	// disables injection.
	Injector attach.Injector

	// ContainerDir is the in-container directory attachments are
	// injected into.
	ContainerDir string

	// Sanitize normalizes inbound text before it reaches the runtime.
	// Returning "" rejects the message. If nil, whitespace trimming
	// is used.
	Sanitize func(string) string

	// EnterDelay returns the pause between typing and Enter for an
	// agent type. Nil means no delay.
	EnterDelay func(agentType string) time.Duration

	// PromptMarker returns the prompt marker for an agent type. Nil
	// means "❯ ".
	PromptMarker func(agentType string) string
}

// Router turns inbound chat messages into agent keystrokes, tracks the
// turn, and guarantees the user eventually sees something even if the
// agent's completion hook never fires.
type Router struct {
	config RouterConfig

	clock  clock.Clock
	logger *slog.Logger

	mu        sync.Mutex
	fallbacks map[instanceKey]*fallbackPoll
}

// NewRouter creates a Router and registers it as the messenger's
// inbound handler.
func NewRouter(config RouterConfig) *Router {
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Sanitize == nil {
		config.Sanitize = strings.TrimSpace
	}
	if config.PromptMarker == nil {
		config.PromptMarker = func(string) string { return "❯ " }
	}

	router := &Router{
		config:    config,
		clock:     config.Clock,
		logger:    config.Logger,
		fallbacks: make(map[instanceKey]*fallbackPoll),
	}
	config.Messenger.OnMessage(router.OnMessage)
	return router
}

// OnMessage handles one inbound chat message end to end: resolve,
// sanitize, submit, track, and arm the fallback poll. Errors that the
// user can act on are reported to the channel; nothing here returns an
// error because there is no caller to hand it to.
func (r *Router) OnMessage(ctx context.Context, msg messaging.Inbound) {
	project, ok := r.config.State.GetProject(msg.ProjectName)
	if !ok {
		r.sendf(ctx, msg.ChannelID, "project %s not found in state", msg.ProjectName)
		return
	}

	instance, ok := project.ResolveInstance(msg.AgentType, msg.ChannelID, msg.InstanceID)
	if !ok {
		r.sendf(ctx, msg.ChannelID, "instance mapping not found")
		return
	}

	text := r.config.Sanitize(msg.Text)
	if text == "" {
		r.sendf(ctx, msg.ChannelID, "Invalid message")
		return
	}

	if len(msg.Attachments) > 0 && r.config.Downloader != nil {
		text += r.handleAttachments(ctx, instance, msg.Attachments)
	}

	r.config.Tracker.MarkPending(ctx, project.Name, msg.AgentType, msg.ChannelID, msg.MessageID, instance.InstanceID)
	r.config.State.UpdateLastActive(project.Name)

	if err := r.submit(project, instance, text, msg.AgentType); err != nil {
		r.logger.Error("keystroke delivery failed",
			"project", project.Name, "window", instance.Window, "error", err)
		r.config.Tracker.MarkError(ctx, project.Name, msg.AgentType, instance.InstanceID)
		r.sendGuidance(ctx, msg.ChannelID, project.Name, err)
		return
	}

	r.scheduleFallback(ctx, project, instance, msg.AgentType, msg.ChannelID)
}

// submit types the message into the instance's window and presses
// Enter, with the configured pause in between. Some agent CLIs only
// recognize a leading "/" command when the keystrokes and Enter are
// separated in time.
func (r *Router) submit(project *state.Project, instance state.AgentInstance, text, agentType string) error {
	if err := r.config.Runtime.TypeKeys(project.RuntimeSession, instance.Window, text, agentType); err != nil {
		return err
	}
	if r.config.EnterDelay != nil {
		if delay := r.config.EnterDelay(agentType); delay > 0 {
			r.clock.Sleep(delay)
		}
	}
	return r.config.Runtime.SendEnter(project.RuntimeSession, instance.Window, agentType)
}

// handleAttachments downloads the message's attachments and, for
// container-mode instances, injects them into the container workspace.
// Failures are logged, never surfaced to chat — the message itself
// still goes through. Returns the marker block to append to the
// forwarded text.
func (r *Router) handleAttachments(ctx context.Context, instance state.AgentInstance, attachments []messaging.Attachment) string {
	localPaths := r.config.Downloader.Download(ctx, attachments)

	if instance.ContainerMode && r.config.Injector != nil {
		for _, localPath := range localPaths {
			if err := r.config.Injector.InjectFile(instance.ContainerID, localPath, r.config.ContainerDir); err != nil {
				r.logger.Warn("container file injection failed",
					"container", instance.ContainerID, "path", localPath, "error", err)
			}
		}
	}

	return attach.BuildFileMarkers(localPaths)
}

// sendGuidance tells the user how to recover from a keystroke
// delivery failure. A missing window has two known fixes; anything
// else gets generic advice.
func (r *Router) sendGuidance(ctx context.Context, channelID, projectName string, err error) {
	if runtime.IsWindowNotFound(err) {
		r.sendf(ctx, channelID,
			"Agent window not found. Recreate it with `new --name %s` or reattach with `attach %s`, then resend your message.",
			projectName, projectName)
		return
	}
	r.sendf(ctx, channelID, "Failed to reach the agent. Confirm the agent is running, then resend your message.")
}

// sendf posts a formatted message, logging (not propagating) failures.
func (r *Router) sendf(ctx context.Context, channelID, format string, args ...any) {
	if err := r.config.Messenger.SendToChannel(ctx, channelID, fmt.Sprintf(format, args...)); err != nil {
		r.logger.Warn("channel send failed", "channel", channelID, "error", err)
	}
}
