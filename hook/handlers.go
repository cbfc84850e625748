// Copyright 2026 The Agent Messenger Bridge Authors
// SPDX-License-Identifier: Apache-2.0

package hook

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"regexp"
	"strings"

	"github.com/siisee11/agent-messenger-bridge/bridge"
	"github.com/siisee11/agent-messenger-bridge/messaging"
	"github.com/siisee11/agent-messenger-bridge/state"
)

// handleEvent dispatches POST /opencode-event by the body's type tag.
func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	var event Event
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		writeError(w, http.StatusBadRequest, "malformed JSON: %v", err)
		return
	}

	project, ok := s.config.State.GetProject(event.ProjectName)
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown project %q", event.ProjectName)
		return
	}

	switch event.Type {
	case EventSessionIdle:
		s.handleTurnFinished(w, r, project, event, false)
	case EventSessionError:
		s.handleTurnFinished(w, r, project, event, true)
	case EventToolActivity:
		s.handleToolActivity(w, r, project, event)
	case EventSessionStart, EventSessionEnd, EventSessionNotification:
		s.handleInformational(w, r, project, event)
	default:
		writeError(w, http.StatusBadRequest, "unknown event type %q", event.Type)
	}
}

// handleTurnFinished covers session.idle and session.error — the same
// delivery pipeline, differing only in the final tracker transition
// and the framing of the text.
func (s *Server) handleTurnFinished(w http.ResponseWriter, r *http.Request, project *state.Project, event Event, isError bool) {
	ctx := r.Context()
	instanceID := defaultInstanceID(event.AgentType, event.InstanceID)

	channelID, ok := project.ChannelFor(event.AgentType, instanceID)
	if !ok {
		writeError(w, http.StatusBadRequest, "no channel mapping for %s/%s", event.AgentType, instanceID)
		return
	}

	// Runtime-initiated turns (the agent spoke without a user message)
	// have no pending entry yet; establish one so the acknowledgement
	// lifecycle stays uniform.
	entry, ok := s.config.Tracker.GetPending(project.Name, event.AgentType, instanceID)
	if !ok {
		var err error
		entry, err = s.config.Tracker.EnsurePending(ctx, project.Name, event.AgentType, channelID, instanceID)
		if err != nil {
			s.logger.Error("establishing pending entry failed",
				"project", project.Name, "instance", instanceID, "error", err)
			writeError(w, http.StatusInternalServerError, "pending entry unavailable")
			return
		}
	}

	if event.Thinking != "" {
		s.threadReply(ctx, channelID, entry,
			fmt.Sprintf("🧠 *Reasoning*\n```\n%s\n```", event.Thinking))
	}
	if event.IntermediateText != "" {
		s.threadReply(ctx, channelID, entry, event.IntermediateText)
	}

	text := event.body()
	if text == "" {
		// Nothing to say; the turn still resolves so the reaction
		// does not dangle.
		s.finishTurn(ctx, project.Name, event.AgentType, instanceID, isError)
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}

	cleaned, files := extractWorkspaceFiles(text, project.Path)
	if isError && cleaned != "" {
		cleaned = "❌ **Error**\n" + cleaned
	}

	if cleaned != "" {
		if err := s.sendText(ctx, channelID, cleaned); err != nil {
			s.logger.Error("turn output send failed", "channel", channelID, "error", err)
			writeError(w, http.StatusInternalServerError, "send failed")
			return
		}
	}
	if len(files) > 0 {
		if err := s.config.Messenger.SendToChannelWithFiles(ctx, channelID, "", files); err != nil {
			s.logger.Error("turn file send failed", "channel", channelID, "error", err)
			writeError(w, http.StatusInternalServerError, "file send failed")
			return
		}
	}
	if event.PromptText != "" {
		if err := s.config.Messenger.SendToChannel(ctx, channelID, event.PromptText); err != nil {
			s.logger.Error("prompt send failed", "channel", channelID, "error", err)
			writeError(w, http.StatusInternalServerError, "send failed")
			return
		}
	}

	// The primary output is already delivered; a tracker hiccup past
	// this point is logged inside the tracker, not surfaced.
	s.finishTurn(ctx, project.Name, event.AgentType, instanceID, isError)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) finishTurn(ctx context.Context, project, agentType, instanceID string, isError bool) {
	if isError {
		s.config.Tracker.MarkError(ctx, project, agentType, instanceID)
		return
	}
	s.config.Tracker.MarkCompleted(ctx, project, agentType, instanceID)
}

// handleToolActivity thread-replies an in-progress tool call under the
// turn's placeholder message. It never completes or errors the turn.
func (s *Server) handleToolActivity(w http.ResponseWriter, r *http.Request, project *state.Project, event Event) {
	ctx := r.Context()
	instanceID := defaultInstanceID(event.AgentType, event.InstanceID)

	channelID, ok := project.ChannelFor(event.AgentType, instanceID)
	if !ok {
		writeError(w, http.StatusBadRequest, "no channel mapping for %s/%s", event.AgentType, instanceID)
		return
	}

	entry, existed := s.config.Tracker.GetPending(project.Name, event.AgentType, instanceID)
	if !existed {
		// First sign of life from a runtime-initiated turn: establish
		// the entry, but there is no placeholder yet to anchor a
		// reply on, so deliver nothing.
		if _, err := s.config.Tracker.EnsurePending(ctx, project.Name, event.AgentType, channelID, instanceID); err != nil {
			s.logger.Error("establishing pending entry failed",
				"project", project.Name, "instance", instanceID, "error", err)
			writeError(w, http.StatusInternalServerError, "pending entry unavailable")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}

	text := event.body()
	if text != "" && entry.StartMessageID != "" {
		if replier, ok := s.config.Messenger.(messaging.ThreadReplier); ok {
			if err := replier.ReplyInThread(ctx, channelID, entry.StartMessageID, text); err != nil {
				s.logger.Error("tool activity reply failed", "channel", channelID, "error", err)
				writeError(w, http.StatusInternalServerError, "send failed")
				return
			}
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleInformational forwards session.start/end/notification as plain
// channel messages. Best-effort: these never fail the request and
// never touch the pending lifecycle.
func (s *Server) handleInformational(w http.ResponseWriter, r *http.Request, project *state.Project, event Event) {
	instanceID := defaultInstanceID(event.AgentType, event.InstanceID)

	channelID, ok := project.ChannelFor(event.AgentType, instanceID)
	if ok {
		text := event.body()
		if text == "" {
			switch event.Type {
			case EventSessionStart:
				text = fmt.Sprintf("▶️ %s session started", event.AgentType)
			case EventSessionEnd:
				text = fmt.Sprintf("⏹️ %s session ended", event.AgentType)
			}
		}
		if text != "" {
			if err := s.config.Messenger.SendToChannel(r.Context(), channelID, text); err != nil {
				s.logger.Warn("notification send failed", "channel", channelID, "error", err)
			}
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// sendText splits text at newline boundaries under the message limit
// and sends the chunks in order. Joining the sent chunks with "\n"
// reproduces the original text exactly.
func (s *Server) sendText(ctx context.Context, channelID, text string) error {
	for _, chunk := range messaging.Split(text, s.limit) {
		if err := s.config.Messenger.SendToChannel(ctx, channelID, chunk); err != nil {
			return err
		}
	}
	return nil
}

// threadReply posts text as a threaded reply under the turn's
// placeholder message. Silently skipped when the platform has no
// thread capability or the turn has no placeholder; failures are
// logged and swallowed, never surfaced to the hook script.
func (s *Server) threadReply(ctx context.Context, channelID string, entry bridge.PendingEntry, text string) {
	replier, ok := s.config.Messenger.(messaging.ThreadReplier)
	if !ok || entry.StartMessageID == "" {
		return
	}
	if err := replier.ReplyInThread(ctx, channelID, entry.StartMessageID, text); err != nil {
		s.logger.Warn("thread reply failed", "channel", channelID, "error", err)
	}
}

// extractWorkspaceFiles pulls workspace-absolute file paths out of the
// turn text. The referenced files are delivered as uploads instead of
// inline paths the chat user cannot open. Only paths that exist as
// regular files are extracted; anything else stays in the text.
func extractWorkspaceFiles(text, workspace string) (string, []string) {
	if workspace == "" || !strings.Contains(text, workspace) {
		return text, nil
	}

	pattern := regexp.MustCompile(regexp.QuoteMeta(workspace) + `/[^\s"'\)\]]+`)
	var files []string
	seen := map[string]bool{}
	for _, match := range pattern.FindAllString(text, -1) {
		if seen[match] {
			continue
		}
		seen[match] = true
		if info, err := os.Stat(match); err == nil && info.Mode().IsRegular() {
			files = append(files, match)
		}
	}
	if len(files) == 0 {
		return text, nil
	}

	cleaned := text
	for _, file := range files {
		cleaned = strings.ReplaceAll(cleaned, file, "")
	}
	return strings.TrimSpace(cleaned), files
}
