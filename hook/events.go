// Copyright 2026 The Agent Messenger Bridge Authors
// SPDX-License-Identifier: Apache-2.0

package hook

// Event types accepted on POST /opencode-event. The agent adapters
// (Claude, Codex, OpenCode, Gemini hook scripts) all produce this one
// wire shape; the bridge never learns agent-specific launch details.
const (
	EventSessionIdle  = "session.idle"
	EventSessionError = "session.error"
	EventToolActivity = "tool.activity"

	EventSessionStart        = "session.start"
	EventSessionEnd          = "session.end"
	EventSessionNotification = "session.notification"
)

// Event is the tagged union posted by agent hook scripts. Which fields
// are meaningful depends on Type; unknown fields are ignored.
type Event struct {
	// Type selects the handler. One of the Event* constants.
	Type string `json:"type"`

	// ProjectName keys into the state store. Required for all types.
	ProjectName string `json:"projectName"`

	// AgentType identifies the agent CLI family.
	AgentType string `json:"agentType"`

	// InstanceID names the instance within the project. Defaults to
	// the agent type when omitted.
	InstanceID string `json:"instanceId,omitempty"`

	// Text is the turn output (session.idle/session.error), the tool
	// description (tool.activity), or the notification body.
	Text string `json:"text,omitempty"`

	// TurnText is an alternate carrier for the turn output; some hook
	// scripts populate it instead of Text.
	TurnText string `json:"turnText,omitempty"`

	// Thinking is the agent's reasoning trace, delivered as a
	// threaded reply when the platform supports threads.
	Thinking string `json:"thinking,omitempty"`

	// IntermediateText is partial output produced before the final
	// text, also delivered as a threaded reply.
	IntermediateText string `json:"intermediateText,omitempty"`

	// PromptText is a formatted interactive prompt (e.g. a
	// multiple-choice question) sent as an additional channel message.
	PromptText string `json:"promptText,omitempty"`
}

// body returns the turn output, preferring Text over TurnText.
func (e *Event) body() string {
	if e.Text != "" {
		return e.Text
	}
	return e.TurnText
}

// sendFilesRequest is the body of POST /send-files.
type sendFilesRequest struct {
	ProjectName string   `json:"projectName"`
	AgentType   string   `json:"agentType"`
	InstanceID  string   `json:"instanceId,omitempty"`
	Text        string   `json:"text,omitempty"`
	FilePaths   []string `json:"filePaths"`
}
