// Copyright 2026 The Agent Messenger Bridge Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import "context"

// Messenger is the chat-platform client surface the bridge requires.
// All methods are safe for concurrent use. Methods return an error for
// transport failures; the bridge decides per call site whether a
// failure is fatal, user-visible, or fire-and-forget.
type Messenger interface {
	// SendToChannel posts text to a channel.
	SendToChannel(ctx context.Context, channelID, text string) error

	// SendToChannelWithFiles posts text with file attachments read
	// from local paths.
	SendToChannelWithFiles(ctx context.Context, channelID, text string, filePaths []string) error

	// AddReaction adds an emoji reaction to a message.
	AddReaction(ctx context.Context, channelID, messageID, emoji string) error

	// ReplaceReaction swaps the bot's own reaction on a message. On
	// platforms without an atomic swap this is remove-then-add.
	ReplaceReaction(ctx context.Context, channelID, messageID, oldEmoji, newEmoji string) error

	// OnMessage registers the handler invoked for each inbound chat
	// message. Registration replaces any previous handler.
	OnMessage(handler InboundHandler)
}

// IDSender is an optional capability: sending a message and learning
// its platform-assigned id, so later replies can thread under it.
type IDSender interface {
	// SendToChannelWithID posts text and returns the sent message's id.
	SendToChannelWithID(ctx context.Context, channelID, text string) (string, error)
}

// ThreadReplier is an optional capability: posting a reply threaded
// under an anchor message.
type ThreadReplier interface {
	// ReplyInThread posts text as a threaded reply under the anchor.
	ReplyInThread(ctx context.Context, channelID, anchorMessageID, text string) error
}

// InboundHandler receives inbound chat messages. Implementations must
// not block the messenger's event loop; the router dispatches its own
// goroutine per message.
type InboundHandler func(ctx context.Context, msg Inbound)

// Inbound is one inbound chat message, already mapped by the platform
// adapter to an agent type and project.
type Inbound struct {
	// AgentType identifies the agent CLI family ("claude", "codex",
	// "opencode", "gemini").
	AgentType string

	// Text is the raw message body.
	Text string

	// ProjectName keys into the state store.
	ProjectName string

	// ChannelID is the channel the message arrived on. Instance
	// resolution is by channel identity.
	ChannelID string

	// MessageID is the platform id of the user's message, used for
	// reaction acknowledgements. Empty when the platform does not
	// expose it.
	MessageID string

	// InstanceID optionally names the target instance directly,
	// bypassing channel-based resolution.
	InstanceID string

	// Attachments lists files attached to the message.
	Attachments []Attachment
}

// Attachment describes one file attached to an inbound message.
type Attachment struct {
	// URL is where the platform serves the file content.
	URL string

	// Filename is the attachment's declared name, used for the local
	// file name when safe.
	Filename string

	// ContentType is the declared MIME type, if any.
	ContentType string

	// Size is the declared size in bytes, zero when unknown.
	Size int64
}
