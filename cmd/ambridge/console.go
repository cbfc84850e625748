// Copyright 2026 The Agent Messenger Bridge Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/siisee11/agent-messenger-bridge/messaging"
)

// consoleMessenger is a development transport: inbound messages are
// read as stdin lines of the form
//
//	<project> <agentType> <channel> <text...>
//
// and outbound messages are printed to stdout. It deliberately
// implements only the required Messenger surface — no message ids, no
// threads — so running against it exercises the same code paths as a
// platform without those capabilities.
type consoleMessenger struct {
	out    io.Writer
	logger *slog.Logger

	mu      sync.Mutex
	handler messaging.InboundHandler
	nextID  int
}

func newConsoleMessenger(out io.Writer, logger *slog.Logger) *consoleMessenger {
	return &consoleMessenger{out: out, logger: logger}
}

// Run reads inbound lines until EOF or context cancellation.
func (c *consoleMessenger) Run(ctx context.Context, in io.Reader) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		fields := strings.SplitN(line, " ", 4)
		if len(fields) < 4 {
			fmt.Fprintln(c.out, "usage: <project> <agentType> <channel> <text>")
			continue
		}

		c.mu.Lock()
		handler := c.handler
		c.nextID++
		messageID := fmt.Sprintf("console-%d", c.nextID)
		c.mu.Unlock()
		if handler == nil {
			continue
		}

		handler(ctx, messaging.Inbound{
			ProjectName: fields[0],
			AgentType:   fields[1],
			ChannelID:   fields[2],
			Text:        fields[3],
			MessageID:   messageID,
		})
	}
	if err := scanner.Err(); err != nil {
		c.logger.Warn("console input failed", "error", err)
	}
}

func (c *consoleMessenger) SendToChannel(ctx context.Context, channelID, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := fmt.Fprintf(c.out, "[%s] %s\n", channelID, text)
	return err
}

func (c *consoleMessenger) SendToChannelWithFiles(ctx context.Context, channelID, text string, filePaths []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := fmt.Fprintf(c.out, "[%s] %s (files: %s)\n", channelID, text, strings.Join(filePaths, ", "))
	return err
}

func (c *consoleMessenger) AddReaction(ctx context.Context, channelID, messageID, emoji string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := fmt.Fprintf(c.out, "[%s] %s reacts %s\n", channelID, messageID, emoji)
	return err
}

func (c *consoleMessenger) ReplaceReaction(ctx context.Context, channelID, messageID, oldEmoji, newEmoji string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := fmt.Fprintf(c.out, "[%s] %s reacts %s (was %s)\n", channelID, messageID, newEmoji, oldEmoji)
	return err
}

func (c *consoleMessenger) OnMessage(handler messaging.InboundHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handler = handler
}
