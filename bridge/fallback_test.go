// Copyright 2026 The Agent Messenger Bridge Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/siisee11/agent-messenger-bridge/runtime"
)

func TestFallbackDeliversOnceScreenStabilizes(t *testing.T) {
	fx := newRouterFixture(t, func(config *RouterConfig) {
		config.Runtime = &fakeRuntime{buffers: []string{
			"❯ hi\nthinking...", // T+3s: seeds the snapshot
			"❯ hi\ndone: 3 tests passed", // T+5s: changed, T+7s: stable
		}}
	})

	fx.router.OnMessage(context.Background(), inboundMessage("hi"))

	fx.clock.Advance(3 * time.Second)
	fx.clock.Advance(2 * time.Second)
	if texts := fx.messenger.sentTexts(); len(texts) != 0 {
		t.Fatalf("sent before the screen stabilized: %q", texts)
	}

	fx.clock.Advance(2 * time.Second)
	texts := fx.messenger.sentTexts()
	if len(texts) != 1 {
		t.Fatalf("sends = %q, want exactly one", texts)
	}
	want := "```\n❯ hi\ndone: 3 tests passed\n```"
	if texts[0] != want {
		t.Errorf("delivered %q, want %q", texts[0], want)
	}
	if fx.tracker.HasPending("myapp", "claude", "claude-1") {
		t.Error("turn still pending after fallback delivery")
	}
	if len(fx.messenger.replaced) != 1 || fx.messenger.replaced[0].newEmoji != reactionCompleted {
		t.Errorf("completion reaction not set: %+v", fx.messenger.replaced)
	}
}

func TestFallbackGivesUpWhenScreenNeverStabilizes(t *testing.T) {
	fx := newRouterFixture(t, func(config *RouterConfig) {
		config.Runtime = &fakeRuntime{buffers: []string{
			"frame 1", "frame 2", "frame 3", "frame 4",
		}}
	})

	fx.router.OnMessage(context.Background(), inboundMessage("hi"))

	// T+3s seed plus three failed stability checks at T+5/7/9s.
	for i := 0; i < 4; i++ {
		fx.clock.Advance(3 * time.Second)
	}

	if texts := fx.messenger.sentTexts(); len(texts) != 0 {
		t.Fatalf("a changing screen was delivered: %q", texts)
	}
	if fx.clock.PendingWaiters() != 0 {
		t.Errorf("%d waiters still scheduled after giving up", fx.clock.PendingWaiters())
	}
	// The turn stays pending: only the agent's own completion (or a
	// later message) resolves it now.
	if !fx.tracker.HasPending("myapp", "claude", "claude-1") {
		t.Error("giving up resolved the turn")
	}
}

func TestFallbackAbortsWhenHookCompletesFirst(t *testing.T) {
	rt := &fakeRuntime{buffers: []string{"❯ hi\ndone"}}
	fx := newRouterFixture(t, func(config *RouterConfig) {
		config.Runtime = rt
	})

	ctx := context.Background()
	fx.router.OnMessage(ctx, inboundMessage("hi"))
	fx.tracker.MarkCompleted(ctx, "myapp", "claude", "claude-1")

	fx.clock.Advance(10 * time.Second)

	if texts := fx.messenger.sentTexts(); len(texts) != 0 {
		t.Fatalf("fallback delivered after the hook completed: %q", texts)
	}
	rt.mu.Lock()
	captures := rt.captures
	rt.mu.Unlock()
	if captures != 0 {
		t.Errorf("%d captures taken after completion", captures)
	}
}

func TestNewMessageCancelsEarlierFallback(t *testing.T) {
	rt := &fakeRuntime{buffers: []string{"❯ ok\nstable output"}}
	fx := newRouterFixture(t, func(config *RouterConfig) {
		config.Runtime = rt
	})

	ctx := context.Background()
	fx.router.OnMessage(ctx, inboundMessage("first"))
	fx.clock.Advance(time.Second)
	fx.router.OnMessage(ctx, inboundMessage("second"))

	if fx.clock.PendingWaiters() != 1 {
		t.Fatalf("%d waiters after replacement, want 1", fx.clock.PendingWaiters())
	}

	// Run the surviving chain to delivery: seed at T+4s, stable at
	// T+6s. Only one send may ever happen.
	fx.clock.Advance(30 * time.Second)
	texts := fx.messenger.sentTexts()
	if len(texts) != 1 {
		t.Fatalf("sends = %q, want exactly one", texts)
	}
	rt.mu.Lock()
	captures := rt.captures
	rt.mu.Unlock()
	if captures != 2 {
		t.Errorf("captures = %d, want 2 (cancelled chain must not capture)", captures)
	}
}

func TestFallbackDeliversOnlyTheCurrentTurn(t *testing.T) {
	screen := "Welcome to the agent CLI\n" +
		"❯ /help\n" +
		"usage: commands are listed below\n" +
		"❯ /model\n" +
		"Select model\n" +
		" 1. fast\n" +
		" 2. thorough\n" +
		"Enter to confirm\n"
	fx := newRouterFixture(t, func(config *RouterConfig) {
		config.Runtime = &fakeRuntime{buffers: []string{screen}}
	})

	fx.router.OnMessage(context.Background(), inboundMessage("/model"))
	fx.clock.Advance(5 * time.Second)

	texts := fx.messenger.sentTexts()
	if len(texts) != 1 {
		t.Fatalf("sends = %q", texts)
	}
	delivered := texts[0]
	for _, want := range []string{"❯ /model", "Select model", "Enter to confirm"} {
		if !strings.Contains(delivered, want) {
			t.Errorf("delivered %q missing %q", delivered, want)
		}
	}
	for _, unwanted := range []string{"Welcome to the agent CLI", "usage:"} {
		if strings.Contains(delivered, unwanted) {
			t.Errorf("delivered %q contains earlier-turn text %q", delivered, unwanted)
		}
	}
}

func TestFallbackPrefersStyledFrames(t *testing.T) {
	rt := &fakeFrameRuntime{
		fakeRuntime: fakeRuntime{buffers: []string{"raw buffer view"}},
		frame: &runtime.StyledFrame{Lines: []runtime.StyledLine{
			{Segments: []runtime.StyledSegment{{Text: "❯ hi", Style: "bold"}}},
			{Segments: []runtime.StyledSegment{{Text: "styled view"}}},
		}},
	}
	fx := newRouterFixture(t, func(config *RouterConfig) {
		config.Runtime = rt
	})

	fx.router.OnMessage(context.Background(), inboundMessage("hi"))
	fx.clock.Advance(5 * time.Second)

	texts := fx.messenger.sentTexts()
	if len(texts) != 1 || !strings.Contains(texts[0], "styled view") {
		t.Fatalf("sends = %q, want styled frame content", texts)
	}
	rt.mu.Lock()
	bufferCaptures := rt.captures
	rt.mu.Unlock()
	if bufferCaptures != 0 {
		t.Errorf("raw buffer read %d times despite frame support", bufferCaptures)
	}
}

func TestFallbackFrameErrorFallsBackToBuffer(t *testing.T) {
	rt := &fakeFrameRuntime{
		fakeRuntime: fakeRuntime{buffers: []string{"❯ hi\nbuffer view"}},
		frameErr:    runtime.ErrWindowNotFound,
	}
	fx := newRouterFixture(t, func(config *RouterConfig) {
		config.Runtime = rt
	})

	fx.router.OnMessage(context.Background(), inboundMessage("hi"))
	fx.clock.Advance(5 * time.Second)

	texts := fx.messenger.sentTexts()
	if len(texts) != 1 || !strings.Contains(texts[0], "buffer view") {
		t.Fatalf("sends = %q, want buffer content", texts)
	}
}

func TestFallbackBlankCapturesStillBounded(t *testing.T) {
	rt := &fakeRuntime{buffers: []string{"   \n\n"}}
	fx := newRouterFixture(t, func(config *RouterConfig) {
		config.Runtime = rt
	})

	fx.router.OnMessage(context.Background(), inboundMessage("hi"))
	fx.clock.Advance(time.Minute)

	if texts := fx.messenger.sentTexts(); len(texts) != 0 {
		t.Fatalf("blank screen delivered: %q", texts)
	}
	rt.mu.Lock()
	captures := rt.captures
	rt.mu.Unlock()
	// Seed attempt plus three consumed checks, then the chain stops.
	if captures != 4 {
		t.Errorf("captures = %d, want 4", captures)
	}
	if fx.clock.PendingWaiters() != 0 {
		t.Errorf("%d waiters left after giving up", fx.clock.PendingWaiters())
	}
}

func TestFallbackStableButUndeliverableCompletesQuietly(t *testing.T) {
	// The capture is stable and non-empty but reduces to nothing once
	// escape sequences are stripped. The turn completes without a
	// send so the pending reaction does not dangle.
	fx := newRouterFixture(t, func(config *RouterConfig) {
		config.Runtime = &fakeRuntime{buffers: []string{"\x1b[2J\x1b[0m"}}
	})

	fx.router.OnMessage(context.Background(), inboundMessage("hi"))
	fx.clock.Advance(5 * time.Second)

	if texts := fx.messenger.sentTexts(); len(texts) != 0 {
		t.Fatalf("sends = %q, want none", texts)
	}
	if fx.tracker.HasPending("myapp", "claude", "claude-1") {
		t.Error("turn still pending")
	}
	if len(fx.messenger.replaced) != 1 || fx.messenger.replaced[0].newEmoji != reactionCompleted {
		t.Errorf("completion reaction not set: %+v", fx.messenger.replaced)
	}
}

func TestFallbackChainsAreIndependentPerInstance(t *testing.T) {
	fx := newRouterFixture(t, func(config *RouterConfig) {
		config.Runtime = &fakeRuntime{buffers: []string{"❯ x\nshared stable screen"}}
	})

	ctx := context.Background()
	first := inboundMessage("to claude-1")
	second := inboundMessage("to claude-2")
	second.ChannelID = "ch-2"
	second.MessageID = "msg-2"

	fx.router.OnMessage(ctx, first)
	fx.router.OnMessage(ctx, second)

	if fx.clock.PendingWaiters() != 2 {
		t.Fatalf("%d waiters, want one chain per instance", fx.clock.PendingWaiters())
	}

	fx.clock.Advance(5 * time.Second)
	texts := fx.messenger.sentTexts()
	if len(texts) != 2 {
		t.Fatalf("sends = %q, want one per instance", texts)
	}

	channels := map[string]bool{}
	fx.messenger.mu.Lock()
	for _, send := range fx.messenger.sends {
		channels[send.channelID] = true
	}
	fx.messenger.mu.Unlock()
	if !channels["ch-1"] || !channels["ch-2"] {
		t.Errorf("deliveries went to %v, want ch-1 and ch-2", channels)
	}
}
