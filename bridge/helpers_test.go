// Copyright 2026 The Agent Messenger Bridge Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/siisee11/agent-messenger-bridge/messaging"
	"github.com/siisee11/agent-messenger-bridge/runtime"
	"github.com/siisee11/agent-messenger-bridge/state"
)

// fakeMessenger records every call. It implements only the required
// Messenger surface — no message ids, no threads — so tests exercise
// the capability-absent paths by default.
type fakeMessenger struct {
	mu       sync.Mutex
	handler  messaging.InboundHandler
	sends    []channelSend
	files    []fileSend
	added    []reactionCall
	replaced []replaceCall

	sendErr     error
	reactionErr error
}

type channelSend struct {
	channelID string
	text      string
}

type fileSend struct {
	channelID string
	text      string
	paths     []string
}

type reactionCall struct {
	channelID string
	messageID string
	emoji     string
}

type replaceCall struct {
	channelID string
	messageID string
	oldEmoji  string
	newEmoji  string
}

func (m *fakeMessenger) SendToChannel(ctx context.Context, channelID, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return m.sendErr
	}
	m.sends = append(m.sends, channelSend{channelID, text})
	return nil
}

func (m *fakeMessenger) SendToChannelWithFiles(ctx context.Context, channelID, text string, filePaths []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return m.sendErr
	}
	m.files = append(m.files, fileSend{channelID, text, filePaths})
	return nil
}

func (m *fakeMessenger) AddReaction(ctx context.Context, channelID, messageID, emoji string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.reactionErr != nil {
		return m.reactionErr
	}
	m.added = append(m.added, reactionCall{channelID, messageID, emoji})
	return nil
}

func (m *fakeMessenger) ReplaceReaction(ctx context.Context, channelID, messageID, oldEmoji, newEmoji string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.reactionErr != nil {
		return m.reactionErr
	}
	m.replaced = append(m.replaced, replaceCall{channelID, messageID, oldEmoji, newEmoji})
	return nil
}

func (m *fakeMessenger) OnMessage(handler messaging.InboundHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handler = handler
}

func (m *fakeMessenger) sentTexts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	texts := make([]string, len(m.sends))
	for i, send := range m.sends {
		texts[i] = send.text
	}
	return texts
}

func (m *fakeMessenger) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sends) + len(m.files) + len(m.added) + len(m.replaced)
}

// fakeIDMessenger adds the IDSender and ThreadReplier capabilities.
type fakeIDMessenger struct {
	fakeMessenger
	nextID  int
	idErr   error
	threads []threadCall
}

type threadCall struct {
	channelID string
	anchorID  string
	text      string
}

func (m *fakeIDMessenger) SendToChannelWithID(ctx context.Context, channelID, text string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.idErr != nil {
		return "", m.idErr
	}
	m.nextID++
	id := fmt.Sprintf("bot-msg-%d", m.nextID)
	m.sends = append(m.sends, channelSend{channelID, text})
	return id, nil
}

func (m *fakeIDMessenger) ReplyInThread(ctx context.Context, channelID, anchorID, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return m.sendErr
	}
	m.threads = append(m.threads, threadCall{channelID, anchorID, text})
	return nil
}

// fakeRuntime records keystrokes and serves scripted buffer captures.
type fakeRuntime struct {
	mu      sync.Mutex
	typed   []string // "session:window <- text"
	entered []string // "session:window"

	typeErr  error
	enterErr error

	// buffers are returned by successive WindowBuffer calls; the last
	// one repeats. bufferErr takes precedence.
	buffers   []string
	bufferErr error
	captures  int
}

func (f *fakeRuntime) TypeKeys(session, window, text, agentType string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.typeErr != nil {
		return f.typeErr
	}
	f.typed = append(f.typed, fmt.Sprintf("%s:%s <- %s", session, window, text))
	return nil
}

func (f *fakeRuntime) SendEnter(session, window, agentType string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.enterErr != nil {
		return f.enterErr
	}
	f.entered = append(f.entered, session+":"+window)
	return nil
}

func (f *fakeRuntime) SendKeys(session, window, text, agentType string) error {
	if err := f.TypeKeys(session, window, text, agentType); err != nil {
		return err
	}
	return f.SendEnter(session, window, agentType)
}

func (f *fakeRuntime) WindowBuffer(session, window string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.captures++
	if f.bufferErr != nil {
		return "", f.bufferErr
	}
	if len(f.buffers) == 0 {
		return "", errors.New("no buffer scripted")
	}
	buffer := f.buffers[0]
	if len(f.buffers) > 1 {
		f.buffers = f.buffers[1:]
	}
	return buffer, nil
}

func (f *fakeRuntime) WindowExists(session, window string) bool { return true }

// fakeFrameRuntime additionally serves styled frames.
type fakeFrameRuntime struct {
	fakeRuntime
	frame    *runtime.StyledFrame
	frameErr error
}

func (f *fakeFrameRuntime) WindowFrame(session, window string) (*runtime.StyledFrame, error) {
	if f.frameErr != nil {
		return nil, f.frameErr
	}
	return f.frame, nil
}

// fakeStore serves a fixed project set.
type fakeStore struct {
	mu         sync.Mutex
	projects   map[string]*state.Project
	lastActive []string
}

func newFakeStore(projects ...*state.Project) *fakeStore {
	store := &fakeStore{projects: make(map[string]*state.Project)}
	for _, project := range projects {
		store.projects[project.Name] = project
	}
	return store
}

func (s *fakeStore) GetProject(name string) (*state.Project, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	project, ok := s.projects[name]
	return project, ok
}

func (s *fakeStore) UpdateLastActive(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActive = append(s.lastActive, name)
}

// twoInstanceProject is the standard fixture: two claude instances on
// separate channels plus a codex instance.
func twoInstanceProject() *state.Project {
	return &state.Project{
		Name:           "myapp",
		Path:           "/home/dev/myapp",
		RuntimeSession: "ambridge-myapp",
		Instances: map[string]state.AgentInstance{
			"claude-1": {InstanceID: "claude-1", AgentType: "claude", ChannelID: "ch-1", Window: "claude-1"},
			"claude-2": {InstanceID: "claude-2", AgentType: "claude", ChannelID: "ch-2", Window: "claude-2"},
			"codex-1":  {InstanceID: "codex-1", AgentType: "codex", ChannelID: "ch-3", Window: "codex-1"},
		},
	}
}
