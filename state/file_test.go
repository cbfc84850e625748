// Copyright 2026 The Agent Messenger Bridge Authors
// SPDX-License-Identifier: Apache-2.0

package state

import (
	"os"
	"path/filepath"
	"testing"
)

func writeProjects(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "projects.jsonc")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing projects file: %v", err)
	}
	return path
}

const sampleProjects = `{
  // operator-edited
  "projects": [
    {
      "name": "myapp",
      "path": "/home/dev/myapp",
      "runtimeSession": "ambridge-myapp",
      "instances": {
        "claude-1": {"agentType": "claude", "channelId": "ch-1", "window": "claude-1"},
        "claude-2": {"agentType": "claude", "channelId": "ch-2", "window": "claude-2"},
      },
    },
    {
      "name": "legacy",
      "path": "/home/dev/legacy",
      "runtimeSession": "ambridge-legacy",
      "agents": {"claude": "claude-win"},
      "channels": {"claude": "ch-legacy"},
    },
  ],
}`

func openSample(t *testing.T) *FileStore {
	t.Helper()
	store, err := OpenFileStore(FileStoreConfig{Path: writeProjects(t, sampleProjects)})
	if err != nil {
		t.Fatalf("OpenFileStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestFileStoreParsesJSONCWithComments(t *testing.T) {
	store := openSample(t)

	project, ok := store.GetProject("myapp")
	if !ok {
		t.Fatal("myapp not found")
	}
	if len(project.Instances) != 2 {
		t.Fatalf("got %d instances, want 2", len(project.Instances))
	}
	if project.Instances["claude-1"].InstanceID != "claude-1" {
		t.Error("instance id not filled from map key")
	}
}

func TestFileStoreUnknownProject(t *testing.T) {
	store := openSample(t)
	if _, ok := store.GetProject("nope"); ok {
		t.Fatal("unknown project resolved")
	}
}

func TestFileStoreRejectsDuplicateChannel(t *testing.T) {
	path := writeProjects(t, `{
  "projects": [{
    "name": "bad",
    "instances": {
      "a": {"agentType": "claude", "channelId": "ch-1", "window": "a"},
      "b": {"agentType": "codex", "channelId": "ch-1", "window": "b"}
    }
  }]
}`)
	if _, err := OpenFileStore(FileStoreConfig{Path: path}); err == nil {
		t.Fatal("duplicate channel binding accepted")
	}
}

func TestFileStoreReloadKeepsSnapshotOnParseError(t *testing.T) {
	path := writeProjects(t, sampleProjects)
	store, err := OpenFileStore(FileStoreConfig{Path: path})
	if err != nil {
		t.Fatalf("OpenFileStore: %v", err)
	}
	defer store.Close()

	if err := os.WriteFile(path, []byte("{ not json"), 0o644); err != nil {
		t.Fatalf("corrupting file: %v", err)
	}
	if err := store.Reload(); err == nil {
		t.Fatal("Reload accepted corrupt file")
	}
	if _, ok := store.GetProject("myapp"); !ok {
		t.Fatal("previous snapshot lost after failed reload")
	}
}

func TestResolveInstanceByChannel(t *testing.T) {
	store := openSample(t)
	project, _ := store.GetProject("myapp")

	instance, ok := project.ResolveInstance("claude", "ch-2", "")
	if !ok || instance.InstanceID != "claude-2" {
		t.Fatalf("resolved %+v, want claude-2", instance)
	}
}

func TestResolveInstanceMappedIDWins(t *testing.T) {
	store := openSample(t)
	project, _ := store.GetProject("myapp")

	instance, ok := project.ResolveInstance("claude", "ch-2", "claude-1")
	if !ok || instance.InstanceID != "claude-1" {
		t.Fatalf("resolved %+v, want claude-1", instance)
	}
}

func TestResolveInstanceLegacyFallback(t *testing.T) {
	store := openSample(t)
	project, _ := store.GetProject("legacy")

	instance, ok := project.ResolveInstance("claude", "anything", "")
	if !ok {
		t.Fatal("legacy instance not synthesized")
	}
	if instance.InstanceID != "claude" || instance.Window != "claude-win" || instance.ChannelID != "ch-legacy" {
		t.Fatalf("legacy instance = %+v", instance)
	}

	if _, ok := project.ResolveInstance("codex", "anything", ""); ok {
		t.Fatal("unknown legacy agent type resolved")
	}
}

func TestChannelFor(t *testing.T) {
	store := openSample(t)

	project, _ := store.GetProject("myapp")
	if channel, ok := project.ChannelFor("claude", "claude-2"); !ok || channel != "ch-2" {
		t.Errorf("ChannelFor(claude-2) = %q, %v", channel, ok)
	}
	if _, ok := project.ChannelFor("claude", "missing"); ok {
		t.Error("ChannelFor resolved a missing instance")
	}

	legacy, _ := store.GetProject("legacy")
	if channel, ok := legacy.ChannelFor("claude", "claude"); !ok || channel != "ch-legacy" {
		t.Errorf("legacy ChannelFor = %q, %v", channel, ok)
	}
}
