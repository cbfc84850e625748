// Copyright 2026 The Agent Messenger Bridge Authors
// SPDX-License-Identifier: Apache-2.0

package state

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/tidwall/jsonc"
)

// reloadDebounce coalesces bursts of fsnotify events (editors write
// files with several syscalls) into a single reload.
const reloadDebounce = 200 * time.Millisecond

// FileStoreConfig holds parameters for opening a FileStore.
type FileStoreConfig struct {
	// Path is the JSONC projects file. Required.
	Path string

	// Watch enables fsnotify-driven reload on file changes.
	Watch bool

	// Logger receives structured log output. If nil, slog.Default()
	// is used.
	Logger *slog.Logger
}

// FileStore serves project state from a JSONC file. Comments and
// trailing commas are allowed in the file — it is operator-edited.
//
// The loaded snapshot is replaced wholesale on reload; GetProject
// returns pointers into the current snapshot, which is never mutated
// after load, so callers can hold a project across a turn safely.
type FileStore struct {
	path   string
	logger *slog.Logger

	mu         sync.RWMutex
	projects   map[string]*Project
	lastActive map[string]time.Time

	watcher     *fsnotify.Watcher
	debounce    *time.Timer
	debounceMu  sync.Mutex
	watcherDone chan struct{}
}

// projectsFile is the on-disk document shape.
type projectsFile struct {
	Projects []*Project `json:"projects"`
}

// OpenFileStore reads the projects file and, when configured, starts
// watching it for changes.
func OpenFileStore(config FileStoreConfig) (*FileStore, error) {
	if config.Path == "" {
		return nil, fmt.Errorf("state: Path is required")
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	store := &FileStore{
		path:       config.Path,
		logger:     logger,
		lastActive: make(map[string]time.Time),
	}
	if err := store.Reload(); err != nil {
		return nil, err
	}

	if config.Watch {
		if err := store.startWatcher(); err != nil {
			// A missing inotify capability should not prevent startup;
			// the /reload endpoint still works.
			logger.Warn("state file watcher unavailable", "path", config.Path, "error", err)
		}
	}

	return store, nil
}

// Reload re-reads the projects file and swaps in the new snapshot.
// On parse or validation failure the previous snapshot is kept.
func (s *FileStore) Reload() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("state: reading %s: %w", s.path, err)
	}

	var document projectsFile
	if err := json.Unmarshal(jsonc.ToJSON(data), &document); err != nil {
		return fmt.Errorf("state: parsing %s: %w", s.path, err)
	}

	projects := make(map[string]*Project, len(document.Projects))
	for _, project := range document.Projects {
		if project.Name == "" {
			return fmt.Errorf("state: %s: project with empty name", s.path)
		}
		if _, exists := projects[project.Name]; exists {
			return fmt.Errorf("state: %s: duplicate project %q", s.path, project.Name)
		}
		if err := validateProject(project); err != nil {
			return fmt.Errorf("state: %s: %w", s.path, err)
		}
		projects[project.Name] = project
	}

	s.mu.Lock()
	s.projects = projects
	s.mu.Unlock()

	s.logger.Info("project state loaded", "path", s.path, "projects", len(projects))
	return nil
}

// validateProject enforces the channel↔instance bijection and fills
// implied instance ids.
func validateProject(project *Project) error {
	channels := make(map[string]string, len(project.Instances))
	for id, instance := range project.Instances {
		if instance.InstanceID == "" {
			instance.InstanceID = id
			project.Instances[id] = instance
		} else if instance.InstanceID != id {
			return fmt.Errorf("project %q: instance key %q disagrees with instanceId %q",
				project.Name, id, instance.InstanceID)
		}
		if instance.ChannelID == "" {
			return fmt.Errorf("project %q: instance %q has no channelId", project.Name, id)
		}
		if other, taken := channels[instance.ChannelID]; taken {
			return fmt.Errorf("project %q: channel %q bound to both %q and %q",
				project.Name, instance.ChannelID, other, id)
		}
		channels[instance.ChannelID] = id
	}
	return nil
}

// GetProject returns the named project from the current snapshot.
func (s *FileStore) GetProject(name string) (*Project, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	project, ok := s.projects[name]
	return project, ok
}

// UpdateLastActive records activity on the project. The timestamp is
// kept in memory only — the projects file is operator-owned and the
// store never writes to it.
func (s *FileStore) UpdateLastActive(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActive[name] = time.Now()
}

// LastActive returns when the project last saw activity, or zero.
func (s *FileStore) LastActive(name string) time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastActive[name]
}

// Close stops the file watcher, if running.
func (s *FileStore) Close() error {
	if s.watcher == nil {
		return nil
	}
	err := s.watcher.Close()
	<-s.watcherDone
	return err
}

// startWatcher begins fsnotify observation of the projects file.
func (s *FileStore) startWatcher() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(s.path); err != nil {
		watcher.Close()
		return err
	}

	s.watcher = watcher
	s.watcherDone = make(chan struct{})
	go s.watchLoop()
	return nil
}

// watchLoop reacts to file events with a debounced reload. Editors and
// provisioning tools often replace the file (write temp + rename), so
// on Remove/Rename the path is re-added to the watcher.
func (s *FileStore) watchLoop() {
	defer close(s.watcherDone)
	for {
		select {
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				// Best-effort re-add; the file may not exist yet.
				s.watcher.Add(s.path)
			}
			s.scheduleReload()
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.logger.Warn("state file watcher error", "error", err)
		}
	}
}

// scheduleReload arms (or re-arms) the debounce timer.
func (s *FileStore) scheduleReload() {
	s.debounceMu.Lock()
	defer s.debounceMu.Unlock()
	if s.debounce != nil {
		s.debounce.Stop()
	}
	s.debounce = time.AfterFunc(reloadDebounce, func() {
		if err := s.Reload(); err != nil {
			s.logger.Error("state file reload failed; keeping previous snapshot", "error", err)
		}
	})
}
