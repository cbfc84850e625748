// Copyright 2026 The Agent Messenger Bridge Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the master configuration for the bridge daemon.
type Config struct {
	// Root is the bridge's state directory. Other paths may reference
	// it as ${AMBRIDGE_ROOT}.
	Root string `yaml:"root"`

	// Listen is the address the hook server binds to.
	Listen string `yaml:"listen"`

	// Tmux configures the runtime's tmux server.
	Tmux TmuxConfig `yaml:"tmux"`

	// State configures the project state store.
	State StateConfig `yaml:"state"`

	// TurnLog configures the SQLite turn event log. An empty path
	// disables logging.
	TurnLog TurnLogConfig `yaml:"turnlog"`

	// Delivery configures outbound message behavior.
	Delivery DeliveryConfig `yaml:"delivery"`

	// Agents holds per-agent-type overrides, keyed by agent type
	// ("claude", "codex", "opencode", "gemini", ...).
	Agents map[string]AgentConfig `yaml:"agents"`

	// Attachments configures inbound file attachment handling.
	Attachments AttachmentsConfig `yaml:"attachments"`
}

// TmuxConfig configures the dedicated tmux server the bridge targets.
type TmuxConfig struct {
	// SocketPath is the tmux server socket. The bridge never talks to
	// the user's personal tmux server.
	SocketPath string `yaml:"socket_path"`

	// ConfigFile is passed as -f on session creation. "/dev/null"
	// prevents loading ~/.tmux.conf.
	ConfigFile string `yaml:"config_file"`
}

// StateConfig configures the project state store.
type StateConfig struct {
	// File is the JSONC projects file.
	File string `yaml:"file"`

	// Watch enables fsnotify-driven hot reload of the projects file.
	Watch bool `yaml:"watch"`
}

// TurnLogConfig configures the turn event log.
type TurnLogConfig struct {
	// Path is the SQLite database file. Empty disables the log.
	Path string `yaml:"path"`
}

// DeliveryConfig configures outbound message behavior.
type DeliveryConfig struct {
	// MessageLimit is the platform's maximum message length in runes.
	// Longer texts are split at newline boundaries.
	MessageLimit int `yaml:"message_limit"`

	// EnterDelayMS is the pause between typing a message and pressing
	// Enter, in milliseconds. Some agent CLIs only recognize a leading
	// "/" command when keystrokes and Enter are separated in time.
	EnterDelayMS int `yaml:"enter_delay_ms"`

	// PromptMarker is the default prompt marker used to locate the
	// start of the current turn in a captured buffer.
	PromptMarker string `yaml:"prompt_marker"`
}

// AgentConfig holds per-agent-type overrides.
type AgentConfig struct {
	// PromptMarker overrides Delivery.PromptMarker for this agent type.
	PromptMarker string `yaml:"prompt_marker"`

	// EnterDelayMS overrides Delivery.EnterDelayMS for this agent type.
	// A negative value means "use the default".
	EnterDelayMS int `yaml:"enter_delay_ms"`
}

// AttachmentsConfig configures inbound file attachment handling.
type AttachmentsConfig struct {
	// Dir is where downloaded attachments are written.
	Dir string `yaml:"dir"`

	// ContainerDir is the directory inside a container-mode instance's
	// workspace that downloaded files are injected into.
	ContainerDir string `yaml:"container_dir"`

	// MaxBytes caps a single attachment download. Zero means the
	// default (32 MiB).
	MaxBytes int64 `yaml:"max_bytes"`
}

// Default returns a Config with development defaults.
func Default() *Config {
	return &Config{
		Root:   "${HOME}/.ambridge",
		Listen: "127.0.0.1:8787",
		Tmux: TmuxConfig{
			SocketPath: "${AMBRIDGE_ROOT}/tmux.sock",
			ConfigFile: "/dev/null",
		},
		State: StateConfig{
			File:  "${AMBRIDGE_ROOT}/projects.jsonc",
			Watch: true,
		},
		Delivery: DeliveryConfig{
			MessageLimit: 4000,
			EnterDelayMS: 0,
			PromptMarker: "❯ ",
		},
		Attachments: AttachmentsConfig{
			Dir:          "${AMBRIDGE_ROOT}/attachments",
			ContainerDir: "/workspace/files",
		},
	}
}

// Load loads configuration from the AMBRIDGE_CONFIG environment variable.
//
// This is the only way to load configuration without an explicit path.
// There are no fallbacks or defaults — if AMBRIDGE_CONFIG is not set,
// this fails.
func Load() (*Config, error) {
	configPath := os.Getenv("AMBRIDGE_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("AMBRIDGE_CONFIG environment variable not set; " +
			"set it to the path of your ambridge.yaml config file, or use --config flag")
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path.
//
// The config file is the single source of truth. Environment variables
// do not override config values — the only expansion performed is
// ${HOME} and similar path variables for portability.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	cfg.expandVariables()
	return cfg, nil
}

// expandVariables expands ${VAR} patterns in path fields.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"AMBRIDGE_ROOT": c.Root,
		"HOME":          os.Getenv("HOME"),
	}

	c.Root = expandVars(c.Root, vars)
	vars["AMBRIDGE_ROOT"] = c.Root // Update for dependent paths.

	c.Tmux.SocketPath = expandVars(c.Tmux.SocketPath, vars)
	c.State.File = expandVars(c.State.File, vars)
	c.TurnLog.Path = expandVars(c.TurnLog.Path, vars)
	c.Attachments.Dir = expandVars(c.Attachments.Dir, vars)
}

// varPattern matches ${VAR} and ${VAR:-default}.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		// Check provided vars first, then environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Root == "" {
		errs = append(errs, fmt.Errorf("root is required"))
	}
	if c.Listen == "" {
		errs = append(errs, fmt.Errorf("listen is required"))
	}
	if c.Tmux.SocketPath == "" {
		errs = append(errs, fmt.Errorf("tmux.socket_path is required"))
	}
	if c.State.File == "" {
		errs = append(errs, fmt.Errorf("state.file is required"))
	}
	if c.Delivery.MessageLimit <= 0 {
		errs = append(errs, fmt.Errorf("delivery.message_limit must be positive"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// PromptMarker returns the prompt marker for the given agent type,
// falling back to the delivery-wide default.
func (c *Config) PromptMarker(agentType string) string {
	if agent, ok := c.Agents[agentType]; ok && agent.PromptMarker != "" {
		return agent.PromptMarker
	}
	return c.Delivery.PromptMarker
}

// EnterDelay returns the typing-to-Enter delay for the given agent type.
func (c *Config) EnterDelay(agentType string) time.Duration {
	if agent, ok := c.Agents[agentType]; ok && agent.EnterDelayMS > 0 {
		return time.Duration(agent.EnterDelayMS) * time.Millisecond
	}
	if c.Delivery.EnterDelayMS > 0 {
		return time.Duration(c.Delivery.EnterDelayMS) * time.Millisecond
	}
	return 0
}
