// Copyright 2026 The Agent Messenger Bridge Authors
// SPDX-License-Identifier: Apache-2.0

package runtime

import (
	"fmt"
	"os/exec"
	"strings"
)

// Tmux targets a tmux server identified by its Unix socket path. All
// operations go through the socket — there is no way to run a command
// without specifying which server it applies to, which makes it
// structurally impossible to touch the user's personal tmux server.
type Tmux struct {
	socketPath string
	configFile string // passed as "-f <path>" on new-session; empty = tmux default
}

// NewTmux returns a Tmux that targets the given socket path.
//
// configFile controls which configuration file tmux loads when the
// server starts. Pass "/dev/null" to prevent loading the user's
// ~/.tmux.conf — recommended for all bridge servers and required in
// tests.
func NewTmux(socketPath, configFile string) *Tmux {
	return &Tmux{
		socketPath: socketPath,
		configFile: configFile,
	}
}

// SocketPath returns the Unix socket path that identifies this server.
func (t *Tmux) SocketPath() string {
	return t.socketPath
}

// Run executes an arbitrary tmux subcommand on this server and returns
// the combined output. This is the escape hatch for commands without a
// dedicated method — rename-window, list-panes, split-window, etc. The
// -S flag is automatically prepended.
func (t *Tmux) Run(args ...string) (string, error) {
	fullArgs := append([]string{"-S", t.socketPath}, args...)
	cmd := exec.Command("tmux", fullArgs...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("tmux %s: %w (%s)",
			strings.Join(args, " "), err, strings.TrimSpace(string(output)))
	}
	return string(output), nil
}

// target formats a session:window tmux target.
func target(session, window string) string {
	return session + ":" + window
}

// NewSession creates a detached session on this server. The -f flag is
// passed here because new-session may start the server, and only server
// start reads the config file.
func (t *Tmux) NewSession(session string, command ...string) error {
	var args []string
	if t.configFile != "" {
		args = append(args, "-f", t.configFile)
	}
	args = append(args, "-S", t.socketPath, "new-session", "-d", "-s", session)
	args = append(args, command...)
	cmd := exec.Command("tmux", args...)
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("tmux new-session %q: %w (%s)",
			session, err, strings.TrimSpace(string(output)))
	}
	return nil
}

// KillServer terminates the tmux server. Returns nil if the server was
// already stopped — a normal condition during cleanup.
func (t *Tmux) KillServer() error {
	cmd := exec.Command("tmux", "-S", t.socketPath, "kill-server")
	output, err := cmd.CombinedOutput()
	if err != nil {
		outputString := strings.TrimSpace(string(output))
		if strings.Contains(outputString, "no server running") ||
			strings.Contains(outputString, "server exited unexpectedly") {
			return nil
		}
		return fmt.Errorf("tmux kill-server: %w (%s)", err, outputString)
	}
	return nil
}

// TypeKeys types text literally into the window without submitting.
// The -l flag disables tmux key-name lookup so text like "Enter" or
// "C-c" is typed verbatim.
func (t *Tmux) TypeKeys(session, window, text, agentType string) error {
	_, err := t.Run("send-keys", "-t", target(session, window), "-l", text)
	return err
}

// SendEnter submits the typed input.
func (t *Tmux) SendEnter(session, window, agentType string) error {
	_, err := t.Run("send-keys", "-t", target(session, window), "Enter")
	return err
}

// SendKeys types text and submits it in one call.
func (t *Tmux) SendKeys(session, window, text, agentType string) error {
	if err := t.TypeKeys(session, window, text, agentType); err != nil {
		return err
	}
	return t.SendEnter(session, window, agentType)
}

// WindowBuffer captures the window's visible screen. The capture
// includes whatever escape sequences the process emitted; the bridge
// strips them before delivery.
func (t *Tmux) WindowBuffer(session, window string) (string, error) {
	return t.Run("capture-pane", "-p", "-t", target(session, window))
}

// WindowExists reports whether the window exists on this server.
// Returns false when the server is not running.
func (t *Tmux) WindowExists(session, window string) bool {
	output, err := t.Run("list-windows", "-t", session, "-F", "#{window_name}")
	if err != nil {
		return false
	}
	for _, name := range strings.Split(strings.TrimRight(output, "\n"), "\n") {
		if name == window {
			return true
		}
	}
	return false
}
