// Copyright 2026 The Agent Messenger Bridge Authors
// SPDX-License-Identifier: Apache-2.0

package runtime

import (
	"fmt"
	"os"
	"os/exec"
	"testing"
)

// NewTestTmux creates an isolated tmux server for testing. The server:
//   - Uses a short /tmp path to stay within the 108-byte Unix socket limit
//   - Passes -f /dev/null to prevent loading the user's ~/.tmux.conf
//   - Creates a _guard session running "sleep infinity" to keep the
//     server alive (tmux exits when its last session ends)
//   - Registers t.Cleanup to kill the server when the test completes
//
// Tests are skipped when no tmux binary is installed.
func NewTestTmux(t *testing.T) *Tmux {
	t.Helper()

	if _, err := exec.LookPath("tmux"); err != nil {
		t.Skip("tmux not installed")
	}

	// t.TempDir paths can exceed the Unix socket length limit on some
	// systems; use a dedicated short directory instead.
	socketDir, err := os.MkdirTemp("/tmp", "amb")
	if err != nil {
		t.Fatalf("creating socket dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(socketDir) })

	server := NewTmux(fmt.Sprintf("%s/tmux.sock", socketDir), "/dev/null")
	if err := server.NewSession("_guard", "sleep", "infinity"); err != nil {
		t.Fatalf("start tmux test server: %v", err)
	}
	t.Cleanup(func() { server.KillServer() })

	return server
}
