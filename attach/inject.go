// Copyright 2026 The Agent Messenger Bridge Authors
// SPDX-License-Identifier: Apache-2.0

package attach

import (
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
)

// Injector copies local files into a container's workspace so
// container-mode agents can read attachments the user sent.
type Injector interface {
	// InjectFile copies localPath into containerDir inside the
	// container.
	InjectFile(containerID, localPath, containerDir string) error
}

// DockerInjector injects files with "docker cp". The docker binary
// must be on PATH.
type DockerInjector struct{}

// InjectFile copies localPath into containerDir inside the container.
func (DockerInjector) InjectFile(containerID, localPath, containerDir string) error {
	destination := containerID + ":" + filepath.Join(containerDir, filepath.Base(localPath))
	cmd := exec.Command("docker", "cp", localPath, destination)
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("attach: docker cp %s -> %s: %w (%s)",
			localPath, destination, err, strings.TrimSpace(string(output)))
	}
	return nil
}
