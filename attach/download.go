// Copyright 2026 The Agent Messenger Bridge Authors
// SPDX-License-Identifier: Apache-2.0

package attach

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/siisee11/agent-messenger-bridge/messaging"
)

// defaultMaxBytes caps a single attachment download.
const defaultMaxBytes = 32 << 20

// DownloaderConfig holds parameters for creating a Downloader.
type DownloaderConfig struct {
	// Dir is the directory downloaded files are written to. Created
	// if missing.
	Dir string

	// MaxBytes caps a single download. Zero means 32 MiB.
	MaxBytes int64

	// HTTPClient is used for all requests. If nil, http.DefaultClient
	// is used.
	HTTPClient *http.Client

	// Logger receives structured log output. If nil, slog.Default()
	// is used.
	Logger *slog.Logger
}

// Downloader fetches chat attachments to local files.
type Downloader struct {
	dir        string
	maxBytes   int64
	httpClient *http.Client
	logger     *slog.Logger
}

// NewDownloader creates a Downloader, creating the target directory if
// needed.
func NewDownloader(config DownloaderConfig) (*Downloader, error) {
	if config.Dir == "" {
		return nil, fmt.Errorf("attach: Dir is required")
	}
	if err := os.MkdirAll(config.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("attach: creating %s: %w", config.Dir, err)
	}

	maxBytes := config.MaxBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxBytes
	}
	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Downloader{
		dir:        config.Dir,
		maxBytes:   maxBytes,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// Download fetches each attachment and returns the local paths of the
// ones that succeeded. Individual failures are logged and skipped; the
// returned error is non-nil only when nothing could be attempted.
func (d *Downloader) Download(ctx context.Context, attachments []messaging.Attachment) []string {
	var paths []string
	for _, attachment := range attachments {
		path, err := d.downloadOne(ctx, attachment)
		if err != nil {
			d.logger.Warn("attachment download failed",
				"url", attachment.URL, "filename", attachment.Filename, "error", err)
			continue
		}
		paths = append(paths, path)
	}
	return paths
}

func (d *Downloader) downloadOne(ctx context.Context, attachment messaging.Attachment) (string, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, attachment.URL, nil)
	if err != nil {
		return "", err
	}
	response, err := d.httpClient.Do(request)
	if err != nil {
		return "", err
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %s", response.Status)
	}

	path := filepath.Join(d.dir, d.localName(attachment, response.Header.Get("Content-Type")))
	file, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	// +1 so an at-limit file passes and an over-limit one is detected.
	written, err := io.Copy(file, io.LimitReader(response.Body, d.maxBytes+1))
	if err != nil {
		os.Remove(path)
		return "", err
	}
	if written > d.maxBytes {
		os.Remove(path)
		return "", fmt.Errorf("attachment exceeds %d bytes", d.maxBytes)
	}
	return path, nil
}

// localName picks a safe local file name: the declared filename with
// path separators stripped, or a generated name with an extension
// derived from the content type.
func (d *Downloader) localName(attachment messaging.Attachment, contentType string) string {
	name := filepath.Base(attachment.Filename)
	if name != "" && name != "." && name != string(filepath.Separator) && !strings.HasPrefix(name, ".") {
		// Prefix with a short unique id to avoid collisions between
		// same-named attachments.
		return uuid.NewString()[:8] + "-" + name
	}

	extension := ""
	if contentType != "" {
		if extensions, err := mime.ExtensionsByType(contentType); err == nil && len(extensions) > 0 {
			extension = extensions[0]
		}
	}
	return uuid.NewString() + extension
}

// BuildFileMarkers renders the marker block appended to the forwarded
// message so the agent knows which files arrived with it.
func BuildFileMarkers(localPaths []string) string {
	if len(localPaths) == 0 {
		return ""
	}
	var builder strings.Builder
	for _, path := range localPaths {
		fmt.Fprintf(&builder, "\n[attached file: %s]", path)
	}
	return builder.String()
}
