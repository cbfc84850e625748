// Copyright 2026 The Agent Messenger Bridge Authors
// SPDX-License-Identifier: Apache-2.0

package hook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/siisee11/agent-messenger-bridge/bridge"
	"github.com/siisee11/agent-messenger-bridge/lib/version"
	"github.com/siisee11/agent-messenger-bridge/messaging"
	"github.com/siisee11/agent-messenger-bridge/state"
)

// defaultMessageLimit bounds a single channel send, in runes.
const defaultMessageLimit = 4000

// ServerConfig holds the collaborators for a hook Server.
type ServerConfig struct {
	// State resolves project names to projects. Required.
	State state.Store

	// Tracker owns the acknowledgement lifecycle. Required.
	Tracker *bridge.Tracker

	// Messenger delivers turn output back to chat. Required.
	Messenger messaging.Messenger

	// MessageLimit caps a single channel send; longer text is split
	// at newline boundaries. Zero means 4000 runes.
	MessageLimit int

	// Reload is invoked by POST /reload to re-read project state.
	// Nil makes /reload a no-op (it still answers 200).
	Reload func(ctx context.Context) error

	// Logger receives structured log output. If nil, slog.Default()
	// is used.
	Logger *slog.Logger
}

// Server is the HTTP hook endpoint.
type Server struct {
	config  ServerConfig
	limit   int
	logger  *slog.Logger
	handler http.Handler

	listener   net.Listener
	httpServer *http.Server
}

// NewServer creates a Server. Call Start to begin serving, or mount
// Handler on an existing server.
func NewServer(config ServerConfig) (*Server, error) {
	if config.State == nil {
		return nil, fmt.Errorf("hook: State is required")
	}
	if config.Tracker == nil {
		return nil, fmt.Errorf("hook: Tracker is required")
	}
	if config.Messenger == nil {
		return nil, fmt.Errorf("hook: Messenger is required")
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	limit := config.MessageLimit
	if limit <= 0 {
		limit = defaultMessageLimit
	}

	server := &Server{config: config, limit: limit, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /opencode-event", server.handleEvent)
	mux.HandleFunc("POST /send-files", server.handleSendFiles)
	mux.HandleFunc("POST /reload", server.handleReload)
	mux.HandleFunc("GET /health", server.handleHealth)
	server.handler = server.withRecovery(mux)

	return server, nil
}

// Handler returns the server's HTTP handler, panic isolation included.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start listens on the given address and serves in a background
// goroutine until Shutdown.
func (s *Server) Start(listen string) error {
	listener, err := net.Listen("tcp", listen)
	if err != nil {
		return fmt.Errorf("hook: listening on %s: %w", listen, err)
	}
	s.listener = listener
	s.httpServer = &http.Server{Handler: s.handler}

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("hook server failed", "error", err)
		}
	}()

	s.logger.Info("hook server listening", "address", listener.Addr().String())
	return nil
}

// Addr returns the bound address after Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Shutdown gracefully stops a started server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// withRecovery turns a handler panic into a 500 response instead of a
// dead process. A hook endpoint that stops answering strands every
// turn behind it.
func (s *Server) withRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if recovered := recover(); recovered != nil {
				s.logger.Error("hook handler panicked",
					"path", r.URL.Path, "panic", recovered)
				writeError(w, http.StatusInternalServerError, "internal error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": version.Info(),
	})
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if s.config.Reload != nil {
		if err := s.config.Reload(r.Context()); err != nil {
			// /reload always answers 200: the previous state stays in
			// effect and the operator sees the failure in the log.
			s.logger.Error("state reload failed", "error", err)
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSendFiles(w http.ResponseWriter, r *http.Request) {
	var request sendFilesRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeError(w, http.StatusBadRequest, "malformed JSON: %v", err)
		return
	}

	project, ok := s.config.State.GetProject(request.ProjectName)
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown project %q", request.ProjectName)
		return
	}
	channelID, ok := project.ChannelFor(request.AgentType, defaultInstanceID(request.AgentType, request.InstanceID))
	if !ok {
		writeError(w, http.StatusBadRequest, "no channel mapping for %s/%s", request.AgentType, request.InstanceID)
		return
	}

	err := s.config.Messenger.SendToChannelWithFiles(r.Context(), channelID, request.Text, request.FilePaths)
	if err != nil {
		s.logger.Error("file send failed", "channel", channelID, "error", err)
		writeError(w, http.StatusInternalServerError, "file send failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// defaultInstanceID mirrors the tracker's keying: an omitted instance
// id means the agent type.
func defaultInstanceID(agentType, instanceID string) string {
	if instanceID == "" {
		return agentType
	}
	return instanceID
}

// writeJSON writes payload with the given status. Encoding failures
// are unrecoverable once the header is out, so they are ignored.
func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError writes a JSON error body with the given status.
func writeError(w http.ResponseWriter, status int, format string, args ...any) {
	writeJSON(w, status, map[string]string{"error": fmt.Sprintf(format, args...)})
}
