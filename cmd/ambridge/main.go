// Copyright 2026 The Agent Messenger Bridge Authors
// SPDX-License-Identifier: Apache-2.0

// Command ambridge bridges chat channels to AI coding agents running
// in tmux windows. Inbound messages become agent keystrokes; agent
// lifecycle hooks and a screen-capture fallback carry the agent's
// output back to chat.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/siisee11/agent-messenger-bridge/attach"
	"github.com/siisee11/agent-messenger-bridge/bridge"
	"github.com/siisee11/agent-messenger-bridge/hook"
	"github.com/siisee11/agent-messenger-bridge/lib/config"
	"github.com/siisee11/agent-messenger-bridge/lib/version"
	"github.com/siisee11/agent-messenger-bridge/runtime"
	"github.com/siisee11/agent-messenger-bridge/state"
	"github.com/siisee11/agent-messenger-bridge/turnlog"
)

func main() {
	var (
		configPath  = pflag.String("config", "", "path to ambridge.yaml (default: $AMBRIDGE_CONFIG)")
		listen      = pflag.String("listen", "", "hook server listen address (overrides config)")
		verbose     = pflag.BoolP("verbose", "v", false, "enable debug logging")
		showVersion = pflag.Bool("version", false, "print version and exit")
	)
	pflag.Parse()

	if *showVersion {
		fmt.Println("ambridge " + version.Full())
		return
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if err := run(logger, *configPath, *listen); err != nil {
		logger.Error("ambridge failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger, configPath, listenOverride string) error {
	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}
	if listenOverride != "" {
		cfg.Listen = listenOverride
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	store, err := state.OpenFileStore(state.FileStoreConfig{
		Path:   cfg.State.File,
		Watch:  cfg.State.Watch,
		Logger: logger,
	})
	if err != nil {
		return err
	}
	defer store.Close()

	var turnLog *turnlog.Log
	if cfg.TurnLog.Path != "" {
		turnLog, err = turnlog.Open(turnlog.Config{Path: cfg.TurnLog.Path, Logger: logger})
		if err != nil {
			return err
		}
		defer turnLog.Close()
	}

	var downloader *attach.Downloader
	if cfg.Attachments.Dir != "" {
		downloader, err = attach.NewDownloader(attach.DownloaderConfig{
			Dir:      cfg.Attachments.Dir,
			MaxBytes: cfg.Attachments.MaxBytes,
			Logger:   logger,
		})
		if err != nil {
			return err
		}
	}

	messenger := newConsoleMessenger(os.Stdout, logger)
	tmux := runtime.NewTmux(cfg.Tmux.SocketPath, cfg.Tmux.ConfigFile)

	tracker := bridge.NewTracker(bridge.TrackerConfig{
		Messenger: messenger,
		Logger:    logger,
		TurnLog:   turnLog,
	})

	// Registers itself as the messenger's inbound handler.
	bridge.NewRouter(bridge.RouterConfig{
		State:        store,
		Runtime:      tmux,
		Messenger:    messenger,
		Tracker:      tracker,
		Logger:       logger,
		TurnLog:      turnLog,
		Downloader:   downloader,
		Injector:     attach.DockerInjector{},
		ContainerDir: cfg.Attachments.ContainerDir,
		EnterDelay:   cfg.EnterDelay,
		PromptMarker: cfg.PromptMarker,
	})

	server, err := hook.NewServer(hook.ServerConfig{
		State:        store,
		Tracker:      tracker,
		Messenger:    messenger,
		MessageLimit: cfg.Delivery.MessageLimit,
		Reload:       func(ctx context.Context) error { return store.Reload() },
		Logger:       logger,
	})
	if err != nil {
		return err
	}
	if err := server.Start(cfg.Listen); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go messenger.Run(ctx, os.Stdin)

	logger.Info("ambridge running",
		"version", version.Info(),
		"listen", server.Addr(),
		"state", cfg.State.File)
	<-ctx.Done()

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
