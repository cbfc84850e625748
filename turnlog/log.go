// Copyright 2026 The Agent Messenger Bridge Authors
// SPDX-License-Identifier: Apache-2.0

package turnlog

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// Event is a lifecycle transition recorded for a turn.
type Event string

const (
	// EventPending marks a turn submitted to the runtime.
	EventPending Event = "pending"
	// EventCompleted marks hook-driven completion.
	EventCompleted Event = "completed"
	// EventError marks a failed turn.
	EventError Event = "error"
	// EventFallback marks fallback-driven delivery of raw output.
	EventFallback Event = "fallback"
)

// Entry is one recorded transition.
type Entry struct {
	// TurnID groups all transitions of one turn.
	TurnID string

	// Project, AgentType, InstanceID identify the instance.
	Project    string
	AgentType  string
	InstanceID string

	// ChannelID is the chat channel the turn belongs to.
	ChannelID string

	// Event is the transition.
	Event Event

	// Detail carries optional context (error text, delivery size).
	Detail string
}

// Row is one stored transition, as returned by Turns.
type Row struct {
	At time.Time
	Entry
}

// Config holds parameters for opening a Log.
type Config struct {
	// Path is the SQLite database file. Required.
	Path string

	// Logger receives operational messages. If nil, slog.Default()
	// is used.
	Logger *slog.Logger
}

// Log records turn lifecycle transitions. A nil *Log discards
// everything, so an unconfigured log needs no call-site branching.
type Log struct {
	pool   *sqlitex.Pool
	logger *slog.Logger
}

const schema = `
CREATE TABLE IF NOT EXISTS turn_events (
	id          INTEGER PRIMARY KEY,
	at          INTEGER NOT NULL,
	turn_id     TEXT NOT NULL,
	project     TEXT NOT NULL,
	agent_type  TEXT NOT NULL,
	instance_id TEXT NOT NULL,
	channel_id  TEXT NOT NULL,
	event       TEXT NOT NULL,
	detail      TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS turn_events_project ON turn_events (project, at);
CREATE INDEX IF NOT EXISTS turn_events_turn ON turn_events (turn_id);
`

// Open opens (creating if needed) the turn log database.
func Open(config Config) (*Log, error) {
	if config.Path == "" {
		return nil, fmt.Errorf("turnlog: Path is required")
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	pool, err := sqlitex.NewPool(config.Path, sqlitex.PoolOptions{
		PoolSize: 2,
		PrepareConn: func(conn *sqlite.Conn) error {
			pragmas := []string{
				"PRAGMA journal_mode=WAL",
				"PRAGMA synchronous=NORMAL",
				"PRAGMA busy_timeout=5000",
			}
			for _, pragma := range pragmas {
				if err := sqlitex.ExecuteTransient(conn, pragma, nil); err != nil {
					return fmt.Errorf("turnlog: %s: %w", pragma, err)
				}
			}
			return sqlitex.ExecuteScript(conn, schema, nil)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("turnlog: opening %s: %w", config.Path, err)
	}

	logger.Info("turn log opened", "path", config.Path)
	return &Log{pool: pool, logger: logger}, nil
}

// Close closes the database. Safe on nil.
func (l *Log) Close() error {
	if l == nil {
		return nil
	}
	return l.pool.Close()
}

// Record stores one transition. Best-effort: failures are logged and
// swallowed — the log must never affect delivery. Safe on nil.
func (l *Log) Record(ctx context.Context, entry Entry) {
	if l == nil {
		return
	}
	conn, err := l.pool.Take(ctx)
	if err != nil {
		l.logger.Warn("turn log take failed", "error", err)
		return
	}
	defer l.pool.Put(conn)

	err = sqlitex.Execute(conn,
		`INSERT INTO turn_events (at, turn_id, project, agent_type, instance_id, channel_id, event, detail)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		&sqlitex.ExecOptions{Args: []any{
			time.Now().UnixMilli(),
			entry.TurnID,
			entry.Project,
			entry.AgentType,
			entry.InstanceID,
			entry.ChannelID,
			string(entry.Event),
			entry.Detail,
		}})
	if err != nil {
		l.logger.Warn("turn log insert failed", "turn_id", entry.TurnID, "error", err)
	}
}

// Turns returns the most recent transitions for a project, newest
// first. limit <= 0 means 100. Safe on nil (returns nothing).
func (l *Log) Turns(ctx context.Context, project string, limit int) ([]Row, error) {
	if l == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 100
	}

	conn, err := l.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("turnlog: take: %w", err)
	}
	defer l.pool.Put(conn)

	var rows []Row
	err = sqlitex.Execute(conn,
		`SELECT at, turn_id, project, agent_type, instance_id, channel_id, event, detail
		 FROM turn_events WHERE project = ? ORDER BY at DESC, id DESC LIMIT ?`,
		&sqlitex.ExecOptions{
			Args: []any{project, limit},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				rows = append(rows, Row{
					At: time.UnixMilli(stmt.ColumnInt64(0)),
					Entry: Entry{
						TurnID:     stmt.ColumnText(1),
						Project:    stmt.ColumnText(2),
						AgentType:  stmt.ColumnText(3),
						InstanceID: stmt.ColumnText(4),
						ChannelID:  stmt.ColumnText(5),
						Event:      Event(stmt.ColumnText(6)),
						Detail:     stmt.ColumnText(7),
					},
				})
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("turnlog: query: %w", err)
	}
	return rows, nil
}
