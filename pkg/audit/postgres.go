// Package audit provides components for capturing, storing, and querying audit logs.
// This file implements the durable Postgres-backed logger used when a deployment
// needs an audit trail that survives controller restarts.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ensemble/pkg/database"
	"ensemble/pkg/logger"
)

// PostgresLogger implements the Logger interface by writing audit entries to a
// Postgres table (see migrations/audit). Entries are buffered like the file
// backend's, but each one is inserted with its own statement.
type PostgresLogger struct {
	pool   database.DB
	config *Config
	buffer chan *Entry
	done   chan struct{}
}

// NewPostgresLogger creates a PostgresLogger backed by an existing connection.
// The caller owns the connection's lifecycle; Close does not close it.
func NewPostgresLogger(pool database.DB, cfg *Config) *PostgresLogger {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	bufferSize := cfg.BufferSize
	if bufferSize <= 0 {
		bufferSize = 1000
	}

	l := &PostgresLogger{
		pool:   pool,
		config: cfg,
		buffer: make(chan *Entry, bufferSize),
		done:   make(chan struct{}),
	}

	go l.processLoop()

	return l
}

// Log buffers an audit entry for asynchronous insertion; if the buffer is
// full it writes synchronously instead of dropping the entry.
func (l *PostgresLogger) Log(ctx context.Context, entry *Entry) error {
	if !l.config.Enabled {
		return nil
	}

	select {
	case l.buffer <- entry:
		return nil
	default:
		return l.insert(ctx, entry)
	}
}

// Query retrieves audit entries matching filter, newest first.
func (l *PostgresLogger) Query(ctx context.Context, filter *QueryFilter) ([]*Entry, error) {
	sql := `SELECT id, occurred_at, service, method, action, outcome, user_id, username,
		client_ip, user_agent, resource, resource_id, request_id, duration_ms,
		error_code, error_message, metadata
		FROM audit_entries WHERE 1=1`
	var args []any
	argN := 0
	addArg := func(clause string, value any) {
		argN++
		sql += fmt.Sprintf(" AND %s $%d", clause, argN)
		args = append(args, value)
	}

	if filter != nil {
		if filter.StartTime != nil {
			addArg("occurred_at >=", *filter.StartTime)
		}
		if filter.EndTime != nil {
			addArg("occurred_at <", *filter.EndTime)
		}
		if filter.Service != "" {
			addArg("service =", filter.Service)
		}
		if filter.Method != "" {
			addArg("method =", filter.Method)
		}
		if filter.Action != "" {
			addArg("action =", string(filter.Action))
		}
		if filter.Outcome != "" {
			addArg("outcome =", string(filter.Outcome))
		}
		if filter.UserID != "" {
			addArg("user_id =", filter.UserID)
		}
		if filter.Resource != "" {
			addArg("resource =", filter.Resource)
		}
		if filter.ResourceID != "" {
			addArg("resource_id =", filter.ResourceID)
		}
	}

	sql += " ORDER BY occurred_at DESC"
	if filter != nil && filter.Limit > 0 {
		argN++
		sql += fmt.Sprintf(" LIMIT $%d", argN)
		args = append(args, filter.Limit)
	}
	if filter != nil && filter.Offset > 0 {
		argN++
		sql += fmt.Sprintf(" OFFSET $%d", argN)
		args = append(args, filter.Offset)
	}

	rows, err := l.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		var e Entry
		var metadata []byte
		if err := rows.Scan(
			&e.ID, &e.Timestamp, &e.Service, &e.Method, &e.Action, &e.Outcome,
			&e.UserID, &e.Username, &e.ClientIP, &e.UserAgent, &e.Resource,
			&e.ResourceID, &e.RequestID, &e.DurationMs, &e.ErrorCode, &e.ErrorMessage,
			&metadata,
		); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &e.Metadata); err != nil {
				return nil, fmt.Errorf("decode audit metadata: %w", err)
			}
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

// Close drains buffered entries and stops the background flush loop. It
// does not close the underlying pool.
func (l *PostgresLogger) Close() error {
	close(l.done)
	for {
		select {
		case entry := <-l.buffer:
			if err := l.insert(context.Background(), entry); err != nil {
				logger.Log.Warn("Failed to flush audit entry on close", "error", err)
			}
		default:
			return nil
		}
	}
}

func (l *PostgresLogger) processLoop() {
	flushPeriod := l.config.FlushPeriod
	if flushPeriod <= 0 {
		flushPeriod = 5 * time.Second
	}

	ticker := time.NewTicker(flushPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-l.done:
			return
		case entry := <-l.buffer:
			if err := l.insert(context.Background(), entry); err != nil {
				logger.Log.Warn("Failed to insert audit entry", "error", err)
			}
		case <-ticker.C:
			// Nothing to batch-flush; inserts happen per entry. The ticker
			// mirrors the other backends' shape for consistency.
		}
	}
}

func (l *PostgresLogger) insert(ctx context.Context, e *Entry) error {
	metadata, err := json.Marshal(e.Metadata)
	if err != nil {
		return fmt.Errorf("encode audit metadata: %w", err)
	}

	_, err = l.pool.Exec(ctx, `INSERT INTO audit_entries
		(id, occurred_at, service, method, action, outcome, user_id, username,
		 client_ip, user_agent, resource, resource_id, request_id, duration_ms,
		 error_code, error_message, metadata)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
		ON CONFLICT (id) DO NOTHING`,
		e.ID, e.Timestamp, e.Service, e.Method, string(e.Action), string(e.Outcome),
		e.UserID, e.Username, e.ClientIP, e.UserAgent, e.Resource, e.ResourceID,
		e.RequestID, e.DurationMs, e.ErrorCode, e.ErrorMessage, metadata,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}
