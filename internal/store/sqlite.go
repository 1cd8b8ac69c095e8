package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ashureev/gemini-chat/internal/domain"
	_ "modernc.org/sqlite"
)

const (
	recordMaxRetries = 3
	recordBaseDelay  = 50 * time.Millisecond
	maxRecentLimit   = 500
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed exchange log.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Pragmas in the DSN apply to every pooled connection.
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

// Ensure SQLiteStore implements Repository.
var _ Repository = (*SQLiteStore)(nil)

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS exchanges (
		id TEXT PRIMARY KEY,
		request_id TEXT,
		received_at INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL,
		status INTEGER NOT NULL,
		outcome TEXT NOT NULL,
		error_kind TEXT,
		message_bytes INTEGER NOT NULL DEFAULT 0,
		message_tokens INTEGER NOT NULL DEFAULT 0,
		reply_bytes INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_exchanges_received ON exchanges(received_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// RecordExchange inserts one exchange. SQLITE_BUSY is retried with
// exponential backoff: 50ms, 100ms.
func (s *SQLiteStore) RecordExchange(ctx context.Context, ex *domain.Exchange) error {
	for i := 0; i < recordMaxRetries; i++ {
		err := s.recordExchangeOnce(ctx, ex)
		if err == nil {
			return nil
		}

		if isBusy(err) && i < recordMaxRetries-1 {
			delay := recordBaseDelay * time.Duration(1<<i)
			slog.Debug("RecordExchange failed with SQLITE_BUSY, retrying",
				"exchange_id", ex.ID,
				"attempt", i+1,
				"delay", delay)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			continue
		}

		return fmt.Errorf("record exchange %s after %d attempts: %w", ex.ID, i+1, err)
	}
	return nil
}

func (s *SQLiteStore) recordExchangeOnce(ctx context.Context, ex *domain.Exchange) error {
	query := `
	INSERT INTO exchanges (
		id, request_id, received_at, duration_ms, status, outcome,
		error_kind, message_bytes, message_tokens, reply_bytes
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	var requestID, errorKind interface{}
	if ex.RequestID != "" {
		requestID = ex.RequestID
	}
	if ex.ErrorKind != "" {
		errorKind = ex.ErrorKind
	}

	_, err := s.db.ExecContext(ctx, query,
		ex.ID, requestID, ex.ReceivedAt.UnixMilli(), ex.DurationMs, ex.Status, string(ex.Outcome),
		errorKind, ex.MessageBytes, ex.MessageTokens, ex.ReplyBytes,
	)
	if err != nil {
		return fmt.Errorf("insert exchange: %w", err)
	}
	return nil
}

// RecentExchanges returns up to limit exchanges, newest first.
func (s *SQLiteStore) RecentExchanges(ctx context.Context, limit int) ([]*domain.Exchange, error) {
	if limit <= 0 || limit > maxRecentLimit {
		limit = maxRecentLimit
	}

	query := `
		SELECT id, request_id, received_at, duration_ms, status, outcome,
		       error_kind, message_bytes, message_tokens, reply_bytes
		FROM exchanges ORDER BY received_at DESC, rowid DESC LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query exchanges: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close exchange rows", "error", closeErr)
		}
	}()

	var out []*domain.Exchange
	for rows.Next() {
		var ex domain.Exchange
		var requestID, errorKind sql.NullString
		var receivedAt int64
		var outcome string

		if err := rows.Scan(
			&ex.ID, &requestID, &receivedAt, &ex.DurationMs, &ex.Status, &outcome,
			&errorKind, &ex.MessageBytes, &ex.MessageTokens, &ex.ReplyBytes,
		); err != nil {
			return nil, fmt.Errorf("scan exchange row: %w", err)
		}

		ex.RequestID = requestID.String
		ex.ErrorKind = errorKind.String
		ex.Outcome = domain.Outcome(outcome)
		ex.ReceivedAt = time.UnixMilli(receivedAt)
		out = append(out, &ex)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate exchanges: %w", err)
	}

	return out, nil
}

// isBusy reports SQLITE_BUSY and "database is locked" failures, both of which
// clear once the competing writer commits.
func isBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}
