// Package analytics implements the best-effort call-detail-record sink
// referenced by internal/gateway: a Postgres insert fired when a call
// room reaches its terminal state, gated on DATABASE_URL, and never
// allowed to fail the call itself.
package analytics

import (
	"context"
	"database/sql"
	"log"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

const insertTimeout = 3 * time.Second

// Sink receives call-completion records.
type Sink interface {
	RecordCallEnded(roomID, callerID, calleeID, reason string, startedAt, endedAt int64)
}

// NoopSink is used when DATABASE_URL is unset, so the server works
// without a database configured.
type NoopSink struct{}

func (NoopSink) RecordCallEnded(string, string, string, string, int64, int64) {}

// PostgresSink writes one CDR row per call-ended event. Failures are
// logged, not propagated — analytics is explicitly best-effort, the same
// posture this server applies to push-notification delivery.
type PostgresSink struct {
	db *sql.DB
}

// Open opens db and applies the CDR schema.
func Open(dbURL string) (*PostgresSink, error) {
	db, err := sql.Open("pgx", dbURL)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := runMigrations(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &PostgresSink{db: db}, nil
}

func runMigrations(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS call_records (
		id SERIAL PRIMARY KEY,
		room_id TEXT NOT NULL,
		caller_id TEXT NOT NULL,
		callee_id TEXT NOT NULL,
		reason TEXT NOT NULL,
		started_at BIGINT NOT NULL,
		ended_at BIGINT NOT NULL,
		recorded_at TIMESTAMPTZ DEFAULT NOW()
	)`)
	return err
}

func (s *PostgresSink) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *PostgresSink) RecordCallEnded(roomID, callerID, calleeID, reason string, startedAt, endedAt int64) {
	ctx, cancel := context.WithTimeout(context.Background(), insertTimeout)
	defer cancel()
	_, err := s.db.ExecContext(ctx, `INSERT INTO call_records
		(room_id, caller_id, callee_id, reason, started_at, ended_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		roomID, callerID, calleeID, reason, startedAt, endedAt)
	if err != nil {
		log.Printf("analytics: record call %s failed: %v", roomID, err)
	}
}
