// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package calllog records extraction attempts in SQLite. Only metadata is
// stored (provider, outcome, sizes, timings); field values never are.
package calllog

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/partnerform/pkg/types"
)

const memoryDSN = ":memory:"

// timeLayout has fixed-width fractions so started_at sorts as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// OutcomeRecovered marks an attempt whose provider call produced raw text.
// Failed attempts use the FailureReason string.
const OutcomeRecovered = "recovered"

// Attempt is one extraction attempt.
type Attempt struct {
	ID         string        `json:"id" yaml:"id"`
	SessionID  string        `json:"session_id" yaml:"session_id"`
	Provider   string        `json:"provider" yaml:"provider"`
	Model      string        `json:"model,omitempty" yaml:"model,omitempty"`
	Outcome    string        `json:"outcome" yaml:"outcome"`
	ParsePhase string        `json:"parse_phase,omitempty" yaml:"parse_phase,omitempty"`
	RawBytes   int           `json:"raw_bytes" yaml:"raw_bytes"`
	Duration   time.Duration `json:"duration" yaml:"duration"`
	StartedAt  time.Time     `json:"started_at" yaml:"started_at"`
}

// Outcome returns the outcome string for an extraction result.
func Outcome(r types.ExtractionResult) string {
	if r.OK() {
		return OutcomeRecovered
	}
	return string(r.Reason)
}

// Log manages the attempts database.
type Log struct {
	db *sql.DB
}

// Open opens or creates the attempts database. An empty path keeps the log
// in memory for the life of the process.
func Open(cfg types.CallLogConfig) (*Log, error) {
	dsn := memoryDSN
	if cfg.Path != "" {
		if dir := filepath.Dir(cfg.Path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("creating call log directory: %w", err)
			}
		}
		dsn = cfg.Path + "?_journal_mode=WAL"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening call log: %w", err)
	}
	// Every connection to :memory: is a separate database.
	db.SetMaxOpenConns(1)

	l := &Log{db: db}
	if err := l.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating call log schema: %w", err)
	}
	return l, nil
}

// Close releases the database connection.
func (l *Log) Close() error {
	return l.db.Close()
}

func (l *Log) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS attempts (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			provider TEXT NOT NULL,
			model TEXT,
			outcome TEXT NOT NULL,
			parse_phase TEXT,
			raw_bytes INTEGER NOT NULL DEFAULT 0,
			duration_ms INTEGER NOT NULL DEFAULT 0,
			started_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_attempts_session ON attempts(session_id)`,
	}
	for _, stmt := range statements {
		if _, err := l.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Record stores a. A blank ID is filled with a new UUID and a zero
// StartedAt with the current time. The stored attempt is returned.
func (l *Log) Record(ctx context.Context, a Attempt) (Attempt, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.StartedAt.IsZero() {
		a.StartedAt = time.Now()
	}
	a.StartedAt = a.StartedAt.UTC()

	_, err := l.db.ExecContext(ctx,
		`INSERT INTO attempts (id, session_id, provider, model, outcome, parse_phase, raw_bytes, duration_ms, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.SessionID, a.Provider, a.Model, a.Outcome, a.ParsePhase,
		a.RawBytes, a.Duration.Milliseconds(), a.StartedAt.Format(timeLayout),
	)
	if err != nil {
		return Attempt{}, fmt.Errorf("recording attempt %s: %w", a.ID, err)
	}
	return a, nil
}

// List returns the attempts of sessionID oldest first. An empty sessionID
// lists every attempt.
func (l *Log) List(ctx context.Context, sessionID string) ([]Attempt, error) {
	query := `SELECT id, session_id, provider, model, outcome, parse_phase, raw_bytes, duration_ms, started_at
		FROM attempts`
	var args []any
	if sessionID != "" {
		query += ` WHERE session_id = ?`
		args = append(args, sessionID)
	}
	query += ` ORDER BY started_at, rowid`

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing attempts: %w", err)
	}
	defer rows.Close()

	var attempts []Attempt
	for rows.Next() {
		var (
			a          Attempt
			model      sql.NullString
			phase      sql.NullString
			durationMS int64
			startedAt  string
		)
		if err := rows.Scan(&a.ID, &a.SessionID, &a.Provider, &model, &a.Outcome, &phase,
			&a.RawBytes, &durationMS, &startedAt); err != nil {
			return nil, fmt.Errorf("scanning attempt: %w", err)
		}
		a.Model = model.String
		a.ParsePhase = phase.String
		a.Duration = time.Duration(durationMS) * time.Millisecond
		if a.StartedAt, err = time.Parse(timeLayout, startedAt); err != nil {
			return nil, fmt.Errorf("parsing started_at of %s: %w", a.ID, err)
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

// Counts returns the number of attempts per outcome for sessionID (all
// sessions when empty).
func (l *Log) Counts(ctx context.Context, sessionID string) (map[string]int, error) {
	query := `SELECT outcome, count(*) FROM attempts`
	var args []any
	if sessionID != "" {
		query += ` WHERE session_id = ?`
		args = append(args, sessionID)
	}
	query += ` GROUP BY outcome`

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("counting attempts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var outcome string
		var n int
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, fmt.Errorf("scanning count: %w", err)
		}
		counts[outcome] = n
	}
	return counts, rows.Err()
}
