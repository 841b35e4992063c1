// Package journal records lesson runs in a local SQLite database.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

var ErrNotFound = errors.New("journal: run not found")

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	lesson     TEXT NOT NULL,
	board      TEXT NOT NULL,
	sim        INTEGER NOT NULL,
	started_at INTEGER NOT NULL,
	ended_at   INTEGER NOT NULL,
	outcome    TEXT NOT NULL,
	detail     TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS runs_started_at ON runs (started_at DESC);
`

// Run is one recorded lesson run. Times are kept to the millisecond.
type Run struct {
	ID        string
	Lesson    string
	Board     string
	Sim       bool
	StartedAt time.Time
	EndedAt   time.Time
	Outcome   string
	Detail    string
}

func (r Run) Duration() time.Duration { return r.EndedAt.Sub(r.StartedAt) }

type Journal struct {
	db  *sql.DB
	log zerolog.Logger
}

// Open creates the database file and its directory as needed.
func Open(ctx context.Context, path string, log zerolog.Logger) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("journal: create dir: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("journal: open: %w", err)
	}
	// One writer; the CLI is the only client.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("journal: ping: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("journal: migrate: %w", err)
	}
	log.Debug().Str("path", path).Msg("journal open")
	return &Journal{db: db, log: log}, nil
}

func (j *Journal) Close() error { return j.db.Close() }

// Record stores r, assigning an ID when it has none, and returns it.
func (j *Journal) Record(ctx context.Context, r Run) (Run, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO runs (id, lesson, board, sim, started_at, ended_at, outcome, detail) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Lesson, r.Board, r.Sim, r.StartedAt.UnixMilli(), r.EndedAt.UnixMilli(), r.Outcome, r.Detail,
	)
	if err != nil {
		return Run{}, fmt.Errorf("journal: record %s: %w", r.Lesson, err)
	}
	j.log.Debug().Str("id", r.ID).Str("lesson", r.Lesson).Str("outcome", r.Outcome).Msg("run recorded")
	return r, nil
}

// List returns up to limit runs, newest first. limit <= 0 means all.
func (j *Journal) List(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, lesson, board, sim, started_at, ended_at, outcome, detail FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("journal: list: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("journal: list: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (j *Journal) Get(ctx context.Context, id string) (Run, error) {
	row := j.db.QueryRowContext(ctx,
		`SELECT id, lesson, board, sim, started_at, ended_at, outcome, detail FROM runs WHERE id = ?`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Run{}, fmt.Errorf("journal: get %s: %w", id, err)
	}
	return r, nil
}

type scanner interface{ Scan(dest ...any) error }

func scanRun(s scanner) (Run, error) {
	var (
		r              Run
		started, ended int64
	)
	if err := s.Scan(&r.ID, &r.Lesson, &r.Board, &r.Sim, &started, &ended, &r.Outcome, &r.Detail); err != nil {
		return Run{}, err
	}
	r.StartedAt, r.EndedAt = time.UnixMilli(started), time.UnixMilli(ended)
	return r, nil
}
