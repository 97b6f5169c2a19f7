// Package history — журнал прогонов в SQLite.
//
// Каждый прогон (обучение или smoke-тест) добавляет строку в таблицу runs,
// чтобы по одной базе было видно, какие артефакты получены и чем
// закончилась их проверка.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id      TEXT    NOT NULL,
    mode        TEXT    NOT NULL,
    started_at  TEXT    NOT NULL,
    duration_ms INTEGER NOT NULL DEFAULT 0,
    backend     TEXT,
    base_model  TEXT,
    model_ref   TEXT,
    output_dir  TEXT,
    examples    INTEGER NOT NULL DEFAULT 0,
    exported    INTEGER NOT NULL DEFAULT 0,
    success     INTEGER NOT NULL DEFAULT 0,
    error       TEXT,
    smoke_valid INTEGER NOT NULL DEFAULT 0,
    smoke_total INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS runs_started_at ON runs (started_at);
`

// Run — одна запись журнала.
type Run struct {
	ID         int64
	RunID      string
	Mode       string
	StartedAt  time.Time
	Duration   time.Duration
	Backend    string
	BaseModel  string
	ModelRef   string
	OutputDir  string
	Examples   int
	Exported   bool
	Success    bool
	Error      string
	SmokeValid int
	SmokeTotal int
}

// Store — журнал поверх *sql.DB.
type Store struct {
	db *sql.DB
}

// Open открывает (или создаёт) базу и применяет схему.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create history dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	// sqlite: один писатель
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply history schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close закрывает базу.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record добавляет прогон и возвращает его id.
func (s *Store) Record(ctx context.Context, r Run) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
INSERT INTO runs (run_id, mode, started_at, duration_ms, backend, base_model, model_ref,
                  output_dir, examples, exported, success, error, smoke_valid, smoke_total)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.Mode, r.StartedAt.UTC().Format(time.RFC3339Nano), r.Duration.Milliseconds(),
		r.Backend, r.BaseModel, r.ModelRef, r.OutputDir, r.Examples,
		boolInt(r.Exported), boolInt(r.Success), nullString(r.Error), r.SmokeValid, r.SmokeTotal)
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}
	return res.LastInsertId()
}

// Recent возвращает последние limit прогонов, новые первыми.
func (s *Store) Recent(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, run_id, mode, started_at, duration_ms, backend, base_model, model_ref,
       output_dir, examples, exported, success, error, smoke_valid, smoke_total
FROM runs ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r                                      Run
			started                                string
			durationMs                             int64
			backend, baseModel, modelRef, out, msg sql.NullString
			exported, success                      int
		)
		if err := rows.Scan(&r.ID, &r.RunID, &r.Mode, &started, &durationMs, &backend, &baseModel, &modelRef,
			&out, &r.Examples, &exported, &success, &msg, &r.SmokeValid, &r.SmokeTotal); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.StartedAt, err = time.Parse(time.RFC3339Nano, started)
		if err != nil {
			return nil, fmt.Errorf("parse started_at %q: %w", started, err)
		}
		r.Duration = time.Duration(durationMs) * time.Millisecond
		r.Backend = backend.String
		r.BaseModel = baseModel.String
		r.ModelRef = modelRef.String
		r.OutputDir = out.String
		r.Error = msg.String
		r.Exported = exported != 0
		r.Success = success != 0
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
