package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/areal-labs/overlay-cli/internal/feature"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL
// mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id            TEXT PRIMARY KEY,
	op            TEXT NOT NULL,
	params        TEXT,
	status        TEXT NOT NULL DEFAULT 'running',
	feature_count INTEGER NOT NULL DEFAULT 0,
	diagnostics   TEXT,
	result        TEXT,
	error         TEXT,
	created_at    DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_op ON runs(op);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, op string, params any) (*Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	var paramsJSON []byte
	if params != nil {
		var err error
		paramsJSON, err = json.Marshal(params)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: marshal params")
		}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, op, params, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, op, nullString(paramsJSON), string(RunStatusRunning), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}

	return &Run{
		ID:        id,
		Op:        op,
		Params:    paramsJSON,
		Status:    RunStatusRunning,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *SQLiteStore) FinishRun(ctx context.Context, id string, featureCount int, result []byte, diags []feature.Diagnostic) error {
	var diagsJSON []byte
	if len(diags) > 0 {
		var err error
		diagsJSON, err = json.Marshal(diags)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal diagnostics")
		}
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, feature_count = ?, result = ?, diagnostics = ?, updated_at = ? WHERE id = ?`,
		string(RunStatusCompleted), featureCount, nullString(result), nullString(diagsJSON), time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: finish run %s", id)
	}
	return checkRowsAffected(res, id)
}

func (s *SQLiteStore) FailRun(ctx context.Context, id string, reason string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, error = ?, updated_at = ? WHERE id = ?`,
		string(RunStatusFailed), reason, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: fail run %s", id)
	}
	return checkRowsAffected(res, id)
}

func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, op, params, status, feature_count, diagnostics, result, error, created_at, updated_at
		 FROM runs WHERE id = ?`, id)
	r, err := scanRun(row)
	if err != nil {
		if eris.Is(err, sql.ErrNoRows) {
			return nil, eris.Wrapf(err, "sqlite: run %s not found", id)
		}
		return nil, eris.Wrapf(err, "sqlite: get run %s", id)
	}
	return r, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, op, params, status, feature_count, diagnostics, result, error, created_at, updated_at
		 FROM runs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: iterate runs")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var r Run
	var params, diags, result, errMsg sql.NullString
	if err := row.Scan(
		&r.ID, &r.Op, &params, (*string)(&r.Status), &r.FeatureCount,
		&diags, &result, &errMsg, &r.CreatedAt, &r.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if params.Valid {
		r.Params = json.RawMessage(params.String)
	}
	if result.Valid {
		r.Result = json.RawMessage(result.String)
	}
	if errMsg.Valid {
		r.Error = errMsg.String
	}
	if diags.Valid {
		if err := json.Unmarshal([]byte(diags.String), &r.Diagnostics); err != nil {
			return nil, eris.Wrap(err, "unmarshal diagnostics")
		}
	}
	return &r, nil
}

func checkRowsAffected(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Errorf("sqlite: run %s not found", id)
	}
	return nil
}

func nullString(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
