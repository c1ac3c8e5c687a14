package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/fovcover/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id           TEXT PRIMARY KEY,
	neighborhood TEXT NOT NULL,
	status       TEXT NOT NULL DEFAULT 'queued',
	error        TEXT,
	output_path  TEXT,
	records      INTEGER NOT NULL DEFAULT 0,
	created_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS zone_stats (
	run_id       TEXT NOT NULL REFERENCES runs(id),
	zone         TEXT NOT NULL,
	position     INTEGER NOT NULL,
	fov_cnt      INTEGER NOT NULL,
	totfov_area  REAL NOT NULL,
	totqov_cnt   INTEGER NOT NULL,
	totqov_area  REAL NOT NULL,
	noir_pct     REAL NOT NULL,
	actl_fov     REAL NOT NULL,
	by_cause     TEXT,
	PRIMARY KEY (run_id, zone)
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_neighborhood ON runs(neighborhood);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, neighborhood string) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, neighborhood, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		id, neighborhood, string(model.RunStatusQueued), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}

	return &model.Run{
		ID:           id,
		Neighborhood: neighborhood,
		Status:       model.RunStatusQueued,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

func (s *SQLiteStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update run status %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) FailRun(ctx context.Context, runID string, cause error) error {
	msg := "unknown error"
	if cause != nil {
		msg = cause.Error()
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, error = ?, updated_at = ? WHERE id = ?`,
		string(model.RunStatusFailed), msg, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: fail run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

// CompleteRun records the zone statistics and marks the run complete in one
// transaction.
func (s *SQLiteStore) CompleteRun(ctx context.Context, runID, outputPath string, records int, zones []model.ZoneSummary) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin complete run")
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`UPDATE runs SET status = ?, output_path = ?, records = ?, error = NULL, updated_at = ? WHERE id = ?`,
		string(model.RunStatusComplete), outputPath, records, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete run %s", runID)
	}
	if err := checkRowsAffected(res, "run", runID); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM zone_stats WHERE run_id = ?`, runID); err != nil {
		return eris.Wrapf(err, "sqlite: clear zone stats %s", runID)
	}
	for i, z := range zones {
		byCause, err := json.Marshal(z.Stats.ByCause)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal cause stats")
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO zone_stats (run_id, zone, position, fov_cnt, totfov_area, totqov_cnt, totqov_area, noir_pct, actl_fov, by_cause)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			runID, string(z.Category), i,
			z.Stats.FOVCount, z.Stats.FOVArea, z.Stats.QOVCount, z.Stats.QOVArea,
			z.Stats.NoIRPct, z.Stats.ActualFOVPct, string(byCause),
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: insert zone stats %s/%s", runID, z.Category)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit complete run")
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE id = ?`,
		runID,
	)
	return scanRun(row)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.Neighborhood != "" {
		query += ` AND neighborhood = ?`
		args = append(args, filter.Neighborhood)
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) ZoneStats(ctx context.Context, runID string) ([]model.ZoneSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT zone, fov_cnt, totfov_area, totqov_cnt, totqov_area, noir_pct, actl_fov, by_cause
		 FROM zone_stats WHERE run_id = ? ORDER BY position`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: zone stats %s", runID)
	}
	defer rows.Close() //nolint:errcheck

	var out []model.ZoneSummary
	for rows.Next() {
		var z model.ZoneSummary
		var zone string
		var byCause sql.NullString
		err := rows.Scan(&zone, &z.Stats.FOVCount, &z.Stats.FOVArea, &z.Stats.QOVCount,
			&z.Stats.QOVArea, &z.Stats.NoIRPct, &z.Stats.ActualFOVPct, &byCause)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan zone stats")
		}
		z.Category = model.ZoneCategory(zone)
		if byCause.Valid && byCause.String != "" {
			if err := json.Unmarshal([]byte(byCause.String), &z.Stats.ByCause); err != nil {
				return nil, eris.Wrap(err, "sqlite: unmarshal cause stats")
			}
		}
		out = append(out, z)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: zone stats iterate")
}

// helpers

const runColumns = `id, neighborhood, status, error, output_path, records, created_at, updated_at`

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*model.Run, error) {
	var r model.Run
	var errMsg, output sql.NullString

	err := row.Scan(&r.ID, &r.Neighborhood, &r.Status, &errMsg, &output, &r.Records, &r.CreatedAt, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.New("run not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}
	r.Error = errMsg.String
	r.OutputPath = output.String
	return &r, nil
}
