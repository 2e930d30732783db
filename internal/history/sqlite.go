package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/spigell/job-rotator/internal/platform"
)

// SQLiteStore keeps records in an insert-only table.
type SQLiteStore struct {
	db *sql.DB
}

func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}

	// modernc sqlite uses DSN like: file:foo.db?_pragma=busy_timeout(5000)
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	// sqlite wants a single writer
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate history: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var v int
	if err := tx.QueryRowContext(ctx, `PRAGMA user_version;`).Scan(&v); err != nil {
		return err
	}
	if v >= 1 {
		return tx.Commit()
	}

	if _, err := tx.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS outcomes (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  job_id TEXT NOT NULL,
  title TEXT NOT NULL DEFAULT '',
  company TEXT NOT NULL DEFAULT '',
  location TEXT NOT NULL DEFAULT '',
  work_style TEXT NOT NULL DEFAULT '',
  description TEXT NOT NULL DEFAULT '',
  experience_required TEXT NOT NULL DEFAULT '',
  hr_name TEXT NOT NULL DEFAULT '',
  hr_link TEXT NOT NULL DEFAULT '',
  resume_used TEXT NOT NULL DEFAULT '',
  date_posted TEXT NOT NULL DEFAULT '',
  date_acted TEXT NOT NULL DEFAULT '',
  job_link TEXT NOT NULL DEFAULT '',
  external_link TEXT NOT NULL DEFAULT '',
  outcome TEXT NOT NULL CHECK (outcome IN ('applied', 'failed', 'skipped')),
  reason TEXT NOT NULL DEFAULT '',
  timestamp TEXT NOT NULL,
  platform TEXT NOT NULL DEFAULT '',
  run_id TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_outcomes_platform_job ON outcomes(platform, job_id);
`); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `PRAGMA user_version = 1;`); err != nil {
		return err
	}
	return tx.Commit()
}

const outcomeColumns = `job_id, title, company, location, work_style, description,
  experience_required, hr_name, hr_link, resume_used, date_posted, date_acted,
  job_link, external_link, outcome, reason, timestamp, platform, run_id`

func (s *SQLiteStore) Append(ctx context.Context, r Record) error {
	args := make([]any, 0, len(Columns))
	for _, v := range r.row() {
		args = append(args, v)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO outcomes (`+outcomeColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("insert outcome: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Load(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+outcomeColumns+` FROM outcomes ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query outcomes: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			r         Record
			outcome   string
			timestamp string
		)
		if err := rows.Scan(
			&r.JobID, &r.Title, &r.Company, &r.Location, &r.WorkStyle, &r.Description,
			&r.ExperienceRequired, &r.HRName, &r.HRLink, &r.ResumeUsed, &r.DatePosted, &r.DateActed,
			&r.JobLink, &r.ExternalLink, &outcome, &r.Reason, &timestamp, &r.Platform, &r.RunID,
		); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		r.Outcome = platform.Outcome(outcome)
		if r.Timestamp, err = time.Parse(time.RFC3339, timestamp); err != nil {
			return nil, fmt.Errorf("outcome %s: %w", r.JobID, err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
