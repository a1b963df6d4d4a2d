package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // Register sqlite driver

	"github.com/aliceyli/job-board-finder/internal/model"
)

//go:embed schema/sqlite.sql
var sqliteSchema string

const timeFormat = time.RFC3339Nano

// SQLite is a file or in-memory Store for local runs and tests.
type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLite opens dsn and creates the schema if needed.
func OpenSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Each connection to ":memory:" is its own empty database.
	if dsn == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("exec %s: %w", pragma, err)
		}
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return &SQLite{db: db, now: time.Now}, nil
}

func (s *SQLite) stamp() string { return s.now().UTC().Format(timeFormat) }

func (s *SQLite) UpsertCompany(ctx context.Context, c *model.Company) error {
	now := s.stamp()
	var created, updated string
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO companies (name, slug, board, board_url, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (board_url) DO UPDATE
		   SET name       = excluded.name,
		       slug       = excluded.slug,
		       board      = excluded.board,
		       updated_at = excluded.updated_at
		 RETURNING id, created_at, updated_at`,
		c.Name, c.Slug, string(c.Board), c.BoardURL, now, now,
	).Scan(&c.ID, &created, &updated)
	if err != nil {
		return fmt.Errorf("upsert company %s: %w", c.BoardURL, err)
	}
	c.CreatedAt, _ = time.Parse(timeFormat, created)
	c.UpdatedAt, _ = time.Parse(timeFormat, updated)
	return nil
}

func (s *SQLite) UpsertJob(ctx context.Context, j *model.Job) error {
	now := s.stamp()
	var created, updated string
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO jobs (title, company_id, location, url, team, employment_type, description, raw, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (url) DO UPDATE
		   SET title           = excluded.title,
		       company_id      = excluded.company_id,
		       location        = excluded.location,
		       team            = excluded.team,
		       employment_type = excluded.employment_type,
		       description     = excluded.description,
		       raw             = excluded.raw,
		       updated_at      = excluded.updated_at
		 RETURNING id, created_at, updated_at`,
		j.Title, j.CompanyID, j.Location, j.URL, j.Team, j.EmploymentType, j.Description,
		nullableJSON(j.Raw), now, now,
	).Scan(&j.ID, &created, &updated)
	if err != nil {
		return fmt.Errorf("upsert job %s: %w", j.URL, err)
	}
	j.CreatedAt, _ = time.Parse(timeFormat, created)
	j.UpdatedAt, _ = time.Parse(timeFormat, updated)
	return nil
}

func (s *SQLite) InsertQueryLog(ctx context.Context, l *model.QueryLog) error {
	l.Errors = nonNilErrors(l.Errors)
	errs, err := json.Marshal(l.Errors)
	if err != nil {
		return fmt.Errorf("marshal errors: %w", err)
	}

	now := s.now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO query_logs (raw_query, normalized_query, found, errors, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		l.RawQuery, l.NormalizedQuery, l.Found, string(errs), now.Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("insert query log: %w", err)
	}
	l.ID, _ = res.LastInsertId()
	l.CreatedAt = now
	return nil
}

func (s *SQLite) ListCompanies(ctx context.Context) ([]model.Company, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, slug, board, board_url, created_at, updated_at
		 FROM companies
		 ORDER BY updated_at ASC, id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list companies: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var companies []model.Company
	for rows.Next() {
		var c model.Company
		var board, created, updated string
		if err := rows.Scan(&c.ID, &c.Name, &c.Slug, &board, &c.BoardURL, &created, &updated); err != nil {
			return nil, fmt.Errorf("scan company: %w", err)
		}
		c.Board = model.Board(board)
		c.CreatedAt, _ = time.Parse(timeFormat, created)
		c.UpdatedAt, _ = time.Parse(timeFormat, updated)
		companies = append(companies, c)
	}
	return companies, rows.Err()
}

// QueryLogs returns every query log row in insertion order.
func (s *SQLite) QueryLogs(ctx context.Context) ([]model.QueryLog, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, raw_query, normalized_query, found, errors, created_at
		 FROM query_logs ORDER BY id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list query logs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var logs []model.QueryLog
	for rows.Next() {
		var l model.QueryLog
		var errs, created string
		if err := rows.Scan(&l.ID, &l.RawQuery, &l.NormalizedQuery, &l.Found, &errs, &created); err != nil {
			return nil, fmt.Errorf("scan query log: %w", err)
		}
		if err := json.Unmarshal([]byte(errs), &l.Errors); err != nil {
			return nil, fmt.Errorf("decode errors: %w", err)
		}
		l.CreatedAt, _ = time.Parse(timeFormat, created)
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

// CountJobs returns the number of job rows owned by companyID.
func (s *SQLite) CountJobs(ctx context.Context, companyID int64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM jobs WHERE company_id = ?`, companyID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count jobs: %w", err)
	}
	return n, nil
}

func (s *SQLite) Close() error { return s.db.Close() }
