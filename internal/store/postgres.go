package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aliceyli/job-board-finder/internal/model"
)

// Postgres is the production Store. The schema it expects is in
// schema/postgres.sql; this service does not run migrations.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres wraps an open pool.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) UpsertCompany(ctx context.Context, c *model.Company) error {
	err := p.pool.QueryRow(ctx,
		`INSERT INTO companies (name, slug, board, board_url)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (board_url) DO UPDATE
		   SET name       = EXCLUDED.name,
		       slug       = EXCLUDED.slug,
		       board      = EXCLUDED.board,
		       updated_at = NOW()
		 RETURNING id, created_at, updated_at`,
		c.Name, c.Slug, string(c.Board), c.BoardURL,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert company %s: %w", c.BoardURL, err)
	}
	return nil
}

func (p *Postgres) UpsertJob(ctx context.Context, j *model.Job) error {
	err := p.pool.QueryRow(ctx,
		`INSERT INTO jobs (title, company_id, location, url, team, employment_type, description, raw)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8::jsonb)
		 ON CONFLICT (url) DO UPDATE
		   SET title           = EXCLUDED.title,
		       company_id      = EXCLUDED.company_id,
		       location        = EXCLUDED.location,
		       team            = EXCLUDED.team,
		       employment_type = EXCLUDED.employment_type,
		       description     = EXCLUDED.description,
		       raw             = EXCLUDED.raw,
		       updated_at      = NOW()
		 RETURNING id, created_at, updated_at`,
		j.Title, j.CompanyID, j.Location, j.URL, j.Team, j.EmploymentType, j.Description,
		nullableJSON(j.Raw),
	).Scan(&j.ID, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert job %s: %w", j.URL, err)
	}
	return nil
}

func (p *Postgres) InsertQueryLog(ctx context.Context, l *model.QueryLog) error {
	l.Errors = nonNilErrors(l.Errors)
	err := p.pool.QueryRow(ctx,
		`INSERT INTO query_logs (raw_query, normalized_query, found, errors)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at`,
		l.RawQuery, l.NormalizedQuery, l.Found, l.Errors,
	).Scan(&l.ID, &l.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert query log: %w", err)
	}
	return nil
}

func (p *Postgres) ListCompanies(ctx context.Context) ([]model.Company, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, name, slug, board, board_url, created_at, updated_at
		 FROM companies
		 ORDER BY updated_at ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("query companies: %w", err)
	}
	defer rows.Close()

	var companies []model.Company
	for rows.Next() {
		var c model.Company
		var board string
		if err := rows.Scan(&c.ID, &c.Name, &c.Slug, &board, &c.BoardURL, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		c.Board = model.Board(board)
		companies = append(companies, c)
	}
	return companies, rows.Err()
}

// Close releases the pool.
func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}
