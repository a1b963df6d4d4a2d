// Package store persists companies, jobs and query logs.
//
// Companies are keyed by board_url and jobs by url. Both writes are upserts:
// re-resolving the same company updates rows in place and never duplicates
// them. Query logs are append-only.
package store

import (
	"context"
	"encoding/json"

	"github.com/aliceyli/job-board-finder/internal/model"
)

// Store is the relational store used by ingestion, auditing and the refresh
// scheduler.
type Store interface {
	// UpsertCompany inserts or updates c by BoardURL and fills in ID and
	// the timestamps.
	UpsertCompany(ctx context.Context, c *model.Company) error
	// UpsertJob inserts or updates j by URL and fills in ID and the timestamps.
	UpsertJob(ctx context.Context, j *model.Job) error
	// InsertQueryLog appends l and fills in ID and CreatedAt.
	InsertQueryLog(ctx context.Context, l *model.QueryLog) error
	// ListCompanies returns every stored company, oldest update first.
	ListCompanies(ctx context.Context) ([]model.Company, error)
	Close() error
}

func nullableJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

func nonNilErrors(errs []string) []string {
	if errs == nil {
		return []string{}
	}
	return errs
}
