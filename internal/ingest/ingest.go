// Package ingest persists a resolved company and its postings.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aliceyli/job-board-finder/internal/model"
	"github.com/aliceyli/job-board-finder/internal/resolver"
	"github.com/aliceyli/job-board-finder/internal/store"
)

// ErrMissingBoardData is returned before any write when a found outcome lacks
// its board, board URL, slug or name.
var ErrMissingBoardData = errors.New("company board data is missing")

// ErrMissingCompanyID is returned when the company upsert reports no id.
var ErrMissingCompanyID = errors.New("company id is missing")

// JobPersistError records one job that could not be upserted.
type JobPersistError struct {
	URL string
	Err error
}

func (e *JobPersistError) Error() string {
	return fmt.Sprintf("persist job %s: %v", e.URL, e.Err)
}

func (e *JobPersistError) Unwrap() error { return e.Err }

// Summary reports what one ingestion wrote.
type Summary struct {
	CompanyID    int64
	JobCount     int
	JobsInserted int
	Failed       []error
}

// InsertedFraction is JobsInserted/JobCount, or 1 when there was nothing to write.
func (s *Summary) InsertedFraction() float64 {
	if s.JobCount == 0 {
		return 1
	}
	return float64(s.JobsInserted) / float64(s.JobCount)
}

// Pipeline writes outcomes to a Store.
type Pipeline struct {
	store store.Store
}

// New returns a Pipeline backed by s.
func New(s store.Store) *Pipeline {
	return &Pipeline{store: s}
}

// Ingest upserts the company, then each job independently. A company failure
// aborts with no job written; a job failure is logged, recorded in the
// summary and skipped.
func (p *Pipeline) Ingest(ctx context.Context, out *resolver.Outcome) (*Summary, error) {
	if out == nil || out.Board == "" || out.BoardURL == "" || out.Slug == "" || out.Name == "" {
		return nil, ErrMissingBoardData
	}

	company := &model.Company{
		Name:     out.Name,
		Slug:     out.Slug,
		Board:    out.Board,
		BoardURL: out.BoardURL,
	}
	if err := p.store.UpsertCompany(ctx, company); err != nil {
		return nil, fmt.Errorf("insert company: %w", err)
	}
	if company.ID == 0 {
		return nil, ErrMissingCompanyID
	}

	sum := &Summary{CompanyID: company.ID, JobCount: len(out.Jobs)}
	for _, cj := range out.Jobs {
		job := model.JobFromCanonical(company.ID, cj)
		if err := p.store.UpsertJob(ctx, &job); err != nil {
			perr := &JobPersistError{URL: cj.URL, Err: err}
			slog.Warn("ingest: job upsert failed", "company", company.Name, "url", cj.URL, "err", err)
			sum.Failed = append(sum.Failed, perr)
			continue
		}
		sum.JobsInserted++
	}

	slog.Info("ingest: company stored",
		"company", company.Name, "board", company.Board,
		"jobCount", sum.JobCount, "jobsInserted", sum.JobsInserted)
	return sum, nil
}
