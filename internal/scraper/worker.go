// Package scraper is the entry point that turns a company name into stored
// jobs: slug generation, board resolution, audit logging and ingestion.
package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aliceyli/job-board-finder/internal/audit"
	"github.com/aliceyli/job-board-finder/internal/events"
	"github.com/aliceyli/job-board-finder/internal/ingest"
	"github.com/aliceyli/job-board-finder/internal/lock"
	"github.com/aliceyli/job-board-finder/internal/resolver"
	"github.com/aliceyli/job-board-finder/internal/slug"
)

// DefaultResolveTimeout bounds one whole resolution across all providers.
const DefaultResolveTimeout = 5 * time.Minute

// Result is what callers (HTTP handler, batch, scheduler) get back.
// JobsInserted and JobCount are set only after a successful ingestion.
type Result struct {
	Found        bool   `json:"found"`
	JobsInserted *int   `json:"jobsInserted,omitempty"`
	JobCount     *int   `json:"jobCount,omitempty"`
	Error        string `json:"error,omitempty"`
}

// Incomplete reports whether the company was found but not fully stored.
func (r Result) Incomplete() bool {
	if r.Error != "" {
		return true
	}
	if r.JobsInserted == nil || r.JobCount == nil {
		return false
	}
	return *r.JobsInserted < *r.JobCount
}

// Worker runs ResolveAndIngest.
type Worker struct {
	engine         *resolver.Engine
	pipeline       *ingest.Pipeline
	audit          *audit.Logger
	locker         lock.Locker
	publisher      events.Publisher
	resolveTimeout time.Duration
}

// NewWorker constructs a Worker. A nil locker defaults to an in-process lock
// and a nil publisher to events.Noop.
func NewWorker(
	engine *resolver.Engine,
	pipeline *ingest.Pipeline,
	auditLog *audit.Logger,
	locker lock.Locker,
	publisher events.Publisher,
	resolveTimeout time.Duration,
) *Worker {
	if locker == nil {
		locker = lock.NewLocal()
	}
	if publisher == nil {
		publisher = events.Noop{}
	}
	if resolveTimeout <= 0 {
		resolveTimeout = DefaultResolveTimeout
	}
	return &Worker{
		engine:         engine,
		pipeline:       pipeline,
		audit:          auditLog,
		locker:         locker,
		publisher:      publisher,
		resolveTimeout: resolveTimeout,
	}
}

// ResolveAndIngest resolves query to a job board and stores the company and
// its jobs. Exactly one query log row is written per call. Failures come
// back in Result.Error, never as a panic or error return.
func (w *Worker) ResolveAndIngest(ctx context.Context, query string) Result {
	normalized := slug.Normalize(query)
	slog.Info("scraper: starting job board search", "query", normalized)

	unlock, err := w.locker.Lock(ctx, normalized)
	if err != nil {
		msg := fmt.Sprintf("lock %s: %v", normalized, err)
		_ = w.audit.Record(ctx, audit.Entry{
			RawQuery: query, NormalizedQuery: normalized, Errors: []string{msg},
		})
		return Result{Error: msg}
	}
	defer unlock()

	rctx, cancel := context.WithTimeout(ctx, w.resolveTimeout)
	out := w.engine.Resolve(rctx, query)
	cancel()

	// Audit failures are reported inside Record and do not change the result.
	_ = w.audit.Record(ctx, audit.Entry{
		RawQuery:        query,
		NormalizedQuery: normalized,
		Found:           out.Found(),
		Errors:          out.Errors,
	})

	if !out.Found() {
		slog.Info("scraper: no job board found", "query", normalized, "errors", len(out.Errors))
		return Result{Found: false}
	}

	sum, err := w.pipeline.Ingest(ctx, out)
	if err != nil {
		msg := fmt.Sprintf("failed to add company/jobs for %s: %v", normalized, err)
		slog.Error("scraper: ingestion failed", "query", normalized, "err", err)
		return Result{Found: true, Error: msg}
	}
	slog.Info("scraper: jobs stored",
		"query", normalized, "board", out.Board,
		"jobsInserted", sum.JobsInserted, "jobCount", sum.JobCount)

	if err := w.publisher.PublishCompanyIngested(ctx, events.CompanyIngested{
		CompanyID:    sum.CompanyID,
		Company:      out.Name,
		Board:        string(out.Board),
		BoardURL:     out.BoardURL,
		JobCount:     sum.JobCount,
		JobsInserted: sum.JobsInserted,
	}); err != nil {
		slog.Warn("publish EVENT_COMPANY_INGESTED failed", "err", err)
	}

	inserted, count := sum.JobsInserted, sum.JobCount
	return Result{Found: true, JobsInserted: &inserted, JobCount: &count}
}
