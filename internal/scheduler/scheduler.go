// Package scheduler wires up the cron job that periodically re-resolves every
// stored company so its job list stays fresh.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/aliceyli/job-board-finder/internal/model"
	"github.com/aliceyli/job-board-finder/internal/scraper"
)

// CompanyLister is the part of store.Store the scheduler needs.
type CompanyLister interface {
	ListCompanies(ctx context.Context) ([]model.Company, error)
}

// Refresher is satisfied by *scraper.Worker.
type Refresher interface {
	ResolveAndIngest(ctx context.Context, query string) scraper.Result
}

// Scheduler wraps robfig/cron and manages the refresh loop.
type Scheduler struct {
	cron       *cron.Cron
	logger     cron.Logger
	companies  CompanyLister
	worker     Refresher
	spec       string // cron spec, e.g. "@every 24h"
	runOnStart bool

	startup sync.WaitGroup
}

// New creates a Scheduler that fires every intervalHours hours. Overlapping
// cycles are skipped, not queued.
func New(companies CompanyLister, worker Refresher, intervalHours int, runOnStart bool) *Scheduler {
	logger := cron.PrintfLogger(slog.NewLogLogger(slog.Default().Handler(), slog.LevelInfo))
	return &Scheduler{
		cron:       cron.New(cron.WithLogger(logger)),
		logger:     logger,
		companies:  companies,
		worker:     worker,
		spec:       fmt.Sprintf("@every %dh", intervalHours),
		runOnStart: runOnStart,
	}
}

// refreshJob wraps runRefresh so that the start-up run and cron ticks share
// one SkipIfStillRunning guard.
func (s *Scheduler) refreshJob(ctx context.Context) cron.Job {
	return cron.NewChain(cron.SkipIfStillRunning(s.logger)).Then(cron.FuncJob(func() {
		s.runRefresh(ctx)
	}))
}

// Start registers the job and starts the scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	job := s.refreshJob(ctx)
	if _, err := s.cron.AddJob(s.spec, job); err != nil {
		return fmt.Errorf("cron.AddJob: %w", err)
	}

	s.cron.Start()
	slog.Info("scheduler: cron started", "spec", s.spec)

	if s.runOnStart {
		s.startup.Add(1)
		go func() {
			defer s.startup.Done()
			job.Run()
		}()
	}
	return nil
}

// Stop halts the scheduler and waits for any running cycle, including the
// start-up one, to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.startup.Wait()
	slog.Info("scheduler: cron stopped")
}

// runRefresh re-resolves stored companies one at a time, by slug.
func (s *Scheduler) runRefresh(ctx context.Context) {
	slog.Info("scheduler: refresh cycle started")

	companies, err := s.companies.ListCompanies(ctx)
	if err != nil {
		slog.Error("scheduler: list companies failed", "err", err)
		return
	}
	if len(companies) == 0 {
		slog.Info("scheduler: no stored companies, nothing to refresh")
		return
	}

	var found, failed int
	for _, c := range companies {
		if ctx.Err() != nil {
			slog.Warn("scheduler: refresh cycle interrupted", "err", ctx.Err())
			return
		}
		res := s.worker.ResolveAndIngest(ctx, c.Slug)
		if res.Found {
			found++
		}
		if !res.Found || res.Incomplete() {
			failed++
			slog.Warn("scheduler: refresh incomplete", "company", c.Name, "slug", c.Slug, "error", res.Error)
		}
	}

	slog.Info("scheduler: refresh cycle complete", "companies", len(companies), "found", found, "failed", failed)
}
