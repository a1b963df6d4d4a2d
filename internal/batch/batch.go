// Package batch resolves a list of company names from a CSV file.
//
// Companies that no board knows about are appended to missing_companies.csv;
// companies that were found but not fully stored go to error_companies.csv.
// One company's failure never stops the run.
package batch

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/aliceyli/job-board-finder/internal/scraper"
)

const (
	MissingFile = "missing_companies.csv"
	ErrorFile   = "error_companies.csv"
)

// Resolver is satisfied by *scraper.Worker.
type Resolver interface {
	ResolveAndIngest(ctx context.Context, query string) scraper.Result
}

// Options controls a run.
type Options struct {
	Start       int // index of the first company to process, header excluded
	Concurrency int // companies in flight; 1 keeps them strictly sequential
	OutDir      string
}

// Stats summarizes a run.
type Stats struct {
	Total    int
	Found    int
	Errors   int
	Duration time.Duration
}

// ReadNames returns the first column of every row of r, skipping the header
// row when header is set and blank names always.
func ReadNames(r io.Reader, header bool) ([]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var names []string
	first := true
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read company csv: %w", err)
		}
		if first && header {
			first = false
			continue
		}
		first = false
		if len(rec) == 0 || strings.TrimSpace(rec[0]) == "" {
			continue
		}
		names = append(names, rec[0])
	}
	return names, nil
}

// resultWriter appends single-column rows to a CSV file.
type resultWriter struct {
	mu sync.Mutex
	f  *os.File
	w  *csv.Writer
}

func openResultWriter(path string) (*resultWriter, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return &resultWriter{f: f, w: csv.NewWriter(f)}, nil
}

func (rw *resultWriter) write(name string) error {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	if err := rw.w.Write([]string{name}); err != nil {
		return err
	}
	rw.w.Flush()
	return rw.w.Error()
}

func (rw *resultWriter) close() error {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	rw.w.Flush()
	return errors.Join(rw.w.Error(), rw.f.Close())
}

// Run resolves every name from index opts.Start on.
func Run(ctx context.Context, res Resolver, names []string, opts Options) (*Stats, error) {
	start := time.Now()
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.Start < 0 || opts.Start > len(names) {
		return nil, fmt.Errorf("start index %d out of range [0, %d]", opts.Start, len(names))
	}
	if opts.OutDir == "" {
		opts.OutDir = "."
	}
	if err := os.MkdirAll(opts.OutDir, 0o755); err != nil {
		return nil, fmt.Errorf("create out dir: %w", err)
	}

	missing, err := openResultWriter(filepath.Join(opts.OutDir, MissingFile))
	if err != nil {
		return nil, err
	}
	defer func() { _ = missing.close() }()
	failed, err := openResultWriter(filepath.Join(opts.OutDir, ErrorFile))
	if err != nil {
		return nil, err
	}
	defer func() { _ = failed.close() }()

	var (
		mu    sync.Mutex
		stats = &Stats{}
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)

	for i := opts.Start; i < len(names); i++ {
		if gctx.Err() != nil {
			break
		}
		i, name := i, names[i]
		g.Go(func() error {
			slog.Info("batch: begin processing", "idx", i, "company", name)
			r := res.ResolveAndIngest(gctx, name)

			mu.Lock()
			stats.Total++
			if r.Found {
				stats.Found++
			}
			if r.Incomplete() {
				stats.Errors++
			}
			mu.Unlock()

			if !r.Found {
				if err := missing.write(name); err != nil {
					slog.Error("batch: write missing company", "company", name, "err", err)
				}
			}
			if r.Incomplete() {
				if err := failed.write(name); err != nil {
					slog.Error("batch: write error company", "company", name, "err", err)
				}
			}
			slog.Info("batch: finished processing", "idx", i, "found", r.Found, "error", r.Error)
			return nil
		})
	}
	_ = g.Wait()

	stats.Duration = time.Since(start)
	slog.Info("batch: finished processing company list",
		"processed", stats.Total, "found", stats.Found, "withErrors", stats.Errors,
		"duration", stats.Duration)
	return stats, ctx.Err()
}
