// Package audit writes one query log row per resolution attempt.
package audit

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aliceyli/job-board-finder/internal/model"
	"github.com/aliceyli/job-board-finder/internal/store"
)

// Entry is what gets recorded for one attempt.
type Entry struct {
	RawQuery        string
	NormalizedQuery string
	Found           bool
	Errors          []string
}

// AuditLogError wraps a failed query log write.
type AuditLogError struct {
	Query string
	Err   error
}

func (e *AuditLogError) Error() string {
	return fmt.Sprintf("audit log for %q: %v", e.Query, e.Err)
}

func (e *AuditLogError) Unwrap() error { return e.Err }

// Reporter receives audit failures. Nothing in the request path waits on it.
type Reporter interface {
	Report(ctx context.Context, err error)
}

// SlogReporter reports through the default slog logger.
type SlogReporter struct{}

func (SlogReporter) Report(_ context.Context, err error) {
	slog.Error("audit: query log write failed", "err", err)
}

// Logger records entries to a Store.
type Logger struct {
	store    store.Store
	reporter Reporter
}

// New returns a Logger. A nil reporter falls back to SlogReporter.
func New(s store.Store, r Reporter) *Logger {
	if r == nil {
		r = SlogReporter{}
	}
	return &Logger{store: s, reporter: r}
}

// Record writes e. On failure the error is reported and also returned so the
// caller may ignore it.
func (l *Logger) Record(ctx context.Context, e Entry) error {
	errs := e.Errors
	if errs == nil {
		errs = []string{}
	}
	row := &model.QueryLog{
		RawQuery:        e.RawQuery,
		NormalizedQuery: e.NormalizedQuery,
		Found:           e.Found,
		Errors:          errs,
	}
	if err := l.store.InsertQueryLog(ctx, row); err != nil {
		aerr := &AuditLogError{Query: e.RawQuery, Err: err}
		l.reporter.Report(ctx, aerr)
		return aerr
	}
	return nil
}
