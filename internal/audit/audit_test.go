package audit_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aliceyli/job-board-finder/internal/audit"
	"github.com/aliceyli/job-board-finder/internal/model"
	"github.com/aliceyli/job-board-finder/internal/store"
)

type failingStore struct{ store.Store }

func (failingStore) InsertQueryLog(context.Context, *model.QueryLog) error {
	return errors.New("relation \"query_logs\" does not exist")
}

type captureReporter struct{ errs []error }

func (c *captureReporter) Report(_ context.Context, err error) { c.errs = append(c.errs, err) }

func TestRecord_WritesEmptyErrorList(t *testing.T) {
	s, err := store.OpenSQLite(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = s.Close() })

	l := audit.New(s, nil)
	if err := l.Record(context.Background(), audit.Entry{RawQuery: "Acme", NormalizedQuery: "acme", Found: true}); err != nil {
		t.Fatalf("record: %v", err)
	}

	logs, err := s.QueryLogs(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(logs) != 1 {
		t.Fatalf("expected 1 row, got %d", len(logs))
	}
	if logs[0].Errors == nil || len(logs[0].Errors) != 0 {
		t.Errorf("expected empty non-nil errors, got %#v", logs[0].Errors)
	}
}

func TestRecord_FailureIsReported(t *testing.T) {
	rep := &captureReporter{}
	l := audit.New(failingStore{}, rep)

	err := l.Record(context.Background(), audit.Entry{RawQuery: "Acme", NormalizedQuery: "acme"})

	var aerr *audit.AuditLogError
	if !errors.As(err, &aerr) {
		t.Fatalf("expected AuditLogError, got %v", err)
	}
	if len(rep.errs) != 1 {
		t.Fatalf("expected 1 reported error, got %d", len(rep.errs))
	}
	if !errors.As(rep.errs[0], &aerr) || aerr.Query != "Acme" {
		t.Errorf("unexpected reported error %v", rep.errs[0])
	}
}
