package scraper

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aliceyli/job-board-finder/internal/audit"
	"github.com/aliceyli/job-board-finder/internal/board"
	"github.com/aliceyli/job-board-finder/internal/events"
	"github.com/aliceyli/job-board-finder/internal/ingest"
	"github.com/aliceyli/job-board-finder/internal/lock"
	"github.com/aliceyli/job-board-finder/internal/model"
	"github.com/aliceyli/job-board-finder/internal/resolver"
	"github.com/aliceyli/job-board-finder/internal/store"
)

type stubProvider struct {
	name    model.Board
	matches map[string]*model.BoardResult
}

func (s *stubProvider) Name() model.Board { return s.name }

func (s *stubProvider) Fetch(_ context.Context, candidate string) (*model.BoardResult, error) {
	return s.matches[candidate], nil
}

type capturePublisher struct {
	mu     sync.Mutex
	events []events.CompanyIngested
	err    error
}

func (c *capturePublisher) PublishCompanyIngested(_ context.Context, ev events.CompanyIngested) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
	return c.err
}

func newTestWorker(t *testing.T, pub events.Publisher, providers ...*stubProvider) (*Worker, *store.SQLite) {
	t.Helper()
	s, err := store.OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	ps := make([]board.Provider, 0, len(providers))
	for _, p := range providers {
		ps = append(ps, p)
	}
	w := NewWorker(
		resolver.New(ps...),
		ingest.New(s),
		audit.New(s, nil),
		lock.NewLocal(),
		pub,
		time.Second,
	)
	return w, s
}

func acmeOnLever() *stubProvider {
	return &stubProvider{name: model.BoardLever, matches: map[string]*model.BoardResult{
		"acme": {Board: model.BoardLever, URL: "https://jobs.lever.co/acme", Jobs: []model.CanonicalJob{
			{Title: "SRE", URL: "https://jobs.lever.co/acme/1", Location: "NYC"},
			{Title: "PM", URL: "https://jobs.lever.co/acme/2", Location: model.UnspecifiedLocation},
		}},
	}}
}

func TestResolveAndIngest_Found(t *testing.T) {
	pub := &capturePublisher{}
	w, s := newTestWorker(t, pub,
		&stubProvider{name: model.BoardGreenhouse},
		&stubProvider{name: model.BoardAshby},
		acmeOnLever(),
	)

	res := w.ResolveAndIngest(context.Background(), "Acme")

	if !res.Found || res.Error != "" {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.JobsInserted == nil || *res.JobsInserted != 2 || res.JobCount == nil || *res.JobCount != 2 {
		t.Errorf("unexpected counts %+v", res)
	}
	if res.Incomplete() {
		t.Error("fully stored result reported incomplete")
	}

	logs, err := s.QueryLogs(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(logs) != 1 || !logs[0].Found || logs[0].RawQuery != "Acme" || logs[0].NormalizedQuery != "acme" {
		t.Errorf("unexpected query logs %+v", logs)
	}

	if len(pub.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(pub.events))
	}
	if pub.events[0].Board != "Lever" || pub.events[0].JobsInserted != 2 {
		t.Errorf("unexpected event %+v", pub.events[0])
	}
}

func TestResolveAndIngest_NotFoundWritesQueryLog(t *testing.T) {
	pub := &capturePublisher{}
	w, s := newTestWorker(t, pub,
		&stubProvider{name: model.BoardGreenhouse},
		&stubProvider{name: model.BoardAshby},
		&stubProvider{name: model.BoardLever},
	)

	res := w.ResolveAndIngest(context.Background(), "Zzzznoexist")

	if res.Found || res.JobCount != nil || res.Error != "" {
		t.Fatalf("unexpected result %+v", res)
	}

	logs, err := s.QueryLogs(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(logs) != 1 {
		t.Fatalf("expected 1 query log, got %d", len(logs))
	}
	l := logs[0]
	if l.RawQuery != "Zzzznoexist" || l.NormalizedQuery != "zzzznoexist" || l.Found {
		t.Errorf("unexpected log %+v", l)
	}
	if len(l.Errors) == 0 || !strings.Contains(l.Errors[len(l.Errors)-1], "not found") {
		t.Errorf("expected not-found summary error, got %v", l.Errors)
	}
	if len(pub.events) != 0 {
		t.Errorf("expected no events, got %d", len(pub.events))
	}
}

func TestResolveAndIngest_IngestFailureIsReported(t *testing.T) {
	broken := &stubProvider{name: model.BoardGreenhouse, matches: map[string]*model.BoardResult{
		"acme": {Board: model.BoardGreenhouse, URL: ""},
	}}
	w, s := newTestWorker(t, nil, broken)

	res := w.ResolveAndIngest(context.Background(), "acme")

	if !res.Found {
		t.Fatal("expected found")
	}
	want := "failed to add company/jobs for acme: " + ingest.ErrMissingBoardData.Error()
	if res.Error != want {
		t.Errorf("error = %q, want %q", res.Error, want)
	}
	if !res.Incomplete() {
		t.Error("expected Incomplete for an ingestion error")
	}

	logs, _ := s.QueryLogs(context.Background())
	if len(logs) != 1 || !logs[0].Found {
		t.Errorf("query log must be written before ingestion: %+v", logs)
	}
}

func TestResolveAndIngest_PublishFailureIsNotFatal(t *testing.T) {
	pub := &capturePublisher{err: errors.New("redis down")}
	w, _ := newTestWorker(t, pub, acmeOnLever())

	res := w.ResolveAndIngest(context.Background(), "acme")
	if !res.Found || res.Error != "" {
		t.Fatalf("publish failure leaked into result: %+v", res)
	}
}

type refusingLocker struct{}

func (refusingLocker) Lock(context.Context, string) (func(), error) {
	return nil, context.DeadlineExceeded
}

func TestResolveAndIngest_LockFailureStillAudits(t *testing.T) {
	s, err := store.OpenSQLite(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = s.Close() })

	w := NewWorker(resolver.New(acmeOnLever()), ingest.New(s), audit.New(s, nil), refusingLocker{}, nil, time.Second)
	res := w.ResolveAndIngest(context.Background(), "acme")
	if res.Found || res.Error == "" {
		t.Fatalf("expected lock error, got %+v", res)
	}

	logs, _ := s.QueryLogs(context.Background())
	if len(logs) != 1 || len(logs[0].Errors) != 1 {
		t.Errorf("expected one audited attempt, got %+v", logs)
	}
}

// queryLogFailingStore stores companies and jobs but refuses query logs.
type queryLogFailingStore struct {
	*store.SQLite
}

func (queryLogFailingStore) InsertQueryLog(context.Context, *model.QueryLog) error {
	return errors.New("query_logs: disk full")
}

type captureReporter struct {
	mu   sync.Mutex
	errs []error
}

func (c *captureReporter) Report(_ context.Context, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errs = append(c.errs, err)
}

func TestResolveAndIngest_AuditFailureKeepsResult(t *testing.T) {
	s, err := store.OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	failing := queryLogFailingStore{s}
	reporter := &captureReporter{}

	w := NewWorker(
		resolver.New(acmeOnLever()),
		ingest.New(failing),
		audit.New(failing, reporter),
		lock.NewLocal(),
		nil,
		time.Second,
	)

	res := w.ResolveAndIngest(context.Background(), "Acme")

	if !res.Found || res.Error != "" {
		t.Fatalf("audit failure must not change the result: %+v", res)
	}
	if res.JobsInserted == nil || *res.JobsInserted != 2 || res.JobCount == nil || *res.JobCount != 2 {
		t.Errorf("unexpected counts %+v", res)
	}

	if len(reporter.errs) != 1 {
		t.Fatalf("expected 1 reported error, got %d", len(reporter.errs))
	}
	var ae *audit.AuditLogError
	if !errors.As(reporter.errs[0], &ae) || ae.Query != "Acme" {
		t.Errorf("expected AuditLogError for Acme, got %v", reporter.errs[0])
	}
}

func TestResolveAndIngest_QueryLogKeepsRawText(t *testing.T) {
	w, s := newTestWorker(t, nil, acmeOnLever())

	res := w.ResolveAndIngest(context.Background(), "  Acme  ")
	if !res.Found {
		t.Fatalf("unexpected result %+v", res)
	}

	logs, err := s.QueryLogs(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(logs) != 1 || logs[0].RawQuery != "  Acme  " || logs[0].NormalizedQuery != "acme" {
		t.Errorf("unexpected query logs %+v", logs)
	}
}
