package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/aliceyli/job-board-finder/internal/model"
)

func setupTestDB(t *testing.T) *SQLite {
	t.Helper()
	s, err := OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestUpsertCompany_UpdatesInPlace(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	tick := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return tick }

	c := &model.Company{Name: "acme", Slug: "acme", Board: model.BoardGreenhouse, BoardURL: "https://job-boards.greenhouse.io/acme"}
	if err := s.UpsertCompany(ctx, c); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if c.ID == 0 {
		t.Fatal("expected non-zero ID")
	}
	firstID := c.ID

	tick = tick.Add(time.Hour)
	again := &model.Company{Name: "Acme Corp", Slug: "Acme", Board: model.BoardGreenhouse, BoardURL: c.BoardURL}
	if err := s.UpsertCompany(ctx, again); err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if again.ID != firstID {
		t.Errorf("expected same ID %d, got %d", firstID, again.ID)
	}
	if !again.CreatedAt.Equal(c.CreatedAt) {
		t.Errorf("created_at changed: %v -> %v", c.CreatedAt, again.CreatedAt)
	}
	if !again.UpdatedAt.Equal(tick) {
		t.Errorf("updated_at = %v, want %v", again.UpdatedAt, tick)
	}

	companies, err := s.ListCompanies(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(companies) != 1 {
		t.Fatalf("expected 1 company, got %d", len(companies))
	}
	if companies[0].Name != "Acme Corp" || companies[0].Slug != "Acme" {
		t.Errorf("company not updated: %+v", companies[0])
	}
}

func TestUpsertJob_Idempotent(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	c := &model.Company{Name: "acme", Slug: "acme", Board: model.BoardLever, BoardURL: "https://jobs.lever.co/acme"}
	if err := s.UpsertCompany(ctx, c); err != nil {
		t.Fatal(err)
	}

	j := &model.Job{Title: "SRE", CompanyID: c.ID, Location: "NYC", URL: "https://jobs.lever.co/acme/1", Raw: json.RawMessage(`{"id":"1"}`)}
	if err := s.UpsertJob(ctx, j); err != nil {
		t.Fatalf("upsert job: %v", err)
	}
	firstID := j.ID

	j2 := &model.Job{Title: "Senior SRE", CompanyID: c.ID, Location: "Remote", URL: j.URL}
	if err := s.UpsertJob(ctx, j2); err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if j2.ID != firstID {
		t.Errorf("expected same job ID %d, got %d", firstID, j2.ID)
	}

	n, err := s.CountJobs(ctx, c.ID)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("expected 1 job row, got %d", n)
	}

	var title string
	if err := s.db.QueryRowContext(ctx, `SELECT title FROM jobs WHERE id = ?`, firstID).Scan(&title); err != nil {
		t.Fatal(err)
	}
	if title != "Senior SRE" {
		t.Errorf("expected updated title, got %q", title)
	}
}

func TestUpsertJob_UnknownCompanyFails(t *testing.T) {
	s := setupTestDB(t)

	err := s.UpsertJob(context.Background(), &model.Job{Title: "x", CompanyID: 999, URL: "https://x"})
	if err == nil {
		t.Fatal("expected foreign key violation")
	}
}

func TestInsertQueryLog_NilErrorsStoredAsEmptyArray(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	if err := s.InsertQueryLog(ctx, &model.QueryLog{RawQuery: "Acme", NormalizedQuery: "acme", Found: true}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := s.InsertQueryLog(ctx, &model.QueryLog{
		RawQuery: "Zzzznoexist", NormalizedQuery: "zzzznoexist",
		Errors: []string{"zzzznoexist not found in job boards (Greenhouse, Ashby, Lever)"},
	}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	var stored string
	if err := s.db.QueryRowContext(ctx, `SELECT errors FROM query_logs WHERE raw_query = 'Acme'`).Scan(&stored); err != nil {
		t.Fatal(err)
	}
	if stored != "[]" {
		t.Errorf("expected [], got %q", stored)
	}

	logs, err := s.QueryLogs(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(logs) != 2 {
		t.Fatalf("expected 2 logs, got %d", len(logs))
	}
	if !logs[0].Found || logs[1].Found {
		t.Errorf("found flags wrong: %+v", logs)
	}
	if len(logs[1].Errors) != 1 {
		t.Errorf("expected 1 error, got %v", logs[1].Errors)
	}
}
