package lever

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aliceyli/job-board-finder/internal/board"
	"github.com/aliceyli/job-board-finder/internal/model"
)

func newTestFetcher(t *testing.T, handler http.HandlerFunc) *Fetcher {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return New(WithEndpoint(ts.URL + "/v0/postings/%s?include=content"))
}

func TestFetch_NormalisesPostings(t *testing.T) {
	f := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v0/postings/acme-inc" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("include") != "content" {
			t.Errorf("expected include=content, got %q", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(`[
			{"id":"a","text":"SRE","hostedUrl":"https://jobs.lever.co/acme-inc/a","categories":{"location":"NYC","team":"Infra","commitment":"Full-time"},"description":"<b>html</b>","descriptionPlain":"plain"},
			{"id":"b","text":"PM","applyUrl":"https://jobs.lever.co/acme-inc/b/apply","categories":{},"descriptionPlain":"plain only"},
			{"id":"c","text":"Intern","urls":{"apply":"https://jobs.lever.co/acme-inc/c/apply2"}},
			{"id":"d","text":"Writer"},
			{"id":"e","text":""}
		]`))
	})

	res, err := f.Fetch(context.Background(), "acme-inc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res == nil || res.Board != model.BoardLever {
		t.Fatalf("expected a Lever result, got %+v", res)
	}
	if res.URL != "https://jobs.lever.co/acme-inc" {
		t.Errorf("unexpected board url %s", res.URL)
	}
	if len(res.Jobs) != 4 {
		t.Fatalf("expected 4 jobs, got %d", len(res.Jobs))
	}

	tests := []struct {
		url, location, description string
	}{
		{"https://jobs.lever.co/acme-inc/a", "NYC", "<b>html</b>"},
		{"https://jobs.lever.co/acme-inc/b/apply", model.UnspecifiedLocation, "plain only"},
		{"https://jobs.lever.co/acme-inc/c/apply2", model.UnspecifiedLocation, ""},
		{"https://jobs.lever.co/acme-inc", model.UnspecifiedLocation, ""},
	}
	for i, tt := range tests {
		got := res.Jobs[i]
		if got.URL != tt.url {
			t.Errorf("job %d: url = %q, want %q", i, got.URL, tt.url)
		}
		if got.Location != tt.location {
			t.Errorf("job %d: location = %q, want %q", i, got.Location, tt.location)
		}
		if got.Description != tt.description {
			t.Errorf("job %d: description = %q, want %q", i, got.Description, tt.description)
		}
	}
	if res.Jobs[0].Team != "Infra" || res.Jobs[0].EmploymentType != "Full-time" {
		t.Errorf("categories not mapped: %+v", res.Jobs[0])
	}
}

func TestFetch_ObjectBodyIsSoftMiss(t *testing.T) {
	f := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ok":false,"error":"Document not found"}`))
	})

	res, err := f.Fetch(context.Background(), "acme")
	if err != nil || res != nil {
		t.Fatalf("expected soft miss, got res=%v err=%v", res, err)
	}
}

func TestFetch_NotFoundIsSoftMiss(t *testing.T) {
	f := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	res, err := f.Fetch(context.Background(), "acme")
	if err != nil || res != nil {
		t.Fatalf("expected soft miss, got res=%v err=%v", res, err)
	}
}

func TestFetch_ServerErrorIsHard(t *testing.T) {
	f := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := f.Fetch(context.Background(), "acme")
	var se *board.StatusError
	if !errors.As(err, &se) || se.Status != http.StatusInternalServerError {
		t.Fatalf("expected 500 StatusError, got %v", err)
	}
}
