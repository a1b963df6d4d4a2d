// Package resolver finds which job board hosts a company.
//
// The search space is candidates × providers. Candidates come from the slug
// package in order; for each one the providers are tried in the order the
// Engine was built with. The first match wins and nothing after it is
// called. Soft misses are absorbed, hard errors are recorded and the search
// goes on. A single resolution never runs providers concurrently.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aliceyli/job-board-finder/internal/board"
	"github.com/aliceyli/job-board-finder/internal/model"
	"github.com/aliceyli/job-board-finder/internal/slug"
)

// ErrCandidateExhausted is returned by Outcome.Err when no candidate/provider
// pair matched.
var ErrCandidateExhausted = errors.New("candidate exhausted")

// Outcome is the terminal result of one resolution.
type Outcome struct {
	State    State
	Query    string
	Name     string // provider company name, else the normalized query
	Slug     string // the candidate that matched
	Board    model.Board
	BoardURL string
	Jobs     []model.CanonicalJob
	Errors   []string
}

// Found reports whether a board was attributed to the company.
func (o *Outcome) Found() bool { return o.State == StateFound }

// Err returns ErrCandidateExhausted for an exhausted resolution, nil otherwise.
func (o *Outcome) Err() error {
	if o.State == StateExhausted {
		return ErrCandidateExhausted
	}
	return nil
}

// Engine runs resolutions over an ordered provider list.
type Engine struct {
	providers []board.Provider
}

// New creates an Engine. Providers are tried in the order given.
func New(providers ...board.Provider) *Engine {
	return &Engine{providers: providers}
}

// Providers returns the provider names in priority order.
func (e *Engine) Providers() []model.Board {
	names := make([]model.Board, len(e.providers))
	for i, p := range e.providers {
		names[i] = p.Name()
	}
	return names
}

// run carries the mutable state of one resolution.
type run struct {
	out *Outcome
}

func (r *run) transition(to State) {
	if !IsTransitionAllowed(r.out.State, to) {
		slog.Error("resolver: illegal transition", "from", r.out.State, "to", to, "query", r.out.Query)
		return
	}
	r.out.State = to
}

// Resolve searches the providers for query. It always returns a terminal
// Outcome; the error list is never nil.
func (e *Engine) Resolve(ctx context.Context, query string) *Outcome {
	normalized := slug.Normalize(query)
	r := &run{out: &Outcome{
		State:  StateSearching,
		Query:  query,
		Errors: []string{},
	}}

	for _, candidate := range slug.Candidates(query) {
		for _, p := range e.providers {
			if err := ctx.Err(); err != nil {
				r.out.Errors = append(r.out.Errors, fmt.Sprintf("resolution aborted: %v", err))
				r.exhausted(normalized)
				return r.out
			}

			res, err := p.Fetch(ctx, candidate)
			switch Classify(res, err) {
			case Match:
				r.found(candidate, normalized, res)
				return r.out
			case HardError:
				perr := &board.ProviderError{Provider: p.Name(), Candidate: candidate, Err: err}
				slog.Warn("resolver: provider error", "provider", p.Name(), "candidate", candidate, "err", err)
				r.out.Errors = append(r.out.Errors, perr.Error())
			case SoftMiss:
			}
		}
	}

	r.out.Errors = append(r.out.Errors, fmt.Sprintf("%s not found in job boards (%s)", normalized, e.providerList()))
	r.exhausted(normalized)
	return r.out
}

func (r *run) exhausted(normalized string) {
	r.out.Name = normalized
	r.out.Jobs = []model.CanonicalJob{}
	r.transition(StateExhausted)
}

func (r *run) found(candidate, normalized string, res *model.BoardResult) {
	name := res.CompanyName
	if name == "" {
		name = normalized
	}
	r.out.Name = name
	r.out.Slug = candidate
	r.out.Board = res.Board
	r.out.BoardURL = res.URL
	r.out.Jobs = res.Jobs
	if r.out.Jobs == nil {
		r.out.Jobs = []model.CanonicalJob{}
	}
	r.transition(StateFound)
}

func (e *Engine) providerList() string {
	names := make([]string, len(e.providers))
	for i, p := range e.providers {
		names[i] = string(p.Name())
	}
	return strings.Join(names, ", ")
}
