// Package lever adapts the Lever public postings API.
package lever

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"

	"github.com/aliceyli/job-board-finder/internal/board"
	"github.com/aliceyli/job-board-finder/internal/model"
)

const (
	defaultEndpoint = "https://api.lever.co/v0/postings/%s?include=content"
	defaultPublic   = "https://jobs.lever.co/%s"
)

// Fetcher retrieves a company's postings from Lever.
type Fetcher struct {
	client   *resty.Client
	endpoint string
	public   string
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithClient sets the HTTP client.
func WithClient(c *resty.Client) Option {
	return func(f *Fetcher) { f.client = c }
}

// WithEndpoint overrides the postings URL template.
func WithEndpoint(tmpl string) Option {
	return func(f *Fetcher) { f.endpoint = tmpl }
}

// New creates a Fetcher with the given options applied.
func New(opts ...Option) *Fetcher {
	f := &Fetcher{
		endpoint: defaultEndpoint,
		public:   defaultPublic,
	}
	for _, o := range opts {
		o(f)
	}
	if f.client == nil {
		f.client = board.NewHTTPClient(board.DefaultTimeout)
	}
	return f
}

// Name returns the provider identifier.
func (f *Fetcher) Name() model.Board { return model.BoardLever }

type leverPosting struct {
	Text       string `json:"text"`
	HostedURL  string `json:"hostedUrl"`
	ApplyURL   string `json:"applyUrl"`
	Categories struct {
		Location   string `json:"location"`
		Department string `json:"department"`
		Team       string `json:"team"`
		Commitment string `json:"commitment"`
	} `json:"categories"`
	Description      string `json:"description"`
	DescriptionPlain string `json:"descriptionPlain"`
	URLs             struct {
		Apply string `json:"apply"`
	} `json:"urls"`
}

// Fetch implements board.Provider.
func (f *Fetcher) Fetch(ctx context.Context, candidate string) (*model.BoardResult, error) {
	token := url.PathEscape(candidate)

	resp, err := f.client.R().SetContext(ctx).Get(fmt.Sprintf(f.endpoint, token))
	if err != nil {
		return nil, fmt.Errorf("http GET: %w", err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, nil
	}
	if !resp.IsSuccess() {
		return nil, &board.StatusError{Provider: model.BoardLever, Status: resp.StatusCode()}
	}

	body := resp.Body()
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("malformed lever payload")
	}
	// Lever answers unknown sites with an object ({"ok":false,...}).
	if !gjson.ParseBytes(body).IsArray() {
		return nil, nil
	}

	var rawPostings []json.RawMessage
	if err := json.Unmarshal(body, &rawPostings); err != nil {
		return nil, fmt.Errorf("json unmarshal: %w", err)
	}

	publicURL := fmt.Sprintf(f.public, token)
	jobs := make([]model.CanonicalJob, 0, len(rawPostings))
	for _, raw := range rawPostings {
		var p leverPosting
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("json unmarshal posting: %w", err)
		}
		if p.Text == "" {
			continue
		}

		job := model.CanonicalJob{
			Title:          p.Text,
			Location:       p.Categories.Location,
			URL:            firstNonEmpty(p.HostedURL, p.ApplyURL, p.URLs.Apply, publicURL),
			Team:           firstNonEmpty(p.Categories.Department, p.Categories.Team),
			EmploymentType: p.Categories.Commitment,
			Description:    firstNonEmpty(p.Description, p.DescriptionPlain),
			Raw:            raw,
		}
		if job.Location == "" {
			job.Location = model.UnspecifiedLocation
		}
		jobs = append(jobs, job)
	}

	return &model.BoardResult{
		Board: model.BoardLever,
		URL:   publicURL,
		Jobs:  jobs,
	}, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
