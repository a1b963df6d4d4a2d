// Package greenhouse adapts the Greenhouse public job board API.
package greenhouse

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"

	"github.com/aliceyli/job-board-finder/internal/board"
	"github.com/aliceyli/job-board-finder/internal/model"
)

const (
	defaultEndpoint = "https://boards-api.greenhouse.io/v1/boards/%s/jobs?content=true"
	defaultPublic   = "https://job-boards.greenhouse.io/%s"
)

// Fetcher retrieves a company's postings from Greenhouse.
type Fetcher struct {
	client   *resty.Client
	endpoint string // fmt template, %s = board token
	public   string
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithClient sets the HTTP client.
func WithClient(c *resty.Client) Option {
	return func(f *Fetcher) { f.client = c }
}

// WithEndpoint overrides the job list URL template.
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
func (f *Fetcher) Name() model.Board { return model.BoardGreenhouse }

// ghJob mirrors one entry of the Greenhouse "jobs" array. Location is either
// an object with a name or, on some boards, a bare string.
type ghJob struct {
	Title       string          `json:"title"`
	AbsoluteURL string          `json:"absolute_url"`
	Location    json.RawMessage `json:"location"`
	Content     string          `json:"content"`
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
		return nil, &board.StatusError{Provider: model.BoardGreenhouse, Status: resp.StatusCode()}
	}

	body := resp.Body()
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("malformed greenhouse payload")
	}
	jobsField := gjson.GetBytes(body, "jobs")
	if !jobsField.Exists() || !jobsField.IsArray() {
		return nil, nil
	}

	var rawJobs []json.RawMessage
	if err := json.Unmarshal([]byte(jobsField.Raw), &rawJobs); err != nil {
		return nil, fmt.Errorf("json unmarshal: %w", err)
	}

	publicURL := fmt.Sprintf(f.public, token)
	jobs := make([]model.CanonicalJob, 0, len(rawJobs))
	for _, raw := range rawJobs {
		var j ghJob
		if err := json.Unmarshal(raw, &j); err != nil {
			return nil, fmt.Errorf("json unmarshal job: %w", err)
		}
		if j.Title == "" {
			slog.Debug("greenhouse: skipping untitled posting", "board", candidate)
			continue
		}

		jobURL := j.AbsoluteURL
		if jobURL == "" {
			jobURL = publicURL
		}

		jobs = append(jobs, model.CanonicalJob{
			Title:       j.Title,
			Location:    locationName(j.Location),
			URL:         jobURL,
			Description: j.Content,
			Raw:         raw,
		})
	}

	return &model.BoardResult{
		Board: model.BoardGreenhouse,
		URL:   publicURL,
		Jobs:  jobs,
	}, nil
}

// locationName resolves nested object -> flat string -> Unspecified.
func locationName(raw json.RawMessage) string {
	loc := gjson.ParseBytes(raw)
	switch {
	case loc.IsObject():
		if name := loc.Get("name").String(); name != "" {
			return name
		}
	case loc.Type == gjson.String && loc.String() != "":
		return loc.String()
	}
	return model.UnspecifiedLocation
}
