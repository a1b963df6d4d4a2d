// Package ashby adapts the Ashby hosted jobs page GraphQL API.
//
// A board is read in three phases: the organisation's display name (best
// effort), the job board with its teams and postings, and then one detail
// call per posting for the description. Detail calls run strictly one after
// another, each gated by a Throttle, so a large board does not trip Ashby's
// rate limiting.
package ashby

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"

	"github.com/aliceyli/job-board-finder/internal/board"
	"github.com/aliceyli/job-board-finder/internal/model"
)

const (
	defaultEndpoint = "https://jobs.ashbyhq.com/api/non-user-graphql"
	defaultPublic   = "https://jobs.ashbyhq.com/%s"

	// DefaultEnrichInterval is the pause between per-posting detail calls.
	DefaultEnrichInterval = 500 * time.Millisecond
)

const jobBoardQuery = `query JobBoardWithTeams($organizationHostedJobsPageName: String!) {
  jobBoard: jobBoardWithTeams(organizationHostedJobsPageName: $organizationHostedJobsPageName) {
    teams {
      id
      name
    }
    jobPostings {
      id
      title
      employmentType
      locationName
      teamId
    }
  }
}`

const organizationQuery = `query ApiOrganizationFromHostedJobsPageName(
  $organizationHostedJobsPageName: String!
  $searchContext: OrganizationSearchContext
) {
  organization: organizationFromHostedJobsPageName(
    organizationHostedJobsPageName: $organizationHostedJobsPageName
    searchContext: $searchContext
  ) {
    name
  }
}`

const jobPostingQuery = `query ApiJobPosting(
  $organizationHostedJobsPageName: String!
  $jobPostingId: String!
) {
  jobPosting(
    organizationHostedJobsPageName: $organizationHostedJobsPageName
    jobPostingId: $jobPostingId
  ) {
    descriptionHtml
    compensationTierSummary
  }
}`

// Fetcher retrieves a company's postings from Ashby.
type Fetcher struct {
	client   *resty.Client
	endpoint string
	public   string
	throttle board.ThrottlePolicy
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithClient sets the HTTP client.
func WithClient(c *resty.Client) Option {
	return func(f *Fetcher) { f.client = c }
}

// WithEndpoint overrides the GraphQL endpoint.
func WithEndpoint(ep string) Option {
	return func(f *Fetcher) { f.endpoint = ep }
}

// WithThrottle sets the pacing policy for posting detail calls. Each Fetch
// draws its own Throttle from it.
func WithThrottle(p board.ThrottlePolicy) Option {
	return func(f *Fetcher) { f.throttle = p }
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
	if f.throttle == nil {
		f.throttle = board.FixedInterval(DefaultEnrichInterval)
	}
	return f
}

// Name returns the provider identifier.
func (f *Fetcher) Name() model.Board { return model.BoardAshby }

type graphQLRequest struct {
	OperationName string         `json:"operationName"`
	Variables     map[string]any `json:"variables"`
	Query         string         `json:"query"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors,omitempty"`
}

func (r *graphQLResponse) err() error {
	if len(r.Errors) == 0 {
		return nil
	}
	msgs := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		msgs = append(msgs, e.Message)
	}
	return fmt.Errorf("Ashby GraphQL error: %s", strings.Join(msgs, "; "))
}

type ashbyTeam struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type ashbyPosting struct {
	ID             string `json:"id"`
	Title          string `json:"title"`
	EmploymentType string `json:"employmentType"`
	LocationName   string `json:"locationName"`
	TeamID         string `json:"teamId"`
}

type jobBoardData struct {
	JobBoard *struct {
		Teams       []ashbyTeam       `json:"teams"`
		JobPostings []json.RawMessage `json:"jobPostings"`
	} `json:"jobBoard"`
}

// rawPosting is what ends up in CanonicalJob.Raw.
type rawPosting struct {
	Posting json.RawMessage `json:"posting"`
	Detail  json.RawMessage `json:"detail,omitempty"`
}

// post sends one GraphQL operation. The response is decoded only for 2xx
// statuses; callers inspect the status code for everything else.
func (f *Fetcher) post(ctx context.Context, op, query string, vars map[string]any) (int, *graphQLResponse, error) {
	resp, err := f.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(graphQLRequest{OperationName: op, Variables: vars, Query: query}).
		Post(f.endpoint)
	if err != nil {
		return 0, nil, fmt.Errorf("http POST %s: %w", op, err)
	}
	if !resp.IsSuccess() {
		return resp.StatusCode(), nil, nil
	}

	var gql graphQLResponse
	if err := json.Unmarshal(resp.Body(), &gql); err != nil {
		return resp.StatusCode(), nil, fmt.Errorf("unmarshal %s response: %w", op, err)
	}
	return resp.StatusCode(), &gql, nil
}

// Fetch implements board.Provider.
func (f *Fetcher) Fetch(ctx context.Context, candidate string) (*model.BoardResult, error) {
	orgName := f.organizationName(ctx, candidate)

	status, gql, err := f.post(ctx, "JobBoardWithTeams", jobBoardQuery, map[string]any{
		"organizationHostedJobsPageName": candidate,
	})
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, nil
	}
	if gql == nil {
		return nil, &board.StatusError{Provider: model.BoardAshby, Status: status}
	}
	if err := gql.err(); err != nil {
		return nil, err
	}

	var data jobBoardData
	if len(gql.Data) > 0 {
		if err := json.Unmarshal(gql.Data, &data); err != nil {
			return nil, fmt.Errorf("unmarshal job board: %w", err)
		}
	}
	if data.JobBoard == nil || data.JobBoard.Teams == nil {
		return nil, nil
	}

	teams := make(map[string]string, len(data.JobBoard.Teams))
	for _, t := range data.JobBoard.Teams {
		teams[t.ID] = t.Name
	}

	publicURL := fmt.Sprintf(f.public, url.PathEscape(candidate))
	throttle := f.throttle()
	enrich := true
	jobs := make([]model.CanonicalJob, 0, len(data.JobBoard.JobPostings))
	for _, raw := range data.JobBoard.JobPostings {
		var p ashbyPosting
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("unmarshal job posting: %w", err)
		}
		if p.Title == "" || p.ID == "" {
			continue
		}

		job := model.CanonicalJob{
			Title:          p.Title,
			Location:       p.LocationName,
			URL:            publicURL + "/" + url.PathEscape(p.ID),
			Team:           teams[p.TeamID],
			EmploymentType: p.EmploymentType,
		}
		if job.Location == "" {
			job.Location = model.UnspecifiedLocation
		}

		// A throttle error means the next slot lands past the deadline; the
		// remaining postings keep an empty description.
		if enrich {
			if err := throttle.Wait(ctx); err != nil {
				slog.Warn("ashby: enrichment stopped", "board", candidate, "posting", p.ID, "err", err)
				enrich = false
			}
		}
		var detail json.RawMessage
		if enrich {
			desc, d, err := f.postingDetail(ctx, candidate, p.ID)
			if err != nil {
				slog.Warn("ashby: posting enrichment failed", "board", candidate, "posting", p.ID, "err", err)
			}
			job.Description = desc
			detail = d
		}

		job.Raw, err = json.Marshal(rawPosting{Posting: raw, Detail: detail})
		if err != nil {
			slog.Warn("ashby: encode raw posting", "board", candidate, "posting", p.ID, "err", err)
			job.Raw = raw
		}

		jobs = append(jobs, job)
	}

	return &model.BoardResult{
		CompanyName: orgName,
		Board:       model.BoardAshby,
		URL:         publicURL,
		Jobs:        jobs,
	}, nil
}

// organizationName is best effort: any failure just leaves the name empty.
func (f *Fetcher) organizationName(ctx context.Context, candidate string) string {
	_, gql, err := f.post(ctx, "ApiOrganizationFromHostedJobsPageName", organizationQuery, map[string]any{
		"organizationHostedJobsPageName": candidate,
		"searchContext":                  "JobPosting",
	})
	if err != nil {
		slog.Debug("ashby: organization lookup failed", "board", candidate, "err", err)
		return ""
	}
	if gql == nil {
		return ""
	}
	return gjson.GetBytes(gql.Data, "organization.name").String()
}

var errPostingNotFound = errors.New("job posting not found")

// postingDetail returns the description HTML and the raw detail payload.
func (f *Fetcher) postingDetail(ctx context.Context, candidate, postingID string) (string, json.RawMessage, error) {
	status, gql, err := f.post(ctx, "ApiJobPosting", jobPostingQuery, map[string]any{
		"organizationHostedJobsPageName": candidate,
		"jobPostingId":                   postingID,
	})
	if err != nil {
		return "", nil, err
	}
	if status == http.StatusNotFound {
		return "", nil, errPostingNotFound
	}
	if gql == nil {
		return "", nil, &board.StatusError{Provider: model.BoardAshby, Status: status}
	}
	if err := gql.err(); err != nil {
		return "", nil, err
	}

	posting := gjson.GetBytes(gql.Data, "jobPosting")
	if !posting.IsObject() {
		return "", nil, errPostingNotFound
	}
	return posting.Get("descriptionHtml").String(), json.RawMessage(posting.Raw), nil
}
