// Package model defines shared data structures for the ingest service.
package model

import (
	"encoding/json"
	"time"
)

// UnspecifiedLocation is stored when a provider omits a posting's location.
const UnspecifiedLocation = "Unspecified"

// Board identifies a third-party job board provider.
type Board string

const (
	BoardGreenhouse Board = "Greenhouse"
	BoardAshby      Board = "Ashby"
	BoardLever      Board = "Lever"
)

// ParseBoard converts a stored board name back to a Board.
func ParseBoard(s string) (Board, bool) {
	switch b := Board(s); b {
	case BoardGreenhouse, BoardAshby, BoardLever:
		return b, true
	}
	return "", false
}

// CanonicalJob is a posting normalised from any provider's wire format.
// Raw keeps the provider's own per-job payload for later reprocessing.
type CanonicalJob struct {
	Title          string          `json:"title"`
	Location       string          `json:"location"`
	URL            string          `json:"url"`
	Team           string          `json:"team,omitempty"`
	EmploymentType string          `json:"employmentType,omitempty"`
	Description    string          `json:"description"`
	Raw            json.RawMessage `json:"raw,omitempty"`
}

// BoardResult is what one provider adapter returns for a matching candidate.
type BoardResult struct {
	CompanyName string         `json:"companyName,omitempty"` // optional, provider supplied
	Board       Board          `json:"board"`
	URL         string         `json:"url"`
	Jobs        []CanonicalJob `json:"jobs"`
}

// Company mirrors a companies table row. BoardURL is the natural key.
type Company struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	Board     Board     `json:"board"`
	BoardURL  string    `json:"boardUrl"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Job mirrors a jobs table row. URL is the natural key.
type Job struct {
	ID             int64           `json:"id"`
	Title          string          `json:"title"`
	CompanyID      int64           `json:"companyId"`
	Location       string          `json:"location"`
	URL            string          `json:"url"`
	Team           string          `json:"team,omitempty"`
	EmploymentType string          `json:"employmentType,omitempty"`
	Description    string          `json:"description"`
	Raw            json.RawMessage `json:"raw,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// QueryLog is one append-only audit row per resolution attempt.
type QueryLog struct {
	ID              int64     `json:"id"`
	RawQuery        string    `json:"rawQuery"`
	NormalizedQuery string    `json:"normalizedQuery"`
	Found           bool      `json:"found"`
	Errors          []string  `json:"errors"`
	CreatedAt       time.Time `json:"createdAt"`
}

// JobFromCanonical builds the persisted row for a canonical job owned by companyID.
func JobFromCanonical(companyID int64, cj CanonicalJob) Job {
	return Job{
		Title:          cj.Title,
		CompanyID:      companyID,
		Location:       cj.Location,
		URL:            cj.URL,
		Team:           cj.Team,
		EmploymentType: cj.EmploymentType,
		Description:    cj.Description,
		Raw:            cj.Raw,
	}
}
