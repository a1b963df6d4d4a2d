// Package events announces finished ingestions to other services.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ChannelCompanyIngested is the Redis channel (and event type) published
// after a company's jobs were stored.
const ChannelCompanyIngested = "EVENT_COMPANY_INGESTED"

// CompanyIngested is the payload of ChannelCompanyIngested.
type CompanyIngested struct {
	Type         string    `json:"type"`
	CompanyID    int64     `json:"companyId"`
	Company      string    `json:"company"`
	Board        string    `json:"board"`
	BoardURL     string    `json:"boardUrl"`
	JobCount     int       `json:"jobCount"`
	JobsInserted int       `json:"jobsInserted"`
	At           time.Time `json:"at"`
}

// Publisher sends events. Publishing is never fatal to the caller.
type Publisher interface {
	PublishCompanyIngested(ctx context.Context, ev CompanyIngested) error
}

// Redis publishes JSON events with PUBLISH.
type Redis struct {
	rdb *redis.Client
}

// NewRedis returns a Publisher backed by rdb.
func NewRedis(rdb *redis.Client) *Redis {
	return &Redis{rdb: rdb}
}

func (r *Redis) PublishCompanyIngested(ctx context.Context, ev CompanyIngested) error {
	ev.Type = ChannelCompanyIngested
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", ChannelCompanyIngested, err)
	}
	if err := r.rdb.Publish(ctx, ChannelCompanyIngested, payload).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", ChannelCompanyIngested, err)
	}
	return nil
}

// Noop drops every event. Used when REDIS_URL is not configured.
type Noop struct{}

func (Noop) PublishCompanyIngested(context.Context, CompanyIngested) error { return nil }
