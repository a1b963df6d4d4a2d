package events_test

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/aliceyli/job-board-finder/internal/events"
)

func TestNoop(t *testing.T) {
	var p events.Publisher = events.Noop{}
	if err := p.PublishCompanyIngested(context.Background(), events.CompanyIngested{}); err != nil {
		t.Errorf("Noop returned %v", err)
	}
}

func TestRedis_PublishesJSON(t *testing.T) {
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		t.Fatal(err)
	}
	rdb := redis.NewClient(opts)
	t.Cleanup(func() { _ = rdb.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sub := rdb.Subscribe(ctx, events.ChannelCompanyIngested)
	t.Cleanup(func() { _ = sub.Close() })
	if _, err := sub.Receive(ctx); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	p := events.NewRedis(rdb)
	if err := p.PublishCompanyIngested(ctx, events.CompanyIngested{CompanyID: 7, Company: "acme", JobCount: 3, JobsInserted: 3}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	msg, err := sub.ReceiveMessage(ctx)
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	var got events.CompanyIngested
	if err := json.Unmarshal([]byte(msg.Payload), &got); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if got.Type != events.ChannelCompanyIngested || got.CompanyID != 7 || got.At.IsZero() {
		t.Errorf("unexpected event %+v", got)
	}
}
