// Package httpapi exposes ResolveAndIngest over HTTP.
package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	"github.com/aliceyli/job-board-finder/internal/scraper"
)

const (
	serviceName = "ingest-service"
	version     = "0.1.0"
)

// Searcher is satisfied by *scraper.Worker.
type Searcher interface {
	ResolveAndIngest(ctx context.Context, query string) scraper.Result
}

type healthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Version string `json:"version"`
}

type searchRequest struct {
	Query string `json:"query"`
}

// Handler serves the search endpoints.
type Handler struct {
	searcher     Searcher
	searchPerMin int
}

// NewHandler returns a Handler. searchPerMin limits POST /searchCompany per
// client IP; 0 disables the limit.
func NewHandler(s Searcher, searchPerMin int) *Handler {
	return &Handler{searcher: s, searchPerMin: searchPerMin}
}

// NewApp builds the fiber app with middleware and routes registered.
func NewApp(h *Handler) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      serviceName,
		ErrorHandler: errorHandler,
	})
	app.Use(recover.New())
	app.Use(requestid.New())
	h.RegisterRoutes(app)
	return app
}

// RegisterRoutes mounts the handler's routes on app.
func (h *Handler) RegisterRoutes(app *fiber.App) {
	app.Get("/health", h.Health)
	if h.searchPerMin > 0 {
		app.Post("/searchCompany", rateLimiter(h.searchPerMin, time.Minute), h.SearchCompany)
	} else {
		app.Post("/searchCompany", h.SearchCompany)
	}
}

func (h *Handler) Health(c *fiber.Ctx) error {
	return c.JSON(healthResponse{Status: "ok", Service: serviceName, Version: version})
}

// SearchCompany resolves and ingests the posted query. Resolution failures
// are reported in the body with 200; only a malformed request is a 4xx.
func (h *Handler) SearchCompany(c *fiber.Ctx) error {
	var req searchRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Query) == "" {
		return fiber.NewError(fiber.StatusBadRequest, "query is required")
	}

	// The raw text goes through untouched so the query log keeps it.
	res := h.searcher.ResolveAndIngest(c.UserContext(), req.Query)
	slog.Info("httpapi: searchCompany",
		"requestId", c.Locals(requestid.ConfigDefault.ContextKey),
		"query", req.Query, "found", res.Found)
	return c.JSON(res)
}

func rateLimiter(max int, expiration time.Duration) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: expiration,
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "too many requests",
			})
		},
		LimiterMiddleware: limiter.SlidingWindow{},
	})
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
	}

	message := err.Error()
	if code == fiber.StatusInternalServerError {
		slog.Error("httpapi: request failed", "path", c.Path(), "err", err)
		message = "internal server error"
	}
	return c.Status(code).JSON(fiber.Map{"error": message})
}
