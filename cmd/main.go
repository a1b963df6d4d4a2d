// job-board-finder ingest service
//
// Resolves a company name to its public job board (Greenhouse, Ashby, Lever)
// and stores the company and its postings. Three entry points:
//   - serve:   HTTP API (POST /searchCompany), gRPC health, refresh scheduler
//   - resolve: one company from the command line, result printed as JSON
//   - batch:   every company listed in a CSV file
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/aliceyli/job-board-finder/internal/batch"
	"github.com/aliceyli/job-board-finder/internal/config"
	"github.com/aliceyli/job-board-finder/internal/grpcserver"
	"github.com/aliceyli/job-board-finder/internal/httpapi"
	"github.com/aliceyli/job-board-finder/internal/scheduler"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "err", err)
	}

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "job-board-finder",
		Short:        "Find a company's job board and ingest its postings",
		SilenceUsage: true,
	}
	root.AddCommand(newServeCmd(), newResolveCmd(), newBatchCmd())
	return root
}

// ─── serve ───────────────────────────────────────────────────────────────────

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, gRPC health server and refresh scheduler",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context())
		},
	}
}

func serve(parent context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	d, err := buildDeps(ctx, cfg)
	if err != nil {
		return err
	}
	defer d.close()

	// ── HTTP server ──────────────────────────────────────────────────────────
	app := httpapi.NewApp(httpapi.NewHandler(d.worker, cfg.SearchRateLimit))
	go func() {
		slog.Info("ingest-service listening", "port", cfg.Port)
		if err := app.Listen(":" + cfg.Port); err != nil {
			slog.Error("HTTP server error", "err", err)
			cancel()
		}
	}()

	// ── gRPC health ──────────────────────────────────────────────────────────
	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}
	gs := grpcserver.New()
	go func() {
		if err := gs.Serve(lis); err != nil {
			slog.Error("gRPC server error", "err", err)
			cancel()
		}
	}()

	// ── Refresh scheduler ────────────────────────────────────────────────────
	var sched *scheduler.Scheduler
	if cfg.RefreshIntervalHours > 0 {
		sched = scheduler.New(d.store, d.worker, cfg.RefreshIntervalHours, cfg.RefreshOnStart)
		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("scheduler: %w", err)
		}
	} else {
		slog.Info("refresh scheduler disabled")
	}

	// ── Graceful shutdown ────────────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("HTTP shutdown error", "err", err)
	}
	gs.Stop()
	if sched != nil {
		sched.Stop()
	}
	slog.Info("stopped")
	return nil
}

// ─── resolve ─────────────────────────────────────────────────────────────────

func newResolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <company name>",
		Short: "Resolve and ingest a single company",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			d, err := buildDeps(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer d.close()

			res := d.worker.ResolveAndIngest(cmd.Context(), args[0])
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}
}

// ─── batch ───────────────────────────────────────────────────────────────────

func newBatchCmd() *cobra.Command {
	var (
		file   string
		header bool
		opts   batch.Options
	)
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Resolve and ingest every company listed in a CSV file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := os.Open(file)
			if err != nil {
				return fmt.Errorf("open %s: %w", file, err)
			}
			names, err := batch.ReadNames(f, header)
			_ = f.Close()
			if err != nil {
				return err
			}

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			d, err := buildDeps(ctx, cfg)
			if err != nil {
				return err
			}
			defer d.close()

			stats, err := batch.Run(ctx, d.worker, names, opts)
			if stats != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "processed %d companies in %s: %d found, %d with errors\n",
					stats.Total, stats.Duration.Round(time.Second), stats.Found, stats.Errors)
			}
			return err
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "CSV file with one company name per row (first column)")
	cmd.Flags().BoolVar(&header, "header", true, "skip the first row of the file")
	cmd.Flags().IntVar(&opts.Start, "start", 0, "index of the first company to process")
	cmd.Flags().IntVarP(&opts.Concurrency, "concurrency", "c", 1, "companies resolved in parallel")
	cmd.Flags().StringVar(&opts.OutDir, "out-dir", ".", "directory for the missing/error result files")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
