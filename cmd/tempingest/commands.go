package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/tempingest/internal/ingest"
	"github.com/JonMunkholm/tempingest/internal/metrics"
	"github.com/JonMunkholm/tempingest/internal/scheduler"
	"github.com/JonMunkholm/tempingest/internal/store"
	"github.com/JonMunkholm/tempingest/internal/web"
)

func newInitDBCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init-db",
		Short: "Create or upgrade the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pool, err := a.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer pool.Close()

			version, err := store.Migrate(cmd.Context(), pool)
			if err != nil {
				slog.Error("migration failed", "error", err)
				return err
			}
			slog.Info("schema is up to date", "version", version)
			return nil
		},
	}
}

func newRunCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "run [path]",
		Short: "Process the landing directory, or a single file or directory, once",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target := a.cfg.Paths.Landing
			if len(args) == 1 {
				target = args[0]
			}
			return a.run(cmd.Context(), target)
		},
	}
}

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Process the landing directory on a schedule and serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.serve(cmd.Context())
		},
	}
}

// run performs a single pass over target, which may be a directory or a file.
func (a *app) run(ctx context.Context, target string) error {
	if err := a.ensureDirs(); err != nil {
		return err
	}

	pool, err := a.connect(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	orch := a.newOrchestrator(pool, store.NewLedger(pool), nil)

	info, err := os.Stat(target)
	if err != nil {
		slog.Error("cannot read target", "path", target, "error", err)
		return err
	}
	if !info.IsDir() {
		out := orch.ProcessFile(ctx, target)
		fmt.Fprintf(os.Stdout, "%s: %s\n", out.File, out.State)
		return nil
	}

	summary, err := orch.ProcessDirectory(ctx, target)
	if err != nil {
		slog.Error("directory pass aborted", "dir", target, "error", err)
		return err
	}
	fmt.Fprintf(os.Stdout, "processed %d files: %d success, %d failed, %d rejected, %d skipped\n",
		len(summary.Outcomes),
		summary.Count(ingest.StateSuccess),
		summary.Count(ingest.StateFailed),
		summary.Count(ingest.StateHeaderRejected),
		summary.Count(ingest.StateSkipped),
	)
	return nil
}

// serve runs scheduled passes and the HTTP API until ctx is cancelled.
func (a *app) serve(ctx context.Context) error {
	if err := a.ensureDirs(); err != nil {
		return err
	}

	pool, err := a.connect(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	collector := metrics.NewCollector()
	ledger := store.NewLedger(pool)
	runner := scheduler.NewRunner(a.newOrchestrator(pool, ledger, collector), a.cfg.Paths.Landing, collector)

	sched := scheduler.New(runner, a.cfg.Serve.Schedule, slog.Default())
	if err := sched.Start(ctx); err != nil {
		return err
	}
	go sched.RunNow(ctx)

	server := web.NewServer(web.Deps{
		Runs:    ledger,
		DB:      pool,
		Runner:  runner,
		Metrics: collector.Handler(),
		APIKeys: a.cfg.Serve.APIKeys,
	})

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start(a.cfg.Serve.Addr()) }()

	var serveErr error
	select {
	case <-ctx.Done():
		slog.Info("shutting down...")
	case serveErr = <-errCh:
		if serveErr != nil {
			slog.Error("http server failed", "error", serveErr)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.Serve.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("shutdown error", "error", err)
	}
	sched.Stop(shutdownCtx)
	return serveErr
}
