package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/tempingest/internal/config"
	"github.com/JonMunkholm/tempingest/internal/ingest"
	"github.com/JonMunkholm/tempingest/internal/logging"
	"github.com/JonMunkholm/tempingest/internal/store"
)

// app carries state shared by all subcommands once PersistentPreRunE has run.
type app struct {
	cfg *config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "tempingest",
		Short:         "Ingest temperature CSV files into Postgres",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup()
		},
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if a.cfg.Serve.RunAsAgent {
				return a.serve(cmd.Context())
			}
			return a.run(cmd.Context(), a.cfg.Paths.Landing)
		},
	}

	root.AddCommand(newInitDBCmd(a), newRunCmd(a), newServeCmd(a))
	return root
}

// setup loads .env, configuration and logging. Variables already present in
// the environment win over .env entries.
func (a *app) setup() error {
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		return err
	}
	a.cfg = cfg

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Location())
	if envErr != nil {
		slog.Debug("no .env file loaded", "reason", envErr)
	}
	slog.Debug("configuration loaded", "config", cfg.String())
	return nil
}

func (a *app) connect(ctx context.Context) (*pgxpool.Pool, error) {
	pool, err := store.Connect(ctx, a.cfg.Database)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		return nil, err
	}
	slog.Info("connected to database", "name", pool.Config().ConnConfig.Database)
	return pool, nil
}

// ensureDirs creates every working directory so the first pass does not
// trip over a fresh checkout.
func (a *app) ensureDirs() error {
	p := a.cfg.Paths
	for _, dir := range []string{p.Landing, p.Archive, p.Error, p.Log} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

func (a *app) newOrchestrator(pool *pgxpool.Pool, ledger *store.Ledger, observer ingest.Observer) *ingest.Orchestrator {
	return ingest.NewOrchestrator(
		ledger,
		store.NewStager(pool, a.cfg.Ingest.StagingTable),
		store.NewTransformer(pool, a.cfg.Ingest.TransformFunction),
		ingest.Options{
			ArchiveDir: a.cfg.Paths.Archive,
			ErrorDir:   a.cfg.Paths.Error,
			Verbose:    a.cfg.Ingest.Verbose,
			SkipAction: ingest.SkipAction(a.cfg.Ingest.SkipAction),
			FailureLog: ingest.NewFailureLog(a.cfg.Paths.FailureLogPath()),
			Observer:   observer,
		},
	)
}
