package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/quench-data/quench"
	"github.com/quench-data/quench/internal/config"
	"github.com/quench-data/quench/internal/log"
	"github.com/spf13/cobra"
)

func runCmd() *cobra.Command {
	var (
		envFile    string
		recipePath string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a refinement recipe",
		Long: `Run a refinement recipe against a JSONL dataset.

Configuration is loaded in the following order (later sources override earlier):
  1. Default values
  2. .env file (if --env-file specified or .env exists in current directory)
  3. Environment variables

Environment variables:
  LOG_LEVEL                  Log level: DEBUG, INFO, WARN, ERROR (default: INFO)
  LOG_FORMAT                 Log format: pretty, json (default: pretty)
  ACCELERATOR_COUNT          Accelerator cards available to batched engines (default: 0)

  VLLM_ENDPOINT_*            Batched generation server
    BASE_URL                 Base URL (default: http://localhost:8000/v1)
    API_KEY                  API key (default: EMPTY)
    TIMEOUT                  Request timeout (default: 120s)
    MAX_RETRIES              Retry attempts (default: 5)

  PIPELINE_ENDPOINT_*        Single-call generation server
    (same fields as VLLM_ENDPOINT, default base URL http://localhost:8080/v1)`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecipe(envFile, recipePath)
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", "", "Path to .env file (default: .env in current directory)")
	cmd.Flags().StringVar(&recipePath, "recipe", "", "Path to the recipe YAML file (required)")
	_ = cmd.MarkFlagRequired("recipe")

	return cmd
}

func runRecipe(envFile, recipePath string) error {
	cfg, err := config.Load(envFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	recipe, err := config.LoadRecipe(recipePath)
	if err != nil {
		return err
	}

	logger := log.New(log.Format(cfg.LogFormat()), cfg.LogLevel())
	logger.Info("starting quench",
		slog.String("version", version),
		slog.String("project", recipe.ProjectName),
		slog.String("recipe", recipePath),
	)

	client, err := quench.New(
		quench.WithAppConfig(cfg),
		quench.WithLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("create quench client: %w", err)
	}
	defer func() {
		if err := client.Close(); err != nil {
			logger.Error("failed to close quench client", slog.Any("error", err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary, err := client.Run(ctx, recipe)
	if err != nil {
		return err
	}

	logger.Info("run complete",
		slog.Int("loaded", summary.Loaded),
		slog.Int("exported", summary.Exported),
		slog.Int("dropped", summary.Dropped),
		slog.Int("ops", summary.OpsRun),
	)
	return nil
}
