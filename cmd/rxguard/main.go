// Command rxguard runs the pharmacy claim scoring engine, either as a
// one-shot scan or as a long-running service with an HTTP control
// surface.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	_ "github.com/microsoft/go-mssqldb"

	"github.com/rxguard/rxguard/infrastructure/middleware"
	"github.com/rxguard/rxguard/infrastructure/storage"
	"github.com/rxguard/rxguard/internal/application"
	"github.com/rxguard/rxguard/internal/domain"
	"github.com/rxguard/rxguard/internal/export"
	"github.com/rxguard/rxguard/internal/ports"
	"github.com/rxguard/rxguard/internal/server"
)

var (
	engineConfigPath string
	storeConfigPath  string
	listenAddr       string
	outputFormat     string
	topN             int
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "rxguard",
		Short: "Pharmacy claim fraud scoring engine",
	}
	rootCmd.PersistentFlags().StringVarP(&engineConfigPath, "engine-config", "c", "engine.yaml",
		"Path to the engine configuration YAML")
	rootCmd.PersistentFlags().StringVar(&storeConfigPath, "store-config", "warehouse.yaml",
		"Path to the claim warehouse profile")

	scanCmd := &cobra.Command{
		Use:   "scan",
		Short: "Run one scoring pass and print the result",
		RunE:  runScan,
	}
	scanCmd.Flags().StringVarP(&outputFormat, "output", "o", "table",
		"Output format: table, json, or csv")
	scanCmd.Flags().IntVar(&topN, "top", 25, "Number of ranked entries to print in table output")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the scoring service with the HTTP control surface",
		RunE:  runServe,
	}
	serveCmd.Flags().StringVar(&listenAddr, "addr", ":8080", "Listen address for the control surface")

	rootCmd.AddCommand(scanCmd, serveCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// buildEngine assembles the orchestrator and its collaborators from the
// engine configuration and the warehouse profile.
func buildEngine(ctx context.Context, logger zerolog.Logger, metrics ports.MetricsCollector) (*application.Orchestrator, *domain.WeightVector, *sql.DB, error) {
	registry := application.NewDefaultUnitRegistry()
	loader, err := application.NewEngineLoader(registry)
	if err != nil {
		return nil, nil, nil, err
	}

	engine, err := loader.LoadFromFile(ctx, engineConfigPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load engine config: %w", err)
	}

	weights, err := engine.Weights()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("build weight vector: %w", err)
	}

	storeCfg, err := storage.LoadConfig(storeConfigPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load warehouse config: %w", err)
	}

	store, db, err := storage.Open(ctx, storeCfg, logger)
	if err != nil {
		return nil, nil, nil, err
	}

	pool := application.NewExecutionPool(engine.Units, engine.PoolLimit, logger)
	aggregator := application.NewAggregator(weights)
	orchestrator := application.NewOrchestrator(store, pool, aggregator, metrics, logger)
	return orchestrator, weights, db, nil
}

func runScan(cmd *cobra.Command, _ []string) error {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Error loading .env file: %v\n", err)
	}

	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()
	ctx := logger.WithContext(cmd.Context())

	orchestrator, _, db, err := buildEngine(ctx, logger, middleware.NoopMetrics{})
	if err != nil {
		return err
	}
	defer db.Close()

	result := orchestrator.Run(ctx)

	switch outputFormat {
	case "json":
		return export.WriteJSON(os.Stdout, result)
	case "csv":
		return export.WriteCSV(os.Stdout, result.Scores)
	case "table":
		return export.WriteTable(os.Stdout, result, topN)
	default:
		return fmt.Errorf("unknown output format %q", outputFormat)
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Error loading .env file: %v\n", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	ctx := logger.WithContext(cmd.Context())

	orchestrator, weights, db, err := buildEngine(ctx, logger, middleware.NewPrometheusMetrics())
	if err != nil {
		return err
	}
	defer db.Close()

	api := server.NewWebAPI(logger, server.Config{Addr: listenAddr}, orchestrator, weights)
	return api.Start(ctx)
}
