package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"accidentes-platform/internal/config"
	"accidentes-platform/internal/etl"
	"accidentes-platform/internal/repository"
	"accidentes-platform/pkg/database"
	"accidentes-platform/pkg/logging"
	"accidentes-platform/pkg/metrics"
)

func main() {
	csvPath := flag.String("csv", "", "Path to the accident CSV (default: CSV_PATH env)")
	sampleSize := flag.Int("sample-size", etl.DefaultSampleSize, "Number of rows to sample into the destination table")
	seed := flag.Int64("seed", etl.DefaultSeed, "Random seed for the sample draw")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	if *csvPath == "" {
		*csvPath = cfg.ETL.CSVPath
	}

	logger := logging.NewStructuredLogger("accidentes-etl", "1.0.0", logging.ParseLevel(cfg.Logging.Level))

	ctx := context.Background()
	logger.Info(ctx, "[ETL_CLI] Starting standalone pipeline run", logging.Fields{
		"csv_path":    *csvPath,
		"sample_size": *sampleSize,
		"seed":        *seed,
	})

	metricsCollector := metrics.NewCollector("accidentes_etl")

	db, err := database.NewPostgresDB(&database.Config{
		URL:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
	}, logger, metricsCollector)
	if err != nil {
		logger.Fatal(ctx, "[ETL_CLI_ERROR] Failed to connect to database", logging.Fields{}, err)
	}
	defer db.Close()

	accidentRepo := repository.NewAccidentRepository(db, logger, metricsCollector)

	pipeline := etl.NewPipeline(*csvPath, accidentRepo, logger, metricsCollector)
	pipeline.SampleSize = *sampleSize
	pipeline.Seed = *seed

	inserted, err := pipeline.Run(ctx)
	if err != nil {
		var notFound *etl.NotFoundError
		var schemaErr *etl.SchemaError
		var encErr *etl.EncodingError

		switch {
		case errors.As(err, &notFound):
			fmt.Fprintf(os.Stderr, "Source file not found: %s\n", notFound.Path)
		case errors.As(err, &schemaErr):
			fmt.Fprintf(os.Stderr, "Source schema mismatch: %v\n", schemaErr)
		case errors.As(err, &encErr):
			fmt.Fprintf(os.Stderr, "Source encoding failure: %v\n", encErr)
		default:
			fmt.Fprintf(os.Stderr, "Pipeline failed: %v\n", err)
		}
		os.Exit(1)
	}

	fmt.Printf("Loaded %d rows into %s\n", inserted, repository.TableName)
}
