package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"accidentes-platform/internal/auth"
	"accidentes-platform/internal/config"
	"accidentes-platform/internal/etl"
	"accidentes-platform/internal/handlers"
	"accidentes-platform/internal/repository"
	"accidentes-platform/internal/services"
	"accidentes-platform/pkg/database"
	"accidentes-platform/pkg/logging"
	"accidentes-platform/pkg/metrics"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.ValidateServer(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewStructuredLogger("accidentes-api", "1.0.0", logging.ParseLevel(cfg.Logging.Level))

	ctx := context.Background()
	logger.Info(ctx, "[STARTUP] Starting accidentes API server", logging.Fields{
		"version":     "1.0.0",
		"server_host": cfg.Server.Host,
		"server_port": cfg.Server.Port,
		"csv_path":    cfg.ETL.CSVPath,
	})

	metricsCollector := metrics.NewCollector("accidentes_platform")

	db, err := database.NewPostgresDB(&database.Config{
		URL:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
	}, logger, metricsCollector)
	if err != nil {
		logger.Fatal(ctx, "[STARTUP_ERROR] Failed to connect to database", logging.Fields{}, err)
	}
	defer db.Close()

	// Repository doubles as the pipeline's loader
	accidentRepo := repository.NewAccidentRepository(db, logger, metricsCollector)

	pipeline := etl.NewPipeline(cfg.ETL.CSVPath, accidentRepo, logger, metricsCollector)
	pipeline.SampleSize = cfg.ETL.SampleSize
	pipeline.Seed = cfg.ETL.Seed

	accidentService := services.NewAccidentService(accidentRepo, logger, metricsCollector)
	refreshService := services.NewRefreshService(pipeline, logger, metricsCollector)

	authManager := auth.NewManager(cfg.Auth.SecretKey)

	if cfg.Auth.DevTokenEnabled {
		logger.Warn(ctx, "[STARTUP] Dev token endpoint is enabled; disable outside local testing", logging.Fields{})
	}

	accidentHandler := handlers.NewAccidentHandler(
		accidentService,
		refreshService,
		authManager,
		logger,
		metricsCollector,
		cfg.Auth.DevTokenEnabled,
	)

	router := mux.NewRouter()
	accidentHandler.RegisterRoutes(router)

	// API documentation
	router.HandleFunc("/api/docs/openapi.json", handlers.OpenAPISpec).Methods("GET")
	router.HandleFunc("/api/docs", handlers.SwaggerUI).Methods("GET")

	// Prometheus metrics endpoint
	router.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info(ctx, "[SERVER_START] HTTP server listening", logging.Fields{
			"address": server.Addr,
		})

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal(ctx, "[SERVER_ERROR] Server failed", logging.Fields{}, err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info(ctx, "[SHUTDOWN] Shutting down server...", logging.Fields{})

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "[SHUTDOWN_ERROR] Server forced to shutdown", logging.Fields{}, err)
	}

	logger.Info(ctx, "[SHUTDOWN_COMPLETE] Server stopped", logging.Fields{})
}
