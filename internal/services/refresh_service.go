package services

import (
	"context"
	"errors"
	"sync"

	"accidentes-platform/internal/etl"
	"accidentes-platform/pkg/logging"
	"accidentes-platform/pkg/metrics"
)

// ErrRefreshInProgress is returned when a refresh is requested while another
// run holds the table. Overlapping truncate-and-reload sequences would
// corrupt the snapshot, so the second caller is rejected rather than queued.
var ErrRefreshInProgress = errors.New("a pipeline run is already in progress")

// RefreshService exposes the ETL pipeline as an administrative operation and
// serializes runs within this process. Runs triggered from other processes
// are not coordinated.
type RefreshService struct {
	pipeline *etl.Pipeline
	logger   *logging.StructuredLogger
	metrics  *metrics.Collector

	mu sync.Mutex
}

// NewRefreshService creates a new refresh service
func NewRefreshService(pipeline *etl.Pipeline, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *RefreshService {
	return &RefreshService{
		pipeline: pipeline,
		logger:   logger,
		metrics:  metricsCollector,
	}
}

// Refresh runs the full pipeline once and returns the post-load row count.
func (s *RefreshService) Refresh(ctx context.Context) (int, error) {
	if !s.mu.TryLock() {
		s.metrics.ETLRunsTotal.WithLabelValues("rejected").Inc()
		s.logger.Warn(ctx, "[REFRESH_REJECTED] Concurrent refresh rejected", logging.Fields{})
		return 0, ErrRefreshInProgress
	}
	defer s.mu.Unlock()

	return s.pipeline.Run(ctx)
}
