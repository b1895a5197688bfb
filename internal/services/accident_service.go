package services

import (
	"context"

	"accidentes-platform/internal/models"
	"accidentes-platform/internal/repository"
	"accidentes-platform/pkg/logging"
	"accidentes-platform/pkg/metrics"
)

// AccidentService handles read access to the accident snapshot
type AccidentService struct {
	repo    repository.AccidentRepository
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewAccidentService creates a new accident service
func NewAccidentService(repo repository.AccidentRepository, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *AccidentService {
	return &AccidentService{
		repo:    repo,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// List retrieves a page of accidents ordered by fecha
func (s *AccidentService) List(ctx context.Context, page repository.Page) ([]models.Accident, int, error) {
	return s.repo.List(ctx, page)
}

// Get retrieves a single accident by surrogate id
func (s *AccidentService) Get(ctx context.Context, id int64) (*models.Accident, error) {
	return s.repo.GetByID(ctx, id)
}

// Search retrieves a filtered page of accidents
func (s *AccidentService) Search(ctx context.Context, filter repository.SearchFilter, page repository.Page) ([]models.Accident, int, error) {
	return s.repo.Search(ctx, filter, page)
}

// HealthCheck verifies the backing store is reachable
func (s *AccidentService) HealthCheck(ctx context.Context) error {
	return s.repo.HealthCheck(ctx)
}
