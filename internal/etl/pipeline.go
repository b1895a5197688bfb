package etl

import (
	"context"
	"sync"
	"time"

	"accidentes-platform/internal/models"
	"accidentes-platform/pkg/logging"
	"accidentes-platform/pkg/metrics"
)

// Stage identifies where a pipeline run currently is.
type Stage string

const (
	StageIdle         Stage = "idle"
	StageExtracting   Stage = "extracting"
	StageTransforming Stage = "transforming"
	StageSampling     Stage = "sampling"
	StageLoading      Stage = "loading"
	StageDone         Stage = "done"
	StageFailed       Stage = "failed"
)

// Loader is the destination side of the pipeline. The store owns identifier
// assignment and row persistence; the pipeline owns the transform only.
type Loader interface {
	EnsureSchema(ctx context.Context) error
	ReplaceAll(ctx context.Context, rows []models.Accident) error
	CountAll(ctx context.Context) (int, error)
}

// Pipeline runs Extract -> Transform -> Sample -> Load as one unit of work.
// A run is strictly sequential; any stage failure aborts the run and the
// error is surfaced to the caller unchanged.
type Pipeline struct {
	CSVPath    string
	SampleSize int
	Seed       int64

	loader  Loader
	logger  *logging.StructuredLogger
	metrics *metrics.Collector

	mu    sync.Mutex
	stage Stage
}

// NewPipeline creates a pipeline with the default sample size and seed.
func NewPipeline(csvPath string, loader Loader, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *Pipeline {
	return &Pipeline{
		CSVPath:    csvPath,
		SampleSize: DefaultSampleSize,
		Seed:       DefaultSeed,
		loader:     loader,
		logger:     logger,
		metrics:    metricsCollector,
		stage:      StageIdle,
	}
}

// Stage reports the stage the most recent run reached.
func (p *Pipeline) Stage() Stage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stage
}

func (p *Pipeline) setStage(s Stage) {
	p.mu.Lock()
	p.stage = s
	p.mu.Unlock()
}

// Run executes the full pipeline and returns the authoritative number of rows
// present in the destination table after the load.
func (p *Pipeline) Run(ctx context.Context) (int, error) {
	startTime := time.Now()

	p.logger.Info(ctx, "[ETL_START] Starting pipeline run", logging.Fields{
		"csv_path":    p.CSVPath,
		"sample_size": p.SampleSize,
		"seed":        p.Seed,
	})

	p.setStage(StageExtracting)
	stageStart := time.Now()
	frame, err := Extract(p.CSVPath)
	if err != nil {
		return p.fail(ctx, StageExtracting, err)
	}
	p.metrics.ETLStageDuration.WithLabelValues(string(StageExtracting)).Observe(time.Since(stageStart).Seconds())
	p.metrics.RecordETLRows("extracted", len(frame.Rows))

	p.setStage(StageTransforming)
	stageStart = time.Now()
	cleaned, stats, err := Transform(frame)
	if err != nil {
		return p.fail(ctx, StageTransforming, err)
	}
	p.metrics.ETLStageDuration.WithLabelValues(string(StageTransforming)).Observe(time.Since(stageStart).Seconds())
	p.metrics.RecordETLRows("cleaned", stats.RowsOut)
	p.metrics.RecordETLRows("dropped", stats.InvalidFecha+stats.InvalidKeys+stats.Duplicates)

	p.logger.Info(ctx, "[ETL_TRANSFORM] Rows cleaned", logging.Fields{
		"rows_in":       stats.RowsIn,
		"rows_out":      stats.RowsOut,
		"invalid_fecha": stats.InvalidFecha,
		"invalid_keys":  stats.InvalidKeys,
		"duplicates":    stats.Duplicates,
	})

	p.setStage(StageSampling)
	sampled := Sample(cleaned, p.SampleSize, p.Seed)
	p.metrics.RecordETLRows("sampled", len(sampled))

	p.setStage(StageLoading)
	stageStart = time.Now()
	if err := p.loader.EnsureSchema(ctx); err != nil {
		return p.fail(ctx, StageLoading, err)
	}
	if err := p.loader.ReplaceAll(ctx, sampled); err != nil {
		return p.fail(ctx, StageLoading, err)
	}
	inserted, err := p.loader.CountAll(ctx)
	if err != nil {
		return p.fail(ctx, StageLoading, err)
	}
	p.metrics.ETLStageDuration.WithLabelValues(string(StageLoading)).Observe(time.Since(stageStart).Seconds())
	p.metrics.RecordETLRows("inserted", inserted)

	p.setStage(StageDone)
	duration := time.Since(startTime)
	p.metrics.ETLRunDuration.Observe(duration.Seconds())
	p.metrics.ETLRunsTotal.WithLabelValues("success").Inc()

	p.logger.Info(ctx, "[ETL_COMPLETE] Pipeline run completed", logging.Fields{
		"inserted":         inserted,
		"duration_seconds": duration.Seconds(),
	})

	return inserted, nil
}

func (p *Pipeline) fail(ctx context.Context, stage Stage, err error) (int, error) {
	p.setStage(StageFailed)
	p.metrics.ETLRunsTotal.WithLabelValues("failure").Inc()
	p.logger.Error(ctx, "[ETL_FAILED] Pipeline run aborted", logging.Fields{
		"stage": string(stage),
	}, err)
	return 0, err
}
