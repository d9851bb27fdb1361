package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-continuum/pkg/horizons"
	"github.com/ekaya-inc/ekaya-continuum/pkg/logging"
	"github.com/ekaya-inc/ekaya-continuum/pkg/models"
	"github.com/ekaya-inc/ekaya-continuum/pkg/repositories"
	"github.com/ekaya-inc/ekaya-continuum/pkg/retry"
)

// Defaults applied when IngestionConfig leaves a field blank.
const (
	DefaultBodyID  = "earth"
	DefaultFrameID = "J2000"
	// JobTypeHorizons is the job type for Horizons vector-table ingestion.
	JobTypeHorizons = "horizons"
)

// Run outcome messages recorded on the job and returned in the result.
const (
	msgJobNotStartable = "Job not startable"
	msgJobNotFound     = "Job record not found"
	msgMissingSource   = "Missing source path in payload"
	statusNotFound     = "not_found"
)

// IngestionConfig holds run defaults.
type IngestionConfig struct {
	DefaultBodyID string
	FrameID       string
}

// CreateJobRequest describes a new ingestion job.
type CreateJobRequest struct {
	JobType string
	Source  string
	Payload models.IngestionPayload
}

// IngestionService drives the ingestion job state machine.
type IngestionService interface {
	CreateJob(ctx context.Context, tenantID string, req CreateJobRequest) (*models.IngestionJob, error)
	GetJob(ctx context.Context, tenantID string, jobID int64) (*models.IngestionJob, error)
	ListJobs(ctx context.Context, tenantID string, filter repositories.IngestionJobFilter) ([]*models.IngestionJob, error)

	// Start moves a pending or failed job to running. Only one of several
	// concurrent callers can observe true for the same job.
	Start(ctx context.Context, tenantID string, jobID int64) (bool, error)
	Complete(ctx context.Context, tenantID string, jobID int64) error
	Fail(ctx context.Context, tenantID string, jobID int64, errorText string) error

	// RunIngestionJob performs one ingestion run. Runtime failures end in a
	// failed job and a result carrying the error text; a Go error means the
	// job state itself could not be read or written.
	RunIngestionJob(ctx context.Context, tenantID string, jobID int64, defaultBodyID string) (*models.IngestionResult, error)
}

type ingestionService struct {
	jobRepo       repositories.IngestionJobRepository
	fileRepo      repositories.NasaFileRepository
	ephemerisRepo repositories.EphemerisRepository
	getTenant     TenantContextFunc
	retryConfig   *retry.Config
	cfg           IngestionConfig
	logger        *zap.Logger
}

// NewIngestionService creates a new IngestionService.
func NewIngestionService(
	jobRepo repositories.IngestionJobRepository,
	fileRepo repositories.NasaFileRepository,
	ephemerisRepo repositories.EphemerisRepository,
	getTenant TenantContextFunc,
	cfg IngestionConfig,
	logger *zap.Logger,
) IngestionService {
	if strings.TrimSpace(cfg.DefaultBodyID) == "" {
		cfg.DefaultBodyID = DefaultBodyID
	}
	if strings.TrimSpace(cfg.FrameID) == "" {
		cfg.FrameID = DefaultFrameID
	}
	return &ingestionService{
		jobRepo:       jobRepo,
		fileRepo:      fileRepo,
		ephemerisRepo: ephemerisRepo,
		getTenant:     getTenant,
		retryConfig:   retry.DefaultConfig(),
		cfg:           cfg,
		logger:        logger.Named("ingestion"),
	}
}

var _ IngestionService = (*ingestionService)(nil)

// ============================================================================
// Job records
// ============================================================================

func (s *ingestionService) CreateJob(ctx context.Context, tenantID string, req CreateJobRequest) (*models.IngestionJob, error) {
	tenantCtx, cleanup, err := s.getTenant(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire tenant scope: %w", err)
	}
	defer cleanup()

	jobType := strings.TrimSpace(req.JobType)
	if jobType == "" {
		jobType = JobTypeHorizons
	}
	source := strings.TrimSpace(req.Source)
	if source == "" {
		source = req.Payload.Source
	}

	job := &models.IngestionJob{
		JobType:     jobType,
		Source:      source,
		Status:      models.JobStatusPending,
		PayloadJSON: req.Payload.Encode(),
	}
	if _, err := s.jobRepo.Create(tenantCtx, job); err != nil {
		return nil, err
	}

	s.logger.Info("Created ingestion job",
		zap.Int64("job_id", job.ID),
		zap.String("tenant_id", job.TenantID),
		zap.String("job_type", job.JobType),
		zap.String("source", job.Source))

	return s.jobRepo.GetByID(tenantCtx, job.ID)
}

func (s *ingestionService) GetJob(ctx context.Context, tenantID string, jobID int64) (*models.IngestionJob, error) {
	tenantCtx, cleanup, err := s.getTenant(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire tenant scope: %w", err)
	}
	defer cleanup()

	return s.jobRepo.GetByID(tenantCtx, jobID)
}

func (s *ingestionService) ListJobs(ctx context.Context, tenantID string, filter repositories.IngestionJobFilter) ([]*models.IngestionJob, error) {
	tenantCtx, cleanup, err := s.getTenant(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire tenant scope: %w", err)
	}
	defer cleanup()

	return s.jobRepo.List(tenantCtx, filter)
}

// ============================================================================
// Transitions
// ============================================================================

func (s *ingestionService) Start(ctx context.Context, tenantID string, jobID int64) (bool, error) {
	tenantCtx, cleanup, err := s.getTenant(ctx, tenantID)
	if err != nil {
		return false, fmt.Errorf("failed to acquire tenant scope: %w", err)
	}
	defer cleanup()

	return s.start(tenantCtx, jobID)
}

// start retries only on lock contention. A contended UPDATE has not
// applied, so retrying it cannot count an attempt twice.
func (s *ingestionService) start(ctx context.Context, jobID int64) (bool, error) {
	var started bool
	err := retry.DoIfRetryable(ctx, s.retryConfig, func() error {
		var err error
		started, err = s.jobRepo.Start(ctx, jobID)
		return err
	})
	return started, err
}

func (s *ingestionService) Complete(ctx context.Context, tenantID string, jobID int64) error {
	tenantCtx, cleanup, err := s.getTenant(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("failed to acquire tenant scope: %w", err)
	}
	defer cleanup()

	return s.complete(tenantCtx, jobID)
}

func (s *ingestionService) complete(ctx context.Context, jobID int64) error {
	return retry.DoIfRetryable(ctx, s.retryConfig, func() error {
		return s.jobRepo.Complete(ctx, jobID)
	})
}

func (s *ingestionService) Fail(ctx context.Context, tenantID string, jobID int64, errorText string) error {
	tenantCtx, cleanup, err := s.getTenant(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("failed to acquire tenant scope: %w", err)
	}
	defer cleanup()

	return s.fail(tenantCtx, jobID, errorText)
}

func (s *ingestionService) fail(ctx context.Context, jobID int64, errorText string) error {
	return retry.DoIfRetryable(ctx, s.retryConfig, func() error {
		return s.jobRepo.Fail(ctx, jobID, errorText)
	})
}

// ============================================================================
// Ingestion run
// ============================================================================

func (s *ingestionService) RunIngestionJob(ctx context.Context, tenantID string, jobID int64, defaultBodyID string) (*models.IngestionResult, error) {
	tenantCtx, cleanup, err := s.getTenant(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire tenant scope: %w", err)
	}
	defer cleanup()

	runID := uuid.New().String()
	logger := s.logger.With(zap.String("run_id", runID), zap.Int64("job_id", jobID))

	started, err := s.start(tenantCtx, jobID)
	if err != nil {
		return nil, err
	}
	if !started {
		status := models.JobStatus(statusNotFound)
		job, err := s.jobRepo.GetByID(tenantCtx, jobID)
		if err != nil {
			return nil, err
		}
		if job != nil {
			status = job.Status
		}
		logger.Info("Ingestion job not startable",
			zap.String("status", string(status)),
			zap.Bool("terminal", status.IsTerminal()))
		return &models.IngestionResult{JobID: jobID, RunID: runID, Status: status, ErrorText: msgJobNotStartable}, nil
	}

	// From here the job is running and every exit must leave it completed or failed.
	job, err := s.jobRepo.GetByID(tenantCtx, jobID)
	if err != nil {
		return s.failRun(tenantCtx, logger, jobID, runID, 0, err.Error())
	}
	if job == nil {
		return s.failRun(tenantCtx, logger, jobID, runID, 0, msgJobNotFound)
	}
	logger.Info("Ingestion run started", zap.Int("attempt", job.AttemptCount))

	payload := job.Payload()
	source := payload.Source
	if source == "" {
		source = strings.TrimSpace(job.Source)
	}
	bodyID := payload.BodyID
	if bodyID == "" {
		bodyID = strings.TrimSpace(defaultBodyID)
	}
	if bodyID == "" {
		bodyID = s.cfg.DefaultBodyID
	}

	if source == "" {
		return s.failRun(tenantCtx, logger, jobID, runID, 0, msgMissingSource)
	}
	if !isRegularFile(source) {
		return s.failRun(tenantCtx, logger, jobID, runID, 0, fmt.Sprintf("File not found: %s", source))
	}

	samples, err := horizons.ParseFile(source, bodyID)
	if err != nil {
		return s.failRun(tenantCtx, logger, jobID, runID, 0, err.Error())
	}

	sourceFileID := payload.FileID
	if sourceFileID == nil && len(samples) > 0 {
		sourceFileID, err = s.lookupSourceFile(tenantCtx, source)
		if err != nil {
			return s.failRun(tenantCtx, logger, jobID, runID, 0, err.Error())
		}
	}

	inserted := 0
	frameID := s.cfg.FrameID
	for _, sample := range samples {
		if err := ctx.Err(); err != nil {
			return s.failRun(tenantCtx, logger, jobID, runID, inserted, err.Error())
		}
		row := toEphemerisSample(sample, &frameID, sourceFileID)
		err := retry.DoIfRetryable(tenantCtx, s.retryConfig, func() error {
			_, err := s.ephemerisRepo.Create(tenantCtx, row)
			return err
		})
		if err != nil {
			return s.failRun(tenantCtx, logger, jobID, runID, inserted, err.Error())
		}
		inserted++
	}

	if err := s.complete(tenantCtx, jobID); err != nil {
		return s.failRun(tenantCtx, logger, jobID, runID, inserted, err.Error())
	}

	result := &models.IngestionResult{
		JobID:           jobID,
		RunID:           runID,
		Status:          models.JobStatusCompleted,
		Started:         true,
		SamplesInserted: inserted,
		BodyID:          bodyID,
		SourceFileID:    sourceFileID,
	}
	s.countSamples(tenantCtx, logger, result)

	logger.Info("Ingestion run completed",
		zap.String("body_id", bodyID),
		zap.Int("samples_inserted", inserted),
		zap.Int("body_sample_count", result.BodySampleCount))

	return result, nil
}

// countSamples fills the stored sample totals of a completed run. The job is
// already completed, so a failed count is logged rather than returned.
func (s *ingestionService) countSamples(ctx context.Context, logger *zap.Logger, result *models.IngestionResult) {
	n, err := s.ephemerisRepo.CountByBody(ctx, result.BodyID)
	if err != nil {
		logger.Warn("Failed to count body samples", zap.Error(err))
	} else {
		result.BodySampleCount = n
	}

	if result.SourceFileID == nil {
		return
	}
	n, err = s.ephemerisRepo.CountBySourceFile(ctx, *result.SourceFileID)
	if err != nil {
		logger.Warn("Failed to count source file samples", zap.Error(err))
		return
	}
	result.SourceFileSampleCount = &n
}

// lookupSourceFile finds the newest horizons registry entry for source.
// An unregistered source is not an error; samples are stored without a file id.
func (s *ingestionService) lookupSourceFile(ctx context.Context, source string) (*int64, error) {
	resolved, err := ResolvePath(source)
	if err != nil {
		return nil, err
	}
	file, err := s.fileRepo.FindLatestByPath(ctx, models.FileTypeHorizons, resolved)
	if err != nil {
		return nil, err
	}
	if file == nil {
		return nil, nil
	}
	return &file.ID, nil
}

func (s *ingestionService) failRun(ctx context.Context, logger *zap.Logger, jobID int64, runID string, inserted int, errorText string) (*models.IngestionResult, error) {
	// The terminal write must land even if the caller's context was cancelled.
	if err := s.fail(context.WithoutCancel(ctx), jobID, errorText); err != nil {
		return nil, err
	}

	logger.Warn("Ingestion run failed",
		zap.Int("samples_inserted", inserted),
		zap.String("error", logging.TruncateString(errorText, logging.MaxErrorTextLogLength)))

	return &models.IngestionResult{
		JobID:           jobID,
		RunID:           runID,
		Status:          models.JobStatusFailed,
		Started:         true,
		SamplesInserted: inserted,
		ErrorText:       errorText,
	}, nil
}

func toEphemerisSample(s horizons.Sample, frameID *string, sourceFileID *int64) *models.EphemerisSample {
	vx, vy, vz := s.VelocityX, s.VelocityY, s.VelocityZ
	return &models.EphemerisSample{
		BodyID:       s.BodyID,
		EpochUTC:     s.EpochUTC,
		PositionX:    s.PositionX,
		PositionY:    s.PositionY,
		PositionZ:    s.PositionZ,
		VelocityX:    &vx,
		VelocityY:    &vy,
		VelocityZ:    &vz,
		FrameID:      frameID,
		SourceFileID: sourceFileID,
	}
}
