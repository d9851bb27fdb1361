package repositories

import (
	"context"
	"fmt"

	"github.com/ekaya-inc/ekaya-continuum/pkg/models"
)

// IngestionJobRepository provides data access for ingestion jobs.
// The status transitions are enforced in SQL so that concurrent callers
// cannot both observe a successful start.
type IngestionJobRepository interface {
	Create(ctx context.Context, job *models.IngestionJob) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.IngestionJob, error)
	List(ctx context.Context, filter IngestionJobFilter) ([]*models.IngestionJob, error)

	// State transitions
	Start(ctx context.Context, id int64) (bool, error)
	Complete(ctx context.Context, id int64) error
	Fail(ctx context.Context, id int64, errorText string) error
}

// IngestionJobFilter narrows a job listing. Empty fields are ignored.
type IngestionJobFilter struct {
	Status  models.JobStatus
	JobType string
	Limit   int
}

type ingestionJobRepository struct{}

// NewIngestionJobRepository creates a new IngestionJobRepository.
func NewIngestionJobRepository() IngestionJobRepository {
	return &ingestionJobRepository{}
}

var _ IngestionJobRepository = (*ingestionJobRepository)(nil)

const ingestionJobColumns = `id, job_type, source, status, payload_json, attempt_count,
	started_at, finished_at, error_text, tenant_id, updated_at`

// ============================================================================
// Create / Read
// ============================================================================

func (r *ingestionJobRepository) Create(ctx context.Context, job *models.IngestionJob) (int64, error) {
	scope, err := tenantScope(ctx)
	if err != nil {
		return 0, err
	}

	if job.Status == "" {
		job.Status = models.JobStatusPending
	}

	query := `
		INSERT INTO ingestion_jobs (job_type, source, status, payload_json, tenant_id, updated_at)
		VALUES (?, ?, ?, ?, ?, datetime('now'))`

	id, err := insert(ctx, scope.Conn, query,
		job.JobType, job.Source, string(job.Status), job.PayloadJSON, scope.TenantID)
	if err != nil {
		return 0, fmt.Errorf("failed to create ingestion job: %w", err)
	}

	job.ID = id
	job.TenantID = scope.TenantID
	return id, nil
}

func (r *ingestionJobRepository) GetByID(ctx context.Context, id int64) (*models.IngestionJob, error) {
	scope, err := tenantScope(ctx)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + ingestionJobColumns + ` FROM ingestion_jobs WHERE id = ? AND tenant_id = ?`
	job, err := queryOne(ctx, scope.Conn, scanIngestionJob, query, id, scope.TenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to get ingestion job: %w", err)
	}
	return job, nil
}

func (r *ingestionJobRepository) List(ctx context.Context, filter IngestionJobFilter) ([]*models.IngestionJob, error) {
	scope, err := tenantScope(ctx)
	if err != nil {
		return nil, err
	}

	where := &whereClause{}
	where.add("tenant_id = ?", scope.TenantID)
	where.addIf(string(filter.Status), "status = ?")
	where.addIf(filter.JobType, "job_type = ?")

	query := fmt.Sprintf(`SELECT %s FROM ingestion_jobs WHERE %s ORDER BY id DESC LIMIT ?`, ingestionJobColumns, where)
	args := append(where.args, limitOrDefault(filter.Limit, DefaultIngestionJobLimit))

	jobs, err := queryAll(ctx, scope.Conn, scanIngestionJob, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list ingestion jobs: %w", err)
	}
	return jobs, nil
}

// ============================================================================
// State Transitions
// ============================================================================

// Start moves a pending or failed job to running in one conditional UPDATE.
// It returns false, leaving the row untouched, when the job is running,
// completed or absent. started_at keeps its first value across retries.
func (r *ingestionJobRepository) Start(ctx context.Context, id int64) (bool, error) {
	scope, err := tenantScope(ctx)
	if err != nil {
		return false, err
	}

	query := `
		UPDATE ingestion_jobs
		SET status = 'running',
			started_at = COALESCE(started_at, datetime('now')),
			attempt_count = attempt_count + 1,
			updated_at = datetime('now')
		WHERE id = ? AND tenant_id = ? AND status IN ('pending', 'failed')`

	res, err := scope.Conn.ExecContext(ctx, query, id, scope.TenantID)
	if err != nil {
		return false, fmt.Errorf("failed to start ingestion job: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n == 1, nil
}

// Complete marks the job completed and clears error_text, whatever its prior state.
func (r *ingestionJobRepository) Complete(ctx context.Context, id int64) error {
	scope, err := tenantScope(ctx)
	if err != nil {
		return err
	}

	query := `
		UPDATE ingestion_jobs
		SET status = 'completed', finished_at = datetime('now'), error_text = NULL, updated_at = datetime('now')
		WHERE id = ? AND tenant_id = ?`

	if _, err := scope.Conn.ExecContext(ctx, query, id, scope.TenantID); err != nil {
		return fmt.Errorf("failed to complete ingestion job: %w", err)
	}
	return nil
}

// Fail marks the job failed with errorText, whatever its prior state.
func (r *ingestionJobRepository) Fail(ctx context.Context, id int64, errorText string) error {
	scope, err := tenantScope(ctx)
	if err != nil {
		return err
	}

	query := `
		UPDATE ingestion_jobs
		SET status = 'failed', finished_at = datetime('now'), error_text = ?, updated_at = datetime('now')
		WHERE id = ? AND tenant_id = ?`

	if _, err := scope.Conn.ExecContext(ctx, query, errorText, id, scope.TenantID); err != nil {
		return fmt.Errorf("failed to fail ingestion job: %w", err)
	}
	return nil
}

func scanIngestionJob(row rowScanner) (*models.IngestionJob, error) {
	var j models.IngestionJob
	var status string
	err := row.Scan(&j.ID, &j.JobType, &j.Source, &status, &j.PayloadJSON, &j.AttemptCount,
		&j.StartedAt, &j.FinishedAt, &j.ErrorText, &j.TenantID, &j.UpdatedAt)
	if err != nil {
		return nil, err
	}
	j.Status = models.JobStatus(status)
	return &j, nil
}
