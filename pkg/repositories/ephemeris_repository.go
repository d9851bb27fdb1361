package repositories

import (
	"context"
	"fmt"

	"github.com/ekaya-inc/ekaya-continuum/pkg/models"
)

// EphemerisRepository provides data access for ephemeris samples.
// Samples are append-only; re-ingesting a file adds duplicate rows.
type EphemerisRepository interface {
	Create(ctx context.Context, sample *models.EphemerisSample) (int64, error)
	// Get returns the most recently inserted sample for the body at epochUTC.
	Get(ctx context.Context, bodyID, epochUTC string) (*models.EphemerisSample, error)
	// ListNearEpoch returns samples ordered by absolute distance from epochUTC.
	ListNearEpoch(ctx context.Context, bodyID, epochUTC string, limit int) ([]*models.EphemerisSample, error)
	CountBySourceFile(ctx context.Context, sourceFileID int64) (int, error)
	CountByBody(ctx context.Context, bodyID string) (int, error)
}

type ephemerisRepository struct{}

// NewEphemerisRepository creates a new EphemerisRepository.
func NewEphemerisRepository() EphemerisRepository {
	return &ephemerisRepository{}
}

var _ EphemerisRepository = (*ephemerisRepository)(nil)

const ephemerisColumns = `id, body_id, epoch_utc, position_x, position_y, position_z,
	velocity_x, velocity_y, velocity_z, frame_id, source_file_id, tenant_id`

func (r *ephemerisRepository) Create(ctx context.Context, sample *models.EphemerisSample) (int64, error) {
	scope, err := tenantScope(ctx)
	if err != nil {
		return 0, err
	}

	query := `
		INSERT INTO ephemeris_samples
			(body_id, epoch_utc, position_x, position_y, position_z,
			 velocity_x, velocity_y, velocity_z, frame_id, source_file_id, tenant_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	id, err := insert(ctx, scope.Conn, query,
		sample.BodyID, sample.EpochUTC, sample.PositionX, sample.PositionY, sample.PositionZ,
		sample.VelocityX, sample.VelocityY, sample.VelocityZ,
		sample.FrameID, sample.SourceFileID, scope.TenantID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to create ephemeris sample: %w", err)
	}

	sample.ID = id
	sample.TenantID = scope.TenantID
	return id, nil
}

func (r *ephemerisRepository) Get(ctx context.Context, bodyID, epochUTC string) (*models.EphemerisSample, error) {
	scope, err := tenantScope(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT ` + ephemerisColumns + `
		FROM ephemeris_samples
		WHERE body_id = ? AND epoch_utc = ? AND tenant_id = ?
		ORDER BY id DESC
		LIMIT 1`

	sample, err := queryOne(ctx, scope.Conn, scanEphemerisSample, query, bodyID, epochUTC, scope.TenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to get ephemeris sample: %w", err)
	}
	return sample, nil
}

func (r *ephemerisRepository) ListNearEpoch(ctx context.Context, bodyID, epochUTC string, limit int) ([]*models.EphemerisSample, error) {
	scope, err := tenantScope(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT ` + ephemerisColumns + `
		FROM ephemeris_samples
		WHERE body_id = ? AND tenant_id = ?
		ORDER BY ABS(julianday(epoch_utc) - julianday(?)) ASC, id DESC
		LIMIT ?`

	samples, err := queryAll(ctx, scope.Conn, scanEphemerisSample, query,
		bodyID, scope.TenantID, epochUTC, limitOrDefault(limit, DefaultNearEpochLimit))
	if err != nil {
		return nil, fmt.Errorf("failed to list ephemeris samples near epoch: %w", err)
	}
	return samples, nil
}

func (r *ephemerisRepository) CountBySourceFile(ctx context.Context, sourceFileID int64) (int, error) {
	scope, err := tenantScope(ctx)
	if err != nil {
		return 0, err
	}

	var n int
	err = scope.Conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM ephemeris_samples WHERE source_file_id = ? AND tenant_id = ?`,
		sourceFileID, scope.TenantID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count ephemeris samples: %w", err)
	}
	return n, nil
}

func (r *ephemerisRepository) CountByBody(ctx context.Context, bodyID string) (int, error) {
	scope, err := tenantScope(ctx)
	if err != nil {
		return 0, err
	}

	var n int
	err = scope.Conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM ephemeris_samples WHERE body_id = ? AND tenant_id = ?`,
		bodyID, scope.TenantID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count ephemeris samples: %w", err)
	}
	return n, nil
}

func scanEphemerisSample(row rowScanner) (*models.EphemerisSample, error) {
	var s models.EphemerisSample
	err := row.Scan(&s.ID, &s.BodyID, &s.EpochUTC, &s.PositionX, &s.PositionY, &s.PositionZ,
		&s.VelocityX, &s.VelocityY, &s.VelocityZ, &s.FrameID, &s.SourceFileID, &s.TenantID)
	if err != nil {
		return nil, err
	}
	return &s, nil
}
