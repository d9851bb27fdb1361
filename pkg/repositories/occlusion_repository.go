package repositories

import (
	"context"
	"fmt"

	"github.com/ekaya-inc/ekaya-continuum/pkg/models"
)

// OcclusionRepository provides data access for occlusion and eclipse events.
type OcclusionRepository interface {
	Create(ctx context.Context, event *models.OcclusionEvent) (int64, error)
	List(ctx context.Context, filter OcclusionFilter) ([]*models.OcclusionEvent, error)
}

// OcclusionFilter narrows an occlusion listing. Empty fields are ignored.
type OcclusionFilter struct {
	EpochUTC     string
	TargetBodyID string
	Limit        int
}

type occlusionRepository struct{}

// NewOcclusionRepository creates a new OcclusionRepository.
func NewOcclusionRepository() OcclusionRepository {
	return &occlusionRepository{}
}

var _ OcclusionRepository = (*occlusionRepository)(nil)

const occlusionColumns = `id, epoch_utc, source_body_id, target_body_id, occluder_body_id, occlusion_ratio, eclipse_type, tenant_id`

func (r *occlusionRepository) Create(ctx context.Context, event *models.OcclusionEvent) (int64, error) {
	scope, err := tenantScope(ctx)
	if err != nil {
		return 0, err
	}

	query := `
		INSERT INTO occlusion_events
			(epoch_utc, source_body_id, target_body_id, occluder_body_id, occlusion_ratio, eclipse_type, tenant_id)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	id, err := insert(ctx, scope.Conn, query,
		event.EpochUTC, event.SourceBodyID, event.TargetBodyID, event.OccluderBodyID,
		event.OcclusionRatio, event.EclipseType, scope.TenantID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to create occlusion event: %w", err)
	}

	event.ID = id
	event.TenantID = scope.TenantID
	return id, nil
}

func (r *occlusionRepository) List(ctx context.Context, filter OcclusionFilter) ([]*models.OcclusionEvent, error) {
	scope, err := tenantScope(ctx)
	if err != nil {
		return nil, err
	}

	where := &whereClause{}
	where.add("tenant_id = ?", scope.TenantID)
	where.addIf(filter.EpochUTC, "epoch_utc = ?")
	where.addIf(filter.TargetBodyID, "target_body_id = ?")

	query := fmt.Sprintf(`SELECT %s FROM occlusion_events WHERE %s ORDER BY id DESC LIMIT ?`, occlusionColumns, where)
	args := append(where.args, limitOrDefault(filter.Limit, DefaultOcclusionLimit))

	events, err := queryAll(ctx, scope.Conn, scanOcclusionEvent, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list occlusion events: %w", err)
	}
	return events, nil
}

func scanOcclusionEvent(row rowScanner) (*models.OcclusionEvent, error) {
	var e models.OcclusionEvent
	err := row.Scan(&e.ID, &e.EpochUTC, &e.SourceBodyID, &e.TargetBodyID, &e.OccluderBodyID,
		&e.OcclusionRatio, &e.EclipseType, &e.TenantID)
	if err != nil {
		return nil, err
	}
	return &e, nil
}
