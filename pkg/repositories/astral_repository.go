package repositories

import (
	"context"
	"fmt"

	"github.com/ekaya-inc/ekaya-continuum/pkg/models"
)

// AstralBodyRepository provides data access for the body catalog.
type AstralBodyRepository interface {
	// Upsert inserts a body or replaces the existing row with the same body_id.
	Upsert(ctx context.Context, body *models.AstralBody) (int64, error)
	GetByBodyID(ctx context.Context, bodyID string) (*models.AstralBody, error)
	List(ctx context.Context, kind string, limit int) ([]*models.AstralBody, error)
}

type astralBodyRepository struct{}

// NewAstralBodyRepository creates a new AstralBodyRepository.
func NewAstralBodyRepository() AstralBodyRepository {
	return &astralBodyRepository{}
}

var _ AstralBodyRepository = (*astralBodyRepository)(nil)

const astralBodyColumns = `id, body_id, name, kind, mass_kg, radius_m, parent_body_id, frame_id, tenant_id, updated_at`

func (r *astralBodyRepository) Upsert(ctx context.Context, body *models.AstralBody) (int64, error) {
	scope, err := tenantScope(ctx)
	if err != nil {
		return 0, err
	}

	query := `
		INSERT INTO astral_body_catalog
			(body_id, name, kind, mass_kg, radius_m, parent_body_id, frame_id, tenant_id, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, datetime('now'))
		ON CONFLICT (tenant_id, body_id) DO UPDATE SET
			name = excluded.name,
			kind = excluded.kind,
			mass_kg = excluded.mass_kg,
			radius_m = excluded.radius_m,
			parent_body_id = excluded.parent_body_id,
			frame_id = excluded.frame_id,
			updated_at = excluded.updated_at
		RETURNING id`

	var id int64
	err = scope.Conn.QueryRowContext(ctx, query,
		body.BodyID, body.Name, body.Kind, body.MassKg, body.RadiusM,
		body.ParentBodyID, body.FrameID, scope.TenantID,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert astral body %q: %w", body.BodyID, err)
	}

	body.ID = id
	body.TenantID = scope.TenantID
	return id, nil
}

func (r *astralBodyRepository) GetByBodyID(ctx context.Context, bodyID string) (*models.AstralBody, error) {
	scope, err := tenantScope(ctx)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + astralBodyColumns + ` FROM astral_body_catalog WHERE body_id = ? AND tenant_id = ?`
	body, err := queryOne(ctx, scope.Conn, scanAstralBody, query, bodyID, scope.TenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to get astral body: %w", err)
	}
	return body, nil
}

// List returns bodies ordered by body_id, optionally filtered by kind.
func (r *astralBodyRepository) List(ctx context.Context, kind string, limit int) ([]*models.AstralBody, error) {
	scope, err := tenantScope(ctx)
	if err != nil {
		return nil, err
	}

	where := &whereClause{}
	where.add("tenant_id = ?", scope.TenantID)
	where.addIf(kind, "kind = ?")

	query := fmt.Sprintf(`SELECT %s FROM astral_body_catalog WHERE %s ORDER BY body_id LIMIT ?`, astralBodyColumns, where)
	args := append(where.args, limitOrDefault(limit, DefaultAstralBodyLimit))

	bodies, err := queryAll(ctx, scope.Conn, scanAstralBody, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list astral bodies: %w", err)
	}
	return bodies, nil
}

func scanAstralBody(row rowScanner) (*models.AstralBody, error) {
	var b models.AstralBody
	err := row.Scan(&b.ID, &b.BodyID, &b.Name, &b.Kind, &b.MassKg, &b.RadiusM,
		&b.ParentBodyID, &b.FrameID, &b.TenantID, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// ============================================================================
// Observer Sites
// ============================================================================

// ObserverSiteRepository provides data access for observer sites.
type ObserverSiteRepository interface {
	// Upsert inserts a site or replaces the existing row with the same site_id.
	Upsert(ctx context.Context, site *models.ObserverSite) (int64, error)
	GetBySiteID(ctx context.Context, siteID string) (*models.ObserverSite, error)
	List(ctx context.Context, bodyID string, limit int) ([]*models.ObserverSite, error)
}

type observerSiteRepository struct{}

// NewObserverSiteRepository creates a new ObserverSiteRepository.
func NewObserverSiteRepository() ObserverSiteRepository {
	return &observerSiteRepository{}
}

var _ ObserverSiteRepository = (*observerSiteRepository)(nil)

const observerSiteColumns = `id, site_id, body_id, lat_deg, lon_deg, altitude_m, reference_frame, tenant_id, updated_at`

func (r *observerSiteRepository) Upsert(ctx context.Context, site *models.ObserverSite) (int64, error) {
	scope, err := tenantScope(ctx)
	if err != nil {
		return 0, err
	}

	query := `
		INSERT INTO astral_observer_sites
			(site_id, body_id, lat_deg, lon_deg, altitude_m, reference_frame, tenant_id, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, datetime('now'))
		ON CONFLICT (tenant_id, site_id) DO UPDATE SET
			body_id = excluded.body_id,
			lat_deg = excluded.lat_deg,
			lon_deg = excluded.lon_deg,
			altitude_m = excluded.altitude_m,
			reference_frame = excluded.reference_frame,
			updated_at = excluded.updated_at
		RETURNING id`

	var id int64
	err = scope.Conn.QueryRowContext(ctx, query,
		site.SiteID, site.BodyID, site.LatDeg, site.LonDeg, site.AltitudeM,
		site.ReferenceFrame, scope.TenantID,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert observer site %q: %w", site.SiteID, err)
	}

	site.ID = id
	site.TenantID = scope.TenantID
	return id, nil
}

func (r *observerSiteRepository) GetBySiteID(ctx context.Context, siteID string) (*models.ObserverSite, error) {
	scope, err := tenantScope(ctx)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + observerSiteColumns + ` FROM astral_observer_sites WHERE site_id = ? AND tenant_id = ?`
	site, err := queryOne(ctx, scope.Conn, scanObserverSite, query, siteID, scope.TenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to get observer site: %w", err)
	}
	return site, nil
}

// List returns sites ordered by site_id, optionally filtered by body.
func (r *observerSiteRepository) List(ctx context.Context, bodyID string, limit int) ([]*models.ObserverSite, error) {
	scope, err := tenantScope(ctx)
	if err != nil {
		return nil, err
	}

	where := &whereClause{}
	where.add("tenant_id = ?", scope.TenantID)
	where.addIf(bodyID, "body_id = ?")

	query := fmt.Sprintf(`SELECT %s FROM astral_observer_sites WHERE %s ORDER BY site_id LIMIT ?`, observerSiteColumns, where)
	args := append(where.args, limitOrDefault(limit, DefaultObserverSiteLimit))

	sites, err := queryAll(ctx, scope.Conn, scanObserverSite, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list observer sites: %w", err)
	}
	return sites, nil
}

func scanObserverSite(row rowScanner) (*models.ObserverSite, error) {
	var s models.ObserverSite
	err := row.Scan(&s.ID, &s.SiteID, &s.BodyID, &s.LatDeg, &s.LonDeg, &s.AltitudeM,
		&s.ReferenceFrame, &s.TenantID, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}
