package repositories

import (
	"context"
	"fmt"
	"strings"

	"github.com/ekaya-inc/ekaya-continuum/pkg/geo"
	"github.com/ekaya-inc/ekaya-continuum/pkg/models"
)

// LibraryDocumentRepository provides data access for library documents.
type LibraryDocumentRepository interface {
	// Create stores the document, deriving its geohash when both coordinates are set.
	Create(ctx context.Context, doc *models.LibraryDocument) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.LibraryDocument, error)
	List(ctx context.Context, documentType string, limit int) ([]*models.LibraryDocument, error)
	Search(ctx context.Context, params models.LibrarySearchParams) ([]*models.LibraryDocument, error)
}

type libraryDocumentRepository struct{}

// NewLibraryDocumentRepository creates a new LibraryDocumentRepository.
func NewLibraryDocumentRepository() LibraryDocumentRepository {
	return &libraryDocumentRepository{}
}

var _ LibraryDocumentRepository = (*libraryDocumentRepository)(nil)

const libraryDocumentColumns = `id, document_type, blob_ref, url, type_metadata, owner_id, tenant_id,
	lat, lon, altitude_m, geohash, updated_at`

func (r *libraryDocumentRepository) Create(ctx context.Context, doc *models.LibraryDocument) (int64, error) {
	scope, err := tenantScope(ctx)
	if err != nil {
		return 0, err
	}

	doc.Geohash = nil
	if doc.HasLocation() {
		hash := geo.Encode(*doc.Lat, *doc.Lon, geo.Precision)
		doc.Geohash = &hash
	}

	query := `
		INSERT INTO library_documents
			(document_type, blob_ref, url, type_metadata, owner_id, tenant_id,
			 lat, lon, altitude_m, geohash, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, datetime('now'))`

	id, err := insert(ctx, scope.Conn, query,
		doc.DocumentType, doc.BlobRef, doc.URL, doc.TypeMetadata, doc.OwnerID, scope.TenantID,
		doc.Lat, doc.Lon, doc.AltitudeM, doc.Geohash,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to create library document: %w", err)
	}

	doc.ID = id
	doc.TenantID = scope.TenantID
	return id, nil
}

func (r *libraryDocumentRepository) GetByID(ctx context.Context, id int64) (*models.LibraryDocument, error) {
	scope, err := tenantScope(ctx)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + libraryDocumentColumns + ` FROM library_documents WHERE id = ? AND tenant_id = ?`
	doc, err := queryOne(ctx, scope.Conn, scanLibraryDocument, query, id, scope.TenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to get library document: %w", err)
	}
	return doc, nil
}

func (r *libraryDocumentRepository) List(ctx context.Context, documentType string, limit int) ([]*models.LibraryDocument, error) {
	scope, err := tenantScope(ctx)
	if err != nil {
		return nil, err
	}

	where := &whereClause{}
	where.add("tenant_id = ?", scope.TenantID)
	where.addIf(documentType, "document_type = ?")

	query := fmt.Sprintf(`SELECT %s FROM library_documents WHERE %s ORDER BY id DESC LIMIT ?`, libraryDocumentColumns, where)
	args := append(where.args, limitOrDefault(limit, DefaultLibraryLimit))

	docs, err := queryAll(ctx, scope.Conn, scanLibraryDocument, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list library documents: %w", err)
	}
	return docs, nil
}

// Search runs in two phases. The SQL phase applies the tenant, type and
// substring filters plus a coarse geohash predicate when a distance is set.
// The exact distance check then runs in memory and the limit applies last.
func (r *libraryDocumentRepository) Search(ctx context.Context, params models.LibrarySearchParams) ([]*models.LibraryDocument, error) {
	scope, err := tenantScope(ctx)
	if err != nil {
		return nil, err
	}

	where := &whereClause{}
	where.add("tenant_id = ?", scope.TenantID)
	where.addIf(params.DocumentType, "document_type = ?")
	if params.Query != "" {
		// instr is case-sensitive and treats % and _ literally.
		where.add("(instr(COALESCE(type_metadata, ''), ?) > 0 OR instr(COALESCE(url, ''), ?) > 0)",
			params.Query, params.Query)
	}

	filterByDistance := params.HasProbe() && params.Distance.IsBounded()
	if filterByDistance {
		addGeohashPredicate(where, *params.Lat, *params.Lon, params.Distance)
	}

	query := fmt.Sprintf(`SELECT %s FROM library_documents WHERE %s ORDER BY id DESC`, libraryDocumentColumns, where)
	candidates, err := queryAll(ctx, scope.Conn, scanLibraryDocument, query, where.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search library documents: %w", err)
	}

	limit := limitOrDefault(params.Limit, DefaultLibraryLimit)
	results := make([]*models.LibraryDocument, 0, min(len(candidates), limit))
	for _, doc := range candidates {
		if len(results) == limit {
			break
		}
		if filterByDistance && !withinDistance(doc, *params.Lat, *params.Lon, params.Distance) {
			continue
		}
		results = append(results, doc)
	}
	return results, nil
}

// addGeohashPredicate narrows candidates to the probe's cell (distance 0)
// or to the prefix cover of the search circle. Rows that have coordinates
// but no stored geohash are kept for the in-memory check.
func addGeohashPredicate(where *whereClause, lat, lon float64, distance models.Distance) {
	if distance.IsSameCell() {
		where.add("geohash = ?", geo.Encode(lat, lon, geo.Precision))
		return
	}

	prefixes := geo.CoverPrefixes(lat, lon, distance.Value())
	if len(prefixes) == 0 {
		where.add("lat IS NOT NULL AND lon IS NOT NULL")
		return
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(prefixes)), ", ")
	args := make([]any, 0, len(prefixes)+1)
	args = append(args, len(prefixes[0]))
	for _, p := range prefixes {
		args = append(args, p)
	}
	where.add(fmt.Sprintf(
		"((geohash IS NULL AND lat IS NOT NULL AND lon IS NOT NULL) OR substr(geohash, 1, ?) IN (%s))",
		placeholders), args...)
}

func withinDistance(doc *models.LibraryDocument, lat, lon float64, distance models.Distance) bool {
	if distance.IsSameCell() {
		return doc.Geohash != nil && *doc.Geohash == geo.Encode(lat, lon, geo.Precision)
	}
	if !doc.HasLocation() {
		return false
	}
	return geo.HaversineMiles(lat, lon, *doc.Lat, *doc.Lon) <= distance.Value()
}

func scanLibraryDocument(row rowScanner) (*models.LibraryDocument, error) {
	var d models.LibraryDocument
	err := row.Scan(&d.ID, &d.DocumentType, &d.BlobRef, &d.URL, &d.TypeMetadata, &d.OwnerID, &d.TenantID,
		&d.Lat, &d.Lon, &d.AltitudeM, &d.Geohash, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
