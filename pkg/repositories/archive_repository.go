package repositories

import (
	"context"
	"fmt"

	"github.com/ekaya-inc/ekaya-continuum/pkg/models"
)

// ArchiveRepository provides insert and list access to the shared archive
// tables used by the compressors, the ETL loader and the research feed.
// These tables are global and are not filtered by tenant.
type ArchiveRepository interface {
	// Spatial index
	CreateSpatialEntry(ctx context.Context, entry *models.SpatialEntry) (int64, error)
	ListSpatialEntries(ctx context.Context, limit int) ([]*models.SpatialEntry, error)

	// Document blobs
	CreateDocumentBlob(ctx context.Context, blob *models.DocumentBlob) (int64, error)
	ListDocumentBlobs(ctx context.Context, limit int) ([]*models.DocumentBlob, error)

	// Semantic chunks
	CreateSemanticChunk(ctx context.Context, chunk *models.SemanticChunk) (int64, error)
	GetSemanticChunk(ctx context.Context, id int64) (*models.SemanticChunk, error)
	ListSemanticChunks(ctx context.Context, mediaType string, limit int) ([]*models.SemanticChunk, error)

	// Unique kernels
	CreateUniqueKernel(ctx context.Context, kernel *models.UniqueKernel) (int64, error)
	ListUniqueKernels(ctx context.Context, status string, limit int) ([]*models.UniqueKernel, error)
	UpdateKernelStatus(ctx context.Context, id int64, status string, residualMetric *float64) error

	// Compression runs
	CreateCompressionRun(ctx context.Context, run *models.CompressionRun) (int64, error)
	ListCompressionRuns(ctx context.Context, limit int) ([]*models.CompressionRun, error)

	// Research suggestions
	CreateResearchSuggestion(ctx context.Context, s *models.ResearchSuggestion) (int64, error)
	ListResearchSuggestions(ctx context.Context, status string, limit int) ([]*models.ResearchSuggestion, error)
}

type archiveRepository struct{}

// NewArchiveRepository creates a new ArchiveRepository.
func NewArchiveRepository() ArchiveRepository {
	return &archiveRepository{}
}

var _ ArchiveRepository = (*archiveRepository)(nil)

// ============================================================================
// Spatial index
// ============================================================================

func (r *archiveRepository) CreateSpatialEntry(ctx context.Context, entry *models.SpatialEntry) (int64, error) {
	scope, err := tenantScope(ctx)
	if err != nil {
		return 0, err
	}

	id, err := insert(ctx, scope.Conn,
		`INSERT INTO spatial_4d (bounds4_json, payload_type, payload_id) VALUES (?, ?, ?)`,
		entry.Bounds4JSON, entry.PayloadType, entry.PayloadID)
	if err != nil {
		return 0, fmt.Errorf("failed to create spatial entry: %w", err)
	}
	entry.ID = id
	return id, nil
}

func (r *archiveRepository) ListSpatialEntries(ctx context.Context, limit int) ([]*models.SpatialEntry, error) {
	scope, err := tenantScope(ctx)
	if err != nil {
		return nil, err
	}

	entries, err := queryAll(ctx, scope.Conn, func(row rowScanner) (*models.SpatialEntry, error) {
		var e models.SpatialEntry
		return &e, row.Scan(&e.ID, &e.Bounds4JSON, &e.PayloadType, &e.PayloadID, &e.CreatedAt)
	}, `SELECT id, bounds4_json, payload_type, payload_id, created_at FROM spatial_4d ORDER BY id DESC LIMIT ?`,
		limitOrDefault(limit, DefaultArchiveListLimit))
	if err != nil {
		return nil, fmt.Errorf("failed to list spatial entries: %w", err)
	}
	return entries, nil
}

// ============================================================================
// Document blobs
// ============================================================================

func (r *archiveRepository) CreateDocumentBlob(ctx context.Context, blob *models.DocumentBlob) (int64, error) {
	scope, err := tenantScope(ctx)
	if err != nil {
		return 0, err
	}

	id, err := insert(ctx, scope.Conn,
		`INSERT INTO document_blobs (tar_hash, path, mime_type) VALUES (?, ?, ?)`,
		blob.TarHash, blob.Path, blob.MimeType)
	if err != nil {
		return 0, fmt.Errorf("failed to create document blob: %w", err)
	}
	blob.ID = id
	return id, nil
}

func (r *archiveRepository) ListDocumentBlobs(ctx context.Context, limit int) ([]*models.DocumentBlob, error) {
	scope, err := tenantScope(ctx)
	if err != nil {
		return nil, err
	}

	blobs, err := queryAll(ctx, scope.Conn, func(row rowScanner) (*models.DocumentBlob, error) {
		var b models.DocumentBlob
		return &b, row.Scan(&b.ID, &b.TarHash, &b.Path, &b.MimeType, &b.CreatedAt)
	}, `SELECT id, tar_hash, path, mime_type, created_at FROM document_blobs ORDER BY id DESC LIMIT ?`,
		limitOrDefault(limit, DefaultArchiveListLimit))
	if err != nil {
		return nil, fmt.Errorf("failed to list document blobs: %w", err)
	}
	return blobs, nil
}

// ============================================================================
// Semantic chunks
// ============================================================================

const semanticChunkColumns = `id, media_type, chunk_key, description_text, diff_blob_ref, parent_id, quad_path, created_at`

func (r *archiveRepository) CreateSemanticChunk(ctx context.Context, chunk *models.SemanticChunk) (int64, error) {
	scope, err := tenantScope(ctx)
	if err != nil {
		return 0, err
	}

	query := `
		INSERT INTO semantic_chunks (media_type, chunk_key, description_text, diff_blob_ref, parent_id, quad_path)
		VALUES (?, ?, ?, ?, ?, ?)`

	id, err := insert(ctx, scope.Conn, query,
		chunk.MediaType, chunk.ChunkKey, chunk.DescriptionText, chunk.DiffBlobRef, chunk.ParentID, chunk.QuadPath)
	if err != nil {
		return 0, fmt.Errorf("failed to create semantic chunk: %w", err)
	}
	chunk.ID = id
	return id, nil
}

func (r *archiveRepository) GetSemanticChunk(ctx context.Context, id int64) (*models.SemanticChunk, error) {
	scope, err := tenantScope(ctx)
	if err != nil {
		return nil, err
	}

	chunk, err := queryOne(ctx, scope.Conn, scanSemanticChunk,
		`SELECT `+semanticChunkColumns+` FROM semantic_chunks WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get semantic chunk: %w", err)
	}
	return chunk, nil
}

func (r *archiveRepository) ListSemanticChunks(ctx context.Context, mediaType string, limit int) ([]*models.SemanticChunk, error) {
	scope, err := tenantScope(ctx)
	if err != nil {
		return nil, err
	}

	where := &whereClause{}
	where.add("1 = 1")
	where.addIf(mediaType, "media_type = ?")

	query := fmt.Sprintf(`SELECT %s FROM semantic_chunks WHERE %s ORDER BY id DESC LIMIT ?`, semanticChunkColumns, where)
	args := append(where.args, limitOrDefault(limit, DefaultArchiveListLimit))

	chunks, err := queryAll(ctx, scope.Conn, scanSemanticChunk, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list semantic chunks: %w", err)
	}
	return chunks, nil
}

func scanSemanticChunk(row rowScanner) (*models.SemanticChunk, error) {
	var c models.SemanticChunk
	err := row.Scan(&c.ID, &c.MediaType, &c.ChunkKey, &c.DescriptionText, &c.DiffBlobRef,
		&c.ParentID, &c.QuadPath, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ============================================================================
// Unique kernels
// ============================================================================

func (r *archiveRepository) CreateUniqueKernel(ctx context.Context, kernel *models.UniqueKernel) (int64, error) {
	scope, err := tenantScope(ctx)
	if err != nil {
		return 0, err
	}

	if kernel.Status == "" {
		kernel.Status = "pending"
	}

	query := `
		INSERT INTO unique_kernels (chunk_id, source_compressor, residual_metric, attempt_count, status)
		VALUES (?, ?, ?, ?, ?)`

	id, err := insert(ctx, scope.Conn, query,
		kernel.ChunkID, kernel.SourceCompressor, kernel.ResidualMetric, kernel.AttemptCount, kernel.Status)
	if err != nil {
		return 0, fmt.Errorf("failed to create unique kernel: %w", err)
	}
	kernel.ID = id
	return id, nil
}

func (r *archiveRepository) ListUniqueKernels(ctx context.Context, status string, limit int) ([]*models.UniqueKernel, error) {
	scope, err := tenantScope(ctx)
	if err != nil {
		return nil, err
	}

	where := &whereClause{}
	where.add("1 = 1")
	where.addIf(status, "status = ?")

	query := fmt.Sprintf(`
		SELECT id, chunk_id, source_compressor, residual_metric, attempt_count, status, created_at
		FROM unique_kernels WHERE %s ORDER BY id DESC LIMIT ?`, where)
	args := append(where.args, limitOrDefault(limit, DefaultArchiveListLimit))

	kernels, err := queryAll(ctx, scope.Conn, func(row rowScanner) (*models.UniqueKernel, error) {
		var k models.UniqueKernel
		return &k, row.Scan(&k.ID, &k.ChunkID, &k.SourceCompressor, &k.ResidualMetric,
			&k.AttemptCount, &k.Status, &k.CreatedAt)
	}, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list unique kernels: %w", err)
	}
	return kernels, nil
}

// UpdateKernelStatus sets the status and counts one more attempt. The
// residual metric is only overwritten when one is supplied.
func (r *archiveRepository) UpdateKernelStatus(ctx context.Context, id int64, status string, residualMetric *float64) error {
	scope, err := tenantScope(ctx)
	if err != nil {
		return err
	}

	query := `
		UPDATE unique_kernels
		SET status = ?, residual_metric = COALESCE(?, residual_metric), attempt_count = attempt_count + 1
		WHERE id = ?`

	if _, err := scope.Conn.ExecContext(ctx, query, status, residualMetric, id); err != nil {
		return fmt.Errorf("failed to update unique kernel status: %w", err)
	}
	return nil
}

// ============================================================================
// Compression runs
// ============================================================================

func (r *archiveRepository) CreateCompressionRun(ctx context.Context, run *models.CompressionRun) (int64, error) {
	scope, err := tenantScope(ctx)
	if err != nil {
		return 0, err
	}

	id, err := insert(ctx, scope.Conn,
		`INSERT INTO compression_runs (media_id, strategy, config_json, output_hash) VALUES (?, ?, ?, ?)`,
		run.MediaID, run.Strategy, run.ConfigJSON, run.OutputHash)
	if err != nil {
		return 0, fmt.Errorf("failed to create compression run: %w", err)
	}
	run.ID = id
	return id, nil
}

func (r *archiveRepository) ListCompressionRuns(ctx context.Context, limit int) ([]*models.CompressionRun, error) {
	scope, err := tenantScope(ctx)
	if err != nil {
		return nil, err
	}

	runs, err := queryAll(ctx, scope.Conn, func(row rowScanner) (*models.CompressionRun, error) {
		var c models.CompressionRun
		return &c, row.Scan(&c.ID, &c.MediaID, &c.Strategy, &c.ConfigJSON, &c.OutputHash, &c.CreatedAt)
	}, `SELECT id, media_id, strategy, config_json, output_hash, created_at FROM compression_runs ORDER BY id DESC LIMIT ?`,
		limitOrDefault(limit, DefaultArchiveListLimit))
	if err != nil {
		return nil, fmt.Errorf("failed to list compression runs: %w", err)
	}
	return runs, nil
}

// ============================================================================
// Research suggestions
// ============================================================================

func (r *archiveRepository) CreateResearchSuggestion(ctx context.Context, s *models.ResearchSuggestion) (int64, error) {
	scope, err := tenantScope(ctx)
	if err != nil {
		return 0, err
	}

	if s.Status == "" {
		s.Status = "pending"
	}

	id, err := insert(ctx, scope.Conn,
		`INSERT INTO research_suggestions (source, context_json, recommendation_text, status) VALUES (?, ?, ?, ?)`,
		s.Source, s.ContextJSON, s.RecommendationText, s.Status)
	if err != nil {
		return 0, fmt.Errorf("failed to create research suggestion: %w", err)
	}
	s.ID = id
	return id, nil
}

func (r *archiveRepository) ListResearchSuggestions(ctx context.Context, status string, limit int) ([]*models.ResearchSuggestion, error) {
	scope, err := tenantScope(ctx)
	if err != nil {
		return nil, err
	}

	where := &whereClause{}
	where.add("1 = 1")
	where.addIf(status, "status = ?")

	query := fmt.Sprintf(`
		SELECT id, source, context_json, recommendation_text, status, created_at
		FROM research_suggestions WHERE %s ORDER BY id DESC LIMIT ?`, where)
	args := append(where.args, limitOrDefault(limit, DefaultArchiveListLimit))

	suggestions, err := queryAll(ctx, scope.Conn, func(row rowScanner) (*models.ResearchSuggestion, error) {
		var s models.ResearchSuggestion
		return &s, row.Scan(&s.ID, &s.Source, &s.ContextJSON, &s.RecommendationText, &s.Status, &s.CreatedAt)
	}, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list research suggestions: %w", err)
	}
	return suggestions, nil
}
