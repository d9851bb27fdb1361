package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-continuum/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-continuum/pkg/logging"
	"github.com/ekaya-inc/ekaya-continuum/pkg/models"
	"github.com/ekaya-inc/ekaya-continuum/pkg/repositories"
	sqlguard "github.com/ekaya-inc/ekaya-continuum/pkg/sql"
)

// DefaultExplorerMaxRows caps ad hoc read results when no limit is configured.
const DefaultExplorerMaxRows = 1000

// TableQuery selects a named table and its optional filters.
// Filters that do not apply to the table are ignored.
type TableQuery struct {
	Table string
	Limit int

	// library_documents
	DocumentType string
	Query        string
	Lat          *float64
	Lon          *float64
	Distance     string

	Kind         string // astral_body_catalog
	BodyID       string // astral_observer_sites, ephemeris_samples
	EpochUTC     string // ephemeris_samples, occlusion_events
	TargetBodyID string // occlusion_events
	FileType     string // nasa_file_registry
	Status       string // ingestion_jobs, unique_kernels, research_suggestions
	JobType      string // ingestion_jobs
	MediaType    string // semantic_chunks
}

// ExplorerService is the read surface used by the CLI and MCP tools.
type ExplorerService interface {
	// Tables returns the names accepted by ListTable.
	Tables() []string
	ListTable(ctx context.Context, tenantID string, q TableQuery) (any, error)
	SearchLibrary(ctx context.Context, tenantID string, params models.LibrarySearchParams) ([]*models.LibraryDocument, error)
	// ExecuteRead runs a single read-only statement. Writes are rejected with
	// ErrReadOnly; empty or stacked statements and bind values that look like
	// injection attempts are rejected with ErrInvalidArgument.
	// ExecuteRead runs one validated read-only statement on a shared scope.
	// Statements are not tenant filtered and see every tenant's rows.
	ExecuteRead(ctx context.Context, query string, args []any) (*repositories.ReadResult, error)
}

// ExplorerRepositories groups the repositories the explorer reads from.
type ExplorerRepositories struct {
	Bodies    repositories.AstralBodyRepository
	Sites     repositories.ObserverSiteRepository
	Files     repositories.NasaFileRepository
	Ephemeris repositories.EphemerisRepository
	Occlusion repositories.OcclusionRepository
	Jobs      repositories.IngestionJobRepository
	Library   repositories.LibraryDocumentRepository
	Archive   repositories.ArchiveRepository
	Explorer  repositories.ExplorerRepository
}

// NewExplorerRepositories wires the SQLite-backed repositories.
func NewExplorerRepositories() ExplorerRepositories {
	return ExplorerRepositories{
		Bodies:    repositories.NewAstralBodyRepository(),
		Sites:     repositories.NewObserverSiteRepository(),
		Files:     repositories.NewNasaFileRepository(),
		Ephemeris: repositories.NewEphemerisRepository(),
		Occlusion: repositories.NewOcclusionRepository(),
		Jobs:      repositories.NewIngestionJobRepository(),
		Library:   repositories.NewLibraryDocumentRepository(),
		Archive:   repositories.NewArchiveRepository(),
		Explorer:  repositories.NewExplorerRepository(),
	}
}

type tableHandler struct {
	shared bool
	list   func(ctx context.Context, q TableQuery) (any, error)
}

type explorerService struct {
	repos     ExplorerRepositories
	getTenant TenantContextFunc
	getShared SharedContextFunc
	maxRows   int
	tables    map[string]tableHandler
	logger    *zap.Logger
}

// NewExplorerService creates a new ExplorerService.
// A non-positive maxRows selects DefaultExplorerMaxRows.
func NewExplorerService(
	repos ExplorerRepositories,
	getTenant TenantContextFunc,
	getShared SharedContextFunc,
	maxRows int,
	logger *zap.Logger,
) ExplorerService {
	if maxRows <= 0 {
		maxRows = DefaultExplorerMaxRows
	}
	s := &explorerService{
		repos:     repos,
		getTenant: getTenant,
		getShared: getShared,
		maxRows:   maxRows,
		logger:    logger.Named("explorer"),
	}
	s.tables = s.tableHandlers()
	return s
}

var _ ExplorerService = (*explorerService)(nil)

func (s *explorerService) tableHandlers() map[string]tableHandler {
	r := s.repos
	return map[string]tableHandler{
		"astral_body_catalog": {list: func(ctx context.Context, q TableQuery) (any, error) {
			return r.Bodies.List(ctx, q.Kind, q.Limit)
		}},
		"astral_observer_sites": {list: func(ctx context.Context, q TableQuery) (any, error) {
			return r.Sites.List(ctx, q.BodyID, q.Limit)
		}},
		"nasa_file_registry": {list: func(ctx context.Context, q TableQuery) (any, error) {
			return r.Files.List(ctx, models.FileType(q.FileType), q.Limit)
		}},
		"ephemeris_samples": {list: func(ctx context.Context, q TableQuery) (any, error) {
			if q.BodyID == "" || q.EpochUTC == "" {
				return nil, fmt.Errorf("%w: ephemeris_samples requires body_id and epoch_utc", apperrors.ErrInvalidArgument)
			}
			return r.Ephemeris.ListNearEpoch(ctx, q.BodyID, q.EpochUTC, q.Limit)
		}},
		"occlusion_events": {list: func(ctx context.Context, q TableQuery) (any, error) {
			return r.Occlusion.List(ctx, repositories.OcclusionFilter{EpochUTC: q.EpochUTC, TargetBodyID: q.TargetBodyID, Limit: q.Limit})
		}},
		"ingestion_jobs": {list: func(ctx context.Context, q TableQuery) (any, error) {
			return r.Jobs.List(ctx, repositories.IngestionJobFilter{Status: models.JobStatus(q.Status), JobType: q.JobType, Limit: q.Limit})
		}},
		"library_documents": {list: func(ctx context.Context, q TableQuery) (any, error) {
			params, err := librarySearchParams(q)
			if err != nil {
				return nil, err
			}
			return r.Library.Search(ctx, params)
		}},
		"spatial_4d": {shared: true, list: func(ctx context.Context, q TableQuery) (any, error) {
			return r.Archive.ListSpatialEntries(ctx, q.Limit)
		}},
		"document_blobs": {shared: true, list: func(ctx context.Context, q TableQuery) (any, error) {
			return r.Archive.ListDocumentBlobs(ctx, q.Limit)
		}},
		"semantic_chunks": {shared: true, list: func(ctx context.Context, q TableQuery) (any, error) {
			return r.Archive.ListSemanticChunks(ctx, q.MediaType, q.Limit)
		}},
		"unique_kernels": {shared: true, list: func(ctx context.Context, q TableQuery) (any, error) {
			return r.Archive.ListUniqueKernels(ctx, q.Status, q.Limit)
		}},
		"compression_runs": {shared: true, list: func(ctx context.Context, q TableQuery) (any, error) {
			return r.Archive.ListCompressionRuns(ctx, q.Limit)
		}},
		"research_suggestions": {shared: true, list: func(ctx context.Context, q TableQuery) (any, error) {
			return r.Archive.ListResearchSuggestions(ctx, q.Status, q.Limit)
		}},
		"continuum_meta": {shared: true, list: func(ctx context.Context, q TableQuery) (any, error) {
			limit := q.Limit
			if limit <= 0 {
				limit = repositories.DefaultArchiveListLimit
			}
			res, err := r.Explorer.ExecuteRead(ctx, `SELECT key, value, updated_at FROM continuum_meta ORDER BY key LIMIT ?`, []any{limit}, 0)
			if err != nil {
				return nil, err
			}
			return res.Rows, nil
		}},
	}
}

func (s *explorerService) Tables() []string {
	names := make([]string, 0, len(s.tables))
	for name := range s.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *explorerService) ListTable(ctx context.Context, tenantID string, q TableQuery) (any, error) {
	table := strings.ToLower(strings.TrimSpace(q.Table))
	handler, ok := s.tables[table]
	if !ok {
		return nil, fmt.Errorf("%w: unknown table: %s", apperrors.ErrInvalidArgument, q.Table)
	}

	var (
		scopedCtx context.Context
		cleanup   func()
		err       error
	)
	if handler.shared {
		scopedCtx, cleanup, err = s.getShared(ctx)
	} else {
		scopedCtx, cleanup, err = s.getTenant(ctx, tenantID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to acquire scope: %w", err)
	}
	defer cleanup()

	return handler.list(scopedCtx, q)
}

func (s *explorerService) SearchLibrary(ctx context.Context, tenantID string, params models.LibrarySearchParams) ([]*models.LibraryDocument, error) {
	tenantCtx, cleanup, err := s.getTenant(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire tenant scope: %w", err)
	}
	defer cleanup()

	return s.repos.Library.Search(tenantCtx, params)
}

func (s *explorerService) ExecuteRead(ctx context.Context, query string, args []any) (*repositories.ReadResult, error) {
	validated := sqlguard.ValidateReadOnly(query)
	if validated.Error != nil {
		if errors.Is(validated.Error, sqlguard.ErrNotReadOnly) {
			return nil, fmt.Errorf("%w: %v", apperrors.ErrReadOnly, validated.Error)
		}
		return nil, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, validated.Error)
	}

	if findings := sqlguard.CheckPositionalParameters(args); len(findings) > 0 {
		f := findings[0]
		s.logger.Warn("Rejected read with suspicious bind value",
			zap.String("param", f.ParamName),
			zap.String("fingerprint", f.Fingerprint),
			zap.String("query", logging.SanitizeQuery(query)))
		return nil, fmt.Errorf("%w: bind value %s looks like SQL injection (fingerprint %s)",
			apperrors.ErrInvalidArgument, f.ParamName, f.Fingerprint)
	}

	sharedCtx, cleanup, err := s.getShared(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire shared scope: %w", err)
	}
	defer cleanup()

	s.logger.Debug("Executing read", zap.String("query", logging.SanitizeQuery(validated.NormalizedSQL)))
	return s.repos.Explorer.ExecuteRead(sharedCtx, validated.NormalizedSQL, args, s.maxRows)
}

// librarySearchParams maps a table query onto search parameters. Location
// filtering needs both coordinates; a lone coordinate means "no filter".
func librarySearchParams(q TableQuery) (models.LibrarySearchParams, error) {
	distance, err := models.ParseDistance(q.Distance)
	if err != nil {
		return models.LibrarySearchParams{}, err
	}
	return models.LibrarySearchParams{
		DocumentType: q.DocumentType,
		Query:        q.Query,
		Lat:          q.Lat,
		Lon:          q.Lon,
		Distance:     distance,
		Limit:        q.Limit,
	}, nil
}
