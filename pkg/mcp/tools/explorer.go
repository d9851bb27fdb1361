// Package tools provides the MCP tools that expose the continuum store.
package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-continuum/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-continuum/pkg/logging"
	"github.com/ekaya-inc/ekaya-continuum/pkg/models"
	"github.com/ekaya-inc/ekaya-continuum/pkg/services"
)

const (
	defaultToolLimit = 100
	maxToolLimit     = 1000
)

// ToolDeps contains dependencies for the continuum MCP tools.
type ToolDeps struct {
	Explorer      services.ExplorerService
	Ingestion     services.IngestionService
	DefaultTenant string
	Logger        *zap.Logger
}

// tenant returns the request's tenant argument or the configured default.
func (d *ToolDeps) tenant(req mcp.CallToolRequest) string {
	if t := getOptionalString(req, "tenant"); t != "" {
		return t
	}
	return d.DefaultTenant
}

// handleToolError turns application errors into tool results and logs
// server failures. A nil result means err must be returned as-is.
func (d *ToolDeps) handleToolError(toolName string, err error) *mcp.CallToolResult {
	result := NewAppErrorResult(err)
	if IsInputError(err) || result != nil {
		d.Logger.Debug("Tool input error",
			zap.String("tool", toolName),
			zap.String("error", logging.SanitizeError(err)))
	} else {
		d.Logger.Error("Tool failed",
			zap.String("tool", toolName),
			zap.String("error", logging.SanitizeError(err)))
	}
	return result
}

func withTenantParam() mcp.ToolOption {
	return mcp.WithString(
		"tenant",
		mcp.Description("Optional - Tenant to read from (default: the server's configured tenant)"),
	)
}

// RegisterContinuumTools registers the read tools over the continuum store.
func RegisterContinuumTools(s *server.MCPServer, deps *ToolDeps) {
	registerListTableTool(s, deps)
	registerSearchLibraryDocumentsTool(s, deps)
	registerExecuteReadTool(s, deps)
	registerIngestionJobStatusTool(s, deps)
}

// registerListTableTool adds list_table, which dumps one named table with optional filters.
func registerListTableTool(s *server.MCPServer, deps *ToolDeps) {
	tool := mcp.NewTool(
		"list_table",
		mcp.WithDescription(
			"List rows from one continuum table. "+
				"Tables: "+strings.Join(deps.Explorer.Tables(), ", ")+". "+
				"Filters apply only to the tables they name; ephemeris_samples requires body_id and epoch_utc "+
				"and returns the samples nearest that epoch.",
		),
		mcp.WithString("table", mcp.Required(), mcp.Description("Table name (e.g., 'ingestion_jobs', 'library_documents')")),
		mcp.WithNumber("limit", mcp.Description("Max rows to return (default: 100, max: 1000)")),
		mcp.WithString("kind", mcp.Description("Optional - astral_body_catalog: body kind (e.g., 'planet')")),
		mcp.WithString("body_id", mcp.Description("Optional - astral_observer_sites, ephemeris_samples: body id")),
		mcp.WithString("epoch_utc", mcp.Description("Optional - ephemeris_samples, occlusion_events: epoch as YYYY-MM-DDTHH:MM:SS")),
		mcp.WithString("target_body_id", mcp.Description("Optional - occlusion_events: target body id")),
		mcp.WithString("file_type", mcp.Description("Optional - nasa_file_registry: spk, pck, lsk, fk or horizons")),
		mcp.WithString("status", mcp.Description("Optional - ingestion_jobs, unique_kernels, research_suggestions: status filter")),
		mcp.WithString("job_type", mcp.Description("Optional - ingestion_jobs: job type")),
		mcp.WithString("media_type", mcp.Description("Optional - semantic_chunks: media type")),
		mcp.WithString("document_type", mcp.Description("Optional - library_documents: document type")),
		mcp.WithString("q", mcp.Description("Optional - library_documents: case-sensitive text in type metadata or url")),
		mcp.WithNumber("lat", mcp.Description("Optional - library_documents: probe latitude")),
		mcp.WithNumber("lon", mcp.Description("Optional - library_documents: probe longitude")),
		mcp.WithString("distance_mi", mcp.Description("Optional - library_documents: radius in miles, 0 for the probe's cell, or 'infinite'")),
		withTenantParam(),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		table, err := req.RequireString("table")
		if err != nil {
			return nil, err
		}
		table = trimString(table)
		if table == "" {
			return NewErrorResult("invalid_parameters", "parameter 'table' cannot be empty"), nil
		}

		limit := clampLimit(req, defaultToolLimit, maxToolLimit)
		rows, err := deps.Explorer.ListTable(ctx, deps.tenant(req), services.TableQuery{
			Table:        table,
			Limit:        limit,
			DocumentType: getOptionalString(req, "document_type"),
			Query:        getOptionalString(req, "q"),
			Lat:          getOptionalFloatPtr(req, "lat"),
			Lon:          getOptionalFloatPtr(req, "lon"),
			Distance:     getDistanceArg(req),
			Kind:         getOptionalString(req, "kind"),
			BodyID:       getOptionalString(req, "body_id"),
			EpochUTC:     getOptionalString(req, "epoch_utc"),
			TargetBodyID: getOptionalString(req, "target_body_id"),
			FileType:     getOptionalString(req, "file_type"),
			Status:       getOptionalString(req, "status"),
			JobType:      getOptionalString(req, "job_type"),
			MediaType:    getOptionalString(req, "media_type"),
		})
		if err != nil {
			if errors.Is(err, apperrors.ErrInvalidArgument) && strings.Contains(err.Error(), "unknown table") {
				return NewErrorResultWithDetails("unknown_table", fmt.Sprintf("unknown table: %s", table),
					map[string]any{"tables": deps.Explorer.Tables()}), nil
			}
			if result := deps.handleToolError("list_table", err); result != nil {
				return result, nil
			}
			return nil, fmt.Errorf("failed to list table: %w", err)
		}

		return jsonResult(struct {
			Table string `json:"table"`
			Rows  any    `json:"rows"`
		}{Table: strings.ToLower(table), Rows: rows})
	})
}

// registerSearchLibraryDocumentsTool adds search_library_documents.
func registerSearchLibraryDocumentsTool(s *server.MCPServer, deps *ToolDeps) {
	tool := mcp.NewTool(
		"search_library_documents",
		mcp.WithDescription(
			"Search library documents by type, text and location. "+
				"With lat, lon and a numeric distance_mi only documents with coordinates within that many miles are returned; "+
				"distance_mi=0 returns documents in the probe's geohash cell. "+
				"Omitting distance_mi (or 'infinite') disables the location filter.",
		),
		mcp.WithString("document_type", mcp.Description("Optional - Document type (e.g., 'photo', 'paper')")),
		mcp.WithString("q", mcp.Description("Optional - Case-sensitive text matched against type metadata and url")),
		mcp.WithNumber("lat", mcp.Description("Optional - Probe latitude in degrees")),
		mcp.WithNumber("lon", mcp.Description("Optional - Probe longitude in degrees")),
		mcp.WithString("distance_mi", mcp.Description("Optional - Radius in miles, 0, or 'infinite'")),
		mcp.WithNumber("limit", mcp.Description("Max documents to return (default: 100, max: 1000)")),
		withTenantParam(),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		distance, err := models.ParseDistance(getDistanceArg(req))
		if err != nil {
			return NewErrorResult("invalid_parameters", err.Error()), nil
		}

		docs, err := deps.Explorer.SearchLibrary(ctx, deps.tenant(req), models.LibrarySearchParams{
			DocumentType: getOptionalString(req, "document_type"),
			Query:        getOptionalString(req, "q"),
			Lat:          getOptionalFloatPtr(req, "lat"),
			Lon:          getOptionalFloatPtr(req, "lon"),
			Distance:     distance,
			Limit:        clampLimit(req, defaultToolLimit, maxToolLimit),
		})
		if err != nil {
			if result := deps.handleToolError("search_library_documents", err); result != nil {
				return result, nil
			}
			return nil, fmt.Errorf("failed to search library documents: %w", err)
		}

		return jsonResult(struct {
			Documents []*models.LibraryDocument `json:"documents"`
			Count     int                       `json:"count"`
		}{Documents: docs, Count: len(docs)})
	})
}

// registerExecuteReadTool adds execute_read for ad hoc read-only SQL.
func registerExecuteReadTool(s *server.MCPServer, deps *ToolDeps) {
	tool := mcp.NewTool(
		"execute_read",
		mcp.WithDescription(
			"Execute one read-only SQL statement (SELECT, WITH, VALUES or EXPLAIN) against the continuum store. "+
				"Use ? placeholders with the params array for values. Writes and stacked statements are rejected. "+
				"Statements are not tenant filtered: they read rows of every tenant, so filter on tenant_id where needed.",
		),
		mcp.WithString("sql", mcp.Required(), mcp.Description("SQL statement to execute")),
		mcp.WithArray("params", mcp.Description("Optional - Positional values for ? placeholders")),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sql, err := req.RequireString("sql")
		if err != nil {
			return nil, err
		}
		if trimString(sql) == "" {
			return NewErrorResult("invalid_parameters", "parameter 'sql' cannot be empty"), nil
		}

		result, err := deps.Explorer.ExecuteRead(ctx, sql, getOptionalArray(req, "params"))
		if err != nil {
			if errResult := deps.handleToolError("execute_read", err); errResult != nil {
				return errResult, nil
			}
			return nil, fmt.Errorf("read execution failed: %w", err)
		}

		return jsonResult(struct {
			Columns   []string         `json:"columns"`
			Rows      []map[string]any `json:"rows"`
			RowCount  int              `json:"row_count"`
			Truncated bool             `json:"truncated"`
		}{
			Columns:   result.Columns,
			Rows:      result.Rows,
			RowCount:  len(result.Rows),
			Truncated: result.Truncated,
		})
	})
}
