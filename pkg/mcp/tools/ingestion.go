package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/ekaya-inc/ekaya-continuum/pkg/models"
	"github.com/ekaya-inc/ekaya-continuum/pkg/repositories"
)

// jobStatusResponse is one job plus whether a run may still start it.
type jobStatusResponse struct {
	*models.IngestionJob
	Startable bool `json:"startable"`
	Terminal  bool `json:"terminal"`
}

// registerIngestionJobStatusTool adds ingestion_job_status. With job_id it
// returns that job; without it lists recent jobs.
func registerIngestionJobStatusTool(s *server.MCPServer, deps *ToolDeps) {
	tool := mcp.NewTool(
		"ingestion_job_status",
		mcp.WithDescription(
			"Report ingestion job state. Pass job_id for one job, or omit it to list recent jobs "+
				"(optionally filtered by status: pending, running, completed, failed). "+
				"A single job also reports whether a run may start it (startable) and whether it is finished for good (terminal).",
		),
		mcp.WithNumber("job_id", mcp.Description("Optional - Job id")),
		mcp.WithString("status", mcp.Description("Optional - Status filter when listing")),
		mcp.WithNumber("limit", mcp.Description("Max jobs to list (default: 100, max: 1000)")),
		withTenantParam(),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		tenantID := deps.tenant(req)

		if jobID, ok := getOptionalInt(req, "job_id"); ok {
			job, err := deps.Ingestion.GetJob(ctx, tenantID, jobID)
			if err != nil {
				return nil, fmt.Errorf("failed to get ingestion job: %w", err)
			}
			if job == nil {
				return NewErrorResult("not_found", fmt.Sprintf("ingestion job %d not found", jobID)), nil
			}
			return jsonResult(jobStatusResponse{
				IngestionJob: job,
				Startable:    job.Status.IsStartable(),
				Terminal:     job.Status.IsTerminal(),
			})
		}

		status := models.JobStatus(getOptionalString(req, "status"))
		if status != "" && !models.IsValidJobStatus(status) {
			return NewErrorResultWithDetails("invalid_parameters", fmt.Sprintf("invalid status %q", status),
				map[string]any{"valid_statuses": models.ValidJobStatuses}), nil
		}

		jobs, err := deps.Ingestion.ListJobs(ctx, tenantID, repositories.IngestionJobFilter{
			Status: status,
			Limit:  clampLimit(req, defaultToolLimit, maxToolLimit),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list ingestion jobs: %w", err)
		}

		return jsonResult(struct {
			Jobs  []*models.IngestionJob `json:"jobs"`
			Count int                    `json:"count"`
		}{Jobs: jobs, Count: len(jobs)})
	})
}
