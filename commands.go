package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-continuum/pkg/config"
	"github.com/ekaya-inc/ekaya-continuum/pkg/database"
	"github.com/ekaya-inc/ekaya-continuum/pkg/handlers"
	"github.com/ekaya-inc/ekaya-continuum/pkg/logging"
	"github.com/ekaya-inc/ekaya-continuum/pkg/models"
	"github.com/ekaya-inc/ekaya-continuum/pkg/research"
	"github.com/ekaya-inc/ekaya-continuum/pkg/services"
)

// errReported marks a failure whose message was already written to stdout.
var errReported = errors.New("error already reported")

// rootOptions are the persistent flags shared by every command.
type rootOptions struct {
	configPath string
	dbPath     string
	tenant     string
	format     string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "ekaya-continuum",
		Short: "Continuum store for astral reference data and the semantic archive",
		Long: `ekaya-continuum manages a single-file SQLite store holding astral bodies,
observer sites, registered NASA kernel files, ephemeris samples, a geotagged
document library and the shared semantic archive tables.

Examples:
  ekaya-continuum init --db ./continuum.db
  ekaya-continuum register --type horizons ./data/earth.txt
  ekaya-continuum job create --source ./data/earth.txt --body-id earth
  ekaya-continuum job run 1
  ekaya-continuum query --table library_documents --lat 40.7 --lon -74 --distance_mi 10
  ekaya-continuum mcp`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch opts.format {
			case formatJSON, formatYAML:
				return nil
			default:
				return fmt.Errorf("invalid --format %q (expected %s or %s)", opts.format, formatJSON, formatYAML)
			}
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", config.DefaultPath, "Path to config file")
	flags.StringVar(&opts.dbPath, "db", "", "Database path (overrides config)")
	flags.StringVar(&opts.tenant, "tenant", "", "Tenant id (overrides config)")
	flags.StringVar(&opts.format, "format", formatJSON, "Output format (json, yaml)")

	root.AddCommand(
		newInitCmd(opts),
		newRegisterCmd(opts),
		newJobCmd(opts),
		newValidateCmd(opts),
		newQueryCmd(opts),
		newResearchCmd(opts),
		newETLCmd(opts),
		newMCPCmd(opts),
	)
	return root
}

// withApp opens the app for the duration of fn.
func (o *rootOptions) withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := o.openApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()
	return fn(ctx, a)
}

// ============================================================================
// init
// ============================================================================

func newInitCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the database and apply the schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			logger, err := logging.New(cfg.Env, cfg.LogLevel)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			if err := database.EnsureSchema(cmd.Context(), databaseConfig(cfg), logger); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Initialized continuum DB at %s\n", cfg.Database.Path)
			return nil
		},
	}
}

// ============================================================================
// register
// ============================================================================

func newRegisterCmd(opts *rootOptions) *cobra.Command {
	var (
		fileType      string
		sourceURL     string
		checksum      string
		validFrom     string
		validTo       string
		formatVersion string
	)

	cmd := &cobra.Command{
		Use:   "register <path>",
		Short: "Register a NASA file and compute its checksum",
		Long: `Register a local file in the NASA file registry. The checksum is computed
unless --checksum is given.

Valid types: spk, pck, lsk, fk, horizons`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app) error {
				file, err := a.files.RegisterFile(ctx, a.tenant(), services.RegisterFileRequest{
					FileType:      models.FileType(strings.ToLower(strings.TrimSpace(fileType))),
					LocalPath:     args[0],
					SourceURL:     optional(sourceURL),
					Checksum:      optional(checksum),
					ValidFrom:     optional(validFrom),
					ValidTo:       optional(validTo),
					FormatVersion: optional(formatVersion),
				})
				if err != nil {
					return err
				}
				return writeOutput(cmd.OutOrStdout(), opts.format, file)
			})
		},
	}

	cmd.Flags().StringVar(&fileType, "type", string(models.FileTypeHorizons), "File type")
	cmd.Flags().StringVar(&sourceURL, "source-url", "", "URL the file was downloaded from")
	cmd.Flags().StringVar(&checksum, "checksum", "", "Known SHA-256 checksum")
	cmd.Flags().StringVar(&validFrom, "valid-from", "", "Start of the file's coverage")
	cmd.Flags().StringVar(&validTo, "valid-to", "", "End of the file's coverage")
	cmd.Flags().StringVar(&formatVersion, "format-version", "", "Source format version")
	return cmd
}

// ============================================================================
// job
// ============================================================================

func newJobCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "job",
		Short: "Create, run and inspect ingestion jobs",
	}
	cmd.AddCommand(newJobCreateCmd(opts), newJobRunCmd(opts), newJobListCmd(opts))
	return cmd
}

func newJobCreateCmd(opts *rootOptions) *cobra.Command {
	var (
		jobType string
		source  string
		bodyID  string
		fileID  int64
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a pending ingestion job",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := models.IngestionPayload{
				Source: strings.TrimSpace(source),
				BodyID: strings.TrimSpace(bodyID),
			}
			if cmd.Flags().Changed("file-id") {
				payload.FileID = &fileID
			}
			return opts.withApp(cmd, func(ctx context.Context, a *app) error {
				job, err := a.ingestion.CreateJob(ctx, a.tenant(), services.CreateJobRequest{
					JobType: jobType,
					Source:  source,
					Payload: payload,
				})
				if err != nil {
					return err
				}
				return writeOutput(cmd.OutOrStdout(), opts.format, job)
			})
		},
	}

	cmd.Flags().StringVar(&jobType, "type", services.JobTypeHorizons, "Job type")
	cmd.Flags().StringVar(&source, "source", "", "Source file path")
	cmd.Flags().StringVar(&bodyID, "body-id", "", "Body the samples belong to")
	cmd.Flags().Int64Var(&fileID, "file-id", 0, "Registry entry the source came from")
	return cmd
}

func newJobRunCmd(opts *rootOptions) *cobra.Command {
	var bodyID string

	cmd := &cobra.Command{
		Use:   "run <job-id>",
		Short: "Run an ingestion job",
		Long: `Run a pending or failed ingestion job. The outcome is reported in the
result; a failed or rejected run exits non-zero.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobID, err := parseID(args[0])
			if err != nil {
				return err
			}
			return opts.withApp(cmd, func(ctx context.Context, a *app) error {
				result, err := a.ingestion.RunIngestionJob(ctx, a.tenant(), jobID, bodyID)
				if err != nil {
					return err
				}
				if err := writeOutput(cmd.OutOrStdout(), opts.format, result); err != nil {
					return err
				}
				if err := result.Err(); err != nil {
					return fmt.Errorf("%w: %w", errReported, err)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&bodyID, "body-id", "", "Body id when the payload names none")
	return cmd
}

func newJobListCmd(opts *rootOptions) *cobra.Command {
	var (
		status  string
		jobType string
		limit   int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List ingestion jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app) error {
				jobs, err := a.explorer.ListTable(ctx, a.tenant(), services.TableQuery{
					Table:   "ingestion_jobs",
					Status:  status,
					JobType: jobType,
					Limit:   limit,
				})
				if err != nil {
					return err
				}
				return writeOutput(cmd.OutOrStdout(), opts.format, jobs)
			})
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "Filter by status")
	cmd.Flags().StringVar(&jobType, "type", "", "Filter by job type")
	cmd.Flags().IntVar(&limit, "limit", 100, "Maximum rows")
	return cmd
}

// ============================================================================
// validate
// ============================================================================

func newValidateCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Verify registered files",
	}

	checksumCmd := &cobra.Command{
		Use:   "checksum <file-id>",
		Short: "Recompute a registered file's checksum and compare it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fileID, err := parseID(args[0])
			if err != nil {
				return err
			}
			return opts.withApp(cmd, func(ctx context.Context, a *app) error {
				ok, err := a.files.ValidateChecksum(ctx, a.tenant(), fileID)
				if err != nil {
					return err
				}
				out := map[string]any{"file_id": fileID, "valid": ok}
				if err := writeOutput(cmd.OutOrStdout(), opts.format, out); err != nil {
					return err
				}
				if !ok {
					return errReported
				}
				return nil
			})
		},
	}

	coverageCmd := &cobra.Command{
		Use:   "coverage <file-id>",
		Short: "Report the temporal coverage of a registered file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fileID, err := parseID(args[0])
			if err != nil {
				return err
			}
			return opts.withApp(cmd, func(ctx context.Context, a *app) error {
				report, err := a.files.ValidateCoverage(ctx, a.tenant(), fileID)
				if err != nil {
					return err
				}
				if err := writeOutput(cmd.OutOrStdout(), opts.format, report); err != nil {
					return err
				}
				if !report.Valid {
					return errReported
				}
				return nil
			})
		},
	}

	cmd.AddCommand(checksumCmd, coverageCmd)
	return cmd
}

// ============================================================================
// query
// ============================================================================

type queryOptions struct {
	table        string
	sql          string
	sqlFile      string
	limit        int
	lat          float64
	lon          float64
	distance     string
	documentType string
	text         string
}

func newQueryCmd(opts *rootOptions) *cobra.Command {
	q := &queryOptions{}

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Read a table or run a read-only SQL statement",
		Long: `Print rows as JSON for the explorer.

Tables: astral_body_catalog, astral_observer_sites, nasa_file_registry,
ephemeris_samples, occlusion_events, ingestion_jobs, library_documents,
spatial_4d, document_blobs, semantic_chunks, unique_kernels,
compression_runs, research_suggestions, continuum_meta

Examples:
  ekaya-continuum query --table spatial_4d
  ekaya-continuum query --table library_documents --lat 40.7 --lon -74 --distance_mi 10
  ekaya-continuum query --sql-file /tmp/query.sql`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, opts, q)
		},
	}

	f := cmd.Flags()
	f.StringVar(&q.table, "table", "", "Table name")
	f.StringVar(&q.sql, "sql", "", "Raw SELECT (read-only)")
	f.StringVar(&q.sqlFile, "sql-file", "", "Path to file containing a SELECT query")
	f.IntVar(&q.limit, "limit", 100, "Maximum rows")
	f.Float64Var(&q.lat, "lat", 0, "Latitude for library_documents search")
	f.Float64Var(&q.lon, "lon", 0, "Longitude for library_documents search")
	f.StringVar(&q.distance, "distance_mi", "", "Miles for location filter: 0=same bucket, number, or 'infinite'")
	f.StringVar(&q.documentType, "document_type", "", "Filter library_documents by type")
	f.StringVarP(&q.text, "query", "q", "", "Text search in library_documents (type_metadata, url)")
	return cmd
}

func runQuery(cmd *cobra.Command, opts *rootOptions, q *queryOptions) error {
	out := cmd.OutOrStdout()

	statement := q.sql
	if q.sqlFile != "" {
		data, err := os.ReadFile(q.sqlFile)
		if err != nil {
			return fmt.Errorf("failed to read sql file: %w", err)
		}
		statement = strings.TrimSpace(string(data))
	}

	if statement == "" && q.table == "" {
		return reportError(out, opts.format, "Provide --table, --sql, or --sql-file")
	}

	return opts.withApp(cmd, func(ctx context.Context, a *app) error {
		if statement != "" {
			res, err := a.explorer.ExecuteRead(ctx, statement, nil)
			if err != nil {
				return err
			}
			if res.Truncated {
				a.logger.Warn("Result truncated", zap.Int("max_rows", a.cfg.Explorer.MaxRows))
			}
			return writeOutput(out, opts.format, res.Rows)
		}

		table := strings.ToLower(strings.TrimSpace(q.table))
		if !containsTable(a.explorer.Tables(), table) {
			return reportError(out, opts.format, "Unknown table: "+q.table)
		}

		tq := services.TableQuery{
			Table:        table,
			Limit:        q.limit,
			DocumentType: q.documentType,
			Query:        q.text,
			Distance:     q.distance,
		}
		if cmd.Flags().Changed("lat") {
			tq.Lat = &q.lat
		}
		if cmd.Flags().Changed("lon") {
			tq.Lon = &q.lon
		}
		rows, err := a.explorer.ListTable(ctx, a.tenant(), tq)
		if err != nil {
			return err
		}
		return writeOutput(out, opts.format, rows)
	})
}

func containsTable(tables []string, name string) bool {
	for _, t := range tables {
		if t == name {
			return true
		}
	}
	return false
}

// ============================================================================
// research
// ============================================================================

func newResearchCmd(opts *rootOptions) *cobra.Command {
	var (
		output string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "research",
		Short: "Write the improvement context for flagged kernels",
		Long: `Collect kernels flagged for research, their chunks and recent compression
runs into a JSON file for manual review. The file defaults to
research_context.json next to the database.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app) error {
				path := output
				if path == "" {
					path = research.DefaultContextPath(a.cfg.Database.Path)
				}
				result, err := a.research.WriteImprovementContext(ctx, path, limit)
				if err != nil {
					return err
				}
				return writeOutput(cmd.OutOrStdout(), opts.format, result)
			})
		},
	}

	cmd.Flags().StringVar(&output, "output", "", "Output JSON path")
	cmd.Flags().IntVar(&limit, "limit", research.DefaultContextLimit, "Maximum flagged kernels")
	return cmd
}

// ============================================================================
// etl
// ============================================================================

func newETLCmd(opts *rootOptions) *cobra.Command {
	var source string

	cmd := &cobra.Command{
		Use:   "etl",
		Short: "Load a source directory listing into the archive",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app) error {
				result, err := a.etl.Run(ctx, source)
				if err != nil {
					return err
				}
				return writeOutput(cmd.OutOrStdout(), opts.format, result)
			})
		},
	}

	cmd.Flags().StringVar(&source, "source", "./input/", "Source directory")
	return cmd
}

// ============================================================================
// mcp
// ============================================================================

func newMCPCmd(opts *rootOptions) *cobra.Command {
	var httpAddr string

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the read tools over MCP",
		Long: `Serve MCP over stdio, or over streamable HTTP when an address is
configured (mcp.http_addr or --http). The HTTP listener also answers
GET /health and GET /ping.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := opts.openApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			addr := httpAddr
			if addr == "" {
				addr = a.cfg.MCP.HTTPAddr
			}

			s := a.newMCPServer()
			if addr != "" {
				return s.ServeHTTP(ctx, addr, handlers.NewHealthHandler(a.cfg, a.db, a.logger.Named("http")))
			}
			return s.ServeStdio()
		},
	}

	cmd.Flags().StringVar(&httpAddr, "http", "", "Listen address for the HTTP transport")
	return cmd
}

// ============================================================================
// helpers
// ============================================================================

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
