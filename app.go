package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-continuum/pkg/config"
	"github.com/ekaya-inc/ekaya-continuum/pkg/database"
	"github.com/ekaya-inc/ekaya-continuum/pkg/etl"
	"github.com/ekaya-inc/ekaya-continuum/pkg/logging"
	"github.com/ekaya-inc/ekaya-continuum/pkg/mcp"
	"github.com/ekaya-inc/ekaya-continuum/pkg/mcp/tools"
	"github.com/ekaya-inc/ekaya-continuum/pkg/repositories"
	"github.com/ekaya-inc/ekaya-continuum/pkg/research"
	"github.com/ekaya-inc/ekaya-continuum/pkg/services"
)

// app holds the wired services for one command invocation.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	db     *database.DB

	files     services.FileRegistryService
	ingestion services.IngestionService
	explorer  services.ExplorerService
	research  research.Service
	etl       *etl.Pipeline
}

// loadConfig reads the config file and applies command-line overrides.
func (o *rootOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.configPath, Version)
	if err != nil {
		return nil, err
	}
	if o.dbPath != "" {
		cfg.Database.Path = o.dbPath
	}
	if o.tenant != "" {
		cfg.Tenant.Default = o.tenant
	}
	return cfg, nil
}

func databaseConfig(cfg *config.Config) *database.Config {
	return &database.Config{
		Path:         cfg.Database.Path,
		BusyTimeout:  time.Duration(cfg.Database.BusyTimeoutMS) * time.Millisecond,
		MaxOpenConns: cfg.Database.MaxOpenConns,
	}
}

// openApp loads configuration, opens the migrated database and wires services.
// The caller must call close.
func (o *rootOptions) openApp(ctx context.Context) (*app, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	db, err := database.OpenScoped(ctx, databaseConfig(cfg), logger)
	if err != nil {
		_ = logger.Sync()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	getTenant := services.NewTenantContextFunc(db)
	getShared := services.NewSharedContextFunc(db)

	repos := services.NewExplorerRepositories()
	archiveRepo := repositories.NewArchiveRepository()

	a := &app{
		cfg:    cfg,
		logger: logger,
		db:     db,
		files: services.NewFileRegistryService(
			repos.Files, getTenant, cfg.Ingestion.ChecksumBlockSize, logger),
		ingestion: services.NewIngestionService(
			repos.Jobs, repos.Files, repos.Ephemeris, getTenant,
			services.IngestionConfig{
				DefaultBodyID: cfg.Ingestion.DefaultBodyID,
				FrameID:       cfg.Ingestion.FrameID,
			},
			logger),
		explorer: services.NewExplorerService(repos, getTenant, getShared, cfg.Explorer.MaxRows, logger),
		research: research.NewService(archiveRepo, getShared, logger),
		etl:      etl.NewPipeline(archiveRepo, repositories.NewMetaRepository(), getShared, logger),
	}
	return a, nil
}

// tenant is the tenant commands act on when none is given per call.
func (a *app) tenant() string {
	return a.cfg.Tenant.Default
}

// newMCPServer builds an MCP server exposing the health and continuum tools.
func (a *app) newMCPServer() *mcp.Server {
	s := mcp.NewServer("ekaya-continuum", Version, a.logger)
	tools.RegisterHealthTool(s.MCP(), Version, a.db)
	tools.RegisterContinuumTools(s.MCP(), &tools.ToolDeps{
		Explorer:      a.explorer,
		Ingestion:     a.ingestion,
		DefaultTenant: a.tenant(),
		Logger:        a.logger.Named("mcp-tools"),
	})
	return s
}

func (a *app) close() {
	if err := a.db.Close(); err != nil {
		a.logger.Warn("Failed to close database", zap.Error(err))
	}
	_ = a.logger.Sync()
}
