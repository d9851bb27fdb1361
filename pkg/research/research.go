// Package research collects chunks that resisted compression and packages
// them, with recent compression runs, into a context document for manual
// review of the compressors.
package research

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-continuum/pkg/models"
	"github.com/ekaya-inc/ekaya-continuum/pkg/repositories"
	"github.com/ekaya-inc/ekaya-continuum/pkg/retry"
	"github.com/ekaya-inc/ekaya-continuum/pkg/services"
)

const (
	// DefaultContextLimit bounds the flagged kernels included in a context.
	DefaultContextLimit = 20
	// RecentRunsLimit bounds the compression runs included in a context.
	RecentRunsLimit = 10
	// DefaultPendingLimit bounds GetPendingKernels.
	DefaultPendingLimit = 100
	// ContextFileName is written next to the database when no path is given.
	ContextFileName = "research_context.json"

	// DefaultResidual is recorded for chunks added without a measured residual.
	DefaultResidual = 1.0

	statusPending = "pending"
)

// KernelChunk pairs a flagged kernel with the chunk it was recorded for.
type KernelChunk struct {
	Kernel *models.UniqueKernel  `json:"kernel"`
	Chunk  *models.SemanticChunk `json:"chunk"`
}

// ImprovementContext is the document handed to reviewers.
type ImprovementContext struct {
	UniqueKernels     []*models.UniqueKernel   `json:"unique_kernels"`
	ChunksWithKernels []KernelChunk            `json:"chunks_with_kernels"`
	RecentRuns        []*models.CompressionRun `json:"recent_runs"`
}

// WriteResult reports where a context was written.
type WriteResult struct {
	ContextPath string `json:"context_path"`
	KernelCount int    `json:"kernel_count"`
}

// Service records incompressible chunks and builds review contexts.
// All tables it touches are shared across tenants.
type Service interface {
	// AddUniqueChunk records a chunk that resisted compression as pending.
	AddUniqueChunk(ctx context.Context, chunkID int64, sourceCompressor string, residual float64) (int64, error)
	// RecordKernel records a chunk that stayed incompressible after repeated
	// attempts, flagged for research.
	RecordKernel(ctx context.Context, chunkID int64, sourceCompressor string, residual float64) (int64, error)
	// MarkKernel changes a kernel's status and counts the attempt.
	MarkKernel(ctx context.Context, kernelID int64, status string, residual *float64) error
	GetPendingKernels(ctx context.Context, limit int) ([]*models.UniqueKernel, error)

	BuildImprovementContext(ctx context.Context, limit int) (*ImprovementContext, error)
	// WriteImprovementContext builds a context and writes it as indented JSON
	// to outPath, creating parent directories.
	WriteImprovementContext(ctx context.Context, outPath string, limit int) (*WriteResult, error)

	// PersistSuggestion stores a reviewer recommendation as pending.
	PersistSuggestion(ctx context.Context, source, recommendation string, contextJSON *string) (int64, error)
}

type service struct {
	archive     repositories.ArchiveRepository
	getShared   services.SharedContextFunc
	retryConfig *retry.Config
	logger      *zap.Logger
}

// NewService creates a new research Service.
func NewService(archive repositories.ArchiveRepository, getShared services.SharedContextFunc, logger *zap.Logger) Service {
	return &service{
		archive:     archive,
		getShared:   getShared,
		retryConfig: retry.DefaultConfig(),
		logger:      logger.Named("research"),
	}
}

var _ Service = (*service)(nil)

// DefaultContextPath returns the context file path next to dbPath.
func DefaultContextPath(dbPath string) string {
	return filepath.Join(filepath.Dir(dbPath), ContextFileName)
}

func (s *service) AddUniqueChunk(ctx context.Context, chunkID int64, sourceCompressor string, residual float64) (int64, error) {
	return s.insertKernel(ctx, &models.UniqueKernel{
		ChunkID:          chunkID,
		SourceCompressor: sourceCompressor,
		ResidualMetric:   &residual,
		Status:           statusPending,
	})
}

func (s *service) RecordKernel(ctx context.Context, chunkID int64, sourceCompressor string, residual float64) (int64, error) {
	return s.insertKernel(ctx, &models.UniqueKernel{
		ChunkID:          chunkID,
		SourceCompressor: sourceCompressor,
		ResidualMetric:   &residual,
		Status:           models.KernelStatusFlaggedResearch,
	})
}

func (s *service) insertKernel(ctx context.Context, kernel *models.UniqueKernel) (int64, error) {
	sharedCtx, cleanup, err := s.getShared(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to acquire shared scope: %w", err)
	}
	defer cleanup()

	var id int64
	err = retry.DoIfRetryable(sharedCtx, s.retryConfig, func() error {
		var err error
		id, err = s.archive.CreateUniqueKernel(sharedCtx, kernel)
		return err
	})
	if err != nil {
		return 0, err
	}

	s.logger.Debug("Recorded unique kernel",
		zap.Int64("kernel_id", id),
		zap.Int64("chunk_id", kernel.ChunkID),
		zap.String("status", kernel.Status))
	return id, nil
}

func (s *service) MarkKernel(ctx context.Context, kernelID int64, status string, residual *float64) error {
	sharedCtx, cleanup, err := s.getShared(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire shared scope: %w", err)
	}
	defer cleanup()

	return s.archive.UpdateKernelStatus(sharedCtx, kernelID, status, residual)
}

func (s *service) GetPendingKernels(ctx context.Context, limit int) ([]*models.UniqueKernel, error) {
	if limit <= 0 {
		limit = DefaultPendingLimit
	}

	sharedCtx, cleanup, err := s.getShared(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire shared scope: %w", err)
	}
	defer cleanup()

	return s.archive.ListUniqueKernels(sharedCtx, statusPending, limit)
}

func (s *service) BuildImprovementContext(ctx context.Context, limit int) (*ImprovementContext, error) {
	if limit <= 0 {
		limit = DefaultContextLimit
	}

	sharedCtx, cleanup, err := s.getShared(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire shared scope: %w", err)
	}
	defer cleanup()

	kernels, err := s.archive.ListUniqueKernels(sharedCtx, models.KernelStatusFlaggedResearch, limit)
	if err != nil {
		return nil, err
	}

	// Kernels whose chunk has since been removed are listed without a pair.
	chunks := make([]KernelChunk, 0, len(kernels))
	for _, k := range kernels {
		if k.ChunkID == 0 {
			continue
		}
		chunk, err := s.archive.GetSemanticChunk(sharedCtx, k.ChunkID)
		if err != nil {
			return nil, err
		}
		if chunk != nil {
			chunks = append(chunks, KernelChunk{Kernel: k, Chunk: chunk})
		}
	}

	runs, err := s.archive.ListCompressionRuns(sharedCtx, RecentRunsLimit)
	if err != nil {
		return nil, err
	}

	return &ImprovementContext{
		UniqueKernels:     kernels,
		ChunksWithKernels: chunks,
		RecentRuns:        runs,
	}, nil
}

func (s *service) WriteImprovementContext(ctx context.Context, outPath string, limit int) (*WriteResult, error) {
	ic, err := s.BuildImprovementContext(ctx, limit)
	if err != nil {
		return nil, err
	}

	data, err := json.MarshalIndent(ic, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode research context: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", filepath.Dir(outPath), err)
	}
	if err := os.WriteFile(outPath, append(data, '\n'), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write research context: %w", err)
	}

	s.logger.Info("Research context written",
		zap.String("path", outPath),
		zap.Int("kernel_count", len(ic.UniqueKernels)),
		zap.Int("chunk_count", len(ic.ChunksWithKernels)))

	return &WriteResult{ContextPath: outPath, KernelCount: len(ic.UniqueKernels)}, nil
}

func (s *service) PersistSuggestion(ctx context.Context, source, recommendation string, contextJSON *string) (int64, error) {
	sharedCtx, cleanup, err := s.getShared(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to acquire shared scope: %w", err)
	}
	defer cleanup()

	return s.archive.CreateResearchSuggestion(sharedCtx, &models.ResearchSuggestion{
		Source:             source,
		ContextJSON:        contextJSON,
		RecommendationText: recommendation,
		Status:             statusPending,
	})
}
