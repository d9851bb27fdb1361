package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-continuum/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-continuum/pkg/horizons"
	"github.com/ekaya-inc/ekaya-continuum/pkg/logging"
	"github.com/ekaya-inc/ekaya-continuum/pkg/models"
	"github.com/ekaya-inc/ekaya-continuum/pkg/repositories"
)

// DefaultChecksumBlockSize is the read size used when streaming files through SHA-256.
const DefaultChecksumBlockSize = 64 * 1024

// RegisterFileRequest describes a file to add to the registry.
// When Checksum is nil the SHA-256 of the file contents is stored.
type RegisterFileRequest struct {
	FileType      models.FileType
	LocalPath     string
	SourceURL     *string
	Checksum      *string
	ValidFrom     *string
	ValidTo       *string
	FormatVersion *string
}

// FileRegistryService registers externally sourced files and verifies them.
type FileRegistryService interface {
	// RegisterFile stores a registry entry. Returns ErrNotFound when LocalPath
	// is not a regular file and ErrInvalidArgument for an unknown file type.
	RegisterFile(ctx context.Context, tenantID string, req RegisterFileRequest) (*models.NasaFile, error)

	// ValidateChecksum recomputes the file's checksum and compares it with the
	// stored value. A missing registry entry or file yields false, not an error.
	ValidateChecksum(ctx context.Context, tenantID string, fileID int64) (bool, error)

	// ValidateCoverage reports the temporal range of a registered file.
	// Parse failures are reported in the result rather than returned.
	ValidateCoverage(ctx context.Context, tenantID string, fileID int64) (*models.CoverageReport, error)

	GetFile(ctx context.Context, tenantID string, fileID int64) (*models.NasaFile, error)
	ListFiles(ctx context.Context, tenantID string, fileType models.FileType, limit int) ([]*models.NasaFile, error)
}

type fileRegistryService struct {
	fileRepo  repositories.NasaFileRepository
	getTenant TenantContextFunc
	blockSize int
	logger    *zap.Logger
}

// NewFileRegistryService creates a new FileRegistryService.
// A non-positive blockSize selects DefaultChecksumBlockSize.
func NewFileRegistryService(
	fileRepo repositories.NasaFileRepository,
	getTenant TenantContextFunc,
	blockSize int,
	logger *zap.Logger,
) FileRegistryService {
	if blockSize <= 0 {
		blockSize = DefaultChecksumBlockSize
	}
	return &fileRegistryService{
		fileRepo:  fileRepo,
		getTenant: getTenant,
		blockSize: blockSize,
		logger:    logger.Named("file-registry"),
	}
}

var _ FileRegistryService = (*fileRegistryService)(nil)

func (s *fileRegistryService) RegisterFile(ctx context.Context, tenantID string, req RegisterFileRequest) (*models.NasaFile, error) {
	if !isRegularFile(req.LocalPath) {
		return nil, fmt.Errorf("%w: file not found: %s", apperrors.ErrNotFound, req.LocalPath)
	}
	if !models.IsValidFileType(req.FileType) {
		return nil, fmt.Errorf("%w: invalid file_type: %s", apperrors.ErrInvalidArgument, req.FileType)
	}

	resolved, err := ResolvePath(req.LocalPath)
	if err != nil {
		return nil, err
	}

	checksum := req.Checksum
	if checksum == nil {
		sum, err := FileChecksum(resolved, s.blockSize)
		if err != nil {
			return nil, err
		}
		checksum = &sum
	}

	tenantCtx, cleanup, err := s.getTenant(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire tenant scope: %w", err)
	}
	defer cleanup()

	file := &models.NasaFile{
		FileType:      req.FileType,
		SourceURL:     req.SourceURL,
		LocalPath:     resolved,
		Checksum:      checksum,
		ValidFrom:     req.ValidFrom,
		ValidTo:       req.ValidTo,
		FormatVersion: req.FormatVersion,
	}
	if _, err := s.fileRepo.Create(tenantCtx, file); err != nil {
		return nil, err
	}

	fields := []zap.Field{
		zap.Int64("file_id", file.ID),
		zap.String("tenant_id", file.TenantID),
		zap.String("file_type", string(file.FileType)),
		zap.String("local_path", file.LocalPath),
	}
	if req.SourceURL != nil {
		fields = append(fields, zap.String("source_url", logging.SanitizeURL(*req.SourceURL)))
	}
	s.logger.Info("Registered file", fields...)

	return file, nil
}

func (s *fileRegistryService) ValidateChecksum(ctx context.Context, tenantID string, fileID int64) (bool, error) {
	file, err := s.GetFile(ctx, tenantID, fileID)
	if err != nil {
		return false, err
	}
	if file == nil || file.LocalPath == "" || !isRegularFile(file.LocalPath) {
		return false, nil
	}

	computed, err := FileChecksum(file.LocalPath, s.blockSize)
	if err != nil {
		return false, err
	}

	stored := ""
	if file.Checksum != nil {
		stored = *file.Checksum
	}
	match := stored == computed
	if !match {
		s.logger.Warn("Checksum mismatch",
			zap.Int64("file_id", fileID),
			zap.String("local_path", file.LocalPath),
			zap.Error(apperrors.ErrIntegrityFailure))
	}
	return match, nil
}

func (s *fileRegistryService) ValidateCoverage(ctx context.Context, tenantID string, fileID int64) (*models.CoverageReport, error) {
	file, err := s.GetFile(ctx, tenantID, fileID)
	if err != nil {
		return nil, err
	}
	if file == nil {
		return &models.CoverageReport{Valid: false, Error: "file not found"}, nil
	}
	if !isRegularFile(file.LocalPath) {
		return &models.CoverageReport{Valid: false, Error: "file not on disk"}, nil
	}

	// Binary kernels are not parsed; the registry's declared range is reported as-is.
	if !file.FileType.IsParsed() {
		return &models.CoverageReport{Valid: true, ValidFrom: file.ValidFrom, ValidTo: file.ValidTo}, nil
	}

	samples, err := horizons.ParseFile(file.LocalPath, "")
	if err != nil {
		s.logger.Warn("Coverage parse failed", zap.Int64("file_id", fileID), zap.Error(err))
		return &models.CoverageReport{Valid: false, Error: err.Error()}, nil
	}

	count := len(samples)
	report := &models.CoverageReport{Valid: true, SampleCount: &count, ValidFrom: file.ValidFrom, ValidTo: file.ValidTo}
	if from, to, ok := horizons.Coverage(samples); ok {
		report.ValidFrom = &from
		report.ValidTo = &to
	}
	return report, nil
}

func (s *fileRegistryService) GetFile(ctx context.Context, tenantID string, fileID int64) (*models.NasaFile, error) {
	tenantCtx, cleanup, err := s.getTenant(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire tenant scope: %w", err)
	}
	defer cleanup()

	return s.fileRepo.GetByID(tenantCtx, fileID)
}

func (s *fileRegistryService) ListFiles(ctx context.Context, tenantID string, fileType models.FileType, limit int) ([]*models.NasaFile, error) {
	tenantCtx, cleanup, err := s.getTenant(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire tenant scope: %w", err)
	}
	defer cleanup()

	return s.fileRepo.List(tenantCtx, fileType, limit)
}

// FileChecksum streams path through SHA-256 in blockSize reads and returns
// the lowercase hex digest.
func FileChecksum(path string, blockSize int) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	if blockSize <= 0 {
		blockSize = DefaultChecksumBlockSize
	}

	h := sha256.New()
	buf := make([]byte, blockSize)
	for {
		n, err := f.Read(buf)
		h.Write(buf[:n])
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", path, err)
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// ResolvePath returns the absolute path of p with symlinks evaluated.
func ResolvePath(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", p, err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", p, err)
	}
	return resolved, nil
}

func isRegularFile(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
