package repositories

import (
	"context"
	"fmt"

	"github.com/ekaya-inc/ekaya-continuum/pkg/models"
)

// NasaFileRepository provides data access for the NASA file registry.
// Registry entries are immutable; there is no update path.
type NasaFileRepository interface {
	Create(ctx context.Context, file *models.NasaFile) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.NasaFile, error)
	List(ctx context.Context, fileType models.FileType, limit int) ([]*models.NasaFile, error)
	// FindLatestByPath returns the newest entry of fileType registered for localPath.
	FindLatestByPath(ctx context.Context, fileType models.FileType, localPath string) (*models.NasaFile, error)
}

type nasaFileRepository struct{}

// NewNasaFileRepository creates a new NasaFileRepository.
func NewNasaFileRepository() NasaFileRepository {
	return &nasaFileRepository{}
}

var _ NasaFileRepository = (*nasaFileRepository)(nil)

const nasaFileColumns = `id, file_type, source_url, local_path, checksum, valid_from, valid_to, format_version, tenant_id, updated_at`

func (r *nasaFileRepository) Create(ctx context.Context, file *models.NasaFile) (int64, error) {
	scope, err := tenantScope(ctx)
	if err != nil {
		return 0, err
	}

	query := `
		INSERT INTO nasa_file_registry
			(file_type, source_url, local_path, checksum, valid_from, valid_to, format_version, tenant_id, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, datetime('now'))`

	id, err := insert(ctx, scope.Conn, query,
		string(file.FileType), file.SourceURL, file.LocalPath, file.Checksum,
		file.ValidFrom, file.ValidTo, file.FormatVersion, scope.TenantID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to create nasa file entry: %w", err)
	}

	file.ID = id
	file.TenantID = scope.TenantID
	return id, nil
}

func (r *nasaFileRepository) GetByID(ctx context.Context, id int64) (*models.NasaFile, error) {
	scope, err := tenantScope(ctx)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + nasaFileColumns + ` FROM nasa_file_registry WHERE id = ? AND tenant_id = ?`
	file, err := queryOne(ctx, scope.Conn, scanNasaFile, query, id, scope.TenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to get nasa file: %w", err)
	}
	return file, nil
}

func (r *nasaFileRepository) List(ctx context.Context, fileType models.FileType, limit int) ([]*models.NasaFile, error) {
	scope, err := tenantScope(ctx)
	if err != nil {
		return nil, err
	}

	where := &whereClause{}
	where.add("tenant_id = ?", scope.TenantID)
	where.addIf(string(fileType), "file_type = ?")

	query := fmt.Sprintf(`SELECT %s FROM nasa_file_registry WHERE %s ORDER BY id DESC LIMIT ?`, nasaFileColumns, where)
	args := append(where.args, limitOrDefault(limit, DefaultNasaFileLimit))

	files, err := queryAll(ctx, scope.Conn, scanNasaFile, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list nasa files: %w", err)
	}
	return files, nil
}

func (r *nasaFileRepository) FindLatestByPath(ctx context.Context, fileType models.FileType, localPath string) (*models.NasaFile, error) {
	scope, err := tenantScope(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT ` + nasaFileColumns + `
		FROM nasa_file_registry
		WHERE tenant_id = ? AND file_type = ? AND local_path = ?
		ORDER BY id DESC
		LIMIT 1`

	file, err := queryOne(ctx, scope.Conn, scanNasaFile, query, scope.TenantID, string(fileType), localPath)
	if err != nil {
		return nil, fmt.Errorf("failed to find nasa file by path: %w", err)
	}
	return file, nil
}

func scanNasaFile(row rowScanner) (*models.NasaFile, error) {
	var f models.NasaFile
	var fileType string
	err := row.Scan(&f.ID, &fileType, &f.SourceURL, &f.LocalPath, &f.Checksum,
		&f.ValidFrom, &f.ValidTo, &f.FormatVersion, &f.TenantID, &f.UpdatedAt)
	if err != nil {
		return nil, err
	}
	f.FileType = models.FileType(fileType)
	return &f, nil
}
