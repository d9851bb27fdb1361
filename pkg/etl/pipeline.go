// Package etl stages a directory of source files into the archive.
//
// The pipeline runs three stages in order. Extract lists the directory,
// Transform stamps the listing with an ingestion time and checksum, and
// Load records the result in continuum_meta and one document blob per file.
package etl

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-continuum/pkg/models"
	"github.com/ekaya-inc/ekaya-continuum/pkg/repositories"
	"github.com/ekaya-inc/ekaya-continuum/pkg/services"
)

// Meta keys written by Load.
const (
	MetaLastSource   = "etl_last_source"
	MetaLastChecksum = "etl_last_checksum"
	MetaLastIngested = "etl_last_ingested"
)

// TimestampLayout is UTC with microseconds and a Z suffix.
const TimestampLayout = "2006-01-02T15:04:05.000000Z"

// Extraction is the directory listing produced by Extract.
type Extraction struct {
	Files       []string `json:"files"`
	SourcePath  string   `json:"source_path"`
	ExtractedAt string   `json:"extracted_at"`
}

// Transformed is an Extraction stamped for loading. Checksum is the SHA-256
// of the canonical JSON of every other field.
type Transformed struct {
	Extraction
	IngestedAt string `json:"ingested_at"`
	Checksum   string `json:"checksum"`
}

// LoadResult summarizes a completed run.
type LoadResult struct {
	SourcePath    string `json:"source_path"`
	Checksum      string `json:"checksum"`
	IngestedAt    string `json:"ingested_at"`
	FileCount     int    `json:"file_count"`
	BlobsInserted int    `json:"blobs_inserted"`
}

// Pipeline runs extract, transform and load against the shared archive tables.
type Pipeline struct {
	archive   repositories.ArchiveRepository
	meta      repositories.MetaRepository
	getShared services.SharedContextFunc
	now       func() time.Time
	logger    *zap.Logger
}

// NewPipeline creates a new Pipeline.
func NewPipeline(
	archive repositories.ArchiveRepository,
	meta repositories.MetaRepository,
	getShared services.SharedContextFunc,
	logger *zap.Logger,
) *Pipeline {
	return &Pipeline{
		archive:   archive,
		meta:      meta,
		getShared: getShared,
		now:       time.Now,
		logger:    logger.Named("etl"),
	}
}

// Run executes all three stages for sourceDir.
func (p *Pipeline) Run(ctx context.Context, sourceDir string) (*LoadResult, error) {
	extraction, err := p.Extract(sourceDir)
	if err != nil {
		return nil, err
	}
	transformed, err := p.Transform(extraction)
	if err != nil {
		return nil, err
	}
	return p.Load(ctx, transformed)
}

// Extract lists the entries of sourceDir, creating it when absent.
// Dotfiles are skipped. Names are returned sorted.
func (p *Pipeline) Extract(sourceDir string) (*Extraction, error) {
	if err := os.MkdirAll(sourceDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create source directory: %w", err)
	}
	resolved, err := services.ResolvePath(sourceDir)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(resolved)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", resolved, err)
	}

	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".") {
			continue
		}
		files = append(files, e.Name())
	}
	sort.Strings(files)

	return &Extraction{
		Files:       files,
		SourcePath:  resolved,
		ExtractedAt: p.now().UTC().Format(TimestampLayout),
	}, nil
}

// Transform stamps the extraction with the ingestion time and its checksum.
func (p *Pipeline) Transform(e *Extraction) (*Transformed, error) {
	t := &Transformed{
		Extraction: *e,
		IngestedAt: p.now().UTC().Format(TimestampLayout),
	}
	sum, err := checksum(t)
	if err != nil {
		return nil, err
	}
	t.Checksum = sum
	return t, nil
}

// checksum hashes the transformed record without its checksum field.
// encoding/json writes map keys sorted, which makes the encoding canonical.
func checksum(t *Transformed) (string, error) {
	files := t.Files
	if files == nil {
		files = []string{}
	}
	canonical, err := json.Marshal(map[string]any{
		"files":        files,
		"source_path":  t.SourcePath,
		"extracted_at": t.ExtractedAt,
		"ingested_at":  t.IngestedAt,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode extraction: %w", err)
	}
	h := sha256.Sum256(canonical)
	return hex.EncodeToString(h[:]), nil
}

// Load writes the run markers and one document blob per file. Blobs carry
// the run checksum as their tar hash.
func (p *Pipeline) Load(ctx context.Context, t *Transformed) (*LoadResult, error) {
	sharedCtx, cleanup, err := p.getShared(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire shared scope: %w", err)
	}
	defer cleanup()

	markers := []struct{ key, value string }{
		{MetaLastSource, t.SourcePath},
		{MetaLastChecksum, t.Checksum},
		{MetaLastIngested, t.IngestedAt},
	}
	for _, m := range markers {
		if err := p.meta.Set(sharedCtx, m.key, m.value); err != nil {
			return nil, err
		}
	}

	inserted := 0
	for _, name := range t.Files {
		blob := &models.DocumentBlob{
			TarHash: t.Checksum,
			Path:    filepath.Join(t.SourcePath, name),
		}
		if _, err := p.archive.CreateDocumentBlob(sharedCtx, blob); err != nil {
			return nil, err
		}
		inserted++
	}

	p.logger.Info("ETL load complete",
		zap.String("source_path", t.SourcePath),
		zap.String("checksum", t.Checksum),
		zap.Int("blobs_inserted", inserted))

	return &LoadResult{
		SourcePath:    t.SourcePath,
		Checksum:      t.Checksum,
		IngestedAt:    t.IngestedAt,
		FileCount:     len(t.Files),
		BlobsInserted: inserted,
	}, nil
}
