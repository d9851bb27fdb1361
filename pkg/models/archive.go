package models

// Auxiliary archive records. These tables are shared across tenants and
// are written by the compressors, the ETL loader and the research feed.

// KernelStatusFlaggedResearch marks a kernel for manual research review.
const KernelStatusFlaggedResearch = "flagged_research"

// MetaEntry is one key/value pair in continuum_meta.
type MetaEntry struct {
	Key       string  `json:"key"`
	Value     *string `json:"value,omitempty"`
	UpdatedAt string  `json:"updated_at"`
}

type SpatialEntry struct {
	ID          int64   `json:"id"`
	Bounds4JSON string  `json:"bounds4_json"`
	PayloadType *string `json:"payload_type,omitempty"`
	PayloadID   *int64  `json:"payload_id,omitempty"`
	CreatedAt   string  `json:"created_at"`
}

type DocumentBlob struct {
	ID        int64   `json:"id"`
	TarHash   string  `json:"tar_hash"`
	Path      string  `json:"path"`
	MimeType  *string `json:"mime_type,omitempty"`
	CreatedAt string  `json:"created_at"`
}

type SemanticChunk struct {
	ID              int64   `json:"id"`
	MediaType       string  `json:"media_type"`
	ChunkKey        string  `json:"chunk_key"`
	DescriptionText *string `json:"description_text,omitempty"`
	DiffBlobRef     *string `json:"diff_blob_ref,omitempty"`
	ParentID        *int64  `json:"parent_id,omitempty"`
	QuadPath        *string `json:"quad_path,omitempty"`
	CreatedAt       string  `json:"created_at"`
}

// UniqueKernel is a chunk a compressor could not reduce below its residual target.
type UniqueKernel struct {
	ID               int64    `json:"id"`
	ChunkID          int64    `json:"chunk_id"`
	SourceCompressor string   `json:"source_compressor"`
	ResidualMetric   *float64 `json:"residual_metric,omitempty"`
	AttemptCount     int      `json:"attempt_count"`
	Status           string   `json:"status"`
	CreatedAt        string   `json:"created_at"`
}

type CompressionRun struct {
	ID         int64   `json:"id"`
	MediaID    *int64  `json:"media_id,omitempty"`
	Strategy   string  `json:"strategy"`
	ConfigJSON *string `json:"config_json,omitempty"`
	OutputHash *string `json:"output_hash,omitempty"`
	CreatedAt  string  `json:"created_at"`
}

type ResearchSuggestion struct {
	ID                 int64   `json:"id"`
	Source             string  `json:"source"`
	ContextJSON        *string `json:"context_json,omitempty"`
	RecommendationText string  `json:"recommendation_text"`
	Status             string  `json:"status"`
	CreatedAt          string  `json:"created_at"`
}
