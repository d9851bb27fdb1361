package models

// ============================================================================
// NASA File Types
// ============================================================================

// FileType identifies the kind of registered NASA file.
type FileType string

const (
	FileTypeSPK      FileType = "spk"
	FileTypePCK      FileType = "pck"
	FileTypeLSK      FileType = "lsk"
	FileTypeFK       FileType = "fk"
	FileTypeHorizons FileType = "horizons"
)

// ValidFileTypes contains all valid file type values.
var ValidFileTypes = []FileType{
	FileTypeSPK,
	FileTypePCK,
	FileTypeLSK,
	FileTypeFK,
	FileTypeHorizons,
}

// IsValidFileType checks if the given file type is valid.
func IsValidFileType(t FileType) bool {
	for _, v := range ValidFileTypes {
		if v == t {
			return true
		}
	}
	return false
}

// IsParsed reports whether the system can read the file's contents.
// Binary SPICE kernels are only tracked, never parsed.
func (t FileType) IsParsed() bool {
	return t == FileTypeHorizons
}

// ============================================================================
// Registry
// ============================================================================

// NasaFile is a registry entry for an externally sourced file.
// LocalPath is absolute with symlinks resolved. Entries are immutable.
type NasaFile struct {
	ID            int64    `json:"id"`
	FileType      FileType `json:"file_type"`
	SourceURL     *string  `json:"source_url,omitempty"`
	LocalPath     string   `json:"local_path"`
	Checksum      *string  `json:"checksum,omitempty"`
	ValidFrom     *string  `json:"valid_from,omitempty"`
	ValidTo       *string  `json:"valid_to,omitempty"`
	FormatVersion *string  `json:"format_version,omitempty"`
	TenantID      string   `json:"tenant_id"`
	UpdatedAt     string   `json:"updated_at"`
}

// CoverageReport describes the temporal range a registered file spans.
// Failures are reported with Valid=false and Error set, never as Go errors.
type CoverageReport struct {
	Valid       bool    `json:"valid"`
	SampleCount *int    `json:"sample_count,omitempty"`
	ValidFrom   *string `json:"valid_from,omitempty"`
	ValidTo     *string `json:"valid_to,omitempty"`
	Error       string  `json:"error,omitempty"`
}
