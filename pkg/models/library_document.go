package models

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/ekaya-inc/ekaya-continuum/pkg/apperrors"
)

// LibraryDocument is a generic archived document, optionally located.
// Geohash is derived at insert time iff both Lat and Lon are present and
// is never recomputed.
type LibraryDocument struct {
	ID           int64    `json:"id"`
	DocumentType string   `json:"document_type"`
	BlobRef      *string  `json:"blob_ref,omitempty"`
	URL          *string  `json:"url,omitempty"`
	TypeMetadata *string  `json:"type_metadata,omitempty"`
	OwnerID      *string  `json:"owner_id,omitempty"`
	TenantID     string   `json:"tenant_id"`
	Lat          *float64 `json:"lat,omitempty"`
	Lon          *float64 `json:"lon,omitempty"`
	AltitudeM    *float64 `json:"altitude_m,omitempty"`
	Geohash      *string  `json:"geohash,omitempty"`
	UpdatedAt    string   `json:"updated_at"`
}

// HasLocation reports whether the document has stored coordinates.
func (d *LibraryDocument) HasLocation() bool {
	return d.Lat != nil && d.Lon != nil
}

// ============================================================================
// Distance filter
// ============================================================================

// Distance is a library search radius in miles. The zero value means
// "no distance filter"; a set distance of 0 means "same geohash cell".
type Distance struct {
	miles float64
	set   bool
}

// InfiniteDistance is the explicit "no distance filtering" value.
const InfiniteDistance = "infinite"

// Miles returns a bounded distance.
func Miles(m float64) (Distance, error) {
	if math.IsNaN(m) || m < 0 {
		return Distance{}, fmt.Errorf("%w: distance must be a non-negative number of miles, got %v", apperrors.ErrInvalidArgument, m)
	}
	if math.IsInf(m, 1) {
		return Distance{}, nil
	}
	return Distance{miles: m, set: true}, nil
}

// ParseDistance accepts "", "infinite", or a non-negative number.
func ParseDistance(s string) (Distance, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, InfiniteDistance) {
		return Distance{}, nil
	}
	m, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Distance{}, fmt.Errorf("%w: distance %q is neither a number nor %q", apperrors.ErrInvalidArgument, s, InfiniteDistance)
	}
	return Miles(m)
}

// IsBounded reports whether a numeric distance filter is active.
func (d Distance) IsBounded() bool { return d.set }

// IsSameCell reports whether the filter is geohash-bucket equality.
func (d Distance) IsSameCell() bool { return d.set && d.miles == 0 }

// Value returns the radius in miles; only meaningful when IsBounded.
func (d Distance) Value() float64 { return d.miles }

func (d Distance) String() string {
	if !d.set {
		return InfiniteDistance
	}
	return strconv.FormatFloat(d.miles, 'f', -1, 64)
}

// LibrarySearchParams are the filters for a library document search.
// Location filtering applies only when both Lat and Lon are set.
type LibrarySearchParams struct {
	DocumentType string
	Query        string // case-sensitive substring of type_metadata or url
	Lat          *float64
	Lon          *float64
	Distance     Distance
	Limit        int
}

// HasProbe reports whether a probe point was supplied.
func (p LibrarySearchParams) HasProbe() bool {
	return p.Lat != nil && p.Lon != nil
}
