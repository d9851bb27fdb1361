package models

// AstralBody is a catalog entry keyed by BodyID, unique per tenant.
// ParentBodyID is a weak reference to another body in the same tenant.
type AstralBody struct {
	ID           int64    `json:"id"`
	BodyID       string   `json:"body_id"`
	Name         string   `json:"name"`
	Kind         string   `json:"kind"`
	MassKg       *float64 `json:"mass_kg,omitempty"`
	RadiusM      *float64 `json:"radius_m,omitempty"`
	ParentBodyID *string  `json:"parent_body_id,omitempty"`
	FrameID      *string  `json:"frame_id,omitempty"`
	TenantID     string   `json:"tenant_id"`
	UpdatedAt    string   `json:"updated_at"`
}

// ObserverSite is a fixed observing location on a body, keyed by SiteID.
// BodyID is a soft reference; it is not enforced by a foreign key.
type ObserverSite struct {
	ID             int64   `json:"id"`
	SiteID         string  `json:"site_id"`
	BodyID         string  `json:"body_id"`
	LatDeg         float64 `json:"lat_deg"`
	LonDeg         float64 `json:"lon_deg"`
	AltitudeM      float64 `json:"altitude_m"`
	ReferenceFrame *string `json:"reference_frame,omitempty"`
	TenantID       string  `json:"tenant_id"`
	UpdatedAt      string  `json:"updated_at"`
}

// EphemerisSample is one state vector for a body at an epoch.
// Units are stored as supplied; nothing is converted or validated.
// Several samples may share (BodyID, EpochUTC); lookups return the newest.
type EphemerisSample struct {
	ID           int64    `json:"id"`
	BodyID       string   `json:"body_id"`
	EpochUTC     string   `json:"epoch_utc"`
	PositionX    float64  `json:"position_x"`
	PositionY    float64  `json:"position_y"`
	PositionZ    float64  `json:"position_z"`
	VelocityX    *float64 `json:"velocity_x,omitempty"`
	VelocityY    *float64 `json:"velocity_y,omitempty"`
	VelocityZ    *float64 `json:"velocity_z,omitempty"`
	FrameID      *string  `json:"frame_id,omitempty"`
	SourceFileID *int64   `json:"source_file_id,omitempty"`
	TenantID     string   `json:"tenant_id"`
}

// OcclusionEvent records one body occluding another as seen from a source body.
// OcclusionRatio is expected in [0,1] but is not validated.
type OcclusionEvent struct {
	ID             int64    `json:"id"`
	EpochUTC       string   `json:"epoch_utc"`
	SourceBodyID   string   `json:"source_body_id"`
	TargetBodyID   string   `json:"target_body_id"`
	OccluderBodyID string   `json:"occluder_body_id"`
	OcclusionRatio *float64 `json:"occlusion_ratio,omitempty"`
	EclipseType    *string  `json:"eclipse_type,omitempty"`
	TenantID       string   `json:"tenant_id"`
}
