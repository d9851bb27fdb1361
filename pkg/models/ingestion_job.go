package models

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ekaya-inc/ekaya-continuum/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-continuum/pkg/jsonutil"
)

// ============================================================================
// Ingestion Job Status
// ============================================================================

// JobStatus represents the lifecycle state of an ingestion job.
// State machine:
//
//	pending → running → completed
//	             ↓
//	           failed → running (retry)
//
// Complete and fail are unconditional, so any state can reach
// completed or failed directly.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// ValidJobStatuses contains all valid status values.
var ValidJobStatuses = []JobStatus{
	JobStatusPending,
	JobStatusRunning,
	JobStatusCompleted,
	JobStatusFailed,
}

// IsValidJobStatus checks if the given status is valid.
func IsValidJobStatus(s JobStatus) bool {
	for _, v := range ValidJobStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// IsTerminal returns true if the status is terminal. Failed jobs may be retried.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted
}

// IsStartable returns true if a start attempt may move the job to running.
func (s JobStatus) IsStartable() bool {
	return s == JobStatusPending || s == JobStatusFailed
}

// ============================================================================
// Ingestion Job Model
// ============================================================================

// IngestionJob is a tracked unit of work that loads one source file.
// AttemptCount increments on every successful start and is never reset.
type IngestionJob struct {
	ID           int64     `json:"id"`
	JobType      string    `json:"job_type"`
	Source       string    `json:"source"`
	Status       JobStatus `json:"status"`
	PayloadJSON  *string   `json:"payload_json,omitempty"`
	AttemptCount int       `json:"attempt_count"`
	StartedAt    *string   `json:"started_at,omitempty"`
	FinishedAt   *string   `json:"finished_at,omitempty"`
	ErrorText    *string   `json:"error_text,omitempty"`
	TenantID     string    `json:"tenant_id"`
	UpdatedAt    string    `json:"updated_at"`
}

// Payload decodes the job's payload, tolerating absent or malformed JSON.
func (j *IngestionJob) Payload() IngestionPayload {
	if j.PayloadJSON == nil {
		return IngestionPayload{}
	}
	return DecodeIngestionPayload([]byte(*j.PayloadJSON))
}

// IngestionPayload holds the recognized payload keys. Unknown keys are ignored.
type IngestionPayload struct {
	Source string `json:"source,omitempty"`
	BodyID string `json:"body_id,omitempty"`
	FileID *int64 `json:"file_id,omitempty"`
}

// IsEmpty reports whether no recognized key is set.
func (p IngestionPayload) IsEmpty() bool {
	return p.Source == "" && p.BodyID == "" && p.FileID == nil
}

// Encode serializes the payload, or returns nil for an empty payload.
func (p IngestionPayload) Encode() *string {
	if p.IsEmpty() {
		return nil
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil
	}
	s := string(data)
	return &s
}

// DecodeIngestionPayload decodes raw into the recognized keys.
// Invalid JSON, non-object JSON and mistyped values decode as empty fields.
func DecodeIngestionPayload(raw []byte) IngestionPayload {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return IngestionPayload{}
	}

	p := IngestionPayload{
		Source: strings.TrimSpace(jsonutil.FlexibleStringValue(fields["source"])),
		BodyID: strings.TrimSpace(jsonutil.FlexibleStringValue(fields["body_id"])),
	}
	if id, ok := jsonutil.FlexibleInt64Value(fields["file_id"]); ok {
		p.FileID = &id
	}
	return p
}

// IngestionResult is the structured outcome of one ingestion run.
// Callers inspect Status rather than a Go error to learn how a run went.
// Started is false when the job could not be moved to running.
type IngestionResult struct {
	JobID           int64     `json:"job_id"`
	RunID           string    `json:"run_id"`
	Status          JobStatus `json:"status"`
	Started         bool      `json:"started"`
	SamplesInserted int       `json:"samples_inserted"`
	ErrorText       string    `json:"error_text,omitempty"`

	// Stored totals after a completed run, including earlier runs.
	BodyID                string `json:"body_id,omitempty"`
	BodySampleCount       int    `json:"body_sample_count,omitempty"`
	SourceFileID          *int64 `json:"source_file_id,omitempty"`
	SourceFileSampleCount *int   `json:"source_file_sample_count,omitempty"`
}

// Err converts the outcome into an error for callers that exit on failure.
// A rejected start wraps apperrors.ErrJobNotStartable.
func (r *IngestionResult) Err() error {
	switch {
	case !r.Started:
		return fmt.Errorf("ingestion job %d is %s: %w", r.JobID, r.Status, apperrors.ErrJobNotStartable)
	case r.Status != JobStatusCompleted || r.ErrorText != "":
		return fmt.Errorf("ingestion job %d failed: %s", r.JobID, r.ErrorText)
	default:
		return nil
	}
}
