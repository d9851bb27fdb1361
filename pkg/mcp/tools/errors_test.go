package tools

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-continuum/pkg/apperrors"
)

// getTextContent extracts the text string from the first text content item
func getTextContent(result *mcp.CallToolResult) string {
	if len(result.Content) == 0 {
		return ""
	}
	// The Content slice contains mcp.Content interface types
	// We need to marshal and unmarshal to extract the text
	jsonBytes, _ := json.Marshal(result.Content[0])
	var textContent struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	json.Unmarshal(jsonBytes, &textContent)
	return textContent.Text
}

func TestNewErrorResult(t *testing.T) {
	result := NewErrorResult("test_error", "this is a test error")

	require.NotNil(t, result)
	require.Len(t, result.Content, 1)

	// Extract and parse the JSON content
	text := getTextContent(result)
	var errResp ErrorResponse
	err := json.Unmarshal([]byte(text), &errResp)
	require.NoError(t, err)

	// Verify the error response structure
	assert.True(t, errResp.Error, "error field should be true")
	assert.Equal(t, "test_error", errResp.Code)
	assert.Equal(t, "this is a test error", errResp.Message)
	assert.Nil(t, errResp.Details, "details should be nil when not provided")
}

func TestNewErrorResultWithDetails(t *testing.T) {
	details := map[string]any{
		"invalid_columns": []string{"foo", "bar"},
		"valid_columns":   []string{"id", "name", "status"},
		"count":           2,
	}

	result := NewErrorResultWithDetails("validation_error", "invalid columns provided", details)

	require.NotNil(t, result)
	require.Len(t, result.Content, 1)

	// Extract and parse the JSON content
	text := getTextContent(result)
	var errResp ErrorResponse
	err := json.Unmarshal([]byte(text), &errResp)
	require.NoError(t, err)

	// Verify the error response structure
	assert.True(t, errResp.Error, "error field should be true")
	assert.Equal(t, "validation_error", errResp.Code)
	assert.Equal(t, "invalid columns provided", errResp.Message)
	assert.NotNil(t, errResp.Details, "details should not be nil")

	// Verify the details content
	detailsMap, ok := errResp.Details.(map[string]any)
	require.True(t, ok, "details should be a map")
	assert.Contains(t, detailsMap, "invalid_columns")
	assert.Contains(t, detailsMap, "valid_columns")
	assert.Contains(t, detailsMap, "count")
	assert.Equal(t, float64(2), detailsMap["count"]) // JSON numbers are float64
}

func TestErrorResponse_JSONStructure(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		message  string
		details  any
		wantJSON string
	}{
		{
			name:     "simple error without details",
			code:     "not_found",
			message:  "resource not found",
			details:  nil,
			wantJSON: `{"error":true,"code":"not_found","message":"resource not found"}`,
		},
		{
			name:     "error with string details",
			code:     "invalid_input",
			message:  "bad request",
			details:  "parameter 'depth' is required",
			wantJSON: `{"error":true,"code":"invalid_input","message":"bad request","details":"parameter 'depth' is required"}`,
		},
		{
			name:    "error with structured details",
			code:    "validation_error",
			message: "validation failed",
			details: map[string]any{
				"field": "email",
				"issue": "invalid format",
			},
			wantJSON: `{"error":true,"code":"validation_error","message":"validation failed","details":{"field":"email","issue":"invalid format"}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var result *mcp.CallToolResult
			if tt.details == nil {
				result = NewErrorResult(tt.code, tt.message)
			} else {
				result = NewErrorResultWithDetails(tt.code, tt.message, tt.details)
			}

			text := getTextContent(result)

			// Verify JSON can be unmarshaled
			var got, want map[string]any
			require.NoError(t, json.Unmarshal([]byte(text), &got))
			require.NoError(t, json.Unmarshal([]byte(tt.wantJSON), &want))

			// Compare structures
			assert.Equal(t, want, got)
		})
	}
}

func TestNewAppErrorResult(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{"invalid argument", fmt.Errorf("%w: negative distance", apperrors.ErrInvalidArgument), "invalid_parameters"},
		{"not found", fmt.Errorf("%w: file not found: /x", apperrors.ErrNotFound), "not_found"},
		{"read only", fmt.Errorf("%w: DELETE", apperrors.ErrReadOnly), "read_only"},
		{"parse failure", fmt.Errorf("%w: block 2", apperrors.ErrParseFailure), "parse_failure"},
		{"sql user error", errors.New("failed to execute read: SQL logic error: no such table: users (1)"), "undefined_table"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := NewAppErrorResult(tt.err)
			require.NotNil(t, result)
			assert.True(t, result.IsError)

			var errResp ErrorResponse
			require.NoError(t, json.Unmarshal([]byte(getTextContent(result)), &errResp))
			assert.Equal(t, tt.wantCode, errResp.Code)
		})
	}

	assert.Nil(t, NewAppErrorResult(nil))
	assert.Nil(t, NewAppErrorResult(errors.New("failed to acquire connection: sql: database is closed")))
}

func TestSQLUserErrorCode(t *testing.T) {
	tests := []struct {
		msg  string
		want string
	}{
		{"SQL logic error: no such table: users (1)", "undefined_table"},
		{"SQL logic error: no such column: foo (1)", "undefined_column"},
		{`SQL logic error: near "SELEC": syntax error (1)`, "syntax_error"},
		{"attempt to write a readonly database (8)", "read_only"},
		{"constraint failed: UNIQUE constraint failed: astral_body_catalog.tenant_id, astral_body_catalog.body_id (2067)", "unique_violation"},
		{"constraint failed: NOT NULL constraint failed: ingestion_jobs.source (1299)", "not_null_violation"},
		{"sql: database is closed", ""},
		{"context deadline exceeded", ""},
	}

	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			err := errors.New(tt.msg)
			assert.Equal(t, tt.want, SQLUserErrorCode(err))
			assert.Equal(t, tt.want != "", IsSQLUserError(err))
		})
	}
	assert.Empty(t, SQLUserErrorCode(nil))
}

func TestExtractSQLErrorMessage(t *testing.T) {
	assert.Equal(t, "no such table: users",
		ExtractSQLErrorMessage(errors.New("failed to execute read: SQL logic error: no such table: users (1)")))
	assert.Equal(t, "UNIQUE constraint failed: t.k",
		ExtractSQLErrorMessage(errors.New("constraint failed: UNIQUE constraint failed: t.k (2067)")))
	assert.Empty(t, ExtractSQLErrorMessage(nil))
}

func TestIsInputError(t *testing.T) {
	assert.True(t, IsInputError(errors.New("SQL logic error: no such column: x (1)")))
	assert.True(t, IsInputError(fmt.Errorf("%w: unknown table: users", apperrors.ErrInvalidArgument)))
	assert.True(t, IsInputError(errors.New("ingestion job 4 not found")))
	assert.False(t, IsInputError(errors.New("failed to acquire connection: i/o timeout")))
	assert.False(t, IsInputError(nil))
}
