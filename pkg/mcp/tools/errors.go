package tools

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ekaya-inc/ekaya-continuum/pkg/apperrors"
)

// ErrorResponse represents a structured error in tool results.
// Actionable errors are returned as successful tool results so the
// client sees the details instead of a bare protocol error.
type ErrorResponse struct {
	Error   bool   `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// NewErrorResult creates a tool result containing a structured error.
// Use this for recoverable errors the caller can fix (bad parameters,
// unknown ids). System failures still return Go errors.
func NewErrorResult(code, message string) *mcp.CallToolResult {
	return NewErrorResultWithDetails(code, message, nil)
}

// NewErrorResultWithDetails creates an error result with additional context.
//
// Example:
//
//	return NewErrorResultWithDetails(
//	    "unknown_table",
//	    "unknown table: users",
//	    map[string]any{"tables": deps.Explorer.Tables()},
//	), nil
func NewErrorResultWithDetails(code, message string, details any) *mcp.CallToolResult {
	resp := ErrorResponse{
		Error:   true,
		Code:    code,
		Message: message,
		Details: details,
	}
	jsonBytes, _ := json.Marshal(resp)
	result := mcp.NewToolResultText(string(jsonBytes))
	result.IsError = true
	return result
}

// NewAppErrorResult maps the application's sentinel errors to tool results.
// Returns nil for anything else; the caller should return a Go error then.
func NewAppErrorResult(err error) *mcp.CallToolResult {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, apperrors.ErrInvalidArgument):
		return NewErrorResult("invalid_parameters", err.Error())
	case errors.Is(err, apperrors.ErrNotFound):
		return NewErrorResult("not_found", err.Error())
	case errors.Is(err, apperrors.ErrReadOnly):
		return NewErrorResult("read_only", err.Error())
	case errors.Is(err, apperrors.ErrParseFailure):
		return NewErrorResult("parse_failure", err.Error())
	}
	return NewSQLErrorResult(err)
}

// sqliteCodeSuffix matches the "(N)" result code suffix the SQLite driver
// appends to error messages.
var sqliteCodeSuffix = regexp.MustCompile(`\s*\(\d+\)$`)

// sqlUserErrorPatterns map SQLite error text to stable codes, most specific first.
var sqlUserErrorPatterns = []struct {
	pattern string
	code    string
}{
	{"no such table", "undefined_table"},
	{"no such column", "undefined_column"},
	{"no such function", "undefined_function"},
	{"syntax error", "syntax_error"},
	{"incomplete input", "syntax_error"},
	{"ambiguous column name", "ambiguous_column"},
	{"attempt to write a readonly database", "read_only"},
	{"unique constraint failed", "unique_violation"},
	{"foreign key constraint failed", "foreign_key_violation"},
	{"not null constraint failed", "not_null_violation"},
	{"check constraint failed", "check_violation"},
	{"constraint failed", "constraint_violation"},
	{"datatype mismatch", "data_exception"},
	{"wrong number of arguments", "sql_error"},
	{"not enough args", "invalid_input"},
}

// IsSQLUserError returns true if the error comes from the statement itself
// (bad SQL, missing table, constraint violation) rather than from the server
// (closed connection, I/O failure). These are actionable by the caller.
func IsSQLUserError(err error) bool {
	return SQLUserErrorCode(err) != ""
}

// SQLUserErrorCode returns a code for a SQL user error, or "" otherwise.
func SQLUserErrorCode(err error) string {
	if err == nil {
		return ""
	}
	errStr := strings.ToLower(err.Error())
	for _, p := range sqlUserErrorPatterns {
		if strings.Contains(errStr, p.pattern) {
			return p.code
		}
	}
	return ""
}

// ExtractSQLErrorMessage strips wrapping prefixes and the driver's result
// code suffix for cleaner display.
func ExtractSQLErrorMessage(err error) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	prefixes := []string{
		"failed to execute read: ",
		"failed to read columns: ",
		"SQL logic error: ",
		"constraint failed: ",
	}
	for _, prefix := range prefixes {
		msg = strings.TrimPrefix(msg, prefix)
	}
	return sqliteCodeSuffix.ReplaceAllString(msg, "")
}

// NewSQLErrorResult creates an error result from a SQL error if it's a user error.
// Returns nil if the error is not a SQL user error (caller should return Go error instead).
func NewSQLErrorResult(err error) *mcp.CallToolResult {
	if !IsSQLUserError(err) {
		return nil
	}
	return NewErrorResult(SQLUserErrorCode(err), ExtractSQLErrorMessage(err))
}

// inputErrorPatterns are substrings that mark an error as caused by input
// rather than a server failure. These are logged at DEBUG, not ERROR.
var inputErrorPatterns = []string{
	"not found",
	"invalid argument",
	"unknown table",
	"missing required",
	"cannot be empty",
}

// IsInputError returns true if the error appears to be caused by user input.
func IsInputError(err error) bool {
	if err == nil {
		return false
	}
	if IsSQLUserError(err) {
		return true
	}

	errStr := strings.ToLower(err.Error())
	for _, pattern := range inputErrorPatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}
	return false
}
