package tools

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// trimString removes leading and trailing whitespace from a string.
func trimString(s string) string {
	return strings.TrimSpace(s)
}

// getOptionalString extracts an optional string argument from the request.
func getOptionalString(req mcp.CallToolRequest, key string) string {
	args, ok := req.Params.Arguments.(map[string]any)
	if !ok {
		return ""
	}
	val, ok := args[key].(string)
	if !ok {
		return ""
	}
	return trimString(val)
}

// getOptionalFloat extracts an optional number argument from the request.
func getOptionalFloat(req mcp.CallToolRequest, key string) (float64, bool) {
	args, ok := req.Params.Arguments.(map[string]any)
	if !ok {
		return 0, false
	}
	val, ok := args[key].(float64)
	return val, ok
}

// getOptionalFloatPtr is getOptionalFloat for nullable filters.
func getOptionalFloatPtr(req mcp.CallToolRequest, key string) *float64 {
	if v, ok := getOptionalFloat(req, key); ok {
		return &v
	}
	return nil
}

// getOptionalInt extracts an optional whole-number argument. JSON numbers
// arrive as float64; fractional values are rejected as absent.
func getOptionalInt(req mcp.CallToolRequest, key string) (int64, bool) {
	v, ok := getOptionalFloat(req, key)
	if !ok || v != math.Trunc(v) {
		return 0, false
	}
	return int64(v), true
}

// getDistanceArg accepts distance_mi as a number or as a string such as "infinite".
func getDistanceArg(req mcp.CallToolRequest) string {
	if v, ok := getOptionalFloat(req, "distance_mi"); ok {
		return fmt.Sprintf("%g", v)
	}
	return getOptionalString(req, "distance_mi")
}

// getOptionalArray extracts an optional array argument from the request.
func getOptionalArray(req mcp.CallToolRequest, key string) []any {
	args, ok := req.Params.Arguments.(map[string]any)
	if !ok {
		return nil
	}
	val, _ := args[key].([]any)
	return val
}

// clampLimit applies the default when limit is absent or non-positive and
// caps it at maxLimit.
func clampLimit(req mcp.CallToolRequest, defaultLimit, maxLimit int) int {
	limit := defaultLimit
	if v, ok := getOptionalInt(req, "limit"); ok && v > 0 {
		limit = int(v)
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return limit
}

// jsonResult marshals v as the text content of a tool result.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	jsonBytes, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}
