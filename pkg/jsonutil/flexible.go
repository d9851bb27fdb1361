package jsonutil

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// FlexibleStringValue converts a json.RawMessage to a string, accepting numbers
// and booleans where a string was expected. Returns empty string for null/empty.
func FlexibleStringValue(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}

	var strVal string
	if err := json.Unmarshal(raw, &strVal); err == nil {
		return strVal
	}

	var numVal float64
	if err := json.Unmarshal(raw, &numVal); err == nil {
		if numVal == float64(int64(numVal)) {
			return fmt.Sprintf("%d", int64(numVal))
		}
		return fmt.Sprintf("%g", numVal)
	}

	var boolVal bool
	if err := json.Unmarshal(raw, &boolVal); err == nil {
		return fmt.Sprintf("%t", boolVal)
	}

	// Objects and arrays are not meaningful as a scalar
	return ""
}

// FlexibleInt64Value converts a json.RawMessage holding an integer, an
// integral float, or a numeric string into an int64.
// The second return is false when the value is absent or not an integer.
func FlexibleInt64Value(raw json.RawMessage) (int64, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, false
	}

	var intVal int64
	if err := json.Unmarshal(raw, &intVal); err == nil {
		return intVal, true
	}

	var numVal float64
	if err := json.Unmarshal(raw, &numVal); err == nil {
		if numVal == math.Trunc(numVal) && math.Abs(numVal) < 1<<53 {
			return int64(numVal), true
		}
		return 0, false
	}

	var strVal string
	if err := json.Unmarshal(raw, &strVal); err == nil {
		if n, err := strconv.ParseInt(strings.TrimSpace(strVal), 10, 64); err == nil {
			return n, true
		}
	}

	return 0, false
}
