package sql

import (
	"fmt"

	libinjection "github.com/corazawaf/libinjection-go"
)

// InjectionCheckResult contains the result of an injection check on a bind value.
type InjectionCheckResult struct {
	IsSQLi      bool   // True if SQL injection pattern detected
	Fingerprint string // libinjection fingerprint of the detected pattern
	ParamName   string // Name (or 1-based position) of the offending value
	ParamValue  any    // The value that was checked
}

// CheckParameterForInjection uses libinjection to detect SQL injection patterns
// in a bind value.
//
// Only string values are checked. Numbers, booleans and other types return nil.
//
//	result := CheckParameterForInjection("body_id", "earth")
//	// result == nil
//
//	result = CheckParameterForInjection("q", "'; DROP TABLE ingestion_jobs--")
//	// result.IsSQLi == true
func CheckParameterForInjection(paramName string, value any) *InjectionCheckResult {
	strValue, ok := value.(string)
	if !ok {
		return nil
	}

	isSQLi, fingerprint := libinjection.IsSQLi(strValue)
	if isSQLi {
		return &InjectionCheckResult{
			IsSQLi:      true,
			Fingerprint: string(fingerprint),
			ParamName:   paramName,
			ParamValue:  value,
		}
	}

	return nil
}

// CheckPositionalParameters checks every "?" bind value in order and returns
// one result per value that looks like an injection attempt. Values are
// named "arg1", "arg2", ... in the results.
func CheckPositionalParameters(args []any) []*InjectionCheckResult {
	var results []*InjectionCheckResult
	for i, value := range args {
		if result := CheckParameterForInjection(fmt.Sprintf("arg%d", i+1), value); result != nil {
			results = append(results, result)
		}
	}
	return results
}
