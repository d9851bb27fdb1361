package sql

import (
	"testing"
)

func TestCheckParameterForInjection(t *testing.T) {
	tests := []struct {
		name            string
		value           any
		expectInjection bool
	}{
		{name: "body id", value: "earth", expectInjection: false},
		{name: "date", value: "2000-01-01", expectInjection: false},
		{name: "multi-word search", value: "earth moon barycenter", expectInjection: false},
		{name: "integer", value: 42, expectInjection: false},
		{name: "float", value: 3958.8, expectInjection: false},
		{name: "nil", value: nil, expectInjection: false},
		{name: "tautology", value: "' OR '1'='1", expectInjection: true},
		{name: "stacked drop", value: "'; DROP TABLE ingestion_jobs--", expectInjection: true},
		{name: "union select", value: "1 UNION SELECT * FROM library_documents", expectInjection: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CheckParameterForInjection("q", tt.value)
			if tt.expectInjection {
				if result == nil {
					t.Fatalf("expected injection to be detected for %v", tt.value)
				}
				if !result.IsSQLi || result.Fingerprint == "" || result.ParamName != "q" {
					t.Errorf("unexpected result: %+v", result)
				}
				return
			}
			if result != nil {
				t.Errorf("expected no injection for %v, got fingerprint %q", tt.value, result.Fingerprint)
			}
		})
	}
}

func TestCheckPositionalParameters(t *testing.T) {
	results := CheckPositionalParameters([]any{"earth", 10, "' OR '1'='1"})
	if len(results) != 1 {
		t.Fatalf("expected 1 flagged value, got %d", len(results))
	}
	if results[0].ParamName != "arg3" {
		t.Errorf("expected arg3 to be flagged, got %s", results[0].ParamName)
	}

	if got := CheckPositionalParameters(nil); len(got) != 0 {
		t.Errorf("expected no results for nil args, got %d", len(got))
	}
}
