package jsonutil

import (
	"encoding/json"
	"testing"
)

func TestFlexibleStringValue(t *testing.T) {
	tests := []struct {
		name  string
		input json.RawMessage
		want  string
	}{
		{name: "string value", input: json.RawMessage(`"/data/horizons/earth.txt"`), want: "/data/horizons/earth.txt"},
		{name: "integer value", input: json.RawMessage(`399`), want: "399"},
		{name: "float value", input: json.RawMessage(`3.14`), want: "3.14"},
		{name: "boolean", input: json.RawMessage(`true`), want: "true"},
		{name: "null value", input: json.RawMessage(`null`), want: ""},
		{name: "empty", input: nil, want: ""},
		{name: "object", input: json.RawMessage(`{"a":1}`), want: ""},
		{name: "array", input: json.RawMessage(`["a"]`), want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FlexibleStringValue(tt.input); got != tt.want {
				t.Errorf("FlexibleStringValue(%s) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestFlexibleInt64Value(t *testing.T) {
	tests := []struct {
		name   string
		input  json.RawMessage
		want   int64
		wantOK bool
	}{
		{name: "integer", input: json.RawMessage(`12`), want: 12, wantOK: true},
		{name: "integral float", input: json.RawMessage(`12.0`), want: 12, wantOK: true},
		{name: "numeric string", input: json.RawMessage(`" 7 "`), want: 7, wantOK: true},
		{name: "fractional float", input: json.RawMessage(`1.5`), wantOK: false},
		{name: "non-numeric string", input: json.RawMessage(`"abc"`), wantOK: false},
		{name: "null", input: json.RawMessage(`null`), wantOK: false},
		{name: "empty", input: nil, wantOK: false},
		{name: "bool", input: json.RawMessage(`false`), wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := FlexibleInt64Value(tt.input)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("FlexibleInt64Value(%s) = (%d, %v), want (%d, %v)", tt.input, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}
