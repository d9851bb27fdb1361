package main

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

const (
	formatJSON = "json"
	formatYAML = "yaml"
)

// writeOutput prints v in the requested format. YAML output goes through a
// JSON round trip so both formats share the models' json field names.
func writeOutput(w io.Writer, format string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}

	if format == formatYAML {
		var generic any
		if err := json.Unmarshal(data, &generic); err != nil {
			return fmt.Errorf("failed to encode output: %w", err)
		}
		out, err := yaml.Marshal(generic)
		if err != nil {
			return fmt.Errorf("failed to encode output: %w", err)
		}
		_, err = w.Write(out)
		return err
	}

	_, err = fmt.Fprintln(w, string(data))
	return err
}

// reportError prints {"error": msg} and returns errReported.
func reportError(w io.Writer, format, msg string) error {
	if err := writeOutput(w, format, map[string]string{"error": msg}); err != nil {
		return err
	}
	return errReported
}
