// Command ekaya-continuum manages the continuum store: schema setup, NASA file
// registration, ephemeris ingestion, exploration queries and the MCP server.
package main

import (
	"errors"
	"fmt"
	"os"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}
