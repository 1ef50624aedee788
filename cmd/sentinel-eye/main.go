// Package main provides the sentinel-eye binary: maintainer-side pull
// request triage reports on the command line plus the dashboard server.
package main

import (
	"fmt"
	"os"
	"runtime"

	// Register hosting-platform adapters via init()
	_ "github.com/seven-shadow/sentinel-eye/provider/providers"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "sentinel-eye"
)

func main() {
	// Add panic recovery
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
