// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command veracity runs the claim validation service or performs a
// one-shot timeline validation from files on disk.
//
// # Usage
//
//	# Serve the HTTP API
//	veracity serve --config config.yaml
//
//	# Validate a timeline against its source documents
//	veracity validate --timeline timeline.json plan.pdf.txt memo.txt
package main

import (
	"log"

	"github.com/spf13/cobra"
)

var (
	configPath string
	logJSON    bool
	verbose    bool

	rootCmd = &cobra.Command{
		Use:   "veracity",
		Short: "Claim validation and quality gating for reasoner output",
		Long: `Veracity validates extracted claims against their source documents:
citation verification, contradiction detection, provenance auditing,
confidence calibration, quality gates, and deterministic repair.`,
		SilenceUsage: true,
	}
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error executing command: %v", err)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "emit logs as JSON")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(validateCmd)
}
