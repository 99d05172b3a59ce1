// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/veracity/services/engine/claim"
	"github.com/AleutianAI/veracity/services/engine/export"
	"github.com/AleutianAI/veracity/services/engine/metrics"
	"github.com/AleutianAI/veracity/services/engine/pipeline"
)

var (
	timelinePath string
	outputPath   string

	validateCmd = &cobra.Command{
		Use:   "validate [document files...]",
		Short: "Validate a timeline JSON file against source documents",
		Long: `Validate runs the full pipeline once: claims are extracted from the
timeline file, verified against the listed documents, checked for
contradictions, audited, calibrated, gated, and repaired. The report
is written as JSON and the exit code reflects the gate outcome.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runValidate,
	}
)

func init() {
	validateCmd.Flags().StringVar(&timelinePath, "timeline", "", "path to the timeline JSON file")
	validateCmd.Flags().StringVarP(&outputPath, "output", "o", "", "write the report here instead of stdout")
	_ = validateCmd.MarkFlagRequired("timeline")
}

// timelineFile mirrors the HTTP surface's timeline part.
type timelineFile struct {
	Tasks []*claim.TimelineTask `json:"tasks"`
}

func loadTimeline(path string) ([]*claim.TimelineTask, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read timeline: %w", err)
	}
	var tf timelineFile
	if err := json.Unmarshal(raw, &tf); err != nil {
		return nil, fmt.Errorf("parse timeline %s: %w", path, err)
	}
	if len(tf.Tasks) == 0 {
		return nil, fmt.Errorf("timeline %s has no tasks", path)
	}
	return tf.Tasks, nil
}

// loadSources reads each document file. Citations reference documents
// by base name, so that is the key each source is stored under.
func loadSources(paths []string) (claim.SourceSet, error) {
	sources := make(claim.SourceSet, len(paths))
	for _, path := range paths {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read document: %w", err)
		}
		name := filepath.Base(path)
		sources[name] = &claim.Source{
			Name:     name,
			Provider: claim.ProviderInternal,
			Content:  string(raw),
			Size:     len(raw),
		}
	}
	return sources, nil
}

// validateReport is the one-shot CLI output: the pipeline result plus
// the canonical ledger digest.
type validateReport struct {
	Result *pipeline.Result `json:"result"`
	Digest string           `json:"digest,omitempty"`
}

func runValidate(cmd *cobra.Command, args []string) error {
	config, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	log := newLogger()

	tasks, err := loadTimeline(timelinePath)
	if err != nil {
		return err
	}
	sources, err := loadSources(args)
	if err != nil {
		return err
	}

	engine, err := pipeline.NewEngine(config.Pipeline, metrics.NewCollector(0), log)
	if err != nil {
		return err
	}

	result, err := engine.ValidateTimeline(cmd.Context(), "cli", tasks, sources)
	if err != nil {
		return fmt.Errorf("validate: %w", err)
	}

	report := validateReport{Result: result}
	if result.Artifact != nil {
		if _, digest, err := export.ExportArtifact(result.Artifact); err == nil {
			report.Digest = digest
		} else {
			log.Warn("ledger export failed", "error", err)
		}
	}

	raw, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	raw = append(raw, '\n')

	if outputPath != "" {
		if err := os.WriteFile(outputPath, raw, 0o644); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
	} else if _, err := os.Stdout.Write(raw); err != nil {
		return err
	}

	if !result.Success {
		return fmt.Errorf("validation failed: %d gate errors", len(result.Errors))
	}
	return nil
}
