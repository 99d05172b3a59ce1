// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package pipeline runs the full validation sequence over a claim set:
// extraction, citation verification, contradiction detection,
// provenance auditing, confidence calibration, quality gates, and
// repair. The pipeline owns stage ordering and error policy; the
// stages own their algorithms.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/veracity/pkg/logging"
	"github.com/AleutianAI/veracity/services/engine/calibration"
	"github.com/AleutianAI/veracity/services/engine/citation"
	"github.com/AleutianAI/veracity/services/engine/claim"
	"github.com/AleutianAI/veracity/services/engine/contradiction"
	"github.com/AleutianAI/veracity/services/engine/gates"
	"github.com/AleutianAI/veracity/services/engine/metrics"
	"github.com/AleutianAI/veracity/services/engine/provenance"
	"github.com/AleutianAI/veracity/services/engine/repair"
)

// Stage timeouts. The request timeout bounds the whole run; the
// per-stage timeouts bound the parallel batch stages individually.
const (
	DefaultVerifyTimeout  = 5 * time.Second
	DefaultDetectTimeout  = 30 * time.Second
	DefaultAuditTimeout   = 10 * time.Second
	DefaultRequestTimeout = 120 * time.Second
)

// Config is the single tuning surface for a pipeline run. Zero fields
// fall back to stage defaults.
type Config struct {
	// CitationCoverageThreshold is the minimum fraction of explicit
	// claims carrying citations. Default 0.75.
	CitationCoverageThreshold float64 `json:"citationCoverageThreshold" yaml:"citationCoverageThreshold"`

	// MinConfidence is the calibrated confidence floor. Default 0.50.
	MinConfidence float64 `json:"minConfidence" yaml:"minConfidence"`

	// NumericalTolerancePercent is the relative difference, as a
	// percentage, above which numeric values contradict. Default 20.
	NumericalTolerancePercent float64 `json:"numericalTolerancePercent" yaml:"numericalTolerancePercent"`

	// TemporalToleranceDays is the date gap above which dates
	// contradict. Default 7.
	TemporalToleranceDays float64 `json:"temporalToleranceDays" yaml:"temporalToleranceDays"`

	// SimilarityThreshold is the fuzzy-match floor for citation
	// verification. Default 0.85.
	SimilarityThreshold float64 `json:"similarityThreshold" yaml:"similarityThreshold"`

	// ContextWindowSize is the character radius of the citation
	// context search. Default 200.
	ContextWindowSize int `json:"contextWindowSize" yaml:"contextWindowSize"`

	// ProviderWeights override the provenance trust table per provider.
	ProviderWeights map[claim.Provider]float64 `json:"providerWeights,omitempty" yaml:"providerWeights,omitempty"`

	// TrustedProviders are granted full trust (weight 1.0) without
	// spelling out a weight table. ProviderWeights entries win on
	// overlap.
	TrustedProviders []claim.Provider `json:"trustedProviders,omitempty" yaml:"trustedProviders,omitempty"`

	// MaxRepairAttempts caps repair passes. Each pass applies one
	// strategy per failed gate and is idempotent, so values above 1
	// only help when one repair unblocks another. Default 1.
	MaxRepairAttempts int `json:"maxRepairAttempts" yaml:"maxRepairAttempts"`

	// HallucinationThreshold is the fraction of audited claims with
	// hallucinated citations above which the run fails outright,
	// regardless of gate outcomes. Default 0.5.
	HallucinationThreshold float64 `json:"hallucinationThreshold" yaml:"hallucinationThreshold"`

	// RemoveLowConfidenceTasks selects the repair strategy that drops
	// tasks below the confidence floor instead of flagging them.
	RemoveLowConfidenceTasks bool `json:"removeLowConfidenceTasks" yaml:"removeLowConfidenceTasks"`

	VerifyTimeout  time.Duration `json:"verifyTimeout" yaml:"verifyTimeout"`
	DetectTimeout  time.Duration `json:"detectTimeout" yaml:"detectTimeout"`
	AuditTimeout   time.Duration `json:"auditTimeout" yaml:"auditTimeout"`
	RequestTimeout time.Duration `json:"requestTimeout" yaml:"requestTimeout"`
}

// DefaultConfig returns the standard pipeline settings.
func DefaultConfig() Config {
	return Config{
		CitationCoverageThreshold: 0.75,
		MinConfidence:             0.50,
		NumericalTolerancePercent: 20,
		TemporalToleranceDays:     7,
		SimilarityThreshold:       0.85,
		ContextWindowSize:         200,
		MaxRepairAttempts:         1,
		HallucinationThreshold:    0.5,
		VerifyTimeout:             DefaultVerifyTimeout,
		DetectTimeout:             DefaultDetectTimeout,
		AuditTimeout:              DefaultAuditTimeout,
		RequestTimeout:            DefaultRequestTimeout,
	}
}

func (c *Config) applyDefaults() {
	def := DefaultConfig()
	if c.CitationCoverageThreshold <= 0 {
		c.CitationCoverageThreshold = def.CitationCoverageThreshold
	}
	if c.MinConfidence <= 0 {
		c.MinConfidence = def.MinConfidence
	}
	if c.NumericalTolerancePercent <= 0 {
		c.NumericalTolerancePercent = def.NumericalTolerancePercent
	}
	if c.TemporalToleranceDays <= 0 {
		c.TemporalToleranceDays = def.TemporalToleranceDays
	}
	if c.SimilarityThreshold <= 0 {
		c.SimilarityThreshold = def.SimilarityThreshold
	}
	if c.ContextWindowSize <= 0 {
		c.ContextWindowSize = def.ContextWindowSize
	}
	if c.MaxRepairAttempts <= 0 {
		c.MaxRepairAttempts = def.MaxRepairAttempts
	}
	if c.HallucinationThreshold <= 0 {
		c.HallucinationThreshold = def.HallucinationThreshold
	}
	if c.VerifyTimeout <= 0 {
		c.VerifyTimeout = def.VerifyTimeout
	}
	if c.DetectTimeout <= 0 {
		c.DetectTimeout = def.DetectTimeout
	}
	if c.AuditTimeout <= 0 {
		c.AuditTimeout = def.AuditTimeout
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = def.RequestTimeout
	}
}

// DocumentClaims is one reasoner output for the document flow: the raw
// claims attributed to a single source document.
type DocumentClaims struct {
	DocumentName string           `json:"documentName" binding:"required"`
	Claims       []claim.RawClaim `json:"claims" binding:"required"`
}

// Result is the outcome of one validation run.
type Result struct {
	// Success reports whether the output is usable. It is false only
	// when the artifact is structurally invalid after repair or the
	// hallucination rate exceeds the configured threshold; other gate
	// failures surface in Errors with Success still true.
	Success bool `json:"success"`

	Artifact *claim.Artifact  `json:"artifact"`
	Gates    *gates.Aggregate `json:"gates,omitempty"`
	Repair   *repair.Outcome  `json:"repair,omitempty"`

	// Verified and Disputed partition the ledger for the document
	// flow: a claim is disputed while it has an unresolved
	// contradiction or sits below the confidence floor.
	Verified []*claim.Claim `json:"verified,omitempty"`
	Disputed []*claim.Claim `json:"disputed,omitempty"`

	// Errors are gate failures that survived repair plus run-level
	// failures. Warnings are degradations the run survived.
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`

	Duration time.Duration `json:"duration"`
}

// Engine wires the validation stages together.
//
// Thread Safety: safe for concurrent use; each run builds its own
// artifact and the shared stages are themselves concurrency-safe.
type Engine struct {
	config     Config
	extractor  *claim.Extractor
	verifier   *citation.Verifier
	detector   *contradiction.Detector
	auditor    *provenance.Auditor
	calibrator *calibration.Calibrator
	manager    *gates.Manager
	repairer   *repair.Engine
	collector  *metrics.Collector
	log        *logging.Logger
}

// NewEngine builds a pipeline from one config. The collector and
// logger may be nil; a nil collector disables quality tracking.
func NewEngine(config Config, collector *metrics.Collector, log *logging.Logger) (*Engine, error) {
	config.applyDefaults()
	if log == nil {
		log = logging.Default()
	}

	manager, err := gates.NewManager(gates.Config{
		CitationCoverageThreshold: config.CitationCoverageThreshold,
		MinConfidence:             config.MinConfidence,
		ProvenanceThreshold:       70,
	})
	if err != nil {
		return nil, fmt.Errorf("pipeline: gates: %w", err)
	}

	return &Engine{
		config:    config,
		extractor: claim.NewExtractor(),
		verifier: citation.NewVerifier(citation.Config{
			SimilarityThreshold: config.SimilarityThreshold,
			ContextWindow:       config.ContextWindowSize,
		}),
		detector: contradiction.NewDetector(contradiction.Config{
			NumericalTolerance:    config.NumericalTolerancePercent / 100,
			TemporalToleranceDays: config.TemporalToleranceDays,
		}),
		auditor: provenance.NewAuditor(provenance.Config{
			ProviderWeights: providerWeights(config),
		}),
		calibrator: calibration.NewCalibrator(),
		manager:    manager,
		repairer: repair.NewEngine(repair.Config{
			MinConfidence:            config.MinConfidence,
			RemoveLowConfidenceTasks: config.RemoveLowConfidenceTasks,
		}, manager),
		collector: collector,
		log:       log.With("component", "pipeline"),
	}, nil
}

// ValidateTimeline runs the full pipeline over a reasoner-produced
// timeline. Returns ErrInvalidInput (wrapped) when extraction rejects
// the input; later-stage degradations surface as result warnings.
func (e *Engine) ValidateTimeline(ctx context.Context, sessionID string, tasks []*claim.TimelineTask, sources claim.SourceSet) (result *Result, err error) {
	defer recoverToError(&err)

	ctx, cancel := context.WithTimeout(ctx, e.config.RequestTimeout)
	defer cancel()

	ledger := claim.NewLedger()
	if err := e.extractor.ExtractFromTimeline(tasks, ledger); err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}

	artifact := claim.NewArtifact(ledger, sources)
	artifact.SessionID = sessionID
	artifact.Tasks = tasks

	return e.run(ctx, artifact)
}

// ValidateDocuments runs the pipeline over per-document claim sets.
// Extraction is parallel per document; claims merge into the ledger in
// document-name order so ids and detection order are reproducible.
func (e *Engine) ValidateDocuments(ctx context.Context, sessionID string, docs []DocumentClaims, sources claim.SourceSet) (result *Result, err error) {
	defer recoverToError(&err)

	ctx, cancel := context.WithTimeout(ctx, e.config.RequestTimeout)
	defer cancel()

	extracted := make([][]*claim.Claim, len(docs))
	g, gctx := errgroup.WithContext(ctx)
	for i, doc := range docs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			source, ok := sources[doc.DocumentName]
			if !ok {
				return fmt.Errorf("document %q not ingested: %w", doc.DocumentName, claim.ErrInvalidInput)
			}
			claims, err := e.extractor.ExtractFromDocument(source, doc.Claims)
			if err != nil {
				return err
			}
			extracted[i] = claims
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}

	order := make([]int, len(docs))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		return docs[order[a]].DocumentName < docs[order[b]].DocumentName
	})

	ledger := claim.NewLedger()
	for _, idx := range order {
		for _, c := range extracted[idx] {
			if err := ledger.Add(c); err != nil {
				return nil, fmt.Errorf("pipeline: %w", err)
			}
		}
	}

	artifact := claim.NewArtifact(ledger, sources)
	artifact.SessionID = sessionID

	res, err := e.run(ctx, artifact)
	if err != nil {
		return nil, err
	}
	res.Verified, res.Disputed = e.partition(artifact)
	return res, nil
}

// ExtractAndDetect runs extraction and contradiction detection only,
// skipping verification, auditing, gates, and repair. Used by the
// detect-contradictions surface, which wants the raw ledger.
func (e *Engine) ExtractAndDetect(ctx context.Context, docs []DocumentClaims, sources claim.SourceSet) (ledger *claim.Ledger, err error) {
	defer recoverToError(&err)

	ctx, cancel := context.WithTimeout(ctx, e.config.DetectTimeout)
	defer cancel()

	ledger = claim.NewLedger()
	for _, doc := range docs {
		source, ok := sources[doc.DocumentName]
		if !ok {
			return nil, fmt.Errorf("pipeline: document %q not ingested: %w", doc.DocumentName, claim.ErrInvalidInput)
		}
		claims, err := e.extractor.ExtractFromDocument(source, doc.Claims)
		if err != nil {
			return nil, fmt.Errorf("pipeline: %w", err)
		}
		for _, c := range claims {
			if err := ledger.Add(c); err != nil {
				return nil, fmt.Errorf("pipeline: %w", err)
			}
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	if _, err := e.detector.Detect(ledger); err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	return ledger, nil
}

// run executes the post-extraction stages over a populated artifact.
func (e *Engine) run(ctx context.Context, artifact *claim.Artifact) (*Result, error) {
	start := time.Now()
	result := &Result{Artifact: artifact}

	hallucinationRate := 0.0
	if err := e.verifyStage(ctx, artifact); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("pipeline: %w", err)
		}
		result.Warnings = append(result.Warnings, fmt.Sprintf("citation verification degraded: %v", err))
	}
	if err := e.detectStage(ctx, artifact); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("pipeline: %w", err)
		}
		result.Warnings = append(result.Warnings, fmt.Sprintf("contradiction detection degraded: %v", err))
	}
	rate, err := e.auditStage(ctx, artifact)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("pipeline: %w", err)
		}
		result.Warnings = append(result.Warnings, fmt.Sprintf("provenance audit degraded: %v", err))
	} else {
		hallucinationRate = rate
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	e.calibrator.CalibrateArtifact(artifact)

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	outcome := e.repairer.Repair(artifact)
	for attempt := 1; attempt < e.config.MaxRepairAttempts && outcome.Status == repair.StatusUnrepairable; attempt++ {
		outcome = e.repairer.Repair(artifact)
	}
	result.Repair = outcome
	result.Gates = outcome.After
	for _, entry := range outcome.Log {
		metrics.RecordRepair(ctx, entry.Gate, entry.Action)
	}

	// Only a structural violation makes the output unusable; quality
	// failures that survived repair ship in Errors for the caller to
	// weigh.
	result.Success = true
	for _, f := range outcome.After.Failures {
		if f.Name == gates.GateSchemaCompliance {
			result.Success = false
		}
		result.Errors = append(result.Errors, fmt.Sprintf("gate %s: %s", f.Name, f.Details))
	}
	for _, w := range outcome.After.Warnings {
		result.Warnings = append(result.Warnings, fmt.Sprintf("gate %s: %s", w.Name, w.Details))
	}

	if hallucinationRate > e.config.HallucinationThreshold {
		result.Success = false
		result.Errors = append(result.Errors,
			fmt.Sprintf("hallucination rate %.2f exceeds threshold %.2f",
				hallucinationRate, e.config.HallucinationThreshold))
	}

	result.Duration = time.Since(start)
	e.observe(result)
	e.log.Info("validation run complete",
		"session", artifact.SessionID,
		"claims", artifact.Ledger.Len(),
		"success", result.Success,
		"duration_ms", result.Duration.Milliseconds())
	return result, nil
}

// verifyStage checks every cited claim and records verdict summaries
// on the artifact.
func (e *Engine) verifyStage(ctx context.Context, artifact *claim.Artifact) error {
	ctx, cancel := context.WithTimeout(ctx, e.config.VerifyTimeout)
	defer cancel()

	claims := artifact.Ledger.SortedClaims()
	var cited []*claim.Claim
	var citations []*claim.Citation
	for _, c := range claims {
		if c.HasCitation() {
			cited = append(cited, c)
			citations = append(citations, c.Source.Citation)
		}
	}
	if len(citations) == 0 {
		return nil
	}

	report, err := e.verifier.BatchVerify(ctx, citations, artifact.Sources)
	if err != nil {
		return err
	}
	for i, verdict := range report.Results {
		artifact.CitationChecks[cited[i].ID] = claim.CitationCheck{
			Valid:     verdict.Valid,
			MatchType: string(verdict.MatchType),
			Score:     verdict.Score,
		}
	}
	return nil
}

// detectStage runs contradiction detection under its own deadline.
// Detection is CPU-bound, so the deadline is enforced by racing the
// synchronous pass against the context.
func (e *Engine) detectStage(ctx context.Context, artifact *claim.Artifact) error {
	ctx, cancel := context.WithTimeout(ctx, e.config.DetectTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		_, err := e.detector.Detect(artifact.Ledger)
		done <- err
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// auditStage audits every claim and returns the hallucination rate.
func (e *Engine) auditStage(ctx context.Context, artifact *claim.Artifact) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, e.config.AuditTimeout)
	defer cancel()

	claims := artifact.Ledger.SortedClaims()
	if len(claims) == 0 {
		return 0, nil
	}

	verdicts := make(map[string]*citation.Verdict, len(claims))
	for _, c := range claims {
		if chk, ok := artifact.CitationChecks[c.ID]; ok {
			verdicts[c.ID] = &citation.Verdict{
				Valid:     chk.Valid,
				MatchType: citation.MatchType(chk.MatchType),
				Score:     chk.Score,
			}
		}
	}

	report, err := e.auditor.BatchAudit(ctx, claims, artifact.Sources, verdicts)
	if err != nil {
		return 0, err
	}

	var hallucinated int
	for i, audit := range report.Audits {
		artifact.AuditChecks[claims[i].ID] = claim.AuditCheck{
			Score: audit.Score,
			Valid: audit.Valid,
		}
		for _, f := range audit.Findings {
			if f.Check == provenance.CheckHallucination {
				hallucinated++
				break
			}
		}
	}
	return float64(hallucinated) / float64(len(claims)), nil
}

// partition splits the ledger into verified and disputed claims for
// the document flow.
func (e *Engine) partition(artifact *claim.Artifact) (verified, disputed []*claim.Claim) {
	for _, c := range artifact.Ledger.SortedClaims() {
		if e.isDisputed(c, artifact) {
			disputed = append(disputed, c)
		} else {
			verified = append(verified, c)
		}
	}
	return verified, disputed
}

func (e *Engine) isDisputed(c *claim.Claim, artifact *claim.Artifact) bool {
	if c.Confidence < e.config.MinConfidence {
		return true
	}
	if chk, ok := artifact.CitationChecks[c.ID]; ok && !chk.Valid {
		return true
	}
	if chk, ok := artifact.AuditChecks[c.ID]; ok && !chk.Valid {
		return true
	}
	for _, id := range c.ContradictionIDs {
		if contra := artifact.Ledger.ContradictionByID(id); contra != nil && !contra.Resolved() {
			return true
		}
	}
	return false
}

// observe feeds the run's quality signals into the collector.
func (e *Engine) observe(result *Result) {
	if e.collector == nil {
		return
	}
	artifact := result.Artifact
	total := artifact.Ledger.Len()

	factRatio := 1.0
	if total > 0 {
		var factual int
		for _, c := range artifact.Ledger.Claims() {
			if chk, ok := artifact.CitationChecks[c.ID]; ok {
				if chk.Valid {
					factual++
				}
			} else if c.Origin == claim.OriginInferred {
				factual++
			}
		}
		factRatio = float64(factual) / float64(total)
	}

	contradictionRate := 0.0
	if total > 0 {
		contradictionRate = float64(len(artifact.Ledger.Contradictions())) / float64(total)
		if contradictionRate > 1 {
			contradictionRate = 1
		}
	}

	var passRate float64 = 1
	if n := len(artifact.AuditChecks); n > 0 {
		var passed int
		for _, chk := range artifact.AuditChecks {
			if chk.Valid {
				passed++
			}
		}
		passRate = float64(passed) / float64(n)
	}

	gateFailureRate := 0.0
	regulatoryAccuracy := 1.0
	if result.Gates != nil && len(result.Gates.Results) > 0 {
		var failed int
		for _, r := range result.Gates.Results {
			if !r.Passed {
				failed++
			}
			if r.Name == gates.GateRegulatoryFlags {
				regulatoryAccuracy = r.Score
			}
		}
		gateFailureRate = float64(failed) / float64(len(result.Gates.Results))
	}

	repairRate := 0.0
	if result.Repair != nil && len(result.Repair.Log) > 0 {
		repairRate = 1
	}

	// bufferAdherence tracks how much of the request budget the run
	// left unused.
	bufferAdherence := 1 - float64(result.Duration)/float64(e.config.RequestTimeout)
	if bufferAdherence < 0 {
		bufferAdherence = 0
	}

	e.collector.Record(metrics.Observation{
		FactRatio:          factRatio,
		CitationCoverage:   artifact.CitationCoverage(),
		ContradictionRate:  contradictionRate,
		ProvenanceScore:    artifact.AverageAuditScore() / 100,
		RepairRate:         repairRate,
		ValidationTimeMs:   float64(result.Duration.Milliseconds()),
		GateFailureRate:    gateFailureRate,
		RegulatoryAccuracy: regulatoryAccuracy,
		BufferAdherence:    bufferAdherence,
		AuditPassRate:      passRate,
	})

	confidences := make([]float64, 0, total)
	for _, c := range artifact.Ledger.Claims() {
		confidences = append(confidences, c.Confidence)
	}
	e.collector.RecordConfidence(confidences...)

	// Calibration accuracy compares each calibrated confidence with
	// the verifier's verdict on the claim's citation, the closest thing
	// a run has to ground truth. Claims without a verdict are skipped.
	var accSum float64
	var accN int
	for _, c := range artifact.Ledger.Claims() {
		chk, ok := artifact.CitationChecks[c.ID]
		if !ok {
			continue
		}
		observed := 0.0
		if chk.Valid {
			observed = 1.0
		}
		accSum += 1 - math.Abs(c.Confidence-observed)
		accN++
	}
	if accN > 0 {
		e.collector.RecordCalibrationAccuracy(accSum / float64(accN))
	}
}

// providerWeights folds TrustedProviders into the weight table.
// Explicit ProviderWeights entries take precedence.
func providerWeights(config Config) map[claim.Provider]float64 {
	if len(config.TrustedProviders) == 0 {
		return config.ProviderWeights
	}
	weights := make(map[claim.Provider]float64, len(config.TrustedProviders)+len(config.ProviderWeights))
	for _, p := range config.TrustedProviders {
		weights[p] = 1.0
	}
	for p, w := range config.ProviderWeights {
		weights[p] = w
	}
	return weights
}

// recoverToError converts a stage panic into a returned error so a
// malformed input can never take down the caller.
func recoverToError(err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("pipeline: internal error: %v", r)
	}
}

// IsInvalidInput reports whether the error traces back to rejected
// caller input, which callers map to a 400 rather than a 500.
func IsInvalidInput(err error) bool {
	return errors.Is(err, claim.ErrInvalidInput)
}
