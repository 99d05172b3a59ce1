// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package contradiction

import (
	"fmt"
	"math"

	"github.com/AleutianAI/veracity/services/engine/claim"
)

// Strategy names recorded on resolutions, one per matrix rule.
const (
	StrategyExplicitOverInferred = "EXPLICIT_OVER_INFERRED"
	StrategyConfidenceDominance  = "CONFIDENCE_DOMINANCE"
	StrategyAuthority            = "REGULATORY_AUTHORITY"
	StrategyManualReview         = "MANUAL_REVIEW"
	StrategyDefault              = "AVERAGE_OR_FLAG"
)

// confidenceDominanceGap is the confidence difference above which the
// higher-confidence claim wins outright.
const confidenceDominanceGap = 0.2

// Resolve runs the resolution matrix over one contradicting pair.
// Rules are applied top-down; the first that applies decides. Resolve
// only recommends: it never mutates the claims, and it never sets
// resolvedAt. Applying the recommendation is the repair engine's job.
func Resolve(a, b *claim.Claim, severity claim.Severity) *claim.Resolution {
	// Explicit beats inferred.
	if a.Origin != b.Origin {
		winner := a
		if b.Origin == claim.OriginExplicit {
			winner = b
		}
		return &claim.Resolution{
			PreferredClaim: winner.ID,
			Action:         claim.ActionAcceptExplicit,
			Strategy:       StrategyExplicitOverInferred,
			Rationale:      "explicit claim preferred over inferred",
		}
	}

	// Confidence dominance.
	if math.Abs(a.Confidence-b.Confidence) > confidenceDominanceGap {
		winner := a
		if b.Confidence > a.Confidence {
			winner = b
		}
		return &claim.Resolution{
			PreferredClaim: winner.ID,
			Action:         claim.ActionAcceptHigher,
			Strategy:       StrategyConfidenceDominance,
			Rationale:      fmt.Sprintf("confidence gap %.2f exceeds %.2f", math.Abs(a.Confidence-b.Confidence), confidenceDominanceGap),
		}
	}

	// Authority: exactly one side cites a regulatory source.
	regA := IsRegulatorySource(a.Source.DocumentName)
	regB := IsRegulatorySource(b.Source.DocumentName)
	if regA != regB {
		winner := a
		if regB {
			winner = b
		}
		return &claim.Resolution{
			PreferredClaim: winner.ID,
			Action:         claim.ActionAcceptRegulatory,
			Strategy:       StrategyAuthority,
			Rationale:      fmt.Sprintf("regulatory source %s is authoritative", winner.Source.DocumentName),
		}
	}

	// High severity with no clear winner goes to a human.
	if severity == claim.SeverityHigh {
		return &claim.Resolution{
			Action:    claim.ActionFlagBothForReview,
			Strategy:  StrategyManualReview,
			Rationale: "high severity with no clear winner",
		}
	}

	return &claim.Resolution{
		Action:    claim.ActionAverageOrFlag,
		Strategy:  StrategyDefault,
		Rationale: "no matrix rule preferred either claim",
	}
}
