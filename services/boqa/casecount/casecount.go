// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package casecount classifies each ontology term's (hidden, observed)
// state into a NodeCase, maintains the resulting 7-slot count vector
// under incremental hidden-state flips, and turns a count vector into
// a log-likelihood under a noise model (spec.md §4.5).
package casecount

import (
	"context"
	"log/slog"
	"math"

	"github.com/openboqa/boqa/services/boqa/obsv"
	"github.com/openboqa/boqa/services/boqa/ontology"
)

var negInf = math.Inf(-1)

func log(x float64) float64 { return math.Log(x) }

// NodeCase classifies a single term under a given (hidden, observed) pair.
type NodeCase int

const (
	// Fault marks an impossible (H, O) combination under the active
	// inheritance propagation rules. Its contribution is skipped
	// rather than aborting the run (spec.md §7, §9 open question).
	Fault NodeCase = iota
	TruePositive
	FalsePositive
	TrueNegative
	FalseNegative
	InheritTrue
	InheritFalse

	numCases = int(InheritFalse) + 1
)

func (c NodeCase) String() string {
	switch c {
	case Fault:
		return "FAULT"
	case TruePositive:
		return "TRUE_POSITIVE"
	case FalsePositive:
		return "FALSE_POSITIVE"
	case TrueNegative:
		return "TRUE_NEGATIVE"
	case FalseNegative:
		return "FALSE_NEGATIVE"
	case InheritTrue:
		return "INHERIT_TRUE"
	case InheritFalse:
		return "INHERIT_FALSE"
	default:
		return "UNKNOWN"
	}
}

// Propagation selects which inheritance-propagation directions are active.
type Propagation struct {
	// FalsePositives enables propagation of observed-true status up
	// to parents: a term with an observed-true child is expected to
	// also be observed-true (VARIANT_INHERITANCE_POSITIVES upstream).
	FalsePositives bool
	// FalseNegatives enables propagation of observed-false status down
	// to children: a term with an observed-false parent is expected
	// to also be observed-false (VARIANT_INHERITANCE_NEGATIVES).
	FalseNegatives bool
}

// DefaultPropagation matches the spec's default model: FALSE_NEGATIVE
// propagation enabled, FALSE_POSITIVE propagation disabled.
var DefaultPropagation = Propagation{FalseNegatives: true}

// BothDirectionsActive reports whether both propagation rules are
// enabled simultaneously, the case that requires the conservative
// multi-node recompute on flip (spec.md §4.5, §9).
func (p Propagation) BothDirectionsActive() bool { return p.FalsePositives && p.FalseNegatives }

// GetNodeCase classifies term t given the hidden vector h and observed
// vector o, under slim's parent/child structure and the active
// propagation rules.
func GetNodeCase(slim *ontology.Slim, prop Propagation, t ontology.TermID, h, o *ontology.BitSet) NodeCase {
	if prop.FalsePositives && anyChildObservedTrue(slim, t, o) {
		if o.Test(int(t)) {
			return InheritTrue
		}
		return Fault
	}
	if prop.FalseNegatives && anyParentObservedFalse(slim, t, o) {
		if !o.Test(int(t)) {
			return InheritFalse
		}
		return Fault
	}
	switch {
	case h.Test(int(t)) && o.Test(int(t)):
		return TruePositive
	case h.Test(int(t)) && !o.Test(int(t)):
		return FalseNegative
	case !h.Test(int(t)) && !o.Test(int(t)):
		return TrueNegative
	default:
		return FalsePositive
	}
}

func anyChildObservedTrue(slim *ontology.Slim, t ontology.TermID, o *ontology.BitSet) bool {
	for _, child := range slim.ChildrenOf(t) {
		if o.Test(int(child)) {
			return true
		}
	}
	return false
}

func anyParentObservedFalse(slim *ontology.Slim, t ontology.TermID, o *ontology.BitSet) bool {
	for _, parent := range slim.ParentsOf(t) {
		if !o.Test(int(parent)) {
			return true
		}
	}
	return false
}

// Counts is the 7-slot tally of NodeCases across every term in an
// ontology for a fixed (H, O) pair. The invariant sum(Counts) == T
// holds at every point reachable through NewCounts or Flip.
type Counts [numCases]int

// NewCounts computes the count vector from scratch by classifying
// every term in slim against h and o.
func NewCounts(ctx context.Context, slim *ontology.Slim, prop Propagation, h, o *ontology.BitSet, logger *slog.Logger) Counts {
	if logger == nil {
		logger = slog.Default()
	}
	var c Counts
	for t := 0; t < slim.NumberOfVertices(); t++ {
		nc := GetNodeCase(slim, prop, ontology.TermID(t), h, o)
		if nc == Fault {
			obsv.NumericFaultsTotal.Inc()
			logger.WarnContext(ctx, "numeric fault: impossible H/O combination",
				"term", slim.TermAtIndex(ontology.TermID(t)).ExternalID)
		}
		c[nc]++
	}
	return c
}

// Flip toggles h[t] and incrementally updates c to match, per the
// spec's hot-path invariant: decrement t's case under the current H,
// toggle, increment under the new H. When both propagation directions
// are active this also recomputes t's parents (FN-propagation) and
// children (FP-propagation), the conservative rule §4.5/§9 mandates
// for that configuration.
func Flip(ctx context.Context, slim *ontology.Slim, prop Propagation, t ontology.TermID, h, o *ontology.BitSet, c *Counts, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}

	affected := []ontology.TermID{t}
	if prop.BothDirectionsActive() {
		affected = append(affected, slim.ParentsOf(t)...)
		affected = append(affected, slim.ChildrenOf(t)...)
	}

	before := make(map[ontology.TermID]NodeCase, len(affected))
	for _, u := range affected {
		before[u] = GetNodeCase(slim, prop, u, h, o)
	}

	h.Flip(int(t))

	for _, u := range affected {
		prevCase := before[u]
		c[prevCase]--

		newCase := GetNodeCase(slim, prop, u, h, o)
		if newCase == Fault {
			obsv.NumericFaultsTotal.Inc()
			logger.WarnContext(ctx, "numeric fault: impossible H/O combination after flip",
				"term", slim.TermAtIndex(u).ExternalID)
		}
		c[newCase]++
	}
}

// ApplyDiff flips every term named in on and off against observed
// vector o, incrementally updating c to match, via repeated calls to
// Flip. on and off are assumed disjoint, as produced by diffvector's
// sorted-merge and subset-generator deltas.
func ApplyDiff(ctx context.Context, slim *ontology.Slim, prop Propagation, on, off []ontology.TermID, h, o *ontology.BitSet, c *Counts, logger *slog.Logger) {
	for _, t := range on {
		Flip(ctx, slim, prop, t, h, o, c, logger)
	}
	for _, t := range off {
		Flip(ctx, slim, prop, t, h, o, c, logger)
	}
}

// LogLikelihood computes ℓ(c; α, β) = c_FN·logβ + c_FP·logα +
// c_TP·log(1−β) + c_TN·log(1−α). INHERIT_* and FAULT slots contribute 0.
func (c Counts) LogLikelihood(alpha, beta float64) float64 {
	return weightedLog(c[FalseNegative], beta) +
		weightedLog(c[FalsePositive], alpha) +
		weightedLog(c[TruePositive], 1-beta) +
		weightedLog(c[TrueNegative], 1-alpha)
}

// weightedLog returns n*log(x), treating n == 0 as contributing
// exactly 0 regardless of x — avoiding the 0 * -Inf = NaN case that
// would otherwise arise whenever alpha or beta sits at a grid
// boundary of 0 or 1.
func weightedLog(n int, x float64) float64 {
	if n == 0 {
		return 0
	}
	if x <= 0 {
		return float64(n) * negInf
	}
	return float64(n) * log(x)
}
