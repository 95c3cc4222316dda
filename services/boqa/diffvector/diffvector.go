// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package diffvector precomputes, for each item in the catalogue, the
// incremental additions and removals to the hidden-state vector
// needed to move from one item's induced term set to the next
// (spec.md §4.4). In plain mode this is a single diff per item; in
// frequency-weighted mode it is one diff per enumerated hidden
// configuration, plus that configuration's log-space prior factor.
package diffvector

import (
	"math"

	"github.com/openboqa/boqa/services/boqa/annotation"
	"github.com/openboqa/boqa/services/boqa/itemindex"
	"github.com/openboqa/boqa/services/boqa/ontology"
)

// DefaultMaxFrequencyTerms bounds how many of an item's frequency-
// weighted direct terms are treated as independently configurable.
// Terms beyond this cap (and every term with frequency == 1.0) are
// folded into the item's mandatory set, bounding the per-item
// configuration count at 2^DefaultMaxFrequencyTerms.
const DefaultMaxFrequencyTerms = 8

// PlainVector holds the single hidden-state delta that carries the
// marginalization from the previous item to this one, under the
// no-frequency-weighting model.
type PlainVector struct {
	DiffOn  []ontology.TermID
	DiffOff []ontology.TermID
}

// Configuration is one enumerated hidden-state configuration for a
// frequency-weighted item: the delta from the previous configuration
// of the same item (or, for the first configuration, from the empty
// vector), plus the log-space prior mass of that configuration.
type Configuration struct {
	DiffOn  []ontology.TermID
	DiffOff []ontology.TermID
	// Factor is Σ log(f_j) over taken variable terms plus Σ log(1-f_j)
	// over untaken variable terms. Mandatory terms contribute nothing
	// (they are deterministically present).
	Factor float64
}

// Table holds the precomputed diff vectors for the whole catalogue.
//
// Thread Safety: immutable after Build; safe for concurrent reads.
type Table struct {
	weighted bool

	plain []PlainVector // len N, indexed by item; nil unless !weighted

	configs [][]Configuration // len N, indexed by item; nil unless weighted
}

// Weighted reports whether this table was built in frequency-weighted mode.
func (t *Table) Weighted() bool { return t.weighted }

// Plain returns item i's single diff vector. Valid only when !Weighted().
func (t *Table) Plain(item int) PlainVector { return t.plain[item] }

// Configurations returns item i's enumerated configuration sequence.
// Valid only when Weighted().
func (t *Table) Configurations(item int) []Configuration { return t.configs[item] }

// Build computes diff vectors for every item in table against slim.
// When maxFrequencyTerms <= 0, the plain (non-weighted) model is used
// regardless of whether items carry explicit frequencies.
func Build(slim *ontology.Slim, table *annotation.Table, maxFrequencyTerms int) *Table {
	if maxFrequencyTerms <= 0 {
		return buildPlain(table)
	}
	return buildWeighted(slim, table, maxFrequencyTerms)
}

func buildPlain(table *annotation.Table) *Table {
	n := table.NumberOfItems()
	out := &Table{plain: make([]PlainVector, n)}

	var prevInduced []ontology.TermID
	for i := 0; i < n; i++ {
		induced := table.Row(itemindex.ItemID(i)).InducedTerms
		on, off := sortedDiff(prevInduced, induced)
		out.plain[i] = PlainVector{DiffOn: on, DiffOff: off}
		prevInduced = induced
	}
	return out
}

func buildWeighted(slim *ontology.Slim, table *annotation.Table, maxFrequencyTerms int) *Table {
	n := table.NumberOfItems()
	out := &Table{weighted: true, configs: make([][]Configuration, n)}

	for i := 0; i < n; i++ {
		out.configs[i] = itemConfigurations(slim, table.Row(itemindex.ItemID(i)), maxFrequencyTerms)
	}
	return out
}

// itemConfigurations enumerates every hidden-state configuration for
// one item's direct terms, splitting them into a mandatory set (all
// terms with frequency == 1.0, plus any frequency-bearing terms
// beyond the cap) and a variable set (up to maxFrequencyTerms of the
// lowest-frequency direct terms), per spec.md §4.4's kᵢ = min(cap,
// count(frequency < 1)) rule.
func itemConfigurations(slim *ontology.Slim, row annotation.Row, maxFrequencyTerms int) []Configuration {
	variableIdx := make([]int, 0, len(row.DirectTerms))
	for _, orderIdx := range row.FrequencyOrder {
		if row.HasExplicitFrequency[orderIdx] {
			variableIdx = append(variableIdx, orderIdx)
		}
	}
	if len(variableIdx) > maxFrequencyTerms {
		variableIdx = variableIdx[:maxFrequencyTerms]
	}
	isVariable := make(map[int]bool, len(variableIdx))
	for _, idx := range variableIdx {
		isVariable[idx] = true
	}

	var mandatory []ontology.TermID
	for idx, term := range row.DirectTerms {
		if !isVariable[idx] {
			mandatory = append(mandatory, term)
		}
	}

	k := len(variableIdx)
	gen := NewSubsetGenerator(k, k)
	count := CountSubsets(k, k)
	configs := make([]Configuration, 0, count)

	var prevHidden []ontology.TermID
	for {
		taken, ok := gen.Next()
		if !ok {
			break
		}

		takenSet := make(map[int]bool, len(taken))
		for _, pos := range taken {
			takenSet[pos] = true
		}

		present := make([]ontology.TermID, 0, len(mandatory)+len(taken))
		present = append(present, mandatory...)
		factor := 0.0
		for pos, idx := range variableIdx {
			f := row.TermFrequencies[idx]
			if takenSet[pos] {
				present = append(present, row.DirectTerms[idx])
				factor += math.Log(f)
			} else {
				factor += math.Log(1 - f)
			}
		}

		hidden := slim.InducedSet(present)
		on, off := sortedDiff(prevHidden, hidden)
		configs = append(configs, Configuration{DiffOn: on, DiffOff: off, Factor: factor})
		prevHidden = hidden
	}
	return configs
}

// sortedDiff computes the added (on) and removed (off) elements
// moving from sorted slice a to sorted slice b via a single linear
// merge pass.
func sortedDiff(a, b []ontology.TermID) (on, off []ontology.TermID) {
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			i++
			j++
		case a[i] < b[j]:
			off = append(off, a[i])
			i++
		default:
			on = append(on, b[j])
			j++
		}
	}
	off = append(off, a[i:]...)
	on = append(on, b[j:]...)
	return on, off
}
