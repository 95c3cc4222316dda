// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package itemindex provides the deterministic mapping between stable
// external term/item identifiers and the dense internal indices used
// throughout the engine, plus the sorted-by-name view external
// callers see.
//
// Two orderings are maintained (spec.md §4.2):
//
//   - Internal item order: the iteration order of the annotation
//     source at setup time, fixed for the engine's lifetime.
//   - External term order: terms sorted case-insensitively by name,
//     for presentation to users. All public APIs speak sorted-space;
//     conversion to/from internal-space happens only at this
//     package's boundary.
package itemindex

import (
	"sort"
	"strings"

	"github.com/openboqa/boqa/services/boqa/ontology"
)

// ItemID is a dense index into the item catalogue, in [0, N).
type ItemID int

// Index holds the term sort permutation and the item name table.
//
// Thread Safety: Index is immutable after Build and safe for
// unsynchronized concurrent reads.
type Index struct {
	slim *ontology.Slim

	sortedToInternal []ontology.TermID
	internalToSorted []int

	itemNames []string
	itemByName map[string]ItemID
}

// Build constructs an Index over slim's terms and the given item
// names, which must already be in internal (annotation source
// iteration) order.
func Build(slim *ontology.Slim, itemNames []string) *Index {
	n := slim.NumberOfVertices()
	sortedToInternal := make([]ontology.TermID, n)
	for i := 0; i < n; i++ {
		sortedToInternal[i] = ontology.TermID(i)
	}
	sort.SliceStable(sortedToInternal, func(i, j int) bool {
		a := slim.TermAtIndex(sortedToInternal[i])
		b := slim.TermAtIndex(sortedToInternal[j])
		an, bn := strings.ToLower(a.Name), strings.ToLower(b.Name)
		if an != bn {
			return an < bn
		}
		return a.ExternalID < b.ExternalID
	})

	internalToSorted := make([]int, n)
	for sortedIdx, internalID := range sortedToInternal {
		internalToSorted[internalID] = sortedIdx
	}

	byName := make(map[string]ItemID, len(itemNames))
	for i, name := range itemNames {
		byName[name] = ItemID(i)
	}

	return &Index{
		slim:             slim,
		sortedToInternal: sortedToInternal,
		internalToSorted: internalToSorted,
		itemNames:        append([]string(nil), itemNames...),
		itemByName:       byName,
	}
}

// NumberOfTerms returns the count of terms whose name or external ID
// contains pattern (case-insensitive substring match). With an empty
// pattern it returns the total term count.
func (idx *Index) NumberOfTerms(pattern string) int {
	return len(idx.filterTerms(pattern))
}

// Terms returns, in sorted order, the terms whose name or external ID
// matches pattern (case-insensitive substring; empty matches all).
func (idx *Index) Terms(pattern string) []ontology.Term {
	sortedIdx := idx.filterTerms(pattern)
	out := make([]ontology.Term, len(sortedIdx))
	for i, si := range sortedIdx {
		out[i] = idx.slim.TermAtIndex(idx.sortedToInternal[si])
	}
	return out
}

func (idx *Index) filterTerms(pattern string) []int {
	pattern = strings.ToLower(pattern)
	out := make([]int, 0, len(idx.sortedToInternal))
	for sortedIdx, internalID := range idx.sortedToInternal {
		term := idx.slim.TermAtIndex(internalID)
		if pattern == "" || strings.Contains(strings.ToLower(term.Name), pattern) ||
			strings.Contains(strings.ToLower(term.ExternalID), pattern) {
			out = append(out, sortedIdx)
		}
	}
	return out
}

// TermAt returns the Term at the given sorted-space index.
func (idx *Index) TermAt(sortedIdx int) ontology.Term {
	return idx.slim.TermAtIndex(idx.sortedToInternal[sortedIdx])
}

// IDOfTerm returns the sorted-space index of t.
func (idx *Index) IDOfTerm(t ontology.Term) int {
	return idx.internalToSorted[t.ID]
}

// ToInternal converts a sorted-space term index to the internal dense
// ontology.TermID used by every other package.
func (idx *Index) ToInternal(sortedIdx int) ontology.TermID {
	return idx.sortedToInternal[sortedIdx]
}

// ToSorted converts an internal ontology.TermID to its sorted-space index.
func (idx *Index) ToSorted(t ontology.TermID) int {
	return idx.internalToSorted[t]
}

// ItemName returns the external name of the given internal item index.
func (idx *Index) ItemName(item ItemID) string { return idx.itemNames[item] }

// ItemByName returns the internal index of the item with the given
// external name, and false if no such item exists.
func (idx *Index) ItemByName(name string) (ItemID, bool) {
	id, ok := idx.itemByName[name]
	return id, ok
}

// NumberOfItems returns N, the size of the item catalogue.
func (idx *Index) NumberOfItems() int { return len(idx.itemNames) }
