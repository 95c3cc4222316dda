// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ontology builds the "slim" dense, index-based view of an
// ontology DAG used by the BOQA inference engine: parents, children,
// ancestor/descendant closures, a fixed topological order and
// per-term information content.
package ontology

import (
	"context"
	"math"
)

// TermID is a dense index into the ontology's term arrays, in [0, T).
type TermID int

// Term is a single vertex of the ontology DAG: a stable external
// identifier and a display name. Terms are immutable once built.
type Term struct {
	ID   TermID
	ExternalID string
	Name       string
}

// TermRecord is the shape an OntologySource (services/boqa/ontology's
// sole external collaborator) supplies per vertex.
type TermRecord struct {
	ID      string
	Name    string
	Parents []string
}

// OntologySource supplies ontology vertices to Build. OBO parsing,
// downloading, or any other acquisition mechanism lives outside this
// package — Build only needs the sequence of (id, name, parents).
type OntologySource interface {
	Terms(ctx context.Context) ([]TermRecord, error)
}

// Slim is a read-only, dense-array view of an ontology DAG.
//
// Thread Safety: Slim is immutable after Build returns and is safe for
// unsynchronized concurrent reads from any number of goroutines.
//
// Ownership: Slim owns all of its backing arrays; accessors return
// slices into that backing storage — callers must not mutate them.
type Slim struct {
	terms   []Term
	byExt   map[string]TermID
	parents []BitSet
	children []BitSet
	ancestors   []BitSet
	descendants []BitSet
	topoOrder []TermID
	topoRank  []int
	ic        []float64

	parentsSorted     [][]TermID
	childrenSorted    [][]TermID
	ancestorsSorted   [][]TermID
	descendantsSorted [][]TermID
}

// NumberOfVertices returns T, the number of terms in the ontology.
func (s *Slim) NumberOfVertices() int { return len(s.terms) }

// TermAtIndex returns the Term stored at the given dense index.
func (s *Slim) TermAtIndex(t TermID) Term { return s.terms[t] }

// IndexOfTerm returns the dense index of the term with the given
// external identifier, and false if it is not present.
func (s *Slim) IndexOfTerm(externalID string) (TermID, bool) {
	id, ok := s.byExt[externalID]
	return id, ok
}

// ParentsOf returns the sorted dense indices of t's direct parents.
func (s *Slim) ParentsOf(t TermID) []TermID { return s.parentsSorted[t] }

// ChildrenOf returns the sorted dense indices of t's direct children.
func (s *Slim) ChildrenOf(t TermID) []TermID { return s.childrenSorted[t] }

// AncestorsOf returns the sorted strict ancestors of t (t excluded).
func (s *Slim) AncestorsOf(t TermID) []TermID { return s.ancestorsSorted[t] }

// DescendantsOf returns the sorted strict descendants of t (t excluded).
func (s *Slim) DescendantsOf(t TermID) []TermID { return s.descendantsSorted[t] }

// TopologicalOrder returns the fixed topological order computed at
// construction (parents before children).
func (s *Slim) TopologicalOrder() []TermID { return s.topoOrder }

// TopologicalRank returns t's position in TopologicalOrder.
func (s *Slim) TopologicalRank(t TermID) int { return s.topoRank[t] }

// IC returns the information content of t: -log(|items annotated to
// t| / N). Populated by SetInformationContent after annotation load,
// since IC depends on the annotation corpus, not the DAG alone.
func (s *Slim) IC(t TermID) float64 { return s.ic[t] }

// IsDescendant reports whether b is a (strict) descendant of a.
func (s *Slim) IsDescendant(a, b TermID) bool { return s.ancestors[b].Test(int(a)) }

// IsAncestor reports whether b is a (strict) ancestor of a.
func (s *Slim) IsAncestor(a, b TermID) bool { return s.ancestors[a].Test(int(b)) }

// SetInformationContent stores the precomputed IC array. count[t] is
// the number of items directly-or-transitively annotated to t; total
// is the catalogue size N.
func (s *Slim) SetInformationContent(count []int, total int) {
	ic := make([]float64, len(s.terms))
	for t, c := range count {
		if c <= 0 || total <= 0 {
			ic[t] = 0
			continue
		}
		ic[t] = -math.Log(float64(c) / float64(total))
	}
	s.ic = ic
}

// InducedSet returns the induced term set for a collection of terms:
// the union of {t} ∪ ancestors(t) over all t in terms, sorted. The
// induced set of a term includes the term itself (spec convention).
func (s *Slim) InducedSet(terms []TermID) []TermID {
	bs := NewBitSet(len(s.terms))
	for _, t := range terms {
		bs.Set(int(t))
		bs.Union(s.ancestors[t])
	}
	return bs.Sorted()
}
