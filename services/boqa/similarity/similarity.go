// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package similarity implements classical ontology term-similarity
// measures (Resnik, Lin, Jiang-Conrath) over the same Slim and
// information-content data C1/C6 already maintain. It is peripheral
// to ranking proper: BOQA scores items by posterior probability, not
// by similarity, but the measures are cheap to derive from the same
// ancestor closures and give callers a second, non-probabilistic lens
// on term relatedness.
package similarity

import (
	"math"
	"sync"

	"github.com/openboqa/boqa/services/boqa/ontology"
)

// Measure selects one of the three classical information-content
// similarity formulas.
type Measure int

const (
	Resnik Measure = iota
	Lin
	JiangConrath
)

// Scorer computes term-term and item-level similarity against a
// fixed Slim and Measure, caching each item's per-term maximum
// similarity since that value is reused across repeated queries
// against the same catalogue.
//
// Thread Safety: safe for concurrent TermSim calls; the per-item
// cache is guarded by mu.
type Scorer struct {
	slim    *ontology.Slim
	measure Measure

	mu       sync.RWMutex
	maxCache map[cacheKey]float64
}

type cacheKey struct {
	item int
	term ontology.TermID
}

// New returns a Scorer for the given ontology and measure.
func New(slim *ontology.Slim, measure Measure) *Scorer {
	return &Scorer{slim: slim, measure: measure, maxCache: make(map[cacheKey]float64)}
}

// TermSim computes the similarity between terms a and b under the
// configured measure. It finds the most informative common ancestor
// (the ancestor, including a or b themselves, with highest IC) and
// applies the Resnik/Lin/Jiang-Conrath formula over its IC and the
// two terms' own IC values.
func (s *Scorer) TermSim(a, b ontology.TermID) float64 {
	var micaIC float64
	if a == b {
		micaIC = s.slim.IC(a)
	} else {
		micaIC = s.mostInformativeCommonAncestorIC(a, b)
	}

	switch s.measure {
	case Resnik:
		return micaIC
	case Lin:
		denom := s.slim.IC(a) + s.slim.IC(b)
		if denom <= 0 {
			return 0
		}
		return 2 * micaIC / denom
	case JiangConrath:
		distance := s.slim.IC(a) + s.slim.IC(b) - 2*micaIC
		if distance <= 0 {
			return 1
		}
		return 1 / (1 + distance)
	default:
		return micaIC
	}
}

// mostInformativeCommonAncestorIC returns the highest IC among terms
// that are ancestors-or-self of both a and b.
func (s *Scorer) mostInformativeCommonAncestorIC(a, b ontology.TermID) float64 {
	inA := ancestorSelfSet(s.slim, a)
	best := math.Inf(-1)
	found := false
	for _, t := range ancestorSelfSorted(s.slim, b) {
		if !inA[t] {
			continue
		}
		if ic := s.slim.IC(t); !found || ic > best {
			best = ic
			found = true
		}
	}
	if !found {
		return 0
	}
	return best
}

func ancestorSelfSet(slim *ontology.Slim, t ontology.TermID) map[ontology.TermID]bool {
	set := make(map[ontology.TermID]bool, len(slim.AncestorsOf(t))+1)
	set[t] = true
	for _, a := range slim.AncestorsOf(t) {
		set[a] = true
	}
	return set
}

func ancestorSelfSorted(slim *ontology.Slim, t ontology.TermID) []ontology.TermID {
	out := make([]ontology.TermID, 0, len(slim.AncestorsOf(t))+1)
	out = append(out, t)
	out = append(out, slim.AncestorsOf(t)...)
	return out
}

// MaxSimilarityToItem returns the highest TermSim between term and
// any term in itemTerms, caching the result per (item, term) pair.
// item is an opaque caller-assigned identifier (typically an
// itemindex.ItemID int) used only as a cache key.
func (s *Scorer) MaxSimilarityToItem(item int, term ontology.TermID, itemTerms []ontology.TermID) float64 {
	key := cacheKey{item: item, term: term}

	s.mu.RLock()
	if v, ok := s.maxCache[key]; ok {
		s.mu.RUnlock()
		return v
	}
	s.mu.RUnlock()

	best := 0.0
	for i, t := range itemTerms {
		sim := s.TermSim(term, t)
		if i == 0 || sim > best {
			best = sim
		}
	}

	s.mu.Lock()
	s.maxCache[key] = best
	s.mu.Unlock()
	return best
}
