// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package diffvector

// SubsetGenerator enumerates every subset of [0, n) with cardinality
// at most m, in the canonical order described by spec.md §4.4: the
// empty subset first, then every non-empty subset of size ≤ m.
//
// This is a hand-rolled state machine rather than a recursive
// generator — Go has no first-class coroutines, so a resumable
// generator needs explicit (j, r) state carried across calls to
// Next (spec.md §9: "Coroutine/async control: not needed").
//
// The output length is Σ_{i=0..m} C(n, i).
type SubsetGenerator struct {
	n, m      int
	j         []int
	started   bool
	exhausted bool
}

// NewSubsetGenerator returns a generator over [0, n) bounded to
// subsets of cardinality at most m.
func NewSubsetGenerator(n, m int) *SubsetGenerator {
	if m > n {
		m = n
	}
	return &SubsetGenerator{n: n, m: m}
}

// Next returns the next subset (ascending term indices) in canonical
// order, and false once every subset has been emitted.
func (g *SubsetGenerator) Next() ([]int, bool) {
	if g.exhausted {
		return nil, false
	}
	if !g.started {
		g.started = true
		return cloneInts(g.j), true // empty subset, emitted first
	}

	if len(g.j) < g.m && (len(g.j) == 0 || g.j[len(g.j)-1] < g.n-1) {
		// Extend rule: grow the subset by one more index.
		next := 0
		if len(g.j) > 0 {
			next = g.j[len(g.j)-1] + 1
		}
		g.j = append(g.j, next)
		return cloneInts(g.j), true
	}

	// Reduce rule: pop every maxed-out tail element, then advance
	// the new tail. Terminate if popping empties the subset.
	for len(g.j) > 0 && g.j[len(g.j)-1] == g.n-1 {
		g.j = g.j[:len(g.j)-1]
	}
	if len(g.j) == 0 {
		g.exhausted = true
		return nil, false
	}
	g.j[len(g.j)-1]++
	return cloneInts(g.j), true
}

func cloneInts(s []int) []int {
	out := make([]int, len(s))
	copy(out, s)
	return out
}

// CountSubsets returns Σ_{i=0..m} C(n, i), the expected output length.
func CountSubsets(n, m int) int {
	total := 0
	c := 1 // C(n, 0)
	for i := 0; i <= m && i <= n; i++ {
		total += c
		c = c * (n - i) / (i + 1)
	}
	return total
}
