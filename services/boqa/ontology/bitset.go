// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ontology

import "math/bits"

// BitSet is a fixed-size, word-packed boolean vector over term indices
// in [0, n). It backs the Hidden (H) and Observed (O) state vectors
// used throughout the inference engine, and the ancestor/descendant
// closures stored per term.
type BitSet struct {
	words []uint64
	n     int
}

// NewBitSet returns an all-clear BitSet sized for n elements.
func NewBitSet(n int) BitSet {
	return BitSet{words: make([]uint64, (n+63)/64), n: n}
}

// Len returns the number of addressable bits.
func (b BitSet) Len() int { return b.n }

// Set turns bit i on.
func (b BitSet) Set(i int) { b.words[i/64] |= 1 << uint(i%64) }

// Clear turns bit i off.
func (b BitSet) Clear(i int) { b.words[i/64] &^= 1 << uint(i%64) }

// Test reports whether bit i is on.
func (b BitSet) Test(i int) bool { return b.words[i/64]&(1<<uint(i%64)) != 0 }

// Flip toggles bit i and returns its new value.
func (b BitSet) Flip(i int) bool {
	b.words[i/64] ^= 1 << uint(i%64)
	return b.Test(i)
}

// Union sets every bit that is set in other.
func (b BitSet) Union(other BitSet) {
	for i := range b.words {
		b.words[i] |= other.words[i]
	}
}

// ClearAll turns every bit off in place.
func (b BitSet) ClearAll() {
	for i := range b.words {
		b.words[i] = 0
	}
}

// Clone returns an independent copy.
func (b BitSet) Clone() BitSet {
	c := BitSet{words: make([]uint64, len(b.words)), n: b.n}
	copy(c.words, b.words)
	return c
}

// Count returns the number of set bits.
func (b BitSet) Count() int {
	c := 0
	for _, w := range b.words {
		c += bits.OnesCount64(w)
	}
	return c
}

// Sorted returns the ascending list of set bit indices as TermID.
func (b BitSet) Sorted() []TermID {
	out := make([]TermID, 0, b.Count())
	for wi, w := range b.words {
		for w != 0 {
			tz := bits.TrailingZeros64(w)
			out = append(out, TermID(wi*64+tz))
			w &= w - 1
		}
	}
	return out
}

// SetTermIDs sets every bit named in ids.
func (b BitSet) SetTermIDs(ids []TermID) {
	for _, t := range ids {
		b.Set(int(t))
	}
}

// ClearTermIDs clears every bit named in ids.
func (b BitSet) ClearTermIDs(ids []TermID) {
	for _, t := range ids {
		b.Clear(int(t))
	}
}
