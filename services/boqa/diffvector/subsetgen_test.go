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

import (
	"fmt"
	"testing"
)

func TestSubsetGenerator_CountMatchesBinomialSum(t *testing.T) {
	for n := 0; n <= 6; n++ {
		for m := 0; m <= n; m++ {
			gen := NewSubsetGenerator(n, m)
			got := 0
			for {
				_, ok := gen.Next()
				if !ok {
					break
				}
				got++
			}
			want := CountSubsets(n, m)
			if got != want {
				t.Errorf("n=%d m=%d: emitted %d subsets, want %d", n, m, got, want)
			}
		}
	}
}

func TestSubsetGenerator_EmptyFirstAndNoDuplicates(t *testing.T) {
	gen := NewSubsetGenerator(4, 2)
	seen := make(map[string]bool)
	first := true
	for {
		subset, ok := gen.Next()
		if !ok {
			break
		}
		if first {
			if len(subset) != 0 {
				t.Fatalf("first emitted subset = %v, want empty", subset)
			}
			first = false
		}
		if len(subset) > 2 {
			t.Fatalf("subset %v exceeds cardinality bound 2", subset)
		}
		key := fmt.Sprint(subset)
		if seen[key] {
			t.Fatalf("subset %v emitted twice", subset)
		}
		seen[key] = true
	}
}

func TestSubsetGenerator_AscendingWithinSubset(t *testing.T) {
	gen := NewSubsetGenerator(5, 3)
	for {
		subset, ok := gen.Next()
		if !ok {
			break
		}
		for i := 1; i < len(subset); i++ {
			if subset[i] <= subset[i-1] {
				t.Fatalf("subset %v not strictly ascending", subset)
			}
		}
	}
}
