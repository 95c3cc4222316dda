// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package similarity

import (
	"context"
	"testing"

	"github.com/openboqa/boqa/services/boqa/ontology"
)

type termSource struct{ records []ontology.TermRecord }

func (s termSource) Terms(ctx context.Context) ([]ontology.TermRecord, error) { return s.records, nil }

// chainSlim builds root -> mid -> leaf1, leaf2 (two leaves sharing mid as MICA).
func chainSlim(t *testing.T) *ontology.Slim {
	t.Helper()
	src := termSource{records: []ontology.TermRecord{
		{ID: "T0", Name: "root"},
		{ID: "T1", Name: "mid", Parents: []string{"T0"}},
		{ID: "T2", Name: "leafA", Parents: []string{"T1"}},
		{ID: "T3", Name: "leafB", Parents: []string{"T1"}},
	}}
	slim, err := ontology.Build(context.Background(), src)
	if err != nil {
		t.Fatalf("ontology.Build: %v", err)
	}
	// 4 items annotated to root, 2 to mid, 1 to each leaf: IC(root)=0, IC(mid)=log(2), IC(leaf)=log(4).
	slim.SetInformationContent([]int{4, 2, 1, 1}, 4)
	return slim
}

func term(t *testing.T, slim *ontology.Slim, id string) ontology.TermID {
	t.Helper()
	tid, ok := slim.IndexOfTerm(id)
	if !ok {
		t.Fatalf("unknown term %q", id)
	}
	return tid
}

func TestTermSim_SelfIsOwnIC(t *testing.T) {
	slim := chainSlim(t)
	s := New(slim, Resnik)
	leaf := term(t, slim, "T2")
	if got, want := s.TermSim(leaf, leaf), slim.IC(leaf); got != want {
		t.Fatalf("TermSim(leaf,leaf) = %v, want %v", got, want)
	}
}

func TestTermSim_Resnik_UsesMostInformativeCommonAncestor(t *testing.T) {
	slim := chainSlim(t)
	s := New(slim, Resnik)
	a, b := term(t, slim, "T2"), term(t, slim, "T3")

	got := s.TermSim(a, b)
	want := slim.IC(term(t, slim, "T1")) // mid is the MICA of the two leaves
	if got != want {
		t.Fatalf("Resnik(leafA,leafB) = %v, want IC(mid) = %v", got, want)
	}
}

func TestTermSim_LinAndJiangConrath_BoundedByOne(t *testing.T) {
	slim := chainSlim(t)
	a, b := term(t, slim, "T2"), term(t, slim, "T3")

	for _, m := range []Measure{Lin, JiangConrath} {
		s := New(slim, m)
		got := s.TermSim(a, b)
		if got < 0 || got > 1 {
			t.Fatalf("measure %v: TermSim = %v, want in [0,1]", m, got)
		}
	}
}

func TestMaxSimilarityToItem_PicksBestMatchAndCaches(t *testing.T) {
	slim := chainSlim(t)
	s := New(slim, Resnik)
	leafA := term(t, slim, "T2")
	itemTerms := []ontology.TermID{term(t, slim, "T3"), term(t, slim, "T1")}

	first := s.MaxSimilarityToItem(0, leafA, itemTerms)
	second := s.MaxSimilarityToItem(0, leafA, nil) // cached: itemTerms ignored on hit
	if first != second {
		t.Fatalf("cache returned different value: %v vs %v", first, second)
	}
	want := slim.IC(term(t, slim, "T1"))
	if first != want {
		t.Fatalf("MaxSimilarityToItem = %v, want %v (best match is mid itself)", first, want)
	}
}
