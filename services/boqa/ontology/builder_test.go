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

import (
	"context"
	"errors"
	"testing"
)

// staticSource is a fixed in-memory OntologySource for tests.
type staticSource struct {
	records []TermRecord
}

func (s staticSource) Terms(ctx context.Context) ([]TermRecord, error) {
	return s.records, nil
}

// chain builds T0 <- T1 <- T2 (T0 root, edges point child->parent).
func chainSource() staticSource {
	return staticSource{records: []TermRecord{
		{ID: "T0", Name: "root"},
		{ID: "T1", Name: "mid", Parents: []string{"T0"}},
		{ID: "T2", Name: "leaf", Parents: []string{"T1"}},
	}}
}

func TestBuild_Chain_AncestorClosure(t *testing.T) {
	s, err := Build(context.Background(), chainSource())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t2, _ := s.IndexOfTerm("T2")
	t1, _ := s.IndexOfTerm("T1")
	t0, _ := s.IndexOfTerm("T0")

	anc := s.AncestorsOf(t2)
	if len(anc) != 2 || anc[0] != min(t0, t1) || anc[1] != max(t0, t1) {
		t.Fatalf("AncestorsOf(T2) = %v, want both T0 and T1", anc)
	}
	if !s.IsDescendant(t0, t2) {
		t.Fatalf("expected T2 to be a descendant of T0")
	}
	if s.IsDescendant(t2, t0) {
		t.Fatalf("T0 must not be a descendant of T2")
	}

	induced := s.InducedSet([]TermID{t2})
	if len(induced) != 3 {
		t.Fatalf("InducedSet({T2}) = %v, want all 3 terms (induced set includes self)", induced)
	}
}

func min(a, b TermID) TermID {
	if a < b {
		return a
	}
	return b
}

func max(a, b TermID) TermID {
	if a > b {
		return a
	}
	return b
}

func TestBuild_CycleRejected(t *testing.T) {
	src := staticSource{records: []TermRecord{
		{ID: "A", Name: "a", Parents: []string{"B"}},
		{ID: "B", Name: "b", Parents: []string{"A"}},
	}}
	_, err := Build(context.Background(), src)
	if err == nil || !errors.Is(err, ErrCycle) {
		t.Fatalf("Build with a cycle: got err=%v, want ErrCycle", err)
	}
}

func TestBuild_UnknownParentRejected(t *testing.T) {
	src := staticSource{records: []TermRecord{
		{ID: "A", Name: "a", Parents: []string{"ghost"}},
	}}
	_, err := Build(context.Background(), src)
	if err == nil || !errors.Is(err, ErrUnknownParent) {
		t.Fatalf("Build with unknown parent: got err=%v, want ErrUnknownParent", err)
	}
}

func TestBuild_TopologicalOrder_ParentsBeforeChildren(t *testing.T) {
	s, err := Build(context.Background(), chainSource())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	for _, t0 := range s.TopologicalOrder() {
		for _, child := range s.ChildrenOf(t0) {
			if s.TopologicalRank(child) <= s.TopologicalRank(t0) {
				t.Fatalf("child %d ranked before parent %d", child, t0)
			}
		}
	}
}

func TestBuild_Deterministic(t *testing.T) {
	src := chainSource()
	s1, err := Build(context.Background(), src)
	if err != nil {
		t.Fatal(err)
	}
	s2, err := Build(context.Background(), src)
	if err != nil {
		t.Fatal(err)
	}
	for i := range s1.TopologicalOrder() {
		if s1.TopologicalOrder()[i] != s2.TopologicalOrder()[i] {
			t.Fatalf("non-deterministic topological order at %d: %v vs %v", i, s1.TopologicalOrder(), s2.TopologicalOrder())
		}
	}
}
