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
	"context"
	"math"
	"testing"

	"github.com/openboqa/boqa/services/boqa/annotation"
	"github.com/openboqa/boqa/services/boqa/itemindex"
	"github.com/openboqa/boqa/services/boqa/ontology"
)

type termSource struct{ records []ontology.TermRecord }

func (s termSource) Terms(ctx context.Context) ([]ontology.TermRecord, error) { return s.records, nil }

type assocSource struct{ records []annotation.AssociationRecord }

func (s assocSource) Associations(ctx context.Context) ([]annotation.AssociationRecord, error) {
	return s.records, nil
}

func chainSlim(t *testing.T) *ontology.Slim {
	t.Helper()
	src := termSource{records: []ontology.TermRecord{
		{ID: "T0", Name: "root"},
		{ID: "T1", Name: "mid", Parents: []string{"T0"}},
		{ID: "T2", Name: "leaf", Parents: []string{"T1"}},
	}}
	s, err := ontology.Build(context.Background(), src)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return s
}

func applyDiff(state map[ontology.TermID]bool, on, off []ontology.TermID) {
	for _, t := range off {
		delete(state, t)
	}
	for _, t := range on {
		state[t] = true
	}
}

func sortedKeys(m map[ontology.TermID]bool) []ontology.TermID {
	out := make([]ontology.TermID, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j] < out[j-1]; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

func TestBuildPlain_DiffsReplayToInducedSets(t *testing.T) {
	slim := chainSlim(t)
	src := assocSource{records: []annotation.AssociationRecord{
		{Item: "I0", Term: "T0"},
		{Item: "I1", Term: "T2"},
		{Item: "I2", Term: "T1"},
	}}
	table, err := annotation.Build(context.Background(), slim, src, annotation.Options{})
	if err != nil {
		t.Fatalf("annotation.Build: %v", err)
	}

	dv := Build(slim, table, 0)
	if dv.Weighted() {
		t.Fatal("Build with maxFrequencyTerms<=0 should be plain mode")
	}

	state := make(map[ontology.TermID]bool)
	for i := 0; i < table.NumberOfItems(); i++ {
		pv := dv.Plain(i)
		applyDiff(state, pv.DiffOn, pv.DiffOff)
		got := sortedKeys(state)
		want := table.Row(itemindex.ItemID(i)).InducedTerms
		if !sameTermIDs(got, want) {
			t.Fatalf("item %d: replayed state %v, want induced set %v", i, got, want)
		}
	}
}

func sameTermIDs(a, b []ontology.TermID) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestBuildWeighted_ConfigurationCountMatchesBinomial(t *testing.T) {
	slim := chainSlim(t)
	src := assocSource{records: []annotation.AssociationRecord{
		{Item: "I0", Term: "T0", Frequency: "80%"},
		{Item: "I0", Term: "T1", Frequency: "20%"},
		{Item: "I0", Term: "T2"}, // mandatory, frequency 1.0
	}}
	table, err := annotation.Build(context.Background(), slim, src, annotation.Options{})
	if err != nil {
		t.Fatalf("annotation.Build: %v", err)
	}

	dv := Build(slim, table, DefaultMaxFrequencyTerms)
	if !dv.Weighted() {
		t.Fatal("Build with positive maxFrequencyTerms should be weighted mode")
	}

	configs := dv.Configurations(0)
	want := CountSubsets(2, 2) // 2 terms with explicit frequency < 1
	if len(configs) != want {
		t.Fatalf("got %d configurations, want %d", len(configs), want)
	}
}

func TestBuildWeighted_ConfigurationFactorsNormalize(t *testing.T) {
	slim := chainSlim(t)
	src := assocSource{records: []annotation.AssociationRecord{
		{Item: "I0", Term: "T0", Frequency: "80%"},
		{Item: "I0", Term: "T1", Frequency: "20%"},
	}}
	table, err := annotation.Build(context.Background(), slim, src, annotation.Options{})
	if err != nil {
		t.Fatalf("annotation.Build: %v", err)
	}

	dv := Build(slim, table, DefaultMaxFrequencyTerms)
	configs := dv.Configurations(0)

	state := make(map[ontology.TermID]bool)
	sumProb := 0.0
	for _, c := range configs {
		applyDiff(state, c.DiffOn, c.DiffOff)
		sumProb += math.Exp(c.Factor)
	}
	if math.Abs(sumProb-1.0) > 1e-9 {
		t.Fatalf("sum of configuration probabilities = %v, want 1.0", sumProb)
	}
}

func TestBuildWeighted_CapBoundsConfigurationCount(t *testing.T) {
	slim := chainSlim(t)
	src := assocSource{records: []annotation.AssociationRecord{
		{Item: "I0", Term: "T0", Frequency: "80%"},
		{Item: "I0", Term: "T1", Frequency: "20%"},
		{Item: "I0", Term: "T2", Frequency: "50%"},
	}}
	table, err := annotation.Build(context.Background(), slim, src, annotation.Options{})
	if err != nil {
		t.Fatalf("annotation.Build: %v", err)
	}

	dv := Build(slim, table, 1) // cap below the 3 frequency-bearing terms
	configs := dv.Configurations(0)
	want := CountSubsets(1, 1)
	if len(configs) != want {
		t.Fatalf("got %d configurations, want %d (cap should bound to 1 variable term)", len(configs), want)
	}
}
