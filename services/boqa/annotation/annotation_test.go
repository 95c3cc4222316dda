// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package annotation

import (
	"context"
	"errors"
	"testing"

	"github.com/openboqa/boqa/services/boqa/ontology"
)

type termSource struct{ records []ontology.TermRecord }

func (s termSource) Terms(ctx context.Context) ([]ontology.TermRecord, error) { return s.records, nil }

type assocSource struct{ records []AssociationRecord }

func (s assocSource) Associations(ctx context.Context) ([]AssociationRecord, error) {
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

func TestBuild_AncestorClosureInvariant(t *testing.T) {
	slim := chainSlim(t)
	src := assocSource{records: []AssociationRecord{
		{Item: "I0", Term: "T2"},
	}}
	table, err := Build(context.Background(), slim, src, Options{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	row := table.Row(0)
	if len(row.InducedTerms) != 3 {
		t.Fatalf("InducedTerms = %v, want all 3 ancestors+self of T2", row.InducedTerms)
	}
	for _, direct := range row.DirectTerms {
		found := false
		for _, ind := range row.InducedTerms {
			if ind == direct {
				found = true
			}
		}
		if !found {
			t.Fatalf("direct term %d not in induced set", direct)
		}
	}
}

func TestBuild_UnknownTermFails(t *testing.T) {
	slim := chainSlim(t)
	src := assocSource{records: []AssociationRecord{{Item: "I0", Term: "ghost"}}}
	_, err := Build(context.Background(), slim, src, Options{})
	if err == nil || !errors.Is(err, ErrUnknownTerm) {
		t.Fatalf("Build with unknown term: got %v, want ErrUnknownTerm", err)
	}
}

func TestBuild_FrequencyFilterDropsAll(t *testing.T) {
	slim := chainSlim(t)
	src := assocSource{records: []AssociationRecord{{Item: "I0", Term: "T2"}}} // no explicit frequency
	_, err := Build(context.Background(), slim, src, Options{ConsiderFrequenciesOnly: true})
	if err == nil || !errors.Is(err, ErrNoItemsRemain) {
		t.Fatalf("Build with no explicit frequencies under ConsiderFrequenciesOnly: got %v, want ErrNoItemsRemain", err)
	}
}

func TestBuild_FrequencyAscendingOrder(t *testing.T) {
	slim := chainSlim(t)
	src := assocSource{records: []AssociationRecord{
		{Item: "I0", Term: "T0", Frequency: "80%"},
		{Item: "I0", Term: "T1", Frequency: "20%"},
		{Item: "I0", Term: "T2", Frequency: "50%"},
	}}
	table, err := Build(context.Background(), slim, src, Options{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	row := table.Row(0)
	prev := -1.0
	for _, orderIdx := range row.FrequencyOrder {
		f := row.TermFrequencies[orderIdx]
		if f < prev {
			t.Fatalf("FrequencyOrder not ascending: %v over %v", row.FrequencyOrder, row.TermFrequencies)
		}
		prev = f
	}
}
