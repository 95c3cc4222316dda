// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package annotation builds, per item, the directly-annotated term
// set, its ancestor-closed induced set, per-term frequencies and the
// frequency-ascending permutation (spec.md §4.3).
package annotation

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/openboqa/boqa/services/boqa/freqparse"
	"github.com/openboqa/boqa/services/boqa/itemindex"
	"github.com/openboqa/boqa/services/boqa/ontology"
)

// ErrNoItemsRemain is returned when CONSIDER_FREQUENCIES_ONLY filtering
// drops every item from the catalogue.
var ErrNoItemsRemain = fmt.Errorf("annotation: no items remain after filtering")

// ErrUnknownTerm is returned when an association names a term that is
// not present in the ontology.
var ErrUnknownTerm = fmt.Errorf("annotation: association references unknown term")

// AssociationRecord is a single (item, term, frequency) fact as
// supplied by an external AssociationSource. Frequency is the raw,
// unparsed frequency string; empty means "not specified" (⇒ 1.0).
type AssociationRecord struct {
	Item      string
	Term      string
	Frequency string
}

// AssociationSource supplies the raw annotation corpus. Parsing the
// underlying annotation file format is outside this package's concern.
type AssociationSource interface {
	Associations(ctx context.Context) ([]AssociationRecord, error)
}

// Options configures Table construction.
type Options struct {
	// ConsiderFrequenciesOnly drops items for which no directly
	// annotated term carries an explicit frequency below 1.0.
	ConsiderFrequenciesOnly bool
	// Logger receives frequency-parsing diagnostics. Defaults to slog.Default().
	Logger *slog.Logger
}

// Row holds one item's annotation data.
type Row struct {
	DirectTerms           []ontology.TermID
	InducedTerms          []ontology.TermID
	TermFrequencies       []float64 // parallel to DirectTerms
	FrequencyOrder        []int     // permutation of DirectTerms indices, ascending frequency
	HasExplicitFrequency  []bool    // parallel to DirectTerms
}

// Table is the per-item annotation table for the whole catalogue.
//
// Thread Safety: immutable after Build; safe for concurrent reads.
type Table struct {
	itemNames []string
	rows      []Row
}

// ItemNames returns the item catalogue in internal (source iteration) order.
func (t *Table) ItemNames() []string { return t.itemNames }

// Row returns the annotation row for the given internal item index.
func (t *Table) Row(item itemindex.ItemID) Row { return t.rows[item] }

// NumberOfItems returns N.
func (t *Table) NumberOfItems() int { return len(t.rows) }

// Build constructs the annotation Table from source against slim.
// Fails with ErrNoItemsRemain or a wrapped ErrUnknownTerm per spec.md
// §4.3's invariants.
func Build(ctx context.Context, slim *ontology.Slim, source AssociationSource, opts Options) (*Table, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	records, err := source.Associations(ctx)
	if err != nil {
		return nil, fmt.Errorf("annotation: read source: %w", err)
	}

	itemOrder := make([]string, 0)
	itemSeen := make(map[string]int)
	type rawAssoc struct {
		term ontology.TermID
		freq float64
		explicit bool
	}
	perItem := make(map[int][]rawAssoc)

	for _, rec := range records {
		termID, ok := slim.IndexOfTerm(rec.Term)
		if !ok {
			return nil, fmt.Errorf("annotation: item %q: %w: %q", rec.Item, ErrUnknownTerm, rec.Term)
		}

		idx, seen := itemSeen[rec.Item]
		if !seen {
			idx = len(itemOrder)
			itemSeen[rec.Item] = idx
			itemOrder = append(itemOrder, rec.Item)
		}

		freq := 1.0
		explicit := false
		if rec.Frequency != "" {
			if v, ok := freqparse.Parse(rec.Frequency); ok {
				freq = v
				explicit = v < 1.0
			} else {
				opts.Logger.WarnContext(ctx, "unparseable frequency, defaulting to 1.0",
					"item", rec.Item, "term", rec.Term, "frequency", rec.Frequency)
			}
		}

		perItem[idx] = append(perItem[idx], rawAssoc{term: termID, freq: freq, explicit: explicit})
	}

	rows := make([]Row, 0, len(itemOrder))
	names := make([]string, 0, len(itemOrder))
	for idx, name := range itemOrder {
		assocs := perItem[idx]

		if opts.ConsiderFrequenciesOnly {
			anyExplicit := false
			for _, a := range assocs {
				if a.explicit {
					anyExplicit = true
					break
				}
			}
			if !anyExplicit {
				continue
			}
		}

		direct := make([]ontology.TermID, len(assocs))
		freqs := make([]float64, len(assocs))
		explicitFlags := make([]bool, len(assocs))
		for i, a := range assocs {
			direct[i] = a.term
			freqs[i] = a.freq
			explicitFlags[i] = a.explicit
		}

		order := make([]int, len(direct))
		for i := range order {
			order[i] = i
		}
		sort.SliceStable(order, func(i, j int) bool { return freqs[order[i]] < freqs[order[j]] })

		sortedPairs := make([]struct {
			term ontology.TermID
			freq float64
			explicit bool
		}, len(direct))
		for i := range direct {
			sortedPairs[i].term, sortedPairs[i].freq, sortedPairs[i].explicit = direct[i], freqs[i], explicitFlags[i]
		}
		sort.Slice(sortedPairs, func(i, j int) bool { return sortedPairs[i].term < sortedPairs[j].term })
		for i, p := range sortedPairs {
			direct[i], freqs[i], explicitFlags[i] = p.term, p.freq, p.explicit
		}
		order = make([]int, len(direct))
		for i := range order {
			order[i] = i
		}
		sort.SliceStable(order, func(i, j int) bool { return freqs[order[i]] < freqs[order[j]] })

		induced := slim.InducedSet(direct)

		rows = append(rows, Row{
			DirectTerms:          direct,
			InducedTerms:         induced,
			TermFrequencies:      freqs,
			FrequencyOrder:       order,
			HasExplicitFrequency: explicitFlags,
		})
		names = append(names, name)
	}

	if len(rows) == 0 {
		return nil, ErrNoItemsRemain
	}

	return &Table{itemNames: names, rows: rows}, nil
}
