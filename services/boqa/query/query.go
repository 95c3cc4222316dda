// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package query implements the BOQA engine's public scoring
// boundary: it turns a sparse, sorted-space term query into an
// ancestor-closed observed vector, drives C6 inference against it,
// and converts the resulting marginals into a ranked, sorted-space
// result list (spec.md §4.7).
package query

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync/atomic"

	"github.com/openboqa/boqa/services/boqa/annotation"
	"github.com/openboqa/boqa/services/boqa/casecount"
	"github.com/openboqa/boqa/services/boqa/diffvector"
	"github.com/openboqa/boqa/services/boqa/inference"
	"github.com/openboqa/boqa/services/boqa/itemindex"
	"github.com/openboqa/boqa/services/boqa/ontology"
)

// ErrEmptyQuery is returned by Score when the query term list is empty.
var ErrEmptyQuery = errors.New("query: empty query")

// ErrUnknownTerm is returned by Score when a query term is not a
// valid sorted-space index.
var ErrUnknownTerm = errors.New("query: unknown term")

// Match is one ranked result: an item and its marginal score.
type Match struct {
	Item  itemindex.ItemID
	Score float64
}

// Driver owns the immutable, shared-read-only artefacts needed to
// answer queries: the ontology, item index, annotation table and
// diff vectors. Safe for concurrent use by any number of callers —
// Score allocates only per-call state.
//
// Thread Safety: the query artefacts are immutable after New; safe for
// concurrent Score and SetWorkers calls (workers is atomic).
type Driver struct {
	slim  *ontology.Slim
	index *itemindex.Index
	table *annotation.Table
	dv    *diffvector.Table

	grid           inference.Grid
	propagation    casecount.Propagation
	useFrequencies bool
	workers        atomic.Int32
	logger         *slog.Logger
}

// Options configures a Driver.
type Options struct {
	Grid           inference.Grid
	Propagation    casecount.Propagation
	UseFrequencies bool
	Workers        int
	Logger         *slog.Logger
}

// New constructs a Driver over the given precomputed artefacts.
func New(slim *ontology.Slim, index *itemindex.Index, table *annotation.Table, dv *diffvector.Table, opts Options) *Driver {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	d := &Driver{
		slim:           slim,
		index:          index,
		table:          table,
		dv:             dv,
		grid:           opts.Grid,
		propagation:    opts.Propagation,
		useFrequencies: opts.UseFrequencies,
		logger:         opts.Logger,
	}
	d.workers.Store(int32(opts.Workers))
	return d
}

// SetWorkers changes the inference worker pool size taken by
// subsequent Score calls. Safe to call concurrently with Score; a
// query already in flight keeps the worker count it started with.
// This is the one C6 tuning knob config.Watcher can apply live,
// since it only bounds errgroup.SetLimit — the ontology/annotation
// pipeline itself is fixed at Setup (spec.md §1 Non-goals).
func (d *Driver) SetWorkers(n int) { d.workers.Store(int32(n)) }

// Score ranks every item in the catalogue against the given query, a
// list of sorted-space term indices. Ancestor closure is applied
// internally before inference runs (spec.md §4.7). Results are sorted
// descending by score, ties broken by ascending item index.
func (d *Driver) Score(ctx context.Context, sortedTermIDs []int) ([]Match, error) {
	if len(sortedTermIDs) == 0 {
		return nil, ErrEmptyQuery
	}

	total := d.slim.NumberOfVertices()
	internal := make([]ontology.TermID, 0, len(sortedTermIDs))
	for _, sortedIdx := range sortedTermIDs {
		if sortedIdx < 0 || sortedIdx >= total {
			return nil, fmt.Errorf("%w: sorted index %d", ErrUnknownTerm, sortedIdx)
		}
		internal = append(internal, d.index.ToInternal(sortedIdx))
	}

	o := ontology.NewBitSet(d.slim.NumberOfVertices())
	o.SetTermIDs(d.slim.InducedSet(internal))

	res, err := inference.Run(ctx, d.slim, d.table, d.dv, d.grid, &o, inference.Options{
		Propagation:    d.propagation,
		UseFrequencies: d.useFrequencies,
		Workers:        int(d.workers.Load()),
		Logger:         d.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("query: inference: %w", err)
	}

	matches := make([]Match, len(res.Marginal))
	for i, m := range res.Marginal {
		matches[i] = Match{Item: itemindex.ItemID(i), Score: m}
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].Item < matches[j].Item
	})
	return matches, nil
}

// IsIllegalForSampling reports whether the query violates
// FORBID_ILLEGAL_QUERIES: any term that is an ancestor or descendant
// of another term in the same query. Such queries remain valid inputs
// to Score, which does not apply this check (spec.md §4.7).
func (d *Driver) IsIllegalForSampling(sortedTermIDs []int) bool {
	internal := make([]ontology.TermID, len(sortedTermIDs))
	for i, sortedIdx := range sortedTermIDs {
		internal[i] = d.index.ToInternal(sortedIdx)
	}
	for i, a := range internal {
		for j, b := range internal {
			if i == j {
				continue
			}
			if d.slim.IsAncestor(a, b) || d.slim.IsDescendant(a, b) {
				return true
			}
		}
	}
	return false
}
