// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package engine is the BOQA public API boundary: setup() builds the
// whole pipeline (C1-C5) from an ontology and annotation source once,
// and score() (C6 via C7) answers any number of queries against it
// afterward. Every other services/boqa package is an implementation
// detail behind this one (spec.md §6).
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/openboqa/boqa/services/boqa/annotation"
	"github.com/openboqa/boqa/services/boqa/cache"
	"github.com/openboqa/boqa/services/boqa/casecount"
	"github.com/openboqa/boqa/services/boqa/diffvector"
	"github.com/openboqa/boqa/services/boqa/inference"
	"github.com/openboqa/boqa/services/boqa/itemindex"
	"github.com/openboqa/boqa/services/boqa/obsv"
	"github.com/openboqa/boqa/services/boqa/ontology"
	"github.com/openboqa/boqa/services/boqa/query"
)

// Options configures Setup. Fields are used as given: an empty Grid
// is not replaced by a default, and a zero MaxFrequencyTerms or false
// flag turns the corresponding feature off. Only Workers <= 0
// (runtime.NumCPU()) and a nil Logger (discard) have fallbacks. The
// documented defaults live in services/boqa/config, the YAML-loadable
// form of the same knobs.
type Options struct {
	Grid                    inference.Grid
	PropagateFalsePositives bool
	PropagateFalseNegatives bool
	UseFrequencies          bool
	MaxFrequencyTerms       int
	ConsiderFrequenciesOnly bool
	// Workers seeds the initial inference worker pool size; it can be
	// changed afterward without a rebuild via Engine.SetWorkers.
	Workers int
	Logger  *slog.Logger

	// CacheDir is the BadgerDB directory for the persisted
	// score/query-result cache (spec.md §6 "Persisted artefacts").
	// Empty disables the cache entirely.
	CacheDir string
	// MaxCachedQuerySize bounds how many terms a query may contain and
	// still be eligible for the cache; 0 means unbounded. Changeable
	// afterward via Engine.SetMaxCachedQuerySize.
	MaxCachedQuerySize int
	// ScoreDistributionSize folds into the cache fingerprint alongside
	// MaxCachedQuerySize, so changing either invalidates the store.
	ScoreDistributionSize int
}

// Engine is the assembled BOQA pipeline: an immutable ontology, item
// index, annotation table, diff vectors, and the query driver built
// over them. Safe for concurrent Score calls once Setup returns.
type Engine struct {
	slim   *ontology.Slim
	index  *itemindex.Index
	table  *annotation.Table
	dv     *diffvector.Table
	driver *query.Driver
	logger *slog.Logger

	cacheDB            *badger.DB
	cache              *cache.Cache
	maxCachedQuerySize atomic.Int64
}

// Setup builds an Engine from an ontology source and an annotation
// source. It is the only place the ontology/annotation corpus is
// read; Score never touches either source again (spec.md §1 Non-goals:
// "no streaming/online updates of ontology or annotation data after
// setup").
func Setup(ctx context.Context, ontologySrc ontology.OntologySource, assocSrc annotation.AssociationSource, opts Options) (*Engine, error) {
	logger := opts.Logger
	if logger == nil {
		logger = obsv.Discard
	}

	ctx, span := obsv.StartSpan(ctx, "engine.Setup")
	defer span.End()

	slim, err := ontology.Build(ctx, ontologySrc)
	if err != nil {
		return nil, fmt.Errorf("engine: building ontology: %w", err)
	}

	table, err := annotation.Build(ctx, slim, assocSrc, annotation.Options{
		ConsiderFrequenciesOnly: opts.ConsiderFrequenciesOnly,
		Logger:                  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("engine: building annotation table: %w", err)
	}

	counts := make([]int, slim.NumberOfVertices())
	for item := 0; item < table.NumberOfItems(); item++ {
		for _, t := range table.Row(itemindex.ItemID(item)).InducedTerms {
			counts[t]++
		}
	}
	slim.SetInformationContent(counts, table.NumberOfItems())

	index := itemindex.Build(slim, table.ItemNames())
	maxFrequencyTerms := opts.MaxFrequencyTerms
	if !opts.UseFrequencies {
		maxFrequencyTerms = 0
	}
	dv := diffvector.Build(slim, table, maxFrequencyTerms)

	driver := query.New(slim, index, table, dv, query.Options{
		Grid: opts.Grid,
		Propagation: casecount.Propagation{
			FalsePositives: opts.PropagateFalsePositives,
			FalseNegatives: opts.PropagateFalseNegatives,
		},
		UseFrequencies: opts.UseFrequencies,
		Workers:        opts.Workers,
		Logger:         logger,
	})

	e := &Engine{
		slim:   slim,
		index:  index,
		table:  table,
		dv:     dv,
		driver: driver,
		logger: logger,
	}
	e.maxCachedQuerySize.Store(int64(opts.MaxCachedQuerySize))

	if opts.CacheDir != "" {
		db, err := badger.Open(badger.DefaultOptions(opts.CacheDir).WithLogger(nil))
		if err != nil {
			return nil, fmt.Errorf("engine: opening cache: %w", err)
		}

		terms := index.Terms("")
		externalIDs := make([]string, len(terms))
		names := make([]string, len(terms))
		for i, t := range terms {
			externalIDs[i] = t.ExternalID
			names[i] = t.Name
		}
		fp := cache.Fingerprint(table.ItemNames(), externalIDs, names, opts.ScoreDistributionSize, opts.MaxCachedQuerySize)

		c, err := cache.Open(ctx, db, fp, logger)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("engine: opening cache: %w", err)
		}
		e.cacheDB = db
		e.cache = c
	}

	return e, nil
}

// Close releases resources held by the Engine — currently just the
// persisted cache's BadgerDB handle, if a cache directory was
// configured. Safe to call on an Engine built without a cache.
func (e *Engine) Close() error {
	if e.cacheDB != nil {
		return e.cacheDB.Close()
	}
	return nil
}

// SetWorkers changes the inference worker pool size used by
// subsequent Score calls, without rebuilding the engine. It is one of
// the two tuning knobs a config.Watcher can apply to a running Engine
// live (the other is SetMaxCachedQuerySize) — the ontology/annotation pipeline
// itself is immutable once Setup returns (spec.md §1 Non-goals).
func (e *Engine) SetWorkers(n int) { e.driver.SetWorkers(n) }

// SetMaxCachedQuerySize changes the query-size cutoff Score uses to
// decide whether a query is cache-eligible. Safe to call concurrently
// with Score. Has no effect when Setup was not given a CacheDir.
func (e *Engine) SetMaxCachedQuerySize(n int) { e.maxCachedQuerySize.Store(int64(n)) }

// Match is one ranked result: an item name and its marginal score.
type Match struct {
	Item  string
	Score float64
}

// Score ranks the whole catalogue against a query of sorted-space
// term indices, descending by score (spec.md §4.7/§6). Results are
// served from the persisted cache when one is configured and the
// query qualifies (spec.md §6 "Persisted artefacts"); a cache miss or
// disabled cache falls through to a live C6/C7 run, whose result is
// then stored for next time.
func (e *Engine) Score(ctx context.Context, sortedTermIDs []int) ([]Match, error) {
	ctx, span := obsv.StartSpan(ctx, "engine.Score")
	defer span.End()
	start := time.Now()

	maxCachedQuerySize := int(e.maxCachedQuerySize.Load())
	cacheable := e.cache != nil && (maxCachedQuerySize <= 0 || len(sortedTermIDs) <= maxCachedQuerySize)
	var cacheKey string
	if cacheable {
		cacheKey = cache.QueryKey(sortedTermIDs)
		if raw, found, err := e.cache.Get(ctx, cacheKey); err != nil {
			e.logger.WarnContext(ctx, "cache read failed, falling back to live scoring", "error", err)
		} else if found {
			var cached []Match
			if err := json.Unmarshal(raw, &cached); err == nil {
				obsv.CacheHitsTotal.Inc()
				obsv.RecordQuery("ok", len(cached), time.Since(start))
				return cached, nil
			}
			e.logger.WarnContext(ctx, "cache entry unreadable, recomputing", "key", cacheKey)
		}
		obsv.CacheMissesTotal.Inc()
	}

	matches, err := e.driver.Score(ctx, sortedTermIDs)
	if err != nil {
		obsv.RecordQuery(scoreOutcome(err), 0, time.Since(start))
		return nil, err
	}

	out := make([]Match, len(matches))
	for i, m := range matches {
		out[i] = Match{Item: e.index.ItemName(m.Item), Score: m.Score}
	}

	if cacheable {
		if raw, err := json.Marshal(out); err != nil {
			e.logger.WarnContext(ctx, "cache encode failed, result not persisted", "error", err)
		} else if err := e.cache.Put(ctx, cacheKey, raw); err != nil {
			e.logger.WarnContext(ctx, "cache write failed, result not persisted", "error", err)
		}
	}

	obsv.RecordQuery("ok", len(out), time.Since(start))
	return out, nil
}

func scoreOutcome(err error) string {
	switch {
	case errors.Is(err, query.ErrEmptyQuery):
		return "empty_query"
	case errors.Is(err, query.ErrUnknownTerm):
		return "unknown_term"
	case errors.Is(err, inference.ErrCancelled):
		return "cancelled"
	default:
		return "internal_error"
	}
}

// TermAt returns the term at sorted-space index sortedIdx.
func (e *Engine) TermAt(sortedIdx int) ontology.Term { return e.index.TermAt(sortedIdx) }

// NumberOfTerms returns the count of terms whose name or external ID
// matches pattern (a substring filter; empty pattern matches all).
func (e *Engine) NumberOfTerms(pattern string) int { return e.index.NumberOfTerms(pattern) }

// Terms returns, in sorted order, the terms whose name or external ID
// matches pattern (empty pattern matches all).
func (e *Engine) Terms(pattern string) []ontology.Term { return e.index.Terms(pattern) }

// IDOfTerm returns the sorted-space index of t — the inverse of TermAt.
func (e *Engine) IDOfTerm(t ontology.Term) int { return e.index.IDOfTerm(t) }

// ItemName returns the catalogue name of the item at internal index item.
func (e *Engine) ItemName(item int) string { return e.index.ItemName(itemindex.ItemID(item)) }

// NumberOfItems returns the catalogue size N.
func (e *Engine) NumberOfItems() int { return e.index.NumberOfItems() }

// TermsDirectlyAnnotatedTo returns the sorted-space indices of the
// terms directly annotated to item (no ancestor closure).
func (e *Engine) TermsDirectlyAnnotatedTo(item int) []int {
	direct := e.table.Row(itemindex.ItemID(item)).DirectTerms
	out := make([]int, len(direct))
	for i, t := range direct {
		out[i] = e.index.ToSorted(t)
	}
	return out
}

// FrequenciesDirectlyAnnotatedTo returns the parsed frequency in
// [0, 1] for each term returned by TermsDirectlyAnnotatedTo, in the
// same order.
func (e *Engine) FrequenciesDirectlyAnnotatedTo(item int) []float64 {
	row := e.table.Row(itemindex.ItemID(item))
	out := make([]float64, len(row.TermFrequencies))
	copy(out, row.TermFrequencies)
	return out
}

// ParentsOf returns the sorted-space indices of the direct parents of
// the term at sorted-space index sortedIdx.
func (e *Engine) ParentsOf(sortedIdx int) []int {
	internal := e.index.ToInternal(sortedIdx)
	parents := e.slim.ParentsOf(internal)
	out := make([]int, len(parents))
	for i, p := range parents {
		out[i] = e.index.ToSorted(p)
	}
	return out
}

// IsIllegalForSampling reports whether the query contains a term that
// is an ancestor or descendant of another term in the same query
// (spec.md §4.7's FORBID_ILLEGAL_QUERIES). Score does not apply this
// check; such queries are valid Score input.
func (e *Engine) IsIllegalForSampling(sortedTermIDs []int) bool {
	return e.driver.IsIllegalForSampling(sortedTermIDs)
}
