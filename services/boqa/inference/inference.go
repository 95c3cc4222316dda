// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package inference computes, for every item in the catalogue, the
// marginal probability that it explains an observed term vector,
// marginalized over a grid of (α, β) noise parameters and, for
// frequency-weighted items, over every enumerated hidden
// configuration (spec.md §4.6).
package inference

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/openboqa/boqa/services/boqa/annotation"
	"github.com/openboqa/boqa/services/boqa/casecount"
	"github.com/openboqa/boqa/services/boqa/diffvector"
	"github.com/openboqa/boqa/services/boqa/itemindex"
	"github.com/openboqa/boqa/services/boqa/obsv"
	"github.com/openboqa/boqa/services/boqa/ontology"
)

// ErrCancelled is returned when the supplied context is cancelled
// mid-run. No partial Result is returned alongside it.
var ErrCancelled = errors.New("inference: cancelled")

// Grid is the noise-parameter search space marginalized over.
type Grid struct {
	Alpha []float64
	Beta  []float64
}

// Options configures a Run.
type Options struct {
	Propagation   casecount.Propagation
	UseFrequencies bool
	// Workers bounds the worker pool; 0 selects runtime.NumCPU().
	Workers int
	Logger  *slog.Logger
}

// Result is the per-item marginal output of Run, index-aligned with
// the item index space (spec.md §4.6 "Ordering guarantee").
type Result struct {
	// RawScore[i] is the log-sum-exp score prior to normalisation.
	RawScore []float64
	// Marginal[i] = min(1, exp(RawScore[i] - Z)).
	Marginal []float64
}

// Run executes C6 against the observed vector o (assumed already
// ancestor-closed by the caller — spec.md §4.7 is the QueryDriver's
// responsibility, not this package's).
func Run(ctx context.Context, slim *ontology.Slim, table *annotation.Table, dv *diffvector.Table, grid Grid, o *ontology.BitSet, opts Options) (Result, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	n := table.NumberOfItems()

	rawScores := make([]float64, n)

	empty := ontology.NewBitSet(slim.NumberOfVertices())
	baseline := casecount.NewCounts(ctx, slim, opts.Propagation, &empty, o, opts.Logger)

	if opts.UseFrequencies && dv.Weighted() {
		if err := runWeighted(ctx, slim, dv, grid, o, baseline, opts, rawScores); err != nil {
			return Result{}, err
		}
	} else {
		if err := runPlain(ctx, slim, table, dv, grid, o, baseline, opts, rawScores); err != nil {
			return Result{}, err
		}
	}

	z := newAccumulator()
	for _, s := range rawScores {
		z.add(s)
	}
	marginals := make([]float64, n)
	for i, s := range rawScores {
		m := expClamped(s - z.value())
		marginals[i] = m
	}

	return Result{RawScore: rawScores, Marginal: marginals}, nil
}

// runWeighted scores every item independently: each item resets to
// the shared all-hidden-off baseline and walks its own enumerated
// configuration sequence. Items have no cross-item dependency in this
// mode, so they parallelize directly over a bounded worker pool.
func runWeighted(ctx context.Context, slim *ontology.Slim, dv *diffvector.Table, grid Grid, o *ontology.BitSet, baseline casecount.Counts, opts Options, out []float64) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)
	n := len(out)

	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			start := time.Now()
			defer func() { obsv.RecordWorkerLatency("weighted", time.Since(start)) }()

			if err := gctx.Err(); err != nil {
				return fmt.Errorf("%w: %v", ErrCancelled, err)
			}

			h := ontology.NewBitSet(slim.NumberOfVertices())
			c := baseline
			acc := newAccumulator()

			for _, cfg := range dv.Configurations(i) {
				if err := gctx.Err(); err != nil {
					return fmt.Errorf("%w: %v", ErrCancelled, err)
				}
				casecount.ApplyDiff(gctx, slim, opts.Propagation, cfg.DiffOn, cfg.DiffOff, &h, o, &c, opts.Logger)
				for _, alpha := range grid.Alpha {
					for _, beta := range grid.Beta {
						acc.add(c.LogLikelihood(alpha, beta) + cfg.Factor)
					}
				}
			}
			out[i] = acc.value()
			return nil
		})
	}
	return g.Wait()
}

// runPlain partitions the item sequence into contiguous shards so
// each worker can walk its shard's diffOn/diffOff chain sequentially,
// reconstructing its shard's starting state via a full batch
// recompute against the previous item's induced set (spec.md §4.6
// step 2's "reconstructed from scratch" option).
func runPlain(ctx context.Context, slim *ontology.Slim, table *annotation.Table, dv *diffvector.Table, grid Grid, o *ontology.BitSet, baseline casecount.Counts, opts Options, out []float64) error {
	n := len(out)
	if n == 0 {
		return nil
	}
	workers := opts.Workers
	if workers > n {
		workers = n
	}
	shardSize := (n + workers - 1) / workers

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for lo := 0; lo < n; lo += shardSize {
		hi := lo + shardSize
		if hi > n {
			hi = n
		}
		lo, hi := lo, hi
		g.Go(func() error {
			start := time.Now()
			defer func() { obsv.RecordWorkerLatency("plain", time.Since(start)) }()

			if err := gctx.Err(); err != nil {
				return fmt.Errorf("%w: %v", ErrCancelled, err)
			}

			h := ontology.NewBitSet(slim.NumberOfVertices())
			var c casecount.Counts
			if lo == 0 {
				c = baseline
			} else {
				h.SetTermIDs(table.Row(itemindex.ItemID(lo - 1)).InducedTerms)
				c = casecount.NewCounts(gctx, slim, opts.Propagation, &h, o, opts.Logger)
			}

			for i := lo; i < hi; i++ {
				if err := gctx.Err(); err != nil {
					return fmt.Errorf("%w: %v", ErrCancelled, err)
				}
				pv := dv.Plain(i)
				casecount.ApplyDiff(gctx, slim, opts.Propagation, pv.DiffOn, pv.DiffOff, &h, o, &c, opts.Logger)

				acc := newAccumulator()
				for _, alpha := range grid.Alpha {
					for _, beta := range grid.Beta {
						acc.add(c.LogLikelihood(alpha, beta))
					}
				}
				out[i] = acc.value()
			}
			return nil
		})
	}
	return g.Wait()
}

func expClamped(x float64) float64 {
	v := math.Exp(x)
	if v > 1 {
		return 1
	}
	return v
}
