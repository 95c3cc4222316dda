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
	"fmt"
	"log/slog"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ErrCycle is returned (wrapped) when the supplied term graph contains
// a cycle; cyclic ontologies are never tolerated by this package.
var ErrCycle = fmt.Errorf("ontology: cycle detected")

// ErrUnknownParent is returned (wrapped) when a term names a parent
// identifier that was never declared as a term.
var ErrUnknownParent = fmt.Errorf("ontology: parent references unknown term")

// BuildPhase indicates which phase of construction is in progress, for
// the optional ProgressFunc callback on large ontologies.
type BuildPhase int

const (
	// PhaseCollecting indicates terms are being registered as vertices.
	PhaseCollecting BuildPhase = iota
	// PhaseClosures indicates ancestor/descendant closures are being computed.
	PhaseClosures
	// PhaseFinalizing is reported once closures are complete, as
	// construction finishes.
	PhaseFinalizing
)

func (p BuildPhase) String() string {
	switch p {
	case PhaseCollecting:
		return "collecting"
	case PhaseClosures:
		return "closures"
	case PhaseFinalizing:
		return "finalizing"
	default:
		return "unknown"
	}
}

// BuildProgress reports incremental construction progress.
type BuildProgress struct {
	Phase        BuildPhase
	TermsTotal   int
	TermsDone    int
}

// ProgressFunc receives BuildProgress updates during Build. May be nil.
type ProgressFunc func(BuildProgress)

// BuildOptions configures Build.
type BuildOptions struct {
	// ProgressCallback is invoked periodically during construction. May be nil.
	ProgressCallback ProgressFunc
	// Logger receives structured diagnostics. Defaults to slog.Default().
	Logger *slog.Logger
}

// BuildOption is a functional option for Build.
type BuildOption func(*BuildOptions)

// WithProgressCallback sets the progress callback.
func WithProgressCallback(fn ProgressFunc) BuildOption {
	return func(o *BuildOptions) { o.ProgressCallback = fn }
}

// WithLogger sets the logger used during construction.
func WithLogger(l *slog.Logger) BuildOption {
	return func(o *BuildOptions) { o.Logger = l }
}

// Build constructs a Slim ontology view from source, validating
// acyclicity and fixing a topological order. It fails with a wrapped
// ErrCycle if the term graph is not a DAG, or ErrUnknownParent if a
// term names a parent that was never declared.
func Build(ctx context.Context, source OntologySource, opts ...BuildOption) (*Slim, error) {
	options := BuildOptions{Logger: slog.Default()}
	for _, opt := range opts {
		opt(&options)
	}

	tracer := trace.SpanFromContext(ctx).TracerProvider().Tracer("boqa/ontology")
	ctx, span := tracer.Start(ctx, "ontology.Build")
	defer span.End()
	start := time.Now()

	records, err := source.Terms(ctx)
	if err != nil {
		return nil, fmt.Errorf("ontology: read source: %w", err)
	}

	n := len(records)
	s := &Slim{
		terms:   make([]Term, n),
		byExt:   make(map[string]TermID, n),
		parents: make([]BitSet, n),
	}

	for i, r := range records {
		s.terms[i] = Term{ID: TermID(i), ExternalID: r.ID, Name: r.Name}
		s.byExt[r.ID] = TermID(i)
	}
	span.SetAttributes(attribute.Int("ontology.terms", n))

	for i := range s.parents {
		s.parents[i] = NewBitSet(n)
	}
	for i, r := range records {
		for _, p := range r.Parents {
			pid, ok := s.byExt[p]
			if !ok {
				return nil, fmt.Errorf("ontology: term %q: %w: %q", r.ID, ErrUnknownParent, p)
			}
			s.parents[i].Set(int(pid))
		}
		if options.ProgressCallback != nil && i%1024 == 0 {
			options.ProgressCallback(BuildProgress{Phase: PhaseCollecting, TermsTotal: n, TermsDone: i + 1})
		}
	}

	s.children = make([]BitSet, n)
	for i := range s.children {
		s.children[i] = NewBitSet(n)
	}
	for i := range s.parents {
		for _, p := range s.parents[i].Sorted() {
			s.children[p].Set(i)
		}
	}

	order, rank, err := topologicalOrder(s.parents, n)
	if err != nil {
		options.Logger.ErrorContext(ctx, "ontology build failed: cycle detected", "error", err)
		return nil, err
	}
	s.topoOrder = order
	s.topoRank = rank

	if options.ProgressCallback != nil {
		options.ProgressCallback(BuildProgress{Phase: PhaseClosures, TermsTotal: n, TermsDone: 0})
	}
	s.ancestors = computeClosures(order, s.parents, n)
	s.descendants = computeClosures(reverse(order), s.children, n)

	s.parentsSorted = sortedSlices(s.parents)
	s.childrenSorted = sortedSlices(s.children)
	s.ancestorsSorted = sortedSlices(s.ancestors)
	s.descendantsSorted = sortedSlices(s.descendants)
	s.ic = make([]float64, n)

	if options.ProgressCallback != nil {
		options.ProgressCallback(BuildProgress{Phase: PhaseFinalizing, TermsTotal: n, TermsDone: n})
	}

	options.Logger.InfoContext(ctx, "ontology built", "terms", n, "duration", time.Since(start))
	return s, nil
}

// topologicalOrder computes a parents-before-children order over n
// vertices using Kahn's algorithm (BFS over the zero-in-degree
// frontier). Ties among simultaneously-ready vertices are broken by
// ascending index so the order — and hence everything downstream that
// depends on it — is deterministic across runs. Returns ErrCycle if
// fewer than n vertices are emitted (a residual cycle remains).
func topologicalOrder(parents []BitSet, n int) ([]TermID, []int, error) {
	inDegree := make([]int, n)
	children := make([][]TermID, n)
	for i := 0; i < n; i++ {
		ps := parents[i].Sorted()
		inDegree[i] = len(ps)
		for _, p := range ps {
			children[p] = append(children[p], TermID(i))
		}
	}

	frontier := make([]TermID, 0, n)
	for i := 0; i < n; i++ {
		if inDegree[i] == 0 {
			frontier = append(frontier, TermID(i))
		}
	}
	sort.Slice(frontier, func(i, j int) bool { return frontier[i] < frontier[j] })

	order := make([]TermID, 0, n)
	for len(frontier) > 0 {
		next := frontier[0]
		frontier = frontier[1:]
		order = append(order, next)

		ready := make([]TermID, 0)
		for _, c := range children[next] {
			inDegree[c]--
			if inDegree[c] == 0 {
				ready = append(ready, c)
			}
		}
		sort.Slice(ready, func(i, j int) bool { return ready[i] < ready[j] })
		frontier = mergeSortedTermIDs(frontier, ready)
	}

	if len(order) != n {
		return nil, nil, fmt.Errorf("%w: %d of %d terms reachable in topological order", ErrCycle, len(order), n)
	}

	rank := make([]int, n)
	for i, t := range order {
		rank[t] = i
	}
	return order, rank, nil
}

// mergeSortedTermIDs merges two already-sorted slices, preserving order
// and keeping the frontier scan in topologicalOrder linear rather than
// requiring a full re-sort on every iteration.
func mergeSortedTermIDs(a, b []TermID) []TermID {
	if len(b) == 0 {
		return a
	}
	out := make([]TermID, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		if a[i] <= b[j] {
			out = append(out, a[i])
			i++
		} else {
			out = append(out, b[j])
			j++
		}
	}
	out = append(out, a[i:]...)
	out = append(out, b[j:]...)
	return out
}

// computeClosures computes, for each vertex in processing order, the
// union of its direct edges' (parents' or children's, depending on
// which adjacency is passed) own closures plus the direct edges
// themselves. Processing in topological order (parents-first for the
// ancestor closure, reverse order for the descendant closure) means
// each vertex's dependencies are already resolved when it is visited.
func computeClosures(order []TermID, adjacency []BitSet, n int) []BitSet {
	closure := make([]BitSet, n)
	for i := range closure {
		closure[i] = NewBitSet(n)
	}
	for _, t := range order {
		for _, d := range adjacency[t].Sorted() {
			closure[t].Set(int(d))
			closure[t].Union(closure[d])
		}
	}
	return closure
}

func reverse(order []TermID) []TermID {
	out := make([]TermID, len(order))
	for i, t := range order {
		out[len(order)-1-i] = t
	}
	return out
}

func sortedSlices(bs []BitSet) [][]TermID {
	out := make([][]TermID, len(bs))
	for i, b := range bs {
		out[i] = b.Sorted()
	}
	return out
}
