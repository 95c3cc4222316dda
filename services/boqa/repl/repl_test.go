// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package repl

import (
	"context"
	"strings"
	"testing"

	"github.com/openboqa/boqa/services/boqa/annotation"
	"github.com/openboqa/boqa/services/boqa/engine"
	"github.com/openboqa/boqa/services/boqa/inference"
	"github.com/openboqa/boqa/services/boqa/ontology"
)

type termSource struct{ records []ontology.TermRecord }

func (s termSource) Terms(ctx context.Context) ([]ontology.TermRecord, error) { return s.records, nil }

type assocSource struct{ records []annotation.AssociationRecord }

func (s assocSource) Associations(ctx context.Context) ([]annotation.AssociationRecord, error) {
	return s.records, nil
}

func setup(t *testing.T) *engine.Engine {
	t.Helper()
	ts := termSource{records: []ontology.TermRecord{
		{ID: "T0", Name: "root"},
		{ID: "T1", Name: "leaf", Parents: []string{"T0"}},
	}}
	as := assocSource{records: []annotation.AssociationRecord{
		{Item: "I0", Term: "T1"},
		{Item: "I1", Term: "T0"},
	}}
	e, err := engine.Setup(context.Background(), ts, as, engine.Options{
		Grid:                    inference.Grid{Alpha: []float64{0.05}, Beta: []float64{0.05}},
		PropagateFalseNegatives: true,
		Workers:                 1,
	})
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	return e
}

func TestParseTermIDs_AcceptsCommaAndSpaceSeparated(t *testing.T) {
	ids, err := parseTermIDs("0, 1  2")
	if err != nil {
		t.Fatalf("parseTermIDs: %v", err)
	}
	want := []int{0, 1, 2}
	if len(ids) != len(want) {
		t.Fatalf("got %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("got %v, want %v", ids, want)
		}
	}
}

func TestParseTermIDs_RejectsNonInteger(t *testing.T) {
	if _, err := parseTermIDs("abc"); err == nil {
		t.Fatal("expected error for non-integer token")
	}
}

func TestRunLineREPL_ScoresEachLineAndExits(t *testing.T) {
	e := setup(t)
	in := strings.NewReader("0\nquit\n")
	var out strings.Builder

	code := RunLineREPL(context.Background(), e, in, &out)
	if code != ExitOK {
		t.Fatalf("exit code = %d, want %d", code, ExitOK)
	}
	if !strings.Contains(out.String(), "I0") || !strings.Contains(out.String(), "I1") {
		t.Fatalf("output missing expected items: %q", out.String())
	}
}

func TestRunLineREPL_InvalidTokenReturnsInputError(t *testing.T) {
	e := setup(t)
	in := strings.NewReader("not-a-number\n")
	var out strings.Builder

	code := RunLineREPL(context.Background(), e, in, &out)
	if code != ExitInputError {
		t.Fatalf("exit code = %d, want %d", code, ExitInputError)
	}
}
