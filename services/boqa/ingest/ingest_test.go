// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

const sampleDoc = `{
  "terms": [
    {"id": "T0", "name": "root"},
    {"id": "T1", "name": "leaf", "parents": ["T0"]}
  ],
  "associations": [
    {"item": "I0", "term": "T1"},
    {"item": "I1", "term": "T0", "frequency": "50%"}
  ]
}`

func TestLoad_ParsesTermsAndAssociations(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "corpus.json")
	if err := os.WriteFile(path, []byte(sampleDoc), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	corpus, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	terms, err := corpus.Terms(context.Background())
	if err != nil {
		t.Fatalf("Terms: %v", err)
	}
	if len(terms) != 2 {
		t.Fatalf("got %d terms, want 2", len(terms))
	}

	assocs, err := corpus.Associations(context.Background())
	if err != nil {
		t.Fatalf("Associations: %v", err)
	}
	if len(assocs) != 2 || assocs[1].Frequency != "50%" {
		t.Fatalf("got %+v, want frequency 50%% on second record", assocs)
	}
}

func TestLoad_MissingFileReturnsError(t *testing.T) {
	if _, err := Load("/nonexistent/path/corpus.json"); err == nil {
		t.Fatal("expected error for missing file")
	}
}
