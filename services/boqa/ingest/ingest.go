// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ingest is cmd/boqa's file-loading boundary: a single JSON
// document format that supplies both an OntologySource and an
// AssociationSource. OBO parsing and arbitrary annotation-file
// formats remain explicitly out of scope for the engine itself (spec.md
// §1); this package exists only so the CLI has something concrete to
// point at, not as a general-purpose corpus importer.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/openboqa/boqa/services/boqa/annotation"
	"github.com/openboqa/boqa/services/boqa/ontology"
)

// Document is the on-disk shape: one ontology plus one association
// corpus, loaded together since BOQA's setup() takes both at once.
type Document struct {
	Terms        []TermRecord        `json:"terms"`
	Associations []AssociationRecord `json:"associations"`
}

// TermRecord mirrors ontology.TermRecord for JSON decoding.
type TermRecord struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Parents []string `json:"parents,omitempty"`
}

// AssociationRecord mirrors annotation.AssociationRecord for JSON decoding.
type AssociationRecord struct {
	Item      string `json:"item"`
	Term      string `json:"term"`
	Frequency string `json:"frequency,omitempty"`
}

// Corpus adapts a loaded Document to ontology.OntologySource and
// annotation.AssociationSource simultaneously.
type Corpus struct {
	doc Document
}

// Load reads and parses a Document from path.
func Load(path string) (*Corpus, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ingest: reading %s: %w", path, err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("ingest: parsing %s: %w", path, err)
	}
	return &Corpus{doc: doc}, nil
}

// Terms implements ontology.OntologySource.
func (c *Corpus) Terms(ctx context.Context) ([]ontology.TermRecord, error) {
	out := make([]ontology.TermRecord, len(c.doc.Terms))
	for i, t := range c.doc.Terms {
		out[i] = ontology.TermRecord{ID: t.ID, Name: t.Name, Parents: t.Parents}
	}
	return out, nil
}

// Associations implements annotation.AssociationSource.
func (c *Corpus) Associations(ctx context.Context) ([]annotation.AssociationRecord, error) {
	out := make([]annotation.AssociationRecord, len(c.doc.Associations))
	for i, a := range c.doc.Associations {
		out[i] = annotation.AssociationRecord{Item: a.Item, Term: a.Term, Frequency: a.Frequency}
	}
	return out, nil
}
