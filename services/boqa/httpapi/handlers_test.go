// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

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

func setupRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	src := termSource{records: []ontology.TermRecord{
		{ID: "T0", Name: "root"},
		{ID: "T1", Name: "leaf", Parents: []string{"T0"}},
	}}
	assoc := assocSource{records: []annotation.AssociationRecord{
		{Item: "I0", Term: "T1"},
		{Item: "I1", Term: "T0"},
	}}

	eng, err := engine.Setup(context.Background(), src, assoc, engine.Options{
		Grid:    inference.Grid{Alpha: []float64{0.05}, Beta: []float64{0.05}},
		Workers: 2,
	})
	if err != nil {
		t.Fatalf("engine.Setup: %v", err)
	}

	h := NewHandlers(eng, nil)
	router := gin.New()
	v1 := router.Group("/v1")
	RegisterRoutes(v1, h)
	return router
}

func TestHandleScore_Success(t *testing.T) {
	router := setupRouter(t)

	body, _ := json.Marshal(ScoreRequest{TermIDs: []int{1}})
	req := httptest.NewRequest(http.MethodPost, "/v1/boqa/score", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp ScoreResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(resp.Matches) != 2 {
		t.Fatalf("got %d matches, want 2", len(resp.Matches))
	}
}

func TestHandleScore_RejectsEmptyBody(t *testing.T) {
	router := setupRouter(t)

	body, _ := json.Marshal(ScoreRequest{TermIDs: nil})
	req := httptest.NewRequest(http.MethodPost, "/v1/boqa/score", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400: %s", w.Code, w.Body.String())
	}
}

func TestHandleTerms_ListsOntology(t *testing.T) {
	router := setupRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/boqa/terms", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var resp TermsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Total != 2 {
		t.Fatalf("total = %d, want 2", resp.Total)
	}
}

func TestHandleItems_ListsCatalogue(t *testing.T) {
	router := setupRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/boqa/items", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var resp ItemsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Total != 2 {
		t.Fatalf("total = %d, want 2", resp.Total)
	}
}

func TestHandleHealth_OK(t *testing.T) {
	router := setupRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/boqa/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
}
