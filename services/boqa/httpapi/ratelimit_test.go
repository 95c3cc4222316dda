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
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func newRateLimitedRouter(requestsPerSecond float64, burst int) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RateLimitMiddleware(requestsPerSecond, burst))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func doGet(r *gin.Engine, remoteAddr string) int {
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.RemoteAddr = remoteAddr
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec.Code
}

func TestRateLimitMiddleware_ExhaustsBurstPerIP(t *testing.T) {
	r := newRateLimitedRouter(0, 1)

	if code := doGet(r, "10.0.0.1:1111"); code != http.StatusOK {
		t.Fatalf("first request from 10.0.0.1 = %d, want 200", code)
	}
	if code := doGet(r, "10.0.0.1:2222"); code != http.StatusTooManyRequests {
		t.Fatalf("second request from 10.0.0.1 = %d, want 429", code)
	}
}

func TestRateLimitMiddleware_SeparateBucketsPerIP(t *testing.T) {
	r := newRateLimitedRouter(0, 1)

	if code := doGet(r, "10.0.0.1:1111"); code != http.StatusOK {
		t.Fatalf("10.0.0.1 first request = %d, want 200", code)
	}
	if code := doGet(r, "10.0.0.2:1111"); code != http.StatusOK {
		t.Fatalf("10.0.0.2 first request = %d, want 200 (independent bucket)", code)
	}
	if code := doGet(r, "10.0.0.1:1111"); code != http.StatusTooManyRequests {
		t.Fatalf("10.0.0.1 second request = %d, want 429", code)
	}
}
