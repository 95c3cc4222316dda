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
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// perIPLimiter hands out one token bucket per client IP, created on
// first sight. The scoring endpoint is the expensive one — a single
// worst-case query walks the full item catalogue through C6 — so a
// noisy client is throttled without penalizing every other caller.
//
// Thread Safety: safe for concurrent use via mu.
type perIPLimiter struct {
	mu                sync.Mutex
	limiters          map[string]*rate.Limiter
	requestsPerSecond rate.Limit
	burst             int
}

func newPerIPLimiter(requestsPerSecond float64, burst int) *perIPLimiter {
	return &perIPLimiter{
		limiters:          make(map[string]*rate.Limiter),
		requestsPerSecond: rate.Limit(requestsPerSecond),
		burst:             burst,
	}
}

func (p *perIPLimiter) forIP(ip string) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()

	l, ok := p.limiters[ip]
	if !ok {
		l = rate.NewLimiter(p.requestsPerSecond, p.burst)
		p.limiters[ip] = l
	}
	return l
}

// RateLimitMiddleware rejects requests once the calling client's
// token bucket is exhausted, keying a separate bucket per client IP
// (c.ClientIP(), which honors a trusted X-Forwarded-For/X-Real-IP
// when gin is configured with trusted proxies).
func RateLimitMiddleware(requestsPerSecond float64, burst int) gin.HandlerFunc {
	limiters := newPerIPLimiter(requestsPerSecond, burst)
	return func(c *gin.Context) {
		if !limiters.forIP(c.ClientIP()).Allow() {
			c.Header("Retry-After", "1")
			c.JSON(http.StatusTooManyRequests, ErrorResponse{
				Error: "rate limit exceeded",
				Code:  "RATE_LIMITED",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}
