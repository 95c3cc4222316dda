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
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers all /v1/boqa/* endpoints with the given
// router group. The group should already carry any required
// middleware (recovery, tracing, rate limiting).
//
//	POST /v1/boqa/score             - rank the catalogue against a query
//	GET  /v1/boqa/terms             - browse/search the ontology term space
//	GET  /v1/boqa/items             - list the item catalogue
//	GET  /v1/boqa/progress/:query_id - websocket stream of score() progress
//	GET  /v1/boqa/health            - liveness check
func RegisterRoutes(rg *gin.RouterGroup, h *Handlers) {
	boqa := rg.Group("/boqa")
	{
		boqa.POST("/score", h.HandleScore)
		boqa.GET("/terms", h.HandleTerms)
		boqa.GET("/items", h.HandleItems)
		boqa.GET("/progress/:query_id", h.HandleProgress)
		boqa.GET("/health", h.HandleHealth)
	}
}
