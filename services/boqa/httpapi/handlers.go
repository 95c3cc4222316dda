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
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/openboqa/boqa/services/boqa/engine"
	"github.com/openboqa/boqa/services/boqa/obsv"
	"github.com/openboqa/boqa/services/boqa/query"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Handlers binds an engine.Engine to gin handler functions. One
// Handlers serves the whole engine; it holds no per-request state.
type Handlers struct {
	engine   *engine.Engine
	logger   *slog.Logger
	validate *validator.Validate
	progress *ProgressHub
}

// NewHandlers builds a Handlers bound to eng. logger may be nil, in
// which case it falls back to obsv.Discard.
func NewHandlers(eng *engine.Engine, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = obsv.Discard
	}
	return &Handlers{
		engine:   eng,
		logger:   logger,
		validate: validator.New(),
		progress: NewProgressHub(),
	}
}

// HandleScore handles POST /v1/boqa/score.
func (h *Handlers) HandleScore(c *gin.Context) {
	var req ScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "INVALID_BODY"})
		return
	}
	if err := h.validate.Struct(req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "INVALID_BODY"})
		return
	}

	queryID := uuid.NewString()
	h.progress.Publish(ProgressEvent{QueryID: queryID, Stage: stageStarted})
	h.progress.Publish(ProgressEvent{QueryID: queryID, Stage: stageScoring})

	matches, err := h.engine.Score(c.Request.Context(), req.TermIDs)
	if err != nil {
		h.progress.Publish(ProgressEvent{QueryID: queryID, Stage: stageFailed})
		h.writeScoreError(c, err)
		return
	}
	h.progress.Publish(ProgressEvent{QueryID: queryID, Stage: stageComplete})

	resp := ScoreResponse{Matches: make([]MatchResponse, len(matches))}
	for i, m := range matches {
		resp.Matches[i] = MatchResponse{Item: m.Item, Score: m.Score}
	}
	c.Header("X-Query-ID", queryID)
	c.JSON(http.StatusOK, resp)
}

func (h *Handlers) writeScoreError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, query.ErrEmptyQuery):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "EMPTY_QUERY"})
	case errors.Is(err, query.ErrUnknownTerm):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "UNKNOWN_TERM"})
	default:
		h.logger.Error("score failed", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error", Code: "INTERNAL_ERROR"})
	}
}

// HandleTerms handles GET /v1/boqa/terms?pattern=&limit=.
func (h *Handlers) HandleTerms(c *gin.Context) {
	pattern := c.Query("pattern")
	limit := parseLimit(c, 200)
	matched := h.engine.Terms(pattern)

	resp := TermsResponse{Total: len(matched)}
	n := len(matched)
	if n > limit {
		n = limit
	}
	resp.Terms = make([]TermResponse, n)
	for i := 0; i < n; i++ {
		resp.Terms[i] = TermResponse{
			SortedIndex: h.engine.IDOfTerm(matched[i]),
			ExternalID:  matched[i].ExternalID,
			Name:        matched[i].Name,
		}
	}
	c.JSON(http.StatusOK, resp)
}

// HandleItems handles GET /v1/boqa/items.
func (h *Handlers) HandleItems(c *gin.Context) {
	n := h.engine.NumberOfItems()
	items := make([]string, n)
	for i := 0; i < n; i++ {
		items[i] = h.engine.ItemName(i)
	}
	c.JSON(http.StatusOK, ItemsResponse{Items: items, Total: n})
}

// HandleHealth handles GET /v1/boqa/health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// HandleProgress handles GET /v1/boqa/progress/:query_id, upgrading
// to a websocket that streams ProgressEvents for that query until it
// completes or fails.
func (h *Handlers) HandleProgress(c *gin.Context) {
	queryID := c.Param("query_id")
	if queryID == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "query_id parameter is required", Code: "MISSING_PARAMETER"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("progress socket upgrade failed", "error", err)
		return
	}

	ch, unsubscribe := h.progress.Subscribe(queryID)
	defer unsubscribe()
	serveProgressSocket(conn, ch)
}

// parseLimit parses a "limit" query parameter, defaulting to def when
// absent or malformed.
func parseLimit(c *gin.Context, def int) int {
	s := c.Query("limit")
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
