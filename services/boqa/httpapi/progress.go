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
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	progressWriteWait  = 10 * time.Second
	progressPongWait   = 60 * time.Second
	progressPingPeriod = (progressPongWait * 9) / 10
)

// ProgressEvent is one stage notification emitted while a score()
// call runs. Subscribers use Stage to drive a progress bar. Worker and
// Workers are omitted from the JSON when zero; HandleScore publishes
// stage-only events and leaves both unset.
type ProgressEvent struct {
	QueryID string `json:"query_id"`
	Stage   string `json:"stage"`
	Worker  int    `json:"worker,omitempty"`
	Workers int    `json:"workers,omitempty"`
}

// ProgressHub fans out ProgressEvents to every websocket subscriber
// of a given query ID. A query with no subscribers simply drops its
// events — Publish never blocks on a slow or absent client.
type ProgressHub struct {
	mu   sync.Mutex
	subs map[string][]chan ProgressEvent
}

// NewProgressHub returns an empty hub.
func NewProgressHub() *ProgressHub {
	return &ProgressHub{subs: make(map[string][]chan ProgressEvent)}
}

// Subscribe registers a channel for queryID's events. Unsubscribe
// removes it; callers must call the returned func when the websocket
// connection closes.
func (h *ProgressHub) Subscribe(queryID string) (ch chan ProgressEvent, unsubscribe func()) {
	ch = make(chan ProgressEvent, 32)
	h.mu.Lock()
	h.subs[queryID] = append(h.subs[queryID], ch)
	h.mu.Unlock()

	return ch, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		subs := h.subs[queryID]
		for i, c := range subs {
			if c == ch {
				h.subs[queryID] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
		if len(h.subs[queryID]) == 0 {
			delete(h.subs, queryID)
		}
		close(ch)
	}
}

// Publish delivers ev to every subscriber of ev.QueryID, dropping it
// for any subscriber whose buffer is full rather than blocking.
func (h *ProgressHub) Publish(ev ProgressEvent) {
	h.mu.Lock()
	subs := h.subs[ev.QueryID]
	h.mu.Unlock()
	for _, ch := range subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// serveProgressSocket relays ch's events as JSON text frames over the
// already-upgraded conn until the channel closes or the peer goes away.
func serveProgressSocket(conn *websocket.Conn, ch chan ProgressEvent) {
	defer conn.Close()

	conn.SetReadLimit(4096)
	conn.SetReadDeadline(time.Now().Add(progressPongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(progressPongWait))
		return nil
	})
	go drainPeerReads(conn)

	ticker := time.NewTicker(progressPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-ch:
			conn.SetWriteDeadline(time.Now().Add(progressWriteWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
			if ev.Stage == stageComplete || ev.Stage == stageFailed {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(progressWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// drainPeerReads discards inbound frames; the progress socket is
// server-to-client only but still needs to answer pong/close control
// frames to keep the connection alive.
func drainPeerReads(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

const (
	stageStarted  = "started"
	stageScoring  = "scoring"
	stageComplete = "complete"
	stageFailed   = "failed"
)
