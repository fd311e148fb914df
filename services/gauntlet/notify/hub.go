// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package notify

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const writeTimeout = 10 * time.Second

// Hub fans events out to the websocket connections subscribed to each run.
// A run usually has exactly one subscriber (the client that opened the
// handshake), but nothing prevents several.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[*websocket.Conn]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[*websocket.Conn]struct{})}
}

// Subscribe registers a connection for a run's events.
func (h *Hub) Subscribe(runID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[runID] == nil {
		h.subs[runID] = make(map[*websocket.Conn]struct{})
	}
	h.subs[runID][conn] = struct{}{}
	slog.Debug("websocket subscribed", "test_run_id", runID)
}

// Unsubscribe removes a connection. The caller owns closing the socket.
func (h *Hub) Unsubscribe(runID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.subs[runID]; ok {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.subs, runID)
		}
	}
}

// Publish sends an event to every subscriber of the run. Write failures are
// logged and the dead connection dropped; they never propagate to the
// caller, so run execution cannot be stalled by a slow or vanished client.
func (h *Hub) Publish(runID string, event Event) {
	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.subs[runID]))
	for conn := range h.subs[runID] {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()

	for _, conn := range conns {
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteJSON(event); err != nil {
			slog.Warn("websocket write failed, dropping subscriber",
				"test_run_id", runID, "event_type", event.Type, "error", err)
			h.Unsubscribe(runID, conn)
			conn.Close()
		}
	}
}

// SubscriberCount reports how many connections watch a run.
func (h *Hub) SubscriberCount(runID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[runID])
}
