// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/AleutianAI/AleutianGauntlet/services/gauntlet/notify"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The service sits behind the platform gateway; origin policy is
	// enforced there.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WebSocketHandler serves GET /ws/tests. The handshake mints the run id:
// clients connect first, receive their id in the connection_established
// frame, then POST it back in the create-run request. That ordering
// guarantees a subscriber exists before the first progress event fires.
type WebSocketHandler struct {
	hub *notify.Hub
}

func NewWebSocketHandler(hub *notify.Hub) *WebSocketHandler {
	return &WebSocketHandler{hub: hub}
}

func (h *WebSocketHandler) Subscribe(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Error("Websocket upgrade failed", "error", err)
		return
	}

	runID := uuid.NewString()
	h.hub.Subscribe(runID, conn)
	slog.Info("Websocket connected", "test_run_id", runID, "remote", conn.RemoteAddr().String())

	h.hub.Publish(runID, notify.Event{
		Type:      notify.EventConnectionEstablished,
		TestRunID: runID,
		Message:   "Connection established. Use this test_run_id to start a run.",
	})

	// Read pump. Inbound frames are ignored; its job is to notice the
	// close and tear the subscription down.
	go func() {
		defer func() {
			h.hub.Unsubscribe(runID, conn)
			conn.Close()
			slog.Info("Websocket disconnected", "test_run_id", runID)
		}()
		conn.SetReadLimit(1024)
		conn.SetReadDeadline(time.Now().Add(24 * time.Hour))
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
