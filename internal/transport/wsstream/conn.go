// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

// Package wsstream adapts a gorilla/websocket connection onto the
// live.Conn interface, carrying the teacher's client.go ping/pong and
// deadline machinery (writeWait, pongWait, maxMessageSize) into the
// live-update hub's transport.
package wsstream

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/tomtom215/cartographus/internal/live"
	"github.com/tomtom215/cartographus/internal/logging"
	"github.com/tomtom215/cartographus/internal/timeline/model"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	maxMessageSize = 512 * 1024
)

// pingPeriod is the teacher's client.go pingPeriod formula: send pings
// often enough that pongWait never elapses between them. A var, not a
// const, so tests can shorten it instead of waiting out a real pongWait.
var pingPeriod = (pongWait * 9) / 10

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Conn adapts a *websocket.Conn to live.Conn. writeMu serializes
// WriteUpdate calls against the ping ticker's own writes — gorilla's
// *websocket.Conn permits only one concurrent writer.
type Conn struct {
	ws        *websocket.Conn
	writeMu   sync.Mutex
	pingDone  chan struct{}
	closeOnce sync.Once
}

var _ live.Conn = (*Conn)(nil)

// Upgrade upgrades an HTTP request to a WebSocket connection and
// applies the read deadline, read limit, and pong handler the teacher's
// client.readPump configures, then starts the ping ticker that keeps
// the other half of that machinery alive (client.writePump's
// time.NewTicker(pingPeriod) loop).
func Upgrade(w http.ResponseWriter, r *http.Request) (*Conn, error) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}

	ws.SetReadLimit(maxMessageSize)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	c := &Conn{ws: ws, pingDone: make(chan struct{})}
	go c.pingLoop()
	return c, nil
}

// pingLoop sends a WebSocket ping every pingPeriod until the connection
// closes, matching the teacher's writePump ticker. A failed ping means
// the connection is dead; ReadUntilClose's read loop will observe the
// same failure and invoke onClose.
func (c *Conn) pingLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-c.pingDone:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			err := c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err == nil {
				err = c.ws.WriteMessage(websocket.PingMessage, nil)
			}
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

// WriteUpdate implements live.Conn.
func (c *Conn) WriteUpdate(_ context.Context, update model.LiveUpdate) error {
	payload, err := json.Marshal(update)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.TextMessage, payload)
}

// Close implements live.Conn.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() { close(c.pingDone) })
	return c.ws.Close()
}

// ReadUntilClose blocks discarding inbound frames — this stream is
// server-to-client only — until the connection errors or closes, then
// invokes onClose exactly once. Grounded on the teacher's
// Client.readPump, which also never acts on inbound frame content
// beyond pong handling (wired into SetPongHandler above).
func (c *Conn) ReadUntilClose(onClose func()) {
	defer onClose()
	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logging.Warn().Err(err).Msg("live stream closed unexpectedly")
			}
			return
		}
	}
}
