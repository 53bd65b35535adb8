package gateway

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)

// Client represents a single WebSocket peer.
type Client struct {
	conn *websocket.Conn
	send chan []byte
	hub  *Hub
}

// clientMsg is the only shape clients send: a latency ping or a resume
// request after a detected gap.
type clientMsg struct {
	Type    string `json:"type"`
	Ping    int64  `json:"ping"`
	LastSeq int64  `json:"last_seq"`
}

// sendInitialState queues the envelopes a client with lastSeq has missed.
// A fresh client (lastSeq 0) or one whose gap left the replay window gets
// the latest envelope only. Must be called with hub.mu held.
func (c *Client) sendInitialState(lastSeq int64) {
	h := c.hub
	if h.seq == 0 || lastSeq >= h.seq {
		return
	}
	if lastSeq > 0 {
		if entries, complete := h.replay.Since(lastSeq); complete {
			for _, e := range entries {
				c.enqueue(e.Data)
			}
			return
		}
	}
	if h.latest != nil {
		c.enqueue(h.latest)
	}
}

func (c *Client) enqueue(msg []byte) {
	select {
	case c.send <- msg:
	default:
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.RemoveClient(c)
		c.conn.Close()
		c.hub.logger.Debug("ws client disconnected")
	}()

	c.conn.SetReadLimit(1024)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var msg clientMsg
		if json.Unmarshal(raw, &msg) != nil {
			continue
		}

		switch {
		case msg.Type == "resume":
			c.hub.mu.Lock()
			if c.hub.clients[c] {
				c.sendInitialState(msg.LastSeq)
			}
			c.hub.mu.Unlock()
		case msg.Ping > 0:
			pong, _ := json.Marshal(map[string]any{
				"type":      "pong",
				"ping":      msg.Ping,
				"server_ts": time.Now().UnixMilli(),
			})
			// send is closed once the hub dropped the client
			c.hub.mu.RLock()
			if c.hub.clients[c] {
				c.enqueue(pong)
			}
			c.hub.mu.RUnlock()
		}
	}
}
