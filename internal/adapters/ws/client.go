package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// client wraps one websocket connection with a buffered outbound channel so
// slow consumers never block the gateway's locks.
type client struct {
	conn *websocket.Conn
	send chan []byte

	once sync.Once
}

// push marshals an envelope onto the outbound channel without blocking.
// It reports false when the envelope cannot be encoded or the channel is full.
func (c *client) push(event string, payload any) bool {
	data, err := json.Marshal(payload)
	if err != nil {
		return false
	}
	raw, err := json.Marshal(Envelope{Event: event, Data: data})
	if err != nil {
		return false
	}
	select {
	case c.send <- raw:
		return true
	default:
		return false
	}
}

// close shuts the outbound channel exactly once, which ends writePump.
func (c *client) close() {
	c.once.Do(func() {
		close(c.send)
	})
}

// writePump drains the outbound channel onto the wire and keeps the
// connection alive with pings.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case raw, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
