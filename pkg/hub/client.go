package hub

import (
	"time"

	"github.com/gofiber/websocket/v2"
)

const (
	writeTimeout = 5 * time.Second
	pongTimeout  = 30 * time.Second
	pingInterval = pongTimeout / 2

	// Telemetry clients only send control frames.
	readLimit = 1024

	clientQueue = 64
)

// client is one websocket subscriber. lag is owned by Hub.Run.
type client struct {
	conn *websocket.Conn
	out  chan Frame
	lag  int
}

func newClient(conn *websocket.Conn) *client {
	return &client{conn: conn, out: make(chan Frame, clientQueue)}
}

// readLoop returns when the peer goes away or stops answering pings.
func (c *client) readLoop() {
	c.conn.SetReadLimit(readLimit)
	c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writeLoop is the only writer. It returns once out is closed.
func (c *client) writeLoop() {
	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	failed := false
	for {
		select {
		case f, ok := <-c.out:
			if !ok {
				if !failed {
					_ = c.write(websocket.CloseMessage, nil)
				}
				c.conn.Close()
				return
			}
			if failed {
				continue
			}
			if err := c.write(f.kind(), f.Data); err != nil {
				failed = true
				c.conn.Close()
			}
		case <-ping.C:
			if failed {
				continue
			}
			if err := c.write(websocket.PingMessage, nil); err != nil {
				failed = true
				c.conn.Close()
			}
		}
	}
}

func (c *client) write(kind int, data []byte) error {
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteMessage(kind, data)
}
