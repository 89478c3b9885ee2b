// Package hub fans telemetry frames out to websocket clients. A hub carries
// one stream. Clients that fall behind lose frames and are disconnected
// once they have lagged for maxLag frames in a row.
package hub

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gofiber/websocket/v2"
)

const (
	// queueSize bounds frames waiting for fan-out.
	queueSize = 256

	// maxLag is how many consecutive frames a client may miss.
	maxLag = 32
)

// Frame is one websocket message.
type Frame struct {
	Binary bool
	Data   []byte
}

func (f Frame) kind() int {
	if f.Binary {
		return websocket.BinaryMessage
	}
	return websocket.TextMessage
}

// Hub owns the client set of one telemetry stream.
type Hub struct {
	name   string
	logger *slog.Logger

	frames chan Frame
	joins  chan *client
	leaves chan *client
	done   chan struct{}

	// clients is written only by Run; mu lets ClientCount read it.
	mu      sync.RWMutex
	clients map[*client]struct{}

	running atomic.Bool
	dropped atomic.Uint64
}

// New creates a hub. Frames are only delivered while Run is active.
func New(name string, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		name:    name,
		logger:  logger.With("hub", name),
		frames:  make(chan Frame, queueSize),
		joins:   make(chan *client),
		leaves:  make(chan *client),
		done:    make(chan struct{}),
		clients: make(map[*client]struct{}),
	}
}

// Name returns the stream name.
func (h *Hub) Name() string { return h.name }

// Run delivers frames until ctx is done, then disconnects every client.
// Run must be called at most once.
func (h *Hub) Run(ctx context.Context) {
	h.running.Store(true)
	defer h.shutdown()

	for {
		select {
		case <-ctx.Done():
			return
		case c := <-h.joins:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("client connected", "clients", n)
		case c := <-h.leaves:
			if h.drop(c) {
				h.logger.Info("client disconnected", "clients", h.ClientCount())
			}
		case f := <-h.frames:
			h.fanOut(f)
		}
	}
}

func (h *Hub) shutdown() {
	h.running.Store(false)
	close(h.done)

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.out)
	}
}

// fanOut hands f to every client without waiting on any of them.
func (h *Hub) fanOut(f Frame) {
	var lagging []*client
	h.mu.RLock()
	for c := range h.clients {
		select {
		case c.out <- f:
			c.lag = 0
		default:
			c.lag++
			if c.lag >= maxLag {
				lagging = append(lagging, c)
			}
		}
	}
	h.mu.RUnlock()

	for _, c := range lagging {
		if h.drop(c) {
			h.logger.Warn("disconnecting lagging client", "missed", c.lag)
		}
	}
}

// drop removes c and closes its queue. It reports whether c was present.
func (h *Hub) drop(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return false
	}
	delete(h.clients, c)
	close(c.out)
	return true
}

// Serve attaches conn to the hub and blocks until it disconnects. Call it
// from the websocket handler; the connection must not be used afterwards.
func (h *Hub) Serve(conn *websocket.Conn) {
	c := newClient(conn)
	select {
	case h.joins <- c:
	case <-h.done:
		conn.Close()
		return
	}

	written := make(chan struct{})
	go func() {
		defer close(written)
		c.writeLoop()
	}()
	c.readLoop()

	select {
	case h.leaves <- c:
	case <-h.done:
	}
	<-written
}

// Broadcast queues f for every client. It never blocks; frames that do not
// fit the queue are dropped and counted.
func (h *Hub) Broadcast(f Frame) {
	select {
	case h.frames <- f:
	default:
		if n := h.dropped.Add(1); n%100 == 1 {
			h.logger.Warn("broadcast queue full, dropping frames", "dropped", n)
		}
	}
}

// BroadcastJSON encodes v and broadcasts it as a text frame.
func (h *Hub) BroadcastJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	h.Broadcast(Frame{Data: data})
	return nil
}

// BroadcastBinary broadcasts data as a binary frame.
func (h *Hub) BroadcastBinary(data []byte) {
	h.Broadcast(Frame{Binary: true, Data: data})
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// IsRunning reports whether Run is active.
func (h *Hub) IsRunning() bool {
	return h.running.Load()
}

// Dropped returns how many frames were lost to a full queue.
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}
