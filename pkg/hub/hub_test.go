package hub

import (
	"context"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	gorilla "github.com/gorilla/websocket"
)

func startServer(t *testing.T, h *Hub, addr string) {
	t.Helper()
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Get("/ws", websocket.New(func(c *websocket.Conn) {
		h.Serve(c)
	}))

	go app.Listen(addr)
	t.Cleanup(func() { app.Shutdown() })
	time.Sleep(100 * time.Millisecond)
}

func waitClients(t *testing.T, h *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for h.ClientCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("ClientCount = %d, want %d", h.ClientCount(), n)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestHub_BroadcastJSONAndBinary(t *testing.T) {
	h := New("test", nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	startServer(t, h, ":18090")

	ws, _, err := gorilla.DefaultDialer.Dial("ws://localhost:18090/ws", nil)
	if err != nil {
		t.Fatalf("WebSocket dial error: %v", err)
	}
	defer ws.Close()
	waitClients(t, h, 1)

	if err := h.BroadcastJSON(map[string]int{"tick": 7}); err != nil {
		t.Fatalf("BroadcastJSON: %v", err)
	}
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	typ, data, err := ws.ReadMessage()
	if err != nil {
		t.Fatalf("Read error: %v", err)
	}
	if typ != gorilla.TextMessage || string(data) != `{"tick":7}` {
		t.Errorf("got type %d %q", typ, data)
	}

	h.BroadcastBinary([]byte{1, 2, 3})
	typ, data, err = ws.ReadMessage()
	if err != nil {
		t.Fatalf("Read error: %v", err)
	}
	if typ != gorilla.BinaryMessage || len(data) != 3 {
		t.Errorf("got type %d %v", typ, data)
	}

	ws.Close()
	waitClients(t, h, 0)
}

func TestHub_BroadcastWithoutRunDoesNotBlock(t *testing.T) {
	h := New("idle", nil)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			h.Broadcast(Frame{Data: []byte("{}")})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Broadcast blocked")
	}
	if h.Dropped() != 1000-256 {
		t.Errorf("Dropped = %d, want %d", h.Dropped(), 1000-256)
	}
}

func TestHub_RunStops(t *testing.T) {
	h := New("stop", nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	if !h.IsRunning() {
		t.Error("hub should be running")
	}
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return")
	}
	if h.IsRunning() {
		t.Error("hub should not be running")
	}
}

func TestHub_DisconnectsLaggingClient(t *testing.T) {
	h := New("lag", nil)
	slow := &client{out: make(chan Frame, 1)}
	fast := &client{out: make(chan Frame, maxLag+1)}
	h.clients[slow] = struct{}{}
	h.clients[fast] = struct{}{}

	for i := 0; i < maxLag; i++ {
		h.fanOut(Frame{Data: []byte("{}")})
	}
	if slow.lag != maxLag-1 {
		t.Errorf("lag = %d, want %d", slow.lag, maxLag-1)
	}
	if h.ClientCount() != 2 {
		t.Fatalf("ClientCount = %d, want 2 before the limit", h.ClientCount())
	}

	h.fanOut(Frame{Data: []byte("{}")})
	if h.ClientCount() != 1 {
		t.Fatalf("ClientCount = %d, want 1", h.ClientCount())
	}
	if _, ok := h.clients[fast]; !ok {
		t.Error("fast client should stay connected")
	}

	<-slow.out
	if _, ok := <-slow.out; ok {
		t.Error("slow client queue should be closed")
	}
}
