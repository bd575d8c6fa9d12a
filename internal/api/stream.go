package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/jayapriya2010/aquaponics-server/internal/metrics"
	"github.com/jayapriya2010/aquaponics-server/internal/store"
)

// Hub fans newly created readings out to WebSocket subscribers. Subscribers
// that fall behind drop readings rather than block ingestion.
type Hub struct {
	mu   sync.Mutex
	subs map[chan store.Reading]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[chan store.Reading]struct{})}
}

// Broadcast delivers the reading to every subscriber with room in its queue.
func (h *Hub) Broadcast(r store.Reading) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- r:
		default:
		}
	}
}

func (h *Hub) subscribe() chan store.Reading {
	ch := make(chan store.Reading, 16)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	metrics.StreamClientConnected(1)
	return ch
}

func (h *Hub) unsubscribe(ch chan store.Reading) {
	h.mu.Lock()
	delete(h.subs, ch)
	h.mu.Unlock()
	metrics.StreamClientConnected(-1)
}

// StreamReadings handles GET /api/sensor-data/stream. Each reading accepted
// by POST /api/sensor-data is pushed to connected clients as a JSON message.
func (h *Handlers) StreamReadings(w http.ResponseWriter, r *http.Request) {
	if h.Hub == nil {
		writeError(w, http.StatusNotFound, "streaming not enabled")
		return
	}

	c, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.Logger.Warn("websocket accept failed", "error", err)
		return
	}
	defer c.CloseNow() //nolint:errcheck

	ch := h.Hub.subscribe()
	defer h.Hub.unsubscribe(ch)

	// Clients only listen; CloseRead surfaces disconnects via the context.
	ctx := c.CloseRead(r.Context())

	for {
		select {
		case <-ctx.Done():
			_ = c.Close(websocket.StatusNormalClosure, "")
			return
		case reading := <-ch:
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := wsjson.Write(writeCtx, c, reading)
			cancel()
			if err != nil {
				return
			}
		}
	}
}
