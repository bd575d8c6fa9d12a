package api

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/jayapriya2010/aquaponics-server/internal/store"
)

func TestHub_Broadcast(t *testing.T) {
	hub := NewHub()
	ch := hub.subscribe()
	defer hub.unsubscribe(ch)

	hub.Broadcast(store.Reading{ID: "7", WaterLevel: 12.5})

	select {
	case r := <-ch:
		if r.ID != "7" || r.WaterLevel != 12.5 {
			t.Errorf("received %+v", r)
		}
	case <-time.After(time.Second):
		t.Fatal("no reading delivered")
	}
}

func TestHub_BroadcastMultipleSubscribers(t *testing.T) {
	hub := NewHub()
	a := hub.subscribe()
	b := hub.subscribe()
	defer hub.unsubscribe(a)
	defer hub.unsubscribe(b)

	hub.Broadcast(store.Reading{ID: "1"})

	for _, ch := range []chan store.Reading{a, b} {
		select {
		case r := <-ch:
			if r.ID != "1" {
				t.Errorf("received %+v", r)
			}
		case <-time.After(time.Second):
			t.Fatal("subscriber missed the broadcast")
		}
	}
}

func TestHub_SlowSubscriberDropsNotBlocks(t *testing.T) {
	hub := NewHub()
	ch := hub.subscribe()
	defer hub.unsubscribe(ch)

	// Nobody reads ch; broadcasts past its capacity must not block.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			hub.Broadcast(store.Reading{WaterLevel: float64(i)})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Broadcast blocked on a slow subscriber")
	}
	if got := len(ch); got != cap(ch) {
		t.Errorf("queued %d readings, want full queue of %d with the rest dropped", got, cap(ch))
	}
}

func TestHub_UnsubscribeStopsDelivery(t *testing.T) {
	hub := NewHub()
	ch := hub.subscribe()
	hub.unsubscribe(ch)

	hub.Broadcast(store.Reading{ID: "1"})

	select {
	case r := <-ch:
		t.Errorf("received %+v after unsubscribe", r)
	default:
	}
}

func TestStreamReadings(t *testing.T) {
	ts := setupTestServer(t, nil)
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/sensor-data/stream"

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("websocket dial: %v", err)
	}
	defer c.CloseNow() //nolint:errcheck

	// The handler subscribes asynchronously after the handshake, so keep
	// posting until a message comes through.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		body := `{"waterLevel": 12.5, "temperatureCelsius": 28.3, "temperatureFahrenheit": 82.9}`
		for {
			select {
			case <-stop:
				return
			default:
			}
			resp, err := http.Post(ts.URL+"/api/sensor-data", "application/json", strings.NewReader(body))
			if err == nil {
				resp.Body.Close() //nolint:errcheck
			}
			time.Sleep(25 * time.Millisecond)
		}
	}()

	var r store.Reading
	if err := wsjson.Read(ctx, c, &r); err != nil {
		t.Fatalf("reading stream message: %v", err)
	}
	if r.WaterLevel != 12.5 || r.TemperatureFahrenheit != 82.9 {
		t.Errorf("streamed reading = %+v, want the posted values", r)
	}
	if r.ID == "" || r.Timestamp == "" {
		t.Errorf("streamed reading missing id or timestamp: %+v", r)
	}
}
