package broker

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

func TestNextReconnectDelayBacksOffAndResets(t *testing.T) {
	tests := []struct {
		name      string
		current   time.Duration
		connected bool
		want      time.Duration
	}{
		{"first failure starts at base", 0, false, reconnectBaseDelay},
		{"repeated failures double", reconnectBaseDelay, false, 2 * reconnectBaseDelay},
		{"backoff caps at max", 16 * time.Second, false, reconnectMaxDelay},
		{"stays at max", reconnectMaxDelay, false, reconnectMaxDelay},
		{"healthy session resets to base", reconnectMaxDelay, true, reconnectBaseDelay},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := nextReconnectDelay(tt.current, tt.connected)
			if got != tt.want {
				t.Fatalf("nextReconnectDelay(%s, %v) = %s, want %s", tt.current, tt.connected, got, tt.want)
			}
		})
	}
}

func TestTickFeedDeliversTicks(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		if _, _, err := conn.ReadMessage(); err != nil { // subscribe request
			return
		}
		_ = conn.WriteMessage(websocket.TextMessage,
			[]byte(`{"symbol":"NIFTY","price":24510.5,"timestamp":1767328200000}`))
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	feed := NewTickFeed(url, "NIFTY", &Credentials{AccessToken: "token"}, zerolog.Nop())
	feed.Start()
	defer feed.Stop()

	select {
	case tick := <-feed.Ticks():
		if tick.Symbol != "NIFTY" {
			t.Fatalf("symbol = %q, want NIFTY", tick.Symbol)
		}
		if tick.Price != 24510.5 {
			t.Fatalf("price = %.2f, want 24510.50", tick.Price)
		}
		if tick.Timestamp.UnixMilli() != 1767328200000 {
			t.Fatalf("timestamp = %s", tick.Timestamp)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no tick received before timeout")
	}
}
