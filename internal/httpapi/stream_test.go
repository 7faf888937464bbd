package httpapi

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestOutboxStreamPushesStatsSnapshot(t *testing.T) {
	api, _, _ := newTestAPI(t)

	server := httptest.NewServer(api.Mux())
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/debug/outbox/stream"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var stats map[string]int
	if err := conn.ReadJSON(&stats); err != nil {
		t.Fatalf("expected a stats snapshot to be pushed, got: %v", err)
	}
}

func TestNewStatsHubStartsWithNoClients(t *testing.T) {
	api, _, _ := newTestAPI(t)
	h := newStatsHub(api)

	if len(h.clients) != 0 {
		t.Fatalf("expected a fresh hub to have no clients, got %d", len(h.clients))
	}
}
