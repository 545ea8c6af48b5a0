package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/crowdsong/crowdsong/internal/logger"
	"github.com/crowdsong/crowdsong/internal/models"
)

func startHub(t *testing.T) (*Hub, *httptest.Server, context.CancelFunc) {
	t.Helper()
	hub := New(logger.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	server := httptest.NewServer(http.HandlerFunc(hub.ServeWs))
	t.Cleanup(func() {
		cancel()
		server.Close()
	})
	return hub, server, cancel
}

func dial(t *testing.T, server *httptest.Server, sessionID string) *websocket.Conn {
	t.Helper()
	url := "ws" + server.URL[4:] + "?session=" + sessionID
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	t.Cleanup(func() { ws.Close() })

	evt := readEvent(t, ws)
	if evt.Type != EventConnected || evt.SessionID != sessionID {
		t.Fatalf("expected connected event for %s, got %+v", sessionID, evt)
	}
	return ws
}

func readEvent(t *testing.T, ws *websocket.Conn) models.Event {
	t.Helper()
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, message, err := ws.ReadMessage()
	if err != nil {
		t.Fatalf("failed to read message: %v", err)
	}
	var evt models.Event
	if err := json.Unmarshal(message, &evt); err != nil {
		t.Fatalf("failed to unmarshal message: %v", err)
	}
	return evt
}

func waitForClients(t *testing.T, hub *Hub, sessionID string, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if hub.ClientCount(sessionID) == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("expected %d clients for %s, got %d", want, sessionID, hub.ClientCount(sessionID))
}

func TestNew_CreatesHub(t *testing.T) {
	hub := New(logger.Discard())

	if hub.clients == nil {
		t.Error("expected clients map to be initialized")
	}
	if hub.broadcast == nil || hub.register == nil || hub.unregister == nil {
		t.Error("expected channels to be initialized")
	}
}

func TestServeWs_RequiresSession(t *testing.T) {
	hub := New(logger.Discard())

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	w := httptest.NewRecorder()
	hub.ServeWs(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", w.Code)
	}
}

func TestServeWs_ClientConnection(t *testing.T) {
	hub, server, _ := startHub(t)

	dial(t, server, "s1")
	waitForClients(t, hub, "s1", 1)

	if hub.ClientCount("s2") != 0 {
		t.Error("expected no clients for another session")
	}
}

func TestPublish_ScopedToSession(t *testing.T) {
	hub, server, _ := startHub(t)

	a := dial(t, server, "s1")
	b := dial(t, server, "s2")
	waitForClients(t, hub, "s1", 1)
	waitForClients(t, hub, "s2", 1)

	hub.Publish(models.Event{Type: models.EventOptionVoteRecorded, SessionID: "s1", Payload: map[string]int{"votes": 3}})
	hub.Publish(models.Event{Type: models.EventStageAdvanced, SessionID: "s2"})

	got := readEvent(t, a)
	if got.Type != models.EventOptionVoteRecorded {
		t.Errorf("s1 client got %s, want %s", got.Type, models.EventOptionVoteRecorded)
	}
	payload, ok := got.Payload.(map[string]interface{})
	if !ok || payload["votes"] != float64(3) {
		t.Errorf("unexpected payload %#v", got.Payload)
	}

	got = readEvent(t, b)
	if got.Type != models.EventStageAdvanced {
		t.Errorf("s2 client got %s, want only its own session's event", got.Type)
	}
}

func TestPublish_NoSubscribers(t *testing.T) {
	hub, _, _ := startHub(t)

	// Must not block or panic
	for i := 0; i < 10; i++ {
		hub.Publish(models.Event{Type: models.EventSessionUpdated, SessionID: "nobody"})
	}
}

func TestPublish_DoesNotBlockWithoutRun(t *testing.T) {
	hub := New(logger.Discard())

	done := make(chan struct{})
	go func() {
		for i := 0; i < publishBuffer+10; i++ {
			hub.Publish(models.Event{Type: models.EventSessionUpdated, SessionID: "s1"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked with a full queue")
	}
}

func TestClientDisconnect_Unregisters(t *testing.T) {
	hub, server, _ := startHub(t)

	ws := dial(t, server, "s1")
	waitForClients(t, hub, "s1", 1)

	ws.Close()
	waitForClients(t, hub, "s1", 0)
}

func TestRun_StopsOnCancel(t *testing.T) {
	hub := New(logger.Discard())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- hub.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v, want nil", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func TestRun_ClosesClientsOnShutdown(t *testing.T) {
	hub, server, cancel := startHub(t)

	ws := dial(t, server, "s1")
	waitForClients(t, hub, "s1", 1)

	cancel()

	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := ws.ReadMessage(); err == nil {
		t.Error("expected the connection to close on shutdown")
	}
}
