package services

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"mockmate/models"
)

func newHubServer(t *testing.T, hub *WebSocketHub, registered chan<- *Client) *httptest.Server {
	t.Helper()

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		client := hub.Register(conn, r.URL.Query().Get("session"))
		go client.WritePump()
		registered <- client
		client.ReadPump()
		hub.Unregister(client)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func dialHub(t *testing.T, srv *httptest.Server, session string) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?session=" + session
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestWebSocketHub_BroadcastToSession(t *testing.T) {
	hub := NewWebSocketHub(zerolog.Nop())
	registered := make(chan *Client, 4)
	srv := newHubServer(t, hub, registered)

	viewer := dialHub(t, srv, "s1")
	other := dialHub(t, srv, "s2")
	<-registered
	<-registered

	if hub.ClientCount("s1") != 1 || hub.ClientCount("s2") != 1 {
		t.Fatalf("counts s1=%d s2=%d", hub.ClientCount("s1"), hub.ClientCount("s2"))
	}

	hub.Broadcast("s1", models.Navigate{Type: models.MessageTypeNavigate, SessionID: "s1", Destination: "/"})

	_ = viewer.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got models.Navigate
	if err := viewer.ReadJSON(&got); err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.Destination != "/" || got.SessionID != "s1" {
		t.Fatalf("got=%+v", got)
	}

	_ = other.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	if _, _, err := other.ReadMessage(); err == nil {
		t.Fatalf("viewer of another session received the broadcast")
	}
}

func TestWebSocketHub_SendJSONAndUnregister(t *testing.T) {
	hub := NewWebSocketHub(zerolog.Nop())
	registered := make(chan *Client, 4)
	srv := newHubServer(t, hub, registered)

	conn := dialHub(t, srv, "s1")
	first := <-registered
	dialHub(t, srv, "s1")
	second := <-registered

	if err := first.SendJSON(models.ConnectionResponse{Type: models.MessageTypeConnection, Status: "connected"}); err != nil {
		t.Fatalf("SendJSON: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var hello models.ConnectionResponse
	if err := conn.ReadJSON(&hello); err != nil || hello.Status != "connected" {
		t.Fatalf("hello=%+v err=%v", hello, err)
	}

	if left := hub.Unregister(first); left != 1 {
		t.Fatalf("left=%d, want 1", left)
	}
	if left := hub.Unregister(first); left != 1 {
		t.Fatalf("second unregister left=%d, want 1", left)
	}
	if err := first.SendJSON("late"); err == nil {
		t.Fatalf("SendJSON after unregister should fail")
	}
	if left := hub.Unregister(second); left != 0 {
		t.Fatalf("left=%d, want 0", left)
	}
	if hub.ClientCount("s1") != 0 {
		t.Fatalf("count=%d", hub.ClientCount("s1"))
	}
}
