package ws

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"echobox/internal/models"
)

func startHub(t *testing.T) *Hub {
	t.Helper()

	hub := NewHub()
	go hub.Run()
	t.Cleanup(hub.Shutdown)
	return hub
}

func startListenerServer(t *testing.T, hub *Hub, user *models.User) *httptest.Server {
	t.Helper()

	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		client := NewClient(hub, conn, user)
		client.SendHello()
		if err := client.Register(); err != nil {
			client.Close()
			return
		}
		go client.WritePump()
		go client.ReadPump()
	}))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) WSMessage {
	t.Helper()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg WSMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	return msg
}

func waitForClients(t *testing.T, hub *Hub, want int) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if hub.ClientCount() == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("ClientCount() = %d, want %d", hub.ClientCount(), want)
}

func TestListenerReceivesHelloThenDispatch(t *testing.T) {
	hub := startHub(t)
	srv := startListenerServer(t, hub, nil)
	conn := dial(t, srv)

	hello := readMessage(t, conn)
	if hello.Op != OpHello {
		t.Fatalf("first frame op = %d, want %d", hello.Op, OpHello)
	}
	data, _ := hello.Data.(map[string]any)
	if data["authenticated"] != false {
		t.Fatalf("hello authenticated = %v, want false", data["authenticated"])
	}

	waitForClients(t, hub, 1)
	hub.Publish("remove_echo", map[string]string{"id": "ech_1"})

	msg := readMessage(t, conn)
	if msg.Op != OpDispatch || msg.Type != "remove_echo" {
		t.Fatalf("dispatch = op %d type %q, want remove_echo", msg.Op, msg.Type)
	}
	if msg.Seq == nil || *msg.Seq != 1 {
		t.Fatalf("Seq = %v, want 1", msg.Seq)
	}
	payload, _ := msg.Data.(map[string]any)
	if payload["id"] != "ech_1" {
		t.Fatalf("payload = %v, want id ech_1", msg.Data)
	}
}

func TestPublishFansOutToEveryListener(t *testing.T) {
	hub := startHub(t)
	srv := startListenerServer(t, hub, &models.User{ID: "usr_1"})

	conns := []*websocket.Conn{dial(t, srv), dial(t, srv), dial(t, srv)}
	for _, conn := range conns {
		readMessage(t, conn)
	}
	waitForClients(t, hub, len(conns))

	hub.Publish("new_echo_live", map[string]string{"id": "ech_a"})
	hub.Publish("update_echo", map[string]string{"id": "ech_a"})

	for i, conn := range conns {
		first := readMessage(t, conn)
		second := readMessage(t, conn)
		if first.Type != "new_echo_live" || second.Type != "update_echo" {
			t.Fatalf("conn %d got %q then %q, want emission order", i, first.Type, second.Type)
		}
		if *second.Seq <= *first.Seq {
			t.Fatalf("conn %d sequence %d then %d, want increasing", i, *first.Seq, *second.Seq)
		}
	}
}

func TestDisconnectUnregisters(t *testing.T) {
	hub := startHub(t)
	srv := startListenerServer(t, hub, nil)
	conn := dial(t, srv)
	readMessage(t, conn)
	waitForClients(t, hub, 1)

	_ = conn.Close()

	waitForClients(t, hub, 0)
}

func TestPublishAfterShutdownDoesNotBlock(t *testing.T) {
	hub := NewHub()
	hub.Shutdown()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			hub.Publish("update_echo", nil)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish() blocked after Shutdown()")
	}
}

func TestSlowClientDisconnected(t *testing.T) {
	hub := NewHub()

	conns := make(chan *websocket.Conn, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := (&websocket.Upgrader{}).Upgrade(w, r, nil)
		if err == nil {
			conns <- conn
		}
	}))
	defer server.Close()
	dial(t, server)

	var serverConn *websocket.Conn
	select {
	case serverConn = <-conns:
	case <-time.After(2 * time.Second):
		t.Fatal("server connection was not established")
	}

	c := NewClient(hub, serverConn, nil)
	c.send = make(chan *WSMessage, 1)
	c.state.Store(int32(ClientStateListening))

	msg := &WSMessage{Op: OpDispatch, Type: "update_echo"}
	for i := 0; i <= maxDroppedMessagesBeforeDisconnect; i++ {
		hub.sendToClientLocked(c, msg)
	}

	if !c.IsClosed() {
		t.Fatalf("State() = %s, want closing or closed", c.State())
	}
}

func TestClientTransitionTable(t *testing.T) {
	tests := []struct {
		name string
		from ClientState
		to   ClientState
		ok   bool
	}{
		{name: "connected_to_listening", from: ClientStateConnected, to: ClientStateListening, ok: true},
		{name: "connected_to_closing", from: ClientStateConnected, to: ClientStateClosing, ok: true},
		{name: "listening_to_closing", from: ClientStateListening, to: ClientStateClosing, ok: true},
		{name: "closing_to_closed", from: ClientStateClosing, to: ClientStateClosed, ok: true},
		{name: "listening_to_connected_invalid", from: ClientStateListening, to: ClientStateConnected, ok: false},
		{name: "closed_to_listening_invalid", from: ClientStateClosed, to: ClientStateListening, ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isValidClientTransition(tt.from, tt.to); got != tt.ok {
				t.Fatalf("isValidClientTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.ok)
			}
		})
	}
}
