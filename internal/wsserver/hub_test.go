package wsserver

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"vochat/internal/testutil"
)

const testListenAddr = "127.0.0.1:0"

func startHub(t *testing.T, opts HubOptions) *Hub {
	t.Helper()
	if opts.Addr == "" {
		opts.Addr = testListenAddr
	}
	hub := NewHub(opts)
	if err := hub.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() {
		if err := hub.Stop(); err != nil {
			t.Errorf("Stop() error = %v", err)
		}
	})
	return hub
}

func dialHub(t *testing.T, hub *Hub, header http.Header) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(hub.URL(), header)
	if err != nil {
		t.Fatalf("failed to dial hub: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func waitForConnection(t *testing.T, hub *Hub) {
	t.Helper()
	testutil.WaitFor(t, 2*time.Second, "hub connection", hub.HasActiveConnection)
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	if err := conn.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatalf("SetReadDeadline() error = %v", err)
	}
	var msg Message
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	return msg
}

func TestHubStartAssignsLoopbackURL(t *testing.T) {
	hub := startHub(t, HubOptions{})
	if !strings.HasPrefix(hub.URL(), "ws://127.0.0.1:") || !strings.HasSuffix(hub.URL(), "/ws") {
		t.Fatalf("URL() = %q", hub.URL())
	}
	if err := hub.Start(context.Background()); err == nil {
		t.Fatal("second Start() should fail")
	}
}

func TestHubBroadcastWithoutClient(t *testing.T) {
	hub := startHub(t, HubOptions{})
	if hub.Broadcast(EventMessage("hotkey-pressed", "s1")) {
		t.Fatal("Broadcast() without a client should report false")
	}
}

func TestHubBroadcastDeliversEvent(t *testing.T) {
	hub := startHub(t, HubOptions{})
	conn := dialHub(t, hub, nil)
	waitForConnection(t, hub)

	if !hub.Broadcast(EventMessage("hotkey-pressed", "s1")) {
		t.Fatal("Broadcast() = false")
	}
	got := readMessage(t, conn)
	want := Message{Type: TypeEvent, Name: "hotkey-pressed", Session: "s1"}
	if got != want {
		t.Fatalf("received %+v, want %+v", got, want)
	}
}

func TestHubNewConnectionReplacesOld(t *testing.T) {
	hub := startHub(t, HubOptions{})
	first := dialHub(t, hub, nil)
	waitForConnection(t, hub)
	second := dialHub(t, hub, nil)

	// The old connection is closed by the server.
	if err := first.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatal(err)
	}
	if _, _, err := first.ReadMessage(); err == nil {
		t.Fatal("old connection should be closed")
	}

	testutil.WaitFor(t, 2*time.Second, "broadcast to new connection", func() bool {
		return hub.Broadcast(EventMessage("hotkey-released", "s2"))
	})
	if got := readMessage(t, second); got.Name != "hotkey-released" {
		t.Fatalf("new connection received %+v", got)
	}
}

func TestHubClearsConnectionOnClientClose(t *testing.T) {
	hub := startHub(t, HubOptions{})
	conn := dialHub(t, hub, nil)
	waitForConnection(t, hub)

	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_ = conn.Close()
	testutil.WaitFor(t, 2*time.Second, "connection cleared", func() bool {
		return !hub.HasActiveConnection()
	})
}

func TestHubTranscriptAck(t *testing.T) {
	var (
		mu  sync.Mutex
		got []Message
	)
	hub := startHub(t, HubOptions{OnTranscript: func(_ context.Context, msg Message) error {
		mu.Lock()
		got = append(got, msg)
		mu.Unlock()
		return nil
	}})
	conn := dialHub(t, hub, nil)

	if err := conn.WriteJSON(Message{Type: TypeTranscript, ID: "1", Session: "s1", Text: "hello"}); err != nil {
		t.Fatal(err)
	}
	reply := readMessage(t, conn)
	if reply.Type != TypeAck || reply.ID != "1" {
		t.Fatalf("reply = %+v, want ack for id 1", reply)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 || got[0].Text != "hello" || got[0].Session != "s1" {
		t.Fatalf("handler received %+v", got)
	}
}

func TestHubTranscriptErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler TranscriptHandler
		send    string
		wantSub string
	}{
		{
			name:    "handler failure",
			handler: func(context.Context, Message) error { return errors.New("paste blocked") },
			send:    `{"type":"transcript","id":"7","text":"hi"}`,
			wantSub: "paste blocked",
		},
		{
			name:    "no handler",
			send:    `{"type":"transcript","id":"7","text":"hi"}`,
			wantSub: "not accepted",
		},
		{
			name:    "empty text",
			handler: func(context.Context, Message) error { return nil },
			send:    `{"type":"transcript","id":"7","text":"  "}`,
			wantSub: "empty",
		},
		{
			name:    "unknown type",
			handler: func(context.Context, Message) error { return nil },
			send:    `{"type":"subscribe","id":"7"}`,
			wantSub: "unsupported",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hub := startHub(t, HubOptions{OnTranscript: tt.handler})
			conn := dialHub(t, hub, nil)
			if err := conn.WriteMessage(websocket.TextMessage, []byte(tt.send)); err != nil {
				t.Fatal(err)
			}
			reply := readMessage(t, conn)
			if reply.Type != TypeError || reply.ID != "7" || !strings.Contains(reply.Message, tt.wantSub) {
				t.Fatalf("reply = %+v, want error containing %q", reply, tt.wantSub)
			}
		})
	}
}

func TestHubRejectsForeignOrigin(t *testing.T) {
	hub := startHub(t, HubOptions{})
	header := http.Header{"Origin": []string{"https://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(hub.URL(), header)
	if err == nil {
		t.Fatal("dial from foreign origin should fail")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Fatalf("response = %v, want 403", resp)
	}
}

func TestCheckOrigin(t *testing.T) {
	tests := []struct {
		origin string
		want   bool
	}{
		{origin: "", want: true},
		{origin: "http://localhost:34115", want: true},
		{origin: "http://127.0.0.1:8080", want: true},
		{origin: "wails://wails", want: true},
		{origin: "http://wails.localhost", want: true},
		{origin: "https://example.com", want: false},
		{origin: "http://localhost.example.com", want: false},
	}
	for _, tt := range tests {
		r, err := http.NewRequest(http.MethodGet, "http://127.0.0.1/ws", nil)
		if err != nil {
			t.Fatal(err)
		}
		if tt.origin != "" {
			r.Header.Set("Origin", tt.origin)
		}
		if got := checkOrigin(r); got != tt.want {
			t.Errorf("checkOrigin(%q) = %v, want %v", tt.origin, got, tt.want)
		}
	}
}

func TestHubStopIsIdempotent(t *testing.T) {
	hub := NewHub(HubOptions{Addr: testListenAddr})
	if err := hub.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	conn, _, err := websocket.DefaultDialer.Dial(hub.URL(), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	waitForConnection(t, hub)

	if err := hub.Stop(); err != nil {
		t.Fatalf("first Stop() error = %v", err)
	}
	if err := hub.Stop(); err != nil {
		t.Fatalf("second Stop() error = %v", err)
	}
	if hub.HasActiveConnection() {
		t.Fatal("Stop() should clear the connection")
	}
}
