package wsserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// writeDeadline bounds a single write to the local client.
const writeDeadline = 5 * time.Second

// readDeadline allows about three missed pings before the connection is
// considered dead.
const readDeadline = 90 * time.Second

const pingInterval = 30 * time.Second

// maxReadMessageSize limits incoming frames.
const maxReadMessageSize = 32 * 1024

// transcriptTimeout bounds the handler for one transcript (settle delay plus
// paste plus history write).
const transcriptTimeout = 15 * time.Second

var wsUpgrader = websocket.Upgrader{
	CheckOrigin:     checkOrigin,
	ReadBufferSize:  4 * 1024,
	WriteBufferSize: 4 * 1024,
}

// checkOrigin accepts native clients (no Origin header) and pages served from
// the loopback interface or the Wails asset server. Any other web page must
// not be able to inject keystrokes through the bridge.
func checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	switch strings.ToLower(u.Hostname()) {
	case "127.0.0.1", "localhost", "::1", "wails.localhost":
		return true
	}
	return u.Scheme == "wails"
}

// TranscriptHandler receives a validated transcript frame.
type TranscriptHandler func(ctx context.Context, msg Message) error

// HubOptions configures the bridge.
type HubOptions struct {
	// Addr is the listen address. Use "127.0.0.1:0" for an OS-assigned port.
	Addr string
	// OnTranscript is called on the connection's read goroutine, so
	// transcripts from one client are handled in order.
	OnTranscript TranscriptHandler
}

// Hub serves a single WebSocket client. A new connection replaces the
// existing one.
//
// Lock ordering (never acquire in reverse):
//
//	writeMu -> mu
//
// mu protects conn. writeMu serializes gorilla/websocket writes.
// Any write failure disconnects the client; it must reconnect.
type Hub struct {
	opts HubOptions

	mu   sync.RWMutex
	conn *websocket.Conn

	writeMu sync.Mutex

	listener net.Listener
	server   *http.Server
	url      string

	closeOnce sync.Once
}

// NewHub creates a Hub. It does not listen until Start is called.
func NewHub(opts HubOptions) *Hub {
	if opts.Addr == "" {
		opts.Addr = "127.0.0.1:0"
	}
	return &Hub{opts: opts}
}

// Start listens on the configured address and serves /ws. Request contexts
// derive from ctx. Start must be called once.
func (h *Hub) Start(ctx context.Context) error {
	if h.server != nil {
		return errors.New("wsserver: already started")
	}

	ln, err := net.Listen("tcp", h.opts.Addr)
	if err != nil {
		return fmt.Errorf("wsserver: listen: %w", err)
	}
	h.listener = ln

	port := ln.Addr().(*net.TCPAddr).Port
	h.url = fmt.Sprintf("ws://127.0.0.1:%d/ws", port)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", h.handleWS)

	h.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		if serveErr := h.server.Serve(ln); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			slog.Error("[DEBUG-WS] server error", "error", serveErr)
		}
	}()

	slog.Info("[DEBUG-WS] bridge started", "url", h.url)
	return nil
}

// Stop closes the active connection and shuts the server down. It is
// idempotent; a stopped Hub cannot be restarted.
func (h *Hub) Stop() error {
	var stopErr error
	h.closeOnce.Do(func() {
		h.mu.Lock()
		conn := h.conn
		h.conn = nil
		h.mu.Unlock()

		if conn != nil {
			h.closeConn(conn, "hub stop")
		}

		if h.server != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := h.server.Shutdown(shutdownCtx); err != nil {
				stopErr = fmt.Errorf("wsserver: shutdown: %w", err)
			}
		}
		slog.Info("[DEBUG-WS] bridge stopped")
	})
	return stopErr
}

// URL returns the bridge URL, or "" before Start.
func (h *Hub) URL() string {
	return h.url
}

// HasActiveConnection reports whether a client is connected.
func (h *Hub) HasActiveConnection() bool {
	h.mu.RLock()
	active := h.conn != nil
	h.mu.RUnlock()
	return active
}

func (h *Hub) clearIfCurrent(conn *websocket.Conn) bool {
	h.mu.Lock()
	isCurrent := h.conn == conn
	if isCurrent {
		h.conn = nil
	}
	h.mu.Unlock()
	return isCurrent
}

// closeConn closes conn. Closing an already closed connection only returns
// an error, which is logged at debug.
func (h *Hub) closeConn(conn *websocket.Conn, reason string) {
	if closeErr := conn.Close(); closeErr != nil {
		slog.Debug("[DEBUG-WS] connection close", "reason", reason, "error", closeErr)
	}
}

// writeJSON sends msg to conn under writeMu with a write deadline. On failure
// the connection is dropped.
func (h *Hub) writeJSON(conn *websocket.Conn, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("wsserver: marshal %s: %w", msg.Type, err)
	}
	return h.write(conn, websocket.TextMessage, payload)
}

func (h *Hub) write(conn *websocket.Conn, messageType int, payload []byte) error {
	h.writeMu.Lock()
	err := conn.SetWriteDeadline(time.Now().Add(writeDeadline))
	if err == nil {
		err = conn.WriteMessage(messageType, payload)
		if clearErr := conn.SetWriteDeadline(time.Time{}); clearErr != nil {
			slog.Debug("[DEBUG-WS] clear write deadline failed (non-fatal)", "error", clearErr)
		}
	}
	h.writeMu.Unlock()

	if err != nil {
		slog.Warn("[DEBUG-WS] write failed, closing connection", "error", err)
		h.clearIfCurrent(conn)
		h.closeConn(conn, "write error")
		return err
	}
	return nil
}

// Broadcast sends msg to the connected client. It reports whether a client
// received it; with no client the call is a no-op.
func (h *Hub) Broadcast(msg Message) bool {
	h.mu.RLock()
	conn := h.conn
	h.mu.RUnlock()

	// A reload may swap the connection after the read above. The stale write
	// fails and clearIfCurrent leaves the new connection alone.
	if conn == nil {
		slog.Debug("[DEBUG-WS] broadcast skipped: no client", "type", msg.Type, "name", msg.Name)
		return false
	}
	return h.writeJSON(conn, msg) == nil
}

func (h *Hub) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("[DEBUG-WS] upgrade failed", "error", err, "origin", r.Header.Get("Origin"))
		return
	}

	conn.SetReadLimit(maxReadMessageSize)
	if err := conn.SetReadDeadline(time.Now().Add(readDeadline)); err != nil {
		slog.Warn("[DEBUG-WS] SetReadDeadline failed on new connection", "error", err)
		h.closeConn(conn, "initial SetReadDeadline failure")
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readDeadline))
	})

	h.mu.Lock()
	oldConn := h.conn
	h.conn = conn
	h.mu.Unlock()
	if oldConn != nil {
		h.closeConn(oldConn, "replaced by new connection")
	}

	slog.Info("[DEBUG-WS] client connected", "remoteAddr", conn.RemoteAddr())

	pingDone := make(chan struct{})
	go h.pingLoop(conn, pingDone)

	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("[DEBUG-PANIC] wsserver handleWS recovered",
				"panic", rec,
				"stack", string(debug.Stack()),
			)
		}
		close(pingDone)
		h.clearIfCurrent(conn)
		h.closeConn(conn, "read pump exit")
		slog.Info("[DEBUG-WS] client disconnected")
	}()

	for {
		msgType, raw, readErr := conn.ReadMessage()
		if readErr != nil {
			if websocket.IsUnexpectedCloseError(readErr, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("[DEBUG-WS] read error", "error", readErr)
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		h.handleClientMessage(r.Context(), conn, raw)
	}
}

func (h *Hub) handleClientMessage(ctx context.Context, conn *websocket.Conn, raw []byte) {
	msg, err := DecodeClientMessage(raw)
	if err != nil {
		slog.Debug("[DEBUG-WS] rejected client message", "error", err)
		_ = h.writeJSON(conn, Message{Type: TypeError, ID: msg.ID, Message: err.Error()})
		return
	}

	if h.opts.OnTranscript == nil {
		_ = h.writeJSON(conn, Message{Type: TypeError, ID: msg.ID, Message: "transcripts are not accepted"})
		return
	}

	handlerCtx, cancel := context.WithTimeout(ctx, transcriptTimeout)
	defer cancel()
	if err := h.opts.OnTranscript(handlerCtx, msg); err != nil {
		slog.Warn("[DEBUG-WS] transcript handler failed", "id", msg.ID, "error", err)
		_ = h.writeJSON(conn, Message{Type: TypeError, ID: msg.ID, Message: err.Error()})
		return
	}
	_ = h.writeJSON(conn, Message{Type: TypeAck, ID: msg.ID})
}

// pingLoop sends keepalive pings until done is closed or a ping fails.
func (h *Hub) pingLoop(conn *websocket.Conn, done <-chan struct{}) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("[DEBUG-PANIC] wsserver pingLoop recovered",
				"panic", rec,
				"stack", string(debug.Stack()),
			)
			h.clearIfCurrent(conn)
			h.closeConn(conn, "pingLoop panic recovery")
		}
	}()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := h.write(conn, websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
