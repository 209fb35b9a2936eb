package httpapi

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"reporta.org/internal/audit"
	"reporta.org/internal/ids"
	"reporta.org/internal/notify"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 50 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Same posture as the HTTP CORS layer: any origin may connect.
	CheckOrigin: func(*http.Request) bool { return true },
}

// wsHub owns the live WebSocket connections and implements notify.Sender.
// Writes are serialized per connection; a failed write means the peer is
// gone, so the connection is dropped and ErrGone bubbles to the notifier.
type wsHub struct {
	dir notify.Directory

	mu    sync.RWMutex
	conns map[string]*wsConn
}

type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func newWSHub(dir notify.Directory) *wsHub {
	return &wsHub{dir: dir, conns: make(map[string]*wsConn)}
}

func (h *wsHub) add(id string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[id] = &wsConn{conn: conn}
}

func (h *wsHub) remove(id string) {
	h.mu.Lock()
	c, ok := h.conns[id]
	delete(h.conns, id)
	h.mu.Unlock()
	if ok {
		_ = c.conn.Close()
	}
}

func (h *wsHub) closeAll() {
	h.mu.Lock()
	conns := h.conns
	h.conns = make(map[string]*wsConn)
	h.mu.Unlock()
	for _, c := range conns {
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(wsWriteWait))
		_ = c.conn.Close()
	}
}

// Send implements notify.Sender. Unknown ids and write failures both mean
// the peer is unreachable from this process.
func (h *wsHub) Send(_ context.Context, connectionID string, payload []byte) error {
	h.mu.RLock()
	c, ok := h.conns[connectionID]
	h.mu.RUnlock()
	if !ok {
		return notify.ErrGone
	}

	c.mu.Lock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	err := c.conn.WriteMessage(websocket.TextMessage, payload)
	c.mu.Unlock()

	if err != nil {
		h.remove(connectionID)
		return notify.ErrGone
	}
	return nil
}

// handleWS upgrades the request and registers the connection. Browsers
// cannot set custom headers on the WebSocket handshake, so ?email= is
// accepted as a fallback claim. A claim that resolves ties the connection to
// that identity for targeted events; otherwise the connection is anonymous
// and receives broadcasts only.
func (a *API) handleWS(w http.ResponseWriter, r *http.Request) {
	claim := a.identityClaim(r)
	if claim == "" {
		claim = r.URL.Query().Get("email")
	}
	email := ""
	if u, err := a.users.Resolve(r.Context(), claim); err == nil {
		email = u.Email
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the handshake error.
		return
	}

	id := ids.New()
	a.hub.add(id, conn)
	if err := a.directory.Add(r.Context(), notify.Connection{
		ID:        id,
		Email:     email,
		CreatedAt: time.Now().UTC(),
	}); err != nil {
		a.hub.remove(id)
		return
	}

	audit.LogEvent(r.Context(), "ws.connected", map[string]any{
		"connection_id": id,
		"email":         email,
	})

	go a.readLoop(id, email, conn)
}

// readLoop drains inbound frames to keep the connection alive. Clients never
// send application data; the loop exists for pings and close detection.
func (a *API) readLoop(id, email string, conn *websocket.Conn) {
	defer func() {
		a.hub.remove(id)
		_ = a.directory.Remove(context.Background(), id)
		audit.LogEvent(context.Background(), "ws.disconnected", map[string]any{
			"connection_id": id,
			"email":         email,
		})
	}()

	conn.SetReadLimit(maxDecodeBytes)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait))
			if err != nil {
				return
			}
		}
	}
}
