package notifiers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/daniacca/affectdb/internal/affect"
)

const (
	wsWriteWait      = 10 * time.Second
	wsBroadcastWait  = 1 * time.Second
	wsBroadcastQueue = 256
)

// WebSocketNotifier fans reaction events out to every connected WebSocket
// client. Clients may filter by target with the "target" query parameter.
type WebSocketNotifier struct {
	id         string
	mu         sync.RWMutex
	clients    map[*websocket.Conn]affect.TargetID
	upgrader   websocket.Upgrader
	broadcast  chan affect.NotificationEvent
	register   chan wsClient
	unregister chan *websocket.Conn
	done       chan struct{}
	closeOnce  sync.Once
	wg         sync.WaitGroup
}

type wsClient struct {
	conn   *websocket.Conn
	target affect.TargetID
}

// NewWebSocketNotifier creates a notifier and starts its broadcaster.
func NewWebSocketNotifier(id string) *WebSocketNotifier {
	notifier := &WebSocketNotifier{
		id:         id,
		clients:    make(map[*websocket.Conn]affect.TargetID),
		broadcast:  make(chan affect.NotificationEvent, wsBroadcastQueue),
		register:   make(chan wsClient),
		unregister: make(chan *websocket.Conn),
		done:       make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}

	notifier.wg.Add(1)
	go notifier.run()

	return notifier
}

func (wsn *WebSocketNotifier) ID() string {
	return wsn.id
}

func (wsn *WebSocketNotifier) Type() string {
	return "websocket"
}

// ClientCount returns the number of connected clients.
func (wsn *WebSocketNotifier) ClientCount() int {
	wsn.mu.RLock()
	defer wsn.mu.RUnlock()
	return len(wsn.clients)
}

// ServeHTTP upgrades the request and streams events to the connection until
// the client goes away.
func (wsn *WebSocketNotifier) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := wsn.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		return
	}
	wsn.RegisterClient(conn, affect.TargetID(r.URL.Query().Get("target")))

	// Drain reads so close frames are processed; any read error ends the client.
	go func() {
		defer wsn.UnregisterClient(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// RegisterClient adds a connection. A non-empty target limits it to that
// target's events.
func (wsn *WebSocketNotifier) RegisterClient(conn *websocket.Conn, target affect.TargetID) {
	select {
	case wsn.register <- wsClient{conn: conn, target: target}:
	case <-wsn.done:
	}
}

// UnregisterClient removes and closes a connection.
func (wsn *WebSocketNotifier) UnregisterClient(conn *websocket.Conn) {
	select {
	case wsn.unregister <- conn:
	case <-wsn.done:
	}
}

// Notify queues the event for broadcast.
func (wsn *WebSocketNotifier) Notify(ctx context.Context, event affect.NotificationEvent) error {
	select {
	case <-wsn.done:
		return errors.Errorf("websocket notifier %s is closed", wsn.id)
	default:
	}
	select {
	case wsn.broadcast <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-wsn.done:
		return errors.Errorf("websocket notifier %s is closed", wsn.id)
	case <-time.After(wsBroadcastWait):
		return errors.Errorf("websocket notifier %s: broadcast queue full", wsn.id)
	}
}

func (wsn *WebSocketNotifier) run() {
	defer wsn.wg.Done()
	for {
		select {
		case <-wsn.done:
			return

		case c := <-wsn.register:
			if c.conn == nil {
				continue
			}
			wsn.mu.Lock()
			wsn.clients[c.conn] = c.target
			wsn.mu.Unlock()

		case conn := <-wsn.unregister:
			if conn == nil {
				continue
			}
			wsn.mu.Lock()
			if _, ok := wsn.clients[conn]; ok {
				delete(wsn.clients, conn)
				conn.Close()
			}
			wsn.mu.Unlock()

		case event := <-wsn.broadcast:
			wsn.send(event)
		}
	}
}

func (wsn *WebSocketNotifier) send(event affect.NotificationEvent) {
	jsonData, err := event.JSON()
	if err != nil {
		return
	}

	// Write outside the lock so a slow client cannot block registration.
	wsn.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(wsn.clients))
	for conn, target := range wsn.clients {
		if target == "" || target == event.TargetID {
			conns = append(conns, conn)
		}
	}
	wsn.mu.RUnlock()

	var failed []*websocket.Conn
	for _, conn := range conns {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if err := conn.WriteMessage(websocket.TextMessage, jsonData); err != nil {
			failed = append(failed, conn)
		}
	}

	if len(failed) > 0 {
		wsn.mu.Lock()
		for _, conn := range failed {
			delete(wsn.clients, conn)
			conn.Close()
		}
		wsn.mu.Unlock()
	}
}

// Close disconnects every client and stops the broadcaster.
func (wsn *WebSocketNotifier) Close() error {
	wsn.closeOnce.Do(func() {
		close(wsn.done)
		wsn.wg.Wait()

		wsn.mu.Lock()
		for conn := range wsn.clients {
			conn.Close()
			delete(wsn.clients, conn)
		}
		wsn.mu.Unlock()
	})
	return nil
}
