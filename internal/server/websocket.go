package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/muurk/esp32aq/internal/hub"
	"github.com/muurk/esp32aq/internal/logging"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer; subscribers only send control frames
	maxMessageSize = 512

	// Messages queued per subscriber before it is dropped as too slow
	sendBuffer = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// subscriber is one websocket client
type subscriber struct {
	conn       *websocket.Conn
	send       chan []byte
	remoteAddr string
}

// Broadcaster fans device state out to websocket subscribers. Slow
// subscribers whose queue is full are disconnected instead of blocking a
// refresh.
type Broadcaster struct {
	mu     sync.Mutex
	subs   map[*subscriber]struct{}
	closed bool
}

// NewBroadcaster creates an empty broadcaster
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[*subscriber]struct{})}
}

// Attach broadcasts the state of entry after every refresh. The returned
// function detaches.
func (b *Broadcaster) Attach(entry *hub.Entry) func() {
	return entry.Coordinator.AddListener(func() {
		payload, err := json.Marshal(newDeviceView(entry))
		if err != nil {
			logging.Error("Failed to encode device state", zap.String("chip_id", entry.ChipID), zap.Error(err))
			return
		}
		b.Broadcast(payload)
	})
}

// Broadcast queues payload for every subscriber
func (b *Broadcaster) Broadcast(payload []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for sub := range b.subs {
		select {
		case sub.send <- payload:
		default:
			logging.Warn("Dropping slow websocket subscriber", zap.String("remote_addr", sub.remoteAddr))
			b.removeLocked(sub)
		}
	}
}

// Subscribers returns the number of connected subscribers
func (b *Broadcaster) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close disconnects every subscriber; later upgrades are refused
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	for sub := range b.subs {
		b.removeLocked(sub)
	}
}

func (b *Broadcaster) add(sub *subscriber) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return false
	}
	b.subs[sub] = struct{}{}
	return true
}

func (b *Broadcaster) remove(sub *subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.removeLocked(sub)
}

// removeLocked closes the send queue, which makes the write pump close the
// connection. b.mu must be held.
func (b *Broadcaster) removeLocked(sub *subscriber) {
	if _, ok := b.subs[sub]; !ok {
		return
	}
	delete(b.subs, sub)
	close(sub.send)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote an error response
		logging.Warn("WebSocket upgrade failed", zap.String("remote_addr", r.RemoteAddr), zap.Error(err))
		return
	}

	sub := &subscriber{
		conn:       conn,
		send:       make(chan []byte, sendBuffer),
		remoteAddr: r.RemoteAddr,
	}

	// Current state first, so new subscribers need not wait a poll interval
	for _, e := range s.devices.List() {
		if payload, err := json.Marshal(newDeviceView(e)); err == nil {
			sub.send <- payload
			if len(sub.send) == cap(sub.send) {
				break
			}
		}
	}

	if !s.hub.add(sub) {
		_ = conn.Close()
		return
	}
	logging.LogConnection(r.RemoteAddr, "websocket_subscribed")

	go s.writePump(sub)
	s.readPump(sub)
}

// readPump discards client messages and detects disconnects
func (s *Server) readPump(sub *subscriber) {
	defer func() {
		s.hub.remove(sub)
		logging.LogConnection(sub.remoteAddr, "websocket_closed")
	}()

	sub.conn.SetReadLimit(maxMessageSize)
	_ = sub.conn.SetReadDeadline(time.Now().Add(pongWait))
	sub.conn.SetPongHandler(func(string) error {
		return sub.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := sub.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump sends queued payloads and keepalive pings until the queue closes
func (s *Server) writePump(sub *subscriber) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = sub.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-sub.send:
			_ = sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = sub.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := sub.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := sub.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
