package services

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"go_ltp_notifier/models"
)

// Constants for stream configuration
const (
	MaxStreamClients    = 100 // maximum concurrent WebSocket clients
	StreamWriteTimeout  = 10 * time.Second
	StreamPongTimeout   = 60 * time.Second
	StreamPingInterval  = 30 * time.Second
	streamSendBuffer    = 64
	streamBroadcastSize = 64
)

// StreamMessage is the envelope broadcast to websocket clients
type StreamMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
	Time string      `json:"time"`
}

// streamClient represents one connected websocket client
type streamClient struct {
	conn *websocket.Conn
	send chan []byte
}

// StreamHub broadcasts each tick's quotes to connected websocket clients.
// Quotes are relayed as they arrive; nothing is retained for late joiners.
type StreamHub struct {
	clients    map[*streamClient]bool
	broadcast  chan StreamMessage
	register   chan *streamClient
	unregister chan *streamClient
	shutdown   chan struct{}
	mu         sync.RWMutex
	upgrader   websocket.Upgrader
	closeOnce  sync.Once
}

// NewStreamHub creates and starts a quote stream hub
func NewStreamHub() *StreamHub {
	hub := &StreamHub{
		clients:    make(map[*streamClient]bool),
		broadcast:  make(chan StreamMessage, streamBroadcastSize),
		register:   make(chan *streamClient),
		unregister: make(chan *streamClient),
		shutdown:   make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
	go hub.run()
	return hub
}

// BroadcastQuotes sends a tick's quotes to all connected clients. Drops the
// update when the broadcast buffer is full rather than delaying the tick.
func (h *StreamHub) BroadcastQuotes(quotes []models.Quote) {
	msg := StreamMessage{
		Type: "quotes",
		Data: quotes,
		Time: time.Now().UTC().Format(time.RFC3339),
	}
	select {
	case h.broadcast <- msg:
	default:
		log.Warn("Stream broadcast buffer full; dropping quote update")
	}
}

// Shutdown disconnects all clients and stops the hub
func (h *StreamHub) Shutdown() {
	h.closeOnce.Do(func() {
		close(h.shutdown)
	})

	h.mu.Lock()
	for client := range h.clients {
		close(client.send)
		client.conn.Close()
	}
	h.clients = make(map[*streamClient]bool)
	h.mu.Unlock()
}

// run is the hub's event loop
func (h *StreamHub) run() {
	for {
		select {
		case <-h.shutdown:
			return

		case client := <-h.register:
			h.mu.Lock()
			if len(h.clients) >= MaxStreamClients {
				h.mu.Unlock()
				client.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "Server at capacity"))
				client.conn.Close()
				log.Warnf("Stream client rejected: max clients reached (%d)", MaxStreamClients)
				continue
			}
			h.clients[client] = true
			count := len(h.clients)
			h.mu.Unlock()
			log.Infof("Stream client connected. Total clients: %d", count)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			count := len(h.clients)
			h.mu.Unlock()
			log.Infof("Stream client disconnected. Total clients: %d", count)

		case message := <-h.broadcast:
			data, err := json.Marshal(message)
			if err != nil {
				log.Errorf("Failed to marshal stream message: %v", err)
				continue
			}

			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- data:
				default:
					// Client buffer full; disconnect it.
					delete(h.clients, client)
					close(client.send)
				}
			}
			h.mu.Unlock()
		}
	}
}

// ClientCount returns the number of connected stream clients
func (h *StreamHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HandleWebSocket upgrades an HTTP request to a quote stream connection
func (h *StreamHub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	atCapacity := len(h.clients) >= MaxStreamClients
	h.mu.RUnlock()

	if atCapacity {
		http.Error(w, "Server at capacity", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Errorf("WebSocket upgrade failed: %v", err)
		return
	}

	client := &streamClient{
		conn: conn,
		send: make(chan []byte, streamSendBuffer),
	}
	h.register <- client

	go client.writePump()
	go client.readPump(h)
}

// writePump writes broadcast messages and pings to the connection
func (c *streamClient) writePump() {
	ticker := time.NewTicker(StreamPingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(StreamWriteTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(StreamWriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump drains the connection and keeps the pong deadline fresh. The
// stream is broadcast-only; inbound payloads are discarded.
func (c *streamClient) readPump(h *StreamHub) {
	defer func() {
		h.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(StreamPongTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(StreamPongTimeout))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Debugf("Stream read error: %v", err)
			}
			break
		}
	}
}
