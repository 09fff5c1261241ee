package websocket

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"isa-chat/internal/models"
)

// UpdatesChannel prefixes the Redis channel each hub relays its snapshots on.
const UpdatesChannel = "chat_updates"

const (
	writeWait = 10 * time.Second
	// Pending messages per connection before it is dropped as stalled.
	sendBuffer = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// client is one open page. Only its write pump writes to conn.
type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub pushes this instance's chat state to every open page.
//
// With a Redis client, Publish goes through a channel private to the hub
// (UpdatesChannel plus an instance ID) and Run delivers what arrives. Redis
// only carries the updates; it does not share state between instances, each
// of which owns its own session. Without a client, Publish delivers directly.
type Hub struct {
	mu          sync.Mutex
	clients     map[*client]struct{}
	redisClient *redis.Client
	channel     string
	current     func() models.Snapshot
}

func NewHub(redisClient *redis.Client, current func() models.Snapshot) *Hub {
	return &Hub{
		clients:     make(map[*client]struct{}),
		redisClient: redisClient,
		channel:     UpdatesChannel + ":" + uuid.NewString(),
		current:     current,
	}
}

// Channel returns the Redis channel this hub publishes and subscribes on.
func (h *Hub) Channel() string {
	return h.channel
}

// Run relays Redis pub/sub messages until ctx is done. It returns at once
// when the hub has no Redis client.
func (h *Hub) Run(ctx context.Context) {
	if h.redisClient == nil {
		return
	}

	pubsub := h.redisClient.Subscribe(ctx, h.channel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			h.broadcast([]byte(msg.Payload))
		}
	}
}

// Publish sends snap to every connected client. It never waits on a client.
func (h *Hub) Publish(snap models.Snapshot) {
	data, err := json.Marshal(stateMessage(snap))
	if err != nil {
		log.Printf("WebSocket: failed to encode state: %v", err)
		return
	}

	if h.redisClient != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := h.redisClient.Publish(ctx, h.channel, string(data)).Err(); err != nil {
			log.Printf("WebSocket: redis publish failed, broadcasting locally: %v", err)
			h.broadcast(data)
		}
		return
	}

	h.broadcast(data)
}

func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	c := h.registerConnection(conn)

	if h.current != nil {
		if data, err := json.Marshal(stateMessage(h.current())); err == nil {
			h.enqueue(c, data)
		}
	}

	go h.writePump(c)

	// Keep connection alive and handle disconnect
	go func() {
		defer h.unregisterConnection(c)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}

// Count returns the number of open connections.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) registerConnection(conn *websocket.Conn) *client {
	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	total := len(h.clients)
	h.mu.Unlock()

	log.Printf("WebSocket connected (total: %d)", total)
	return c
}

func (h *Hub) unregisterConnection(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()

	c.conn.Close()
	if ok {
		log.Printf("WebSocket disconnected")
	}
}

// writePump drains c.send until it is closed or a write fails.
func (h *Hub) writePump(c *client) {
	for data := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Printf("WebSocket write failed: %v", err)
			h.unregisterConnection(c)
			return
		}
	}
}

func (h *Hub) broadcast(data []byte) {
	h.mu.Lock()
	var stalled []*client
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			stalled = append(stalled, c)
		}
	}
	h.mu.Unlock()

	for _, c := range stalled {
		log.Printf("WebSocket: dropping stalled connection")
		h.unregisterConnection(c)
	}
}

// enqueue queues data for c unless c is already gone.
func (h *Hub) enqueue(c *client, data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c]; !ok {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

func stateMessage(snap models.Snapshot) models.WSMessage {
	return models.WSMessage{Type: "state", Payload: snap}
}
