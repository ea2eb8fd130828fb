package karma

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// feedChannel is the Redis Pub/Sub channel used to fan feed events out to
// every server instance.
const feedChannel = "karma:feed"

// FeedEventType for WebSocket messages
type FeedEventType string

const EventKarmaAwarded FeedEventType = "karma_awarded"

// FeedEvent is one message on the live karma feed
type FeedEvent struct {
	Type        FeedEventType `json:"type"`
	Transaction *Transaction  `json:"transaction"`
}

// Connection represents one WebSocket subscriber
type Connection struct {
	Conn *websocket.Conn
	Send chan []byte
}

// Hub broadcasts awarded transactions to WebSocket subscribers. With a Redis
// client it publishes through Pub/Sub so all instances see every event;
// without one it delivers to local connections only.
type Hub struct {
	connections map[*Connection]bool
	mu          sync.RWMutex

	register   chan *Connection
	unregister chan *Connection

	redis  *redis.Client
	pubsub *redis.PubSub

	ctx    context.Context
	cancel context.CancelFunc
}

// NewHub creates a new feed hub. redisClient may be nil.
func NewHub(redisClient *redis.Client) *Hub {
	ctx, cancel := context.WithCancel(context.Background())

	h := &Hub{
		connections: make(map[*Connection]bool),
		register:    make(chan *Connection),
		unregister:  make(chan *Connection),
		redis:       redisClient,
		ctx:         ctx,
		cancel:      cancel,
	}

	if redisClient != nil {
		h.pubsub = redisClient.Subscribe(ctx, feedChannel)
	}

	return h
}

// Run starts the hub (call in goroutine)
func (h *Hub) Run() {
	if h.pubsub != nil {
		go h.runRedisSubscriber()
	}

	for {
		select {
		case <-h.ctx.Done():
			return

		case conn := <-h.register:
			h.mu.Lock()
			h.connections[conn] = true
			h.mu.Unlock()
			log.Debug().Msg("Feed subscriber connected")

		case conn := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.connections[conn]; ok {
				delete(h.connections, conn)
				close(conn.Send)
			}
			h.mu.Unlock()
			log.Debug().Msg("Feed subscriber disconnected")
		}
	}
}

// Stop shuts the hub down and closes all subscriber channels.
func (h *Hub) Stop() {
	h.cancel()
	if h.pubsub != nil {
		h.pubsub.Close()
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.connections {
		close(conn.Send)
		delete(h.connections, conn)
	}
}

// Register adds a subscriber connection to the hub.
func (h *Hub) Register(conn *Connection) {
	h.register <- conn
}

// Unregister removes a subscriber connection from the hub.
func (h *Hub) Unregister(conn *Connection) {
	h.unregister <- conn
}

// BroadcastAwarded publishes a karma_awarded event. With Redis configured the
// event round-trips through Pub/Sub; otherwise it goes straight to local
// subscribers.
func (h *Hub) BroadcastAwarded(ctx context.Context, tx *Transaction) {
	payload, err := json.Marshal(FeedEvent{Type: EventKarmaAwarded, Transaction: tx})
	if err != nil {
		log.Error().Err(err).Msg("Failed to encode feed event")
		return
	}

	if h.redis != nil {
		if err := h.redis.Publish(ctx, feedChannel, payload).Err(); err != nil {
			log.Error().Err(err).Msg("Failed to publish feed event, delivering locally")
			h.deliverLocal(payload)
		}
		return
	}

	h.deliverLocal(payload)
}

func (h *Hub) runRedisSubscriber() {
	ch := h.pubsub.Channel()
	for {
		select {
		case <-h.ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			h.deliverLocal([]byte(msg.Payload))
		}
	}
}

func (h *Hub) deliverLocal(payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for conn := range h.connections {
		select {
		case conn.Send <- payload:
		default:
			// Slow subscriber, drop the event rather than block the hub
			log.Warn().Msg("Feed subscriber send buffer full, dropping event")
		}
	}
}
