// Package hub fans real-time events out to connected websocket sessions,
// scoped by tenant and channel. With redis enabled, publications are relayed
// through pub/sub so every gateway instance reaches its own sessions. The
// hub holds no durable state; a session that was disconnected reconciles by
// refetching, not by bus replay.
package hub

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"syncline/internal/model"
)

const (
	redisEventsChannel = "syncline.events"

	sendBuffer   = 64
	writeTimeout = 5 * time.Second
	pongTimeout  = 60 * time.Second
	pingInterval = 30 * time.Second
)

type Hub struct {
	l   *zap.Logger
	rdb *redis.Client

	mu      sync.RWMutex
	clients map[*Client]struct{}
}

// New creates a hub. rdb may be nil for single-instance deployments; events
// are then delivered to local sessions only.
func New(l *zap.Logger, rdb *redis.Client) *Hub {
	return &Hub{
		l:       l,
		rdb:     rdb,
		clients: make(map[*Client]struct{}),
	}
}

// Run consumes the redis relay until the context is cancelled. No-op
// without redis.
func (h *Hub) Run(ctx context.Context) {
	if h.rdb == nil {
		<-ctx.Done()

		return
	}

	sub := h.rdb.Subscribe(ctx, redisEventsChannel)
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			h.l.Info("Event hub stopped")

			return
		case msg, ok := <-sub.Channel():
			if !ok {
				return
			}

			var evt model.Event
			if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil {
				h.l.Warn("Failed to decode relayed event", zap.Error(err))

				continue
			}

			h.broadcastLocal(evt)
		}
	}
}

// Publish delivers an event to every subscribed session, across all gateway
// instances when redis is configured.
func (h *Hub) Publish(ctx context.Context, evt model.Event) {
	if evt.At.IsZero() {
		evt.At = time.Now().UTC()
	}

	if h.rdb == nil {
		h.broadcastLocal(evt)

		return
	}

	data, err := json.Marshal(evt)
	if err != nil {
		h.l.Error("Failed to encode event", zap.Error(err))

		return
	}

	if err := h.rdb.Publish(ctx, redisEventsChannel, data).Err(); err != nil {
		h.l.Warn("Redis relay publish failed, delivering locally", zap.Error(err))
		h.broadcastLocal(evt)
	}
}

func (h *Hub) broadcastLocal(evt model.Event) {
	data, err := json.Marshal(evt)
	if err != nil {
		h.l.Error("Failed to encode event", zap.Error(err))

		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		if !client.wants(evt) {
			continue
		}

		select {
		case client.send <- data:
		default:
			// Slow consumer; it reconciles by refetching after reconnect.
			h.l.Debug("Dropping event for slow session", zap.String("tenant_id", client.tenantID))
		}
	}
}

func (h *Hub) add(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client] = struct{}{}
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.clients, client)
}

// Client is one websocket session subscribed to a tenant's channels.
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	tenantID string
	channels map[string]struct{}
	send     chan []byte
}

// NewClient wraps an upgraded connection. An empty channels list subscribes
// to everything in the tenant.
func NewClient(h *Hub, conn *websocket.Conn, tenantID string, channels []string) *Client {
	subscribed := make(map[string]struct{}, len(channels))
	for _, channel := range channels {
		subscribed[channel] = struct{}{}
	}

	return &Client{
		hub:      h,
		conn:     conn,
		tenantID: tenantID,
		channels: subscribed,
		send:     make(chan []byte, sendBuffer),
	}
}

func (c *Client) wants(evt model.Event) bool {
	if evt.TenantID != c.tenantID {
		return false
	}

	if len(c.channels) == 0 {
		return true
	}

	_, ok := c.channels[evt.Channel]

	return ok
}

// Serve registers the session and pumps messages until the connection drops
// or the context is cancelled.
func (c *Client) Serve(ctx context.Context) {
	c.hub.add(c)

	defer func() {
		c.hub.remove(c)
		_ = c.conn.Close()
	}()

	readErr := make(chan error, 1)
	go c.readPump(ctx, readErr)

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-readErr:
			return
		case <-ping.C:
			if err := c.conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(writeTimeout)); err != nil {
				return
			}
		case data := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))

			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		}
	}
}

// readPump accepts events published by the client session (externally caused
// state changes) and relays them through the hub under the session's tenant.
func (c *Client) readPump(ctx context.Context, readErr chan<- error) {
	_ = c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongTimeout))

		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			readErr <- err

			return
		}

		var evt model.Event
		if err := json.Unmarshal(data, &evt); err != nil {
			c.hub.l.Warn("Failed to decode session event", zap.Error(err))

			continue
		}

		evt.TenantID = c.tenantID

		c.hub.Publish(ctx, evt)
	}
}
