package realtime

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"
)

const (
	// PingInterval and PongWait are used for heartbeat.
	PingInterval = 30
	PongWait     = 60
)

// Hub maintains org_id -> set of connections and broadcasts refresh events.
// Uses Redis pub/sub for horizontal scaling: local broadcast + publish to Redis.
type Hub struct {
	// orgID -> map[clientID]*Client
	orgs     map[string]map[string]*Client
	subs     map[string]func() // cancel Redis subscription per org
	mu       sync.RWMutex
	logger   *zap.Logger
	redis    RedisPublisher
	redisSub RedisSubscriber
}

// RedisPublisher is the interface for publishing to Redis (for cross-instance broadcast).
type RedisPublisher interface {
	PublishOrgEvent(orgID string, event string, payload []byte) error
}

// RedisSubscriber subscribes to org channels and invokes handler for incoming events.
type RedisSubscriber interface {
	SubscribeOrg(orgID string, handler func(event string, payload []byte)) (cancel func(), err error)
}

// NewHub creates a new WebSocket hub.
func NewHub(logger *zap.Logger, redisPub RedisPublisher, redisSub RedisSubscriber) *Hub {
	return &Hub{
		orgs:     make(map[string]map[string]*Client),
		subs:     make(map[string]func()),
		logger:   logger,
		redis:    redisPub,
		redisSub: redisSub,
	}
}

// Register adds a client to an org room. Starts Redis subscription for this org if first client.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	if h.orgs[c.OrgID] == nil {
		h.orgs[c.OrgID] = make(map[string]*Client)
		if h.redisSub != nil {
			cancel, err := h.redisSub.SubscribeOrg(c.OrgID, func(event string, payload []byte) {
				h.BroadcastToOrg(c.OrgID, event, json.RawMessage(payload))
			})
			if err == nil {
				h.subs[c.OrgID] = cancel
			}
		}
	}
	h.orgs[c.OrgID][c.ID] = c
	h.mu.Unlock()
	h.logger.Debug("client joined org", zap.String("client_id", c.ID), zap.String("org_id", c.OrgID))
}

// Unregister removes a client from an org room. Cancels Redis subscription when last client leaves.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if m, ok := h.orgs[c.OrgID]; ok {
		delete(m, c.ID)
		if len(m) == 0 {
			delete(h.orgs, c.OrgID)
			if cancel, ok := h.subs[c.OrgID]; ok {
				cancel()
				delete(h.subs, c.OrgID)
			}
		}
	}
	h.mu.Unlock()
	h.logger.Debug("client left org", zap.String("client_id", c.ID), zap.String("org_id", c.OrgID))
}

// BroadcastToOrg sends a message to all clients in an org (local only).
func (h *Hub) BroadcastToOrg(orgID string, event string, payload interface{}) {
	var data []byte
	switch v := payload.(type) {
	case []byte:
		data = v
	case json.RawMessage:
		data = v
	default:
		data, _ = json.Marshal(payload)
	}
	msg := WSMessage{Event: event, Data: data}

	h.mu.RLock()
	clients := h.orgs[orgID]
	h.mu.RUnlock()

	if clients == nil {
		return
	}
	for _, c := range clients {
		select {
		case c.send <- msg:
		default:
			// buffer full, skip
		}
	}
}

// BroadcastToOrgAndPublish sends to local clients and publishes to Redis for other instances.
func (h *Hub) BroadcastToOrgAndPublish(orgID string, event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	h.BroadcastToOrg(orgID, event, payload)
	if h.redis != nil {
		_ = h.redis.PublishOrgEvent(orgID, event, data)
	}
}

// ConnectionCount returns the number of connected clients in an org.
func (h *Hub) ConnectionCount(orgID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.orgs[orgID])
}
