package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// PingInterval and PongWait are used for heartbeat.
	PingInterval = 30
	PongWait     = 60
)

// RoomAll is joined by every connection.
const RoomAll = "all"

// UserRoom is the personal room of a user.
func UserRoom(id uuid.UUID) string { return "user:" + id.String() }

// ChatRoom is the room of a chat's open conversations.
func ChatRoom(id uuid.UUID) string { return "chat:" + id.String() }

// Bus relays room emits between processes.
type Bus interface {
	Publish(ctx context.Context, env Envelope) error
	Subscribe(ctx context.Context, handler func(Envelope)) (cancel func(), err error)
}

// Hub maintains room -> set of connections and delivers events to them.
// With a Bus, every emit is also published so other server instances deliver it to their own sockets.
type Hub struct {
	rooms  map[string]map[string]*Client
	mu     sync.RWMutex
	origin string
	bus    Bus
	logger *zap.Logger
}

// NewHub creates a hub. bus may be nil for a single instance.
func NewHub(bus Bus, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		rooms:  make(map[string]map[string]*Client),
		origin: uuid.NewString(),
		bus:    bus,
		logger: logger,
	}
}

// Run subscribes to the bus until ctx is done.
func (h *Hub) Run(ctx context.Context) error {
	if h.bus == nil {
		<-ctx.Done()
		return nil
	}
	cancel, err := h.bus.Subscribe(ctx, h.receive)
	if err != nil {
		return err
	}
	<-ctx.Done()
	cancel()
	return nil
}

// receive delivers an envelope published by another process.
func (h *Hub) receive(env Envelope) {
	if env.Origin == h.origin {
		return
	}
	h.deliver(env.Room, env.Except, WSMessage{Event: env.Event, Data: env.Data})
}

// Join adds a client to a room.
func (h *Hub) Join(c *Client, room string) {
	h.mu.Lock()
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[string]*Client)
	}
	h.rooms[room][c.ID] = c
	h.mu.Unlock()
	c.addRoom(room)
	h.logger.Debug("client joined room", zap.String("client_id", c.ID), zap.String("room", room))
}

// Leave removes a client from every room it joined.
func (h *Hub) Leave(c *Client) {
	h.mu.Lock()
	for _, room := range c.joined() {
		if m, ok := h.rooms[room]; ok {
			delete(m, c.ID)
			if len(m) == 0 {
				delete(h.rooms, room)
			}
		}
	}
	h.mu.Unlock()
	h.logger.Debug("client left", zap.String("client_id", c.ID), zap.String("user_id", c.UserID.String()))
}

// RoomSize returns the number of local connections in a room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

func encode(payload interface{}) (json.RawMessage, error) {
	switch v := payload.(type) {
	case json.RawMessage:
		return v, nil
	case []byte:
		return v, nil
	default:
		return json.Marshal(payload)
	}
}

func (h *Hub) deliver(room, except string, msg WSMessage) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.rooms[room]))
	for id, c := range h.rooms[room] {
		if id != except {
			clients = append(clients, c)
		}
	}
	h.mu.RUnlock()
	for _, c := range clients {
		select {
		case c.send <- msg:
		default:
			h.logger.Warn("client buffer full, dropping event", zap.String("client_id", c.ID), zap.String("event", msg.Event))
		}
	}
}

// emit delivers locally and publishes for other instances. except skips one local or remote client.
func (h *Hub) emit(room, except, event string, payload interface{}) {
	data, err := encode(payload)
	if err != nil {
		h.logger.Warn("encode realtime payload failed", zap.Error(err), zap.String("event", event))
		return
	}
	h.deliver(room, except, WSMessage{Event: event, Data: data})
	if h.bus == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	env := Envelope{Room: room, Event: event, Data: data, Except: except, Origin: h.origin}
	if err := h.bus.Publish(ctx, env); err != nil {
		h.logger.Warn("realtime publish failed", zap.Error(err), zap.String("room", room), zap.String("event", event))
	}
}

// EmitToRoom sends an event to every connection in room.
func (h *Hub) EmitToRoom(room, event string, payload interface{}) {
	h.emit(room, "", event, payload)
}

// EmitToAll sends an event to every connection.
func (h *Hub) EmitToAll(event string, payload interface{}) {
	h.emit(RoomAll, "", event, payload)
}

// EmitToUsers sends an event to the personal rooms of userIDs.
func (h *Hub) EmitToUsers(userIDs []uuid.UUID, event string, payload interface{}) {
	data, err := encode(payload)
	if err != nil {
		h.logger.Warn("encode realtime payload failed", zap.Error(err), zap.String("event", event))
		return
	}
	for _, id := range userIDs {
		h.emit(UserRoom(id), "", event, data)
	}
}

// broadcastFrom relays a client's event to the rest of a room.
func (h *Hub) broadcastFrom(c *Client, room, event string, payload interface{}) {
	h.emit(room, c.ID, event, payload)
}
