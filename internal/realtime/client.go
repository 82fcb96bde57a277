package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/campus-hub/backend/internal/models"
)

// Client events.
const (
	EventSetup       = "setup"
	EventConnected   = "connected"
	EventJoinChat    = "join chat"
	EventTyping      = "typing"
	EventStopTyping  = "stop typing"
	EventNewMessage  = "new message"
	EventError       = "error"
	requestTimeout   = 10 * time.Second
	maxMessageBytes  = 65536
	sendBufferLength = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WSMessage is the WebSocket message envelope.
type WSMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// ChatService is the chat behaviour available to sockets.
type ChatService interface {
	IsMember(ctx context.Context, chatID, userID uuid.UUID) (bool, error)
	Send(ctx context.Context, sender, chatID uuid.UUID, content string) (*models.Message, error)
}

// Authenticator resolves a session token to a user id.
type Authenticator func(token string) (uuid.UUID, error)

// Client represents a single WebSocket connection.
type Client struct {
	ID     string
	UserID uuid.UUID
	hub    *Hub
	chats  ChatService
	conn   *websocket.Conn
	send   chan WSMessage
	done   chan struct{}
	logger *zap.Logger

	mu    sync.Mutex
	rooms map[string]struct{}
}

func newClient(hub *Hub, chats ChatService, userID uuid.UUID, conn *websocket.Conn, logger *zap.Logger) *Client {
	return &Client{
		ID:     uuid.NewString(),
		UserID: userID,
		hub:    hub,
		chats:  chats,
		conn:   conn,
		send:   make(chan WSMessage, sendBufferLength),
		done:   make(chan struct{}),
		logger: logger,
		rooms:  make(map[string]struct{}),
	}
}

func (c *Client) addRoom(room string) {
	c.mu.Lock()
	c.rooms[room] = struct{}{}
	c.mu.Unlock()
}

func (c *Client) joined() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.rooms))
	for r := range c.rooms {
		out = append(out, r)
	}
	return out
}

func (c *Client) inRoom(room string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.rooms[room]
	return ok
}

func (c *Client) reply(event string, payload interface{}) {
	data, err := encode(payload)
	if err != nil {
		return
	}
	select {
	case c.send <- WSMessage{Event: event, Data: data}:
	default:
	}
}

// ServeWs authenticates the session token from the cookie or the token query parameter,
// upgrades the connection and runs the client loop.
func ServeWs(hub *Hub, chats ChatService, auth Authenticator, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := c.Cookie("token")
		if err != nil || raw == "" {
			raw = c.Query("token")
		}
		if raw == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Unauthorized - no token provided"})
			return
		}
		userID, err := auth(raw)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Unauthorized - invalid token"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}
		client := newClient(hub, chats, userID, conn, logger)
		hub.Join(client, RoomAll)
		logger.Info("socket connected", zap.String("client_id", client.ID), zap.String("user_id", userID.String()))
		go client.writePump()
		client.readPump()
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.Leave(c)
		close(c.done)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
		return nil
	})

	for {
		var msg WSMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			break
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
		c.handle(msg)
	}
}

type roomPayload struct {
	Room string `json:"room"`
}

// parseRoom accepts {"room": "<chatId>"} or a bare "<chatId>" string.
func parseRoom(data json.RawMessage) (uuid.UUID, bool) {
	var p roomPayload
	if err := json.Unmarshal(data, &p); err != nil || p.Room == "" {
		if err := json.Unmarshal(data, &p.Room); err != nil {
			return uuid.Nil, false
		}
	}
	id, err := uuid.Parse(p.Room)
	return id, err == nil
}

// handle dispatches one client event.
func (c *Client) handle(msg WSMessage) {
	switch msg.Event {
	case EventSetup:
		c.hub.Join(c, UserRoom(c.UserID))
		c.reply(EventConnected, map[string]string{"userId": c.UserID.String()})
	case EventJoinChat:
		chatID, ok := parseRoom(msg.Data)
		if !ok {
			c.reply(EventError, map[string]string{"message": "invalid room"})
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		member, err := c.chats.IsMember(ctx, chatID, c.UserID)
		cancel()
		if err != nil {
			c.logger.Error("chat membership check failed", zap.Error(err), zap.String("chat_id", chatID.String()))
			return
		}
		if !member {
			c.reply(EventError, map[string]string{"message": "You are not a member of this chat"})
			return
		}
		c.hub.Join(c, ChatRoom(chatID))
	case EventTyping, EventStopTyping:
		chatID, ok := parseRoom(msg.Data)
		if !ok || !c.inRoom(ChatRoom(chatID)) {
			return
		}
		c.hub.broadcastFrom(c, ChatRoom(chatID), msg.Event, map[string]string{
			"room":   chatID.String(),
			"userId": c.UserID.String(),
		})
	case EventNewMessage:
		var p struct {
			ChatID  string `json:"chatId"`
			Content string `json:"content"`
		}
		if err := json.Unmarshal(msg.Data, &p); err != nil {
			c.reply(EventError, map[string]string{"message": "Invalid data passed into request"})
			return
		}
		chatID, err := uuid.Parse(p.ChatID)
		if err != nil {
			c.reply(EventError, map[string]string{"message": "invalid chatId"})
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		_, err = c.chats.Send(ctx, c.UserID, chatID, p.Content)
		cancel()
		if err != nil {
			c.logger.Warn("socket message rejected", zap.Error(err), zap.String("chat_id", chatID.String()))
			c.reply(EventError, map[string]string{"message": err.Error()})
		}
	default:
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(PingInterval * time.Second)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
