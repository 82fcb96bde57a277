package chat

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campus-hub/backend/internal/middleware"
	"github.com/campus-hub/backend/pkg/response"
)

// Handler serves the chat and message endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates a chat handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// RegisterRoutes mounts /api/chat.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	rg.Use(authMW)
	rg.POST("/accessChat", h.AccessChat)
	rg.GET("/fetchChat", h.FetchChats)
	rg.POST("/createGroup", h.CreateGroup)
	rg.PUT("/renameGroup", h.RenameGroup)
	rg.PUT("/groupadd", h.AddToGroup)
	rg.PUT("/groupremove", h.RemoveFromGroup)
}

// RegisterMessageRoutes mounts /api/message.
func (h *Handler) RegisterMessageRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	rg.Use(authMW)
	rg.POST("", h.SendMessage)
	rg.GET("/:chatId", h.AllMessages)
}

func (h *Handler) fail(c *gin.Context, op string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		response.NotFound(c, "Chat Not Found")
	case errors.Is(err, ErrUserNotFound):
		response.NotFound(c, "User not found")
	case errors.Is(err, ErrNotAdmin):
		response.Forbidden(c, "Only the group admin can do this")
	case errors.Is(err, ErrNotMember):
		response.Forbidden(c, "You are not a member of this chat")
	case errors.Is(err, ErrSelfChat):
		response.BadRequest(c, "You cannot start a chat with yourself")
	case errors.Is(err, ErrGroupTooSmall):
		response.BadRequest(c, "More than 2 users are required to form a group chat")
	case errors.Is(err, ErrEmptyMessage):
		response.BadRequest(c, "Invalid data passed into request")
	default:
		h.logger.Error(op+" failed", zap.Error(err))
		response.Internal(c, op+" failed")
	}
}

func parseID(raw string) (uuid.UUID, bool) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	return id, err == nil
}

// AccessChat handles POST /accessChat.
func (h *Handler) AccessChat(c *gin.Context) {
	var req struct {
		UserID string `json:"userId"`
	}
	_ = c.ShouldBindJSON(&req)
	if req.UserID == "" {
		response.BadRequest(c, "userId param not sent with request")
		return
	}
	other, ok := parseID(req.UserID)
	if !ok {
		response.BadRequest(c, "invalid userId")
		return
	}
	chat, err := h.svc.Access(c.Request.Context(), middleware.UserID(c), other)
	if err != nil {
		h.fail(c, "access chat", err)
		return
	}
	response.OK(c, chat)
}

// FetchChats handles GET /fetchChat.
func (h *Handler) FetchChats(c *gin.Context) {
	list, err := h.svc.List(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		h.fail(c, "fetch chats", err)
		return
	}
	response.OK(c, list)
}

// groupRequest accepts users either as a JSON array or as a JSON-encoded string of one.
type groupRequest struct {
	Name  string          `json:"name"`
	Users json.RawMessage `json:"users"`
}

func (r groupRequest) userIDs() ([]uuid.UUID, bool) {
	raw := r.Users
	var encoded string
	if err := json.Unmarshal(raw, &encoded); err == nil {
		raw = json.RawMessage(encoded)
	}
	var ids []string
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil, false
	}
	out := make([]uuid.UUID, 0, len(ids))
	for _, s := range ids {
		id, ok := parseID(s)
		if !ok {
			return nil, false
		}
		out = append(out, id)
	}
	return out, true
}

// CreateGroup handles POST /createGroup.
func (h *Handler) CreateGroup(c *gin.Context) {
	var req groupRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Name) == "" || len(req.Users) == 0 {
		response.BadRequest(c, "Please fill all the fields")
		return
	}
	users, ok := req.userIDs()
	if !ok {
		response.BadRequest(c, "users must be a list of user ids")
		return
	}
	chat, err := h.svc.CreateGroup(c.Request.Context(), middleware.UserID(c), req.Name, users)
	if err != nil {
		h.fail(c, "create group", err)
		return
	}
	response.Created(c, "Group chat created", chat)
}

// RenameGroup handles PUT /renameGroup.
func (h *Handler) RenameGroup(c *gin.Context) {
	var req struct {
		ChatID   string `json:"chatId"`
		ChatName string `json:"chatName"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.ChatName) == "" {
		response.BadRequest(c, "chatId and chatName are required")
		return
	}
	chatID, ok := parseID(req.ChatID)
	if !ok {
		response.BadRequest(c, "invalid chatId")
		return
	}
	chat, err := h.svc.Rename(c.Request.Context(), middleware.UserID(c), chatID, req.ChatName)
	if err != nil {
		h.fail(c, "rename group", err)
		return
	}
	response.OK(c, chat)
}

type memberRequest struct {
	ChatID string `json:"chatId"`
	UserID string `json:"userId"`
}

func (h *Handler) bindMember(c *gin.Context) (uuid.UUID, uuid.UUID, bool) {
	var req memberRequest
	_ = c.ShouldBindJSON(&req)
	chatID, ok := parseID(req.ChatID)
	if !ok {
		response.BadRequest(c, "invalid chatId")
		return uuid.Nil, uuid.Nil, false
	}
	userID, ok := parseID(req.UserID)
	if !ok {
		response.BadRequest(c, "invalid userId")
		return uuid.Nil, uuid.Nil, false
	}
	return chatID, userID, true
}

// AddToGroup handles PUT /groupadd.
func (h *Handler) AddToGroup(c *gin.Context) {
	chatID, userID, ok := h.bindMember(c)
	if !ok {
		return
	}
	chat, err := h.svc.AddUser(c.Request.Context(), middleware.UserID(c), chatID, userID)
	if err != nil {
		h.fail(c, "add to group", err)
		return
	}
	response.OK(c, chat)
}

// RemoveFromGroup handles PUT /groupremove.
func (h *Handler) RemoveFromGroup(c *gin.Context) {
	chatID, userID, ok := h.bindMember(c)
	if !ok {
		return
	}
	chat, err := h.svc.RemoveUser(c.Request.Context(), middleware.UserID(c), chatID, userID)
	if err != nil {
		h.fail(c, "remove from group", err)
		return
	}
	response.OK(c, chat)
}

// SendMessage handles POST /api/message.
func (h *Handler) SendMessage(c *gin.Context) {
	var req struct {
		ChatID  string `json:"chatId"`
		Content string `json:"content"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.ChatID == "" || strings.TrimSpace(req.Content) == "" {
		response.BadRequest(c, "Invalid data passed into request")
		return
	}
	chatID, ok := parseID(req.ChatID)
	if !ok {
		response.BadRequest(c, "invalid chatId")
		return
	}
	msg, err := h.svc.Send(c.Request.Context(), middleware.UserID(c), chatID, req.Content)
	if err != nil {
		h.fail(c, "send message", err)
		return
	}
	response.Created(c, "Message sent", msg)
}

// AllMessages handles GET /api/message/:chatId.
func (h *Handler) AllMessages(c *gin.Context) {
	chatID, ok := parseID(c.Param("chatId"))
	if !ok {
		response.BadRequest(c, "invalid chatId")
		return
	}
	list, err := h.svc.Messages(c.Request.Context(), middleware.UserID(c), chatID)
	if err != nil {
		h.fail(c, "fetch messages", err)
		return
	}
	response.OK(c, list)
}
