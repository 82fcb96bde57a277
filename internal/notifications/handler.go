package notifications

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campus-hub/backend/internal/middleware"
	"github.com/campus-hub/backend/internal/models"
	"github.com/campus-hub/backend/pkg/response"
	"github.com/campus-hub/backend/pkg/utils"
)

// Handler handles notification HTTP endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates a notifications handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// RegisterRoutes mounts /api/notifications. Every route requires authMW; admin routes add adminMW.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW, adminMW gin.HandlerFunc) {
	rg.Use(authMW)
	rg.POST("", adminMW, h.Create)
	rg.GET("/me", h.ListMine)
	rg.GET("", adminMW, h.ListAll)
	rg.GET("/:id", h.Get)
	rg.PUT("/:id", adminMW, h.Update)
	rg.DELETE("/:id", h.Delete)
	rg.PATCH("/:id/read", h.MarkRead)
}

func (h *Handler) fail(c *gin.Context, err error, op string) {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		response.BadRequest(c, verr.Error())
	case errors.Is(err, ErrNotFound):
		response.NotFound(c, "Notification not found")
	case errors.Is(err, ErrForbidden):
		response.Forbidden(c, "You do not have access to this notification")
	default:
		h.logger.Error(op+" failed", zap.Error(err))
		response.Internal(c, "failed to "+op)
	}
}

func notificationID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid notification id")
		return uuid.Nil, false
	}
	return id, true
}

type listBody struct {
	Notifications []models.Notification `json:"notifications"`
	Pagination    response.Page         `json:"pagination"`
}

// Create handles POST /.
func (h *Handler) Create(c *gin.Context) {
	var in CreateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	n, err := h.svc.Create(c.Request.Context(), in)
	if err != nil {
		h.fail(c, err, "create notification")
		return
	}
	response.Created(c, "Notification created and sent", n)
}

// ListMine handles GET /me?page=&limit=&unreadOnly=.
func (h *Handler) ListMine(c *gin.Context) {
	page, limit := utils.ParsePage(c.Query("page"), c.Query("limit"))
	unreadOnly := c.Query("unreadOnly") == "true"
	list, total, err := h.svc.ListMine(c.Request.Context(), middleware.UserID(c), unreadOnly, limit, utils.Offset(page, limit))
	if err != nil {
		h.fail(c, err, "list notifications")
		return
	}
	response.OK(c, listBody{Notifications: list, Pagination: response.Page{Page: page, Limit: limit, Total: total}})
}

// ListAll handles GET /?category=&scope=&page=&limit=.
func (h *Handler) ListAll(c *gin.Context) {
	page, limit := utils.ParsePage(c.Query("page"), c.Query("limit"))
	f := Filter{
		Category: models.NotificationCategory(c.Query("category")),
		Scope:    models.NotificationScope(c.Query("scope")),
	}
	list, total, err := h.svc.ListAll(c.Request.Context(), f, limit, utils.Offset(page, limit))
	if err != nil {
		h.fail(c, err, "list notifications")
		return
	}
	response.OK(c, listBody{Notifications: list, Pagination: response.Page{Page: page, Limit: limit, Total: total}})
}

// Get handles GET /:id.
func (h *Handler) Get(c *gin.Context) {
	id, ok := notificationID(c)
	if !ok {
		return
	}
	n, err := h.svc.Get(c.Request.Context(), id, middleware.UserID(c), middleware.UserRole(c))
	if err != nil {
		h.fail(c, err, "get notification")
		return
	}
	response.OK(c, n)
}

// Update handles PUT /:id.
func (h *Handler) Update(c *gin.Context) {
	id, ok := notificationID(c)
	if !ok {
		return
	}
	var in UpdateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	n, err := h.svc.Update(c.Request.Context(), id, in)
	if err != nil {
		h.fail(c, err, "update notification")
		return
	}
	response.OKMessage(c, "Notification updated", n)
}

// Delete handles DELETE /:id.
func (h *Handler) Delete(c *gin.Context) {
	id, ok := notificationID(c)
	if !ok {
		return
	}
	hard, err := h.svc.Delete(c.Request.Context(), id, middleware.UserID(c), middleware.UserRole(c))
	if errors.Is(err, ErrForbidden) {
		response.Forbidden(c, "You cannot delete this notification")
		return
	}
	if err != nil {
		h.fail(c, err, "delete notification")
		return
	}
	if hard {
		response.OKMessage(c, "Notification deleted", nil)
		return
	}
	response.OKMessage(c, "Notification removed from your list", nil)
}

// MarkRead handles PATCH /:id/read.
func (h *Handler) MarkRead(c *gin.Context) {
	id, ok := notificationID(c)
	if !ok {
		return
	}
	n, err := h.svc.MarkRead(c.Request.Context(), id, middleware.UserID(c), middleware.UserRole(c))
	if err != nil {
		h.fail(c, err, "mark notification read")
		return
	}
	response.OKMessage(c, "Marked as read", n)
}
