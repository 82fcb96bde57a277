package categories

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campus-hub/backend/pkg/response"
)

// CategoryRequest is the body for create and update.
type CategoryRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

// Handler handles category HTTP endpoints.
type Handler struct {
	store  Store
	logger *zap.Logger
}

// NewHandler creates a categories handler.
func NewHandler(store Store, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, logger: logger}
}

// RegisterRoutes mounts /api/categories. Writes require authMW followed by adminMW.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW, adminMW gin.HandlerFunc) {
	rg.GET("", h.List)
	rg.GET("/:id", h.Get)
	rg.POST("", authMW, adminMW, h.Create)
	rg.PUT("/:id", authMW, adminMW, h.Update)
	rg.DELETE("/:id", authMW, adminMW, h.Delete)
}

func (h *Handler) fail(c *gin.Context, err error, op string) {
	switch {
	case errors.Is(err, ErrNotFound):
		response.NotFound(c, "Category not found")
	case errors.Is(err, ErrNameTaken):
		response.BadRequest(c, "Category already exists")
	case errors.Is(err, ErrInUse):
		response.BadRequest(c, "Category is used by existing events")
	default:
		h.logger.Error(op+" failed", zap.Error(err))
		response.Internal(c, "failed to "+op)
	}
}

// List handles GET /.
func (h *Handler) List(c *gin.Context) {
	list, err := h.store.List(c.Request.Context())
	if err != nil {
		h.fail(c, err, "list categories")
		return
	}
	response.OK(c, list)
}

// Get handles GET /:id.
func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid category id")
		return
	}
	cat, err := h.store.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err, "get category")
		return
	}
	response.OK(c, cat)
}

// Create handles POST /.
func (h *Handler) Create(c *gin.Context) {
	var req CategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Name == nil || strings.TrimSpace(*req.Name) == "" {
		response.BadRequest(c, "name is required")
		return
	}
	desc := ""
	if req.Description != nil {
		desc = *req.Description
	}
	cat, err := h.store.Create(c.Request.Context(), strings.TrimSpace(*req.Name), desc)
	if err != nil {
		h.fail(c, err, "create category")
		return
	}
	response.Created(c, "Category created", cat)
}

// Update handles PUT /:id.
func (h *Handler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid category id")
		return
	}
	var req CategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if req.Name != nil {
		trimmed := strings.TrimSpace(*req.Name)
		if trimmed == "" {
			response.BadRequest(c, "name cannot be empty")
			return
		}
		req.Name = &trimmed
	}
	cat, err := h.store.Update(c.Request.Context(), id, req.Name, req.Description)
	if err != nil {
		h.fail(c, err, "update category")
		return
	}
	response.OKMessage(c, "Category updated", cat)
}

// Delete handles DELETE /:id.
func (h *Handler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid category id")
		return
	}
	if err := h.store.Delete(c.Request.Context(), id); err != nil {
		h.fail(c, err, "delete category")
		return
	}
	response.OKMessage(c, "Category deleted", nil)
}
