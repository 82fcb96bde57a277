package registrations

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campus-hub/backend/internal/middleware"
	"github.com/campus-hub/backend/pkg/response"
)

// RegisterRequest is the body for POST /api/registrations. Values of additionalInfo may be
// strings, numbers or booleans and are stored as text.
type RegisterRequest struct {
	EventID        string                 `json:"eventId"`
	AdditionalInfo map[string]interface{} `json:"additionalInfo"`
}

// Handler handles registration HTTP endpoints.
type Handler struct {
	store  Store
	now    func() time.Time
	logger *zap.Logger
}

// NewHandler creates a registrations handler.
func NewHandler(store Store, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, now: time.Now, logger: logger}
}

// RegisterRoutes mounts /api/registrations. The event listing additionally requires adminMW.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW, adminMW gin.HandlerFunc) {
	rg.Use(authMW)
	rg.POST("", h.Register)
	rg.GET("/mine", h.ListMine)
	rg.DELETE("/:id", h.Cancel)
	rg.GET("/event/:eventId", adminMW, h.ListForEvent)
}

func stringifyInfo(in map[string]interface{}) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		switch t := v.(type) {
		case nil:
		case string:
			out[k] = t
		case bool:
			out[k] = strconv.FormatBool(t)
		case float64:
			out[k] = strconv.FormatFloat(t, 'f', -1, 64)
		default:
			out[k] = fmt.Sprint(t)
		}
	}
	return out
}

// Register handles POST /.
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.EventID == "" {
		response.BadRequest(c, "eventId is required")
		return
	}
	eventID, err := uuid.Parse(req.EventID)
	if err != nil {
		response.BadRequest(c, "invalid eventId")
		return
	}
	ctx := c.Request.Context()
	userID := middleware.UserID(c)
	reg, err := h.store.Register(ctx, userID, eventID, stringifyInfo(req.AdditionalInfo), h.now())
	var rule *RuleError
	switch {
	case errors.As(err, &rule):
		response.BadRequest(c, rule.Error())
		return
	case errors.Is(err, ErrEventNotFound):
		response.NotFound(c, "Event not found")
		return
	case errors.Is(err, ErrAlreadyRegistered):
		response.BadRequest(c, "You are already registered for this event")
		return
	case errors.Is(err, ErrFull):
		response.BadRequest(c, "This event is full")
		return
	case err != nil:
		h.logger.Error("register failed", zap.Error(err), zap.String("event_id", eventID.String()))
		response.Internal(c, "failed to register")
		return
	}
	h.logger.Info("registered for event", zap.String("registration_id", reg.ID.String()),
		zap.String("event_id", eventID.String()), zap.String("user_id", userID.String()))

	populated, err := h.store.Get(ctx, reg.ID)
	if err != nil {
		h.logger.Warn("load registration failed", zap.Error(err), zap.String("registration_id", reg.ID.String()))
		populated = reg
	}
	response.Created(c, "Registered for event successfully", populated)
}

// ListMine handles GET /mine.
func (h *Handler) ListMine(c *gin.Context) {
	list, err := h.store.ListForUser(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		h.logger.Error("list registrations failed", zap.Error(err))
		response.Internal(c, "failed to list registrations")
		return
	}
	response.OK(c, list)
}

// ListForEvent handles GET /event/:eventId (admin).
func (h *Handler) ListForEvent(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("eventId"))
	if err != nil {
		response.BadRequest(c, "eventId is required")
		return
	}
	list, err := h.store.ListForEvent(c.Request.Context(), eventID)
	if err != nil {
		h.logger.Error("list event registrations failed", zap.Error(err), zap.String("event_id", eventID.String()))
		response.Internal(c, "failed to list registrations")
		return
	}
	response.OK(c, list)
}

// Cancel handles DELETE /:id. Only the owner may cancel.
func (h *Handler) Cancel(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid registration id")
		return
	}
	err = h.store.Cancel(c.Request.Context(), id, middleware.UserID(c))
	switch {
	case errors.Is(err, ErrNotFound):
		response.NotFound(c, "Registration not found")
	case errors.Is(err, ErrForbidden):
		response.Forbidden(c, "You are not allowed to cancel this registration")
	case errors.Is(err, ErrAlreadyCancelled):
		response.BadRequest(c, "Registration is already cancelled")
	case err != nil:
		h.logger.Error("cancel registration failed", zap.Error(err), zap.String("registration_id", id.String()))
		response.Internal(c, "failed to cancel registration")
	default:
		response.OKMessage(c, "Registration cancelled successfully", nil)
	}
}
