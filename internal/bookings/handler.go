package bookings

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campus-hub/backend/internal/middleware"
	"github.com/campus-hub/backend/internal/models"
	"github.com/campus-hub/backend/pkg/response"
)

// CreateRequest is the body for POST /api/bookings.
type CreateRequest struct {
	EventID     string   `json:"eventId"`
	SeatIDs     []string `json:"seatIds"`
	TotalAmount *float64 `json:"totalAmount"`
}

// Handler handles booking HTTP endpoints.
type Handler struct {
	store  Store
	logger *zap.Logger
}

// NewHandler creates a bookings handler.
func NewHandler(store Store, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, logger: logger}
}

// RegisterRoutes mounts /api/bookings; every route requires authMW.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	rg.Use(authMW)
	rg.POST("", h.Create)
	rg.GET("/mine", h.ListMine)
	rg.GET("/:id", h.Get)
}

func (req CreateRequest) parse(userID uuid.UUID) (Request, error) {
	out := Request{UserID: userID, TotalAmount: req.TotalAmount}
	if req.EventID == "" || len(req.SeatIDs) == 0 {
		return out, errors.New("eventId and at least one seatId are required")
	}
	var err error
	if out.EventID, err = uuid.Parse(req.EventID); err != nil {
		return out, errors.New("invalid eventId")
	}
	for _, s := range req.SeatIDs {
		id, err := uuid.Parse(s)
		if err != nil {
			return out, errors.New("invalid seatId " + s)
		}
		out.SeatIDs = append(out.SeatIDs, id)
	}
	return out, out.Validate()
}

// Create handles POST /.
func (h *Handler) Create(c *gin.Context) {
	var body CreateRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "eventId and at least one seatId are required")
		return
	}
	req, err := body.parse(middleware.UserID(c))
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	ctx := c.Request.Context()
	b, err := h.store.Book(ctx, req)
	switch {
	case errors.Is(err, ErrEventNotFound):
		response.NotFound(c, "Event not found")
		return
	case errors.Is(err, ErrNotOpen):
		response.BadRequest(c, "This event is not open for booking")
		return
	case errors.Is(err, ErrSeatsUnavailable):
		response.BadRequest(c, "One or more selected seats are not available for this event anymore")
		return
	case err != nil:
		h.logger.Error("create booking failed", zap.Error(err), zap.String("event_id", req.EventID.String()))
		response.Internal(c, "failed to create booking")
		return
	}
	h.logger.Info("seats booked", zap.String("booking_id", b.ID.String()),
		zap.String("event_id", req.EventID.String()), zap.Int("seats", len(req.SeatIDs)))

	populated, err := h.store.Get(ctx, b.ID)
	if err != nil {
		h.logger.Warn("load booking failed", zap.Error(err), zap.String("booking_id", b.ID.String()))
		populated = b
	}
	response.Created(c, "Seats booked successfully", populated)
}

// ListMine handles GET /mine.
func (h *Handler) ListMine(c *gin.Context) {
	list, err := h.store.ListForUser(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		h.logger.Error("list bookings failed", zap.Error(err))
		response.Internal(c, "failed to list bookings")
		return
	}
	if list == nil {
		list = []models.Booking{}
	}
	response.OK(c, list)
}

// Get handles GET /:id. Only the owner or an admin may view a booking.
func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid booking id")
		return
	}
	b, err := h.store.Get(c.Request.Context(), id)
	if errors.Is(err, ErrNotFound) {
		response.NotFound(c, "Booking not found")
		return
	}
	if err != nil {
		h.logger.Error("get booking failed", zap.Error(err))
		response.Internal(c, "failed to get booking")
		return
	}
	if b.UserID != middleware.UserID(c) && middleware.UserRole(c) != models.RoleAdmin {
		response.Forbidden(c, "You are not allowed to view this booking")
		return
	}
	response.OK(c, b)
}
