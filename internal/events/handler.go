package events

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campus-hub/backend/internal/middleware"
	"github.com/campus-hub/backend/internal/models"
	"github.com/campus-hub/backend/internal/notifications"
	"github.com/campus-hub/backend/pkg/response"
	"github.com/campus-hub/backend/pkg/storage"
	"github.com/campus-hub/backend/pkg/utils"
)

// ImageStore stores banner images.
type ImageStore interface {
	PutImage(ctx context.Context, folder, owner string, r io.Reader, filename, contentType string) (url, key string, err error)
	DeleteObject(ctx context.Context, key string) error
}

// Notifier publishes notifications about event lifecycle changes.
type Notifier interface {
	Create(ctx context.Context, in notifications.CreateInput) (*models.Notification, error)
}

// Handler handles event HTTP endpoints.
type Handler struct {
	store    Store
	images   ImageStore
	notifier Notifier
	logger   *zap.Logger
}

// NewHandler creates an events handler. images and notifier may be nil.
func NewHandler(store Store, images ImageStore, notifier Notifier, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, images: images, notifier: notifier, logger: logger}
}

// RegisterRoutes mounts /api/events.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	rg.GET("", h.List)
	rg.GET("/:id", h.Get)
	rg.GET("/:id/seats", h.Seats)
	rg.POST("", authMW, h.Create)
	rg.PUT("/:id", authMW, h.Update)
	rg.DELETE("/:id", authMW, h.Delete)
	rg.POST("/:id/banner", authMW, h.UploadBanner)
	rg.POST("/:id/status", authMW, h.ChangeStatus)
}

type listBody struct {
	Events     []models.Event `json:"events"`
	Pagination response.Page  `json:"pagination"`
}

func (h *Handler) fail(c *gin.Context, err error, op string) {
	switch {
	case errors.Is(err, ErrNotFound):
		response.NotFound(c, "Event not found")
	case errors.Is(err, ErrCategoryNotFound):
		response.BadRequest(c, "Category not found")
	case errors.Is(err, ErrDuplicateSeat):
		response.BadRequest(c, "Seat numbers must be unique within an event")
	case errors.Is(err, ErrCapacity), errors.Is(err, ErrTotalNegative),
		errors.Is(err, ErrAvailableNegative), errors.Is(err, ErrCapacityUntracked):
		response.BadRequest(c, err.Error())
	default:
		h.logger.Error(op+" failed", zap.Error(err))
		response.Internal(c, "failed to "+op)
	}
}

// load fetches the event named by :id and, when manage is set, checks the caller may modify it.
func (h *Handler) load(c *gin.Context, manage bool, action string) (*models.Event, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return nil, false
	}
	e, err := h.store.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err, "get event")
		return nil, false
	}
	if manage && !e.CanManage(middleware.UserID(c), middleware.UserRole(c)) {
		response.Forbidden(c, "Not authorized to "+action+" this event")
		return nil, false
	}
	return e, true
}

// List handles GET /?category=&status=&search=&page=&limit=.
func (h *Handler) List(c *gin.Context) {
	page, limit := utils.ParsePage(c.Query("page"), c.Query("limit"))
	var f ListFilter
	if v := c.Query("category"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			response.BadRequest(c, "invalid category id")
			return
		}
		f.CategoryID = &id
	}
	if v := c.Query("status"); v != "" {
		f.Status = models.EventStatus(v)
		if !f.Status.Valid() {
			response.BadRequest(c, "Invalid status")
			return
		}
	}
	f.Search = c.Query("search")
	list, total, err := h.store.List(c.Request.Context(), f, limit, utils.Offset(page, limit))
	if err != nil {
		h.fail(c, err, "list events")
		return
	}
	response.OK(c, listBody{Events: list, Pagination: response.Page{Page: page, Limit: limit, Total: total}})
}

// Get handles GET /:id.
func (h *Handler) Get(c *gin.Context) {
	e, ok := h.load(c, false, "")
	if !ok {
		return
	}
	response.OK(c, e)
}

// Seats handles GET /:id/seats.
func (h *Handler) Seats(c *gin.Context) {
	e, ok := h.load(c, false, "")
	if !ok {
		return
	}
	seats, err := h.store.Seats(c.Request.Context(), e.ID)
	if err != nil {
		h.fail(c, err, "list seats")
		return
	}
	response.OK(c, seats)
}

// Create handles POST /. The caller becomes the organizer.
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	e, seats, err := req.Build(middleware.UserID(c))
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	ctx := c.Request.Context()
	if err := h.store.Create(ctx, e, seats); err != nil {
		h.fail(c, err, "create event")
		return
	}
	h.logger.Info("event created", zap.String("event_id", e.ID.String()), zap.Int("seats", len(seats)))
	created, err := h.store.Get(ctx, e.ID)
	if err != nil {
		h.fail(c, err, "get event")
		return
	}
	response.Created(c, "Event created", created)
}

// Update handles PUT /:id (organizer or admin).
func (h *Handler) Update(c *gin.Context) {
	e, ok := h.load(c, true, "update")
	if !ok {
		return
	}
	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if err := req.Apply(e); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	ctx := c.Request.Context()
	if err := h.store.Update(ctx, e, req.Capacity()); err != nil {
		h.fail(c, err, "update event")
		return
	}
	updated, err := h.store.Get(ctx, e.ID)
	if err != nil {
		h.fail(c, err, "get event")
		return
	}
	response.OKMessage(c, "Event updated", updated)
}

// Delete handles DELETE /:id (organizer or admin).
func (h *Handler) Delete(c *gin.Context) {
	e, ok := h.load(c, true, "delete")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if err := h.store.Delete(ctx, e.ID); err != nil {
		h.fail(c, err, "delete event")
		return
	}
	if e.BannerKey != nil && *e.BannerKey != "" && h.images != nil {
		if err := h.images.DeleteObject(ctx, *e.BannerKey); err != nil {
			h.logger.Warn("delete banner failed", zap.Error(err), zap.String("key", *e.BannerKey))
		}
	}
	response.OKMessage(c, "Event deleted successfully", nil)
}

// UploadBanner handles POST /:id/banner (multipart field "bannerImage").
func (h *Handler) UploadBanner(c *gin.Context) {
	if h.images == nil {
		response.ServiceUnavailable(c, "media storage not configured")
		return
	}
	e, ok := h.load(c, true, "update")
	if !ok {
		return
	}
	fh, err := c.FormFile("bannerImage")
	if err != nil {
		response.BadRequest(c, "Provide bannerImage as a multipart file")
		return
	}
	if fh.Size > storage.MaxImageSize {
		response.BadRequest(c, "Invalid file (max 5MB, images only)")
		return
	}
	f, err := fh.Open()
	if err != nil {
		response.BadRequest(c, "Invalid file (max 5MB, images only)")
		return
	}
	defer f.Close()

	ctx := c.Request.Context()
	url, key, err := h.images.PutImage(ctx, storage.FolderBanners, e.ID.String(), f, fh.Filename, fh.Header.Get("Content-Type"))
	if errors.Is(err, storage.ErrUnsupportedImage) || errors.Is(err, storage.ErrImageTooLarge) {
		response.BadRequest(c, "Invalid file (max 5MB, images only)")
		return
	}
	if err != nil {
		h.logger.Error("upload banner failed", zap.Error(err), zap.String("event_id", e.ID.String()))
		response.Internal(c, "Failed to upload image")
		return
	}
	if err := h.store.SetBanner(ctx, e.ID, url, key); err != nil {
		h.fail(c, err, "save banner")
		return
	}
	if e.BannerKey != nil && *e.BannerKey != "" && *e.BannerKey != key {
		if err := h.images.DeleteObject(ctx, *e.BannerKey); err != nil {
			h.logger.Warn("delete previous banner failed", zap.Error(err), zap.String("key", *e.BannerKey))
		}
	}
	e.BannerImage = &url
	e.BannerKey = &key
	response.OKMessage(c, "Banner uploaded", e)
}

// ChangeStatus handles POST /:id/status (organizer or admin).
func (h *Handler) ChangeStatus(c *gin.Context) {
	e, ok := h.load(c, true, "update")
	if !ok {
		return
	}
	var req StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil || !req.Status.Valid() {
		response.BadRequest(c, "Status must be one of: DRAFT, PUBLISHED, CANCELLED, COMPLETED")
		return
	}
	if !e.Status.CanTransitionTo(req.Status) {
		response.BadRequest(c, "Completed events cannot change status")
		return
	}
	if e.Status == req.Status {
		response.OKMessage(c, "Event status unchanged", e)
		return
	}
	ctx := c.Request.Context()
	if err := h.store.SetStatus(ctx, e.ID, req.Status); err != nil {
		h.fail(c, err, "update event status")
		return
	}
	h.logger.Info("event status changed", zap.String("event_id", e.ID.String()),
		zap.String("from", string(e.Status)), zap.String("to", string(req.Status)))
	e.Status = req.Status
	h.announce(ctx, e)
	response.OKMessage(c, "Event status updated", e)
}

// announce publishes the notification that goes with a status change. Failures are logged only.
func (h *Handler) announce(ctx context.Context, e *models.Event) {
	if h.notifier == nil {
		return
	}
	eventID := e.ID
	in := notifications.CreateInput{Data: models.NotificationData{EventID: &eventID, Action: "view_event"}}
	switch e.Status {
	case models.EventPublished:
		in.Title = "New event: " + e.Title
		in.Message = fmt.Sprintf("%s starts on %s. Check it out!", e.Title, e.StartDate.Format("Jan 2, 2006 15:04"))
		in.Category = models.NotifyNewEvent
		in.Scope = models.ScopeBroadcast
	case models.EventCancelled:
		users, err := h.store.RegisteredUserIDs(ctx, e.ID)
		if err != nil {
			h.logger.Warn("load registered users failed", zap.Error(err), zap.String("event_id", e.ID.String()))
			return
		}
		if len(users) == 0 {
			return
		}
		in.Title = "Event cancelled: " + e.Title
		in.Message = e.Title + " has been cancelled."
		in.Category = models.NotifyEventUpdated
		in.Scope = models.ScopePersonalized
		in.UserIDs = users
	default:
		return
	}
	if _, err := h.notifier.Create(ctx, in); err != nil {
		h.logger.Warn("event notification failed", zap.Error(err), zap.String("event_id", e.ID.String()))
	}
}
