package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/wb-go/wbf/ginext"
	"github.com/wb-go/wbf/zlog"

	"github.com/bidcloud/notification-engine/internal/api/respond"
	"github.com/bidcloud/notification-engine/internal/model"
	notifrepo "github.com/bidcloud/notification-engine/internal/repository/notification"
	notifsvc "github.com/bidcloud/notification-engine/internal/service/notification"
)

// notificationService defines the engine operations the Handler depends on.
type notificationService interface {
	Dispatch(ctx context.Context, req model.DispatchRequest) (notifsvc.Result, error)
	EnqueueDispatch(req model.DispatchRequest) error
	GetNotificationStatusByID(ctx context.Context, id uuid.UUID) (model.Status, error)
	GetUserNotifications(ctx context.Context, userID uuid.UUID) ([]model.Notification, error)
	MarkRead(ctx context.Context, id uuid.UUID) error
	MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error)
}

// sweeper runs one pass over due pending notifications.
type sweeper interface {
	ProcessPending(ctx context.Context, now time.Time) (processed, failed int)
}

// Handler handles HTTP requests related to notifications.
type Handler struct {
	service   notificationService
	sweep     sweeper
	validator *validator.Validate
}

// NewHandler creates a new Handler instance.
func NewHandler(s notificationService, sw sweeper, v *validator.Validate) *Handler {
	return &Handler{service: s, sweep: sw, validator: v}
}

// DispatchRequest represents the JSON body of a dispatch call.
type DispatchRequest struct {
	UserID   string          `json:"user_id" validate:"required,uuid"`
	Type     string          `json:"type" validate:"required"`
	Title    string          `json:"title" validate:"required"`
	Message  string          `json:"message" validate:"required"`
	Payload  model.Payload   `json:"payload"`
	Channels []model.Channel `json:"channels" validate:"required,min=1,dive,oneof=email whatsapp in_app"`
}

func (h *Handler) parseDispatchRequest(c *ginext.Context) (model.DispatchRequest, bool) {
	var req DispatchRequest

	if err := json.NewDecoder(c.Request.Body).Decode(&req); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to decode request body")
		respond.Fail(c.Writer, http.StatusBadRequest, fmt.Errorf("invalid request body"))
		return model.DispatchRequest{}, false
	}

	if err := h.validator.Struct(req); err != nil {
		zlog.Logger.Warn().Err(err).Msg("failed to validate request body")
		respond.Fail(c.Writer, http.StatusBadRequest, fmt.Errorf("validation error: %s", err.Error()))
		return model.DispatchRequest{}, false
	}

	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		respond.Fail(c.Writer, http.StatusBadRequest, fmt.Errorf("invalid user_id"))
		return model.DispatchRequest{}, false
	}

	return model.DispatchRequest{
		UserID:   userID,
		Type:     model.Type(req.Type),
		Title:    req.Title,
		Message:  req.Message,
		Payload:  req.Payload,
		Channels: req.Channels,
	}, true
}

// Create handles HTTP POST requests to enqueue a notification for
// background dispatch.
func (h *Handler) Create(c *ginext.Context) {
	req, ok := h.parseDispatchRequest(c)
	if !ok {
		return
	}

	if err := h.service.EnqueueDispatch(req); err != nil {
		zlog.Logger.Error().Err(err).Str("user_id", req.UserID.String()).Msg("failed to enqueue dispatch")
		respond.Fail(c.Writer, http.StatusInternalServerError, fmt.Errorf("internal server error"))
		return
	}

	respond.Accepted(c.Writer, "notification queued")
}

// SendImmediate handles HTTP POST requests to dispatch a notification
// synchronously and return the per-channel results.
func (h *Handler) SendImmediate(c *ginext.Context) {
	req, ok := h.parseDispatchRequest(c)
	if !ok {
		return
	}

	result, err := h.service.Dispatch(c.Request.Context(), req)
	if err != nil {
		zlog.Logger.Error().Err(err).Str("user_id", req.UserID.String()).Msg("failed to dispatch notification")
		respond.Fail(c.Writer, http.StatusInternalServerError, fmt.Errorf("internal server error"))
		return
	}

	respond.OK(c.Writer, result)
}

// GetStatus handles HTTP GET requests to retrieve the status of a
// notification by ID.
func (h *Handler) GetStatus(c *ginext.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	status, err := h.service.GetNotificationStatusByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, notifrepo.ErrNotificationNotFound) {
			zlog.Logger.Warn().Interface("id", id).Err(err).Msg("notification not found")
			respond.Fail(c.Writer, http.StatusNotFound, fmt.Errorf("notification not found"))
			return
		}

		zlog.Logger.Error().Err(err).Interface("id", id).Msg("failed to get notification status")
		respond.Fail(c.Writer, http.StatusInternalServerError, fmt.Errorf("internal server error"))
		return
	}

	respond.OK(c.Writer, status)
}

// GetUserFeed handles HTTP GET requests to retrieve a user's
// notification feed.
func (h *Handler) GetUserFeed(c *ginext.Context) {
	userID, ok := parseIDParam(c, "userID")
	if !ok {
		return
	}

	notifications, err := h.service.GetUserNotifications(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, notifrepo.ErrNoNotificationsFound) {
			respond.OK(c.Writer, []model.Notification{})
			return
		}

		zlog.Logger.Error().Err(err).Msg("failed to get notifications")
		respond.Fail(c.Writer, http.StatusInternalServerError, fmt.Errorf("internal server error"))
		return
	}

	respond.OK(c.Writer, notifications)
}

// MarkRead handles HTTP POST requests to mark one notification as read.
func (h *Handler) MarkRead(c *ginext.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.service.MarkRead(c.Request.Context(), id); err != nil {
		if errors.Is(err, notifrepo.ErrNotificationNotFound) {
			respond.Fail(c.Writer, http.StatusNotFound, fmt.Errorf("notification not found"))
			return
		}

		zlog.Logger.Error().Err(err).Interface("id", id).Msg("failed to mark notification read")
		respond.Fail(c.Writer, http.StatusInternalServerError, fmt.Errorf("internal server error"))
		return
	}

	respond.OK(c.Writer, "notification marked read")
}

// MarkAllRead handles HTTP POST requests to mark all of a user's
// notifications as read.
func (h *Handler) MarkAllRead(c *ginext.Context) {
	userID, ok := parseIDParam(c, "userID")
	if !ok {
		return
	}

	count, err := h.service.MarkAllRead(c.Request.Context(), userID)
	if err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to mark notifications read")
		respond.Fail(c.Writer, http.StatusInternalServerError, fmt.Errorf("internal server error"))
		return
	}

	respond.OK(c.Writer, map[string]int64{"updated": count})
}

// ProcessNow handles HTTP POST requests from admins to run a sweep pass
// immediately instead of waiting for the next tick.
func (h *Handler) ProcessNow(c *ginext.Context) {
	processed, failed := h.sweep.ProcessPending(c.Request.Context(), time.Now())

	respond.OK(c.Writer, map[string]int{"processed": processed, "failed": failed})
}

func parseIDParam(c *ginext.Context, name string) (uuid.UUID, bool) {
	idStr := c.Param(name)
	id, err := uuid.Parse(idStr)
	if err != nil {
		zlog.Logger.Error().Err(err).Interface("idStr", idStr).Msg("failed to parse id")
		respond.Fail(c.Writer, http.StatusBadRequest, fmt.Errorf("invalid id"))
		return uuid.Nil, false
	}

	if id == uuid.Nil {
		zlog.Logger.Warn().Msg("missing id")
		respond.Fail(c.Writer, http.StatusBadRequest, fmt.Errorf("missing id"))
		return uuid.Nil, false
	}

	return id, true
}
