package preferences

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/wb-go/wbf/ginext"
	"github.com/wb-go/wbf/zlog"

	"github.com/bidcloud/notification-engine/internal/api/respond"
	"github.com/bidcloud/notification-engine/internal/model"
	notifsvc "github.com/bidcloud/notification-engine/internal/service/notification"
)

type preferencesService interface {
	GetPreferences(ctx context.Context, userID uuid.UUID) (model.Preferences, error)
	UpdatePreferences(ctx context.Context, userID uuid.UUID, update notifsvc.PreferencesUpdate) (model.Preferences, error)
}

// Handler handles HTTP requests for notification preferences.
type Handler struct {
	service   preferencesService
	validator *validator.Validate
}

// NewHandler creates a new Handler instance.
func NewHandler(s preferencesService, v *validator.Validate) *Handler {
	return &Handler{service: s, validator: v}
}

// UpdateRequest is the JSON body of a preferences update. Omitted fields
// keep their current value.
type UpdateRequest struct {
	NewContractMatch  *bool   `json:"new_contract_notifications"`
	DeadlineReminders *bool   `json:"deadline_reminders"`
	DailyDigest       *bool   `json:"daily_digest_enabled"`
	EmailEnabled      *bool   `json:"email_enabled"`
	WhatsAppEnabled   *bool   `json:"whatsapp_enabled"`
	InAppEnabled      *bool   `json:"in_app_enabled"`
	QuietHoursStart   *string `json:"quiet_hours_start" validate:"omitempty,datetime=15:04"`
	QuietHoursEnd     *string `json:"quiet_hours_end" validate:"omitempty,datetime=15:04"`
}

// Get handles HTTP GET requests for a user's preferences. Users without
// a stored record get the defaults.
func (h *Handler) Get(c *ginext.Context) {
	userID, ok := parseUserID(c)
	if !ok {
		return
	}

	prefs, err := h.service.GetPreferences(c.Request.Context(), userID)
	if err != nil {
		zlog.Logger.Error().Err(err).Str("user_id", userID.String()).Msg("failed to get preferences")
		respond.Fail(c.Writer, http.StatusInternalServerError, fmt.Errorf("internal server error"))
		return
	}

	respond.OK(c.Writer, prefs)
}

// Update handles HTTP PUT requests to change a user's preferences.
func (h *Handler) Update(c *ginext.Context) {
	userID, ok := parseUserID(c)
	if !ok {
		return
	}

	var req UpdateRequest
	if err := json.NewDecoder(c.Request.Body).Decode(&req); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to decode request body")
		respond.Fail(c.Writer, http.StatusBadRequest, fmt.Errorf("invalid request body"))
		return
	}

	if err := h.validator.Struct(req); err != nil {
		zlog.Logger.Warn().Err(err).Msg("failed to validate request body")
		respond.Fail(c.Writer, http.StatusBadRequest, fmt.Errorf("validation error: %s", err.Error()))
		return
	}

	prefs, err := h.service.UpdatePreferences(c.Request.Context(), userID, notifsvc.PreferencesUpdate{
		NewContractMatch:  req.NewContractMatch,
		DeadlineReminders: req.DeadlineReminders,
		DailyDigest:       req.DailyDigest,
		EmailEnabled:      req.EmailEnabled,
		WhatsAppEnabled:   req.WhatsAppEnabled,
		InAppEnabled:      req.InAppEnabled,
		QuietHoursStart:   req.QuietHoursStart,
		QuietHoursEnd:     req.QuietHoursEnd,
	})
	if err != nil {
		zlog.Logger.Error().Err(err).Str("user_id", userID.String()).Msg("failed to update preferences")
		respond.Fail(c.Writer, http.StatusInternalServerError, fmt.Errorf("internal server error"))
		return
	}

	respond.OK(c.Writer, prefs)
}

func parseUserID(c *ginext.Context) (uuid.UUID, bool) {
	idStr := c.Param("userID")
	id, err := uuid.Parse(idStr)
	if err != nil || id == uuid.Nil {
		zlog.Logger.Error().Err(err).Interface("idStr", idStr).Msg("failed to parse user id")
		respond.Fail(c.Writer, http.StatusBadRequest, fmt.Errorf("invalid user id"))
		return uuid.Nil, false
	}

	return id, true
}
