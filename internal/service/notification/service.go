package notification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"

	"github.com/bidcloud/notification-engine/internal/model"
	"github.com/bidcloud/notification-engine/internal/rabbitmq/queue"
	"github.com/bidcloud/notification-engine/internal/render"
	prefsrepo "github.com/bidcloud/notification-engine/internal/repository/preferences"
	"github.com/bidcloud/notification-engine/pkg/retrier"
)

const defaultSendTimeout = 10 * time.Second

type notificationRepository interface {
	CreateNotification(context.Context, model.Notification) (uuid.UUID, error)
	UpdateStatus(context.Context, uuid.UUID, model.Status) error
	MarkSent(context.Context, uuid.UUID, time.Time) error
	ClaimPending(context.Context, uuid.UUID) (bool, error)
	GetDuePending(context.Context, time.Time, int) ([]model.Notification, error)
	GetNotificationStatusByID(context.Context, uuid.UUID) (model.Status, error)
	GetUserNotifications(context.Context, uuid.UUID) ([]model.Notification, error)
	MarkRead(context.Context, uuid.UUID) error
	MarkAllRead(context.Context, uuid.UUID) (int64, error)
}

type preferenceRepository interface {
	Get(context.Context, uuid.UUID) (model.Preferences, error)
	Upsert(context.Context, model.Preferences) error
}

// EmailSender delivers a rendered email. Implementations signal
// non-retriable failures through retrier.Fatal.
type EmailSender interface {
	Send(ctx context.Context, to, subject, html, text string) error
}

// WhatsAppSender delivers a rendered WhatsApp message.
type WhatsAppSender interface {
	Send(ctx context.Context, toPhone, text string) error
}

type dispatchPublisher interface {
	Publish(msg queue.DispatchMessage, strategy retry.Strategy) error
}

type cache interface {
	SetWithRetry(ctx context.Context, strategy retry.Strategy, key string, value interface{}) error
	GetWithRetry(ctx context.Context, strategy retry.Strategy, key string) (string, error)
}

// Result is the outcome of one dispatch call.
type Result struct {
	// Success is true when at least one channel delivered, or when the
	// dispatch was legitimately skipped or deferred.
	Success bool `json:"success"`
	// Skipped is true when the user has disabled this notification type.
	Skipped bool `json:"skipped,omitempty"`
	// Scheduled is true when delivery was deferred past quiet hours.
	Scheduled bool `json:"scheduled,omitempty"`
	// Channels holds the per-channel delivery outcome of an immediate send.
	Channels map[model.Channel]bool `json:"channels,omitempty"`
}

// Service is the dispatch engine. Given a user, a notification type and a
// payload it decides whether to send now, skip, or defer; fans out to the
// enabled channel senders; and records the outcome.
type Service struct {
	repo          notificationRepository
	prefs         preferenceRepository
	queue         dispatchPublisher
	email         EmailSender
	whatsapp      WhatsAppSender
	renderer      *render.Renderer
	cache         cache
	cacheStrategy retry.Strategy
	sendStrategy  retrier.Strategy
	sendTimeout   time.Duration

	now func() time.Time
}

// NewService wires the dispatch engine. cacheStrategy drives the
// retry-wrapped Redis operations, sendStrategy the channel delivery
// attempts. sendTimeout bounds a single delivery attempt; zero means 10s.
func NewService(
	repo notificationRepository,
	prefs preferenceRepository,
	q dispatchPublisher,
	email EmailSender,
	whatsapp WhatsAppSender,
	renderer *render.Renderer,
	c cache,
	cacheStrategy retry.Strategy,
	sendStrategy retrier.Strategy,
	sendTimeout time.Duration,
) *Service {
	if sendTimeout <= 0 {
		sendTimeout = defaultSendTimeout
	}

	return &Service{
		repo:          repo,
		prefs:         prefs,
		queue:         q,
		email:         email,
		whatsapp:      whatsapp,
		renderer:      renderer,
		cache:         c,
		cacheStrategy: cacheStrategy,
		sendStrategy:  sendStrategy,
		sendTimeout:   sendTimeout,
		now:           time.Now,
	}
}

// Dispatch delivers one notification across the requested channels,
// honoring the user's type toggles, channel toggles and quiet hours.
// Every dispatch persists exactly one notification record; a missing
// preferences record is fatal to the call and leaves no record.
func (s *Service) Dispatch(ctx context.Context, req model.DispatchRequest) (Result, error) {
	prefs, err := s.prefs.Get(ctx, req.UserID)
	if err != nil {
		zlog.Logger.Error().Err(err).Str("user_id", req.UserID.String()).Msg("failed to load preferences")
		return Result{}, fmt.Errorf("load preferences for %s: %w", req.UserID, err)
	}

	if !prefs.TypeEnabled(req.Type) {
		s.persistOutcome(ctx, req, model.StatusSkipped, nil, nil)
		zlog.Logger.Info().
			Str("user_id", req.UserID.String()).
			Str("type", string(req.Type)).
			Msg("notification type disabled, skipping")
		return Result{Success: true, Skipped: true}, nil
	}

	now := s.now()
	if inQuietHours(now, prefs.QuietHoursStart, prefs.QuietHoursEnd) {
		scheduledAt := nextQuietHoursEnd(now, prefs.QuietHoursEnd)
		s.persistOutcome(ctx, req, model.StatusPending, &scheduledAt, nil)
		zlog.Logger.Info().
			Str("user_id", req.UserID.String()).
			Time("scheduled_at", scheduledAt).
			Msg("user in quiet hours, deferring")
		return Result{Success: true, Scheduled: true}, nil
	}

	results := s.fanOut(ctx, req, prefs)

	inApp := req.HasChannel(model.ChannelInApp) && prefs.InAppEnabled
	if inApp {
		// In-app delivery is the persisted record itself; confirmed below.
		results[model.ChannelInApp] = true
	}

	status := model.StatusFailed
	var sentAt *time.Time
	if anyDelivered(results) {
		status = model.StatusSent
		t := s.now()
		sentAt = &t
	}

	if _, err := s.persistOutcome(ctx, req, status, nil, sentAt); err != nil && inApp {
		results[model.ChannelInApp] = false
	}

	return Result{Success: anyDelivered(results), Channels: results}, nil
}

// EnqueueDispatch hands a dispatch request to the background worker pool.
func (s *Service) EnqueueDispatch(req model.DispatchRequest) error {
	msg := queue.DispatchMessage{
		UserID:   req.UserID,
		Type:     req.Type,
		Title:    req.Title,
		Message:  req.Message,
		Payload:  req.Payload,
		Channels: req.Channels,
	}

	if err := s.queue.Publish(msg, s.cacheStrategy); err != nil {
		return fmt.Errorf("publish dispatch request: %w", err)
	}

	return nil
}

// RedeliverPending re-runs the channel fan-out for a claimed pending row
// and updates it to sent or failed. Preferences are re-checked because
// they may have changed since the row was deferred.
func (s *Service) RedeliverPending(ctx context.Context, n model.Notification) (bool, error) {
	prefs, err := s.prefs.Get(ctx, n.UserID)
	if err != nil {
		s.setStatus(ctx, n.ID, model.StatusFailed)
		return false, fmt.Errorf("load preferences for %s: %w", n.UserID, err)
	}

	req := model.DispatchRequest{
		UserID:   n.UserID,
		Type:     n.Type,
		Title:    n.Title,
		Message:  n.Message,
		Payload:  n.Payload,
		Channels: prefs.EnabledChannels(),
	}

	results := s.fanOut(ctx, req, prefs)
	if prefs.InAppEnabled {
		// The row already sits in the store, so the feed entry exists.
		results[model.ChannelInApp] = true
	}

	if !anyDelivered(results) {
		s.setStatus(ctx, n.ID, model.StatusFailed)
		return false, nil
	}

	if err := s.repo.MarkSent(ctx, n.ID, s.now()); err != nil {
		zlog.Logger.Error().Err(err).Str("id", n.ID.String()).Msg("failed to mark notification sent")
	}
	s.cacheStatus(ctx, n.ID, model.StatusSent)

	return true, nil
}

// DuePending lists pending notifications whose scheduled time has passed.
func (s *Service) DuePending(ctx context.Context, now time.Time, limit int) ([]model.Notification, error) {
	notifications, err := s.repo.GetDuePending(ctx, now, limit)
	if err != nil {
		return nil, fmt.Errorf("get due notifications: %w", err)
	}

	return notifications, nil
}

// ClaimPending atomically claims a due row for this sweep run.
func (s *Service) ClaimPending(ctx context.Context, id uuid.UUID) (bool, error) {
	return s.repo.ClaimPending(ctx, id)
}

// GetNotificationStatusByID returns the status of a notification,
// preferring the cache and falling back to the database.
func (s *Service) GetNotificationStatusByID(ctx context.Context, id uuid.UUID) (model.Status, error) {
	status, err := s.cache.GetWithRetry(ctx, s.cacheStrategy, id.String())
	if err != nil && !errors.Is(err, redis.Nil) {
		zlog.Logger.Error().Err(err).Str("id", id.String()).Msg("failed to get notification status from cache")
	}

	if err != nil || status == "" {
		st, err := s.repo.GetNotificationStatusByID(ctx, id)
		if err != nil {
			return "", fmt.Errorf("get notification status: %w", err)
		}

		s.cacheStatus(ctx, id, st)
		return st, nil
	}

	return model.Status(status), nil
}

// GetUserNotifications returns a user's notification feed.
func (s *Service) GetUserNotifications(ctx context.Context, userID uuid.UUID) ([]model.Notification, error) {
	notifications, err := s.repo.GetUserNotifications(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user notifications: %w", err)
	}

	return notifications, nil
}

// MarkRead marks one notification as read.
func (s *Service) MarkRead(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.MarkRead(ctx, id); err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}

	return nil
}

// MarkAllRead marks all of a user's notifications as read.
func (s *Service) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	count, err := s.repo.MarkAllRead(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", err)
	}

	return count, nil
}

// GetPreferences returns the user's stored preferences, or the defaults
// when the user has never saved any.
func (s *Service) GetPreferences(ctx context.Context, userID uuid.UUID) (model.Preferences, error) {
	prefs, err := s.prefs.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, prefsrepo.ErrPreferencesNotFound) {
			return model.DefaultPreferences(userID), nil
		}

		return model.Preferences{}, fmt.Errorf("get preferences: %w", err)
	}

	return prefs, nil
}

// PreferencesUpdate is a partial preferences change; nil fields keep
// their current value.
type PreferencesUpdate struct {
	NewContractMatch  *bool   `json:"new_contract_notifications,omitempty"`
	DeadlineReminders *bool   `json:"deadline_reminders,omitempty"`
	DailyDigest       *bool   `json:"daily_digest_enabled,omitempty"`
	EmailEnabled      *bool   `json:"email_enabled,omitempty"`
	WhatsAppEnabled   *bool   `json:"whatsapp_enabled,omitempty"`
	InAppEnabled      *bool   `json:"in_app_enabled,omitempty"`
	QuietHoursStart   *string `json:"quiet_hours_start,omitempty"`
	QuietHoursEnd     *string `json:"quiet_hours_end,omitempty"`
}

// UpdatePreferences merges a partial update onto the stored preferences
// (or the defaults on first write) and upserts the result.
func (s *Service) UpdatePreferences(ctx context.Context, userID uuid.UUID, update PreferencesUpdate) (model.Preferences, error) {
	prefs, err := s.GetPreferences(ctx, userID)
	if err != nil {
		return model.Preferences{}, err
	}

	if update.NewContractMatch != nil {
		prefs.NewContractMatch = *update.NewContractMatch
	}
	if update.DeadlineReminders != nil {
		prefs.DeadlineReminders = *update.DeadlineReminders
	}
	if update.DailyDigest != nil {
		prefs.DailyDigest = *update.DailyDigest
	}
	if update.EmailEnabled != nil {
		prefs.EmailEnabled = *update.EmailEnabled
	}
	if update.WhatsAppEnabled != nil {
		prefs.WhatsAppEnabled = *update.WhatsAppEnabled
	}
	if update.InAppEnabled != nil {
		prefs.InAppEnabled = *update.InAppEnabled
	}
	if update.QuietHoursStart != nil {
		prefs.QuietHoursStart = *update.QuietHoursStart
	}
	if update.QuietHoursEnd != nil {
		prefs.QuietHoursEnd = *update.QuietHoursEnd
	}

	if err := s.prefs.Upsert(ctx, prefs); err != nil {
		return model.Preferences{}, fmt.Errorf("upsert preferences: %w", err)
	}

	return prefs, nil
}

// fanOut attempts delivery on each requested external channel the user
// has enabled. A channel failure is logged and recorded, never
// propagated: it must not abort sibling channels.
func (s *Service) fanOut(ctx context.Context, req model.DispatchRequest, prefs model.Preferences) map[model.Channel]bool {
	results := make(map[model.Channel]bool)

	if req.HasChannel(model.ChannelEmail) && prefs.EmailEnabled {
		results[model.ChannelEmail] = s.sendEmail(ctx, req)
	}
	if req.HasChannel(model.ChannelWhatsApp) && prefs.WhatsAppEnabled {
		results[model.ChannelWhatsApp] = s.sendWhatsApp(ctx, req)
	}

	return results
}

func (s *Service) sendEmail(ctx context.Context, req model.DispatchRequest) bool {
	var to string
	if req.Payload.User != nil {
		to = req.Payload.User.Email
	}

	msg := s.renderer.RenderEmail(req.Type, req.Title, req.Message, req.Payload)

	err := retrier.Do(ctx, s.sendStrategy, func() error {
		sendCtx, cancel := context.WithTimeout(ctx, s.sendTimeout)
		defer cancel()
		return s.email.Send(sendCtx, to, msg.Subject, msg.HTML, msg.Text)
	})
	if err != nil {
		zlog.Logger.Error().Err(err).Str("user_id", req.UserID.String()).Msg("email delivery failed")
		return false
	}

	return true
}

func (s *Service) sendWhatsApp(ctx context.Context, req model.DispatchRequest) bool {
	var to string
	if req.Payload.User != nil {
		to = req.Payload.User.Phone
	}

	text := s.renderer.RenderWhatsApp(req.Type, req.Title, req.Message, req.Payload)

	err := retrier.Do(ctx, s.sendStrategy, func() error {
		sendCtx, cancel := context.WithTimeout(ctx, s.sendTimeout)
		defer cancel()
		return s.whatsapp.Send(sendCtx, to, text)
	})
	if err != nil {
		zlog.Logger.Error().Err(err).Str("user_id", req.UserID.String()).Msg("whatsapp delivery failed")
		return false
	}

	return true
}

// persistOutcome writes the single notification record for a dispatch.
// A write failure is logged, never raised: already-sent channel messages
// are not rolled back (at-least-once delivery, possible loss of the
// audit record only).
func (s *Service) persistOutcome(
	ctx context.Context,
	req model.DispatchRequest,
	status model.Status,
	scheduledAt *time.Time,
	sentAt *time.Time,
) (uuid.UUID, error) {
	n := model.Notification{
		UserID:      req.UserID,
		Type:        req.Type,
		Title:       req.Title,
		Message:     req.Message,
		Payload:     req.Payload,
		Channel:     model.ChannelMulti,
		Status:      status,
		Priority:    req.Type.DefaultPriority(),
		ScheduledAt: scheduledAt,
		SentAt:      sentAt,
	}

	id, err := s.repo.CreateNotification(ctx, n)
	if err != nil {
		zlog.Logger.Error().Err(err).
			Str("user_id", req.UserID.String()).
			Str("status", string(status)).
			Msg("failed to persist notification record")
		return uuid.Nil, err
	}

	s.cacheStatus(ctx, id, status)
	return id, nil
}

func (s *Service) setStatus(ctx context.Context, id uuid.UUID, status model.Status) {
	if err := s.repo.UpdateStatus(ctx, id, status); err != nil {
		zlog.Logger.Error().Err(err).Str("id", id.String()).Msgf("failed to set status=%s", status)
	}
	s.cacheStatus(ctx, id, status)
}

func (s *Service) cacheStatus(ctx context.Context, id uuid.UUID, status model.Status) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SetWithRetry(ctx, s.cacheStrategy, id.String(), string(status)); err != nil {
		zlog.Logger.Error().Err(err).Str("id", id.String()).Msg("failed to cache notification status")
	}
}

func anyDelivered(results map[model.Channel]bool) bool {
	for _, ok := range results {
		if ok {
			return true
		}
	}
	return false
}
