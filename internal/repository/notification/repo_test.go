package notification

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/wb-go/wbf/dbpg"

	"github.com/bidcloud/notification-engine/internal/model"
)

func setupMockDB(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to open mock db: %v", err)
	}

	wrappedDB := &dbpg.DB{Master: db}
	repo := NewRepository(wrappedDB)

	return repo, mock
}

func TestCreateNotification(t *testing.T) {
	repo, mock := setupMockDB(t)

	notificationID := uuid.New()
	n := model.Notification{
		UserID:   uuid.New(),
		Type:     model.TypeNewContractMatch,
		Title:    "New Contract Match",
		Message:  "A contract matching your profile was published.",
		Channel:  model.ChannelMulti,
		Status:   model.StatusSent,
		Priority: model.PriorityMedium,
	}

	mock.ExpectQuery(regexp.QuoteMeta(`
		INSERT INTO notifications (
		    user_id, type, title, message, payload, channel, status, priority, scheduled_at, sent_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id;
    `)).
		WithArgs(
			n.UserID, n.Type, n.Title, n.Message, sqlmock.AnyArg(),
			n.Channel, n.Status, n.Priority, sqlmock.AnyArg(), sqlmock.AnyArg(),
		).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(notificationID))

	id, err := repo.CreateNotification(context.Background(), n)
	assert.NoError(t, err)
	assert.Equal(t, notificationID, id)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStatus(t *testing.T) {
	repo, mock := setupMockDB(t)

	id := uuid.New()

	mock.ExpectExec(regexp.QuoteMeta(`
		UPDATE notifications
		SET status = $1, updated_at = now()
		WHERE id = $2;
    `)).
		WithArgs(model.StatusSent, id).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.UpdateStatus(context.Background(), id, model.StatusSent)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())

	mock.ExpectExec(regexp.QuoteMeta(`
		UPDATE notifications
		SET status = $1, updated_at = now()
		WHERE id = $2;
    `)).
		WithArgs(model.StatusSent, id).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = repo.UpdateStatus(context.Background(), id, model.StatusSent)
	assert.ErrorIs(t, err, ErrNotificationNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkSent(t *testing.T) {
	repo, mock := setupMockDB(t)

	id := uuid.New()
	sentAt := time.Now()

	mock.ExpectExec(regexp.QuoteMeta(`
		UPDATE notifications
		SET status = 'sent', sent_at = $1, updated_at = now()
		WHERE id = $2;
    `)).
		WithArgs(sentAt, id).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.MarkSent(context.Background(), id, sentAt)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimPending(t *testing.T) {
	repo, mock := setupMockDB(t)

	id := uuid.New()

	mock.ExpectExec(regexp.QuoteMeta(`
		UPDATE notifications
		SET status = 'processing', updated_at = now()
		WHERE id = $1 AND status = 'pending';
    `)).
		WithArgs(id).
		WillReturnResult(sqlmock.NewResult(0, 1))

	claimed, err := repo.ClaimPending(context.Background(), id)
	assert.NoError(t, err)
	assert.True(t, claimed)
	assert.NoError(t, mock.ExpectationsWereMet())

	// Row already claimed by a concurrent sweep run.
	mock.ExpectExec(regexp.QuoteMeta(`
		UPDATE notifications
		SET status = 'processing', updated_at = now()
		WHERE id = $1 AND status = 'pending';
    `)).
		WithArgs(id).
		WillReturnResult(sqlmock.NewResult(0, 0))

	claimed, err = repo.ClaimPending(context.Background(), id)
	assert.NoError(t, err)
	assert.False(t, claimed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetNotificationStatusByID(t *testing.T) {
	repo, mock := setupMockDB(t)

	id := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta(`
		SELECT status
		FROM notifications
		WHERE id = $1;
    `)).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("pending"))

	gotStatus, err := repo.GetNotificationStatusByID(context.Background(), id)
	assert.NoError(t, err)
	assert.Equal(t, model.StatusPending, gotStatus)
	assert.NoError(t, mock.ExpectationsWereMet())

	mock.ExpectQuery(regexp.QuoteMeta(`
		SELECT status
		FROM notifications
		WHERE id = $1;
    `)).
		WithArgs(id).
		WillReturnError(sql.ErrNoRows)

	gotStatus, err = repo.GetNotificationStatusByID(context.Background(), id)
	assert.ErrorIs(t, err, ErrNotificationNotFound)
	assert.Equal(t, model.Status(""), gotStatus)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetDuePending(t *testing.T) {
	repo, mock := setupMockDB(t)

	now := time.Now()
	scheduledAt := now.Add(-time.Hour)

	rows := sqlmock.NewRows([]string{
		"id", "user_id", "type", "title", "message", "payload", "channel", "status", "priority",
		"scheduled_at", "sent_at", "read_at", "created_at", "updated_at",
	}).AddRow(
		uuid.New(), uuid.New(), "new_contract_match", "Title", "Body", []byte(`{}`), "multi", "pending", "medium",
		scheduledAt, nil, nil, now.Add(-2*time.Hour), now.Add(-2*time.Hour),
	)

	mock.ExpectQuery(regexp.QuoteMeta(`
		SELECT id, user_id, type, title, message, payload, channel, status, priority,
		       scheduled_at, sent_at, read_at, created_at, updated_at
		FROM notifications
		WHERE status = 'pending' AND scheduled_at <= $1
		ORDER BY created_at ASC
		LIMIT $2;
    `)).
		WithArgs(now, 50).
		WillReturnRows(rows)

	list, err := repo.GetDuePending(context.Background(), now, 50)
	assert.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Equal(t, model.StatusPending, list[0].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetUserNotifications(t *testing.T) {
	repo, mock := setupMockDB(t)

	userID := uuid.New()
	now := time.Now()

	rows := sqlmock.NewRows([]string{
		"id", "user_id", "type", "title", "message", "payload", "channel", "status", "priority",
		"scheduled_at", "sent_at", "read_at", "created_at", "updated_at",
	}).
		AddRow(
			uuid.New(), userID, "new_contract_match", "Match", "Body", []byte(`{}`), "multi", "sent", "medium",
			nil, now, nil, now, now,
		).
		AddRow(
			uuid.New(), userID, "deadline_reminder", "Reminder", "Body", []byte(`{}`), "multi", "sent", "high",
			nil, now, now, now, now,
		)

	mock.ExpectQuery(regexp.QuoteMeta(`
		SELECT id, user_id, type, title, message, payload, channel, status, priority,
		       scheduled_at, sent_at, read_at, created_at, updated_at
		FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC;
    `)).
		WithArgs(userID).
		WillReturnRows(rows)

	list, err := repo.GetUserNotifications(context.Background(), userID)
	assert.NoError(t, err)
	assert.Len(t, list, 2)
	assert.NoError(t, mock.ExpectationsWereMet())

	mock.ExpectQuery(regexp.QuoteMeta(`
		SELECT id, user_id, type, title, message, payload, channel, status, priority,
		       scheduled_at, sent_at, read_at, created_at, updated_at
		FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC;
    `)).
		WithArgs(userID).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "user_id", "type", "title", "message", "payload", "channel", "status", "priority",
			"scheduled_at", "sent_at", "read_at", "created_at", "updated_at",
		}))

	_, err = repo.GetUserNotifications(context.Background(), userID)
	assert.ErrorIs(t, err, ErrNoNotificationsFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkRead(t *testing.T) {
	repo, mock := setupMockDB(t)

	id := uuid.New()

	mock.ExpectExec(regexp.QuoteMeta(`
		UPDATE notifications
		SET read_at = now(), updated_at = now()
		WHERE id = $1 AND read_at IS NULL;
    `)).
		WithArgs(id).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.MarkRead(context.Background(), id)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())

	mock.ExpectExec(regexp.QuoteMeta(`
		UPDATE notifications
		SET read_at = now(), updated_at = now()
		WHERE id = $1 AND read_at IS NULL;
    `)).
		WithArgs(id).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = repo.MarkRead(context.Background(), id)
	assert.ErrorIs(t, err, ErrNotificationNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkAllRead(t *testing.T) {
	repo, mock := setupMockDB(t)

	userID := uuid.New()

	mock.ExpectExec(regexp.QuoteMeta(`
		UPDATE notifications
		SET read_at = now(), updated_at = now()
		WHERE user_id = $1 AND read_at IS NULL;
    `)).
		WithArgs(userID).
		WillReturnResult(sqlmock.NewResult(0, 3))

	count, err := repo.MarkAllRead(context.Background(), userID)
	assert.NoError(t, err)
	assert.Equal(t, int64(3), count)
	assert.NoError(t, mock.ExpectationsWereMet())
}
