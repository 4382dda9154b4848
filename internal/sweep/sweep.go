// Package sweep periodically re-dispatches notifications that were
// deferred past quiet hours. Each due row is claimed atomically before
// delivery so overlapping sweep runs never deliver the same notification
// twice.
package sweep

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/zlog"

	"github.com/bidcloud/notification-engine/internal/model"
)

type notificationService interface {
	DuePending(ctx context.Context, now time.Time, limit int) ([]model.Notification, error)
	ClaimPending(ctx context.Context, id uuid.UUID) (bool, error)
	RedeliverPending(ctx context.Context, n model.Notification) (bool, error)
}

// Sweep drives the periodic pass over deferred notifications.
type Sweep struct {
	service   notificationService
	interval  time.Duration
	batchSize int

	now func() time.Time
}

// New creates a sweep. interval defaults to one minute, batchSize to 50.
func New(service notificationService, interval time.Duration, batchSize int) *Sweep {
	if interval <= 0 {
		interval = time.Minute
	}
	if batchSize <= 0 {
		batchSize = 50
	}

	return &Sweep{
		service:   service,
		interval:  interval,
		batchSize: batchSize,
		now:       time.Now,
	}
}

// Run processes due notifications on the configured interval until ctx
// is cancelled.
func (s *Sweep) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	zlog.Logger.Info().Dur("interval", s.interval).Msg("sweep started")

	for {
		select {
		case <-ctx.Done():
			zlog.Logger.Info().Msg("sweep stopped")
			return
		case <-ticker.C:
			processed, failed := s.ProcessPending(ctx, s.now())
			if processed > 0 || failed > 0 {
				zlog.Logger.Info().
					Int("processed", processed).
					Int("failed", failed).
					Msg("sweep pass finished")
			}
		}
	}
}

// ProcessPending re-dispatches every pending notification due at now.
// Rows are processed independently: one row's failure never aborts the
// batch. It returns how many rows were delivered and how many failed.
func (s *Sweep) ProcessPending(ctx context.Context, now time.Time) (processed, failed int) {
	due, err := s.service.DuePending(ctx, now, s.batchSize)
	if err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to fetch due notifications")
		return 0, 0
	}

	for _, n := range due {
		if ctx.Err() != nil {
			return processed, failed
		}

		claimed, err := s.service.ClaimPending(ctx, n.ID)
		if err != nil {
			zlog.Logger.Error().Err(err).Str("id", n.ID.String()).Msg("failed to claim notification")
			failed++
			continue
		}
		if !claimed {
			// Another sweep run got there first.
			continue
		}

		ok, err := s.service.RedeliverPending(ctx, n)
		if err != nil {
			zlog.Logger.Error().Err(err).Str("id", n.ID.String()).Msg("failed to redeliver notification")
			failed++
			continue
		}

		if ok {
			processed++
		} else {
			failed++
		}
	}

	return processed, failed
}
