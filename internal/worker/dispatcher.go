// Package worker runs the pool of goroutines that consume dispatch
// requests from the ingestion queue and hand them to the dispatch engine.
package worker

import (
	"context"
	"sync"

	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"

	"github.com/bidcloud/notification-engine/internal/model"
	"github.com/bidcloud/notification-engine/internal/rabbitmq/queue"
	notifsvc "github.com/bidcloud/notification-engine/internal/service/notification"
)

type dispatchConsumer interface {
	Consume(ctx context.Context, out chan<- queue.DispatchMessage, strategy retry.Strategy) error
}

type dispatchService interface {
	Dispatch(ctx context.Context, req model.DispatchRequest) (notifsvc.Result, error)
}

// Dispatcher consumes queued dispatch requests with a worker pool.
type Dispatcher struct {
	queue   dispatchConsumer
	service dispatchService
}

// NewDispatcher creates a dispatcher over the given queue and engine.
func NewDispatcher(q dispatchConsumer, s dispatchService) *Dispatcher {
	return &Dispatcher{
		queue:   q,
		service: s,
	}
}

// Run consumes messages until ctx is cancelled, fanning them out over
// workerCount goroutines. Dispatch calls are independent, so workers
// share nothing beyond the message channel.
func (d *Dispatcher) Run(ctx context.Context, strategy retry.Strategy, workerCount int) {
	var wg sync.WaitGroup
	msgChan := make(chan queue.DispatchMessage, workerCount*10)

	go func() {
		if err := d.queue.Consume(ctx, msgChan, strategy); err != nil {
			zlog.Logger.Error().Err(err).Msg("failed to consume messages")
		}
	}()

	wg.Add(workerCount)
	for i := 0; i < workerCount; i++ {
		go func(id int) {
			defer wg.Done()

			zlog.Logger.Printf("worker-%d started", id)

			for {
				select {
				case <-ctx.Done():
					zlog.Logger.Printf("worker-%d shutting down", id)
					return
				case msg, ok := <-msgChan:
					if !ok {
						zlog.Logger.Printf("worker-%d channel closed, shutting down", id)
						return
					}

					result, err := d.service.Dispatch(ctx, msg.Request())
					if err != nil {
						zlog.Logger.Error().Err(err).
							Str("user_id", msg.UserID.String()).
							Str("type", string(msg.Type)).
							Msg("dispatch failed")
						continue
					}

					zlog.Logger.Info().
						Str("user_id", msg.UserID.String()).
						Str("type", string(msg.Type)).
						Bool("success", result.Success).
						Bool("skipped", result.Skipped).
						Bool("scheduled", result.Scheduled).
						Msg("dispatch finished")
				}
			}
		}(i)
	}

	<-ctx.Done()
	wg.Wait()
	zlog.Logger.Print("dispatcher stopped")
}
