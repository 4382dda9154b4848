package main

import (
	"context"
	"errors"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/wb-go/wbf/dbpg"
	"github.com/wb-go/wbf/rabbitmq"
	"github.com/wb-go/wbf/redis"
	"github.com/wb-go/wbf/zlog"

	"github.com/bidcloud/notification-engine/internal/api/handlers/notification"
	"github.com/bidcloud/notification-engine/internal/api/handlers/preferences"
	"github.com/bidcloud/notification-engine/internal/api/router"
	"github.com/bidcloud/notification-engine/internal/api/server"
	"github.com/bidcloud/notification-engine/internal/config"
	"github.com/bidcloud/notification-engine/internal/rabbitmq/queue"
	"github.com/bidcloud/notification-engine/internal/render"
	notifrepo "github.com/bidcloud/notification-engine/internal/repository/notification"
	prefsrepo "github.com/bidcloud/notification-engine/internal/repository/preferences"
	notifsvc "github.com/bidcloud/notification-engine/internal/service/notification"
	"github.com/bidcloud/notification-engine/internal/sweep"
	"github.com/bidcloud/notification-engine/internal/worker"
	"github.com/bidcloud/notification-engine/pkg/email"
	"github.com/bidcloud/notification-engine/pkg/whatsapp"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	zlog.Init()
	cfg := config.Must()
	val := validator.New()

	conn, err := rabbitmq.Connect(cfg.RabbitMQ.URL(), cfg.RabbitMQ.Retries, cfg.RabbitMQ.Pause)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to connect to rabbitmq")
	}

	ch, err := conn.Channel()
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to open channel")
	}

	q, err := queue.NewDispatchQueue(ch, cfg)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to create dispatch queue")
	}

	opts := &dbpg.Options{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}

	slaveDSNs := make([]string, 0, len(cfg.Database.Slaves))
	for _, s := range cfg.Database.Slaves {
		slaveDSNs = append(slaveDSNs, s.DSN())
	}

	db, err := dbpg.New(cfg.Database.Master.DSN(), slaveDSNs, opts)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to connect to database")
	}

	repo := notifrepo.NewRepository(db)
	prefRepo := prefsrepo.NewRepository(db)

	dbNum, err := strconv.Atoi(cfg.Redis.Database)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to parse redis database")
	}

	rdb := redis.New(cfg.Redis.Address, cfg.Redis.Password, dbNum)
	if err = rdb.Ping(ctx).Err(); err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to connect to redis")
	}

	smtpPort, err := strconv.Atoi(cfg.Email.SMTPPort)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to parse email smtp port")
	}

	emailClient := email.NewClient(
		cfg.Email.SMTPHost,
		smtpPort,
		cfg.Email.Username,
		cfg.Email.Password,
		cfg.Email.From,
		cfg.Send.Timeout,
	)
	whatsappClient := whatsapp.NewClient(
		cfg.WhatsApp.AccountSID,
		cfg.WhatsApp.AuthToken,
		cfg.WhatsApp.From,
	)

	renderer := render.New(cfg.App.BaseURL, cfg.App.Brand)

	service := notifsvc.NewService(
		repo,
		prefRepo,
		q,
		emailClient,
		whatsappClient,
		renderer,
		rdb,
		cfg.Retry,
		cfg.Send.Strategy,
		cfg.Send.Timeout,
	)

	sw := sweep.New(service, cfg.Sweep.Interval, cfg.Sweep.BatchSize)
	go sw.Run(ctx)

	dispatcher := worker.NewDispatcher(q, service)
	go dispatcher.Run(ctx, cfg.Retry, cfg.Workers.Count)

	notifHandler := notification.NewHandler(service, sw, val)
	prefsHandler := preferences.NewHandler(service, val)

	r := router.New(notifHandler, prefsHandler)
	s := server.New(cfg.Server.HTTPPort, r)

	go func() {
		if err := s.ListenAndServe(); err != nil {
			zlog.Logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	<-ctx.Done()
	zlog.Logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	zlog.Logger.Info().Msg("shutting down server")
	if err := s.Shutdown(shutdownCtx); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to shutdown server")
	}

	if errors.Is(shutdownCtx.Err(), context.DeadlineExceeded) {
		zlog.Logger.Info().Msg("timeout exceeded, forcing shutdown")
	}

	if err := db.Master.Close(); err != nil {
		zlog.Logger.Printf("failed to close master DB: %v", err)
	}

	for i, slave := range db.Slaves {
		if err := slave.Close(); err != nil {
			zlog.Logger.Printf("failed to close slave DB %d: %v", i, err)
		}
	}

	if err := ch.Close(); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to close RabbitMQ channel")
	}

	if err := conn.Close(); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to close RabbitMQ connection")
	}
}
