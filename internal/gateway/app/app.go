// Package app wires the sync gateway: postgres, redis, the event hub, the
// outbox relay and the HTTP surface.
package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"syncline/internal/apperrors"
	"syncline/internal/config"
	"syncline/internal/gateway/handler"
	"syncline/internal/gateway/hub"
	"syncline/internal/gateway/outbox"
	"syncline/internal/gateway/repository"
	"syncline/internal/gateway/route"
	"syncline/internal/gateway/service"
	"syncline/pkg/kafka"
	"syncline/pkg/postgres"
	"syncline/pkg/redis"
	"syncline/pkg/server"
)

type Publisher interface {
	Run(ctx context.Context)
}

type App struct {
	Cfg        *config.GatewayConfig
	Log        *zap.Logger
	DB         postgres.Postgres
	RDB        redis.Redis
	Hub        *hub.Hub
	HTTPServer server.HTTPServer
	Publisher  Publisher

	producer kafka.Producer
}

func New(cfg *config.GatewayConfig, log *zap.Logger) (*App, error) {
	db, err := initDB(&cfg.Database)
	if err != nil {
		log.Error("Failed to initialize database", zap.Error(err))
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	var rdb redis.Redis

	if cfg.Redis.Enable {
		rdb, err = initRedis(&cfg.Redis)
		if err != nil {
			log.Error("Failed to initialize redis", zap.Error(err))
			return nil, fmt.Errorf("failed to initialize redis: %w", err)
		}
	}

	eventHub := initHub(log, rdb)

	mutationRepo := repository.NewMutationRepository(db.Pool())
	log.Debug("Mutation repository initialized")

	outboxRepo := repository.NewOutboxRepository(db.Pool())
	log.Debug("Outbox repository initialized")

	mutationSvc := service.NewMutationService(log, mutationRepo, outboxRepo, eventHub)
	log.Debug("Mutation service initialized")

	healthHdl := handler.NewHealthHandler(db.Pool())
	mutationHdl := handler.NewMutationHandler(log, mutationSvc)
	eventsHdl := handler.NewEventsHandler(log, eventHub)

	router := route.SetupRouter(log, cfg, healthHdl, mutationHdl, eventsHdl)

	httpServer := server.NewHTTPServer(
		server.WithAddr(cfg.HTTPServer.Host, cfg.HTTPServer.Port),
		server.WithTimeout(cfg.HTTPServer.Timeout.Read, cfg.HTTPServer.Timeout.Write, cfg.HTTPServer.Timeout.Idle),
		server.WithHandler(router),
	)

	producer, publisher, err := initOutbox(log, &cfg.Kafka, outboxRepo)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize outbox: %w", err)
	}

	return &App{
		Cfg:        cfg,
		Log:        log,
		DB:         db,
		RDB:        rdb,
		Hub:        eventHub,
		HTTPServer: httpServer,
		Publisher:  publisher,
		producer:   producer,
	}, nil
}

func MustNew(cfg *config.GatewayConfig, log *zap.Logger) *App {
	app, err := New(cfg, log)
	if err != nil {
		panic(err)
	}

	return app
}

func (a *App) Run(ctx context.Context) error {
	errs := make(chan error, 1)

	go func() {
		if err := a.HTTPServer.Run(); err != nil {
			errs <- err
		}
	}()

	go a.Hub.Run(ctx)

	go a.Publisher.Run(ctx)

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
		return nil
	}
}

func (a *App) Shutdown() error {
	err := apperrors.ErrShutdown

	if srvErr := a.HTTPServer.Shutdown(); srvErr != nil {
		err = fmt.Errorf("%w, failed to shutdown http server: %w", err, srvErr)
	}

	a.Log.Debug("Http server shutdown")

	if a.producer != nil {
		if pErr := a.producer.Close(); pErr != nil {
			err = fmt.Errorf("%w, failed to close kafka producer: %w", err, pErr)
		}
	}

	if a.RDB != nil {
		if rdbErr := a.RDB.Close(); rdbErr != nil {
			err = fmt.Errorf("%w, failed to close redis: %w", err, rdbErr)
		}

		a.Log.Debug("Redis closed")
	}

	a.DB.Close()
	a.Log.Debug("Database closed")

	if !errors.Is(err, apperrors.ErrShutdown) {
		return err
	}

	return nil
}

func initDB(cfg *config.Database) (postgres.Postgres, error) {
	postgresCfg := &postgres.Config{
		Host:     cfg.Host,
		Port:     cfg.Port,
		User:     cfg.User,
		Password: cfg.Password,
		Name:     cfg.Name,
		SSLMode:  cfg.SSLMode,
		MaxConns: cfg.MaxConns,
		MinConns: cfg.MinConns,
		Migration: postgres.Migration{
			Path:      cfg.Migration.Path,
			AutoApply: cfg.Migration.AutoApply,
		},
	}

	return postgres.New(postgresCfg)
}

func initRedis(cfg *config.Redis) (redis.Redis, error) {
	redisCfg := &redis.Config{
		Host:     cfg.Host,
		Port:     cfg.Port,
		Password: cfg.Password,
		DB:       cfg.DB,
	}

	return redis.New(redisCfg)
}

func initHub(log *zap.Logger, rdb redis.Redis) *hub.Hub {
	if rdb == nil {
		return hub.New(log, nil)
	}

	return hub.New(log, rdb.Client())
}

func initOutbox(log *zap.Logger, cfg *config.Kafka, outboxRepo *repository.OutboxRepository) (kafka.Producer, *outbox.Publisher, error) {
	producer, err := kafka.NewProducer(
		cfg.Brokers,
		kafka.WithBalancer(kafka.RoundRobin),
		kafka.WithRequiredAcks(kafka.RequireAll),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to init kafka producer: %w", err)
	}

	log.Debug("Kafka producer initialized")

	outboxCfg := outbox.Config{
		Name:         cfg.Producer.Name,
		Topic:        cfg.Topic,
		WorkerCount:  cfg.Producer.WorkerCount,
		PollInterval: cfg.Producer.PollInterval,
		BatchSize:    cfg.Producer.BatchSize,
	}

	publisher := outbox.NewPublisher(log, outboxCfg, producer, outboxRepo)
	log.Debug("Outbox publisher initialized")

	return producer, publisher, nil
}
