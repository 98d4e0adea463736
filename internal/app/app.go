// Package app wires the sync daemon: the durable store, queue manager,
// connectivity monitor, replay engine, event bus and the local API.
package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"syncline/internal/api/http/handler"
	"syncline/internal/api/http/route"
	"syncline/internal/apperrors"
	"syncline/internal/bus"
	"syncline/internal/config"
	"syncline/internal/connectivity"
	"syncline/internal/queue"
	"syncline/internal/replay"
	"syncline/internal/store"
	"syncline/pkg/server"
)

type App struct {
	Cfg        *config.ClientConfig
	Log        *zap.Logger
	Store      *store.Store
	Queue      *queue.Manager
	Monitor    *connectivity.Monitor
	Engine     *replay.Engine
	Bus        *bus.Bus
	Link       *bus.Link
	HTTPServer server.HTTPServer
}

func New(cfg *config.ClientConfig, log *zap.Logger) (*App, error) {
	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		log.Error("Failed to open durable store", zap.Error(err))
		return nil, fmt.Errorf("failed to open durable store: %w", err)
	}

	queueMgr := queue.NewManager(log, st)
	log.Debug("Queue manager initialized")

	monitor := connectivity.NewMonitor(log, connectivity.Config{
		ProbeURL:         cfg.Probe.URL,
		ProbeInterval:    cfg.Probe.Interval,
		ProbeTimeout:     cfg.Probe.Timeout,
		FailureThreshold: cfg.Probe.FailureThreshold,
	})
	log.Debug("Connectivity monitor initialized")

	eventBus := bus.New(log)

	var link *bus.Link

	if cfg.BusLink.Enabled {
		link = bus.NewLink(log, bus.LinkConfig{
			URL:            cfg.BusLink.URL,
			AuthToken:      cfg.Remote.AuthToken,
			ReconnectDelay: cfg.BusLink.ReconnectDelay,
		}, eventBus)
		log.Debug("Event bus link initialized")
	}

	remote := replay.NewHTTPRemote(replay.RemoteConfig{
		BaseURL:   cfg.Remote.BaseURL,
		AuthToken: cfg.Remote.AuthToken,
		Timeout:   cfg.Remote.Timeout,
	})

	engine := replay.NewEngine(log, replay.Config{
		DrainInterval:  cfg.Replay.DrainInterval,
		InitialBackoff: cfg.Replay.InitialBackoff,
		MaxBackoff:     cfg.Replay.MaxBackoff,
		MaxTries:       cfg.Replay.MaxTries,
		RetryCeiling:   cfg.Replay.RetryCeiling,
	}, queueMgr, remote, monitor, eventBus)
	log.Debug("Replay engine initialized")

	queueHdl := handler.NewQueueHandler(log, queueMgr)
	syncHdl := handler.NewSyncHandler(log, engine, monitor)

	router := route.SetupRouter(log, cfg.Admin.Timeout.Request, queueHdl, syncHdl)

	httpServer := server.NewHTTPServer(
		server.WithAddr(cfg.Admin.Host, cfg.Admin.Port),
		server.WithTimeout(cfg.Admin.Timeout.Read, cfg.Admin.Timeout.Write, cfg.Admin.Timeout.Idle),
		server.WithHandler(router),
	)

	return &App{
		Cfg:        cfg,
		Log:        log,
		Store:      st,
		Queue:      queueMgr,
		Monitor:    monitor,
		Engine:     engine,
		Bus:        eventBus,
		Link:       link,
		HTTPServer: httpServer,
	}, nil
}

func MustNew(cfg *config.ClientConfig, log *zap.Logger) *App {
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

	go a.Monitor.Run(ctx)

	go a.Engine.Run(ctx)

	if a.Link != nil {
		go a.Link.Run(ctx)
	}

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

	if stErr := a.Store.Close(); stErr != nil {
		err = fmt.Errorf("%w, failed to close store: %w", err, stErr)
	}

	a.Log.Debug("Durable store closed")

	if !errors.Is(err, apperrors.ErrShutdown) {
		return err
	}

	return nil
}
