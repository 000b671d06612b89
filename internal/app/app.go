package app

import (
	"context"
	"database/sql"
	"net/http"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"chargebridge/internal/config"
	"chargebridge/internal/cpo"
	"chargebridge/internal/emp"
	"chargebridge/internal/feed"
	"chargebridge/internal/oioi"
	"chargebridge/internal/repository"
	"chargebridge/internal/server"
	"chargebridge/internal/server/handlers"
	"chargebridge/internal/sessionstore"
	"chargebridge/libs/db"
	libredis "chargebridge/libs/redis"
)

// App wires all dependencies of the bridge.
type App struct {
	httpServer *server.Server
	subscriber *feed.Subscriber
	adapter    *cpo.Adapter
	db         *sql.DB
	redis      *goredis.Client
	logger     *zap.Logger
}

// New builds the application graph. Postgres and redis are optional: a
// missing DSN skips the CDR forwarding ledger, a missing redis address
// skips the remote session cache.
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	app := &App{logger: logger}

	var cdrStore cpo.CDRStore
	if cfg.Database.DSN != "" {
		sqlDB, err := db.NewPostgresDB(cfg.Database.DSN)
		if err != nil {
			return nil, err
		}
		app.db = sqlDB
		cdrStore = repository.NewCDRRepository(sqlDB)
	} else {
		logger.Info("no database configured, cdr forwarding ledger disabled")
	}

	var sessions *sessionstore.Store
	if cfg.Redis.Addr != "" {
		redisClient, err := libredis.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			app.Close()
			return nil, err
		}
		app.redis = redisClient
		sessions = sessionstore.NewStore(redisClient, cfg.SessionTTL())
	} else {
		logger.Info("no redis configured, remote session cache disabled")
	}

	partner := oioi.NewClient(
		cfg.Partner.URL,
		cfg.Partner.APIKey,
		&http.Client{Timeout: cfg.Partner.Timeout},
		logger,
	)

	app.adapter = cpo.NewAdapter(cfg.AdapterConfig(), partner, cdrStore, logger)

	app.subscriber = feed.NewSubscriber(cfg.Feed.URL, app.adapter, logger)

	dispatcher := emp.NewDispatcher(app.subscriber, sessions, logger)
	bridgeHandlers := handlers.NewBridgeHandlers(dispatcher, cfg.HTTP.APIKey, logger)

	router := server.NewRouter(server.Routes{
		SessionStart: bridgeHandlers.SessionStart,
		SessionStop:  bridgeHandlers.SessionStop,
		Health:       bridgeHandlers.Health,
	})
	app.httpServer = server.NewServer(cfg.HTTPAddress(), router, logger)

	return app, nil
}

// Adapter exposes the CPO adapter for embedding hosts.
func (a *App) Adapter() *cpo.Adapter {
	return a.adapter
}

// Run starts the feed subscriber and the webhook server, blocking until
// ctx is canceled or the server fails.
func (a *App) Run(ctx context.Context) error {
	feedCtx, cancelFeed := context.WithCancel(ctx)
	defer cancelFeed()

	if a.subscriber != nil {
		go func() {
			if err := a.subscriber.Run(feedCtx); err != nil && feedCtx.Err() == nil {
				a.logger.Error("feed subscriber stopped", zap.Error(err))
			}
		}()
	}

	err := a.httpServer.Run(ctx)

	a.adapter.Stop()
	return err
}

// Close releases resources.
func (a *App) Close() {
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("failed to close db", zap.Error(err))
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("failed to close redis", zap.Error(err))
		}
	}
}
