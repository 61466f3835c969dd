package app

import (
	"context"
	"database/sql"
	"net/http"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	libdb "ratesapi/backend/libs/db"
	libredis "ratesapi/backend/libs/redis"
	"ratesapi/backend/services/rates-service/internal/audit"
	"ratesapi/backend/services/rates-service/internal/cache"
	"ratesapi/backend/services/rates-service/internal/clients"
	"ratesapi/backend/services/rates-service/internal/config"
	"ratesapi/backend/services/rates-service/internal/feed"
	httpserver "ratesapi/backend/services/rates-service/internal/http"
	"ratesapi/backend/services/rates-service/internal/http/handlers"
	"ratesapi/backend/services/rates-service/internal/http/middleware"
	"ratesapi/backend/services/rates-service/internal/identity"
	"ratesapi/backend/services/rates-service/internal/notify"
	"ratesapi/backend/services/rates-service/internal/repository"
	"ratesapi/backend/services/rates-service/internal/service"
)

// App wires rates-service dependencies.
type App struct {
	server      *httpserver.Server
	db          *sql.DB
	redisClient *redis.Client
	hub         *feed.Hub
	logger      *zap.Logger
}

// New constructs the application graph.
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	sqlDB, err := libdb.NewPostgresDB(cfg.Database.DSN, libdb.PoolOptions{
		MaxOpenConns: cfg.Database.MaxOpenConns,
	})
	if err != nil {
		return nil, err
	}

	rateRepo := repository.NewRateRepository(sqlDB)
	billFieldRepo := repository.NewBillFieldRepository(sqlDB)
	userRepo := repository.NewUserRepository(sqlDB)

	var (
		directory   identity.Directory = userRepo
		redisClient *redis.Client
	)
	if cfg.Redis.Addr != "" {
		redisClient, err = libredis.NewRedisClient(libredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			logger.Warn("redis unavailable, user names will not be cached", zap.Error(err))
		} else {
			directory = cache.NewNameCache(redisClient, userRepo, cfg.Redis.NameTTL, logger)
		}
	}

	origins := middleware.NewOriginPolicy(cfg.HTTP.AllowedOrigins)
	hub := feed.NewHub(origins.CheckOrigin, 0, logger)
	notifier := notify.NewDiscordNotifier(
		cfg.Discord.WebhookURL,
		clients.NewDefaultHTTPClient(cfg.DiscordTimeout()),
		logger,
	).WithEntryTimeout(cfg.DiscordTimeout())
	if !notifier.Enabled() {
		logger.Info("discord webhook not configured, notifications disabled")
	}

	resolver := identity.NewResolver(cfg.JWT.Secret, directory, logger)
	updateSvc := service.NewUpdateService(rateRepo, logger,
		postCommitHooks(audit.NewFileSink(cfg.Audit.Dir), hub, notifier)...,
	)

	checks := map[string]handlers.HealthCheck{"postgres": sqlDB.PingContext}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}

	router := newRouter(routes{
		rates:      rateRepo,
		billFields: billFieldRepo,
		update:     handlers.NewUpdateHandler(resolver, updateSvc, cfg.ExposeErrors(), logger),
		feed:       hub,
		checks:     checks,
	}, logger)

	server := httpserver.NewServer(
		cfg.HTTPAddress(),
		router,
		logger,
		middleware.RecoveryMiddleware(logger),
		middleware.LoggingMiddleware(logger),
		middleware.CORSMiddleware(origins),
	)
	if cfg.IsProduction() {
		server.WithTLS(cfg.HTTP.TLSCertFile, cfg.HTTP.TLSKeyFile)
	}

	logger.Info("rates service configured",
		zap.String("env", cfg.Env),
		zap.Strings("allowed_origins", cfg.HTTP.AllowedOrigins),
		zap.Bool("expose_errors", cfg.ExposeErrors()),
		zap.String("audit_dir", cfg.Audit.Dir),
	)

	return &App{
		server:      server,
		db:          sqlDB,
		redisClient: redisClient,
		hub:         hub,
		logger:      logger,
	}, nil
}

// postCommitHooks fixes hook order: the audit record is written first and the
// live feed goes out before the slower per-field webhook posts.
func postCommitHooks(sink *audit.FileSink, hub *feed.Hub, notifier *notify.DiscordNotifier) []service.Hook {
	return []service.Hook{sink, hub, notifier}
}

type routes struct {
	rates      handlers.RateReader
	billFields handlers.BillFieldReader
	update     http.Handler
	feed       http.Handler
	checks     map[string]handlers.HealthCheck
}

func newRouter(r routes, logger *zap.Logger) http.Handler {
	return httpserver.NewRouter(httpserver.RouterDeps{
		RatesHandlers: handlers.NewRatesHandlers(r.rates, r.billFields, logger),
		UpdateHandler: r.update,
		FeedHandler:   r.feed,
		HealthHandler: handlers.NewHealthHandler(r.checks),
	})
}

// Run starts serving HTTP traffic until context cancellation.
func (a *App) Run(ctx context.Context) error {
	return a.server.Run(ctx)
}

// Close releases acquired resources.
func (a *App) Close() {
	if a.hub != nil {
		a.hub.Close()
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("failed to close db", zap.Error(err))
		}
	}
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Warn("failed to close redis", zap.Error(err))
		}
	}
}
