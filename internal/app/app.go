package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-logr/logr"

	"go-authorisation-service/internal/auth"
	"go-authorisation-service/internal/cache"
	"go-authorisation-service/internal/config"
	"go-authorisation-service/internal/database"
	"go-authorisation-service/internal/event"
	"go-authorisation-service/internal/handler"
	"go-authorisation-service/internal/middleware"
	"go-authorisation-service/internal/repository"
	"go-authorisation-service/internal/router"
	"go-authorisation-service/internal/service"
	"go-authorisation-service/internal/token"
	"go-authorisation-service/internal/websocket"
)

type App struct {
	server       *http.Server
	cleanupFuncs []func()
}

func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx := context.Background()
	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	users, sessions, closeStores, err := openStores(ctx, cfg)
	if err != nil {
		return nil, err
	}
	cleanups = append(cleanups, closeStores)

	responseCache, closeCache := openCache(ctx, cfg, logger)
	cleanups = append(cleanups, closeCache)

	codec := token.NewCodec(cfg.JWTSecret, cfg.JWTAlgorithm)
	if _, err := codec.Sign(token.NewPayload(0, time.Now())); err != nil {
		cleanup()
		return nil, fmt.Errorf("invalid token configuration: %w", err)
	}

	bus := event.NewBus()
	registry := websocket.NewRegistry(logger.With("component", "websocket"), cfg.CORSOrigins...)
	registryCtx, stopRegistry := context.WithCancel(ctx)
	go registry.Run(registryCtx, bus)
	cleanups = append(cleanups, stopRegistry)

	resolver := auth.NewResolver(auth.Config{Name: cfg.AuthName, Scheme: cfg.AuthScheme}, codec, sessions, users, logger.With("component", "auth"))
	authService := service.NewAuthService(users, sessions, codec, bus, logger.With("component", "login"))

	appRouter := router.New(
		cfg,
		middleware.NewAuthMiddleware(resolver),
		responseCache,
		handler.NewAuthHandler(authService, responseCache, cfg.AuthName, cfg.AuthScheme),
		handler.NewUserHandler(service.NewUserService(users, bus), responseCache),
		handler.NewSessionHandler(service.NewSessionService(sessions, bus), responseCache),
		handler.NewEventsHandler(registry),
	)

	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           appRouter,
		ReadHeaderTimeout: cfg.ServerReadHeaderTimeout,
		WriteTimeout:      cfg.ServerWriteTimeout,
		IdleTimeout:       cfg.ServerIdleTimeout,
	}

	return &App{server: server, cleanupFuncs: []func(){cleanup}}, nil
}

func openStores(ctx context.Context, cfg *config.Config) (repository.UserStore, repository.SessionStore, func(), error) {
	if cfg.StoreBackend == config.StoreBackendMemory {
		slog.Warn("using in-memory stores; data is lost on restart")
		users := repository.NewMemoryUserRepository(cfg.BcryptCost)
		return users, repository.NewMemorySessionRepository(users, cfg.SessionDuration), func() {}, nil
	}

	slog.Info("applying database migrations")
	if err := database.EnsureSchema(cfg.DatabaseURL); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to ensure database schema: %w", err)
	}

	slog.Info("connecting to PostgreSQL")
	db, err := database.New(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	users := repository.NewUserRepository(db.Pool, cfg.BcryptCost)
	sessions := repository.NewSessionRepository(db.Pool, cfg.SessionDuration)
	slog.Info("database ready")

	return users, sessions, db.Close, nil
}

// openCache connects to Redis when configured. Without it the cache runs
// disconnected and every read is a miss.
func openCache(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*cache.Cache, func()) {
	cacheLogger := logr.FromSlogHandler(logger.Handler())
	aliases := make([]cache.Alias, 0, len(cfg.CacheAlias))
	for _, alias := range cfg.CacheAlias {
		aliases = append(aliases, cache.Alias{From: alias.From, To: alias.To})
	}

	if cfg.RedisAddr == "" {
		slog.Warn("REDIS_ADDR not set; response cache disabled")
		return cache.New(nil, aliases, cacheLogger), func() {}
	}

	slog.Info("connecting to cache", "addr", cfg.RedisAddr, "username", cfg.RedisUsername)
	client, err := cache.DialRedis(ctx, cache.RedisOptions{
		Addr:     cfg.RedisAddr,
		Username: cfg.RedisUsername,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		slog.Error("failed to connect to cache", "error", err)
		return cache.New(nil, aliases, cacheLogger), func() {}
	}

	slog.Info("connected to cache", "addr", cfg.RedisAddr)
	return cache.New(cache.NewRedisStore(client), aliases, cacheLogger), func() { _ = client.Close() }
}

func (a *App) Run() error {
	serveErr := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
	case err := <-serveErr:
		a.cleanup()
		return fmt.Errorf("server failed: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.server.Shutdown(ctx); err != nil {
		a.cleanup()
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	a.cleanup()
	slog.Info("server stopped")
	return nil
}

func (a *App) cleanup() {
	for _, cleanup := range a.cleanupFuncs {
		cleanup()
	}
}
