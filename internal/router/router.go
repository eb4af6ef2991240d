package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"go-authorisation-service/internal/cache"
	"go-authorisation-service/internal/config"
	"go-authorisation-service/internal/handler"
	"go-authorisation-service/internal/middleware"
)

const (
	readCacheTTL  = 60 * time.Second
	tokenCacheTTL = 10 * time.Second
)

func New(
	cfg *config.Config,
	authMiddleware *middleware.AuthMiddleware,
	responseCache *cache.Cache,
	authHandler *handler.AuthHandler,
	userHandler *handler.UserHandler,
	sessionHandler *handler.SessionHandler,
	eventsHandler *handler.EventsHandler,
) http.Handler {
	r := chi.NewRouter()
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(cfg.RateLimitRPM, cfg.AuthRateLimitRPM, "/v0/login")

	r.Use(middleware.Recovery)
	r.Use(middleware.Logging)
	r.Use(middleware.CORS(cfg.CORSOrigins, cfg.AuthName))
	r.Use(middleware.SecurityHeaders)
	r.Use(rateLimitMiddleware.Handler)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// Credentials are resolved before the cache so a hit is only served to
	// callers that would be allowed to compute it.
	cachedRead := responseCache.Route(readCacheTTL, cache.RouteOptions{})
	cachedTokenCheck := responseCache.Route(tokenCacheTTL, cache.RouteOptions{AccessToken: middleware.AccessToken})
	scope := authMiddleware.RequirePermission

	r.Route("/v0", func(v0 chi.Router) {
		v0.With(scope("events")).Get("/events", eventsHandler.Stream)

		v0.Group(func(api chi.Router) {
			api.Use(middleware.Timeout(cfg.RequestTimeout))

			api.Post("/login", authHandler.Login)
			api.With(authMiddleware.RequireUser).Post("/logout", authHandler.Logout)
			api.With(authMiddleware.RequireUser, cachedTokenCheck).Get("/token", authHandler.CheckToken)

			api.Route("/users", func(users chi.Router) {
				users.With(scope("users.get"), cachedRead).Get("/", userHandler.List)
				users.With(scope("users.self")).Get("/self", userHandler.Self)
				users.With(scope("users.get"), cachedRead).Get("/{id:[0-9]+}", userHandler.Get)
				users.With(scope("users.get"), cachedRead).Get("/{username}", userHandler.GetByUsername)
				users.With(scope("users.create")).Post("/", userHandler.Create)
				users.With(scope("users.update")).Patch("/{id:[0-9]+}", userHandler.Update)
				users.With(scope("users.update")).Patch("/{id:[0-9]+}/password", userHandler.UpdatePassword)
				users.With(scope("users.delete")).Delete("/{id:[0-9]+}", userHandler.Delete)
			})

			api.Route("/sessions", func(sessions chi.Router) {
				sessions.With(scope("sessions.get"), cachedRead).Get("/", sessionHandler.List)
				sessions.With(scope("sessions.get"), cachedRead).Get("/{id:[0-9]+}", sessionHandler.Get)
				sessions.With(scope("sessions.create")).Post("/", sessionHandler.Create)
				sessions.With(scope("sessions.update")).Patch("/{id:[0-9]+}", sessionHandler.Update)
				sessions.With(scope("sessions.delete")).Delete("/{id:[0-9]+}", sessionHandler.Delete)
			})
		})
	})

	return r
}
