// AngelaMos | 2026
// routes.go

package main

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/carterperez-dev/erasure/internal/admin"
	"github.com/carterperez-dev/erasure/internal/auth"
	"github.com/carterperez-dev/erasure/internal/config"
	"github.com/carterperez-dev/erasure/internal/deletion"
	"github.com/carterperez-dev/erasure/internal/health"
	"github.com/carterperez-dev/erasure/internal/middleware"
	"github.com/carterperez-dev/erasure/internal/server"
	"github.com/carterperez-dev/erasure/internal/user"
)

type routeDeps struct {
	Config    *config.Config
	Logger    *slog.Logger
	Redis     redis.UniversalClient
	Gatherer  prometheus.Gatherer
	Health    *health.Handler
	JWT       *auth.JWTManager
	Auth      *auth.Service
	Users     *user.Service
	Deletions *deletion.Manager
	Admin     *admin.Handler
}

// newServer builds the HTTP server with every route mounted.
func newServer(d routeDeps) *server.Server {
	cfg := d.Config

	srv := server.New(server.Config{
		ServerConfig:  cfg.Server,
		HealthHandler: d.Health,
		Gatherer:      d.Gatherer,
		Logger:        d.Logger,
		Middleware: []func(http.Handler) http.Handler{
			middleware.RequestID,
			middleware.Logger(d.Logger),
			middleware.NewRateLimiter(d.Redis, middleware.RateLimitConfig{
				Limit:    middleware.PerMinute(cfg.RateLimit.Requests, cfg.RateLimit.Burst),
				FailOpen: true,
			}).Handler,
			middleware.SecurityHeaders(cfg.IsProduction()),
			middleware.CORS(cfg.CORS),
		},
	})

	router := srv.Router()
	router.Get("/.well-known/jwks.json", d.JWT.GetJWKSHandler())

	authHandler := auth.NewHandler(d.Auth)
	userHandler := user.NewHandler(d.Users)
	deletionHandler := deletion.NewHandler(d.Deletions)

	authenticator := middleware.Authenticator(d.JWT, d.Auth)
	adminOnly := middleware.RequireAdmin
	deletionLimiter := middleware.NewRateLimiter(d.Redis, middleware.RateLimitConfig{
		Limit:    middleware.PerHour(10, 5),
		KeyFunc:  middleware.KeyByUser,
		FailOpen: true,
	}).Handler

	router.Route("/v1", func(r chi.Router) {
		authHandler.RegisterRoutes(r, authenticator)

		r.Post("/users", authHandler.Register)

		deletionHandler.RegisterRoutes(r, authenticator, deletionLimiter)
		userHandler.RegisterRoutes(r, authenticator)
		userHandler.RegisterAdminRoutes(r, authenticator, adminOnly)
		d.Admin.RegisterRoutes(r, authenticator, adminOnly)
	})

	return srv
}
