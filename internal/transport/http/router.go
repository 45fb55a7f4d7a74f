package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-notification-service/internal/config"
	"github.com/go-notification-service/internal/domain"
	"github.com/go-notification-service/internal/transport/http/handler"
	appmiddleware "github.com/go-notification-service/internal/transport/http/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// NewRouter builds and returns the application router.
func NewRouter(ctx context.Context, cfg *config.Config, deps *Deps) http.Handler {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(appmiddleware.ResolveClientIP(deps.TrustedProxies))
	r.Use(appmiddleware.RequestLogger(log))
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	var authMw func(http.Handler) http.Handler
	if deps.JWTProvider != nil {
		authMw = appmiddleware.Auth(deps.JWTProvider)
	} else {
		authMw = func(http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, `{"error":"authentication unavailable"}`, http.StatusUnauthorized)
			})
		}
	}

	// 20 requests/second, burst of 40 per client on the authenticated surface.
	apiRL := appmiddleware.NewRateLimiter(ctx, rate.Limit(20), 40)
	// Fan-out is expensive: 1 announcement per 10 seconds per client.
	broadcastRL := appmiddleware.NewRateLimiter(ctx, rate.Limit(0.1), 1)

	healthH := handler.NewHealthHandler()
	notifH := handler.NewNotificationHandler(deps.Notifications, deps.Guard)
	broadcastH := handler.NewBroadcastHandler(deps.Notifications)

	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/v1/notifications", func(r chi.Router) {
		// ── Public routes (no auth) ──────────────────────────────────────────
		r.Get("/health", healthH.Health)

		// ── Authenticated routes ─────────────────────────────────────────────
		r.Group(func(r chi.Router) {
			r.Use(apiRL.Limit)
			r.Use(authMw)

			r.Get("/user/{userId}", notifH.ListByUser)
			r.Get("/user/{userId}/unread", notifH.ListUnread)
			r.Get("/user/{userId}/unread/count", notifH.UnreadCount)
			r.Put("/user/{userId}/read-all", notifH.MarkAllAsRead)
			r.Put("/{id}/read", notifH.MarkAsRead)

			// Admin-only routes
			r.Group(func(r chi.Router) {
				r.Use(appmiddleware.RequireRole(domain.RoleAdmin))
				r.With(broadcastRL.Limit).Post("/broadcast", broadcastH.Create)
			})
		})
	})

	return otelhttp.NewHandler(r, cfg.ServiceName,
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
}
