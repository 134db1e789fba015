// Package portal предоставляет маршруты для основного приложения.
package portal

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/magabrotheeeer/membership-portal/internal/http/handlers/account/cancel"
	"github.com/magabrotheeeer/membership-portal/internal/http/handlers/account/me"
	"github.com/magabrotheeeer/membership-portal/internal/http/handlers/auth/changepassword"
	"github.com/magabrotheeeer/membership-portal/internal/http/handlers/auth/login"
	"github.com/magabrotheeeer/membership-portal/internal/http/handlers/checkout/beginonetime"
	"github.com/magabrotheeeer/membership-portal/internal/http/handlers/checkout/beginsubscription"
	"github.com/magabrotheeeer/membership-portal/internal/http/handlers/checkout/finalizeonetime"
	"github.com/magabrotheeeer/membership-portal/internal/http/handlers/checkout/finalizesubscription"
	"github.com/magabrotheeeer/membership-portal/internal/http/handlers/health"
	"github.com/magabrotheeeer/membership-portal/internal/http/handlers/webhook"
	"github.com/magabrotheeeer/membership-portal/internal/http/middlewarectx"
	"github.com/magabrotheeeer/membership-portal/internal/paymentprovider"
	authservice "github.com/magabrotheeeer/membership-portal/internal/services/auth"
	checkoutservice "github.com/magabrotheeeer/membership-portal/internal/services/checkout"
	finalizeservice "github.com/magabrotheeeer/membership-portal/internal/services/finalize"
	lifecycleservice "github.com/magabrotheeeer/membership-portal/internal/services/lifecycle"
	"github.com/magabrotheeeer/membership-portal/internal/storage/repository"
)

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, db *repository.Storage,
	providerClient *paymentprovider.Client,
	checkoutService *checkoutservice.Service, finalizeService *finalizeservice.Service,
	lifecycleService *lifecycleservice.Service, authService *authservice.Service) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		middleware.URLFormat,
	)

	limiter := rate.NewLimiter(rate.Limit(10), 20)

	r.Route("/api/v1", func(r chi.Router) {
		// Открытые конечные точки: вся воронка регистрации проходит до
		// появления аккаунта, аутентифицировать на ней некого
		r.Post("/checkout/one-time", beginonetime.New(logger, checkoutService).ServeHTTP)
		r.Post("/checkout/subscription", beginsubscription.New(logger, checkoutService).ServeHTTP)
		r.Post("/checkout/one-time/finalize", finalizeonetime.New(logger, finalizeService).ServeHTTP)
		r.Post("/checkout/subscription/finalize", finalizesubscription.New(logger, finalizeService).ServeHTTP)
		r.Post("/auth/login", login.New(logger, authService).ServeHTTP)

		// Группа с JWT аутентификацией
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.JWTMiddleware(authService, logger))
			r.Use(middlewarectx.RateLimitMiddleware(limiter))
			r.Get("/account/me", me.New(logger, authService).ServeHTTP)
			r.Post("/account/cancel", cancel.New(logger, lifecycleService).ServeHTTP)
			r.Post("/auth/change-password", changepassword.New(logger, authService).ServeHTTP)
		})

		// Webhook endpoint (подпись провайдера вместо аутентификации)
		r.Post("/payments/webhook", webhook.New(logger, providerClient, lifecycleService).ServeHTTP)

		r.Get("/health", health.New(logger, db).ServeHTTP)
	})

	r.Handle("/metrics", promhttp.Handler())
	// Swagger docs endpoint
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
