// Package portal собирает HTTP-приложение портала: хранилище, миграции,
// кеш, очередь уведомлений, платежного провайдера, сервисы и маршруты.
package portal

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/membership-portal/internal/cache"
	"github.com/magabrotheeeer/membership-portal/internal/catalog"
	"github.com/magabrotheeeer/membership-portal/internal/config"
	"github.com/magabrotheeeer/membership-portal/internal/lib/jwt"
	"github.com/magabrotheeeer/membership-portal/internal/migrations"
	"github.com/magabrotheeeer/membership-portal/internal/paymentprovider"
	"github.com/magabrotheeeer/membership-portal/internal/rabbitmq"
	authservice "github.com/magabrotheeeer/membership-portal/internal/services/auth"
	checkoutservice "github.com/magabrotheeeer/membership-portal/internal/services/checkout"
	finalizeservice "github.com/magabrotheeeer/membership-portal/internal/services/finalize"
	lifecycleservice "github.com/magabrotheeeer/membership-portal/internal/services/lifecycle"
	"github.com/magabrotheeeer/membership-portal/internal/storage/repository"
)

// App инкапсулирует HTTP-сервер портала и его зависимости.
type App struct {
	server     *http.Server
	logger     *slog.Logger
	db         *repository.Storage
	rabbitConn *amqp.Connection
	rabbitCh   *amqp.Channel
}

// New собирает приложение из конфигурации: подключает postgres и применяет
// миграции, поднимает redis и rabbitmq, создает сервисы и регистрирует маршруты.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, err
	}
	if err = migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
		return nil, err
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		return nil, err
	}

	rabbitConn, err := rabbitmq.Connect(cfg.RabbitMQConnection, 5, 3*time.Second)
	if err != nil {
		return nil, err
	}
	rabbitCh, err := rabbitmq.SetupChannel(rabbitConn, rabbitmq.GetNotificationQueues())
	if err != nil {
		return nil, err
	}
	publisher := rabbitmq.NewPublisher(rabbitCh)

	providerClient := paymentprovider.NewClient(cfg.Stripe.SecretKey, cfg.Stripe.WebhookSecret)
	tierCatalog := catalog.New(cfg.Tiers)
	jwtMaker := jwt.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL)

	checkoutService := checkoutservice.New(tierCatalog, providerClient, logger)
	finalizeService := finalizeservice.New(db, providerClient, tierCatalog, cacheRedis, publisher, logger)
	lifecycleService := lifecycleservice.New(db, providerClient, cacheRedis, publisher, logger)
	authService := authservice.New(db, cacheRedis, jwtMaker, logger)

	router := chi.NewRouter()
	RegisterRoutes(router, logger, db, providerClient,
		checkoutService, finalizeService, lifecycleService, authService)

	srv := &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &App{
		server:     srv,
		logger:     logger,
		db:         db,
		rabbitConn: rabbitConn,
		rabbitCh:   rabbitCh,
	}, nil
}

// Run запускает HTTP-сервер и блокируется до ошибки или отмены контекста.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err := a.server.Shutdown(timeoutCtx)
		_ = a.rabbitCh.Close()
		_ = a.rabbitConn.Close()
		_ = a.db.DB.Close()
		return err
	}
}
