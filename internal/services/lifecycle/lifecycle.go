// Package lifecycle реализует реконсилиацию статуса подписки с провайдером:
// применение событий жизненного цикла (продление, неуспешный платёж, отмена)
// и путь явной отмены подписки участником.
//
// Поле subscription_status в реестре — кеш, источником истины остаётся
// провайдер: события применяются только вперёд по метке времени провайдера,
// повтор и доставка вне порядка — no-op.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/membership-portal/internal/lib/errs"
	"github.com/magabrotheeeer/membership-portal/internal/lib/sl"
	"github.com/magabrotheeeer/membership-portal/internal/models"
	"github.com/magabrotheeeer/membership-portal/internal/rabbitmq"
)

// AccountRepository определяет методы реестра, нужные реконсилиатору.
type AccountRepository interface {
	GetAccountBySubscriptionReference(ctx context.Context, reference string) (*models.Account, error)
	GetAccountByUID(ctx context.Context, uid string) (*models.Account, error)
	// UpdateSubscriptionStatus применяет событие условно: только если оно
	// не старше уже применённого. Возвращает признак применения.
	UpdateSubscriptionStatus(ctx context.Context, reference, status string,
		periodEnd *time.Time, occurredAt time.Time) (bool, error)
	MarkCanceled(ctx context.Context, uid string) error
}

// Provider определяет операцию отмены подписки у провайдера.
type Provider interface {
	CancelSubscription(ctx context.Context, id string) error
}

// Cache описывает методы инвалидации кеша аккаунтов.
type Cache interface {
	Invalidate(key string) error
}

// Notifier публикует события для воркера уведомлений.
type Notifier interface {
	Publish(routingKey string, message any) error
}

// Service реализует реконсилиатор жизненного цикла.
type Service struct {
	repo     AccountRepository
	provider Provider
	cache    Cache
	notifier Notifier
	log      *slog.Logger
}

// New создает новый экземпляр Service.
func New(repo AccountRepository, provider Provider, cache Cache, notifier Notifier, log *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		provider: provider,
		cache:    cache,
		notifier: notifier,
		log:      log,
	}
}

// Apply применяет событие жизненного цикла к аккаунту с соответствующим
// subscription reference. Событие без аккаунта логируется и отбрасывается:
// оно могло прийти раньше, чем финализация закоммитила запись, провайдер
// повторит доставку.
func (s *Service) Apply(ctx context.Context, event models.LifecycleEvent) error {
	const op = "lifecycle.Apply"
	log := s.log.With(
		slog.String("op", op),
		slog.String("subscription", event.SubscriptionReference),
		slog.String("kind", event.Kind),
	)

	status, err := targetStatus(event.Kind)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	account, err := s.repo.GetAccountBySubscriptionReference(ctx, event.SubscriptionReference)
	if errors.Is(err, errs.ErrAccountNotFound) {
		log.Info("lifecycle event for unknown subscription, dropped")
		return nil
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	applied, err := s.repo.UpdateSubscriptionStatus(ctx,
		event.SubscriptionReference, status, event.PeriodEnd, event.OccurredAt)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !applied {
		log.Info("stale or replayed lifecycle event, skipped")
		return nil
	}
	log.Info("subscription status updated", slog.String("status", status))

	cacheKey := fmt.Sprintf("account:%s", account.UID)
	if err := s.cache.Invalidate(cacheKey); err != nil {
		log.Warn("failed to invalidate account cache", sl.Err(err))
	}

	paymentTrouble := event.Kind == models.EventPaymentFailed || event.Kind == models.EventUnpaid
	if paymentTrouble && account.SubscriptionStatus != status {
		if err := s.notifier.Publish(rabbitmq.RoutingKeyPaymentFailed, models.Notification{
			Email:  account.Email,
			Name:   account.Name,
			TierID: account.TierID,
		}); err != nil {
			log.Warn("failed to publish payment-failed notification", sl.Err(err))
		}
	}
	return nil
}

// Cancel запрашивает отмену подписки у провайдера и только после его
// подтверждения помечает аккаунт отменённым. Сбой провайдера оставляет
// статус без изменений — ошибка возвращается вызывающему для повтора.
// Повтор после уже состоявшейся отмены у провайдера — no-op.
func (s *Service) Cancel(ctx context.Context, accountUID string) error {
	const op = "lifecycle.Cancel"

	account, err := s.repo.GetAccountByUID(ctx, accountUID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if account.SubscriptionReference == nil {
		return fmt.Errorf("%s: %w", op, errs.ErrNoSubscription)
	}
	if account.SubscriptionStatus == models.SubscriptionStatusCanceled {
		return nil
	}

	if err := s.provider.CancelSubscription(ctx, *account.SubscriptionReference); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := s.repo.MarkCanceled(ctx, accountUID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("subscription canceled",
		slog.String("uid", accountUID),
		slog.String("subscription", *account.SubscriptionReference))

	cacheKey := fmt.Sprintf("account:%s", accountUID)
	if err := s.cache.Invalidate(cacheKey); err != nil {
		s.log.Warn("failed to invalidate account cache", sl.Err(err))
	}
	return nil
}

func targetStatus(kind string) (string, error) {
	switch kind {
	case models.EventRenewalSucceeded:
		return models.SubscriptionStatusActive, nil
	case models.EventPaymentFailed:
		return models.SubscriptionStatusPastDue, nil
	case models.EventUnpaid:
		return models.SubscriptionStatusUnpaid, nil
	case models.EventCanceled:
		return models.SubscriptionStatusCanceled, nil
	}
	return "", fmt.Errorf("unknown lifecycle event kind %q", kind)
}
