// Package finalize реализует финализацию регистрации: превращение
// подтверждённого платежа или подписки в ровно один аккаунт реестра.
//
// Операция идемпотентна по payment reference: повтор с тем же reference
// возвращает уже созданный аккаунт, а не ошибку и не дубликат. Именно на
// это опирается восстановление после обрыва связи между подтверждением
// оплаты у провайдера и коммитом аккаунта — клиент просто повторяет finalize.
package finalize

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/membership-portal/internal/catalog"
	"github.com/magabrotheeeer/membership-portal/internal/lib/errs"
	"github.com/magabrotheeeer/membership-portal/internal/lib/password"
	"github.com/magabrotheeeer/membership-portal/internal/lib/sl"
	"github.com/magabrotheeeer/membership-portal/internal/models"
	"github.com/magabrotheeeer/membership-portal/internal/paymentprovider"
	"github.com/magabrotheeeer/membership-portal/internal/rabbitmq"
)

// AccountRepository определяет методы реестра аккаунтов, нужные финализации.
type AccountRepository interface {
	// GetAccountByPaymentReference возвращает аккаунт по ключу идемпотентности
	// или ErrAccountNotFound.
	GetAccountByPaymentReference(ctx context.Context, reference string) (*models.Account, error)
	// GetAccountByEmail возвращает аккаунт по email или ErrAccountNotFound.
	GetAccountByEmail(ctx context.Context, email string) (*models.Account, error)
	// CreateAccountIfAbsent атомарно вставляет аккаунт, если записи по его
	// payment_reference нет; при конфликте возвращает существующую запись.
	CreateAccountIfAbsent(ctx context.Context, account models.Account) (*models.Account, bool, error)
}

// Provider определяет операции перечитывания объектов у провайдера.
// Статусу из запроса клиента финализация не доверяет.
type Provider interface {
	GetPaymentIntent(ctx context.Context, id string) (*paymentprovider.PaymentIntent, error)
	GetSubscription(ctx context.Context, id string) (*paymentprovider.Subscription, error)
}

// Cache описывает методы для кэширования данных.
type Cache interface {
	Set(key string, value any, expiration time.Duration) error
}

// Notifier публикует события для воркера уведомлений.
type Notifier interface {
	Publish(routingKey string, message any) error
}

// Service реализует финализацию регистрации.
type Service struct {
	repo     AccountRepository
	provider Provider
	catalog  *catalog.Catalog
	cache    Cache
	notifier Notifier
	log      *slog.Logger
}

// New создает новый экземпляр Service.
func New(repo AccountRepository, provider Provider, cat *catalog.Catalog,
	cache Cache, notifier Notifier, log *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		provider: provider,
		catalog:  cat,
		cache:    cache,
		notifier: notifier,
		log:      log,
	}
}

// FinalizeOneTime создаёт аккаунт по подтверждённому разовому платежу.
func (s *Service) FinalizeOneTime(ctx context.Context, req models.FinalizeOneTimeRequest) (*models.Account, error) {
	const op = "finalize.FinalizeOneTime"

	if acc, done, err := s.replay(ctx, op, req.PaymentReference); done {
		return acc, err
	}

	pi, err := s.provider.GetPaymentIntent(ctx, req.PaymentReference)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !pi.Confirmed() {
		return nil, fmt.Errorf("%s: reference %s has status %s: %w",
			op, req.PaymentReference, pi.Status, errs.ErrPaymentNotConfirmed)
	}

	tier, err := s.catalog.Tier(pi.Metadata[paymentprovider.MetadataTierID])
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	expected, err := tier.Price(models.BillingModeOneTime)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if pi.AmountCents != expected {
		s.log.Error("amount mismatch on finalize",
			slog.String("reference", req.PaymentReference),
			slog.Int64("expected", expected),
			slog.Int64("reported", pi.AmountCents))
		return nil, fmt.Errorf("%s: %w", op, errs.ErrAmountMismatch)
	}

	account := models.Account{
		Email:              req.Email,
		Name:               req.Name,
		Phone:              req.Phone,
		Role:               models.RoleMember,
		TierID:             tier.ID,
		BillingMode:        models.BillingModeOneTime,
		PaymentReference:   req.PaymentReference,
		SubscriptionStatus: models.SubscriptionStatusNone,
		AmountPaidCents:    pi.AmountCents,
	}
	return s.commit(ctx, op, account, req.Password)
}

// FinalizeSubscription создаёт аккаунт по подтверждённой подписке.
// Ключом идемпотентности служит subscription reference.
func (s *Service) FinalizeSubscription(ctx context.Context, req models.FinalizeSubscriptionRequest) (*models.Account, error) {
	const op = "finalize.FinalizeSubscription"

	if acc, done, err := s.replay(ctx, op, req.SubscriptionReference); done {
		return acc, err
	}

	sub, err := s.provider.GetSubscription(ctx, req.SubscriptionReference)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !sub.Confirmed() {
		return nil, fmt.Errorf("%s: subscription %s has status %s: %w",
			op, req.SubscriptionReference, sub.Status, errs.ErrPaymentNotConfirmed)
	}
	if sub.CustomerID != req.CustomerReference {
		return nil, fmt.Errorf("%s: customer reference mismatch: %w", op, errs.ErrPaymentNotConfirmed)
	}

	billingMode := sub.Metadata[paymentprovider.MetadataBillingMode]
	tier, err := s.catalog.Tier(sub.Metadata[paymentprovider.MetadataTierID])
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	expected, err := tier.Price(billingMode)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if sub.AmountCents != expected {
		s.log.Error("amount mismatch on finalize",
			slog.String("reference", req.SubscriptionReference),
			slog.Int64("expected", expected),
			slog.Int64("reported", sub.AmountCents))
		return nil, fmt.Errorf("%s: %w", op, errs.ErrAmountMismatch)
	}

	subscriptionReference := sub.ID
	customerReference := sub.CustomerID
	account := models.Account{
		Email:                 req.Email,
		Name:                  req.Name,
		Phone:                 req.Phone,
		Role:                  models.RoleMember,
		TierID:                tier.ID,
		BillingMode:           billingMode,
		PaymentReference:      sub.ID,
		SubscriptionReference: &subscriptionReference,
		CustomerReference:     &customerReference,
		SubscriptionStatus:    subscriptionStatus(sub),
		AmountPaidCents:       sub.AmountCents,
	}
	if !sub.CurrentPeriodEnd.IsZero() {
		periodEnd := sub.CurrentPeriodEnd
		account.SubscriptionEndDate = &periodEnd
	}
	return s.commit(ctx, op, account, req.Password)
}

// replay реализует шаг идемпотентности: если аккаунт по reference уже есть,
// финализация завершена раньше и возвращает его без обращений к провайдеру.
func (s *Service) replay(ctx context.Context, op, reference string) (*models.Account, bool, error) {
	acc, err := s.repo.GetAccountByPaymentReference(ctx, reference)
	if err == nil {
		s.log.Info("finalize replayed, returning existing account",
			slog.String("reference", reference), slog.String("uid", acc.UID))
		return acc, true, nil
	}
	if !errors.Is(err, errs.ErrAccountNotFound) {
		return nil, true, fmt.Errorf("%s: %w", op, err)
	}
	return nil, false, nil
}

// commit хэширует пароль и атомарно вставляет аккаунт. Конкурентный дубль
// по payment reference сходится к записи победителя.
func (s *Service) commit(ctx context.Context, op string, account models.Account, rawPassword string) (*models.Account, error) {
	if _, err := s.repo.GetAccountByEmail(ctx, account.Email); err == nil {
		return nil, fmt.Errorf("%s: %w", op, errs.ErrEmailAlreadyRegistered)
	} else if !errors.Is(err, errs.ErrAccountNotFound) {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	hashed, err := password.GetHash(rawPassword)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	account.PasswordHash = hashed

	created, inserted, err := s.repo.CreateAccountIfAbsent(ctx, account)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !inserted {
		s.log.Info("concurrent finalize converged to existing account",
			slog.String("reference", account.PaymentReference), slog.String("uid", created.UID))
		return created, nil
	}

	s.log.Info("account provisioned",
		slog.String("uid", created.UID),
		slog.String("tier", created.TierID),
		slog.String("billing_mode", created.BillingMode))

	cacheKey := fmt.Sprintf("account:%s", created.UID)
	if err := s.cache.Set(cacheKey, created, time.Hour); err != nil {
		s.log.Warn("failed to cache account", slog.String("key", cacheKey), sl.Err(err))
	}
	if err := s.notifier.Publish(rabbitmq.RoutingKeyRegistered, models.Notification{
		Email:  created.Email,
		Name:   created.Name,
		TierID: created.TierID,
	}); err != nil {
		s.log.Warn("failed to publish registration notification", sl.Err(err))
	}
	return created, nil
}

func subscriptionStatus(sub *paymentprovider.Subscription) string {
	// trialing у провайдера — оплаченный доступ, в реестре это active.
	if sub.Status == paymentprovider.SubscriptionStatusTrialing {
		return models.SubscriptionStatusActive
	}
	return sub.Status
}
