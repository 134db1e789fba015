// Package checkout содержит бизнес-логику открытия оплаты: разовый платёж
// или подписка у провайдера в обмен на client secret. Никакого локального
// состояния до finalize не создаётся, поэтому повтор любой из операций безопасен.
package checkout

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/membership-portal/internal/catalog"
	"github.com/magabrotheeeer/membership-portal/internal/lib/errs"
	"github.com/magabrotheeeer/membership-portal/internal/models"
	"github.com/magabrotheeeer/membership-portal/internal/paymentprovider"
)

// Provider определяет операции провайдера, нужные для открытия оплаты.
type Provider interface {
	// CreatePaymentIntent открывает разовый платёж и возвращает client secret.
	CreatePaymentIntent(ctx context.Context, params paymentprovider.CreateIntentParams) (*paymentprovider.PaymentIntent, error)
	// GetOrCreateCustomer возвращает покупателя по email, создавая при отсутствии.
	GetOrCreateCustomer(ctx context.Context, email, name string) (*paymentprovider.Customer, error)
	// CreateSubscription создаёт подписку в статусе incomplete.
	CreateSubscription(ctx context.Context, params paymentprovider.CreateSubscriptionParams) (*paymentprovider.Subscription, error)
}

// OneTimeIntent результат открытия разового платежа.
type OneTimeIntent struct {
	ClientSecret     string `json:"client_secret"`
	PaymentReference string `json:"payment_reference"`
}

// SubscriptionIntent результат открытия подписки.
type SubscriptionIntent struct {
	ClientSecret          string `json:"client_secret"`
	SubscriptionReference string `json:"subscription_reference"`
	CustomerReference     string `json:"customer_reference"`
}

// Service реализует intent initiator поверх каталога и провайдера.
type Service struct {
	catalog  *catalog.Catalog
	provider Provider
	log      *slog.Logger
}

// New создает новый экземпляр Service.
func New(cat *catalog.Catalog, provider Provider, log *slog.Logger) *Service {
	return &Service{
		catalog:  cat,
		provider: provider,
		log:      log,
	}
}

// BeginOneTime проверяет тариф по каталогу и открывает разовый платёж
// на цену каталога. Сумма клиентом не передаётся и передаваться не может.
func (s *Service) BeginOneTime(ctx context.Context, tierID string) (*OneTimeIntent, error) {
	tier, err := s.catalog.Tier(tierID)
	if err != nil {
		return nil, err
	}
	price, err := tier.Price(models.BillingModeOneTime)
	if err != nil {
		return nil, err
	}

	pi, err := s.provider.CreatePaymentIntent(ctx, paymentprovider.CreateIntentParams{
		AmountCents:    price,
		Currency:       "usd",
		TierID:         tier.ID,
		IdempotencyKey: uuid.NewString(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create payment intent: %w", err)
	}

	s.log.Info("opened one-time payment intent",
		slog.String("tier", tier.ID), slog.String("reference", pi.ID))
	return &OneTimeIntent{
		ClientSecret:     pi.ClientSecret,
		PaymentReference: pi.ID,
	}, nil
}

// BeginSubscription проверяет пару (тариф, режим оплаты), находит или
// создаёт покупателя по email и открывает подписку в статусе incomplete.
// Возвращённый client secret подтверждает оплату первого инвойса.
func (s *Service) BeginSubscription(ctx context.Context, req models.BeginSubscriptionRequest) (*SubscriptionIntent, error) {
	tier, err := s.catalog.Tier(req.TierID)
	if err != nil {
		return nil, err
	}
	if !tier.Supports(req.BillingMode) {
		return nil, fmt.Errorf("tier %s, mode %s: %w", tier.ID, req.BillingMode, errs.ErrUnsupportedBillingMode)
	}
	priceID, err := tier.PriceID(req.BillingMode)
	if err != nil {
		return nil, err
	}

	cust, err := s.provider.GetOrCreateCustomer(ctx, req.Email, req.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve customer: %w", err)
	}

	sub, err := s.provider.CreateSubscription(ctx, paymentprovider.CreateSubscriptionParams{
		CustomerID:     cust.ID,
		PriceID:        priceID,
		TierID:         tier.ID,
		BillingMode:    req.BillingMode,
		IdempotencyKey: uuid.NewString(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create subscription: %w", err)
	}

	s.log.Info("opened subscription",
		slog.String("tier", tier.ID),
		slog.String("billing_mode", req.BillingMode),
		slog.String("subscription", sub.ID))
	return &SubscriptionIntent{
		ClientSecret:          sub.ClientSecret,
		SubscriptionReference: sub.ID,
		CustomerReference:     cust.ID,
	}, nil
}
