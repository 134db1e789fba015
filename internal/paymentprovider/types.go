// Package paymentprovider реализует клиент платёжного провайдера (Stripe)
// и нейтральные типы платежа, покупателя и подписки. Сервисы объявляют
// собственные интерфейсы поверх этих типов, поэтому в тестах клиент
// подменяется моком.
package paymentprovider

import "time"

// Ключи метаданных, которыми intent initiator помечает платежи и подписки.
// Финализация восстанавливает по ним тариф и режим оплаты.
const (
	MetadataTierID      = "tier_id"
	MetadataBillingMode = "billing_mode"
)

// Статусы объектов провайдера, значимые для финализации.
const (
	IntentStatusSucceeded      = "succeeded"
	SubscriptionStatusActive   = "active"
	SubscriptionStatusTrialing = "trialing"
)

// PaymentIntent нейтральное представление разового платежа.
type PaymentIntent struct {
	ID           string
	ClientSecret string
	Status       string
	AmountCents  int64
	Metadata     map[string]string
}

// Confirmed сообщает, находится ли платёж в терминально-успешном статусе.
func (p *PaymentIntent) Confirmed() bool {
	return p.Status == IntentStatusSucceeded
}

// Customer нейтральное представление покупателя у провайдера.
type Customer struct {
	ID    string
	Email string
}

// Subscription нейтральное представление подписки у провайдера.
type Subscription struct {
	ID               string
	CustomerID       string
	Status           string
	ClientSecret     string // Секрет подтверждения первого инвойса
	AmountCents      int64
	CurrentPeriodEnd time.Time
	Metadata         map[string]string
}

// Confirmed сообщает, находится ли подписка в терминально-успешном статусе.
func (s *Subscription) Confirmed() bool {
	return s.Status == SubscriptionStatusActive || s.Status == SubscriptionStatusTrialing
}

// CreateIntentParams параметры открытия разового платежа.
type CreateIntentParams struct {
	AmountCents    int64
	Currency       string
	TierID         string
	IdempotencyKey string
}

// CreateSubscriptionParams параметры открытия подписки.
type CreateSubscriptionParams struct {
	CustomerID     string
	PriceID        string
	TierID         string
	BillingMode    string
	IdempotencyKey string
}
