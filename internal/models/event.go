package models

import "time"

// Виды событий жизненного цикла подписки, приходящих от провайдера.
const (
	EventRenewalSucceeded = "renewal_succeeded"
	EventPaymentFailed    = "payment_failed"
	EventUnpaid           = "unpaid"
	EventCanceled         = "canceled"
)

// LifecycleEvent нормализованное событие жизненного цикла подписки.
// OccurredAt — метка времени события на стороне провайдера; порядок
// применения определяется ею, а не порядком доставки.
type LifecycleEvent struct {
	Kind                  string     `json:"kind"`
	SubscriptionReference string     `json:"subscription_reference"`
	PeriodEnd             *time.Time `json:"period_end,omitempty"`
	OccurredAt            time.Time  `json:"occurred_at"`
}

// Notification сообщение для воркера отправки писем.
type Notification struct {
	Email  string `json:"email"`
	Name   string `json:"name"`
	TierID string `json:"tier_id"`
}
