// Package models содержит доменную модель аккаунта участника портала,
// включающую данные учётной записи, приобретённый тариф и привязку
// к подписке на стороне платёжного провайдера.
// Структуры используются в бизнес‑логике и при работе с хранилищем.
package models

import "time"

// Режимы оплаты тарифа.
const (
	BillingModeOneTime = "one_time"
	BillingModeMonthly = "monthly"
	BillingModeYearly  = "yearly"
)

// Статусы подписки аккаунта. Поле subscription_status — кеш статуса
// на стороне провайдера, источником истины остаётся провайдер.
const (
	SubscriptionStatusActive   = "active"
	SubscriptionStatusCanceled = "canceled"
	SubscriptionStatusPastDue  = "past_due"
	SubscriptionStatusUnpaid   = "unpaid"
	SubscriptionStatusNone     = "none"
)

// Роли аккаунта.
const (
	RoleMember = "member"
	RoleAdmin  = "admin"
)

// Account представляет участника портала. Запись создаётся финализатором
// ровно один раз на подтверждённый платёж и далее мутируется только
// реконсилиатором жизненного цикла и операцией отмены.
type Account struct {
	UID                   string     `json:"uid"`                              // Уникальный идентификатор аккаунта
	Email                 string     `json:"email"`                            // Электронная почта (уникальная)
	Name                  string     `json:"name"`                             // Имя участника
	Phone                 string     `json:"phone,omitempty"`                  // Телефон
	PasswordHash          string     `json:"-"`                                // Хэш пароля
	Role                  string     `json:"role"`                             // member или admin
	TierID                string     `json:"tier_id"`                          // Приобретённый тариф
	BillingMode           string     `json:"billing_mode"`                     // one_time, monthly или yearly
	PaymentReference      string     `json:"payment_reference"`                // Ключ идемпотентности финализации
	SubscriptionReference *string    `json:"subscription_reference,omitempty"` // ID подписки у провайдера
	CustomerReference     *string    `json:"customer_reference,omitempty"`     // ID покупателя у провайдера
	SubscriptionStatus    string     `json:"subscription_status"`              // Кеш статуса подписки
	SubscriptionEndDate   *time.Time `json:"subscription_end_date,omitempty"`  // Конец оплаченного периода
	AmountPaidCents       int64      `json:"amount_paid_cents"`                // Сумма первого платежа
	LastEventAt           *time.Time `json:"-"`                                // Метка времени последнего применённого события провайдера
	CreatedAt             time.Time  `json:"created_at"`
}
