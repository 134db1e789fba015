package models

// BeginOneTimeRequest используется для приёма данных из JSON-запроса
// на открытие разового платежа.
type BeginOneTimeRequest struct {
	TierID string `json:"tier_id" validate:"required,alphanum"` // Тариф каталога
}

// BeginSubscriptionRequest используется для приёма данных из JSON-запроса
// на открытие подписки.
type BeginSubscriptionRequest struct {
	TierID      string `json:"tier_id" validate:"required,alphanum"`          // Тариф каталога
	BillingMode string `json:"billing_mode" validate:"required,oneof=monthly yearly"` // Периодичность списаний
	Email       string `json:"email" validate:"required,email"`
	Name        string `json:"name" validate:"required"`
}

// RegistrantProfile анкета регистрирующегося участника.
// Существует только на время финализации, отдельно не сохраняется:
// до успешного finalize никакого аккаунта не возникает.
type RegistrantProfile struct {
	Email    string `json:"email" validate:"required,email"`
	Name     string `json:"name" validate:"required"`
	Password string `json:"password" validate:"required,min=8"`
	Phone    string `json:"phone,omitempty"`
}

// FinalizeOneTimeRequest запрос финализации разового платежа.
type FinalizeOneTimeRequest struct {
	PaymentReference string `json:"payment_reference" validate:"required"`
	RegistrantProfile
}

// FinalizeSubscriptionRequest запрос финализации подписки.
type FinalizeSubscriptionRequest struct {
	SubscriptionReference string `json:"subscription_reference" validate:"required"`
	CustomerReference     string `json:"customer_reference" validate:"required"`
	RegistrantProfile
}

// LoginRequest запрос на вход по паре email/пароль.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// ChangePasswordRequest запрос на смену пароля аккаунта из JWT токена.
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=8"`
}
