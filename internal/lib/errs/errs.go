// Package errs содержит закрытый набор доменных ошибок сервиса.
// Ошибки создаются в точке возникновения и проверяются через errors.Is,
// обработчики не разбирают текст или форму неизвестных ошибок.
package errs

import "errors"

var (
	// ErrUnknownTier запрошенный тариф отсутствует в каталоге.
	ErrUnknownTier = errors.New("unknown tier")
	// ErrUnsupportedBillingMode тариф не продаётся в запрошенном режиме оплаты.
	ErrUnsupportedBillingMode = errors.New("unsupported billing mode")
	// ErrUpstreamUnavailable провайдер недоступен, локальное состояние не менялось,
	// повтор запроса безопасен.
	ErrUpstreamUnavailable = errors.New("payment provider unavailable")
	// ErrPaymentNotConfirmed платёж или подписка по ссылке не находятся
	// в терминально-успешном статусе у провайдера.
	ErrPaymentNotConfirmed = errors.New("payment not confirmed by provider")
	// ErrAmountMismatch сумма у провайдера не совпадает с ценой каталога.
	ErrAmountMismatch = errors.New("paid amount does not match catalog price")
	// ErrEmailAlreadyRegistered аккаунт с таким email уже существует.
	ErrEmailAlreadyRegistered = errors.New("email already registered")
	// ErrAmbiguousOutcome сетевой сбой во время мутирующего вызова, исход неизвестен.
	// Корректное восстановление — повторить finalize с тем же payment reference.
	ErrAmbiguousOutcome = errors.New("ambiguous outcome, retry finalize with the same reference")
	// ErrAccountNotFound аккаунт не найден в хранилище.
	ErrAccountNotFound = errors.New("account not found")
	// ErrNoSubscription у аккаунта нет подписки, которую можно было бы отменить.
	ErrNoSubscription = errors.New("account has no subscription")
	// ErrInvalidCredentials пароль не подошёл к аккаунту.
	ErrInvalidCredentials = errors.New("invalid credentials")
)
