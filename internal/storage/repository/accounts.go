package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/magabrotheeeer/membership-portal/internal/lib/errs"
	"github.com/magabrotheeeer/membership-portal/internal/models"
)

// CreateAccountIfAbsent атомарно вставляет аккаунт, если по его
// payment_reference ещё не существует записи. Возвращает итоговую запись
// и признак того, что вставка произошла в этом вызове: при конфликте
// по payment_reference возвращается уже существующий аккаунт — проигравшая
// сторона конкурентной финализации видит результат победившей.
//
// Конфликт по email поднимается как ErrEmailAlreadyRegistered.
func (s *Storage) CreateAccountIfAbsent(ctx context.Context, account models.Account) (*models.Account, bool, error) {
	const op = "storage.CreateAccountIfAbsent"
	select {
	case <-ctx.Done():
		return nil, false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO accounts (email, name, phone, password_hash, role, tier_id,
			      billing_mode, payment_reference, subscription_reference, customer_reference,
			      subscription_status, subscription_end_date, amount_paid_cents, last_event_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
			  ON CONFLICT (payment_reference) DO NOTHING
			  RETURNING uid, created_at`
	err := s.DB.QueryRowContext(ctx, query,
		account.Email, account.Name, account.Phone, account.PasswordHash, account.Role,
		account.TierID, account.BillingMode, account.PaymentReference,
		account.SubscriptionReference, account.CustomerReference,
		account.SubscriptionStatus, account.SubscriptionEndDate,
		account.AmountPaidCents, account.LastEventAt,
	).Scan(&account.UID, &account.CreatedAt)
	if err == nil {
		return &account, true, nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		// Конфликт по payment_reference: запись уже создана другим вызовом.
		existing, getErr := s.GetAccountByPaymentReference(ctx, account.PaymentReference)
		if getErr != nil {
			return nil, false, fmt.Errorf("%s: %w", op, getErr)
		}
		return existing, false, nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		return nil, false, fmt.Errorf("%s: %w", op, errs.ErrEmailAlreadyRegistered)
	}
	return nil, false, fmt.Errorf("%s: %w", op, err)
}

// GetAccountByPaymentReference возвращает аккаунт по ключу идемпотентности финализации.
func (s *Storage) GetAccountByPaymentReference(ctx context.Context, reference string) (*models.Account, error) {
	const op = "storage.GetAccountByPaymentReference"
	return s.getAccount(ctx, op, `WHERE payment_reference = $1`, reference)
}

// GetAccountByEmail возвращает аккаунт по email.
func (s *Storage) GetAccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	const op = "storage.GetAccountByEmail"
	return s.getAccount(ctx, op, `WHERE email = $1`, email)
}

// GetAccountByUID возвращает аккаунт по его UID.
func (s *Storage) GetAccountByUID(ctx context.Context, uid string) (*models.Account, error) {
	const op = "storage.GetAccountByUID"
	return s.getAccount(ctx, op, `WHERE uid = $1`, uid)
}

// GetAccountBySubscriptionReference возвращает аккаунт по ID подписки у провайдера.
func (s *Storage) GetAccountBySubscriptionReference(ctx context.Context, reference string) (*models.Account, error) {
	const op = "storage.GetAccountBySubscriptionReference"
	return s.getAccount(ctx, op, `WHERE subscription_reference = $1`, reference)
}

func (s *Storage) getAccount(ctx context.Context, op, where string, arg any) (*models.Account, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT uid, email, name, phone, password_hash, role, tier_id, billing_mode,
			      payment_reference, subscription_reference, customer_reference,
			      subscription_status, subscription_end_date, amount_paid_cents,
			      last_event_at, created_at
			  FROM accounts ` + where
	a := &models.Account{}
	row := s.DB.QueryRowContext(ctx, query, arg)

	var phone, subscriptionReference, customerReference sql.NullString
	var subscriptionEndDate, lastEventAt sql.NullTime
	err := row.Scan(&a.UID, &a.Email, &a.Name, &phone, &a.PasswordHash, &a.Role,
		&a.TierID, &a.BillingMode, &a.PaymentReference, &subscriptionReference,
		&customerReference, &a.SubscriptionStatus, &subscriptionEndDate,
		&a.AmountPaidCents, &lastEventAt, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, errs.ErrAccountNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if phone.Valid {
		a.Phone = phone.String
	}
	if subscriptionReference.Valid {
		a.SubscriptionReference = &subscriptionReference.String
	}
	if customerReference.Valid {
		a.CustomerReference = &customerReference.String
	}
	if subscriptionEndDate.Valid {
		a.SubscriptionEndDate = &subscriptionEndDate.Time
	}
	if lastEventAt.Valid {
		a.LastEventAt = &lastEventAt.Time
	}
	return a, nil
}

// UpdateSubscriptionStatus применяет событие жизненного цикла к аккаунту
// с данным subscription_reference. Обновление условное: применяются только
// события не старше уже применённых (по метке времени провайдера), поэтому
// повтор и доставка вне порядка безопасны. Возвращает признак применения.
func (s *Storage) UpdateSubscriptionStatus(ctx context.Context, reference, status string,
	periodEnd *time.Time, occurredAt time.Time) (bool, error) {
	const op = "storage.UpdateSubscriptionStatus"
	select {
	case <-ctx.Done():
		return false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE accounts
			  SET subscription_status = $1,
			      subscription_end_date = COALESCE($2, subscription_end_date),
			      last_event_at = $3
			  WHERE subscription_reference = $4
			    AND (last_event_at IS NULL OR last_event_at <= $3)`
	res, err := s.DB.ExecContext(ctx, query, status, periodEnd, occurredAt, reference)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return affected > 0, nil
}

// MarkCanceled переводит статус подписки аккаунта в canceled.
// Вызывается только после подтверждения отмены провайдером.
// Водяной знак last_event_at сдвигается на момент отмены: запоздавшие
// события, возникшие у провайдера до отмены, больше не применяются.
func (s *Storage) MarkCanceled(ctx context.Context, uid string) error {
	const op = "storage.MarkCanceled"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE accounts
			  SET subscription_status = $1,
			      last_event_at = now()
			  WHERE uid = $2`
	_, err := s.DB.ExecContext(ctx, query, models.SubscriptionStatusCanceled, uid)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// UpdatePasswordHash обновляет хэш пароля аккаунта.
func (s *Storage) UpdatePasswordHash(ctx context.Context, uid, passwordHash string) error {
	const op = "storage.UpdatePasswordHash"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE accounts
			  SET password_hash = $1
			  WHERE uid = $2`
	_, err := s.DB.ExecContext(ctx, query, passwordHash, uid)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
