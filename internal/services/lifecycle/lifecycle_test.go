package lifecycle

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/membership-portal/internal/lib/errs"
	"github.com/magabrotheeeer/membership-portal/internal/models"
)

// MockRepo реализует интерфейс lifecycle.AccountRepository
type MockRepo struct {
	mock.Mock
}

func (m *MockRepo) GetAccountBySubscriptionReference(ctx context.Context, reference string) (*models.Account, error) {
	args := m.Called(ctx, reference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Account), args.Error(1)
}

func (m *MockRepo) GetAccountByUID(ctx context.Context, uid string) (*models.Account, error) {
	args := m.Called(ctx, uid)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Account), args.Error(1)
}

func (m *MockRepo) UpdateSubscriptionStatus(ctx context.Context, reference, status string,
	periodEnd *time.Time, occurredAt time.Time) (bool, error) {
	args := m.Called(ctx, reference, status, periodEnd, occurredAt)
	return args.Bool(0), args.Error(1)
}

func (m *MockRepo) MarkCanceled(ctx context.Context, uid string) error {
	args := m.Called(ctx, uid)
	return args.Error(0)
}

// MockProvider реализует интерфейс lifecycle.Provider
type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) CancelSubscription(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockCache реализует интерфейс lifecycle.Cache
type MockCache struct {
	mock.Mock
}

func (m *MockCache) Invalidate(key string) error {
	args := m.Called(key)
	return args.Error(0)
}

// MockNotifier реализует интерфейс lifecycle.Notifier
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Publish(routingKey string, message any) error {
	args := m.Called(routingKey, message)
	return args.Error(0)
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func subAccount(status string) *models.Account {
	subRef := "sub_42"
	return &models.Account{
		UID:                   "uid-1",
		Email:                 "member@example.com",
		Name:                  "Test Member",
		TierID:                "ELEVATE",
		SubscriptionReference: &subRef,
		SubscriptionStatus:    status,
	}
}

func TestApply(t *testing.T) {
	occurredAt := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	periodEnd := time.Date(2026, 2, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		event       models.LifecycleEvent
		setupMocks  func(*MockRepo, *MockCache, *MockNotifier)
		expectedErr bool
	}{
		{
			name: "успешное продление переводит в active",
			event: models.LifecycleEvent{
				Kind:                  models.EventRenewalSucceeded,
				SubscriptionReference: "sub_42",
				PeriodEnd:             &periodEnd,
				OccurredAt:            occurredAt,
			},
			setupMocks: func(repo *MockRepo, cache *MockCache, _ *MockNotifier) {
				repo.On("GetAccountBySubscriptionReference", mock.Anything, "sub_42").
					Return(subAccount(models.SubscriptionStatusPastDue), nil)
				repo.On("UpdateSubscriptionStatus", mock.Anything, "sub_42",
					models.SubscriptionStatusActive, &periodEnd, occurredAt).Return(true, nil)
				cache.On("Invalidate", "account:uid-1").Return(nil)
			},
		},
		{
			name: "неуспешный платеж переводит в past_due и шлет уведомление",
			event: models.LifecycleEvent{
				Kind:                  models.EventPaymentFailed,
				SubscriptionReference: "sub_42",
				OccurredAt:            occurredAt,
			},
			setupMocks: func(repo *MockRepo, cache *MockCache, notifier *MockNotifier) {
				repo.On("GetAccountBySubscriptionReference", mock.Anything, "sub_42").
					Return(subAccount(models.SubscriptionStatusActive), nil)
				repo.On("UpdateSubscriptionStatus", mock.Anything, "sub_42",
					models.SubscriptionStatusPastDue, (*time.Time)(nil), occurredAt).Return(true, nil)
				cache.On("Invalidate", "account:uid-1").Return(nil)
				notifier.On("Publish", "payment_failed", models.Notification{
					Email:  "member@example.com",
					Name:   "Test Member",
					TierID: "ELEVATE",
				}).Return(nil)
			},
		},
		{
			name: "повтор неуспешного платежа не дублирует уведомление",
			event: models.LifecycleEvent{
				Kind:                  models.EventPaymentFailed,
				SubscriptionReference: "sub_42",
				OccurredAt:            occurredAt,
			},
			setupMocks: func(repo *MockRepo, cache *MockCache, _ *MockNotifier) {
				repo.On("GetAccountBySubscriptionReference", mock.Anything, "sub_42").
					Return(subAccount(models.SubscriptionStatusPastDue), nil)
				repo.On("UpdateSubscriptionStatus", mock.Anything, "sub_42",
					models.SubscriptionStatusPastDue, (*time.Time)(nil), occurredAt).Return(true, nil)
				cache.On("Invalidate", "account:uid-1").Return(nil)
			},
		},
		{
			name: "исчерпание повторов списания переводит в unpaid",
			event: models.LifecycleEvent{
				Kind:                  models.EventUnpaid,
				SubscriptionReference: "sub_42",
				OccurredAt:            occurredAt,
			},
			setupMocks: func(repo *MockRepo, cache *MockCache, notifier *MockNotifier) {
				repo.On("GetAccountBySubscriptionReference", mock.Anything, "sub_42").
					Return(subAccount(models.SubscriptionStatusPastDue), nil)
				repo.On("UpdateSubscriptionStatus", mock.Anything, "sub_42",
					models.SubscriptionStatusUnpaid, (*time.Time)(nil), occurredAt).Return(true, nil)
				cache.On("Invalidate", "account:uid-1").Return(nil)
				notifier.On("Publish", "payment_failed", models.Notification{
					Email:  "member@example.com",
					Name:   "Test Member",
					TierID: "ELEVATE",
				}).Return(nil)
			},
		},
		{
			name: "событие для неизвестной подписки отбрасывается",
			event: models.LifecycleEvent{
				Kind:                  models.EventCanceled,
				SubscriptionReference: "sub_unknown",
				OccurredAt:            occurredAt,
			},
			setupMocks: func(repo *MockRepo, _ *MockCache, _ *MockNotifier) {
				repo.On("GetAccountBySubscriptionReference", mock.Anything, "sub_unknown").
					Return(nil, errs.ErrAccountNotFound)
			},
		},
		{
			name: "устаревшее событие пропускается",
			event: models.LifecycleEvent{
				Kind:                  models.EventCanceled,
				SubscriptionReference: "sub_42",
				OccurredAt:            occurredAt,
			},
			setupMocks: func(repo *MockRepo, _ *MockCache, _ *MockNotifier) {
				repo.On("GetAccountBySubscriptionReference", mock.Anything, "sub_42").
					Return(subAccount(models.SubscriptionStatusActive), nil)
				repo.On("UpdateSubscriptionStatus", mock.Anything, "sub_42",
					models.SubscriptionStatusCanceled, (*time.Time)(nil), occurredAt).Return(false, nil)
			},
		},
		{
			name: "неизвестный вид события",
			event: models.LifecycleEvent{
				Kind:                  "mystery",
				SubscriptionReference: "sub_42",
				OccurredAt:            occurredAt,
			},
			setupMocks:  func(_ *MockRepo, _ *MockCache, _ *MockNotifier) {},
			expectedErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockRepo)
			provider := new(MockProvider)
			cache := new(MockCache)
			notifier := new(MockNotifier)
			tt.setupMocks(repo, cache, notifier)

			svc := New(repo, provider, cache, notifier, newTestLogger())
			err := svc.Apply(context.Background(), tt.event)

			if tt.expectedErr {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			repo.AssertExpectations(t)
			cache.AssertExpectations(t)
			notifier.AssertExpectations(t)
		})
	}
}

func TestCancel(t *testing.T) {
	tests := []struct {
		name        string
		setupMocks  func(*MockRepo, *MockProvider, *MockCache)
		expectedErr error
	}{
		{
			name: "успешная отмена",
			setupMocks: func(repo *MockRepo, provider *MockProvider, cache *MockCache) {
				repo.On("GetAccountByUID", mock.Anything, "uid-1").
					Return(subAccount(models.SubscriptionStatusActive), nil)
				provider.On("CancelSubscription", mock.Anything, "sub_42").Return(nil)
				repo.On("MarkCanceled", mock.Anything, "uid-1").Return(nil)
				cache.On("Invalidate", "account:uid-1").Return(nil)
			},
		},
		{
			name: "повторная отмена ничего не меняет",
			setupMocks: func(repo *MockRepo, _ *MockProvider, _ *MockCache) {
				repo.On("GetAccountByUID", mock.Anything, "uid-1").
					Return(subAccount(models.SubscriptionStatusCanceled), nil)
			},
		},
		{
			name: "у аккаунта нет подписки",
			setupMocks: func(repo *MockRepo, _ *MockProvider, _ *MockCache) {
				repo.On("GetAccountByUID", mock.Anything, "uid-1").
					Return(&models.Account{UID: "uid-1", BillingMode: models.BillingModeOneTime}, nil)
			},
			expectedErr: errs.ErrNoSubscription,
		},
		{
			name: "сбой провайдера оставляет статус без изменений",
			setupMocks: func(repo *MockRepo, provider *MockProvider, _ *MockCache) {
				repo.On("GetAccountByUID", mock.Anything, "uid-1").
					Return(subAccount(models.SubscriptionStatusActive), nil)
				provider.On("CancelSubscription", mock.Anything, "sub_42").
					Return(errs.ErrUpstreamUnavailable)
			},
			expectedErr: errs.ErrUpstreamUnavailable,
		},
		{
			name: "аккаунт не найден",
			setupMocks: func(repo *MockRepo, _ *MockProvider, _ *MockCache) {
				repo.On("GetAccountByUID", mock.Anything, "uid-1").
					Return(nil, errs.ErrAccountNotFound)
			},
			expectedErr: errs.ErrAccountNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockRepo)
			provider := new(MockProvider)
			cache := new(MockCache)
			notifier := new(MockNotifier)
			tt.setupMocks(repo, provider, cache)

			svc := New(repo, provider, cache, notifier, newTestLogger())
			err := svc.Cancel(context.Background(), "uid-1")

			if tt.expectedErr != nil {
				assert.ErrorIs(t, err, tt.expectedErr)
			} else {
				require.NoError(t, err)
			}
			repo.AssertExpectations(t)
			provider.AssertExpectations(t)
			cache.AssertExpectations(t)
			// MarkCanceled не должен вызываться при сбое провайдера
			if errors.Is(tt.expectedErr, errs.ErrUpstreamUnavailable) {
				repo.AssertNotCalled(t, "MarkCanceled", mock.Anything, mock.Anything)
			}
		})
	}
}
