package finalizeonetime

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/go-chi/chi/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/membership-portal/internal/lib/errs"
	"github.com/magabrotheeeer/membership-portal/internal/models"
)

// MockService реализует интерфейс finalizeonetime.Service
type MockService struct {
	mock.Mock
}

func (m *MockService) FinalizeOneTime(ctx context.Context, req models.FinalizeOneTimeRequest) (*models.Account, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Account), args.Error(1)
}

func validRequest() models.FinalizeOneTimeRequest {
	return models.FinalizeOneTimeRequest{
		PaymentReference: "pi_123",
		RegistrantProfile: models.RegistrantProfile{
			Email:    "member@example.com",
			Name:     "Test Member",
			Password: "secret-password",
		},
	}
}

func TestFinalizeOneTimeHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	tests := []struct {
		name           string
		requestBody    interface{}
		setupMock      func(*MockService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name:        "успешная финализация",
			requestBody: validRequest(),
			setupMock: func(m *MockService) {
				m.On("FinalizeOneTime", mock.Anything, validRequest()).Return(&models.Account{
					UID:                "uid-1",
					Email:              "member@example.com",
					Name:               "Test Member",
					Role:               models.RoleMember,
					TierID:             "IGNITE",
					BillingMode:        models.BillingModeOneTime,
					PaymentReference:   "pi_123",
					SubscriptionStatus: models.SubscriptionStatusNone,
					AmountPaidCents:    99900,
				}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody: `{"status":"OK","data":{"uid":"uid-1","email":"member@example.com","name":"Test Member",` +
				`"role":"member","tier_id":"IGNITE","billing_mode":"one_time","payment_reference":"pi_123",` +
				`"subscription_status":"none","amount_paid_cents":99900,"created_at":"0001-01-01T00:00:00Z"}}`,
		},
		{
			name:           "некорректный JSON",
			requestBody:    "not a json",
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"status":"Error","error":"invalid request body"}`,
		},
		{
			name: "ошибка валидации - короткий пароль",
			requestBody: models.FinalizeOneTimeRequest{
				PaymentReference: "pi_123",
				RegistrantProfile: models.RegistrantProfile{
					Email:    "member@example.com",
					Name:     "Test Member",
					Password: "short",
				},
			},
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedBody:   `{"status":"Error","error":"field Password is too short"}`,
		},
		{
			name:        "платеж не подтвержден",
			requestBody: validRequest(),
			setupMock: func(m *MockService) {
				m.On("FinalizeOneTime", mock.Anything, mock.Anything).Return(nil, errs.ErrPaymentNotConfirmed)
			},
			expectedStatus: http.StatusPaymentRequired,
			expectedBody:   `{"status":"Error","error":"payment could not be verified"}`,
		},
		{
			name:        "несовпадение суммы скрыто за тем же ответом",
			requestBody: validRequest(),
			setupMock: func(m *MockService) {
				m.On("FinalizeOneTime", mock.Anything, mock.Anything).Return(nil, errs.ErrAmountMismatch)
			},
			expectedStatus: http.StatusPaymentRequired,
			expectedBody:   `{"status":"Error","error":"payment could not be verified"}`,
		},
		{
			name:        "email уже зарегистрирован",
			requestBody: validRequest(),
			setupMock: func(m *MockService) {
				m.On("FinalizeOneTime", mock.Anything, mock.Anything).Return(nil, errs.ErrEmailAlreadyRegistered)
			},
			expectedStatus: http.StatusConflict,
			expectedBody:   `{"status":"Error","error":"email already registered"}`,
		},
		{
			name:        "провайдер недоступен",
			requestBody: validRequest(),
			setupMock: func(m *MockService) {
				m.On("FinalizeOneTime", mock.Anything, mock.Anything).Return(nil, errs.ErrUpstreamUnavailable)
			},
			expectedStatus: http.StatusServiceUnavailable,
			expectedBody:   `{"status":"Error","error":"payment provider unavailable, try again"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockSvc := new(MockService)
			tt.setupMock(mockSvc)

			handler := New(logger, mockSvc)

			var body []byte
			var err error
			if str, ok := tt.requestBody.(string); ok {
				body = []byte(str)
			} else {
				body, err = json.Marshal(tt.requestBody)
				require.NoError(t, err)
			}

			req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout/one-time/finalize", bytes.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			ctx := context.WithValue(req.Context(), middleware.RequestIDKey, "req-id")
			req = req.WithContext(ctx)

			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.JSONEq(t, tt.expectedBody, w.Body.String())
			mockSvc.AssertExpectations(t)
		})
	}
}
