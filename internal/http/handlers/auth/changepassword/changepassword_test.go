package changepassword

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/go-chi/chi/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/membership-portal/internal/http/middlewarectx"
	"github.com/magabrotheeeer/membership-portal/internal/lib/errs"
)

// MockService реализует интерфейс changepassword.Service
type MockService struct {
	mock.Mock
}

func (m *MockService) ChangePassword(ctx context.Context, accountUID, oldPassword, newPassword string) error {
	args := m.Called(ctx, accountUID, oldPassword, newPassword)
	return args.Error(0)
}

func TestChangePasswordHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	tests := []struct {
		name           string
		accountUID     string
		body           string
		setupMock      func(*MockService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name:       "успешная смена пароля",
			accountUID: "uid-1",
			body:       `{"old_password":"old-password","new_password":"new-password"}`,
			setupMock: func(m *MockService) {
				m.On("ChangePassword", mock.Anything, "uid-1", "old-password", "new-password").Return(nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `{"status":"OK"}`,
		},
		{
			name:           "нет авторизации",
			accountUID:     "",
			body:           `{"old_password":"old-password","new_password":"new-password"}`,
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   `{"status":"Error","error":"unauthorized"}`,
		},
		{
			name:           "некорректный JSON",
			accountUID:     "uid-1",
			body:           `{"old_password":`,
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"status":"Error","error":"invalid request body"}`,
		},
		{
			name:           "короткий новый пароль",
			accountUID:     "uid-1",
			body:           `{"old_password":"old-password","new_password":"short"}`,
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedBody:   `{"status":"Error","error":"field NewPassword is too short"}`,
		},
		{
			name:       "неверный старый пароль",
			accountUID: "uid-1",
			body:       `{"old_password":"wrong","new_password":"new-password"}`,
			setupMock: func(m *MockService) {
				m.On("ChangePassword", mock.Anything, "uid-1", "wrong", "new-password").
					Return(errs.ErrInvalidCredentials)
			},
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   `{"status":"Error","error":"invalid credentials"}`,
		},
		{
			name:       "аккаунт не найден",
			accountUID: "uid-ghost",
			body:       `{"old_password":"old-password","new_password":"new-password"}`,
			setupMock: func(m *MockService) {
				m.On("ChangePassword", mock.Anything, "uid-ghost", "old-password", "new-password").
					Return(errs.ErrAccountNotFound)
			},
			expectedStatus: http.StatusNotFound,
			expectedBody:   `{"status":"Error","error":"account not found"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockSvc := new(MockService)
			tt.setupMock(mockSvc)

			handler := New(logger, mockSvc)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/change-password",
				strings.NewReader(tt.body))
			ctx := context.WithValue(req.Context(), middlewarectx.AccountUID, tt.accountUID)
			ctx = context.WithValue(ctx, middleware.RequestIDKey, "req-id")
			req = req.WithContext(ctx)

			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.JSONEq(t, tt.expectedBody, w.Body.String())
			mockSvc.AssertExpectations(t)
		})
	}
}
