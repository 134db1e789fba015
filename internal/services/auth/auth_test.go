package auth

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/membership-portal/internal/lib/errs"
	"github.com/magabrotheeeer/membership-portal/internal/lib/jwt"
	"github.com/magabrotheeeer/membership-portal/internal/lib/password"
	"github.com/magabrotheeeer/membership-portal/internal/models"
)

// MockRepo реализует интерфейс auth.AccountRepository
type MockRepo struct {
	mock.Mock
}

func (m *MockRepo) GetAccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	args := m.Called(ctx, email)
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

func (m *MockRepo) UpdatePasswordHash(ctx context.Context, uid, passwordHash string) error {
	args := m.Called(ctx, uid, passwordHash)
	return args.Error(0)
}

// MockCache реализует интерфейс auth.Cache
type MockCache struct {
	mock.Mock
}

func (m *MockCache) Get(key string, result any) (bool, error) {
	args := m.Called(key, result)
	return args.Bool(0), args.Error(1)
}

func (m *MockCache) Set(key string, value any, expiration time.Duration) error {
	args := m.Called(key, value, expiration)
	return args.Error(0)
}

func (m *MockCache) Invalidate(key string) error {
	args := m.Called(key)
	return args.Error(0)
}

func newTestService(repo *MockRepo, cache *MockCache) *Service {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	maker := jwt.NewJWTMaker("test-secret", time.Hour)
	return New(repo, cache, maker, logger)
}

func TestLogin(t *testing.T) {
	hash, err := password.GetHash("correct-password")
	require.NoError(t, err)

	account := &models.Account{
		UID:          "uid-1",
		Email:        "member@example.com",
		PasswordHash: hash,
		Role:         models.RoleMember,
	}

	tests := []struct {
		name        string
		email       string
		password    string
		setupMocks  func(*MockRepo)
		expectedErr bool
	}{
		{
			name:     "успешный вход",
			email:    "member@example.com",
			password: "correct-password",
			setupMocks: func(repo *MockRepo) {
				repo.On("GetAccountByEmail", mock.Anything, "member@example.com").Return(account, nil)
			},
		},
		{
			name:     "неверный пароль",
			email:    "member@example.com",
			password: "wrong-password",
			setupMocks: func(repo *MockRepo) {
				repo.On("GetAccountByEmail", mock.Anything, "member@example.com").Return(account, nil)
			},
			expectedErr: true,
		},
		{
			name:     "аккаунт не существует",
			email:    "ghost@example.com",
			password: "correct-password",
			setupMocks: func(repo *MockRepo) {
				repo.On("GetAccountByEmail", mock.Anything, "ghost@example.com").
					Return(nil, errs.ErrAccountNotFound)
			},
			expectedErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockRepo)
			cache := new(MockCache)
			tt.setupMocks(repo)

			svc := newTestService(repo, cache)
			token, acc, err := svc.Login(context.Background(), tt.email, tt.password)

			if tt.expectedErr {
				assert.Error(t, err)
				assert.Empty(t, token)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, token)
			assert.Equal(t, "uid-1", acc.UID)

			claims, err := svc.ValidateToken(context.Background(), token)
			require.NoError(t, err)
			assert.Equal(t, "member@example.com", claims.Email)
			assert.Equal(t, models.RoleMember, claims.Role)
			assert.Equal(t, "uid-1", claims.AccountUID)
		})
	}
}

func TestMe(t *testing.T) {
	account := &models.Account{UID: "uid-1", Email: "member@example.com", TierID: "ELEVATE"}

	t.Run("попадание в кеш не трогает реестр", func(t *testing.T) {
		repo := new(MockRepo)
		cache := new(MockCache)
		cache.On("Get", "account:uid-1", mock.Anything).Run(func(args mock.Arguments) {
			ptr := args.Get(1).(**models.Account)
			*ptr = account
		}).Return(true, nil)

		svc := newTestService(repo, cache)
		got, err := svc.Me(context.Background(), "uid-1")
		require.NoError(t, err)
		assert.Equal(t, "uid-1", got.UID)
		repo.AssertNotCalled(t, "GetAccountByUID", mock.Anything, mock.Anything)
	})

	t.Run("промах кеша читает реестр и кеширует", func(t *testing.T) {
		repo := new(MockRepo)
		cache := new(MockCache)
		cache.On("Get", "account:uid-1", mock.Anything).Return(false, nil)
		repo.On("GetAccountByUID", mock.Anything, "uid-1").Return(account, nil)
		cache.On("Set", "account:uid-1", account, time.Hour).Return(nil)

		svc := newTestService(repo, cache)
		got, err := svc.Me(context.Background(), "uid-1")
		require.NoError(t, err)
		assert.Equal(t, "ELEVATE", got.TierID)
		cache.AssertExpectations(t)
	})

	t.Run("аккаунт не найден", func(t *testing.T) {
		repo := new(MockRepo)
		cache := new(MockCache)
		cache.On("Get", "account:uid-ghost", mock.Anything).Return(false, nil)
		repo.On("GetAccountByUID", mock.Anything, "uid-ghost").Return(nil, errs.ErrAccountNotFound)

		svc := newTestService(repo, cache)
		_, err := svc.Me(context.Background(), "uid-ghost")
		assert.ErrorIs(t, err, errs.ErrAccountNotFound)
	})
}

func TestChangePassword(t *testing.T) {
	hash, err := password.GetHash("old-password")
	require.NoError(t, err)
	account := &models.Account{UID: "uid-1", PasswordHash: hash}

	t.Run("успешная смена пароля", func(t *testing.T) {
		repo := new(MockRepo)
		cache := new(MockCache)
		repo.On("GetAccountByUID", mock.Anything, "uid-1").Return(account, nil)
		repo.On("UpdatePasswordHash", mock.Anything, "uid-1", mock.MatchedBy(func(h string) bool {
			return password.CompareHash(h, "new-password") == nil
		})).Return(nil)
		cache.On("Invalidate", "account:uid-1").Return(nil)

		svc := newTestService(repo, cache)
		err := svc.ChangePassword(context.Background(), "uid-1", "old-password", "new-password")
		require.NoError(t, err)
		repo.AssertExpectations(t)
		cache.AssertExpectations(t)
	})

	t.Run("неверный старый пароль", func(t *testing.T) {
		repo := new(MockRepo)
		cache := new(MockCache)
		repo.On("GetAccountByUID", mock.Anything, "uid-1").Return(account, nil)

		svc := newTestService(repo, cache)
		err := svc.ChangePassword(context.Background(), "uid-1", "wrong", "new-password")
		assert.ErrorIs(t, err, errs.ErrInvalidCredentials)
		repo.AssertNotCalled(t, "UpdatePasswordHash", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestValidateTokenErrors(t *testing.T) {
	svc := newTestService(new(MockRepo), new(MockCache))

	_, err := svc.ValidateToken(context.Background(), "not-a-token")
	assert.Error(t, err)

	otherMaker := jwt.NewJWTMaker("other-secret", time.Hour)
	token, err := otherMaker.GenerateToken("member@example.com", models.RoleMember, "uid-1")
	require.NoError(t, err)
	_, err = svc.ValidateToken(context.Background(), token)
	assert.Error(t, err)
}
