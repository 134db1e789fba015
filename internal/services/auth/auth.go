// Package auth содержит логику границы аутентификации: вход по паре
// email/пароль, валидацию JWT и чтение собственного аккаунта.
// Реестр аккаунтов — доверенный источник email, хэша пароля и роли;
// создание аккаунтов здесь невозможно, этим занимается финализация.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/membership-portal/internal/lib/errs"
	"github.com/magabrotheeeer/membership-portal/internal/lib/jwt"
	"github.com/magabrotheeeer/membership-portal/internal/lib/password"
	"github.com/magabrotheeeer/membership-portal/internal/lib/sl"
	"github.com/magabrotheeeer/membership-portal/internal/models"
)

// AccountRepository описывает контракт для чтения аккаунтов из реестра.
type AccountRepository interface {
	GetAccountByEmail(ctx context.Context, email string) (*models.Account, error)
	GetAccountByUID(ctx context.Context, uid string) (*models.Account, error)
	UpdatePasswordHash(ctx context.Context, uid, passwordHash string) error
}

// Cache описывает методы для кэширования аккаунтов.
type Cache interface {
	Get(key string, result any) (bool, error)
	Set(key string, value any, expiration time.Duration) error
	Invalidate(key string) error
}

// Service отвечает за авторизацию и чтение собственного аккаунта.
type Service struct {
	repo     AccountRepository
	cache    Cache
	jwtMaker jwt.Maker
	log      *slog.Logger
}

// New создает новый экземпляр Service.
func New(repo AccountRepository, cache Cache, jwtMaker jwt.Maker, log *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		cache:    cache,
		jwtMaker: jwtMaker,
		log:      log,
	}
}

// Login проверяет пароль и выдаёт JWT с email, ролью и UID аккаунта.
func (s *Service) Login(ctx context.Context, email, rawPassword string) (string, *models.Account, error) {
	account, err := s.repo.GetAccountByEmail(ctx, email)
	if err != nil {
		return "", nil, errors.New("invalid credentials")
	}
	if err := password.CompareHash(account.PasswordHash, rawPassword); err != nil {
		return "", nil, errors.New("invalid credentials")
	}
	token, err := s.jwtMaker.GenerateToken(account.Email, account.Role, account.UID)
	if err != nil {
		return "", nil, err
	}
	return token, account, nil
}

// ValidateToken проверяет JWT и возвращает его claims.
func (s *Service) ValidateToken(_ context.Context, token string) (*jwt.CustomClaims, error) {
	return s.jwtMaker.ParseToken(token)
}

// Me возвращает аккаунт по UID из токена, используя кеш или реестр.
func (s *Service) Me(ctx context.Context, accountUID string) (*models.Account, error) {
	var result *models.Account
	cacheKey := fmt.Sprintf("account:%s", accountUID)
	found, err := s.cache.Get(cacheKey, &result)
	if err != nil {
		s.log.Warn("failed to read account cache", slog.String("key", cacheKey), sl.Err(err))
	}
	if found {
		return result, nil
	}

	result, err = s.repo.GetAccountByUID(ctx, accountUID)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(cacheKey, result, time.Hour); err != nil {
		s.log.Warn("failed to cache account", slog.String("key", cacheKey), sl.Err(err))
	}
	return result, nil
}

// ChangePassword проверяет старый пароль и сохраняет хэш нового.
func (s *Service) ChangePassword(ctx context.Context, accountUID, oldPassword, newPassword string) error {
	account, err := s.repo.GetAccountByUID(ctx, accountUID)
	if err != nil {
		return err
	}
	if err := password.CompareHash(account.PasswordHash, oldPassword); err != nil {
		return errs.ErrInvalidCredentials
	}
	hashed, err := password.GetHash(newPassword)
	if err != nil {
		return err
	}
	if err := s.repo.UpdatePasswordHash(ctx, accountUID, hashed); err != nil {
		return err
	}
	cacheKey := fmt.Sprintf("account:%s", accountUID)
	if err := s.cache.Invalidate(cacheKey); err != nil {
		s.log.Warn("failed to invalidate account cache", slog.String("key", cacheKey), sl.Err(err))
	}
	return nil
}
