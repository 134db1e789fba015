// Package me возвращает запись реестра для аккаунта из JWT токена.
package me

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/membership-portal/internal/http/middlewarectx"
	"github.com/magabrotheeeer/membership-portal/internal/http/response"
	"github.com/magabrotheeeer/membership-portal/internal/lib/errs"
	"github.com/magabrotheeeer/membership-portal/internal/lib/sl"
	"github.com/magabrotheeeer/membership-portal/internal/models"
)

// Service описывает интерфейс чтения записи реестра.
type Service interface {
	Me(ctx context.Context, accountUID string) (*models.Account, error)
}

// Handler обрабатывает HTTP-запросы на чтение собственного аккаунта.
type Handler struct {
	log         *slog.Logger // Логгер для записи операций и ошибок
	authService Service
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, authService Service) *Handler {
	return &Handler{
		log:         log,
		authService: authService,
	}
}

// ServeHTTP godoc
// @Summary Получить свой аккаунт
// @Description Возвращает запись реестра для аккаунта из JWT токена: тариф, режим оплаты, статус подписки и дату окончания оплаченного периода
// @Tags Account
// @Produce  json
// @Success 200 {object} models.Account "Запись реестра"
// @Failure 401 {object} response.ErrorResponse "Участник не авторизован"
// @Failure 404 {object} response.ErrorResponse "Аккаунт не найден"
// @Router /account/me [get]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.account.me"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	accountUID, ok := r.Context().Value(middlewarectx.AccountUID).(string)
	if !ok || accountUID == "" {
		log.Error("account UID not found in context")
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	account, err := h.authService.Me(r.Context(), accountUID)
	if err != nil {
		if errors.Is(err, errs.ErrAccountNotFound) {
			log.Error("account not found", slog.String("account_uid", accountUID))
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error("account not found"))
			return
		}
		log.Error("failed to read account", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
		return
	}

	render.JSON(w, r, response.OKWithData(account))
}
