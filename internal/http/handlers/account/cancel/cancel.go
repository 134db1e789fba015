// Package cancel обрабатывает отмену подписки участника.
//
// Отмена сначала подтверждается у платежного провайдера и только затем
// отражается в реестре: при недоступности провайдера статус не меняется.
package cancel

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
)

// Service описывает интерфейс бизнес-логики отмены подписки.
type Service interface {
	Cancel(ctx context.Context, accountUID string) error
}

// Handler обрабатывает HTTP-запросы на отмену подписки.
type Handler struct {
	log              *slog.Logger // Логгер для записи операций и ошибок
	lifecycleService Service
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, lifecycleService Service) *Handler {
	return &Handler{
		log:              log,
		lifecycleService: lifecycleService,
	}
}

// ServeHTTP godoc
// @Summary Отменить подписку
// @Description Отменяет подписку у провайдера и помечает аккаунт отмененным. Доступ сохраняется до конца оплаченного периода. Повторная отмена ничего не меняет.
// @Tags Account
// @Produce  json
// @Success 200 {object} response.Response "Подписка отменена"
// @Failure 401 {object} response.ErrorResponse "Участник не авторизован"
// @Failure 404 {object} response.ErrorResponse "Аккаунт не найден"
// @Failure 409 {object} response.ErrorResponse "У аккаунта нет подписки"
// @Failure 503 {object} response.ErrorResponse "Платежный провайдер недоступен, статус не изменен"
// @Router /account/cancel [post]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.account.cancel"

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

	if err := h.lifecycleService.Cancel(r.Context(), accountUID); err != nil {
		switch {
		case errors.Is(err, errs.ErrAccountNotFound):
			log.Error("account not found", slog.String("account_uid", accountUID))
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error("account not found"))
		case errors.Is(err, errs.ErrNoSubscription):
			log.Error("account has no subscription", slog.String("account_uid", accountUID))
			w.WriteHeader(http.StatusConflict)
			render.JSON(w, r, response.Error("account has no subscription to cancel"))
		case errors.Is(err, errs.ErrUpstreamUnavailable):
			log.Error("payment provider unavailable, cancellation not applied", sl.Err(err))
			w.WriteHeader(http.StatusServiceUnavailable)
			render.JSON(w, r, response.Error("payment provider unavailable, try again"))
		default:
			log.Error("failed to cancel subscription", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error("internal error"))
		}
		return
	}

	log.Info("subscription canceled", slog.String("account_uid", accountUID))
	render.JSON(w, r, response.OK())
}
