// Package finalizesubscription обрабатывает финализацию подписки.
package finalizesubscription

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/membership-portal/internal/http/response"
	"github.com/magabrotheeeer/membership-portal/internal/lib/errs"
	"github.com/magabrotheeeer/membership-portal/internal/lib/sl"
	"github.com/magabrotheeeer/membership-portal/internal/models"
)

// Service описывает интерфейс бизнес-логики финализации подписки.
type Service interface {
	FinalizeSubscription(ctx context.Context, req models.FinalizeSubscriptionRequest) (*models.Account, error)
}

// Handler обрабатывает HTTP-запросы на финализацию подписки.
type Handler struct {
	log             *slog.Logger        // Логгер для записи операций и ошибок
	finalizeService Service             // Сервис финализации
	validate        *validator.Validate // Валидатор для проверки входных данных
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, finalizeService Service) *Handler {
	return &Handler{
		log:             log,
		finalizeService: finalizeService,
		validate:        validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Финализировать подписку
// @Description Проверяет активную подписку у провайдера и создает аккаунт участника. Операция идемпотентна по ссылке подписки.
// @Tags Checkout
// @Accept  json
// @Produce  json
// @Param request body models.FinalizeSubscriptionRequest true "Ссылки подписки и клиента, анкета участника"
// @Success 200 {object} models.Account "Аккаунт создан или возвращен существующий"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 402 {object} response.ErrorResponse "Подписку не удалось проверить"
// @Failure 409 {object} response.ErrorResponse "Email уже зарегистрирован"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 503 {object} response.ErrorResponse "Платежный провайдер недоступен"
// @Router /checkout/subscription/finalize [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.checkout.finalizesubscription"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req models.FinalizeSubscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	account, err := h.finalizeService.FinalizeSubscription(r.Context(), req)
	if err != nil {
		writeFinalizeError(w, r, log, err)
		return
	}

	log.Info("subscription finalized", slog.String("account_uid", account.UID),
		slog.String("subscription_reference", req.SubscriptionReference))
	render.JSON(w, r, response.OKWithData(account))
}

func writeFinalizeError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	switch {
	case errors.Is(err, errs.ErrPaymentNotConfirmed), errors.Is(err, errs.ErrAmountMismatch):
		log.Error("subscription verification failed", sl.Err(err))
		w.WriteHeader(http.StatusPaymentRequired)
		render.JSON(w, r, response.Error("payment could not be verified"))
	case errors.Is(err, errs.ErrEmailAlreadyRegistered):
		log.Error("email already registered", sl.Err(err))
		w.WriteHeader(http.StatusConflict)
		render.JSON(w, r, response.Error("email already registered"))
	case errors.Is(err, errs.ErrUnknownTier), errors.Is(err, errs.ErrUnsupportedBillingMode):
		log.Error("subscription metadata does not match catalog", sl.Err(err))
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.Error("unknown tier"))
	case errors.Is(err, errs.ErrUpstreamUnavailable):
		log.Error("payment provider unavailable", sl.Err(err))
		w.WriteHeader(http.StatusServiceUnavailable)
		render.JSON(w, r, response.Error("payment provider unavailable, try again"))
	default:
		log.Error("failed to finalize subscription", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
	}
}
