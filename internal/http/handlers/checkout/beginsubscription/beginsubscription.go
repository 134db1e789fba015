// Package beginsubscription обрабатывает открытие подписки на тариф.
package beginsubscription

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
	"github.com/magabrotheeeer/membership-portal/internal/services/checkout"
)

// Service описывает интерфейс бизнес-логики открытия подписки.
type Service interface {
	BeginSubscription(ctx context.Context, req models.BeginSubscriptionRequest) (*checkout.SubscriptionIntent, error)
}

// Handler обрабатывает HTTP-запросы на открытие подписки.
type Handler struct {
	log             *slog.Logger        // Логгер для записи операций и ошибок
	checkoutService Service             // Сервис открытия платежей
	validate        *validator.Validate // Валидатор для проверки входных данных
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, checkoutService Service) *Handler {
	return &Handler{
		log:             log,
		checkoutService: checkoutService,
		validate:        validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Открыть подписку
// @Description Создает подписку у провайдера в незавершенном состоянии и возвращает client secret для подтверждения первого платежа
// @Tags Checkout
// @Accept  json
// @Produce  json
// @Param request body models.BeginSubscriptionRequest true "Тариф и периодичность списаний"
// @Success 200 {object} checkout.SubscriptionIntent "Подписка открыта"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации, неизвестный тариф или недоступная периодичность"
// @Failure 503 {object} response.ErrorResponse "Платежный провайдер недоступен"
// @Router /checkout/subscription [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.checkout.beginsubscription"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req models.BeginSubscriptionRequest
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

	intent, err := h.checkoutService.BeginSubscription(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, errs.ErrUnknownTier):
			log.Error("unknown tier", slog.String("tier_id", req.TierID))
			w.WriteHeader(http.StatusUnprocessableEntity)
			render.JSON(w, r, response.Error("unknown tier"))
		case errors.Is(err, errs.ErrUnsupportedBillingMode):
			log.Error("unsupported billing mode",
				slog.String("tier_id", req.TierID), slog.String("billing_mode", req.BillingMode))
			w.WriteHeader(http.StatusUnprocessableEntity)
			render.JSON(w, r, response.Error("billing mode is not available for this tier"))
		case errors.Is(err, errs.ErrUpstreamUnavailable):
			log.Error("payment provider unavailable", sl.Err(err))
			w.WriteHeader(http.StatusServiceUnavailable)
			render.JSON(w, r, response.Error("payment provider unavailable, try again"))
		default:
			log.Error("failed to begin subscription checkout", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error("internal error"))
		}
		return
	}

	log.Info("subscription checkout opened", slog.String("tier_id", req.TierID),
		slog.String("subscription_reference", intent.SubscriptionReference))
	render.JSON(w, r, response.OKWithData(intent))
}
