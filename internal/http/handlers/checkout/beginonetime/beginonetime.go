// Package beginonetime обрабатывает открытие разового платежа за тариф.
//
// Выполняется декодирование JSON, валидация полей и делегирование операции
// сервису checkout. Аккаунт на этом этапе не создаётся: в ответе возвращается
// client secret для подтверждения платежа на стороне клиента.
package beginonetime

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

// Service описывает интерфейс бизнес-логики открытия разового платежа.
type Service interface {
	BeginOneTime(ctx context.Context, tierID string) (*checkout.OneTimeIntent, error)
}

// Handler обрабатывает HTTP-запросы на открытие разового платежа.
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
// @Summary Открыть разовый платеж
// @Description Создает платежное намерение у провайдера для разовой покупки тарифа
// @Tags Checkout
// @Accept  json
// @Produce  json
// @Param request body models.BeginOneTimeRequest true "Тариф для покупки"
// @Success 200 {object} checkout.OneTimeIntent "Платежное намерение создано"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации или неизвестный тариф"
// @Failure 503 {object} response.ErrorResponse "Платежный провайдер недоступен"
// @Router /checkout/one-time [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.checkout.beginonetime"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req models.BeginOneTimeRequest
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

	intent, err := h.checkoutService.BeginOneTime(r.Context(), req.TierID)
	if err != nil {
		switch {
		case errors.Is(err, errs.ErrUnknownTier):
			log.Error("unknown tier", slog.String("tier_id", req.TierID))
			w.WriteHeader(http.StatusUnprocessableEntity)
			render.JSON(w, r, response.Error("unknown tier"))
		case errors.Is(err, errs.ErrUpstreamUnavailable):
			log.Error("payment provider unavailable", sl.Err(err))
			w.WriteHeader(http.StatusServiceUnavailable)
			render.JSON(w, r, response.Error("payment provider unavailable, try again"))
		default:
			log.Error("failed to begin one-time checkout", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error("internal error"))
		}
		return
	}

	log.Info("one-time checkout opened", slog.String("tier_id", req.TierID),
		slog.String("payment_reference", intent.PaymentReference))
	render.JSON(w, r, response.OKWithData(intent))
}
