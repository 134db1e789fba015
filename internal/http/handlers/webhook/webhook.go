// Package webhook принимает события жизненного цикла от платежного провайдера.
//
// Подпись Stripe проверяется до разбора тела; события, не относящиеся к
// подпискам, подтверждаются без обработки, чтобы провайдер не повторял их.
package webhook

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/membership-portal/internal/http/response"
	"github.com/magabrotheeeer/membership-portal/internal/lib/sl"
	"github.com/magabrotheeeer/membership-portal/internal/models"
)

// EventParser проверяет подпись и разбирает сырое тело webhook.
type EventParser interface {
	ParseWebhookEvent(payload []byte, signatureHeader string) (*models.LifecycleEvent, error)
}

// Service описывает интерфейс применения события к реестру.
type Service interface {
	Apply(ctx context.Context, event models.LifecycleEvent) error
}

// Handler обрабатывает HTTP-запросы webhook от провайдера.
type Handler struct {
	log              *slog.Logger // Логгер для записи информации и ошибок
	parser           EventParser
	lifecycleService Service
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, parser EventParser, lifecycleService Service) *Handler {
	return &Handler{
		log:              log,
		parser:           parser,
		lifecycleService: lifecycleService,
	}
}

// ServeHTTP godoc
// @Summary Webhook платежного провайдера
// @Description Принимает события жизненного цикла подписки от Stripe, проверяет подпись и применяет событие к реестру
// @Tags Payments
// @Accept  json
// @Produce  json
// @Success 200 {object} response.Response "Событие принято"
// @Failure 400 {object} response.ErrorResponse "Невалидная подпись или тело"
// @Failure 500 {object} response.ErrorResponse "Ошибка применения события"
// @Router /payments/webhook [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.webhook"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	body, err := io.ReadAll(r.Body)
	if err != nil {
		log.Error("failed to read webhook body", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}
	defer func() { _ = r.Body.Close() }()

	event, err := h.parser.ParseWebhookEvent(body, r.Header.Get("Stripe-Signature"))
	if err != nil {
		log.Error("failed to verify webhook", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid webhook"))
		return
	}
	if event == nil {
		log.Info("ignored webhook event")
		render.JSON(w, r, response.OK())
		return
	}

	if err := h.lifecycleService.Apply(r.Context(), *event); err != nil {
		log.Error("failed to apply lifecycle event", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
		return
	}

	log.Info("webhook processed",
		slog.String("kind", event.Kind),
		slog.String("subscription", event.SubscriptionReference))
	render.JSON(w, r, response.OK())
}
