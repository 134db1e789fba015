package paymentprovider

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v83"
	"github.com/stripe/stripe-go/v83/webhook"

	"github.com/magabrotheeeer/membership-portal/internal/models"
)

// ParseWebhookEvent проверяет подпись вебхука и нормализует событие
// жизненного цикла подписки. Для событий, не влияющих на статус подписки,
// возвращается (nil, nil).
func (c *Client) ParseWebhookEvent(payload []byte, signatureHeader string) (*models.LifecycleEvent, error) {
	const op = "paymentprovider.ParseWebhookEvent"

	event, err := webhook.ConstructEvent(payload, signatureHeader, c.webhookSecret)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	occurredAt := time.Unix(event.Created, 0).UTC()

	switch event.Type {
	case "customer.subscription.updated":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		return subscriptionEvent(&sub, occurredAt), nil

	case "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		return &models.LifecycleEvent{
			Kind:                  models.EventCanceled,
			SubscriptionReference: sub.ID,
			OccurredAt:            occurredAt,
		}, nil

	case "invoice.payment_failed":
		var inv stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if inv.Parent == nil || inv.Parent.SubscriptionDetails == nil ||
			inv.Parent.SubscriptionDetails.Subscription == nil {
			return nil, nil
		}
		return &models.LifecycleEvent{
			Kind:                  models.EventPaymentFailed,
			SubscriptionReference: inv.Parent.SubscriptionDetails.Subscription.ID,
			OccurredAt:            occurredAt,
		}, nil
	}

	return nil, nil
}

func subscriptionEvent(sub *stripe.Subscription, occurredAt time.Time) *models.LifecycleEvent {
	ev := &models.LifecycleEvent{
		SubscriptionReference: sub.ID,
		OccurredAt:            occurredAt,
	}
	if len(sub.Items.Data) > 0 && sub.Items.Data[0].CurrentPeriodEnd > 0 {
		periodEnd := time.Unix(sub.Items.Data[0].CurrentPeriodEnd, 0).UTC()
		ev.PeriodEnd = &periodEnd
	}

	switch sub.Status {
	case stripe.SubscriptionStatusActive:
		ev.Kind = models.EventRenewalSucceeded
	case stripe.SubscriptionStatusPastDue:
		ev.Kind = models.EventPaymentFailed
	case stripe.SubscriptionStatusUnpaid:
		ev.Kind = models.EventUnpaid
	case stripe.SubscriptionStatusCanceled:
		ev.Kind = models.EventCanceled
	default:
		return nil
	}
	return ev
}
