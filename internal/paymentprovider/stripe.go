package paymentprovider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v83"
	"github.com/stripe/stripe-go/v83/customer"
	"github.com/stripe/stripe-go/v83/paymentintent"
	"github.com/stripe/stripe-go/v83/subscription"

	"github.com/magabrotheeeer/membership-portal/internal/lib/errs"
)

// Client клиент Stripe. Секрет вебхука используется при разборе
// событий жизненного цикла (webhook.go).
type Client struct {
	webhookSecret string
}

// NewClient создаёт клиент Stripe с секретным ключом API.
func NewClient(secretKey, webhookSecret string) *Client {
	stripe.Key = secretKey
	return &Client{webhookSecret: webhookSecret}
}

// CreatePaymentIntent открывает разовый платёж на сумму из каталога и
// возвращает client secret для подтверждения на стороне клиента.
func (c *Client) CreatePaymentIntent(ctx context.Context, params CreateIntentParams) (*PaymentIntent, error) {
	const op = "paymentprovider.CreatePaymentIntent"

	piParams := &stripe.PaymentIntentParams{
		Params:   stripe.Params{Context: ctx},
		Amount:   stripe.Int64(params.AmountCents),
		Currency: stripe.String(params.Currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
		Metadata: map[string]string{
			MetadataTierID:      params.TierID,
			MetadataBillingMode: "one_time",
		},
	}
	if params.IdempotencyKey != "" {
		piParams.IdempotencyKey = stripe.String(params.IdempotencyKey)
	}

	pi, err := paymentintent.New(piParams)
	if err != nil {
		return nil, wrapErr(op, err)
	}
	return convertPaymentIntent(pi), nil
}

// GetPaymentIntent перечитывает платёж по его ID у провайдера.
func (c *Client) GetPaymentIntent(ctx context.Context, id string) (*PaymentIntent, error) {
	const op = "paymentprovider.GetPaymentIntent"

	pi, err := paymentintent.Get(id, &stripe.PaymentIntentParams{
		Params: stripe.Params{Context: ctx},
	})
	if err != nil {
		return nil, wrapErr(op, err)
	}
	return convertPaymentIntent(pi), nil
}

// GetOrCreateCustomer возвращает покупателя провайдера по email,
// создавая его при отсутствии. Повторный заход регистранта в флоу
// не плодит покупателей.
func (c *Client) GetOrCreateCustomer(ctx context.Context, email, name string) (*Customer, error) {
	const op = "paymentprovider.GetOrCreateCustomer"

	listParams := &stripe.CustomerListParams{Email: stripe.String(email)}
	listParams.Context = ctx
	listParams.Limit = stripe.Int64(1)
	iter := customer.List(listParams)
	if iter.Next() {
		existing := iter.Customer()
		return &Customer{ID: existing.ID, Email: existing.Email}, nil
	}
	if err := iter.Err(); err != nil {
		return nil, wrapErr(op, err)
	}

	created, err := customer.New(&stripe.CustomerParams{
		Params: stripe.Params{Context: ctx},
		Email:  stripe.String(email),
		Name:   stripe.String(name),
	})
	if err != nil {
		return nil, wrapErr(op, err)
	}
	return &Customer{ID: created.ID, Email: created.Email}, nil
}

// CreateSubscription создаёт подписку в статусе incomplete и возвращает
// секрет подтверждения первого инвойса. Подписка становится активной
// только после подтверждения платежа клиентом.
func (c *Client) CreateSubscription(ctx context.Context, params CreateSubscriptionParams) (*Subscription, error) {
	const op = "paymentprovider.CreateSubscription"

	subParams := &stripe.SubscriptionParams{
		Params:   stripe.Params{Context: ctx},
		Customer: stripe.String(params.CustomerID),
		Items: []*stripe.SubscriptionItemsParams{
			{Price: stripe.String(params.PriceID)},
		},
		PaymentBehavior: stripe.String("default_incomplete"),
		PaymentSettings: &stripe.SubscriptionPaymentSettingsParams{
			SaveDefaultPaymentMethod: stripe.String("on_subscription"),
		},
		Metadata: map[string]string{
			MetadataTierID:      params.TierID,
			MetadataBillingMode: params.BillingMode,
		},
	}
	subParams.AddExpand("latest_invoice.confirmation_secret")
	if params.IdempotencyKey != "" {
		subParams.IdempotencyKey = stripe.String(params.IdempotencyKey)
	}

	sub, err := subscription.New(subParams)
	if err != nil {
		return nil, wrapErr(op, err)
	}
	return convertSubscription(sub), nil
}

// GetSubscription перечитывает подписку по её ID у провайдера.
func (c *Client) GetSubscription(ctx context.Context, id string) (*Subscription, error) {
	const op = "paymentprovider.GetSubscription"

	sub, err := subscription.Get(id, &stripe.SubscriptionParams{
		Params: stripe.Params{Context: ctx},
	})
	if err != nil {
		return nil, wrapErr(op, err)
	}
	return convertSubscription(sub), nil
}

// CancelSubscription запрашивает отмену подписки у провайдера.
func (c *Client) CancelSubscription(ctx context.Context, id string) error {
	const op = "paymentprovider.CancelSubscription"

	_, err := subscription.Cancel(id, &stripe.SubscriptionCancelParams{
		Params: stripe.Params{Context: ctx},
	})
	if err != nil {
		return wrapErr(op, err)
	}
	return nil
}

func convertPaymentIntent(pi *stripe.PaymentIntent) *PaymentIntent {
	return &PaymentIntent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       string(pi.Status),
		AmountCents:  pi.Amount,
		Metadata:     pi.Metadata,
	}
}

func convertSubscription(sub *stripe.Subscription) *Subscription {
	out := &Subscription{
		ID:       sub.ID,
		Status:   string(sub.Status),
		Metadata: sub.Metadata,
	}
	if sub.Customer != nil {
		out.CustomerID = sub.Customer.ID
	}
	if len(sub.Items.Data) > 0 {
		item := sub.Items.Data[0]
		if item.Price != nil {
			out.AmountCents = item.Price.UnitAmount
		}
		if item.CurrentPeriodEnd > 0 {
			out.CurrentPeriodEnd = time.Unix(item.CurrentPeriodEnd, 0).UTC()
		}
	}
	if sub.LatestInvoice != nil && sub.LatestInvoice.ConfirmationSecret != nil {
		out.ClientSecret = sub.LatestInvoice.ConfirmationSecret.ClientSecret
	}
	return out
}

// wrapErr переводит ошибки Stripe в доменную таксономию: сетевые сбои и
// 5xx провайдера — ErrUpstreamUnavailable, остальное оборачивается как есть.
func wrapErr(op string, err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		if stripeErr.HTTPStatusCode >= 500 {
			return fmt.Errorf("%s: %w: %s", op, errs.ErrUpstreamUnavailable, stripeErr.Msg)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	// Ошибка вне протокола Stripe — сеть или таймаут.
	return fmt.Errorf("%s: %w: %v", op, errs.ErrUpstreamUnavailable, err)
}
