package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/checkout/session"
	"github.com/stripe/stripe-go/v81/webhook"
)

const (
	metaOrderID   = "orderId"
	metaPaymentID = "paymentId"
)

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	Currency      string
	// Backend overrides the Stripe API backend; nil uses the SDK default.
	Backend stripe.Backend
}

// Stripe is the hosted-checkout Gateway backed by Stripe Checkout Sessions.
type Stripe struct {
	sessions      *session.Client
	webhookSecret string
	currency      string
}

func NewStripe(cfg StripeConfig) *Stripe {
	b := cfg.Backend
	if b == nil {
		b = stripe.GetBackend(stripe.APIBackend)
	}
	currency := cfg.Currency
	if currency == "" {
		currency = string(stripe.CurrencyBDT)
	}
	return &Stripe{
		sessions:      &session.Client{B: b, Key: cfg.SecretKey},
		webhookSecret: cfg.WebhookSecret,
		currency:      currency,
	}
}

func (s *Stripe) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	lineItems := make([]*stripe.CheckoutSessionLineItemParams, 0, len(req.LineItems))
	for _, item := range req.LineItems {
		lineItems = append(lineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency: stripe.String(s.currency),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(item.Name),
				},
				UnitAmount: stripe.Int64(item.UnitAmount),
			},
			Quantity: stripe.Int64(item.Quantity),
		})
	}

	// payment_intent.* events only carry the intent's metadata, so it is set on both.
	metadata := map[string]string{
		metaOrderID:   req.Metadata.OrderID,
		metaPaymentID: req.Metadata.PaymentInfoID,
	}
	params := &stripe.CheckoutSessionParams{
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems:          lineItems,
		SuccessURL:         stripe.String(req.SuccessURL),
		CancelURL:          stripe.String(req.CancelURL),
		ClientReferenceID:  stripe.String(req.Metadata.OrderID),
		Metadata:           metadata,
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: metadata,
		},
	}
	params.Context = ctx
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}

	sess, err := s.sessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("creating stripe checkout session: %w", err)
	}
	return &CheckoutSession{SessionID: sess.ID, RedirectURL: sess.URL}, nil
}

func (s *Stripe) ParseWebhookEvent(body []byte, signatureHeader string) (*Event, error) {
	event, err := webhook.ConstructEventWithOptions(body, signatureHeader, s.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	}

	ev := &Event{
		ID:          event.ID,
		Type:        EventUnknown,
		GatewayType: string(event.Type),
		OccurredAt:  time.Unix(event.Created, 0).UTC(),
	}
	if event.Data == nil {
		return ev, nil
	}
	ev.Payload = event.Data.Raw

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted,
		stripe.EventTypeCheckoutSessionAsyncPaymentSucceeded,
		stripe.EventTypeCheckoutSessionAsyncPaymentFailed:
		var cs stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &cs); err != nil {
			return nil, fmt.Errorf("%w: checkout session: %w", ErrMalformedEvent, err)
		}
		ev.OrderID = cs.Metadata[metaOrderID]
		if cs.PaymentIntent != nil {
			ev.IntentID = cs.PaymentIntent.ID
		}
		if event.Type == stripe.EventTypeCheckoutSessionAsyncPaymentFailed {
			ev.Type = EventPaymentFailed
		} else {
			ev.Type = EventCheckoutCompleted
			ev.Paid = cs.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid
		}

	case stripe.EventTypePaymentIntentPaymentFailed:
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return nil, fmt.Errorf("%w: payment intent: %w", ErrMalformedEvent, err)
		}
		ev.Type = EventPaymentFailed
		ev.OrderID = pi.Metadata[metaOrderID]
		ev.IntentID = pi.ID
	}

	return ev, nil
}
