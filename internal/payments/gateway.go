package payments

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

var (
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	ErrInvalidSignature   = errors.New("invalid webhook signature")
	ErrMalformedEvent     = errors.New("malformed webhook event")
)

// Method is how an order is paid.
type Method string

const MethodStripe Method = "STRIPE"

type LineItem struct {
	Name       string
	UnitAmount int64 // minor units
	Quantity   int64
}

// Metadata travels with the checkout session and comes back on every webhook
// so the reconciler can find its rows.
type Metadata struct {
	OrderID       string
	PaymentInfoID string
}

type CheckoutRequest struct {
	LineItems      []LineItem
	Metadata       Metadata
	SuccessURL     string
	CancelURL      string
	IdempotencyKey string
}

type CheckoutSession struct {
	SessionID   string
	RedirectURL string
}

type EventType string

const (
	EventCheckoutCompleted EventType = "checkout_completed"
	EventPaymentFailed     EventType = "payment_failed"
	EventUnknown           EventType = "unknown"
)

// Event is a verified webhook notification reduced to what the reconciler
// needs. OrderID is empty when the gateway sent no usable metadata.
type Event struct {
	ID          string
	Type        EventType
	GatewayType string
	OrderID     string
	Paid        bool
	IntentID    string
	OccurredAt  time.Time
	Payload     json.RawMessage
}

// Gateway is a hosted-checkout payment provider. CreateCheckoutSession
// returns the provider's error as is; callers classify it as
// ErrGatewayUnavailable.
type Gateway interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)
	ParseWebhookEvent(body []byte, signatureHeader string) (*Event, error)
}
