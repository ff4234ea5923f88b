package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/webhook"
)

const testWebhookSecret = "whsec_test_secret"

func signedEvent(t *testing.T, secret, eventType string, created time.Time, object any) ([]byte, string) {
	t.Helper()
	raw, err := json.Marshal(object)
	require.NoError(t, err)
	body := []byte(fmt.Sprintf(`{"id":"evt_1","object":"event","api_version":%q,"created":%d,"type":%q,"data":{"object":%s}}`,
		stripe.APIVersion, created.Unix(), eventType, raw))
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   body,
		Secret:    secret,
		Timestamp: time.Now(),
	})
	return signed.Payload, signed.Header
}

func TestParseWebhookEvent_CheckoutCompleted(t *testing.T) {
	s := NewStripe(StripeConfig{WebhookSecret: testWebhookSecret})
	created := time.Now().Add(-time.Minute).Truncate(time.Second)

	body, sig := signedEvent(t, testWebhookSecret, "checkout.session.completed", created, map[string]any{
		"id":             "cs_test_1",
		"object":         "checkout.session",
		"payment_status": "paid",
		"payment_intent": "pi_123",
		"metadata":       map[string]string{"orderId": "order-1", "paymentId": "pay-1"},
	})

	ev, err := s.ParseWebhookEvent(body, sig)
	require.NoError(t, err)
	assert.Equal(t, "evt_1", ev.ID)
	assert.Equal(t, EventCheckoutCompleted, ev.Type)
	assert.Equal(t, "order-1", ev.OrderID)
	assert.Equal(t, "pi_123", ev.IntentID)
	assert.True(t, ev.Paid)
	assert.True(t, created.Equal(ev.OccurredAt))
	assert.Contains(t, string(ev.Payload), "cs_test_1")
}

func TestParseWebhookEvent_CheckoutCompletedUnpaid(t *testing.T) {
	s := NewStripe(StripeConfig{WebhookSecret: testWebhookSecret})
	body, sig := signedEvent(t, testWebhookSecret, "checkout.session.completed", time.Now(), map[string]any{
		"id":             "cs_test_2",
		"object":         "checkout.session",
		"payment_status": "unpaid",
		"metadata":       map[string]string{"orderId": "order-2"},
	})

	ev, err := s.ParseWebhookEvent(body, sig)
	require.NoError(t, err)
	assert.Equal(t, EventCheckoutCompleted, ev.Type)
	assert.False(t, ev.Paid)
	assert.Empty(t, ev.IntentID)
}

func TestParseWebhookEvent_PaymentFailed(t *testing.T) {
	s := NewStripe(StripeConfig{WebhookSecret: testWebhookSecret})
	body, sig := signedEvent(t, testWebhookSecret, "payment_intent.payment_failed", time.Now(), map[string]any{
		"id":       "pi_failed",
		"object":   "payment_intent",
		"metadata": map[string]string{"orderId": "order-3"},
	})

	ev, err := s.ParseWebhookEvent(body, sig)
	require.NoError(t, err)
	assert.Equal(t, EventPaymentFailed, ev.Type)
	assert.Equal(t, "order-3", ev.OrderID)
	assert.Equal(t, "pi_failed", ev.IntentID)
}

func TestParseWebhookEvent_UnknownType(t *testing.T) {
	s := NewStripe(StripeConfig{WebhookSecret: testWebhookSecret})
	body, sig := signedEvent(t, testWebhookSecret, "customer.created", time.Now(), map[string]any{
		"id":     "cus_1",
		"object": "customer",
	})

	ev, err := s.ParseWebhookEvent(body, sig)
	require.NoError(t, err)
	assert.Equal(t, EventUnknown, ev.Type)
	assert.Equal(t, "customer.created", ev.GatewayType)
}

func TestParseWebhookEvent_BadSignature(t *testing.T) {
	s := NewStripe(StripeConfig{WebhookSecret: testWebhookSecret})
	body, sig := signedEvent(t, "whsec_someone_else", "checkout.session.completed", time.Now(), map[string]any{
		"id": "cs_test_3",
	})

	_, err := s.ParseWebhookEvent(body, sig)
	assert.ErrorIs(t, err, ErrInvalidSignature)

	_, err = s.ParseWebhookEvent(body, "")
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func testBackend(url string) stripe.Backend {
	return stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		URL:               stripe.String(url),
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelNull},
	})
}

func TestCreateCheckoutSession(t *testing.T) {
	var form map[string][]string
	var idempotencyKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/checkout/sessions", r.URL.Path)
		require.NoError(t, r.ParseForm())
		form = r.PostForm
		idempotencyKey = r.Header.Get("Idempotency-Key")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"cs_test_9","object":"checkout.session","url":"https://checkout.stripe.test/cs_test_9"}`))
	}))
	defer srv.Close()

	s := NewStripe(StripeConfig{SecretKey: "sk_test_x", Currency: "usd", Backend: testBackend(srv.URL)})
	sess, err := s.CreateCheckoutSession(context.Background(), CheckoutRequest{
		LineItems: []LineItem{
			{Name: "Shirt", UnitAmount: 500, Quantity: 2},
			{Name: "Shoes", UnitAmount: 1200, Quantity: 1},
		},
		Metadata:       Metadata{OrderID: "order-9", PaymentInfoID: "pay-9"},
		SuccessURL:     "https://shop.test/success",
		CancelURL:      "https://shop.test/cancel",
		IdempotencyKey: "pay-9",
	})
	require.NoError(t, err)
	assert.Equal(t, "cs_test_9", sess.SessionID)
	assert.Equal(t, "https://checkout.stripe.test/cs_test_9", sess.RedirectURL)

	assert.Equal(t, "pay-9", idempotencyKey)
	assert.Equal(t, []string{"500"}, form["line_items[0][price_data][unit_amount]"])
	assert.Equal(t, []string{"2"}, form["line_items[0][quantity]"])
	assert.Equal(t, []string{"Shoes"}, form["line_items[1][price_data][product_data][name]"])
	assert.Equal(t, []string{"usd"}, form["line_items[1][price_data][currency]"])
	assert.Equal(t, []string{"order-9"}, form["metadata[orderId]"])
	assert.Equal(t, []string{"pay-9"}, form["payment_intent_data[metadata][paymentId]"])
}

func TestCreateCheckoutSession_GatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"type":"api_error","message":"boom"}}`))
	}))
	defer srv.Close()

	s := NewStripe(StripeConfig{SecretKey: "sk_test_x", Backend: testBackend(srv.URL)})
	_, err := s.CreateCheckoutSession(context.Background(), CheckoutRequest{
		LineItems: []LineItem{{Name: "Shirt", UnitAmount: 500, Quantity: 1}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "creating stripe checkout session")
	assert.NotErrorIs(t, err, ErrGatewayUnavailable)
}
