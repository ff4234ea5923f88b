package orders_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"checkout-service/internal/auth"
	"checkout-service/internal/orders"
	"checkout-service/internal/payments"
	"checkout-service/internal/stores/memstore"
)

type fakeGateway struct {
	mu       sync.Mutex
	requests []payments.CheckoutRequest
	err      error
	// block makes CreateCheckoutSession wait for ctx to end.
	block bool
}

func (g *fakeGateway) CreateCheckoutSession(ctx context.Context, req payments.CheckoutRequest) (*payments.CheckoutSession, error) {
	g.mu.Lock()
	g.requests = append(g.requests, req)
	err, block := g.err, g.block
	g.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, err
	}
	return &payments.CheckoutSession{
		SessionID:   "cs_test_" + req.Metadata.OrderID,
		RedirectURL: "https://checkout.example/" + req.Metadata.OrderID,
	}, nil
}

func (g *fakeGateway) ParseWebhookEvent([]byte, string) (*payments.Event, error) {
	return nil, errors.New("not used")
}

func (g *fakeGateway) calls() []payments.CheckoutRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]payments.CheckoutRequest(nil), g.requests...)
}

type fixture struct {
	store *memstore.Store
	gw    *fakeGateway
	conf  *orders.Conf

	user   auth.Identity
	shirt  orders.Product // 500
	jacket orders.Product // 1200
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newFixture(t *testing.T, source orders.CartSource) *fixture {
	t.Helper()
	store := memstore.New()
	gw := &fakeGateway{}

	conf, err := orders.NewConf(store, gw, orders.Options{
		CartSource:     source,
		DefaultCountry: "Bangladesh",
		SuccessURL:     "https://shop.example/success",
		CancelURL:      "https://shop.example/cancel",
		GatewayTimeout: 50 * time.Millisecond,
	}, discardLogger())
	require.NoError(t, err)

	red := "red"
	u := store.AddUser(memstore.User{Name: "Nadia", Email: "nadia@example.com"})
	return &fixture{
		store:  store,
		gw:     gw,
		conf:   conf,
		user:   auth.Identity{UserID: u.ID, Email: u.Email, Role: auth.RoleUser},
		shirt:  store.AddProduct(orders.Product{Title: "Shirt", Price: 500, Images: []string{"shirt-1.png", "shirt-2.png"}, Color: &red}),
		jacket: store.AddProduct(orders.Product{Title: "Jacket", Price: 1200}),
	}
}

func intPtr(n int) *int       { return &n }
func strPtr(s string) *string { return &s }

var shipping = orders.ShippingInput{
	Name:    "Rahim Uddin",
	Phone:   "01711111111",
	Address: "House 1, Road 2",
	City:    "Dhaka",
}

// placeGuestOrder creates a guest order for one shirt and one jacket.
func (f *fixture) placeGuestOrder(t *testing.T) *orders.CreatedOrder {
	t.Helper()
	created, err := f.conf.CreateOrder(context.Background(), auth.Guest(), orders.CreateOrderInput{
		Items: []orders.CartLineInput{
			{ProductID: f.shirt.ID, Quantity: intPtr(2)},
			{ProductID: f.jacket.ID},
		},
		Shipping: shipping,
	})
	require.NoError(t, err)
	return created
}
