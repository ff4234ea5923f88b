package orders

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"checkout-service/internal/auth"
	"checkout-service/internal/metrics"
	"checkout-service/internal/payments"
	"checkout-service/pkg/ctxmanage"
	"checkout-service/pkg/logkey"
)

const tracerName = "checkout-service/orders"

type Options struct {
	CartSource     CartSource
	DefaultCountry string
	SuccessURL     string
	CancelURL      string
	// GatewayTimeout bounds checkout-session creation. Past it the order
	// transaction rolls back; there is no retry.
	GatewayTimeout time.Duration
	Method         payments.Method
	// TracerProvider defaults to the global provider.
	TracerProvider trace.TracerProvider
}

// Conf owns the order lifecycle: creation, webhook reconciliation and admin
// operations. It holds no mutable state of its own; every write goes through
// a Store transaction.
type Conf struct {
	store   Store
	gateway payments.Gateway
	carts   *Materializer
	opts    Options
	log     *slog.Logger
	tracer  trace.Tracer

	now   func() time.Time
	newID func() string
}

func NewConf(store Store, gateway payments.Gateway, opts Options, log *slog.Logger) (*Conf, error) {
	if store == nil {
		return nil, fmt.Errorf("store is nil")
	}
	if gateway == nil {
		return nil, fmt.Errorf("payment gateway is nil")
	}
	if log == nil {
		log = slog.Default()
	}
	if opts.GatewayTimeout <= 0 {
		opts.GatewayTimeout = 10 * time.Second
	}
	if opts.Method == "" {
		opts.Method = payments.MethodStripe
	}
	tp := opts.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &Conf{
		store:   store,
		gateway: gateway,
		carts:   NewMaterializer(store, opts.CartSource),
		opts:    opts,
		log:     log,
		tracer:  tp.Tracer(tracerName),
		now:     func() time.Time { return time.Now().UTC() },
		newID:   uuid.NewString,
	}, nil
}

type ShippingInput struct {
	Name       string
	Phone      string
	Address    string
	City       string
	PostalCode string
	Country    string
}

type CreateOrderInput struct {
	Items    []CartLineInput
	Shipping ShippingInput
}

type CreatedOrder struct {
	Order        Order        `json:"order"`
	ShippingInfo ShippingInfo `json:"shippingInfo"`
	Items        []OrderLine  `json:"items"`
	PaymentURL   string       `json:"paymentUrl"`
	PaymentInfo  PaymentInfo  `json:"-"`
	SessionID    string       `json:"-"`
	FromWishlist bool         `json:"-"`
}

// CreateOrder materializes the cart and writes order, lines, shipping and a
// pending payment row in one transaction together with the gateway checkout
// session. If the gateway call fails nothing is persisted.
func (c *Conf) CreateOrder(ctx context.Context, id auth.Identity, in CreateOrderInput) (*CreatedOrder, error) {
	ctx, span := c.tracer.Start(ctx, "orders.CreateOrder",
		trace.WithAttributes(attribute.String("request.trace_id", ctxmanage.TraceIdFromContext(ctx))))
	defer span.End()

	cart, err := c.carts.Materialize(ctx, id, in.Items)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	now := c.now()
	order := Order{
		ID:          c.newID(),
		TotalAmount: cart.Total,
		Status:      StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if !id.IsGuest() {
		uid := id.UserID
		order.UserID = &uid
	}

	lines := make([]OrderLine, 0, len(cart.Lines))
	lineItems := make([]payments.LineItem, 0, len(cart.Lines))
	for _, l := range cart.Lines {
		lines = append(lines, OrderLine{
			ID:        c.newID(),
			OrderID:   order.ID,
			ProductID: l.ProductID,
			Title:     l.Title,
			Price:     l.Price,
			Quantity:  l.Quantity,
			Size:      l.Size,
			Color:     l.Color,
			Image:     l.Image,
		})
		lineItems = append(lineItems, payments.LineItem{
			Name:       l.Title,
			UnitAmount: l.Price,
			Quantity:   int64(l.Quantity),
		})
	}

	country := in.Shipping.Country
	if country == "" {
		country = c.opts.DefaultCountry
	}
	shipping := ShippingInfo{
		ID:         c.newID(),
		OrderID:    order.ID,
		Name:       in.Shipping.Name,
		Phone:      in.Shipping.Phone,
		Address:    in.Shipping.Address,
		City:       in.Shipping.City,
		PostalCode: in.Shipping.PostalCode,
		Country:    country,
	}

	payment := PaymentInfo{
		ID:        c.newID(),
		OrderID:   order.ID,
		Method:    c.opts.Method,
		Status:    PaymentPending,
		TxnID:     uuid.NewString(),
		CreatedAt: now,
		UpdatedAt: now,
	}

	span.SetAttributes(attribute.String("order.id", order.ID), attribute.Int("order.lines", len(lines)))

	var sess *payments.CheckoutSession
	err = c.store.WithTx(ctx, func(tx Tx) error {
		if err := tx.InsertOrder(ctx, &order); err != nil {
			return fmt.Errorf("inserting order: %w", err)
		}
		if err := tx.InsertOrderLines(ctx, lines); err != nil {
			return fmt.Errorf("inserting order lines: %w", err)
		}
		if err := tx.InsertShippingInfo(ctx, &shipping); err != nil {
			return fmt.Errorf("inserting shipping info: %w", err)
		}
		if err := tx.InsertPaymentInfo(ctx, &payment); err != nil {
			return fmt.Errorf("inserting payment info: %w", err)
		}
		if cart.Cleanup != nil {
			if err := cart.Cleanup(ctx, tx); err != nil {
				return fmt.Errorf("clearing wishlist: %w", err)
			}
		}

		// Last step before commit, so a failure here leaves no rows behind.
		sess, err = c.openCheckout(ctx, lineItems, order.ID, payment.ID)
		return err
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	source := "cart"
	if cart.FromWishlist() {
		source = "wishlist"
	}
	metrics.OrdersCreated.WithLabelValues(source).Inc()

	return &CreatedOrder{
		Order:        order,
		ShippingInfo: shipping,
		Items:        lines,
		PaymentURL:   sess.RedirectURL,
		PaymentInfo:  payment,
		SessionID:    sess.SessionID,
		FromWishlist: cart.FromWishlist(),
	}, nil
}

func (c *Conf) openCheckout(ctx context.Context, items []payments.LineItem, orderID, paymentID string) (*payments.CheckoutSession, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.GatewayTimeout)
	defer cancel()

	start := time.Now()
	sess, err := c.gateway.CreateCheckoutSession(ctx, payments.CheckoutRequest{
		LineItems:      items,
		Metadata:       payments.Metadata{OrderID: orderID, PaymentInfoID: paymentID},
		SuccessURL:     c.opts.SuccessURL,
		CancelURL:      c.opts.CancelURL,
		IdempotencyKey: paymentID,
	})
	metrics.RecordGatewayCall(err, time.Since(start))
	if err != nil {
		c.log.ErrorContext(ctx, "checkout session creation failed, rolling back order",
			slog.String(logkey.TraceID, ctxmanage.TraceIdFromContext(ctx)),
			slog.String(logkey.OrderID, orderID), slog.String(logkey.ERROR, err.Error()))
		return nil, fmt.Errorf("%w: %w", payments.ErrGatewayUnavailable, err)
	}
	return sess, nil
}
