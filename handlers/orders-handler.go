package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"checkout-service/internal/auth"
	"checkout-service/internal/orders"
	"checkout-service/internal/stores/kafka"
	"checkout-service/pkg/ctxmanage"
	"checkout-service/pkg/logkey"
)

type CartItemRequest struct {
	ProductID string  `json:"productId" validate:"required"`
	Quantity  *int    `json:"quantity" validate:"omitempty,gt=0,lte=999999"`
	Size      *string `json:"size"`
	Color     *string `json:"color"`
}

type ShippingRequest struct {
	Name       string `json:"name" validate:"required"`
	Phone      string `json:"phone" validate:"required"`
	Address    string `json:"address" validate:"required"`
	City       string `json:"city" validate:"required"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

// CreateOrderRequest carries an explicit cart for guests. Signed-in users may
// leave Items empty to order their wishlist.
type CreateOrderRequest struct {
	Items        []CartItemRequest `json:"items" validate:"omitempty,dive"`
	ShippingInfo ShippingRequest   `json:"shippingInfo"`
}

func (r CreateOrderRequest) input() orders.CreateOrderInput {
	items := make([]orders.CartLineInput, 0, len(r.Items))
	for _, it := range r.Items {
		items = append(items, orders.CartLineInput{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			Size:      it.Size,
			Color:     it.Color,
		})
	}
	return orders.CreateOrderInput{
		Items: items,
		Shipping: orders.ShippingInput{
			Name:       r.ShippingInfo.Name,
			Phone:      r.ShippingInfo.Phone,
			Address:    r.ShippingInfo.Address,
			City:       r.ShippingInfo.City,
			PostalCode: r.ShippingInfo.PostalCode,
			Country:    r.ShippingInfo.Country,
		},
	}
}

func validationMessage(err error) string {
	var vErrs validator.ValidationErrors
	if !errors.As(err, &vErrs) {
		return "Validation failed"
	}
	msgs := make([]string, 0, len(vErrs))
	for _, vErr := range vErrs {
		switch vErr.Tag() {
		case "required":
			msgs = append(msgs, vErr.Namespace()+" value missing")
		case "gt":
			msgs = append(msgs, vErr.Namespace()+" must be greater than "+vErr.Param())
		case "lte":
			msgs = append(msgs, vErr.Namespace()+" must be at most "+vErr.Param())
		default:
			msgs = append(msgs, fmt.Sprintf("%s: %s", vErr.Namespace(), vErr.Tag()))
		}
	}
	return strings.Join(msgs, "; ")
}

func (h *Handler) CreateOrder(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	ctx := c.Request.Context()

	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.Info("failed to bind order request", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := h.validate.Struct(req); err != nil {
		slog.Info("validation failed", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": validationMessage(err)})
		return
	}

	id := auth.IdentityFrom(ctx)
	created, err := h.o.CreateOrder(ctx, id, req.input())
	if err != nil {
		abortWithError(c, traceId, "failed to create order", err)
		return
	}

	slog.Info("order created", slog.String(logkey.TraceID, traceId),
		slog.String(logkey.OrderID, created.Order.ID), slog.String(logkey.UserID, id.UserID),
		slog.Bool("fromWishlist", created.FromWishlist))

	lines := make([]kafka.OrderLineEvent, 0, len(created.Items))
	for _, l := range created.Items {
		lines = append(lines, kafka.OrderLineEvent{ProductId: l.ProductID, Quantity: l.Quantity, Price: l.Price})
	}
	h.publish(ctx, traceId, kafka.TopicOrderCreated, created.Order.ID, kafka.OrderCreatedEvent{
		OrderId:     created.Order.ID,
		UserId:      created.Order.UserID,
		TotalAmount: created.Order.TotalAmount,
		Items:       lines,
		CreatedAt:   created.Order.CreatedAt,
	})

	respond(c, http.StatusCreated, "Order created successfully", created)
}

const publishTimeout = 5 * time.Second

// publish sends a domain event after the owning transaction committed. It
// never fails the request; a lost event is only logged.
func (h *Handler) publish(ctx context.Context, traceId, topic, key string, event any) {
	if !h.k.Enabled() {
		return
	}
	jsonData, err := json.Marshal(event)
	if err != nil {
		slog.Error("failed to marshal event", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := h.k.ProduceMessage(ctx, topic, []byte(key), jsonData); err != nil {
		slog.Error("failed to produce message", slog.String(logkey.TraceID, traceId),
			slog.String("topic", topic), slog.String(logkey.ERROR, err.Error()))
		return
	}
	slog.Info("message produced", slog.String(logkey.TraceID, traceId), slog.String("topic", topic), slog.String(logkey.OrderID, key))
}
