package handlers

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"checkout-service/internal/orders"
	"checkout-service/internal/payments"
	"checkout-service/internal/stores/kafka"
	"checkout-service/pkg/ctxmanage"
	"checkout-service/pkg/logkey"
)

const signatureHeader = "Stripe-Signature"

// PaymentWebhook verifies and applies a gateway event. Only a bad signature or
// an unreadable body is rejected; every other event is acknowledged so the
// gateway does not redeliver it forever.
func (h *Handler) PaymentWebhook(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	const MaxBodyBytes = int64(65536)

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxBodyBytes)
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		slog.Error("failed to read webhook body", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}

	event, err := h.gw.ParseWebhookEvent(body, c.GetHeader(signatureHeader))
	if err != nil {
		abortWithError(c, traceId, "webhook rejected", err)
		return
	}

	ctx := c.Request.Context()
	res, err := h.o.ApplyPaymentEvent(ctx, event)
	if err != nil {
		// storage failure: let the gateway retry
		abortWithError(c, traceId, "failed to apply webhook event", err)
		return
	}

	slog.Info("webhook processed", slog.String(logkey.TraceID, traceId),
		slog.String(logkey.EventID, event.ID), slog.String(logkey.Event, event.GatewayType),
		slog.String(logkey.OrderID, event.OrderID), slog.String("outcome", string(res.Outcome)))

	if res.Outcome == orders.OutcomeApplied {
		h.publishPaymentOutcome(c, traceId, event, res)
	}

	c.JSON(http.StatusOK, gin.H{
		"received": true,
		"outcome":  res.Outcome,
	})
}

func (h *Handler) publishPaymentOutcome(c *gin.Context, traceId string, event *payments.Event, res *orders.Reconciliation) {
	p := res.PaymentInfo
	switch {
	case event.Type == payments.EventCheckoutCompleted && p.Status == orders.PaymentPaid:
		h.publish(c.Request.Context(), traceId, kafka.TopicOrderPaid, res.Order.ID, kafka.OrderPaidEvent{
			OrderId:     res.Order.ID,
			PaymentId:   p.ID,
			TxnId:       p.TxnID,
			TotalAmount: res.Order.TotalAmount,
			CreatedAt:   event.OccurredAt,
		})
	case event.Type == payments.EventPaymentFailed:
		h.publish(c.Request.Context(), traceId, kafka.TopicOrderPaymentFailed, res.Order.ID, kafka.OrderPaymentFailedEvent{
			OrderId:   res.Order.ID,
			PaymentId: p.ID,
			TxnId:     p.TxnID,
			CreatedAt: event.OccurredAt,
		})
	}
}
