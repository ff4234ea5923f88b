package orders

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"reflect"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"checkout-service/internal/metrics"
	"checkout-service/internal/payments"
	"checkout-service/pkg/ctxmanage"
	"checkout-service/pkg/logkey"
)

// Reconciliation is the result of one webhook event. Order and PaymentInfo
// are the rows after the event, nil when the order could not be resolved.
type Reconciliation struct {
	Outcome     Outcome
	Order       *Order
	PaymentInfo *PaymentInfo
}

// ApplyPaymentEvent advances an order and its payment from a verified gateway
// event. Unknown event types and unresolvable orders are reported through the
// outcome, never as errors, so the gateway stops redelivering them. Only a
// storage failure returns an error.
func (c *Conf) ApplyPaymentEvent(ctx context.Context, ev *payments.Event) (*Reconciliation, error) {
	ctx, span := c.tracer.Start(ctx, "orders.ApplyPaymentEvent")
	defer span.End()
	span.SetAttributes(
		attribute.String("event.id", ev.ID),
		attribute.String("event.type", string(ev.Type)),
		attribute.String("order.id", ev.OrderID),
		attribute.String("request.trace_id", ctxmanage.TraceIdFromContext(ctx)),
	)

	res, err := c.applyPaymentEvent(ctx, ev)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		metrics.WebhookEvents.WithLabelValues(string(ev.Type), "error").Inc()
		return nil, err
	}
	span.SetAttributes(attribute.String("reconcile.outcome", string(res.Outcome)))
	metrics.WebhookEvents.WithLabelValues(string(ev.Type), string(res.Outcome)).Inc()
	if res.Outcome == OutcomeApplied && res.Order.Status == StatusConfirmed {
		metrics.OrdersConfirmed.Inc()
	}
	return res, nil
}

func (c *Conf) applyPaymentEvent(ctx context.Context, ev *payments.Event) (*Reconciliation, error) {
	log := c.log.With(
		slog.String(logkey.TraceID, ctxmanage.TraceIdFromContext(ctx)),
		slog.String(logkey.EventID, ev.ID),
		slog.String(logkey.Event, ev.GatewayType),
		slog.String(logkey.OrderID, ev.OrderID),
	)

	if ev.Type == payments.EventUnknown {
		log.InfoContext(ctx, "ignoring unhandled webhook event type")
		return &Reconciliation{Outcome: OutcomeIgnored}, nil
	}
	if ev.OrderID == "" {
		log.WarnContext(ctx, "webhook event carries no order id")
		return &Reconciliation{Outcome: OutcomeUnknownOrder}, nil
	}

	res := &Reconciliation{}
	err := c.store.WithTx(ctx, func(tx Tx) error {
		order, err := tx.OrderForUpdate(ctx, ev.OrderID)
		if err != nil {
			return err
		}
		payment, err := tx.PaymentForUpdate(ctx, ev.OrderID)
		if err != nil {
			return err
		}

		to, outcome := decide(order.Status, payment, ev)
		res.Order, res.PaymentInfo = order, payment
		if outcome != OutcomeApplied {
			res.Outcome = outcome
			return nil
		}

		txnID := payment.TxnID
		if ev.IntentID != "" {
			txnID = ev.IntentID
		}
		if to.order == order.Status && to.payment == payment.Status && txnID == payment.TxnID &&
			payment.LastEventAt != nil && payment.LastEventAt.Equal(ev.OccurredAt) &&
			sameJSON(payment.GatewayData, ev.Payload) {
			res.Outcome = OutcomeUnchanged
			return nil
		}

		now := c.now()
		if to.order != order.Status {
			if err := tx.UpdateOrderStatus(ctx, order.ID, to.order, now); err != nil {
				return fmt.Errorf("updating order status: %w", err)
			}
			order.Status = to.order
			order.UpdatedAt = now
		}

		last := laterOf(payment.LastEventAt, ev.OccurredAt)
		payment.Status = to.payment
		payment.TxnID = txnID
		payment.GatewayData = ev.Payload
		payment.LastEventAt = &last
		payment.UpdatedAt = now
		if err := tx.UpdatePaymentInfo(ctx, payment); err != nil {
			return fmt.Errorf("updating payment info: %w", err)
		}
		res.Outcome = OutcomeApplied
		return nil
	})
	if errors.Is(err, ErrNotFound) {
		log.WarnContext(ctx, "webhook event for unknown order")
		return &Reconciliation{Outcome: OutcomeUnknownOrder}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("applying %s event %s: %w", ev.Type, ev.ID, err)
	}

	switch res.Outcome {
	case OutcomeStale:
		log.WarnContext(ctx, "stale webhook event not applied",
			slog.String("status", string(res.Order.Status)),
			slog.String("paymentStatus", string(res.PaymentInfo.Status)))
	case OutcomeApplied:
		log.InfoContext(ctx, "webhook event applied",
			slog.String("status", string(res.Order.Status)),
			slog.String("paymentStatus", string(res.PaymentInfo.Status)))
	}
	return res, nil
}

// sameJSON compares documents by value. Stored payloads may come back
// re-encoded by the database.
func sameJSON(a, b []byte) bool {
	if bytes.Equal(a, b) {
		return true
	}
	var va, vb any
	if json.Unmarshal(a, &va) != nil || json.Unmarshal(b, &vb) != nil {
		return false
	}
	return reflect.DeepEqual(va, vb)
}
