package orders

import (
	"time"

	"checkout-service/internal/payments"
)

// Outcome is what the reconciler did with one webhook event.
type Outcome string

const (
	OutcomeApplied      Outcome = "applied"
	OutcomeUnchanged    Outcome = "unchanged"
	OutcomeIgnored      Outcome = "ignored"
	OutcomeUnknownOrder Outcome = "unknown_order"
	OutcomeStale        Outcome = "stale"
)

// orderTransitions maps an event type and the current order status to the
// next order status. Statuses missing from the inner map are held as they are:
// once fulfilment has started a payment event no longer moves the order.
var orderTransitions = map[payments.EventType]map[Status]Status{
	payments.EventCheckoutCompleted: {
		StatusPending:   StatusConfirmed,
		StatusConfirmed: StatusConfirmed,
	},
	payments.EventPaymentFailed: {
		StatusPending:   StatusPending,
		StatusConfirmed: StatusPending,
	},
}

type transition struct {
	order   Status
	payment PaymentStatus
}

func paymentTarget(ev *payments.Event) PaymentStatus {
	if ev.Type == payments.EventCheckoutCompleted && ev.Paid {
		return PaymentPaid
	}
	return PaymentUnpaid
}

func regresses(from, to transition) bool {
	if from.order == StatusConfirmed && to.order == StatusPending {
		return true
	}
	return from.payment == PaymentPaid && to.payment != PaymentPaid
}

// decide returns the target state for ev, or OutcomeStale when the event must
// not be applied. Events older than the last applied one are stale. A
// regressing transition also needs the event to be strictly newer, so equal
// timestamps never un-confirm an order.
func decide(cur Status, p *PaymentInfo, ev *payments.Event) (transition, Outcome) {
	from := transition{order: cur, payment: p.Status}

	table, ok := orderTransitions[ev.Type]
	if !ok {
		return from, OutcomeIgnored
	}
	if p.LastEventAt != nil && ev.OccurredAt.Before(*p.LastEventAt) {
		return from, OutcomeStale
	}

	to := transition{order: cur, payment: paymentTarget(ev)}
	if next, ok := table[cur]; ok {
		to.order = next
	}

	if regresses(from, to) && p.LastEventAt != nil && !ev.OccurredAt.After(*p.LastEventAt) {
		return from, OutcomeStale
	}
	return to, OutcomeApplied
}

func laterOf(a *time.Time, b time.Time) time.Time {
	if a != nil && a.After(b) {
		return *a
	}
	return b
}
