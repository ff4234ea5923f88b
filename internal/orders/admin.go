package orders

import (
	"context"
	"fmt"
	"log/slog"

	"checkout-service/pkg/logkey"
)

// UpdateStatus is the manual admin transition. PENDING is never assignable:
// it is only the initial state or the result of a failed payment.
func (c *Conf) UpdateStatus(ctx context.Context, id string, status Status) (*Order, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	if status == StatusPending {
		return nil, ErrInvalidTransition
	}

	var updated *Order
	err := c.store.WithTx(ctx, func(tx Tx) error {
		o, err := tx.OrderForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if o.Status == status {
			updated = o
			return nil
		}
		now := c.now()
		if err := tx.UpdateOrderStatus(ctx, id, status, now); err != nil {
			return fmt.Errorf("updating order status: %w", err)
		}
		o.Status = status
		o.UpdatedAt = now
		updated = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	c.log.InfoContext(ctx, "order status changed", slog.String(logkey.OrderID, id), slog.String("status", string(status)))
	return updated, nil
}

// DeleteOrder removes the order with its lines, shipping and payment rows.
func (c *Conf) DeleteOrder(ctx context.Context, id string) error {
	err := c.store.WithTx(ctx, func(tx Tx) error {
		if _, err := tx.OrderForUpdate(ctx, id); err != nil {
			return err
		}
		return tx.DeleteOrder(ctx, id)
	})
	if err != nil {
		return err
	}
	c.log.InfoContext(ctx, "order deleted", slog.String(logkey.OrderID, id))
	return nil
}

func (c *Conf) GetOrder(ctx context.Context, id string) (*OrderDetail, error) {
	return c.store.GetOrder(ctx, id)
}

// ListOrders returns one page of orders and the total number matching q.
func (c *Conf) ListOrders(ctx context.Context, q ListQuery) ([]OrderDetail, int, ListQuery, error) {
	q, err := q.Normalize()
	if err != nil {
		return nil, 0, q, err
	}
	rows, total, err := c.store.ListOrders(ctx, q)
	if err != nil {
		return nil, 0, q, fmt.Errorf("listing orders: %w", err)
	}
	return rows, total, q, nil
}
