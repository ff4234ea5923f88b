package orders_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"checkout-service/internal/orders"
	"checkout-service/internal/stores/memstore"
)

func TestUpdateStatus(t *testing.T) {
	f := newFixture(t, orders.CartEither)
	id := f.placeGuestOrder(t).Order.ID

	tests := []struct {
		name    string
		id      string
		status  orders.Status
		wantErr error
	}{
		{"unknown status", id, orders.Status("LOST"), orders.ErrInvalidStatus},
		{"pending is not assignable", id, orders.StatusPending, orders.ErrInvalidTransition},
		{"missing order", "no-such-order", orders.StatusShipped, orders.ErrNotFound},
		{"processing", id, orders.StatusProcessing, nil},
		{"cancelled", id, orders.StatusCancelled, nil},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			o, err := f.conf.UpdateStatus(context.Background(), tc.id, tc.status)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.status, o.Status)

			stored, err := f.conf.GetOrder(context.Background(), tc.id)
			require.NoError(t, err)
			assert.Equal(t, tc.status, stored.Status)
		})
	}
}

func TestDeleteOrder(t *testing.T) {
	f := newFixture(t, orders.CartEither)
	keep := f.placeGuestOrder(t)
	drop := f.placeGuestOrder(t)

	require.NoError(t, f.conf.DeleteOrder(context.Background(), drop.Order.ID))

	assert.Equal(t, memstore.Counts{Orders: 1, Lines: 2, Shipping: 1, Payments: 1}, f.store.Counts())
	_, err := f.conf.GetOrder(context.Background(), drop.Order.ID)
	require.ErrorIs(t, err, orders.ErrNotFound)
	_, err = f.conf.GetOrder(context.Background(), keep.Order.ID)
	require.NoError(t, err)
}

func TestDeleteMissingOrder(t *testing.T) {
	f := newFixture(t, orders.CartEither)
	f.placeGuestOrder(t)
	before := f.store.Counts()

	err := f.conf.DeleteOrder(context.Background(), "no-such-order")
	require.ErrorIs(t, err, orders.ErrNotFound)
	assert.Equal(t, before, f.store.Counts())
}

func TestListOrders(t *testing.T) {
	f := newFixture(t, orders.CartEither)
	for i := 0; i < 3; i++ {
		f.placeGuestOrder(t)
	}

	rows, total, q, err := f.conf.ListOrders(context.Background(), orders.ListQuery{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, rows, 2)
	assert.Equal(t, 1, q.Page)
	assert.Equal(t, orders.SortByCreatedAt, q.SortBy)
	assert.Equal(t, orders.SortDesc, q.SortOrder)

	rows, _, _, err = f.conf.ListOrders(context.Background(), orders.ListQuery{Search: "rahim"})
	require.NoError(t, err)
	assert.Len(t, rows, 3)
	for _, r := range rows {
		require.NotNil(t, r.ShippingInfo)
		assert.Len(t, r.Items, 2)
	}

	_, _, _, err = f.conf.ListOrders(context.Background(), orders.ListQuery{SortBy: "password"})
	require.ErrorIs(t, err, orders.ErrInvalidSort)
}

func TestListQueryNormalize(t *testing.T) {
	q, err := orders.ListQuery{Page: -1, Limit: 500}.Normalize()
	require.NoError(t, err)
	assert.Equal(t, orders.DefaultPage, q.Page)
	assert.Equal(t, orders.MaxLimit, q.Limit)
	assert.Equal(t, 0, q.Offset())

	_, err = orders.ListQuery{SortOrder: "sideways"}.Normalize()
	require.ErrorIs(t, err, orders.ErrInvalidSort)
}
