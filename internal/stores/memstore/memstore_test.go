package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"checkout-service/internal/orders"
)

func seedOrder(t *testing.T, s *Store, id, name string, total int64, created time.Time) {
	t.Helper()
	err := s.WithTx(context.Background(), func(tx orders.Tx) error {
		if err := tx.InsertOrder(context.Background(), &orders.Order{
			ID: id, TotalAmount: total, Status: orders.StatusPending, CreatedAt: created, UpdatedAt: created,
		}); err != nil {
			return err
		}
		return tx.InsertShippingInfo(context.Background(), &orders.ShippingInfo{
			ID: id + "-s", OrderID: id, Name: name, Phone: "01700000000",
		})
	})
	require.NoError(t, err)
}

func TestWithTxRollsBackOnError(t *testing.T) {
	s := New()
	boom := errors.New("boom")

	err := s.WithTx(context.Background(), func(tx orders.Tx) error {
		require.NoError(t, tx.InsertOrder(context.Background(), &orders.Order{ID: "o1"}))
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, Counts{}, s.Counts())
}

func TestDeleteOrderRemovesDependents(t *testing.T) {
	s := New()
	seedOrder(t, s, "o1", "Rahim", 100, time.Now())
	require.NoError(t, s.WithTx(context.Background(), func(tx orders.Tx) error {
		if err := tx.InsertOrderLines(context.Background(), []orders.OrderLine{{ID: "l1", OrderID: "o1", Quantity: 1}}); err != nil {
			return err
		}
		return tx.InsertPaymentInfo(context.Background(), &orders.PaymentInfo{ID: "p1", OrderID: "o1"})
	}))

	require.NoError(t, s.WithTx(context.Background(), func(tx orders.Tx) error {
		return tx.DeleteOrder(context.Background(), "o1")
	}))
	assert.Equal(t, Counts{}, s.Counts())
}

func TestPaymentInfoIsUniquePerOrder(t *testing.T) {
	s := New()
	seedOrder(t, s, "o1", "Rahim", 100, time.Now())

	insert := func(id string) error {
		return s.WithTx(context.Background(), func(tx orders.Tx) error {
			return tx.InsertPaymentInfo(context.Background(), &orders.PaymentInfo{ID: id, OrderID: "o1"})
		})
	}
	require.NoError(t, insert("p1"))
	assert.Error(t, insert("p2"))
}

func TestListOrders(t *testing.T) {
	s := New()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	seedOrder(t, s, "a", "Karim Uddin", 300, base)
	seedOrder(t, s, "b", "Salma Begum", 100, base.Add(time.Hour))
	seedOrder(t, s, "c", "Karima Akter", 200, base.Add(2*time.Hour))

	tests := []struct {
		name    string
		q       orders.ListQuery
		wantIDs []string
		total   int
	}{
		{
			name:    "default newest first",
			q:       orders.ListQuery{},
			wantIDs: []string{"c", "b", "a"},
			total:   3,
		},
		{
			name:    "search by shipping name is case insensitive",
			q:       orders.ListQuery{Search: "KARIM"},
			wantIDs: []string{"c", "a"},
			total:   2,
		},
		{
			name:    "sort by total ascending",
			q:       orders.ListQuery{SortBy: orders.SortByTotalAmount, SortOrder: orders.SortAsc},
			wantIDs: []string{"b", "c", "a"},
			total:   3,
		},
		{
			name:    "second page",
			q:       orders.ListQuery{Page: 2, Limit: 2},
			wantIDs: []string{"a"},
			total:   3,
		},
		{
			name:  "wildcard characters match literally",
			q:     orders.ListQuery{Search: "_"},
			total: 0,
		},
		{
			name:    "search by status",
			q:       orders.ListQuery{Search: "pend"},
			wantIDs: []string{"c", "b", "a"},
			total:   3,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			q, err := tc.q.Normalize()
			require.NoError(t, err)

			rows, total, err := s.ListOrders(context.Background(), q)
			require.NoError(t, err)
			assert.Equal(t, tc.total, total)

			var ids []string
			for _, r := range rows {
				ids = append(ids, r.ID)
			}
			assert.Equal(t, tc.wantIDs, ids)
		})
	}
}

func TestWishlistDeleteOnlyTouchesOwner(t *testing.T) {
	s := New()
	mine := s.AddWishlistItem(orders.WishlistItem{UserID: "u1", ProductID: "p1"})
	theirs := s.AddWishlistItem(orders.WishlistItem{UserID: "u2", ProductID: "p1"})

	require.NoError(t, s.WithTx(context.Background(), func(tx orders.Tx) error {
		return tx.DeleteWishlistItems(context.Background(), "u1", []string{mine.ID, theirs.ID})
	}))

	left, err := s.WishlistItems(context.Background(), "u2")
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, theirs.ID, left[0].ID)
	assert.Equal(t, 1, s.Counts().Wishlist)
	assert.Equal(t, []string{theirs.ID}, s.st.wishSeq)
}
