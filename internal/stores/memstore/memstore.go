// Package memstore is an in-process orders.Store. Transactions are serialized
// by a single mutex and run against a copy of the state that replaces the
// live state only on commit, so a failed callback leaves nothing behind.
// The mutex is held for the whole callback, including the checkout-session
// call made inside order creation, so every request waits on it. It is meant
// for tests and single-user local runs.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"checkout-service/internal/orders"
)

type User struct {
	ID    string
	Name  string
	Email string
	Role  string
}

type state struct {
	users    map[string]User
	products map[string]orders.Product
	wishlist map[string]orders.WishlistItem
	orders   map[string]orders.Order
	lines    map[string][]orders.OrderLine
	shipping map[string]orders.ShippingInfo
	payments map[string]orders.PaymentInfo
	// insertion order of wishlist rows, for stable reads
	wishSeq []string
}

func newState() *state {
	return &state{
		users:    map[string]User{},
		products: map[string]orders.Product{},
		wishlist: map[string]orders.WishlistItem{},
		orders:   map[string]orders.Order{},
		lines:    map[string][]orders.OrderLine{},
		shipping: map[string]orders.ShippingInfo{},
		payments: map[string]orders.PaymentInfo{},
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.products {
		c.products[k] = v
	}
	for k, v := range s.wishlist {
		c.wishlist[k] = v
	}
	for k, v := range s.orders {
		c.orders[k] = v
	}
	for k, v := range s.lines {
		c.lines[k] = append([]orders.OrderLine(nil), v...)
	}
	for k, v := range s.shipping {
		c.shipping[k] = v
	}
	for k, v := range s.payments {
		c.payments[k] = v
	}
	c.wishSeq = append([]string(nil), s.wishSeq...)
	return c
}

type Store struct {
	mu sync.Mutex
	st *state
}

func New() *Store {
	return &Store{st: newState()}
}

func (s *Store) WithTx(ctx context.Context, fn func(tx orders.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	work := s.st.clone()
	if err := fn(&tx{st: work}); err != nil {
		return err
	}
	s.st = work
	return nil
}

func (s *Store) read() (*state, func()) {
	s.mu.Lock()
	return s.st, s.mu.Unlock
}

func (s *Store) ProductsByID(_ context.Context, ids []string) (map[string]orders.Product, error) {
	st, unlock := s.read()
	defer unlock()
	return st.productsByID(ids), nil
}

func (s *Store) WishlistItems(_ context.Context, userID string) ([]orders.WishlistItem, error) {
	st, unlock := s.read()
	defer unlock()
	return st.wishlistItems(userID), nil
}

func (s *Store) UserIDByEmail(_ context.Context, email string) (string, error) {
	st, unlock := s.read()
	defer unlock()
	for _, u := range st.users {
		if strings.EqualFold(u.Email, email) {
			return u.ID, nil
		}
	}
	return "", orders.ErrNotFound
}

func (s *Store) GetOrder(_ context.Context, id string) (*orders.OrderDetail, error) {
	st, unlock := s.read()
	defer unlock()
	o, ok := st.orders[id]
	if !ok {
		return nil, orders.ErrNotFound
	}
	d := st.detail(o)
	return &d, nil
}

func (s *Store) ListOrders(_ context.Context, q orders.ListQuery) ([]orders.OrderDetail, int, error) {
	st, unlock := s.read()
	defer unlock()

	var matched []orders.OrderDetail
	needle := strings.ToLower(q.Search)
	for _, o := range st.orders {
		d := st.detail(o)
		if needle != "" && !matches(d, needle) {
			continue
		}
		matched = append(matched, d)
	}

	less, ok := sortFuncs[q.SortBy]
	if !ok {
		return nil, 0, orders.ErrInvalidSort
	}
	sort.SliceStable(matched, func(i, j int) bool {
		a, b := matched[i].Order, matched[j].Order
		if q.SortOrder == orders.SortAsc {
			return less(a, b) || (!less(b, a) && a.ID < b.ID)
		}
		return less(b, a) || (!less(a, b) && a.ID < b.ID)
	})

	total := len(matched)
	start := q.Offset()
	if start > total {
		start = total
	}
	end := start + q.Limit
	if end > total {
		end = total
	}
	return append([]orders.OrderDetail{}, matched[start:end]...), total, nil
}

func matches(d orders.OrderDetail, needle string) bool {
	if strings.Contains(strings.ToLower(string(d.Status)), needle) {
		return true
	}
	if d.ShippingInfo == nil {
		return false
	}
	return strings.Contains(strings.ToLower(d.ShippingInfo.Name), needle) ||
		strings.Contains(strings.ToLower(d.ShippingInfo.Phone), needle)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

var sortFuncs = map[string]func(a, b orders.Order) bool{
	orders.SortByID:          func(a, b orders.Order) bool { return a.ID < b.ID },
	orders.SortByUserID:      func(a, b orders.Order) bool { return deref(a.UserID) < deref(b.UserID) },
	orders.SortByTotalAmount: func(a, b orders.Order) bool { return a.TotalAmount < b.TotalAmount },
	orders.SortByStatus:      func(a, b orders.Order) bool { return a.Status < b.Status },
	orders.SortByCreatedAt:   func(a, b orders.Order) bool { return a.CreatedAt.Before(b.CreatedAt) },
	orders.SortByUpdatedAt:   func(a, b orders.Order) bool { return a.UpdatedAt.Before(b.UpdatedAt) },
}

func (st *state) detail(o orders.Order) orders.OrderDetail {
	d := orders.OrderDetail{Order: o, Items: append([]orders.OrderLine{}, st.lines[o.ID]...)}
	if o.UserID != nil {
		if u, ok := st.users[*o.UserID]; ok {
			d.User = &orders.UserSummary{ID: u.ID, Name: u.Name, Email: u.Email}
		}
	}
	if sh, ok := st.shipping[o.ID]; ok {
		d.ShippingInfo = &sh
	}
	if p, ok := st.payments[o.ID]; ok {
		d.PaymentInfo = &p
	}
	return d
}

func (st *state) productsByID(ids []string) map[string]orders.Product {
	out := make(map[string]orders.Product, len(ids))
	for _, id := range ids {
		if p, ok := st.products[id]; ok {
			out[id] = p
		}
	}
	return out
}

func (st *state) wishlistItems(userID string) []orders.WishlistItem {
	var out []orders.WishlistItem
	for _, id := range st.wishSeq {
		if w, ok := st.wishlist[id]; ok && w.UserID == userID {
			out = append(out, w)
		}
	}
	return out
}

// Seeding helpers. They fill in ids when empty and return the stored row.

func (s *Store) AddUser(u User) User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.Role == "" {
		u.Role = "USER"
	}
	s.st.users[u.ID] = u
	return u
}

func (s *Store) AddProduct(p orders.Product) orders.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	s.st.products[p.ID] = p
	return p
}

func (s *Store) AddWishlistItem(w orders.WishlistItem) orders.WishlistItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	if w.Quantity == 0 {
		w.Quantity = 1
	}
	s.st.wishlist[w.ID] = w
	s.st.wishSeq = append(s.st.wishSeq, w.ID)
	return w
}

// Counts reports the number of rows per table.
type Counts struct {
	Orders, Lines, Shipping, Payments, Wishlist int
}

func (s *Store) Counts() Counts {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := Counts{
		Orders:   len(s.st.orders),
		Shipping: len(s.st.shipping),
		Payments: len(s.st.payments),
		Wishlist: len(s.st.wishlist),
	}
	for _, l := range s.st.lines {
		c.Lines += len(l)
	}
	return c
}

type tx struct {
	st *state
}

func (t *tx) ProductsByID(_ context.Context, ids []string) (map[string]orders.Product, error) {
	return t.st.productsByID(ids), nil
}

func (t *tx) WishlistItems(_ context.Context, userID string) ([]orders.WishlistItem, error) {
	return t.st.wishlistItems(userID), nil
}

func (t *tx) InsertOrder(_ context.Context, o *orders.Order) error {
	if _, dup := t.st.orders[o.ID]; dup {
		return errDuplicate("orders", o.ID)
	}
	t.st.orders[o.ID] = *o
	return nil
}

func (t *tx) InsertOrderLines(_ context.Context, lines []orders.OrderLine) error {
	for _, l := range lines {
		if _, ok := t.st.orders[l.OrderID]; !ok {
			return errMissingParent("order_items", l.OrderID)
		}
		t.st.lines[l.OrderID] = append(t.st.lines[l.OrderID], l)
	}
	return nil
}

func (t *tx) InsertShippingInfo(_ context.Context, s *orders.ShippingInfo) error {
	if _, ok := t.st.orders[s.OrderID]; !ok {
		return errMissingParent("shipping_info", s.OrderID)
	}
	if _, dup := t.st.shipping[s.OrderID]; dup {
		return errDuplicate("shipping_info", s.OrderID)
	}
	t.st.shipping[s.OrderID] = *s
	return nil
}

func (t *tx) InsertPaymentInfo(_ context.Context, p *orders.PaymentInfo) error {
	if _, ok := t.st.orders[p.OrderID]; !ok {
		return errMissingParent("payment_info", p.OrderID)
	}
	if _, dup := t.st.payments[p.OrderID]; dup {
		return errDuplicate("payment_info", p.OrderID)
	}
	t.st.payments[p.OrderID] = *p
	return nil
}

func (t *tx) DeleteWishlistItems(_ context.Context, userID string, ids []string) error {
	removed := false
	for _, id := range ids {
		if w, ok := t.st.wishlist[id]; ok && w.UserID == userID {
			delete(t.st.wishlist, id)
			removed = true
		}
	}
	if removed {
		seq := t.st.wishSeq[:0]
		for _, id := range t.st.wishSeq {
			if _, ok := t.st.wishlist[id]; ok {
				seq = append(seq, id)
			}
		}
		t.st.wishSeq = seq
	}
	return nil
}

func (t *tx) OrderForUpdate(_ context.Context, id string) (*orders.Order, error) {
	o, ok := t.st.orders[id]
	if !ok {
		return nil, orders.ErrNotFound
	}
	return &o, nil
}

func (t *tx) PaymentForUpdate(_ context.Context, orderID string) (*orders.PaymentInfo, error) {
	p, ok := t.st.payments[orderID]
	if !ok {
		return nil, orders.ErrNotFound
	}
	return &p, nil
}

func (t *tx) UpdateOrderStatus(_ context.Context, id string, status orders.Status, at time.Time) error {
	o, ok := t.st.orders[id]
	if !ok {
		return orders.ErrNotFound
	}
	o.Status = status
	o.UpdatedAt = at
	t.st.orders[id] = o
	return nil
}

func (t *tx) UpdatePaymentInfo(_ context.Context, p *orders.PaymentInfo) error {
	cur, ok := t.st.payments[p.OrderID]
	if !ok || cur.ID != p.ID {
		return orders.ErrNotFound
	}
	t.st.payments[p.OrderID] = *p
	return nil
}

func (t *tx) DeleteOrder(_ context.Context, id string) error {
	if _, ok := t.st.orders[id]; !ok {
		return orders.ErrNotFound
	}
	delete(t.st.lines, id)
	delete(t.st.shipping, id)
	delete(t.st.payments, id)
	delete(t.st.orders, id)
	return nil
}
