package orders

import (
	"context"
	"fmt"
	"math"

	"checkout-service/internal/auth"
)

// CartSource decides where an order's lines come from.
type CartSource string

const (
	// CartFromWishlist: signed-in users always order their wishlist, guests send a cart.
	CartFromWishlist CartSource = "wishlist"
	// CartExplicit: everyone sends a cart; wishlists are never read or cleared.
	CartExplicit CartSource = "explicit"
	// CartEither: signed-in users order the cart they send, or their wishlist
	// when they send none.
	CartEither CartSource = "either"
)

func ParseCartSource(s string) (CartSource, error) {
	switch CartSource(s) {
	case CartFromWishlist, CartExplicit, CartEither:
		return CartSource(s), nil
	}
	return "", fmt.Errorf("unknown cart source %q", s)
}

// MaxLineQuantity is the largest quantity one order line may carry, after
// duplicate lines are merged. It matches the gateway's per-line limit.
const MaxLineQuantity = 999_999

// CartLineInput is one client-supplied cart line. Only the product id, the
// chosen variant and the quantity are taken from the client.
type CartLineInput struct {
	ProductID string
	Quantity  *int
	Size      *string
	Color     *string
}

// LineSpec is a priced line, authoritative against the catalog.
type LineSpec struct {
	ProductID string
	Title     string
	Price     int64
	Quantity  int
	Size      *string
	Color     *string
	Image     *string
}

func (l LineSpec) Subtotal() int64 { return l.Price * int64(l.Quantity) }

type Cart struct {
	Lines []LineSpec
	Total int64
	// Cleanup runs inside the order transaction after every row is written.
	// Nil when the cart did not come from a wishlist.
	Cleanup func(ctx context.Context, tx Tx) error
}

func (c *Cart) FromWishlist() bool { return c.Cleanup != nil }

type Materializer struct {
	reader Reader
	source CartSource
}

func NewMaterializer(reader Reader, source CartSource) *Materializer {
	if source == "" {
		source = CartEither
	}
	return &Materializer{reader: reader, source: source}
}

func (m *Materializer) useWishlist(id auth.Identity, items []CartLineInput) bool {
	if id.IsGuest() {
		return false
	}
	switch m.source {
	case CartFromWishlist:
		return true
	case CartEither:
		return len(items) == 0
	default:
		return false
	}
}

// Materialize prices the cart against the current catalog.
func (m *Materializer) Materialize(ctx context.Context, id auth.Identity, items []CartLineInput) (*Cart, error) {
	if m.useWishlist(id, items) {
		return m.fromWishlist(ctx, id.UserID)
	}
	return m.fromInput(ctx, items)
}

func (m *Materializer) fromWishlist(ctx context.Context, userID string) (*Cart, error) {
	wished, err := m.reader.WishlistItems(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("reading wishlist: %w", err)
	}
	if len(wished) == 0 {
		return nil, ErrEmptyCart
	}

	inputs := make([]CartLineInput, 0, len(wished))
	ids := make([]string, 0, len(wished))
	for _, w := range wished {
		qty := w.Quantity
		inputs = append(inputs, CartLineInput{ProductID: w.ProductID, Quantity: &qty, Size: w.Size, Color: w.Color})
		ids = append(ids, w.ID)
	}

	cart, err := m.price(ctx, inputs)
	if err != nil {
		return nil, err
	}
	cart.Cleanup = func(ctx context.Context, tx Tx) error {
		return tx.DeleteWishlistItems(ctx, userID, ids)
	}
	return cart, nil
}

func (m *Materializer) fromInput(ctx context.Context, items []CartLineInput) (*Cart, error) {
	if len(items) == 0 {
		return nil, ErrEmptyCart
	}
	return m.price(ctx, items)
}

type lineKey struct {
	productID, size, color string
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func (m *Materializer) price(ctx context.Context, items []CartLineInput) (*Cart, error) {
	ids := make([]string, 0, len(items))
	for _, it := range items {
		if it.Quantity != nil && (*it.Quantity <= 0 || *it.Quantity > MaxLineQuantity) {
			return nil, fmt.Errorf("%w: product %s", ErrInvalidQuantity, it.ProductID)
		}
		if it.ProductID == "" {
			return nil, ErrProductNotFound
		}
		ids = append(ids, it.ProductID)
	}

	products, err := m.reader.ProductsByID(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("reading products: %w", err)
	}

	cart := &Cart{}
	index := make(map[lineKey]int)
	for _, it := range items {
		p, ok := products[it.ProductID]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrProductNotFound, it.ProductID)
		}
		qty := 1
		if it.Quantity != nil {
			qty = *it.Quantity
		}
		color := it.Color
		if color == nil {
			color = p.Color
		}

		key := lineKey{p.ID, deref(it.Size), deref(color)}
		if i, seen := index[key]; seen {
			if cart.Lines[i].Quantity+qty > MaxLineQuantity {
				return nil, fmt.Errorf("%w: product %s exceeds %d", ErrInvalidQuantity, p.ID, MaxLineQuantity)
			}
			cart.Lines[i].Quantity += qty
			continue
		}
		var image *string
		if len(p.Images) > 0 {
			image = &p.Images[0]
		}
		index[key] = len(cart.Lines)
		cart.Lines = append(cart.Lines, LineSpec{
			ProductID: p.ID,
			Title:     p.Title,
			Price:     p.Price,
			Quantity:  qty,
			Size:      it.Size,
			Color:     color,
			Image:     image,
		})
	}

	for _, l := range cart.Lines {
		if l.Price < 0 || (l.Price > 0 && int64(l.Quantity) > math.MaxInt64/l.Price) {
			return nil, fmt.Errorf("%w: product %s total out of range", ErrInvalidQuantity, l.ProductID)
		}
		sub := l.Subtotal()
		if cart.Total > math.MaxInt64-sub {
			return nil, fmt.Errorf("%w: order total out of range", ErrInvalidQuantity)
		}
		cart.Total += sub
	}
	return cart, nil
}
