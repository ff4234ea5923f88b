package orders

import (
	"context"
	"time"
)

// Reader is the catalog and wishlist access the cart materializer needs.
type Reader interface {
	// ProductsByID returns the products that exist, keyed by id. Missing ids
	// are simply absent from the map.
	ProductsByID(ctx context.Context, ids []string) (map[string]Product, error)
	WishlistItems(ctx context.Context, userID string) ([]WishlistItem, error)
}

// Tx is one unit of atomicity. Every method runs inside the same database
// transaction; returning an error from the WithTx callback rolls all of it back.
type Tx interface {
	Reader

	InsertOrder(ctx context.Context, o *Order) error
	InsertOrderLines(ctx context.Context, lines []OrderLine) error
	InsertShippingInfo(ctx context.Context, s *ShippingInfo) error
	InsertPaymentInfo(ctx context.Context, p *PaymentInfo) error
	DeleteWishlistItems(ctx context.Context, userID string, ids []string) error

	// OrderForUpdate and PaymentForUpdate lock the row until the transaction
	// ends. Both return ErrNotFound when there is no row.
	OrderForUpdate(ctx context.Context, id string) (*Order, error)
	PaymentForUpdate(ctx context.Context, orderID string) (*PaymentInfo, error)

	UpdateOrderStatus(ctx context.Context, id string, status Status, at time.Time) error
	UpdatePaymentInfo(ctx context.Context, p *PaymentInfo) error

	// DeleteOrder removes the order and its lines, shipping and payment rows.
	DeleteOrder(ctx context.Context, id string) error
}

type Store interface {
	Reader
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	GetOrder(ctx context.Context, id string) (*OrderDetail, error)
	ListOrders(ctx context.Context, q ListQuery) ([]OrderDetail, int, error)
	UserIDByEmail(ctx context.Context, email string) (string, error)
}

type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// Sortable order columns, by their JSON field name.
const (
	SortByID          = "id"
	SortByUserID      = "userId"
	SortByTotalAmount = "totalAmount"
	SortByStatus      = "status"
	SortByCreatedAt   = "createdAt"
	SortByUpdatedAt   = "updatedAt"
)

var sortable = map[string]bool{
	SortByID: true, SortByUserID: true, SortByTotalAmount: true,
	SortByStatus: true, SortByCreatedAt: true, SortByUpdatedAt: true,
}

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
)

// ListQuery is a normalized admin listing request. Search matches status,
// shipping name and shipping phone, case-insensitively.
type ListQuery struct {
	Search    string
	Page      int
	Limit     int
	SortBy    string
	SortOrder SortOrder
}

func (q ListQuery) Offset() int { return (q.Page - 1) * q.Limit }

// Normalize fills defaults and rejects unknown sort fields.
func (q ListQuery) Normalize() (ListQuery, error) {
	if q.Page < 1 {
		q.Page = DefaultPage
	}
	if q.Limit < 1 {
		q.Limit = DefaultLimit
	}
	if q.Limit > MaxLimit {
		q.Limit = MaxLimit
	}
	if q.SortBy == "" {
		q.SortBy = SortByCreatedAt
	}
	if !sortable[q.SortBy] {
		return q, ErrInvalidSort
	}
	switch q.SortOrder {
	case SortAsc, SortDesc:
	case "":
		q.SortOrder = SortDesc
	default:
		return q, ErrInvalidSort
	}
	return q, nil
}
