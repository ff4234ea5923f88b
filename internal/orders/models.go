package orders

import (
	"encoding/json"
	"time"

	"checkout-service/internal/payments"
)

type Status string

const (
	StatusPending    Status = "PENDING"
	StatusConfirmed  Status = "CONFIRMED"
	StatusProcessing Status = "PROCESSING"
	StatusShipped    Status = "SHIPPED"
	StatusDelivered  Status = "DELIVERED"
	StatusCancelled  Status = "CANCELLED"
)

var statuses = []Status{StatusPending, StatusConfirmed, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled}

func (s Status) Valid() bool {
	for _, v := range statuses {
		if s == v {
			return true
		}
	}
	return false
}

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "PENDING"
	PaymentPaid    PaymentStatus = "PAID"
	PaymentUnpaid  PaymentStatus = "UNPAID"
)

// Order totals are in currency minor units.
type Order struct {
	ID          string    `json:"id"`
	UserID      *string   `json:"userId"`
	TotalAmount int64     `json:"totalAmount"`
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// OrderLine snapshots the catalog entry at order time.
type OrderLine struct {
	ID        string  `json:"id"`
	OrderID   string  `json:"orderId"`
	ProductID string  `json:"productId"`
	Title     string  `json:"title"`
	Price     int64   `json:"price"`
	Quantity  int     `json:"quantity"`
	Size      *string `json:"size"`
	Color     *string `json:"color"`
	Image     *string `json:"image"`
}

type ShippingInfo struct {
	ID         string `json:"id"`
	OrderID    string `json:"orderId"`
	Name       string `json:"name"`
	Phone      string `json:"phone"`
	Address    string `json:"address"`
	City       string `json:"city"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

type PaymentInfo struct {
	ID          string          `json:"id"`
	OrderID     string          `json:"orderId"`
	Method      payments.Method `json:"method"`
	Status      PaymentStatus   `json:"status"`
	TxnID       string          `json:"txnId"`
	GatewayData json.RawMessage `json:"paymentGatewayData,omitempty"`
	// LastEventAt is the creation time of the last webhook event applied.
	LastEventAt *time.Time `json:"lastEventAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

type UserSummary struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// OrderDetail is an order with everything it owns.
type OrderDetail struct {
	Order
	User         *UserSummary  `json:"user"`
	Items        []OrderLine   `json:"orderItems"`
	ShippingInfo *ShippingInfo `json:"shippingInfo"`
	PaymentInfo  *PaymentInfo  `json:"paymentInfo"`
}

// Product is the catalog view the materializer needs. Price is in minor units.
type Product struct {
	ID     string   `json:"id"`
	Title  string   `json:"title"`
	Price  int64    `json:"price"`
	Images []string `json:"images"`
	Color  *string  `json:"color"`
}

type WishlistItem struct {
	ID        string
	UserID    string
	ProductID string
	Size      *string
	Color     *string
	Quantity  int
}
