package kafka

import "time"

const (
	TopicOrderCreated       = `order.created`
	TopicOrderPaid          = `order.paid`
	TopicOrderPaymentFailed = `order.payment-failed`
)

type OrderLineEvent struct {
	ProductId string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Price     int64  `json:"price"`
}

// OrderCreatedEvent is published once the order transaction has committed.
type OrderCreatedEvent struct {
	OrderId     string           `json:"order_id"`
	UserId      *string          `json:"user_id"`
	TotalAmount int64            `json:"total_amount"`
	Items       []OrderLineEvent `json:"items"`
	CreatedAt   time.Time        `json:"created_at"`
}

type OrderPaidEvent struct {
	OrderId     string    `json:"order_id"`
	PaymentId   string    `json:"payment_id"`
	TxnId       string    `json:"txn_id"`
	TotalAmount int64     `json:"total_amount"`
	CreatedAt   time.Time `json:"created_at"`
}

type OrderPaymentFailedEvent struct {
	OrderId   string    `json:"order_id"`
	PaymentId string    `json:"payment_id"`
	TxnId     string    `json:"txn_id"`
	CreatedAt time.Time `json:"created_at"`
}
