package orders

import "errors"

var (
	ErrEmptyCart         = errors.New("cart is empty, nothing to order")
	ErrProductNotFound   = errors.New("product not found")
	ErrInvalidQuantity   = errors.New("quantity must be positive")
	ErrInvalidStatus     = errors.New("status does not exist")
	ErrInvalidTransition = errors.New("status transition not allowed")
	ErrNotFound          = errors.New("order not found")
	ErrInvalidSort       = errors.New("unsupported sort field")
)
