package orderbook

import "errors"

var (
	// ErrDuplicateOrder means an order with the same ID is already live in the book.
	// Order IDs are assigned by the market, so this is a programming error.
	ErrDuplicateOrder = errors.New("duplicate order")

	// ErrInvalidOrder is returned for nil orders, negative or non-finite
	// prices, and quantities below one.
	ErrInvalidOrder = errors.New("invalid order")

	// ErrInvalidSplit means a split would leave either fragment empty.
	ErrInvalidSplit = errors.New("invalid split")

	// ErrIntegrity signals a broken four-heap invariant: a matching-engine bug.
	ErrIntegrity = errors.New("order book integrity violated")
)
