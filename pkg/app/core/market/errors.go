package market

import "errors"

var (
	// ErrIllegalOrder rejects an order before it reaches the book: nil,
	// invalid price or quantity, or crossing the owner's own resting order.
	ErrIllegalOrder = errors.New("illegal order")

	// ErrAuctionClosed is returned by every mutating call once the market has
	// closed. It is ordinary control flow, not an integrity problem.
	ErrAuctionClosed = errors.New("auction closed")

	// ErrReentrant is returned when an event listener tries to mutate the
	// market while it is being notified.
	ErrReentrant = errors.New("market mutated from inside an event notification")

	// ErrInvalidTrade rejects a Clear call with the sides swapped or a
	// quantity below one.
	ErrInvalidTrade = errors.New("invalid trade")

	// ErrAlreadyStarted is returned by Begin and Restore on a running simulation.
	ErrAlreadyStarted = errors.New("simulation already started")
)
