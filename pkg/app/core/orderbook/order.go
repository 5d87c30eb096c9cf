package orderbook

import (
	"fmt"
	"math"
)

type Side int8

const (
	Bid Side = 1
	Ask Side = -1
)

func (s Side) String() string {
	switch s {
	case Bid:
		return "bid"
	case Ask:
		return "ask"
	default:
		return "unknown"
	}
}

func (s Side) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Side) UnmarshalText(b []byte) error {
	switch string(b) {
	case "bid":
		*s = Bid
	case "ask":
		*s = Ask
	default:
		return fmt.Errorf("unknown side %q", b)
	}
	return nil
}

// OrderID identifies an order as submitted to the market.
// Fragments produced by splitting share the OrderID of the order they came from.
type OrderID uint64

// Order is one bid or ask (a "shout").
//
// The book never holds the caller's *Order: Add copies it, and every split
// or merge happens on book-owned fragments. A fragment is addressed by
// (ID, Fragment); the original order is fragment 0.
type Order struct {
	ID       OrderID `json:"id"`
	Fragment uint32  `json:"fragment"`
	Owner    string  `json:"owner"`
	Side     Side    `json:"side"`
	Price    float64 `json:"price"`
	Quantity int64   `json:"quantity"`
	Seq      uint64  `json:"seq"`   // arrival sequence, secondary sort key
	Child    uint32  `json:"child"` // fragment number of the most recent child, 0 if none

	// heap bookkeeping, owned by the book
	loc   heapKind
	index int
}

// NewOrder creates an order for the given owner. Seq is assigned by the book on Add.
func NewOrder(id OrderID, owner string, quantity int64, price float64, side Side) *Order {
	return &Order{
		ID:       id,
		Owner:    owner,
		Side:     side,
		Price:    price,
		Quantity: quantity,
		index:    -1,
	}
}

// IsBid reports whether the order is a buy order.
func (o *Order) IsBid() bool { return o.Side == Bid }

// IsAsk reports whether the order is a sell order.
func (o *Order) IsAsk() bool { return o.Side == Ask }

// IsValid reports whether the order can be admitted: a finite non-negative
// price, at least one unit, and a known side.
func (o *Order) IsValid() bool {
	if o == nil {
		return false
	}
	if math.IsNaN(o.Price) || math.IsInf(o.Price, 0) || o.Price < 0 {
		return false
	}
	return o.Quantity >= 1 && (o.Side == Bid || o.Side == Ask)
}

// Matches reports whether o and other could trade with each other:
// different owners, opposite sides, and the bid price is at least the ask price.
func (o *Order) Matches(other *Order) bool {
	if o == nil || other == nil || o.Owner == other.Owner || o.Side == other.Side {
		return false
	}
	bid, ask := o, other
	if o.IsAsk() {
		bid, ask = other, o
	}
	return bid.Price >= ask.Price
}

// Split moves excess units out of o into a new child fragment numbered frag.
// After the call o.Quantity + child.Quantity equals the quantity before.
func (o *Order) Split(excess int64, frag uint32) (*Order, error) {
	if excess < 1 || excess >= o.Quantity {
		return nil, fmt.Errorf("%w: split %d from quantity %d", ErrInvalidSplit, excess, o.Quantity)
	}
	child := o.spawn(frag, excess)
	o.Quantity -= excess
	return child, nil
}

// Splat is the inverse allocation of Split: o keeps exactly keep units and
// the remainder moves to a new child fragment numbered frag.
func (o *Order) Splat(keep int64, frag uint32) (*Order, error) {
	if keep < 1 || keep >= o.Quantity {
		return nil, fmt.Errorf("%w: keep %d of quantity %d", ErrInvalidSplit, keep, o.Quantity)
	}
	return o.Split(o.Quantity-keep, frag)
}

func (o *Order) spawn(frag uint32, qty int64) *Order {
	o.Child = frag
	return &Order{
		ID:       o.ID,
		Fragment: frag,
		Owner:    o.Owner,
		Side:     o.Side,
		Price:    o.Price,
		Quantity: qty,
		Seq:      o.Seq,
		index:    -1,
	}
}

// clone returns a detached copy with no heap bookkeeping.
func (o *Order) clone() Order {
	c := *o
	c.loc = none
	c.index = -1
	return c
}

func (o *Order) String() string {
	return fmt.Sprintf("{id: %d.%d, owner: %s, side: %v, price: %v, qty: %d}",
		o.ID, o.Fragment, o.Owner, o.Side, o.Price, o.Quantity)
}
