package orderbook

import (
	"fmt"

	"github.com/tidwall/btree"
)

// Quote is the visible spread: the best unmatched ask and the best unmatched bid.
type Quote struct {
	Ask    float64 `json:"ask"`
	Bid    float64 `json:"bid"`
	HasAsk bool    `json:"hasAsk"`
	HasBid bool    `json:"hasBid"`
}

// Depth is a point-in-time copy of the four heaps, each in heap order.
type Depth struct {
	MatchedBids   []Order `json:"matchedBids"`
	UnmatchedBids []Order `json:"unmatchedBids"`
	MatchedAsks   []Order `json:"matchedAsks"`
	UnmatchedAsks []Order `json:"unmatchedAsks"`
}

// OrderBook is a four-heap double-auction book.
//
// Bids and asks are each split into a matched set, which is paired by value
// against the other side and will trade at the next clearing, and an
// unmatched set of resting liquidity. Orders move between the sets as they
// arrive and leave so that the matched sets always hold the largest
// quantity that can trade.
//
// The book is not safe for concurrent use. Run one book per goroutine.
type OrderBook struct {
	matchedBids   *orderHeap
	unmatchedBids *orderHeap
	matchedAsks   *orderHeap
	unmatchedAsks *orderHeap

	// arena holds every live fragment ordered by (ID, Fragment), so all
	// fragments of one order are a contiguous range.
	arena    *btree.BTreeG[*Order]
	nextFrag map[OrderID]uint32
	seq      uint64

	// CheckInvariants runs CheckIntegrity after every mutating call and
	// panics on failure. Meant for tests and non-production runs.
	CheckInvariants bool
}

func NewOrderBook() *OrderBook {
	return &OrderBook{
		matchedBids:   newOrderHeap(matchedBids),
		unmatchedBids: newOrderHeap(unmatchedBids),
		matchedAsks:   newOrderHeap(matchedAsks),
		unmatchedAsks: newOrderHeap(unmatchedAsks),
		arena:         btree.NewBTreeGOptions(fragmentLess, btree.Options{NoLocks: true}),
		nextFrag:      make(map[OrderID]uint32),
	}
}

func fragmentLess(a, b *Order) bool {
	if a.ID != b.ID {
		return a.ID < b.ID
	}
	return a.Fragment < b.Fragment
}

// Add admits a copy of o into the book. The book is left untouched when an
// error is returned.
func (ob *OrderBook) Add(o *Order) error {
	if !o.IsValid() {
		return fmt.Errorf("%w: %v", ErrInvalidOrder, o)
	}
	if ob.Contains(o.ID) {
		return fmt.Errorf("%w: id %d", ErrDuplicateOrder, o.ID)
	}

	ob.seq++
	frag := o.clone()
	frag.Fragment = 0
	frag.Child = 0
	frag.Seq = ob.seq
	ob.arena.Set(&frag)
	ob.nextFrag[o.ID] = 1

	ob.insert(&frag)
	ob.verify()
	return nil
}

// Remove cancels every live fragment of the order with the given id.
// Removing a matched fragment frees the opposite-side quantity it was paired
// with, which is fed back through the insertion logic. Unknown ids are a no-op.
func (ob *OrderBook) Remove(id OrderID) bool {
	frags := ob.fragments(id)
	if len(frags) == 0 {
		return false
	}

	// Unmatched fragments go first so that reinsertion below cannot promote them.
	for _, f := range frags {
		switch f.loc {
		case unmatchedBids:
			ob.unmatchedBids.remove(f)
			ob.arena.Delete(f)
		case unmatchedAsks:
			ob.unmatchedAsks.remove(f)
			ob.arena.Delete(f)
		}
	}
	for _, f := range frags {
		switch f.loc {
		case matchedBids:
			ob.matchedBids.remove(f)
			ob.arena.Delete(f)
			ob.reinsert(ob.matchedAsks, f.Quantity)
		case matchedAsks:
			ob.matchedAsks.remove(f)
			ob.arena.Delete(f)
			ob.reinsert(ob.matchedBids, f.Quantity)
		}
	}
	delete(ob.nextFrag, id)

	ob.verify()
	return true
}

// MatchOrders clears every matched pair and returns them as an alternating
// [bid, ask, bid, ask, ...] list. Each pair has equal quantity and crosses in
// price. Both matched heaps are empty afterwards.
func (ob *OrderBook) MatchOrders() []Order {
	out := make([]Order, 0, 2*ob.matchedAsks.Len())
	for ob.matchedAsks.Len() > 0 {
		ask := ob.matchedAsks.pop()
		bid := ob.matchedBids.pop()

		switch {
		case ask.Quantity < bid.Quantity:
			ob.matchedBids.add(ob.split(bid, bid.Quantity-ask.Quantity))
		case bid.Quantity < ask.Quantity:
			ob.matchedAsks.add(ob.split(ask, ask.Quantity-bid.Quantity))
		}

		ob.retire(bid)
		ob.retire(ask)
		out = append(out, bid.clone(), ask.clone())
	}

	ob.verify()
	return out
}

// Quote returns the best unmatched ask and best unmatched bid.
func (ob *OrderBook) Quote() Quote {
	var q Quote
	if a := ob.unmatchedAsks.Peek(); a != nil {
		q.Ask, q.HasAsk = a.Price, true
	}
	if b := ob.unmatchedBids.Peek(); b != nil {
		q.Bid, q.HasBid = b.Price, true
	}
	return q
}

// ClearingRange returns the interval of prices at which every matched pair
// could trade at one uniform price: from the higher of the worst matched ask
// and best unmatched bid, to the lower of the worst matched bid and best
// unmatched ask. ok is false when the book is empty.
func (ob *OrderBook) ClearingRange() (lo, hi float64, ok bool) {
	hasLo, hasHi := false, false
	for _, o := range []*Order{ob.matchedAsks.Peek(), ob.unmatchedBids.Peek()} {
		if o != nil && (!hasLo || o.Price > lo) {
			lo, hasLo = o.Price, true
		}
	}
	for _, o := range []*Order{ob.matchedBids.Peek(), ob.unmatchedAsks.Peek()} {
		if o != nil && (!hasHi || o.Price < hi) {
			hi, hasHi = o.Price, true
		}
	}
	switch {
	case hasLo && hasHi:
		return lo, hi, true
	case hasLo:
		return lo, lo, true
	case hasHi:
		return hi, hi, true
	}
	return 0, 0, false
}

// CheckIntegrity verifies the four-heap invariants. It is cheap: only heap
// tops and totals are inspected.
func (ob *OrderBook) CheckIntegrity() error {
	bIn, bOut := ob.matchedBids.Peek(), ob.unmatchedBids.Peek()
	sIn, sOut := ob.matchedAsks.Peek(), ob.unmatchedAsks.Peek()

	if qb, qs := ob.matchedBids.quantity(), ob.matchedAsks.quantity(); qb != qs {
		return fmt.Errorf("%w: matched bid quantity %d != matched ask quantity %d", ErrIntegrity, qb, qs)
	}
	if bIn != nil && sIn != nil && bIn.Price < sIn.Price {
		return fmt.Errorf("%w: lowest matched bid %v below highest matched ask %v", ErrIntegrity, bIn.Price, sIn.Price)
	}
	if bIn != nil && bOut != nil && bOut.Price > bIn.Price {
		return fmt.Errorf("%w: unmatched bid %v above matched bid %v", ErrIntegrity, bOut.Price, bIn.Price)
	}
	if sIn != nil && sOut != nil && sOut.Price < sIn.Price {
		return fmt.Errorf("%w: unmatched ask %v below matched ask %v", ErrIntegrity, sOut.Price, sIn.Price)
	}
	if bOut != nil && sOut != nil && bOut.Price >= sOut.Price {
		return fmt.Errorf("%w: unmatched bid %v crosses unmatched ask %v", ErrIntegrity, bOut.Price, sOut.Price)
	}
	if n := ob.Size(); n != ob.arena.Len() {
		return fmt.Errorf("%w: %d fragments in heaps, %d in arena", ErrIntegrity, n, ob.arena.Len())
	}
	return nil
}

// Contains reports whether any fragment of the order is still in the book.
func (ob *OrderBook) Contains(id OrderID) bool {
	found := false
	ob.arena.Ascend(&Order{ID: id}, func(o *Order) bool {
		found = o.ID == id
		return false
	})
	return found
}

// CrossesOwn reports whether o would cross a live opposite-side order of the
// same owner.
func (ob *OrderBook) CrossesOwn(o *Order) bool {
	crosses := false
	ob.arena.Scan(func(r *Order) bool {
		if r.Owner != o.Owner || r.Side == o.Side {
			return true
		}
		if (o.IsBid() && o.Price >= r.Price) || (o.IsAsk() && r.Price >= o.Price) {
			crosses = true
			return false
		}
		return true
	})
	return crosses
}

// Size returns the number of resident fragments.
func (ob *OrderBook) Size() int {
	return ob.matchedBids.Len() + ob.unmatchedBids.Len() + ob.matchedAsks.Len() + ob.unmatchedAsks.Len()
}

func (ob *OrderBook) IsEmpty() bool { return ob.Size() == 0 }

// Quantity returns the total number of units resident in the four heaps.
func (ob *OrderBook) Quantity() int64 {
	return ob.matchedBids.quantity() + ob.unmatchedBids.quantity() +
		ob.matchedAsks.quantity() + ob.unmatchedAsks.quantity()
}

// MatchedQuantity returns the number of units that would trade if the book
// were cleared now.
func (ob *OrderBook) MatchedQuantity() int64 { return ob.matchedBids.quantity() }

// Depth returns copies of the four heaps.
func (ob *OrderBook) Depth() Depth {
	return Depth{
		MatchedBids:   ob.matchedBids.sorted(),
		UnmatchedBids: ob.unmatchedBids.sorted(),
		MatchedAsks:   ob.matchedAsks.sorted(),
		UnmatchedAsks: ob.unmatchedAsks.sorted(),
	}
}

// Fragments returns copies of the live fragments of an order.
func (ob *OrderBook) Fragments(id OrderID) []Order {
	frags := ob.fragments(id)
	out := make([]Order, len(frags))
	for i, f := range frags {
		out[i] = f.clone()
	}
	return out
}

func (ob *OrderBook) fragments(id OrderID) []*Order {
	var frags []*Order
	ob.arena.Ascend(&Order{ID: id}, func(o *Order) bool {
		if o.ID != id {
			return false
		}
		frags = append(frags, o)
		return true
	})
	return frags
}

func (ob *OrderBook) insert(o *Order) {
	if o.IsBid() {
		ob.insertBid(o)
	} else {
		ob.insertAsk(o)
	}
}

func (ob *OrderBook) insertBid(bid *Order) {
	for bid != nil {
		ask := ob.unmatchedAsks.Peek()
		worst := ob.matchedBids.Peek()
		switch {
		case ask != nil && bid.Price >= ask.Price && (worst == nil || worst.Price >= ask.Price):
			bid = ob.promote(bid, ob.unmatchedAsks, ob.matchedAsks, ob.matchedBids)
		case worst != nil && bid.Price > worst.Price:
			bid = ob.displace(bid, ob.matchedBids, ob.unmatchedBids)
		default:
			ob.unmatchedBids.add(bid)
			bid = nil
		}
	}
}

func (ob *OrderBook) insertAsk(ask *Order) {
	for ask != nil {
		bid := ob.unmatchedBids.Peek()
		worst := ob.matchedAsks.Peek()
		switch {
		case bid != nil && ask.Price <= bid.Price && (worst == nil || worst.Price <= bid.Price):
			ask = ob.promote(ask, ob.unmatchedBids, ob.matchedBids, ob.matchedAsks)
		case worst != nil && ask.Price < worst.Price:
			ask = ob.displace(ask, ob.matchedAsks, ob.unmatchedAsks)
		default:
			ob.unmatchedAsks.add(ask)
			ask = nil
		}
	}
}

// promote pairs o with the top of the opposite unmatched heap. Exactly the
// overlapping quantity becomes matched on both sides; a leftover of the
// resident order goes back where it was, a leftover of o is returned for
// further placement.
func (ob *OrderBook) promote(o *Order, from, to, matched *orderHeap) *Order {
	other := from.pop()
	var rest *Order
	switch {
	case o.Quantity > other.Quantity:
		rest = ob.splat(o, other.Quantity)
	case o.Quantity < other.Quantity:
		from.add(ob.split(other, other.Quantity-o.Quantity))
	}
	to.add(other)
	matched.add(o)
	return rest
}

// displace lets o take the matched slot of the worst matched order on its own
// side, which moves to the unmatched heap.
func (ob *OrderBook) displace(o *Order, matched, unmatched *orderHeap) *Order {
	worst := matched.pop()
	var rest *Order
	switch {
	case o.Quantity > worst.Quantity:
		rest = ob.splat(o, worst.Quantity)
	case o.Quantity < worst.Quantity:
		matched.add(ob.split(worst, worst.Quantity-o.Quantity))
	}
	unmatched.add(worst)
	matched.add(o)
	return rest
}

// reinsert takes qty units off the top of a matched heap and places them
// again, after their counterpart has left the book.
func (ob *OrderBook) reinsert(from *orderHeap, qty int64) {
	for qty > 0 {
		top := from.pop()
		if top.Quantity > qty {
			from.add(ob.split(top, top.Quantity-qty))
		}
		qty -= top.Quantity
		ob.insert(top)
	}
}

func (ob *OrderBook) split(o *Order, excess int64) *Order {
	child, err := o.Split(excess, ob.nextFragment(o.ID))
	if err != nil {
		panic(err)
	}
	ob.arena.Set(child)
	return child
}

func (ob *OrderBook) splat(o *Order, keep int64) *Order {
	child, err := o.Splat(keep, ob.nextFragment(o.ID))
	if err != nil {
		panic(err)
	}
	ob.arena.Set(child)
	return child
}

func (ob *OrderBook) nextFragment(id OrderID) uint32 {
	n := ob.nextFrag[id]
	ob.nextFrag[id] = n + 1
	return n
}

// retire drops a cleared fragment from the arena.
func (ob *OrderBook) retire(o *Order) {
	ob.arena.Delete(o)
	if !ob.Contains(o.ID) {
		delete(ob.nextFrag, o.ID)
	}
}

func (ob *OrderBook) verify() {
	if !ob.CheckInvariants {
		return
	}
	if err := ob.CheckIntegrity(); err != nil {
		panic(err)
	}
}
