package orderbook

import "container/heap"

// heapKind tags which of the four collections an order heap is.
// The ordering of a heap is fixed by its kind.
type heapKind int8

const (
	none          heapKind = iota
	matchedBids            // lowest price on top
	unmatchedBids          // highest price on top
	matchedAsks            // highest price on top
	unmatchedAsks          // lowest price on top
)

func (k heapKind) String() string {
	switch k {
	case matchedBids:
		return "matched_bids"
	case unmatchedBids:
		return "unmatched_bids"
	case matchedAsks:
		return "matched_asks"
	case unmatchedAsks:
		return "unmatched_asks"
	default:
		return "none"
	}
}

// orderHeap implements heap.Interface for one of the four sides.
// Use container/heap package to manipulate this heap (Init, Push, Pop, Remove).
//
// Unmatched heaps put the best order on top and break price ties by arrival
// (earliest first). Matched heaps put the worst order on top, the next one to
// be displaced, and break ties the other way so the latest arrival leaves first.
type orderHeap struct {
	kind  heapKind
	items []*Order
}

func newOrderHeap(kind heapKind) *orderHeap {
	h := &orderHeap{kind: kind}
	heap.Init(h)
	return h
}

func (h *orderHeap) Len() int { return len(h.items) }

func (h *orderHeap) Less(i, j int) bool {
	a, b := h.items[i], h.items[j]
	if a.Price != b.Price {
		switch h.kind {
		case matchedBids, unmatchedAsks:
			return a.Price < b.Price
		default:
			return a.Price > b.Price
		}
	}
	if a.Seq != b.Seq {
		switch h.kind {
		case matchedBids, matchedAsks:
			return a.Seq > b.Seq
		default:
			return a.Seq < b.Seq
		}
	}
	return a.Fragment > b.Fragment
}

func (h *orderHeap) Swap(i, j int) {
	h.items[i], h.items[j] = h.items[j], h.items[i]
	h.items[i].index = i
	h.items[j].index = j
}

func (h *orderHeap) Push(x interface{}) {
	o := x.(*Order)
	o.index = len(h.items)
	o.loc = h.kind
	h.items = append(h.items, o)
}

func (h *orderHeap) Pop() interface{} {
	old := h.items
	n := len(old)
	o := old[n-1]
	old[n-1] = nil
	h.items = old[:n-1]
	o.index = -1
	o.loc = none
	return o
}

// Peek returns the top order without removing it, or nil if the heap is empty.
func (h *orderHeap) Peek() *Order {
	if len(h.items) == 0 {
		return nil
	}
	return h.items[0]
}

func (h *orderHeap) add(o *Order) { heap.Push(h, o) }

func (h *orderHeap) pop() *Order { return heap.Pop(h).(*Order) }

func (h *orderHeap) remove(o *Order) bool {
	if o.loc != h.kind || o.index < 0 || o.index >= len(h.items) || h.items[o.index] != o {
		return false
	}
	heap.Remove(h, o.index)
	return true
}

func (h *orderHeap) quantity() int64 {
	var total int64
	for _, o := range h.items {
		total += o.Quantity
	}
	return total
}

// sorted returns detached copies in pop order without disturbing the heap.
func (h *orderHeap) sorted() []Order {
	cp := &orderHeap{kind: h.kind, items: make([]*Order, len(h.items))}
	for i, o := range h.items {
		c := *o
		c.index = i
		cp.items[i] = &c
	}
	out := make([]Order, 0, len(cp.items))
	for cp.Len() > 0 {
		out = append(out, cp.pop().clone())
	}
	return out
}
