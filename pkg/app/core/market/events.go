package market

import (
	"github.com/uhyunpark/cdamarket/pkg/app/core/orderbook"
)

// EventKind identifies a market lifecycle event.
type EventKind int8

const (
	SimulationStarting EventKind = iota
	MarketOpen
	DayOpening
	OrderReceived
	OrderPlaced
	TransactionExecuted
	RoundClosing
	RoundClosed
	EndOfDay
	MarketClosed
	SimulationFinished
)

func (k EventKind) String() string {
	switch k {
	case SimulationStarting:
		return "simulation_starting"
	case MarketOpen:
		return "market_open"
	case DayOpening:
		return "day_opening"
	case OrderReceived:
		return "order_received"
	case OrderPlaced:
		return "order_placed"
	case TransactionExecuted:
		return "transaction_executed"
	case RoundClosing:
		return "round_closing"
	case RoundClosed:
		return "round_closed"
	case EndOfDay:
		return "end_of_day"
	case MarketClosed:
		return "market_closed"
	case SimulationFinished:
		return "simulation_finished"
	default:
		return "unknown"
	}
}

func (k EventKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// Event is pushed to listeners. Orders are copies; listeners may keep them.
type Event struct {
	Kind   EventKind `json:"kind"`
	Market string    `json:"market"`
	Round  int       `json:"round"`
	Day    int       `json:"day"`
	Age    int       `json:"age"`

	Order *orderbook.Order `json:"order,omitempty"` // OrderReceived, OrderPlaced

	// TransactionExecuted
	TxID          string           `json:"txId,omitempty"`
	Bid           *orderbook.Order `json:"bid,omitempty"`
	Ask           *orderbook.Order `json:"ask,omitempty"`
	Price         float64          `json:"price,omitempty"` // what the buyer paid per unit
	SellerPayment float64          `json:"sellerPayment,omitempty"`
	Quantity      int64            `json:"quantity,omitempty"`
}

// Listener receives market events.
//
// Listeners run synchronously on the simulation goroutine, in registration
// order, and must not block. A listener must not mutate the market it is
// being notified by: such calls fail with ErrReentrant.
type Listener interface {
	OnEvent(e Event)
}

// ListenerFunc adapts a function to a Listener.
type ListenerFunc func(e Event)

func (f ListenerFunc) OnEvent(e Event) { f(e) }

type dispatcher struct {
	listeners   []Listener
	dispatching bool
}

func (d *dispatcher) subscribe(l Listener) {
	d.listeners = append(d.listeners, l)
}

func (d *dispatcher) fire(e Event) {
	prev := d.dispatching
	d.dispatching = true
	defer func() { d.dispatching = prev }()
	for _, l := range d.listeners {
		l.OnEvent(e)
	}
}
