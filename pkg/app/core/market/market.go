package market

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/uhyunpark/cdamarket/pkg/app/core/account"
	"github.com/uhyunpark/cdamarket/pkg/app/core/orderbook"
)

// Exchange is the view of a market that traders act on.
type Exchange interface {
	Clock
	NewOrder(owner string, qty int64, price float64, side orderbook.Side) *orderbook.Order
	PlaceOrder(o *orderbook.Order) error
	RemoveOrder(id orderbook.OrderID) (bool, error)
	Quote() orderbook.Quote
	Closed() bool
}

// Market owns one order book, the auctioneer that clears it and the ledger
// trades settle into. It keeps the trading clock and notifies listeners of
// everything that happens.
//
// Market is single-threaded. The simulation goroutine is the only caller;
// other goroutines read published Snapshots.
type Market struct {
	id         string
	book       *orderbook.OrderBook
	auctioneer Auctioneer
	ledger     *account.Ledger
	events     dispatcher
	logger     *zap.SugaredLogger

	nextID orderbook.OrderID

	round, day, age int
	closed          bool

	trades    int64
	volume    int64
	lastPrice float64
}

var _ Exchange = (*Market)(nil)

func newMarket(id string, book *orderbook.OrderBook, a Auctioneer, ledger *account.Ledger, logger *zap.SugaredLogger) *Market {
	return &Market{
		id:         id,
		book:       book,
		auctioneer: a,
		ledger:     ledger,
		logger:     logger,
	}
}

func (m *Market) ID() string                 { return m.id }
func (m *Market) Round() int                 { return m.round }
func (m *Market) Day() int                   { return m.day }
func (m *Market) Age() int                   { return m.age }
func (m *Market) Closed() bool               { return m.closed }
func (m *Market) Quote() orderbook.Quote     { return m.auctioneer.Quote() }
func (m *Market) Ledger() *account.Ledger    { return m.ledger }
func (m *Market) Book() *orderbook.OrderBook { return m.book }
func (m *Market) Subscribe(l Listener)       { m.events.subscribe(l) }

// NewOrder builds an order carrying the next free identity. It does not
// place it.
func (m *Market) NewOrder(owner string, qty int64, price float64, side orderbook.Side) *orderbook.Order {
	m.nextID++
	return orderbook.NewOrder(m.nextID, owner, qty, price, side)
}

// PlaceOrder validates o and hands it to the auctioneer. The caller keeps
// ownership of o; the book works on its own copy.
//
// Orders that are malformed, or that would cross a resting order of the same
// owner, fail with ErrIllegalOrder. Placing an identity that is already live
// is a caller bug and panics.
func (m *Market) PlaceOrder(o *orderbook.Order) error {
	if err := m.mutable(); err != nil {
		return err
	}
	if o == nil {
		return fmt.Errorf("%w: nil order", ErrIllegalOrder)
	}
	m.fire(Event{Kind: OrderReceived, Order: copyOrder(o)})

	if !o.IsValid() {
		m.logger.Debugw("order_rejected", "order", o.String(), "reason", "invalid")
		return fmt.Errorf("%w: %s", ErrIllegalOrder, o)
	}
	if m.book.CrossesOwn(o) {
		m.logger.Debugw("order_rejected", "order", o.String(), "reason", "self-cross")
		return fmt.Errorf("%w: %s crosses an order of the same owner", ErrIllegalOrder, o)
	}
	if err := m.auctioneer.NewOrder(o); err != nil {
		if errors.Is(err, orderbook.ErrDuplicateOrder) {
			panic(fmt.Sprintf("market %s: %v", m.id, err))
		}
		return fmt.Errorf("%w: %v", ErrIllegalOrder, err)
	}
	if o.ID > m.nextID {
		m.nextID = o.ID
	}
	m.ledger.Get(o.Owner)
	m.fire(Event{Kind: OrderPlaced, Order: copyOrder(o)})
	return nil
}

// RemoveOrder withdraws every fragment of the order. It reports whether
// anything was live.
func (m *Market) RemoveOrder(id orderbook.OrderID) (bool, error) {
	if err := m.mutable(); err != nil {
		return false, err
	}
	return m.book.Remove(id), nil
}

// Clear settles one trade of qty units: the buyer pays qty*buyerCharge to the
// clearing house, which pays qty*sellerPayment to the seller.
func (m *Market) Clear(ask, bid orderbook.Order, buyerCharge, sellerPayment float64, qty int64) error {
	if err := m.mutable(); err != nil {
		return err
	}
	if !ask.IsAsk() || !bid.IsBid() {
		return fmt.Errorf("%w: sides %s/%s", ErrInvalidTrade, ask.Side, bid.Side)
	}
	if qty < 1 {
		return fmt.Errorf("%w: quantity %d", ErrInvalidTrade, qty)
	}

	units := decimal.NewFromInt(qty)
	charge := decimal.NewFromFloat(buyerCharge).Mul(units)
	payment := decimal.NewFromFloat(sellerPayment).Mul(units)

	buyer := m.ledger.Get(bid.Owner)
	seller := m.ledger.Get(ask.Owner)
	m.auctioneer.Account().DoubleEntry(buyer, charge, seller, payment)
	buyer.RecordTrade(qty, charge)
	seller.RecordTrade(qty, payment)

	m.trades++
	m.volume += qty
	m.lastPrice = buyerCharge

	m.logger.Debugw("trade_settled",
		"buyer", bid.Owner,
		"seller", ask.Owner,
		"price", buyerCharge,
		"qty", qty,
	)
	m.fire(Event{
		Kind:          TransactionExecuted,
		TxID:          uuid.NewString(),
		Bid:           &bid,
		Ask:           &ask,
		Price:         buyerCharge,
		SellerPayment: sellerPayment,
		Quantity:      qty,
	})
	return nil
}

// Close stops trading. Calling it again does nothing. Listeners cannot
// close the market they are being notified by.
func (m *Market) Close() error {
	if m.events.dispatching {
		return ErrReentrant
	}
	if m.closed {
		return nil
	}
	m.closed = true
	m.fire(Event{Kind: MarketClosed})
	return nil
}

// CanSettle reports whether Clear would currently be accepted.
func (m *Market) CanSettle() error { return m.mutable() }

func (m *Market) mutable() error {
	if m.events.dispatching {
		return ErrReentrant
	}
	if m.closed {
		return ErrAuctionClosed
	}
	return nil
}

func (m *Market) fire(e Event) {
	e.Market = m.id
	e.Round, e.Day, e.Age = m.round, m.day, m.age
	m.events.fire(e)
}

func copyOrder(o *orderbook.Order) *orderbook.Order {
	c := *o
	return &c
}
