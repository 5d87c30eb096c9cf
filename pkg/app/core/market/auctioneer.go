package market

import (
	"errors"
	"fmt"

	"github.com/uhyunpark/cdamarket/pkg/app/core/account"
	"github.com/uhyunpark/cdamarket/pkg/app/core/orderbook"
)

// Settler executes a single trade. The market implements it; auctioneers call
// it once per matched pair while clearing.
//
// buyerCharge and sellerPayment are per-unit prices. They may differ when the
// auctioneer keeps a spread.
type Settler interface {
	// CanSettle fails when Clear would be refused, so an auctioneer can
	// check before taking pairs out of its book.
	CanSettle() error
	Clear(ask, bid orderbook.Order, buyerCharge, sellerPayment float64, qty int64) error
}

// Auctioneer decides when and at what price matched orders trade.
type Auctioneer interface {
	// NewOrder accepts a validated order into the auctioneer's book.
	NewOrder(o *orderbook.Order) error
	EndOfRoundProcessing(s Settler) error
	EndOfDayProcessing(s Settler) error
	Quote() orderbook.Quote
	// Account is the clearing-house account trades settle through.
	Account() *account.Account
}

// ClearingHouse clears the whole matched set at the end of every round,
// pricing each pair with its PricingPolicy. The buyer is charged exactly what
// the seller receives, so the house account never changes balance.
type ClearingHouse struct {
	book   *orderbook.OrderBook
	policy PricingPolicy
	house  *account.Account

	// ClearOnDayEnd also clears at the end of each day. End-of-round clearing
	// already empties the matched set, so this only matters for auctioneers
	// embedding ClearingHouse with a no-op round.
	ClearOnDayEnd bool
}

var _ Auctioneer = (*ClearingHouse)(nil)

func NewClearingHouse(book *orderbook.OrderBook, policy PricingPolicy, house *account.Account) *ClearingHouse {
	if policy == nil {
		policy = Discriminatory{K: 0.5}
	}
	return &ClearingHouse{book: book, policy: policy, house: house}
}

func (c *ClearingHouse) NewOrder(o *orderbook.Order) error {
	return c.book.Add(o)
}

func (c *ClearingHouse) EndOfRoundProcessing(s Settler) error {
	return c.clear(s)
}

func (c *ClearingHouse) EndOfDayProcessing(s Settler) error {
	if c.ClearOnDayEnd {
		return c.clear(s)
	}
	return nil
}

func (c *ClearingHouse) Quote() orderbook.Quote { return c.book.Quote() }

func (c *ClearingHouse) Account() *account.Account { return c.house }

// clear settles every matched pair. Nothing leaves the book unless the
// settler accepts trades; once pairs are out, a failing pair does not stop
// the rest from settling.
func (c *ClearingHouse) clear(s Settler) error {
	if c.book.MatchedQuantity() == 0 {
		return nil
	}
	if err := s.CanSettle(); err != nil {
		return err
	}
	// The range must be read before MatchOrders empties the matched heaps.
	lo, hi, _ := c.book.ClearingRange()
	pairs := c.book.MatchOrders()
	var errs []error
	for i := 0; i+1 < len(pairs); i += 2 {
		bid, ask := pairs[i], pairs[i+1]
		price := c.policy.Price(bid, ask, lo, hi)
		if err := s.Clear(ask, bid, price, price, bid.Quantity); err != nil {
			errs = append(errs, fmt.Errorf("clear %d/%d: %w", bid.ID, ask.ID, err))
		}
	}
	return errors.Join(errs...)
}
