package agent

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/uhyunpark/cdamarket/pkg/app/core/market"
	"github.com/uhyunpark/cdamarket/pkg/app/core/orderbook"
)

// ZeroIntelligence is a budget-constrained random trader. Every round it
// withdraws its previous shout and places a new single-unit shout at a
// uniformly random price that can never lose money: buyers bid between
// minPrice and their valuation, sellers ask between their cost and maxPrice.
//
// It stops shouting once it has traded all its units.
type ZeroIntelligence struct {
	id        string
	side      orderbook.Side
	limit     float64 // valuation for buyers, cost for sellers
	units     int64
	minPrice  float64
	maxPrice  float64
	rng       *rand.Rand
	remaining int64
	live      orderbook.OrderID

	stats Stats
}

// Stats counts what a trader did.
type Stats struct {
	Shouts  int     `json:"shouts"`
	Cancels int     `json:"cancels"`
	Fills   int     `json:"fills"`
	Traded  int64   `json:"traded"`
	Surplus float64 `json:"surplus"` // profit against the trader's limit price
}

var (
	_ market.Trader   = (*ZeroIntelligence)(nil)
	_ market.Listener = (*ZeroIntelligence)(nil)
)

func NewZeroIntelligence(id string, side orderbook.Side, limit float64, units int64, minPrice, maxPrice float64, seed int64) *ZeroIntelligence {
	return &ZeroIntelligence{
		id:        id,
		side:      side,
		limit:     limit,
		units:     units,
		minPrice:  minPrice,
		maxPrice:  maxPrice,
		rng:       rand.New(rand.NewSource(seed)),
		remaining: units,
	}
}

func (z *ZeroIntelligence) ID() string           { return z.id }
func (z *ZeroIntelligence) Side() orderbook.Side { return z.side }
func (z *ZeroIntelligence) Limit() float64       { return z.limit }
func (z *ZeroIntelligence) Units() int64         { return z.units }
func (z *ZeroIntelligence) Remaining() int64     { return z.remaining }
func (z *ZeroIntelligence) Stats() Stats         { return z.stats }

func (z *ZeroIntelligence) Init(market.Exchange) {
	z.remaining = z.units
	z.live = 0
	z.stats = Stats{}
}

func (z *ZeroIntelligence) Interact(x market.Exchange) error {
	if z.live != 0 {
		removed, err := x.RemoveOrder(z.live)
		if err != nil {
			return fmt.Errorf("withdraw shout %d: %w", z.live, err)
		}
		if removed {
			z.stats.Cancels++
		}
		z.live = 0
	}
	if z.remaining <= 0 {
		return nil
	}

	o := x.NewOrder(z.id, 1, z.shoutPrice(), z.side)
	if err := x.PlaceOrder(o); err != nil {
		return fmt.Errorf("shout: %w", err)
	}
	z.live = o.ID
	z.stats.Shouts++
	return nil
}

// OnEvent books the trader's own fills.
func (z *ZeroIntelligence) OnEvent(e market.Event) {
	if e.Kind != market.TransactionExecuted {
		return
	}
	qty := float64(e.Quantity)
	switch {
	case z.side == orderbook.Bid && e.Bid != nil && e.Bid.Owner == z.id:
		z.stats.Surplus += (z.limit - e.Price) * qty
	case z.side == orderbook.Ask && e.Ask != nil && e.Ask.Owner == z.id:
		z.stats.Surplus += (e.SellerPayment - z.limit) * qty
	default:
		return
	}
	z.remaining -= e.Quantity
	z.stats.Fills++
	z.stats.Traded += e.Quantity
}

func (z *ZeroIntelligence) shoutPrice() float64 {
	lo, hi := z.minPrice, z.limit
	if z.side == orderbook.Ask {
		lo, hi = z.limit, z.maxPrice
	}
	if hi <= lo {
		return lo
	}
	p := cents(lo + z.rng.Float64()*(hi-lo))
	return math.Min(math.Max(p, lo), hi)
}

func cents(p float64) float64 {
	return math.Round(p*100) / 100
}
