package market

import (
	"fmt"

	"github.com/uhyunpark/cdamarket/pkg/app/core/orderbook"
)

// PricingPolicy picks the transaction price of one matched pair. lo and hi
// are the book's clearing range at the time the round was cleared.
type PricingPolicy interface {
	Price(bid, ask orderbook.Order, lo, hi float64) float64
	String() string
}

// Discriminatory prices every pair on its own: K*bid + (1-K)*ask.
// K=0.5 splits the surplus evenly, K=1 gives all of it to the seller.
type Discriminatory struct{ K float64 }

func (d Discriminatory) Price(bid, ask orderbook.Order, _, _ float64) float64 {
	return d.K*bid.Price + (1-d.K)*ask.Price
}

func (d Discriminatory) String() string { return fmt.Sprintf("discriminatory(k=%g)", d.K) }

// Uniform trades every pair at one price, K*hi + (1-K)*lo, taken from the
// clearing range. The range lies within every matched pair's own spread.
type Uniform struct{ K float64 }

func (u Uniform) Price(_, _ orderbook.Order, lo, hi float64) float64 {
	return u.K*hi + (1-u.K)*lo
}

func (u Uniform) String() string { return fmt.Sprintf("uniform(k=%g)", u.K) }

// ParsePricing maps a config name to a policy.
func ParsePricing(name string, k float64) (PricingPolicy, error) {
	switch name {
	case "", "discriminatory":
		return Discriminatory{K: k}, nil
	case "uniform":
		return Uniform{K: k}, nil
	default:
		return nil, fmt.Errorf("unknown pricing policy %q", name)
	}
}
