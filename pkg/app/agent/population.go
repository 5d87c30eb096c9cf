package agent

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/uhyunpark/cdamarket/pkg/app/core/market"
	"github.com/uhyunpark/cdamarket/pkg/app/core/orderbook"
)

// PopulationConfig describes a set of zero-intelligence traders.
type PopulationConfig struct {
	Buyers   int
	Sellers  int
	Units    int64   // units each trader may trade
	MinPrice float64 // lowest valuation, cost and shout
	MaxPrice float64 // highest valuation, cost and shout
	Seed     int64
}

func DefaultPopulationConfig() PopulationConfig {
	return PopulationConfig{
		Buyers:   10,
		Sellers:  10,
		Units:    5,
		MinPrice: 1,
		MaxPrice: 200,
		Seed:     1,
	}
}

// Population is a fixed set of zero-intelligence traders with private
// valuations and costs drawn uniformly from [MinPrice, MaxPrice].
type Population struct {
	Buyers  []*ZeroIntelligence
	Sellers []*ZeroIntelligence
}

func NewPopulation(cfg PopulationConfig) (*Population, error) {
	if cfg.Buyers < 0 || cfg.Sellers < 0 {
		return nil, fmt.Errorf("negative population %d/%d", cfg.Buyers, cfg.Sellers)
	}
	if cfg.Units < 1 {
		return nil, fmt.Errorf("units must be positive, got %d", cfg.Units)
	}
	if cfg.MinPrice < 0 || cfg.MaxPrice <= cfg.MinPrice {
		return nil, fmt.Errorf("bad price range [%g, %g]", cfg.MinPrice, cfg.MaxPrice)
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	draw := func() float64 {
		return cents(cfg.MinPrice + rng.Float64()*(cfg.MaxPrice-cfg.MinPrice))
	}

	p := &Population{}
	for i := 0; i < cfg.Buyers; i++ {
		p.Buyers = append(p.Buyers, NewZeroIntelligence(
			fmt.Sprintf("buyer_%d", i+1), orderbook.Bid, draw(), cfg.Units,
			cfg.MinPrice, cfg.MaxPrice, rng.Int63()))
	}
	for i := 0; i < cfg.Sellers; i++ {
		p.Sellers = append(p.Sellers, NewZeroIntelligence(
			fmt.Sprintf("seller_%d", i+1), orderbook.Ask, draw(), cfg.Units,
			cfg.MinPrice, cfg.MaxPrice, rng.Int63()))
	}
	return p, nil
}

// Traders returns buyers and sellers interleaved so neither side always
// moves first within a round.
func (p *Population) Traders() []market.Trader {
	out := make([]market.Trader, 0, len(p.Buyers)+len(p.Sellers))
	for i := 0; i < len(p.Buyers) || i < len(p.Sellers); i++ {
		if i < len(p.Buyers) {
			out = append(out, p.Buyers[i])
		}
		if i < len(p.Sellers) {
			out = append(out, p.Sellers[i])
		}
	}
	return out
}

// MaxSurplus is the total profit of the competitive allocation: the highest
// valued units bought from the cheapest ones while value exceeds cost.
func (p *Population) MaxSurplus() float64 {
	values := units(p.Buyers)
	costs := units(p.Sellers)
	sort.Sort(sort.Reverse(sort.Float64Slice(values)))
	sort.Float64s(costs)

	total := 0.0
	for i := 0; i < len(values) && i < len(costs); i++ {
		if values[i] <= costs[i] {
			break
		}
		total += values[i] - costs[i]
	}
	return total
}

// Surplus is the profit the traders actually realised.
func (p *Population) Surplus() float64 {
	total := 0.0
	for _, z := range p.Buyers {
		total += z.stats.Surplus
	}
	for _, z := range p.Sellers {
		total += z.stats.Surplus
	}
	return total
}

// Efficiency is realised surplus over MaxSurplus, or 0 if no trade was
// possible.
func (p *Population) Efficiency() float64 {
	best := p.MaxSurplus()
	if best <= 0 {
		return 0
	}
	return math.Min(p.Surplus()/best, 1)
}

func units(traders []*ZeroIntelligence) []float64 {
	var out []float64
	for _, z := range traders {
		for i := int64(0); i < z.units; i++ {
			out = append(out, z.limit)
		}
	}
	return out
}
