package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uhyunpark/cdamarket/pkg/app/core/market"
	"github.com/uhyunpark/cdamarket/pkg/app/core/orderbook"
)

func TestShoutsStayWithinLimit(t *testing.T) {
	buyer := NewZeroIntelligence("b", orderbook.Bid, 50, 1, 10, 100, 7)
	seller := NewZeroIntelligence("s", orderbook.Ask, 50, 1, 10, 100, 7)
	for i := 0; i < 1000; i++ {
		bp, sp := buyer.shoutPrice(), seller.shoutPrice()
		require.True(t, bp >= 10 && bp <= 50, "bid %v", bp)
		require.True(t, sp >= 50 && sp <= 100, "ask %v", sp)
	}
}

func TestTraderWithdrawsPreviousShout(t *testing.T) {
	z := NewZeroIntelligence("b", orderbook.Bid, 50, 3, 1, 100, 1)
	sim := market.NewSimulation(market.Config{CheckInvariants: true}, z)

	for i := 0; i < 5; i++ {
		require.NoError(t, sim.Step())
	}
	book := sim.Market().Book()
	assert.Equal(t, 1, book.Size(), "only the latest shout rests")
	assert.Equal(t, 5, z.Stats().Shouts)
	assert.Equal(t, 4, z.Stats().Cancels)
	assert.Equal(t, int64(3), z.Remaining())
}

func TestTraderStopsWhenUnitsAreTraded(t *testing.T) {
	buyer := NewZeroIntelligence("b", orderbook.Bid, 100, 2, 90, 100, 3)
	seller := NewZeroIntelligence("s", orderbook.Ask, 10, 2, 10, 20, 4)
	sim := market.NewSimulation(market.Config{Closing: market.MaxRounds{N: 5}, CheckInvariants: true}, buyer, seller)

	require.NoError(t, sim.Run(context.Background(), 0, nil))

	assert.Equal(t, int64(0), buyer.Remaining())
	assert.Equal(t, int64(0), seller.Remaining())
	assert.Equal(t, 2, buyer.Stats().Shouts)
	assert.Equal(t, int64(2), sim.Snapshot().Volume)
	assert.Greater(t, buyer.Stats().Surplus, 0.0)
	assert.Greater(t, seller.Stats().Surplus, 0.0)
}

func TestPopulationEfficiency(t *testing.T) {
	pop, err := NewPopulation(DefaultPopulationConfig())
	require.NoError(t, err)
	require.Len(t, pop.Traders(), 20)

	sim := market.NewSimulation(market.Config{
		Closing:         market.MaxRounds{N: 200},
		Pricing:         market.Discriminatory{K: 0.5},
		CheckInvariants: true,
	}, pop.Traders()...)
	require.NoError(t, sim.Run(context.Background(), 0, nil))

	assert.Greater(t, pop.MaxSurplus(), 0.0)
	assert.Greater(t, pop.Surplus(), 0.0)
	assert.LessOrEqual(t, pop.Surplus(), pop.MaxSurplus()+1e-6)
	assert.True(t, sim.Market().Ledger().Total().IsZero(), "settlement only moves money")

	for _, z := range append(pop.Buyers, pop.Sellers...) {
		assert.GreaterOrEqual(t, z.Remaining(), int64(0), z.ID())
		assert.GreaterOrEqual(t, z.Stats().Surplus, -1e-9, "%s traded at a loss", z.ID())
	}
}

func TestNewPopulationRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name string
		mod  func(*PopulationConfig)
	}{
		{"negative buyers", func(c *PopulationConfig) { c.Buyers = -1 }},
		{"no units", func(c *PopulationConfig) { c.Units = 0 }},
		{"empty range", func(c *PopulationConfig) { c.MaxPrice = c.MinPrice }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultPopulationConfig()
			tt.mod(&cfg)
			_, err := NewPopulation(cfg)
			assert.Error(t, err)
		})
	}
}

func TestMaxSurplus(t *testing.T) {
	pop := &Population{
		Buyers: []*ZeroIntelligence{
			NewZeroIntelligence("b1", orderbook.Bid, 100, 1, 0, 200, 1),
			NewZeroIntelligence("b2", orderbook.Bid, 60, 2, 0, 200, 1),
		},
		Sellers: []*ZeroIntelligence{
			NewZeroIntelligence("s1", orderbook.Ask, 40, 2, 0, 200, 1),
			NewZeroIntelligence("s2", orderbook.Ask, 70, 1, 0, 200, 1),
		},
	}
	// values 100 60 60, costs 40 40 70: (100-40) + (60-40) = 80
	assert.InDelta(t, 80.0, pop.MaxSurplus(), 1e-9)
}
