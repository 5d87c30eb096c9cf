package market

import (
	"github.com/uhyunpark/cdamarket/pkg/app/core/account"
	"github.com/uhyunpark/cdamarket/pkg/app/core/orderbook"
)

// Snapshot is an immutable copy of a market's public state. It is what leaves
// the simulation goroutine.
type Snapshot struct {
	ID     string `json:"id"`
	Round  int    `json:"round"`
	Day    int    `json:"day"`
	Age    int    `json:"age"`
	Closed bool   `json:"closed"`

	Quote     orderbook.Quote   `json:"quote"`
	Depth     orderbook.Depth   `json:"depth"`
	Accounts  []account.Account `json:"accounts"`
	Trades    int64             `json:"trades"`
	Volume    int64             `json:"volume"`
	LastPrice float64           `json:"lastPrice"`
}

func (s *Simulation) Snapshot() Snapshot { return s.market.Snapshot() }

func (m *Market) Snapshot() Snapshot {
	accs := m.ledger.Accounts()
	out := make([]account.Account, len(accs))
	for i, a := range accs {
		out[i] = a.Snapshot()
	}
	return Snapshot{
		ID:        m.id,
		Round:     m.round,
		Day:       m.day,
		Age:       m.age,
		Closed:    m.closed,
		Quote:     m.auctioneer.Quote(),
		Depth:     m.book.Depth(),
		Accounts:  out,
		Trades:    m.trades,
		Volume:    m.volume,
		LastPrice: m.lastPrice,
	}
}

// Restore loads the clock, counters and balances of a checkpoint into a
// simulation that has not started. The book starts empty: resting orders do
// not survive a restart.
func (s *Simulation) Restore(snap Snapshot) error {
	if s.started {
		return ErrAlreadyStarted
	}
	m := s.market
	m.round, m.day, m.age = snap.Round, snap.Day, snap.Age
	m.trades, m.volume, m.lastPrice = snap.Trades, snap.Volume, snap.LastPrice
	for _, acc := range snap.Accounts {
		a := acc
		m.ledger.Restore(&a)
	}
	s.logger.Infow("checkpoint_restored", "day", m.day, "age", m.age, "accounts", len(snap.Accounts))
	return nil
}
