package storage

import (
	"time"

	"github.com/uhyunpark/cdamarket/pkg/app/core/market"
	"github.com/uhyunpark/cdamarket/pkg/app/core/orderbook"
)

// Header is the clock part of a checkpoint.
type Header struct {
	Market    string          `json:"market"`
	Round     int             `json:"round"`
	Day       int             `json:"day"`
	Age       int             `json:"age"`
	Closed    bool            `json:"closed"`
	Trades    int64           `json:"trades"`
	Volume    int64           `json:"volume"`
	LastPrice float64         `json:"lastPrice"`
	Quote     orderbook.Quote `json:"quote"`
	SavedAt   time.Time       `json:"savedAt"`
}

func headerOf(s market.Snapshot, now time.Time) Header {
	return Header{
		Market:    s.ID,
		Round:     s.Round,
		Day:       s.Day,
		Age:       s.Age,
		Closed:    s.Closed,
		Trades:    s.Trades,
		Volume:    s.Volume,
		LastPrice: s.LastPrice,
		Quote:     s.Quote,
		SavedAt:   now,
	}
}

func (h Header) snapshot() market.Snapshot {
	return market.Snapshot{
		ID:        h.Market,
		Round:     h.Round,
		Day:       h.Day,
		Age:       h.Age,
		Closed:    h.Closed,
		Trades:    h.Trades,
		Volume:    h.Volume,
		LastPrice: h.LastPrice,
		Quote:     h.Quote,
	}
}

// Store keeps checkpoints of markets: the clock at every checkpoint and the
// latest account balances. Order flow is never stored.
type Store interface {
	market.Checkpointer
	// Latest returns the most recent checkpoint of a market with its
	// balances. ok is false when the market was never checkpointed.
	Latest(id string) (snap market.Snapshot, ok bool, err error)
	// History lists checkpoint headers of a market, oldest first.
	History(id string) ([]Header, error)
	Close() error
}

var (
	_ Store = (*PebbleStore)(nil)
	_ Store = (*InMemoryStore)(nil)
)
