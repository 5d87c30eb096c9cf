package api

import (
	"github.com/uhyunpark/cdamarket/pkg/app/core/account"
	"github.com/uhyunpark/cdamarket/pkg/app/core/market"
	"github.com/uhyunpark/cdamarket/pkg/app/core/orderbook"
)

// API response types for REST endpoints and WebSocket messages

// ==============================
// REST Response Types
// ==============================

// MarketInfo summarises a market's clock and activity
type MarketInfo struct {
	ID        string          `json:"id"`
	Status    string          `json:"status"` // "open" or "closed"
	Round     int             `json:"round"`
	Day       int             `json:"day"`
	Age       int             `json:"age"`
	Trades    int64           `json:"trades"`
	Volume    int64           `json:"volume"`
	LastPrice float64         `json:"lastPrice"`
	Quote     orderbook.Quote `json:"quote"`
	Accounts  int             `json:"accounts"`
}

func marketInfo(s market.Snapshot) MarketInfo {
	status := "open"
	if s.Closed {
		status = "closed"
	}
	return MarketInfo{
		ID:        s.ID,
		Status:    status,
		Round:     s.Round,
		Day:       s.Day,
		Age:       s.Age,
		Trades:    s.Trades,
		Volume:    s.Volume,
		LastPrice: s.LastPrice,
		Quote:     s.Quote,
		Accounts:  len(s.Accounts),
	}
}

// OrderbookSnapshot is the book aggregated into price levels, plus the raw
// four-heap depth.
type OrderbookSnapshot struct {
	Market    string          `json:"market"`
	Bids      []PriceLevel    `json:"bids"` // Sorted high to low
	Asks      []PriceLevel    `json:"asks"` // Sorted low to high
	Depth     orderbook.Depth `json:"depth"`
	Age       int             `json:"age"`
	Timestamp int64           `json:"timestamp"` // Unix milliseconds
}

// PriceLevel represents [price, size] tuple
type PriceLevel struct {
	Price float64 `json:"price"`
	Size  int64   `json:"size"`
}

// TradeInfo represents a settled trade
type TradeInfo struct {
	ID        string  `json:"id"`
	Market    string  `json:"market"`
	Price     float64 `json:"price"`
	Size      int64   `json:"size"`
	Buyer     string  `json:"buyer"`
	Seller    string  `json:"seller"`
	Round     int     `json:"round"`
	Day       int     `json:"day"`
	Timestamp int64   `json:"timestamp"` // Unix milliseconds
}

// AccountInfo represents one ledger account
type AccountInfo struct {
	Owner       string `json:"owner"`
	Funds       string `json:"funds"`
	TradeCount  int64  `json:"tradeCount"`
	TotalVolume int64  `json:"totalVolume"`
	Turnover    string `json:"turnover"`
}

func accountInfo(a account.Account) AccountInfo {
	return AccountInfo{
		Owner:       a.Owner,
		Funds:       a.Funds.String(),
		TradeCount:  a.TradeCount,
		TotalVolume: a.TotalVolume,
		Turnover:    a.Turnover.String(),
	}
}

// ==============================
// WebSocket Message Types
// ==============================

// WSMessage is the base structure for all WebSocket messages
type WSMessage struct {
	Type    string      `json:"type"`    // "orderbook", "trade", "event"
	Channel string      `json:"channel"` // e.g. "trades:cda-1"
	Data    interface{} `json:"data"`    // Type-specific payload
}

// WSSubscribeRequest is sent by client to subscribe to channels
type WSSubscribeRequest struct {
	Op       string   `json:"op"`       // "subscribe" or "unsubscribe"
	Channels []string `json:"channels"` // e.g., ["orderbook:cda-1", "trades:cda-1", "events:cda-1"]
}

// ErrorResponse is returned for all errors
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
