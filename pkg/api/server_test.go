package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uhyunpark/cdamarket/pkg/app/core/market"
	"github.com/uhyunpark/cdamarket/pkg/app/core/orderbook"
	"github.com/uhyunpark/cdamarket/pkg/storage"
)

type shouter struct {
	id    string
	side  orderbook.Side
	price float64
}

func (s *shouter) ID() string           { return s.id }
func (s *shouter) Init(market.Exchange) {}
func (s *shouter) Interact(x market.Exchange) error {
	return x.PlaceOrder(x.NewOrder(s.id, 2, s.price, s.side))
}

// newTestServer runs a small market for two rounds with the server wired in
// the way cmd/market wires it.
func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	registry := market.NewRegistry()
	store := storage.NewInMemoryStore()
	srv := NewServer(registry, store, nil)

	sim := market.NewSimulation(market.Config{
		ID:           "m1",
		Closing:      market.MaxRounds{N: 2},
		DayEnding:    market.RoundsPerDay{N: 1},
		Checkpointer: store,
	},
		&shouter{id: "buyer", side: orderbook.Bid, price: 110},
		&shouter{id: "seller", side: orderbook.Ask, price: 90},
		&shouter{id: "lurker", side: orderbook.Bid, price: 50},
	)
	sim.Subscribe(srv.Listener())
	sim.OnRound = srv.Publish
	require.NoError(t, registry.Register(sim))
	require.NoError(t, sim.Run(context.Background(), 0, nil))

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, ts
}

func getJSON(t *testing.T, url string, status int, out interface{}) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, status, resp.StatusCode)
	require.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func TestMarketsEndpoints(t *testing.T) {
	_, ts := newTestServer(t)

	var markets []MarketInfo
	getJSON(t, ts.URL+"/api/v1/markets", http.StatusOK, &markets)
	require.Len(t, markets, 1)
	assert.Equal(t, "m1", markets[0].ID)
	assert.Equal(t, "closed", markets[0].Status)
	assert.Equal(t, 2, markets[0].Age)
	assert.Equal(t, 2, markets[0].Day)
	assert.Equal(t, int64(4), markets[0].Volume)

	var info MarketInfo
	getJSON(t, ts.URL+"/api/v1/markets/m1", http.StatusOK, &info)
	assert.Equal(t, markets[0], info)

	var missing ErrorResponse
	getJSON(t, ts.URL+"/api/v1/markets/nope", http.StatusNotFound, &missing)
	assert.Equal(t, "market not found", missing.Error)
}

func TestOrderbookAndQuote(t *testing.T) {
	_, ts := newTestServer(t)

	var book OrderbookSnapshot
	getJSON(t, ts.URL+"/api/v1/markets/m1/orderbook", http.StatusOK, &book)
	// Two lurker bids at 50 rest; everything else traded.
	require.Len(t, book.Bids, 1)
	assert.Equal(t, PriceLevel{Price: 50, Size: 4}, book.Bids[0])
	assert.Empty(t, book.Asks)
	assert.Len(t, book.Depth.UnmatchedBids, 2)

	var q orderbook.Quote
	getJSON(t, ts.URL+"/api/v1/markets/m1/quote", http.StatusOK, &q)
	assert.Equal(t, orderbook.Quote{Bid: 50, HasBid: true}, q)
}

func TestTradesEndpoint(t *testing.T) {
	_, ts := newTestServer(t)

	var trades []TradeInfo
	getJSON(t, ts.URL+"/api/v1/markets/m1/trades", http.StatusOK, &trades)
	require.Len(t, trades, 2)
	assert.Equal(t, 1, trades[0].Day, "newest first")
	for _, tr := range trades {
		assert.Equal(t, "buyer", tr.Buyer)
		assert.Equal(t, "seller", tr.Seller)
		assert.Equal(t, 100.0, tr.Price)
		assert.NotEmpty(t, tr.ID)
	}

	getJSON(t, ts.URL+"/api/v1/markets/m1/trades?limit=1", http.StatusOK, &trades)
	assert.Len(t, trades, 1)

	var bad ErrorResponse
	getJSON(t, ts.URL+"/api/v1/markets/m1/trades?limit=zero", http.StatusBadRequest, &bad)
}

func TestAccountsEndpoints(t *testing.T) {
	_, ts := newTestServer(t)

	var accs []AccountInfo
	getJSON(t, ts.URL+"/api/v1/markets/m1/accounts", http.StatusOK, &accs)
	assert.Len(t, accs, 4, "three traders and the clearing house")

	var buyer AccountInfo
	getJSON(t, ts.URL+"/api/v1/markets/m1/accounts/buyer", http.StatusOK, &buyer)
	assert.Equal(t, "-400", buyer.Funds)
	assert.Equal(t, int64(4), buyer.TotalVolume)

	var missing ErrorResponse
	getJSON(t, ts.URL+"/api/v1/markets/m1/accounts/ghost", http.StatusNotFound, &missing)
}

func TestCheckpointsEndpoint(t *testing.T) {
	_, ts := newTestServer(t)

	var hs []storage.Header
	getJSON(t, ts.URL+"/api/v1/markets/m1/checkpoints", http.StatusOK, &hs)
	require.Len(t, hs, 3, "two day ends and the close")
	assert.True(t, hs[2].Closed)
}

func TestHealth(t *testing.T) {
	_, ts := newTestServer(t)

	var health map[string]interface{}
	getJSON(t, ts.URL+"/health", http.StatusOK, &health)
	assert.Equal(t, "ok", health["status"])
	assert.Equal(t, 1.0, health["markets"])
	assert.Equal(t, 0.0, health["open"])
}

func TestWebSocketFeed(t *testing.T) {
	srv, ts := newTestServer(t)
	go srv.Hub().Run()
	t.Cleanup(srv.Hub().Stop)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(WSSubscribeRequest{Op: "subscribe", Channels: []string{"trades:m2", "prices:m2", "trades:"}}))
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var ack WSMessage
	require.NoError(t, conn.ReadJSON(&ack))
	assert.Equal(t, "subscribe", ack.Type)
	assert.Equal(t, []interface{}{"trades:m2"}, ack.Data, "unknown channels are not acknowledged")
	assert.Equal(t, 1, srv.Hub().Clients())

	// Events for other channels are not delivered.
	srv.onEvent(market.Event{Kind: market.RoundClosed, Market: "m2"})
	bid := orderbook.NewOrder(1, "b", 3, 10, orderbook.Bid)
	ask := orderbook.NewOrder(2, "s", 3, 9, orderbook.Ask)
	srv.onEvent(market.Event{Kind: market.TransactionExecuted, Market: "m2", TxID: "tx-1",
		Bid: bid, Ask: ask, Price: 9.5, Quantity: 3})

	var msg struct {
		Type    string    `json:"type"`
		Channel string    `json:"channel"`
		Data    TradeInfo `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "trade", msg.Type)
	assert.Equal(t, "trades:m2", msg.Channel)
	assert.Equal(t, "tx-1", msg.Data.ID)
	assert.Equal(t, int64(3), msg.Data.Size)
}

func TestValidChannel(t *testing.T) {
	for ch, want := range map[string]bool{
		"trades:m1":    true,
		"events:m1":    true,
		"orderbook:m1": true,
		"trades:":      false,
		"prices:m1":    false,
		"m1":           false,
	} {
		assert.Equal(t, want, validChannel(ch), ch)
	}
}

func TestLevels(t *testing.T) {
	bids := []orderbook.Order{{Price: 10, Quantity: 1}, {Price: 12, Quantity: 2}}
	more := []orderbook.Order{{Price: 10, Quantity: 4}}
	assert.Equal(t, []PriceLevel{{12, 2}, {10, 5}}, levels(true, bids, more))
	assert.Equal(t, []PriceLevel{{10, 5}, {12, 2}}, levels(false, bids, more))
}
