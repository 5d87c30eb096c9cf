package api

import (
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/uhyunpark/cdamarket/pkg/app/core/market"
	"github.com/uhyunpark/cdamarket/pkg/app/core/orderbook"
	"github.com/uhyunpark/cdamarket/pkg/storage"
)

const maxRecentTrades = 500

// Server serves a read-only view of the registered markets over REST and
// pushes market events to WebSocket clients.
//
// Handlers only read published snapshots; they never touch a running book.
type Server struct {
	registry *market.Registry
	store    storage.Store // optional
	router   *mux.Router
	hub      *Hub
	logger   *zap.SugaredLogger

	tradesMu sync.RWMutex
	trades   map[string][]TradeInfo // market -> most recent trades, oldest first
}

// NewServer creates a new API server. store may be nil.
func NewServer(registry *market.Registry, store storage.Store, logger *zap.SugaredLogger) *Server {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	s := &Server{
		registry: registry,
		store:    store,
		router:   mux.NewRouter(),
		hub:      NewHub(logger),
		logger:   logger,
		trades:   make(map[string][]TradeInfo),
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	// API v1 routes
	api := s.router.PathPrefix("/api/v1").Subrouter()

	// Market endpoints
	api.HandleFunc("/markets", s.handleGetMarkets).Methods("GET")
	api.HandleFunc("/markets/{id}", s.handleGetMarket).Methods("GET")
	api.HandleFunc("/markets/{id}/quote", s.handleGetQuote).Methods("GET")
	api.HandleFunc("/markets/{id}/orderbook", s.handleGetOrderbook).Methods("GET")
	api.HandleFunc("/markets/{id}/trades", s.handleGetTrades).Methods("GET")
	api.HandleFunc("/markets/{id}/checkpoints", s.handleGetCheckpoints).Methods("GET")

	// Account endpoints
	api.HandleFunc("/markets/{id}/accounts", s.handleGetAccounts).Methods("GET")
	api.HandleFunc("/markets/{id}/accounts/{owner}", s.handleGetAccount).Methods("GET")

	// WebSocket endpoint
	s.router.HandleFunc("/ws", s.handleWebSocket)

	// Health check
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Handler returns the router wrapped in CORS handling.
func (s *Server) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000", "http://localhost:3001"},
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: true,
	})
	return c.Handler(s.router)
}

// Hub returns the WebSocket hub.
func (s *Server) Hub() *Hub { return s.hub }

// Start starts the WebSocket hub and serves until the listener fails.
func (s *Server) Start(addr string) error {
	go s.hub.Run()

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.logger.Infow("api_server_listening", "addr", addr)
	return srv.ListenAndServe()
}

// ==============================
// Simulation hooks
// ==============================

// Listener returns a market.Listener that records trades and forwards
// events to WebSocket clients. It never blocks the simulation.
func (s *Server) Listener() market.Listener {
	return market.ListenerFunc(s.onEvent)
}

func (s *Server) onEvent(e market.Event) {
	now := time.Now().UnixMilli()
	if e.Kind == market.TransactionExecuted {
		t := TradeInfo{
			ID:        e.TxID,
			Market:    e.Market,
			Price:     e.Price,
			Size:      e.Quantity,
			Buyer:     e.Bid.Owner,
			Seller:    e.Ask.Owner,
			Round:     e.Round,
			Day:       e.Day,
			Timestamp: now,
		}
		s.recordTrade(t)
		ch := channelName(feedTrades, e.Market)
		s.hub.BroadcastToChannel(ch, WSMessage{Type: "trade", Channel: ch, Data: t})
	}
	ch := channelName(feedEvents, e.Market)
	s.hub.BroadcastToChannel(ch, WSMessage{Type: "event", Channel: ch, Data: e})
}

// Publish stores a snapshot in the registry and broadcasts the book.
// Intended as the simulation's OnRound hook.
func (s *Server) Publish(snap market.Snapshot) {
	s.registry.Publish(snap)
	channel := channelName(feedOrderbook, snap.ID)
	s.hub.BroadcastToChannel(channel, WSMessage{Type: "orderbook", Channel: channel, Data: orderbookSnapshot(snap)})
}

func (s *Server) recordTrade(t TradeInfo) {
	s.tradesMu.Lock()
	defer s.tradesMu.Unlock()
	trades := append(s.trades[t.Market], t)
	if len(trades) > maxRecentTrades {
		trades = trades[len(trades)-maxRecentTrades:]
	}
	s.trades[t.Market] = trades
}

// ==============================
// REST Handlers
// ==============================

func (s *Server) handleGetMarkets(w http.ResponseWriter, r *http.Request) {
	snaps := s.registry.List()
	response := make([]MarketInfo, len(snaps))
	for i, snap := range snaps {
		response[i] = marketInfo(snap)
	}
	respondJSON(w, response)
}

func (s *Server) handleGetMarket(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshot(w, r)
	if !ok {
		return
	}
	respondJSON(w, marketInfo(snap))
}

func (s *Server) handleGetQuote(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshot(w, r)
	if !ok {
		return
	}
	respondJSON(w, snap.Quote)
}

func (s *Server) handleGetOrderbook(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshot(w, r)
	if !ok {
		return
	}
	respondJSON(w, orderbookSnapshot(snap))
}

func (s *Server) handleGetTrades(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshot(w, r)
	if !ok {
		return
	}

	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			respondError(w, http.StatusBadRequest, "invalid limit", "limit must be a positive integer")
			return
		}
		limit = n
	}

	s.tradesMu.RLock()
	trades := s.trades[snap.ID]
	if len(trades) > limit {
		trades = trades[len(trades)-limit:]
	}
	// Newest first
	out := make([]TradeInfo, len(trades))
	for i, t := range trades {
		out[len(trades)-1-i] = t
	}
	s.tradesMu.RUnlock()

	respondJSON(w, out)
}

func (s *Server) handleGetCheckpoints(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshot(w, r)
	if !ok {
		return
	}
	if s.store == nil {
		respondJSON(w, []storage.Header{})
		return
	}
	hs, err := s.store.History(snap.ID)
	if err != nil {
		s.logger.Warnw("checkpoint_history_failed", "market", snap.ID, "err", err)
		respondError(w, http.StatusInternalServerError, "storage error", err.Error())
		return
	}
	if hs == nil {
		hs = []storage.Header{}
	}
	respondJSON(w, hs)
}

func (s *Server) handleGetAccounts(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshot(w, r)
	if !ok {
		return
	}
	out := make([]AccountInfo, len(snap.Accounts))
	for i, a := range snap.Accounts {
		out[i] = accountInfo(a)
	}
	respondJSON(w, out)
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshot(w, r)
	if !ok {
		return
	}
	owner := mux.Vars(r)["owner"]
	for _, a := range snap.Accounts {
		if a.Owner == owner {
			respondJSON(w, accountInfo(a))
			return
		}
	}
	respondError(w, http.StatusNotFound, "account not found", owner)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]interface{}{
		"status":  "ok",
		"markets": s.registry.Count(),
		"open":    len(s.registry.ListOpen()),
	})
}

// ==============================
// Helper Functions
// ==============================

func (s *Server) snapshot(w http.ResponseWriter, r *http.Request) (market.Snapshot, bool) {
	snap, err := s.registry.Get(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusNotFound, "market not found", err.Error())
		return market.Snapshot{}, false
	}
	return snap, true
}

func orderbookSnapshot(snap market.Snapshot) OrderbookSnapshot {
	d := snap.Depth
	return OrderbookSnapshot{
		Market:    snap.ID,
		Bids:      levels(true, d.MatchedBids, d.UnmatchedBids),
		Asks:      levels(false, d.MatchedAsks, d.UnmatchedAsks),
		Depth:     d,
		Age:       snap.Age,
		Timestamp: time.Now().UnixMilli(),
	}
}

// levels aggregates orders by price, best price first.
func levels(desc bool, sets ...[]orderbook.Order) []PriceLevel {
	size := make(map[float64]int64)
	for _, set := range sets {
		for _, o := range set {
			size[o.Price] += o.Quantity
		}
	}
	out := make([]PriceLevel, 0, len(size))
	for p, q := range size {
		out = append(out, PriceLevel{Price: p, Size: q})
	}
	sort.Slice(out, func(i, j int) bool {
		if desc {
			return out[i].Price > out[j].Price
		}
		return out[i].Price < out[j].Price
	})
	return out
}

func respondJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, error string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   error,
		Message: message,
	})
}
