package market

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/uhyunpark/cdamarket/pkg/app/core/account"
	"github.com/uhyunpark/cdamarket/pkg/app/core/orderbook"
	"github.com/uhyunpark/cdamarket/pkg/util"
)

// Trader is a participant driven by the simulation. Init runs once before the
// first round; Interact runs once per round, in registration order.
//
// A trader that also implements Listener is subscribed to market events.
type Trader interface {
	ID() string
	Init(x Exchange)
	Interact(x Exchange) error
}

// Checkpointer persists simulation state, typically at the end of each day.
type Checkpointer interface {
	Checkpoint(snap Snapshot) error
}

// Config describes one simulation. Zero values fall back to a market that
// never closes on its own and never ends a day.
type Config struct {
	ID           string
	Closing      Condition
	DayEnding    Condition
	Pricing      PricingPolicy
	OpeningFunds decimal.Decimal

	// NewAuctioneer overrides the default ClearingHouse.
	NewAuctioneer func(book *orderbook.OrderBook, house *account.Account) Auctioneer

	CheckInvariants bool
	Checkpointer    Checkpointer
	Logger          *zap.SugaredLogger
}

// Simulation drives a Market through rounds and days until its closing
// condition holds.
//
//	Unstarted --Begin--> Running --closing condition / Close--> Closed
//
// Each round: BeginRound, every trader's Interact, EndRound. EndRound clears
// the book, advances the clock and then checks the day-ending and closing
// conditions, so a market limited to N rounds is closed right after the Nth.
type Simulation struct {
	market    *Market
	traders   []Trader
	closing   Condition
	dayEnding Condition
	store     Checkpointer
	logger    *zap.SugaredLogger

	started  bool
	finished bool

	// OnRound, if set, receives a snapshot after every round, including the
	// one that closes the market. It runs on the simulation goroutine.
	OnRound func(Snapshot)
}

func NewSimulation(cfg Config, traders ...Trader) *Simulation {
	if cfg.ID == "" {
		cfg.ID = uuid.NewString()
	}
	if cfg.Closing == nil {
		cfg.Closing = Never{}
	}
	if cfg.DayEnding == nil {
		cfg.DayEnding = Never{}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop().Sugar()
	}
	logger := cfg.Logger.With("market", cfg.ID)

	book := orderbook.NewOrderBook()
	book.CheckInvariants = cfg.CheckInvariants
	ledger := account.NewLedger(cfg.OpeningFunds)

	var auctioneer Auctioneer
	if cfg.NewAuctioneer != nil {
		auctioneer = cfg.NewAuctioneer(book, ledger.House())
	} else {
		auctioneer = NewClearingHouse(book, cfg.Pricing, ledger.House())
	}

	return &Simulation{
		market:    newMarket(cfg.ID, book, auctioneer, ledger, logger),
		traders:   traders,
		closing:   cfg.Closing,
		dayEnding: cfg.DayEnding,
		store:     cfg.Checkpointer,
		logger:    logger,
	}
}

func (s *Simulation) Market() *Market { return s.market }
func (s *Simulation) ID() string      { return s.market.id }
func (s *Simulation) Closed() bool    { return s.market.closed }

// Subscribe registers a listener. Listeners added after Begin miss the
// start-up events.
func (s *Simulation) Subscribe(l Listener) { s.market.Subscribe(l) }

// Begin opens trading accounts, initialises the traders and opens the market.
func (s *Simulation) Begin() error {
	if s.started {
		return ErrAlreadyStarted
	}
	if s.market.events.dispatching {
		return ErrReentrant
	}
	s.started = true

	for _, t := range s.traders {
		s.market.ledger.Get(t.ID())
		if l, ok := t.(Listener); ok {
			s.market.Subscribe(l)
		}
	}
	s.market.fire(Event{Kind: SimulationStarting})
	for _, t := range s.traders {
		t.Init(s.market)
	}
	s.market.fire(Event{Kind: MarketOpen})
	s.logger.Infow("market_open",
		"traders", len(s.traders),
		"closing", s.closing.String(),
		"day_ending", s.dayEnding.String(),
	)
	return nil
}

// Step runs one round. It is the same as RunSingleRound.
func (s *Simulation) Step() error { return s.RunSingleRound() }

// RunSingleRound runs one round, starting the simulation first if needed.
// It fails with ErrAuctionClosed once the market has closed.
func (s *Simulation) RunSingleRound() error {
	if s.market.events.dispatching {
		return ErrReentrant
	}
	if s.market.closed {
		// The market may have been closed directly; finish the run once.
		if err := s.Close(); err != nil {
			return err
		}
		return ErrAuctionClosed
	}
	if !s.started {
		if err := s.Begin(); err != nil {
			return err
		}
	}
	if !s.closing.Eval(s.market) {
		if err := s.BeginRound(); err != nil {
			return err
		}
		for _, t := range s.traders {
			if err := t.Interact(s.market); err != nil {
				s.logger.Debugw("trader_error", "trader", t.ID(), "err", err)
			}
		}
		if !s.market.closed {
			if err := s.EndRound(); err != nil {
				return err
			}
		}
	}
	if s.market.closed || s.closing.Eval(s.market) {
		if err := s.Close(); err != nil {
			return err
		}
	}
	if s.OnRound != nil {
		s.OnRound(s.Snapshot())
	}
	return nil
}

// BeginRound starts a round, announcing a new day on its first round.
func (s *Simulation) BeginRound() error {
	if err := s.market.mutable(); err != nil {
		return err
	}
	if s.market.round == 0 {
		s.market.fire(Event{Kind: DayOpening})
	}
	return nil
}

// EndRound lets the auctioneer clear, advances the clock and ends the day if
// the day-ending condition now holds.
func (s *Simulation) EndRound() error {
	m := s.market
	if err := m.mutable(); err != nil {
		return err
	}
	m.fire(Event{Kind: RoundClosing})
	if err := m.auctioneer.EndOfRoundProcessing(m); err != nil {
		return fmt.Errorf("end of round %d: %w", m.age, err)
	}
	m.round++
	m.age++
	m.fire(Event{Kind: RoundClosed})

	if s.dayEnding.Eval(m) {
		return s.EndDay()
	}
	return nil
}

// EndDay resets the round counter and lets the auctioneer run its
// end-of-day processing.
func (s *Simulation) EndDay() error {
	m := s.market
	if err := m.mutable(); err != nil {
		return err
	}
	m.round = 0
	m.fire(Event{Kind: EndOfDay})
	if err := m.auctioneer.EndOfDayProcessing(m); err != nil {
		return fmt.Errorf("end of day %d: %w", m.day, err)
	}
	m.day++
	s.logger.Infow("day_ended",
		"day", m.day,
		"age", m.age,
		"trades", m.trades,
		"volume", m.volume,
	)
	return s.checkpoint()
}

// Close closes the market and finishes the simulation. It is idempotent.
func (s *Simulation) Close() error {
	if s.finished {
		return nil
	}
	if err := s.market.Close(); err != nil {
		return err
	}
	s.finished = true
	s.market.fire(Event{Kind: SimulationFinished})
	s.logger.Infow("market_closed",
		"day", s.market.day,
		"age", s.market.age,
		"trades", s.market.trades,
		"volume", s.market.volume,
	)
	return s.checkpoint()
}

// Run steps the simulation every interval until the market closes or ctx is
// done. A zero interval runs rounds back to back.
func (s *Simulation) Run(ctx context.Context, interval time.Duration, clock util.Clock) error {
	if clock == nil {
		clock = util.RealClock{}
	}
	for {
		if err := s.RunSingleRound(); err != nil {
			return err
		}
		if s.Closed() {
			return nil
		}
		if interval <= 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-clock.After(interval):
		}
	}
}

func (s *Simulation) checkpoint() error {
	if s.store == nil {
		return nil
	}
	if err := s.store.Checkpoint(s.Snapshot()); err != nil {
		return fmt.Errorf("checkpoint: %w", err)
	}
	return nil
}
