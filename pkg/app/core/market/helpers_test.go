package market

import (
	"github.com/shopspring/decimal"

	"github.com/uhyunpark/cdamarket/pkg/app/core/orderbook"
)

// funcTrader runs fn every round.
type funcTrader struct {
	id     string
	inits  int
	fn     func(x Exchange) error
	errs   []error
	events []EventKind
}

func (t *funcTrader) ID() string      { return t.id }
func (t *funcTrader) Init(x Exchange) { t.inits++ }

func (t *funcTrader) Interact(x Exchange) error {
	if t.fn == nil {
		return nil
	}
	err := t.fn(x)
	t.errs = append(t.errs, err)
	return err
}

// listeningTrader also receives events.
type listeningTrader struct{ funcTrader }

func (t *listeningTrader) OnEvent(e Event) { t.events = append(t.events, e.Kind) }

type recorder struct{ events []Event }

func (r *recorder) OnEvent(e Event) { r.events = append(r.events, e) }

func (r *recorder) kinds() []EventKind {
	out := make([]EventKind, len(r.events))
	for i, e := range r.events {
		out[i] = e.Kind
	}
	return out
}

func (r *recorder) count(k EventKind) int {
	n := 0
	for _, e := range r.events {
		if e.Kind == k {
			n++
		}
	}
	return n
}

type fakeCheckpointer struct{ snaps []Snapshot }

func (f *fakeCheckpointer) Checkpoint(s Snapshot) error {
	f.snaps = append(f.snaps, s)
	return nil
}

type shout struct {
	owner string
	qty   int64
	price float64
	side  orderbook.Side
}

// placeOnce places the shouts in the first round only.
func placeOnce(shouts ...shout) func(x Exchange) error {
	done := false
	return func(x Exchange) error {
		if done {
			return nil
		}
		done = true
		for _, s := range shouts {
			if err := x.PlaceOrder(x.NewOrder(s.owner, s.qty, s.price, s.side)); err != nil {
				return err
			}
		}
		return nil
	}
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }
