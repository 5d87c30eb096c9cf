package market

import (
	"fmt"
	"strings"
)

// Clock is the read side of the trading clock that conditions look at.
type Clock interface {
	Round() int // rounds elapsed in the current day
	Day() int   // days elapsed
	Age() int   // rounds elapsed since the market opened
}

// Condition is a predicate over the trading clock, re-evaluated every round.
// It decides when a day ends and when the market closes.
type Condition interface {
	Eval(c Clock) bool
	String() string
}

// MaxRounds holds once N rounds have run in total.
type MaxRounds struct{ N int }

func (m MaxRounds) Eval(c Clock) bool { return c.Age() >= m.N }
func (m MaxRounds) String() string    { return fmt.Sprintf("max_rounds(%d)", m.N) }

// MaxDays holds once N days have ended.
type MaxDays struct{ N int }

func (m MaxDays) Eval(c Clock) bool { return c.Day() >= m.N }
func (m MaxDays) String() string    { return fmt.Sprintf("max_days(%d)", m.N) }

// RoundsPerDay holds once N rounds have run in the current day.
// Used as a day-ending condition.
type RoundsPerDay struct{ N int }

func (r RoundsPerDay) Eval(c Clock) bool { return c.Round() >= r.N }
func (r RoundsPerDay) String() string    { return fmt.Sprintf("rounds_per_day(%d)", r.N) }

// Never never holds.
type Never struct{}

func (Never) Eval(Clock) bool { return false }
func (Never) String() string  { return "never" }

// All holds when every condition holds. An empty All holds.
type All []Condition

func (a All) Eval(c Clock) bool {
	for _, cond := range a {
		if !cond.Eval(c) {
			return false
		}
	}
	return true
}

func (a All) String() string { return join("all", a) }

// Any holds when at least one condition holds. An empty Any does not.
type Any []Condition

func (a Any) Eval(c Clock) bool {
	for _, cond := range a {
		if cond.Eval(c) {
			return true
		}
	}
	return false
}

func (a Any) String() string { return join("any", a) }

// Not negates a condition.
type Not struct{ C Condition }

func (n Not) Eval(c Clock) bool { return !n.C.Eval(c) }
func (n Not) String() string    { return "not(" + n.C.String() + ")" }

func join(name string, conds []Condition) string {
	parts := make([]string, len(conds))
	for i, c := range conds {
		parts[i] = c.String()
	}
	return name + "(" + strings.Join(parts, ", ") + ")"
}
