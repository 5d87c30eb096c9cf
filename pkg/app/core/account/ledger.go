package account

import (
	"sort"

	"github.com/shopspring/decimal"
)

// ClearingHouse is the owner name of the account that sits between buyers
// and sellers during settlement.
const ClearingHouse = "clearing-house"

// Ledger holds every account of one market, including the clearing house.
// Like the order book it belongs to, it is not safe for concurrent use.
type Ledger struct {
	accounts map[string]*Account
	opening  decimal.Decimal // balance given to accounts opened on demand
}

// NewLedger creates a ledger whose accounts open with the given balance.
// The clearing house always opens at zero.
func NewLedger(opening decimal.Decimal) *Ledger {
	l := &Ledger{
		accounts: make(map[string]*Account),
		opening:  opening,
	}
	l.accounts[ClearingHouse] = NewAccount(ClearingHouse, decimal.Zero)
	return l
}

// Get returns the owner's account, opening it if it doesn't exist.
func (l *Ledger) Get(owner string) *Account {
	if acc, ok := l.accounts[owner]; ok {
		return acc
	}
	acc := NewAccount(owner, l.opening)
	l.accounts[owner] = acc
	return acc
}

// Lookup returns the owner's account without creating it.
func (l *Ledger) Lookup(owner string) (*Account, bool) {
	acc, ok := l.accounts[owner]
	return acc, ok
}

// Restore replaces or adds an account, e.g. after loading it from a Store.
func (l *Ledger) Restore(acc *Account) {
	l.accounts[acc.Owner] = acc
}

// House returns the clearing-house account.
func (l *Ledger) House() *Account {
	return l.accounts[ClearingHouse]
}

// Accounts returns all accounts sorted by owner.
func (l *Ledger) Accounts() []*Account {
	out := make([]*Account, 0, len(l.accounts))
	for _, acc := range l.accounts {
		out = append(out, acc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Owner < out[j].Owner })
	return out
}

// Total returns the sum of all balances. Settlement only moves money between
// accounts, so Total changes only when money is credited from outside.
func (l *Ledger) Total() decimal.Decimal {
	total := decimal.Zero
	for _, acc := range l.accounts {
		total = total.Add(acc.Funds)
	}
	return total
}

func (l *Ledger) Count() int { return len(l.accounts) }
