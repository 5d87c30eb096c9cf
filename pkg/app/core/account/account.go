package account

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Account is one party's cash balance in the settlement ledger.
// There is no overdraft protection: a negative balance is representable, and
// keeping traders solvent is the pricing policy's job.
type Account struct {
	Owner string          `json:"owner"`
	Funds decimal.Decimal `json:"funds"`

	// Cumulative statistics
	TradeCount  int64           `json:"tradeCount"`  // settled trades this account took part in
	TotalVolume int64           `json:"totalVolume"` // units bought or sold
	Turnover    decimal.Decimal `json:"turnover"`    // cash paid or received for those units
}

// NewAccount creates an account holding the given opening balance.
func NewAccount(owner string, funds decimal.Decimal) *Account {
	return &Account{Owner: owner, Funds: funds}
}

// Credit adds funds to the account.
func (a *Account) Credit(amount decimal.Decimal) {
	a.Funds = a.Funds.Add(amount)
}

// Debit removes funds from the account. The balance may go negative.
func (a *Account) Debit(amount decimal.Decimal) {
	a.Funds = a.Funds.Sub(amount)
}

// Transfer debits a and credits other with the same amount.
func (a *Account) Transfer(other *Account, amount decimal.Decimal) {
	a.Debit(amount)
	other.Credit(amount)
}

// DoubleEntry settles a trade through a as the clearing house: charge moves
// from payer to a, then payment moves from a to payee. Whatever is left of
// charge - payment stays with a as its spread.
func (a *Account) DoubleEntry(payer *Account, charge decimal.Decimal, payee *Account, payment decimal.Decimal) {
	payer.Transfer(a, charge)
	a.Transfer(payee, payment)
}

// RecordTrade updates the cumulative statistics after a settled fill.
func (a *Account) RecordTrade(qty int64, cash decimal.Decimal) {
	a.TradeCount++
	a.TotalVolume += qty
	a.Turnover = a.Turnover.Add(cash.Abs())
}

// Snapshot returns a copy that can be handed to another goroutine.
func (a *Account) Snapshot() Account {
	return *a
}

func (a *Account) String() string {
	return fmt.Sprintf("{owner: %s, funds: %s}", a.Owner, a.Funds.String())
}
