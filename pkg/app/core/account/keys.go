package account

import (
	"fmt"
)

// Pebble key schema
// Accounts are grouped per market so one market's balances are a single
// prefix range.

// Key prefixes
const (
	prefixAccount = "acc:" // Account state
)

// accountKey returns the key for an account
// Format: "acc:{market}:{owner}"
// Example: "acc:cda-1:buyer-3"
func accountKey(market, owner string) []byte {
	return []byte(fmt.Sprintf("%s%s:%s", prefixAccount, market, owner))
}

// accountPrefix returns the prefix for all accounts of a market
// Format: "acc:{market}:"
func accountPrefix(market string) []byte {
	return []byte(fmt.Sprintf("%s%s:", prefixAccount, market))
}

// keyUpperBound returns the exclusive upper bound for a prefix scan
// Example: prefix "acc:m1:" -> upper bound "acc:m1;" (next byte after ':')
func keyUpperBound(prefix []byte) []byte {
	bound := make([]byte, len(prefix))
	copy(bound, prefix)
	bound[len(bound)-1]++
	return bound
}
