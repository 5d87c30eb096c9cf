package account

import (
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/pebble"
)

// Store provides Pebble-based persistence for account balances.
// Only balances and their statistics are stored, never order flow.
type Store struct {
	db *pebble.DB
}

// NewStore opens a Pebble database at the given path
func NewStore(dbPath string) (*Store, error) {
	opts := &pebble.Options{
		Cache:                    pebble.NewCache(16 << 20), // 16MB cache
		MemTableSize:             8 << 20,                   // 8MB memtable
		MaxConcurrentCompactions: func() int { return 1 },
		MaxOpenFiles:             256,
		BytesPerSync:             512 << 10, // 512KB
	}

	db, err := pebble.Open(dbPath, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble db at %s: %w", dbPath, err)
	}

	return &Store{db: db}, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveAccount persists one account of a market
func (s *Store) SaveAccount(market string, acc *Account) error {
	data, err := json.Marshal(acc)
	if err != nil {
		return fmt.Errorf("failed to marshal account: %w", err)
	}

	if err := s.db.Set(accountKey(market, acc.Owner), data, pebble.Sync); err != nil {
		return fmt.Errorf("failed to save account: %w", err)
	}
	return nil
}

// LoadAccount loads an account from Pebble
// Returns nil if account doesn't exist
func (s *Store) LoadAccount(market, owner string) (*Account, error) {
	data, closer, err := s.db.Get(accountKey(market, owner))
	if err == pebble.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	defer closer.Close()

	var acc Account
	if err := json.Unmarshal(data, &acc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal account: %w", err)
	}
	return &acc, nil
}

// LoadAll loads every account of a market, sorted by owner (key order)
func (s *Store) LoadAll(market string) ([]*Account, error) {
	prefix := accountPrefix(market)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open iterator: %w", err)
	}
	defer iter.Close()

	var accounts []*Account
	for iter.First(); iter.Valid(); iter.Next() {
		var acc Account
		if err := json.Unmarshal(iter.Value(), &acc); err != nil {
			return nil, fmt.Errorf("failed to unmarshal account %s: %w", iter.Key(), err)
		}
		accounts = append(accounts, &acc)
	}
	return accounts, iter.Error()
}

// SaveLedger writes every account of a ledger in one atomic batch
func (s *Store) SaveLedger(market string, l *Ledger) error {
	bw := s.NewBatch()
	defer bw.Close()

	for _, acc := range l.Accounts() {
		if err := bw.SaveAccount(market, acc); err != nil {
			return fmt.Errorf("failed to stage account %s: %w", acc.Owner, err)
		}
	}
	return bw.Commit()
}

// LoadLedger restores every stored account of a market into l
func (s *Store) LoadLedger(market string, l *Ledger) (int, error) {
	accounts, err := s.LoadAll(market)
	if err != nil {
		return 0, err
	}
	for _, acc := range accounts {
		l.Restore(acc)
	}
	return len(accounts), nil
}

// BatchWrite provides atomic batch writes for multiple operations
type BatchWrite struct {
	batch *pebble.Batch
}

// NewBatch creates a new batch writer
func (s *Store) NewBatch() *BatchWrite {
	return &BatchWrite{batch: s.db.NewBatch()}
}

// SaveAccount adds account save to batch
func (bw *BatchWrite) SaveAccount(market string, acc *Account) error {
	data, err := json.Marshal(acc)
	if err != nil {
		return err
	}
	return bw.batch.Set(accountKey(market, acc.Owner), data, nil)
}

// Commit writes the batch to Pebble atomically
func (bw *BatchWrite) Commit() error {
	return bw.batch.Commit(pebble.Sync)
}

// Close releases the batch. Safe to call after Commit.
func (bw *BatchWrite) Close() error {
	return bw.batch.Close()
}
