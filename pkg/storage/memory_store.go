package storage

import (
	"sync"
	"time"

	"github.com/uhyunpark/cdamarket/pkg/app/core/account"
	"github.com/uhyunpark/cdamarket/pkg/app/core/market"
)

// InMemoryStore keeps checkpoints in memory. Used when no data directory is
// configured, and in tests.
type InMemoryStore struct {
	mu       sync.Mutex
	headers  map[string][]Header
	balances map[string][]account.Account
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		headers:  make(map[string][]Header),
		balances: make(map[string][]account.Account),
	}
}

func (s *InMemoryStore) Checkpoint(snap market.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.headers[snap.ID] = append(s.headers[snap.ID], headerOf(snap, time.Now()))
	s.balances[snap.ID] = append([]account.Account(nil), snap.Accounts...)
	return nil
}

func (s *InMemoryStore) Latest(id string) (market.Snapshot, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	hs := s.headers[id]
	if len(hs) == 0 {
		return market.Snapshot{}, false, nil
	}
	snap := hs[len(hs)-1].snapshot()
	snap.Accounts = append([]account.Account(nil), s.balances[id]...)
	return snap, true, nil
}

func (s *InMemoryStore) History(id string) ([]Header, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Header(nil), s.headers[id]...), nil
}

func (s *InMemoryStore) Close() error { return nil }
