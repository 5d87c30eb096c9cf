package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cockroachdb/pebble"

	"github.com/uhyunpark/cdamarket/pkg/app/core/account"
	"github.com/uhyunpark/cdamarket/pkg/app/core/market"
	"github.com/uhyunpark/cdamarket/pkg/util"
)

// PebbleStore writes checkpoint headers to one pebble database and balances
// to an account.Store next to it.
type PebbleStore struct {
	db       *pebble.DB
	accounts *account.Store
	clock    util.Clock
}

// NewPebbleStore opens (or creates) a checkpoint store under dir.
func NewPebbleStore(dir string, clock util.Clock) (*PebbleStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := pebble.Open(filepath.Join(dir, "checkpoints"), &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open checkpoints: %w", err)
	}
	accounts, err := account.NewStore(filepath.Join(dir, "accounts"))
	if err != nil {
		db.Close()
		return nil, err
	}
	if clock == nil {
		clock = util.RealClock{}
	}
	return &PebbleStore{db: db, accounts: accounts, clock: clock}, nil
}

func (s *PebbleStore) Close() error {
	return errors.Join(s.accounts.Close(), s.db.Close())
}

// keys: ck:<market>:<8-byte age>
func kCheckpointPrefix(id string) []byte { return []byte("ck:" + id + ":") }
func kCheckpoint(id string, age int) []byte {
	return append(kCheckpointPrefix(id), ageKey(age)...)
}

func prefixUpperBound(prefix []byte) []byte {
	bound := append([]byte(nil), prefix...)
	bound[len(bound)-1]++
	return bound
}

// Checkpoint stores the header and balances of a snapshot. Balances go in
// first so a header is never visible without them.
func (s *PebbleStore) Checkpoint(snap market.Snapshot) error {
	bw := s.accounts.NewBatch()
	defer bw.Close()
	for i := range snap.Accounts {
		if err := bw.SaveAccount(snap.ID, &snap.Accounts[i]); err != nil {
			return fmt.Errorf("stage account %s: %w", snap.Accounts[i].Owner, err)
		}
	}
	if err := bw.Commit(); err != nil {
		return fmt.Errorf("save balances: %w", err)
	}

	val, err := encodeGob(headerOf(snap, s.clock.Now()))
	if err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}
	if err := s.db.Set(kCheckpoint(snap.ID, snap.Age), val, pebble.Sync); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

func (s *PebbleStore) Latest(id string) (market.Snapshot, bool, error) {
	prefix := kCheckpointPrefix(id)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: prefixUpperBound(prefix),
	})
	if err != nil {
		return market.Snapshot{}, false, err
	}
	defer iter.Close()

	if !iter.Last() {
		return market.Snapshot{}, false, iter.Error()
	}
	var h Header
	if err := decodeGob(iter.Value(), &h); err != nil {
		return market.Snapshot{}, false, fmt.Errorf("decode checkpoint: %w", err)
	}

	snap := h.snapshot()
	accs, err := s.accounts.LoadAll(id)
	if err != nil {
		return market.Snapshot{}, false, err
	}
	snap.Accounts = make([]account.Account, len(accs))
	for i, a := range accs {
		snap.Accounts[i] = *a
	}
	return snap, true, nil
}

func (s *PebbleStore) History(id string) ([]Header, error) {
	prefix := kCheckpointPrefix(id)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: prefixUpperBound(prefix),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var out []Header
	for iter.First(); iter.Valid(); iter.Next() {
		var h Header
		if err := decodeGob(iter.Value(), &h); err != nil {
			return nil, fmt.Errorf("decode checkpoint %x: %w", iter.Key(), err)
		}
		out = append(out, h)
	}
	return out, iter.Error()
}
