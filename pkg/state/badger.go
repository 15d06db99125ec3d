package state

import (
	"errors"
	"fmt"
	"path/filepath"

	badger "github.com/dgraph-io/badger/v4"
)

// BadgerStore keeps milestones in a local badger database.
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStore opens (or creates) the database at path with synchronous
// writes, so a Set is on disk before it returns.
func NewBadgerStore(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(filepath.Clean(path)).
		WithSyncWrites(true).
		WithLogger(nil).
		WithValueLogFileSize(1 << 20)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening state database %s: %w", path, err)
	}
	return &BadgerStore{db: db}, nil
}

func milestoneKey(m Milestone) []byte {
	return []byte("milestone:" + string(m))
}

// Get reports whether m has been set.
func (s *BadgerStore) Get(m Milestone) (bool, error) {
	var set bool
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(milestoneKey(m))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		return item.Value(func(v []byte) error {
			set = len(v) == 1 && v[0] == 1
			return nil
		})
	})
	if err != nil {
		return false, fmt.Errorf("get %s: %w", m, err)
	}
	return set, nil
}

// Set marks m as done.
func (s *BadgerStore) Set(m Milestone) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(milestoneKey(m), []byte{1})
	})
	if err != nil {
		return fmt.Errorf("set %s: %w", m, err)
	}
	return nil
}

// Close releases the database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}
