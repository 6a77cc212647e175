package storage

import (
	"errors"
	"fmt"

	"github.com/abelian-network/abelian-go/pkg/core/storage/dbconfig"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/filter"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// LevelDBStore is a Store backed by a LevelDB database directory.
type LevelDBStore struct {
	db *leveldb.DB
}

// NewLevelDBStore opens (creating if needed) the LevelDB database at the
// configured directory. Read-only stores require the database to exist.
func NewLevelDBStore(cfg dbconfig.LevelDBOptions) (*LevelDBStore, error) {
	opts := &opt.Options{
		Filter:         filter.NewBloomFilter(10),
		ReadOnly:       cfg.ReadOnly,
		ErrorIfMissing: cfg.ReadOnly,
	}
	db, err := leveldb.OpenFile(cfg.DataDirectoryPath, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open LevelDB instance: %w", err)
	}
	return &LevelDBStore{db: db}, nil
}

// Get implements the Store interface.
func (s *LevelDBStore) Get(key []byte) ([]byte, error) {
	value, err := s.db.Get(key, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		err = ErrKeyNotFound
	}
	return value, err
}

// PutChangeSet implements the Store interface, all changes are written in
// a single batch.
func (s *LevelDBStore) PutChangeSet(puts map[string][]byte) error {
	batch := new(leveldb.Batch)
	for k, v := range puts {
		if v != nil {
			batch.Put([]byte(k), v)
		} else {
			batch.Delete([]byte(k))
		}
	}
	return s.db.Write(batch, nil)
}

// Seek implements the Store interface.
func (s *LevelDBStore) Seek(rng SeekRange, f func(k, v []byte) bool) {
	iter := s.db.NewIterator(levelDBRange(rng), nil)
	defer iter.Release()

	ok, next := iter.First, iter.Next
	if rng.Backwards {
		ok, next = iter.Last, iter.Prev
	}
	for valid := ok(); valid; valid = next() {
		if !f(iter.Key(), iter.Value()) {
			return
		}
	}
}

// levelDBRange converts SeekRange into the iterator range. Forward seeks
// start at Prefix+Start, backward ones end there (inclusive).
func levelDBRange(rng SeekRange) *util.Range {
	start := append(append(make([]byte, 0, len(rng.Prefix)+len(rng.Start)), rng.Prefix...), rng.Start...)
	if rng.Backwards {
		r := util.BytesPrefix(start)
		r.Start = rng.Prefix
		return r
	}
	r := util.BytesPrefix(rng.Prefix)
	r.Start = start
	return r
}

// Close implements the Store interface.
func (s *LevelDBStore) Close() error {
	return s.db.Close()
}
