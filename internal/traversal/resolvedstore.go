package traversal

import (
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

// ResolvedStore mirrors resolved positions to an embedded Badger instance
// when a run is configured with cache_resolved=false: the traversal
// engine's in-memory resolved map would otherwise grow without bound, so
// in that mode resolved entries are written here instead and the map stays
// empty. Modeled on the teacher's
// View/Update transaction wrapper in its own badger-backed storage layer.
type ResolvedStore struct {
	db *badger.DB
}

// OpenResolvedStore opens (creating if needed) the overflow store rooted
// at dir.
func OpenResolvedStore(dir string) (*ResolvedStore, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("traversal: opening resolved store at %s: %w", dir, err)
	}
	return &ResolvedStore{db: db}, nil
}

// Close releases the store's resources.
func (s *ResolvedStore) Close() error {
	return s.db.Close()
}

// Put persists or overwrites the resolved entry for packedKey (the
// 28-byte packed-position record) with info, including its current
// ref list.
func (s *ResolvedStore) Put(packedKey []byte, info *PosInfo) error {
	data, err := marshalPosInfo(info)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(packedKey, data)
	})
}

// Get loads the resolved entry for packedKey, reporting found=false if
// it is not present (an ordinary miss, not an error).
func (s *ResolvedStore) Get(packedKey []byte) (info *PosInfo, found bool, err error) {
	err = s.db.View(func(txn *badger.Txn) error {
		item, ierr := txn.Get(packedKey)
		if ierr == badger.ErrKeyNotFound {
			return nil
		}
		if ierr != nil {
			return ierr
		}
		found = true
		return item.Value(func(val []byte) error {
			info, ierr = unmarshalPosInfo(val)
			return ierr
		})
	})
	if err != nil {
		return nil, false, fmt.Errorf("traversal: reading resolved store: %w", err)
	}
	return info, found, nil
}

// ForEach visits every resolved entry in key order, calling fn with the
// packed-position key and its decoded info. Used at level-close time to
// flush the full resolved set to its per-level output file.
func (s *ResolvedStore) ForEach(fn func(key []byte, info *PosInfo) error) error {
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			key := item.KeyCopy(nil)
			var info *PosInfo
			if err := item.Value(func(val []byte) error {
				var ierr error
				info, ierr = unmarshalPosInfo(val)
				return ierr
			}); err != nil {
				return err
			}
			if err := fn(key, info); err != nil {
				return err
			}
		}
		return nil
	})
}

// AppendRef loads the entry at packedKey, appends edge to its ref list,
// and writes it back. The caller is expected to already hold whatever
// higher-level lock (a ref-list stripe) makes this read-modify-write
// atomic with respect to other writers of the same key.
func (s *ResolvedStore) AppendRef(packedKey []byte, edge RefEdge) error {
	info, found, err := s.Get(packedKey)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("traversal: AppendRef: no resolved entry for key")
	}
	info.Refs = append(info.Refs, edge)
	return s.Put(packedKey, info)
}
