// Package dht implements a disk-backed hash table bucketed by a 12-bit hash
// prefix: 4096 bucket files, each an append-only sequence of fixed-width
// key||value records guarded by its own mutex. Open bucket file handles are
// capped by an LRU so that tables with many buckets do not exhaust the
// process's file descriptor budget.
package dht

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/dgraph-io/ristretto/v2"
)

const bucketCount = 4096 // 12-bit hash prefix
const scanBufferSize = 1 << 20 // 1 MiB, mirrors the original table's per-thread scan buffer

// BucketIDFunc maps a key to a bucket in [0, bucketCount). The table does
// not require this to be any particular hash family; any function with a
// roughly uniform 12-bit output is a valid substitute.
type BucketIDFunc func(key []byte) uint16

// XXHashBucketID is the default BucketIDFunc: the low 12 bits of the
// key's xxhash64 sum.
func XXHashBucketID(key []byte) uint16 {
	return uint16(xxhash.Sum64(key) & (bucketCount - 1))
}

type bucketFile struct {
	mu   sync.Mutex
	path string
	f    *os.File
}

// Table is one disk hash table: a fixed key length, a fixed value length,
// and up to 4096 bucket files under root/name/.
type Table struct {
	root, name     string
	keyLen, valLen int
	recLen         int
	bucketIDFunc   BucketIDFunc
	openMu         sync.Mutex
	cache          *ristretto.Cache[uint16, *bucketFile]
}

// Option configures a Table at Open time.
type Option func(*Table)

// WithBucketIDFunc overrides the default xxhash-based bucket assignment.
func WithBucketIDFunc(f BucketIDFunc) Option {
	return func(t *Table) { t.bucketIDFunc = f }
}

// Open opens (creating its directory if needed) a disk hash table storing
// fixed keyLen||valLen records, with at most maxOpenFiles bucket file
// handles held open at once.
func Open(root, name string, keyLen, valLen, maxOpenFiles int, opts ...Option) (*Table, error) {
	dir := filepath.Join(root, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("dht: creating %s: %w", dir, err)
	}
	t := &Table{
		root:         dir,
		name:         name,
		keyLen:       keyLen,
		valLen:       valLen,
		recLen:       keyLen + valLen,
		bucketIDFunc: XXHashBucketID,
	}
	for _, opt := range opts {
		opt(t)
	}

	cache, err := ristretto.NewCache(&ristretto.Config[uint16, *bucketFile]{
		NumCounters: int64(maxOpenFiles) * 10,
		MaxCost:     int64(maxOpenFiles),
		BufferItems: 64,
		OnEvict: func(item *ristretto.Item[*bucketFile]) {
			if item.Value != nil {
				item.Value.mu.Lock()
				item.Value.f.Close()
				item.Value.f = nil
				item.Value.mu.Unlock()
			}
		},
	})
	if err != nil {
		return nil, fmt.Errorf("dht: creating bucket handle cache: %w", err)
	}
	t.cache = cache
	return t, nil
}

// Close flushes and releases every open bucket file handle.
func (t *Table) Close() {
	t.cache.Clear()
	t.cache.Close()
}

func (t *Table) bucketPath(id uint16) string {
	return filepath.Join(t.root, fmt.Sprintf("%s_%03x", t.name, id))
}

// bucket returns the open bucket file for id, opening it (creating it if
// absent) on first use. The per-table openMu only serializes the open/
// create path; reads and writes against an already-open bucket file are
// serialized by that bucket's own mutex.
func (t *Table) bucket(id uint16) (*bucketFile, error) {
	if bf, ok := t.cache.Get(id); ok && bf.f != nil {
		return bf, nil
	}

	t.openMu.Lock()
	defer t.openMu.Unlock()
	if bf, ok := t.cache.Get(id); ok && bf.f != nil {
		return bf, nil
	}

	path := t.bucketPath(id)
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("dht: opening bucket %03x: %w", id, err)
	}
	bf := &bucketFile{path: path, f: f}
	t.cache.Set(id, bf, 1)
	t.cache.Wait()
	return bf, nil
}

// Search looks for key in its bucket, returning the matching value, its
// byte offset within the bucket file (for a later Update), and whether it
// was found.
func (t *Table) Search(key []byte) (value []byte, offset int64, found bool, err error) {
	if len(key) != t.keyLen {
		return nil, 0, false, fmt.Errorf("dht: key is %d bytes, want %d", len(key), t.keyLen)
	}
	id := t.bucketIDFunc(key)
	bf, err := t.bucket(id)
	if err != nil {
		return nil, 0, false, err
	}

	bf.mu.Lock()
	defer bf.mu.Unlock()

	buf := make([]byte, scanBufferSize-(scanBufferSize%t.recLen))
	var pos int64
	for {
		n, rerr := bf.f.ReadAt(buf, pos)
		if n > 0 {
			for off := 0; off+t.recLen <= n; off += t.recLen {
				rec := buf[off : off+t.recLen]
				if string(rec[:t.keyLen]) == string(key) {
					v := make([]byte, t.valLen)
					copy(v, rec[t.keyLen:])
					return v, pos + int64(off), true, nil
				}
			}
			pos += int64(n)
		}
		if rerr == io.EOF {
			return nil, 0, false, nil
		}
		if rerr != nil {
			return nil, 0, false, fmt.Errorf("dht: scanning bucket %03x: %w", id, rerr)
		}
	}
}

// Append unconditionally writes a new key||value record to key's bucket.
// Callers that need insert-if-absent semantics should Search first and
// Append only on a miss; Table does not hide that race since the caller
// usually already holds a broader lock (e.g. the traversal engine's
// dedup mutex) that makes the combined check-then-act atomic.
func (t *Table) Append(key, value []byte) error {
	if len(key) != t.keyLen || len(value) != t.valLen {
		return fmt.Errorf("dht: record shape mismatch: key %d/%d value %d/%d", len(key), t.keyLen, len(value), t.valLen)
	}
	id := t.bucketIDFunc(key)
	bf, err := t.bucket(id)
	if err != nil {
		return err
	}
	rec := make([]byte, t.recLen)
	copy(rec, key)
	copy(rec[t.keyLen:], value)

	bf.mu.Lock()
	defer bf.mu.Unlock()
	if _, err := bf.f.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("dht: seeking bucket %03x: %w", id, err)
	}
	if _, err := bf.f.Write(rec); err != nil {
		return fmt.Errorf("dht: appending to bucket %03x: %w", id, err)
	}
	return nil
}

// Insert appends key||value only if key is not already present, and
// reports which happened.
func (t *Table) Insert(key, value []byte) (inserted bool, err error) {
	_, _, found, err := t.Search(key)
	if err != nil {
		return false, err
	}
	if found {
		return false, nil
	}
	if err := t.Append(key, value); err != nil {
		return false, err
	}
	return true, nil
}

// Update overwrites the value at offset (as previously returned by
// Search) within key's bucket.
func (t *Table) Update(key []byte, offset int64, value []byte) error {
	if len(value) != t.valLen {
		return fmt.Errorf("dht: value is %d bytes, want %d", len(value), t.valLen)
	}
	id := t.bucketIDFunc(key)
	bf, err := t.bucket(id)
	if err != nil {
		return err
	}
	bf.mu.Lock()
	defer bf.mu.Unlock()
	if _, err := bf.f.WriteAt(value, offset+int64(t.keyLen)); err != nil {
		return fmt.Errorf("dht: updating bucket %03x at %d: %w", id, offset, err)
	}
	return nil
}

// bucketIDHex renders a bucket id as the 3-hex-digit suffix used in its
// file name, exposed for tests and diagnostics.
func bucketIDHex(id uint16) string {
	return fmt.Sprintf("%03x", id)
}
