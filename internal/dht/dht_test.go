package dht

import (
	"bytes"
	"fmt"
	"testing"
)

func key(n int) []byte { return []byte(fmt.Sprintf("key-%08d", n)) }
func val(n int) []byte { return []byte(fmt.Sprintf("val-%08d", n)) }

func TestInsertThenSearch(t *testing.T) {
	tbl, err := Open(t.TempDir(), "positions", 12, 12, 64)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer tbl.Close()

	if _, _, found, err := tbl.Search(key(1)); err != nil || found {
		t.Fatalf("Search on empty table: found=%v err=%v", found, err)
	}

	inserted, err := tbl.Insert(key(1), val(1))
	if err != nil || !inserted {
		t.Fatalf("Insert: inserted=%v err=%v", inserted, err)
	}

	got, _, found, err := tbl.Search(key(1))
	if err != nil || !found {
		t.Fatalf("Search after insert: found=%v err=%v", found, err)
	}
	if !bytes.Equal(got, val(1)) {
		t.Fatalf("Search value = %q, want %q", got, val(1))
	}

	inserted, err = tbl.Insert(key(1), val(2))
	if err != nil || inserted {
		t.Fatalf("Insert of existing key should report inserted=false, got %v err=%v", inserted, err)
	}
}

func TestUpdateExistingRecord(t *testing.T) {
	tbl, err := Open(t.TempDir(), "positions", 12, 12, 64)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer tbl.Close()

	if _, err := tbl.Insert(key(7), val(7)); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	_, offset, found, err := tbl.Search(key(7))
	if err != nil || !found {
		t.Fatalf("Search: found=%v err=%v", found, err)
	}
	if err := tbl.Update(key(7), offset, val(99)); err != nil {
		t.Fatalf("Update: %v", err)
	}
	got, _, found, err := tbl.Search(key(7))
	if err != nil || !found {
		t.Fatalf("Search after update: found=%v err=%v", found, err)
	}
	if !bytes.Equal(got, val(99)) {
		t.Fatalf("Search after update = %q, want %q", got, val(99))
	}
}

func TestManyKeysSpreadAcrossBuckets(t *testing.T) {
	tbl, err := Open(t.TempDir(), "positions", 12, 12, 256)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer tbl.Close()

	const n = 500
	for i := 0; i < n; i++ {
		if _, err := tbl.Insert(key(i), val(i)); err != nil {
			t.Fatalf("Insert(%d): %v", i, err)
		}
	}
	for i := 0; i < n; i++ {
		got, _, found, err := tbl.Search(key(i))
		if err != nil || !found {
			t.Fatalf("Search(%d): found=%v err=%v", i, found, err)
		}
		if !bytes.Equal(got, val(i)) {
			t.Fatalf("Search(%d) = %q, want %q", i, got, val(i))
		}
	}
}

func TestBucketIDWithinRange(t *testing.T) {
	for i := 0; i < 1000; i++ {
		id := XXHashBucketID(key(i))
		if id >= bucketCount {
			t.Fatalf("bucket id %d out of range [0, %d)", id, bucketCount)
		}
	}
}
