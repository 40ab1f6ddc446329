package export

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriteHeaderOnlyOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "level.csv")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.Write(Record{ID: 1, ParentID: 0, MoveCount: 20}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if err := s2.Write(Record{ID: 2, ParentID: 1, MoveCount: 30}); err != nil {
		t.Fatalf("Write after reopen: %v", err)
	}
	if err := s2.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	lines := strings.Split(strings.TrimRight(string(b), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3 (header + 2 rows): %q", len(lines), lines)
	}
	if strings.Join(lines[0:1], "") != strings.Join(Columns, ",") {
		t.Fatalf("header = %q, want %q", lines[0], strings.Join(Columns, ","))
	}
}

func TestWriteRoundTripsRefEdges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "level.csv")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	rec := Record{
		ID: 0xdeadbeef, ParentID: 0x1, GameInfo: 0x0a0b0c0d,
		Population: 0xffffffffffffffff, Hi: 1, Lo: 2,
		MoveCount: 5, MovePacked: 0x1234, Distance: 3, FiftyCounter: 0,
		EndGameReason: 0,
		Refs: []RefEdge{
			{Move: 0x1111, ParentID: 0x2},
			{Move: 0x2222, ParentID: 0x3},
		},
	}
	if err := s.Write(rec); err != nil {
		t.Fatalf("Write: %v", err)
	}
	s.Close()

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	lines := strings.Split(strings.TrimRight(string(b), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	fields := strings.Split(lines[1], ",")
	// 12 base columns + 2 ref edges * 2 fields each
	if len(fields) != len(Columns)+4 {
		t.Fatalf("got %d fields, want %d", len(fields), len(Columns)+4)
	}
	if fields[0] != "00000000deadbeef" {
		t.Fatalf("id field = %q, want hex-encoded id", fields[0])
	}
	if fields[len(Columns)] != "1111" || fields[len(Columns)+1] != "0000000000000002" {
		t.Fatalf("first ref edge fields = %q, %q", fields[len(Columns)], fields[len(Columns)+1])
	}
}

func TestOpenAppendsWithoutTruncating(t *testing.T) {
	path := filepath.Join(t.TempDir(), "level.csv")
	for i := 0; i < 3; i++ {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("Open iteration %d: %v", i, err)
		}
		if err := s.Write(Record{ID: uint64(i)}); err != nil {
			t.Fatalf("Write: %v", err)
		}
		s.Close()
	}
	if got := countLines(t, path); got != 4 {
		t.Fatalf("got %d lines across 3 opens, want 4 (1 header + 3 rows)", got)
	}
}

func countLines(t *testing.T, path string) int {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	return len(strings.Split(strings.TrimRight(string(b), "\n"), "\n"))
}
