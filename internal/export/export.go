// Package export writes the per-level, per-worker output files: one
// append-only hex-encoded CSV line per resolved position, plus the
// next-level seed file that positions dropping a piece feed into. No CSV
// library appears anywhere in the retrieval pack, so this sticks to the
// standard library's encoding/csv the way the rest of chessreach sticks to
// stdlib where the pack shows no ecosystem preference.
package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
)

// Columns is the fixed header every per-level file carries, matching the
// column order positions are written in.
var Columns = []string{
	"id", "parent_id", "game_info", "population", "hi", "lo",
	"move_count", "move_packed", "distance", "fifty_counter",
	"end_game_reason", "ref_count",
}

// RefEdge is one additional incoming edge recorded against a position
// reached by more than one path.
type RefEdge struct {
	Move     uint16
	ParentID uint64
}

// Record is one exportable row: a finalized position-info entry plus its
// packed position fields.
type Record struct {
	ID            uint64
	ParentID      uint64
	GameInfo      uint32
	Population    uint64
	Hi            uint64
	Lo            uint64
	MoveCount     int
	MovePacked    uint16
	Distance      int
	FiftyCounter  int
	EndGameReason uint8
	Refs          []RefEdge
}

// Sink is an append-only, hex-encoded CSV writer for one worker's share of
// one level's output. Each worker owns its own Sink so that writers never
// contend with each other; the engine assigns one file per (level, thread).
type Sink struct {
	f *os.File
	w *csv.Writer
}

// Open creates (or appends to) the sink file at path, writing the header
// line only if the file is new.
func Open(path string) (*Sink, error) {
	fresh := true
	if fi, err := os.Stat(path); err == nil && fi.Size() > 0 {
		fresh = false
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("export: opening %s: %w", path, err)
	}
	w := csv.NewWriter(f)
	s := &Sink{f: f, w: w}
	if fresh {
		if err := w.Write(Columns); err != nil {
			return nil, fmt.Errorf("export: writing header: %w", err)
		}
		w.Flush()
	}
	return s, nil
}

// Write appends one record as a hex-encoded CSV line and flushes: the
// traversal engine must never lose a finalized record to a process crash
// that leaves the write buffered.
func (s *Sink) Write(r Record) error {
	row := make([]string, 0, len(Columns)+2*len(r.Refs))
	row = append(row,
		hex64(r.ID), hex64(r.ParentID), hex32(r.GameInfo), hex64(r.Population),
		hex64(r.Hi), hex64(r.Lo), strconv.Itoa(r.MoveCount), hex16(r.MovePacked),
		strconv.Itoa(r.Distance), strconv.Itoa(r.FiftyCounter),
		strconv.Itoa(int(r.EndGameReason)), strconv.Itoa(len(r.Refs)),
	)
	for _, ref := range r.Refs {
		row = append(row, hex16(ref.Move), hex64(ref.ParentID))
	}
	if err := s.w.Write(row); err != nil {
		return fmt.Errorf("export: writing record %d: %w", r.ID, err)
	}
	s.w.Flush()
	return s.w.Error()
}

// Close flushes and closes the underlying file.
func (s *Sink) Close() error {
	s.w.Flush()
	if err := s.w.Error(); err != nil {
		s.f.Close()
		return err
	}
	return s.f.Close()
}

func hex64(v uint64) string { return fmt.Sprintf("%016x", v) }
func hex32(v uint32) string { return fmt.Sprintf("%08x", v) }
func hex16(v uint16) string { return fmt.Sprintf("%04x", v) }
