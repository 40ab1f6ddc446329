package traversal

import (
	"log"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
)

// Stats accumulates per-level traversal counters across all workers and
// logs them as one human-readable progress line when the level's workers
// finish, the Go equivalent of the original engine's per-worker console
// summary (base positions resolved, successors routed downlevel after
// dropping a piece, transpositions found, fifty-move draws, checkmates and
// stalemates).
type Stats struct {
	resolved   atomic.Uint64
	downlevel  atomic.Uint64
	transposed atomic.Uint64
	fiftyDraws atomic.Uint64
	endgames   atomic.Uint64
	started    time.Time
}

// NewStats starts a stats accumulator with its clock running from now.
func NewStats() *Stats {
	return &Stats{started: time.Now()}
}

func (s *Stats) recordResolved()   { s.resolved.Add(1) }
func (s *Stats) recordDownlevel()  { s.downlevel.Add(1) }
func (s *Stats) recordTransposed() { s.transposed.Add(1) }
func (s *Stats) recordFiftyDraw()  { s.fiftyDraws.Add(1) }
func (s *Stats) recordEndgame()    { s.endgames.Add(1) }

// LogProgress writes one structured progress line: positions resolved,
// throughput, and the breakdown of successor classifications so far.
func (s *Stats) LogProgress(level int) {
	elapsed := time.Since(s.started)
	resolved := s.resolved.Load()
	rate := float64(resolved) / elapsed.Seconds()
	log.Printf("level=%d resolved=%s downlevel=%s transposed=%s fifty_draws=%s endgames=%s rate=%s/s elapsed=%s",
		level,
		humanize.Comma(int64(resolved)),
		humanize.Comma(int64(s.downlevel.Load())),
		humanize.Comma(int64(s.transposed.Load())),
		humanize.Comma(int64(s.fiftyDraws.Load())),
		humanize.Comma(int64(s.endgames.Load())),
		humanize.Comma(int64(rate)),
		elapsed.Round(time.Second),
	)
}
