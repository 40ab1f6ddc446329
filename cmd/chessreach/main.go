// Command chessreach enumerates the reachable-position graph for one
// piece-count level, starting from the standard opening position, and
// writes its resolved positions, draws, and next-level seeds to the
// configured work root. Only level 32 can be run: FEN seeds are not parsed,
// and a non-empty -seed value is rejected.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/codefool/chessreach/internal/config"
	"github.com/codefool/chessreach/internal/position"
	"github.com/codefool/chessreach/internal/traversal"
)

var (
	workRoot        = flag.String("work-root", "", "working directory for level files (defaults to the platform data directory)")
	threads         = flag.Int("threads", 0, "worker pool size (defaults to the number of CPUs)")
	level           = flag.Int("level", 32, "piece-count level to traverse")
	seedFEN         = flag.String("seed", "", "seed position in FEN (not parsed: any non-empty value is rejected; level 32 starts from the standard opening position)")
	noFifty         = flag.Bool("no-fifty-move-rule", false, "disable the fifty-move draw cutoff")
	noCastleEnforce = flag.Bool("no-castle-enforcement", false, "treat castling rights as always available, ignoring recorded history")
	cacheResolved   = flag.Bool("cache-resolved", false, "keep the resolved set in memory instead of spilling it to disk")
)

func main() {
	flag.Parse()

	cfg, err := config.Default()
	if err != nil {
		log.Fatalf("chessreach: resolving default configuration: %v", err)
	}
	if *workRoot != "" {
		cfg.WorkRoot = *workRoot
	}
	if *threads > 0 {
		cfg.ThreadCount = *threads
	}
	cfg.Enforce50MoveRule = !*noFifty
	cfg.EnforceCastlingOnceMoved = !*noCastleEnforce
	cfg.CacheResolved = *cacheResolved

	seed, err := seedPosition(*level, *seedFEN)
	if err != nil {
		log.Fatalf("chessreach: %v", err)
	}

	ctx, err := traversal.NewContext(cfg, *level)
	if err != nil {
		log.Fatalf("chessreach: opening level %d: %v", *level, err)
	}
	defer ctx.Close()

	if err := ctx.Seed(seed); err != nil {
		log.Fatalf("chessreach: seeding level %d: %v", *level, err)
	}

	stopOnSignal(ctx)

	log.Printf("chessreach: traversing level %d with %d workers, root %s", *level, cfg.ThreadCount, cfg.WorkRoot)
	if err := traversal.RunLevel(ctx); err != nil {
		log.Fatalf("chessreach: level %d: %v", *level, err)
	}
}

// seedPosition returns the standard starting position when no FEN was given
// and the requested level is the full 32-piece board; a non-empty FEN or any
// other level is an error.
func seedPosition(level int, fen string) (*position.Position, error) {
	if fen != "" {
		return nil, fmt.Errorf("seed FEN parsing is not yet supported; pass -level=32 with no -seed to start from the opening position")
	}
	if level != 32 {
		return nil, fmt.Errorf("a seed position is required for levels below 32")
	}
	return position.StartingPosition(), nil
}

// stopOnSignal requests a cooperative drain on SIGINT/SIGTERM: every
// worker finishes the base position it is currently expanding, then exits
// instead of popping another.
func stopOnSignal(ctx *traversal.Context) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Print("chessreach: stop requested, draining in-flight work")
		ctx.RequestStop()
	}()
}
