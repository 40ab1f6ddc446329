package traversal

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/codefool/chessreach/internal/export"
	"github.com/codefool/chessreach/internal/position"
)

// RunLevel drives one level's worker pool to completion. Each worker owns
// its own next-level seed file and its own current-level draw file so that
// concurrent writers never contend; once every worker's frontier is
// exhausted (or a stop was requested and honored), the resolved set is
// flushed to a single per-level output file.
func RunLevel(c *Context) error {
	workerCount := c.cfg.ThreadCount
	if workerCount <= 0 {
		workerCount = 1
	}

	levelDir, err := c.cfg.LevelDir(c.level)
	if err != nil {
		return err
	}
	nextLevelDir, err := c.cfg.LevelDir(c.level - 1)
	if err != nil {
		return err
	}

	var wg sync.WaitGroup
	errs := make(chan error, workerCount)
	for w := 0; w < workerCount; w++ {
		nextSink, err := export.Open(filepath.Join(nextLevelDir, fmt.Sprintf("seed-w%02d.csv", w)))
		if err != nil {
			return err
		}
		currentSink, err := export.Open(filepath.Join(levelDir, fmt.Sprintf("draws-w%02d.csv", w)))
		if err != nil {
			return err
		}

		wg.Add(1)
		go func(nextSink, currentSink *export.Sink) {
			defer wg.Done()
			defer nextSink.Close()
			defer currentSink.Close()
			errs <- c.runWorker(nextSink, currentSink)
		}(nextSink, currentSink)
	}

	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			return err
		}
	}

	c.Stats.LogProgress(c.level)

	resolvedSink, err := export.Open(filepath.Join(levelDir, "resolved.csv"))
	if err != nil {
		return err
	}
	defer resolvedSink.Close()
	return c.ExportResolved(resolvedSink)
}

// ExportResolved writes every entry in the resolved set to sink, merging in
// any ref edges that arrived after the entry was first published.
func (c *Context) ExportResolved(sink *export.Sink) error {
	if c.cfg.CacheResolved {
		c.resolvedMu.Lock()
		defer c.resolvedMu.Unlock()
		for packed, info := range c.resolved {
			info.Refs = append(info.Refs, c.drainRefs(info.ID)...)
			if err := sink.Write(resolvedRecord(packed, info)); err != nil {
				return err
			}
		}
		return nil
	}

	return c.resolvedStore.ForEach(func(key []byte, info *PosInfo) error {
		packed, err := position.ParsePacked(key)
		if err != nil {
			return err
		}
		info.Refs = append(info.Refs, c.drainRefs(info.ID)...)
		return sink.Write(resolvedRecord(packed, info))
	})
}

func resolvedRecord(packed position.Packed, info *PosInfo) export.Record {
	refs := make([]export.RefEdge, len(info.Refs))
	for i, r := range info.Refs {
		refs[i] = export.RefEdge{Move: uint16(r.Move), ParentID: r.ParentID}
	}
	return export.Record{
		ID:            info.ID,
		ParentID:      info.ParentID,
		GameInfo:      uint32(packed.Info),
		Population:    packed.Population,
		Hi:            packed.Hi,
		Lo:            packed.Lo,
		MoveCount:     info.MoveCount,
		MovePacked:    uint16(info.Move),
		Distance:      info.Distance,
		FiftyCounter:  info.FiftyCounter,
		EndGameReason: uint8(info.EndGameReason),
		Refs:          refs,
	}
}
