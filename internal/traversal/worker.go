package traversal

import (
	"fmt"

	"github.com/codefool/chessreach/internal/endgame"
	"github.com/codefool/chessreach/internal/export"
	"github.com/codefool/chessreach/internal/movegen"
	"github.com/codefool/chessreach/internal/position"
)

// runWorker pops base positions from the frontier until it is exhausted or
// a stop has been requested. nextSink receives successors that drop a
// piece (this worker's share of the next level's seed file); currentSink
// receives fifty-move draws reached directly from a base position (this
// level's output, but never deduplicated since the draw itself is terminal
// and its ref list is never consulted again).
func (c *Context) runWorker(nextSink, currentSink *export.Sink) error {
	for {
		if c.stopped() {
			return nil
		}
		packed, e, ok, err := c.popUnresolved()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if err := c.resolveOne(packed, e, nextSink, currentSink); err != nil {
			return err
		}
	}
}

// resolveOne expands one base position's legal moves, routing every
// successor to its sink, then finalizes the base position's own record.
func (c *Context) resolveOne(packed position.Packed, e *entry, nextSink, currentSink *export.Sink) error {
	if e.Pos.PieceCount != c.level {
		return fmt.Errorf("traversal: invariant breach: popped position has %d pieces, want %d", e.Pos.PieceCount, c.level)
	}

	e.Info.Refs = append(e.Info.Refs, c.drainRefs(e.Info.ID)...)
	if err := c.publishResolved(packed, e.Info); err != nil {
		return err
	}

	moves := movegen.LegalMoves(e.Pos)
	e.Info.MoveCount = len(moves)
	e.Info.EndGameReason = endgame.Classify(e.Pos, moves)
	if e.Info.EndGameReason == endgame.Checkmate || e.Info.EndGameReason == endgame.Stalemate {
		c.Stats.recordEndgame()
	}

	for _, mv := range moves {
		if err := c.classifyChild(e, mv, nextSink, currentSink); err != nil {
			return err
		}
	}

	e.Info.Refs = append(e.Info.Refs, c.drainRefs(e.Info.ID)...)
	if err := c.publishResolved(packed, e.Info); err != nil {
		return err
	}
	c.Stats.recordResolved()
	return nil
}

// classifyChild applies mv to the base position and routes the result to
// its sink, in the order the worker loop's classification requires:
// a piece dropping off the board always wins first, then a fifty-move
// draw, then same-level dedup; anything else is a capture-count
// inconsistency.
func (c *Context) classifyChild(e *entry, mv movegen.Move, nextSink, currentSink *export.Sink) error {
	mover := e.Pos.PieceAt(mv.Source())
	child := movegen.Apply(e.Pos, mv)
	child.OnMove = e.Pos.OnMove.Other()
	c.normalizeCastle(child)

	resetsFifty := mover.IsPawn() || mv.Action() == movegen.ActionCapture || mv.Action() == movegen.ActionEnPassant
	fifty := 0
	if !resetsFifty {
		fifty = e.Info.FiftyCounter + 1
	}

	childPacked := position.Encode(child)
	distance := e.Info.Distance + 1

	switch {
	case child.PieceCount < c.level:
		id := c.allocID()
		c.Stats.recordDownlevel()
		return nextSink.Write(exportRecord(id, e.Info.ID, childPacked, mv, distance, fifty, endgame.None))

	case c.cfg.Enforce50MoveRule && fifty >= 50:
		id := c.allocID()
		c.Stats.recordFiftyDraw()
		return currentSink.Write(exportRecord(id, e.Info.ID, childPacked, mv, distance, fifty, endgame.FiftyMoveDraw))

	case child.PieceCount == c.level:
		// The dedup index's Search and Append are each individually locked
		// at the bucket level, but the gap between a miss and the Append it
		// triggers is not: two workers discovering the same transposition
		// at once could both miss and both insert. dedupMu serializes the
		// whole check-then-insert sequence instead, the same coarse-lock
		// shape the original engine used around its unresolved-map insert.
		c.dedupMu.Lock()
		defer c.dedupMu.Unlock()

		key := childPacked.Bytes()
		val, _, found, err := c.index.Search(key)
		if err != nil {
			return err
		}
		if found {
			c.appendRef(decodeID(val), RefEdge{Move: mv, ParentID: e.Info.ID})
			c.Stats.recordTransposed()
			return nil
		}
		id := c.allocID()
		if err := c.index.Append(key, encodeID(id)); err != nil {
			return err
		}
		childInfo := &PosInfo{ID: id, ParentID: e.Info.ID, Move: mv, Distance: distance, FiftyCounter: fifty}
		return c.insertUnresolved(childPacked, child, childInfo)

	default:
		return fmt.Errorf("traversal: child piece count %d exceeds level %d: capture count inconsistency", child.PieceCount, c.level)
	}
}

func exportRecord(id, parentID uint64, packed position.Packed, mv movegen.Move, distance, fifty int, reason endgame.Reason) export.Record {
	return export.Record{
		ID:            id,
		ParentID:      parentID,
		GameInfo:      uint32(packed.Info),
		Population:    packed.Population,
		Hi:            packed.Hi,
		Lo:            packed.Lo,
		MovePacked:    uint16(mv),
		Distance:      distance,
		FiftyCounter:  fifty,
		EndGameReason: uint8(reason),
	}
}
