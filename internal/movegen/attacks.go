package movegen

import (
	"github.com/codefool/chessreach/internal/coord"
	"github.com/codefool/chessreach/internal/position"
)

// IsAttacked reports whether sq is attacked by any piece of bySide in pos.
// This is a pure ray-scan oracle (no magic bitboards): it walks the axis and
// diagonal rays out from sq looking for the first occupant on each ray, and
// separately checks knight jumps and pawn diagonal captures.
func IsAttacked(pos *position.Position, sq coord.Square, bySide coord.Side) bool {
	if !sq.IsValid() {
		return false
	}

	for _, off := range coord.AxisOffsets {
		if rayHits(pos, sq, off, bySide, coord.Rook, coord.Queen) {
			return true
		}
	}
	for _, off := range coord.DiagOffsets {
		if rayHits(pos, sq, off, bySide, coord.Bishop, coord.Queen) {
			return true
		}
	}
	for _, off := range coord.KnightOffsets {
		if to, ok := sq.Add(off); ok {
			pc := pos.PieceAt(to)
			if pc.Side() == bySide && pc.Type() == coord.Knight {
				return true
			}
		}
	}
	for _, off := range coord.AxisOffsets {
		if to, ok := sq.Add(off); ok {
			pc := pos.PieceAt(to)
			if pc.Side() == bySide && pc.Type() == coord.King {
				return true
			}
		}
	}
	for _, off := range coord.DiagOffsets {
		if to, ok := sq.Add(off); ok {
			pc := pos.PieceAt(to)
			if pc.Side() == bySide && pc.Type() == coord.King {
				return true
			}
		}
	}

	fwd := -1
	if bySide == coord.White {
		fwd = 1
	}
	for _, df := range [2]int{-1, 1} {
		if from, ok := sq.Add(coord.Offset{DR: -fwd, DF: df}); ok {
			pc := pos.PieceAt(from)
			if pc.Side() == bySide && pc.IsPawn() {
				return true
			}
		}
	}
	return false
}

// rayHits walks from sq along off until it finds an occupied square or runs
// off-board, and reports whether that first occupant belongs to bySide and
// is one of the given piece types (sliders stop at the first blocker either
// way, friend or foe).
func rayHits(pos *position.Position, sq coord.Square, off coord.Offset, bySide coord.Side, types ...coord.PieceType) bool {
	cur := sq
	for {
		to, ok := cur.Add(off)
		if !ok {
			return false
		}
		pc := pos.PieceAt(to)
		if pc.IsEmpty() {
			cur = to
			continue
		}
		if pc.Side() != bySide {
			return false
		}
		for _, t := range types {
			if pc.Type() == t {
				return true
			}
		}
		return false
	}
}

// InCheck reports whether side's king is currently attacked.
func InCheck(pos *position.Position, side coord.Side) bool {
	ksq := pos.KingSquare(side)
	if !ksq.IsValid() {
		return false
	}
	return IsAttacked(pos, ksq, side.Other())
}
