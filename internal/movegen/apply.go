package movegen

import (
	"github.com/codefool/chessreach/internal/coord"
	"github.com/codefool/chessreach/internal/position"
)

// rook home squares, used to detect a castling right's rook moving or
// being captured off its original corner.
const (
	whiteQueenRookHome = coord.Square(0)  // a1
	whiteKingRookHome  = coord.Square(7)  // h1
	blackQueenRookHome = coord.Square(56) // a8
	blackKingRookHome  = coord.Square(63) // h8
)

func clone(pos *position.Position) *position.Position {
	cp := *pos
	return &cp
}

// Apply returns the position reached by playing mv against pos. It does not
// toggle side to move; the caller (the traversal worker) sets the child's
// side to move itself, right after Apply returns.
func Apply(pos *position.Position, mv Move) *position.Position {
	next := clone(pos)
	src, tgt := mv.Source(), mv.Target()
	moving := next.Board[src]
	captured := false

	switch mv.Action() {
	case ActionCastleKing, ActionCastleQueen:
		// mv.Target() is the rook's home square, not the king's landing
		// square (spec.md §4.2's wire format records the rook's square as
		// target); the king's and rook's destinations are both derived
		// from the action and side instead.
		side := moving.Side()
		rank := 0
		if side == coord.Black {
			rank = 7
		}
		kingTo := coord.NewSquare(rank, 6)
		rookFrom, rookTo := coord.NewSquare(rank, 7), coord.NewSquare(rank, 5)
		if mv.Action() == ActionCastleQueen {
			kingTo = coord.NewSquare(rank, 2)
			rookFrom, rookTo = coord.NewSquare(rank, 0), coord.NewSquare(rank, 3)
		}
		next.Board[rookFrom] = coord.NoPiece
		next.Board[rookTo] = coord.NewPiece(coord.Rook, side)
		next.Board[src] = coord.NoPiece
		next.Board[kingTo] = moving
		next.Castle = revokeBothRights(next.Castle, side)
		next.EPActive = false
		return next

	case ActionEnPassant:
		side := moving.Side()
		fwd := 1
		if side == coord.Black {
			fwd = -1
		}
		victimSq, _ := tgt.Add(coord.Offset{DR: -fwd, DF: 0})
		next.Board[victimSq] = coord.NoPiece
		captured = true
	}

	if !next.Board[tgt].IsEmpty() {
		captured = true
	}

	next.Board[src] = coord.NoPiece
	placed := moving
	if mv.IsPromotion() {
		placed = coord.NewPiece(mv.PromotedType(), moving.Side())
	} else if moving.IsPawn() && src.File() != tgt.File() {
		placed = coord.NewPiece(coord.PawnOffFile, moving.Side())
	}
	next.Board[tgt] = placed

	if moving.Type() == coord.King {
		next.Castle = revokeBothRights(next.Castle, moving.Side())
	}
	next.Castle = revokeRookCorner(next.Castle, src)
	next.Castle = revokeRookCorner(next.Castle, tgt)

	if moving.IsPawn() && absInt(tgt.Rank()-src.Rank()) == 2 {
		next.EPActive = true
		next.EPFile = src.File()
	} else {
		next.EPActive = false
	}

	if captured {
		next.PieceCount--
	}

	return next
}

func revokeBothRights(cr position.CastleRights, side coord.Side) position.CastleRights {
	if side == coord.White {
		return cr.Revoke(position.WhiteKingSide | position.WhiteQueenSide)
	}
	return cr.Revoke(position.BlackKingSide | position.BlackQueenSide)
}

func revokeRookCorner(cr position.CastleRights, sq coord.Square) position.CastleRights {
	switch sq {
	case whiteQueenRookHome:
		return cr.Revoke(position.WhiteQueenSide)
	case whiteKingRookHome:
		return cr.Revoke(position.WhiteKingSide)
	case blackQueenRookHome:
		return cr.Revoke(position.BlackQueenSide)
	case blackKingRookHome:
		return cr.Revoke(position.BlackKingSide)
	default:
		return cr
	}
}

func absInt(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
