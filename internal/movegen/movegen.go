package movegen

import (
	"github.com/codefool/chessreach/internal/coord"
	"github.com/codefool/chessreach/internal/position"
)

// LegalMoves returns every legal move for the side to move in pos: pseudo-
// legal candidates per piece type, filtered by simulate-apply-revert so that
// no move survives that leaves the mover's own king attacked.
func LegalMoves(pos *position.Position) []Move {
	candidates := pseudoLegalMoves(pos)
	legal := make([]Move, 0, len(candidates))
	side := pos.OnMove
	for _, mv := range candidates {
		next := Apply(pos, mv)
		if !InCheck(next, side) {
			legal = append(legal, mv)
		}
	}
	return legal
}

func pseudoLegalMoves(pos *position.Position) []Move {
	var moves []Move
	side := pos.OnMove
	for sq := coord.Square(0); sq < 64; sq++ {
		pc := pos.Board[sq]
		if pc.IsEmpty() || pc.Side() != side {
			continue
		}
		switch pc.Type() {
		case coord.King:
			moves = append(moves, kingMoves(pos, sq, side)...)
			moves = append(moves, castleMoves(pos, side)...)
		case coord.Queen:
			moves = append(moves, slideMoves(pos, sq, side, coord.AxisOffsets[:])...)
			moves = append(moves, slideMoves(pos, sq, side, coord.DiagOffsets[:])...)
		case coord.Rook:
			moves = append(moves, slideMoves(pos, sq, side, coord.AxisOffsets[:])...)
		case coord.Bishop:
			moves = append(moves, slideMoves(pos, sq, side, coord.DiagOffsets[:])...)
		case coord.Knight:
			moves = append(moves, knightMoves(pos, sq, side)...)
		case coord.Pawn, coord.PawnOffFile:
			moves = append(moves, pawnMoves(pos, sq, side)...)
		}
	}
	return moves
}

func kingMoves(pos *position.Position, sq coord.Square, side coord.Side) []Move {
	var moves []Move
	for _, off := range coord.AxisOffsets {
		moves = append(moves, stepMove(pos, sq, off, side)...)
	}
	for _, off := range coord.DiagOffsets {
		moves = append(moves, stepMove(pos, sq, off, side)...)
	}
	return moves
}

func stepMove(pos *position.Position, sq coord.Square, off coord.Offset, side coord.Side) []Move {
	to, ok := sq.Add(off)
	if !ok {
		return nil
	}
	occ := pos.PieceAt(to)
	if occ.IsEmpty() {
		return []Move{NewMove(ActionMove, sq, to)}
	}
	if occ.Side() != side {
		return []Move{NewMove(ActionCapture, sq, to)}
	}
	return nil
}

func knightMoves(pos *position.Position, sq coord.Square, side coord.Side) []Move {
	var moves []Move
	for _, off := range coord.KnightOffsets {
		moves = append(moves, stepMove(pos, sq, off, side)...)
	}
	return moves
}

func slideMoves(pos *position.Position, sq coord.Square, side coord.Side, offsets []coord.Offset) []Move {
	var moves []Move
	for _, off := range offsets {
		cur := sq
		for {
			to, ok := cur.Add(off)
			if !ok {
				break
			}
			occ := pos.PieceAt(to)
			if occ.IsEmpty() {
				moves = append(moves, NewMove(ActionMove, sq, to))
				cur = to
				continue
			}
			if occ.Side() != side {
				moves = append(moves, NewMove(ActionCapture, sq, to))
			}
			break
		}
	}
	return moves
}

var promotionActions = [4]Action{ActionPromoteQueen, ActionPromoteBishop, ActionPromoteKnight, ActionPromoteRook}

func pawnMoves(pos *position.Position, sq coord.Square, side coord.Side) []Move {
	var moves []Move
	fwd := 1
	homeRank := 1
	promoRank := 7
	if side == coord.Black {
		fwd = -1
		homeRank = 6
		promoRank = 0
	}

	one, ok := sq.Add(coord.Offset{DR: fwd, DF: 0})
	if ok && pos.IsEmpty(one) {
		moves = append(moves, pawnAdvance(sq, one, promoRank)...)
		if sq.Rank() == homeRank {
			two, ok2 := sq.Add(coord.Offset{DR: 2 * fwd, DF: 0})
			if ok2 && pos.IsEmpty(two) {
				moves = append(moves, NewMove(ActionMove, sq, two))
			}
		}
	}

	for _, df := range [2]int{-1, 1} {
		to, ok := sq.Add(coord.Offset{DR: fwd, DF: df})
		if !ok {
			continue
		}
		occ := pos.PieceAt(to)
		if !occ.IsEmpty() && occ.Side() != side {
			moves = append(moves, pawnCapture(sq, to, promoRank)...)
			continue
		}
		if occ.IsEmpty() && pos.EPActive && to.File() == pos.EPFile && to.Rank() == epTargetRank(side) &&
			pos.Board[sq].Type() == coord.Pawn {
			moves = append(moves, NewMove(ActionEnPassant, sq, to))
		}
	}
	return moves
}

func epTargetRank(side coord.Side) int {
	if side == coord.White {
		return 5
	}
	return 2
}

func pawnAdvance(from, to coord.Square, promoRank int) []Move {
	if to.Rank() == promoRank {
		moves := make([]Move, 0, 4)
		for _, a := range promotionActions {
			moves = append(moves, NewMove(a, from, to))
		}
		return moves
	}
	return []Move{NewMove(ActionMove, from, to)}
}

func pawnCapture(from, to coord.Square, promoRank int) []Move {
	if to.Rank() == promoRank {
		moves := make([]Move, 0, 4)
		for _, a := range promotionActions {
			moves = append(moves, NewMove(a, from, to))
		}
		return moves
	}
	return []Move{NewMove(ActionCapture, from, to)}
}

// castleMoves generates castling candidates for side, honoring: the king is
// not currently in check, the squares between king and rook are empty, and
// every square the king passes through (including start and end) is not
// attacked. Queenside additionally requires the knight-square (b file) be
// empty, but that square is not required to be unattacked since the king
// never stops there.
func castleMoves(pos *position.Position, side coord.Side) []Move {
	rank := 0
	kingSide, queenSide := position.WhiteKingSide, position.WhiteQueenSide
	if side == coord.Black {
		rank = 7
		kingSide, queenSide = position.BlackKingSide, position.BlackQueenSide
	}
	opp := side.Other()
	kingSq := coord.NewSquare(rank, 4)
	if pos.Board[kingSq].Type() != coord.King || IsAttacked(pos, kingSq, opp) {
		return nil
	}

	var moves []Move
	if pos.Castle.Has(kingSide) {
		f, g := coord.NewSquare(rank, 5), coord.NewSquare(rank, 6)
		if pos.IsEmpty(f) && pos.IsEmpty(g) &&
			!IsAttacked(pos, f, opp) && !IsAttacked(pos, g, opp) {
			moves = append(moves, NewMove(ActionCastleKing, kingSq, coord.NewSquare(rank, 7)))
		}
	}
	if pos.Castle.Has(queenSide) {
		d, c, b := coord.NewSquare(rank, 3), coord.NewSquare(rank, 2), coord.NewSquare(rank, 1)
		if pos.IsEmpty(d) && pos.IsEmpty(c) && pos.IsEmpty(b) &&
			!IsAttacked(pos, d, opp) && !IsAttacked(pos, c, opp) {
			moves = append(moves, NewMove(ActionCastleQueen, kingSq, coord.NewSquare(rank, 0)))
		}
	}
	return moves
}
