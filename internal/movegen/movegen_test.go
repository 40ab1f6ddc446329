package movegen

import (
	"testing"

	"github.com/codefool/chessreach/internal/coord"
	"github.com/codefool/chessreach/internal/position"
)

func emptyPosition(onMove coord.Side) *position.Position {
	return &position.Position{OnMove: onMove}
}

func TestStartingPositionMoveCount(t *testing.T) {
	pos := position.StartingPosition()
	moves := LegalMoves(pos)
	if len(moves) != 20 {
		t.Fatalf("starting position legal moves = %d, want 20", len(moves))
	}
}

func TestKingCannotWalkIntoCheck(t *testing.T) {
	pos := emptyPosition(coord.White)
	pos.PieceCount = 3
	pos.Board[coord.NewSquare(0, 4)] = coord.NewPiece(coord.King, coord.White)
	pos.Board[coord.NewSquare(7, 4)] = coord.NewPiece(coord.King, coord.Black)
	pos.Board[coord.NewSquare(7, 3)] = coord.NewPiece(coord.Rook, coord.Black)

	moves := LegalMoves(pos)
	d1 := coord.NewSquare(0, 3)
	for _, mv := range moves {
		if mv.Target() == d1 {
			t.Fatalf("king move to d1 should be illegal: rook on d-file covers it")
		}
	}
}

func TestCastlingBlockedWhenSquareAttacked(t *testing.T) {
	pos := emptyPosition(coord.White)
	pos.PieceCount = 4
	pos.Castle = position.WhiteKingSide
	pos.Board[coord.NewSquare(0, 4)] = coord.NewPiece(coord.King, coord.White)
	pos.Board[coord.NewSquare(0, 7)] = coord.NewPiece(coord.Rook, coord.White)
	pos.Board[coord.NewSquare(7, 4)] = coord.NewPiece(coord.King, coord.Black)
	// black rook on g-file attacks g1, the square the king must pass through
	pos.Board[coord.NewSquare(5, 6)] = coord.NewPiece(coord.Rook, coord.Black)

	moves := LegalMoves(pos)
	for _, mv := range moves {
		if mv.Action() == ActionCastleKing {
			t.Fatalf("castling kingside should be illegal while g1 is attacked")
		}
	}
}

func TestCastlingAllowedWhenClear(t *testing.T) {
	pos := emptyPosition(coord.White)
	pos.PieceCount = 4
	pos.Castle = position.WhiteKingSide | position.WhiteQueenSide
	pos.Board[coord.NewSquare(0, 4)] = coord.NewPiece(coord.King, coord.White)
	pos.Board[coord.NewSquare(0, 7)] = coord.NewPiece(coord.Rook, coord.White)
	pos.Board[coord.NewSquare(0, 0)] = coord.NewPiece(coord.Rook, coord.White)
	pos.Board[coord.NewSquare(7, 4)] = coord.NewPiece(coord.King, coord.Black)

	moves := LegalMoves(pos)
	foundK, foundQ := false, false
	for _, mv := range moves {
		if mv.Action() == ActionCastleKing {
			foundK = true
			if mv.Target() != coord.NewSquare(0, 7) {
				t.Fatalf("castle king target = %v, want the rook's home square h1", mv.Target())
			}
			next := Apply(pos, mv)
			if next.Board[coord.NewSquare(0, 5)].Type() != coord.Rook {
				t.Fatalf("castling kingside did not move the rook to f1")
			}
			if next.Board[coord.NewSquare(0, 6)].Type() != coord.King {
				t.Fatalf("castling kingside did not move the king to g1")
			}
		}
		if mv.Action() == ActionCastleQueen {
			foundQ = true
			if mv.Target() != coord.NewSquare(0, 0) {
				t.Fatalf("castle queen target = %v, want the rook's home square a1", mv.Target())
			}
			next := Apply(pos, mv)
			if next.Board[coord.NewSquare(0, 3)].Type() != coord.Rook {
				t.Fatalf("castling queenside did not move the rook to d1")
			}
			if next.Board[coord.NewSquare(0, 2)].Type() != coord.King {
				t.Fatalf("castling queenside did not move the king to c1")
			}
		}
	}
	if !foundK || !foundQ {
		t.Fatalf("expected both castling moves available, got king=%v queen=%v", foundK, foundQ)
	}
}

func TestEnPassantWindow(t *testing.T) {
	pos := emptyPosition(coord.White)
	pos.PieceCount = 4
	pos.Board[coord.NewSquare(0, 4)] = coord.NewPiece(coord.King, coord.White)
	pos.Board[coord.NewSquare(7, 4)] = coord.NewPiece(coord.King, coord.Black)
	pos.Board[coord.NewSquare(4, 4)] = coord.NewPiece(coord.Pawn, coord.White) // e5
	pos.Board[coord.NewSquare(4, 3)] = coord.NewPiece(coord.Pawn, coord.Black) // d5, just advanced two
	pos.EPActive = true
	pos.EPFile = 3

	moves := LegalMoves(pos)
	found := false
	for _, mv := range moves {
		if mv.Action() == ActionEnPassant {
			found = true
			next := Apply(pos, mv)
			if !next.Board[coord.NewSquare(4, 3)].IsEmpty() {
				t.Fatalf("en-passant capture should remove the passed pawn")
			}
			if next.PieceCount != pos.PieceCount-1 {
				t.Fatalf("en-passant capture should decrement piece count")
			}
		}
	}
	if !found {
		t.Fatalf("expected an en-passant capture to be available")
	}
}

func TestPromotionExhaustive(t *testing.T) {
	pos := emptyPosition(coord.White)
	pos.PieceCount = 3
	pos.Board[coord.NewSquare(0, 4)] = coord.NewPiece(coord.King, coord.White)
	pos.Board[coord.NewSquare(7, 4)] = coord.NewPiece(coord.King, coord.Black)
	pos.Board[coord.NewSquare(6, 0)] = coord.NewPiece(coord.Pawn, coord.White) // a7

	moves := LegalMoves(pos)
	seen := map[Action]bool{}
	for _, mv := range moves {
		if mv.Source() == coord.NewSquare(6, 0) {
			seen[mv.Action()] = true
		}
	}
	for _, a := range promotionActions {
		if !seen[a] {
			t.Fatalf("missing promotion action %v for pawn on a7", a)
		}
	}
}

func TestCaptureDecrementsPieceCount(t *testing.T) {
	pos := emptyPosition(coord.White)
	pos.PieceCount = 4
	pos.Board[coord.NewSquare(0, 4)] = coord.NewPiece(coord.King, coord.White)
	pos.Board[coord.NewSquare(7, 4)] = coord.NewPiece(coord.King, coord.Black)
	pos.Board[coord.NewSquare(3, 3)] = coord.NewPiece(coord.Rook, coord.White)
	pos.Board[coord.NewSquare(3, 6)] = coord.NewPiece(coord.Rook, coord.Black)

	mv := NewMove(ActionCapture, coord.NewSquare(3, 3), coord.NewSquare(3, 6))
	next := Apply(pos, mv)
	if next.PieceCount != pos.PieceCount-1 {
		t.Fatalf("capture should decrement piece count: got %d want %d", next.PieceCount, pos.PieceCount-1)
	}
	if next.Board[coord.NewSquare(3, 6)].Type() != coord.Rook || next.Board[coord.NewSquare(3, 6)].Side() != coord.White {
		t.Fatalf("capturing rook should occupy the target square")
	}
}

func TestPawnCrossFileBecomesOffFile(t *testing.T) {
	pos := emptyPosition(coord.White)
	pos.PieceCount = 4
	pos.Board[coord.NewSquare(0, 4)] = coord.NewPiece(coord.King, coord.White)
	pos.Board[coord.NewSquare(7, 4)] = coord.NewPiece(coord.King, coord.Black)
	pos.Board[coord.NewSquare(3, 3)] = coord.NewPiece(coord.Pawn, coord.White)
	pos.Board[coord.NewSquare(4, 4)] = coord.NewPiece(coord.Pawn, coord.Black)

	mv := NewMove(ActionCapture, coord.NewSquare(3, 3), coord.NewSquare(4, 4))
	next := Apply(pos, mv)
	if next.Board[coord.NewSquare(4, 4)].Type() != coord.PawnOffFile {
		t.Fatalf("pawn capturing across files should become pawn_off_file")
	}
}
