package endgame

import (
	"testing"

	"github.com/codefool/chessreach/internal/coord"
	"github.com/codefool/chessreach/internal/movegen"
	"github.com/codefool/chessreach/internal/position"
)

func kk(pieces map[coord.Square]coord.Piece, onMove coord.Side) *position.Position {
	p := &position.Position{OnMove: onMove}
	for sq, pc := range pieces {
		p.Board[sq] = pc
		p.PieceCount++
	}
	return p
}

func TestClassifyOngoing(t *testing.T) {
	pos := position.StartingPosition()
	legal := movegen.LegalMoves(pos)
	if got := Classify(pos, legal); got != None {
		t.Fatalf("starting position classified as %v, want None", got)
	}
}

func TestClassifyStalemate(t *testing.T) {
	pos := kk(map[coord.Square]coord.Piece{
		coord.NewSquare(0, 0): coord.NewPiece(coord.King, coord.White),
		coord.NewSquare(2, 1): coord.NewPiece(coord.King, coord.Black),
		coord.NewSquare(1, 2): coord.NewPiece(coord.Queen, coord.Black),
	}, coord.White)
	legal := movegen.LegalMoves(pos)
	if got := Classify(pos, legal); got != Stalemate {
		t.Fatalf("classic a1 stalemate classified as %v, want Stalemate", got)
	}
}

func TestClassifyCheckmate(t *testing.T) {
	// back-rank mate: white king boxed on h1, black rook on a1 mates along the first rank.
	pos := kk(map[coord.Square]coord.Piece{
		coord.NewSquare(0, 7): coord.NewPiece(coord.King, coord.White),
		coord.NewSquare(1, 6): coord.NewPiece(coord.Pawn, coord.White),
		coord.NewSquare(1, 7): coord.NewPiece(coord.Pawn, coord.White),
		coord.NewSquare(2, 5): coord.NewPiece(coord.King, coord.Black),
		coord.NewSquare(0, 0): coord.NewPiece(coord.Rook, coord.Black),
	}, coord.White)
	legal := movegen.LegalMoves(pos)
	if got := Classify(pos, legal); got != Checkmate {
		t.Fatalf("back-rank mate classified as %v, want Checkmate", got)
	}
}

func TestClassifyKvK(t *testing.T) {
	pos := kk(map[coord.Square]coord.Piece{
		coord.NewSquare(0, 0): coord.NewPiece(coord.King, coord.White),
		coord.NewSquare(7, 7): coord.NewPiece(coord.King, coord.Black),
	}, coord.White)
	legal := movegen.LegalMoves(pos)
	if got := Classify(pos, legal); got != Draw14D1KvK {
		t.Fatalf("bare kings classified as %v, want Draw14D1KvK", got)
	}
}

func TestClassifyKvKMinor(t *testing.T) {
	pos := kk(map[coord.Square]coord.Piece{
		coord.NewSquare(0, 0): coord.NewPiece(coord.King, coord.White),
		coord.NewSquare(7, 7): coord.NewPiece(coord.King, coord.Black),
		coord.NewSquare(7, 6): coord.NewPiece(coord.Knight, coord.Black),
	}, coord.White)
	legal := movegen.LegalMoves(pos)
	if got := Classify(pos, legal); got != Draw14D2KvKMinor {
		t.Fatalf("king vs king+knight classified as %v, want Draw14D2KvKMinor", got)
	}
}

func TestClassifySameColorBishops(t *testing.T) {
	pos := kk(map[coord.Square]coord.Piece{
		coord.NewSquare(0, 0): coord.NewPiece(coord.King, coord.White),
		coord.NewSquare(0, 2): coord.NewPiece(coord.Bishop, coord.White), // c1, dark square (0+2=2 even)
		coord.NewSquare(7, 7): coord.NewPiece(coord.King, coord.Black),
		coord.NewSquare(5, 4): coord.NewPiece(coord.Bishop, coord.Black), // e6, (5+4=9 odd)... adjust below
	}, coord.White)
	// place black bishop on a square with the same parity as c1 (rank+file even)
	pos.Board[coord.NewSquare(5, 4)] = coord.NoPiece
	pos.Board[coord.NewSquare(6, 5)] = coord.NewPiece(coord.Bishop, coord.Black) // 6+5=11 odd -> flip
	pos.Board[coord.NewSquare(6, 5)] = coord.NoPiece
	pos.Board[coord.NewSquare(2, 4)] = coord.NewPiece(coord.Bishop, coord.Black) // 2+4=6 even, matches c1 parity

	legal := movegen.LegalMoves(pos)
	if got := Classify(pos, legal); got != Draw14D3SameColorBishops {
		t.Fatalf("same-color bishops classified as %v, want Draw14D3SameColorBishops", got)
	}
}

func TestClassifyTwoKnightsNoPawns(t *testing.T) {
	pos := kk(map[coord.Square]coord.Piece{
		coord.NewSquare(0, 0): coord.NewPiece(coord.King, coord.White),
		coord.NewSquare(7, 7): coord.NewPiece(coord.King, coord.Black),
		coord.NewSquare(5, 5): coord.NewPiece(coord.Knight, coord.Black),
		coord.NewSquare(4, 4): coord.NewPiece(coord.Knight, coord.Black),
	}, coord.White)
	legal := movegen.LegalMoves(pos)
	if got := Classify(pos, legal); got != Draw14E3TwoKnights {
		t.Fatalf("king vs king+2 knights classified as %v, want Draw14E3TwoKnights", got)
	}
}
