// Package endgame classifies a position with no further legal moves, or
// with legal moves but unwinnable material, into the reason the traversal
// engine records in the end_game_reason column of an exported record.
package endgame

import (
	"github.com/codefool/chessreach/internal/coord"
	"github.com/codefool/chessreach/internal/movegen"
	"github.com/codefool/chessreach/internal/position"
)

// Reason is the classification a position receives at export time.
type Reason uint8

const (
	// None means the position is ongoing play: legal moves exist and
	// material is sufficient for either side to continue.
	None Reason = iota
	Checkmate
	Stalemate
	// FiftyMoveDraw marks a position reached only because its fifty-move
	// counter hit the traversal engine's threshold; the classifier itself
	// never assigns this reason (it depends on move history, which the
	// classifier does not see), but traversal uses the same Reason type
	// to mark these positions in export records.
	FiftyMoveDraw
	// Draw14D1KvK: bare king against bare king.
	Draw14D1KvK
	// Draw14D2KvKMinor: bare king against king plus a single bishop or
	// knight.
	Draw14D2KvKMinor
	// Draw14D3SameColorBishops: king+bishop against king+bishop, the
	// bishops on the same square color.
	Draw14D3SameColorBishops
	// Draw14E2MinorVsMinor: king+minor against king+minor on both sides,
	// not already covered by 14D3 (opposite-colored bishops, or a knight
	// paired against either a bishop or another knight).
	Draw14E2MinorVsMinor
	// Draw14E3TwoKnights: bare king against king plus two knights, no
	// pawns on the board. Two knights cannot force checkmate against a
	// lone king with best defense.
	Draw14E3TwoKnights
	// Draw14E1LoneKingVsBishops: bare king against king plus any number
	// of same-square-color bishops and nothing else. Same-colored bishops
	// alone cannot force checkmate.
	Draw14E1LoneKingVsBishops
)

// String names the reason for export/logging.
func (r Reason) String() string {
	switch r {
	case None:
		return "none"
	case Checkmate:
		return "checkmate"
	case Stalemate:
		return "stalemate"
	case FiftyMoveDraw:
		return "fifty_move_draw"
	case Draw14D1KvK:
		return "14D1_KvK"
	case Draw14D2KvKMinor:
		return "14D2_KvKMinor"
	case Draw14D3SameColorBishops:
		return "14D3_SameColorBishops"
	case Draw14E2MinorVsMinor:
		return "14E2_MinorVsMinor"
	case Draw14E3TwoKnights:
		return "14E3_TwoKnights"
	case Draw14E1LoneKingVsBishops:
		return "14E1_LoneKingVsBishops"
	default:
		return "?"
	}
}

// IsTerminal reports whether r is any end-of-game reason other than None.
// The traversal worker does not consult it: it still expands every legal
// move of a position classified with a material draw.
func (r Reason) IsTerminal() bool {
	return r != None
}

// material summarizes the non-king pieces belonging to one side.
type material struct {
	queens, rooks, knights, pawns int
	bishopColors                  []int // 0 or 1 per bishop, by (rank+file)%2
}

func (m material) total() int {
	return m.queens + m.rooks + m.knights + m.pawns + len(m.bishopColors)
}

func (m material) isLoneKing() bool {
	return m.total() == 0
}

func (m material) hasHeavyOrPawn() bool {
	return m.queens > 0 || m.rooks > 0 || m.pawns > 0
}

func (m material) sameColorBishopsOnly() bool {
	if m.hasHeavyOrPawn() || m.knights > 0 || len(m.bishopColors) == 0 {
		return false
	}
	c := m.bishopColors[0]
	for _, bc := range m.bishopColors {
		if bc != c {
			return false
		}
	}
	return true
}

func summarize(pos *position.Position, side coord.Side) material {
	var m material
	for sq := coord.Square(0); sq < 64; sq++ {
		pc := pos.Board[sq]
		if pc.IsEmpty() || pc.Side() != side {
			continue
		}
		switch pc.Type() {
		case coord.Queen:
			m.queens++
		case coord.Rook:
			m.rooks++
		case coord.Knight:
			m.knights++
		case coord.Pawn, coord.PawnOffFile:
			m.pawns++
		case coord.Bishop:
			m.bishopColors = append(m.bishopColors, (sq.Rank()+sq.File())%2)
		}
	}
	return m
}

// Classify determines the end-of-game reason for pos, given its
// precomputed legal move list (callers already generate this for move
// generation, so classification never regenerates it).
func Classify(pos *position.Position, legal []movegen.Move) Reason {
	if len(legal) == 0 {
		if movegen.InCheck(pos, pos.OnMove) {
			return Checkmate
		}
		return Stalemate
	}

	white := summarize(pos, coord.White)
	black := summarize(pos, coord.Black)

	if white.isLoneKing() && black.isLoneKing() {
		return Draw14D1KvK
	}

	if oneBareKingOtherSingleMinor(white, black) {
		return Draw14D2KvKMinor
	}

	if isSingleMinor(white) && isSingleMinor(black) {
		wColor, wIsBishop := white.bishopColors, len(white.bishopColors) == 1
		bColor, bIsBishop := black.bishopColors, len(black.bishopColors) == 1
		if wIsBishop && bIsBishop && wColor[0] == bColor[0] {
			return Draw14D3SameColorBishops
		}
		return Draw14E2MinorVsMinor
	}

	if white.isLoneKing() && isTwoKnightsNoPawns(black) {
		return Draw14E3TwoKnights
	}
	if black.isLoneKing() && isTwoKnightsNoPawns(white) {
		return Draw14E3TwoKnights
	}

	if white.isLoneKing() && black.sameColorBishopsOnly() {
		return Draw14E1LoneKingVsBishops
	}
	if black.isLoneKing() && white.sameColorBishopsOnly() {
		return Draw14E1LoneKingVsBishops
	}

	return None
}

func isSingleMinor(m material) bool {
	return !m.hasHeavyOrPawn() && m.knights+len(m.bishopColors) == 1
}

func oneBareKingOtherSingleMinor(white, black material) bool {
	return (white.isLoneKing() && isSingleMinor(black)) || (black.isLoneKing() && isSingleMinor(white))
}

func isTwoKnightsNoPawns(m material) bool {
	return m.pawns == 0 && m.queens == 0 && m.rooks == 0 && len(m.bishopColors) == 0 && m.knights == 2
}
