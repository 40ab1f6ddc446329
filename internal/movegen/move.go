// Package movegen implements the square-attack oracle and the legal move
// generator: candidate generation per piece type, the legality filter (no
// move may leave the mover's own king attacked), and apply-move semantics
// shared by simulation and real application.
package movegen

import (
	"fmt"

	"github.com/codefool/chessreach/internal/coord"
)

// Action is the 4-bit move-action code packed into a Move.
type Action uint8

const (
	ActionNone Action = iota
	ActionMove
	ActionCapture
	ActionCastleKing
	ActionCastleQueen
	ActionEnPassant
	actionReserved6
	actionReserved7
	ActionPromoteQueen
	ActionPromoteBishop
	ActionPromoteKnight
	ActionPromoteRook
)

// Move packs a move into 16 bits: action (4), source square (6), target
// square (6).
type Move uint16

const (
	moveSourceShift = 0
	moveSourceMask  = 0x3F
	moveTargetShift = 6
	moveTargetMask  = 0x3F
	moveActionShift = 12
	moveActionMask  = 0xF
)

// NewMove packs action/source/target into a Move.
func NewMove(action Action, source, target coord.Square) Move {
	return Move(uint16(source)<<moveSourceShift |
		uint16(target)<<moveTargetShift |
		uint16(action)<<moveActionShift)
}

// Source returns the move's origin square.
func (m Move) Source() coord.Square {
	return coord.Square((uint16(m) >> moveSourceShift) & moveSourceMask)
}

// Target returns the move's destination square.
func (m Move) Target() coord.Square {
	return coord.Square((uint16(m) >> moveTargetShift) & moveTargetMask)
}

// Action returns the move's action code.
func (m Move) Action() Action {
	return Action((uint16(m) >> moveActionShift) & moveActionMask)
}

// IsPromotion reports whether the move promotes a pawn on its eighth rank.
func (m Move) IsPromotion() bool {
	switch m.Action() {
	case ActionPromoteQueen, ActionPromoteBishop, ActionPromoteKnight, ActionPromoteRook:
		return true
	default:
		return false
	}
}

// PromotedType returns the piece type a promotion move creates.
func (m Move) PromotedType() coord.PieceType {
	switch m.Action() {
	case ActionPromoteQueen:
		return coord.Queen
	case ActionPromoteBishop:
		return coord.Bishop
	case ActionPromoteKnight:
		return coord.Knight
	case ActionPromoteRook:
		return coord.Rook
	default:
		return coord.Empty
	}
}

// String renders a move in UCI-like form for logs, e.g. "e2e4".
func (m Move) String() string {
	s := m.Source().String() + m.Target().String()
	switch m.Action() {
	case ActionPromoteQueen:
		s += "q"
	case ActionPromoteBishop:
		s += "b"
	case ActionPromoteKnight:
		s += "n"
	case ActionPromoteRook:
		s += "r"
	case ActionCastleKing:
		s += " (O-O)"
	case ActionCastleQueen:
		s += " (O-O-O)"
	case ActionEnPassant:
		s += " (e.p.)"
	}
	return s
}

// ErrIllegalMove marks a move the legality filter rejected.
var ErrIllegalMove = fmt.Errorf("movegen: move leaves own king attacked")
