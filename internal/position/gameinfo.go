// Package position implements the packed position codec: encoding a full
// chess game state (board placement plus castling/en-passant/side-to-move
// metadata) into the fixed-size record described by the packed position
// record, and decoding it back into a working mailbox representation used
// by the move generator.
package position

import "github.com/codefool/chessreach/internal/coord"

// CastleRights is the 4-bit WK,WQ,BK,BQ castling-rights field.
type CastleRights uint8

const (
	WhiteKingSide CastleRights = 1 << iota
	WhiteQueenSide
	BlackKingSide
	BlackQueenSide
)

// AllCastleRights is every right granted, the standard-opening default.
const AllCastleRights = WhiteKingSide | WhiteQueenSide | BlackKingSide | BlackQueenSide

// Has reports whether cr grants the given right.
func (cr CastleRights) Has(r CastleRights) bool {
	return cr&r != 0
}

// Revoke clears the given right(s) and returns the result.
func (cr CastleRights) Revoke(r CastleRights) CastleRights {
	return cr &^ r
}

// GameInfo is the packed 32-bit metadata word described by the packed
// position record:
//
//	bits 31-24  piece count (8 bits; only values 2..32 are ever valid)
//	bit  23     on-move (0 white, 1 black)
//	bits 22-19  castle rights: WK,WQ,BK,BQ
//	bits 18-15  en-passant: bit 18 = active, bits 17-15 = file
//	bits 14-0   reserved, must be zero
type GameInfo uint32

const (
	pieceCountShift = 24
	pieceCountMask  = 0xFF
	onMoveShift     = 23
	onMoveMask      = 0x1
	castleShift     = 19
	castleMask      = 0xF
	epShift         = 15
	epMask          = 0xF
	epActiveBit     = 0x8
	epFileMask      = 0x7
	reservedMask    = (1 << 15) - 1
)

// PackGameInfo assembles a GameInfo word from its constituent fields.
func PackGameInfo(pieceCount int, onMove coord.Side, castle CastleRights, epActive bool, epFile int) GameInfo {
	var g uint32
	g |= uint32(pieceCount&pieceCountMask) << pieceCountShift
	if onMove == coord.Black {
		g |= onMoveMask << onMoveShift
	}
	g |= uint32(castle&castleMask) << castleShift
	ep := uint32(0)
	if epActive {
		ep = epActiveBit | uint32(epFile&epFileMask)
	}
	g |= ep << epShift
	return GameInfo(g)
}

// PieceCount returns the number of pieces on the board (2..32 for any valid
// position).
func (g GameInfo) PieceCount() int {
	return int((uint32(g) >> pieceCountShift) & pieceCountMask)
}

// OnMove returns the side to move.
func (g GameInfo) OnMove() coord.Side {
	if (uint32(g)>>onMoveShift)&onMoveMask != 0 {
		return coord.Black
	}
	return coord.White
}

// Castle returns the castling-rights nibble.
func (g GameInfo) Castle() CastleRights {
	return CastleRights((uint32(g) >> castleShift) & castleMask)
}

// EnPassant returns whether an en-passant capture is active this move and,
// if so, on which file.
func (g GameInfo) EnPassant() (active bool, file int) {
	ep := (uint32(g) >> epShift) & epMask
	return ep&epActiveBit != 0, int(ep & epFileMask)
}

// Reserved returns the bits that must always be zero; used by the codec's
// invariant check.
func (g GameInfo) Reserved() uint32 {
	return uint32(g) & reservedMask
}
