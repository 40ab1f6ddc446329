package position

import (
	"encoding/binary"
	"fmt"
	"math/bits"

	"github.com/codefool/chessreach/internal/coord"
)

// PackedLen is the fixed wire size of a Packed record: 4-byte game_info,
// 8-byte population, 8-byte lo, 8-byte hi.
const PackedLen = 4 + 8 + 8 + 8

// Packed is the on-the-wire, fixed-size (28-byte) record: the game_info
// word, the population bitmap, and the lo/hi piece-nibble words.
type Packed struct {
	Info       GameInfo
	Population uint64
	Lo         uint64
	Hi         uint64
}

// Equal reports exact field-wise equality; two positions equal in
// placement and metadata compare equal regardless of how they were reached,
// which is exactly the property traversal deduplication relies on.
func (p Packed) Equal(o Packed) bool {
	return p.Info == o.Info && p.Population == o.Population && p.Lo == o.Lo && p.Hi == o.Hi
}

// Bytes renders the record as its fixed 28-byte wire form, used as the DHT
// and resolved-store key: two positions equal in placement and metadata
// always produce identical bytes.
func (p Packed) Bytes() []byte {
	buf := make([]byte, PackedLen)
	binary.BigEndian.PutUint32(buf[0:4], uint32(p.Info))
	binary.BigEndian.PutUint64(buf[4:12], p.Population)
	binary.BigEndian.PutUint64(buf[12:20], p.Lo)
	binary.BigEndian.PutUint64(buf[20:28], p.Hi)
	return buf
}

// ParsePacked parses the 28-byte wire form produced by Bytes.
func ParsePacked(b []byte) (Packed, error) {
	if len(b) != PackedLen {
		return Packed{}, fmt.Errorf("position: packed record is %d bytes, want %d", len(b), PackedLen)
	}
	return Packed{
		Info:       GameInfo(binary.BigEndian.Uint32(b[0:4])),
		Population: binary.BigEndian.Uint64(b[4:12]),
		Lo:         binary.BigEndian.Uint64(b[12:20]),
		Hi:         binary.BigEndian.Uint64(b[20:28]),
	}, nil
}

// Position is the decoded, mutable working representation: a 64-entry
// mailbox of piece nibbles plus the game-state fields carried by GameInfo.
type Position struct {
	Board      [64]coord.Piece
	OnMove     coord.Side
	Castle     CastleRights
	EPActive   bool
	EPFile     int
	PieceCount int
}

// PieceAt returns the piece occupying sq, or NoPiece if empty.
func (p *Position) PieceAt(sq coord.Square) coord.Piece {
	return p.Board[sq]
}

// IsEmpty reports whether sq holds no piece.
func (p *Position) IsEmpty(sq coord.Square) bool {
	return p.Board[sq].IsEmpty()
}

// KingSquare returns the square occupied by side's king.
func (p *Position) KingSquare(side coord.Side) coord.Square {
	for sq := coord.Square(0); sq < 64; sq++ {
		pc := p.Board[sq]
		if pc.Type() == coord.King && pc.Side() == side {
			return sq
		}
	}
	return coord.NoSquare
}

// Encode packs a decoded Position into its fixed-width wire record.
//
// Squares are walked 0..63 in ascending order; each non-empty square sets
// its population bit and contributes its 4-bit nibble to lo (first 16
// occupied squares) or hi (next 16). Encoding never looks at move history,
// so two positions equal in placement and metadata always encode identically.
func Encode(p *Position) Packed {
	var pp Packed
	var pop uint64
	var lo, hi uint64
	nibbleIdx := 0
	pieceCount := 0

	for sq := coord.Square(0); sq < 64; sq++ {
		pc := p.Board[sq]
		if pc.IsEmpty() {
			continue
		}
		pop |= 1 << uint(sq)
		nib := uint64(pc)
		if nibbleIdx < 16 {
			lo |= nib << uint(nibbleIdx*4)
		} else {
			hi |= nib << uint((nibbleIdx-16)*4)
		}
		nibbleIdx++
		pieceCount++
	}

	pp.Population = pop
	pp.Lo = lo
	pp.Hi = hi
	pp.Info = PackGameInfo(pieceCount, p.OnMove, p.Castle, p.EPActive, p.EPFile)
	return pp
}

// Decode unpacks a wire record into a working Position, validating the
// invariants in the packed position record: popcount(population) equals
// piece_count, reserved bits are zero, and exactly one king per side exists.
func Decode(pp Packed) (*Position, error) {
	if pp.Info.Reserved() != 0 {
		return nil, fmt.Errorf("position: reserved bits not zero: %#x", pp.Info.Reserved())
	}

	pos := &Position{
		OnMove:   pp.Info.OnMove(),
		Castle:   pp.Info.Castle(),
		PieceCount: pp.Info.PieceCount(),
	}
	pos.EPActive, pos.EPFile = pp.Info.EnPassant()

	nibbleIdx := 0
	lo, hi := pp.Lo, pp.Hi
	occupied := 0
	kingCount := [2]int{}
	for sq := coord.Square(0); sq < 64; sq++ {
		if pp.Population&(1<<uint(sq)) == 0 {
			pos.Board[sq] = coord.NoPiece
			continue
		}
		var nib uint64
		if nibbleIdx < 16 {
			nib = (lo >> uint(nibbleIdx*4)) & 0xF
		} else {
			nib = (hi >> uint((nibbleIdx-16)*4)) & 0xF
		}
		nibbleIdx++
		occupied++
		pc := coord.Piece(nib)
		pos.Board[sq] = pc
		if pc.Type() == coord.King {
			kingCount[pc.Side()]++
		}
	}

	if bits.OnesCount64(pp.Population) != pos.PieceCount {
		return nil, fmt.Errorf("position: piece_count %d does not match population popcount %d",
			pos.PieceCount, bits.OnesCount64(pp.Population))
	}
	if occupied != pos.PieceCount {
		return nil, fmt.Errorf("position: occupied squares %d does not match piece_count %d", occupied, pos.PieceCount)
	}
	if kingCount[coord.White] != 1 || kingCount[coord.Black] != 1 {
		return nil, fmt.Errorf("position: expected exactly one king per side, got white=%d black=%d",
			kingCount[coord.White], kingCount[coord.Black])
	}
	if pos.EPActive {
		// the pawn subject to en-passant capture belongs to the side NOT on
		// move: it rests on rank index 3 (rank 4) if white just advanced it,
		// rank index 4 (rank 5) if black did.
		r := 3
		if pos.OnMove == coord.White {
			r = 4
		}
		sq := coord.NewSquare(r, pos.EPFile)
		victim := pos.Board[sq]
		if victim.IsEmpty() || !victim.IsPawn() || victim.Side() == pos.OnMove {
			return nil, fmt.Errorf("position: en-passant file %d active but no pawn at %s", pos.EPFile, sq)
		}
	}

	return pos, nil
}

// StartingPosition returns the standard chess opening position.
func StartingPosition() *Position {
	p := &Position{
		OnMove:     coord.White,
		Castle:     AllCastleRights,
		PieceCount: 32,
	}
	court := [8]coord.PieceType{
		coord.Rook, coord.Knight, coord.Bishop, coord.Queen,
		coord.King, coord.Bishop, coord.Knight, coord.Rook,
	}
	for file := 0; file < 8; file++ {
		p.Board[coord.NewSquare(0, file)] = coord.NewPiece(court[file], coord.White)
		p.Board[coord.NewSquare(1, file)] = coord.NewPiece(coord.Pawn, coord.White)
		p.Board[coord.NewSquare(6, file)] = coord.NewPiece(coord.Pawn, coord.Black)
		p.Board[coord.NewSquare(7, file)] = coord.NewPiece(court[file], coord.Black)
	}
	return p
}

// FEN renders the position in Forsyth-Edwards Notation. Halfmove clock and
// fullmove number are not tracked by the packed record (they live in the
// graph-edge PosInfo instead), so they are always emitted as "0 1".
func (p *Position) FEN() string {
	glyphs := "-KQBNRPP"
	out := ""
	for r := 7; r >= 0; r-- {
		empty := 0
		for f := 0; f < 8; f++ {
			pc := p.Board[coord.NewSquare(r, f)]
			if pc.IsEmpty() {
				empty++
				continue
			}
			if empty > 0 {
				out += fmt.Sprintf("%d", empty)
				empty = 0
			}
			g := glyphs[pc.Type()]
			if pc.Side() == coord.Black {
				g = g - 'A' + 'a'
			}
			out += string(g)
		}
		if empty > 0 {
			out += fmt.Sprintf("%d", empty)
		}
		if r != 0 {
			out += "/"
		}
	}
	if p.OnMove == coord.White {
		out += " w "
	} else {
		out += " b "
	}
	if p.Castle == 0 {
		out += "-"
	} else {
		if p.Castle.Has(WhiteKingSide) {
			out += "K"
		}
		if p.Castle.Has(WhiteQueenSide) {
			out += "Q"
		}
		if p.Castle.Has(BlackKingSide) {
			out += "k"
		}
		if p.Castle.Has(BlackQueenSide) {
			out += "q"
		}
	}
	out += " "
	if !p.EPActive {
		out += "-"
	} else {
		epRank := 2
		if p.OnMove == coord.White {
			epRank = 5
		}
		out += coord.NewSquare(epRank, p.EPFile).String()
	}
	out += " 0 1"
	return out
}
