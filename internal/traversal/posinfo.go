// Package traversal implements the graph traversal engine: the worker pool
// that pops unresolved positions, expands their legal moves, classifies
// each successor into one of the five sinks described by the position
// info record, and maintains the resolved/unresolved closed and open sets.
package traversal

import (
	"encoding/json"
	"fmt"

	"github.com/codefool/chessreach/internal/endgame"
	"github.com/codefool/chessreach/internal/movegen"
)

// RefEdge records one additional incoming edge to a position beyond the
// first path that discovered it.
type RefEdge struct {
	Move     movegen.Move `json:"move"`
	ParentID uint64       `json:"parent_id"`
}

// PosInfo is the graph-edge payload for one reachable position: who
// discovered it first, how it was reached, and every other path into it.
type PosInfo struct {
	ID            uint64         `json:"id"`
	ParentID      uint64         `json:"parent_id"`
	Move          movegen.Move   `json:"move"`
	MoveCount     int            `json:"move_count"`
	Distance      int            `json:"distance"`
	FiftyCounter  int            `json:"fifty_counter"`
	EndGameReason endgame.Reason `json:"end_game_reason"`
	Refs          []RefEdge      `json:"refs,omitempty"`
}

// idValueLen is the fixed width of the DHT's dedup-index value: just the
// id assigned to the packed position the key addresses. The full mutable
// PosInfo (with its growing ref list) lives in the in-memory maps or, when
// cache_resolved is off, in the resolved-store overflow — the DHT only
// needs to answer "have I seen this position, and what id did I give it".
const idValueLen = 8

func encodeID(id uint64) []byte {
	b := make([]byte, idValueLen)
	for i := 0; i < idValueLen; i++ {
		b[idValueLen-1-i] = byte(id >> (8 * i))
	}
	return b
}

func decodeID(b []byte) uint64 {
	var id uint64
	for i := 0; i < idValueLen && i < len(b); i++ {
		id = (id << 8) | uint64(b[i])
	}
	return id
}

func marshalPosInfo(info *PosInfo) ([]byte, error) {
	b, err := json.Marshal(info)
	if err != nil {
		return nil, fmt.Errorf("traversal: marshaling position info %d: %w", info.ID, err)
	}
	return b, nil
}

func unmarshalPosInfo(b []byte) (*PosInfo, error) {
	var info PosInfo
	if err := json.Unmarshal(b, &info); err != nil {
		return nil, fmt.Errorf("traversal: unmarshaling position info: %w", err)
	}
	return &info, nil
}
