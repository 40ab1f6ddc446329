package traversal

import (
	"fmt"
	"io"
	"sync"

	"github.com/codefool/chessreach/internal/config"
	"github.com/codefool/chessreach/internal/dht"
	"github.com/codefool/chessreach/internal/dq"
	"github.com/codefool/chessreach/internal/movegen"
	"github.com/codefool/chessreach/internal/position"
)

// entry is one in-memory unresolved position: its decoded board plus the
// graph-edge record being accumulated for it.
type entry struct {
	Pos  *position.Position
	Info *PosInfo
}

// spillRecordLen is the fixed width of an unresolved entry spilled to the
// disk queue: a freshly-discovered entry always has an empty ref list (a
// second path to it is recorded separately, see refShard), so it packs into
// a fixed-width record without needing the variable-length PosInfo encoding
// the resolved store uses.
const spillRecordLen = position.PackedLen + 8 + 8 + 2 + 4 + 2

type refShard struct {
	mu   sync.Mutex
	refs map[uint64][]RefEdge
}

// Context holds everything one level's traversal run shares across its
// worker pool: the dedup index, the unresolved frontier (in memory and
// overflowed to disk), the resolved set, and the id/ref-list bookkeeping
// the worker loop's concurrency model requires.
type Context struct {
	cfg   *config.Config
	level int

	index *dht.Table
	spill *dq.Queue

	resolvedStore *ResolvedStore

	unresolvedMu sync.Mutex
	unresolved   map[position.Packed]*entry

	resolvedMu sync.Mutex
	resolved   map[position.Packed]*PosInfo

	idMu   sync.Mutex
	nextID uint64

	// dedupMu serializes the whole check-then-insert sequence for a
	// same-level successor (dedup index search, index append, frontier
	// insert): the index's own per-bucket lock only protects one call at a
	// time, not the gap between a Search and the Append it conditions on,
	// so two workers racing to discover the same transposition could
	// otherwise both miss and both insert. The original engine has the same
	// shape of race guard, a single mutex around its insert_unresolved.
	dedupMu sync.Mutex

	refShards []refShard

	stopMu sync.Mutex
	stop   bool

	Stats *Stats
}

// NewContext opens the dedup index, overflow queue, and (if configured)
// resolved-store overflow for a traversal run at the given piece-count
// level, rooted under cfg.WorkRoot.
func NewContext(cfg *config.Config, level int) (*Context, error) {
	levelDir, err := cfg.LevelDir(level)
	if err != nil {
		return nil, err
	}

	index, err := dht.Open(levelDir, "index", position.PackedLen, idValueLen, cfg.DHTMaxOpenFiles)
	if err != nil {
		return nil, fmt.Errorf("traversal: opening dedup index: %w", err)
	}
	spill, err := dq.Open(levelDir, "unresolved", spillRecordLen, cfg.DQRecsPerBlock)
	if err != nil {
		return nil, fmt.Errorf("traversal: opening overflow queue: %w", err)
	}

	var rs *ResolvedStore
	if !cfg.CacheResolved {
		rs, err = OpenResolvedStore(cfg.ResolvedStoreDir())
		if err != nil {
			return nil, err
		}
	}

	stripes := cfg.RefStripeCount
	if stripes <= 0 {
		stripes = 1
	}
	shards := make([]refShard, stripes)
	for i := range shards {
		shards[i].refs = make(map[uint64][]RefEdge)
	}

	return &Context{
		cfg:           cfg,
		level:         level,
		index:         index,
		spill:         spill,
		resolvedStore: rs,
		unresolved:    make(map[position.Packed]*entry),
		resolved:      make(map[position.Packed]*PosInfo),
		refShards:     shards,
		Stats:         NewStats(),
	}, nil
}

// Close releases the context's storage handles. The resolved set itself
// (map or resolvedStore) is left untouched; callers export it first via
// ExportResolved.
func (c *Context) Close() error {
	c.index.Close()
	if err := c.spill.Close(); err != nil {
		return err
	}
	if c.resolvedStore != nil {
		return c.resolvedStore.Close()
	}
	return nil
}

// RequestStop asks every worker to finish its current base position and
// return, rather than popping another one.
func (c *Context) RequestStop() {
	c.stopMu.Lock()
	c.stop = true
	c.stopMu.Unlock()
}

func (c *Context) stopped() bool {
	c.stopMu.Lock()
	defer c.stopMu.Unlock()
	return c.stop
}

// Seed inserts pos as a distance-0 root of this level's traversal, applying
// the castling-rights research toggle if configured.
func (c *Context) Seed(pos *position.Position) error {
	c.normalizeCastle(pos)
	packed := position.Encode(pos)
	id := c.allocID()
	info := &PosInfo{ID: id}

	c.unresolvedMu.Lock()
	c.unresolved[packed] = &entry{Pos: pos, Info: info}
	c.unresolvedMu.Unlock()

	return c.index.Append(packed.Bytes(), encodeID(id))
}

func (c *Context) normalizeCastle(pos *position.Position) {
	if !c.cfg.EnforceCastlingOnceMoved {
		pos.Castle = position.AllCastleRights
	}
}

func (c *Context) allocID() uint64 {
	c.idMu.Lock()
	defer c.idMu.Unlock()
	c.nextID++
	return c.nextID
}

// popUnresolved removes and returns one entry from the frontier, preferring
// the in-memory map and falling back to the overflow queue. ok is false
// only once both are exhausted, the worker pool's termination signal.
func (c *Context) popUnresolved() (packed position.Packed, e *entry, ok bool, err error) {
	c.unresolvedMu.Lock()
	for k, v := range c.unresolved {
		delete(c.unresolved, k)
		c.unresolvedMu.Unlock()
		return k, v, true, nil
	}
	c.unresolvedMu.Unlock()

	rec, perr := c.spill.Pop()
	if perr == io.EOF {
		return position.Packed{}, nil, false, nil
	}
	if perr != nil {
		return position.Packed{}, nil, false, perr
	}
	packed, e, err = decodeSpill(rec)
	return packed, e, err == nil, err
}

// insertUnresolved adds a freshly-discovered same-level successor to the
// frontier, spilling to the overflow queue once the in-memory map reaches
// the configured cache limit.
func (c *Context) insertUnresolved(packed position.Packed, pos *position.Position, info *PosInfo) error {
	c.unresolvedMu.Lock()
	if len(c.unresolved) < c.cfg.UnresolvedCacheLimit {
		c.unresolved[packed] = &entry{Pos: pos, Info: info}
		c.unresolvedMu.Unlock()
		return nil
	}
	c.unresolvedMu.Unlock()
	return c.spill.Push(encodeSpill(packed, info))
}

// appendRef records an additional incoming edge to the position id was
// assigned to. Because id's entry may currently live in the in-memory
// frontier, the overflow queue, or the resolved set, the edge is staged in
// a side table keyed by id and merged into the target's ref list whenever
// that entry is next read back out (popped for expansion, or exported).
func (c *Context) appendRef(id uint64, edge RefEdge) {
	shard := c.shardFor(id)
	shard.mu.Lock()
	shard.refs[id] = append(shard.refs[id], edge)
	shard.mu.Unlock()
}

// drainRefs removes and returns every staged ref edge for id.
func (c *Context) drainRefs(id uint64) []RefEdge {
	shard := c.shardFor(id)
	shard.mu.Lock()
	refs := shard.refs[id]
	delete(shard.refs, id)
	shard.mu.Unlock()
	return refs
}

func (c *Context) shardFor(id uint64) *refShard {
	return &c.refShards[id%uint64(len(c.refShards))]
}

// publishResolved records info as the finalized (or provisionally
// finalized) entry for packed, honoring the cache_resolved setting.
func (c *Context) publishResolved(packed position.Packed, info *PosInfo) error {
	if c.cfg.CacheResolved {
		c.resolvedMu.Lock()
		c.resolved[packed] = info
		c.resolvedMu.Unlock()
		return nil
	}
	return c.resolvedStore.Put(packed.Bytes(), info)
}

func encodeSpill(packed position.Packed, info *PosInfo) []byte {
	buf := make([]byte, spillRecordLen)
	off := copy(buf, packed.Bytes())
	off += copy(buf[off:], encodeID(info.ID))
	off += copy(buf[off:], encodeID(info.ParentID))
	putUint16(buf[off:], uint16(info.Move))
	off += 2
	putUint32(buf[off:], uint32(info.Distance))
	off += 4
	putUint16(buf[off:], uint16(info.FiftyCounter))
	return buf
}

func decodeSpill(rec []byte) (position.Packed, *entry, error) {
	if len(rec) != spillRecordLen {
		return position.Packed{}, nil, fmt.Errorf("traversal: spilled record is %d bytes, want %d", len(rec), spillRecordLen)
	}
	off := position.PackedLen
	packed, err := position.ParsePacked(rec[:off])
	if err != nil {
		return position.Packed{}, nil, err
	}
	pos, err := position.Decode(packed)
	if err != nil {
		return position.Packed{}, nil, fmt.Errorf("traversal: decoding spilled position: %w", err)
	}

	id := decodeID(rec[off : off+8])
	off += 8
	parentID := decodeID(rec[off : off+8])
	off += 8
	move := getUint16(rec[off:])
	off += 2
	distance := getUint32(rec[off:])
	off += 4
	fifty := getUint16(rec[off:])

	info := &PosInfo{
		ID:           id,
		ParentID:     parentID,
		Move:         movegen.Move(move),
		Distance:     int(distance),
		FiftyCounter: int(fifty),
	}
	return packed, &entry{Pos: pos, Info: info}, nil
}

func putUint16(b []byte, v uint16) { b[0] = byte(v >> 8); b[1] = byte(v) }
func putUint32(b []byte, v uint32) {
	b[0] = byte(v >> 24)
	b[1] = byte(v >> 16)
	b[2] = byte(v >> 8)
	b[3] = byte(v)
}
func getUint16(b []byte) uint16 { return uint16(b[0])<<8 | uint16(b[1]) }
func getUint32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}
