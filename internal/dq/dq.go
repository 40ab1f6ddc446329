// Package dq implements a disk-backed queue that grows without bound: a
// block-allocation index (".idx") in the style of a FAT, paired with a flat
// data file (".dat") of fixed-size blocks. Blocks drained by Pop are linked
// onto a free list and recycled by the next Push that needs a new block,
// so steady-state operation does not grow the data file once the queue's
// depth stabilizes.
package dq

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sync"
)

// nilBlock marks the absence of a block in a linked list (block ids are
// 1-based so that the zero value means "no block").
const nilBlock blockID = 0

type blockID uint32

// header is the fixed-size record at the start of the .idx file.
type header struct {
	BlockSize    uint32
	RecLen       uint32
	RecsPerBlock uint32
	BlockCount   uint32
	AllocHead    blockID
	AllocTail    blockID
	FreeHead     blockID
	FreeTail     blockID
	RecCount     uint64
}

// indexRec tracks one block's position in the alloc/free linked lists and
// how much of it has been written and read.
type indexRec struct {
	Next       blockID
	WriteCount uint32
	ReadCount  uint32
}

const headerLen = 4*4 + 4*4 + 8 // matches header's binary.Size
const indexRecLen = 4 + 4 + 4

// Queue is a disk-backed FIFO queue of fixed-length records.
type Queue struct {
	mu     sync.Mutex
	recLen int

	idxPath string
	datPath string
	idx     *os.File
	dat     *os.File
	hdr     header
}

// Open opens or creates a queue rooted at path with the given name,
// storing records of exactly recLen bytes. recsPerBlock controls the
// block granularity used for allocation and recycling; the original
// engine used one block per bucket-sized batch, a reasonable default is
// in the low thousands.
func Open(path, name string, recLen, recsPerBlock int) (*Queue, error) {
	if recLen <= 0 || recsPerBlock <= 0 {
		return nil, fmt.Errorf("dq: recLen and recsPerBlock must be positive")
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("dq: creating %s: %w", path, err)
	}
	q := &Queue{
		recLen:  recLen,
		idxPath: fmt.Sprintf("%s/%s.idx", path, name),
		datPath: fmt.Sprintf("%s/%s.dat", path, name),
	}

	idxExists := fileExists(q.idxPath)
	var err error
	q.idx, err = os.OpenFile(q.idxPath, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("dq: opening %s: %w", q.idxPath, err)
	}
	q.dat, err = os.OpenFile(q.datPath, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("dq: opening %s: %w", q.datPath, err)
	}

	if idxExists {
		if err := q.loadHeader(); err != nil {
			return nil, err
		}
		if q.hdr.RecLen != uint32(recLen) {
			return nil, fmt.Errorf("dq: %s was created with rec_len %d, asked for %d", name, q.hdr.RecLen, recLen)
		}
	} else {
		q.hdr = header{
			BlockSize:    uint32(recsPerBlock * recLen),
			RecLen:       uint32(recLen),
			RecsPerBlock: uint32(recsPerBlock),
		}
		if err := q.saveHeader(); err != nil {
			return nil, err
		}
	}
	return q, nil
}

func fileExists(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.Size() > 0
}

// Close releases the queue's file handles.
func (q *Queue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	err1 := q.idx.Close()
	err2 := q.dat.Close()
	if err1 != nil {
		return err1
	}
	return err2
}

// Len returns the number of records currently queued.
func (q *Queue) Len() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.hdr.RecCount
}

// Push appends rec (exactly recLen bytes) to the tail of the queue,
// allocating a new block if the current tail block is full and recycling
// a freed block in preference to growing the data file.
func (q *Queue) Push(rec []byte) error {
	if len(rec) != q.recLen {
		return fmt.Errorf("dq: record is %d bytes, want %d", len(rec), q.recLen)
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	tail, tailRec, err := q.tailBlock()
	if err != nil {
		return err
	}
	if tail == nilBlock || tailRec.WriteCount == q.hdr.RecsPerBlock {
		tail, tailRec, err = q.allocateBlock(tail)
		if err != nil {
			return err
		}
	}

	off := q.blockDataOffset(tail) + int64(tailRec.WriteCount)*int64(q.recLen)
	if _, err := q.dat.WriteAt(rec, off); err != nil {
		return fmt.Errorf("dq: writing record: %w", err)
	}
	tailRec.WriteCount++
	if err := q.writeIndexRec(tail, tailRec); err != nil {
		return err
	}
	q.hdr.RecCount++
	return q.saveHeader()
}

// Pop removes and returns the record at the head of the queue. It returns
// io.EOF when the queue is empty.
func (q *Queue) Pop() ([]byte, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.hdr.RecCount == 0 || q.hdr.AllocHead == nilBlock {
		return nil, io.EOF
	}
	head := q.hdr.AllocHead
	headRec, err := q.readIndexRec(head)
	if err != nil {
		return nil, err
	}

	off := q.blockDataOffset(head) + int64(headRec.ReadCount)*int64(q.recLen)
	buf := make([]byte, q.recLen)
	if _, err := io.ReadFull(io.NewSectionReader(q.dat, off, int64(q.recLen)), buf); err != nil {
		return nil, fmt.Errorf("dq: reading record: %w", err)
	}
	headRec.ReadCount++
	q.hdr.RecCount--

	if headRec.ReadCount == headRec.WriteCount && headRec.WriteCount == q.hdr.RecsPerBlock {
		if err := q.retireBlock(head, headRec); err != nil {
			return nil, err
		}
	} else {
		if err := q.writeIndexRec(head, headRec); err != nil {
			return nil, err
		}
	}
	return buf, q.saveHeader()
}

func (q *Queue) tailBlock() (blockID, indexRec, error) {
	if q.hdr.AllocTail == nilBlock {
		return nilBlock, indexRec{}, nil
	}
	rec, err := q.readIndexRec(q.hdr.AllocTail)
	return q.hdr.AllocTail, rec, err
}

// allocateBlock attaches a new tail block after current (which may be
// nilBlock for an empty queue), preferring a recycled block from the free
// list and falling back to growing the data file.
func (q *Queue) allocateBlock(current blockID) (blockID, indexRec, error) {
	var id blockID
	if q.hdr.FreeHead != nilBlock {
		id = q.hdr.FreeHead
		freeRec, err := q.readIndexRec(id)
		if err != nil {
			return nilBlock, indexRec{}, err
		}
		q.hdr.FreeHead = freeRec.Next
		if q.hdr.FreeHead == nilBlock {
			q.hdr.FreeTail = nilBlock
		}
	} else {
		q.hdr.BlockCount++
		id = blockID(q.hdr.BlockCount)
	}

	rec := indexRec{}
	if err := q.writeIndexRec(id, rec); err != nil {
		return nilBlock, indexRec{}, err
	}

	if current != nilBlock {
		prev, err := q.readIndexRec(current)
		if err != nil {
			return nilBlock, indexRec{}, err
		}
		prev.Next = id
		if err := q.writeIndexRec(current, prev); err != nil {
			return nilBlock, indexRec{}, err
		}
	} else {
		q.hdr.AllocHead = id
	}
	q.hdr.AllocTail = id
	return id, rec, nil
}

// retireBlock unlinks a fully-drained head block from the alloc list and
// appends it to the free list for recycling.
func (q *Queue) retireBlock(id blockID, rec indexRec) error {
	q.hdr.AllocHead = rec.Next
	if q.hdr.AllocHead == nilBlock {
		q.hdr.AllocTail = nilBlock
	}

	rec.Next = nilBlock
	rec.ReadCount = 0
	rec.WriteCount = 0
	if err := q.writeIndexRec(id, rec); err != nil {
		return err
	}
	if q.hdr.FreeTail == nilBlock {
		q.hdr.FreeHead = id
		q.hdr.FreeTail = id
		return nil
	}
	tailRec, err := q.readIndexRec(q.hdr.FreeTail)
	if err != nil {
		return err
	}
	tailRec.Next = id
	if err := q.writeIndexRec(q.hdr.FreeTail, tailRec); err != nil {
		return err
	}
	q.hdr.FreeTail = id
	return nil
}

func (q *Queue) blockDataOffset(id blockID) int64 {
	return int64(id-1) * int64(q.hdr.BlockSize)
}

func (q *Queue) indexRecOffset(id blockID) int64 {
	return int64(headerLen) + int64(id-1)*int64(indexRecLen)
}

func (q *Queue) readIndexRec(id blockID) (indexRec, error) {
	buf := make([]byte, indexRecLen)
	if _, err := q.idx.ReadAt(buf, q.indexRecOffset(id)); err != nil {
		return indexRec{}, fmt.Errorf("dq: reading index record %d: %w", id, err)
	}
	return indexRec{
		Next:       blockID(binary.LittleEndian.Uint32(buf[0:4])),
		WriteCount: binary.LittleEndian.Uint32(buf[4:8]),
		ReadCount:  binary.LittleEndian.Uint32(buf[8:12]),
	}, nil
}

func (q *Queue) writeIndexRec(id blockID, rec indexRec) error {
	buf := make([]byte, indexRecLen)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(rec.Next))
	binary.LittleEndian.PutUint32(buf[4:8], rec.WriteCount)
	binary.LittleEndian.PutUint32(buf[8:12], rec.ReadCount)
	if _, err := q.idx.WriteAt(buf, q.indexRecOffset(id)); err != nil {
		return fmt.Errorf("dq: writing index record %d: %w", id, err)
	}
	return nil
}

func (q *Queue) loadHeader() error {
	buf := make([]byte, headerLen)
	if _, err := q.idx.ReadAt(buf, 0); err != nil {
		return fmt.Errorf("dq: reading header: %w", err)
	}
	q.hdr = header{
		BlockSize:    binary.LittleEndian.Uint32(buf[0:4]),
		RecLen:       binary.LittleEndian.Uint32(buf[4:8]),
		RecsPerBlock: binary.LittleEndian.Uint32(buf[8:12]),
		BlockCount:   binary.LittleEndian.Uint32(buf[12:16]),
		AllocHead:    blockID(binary.LittleEndian.Uint32(buf[16:20])),
		AllocTail:    blockID(binary.LittleEndian.Uint32(buf[20:24])),
		FreeHead:     blockID(binary.LittleEndian.Uint32(buf[24:28])),
		FreeTail:     blockID(binary.LittleEndian.Uint32(buf[28:32])),
		RecCount:     binary.LittleEndian.Uint64(buf[32:40]),
	}
	return nil
}

func (q *Queue) saveHeader() error {
	buf := make([]byte, headerLen)
	binary.LittleEndian.PutUint32(buf[0:4], q.hdr.BlockSize)
	binary.LittleEndian.PutUint32(buf[4:8], q.hdr.RecLen)
	binary.LittleEndian.PutUint32(buf[8:12], q.hdr.RecsPerBlock)
	binary.LittleEndian.PutUint32(buf[12:16], q.hdr.BlockCount)
	binary.LittleEndian.PutUint32(buf[16:20], uint32(q.hdr.AllocHead))
	binary.LittleEndian.PutUint32(buf[20:24], uint32(q.hdr.AllocTail))
	binary.LittleEndian.PutUint32(buf[24:28], uint32(q.hdr.FreeHead))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(q.hdr.FreeTail))
	binary.LittleEndian.PutUint64(buf[32:40], q.hdr.RecCount)
	if _, err := q.idx.WriteAt(buf, 0); err != nil {
		return fmt.Errorf("dq: writing header: %w", err)
	}
	return nil
}
