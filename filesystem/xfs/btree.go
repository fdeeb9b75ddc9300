package xfs

import (
	"fmt"

	"github.com/google/uuid"
)

// pointerWidth selects the 4- or 8-byte sibling/child pointer size a B+
// tree uses. Inode trees and free-space trees use 4-byte relative block
// numbers; extent trees use 8-byte absolute block numbers.
type pointerWidth int

const (
	pointerWidth32 pointerWidth = 4
	pointerWidth64 pointerWidth = 8
)

// btreeHeader is the decoded common prefix of every B+ tree block,
// regardless of which of the four on-disk layouts produced it.
type btreeHeader struct {
	Signature        string
	Level            uint16
	NumberOfRecords  uint16
	PreviousBlock    uint64
	NextBlock        uint64
	BlockNumber      uint64
	LogSequence      uint64
	BlockType        uuid.UUID
	OwnerAG          uint64
	HasV5Fields      bool
	HeaderSize       int
}

// btreeHeaderSize returns the on-disk header size for (v5, width), a pure
// function of the two discriminants.
func btreeHeaderSize(v5 bool, width pointerWidth) int {
	switch {
	case !v5 && width == pointerWidth32:
		return 16
	case !v5 && width == pointerWidth64:
		return 24
	case v5 && width == pointerWidth32:
		return 56
	case v5 && width == pointerWidth64:
		return 72
	}
	return 0
}

// decodeBTreeHeader parses the header of a B+ tree block. v5 selects the
// v5 header variant (block number, LSN, block-type GUID, owner AG, CRC,
// and for 8-byte pointers a 4-byte pad); width selects the sibling/child
// pointer width.
func decodeBTreeHeader(b []byte, v5 bool, width pointerWidth) (*btreeHeader, error) {
	size := btreeHeaderSize(v5, width)
	if err := need(b, size); err != nil {
		return nil, err
	}

	sig, err := slice(b, 0, 4)
	if err != nil {
		return nil, err
	}
	level, err := beUint16(b, 4)
	if err != nil {
		return nil, err
	}
	numRecords, err := beUint16(b, 6)
	if err != nil {
		return nil, err
	}

	var prev, next uint64
	off := 8
	if width == pointerWidth32 {
		p, err := beUint32(b, off)
		if err != nil {
			return nil, err
		}
		n, err := beUint32(b, off+4)
		if err != nil {
			return nil, err
		}
		prev, next = uint64(p), uint64(n)
		off += 8
	} else {
		p, err := beUint64(b, off)
		if err != nil {
			return nil, err
		}
		n, err := beUint64(b, off+8)
		if err != nil {
			return nil, err
		}
		prev, next = p, n
		off += 16
	}

	h := &btreeHeader{
		Signature:       string(sig),
		Level:           level,
		NumberOfRecords: numRecords,
		PreviousBlock:   prev,
		NextBlock:       next,
		HeaderSize:      size,
	}

	if !v5 {
		return h, nil
	}
	h.HasV5Fields = true

	blockNumber, err := beUint64(b, off)
	if err != nil {
		return nil, err
	}
	lsn, err := beUint64(b, off+8)
	if err != nil {
		return nil, err
	}
	blockType, err := beGUID(b, off+16)
	if err != nil {
		return nil, err
	}
	off += 32

	var owner uint64
	if width == pointerWidth32 {
		o, err := beUint32(b, off)
		if err != nil {
			return nil, err
		}
		owner = uint64(o)
	} else {
		o, err := beUint64(b, off)
		if err != nil {
			return nil, err
		}
		owner = o
	}

	h.BlockNumber = blockNumber
	h.LogSequence = lsn
	h.BlockType = blockType
	h.OwnerAG = owner

	return h, nil
}

// btreeRecords returns the records region of a block: everything after the
// header, sized block_size - header_size.
func btreeRecords(block []byte, h *btreeHeader) ([]byte, error) {
	if h.HeaderSize > len(block) {
		return nil, fmt.Errorf("%w: header size %d exceeds block size %d", ErrCorruptedMetadata, h.HeaderSize, len(block))
	}
	return block[h.HeaderSize:], nil
}
