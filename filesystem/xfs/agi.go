package xfs

import "fmt"

// Byte offsets within the AG inode-information ("AGI") record. The layout
// is shared by v4 and v5; v5 appends a free-inode B+ tree root/level and a
// CRC/metadata-UUID trailer that this package does not read.
const (
	agiOffSignature       = 0
	agiOffFormatVersion   = 4
	agiOffSequenceNumber  = 8
	agiOffNumberOfInodes  = 16
	agiOffBTreeRootBlock  = 20
	agiOffBTreeDepth      = 24
	agiOffUnusedInodes    = 28
	agiOffLastAllocChunk  = 32
	agiOffUnlinkedHash    = 40
	agiUnlinkedHashLen    = 64 * 4
	agiRecordSize         = agiOffUnlinkedHash + agiUnlinkedHashLen
	agiSignature          = "XAGI"
	agiFormatVersionValue = 1
)

// AGInodeInformation is the per-allocation-group inode descriptor: the
// entry point into that AG's inode B+ tree.
type AGInodeInformation struct {
	SequenceNumber     uint32
	NumberOfInodes     uint32
	BTreeRootBlock     uint32
	BTreeDepth         uint32
	NumberOfUnused     uint32
	LastAllocatedChunk uint32
}

// decodeAGInodeInformation parses a sector-sized AGI record.
func decodeAGInodeInformation(b []byte) (*AGInodeInformation, error) {
	if err := need(b, agiRecordSize); err != nil {
		return nil, err
	}

	sig, err := slice(b, agiOffSignature, 4)
	if err != nil {
		return nil, err
	}
	if string(sig) != agiSignature {
		return nil, fmt.Errorf("%w: bad AGI signature %q", ErrUnsupportedFormat, sig)
	}

	formatVersion, err := beUint32(b, agiOffFormatVersion)
	if err != nil {
		return nil, err
	}
	if formatVersion != agiFormatVersionValue {
		return nil, fmt.Errorf("%w: AGI format version %d", ErrUnsupportedFormat, formatVersion)
	}

	seq, err := beUint32(b, agiOffSequenceNumber)
	if err != nil {
		return nil, err
	}
	numInodes, err := beUint32(b, agiOffNumberOfInodes)
	if err != nil {
		return nil, err
	}
	rootBlock, err := beUint32(b, agiOffBTreeRootBlock)
	if err != nil {
		return nil, err
	}
	depth, err := beUint32(b, agiOffBTreeDepth)
	if err != nil {
		return nil, err
	}
	unused, err := beUint32(b, agiOffUnusedInodes)
	if err != nil {
		return nil, err
	}
	lastChunk, err := beUint32(b, agiOffLastAllocChunk)
	if err != nil {
		return nil, err
	}

	return &AGInodeInformation{
		SequenceNumber:     seq,
		NumberOfInodes:     numInodes,
		BTreeRootBlock:     rootBlock,
		BTreeDepth:         depth,
		NumberOfUnused:     unused,
		LastAllocatedChunk: lastChunk,
	}, nil
}
