package xfs

import "fmt"

const (
	extentBTreeSignatureV4 = "BMAP"
	extentBTreeSignatureV5 = "BMA3"

	packedExtentSize = 16
)

// ExtentFlag distinguishes an allocated extent from an unwritten
// (preallocated but not yet written) one. Both map to real device blocks;
// only the synthetic sparse-gap extents this package fabricates have no
// backing physical blocks at all.
type ExtentFlag uint8

const (
	ExtentAllocated ExtentFlag = iota
	ExtentUnwritten
	ExtentSparse
)

// Extent is one decoded (or synthesized) run of logically contiguous
// blocks.
type Extent struct {
	LogicalBlock  uint64
	PhysicalBlock uint64
	BlockCount    uint64
	Flag          ExtentFlag
}

// decodePackedExtent unpacks one 128-bit big-endian extent record.
func decodePackedExtent(b []byte, off int) (Extent, error) {
	hi, err := beUint64(b, off)
	if err != nil {
		return Extent{}, err
	}
	lo, err := beUint64(b, off+8)
	if err != nil {
		return Extent{}, err
	}

	blockCount := lo & 0x1FFFFF
	x := lo >> 21
	physical := x | (hi & 0x1FF)
	hi >>= 9
	logical := hi & 0x3FFFFFFFFFFFFF
	flagBit := hi >> 54

	flag := ExtentAllocated
	if flagBit != 0 {
		flag = ExtentUnwritten
	}

	return Extent{
		LogicalBlock:  logical,
		PhysicalBlock: physical,
		BlockCount:    blockCount,
		Flag:          flag,
	}, nil
}

// decodeExtentList decodes a dense run of count packed extent records from
// region, failing if the region is too small to hold them.
func decodeExtentList(region []byte, count uint32) ([]Extent, error) {
	needBytes := int(count) * packedExtentSize
	if needBytes < 0 || needBytes > len(region) {
		return nil, fmt.Errorf("%w: extent list needs %d bytes, region has %d", ErrInconsistentExtents, needBytes, len(region))
	}
	extents := make([]Extent, 0, count)
	for i := uint32(0); i < count; i++ {
		e, err := decodePackedExtent(region, int(i)*packedExtentSize)
		if err != nil {
			return nil, err
		}
		extents = append(extents, e)
	}
	if err := validateExtentOrder(extents); err != nil {
		return nil, err
	}
	return extents, nil
}

// validateExtentOrder enforces ascending, non-overlapping logical ranges.
func validateExtentOrder(extents []Extent) error {
	var prevEnd uint64
	for i, e := range extents {
		if i > 0 && e.LogicalBlock < prevEnd {
			return fmt.Errorf("%w: extent %d logical block %d overlaps previous end %d",
				ErrInconsistentExtents, i, e.LogicalBlock, prevEnd)
		}
		prevEnd = e.LogicalBlock + e.BlockCount
	}
	return nil
}

// extentBTreeRootHeader is the 4-byte in-inode root header: level and
// record count. A root at level 0 is invalid; a level-0 fork is an inline
// extent list, not a btree.
type extentBTreeRootHeader struct {
	Level       uint16
	RecordCount uint16
}

func decodeExtentBTreeRootHeader(region []byte) (*extentBTreeRootHeader, error) {
	level, err := beUint16(region, 0)
	if err != nil {
		return nil, err
	}
	count, err := beUint16(region, 2)
	if err != nil {
		return nil, err
	}
	if level == 0 {
		return nil, fmt.Errorf("%w: extent btree root at level 0", ErrCorruptedMetadata)
	}
	return &extentBTreeRootHeader{Level: level, RecordCount: count}, nil
}

// extentBTreeRootChildren decodes the root's branch record region: N
// 8-byte keys (ignored beyond validation) followed by N 8-byte absolute
// child block pointers.
func extentBTreeRootChildren(region []byte, count uint16) ([]uint64, error) {
	keysEnd := 4 + int(count)*8
	childrenEnd := keysEnd + int(count)*8
	if err := need(region, childrenEnd); err != nil {
		return nil, err
	}
	children := make([]uint64, count)
	for i := uint16(0); i < count; i++ {
		c, err := beUint64(region, keysEnd+int(i)*8)
		if err != nil {
			return nil, err
		}
		children[i] = c
	}
	return children, nil
}

// collectExtentBTree walks every child of an in-inode extent B+ tree root,
// exhaustively, and returns the concatenated, order-validated extent list.
// Reads are delegated to r so absolute block numbers can be turned into
// device offsets by the caller's geometry.
func collectExtentBTree(r blockReader, region []byte, v5 bool, maxDepth int) ([]Extent, error) {
	if maxDepth <= 0 {
		maxDepth = defaultMaxDepth
	}
	root, err := decodeExtentBTreeRootHeader(region)
	if err != nil {
		return nil, err
	}
	children, err := extentBTreeRootChildren(region, root.RecordCount)
	if err != nil {
		return nil, err
	}

	var all []Extent
	for _, child := range children {
		extents, err := walkExtentBTreeNode(r, child, v5, 1, maxDepth)
		if err != nil {
			return nil, err
		}
		all = append(all, extents...)
	}
	if err := validateExtentOrder(all); err != nil {
		return nil, err
	}
	return all, nil
}

// walkExtentBTreeNode descends from an absolute block number. Level > 0
// nodes hold the same key/pointer shape as the in-inode root (minus the
// header variance); level 0 nodes are leaves holding packed extent records.
func walkExtentBTreeNode(r blockReader, blockNumber uint64, v5 bool, depth, maxDepth int) ([]Extent, error) {
	if depth >= maxDepth {
		return nil, fmt.Errorf("%w: extent btree descent", ErrRecursionLimit)
	}
	block, err := r.readBlock(blockNumber)
	if err != nil {
		return nil, err
	}
	h, err := decodeBTreeHeader(block, v5, pointerWidth64)
	if err != nil {
		return nil, err
	}
	wantSig := extentBTreeSignatureV4
	if v5 {
		wantSig = extentBTreeSignatureV5
	}
	if h.Signature != wantSig {
		return nil, fmt.Errorf("%w: extent btree signature %q", ErrUnsupportedFormat, h.Signature)
	}
	records, err := btreeRecords(block, h)
	if err != nil {
		return nil, err
	}

	if h.Level == 0 {
		return decodeExtentList(records, uint32(h.NumberOfRecords))
	}

	keysEnd := int(h.NumberOfRecords) * 8
	var all []Extent
	for i := uint16(0); i < h.NumberOfRecords; i++ {
		child, err := beUint64(records, keysEnd+int(i)*8)
		if err != nil {
			return nil, err
		}
		extents, err := walkExtentBTreeNode(r, child, v5, depth+1, maxDepth)
		if err != nil {
			return nil, err
		}
		all = append(all, extents...)
	}
	return all, nil
}

// sparseSynthesize fills the gaps between extents (and a trailing gap to
// cover the whole file) with synthetic ExtentSparse entries, and marks
// unwritten extents as sparse for read purposes. totalBlocks is
// ceil(size/block_size).
func sparseSynthesize(extents []Extent, totalBlocks uint64) []Extent {
	out := make([]Extent, 0, len(extents)+1)
	var next uint64
	for _, e := range extents {
		if e.LogicalBlock > next {
			out = append(out, Extent{
				LogicalBlock: next,
				PhysicalBlock: 0,
				BlockCount:   e.LogicalBlock - next,
				Flag:         ExtentSparse,
			})
		}
		if e.Flag == ExtentUnwritten {
			e.Flag = ExtentSparse
		}
		out = append(out, e)
		next = e.LogicalBlock + e.BlockCount
	}
	if next < totalBlocks {
		out = append(out, Extent{
			LogicalBlock:  next,
			PhysicalBlock: 0,
			BlockCount:    totalBlocks - next,
			Flag:          ExtentSparse,
		})
	}
	return out
}
