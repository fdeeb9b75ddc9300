package xfs

import "fmt"

const (
	inodeBTreeSignatureV4 = "IABT"
	inodeBTreeSignatureV5 = "IAB3"

	inodeBTreeRecordSize = 16
)

// inodeBTreeLeafRecord is one 16-byte leaf record: a chunk of up to 64
// consecutive relative inode numbers starting at FirstInodeNumber.
type inodeBTreeLeafRecord struct {
	FirstInodeNumber  uint32
	FreeCount         uint32
	AllocationBitmap  uint64
}

// blockReader fetches a single block_size-sized block given its absolute
// block number (in block_size units from the start of the volume). It
// abstracts the IOHandle + geometry arithmetic so the B+ tree walkers stay
// free of device-offset math.
type blockReader interface {
	readBlock(blockNumber uint64) ([]byte, error)
}

// findInodeBTreeLeaf descends an AG's inode B+ tree from rootBlock looking
// for the leaf record whose range contains relativeInode. v5 selects the
// header variant (inode trees always use 4-byte pointers).
func findInodeBTreeLeaf(r blockReader, rootBlock uint32, relativeInode uint32, v5 bool, maxDepth int) (*inodeBTreeLeafRecord, error) {
	if maxDepth <= 0 {
		maxDepth = defaultMaxDepth
	}
	blockNum := uint64(rootBlock)
	for depth := 0; ; depth++ {
		if depth >= maxDepth {
			return nil, fmt.Errorf("%w: inode btree descent", ErrRecursionLimit)
		}
		block, err := r.readBlock(blockNum)
		if err != nil {
			return nil, err
		}
		h, err := decodeBTreeHeader(block, v5, pointerWidth32)
		if err != nil {
			return nil, err
		}
		wantSig := inodeBTreeSignatureV4
		if v5 {
			wantSig = inodeBTreeSignatureV5
		}
		if h.Signature != wantSig {
			return nil, fmt.Errorf("%w: inode btree signature %q", ErrUnsupportedFormat, h.Signature)
		}

		records, err := btreeRecords(block, h)
		if err != nil {
			return nil, err
		}

		if h.Level == 0 {
			return findInodeBTreeLeafRecord(records, h.NumberOfRecords, relativeInode)
		}

		next, ok, err := findInodeBTreeChild(records, h.NumberOfRecords, relativeInode)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("%w: inode %d", ErrNotFound, relativeInode)
		}
		blockNum = uint64(next)
	}
}

// findInodeBTreeLeafRecord scans a leaf block's records for the chunk that
// contains relativeInode.
func findInodeBTreeLeafRecord(records []byte, count uint16, relativeInode uint32) (*inodeBTreeLeafRecord, error) {
	for i := uint16(0); i < count; i++ {
		off := int(i) * inodeBTreeRecordSize
		first, err := beUint32(records, off)
		if err != nil {
			return nil, err
		}
		freeCount, err := beUint32(records, off+4)
		if err != nil {
			return nil, err
		}
		bitmap, err := beUint64(records, off+8)
		if err != nil {
			return nil, err
		}
		if relativeInode >= first && relativeInode < first+64 {
			return &inodeBTreeLeafRecord{
				FirstInodeNumber: first,
				FreeCount:        freeCount,
				AllocationBitmap: bitmap,
			}, nil
		}
	}
	return nil, fmt.Errorf("%w: relative inode %d", ErrNotFound, relativeInode)
}

// findInodeBTreeChild finds the largest key <= relativeInode among a branch
// node's N keys and returns the corresponding child pointer. Keys and
// pointers are laid back to back, keys first, each 4 bytes.
func findInodeBTreeChild(records []byte, count uint16, relativeInode uint32) (uint32, bool, error) {
	keysEnd := int(count) * 4
	best := -1
	var bestKey uint32
	for i := uint16(0); i < count; i++ {
		key, err := beUint32(records, int(i)*4)
		if err != nil {
			return 0, false, err
		}
		if key <= relativeInode && (best == -1 || key >= bestKey) {
			best = int(i)
			bestKey = key
		}
	}
	if best == -1 {
		return 0, false, nil
	}
	child, err := beUint32(records, keysEnd+best*4)
	if err != nil {
		return 0, false, err
	}
	return child, true, nil
}
