package xfs

import (
	"fmt"
	"strings"
)

// IOHandle is the positioned-read contract every decoder in this package
// is built against. backend.File satisfies it.
type IOHandle interface {
	ReadAt(p []byte, off int64) (int, error)
}

// Volume is the mounted view of an XFS filesystem image: immutable
// geometry plus the per-AG inode-information records collected at open
// time. It implements no locking of its own (see SafeVolume).
type Volume struct {
	io  IOHandle
	sb  *Superblock
	agi []*AGInodeInformation
	opt *OpenOptions
}

// Open reads the primary superblock and walks every AG's mirror
// superblock and inode-information record. Mismatches between mirrors and
// the primary do not fail the mount (tolerant mode); only AG 0's
// superblock determines volume geometry.
func Open(io IOHandle, opt *OpenOptions) (*Volume, error) {
	primary := make([]byte, superblockRecordSize)
	if err := readExact(io, primary, 0); err != nil {
		return nil, err
	}
	sb, err := decodeSuperblock(primary)
	if err != nil {
		return nil, err
	}

	v := &Volume{io: io, sb: sb, opt: opt}
	v.agi = make([]*AGInodeInformation, sb.NumberOfAllocationGroups)

	agByteSize := uint64(sb.AllocationGroupSize) * uint64(sb.BlockSize)
	for i := uint32(0); i < sb.NumberOfAllocationGroups; i++ {
		if opt.cancelled() {
			return nil, ErrCancelled
		}
		opt.trace("mount", fmt.Sprintf("reading AG %d", i))

		agBase := uint64(i) * agByteSize
		if i != 0 {
			mirror := make([]byte, superblockRecordSize)
			if err := readExact(io, mirror, int64(agBase)); err == nil {
				// Decode for tolerant validation only; errors are swallowed
				// and only AG 0's geometry is retained.
				_, _ = decodeSuperblock(mirror)
			}
		}

		agiOffset := agBase + 2*uint64(sb.SectorSize)
		agiBuf := make([]byte, agiRecordSize)
		if err := readExact(io, agiBuf, int64(agiOffset)); err != nil {
			return nil, err
		}
		agi, err := decodeAGInodeInformation(agiBuf)
		if err != nil {
			return nil, err
		}
		v.agi[i] = agi
	}

	return v, nil
}

// readExact reads exactly len(p) bytes at off, failing on any short read.
func readExact(io IOHandle, p []byte, off int64) error {
	n, err := io.ReadAt(p, off)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIo, err)
	}
	if n != len(p) {
		return fmt.Errorf("%w: short read at offset %d: got %d, want %d", ErrIo, off, n, len(p))
	}
	return nil
}

// FormatVersion returns the superblock's format_version (4 or 5).
func (v *Volume) FormatVersion() uint8 { return v.sb.FormatVersion }

// Label returns the trimmed UTF-8 volume label.
func (v *Volume) Label() string { return v.sb.VolumeLabel }

// Superblock exposes the decoded geometry descriptor.
func (v *Volume) Superblock() *Superblock { return v.sb }

// volumeBlockReader adapts a Volume's IOHandle + geometry into the
// blockReader interface the B+ tree walkers use, for an absolute block
// number (not AG-relative).
type volumeBlockReader struct {
	v *Volume
}

func (r volumeBlockReader) readBlock(blockNumber uint64) ([]byte, error) {
	buf := make([]byte, r.v.sb.BlockSize)
	off := int64(blockNumber) * int64(r.v.sb.BlockSize)
	if err := readExact(r.v.io, buf, off); err != nil {
		return nil, err
	}
	return buf, nil
}

// isV5 reports whether this volume's metadata blocks use the v5 header
// variants.
func (v *Volume) isV5() bool { return v.sb.FormatVersion == 5 }

// InodeByNumber resolves an absolute inode number to a decoded Inode, by
// splitting into (ag_index, relative_inode), descending that AG's inode
// B+ tree, and reading the resulting inode image.
func (v *Volume) InodeByNumber(inodeNumber uint64) (*Inode, error) {
	agIndex := inodeNumber >> v.sb.RelativeInodeBits
	relativeInode := uint32(inodeNumber & ((uint64(1) << v.sb.RelativeInodeBits) - 1))

	if agIndex >= uint64(v.sb.NumberOfAllocationGroups) {
		return nil, fmt.Errorf("%w: inode %d maps to AG %d, have %d AGs",
			ErrCorruptedMetadata, inodeNumber, agIndex, v.sb.NumberOfAllocationGroups)
	}
	agi := v.agi[agIndex]

	agByteBlocks := uint64(v.sb.AllocationGroupSize)
	agBaseBlock := agIndex * agByteBlocks

	reader := agRelativeBlockReader{vol: v, agBaseBlock: agBaseBlock}
	leaf, err := findInodeBTreeLeaf(reader, agi.BTreeRootBlock, relativeInode, v.isV5(), v.opt.maxDepth())
	if err != nil {
		return nil, err
	}

	relOffsetInodes := relativeInode - leaf.FirstInodeNumber
	absInodeOffset := (agBaseBlock*uint64(v.sb.BlockSize) +
		uint64(leaf.FirstInodeNumber)*uint64(v.sb.InodeSize)) +
		uint64(relOffsetInodes)*uint64(v.sb.InodeSize)

	image := make([]byte, v.sb.InodeSize)
	if err := readExact(v.io, image, int64(absInodeOffset)); err != nil {
		return nil, err
	}
	return decodeInode(image)
}

// agRelativeBlockReader reads blocks by AG-relative block number, for the
// inode B+ tree (whose pointers are AG-relative).
type agRelativeBlockReader struct {
	vol         *Volume
	agBaseBlock uint64
}

func (r agRelativeBlockReader) readBlock(blockNumber uint64) ([]byte, error) {
	return volumeBlockReader{r.vol}.readBlock(r.agBaseBlock + blockNumber)
}

// dataStreamFor builds the DataStream for one fork of an inode: dispatches
// on fork type, decoding extents (with sparse synthesis for non-directory
// data forks) or exposing the inline buffer directly.
func (v *Volume) dataStreamFor(forkType uint8, region []byte, size uint64, sparse bool) (*DataStream, []byte, error) {
	switch forkType {
	case forkTypeLocal:
		if uint64(len(region)) < size {
			return nil, nil, fmt.Errorf("%w: inline fork shorter than size", ErrCorruptedMetadata)
		}
		return nil, region[:size], nil

	case forkTypeExtents:
		count := uint32(len(region) / packedExtentSize)
		extents, err := decodeExtentList(region, count)
		if err != nil {
			return nil, nil, err
		}
		if sparse {
			totalBlocks := (size + uint64(v.sb.BlockSize) - 1) / uint64(v.sb.BlockSize)
			extents = sparseSynthesize(extents, totalBlocks)
		}
		return newDataStream(v.sb, extents, size), nil, nil

	case forkTypeBTree:
		extents, err := collectExtentBTree(volumeBlockReader{v}, region, v.isV5(), v.opt.maxDepth())
		if err != nil {
			return nil, nil, err
		}
		if sparse {
			totalBlocks := (size + uint64(v.sb.BlockSize) - 1) / uint64(v.sb.BlockSize)
			extents = sparseSynthesize(extents, totalBlocks)
		}
		return newDataStream(v.sb, extents, size), nil, nil

	case forkTypeDevice:
		return nil, nil, nil

	default:
		return nil, nil, fmt.Errorf("%w: fork type %d", ErrUnsupportedFormat, forkType)
	}
}

// splitPath breaks a slash-separated path into segments. An empty segment
// between two separators (e.g. "/a//b") is a lookup failure, matching the
// source's raw-byte resolution.
func splitPath(path string) ([]string, error) {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil, nil
	}
	segments := strings.Split(trimmed, "/")
	for _, s := range segments {
		if s == "" {
			return nil, ErrNotFound
		}
	}
	return segments, nil
}

// Root returns the root directory's FileEntry.
func (v *Volume) Root() (*FileEntry, error) {
	return v.FileEntryByInode(v.sb.RootDirectoryInodeNumber)
}

// FileEntryByInode resolves an absolute inode number to a FileEntry.
func (v *Volume) FileEntryByInode(inodeNumber uint64) (*FileEntry, error) {
	ino, err := v.InodeByNumber(inodeNumber)
	if err != nil {
		return nil, err
	}
	return &FileEntry{vol: v, inodeNumber: inodeNumber, inode: ino}, nil
}

// FileEntryByPath resolves a slash-separated path from the root. An empty
// path or "/" resolves to the root entry. A path containing an empty
// segment (e.g. a doubled slash) returns (nil, nil) — not found, not an
// error.
func (v *Volume) FileEntryByPath(path string) (*FileEntry, error) {
	segments, err := splitPath(path)
	if err != nil {
		return nil, nil
	}

	current, err := v.Root()
	if err != nil {
		return nil, err
	}
	if len(segments) == 0 {
		return current, nil
	}

	for _, seg := range segments {
		if v.opt.cancelled() {
			return nil, ErrCancelled
		}
		entries, err := current.Children()
		if err != nil {
			return nil, err
		}
		entry, ok := FindEntry(entries, seg)
		if !ok {
			return nil, nil
		}
		current, err = v.FileEntryByInode(entry.InodeNumber)
		if err != nil {
			return nil, err
		}
	}
	return current, nil
}
