// Package xfstest builds minimal, byte-exact synthetic XFS images in memory
// for table-driven tests of filesystem/xfs's decoders. It plays the same
// role testhelper.FileImpl plays for the rest of this module: a small
// deterministic fixture exposed through the same interface production
// code consumes, here xfs.IOHandle instead of util.File.
package xfstest

import (
	"encoding/binary"
)

// Image is an in-memory byte buffer big enough to hold one XFS allocation
// group, built up field-by-field by the Put* methods below and read back
// through ReadAt exactly like a real backend.Storage.
type Image struct {
	buf []byte
}

// NewImage allocates a zeroed image of size bytes. Callers size it to hold
// at least one allocation group (sectorSize*some small multiple is enough
// for superblock+AGI+btree+inode table fixtures).
func NewImage(size int) *Image {
	return &Image{buf: make([]byte, size)}
}

// ReadAt satisfies xfs.IOHandle.
func (im *Image) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || int(off) > len(im.buf) {
		return 0, nil
	}
	n := copy(p, im.buf[off:])
	return n, nil
}

// Bytes exposes the backing buffer for direct manipulation by tests that
// need a shape this package doesn't model yet.
func (im *Image) Bytes() []byte { return im.buf }

func (im *Image) put(off int, b []byte) {
	copy(im.buf[off:], b)
}

func be16(v uint16) []byte {
	b := make([]byte, 2)
	binary.BigEndian.PutUint16(b, v)
	return b
}

func be32(v uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return b
}

func be64(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

// Superblock describes the fields a test fixture needs to control; zero
// values are filled with small, self-consistent defaults by
// PutSuperblock.
type Superblock struct {
	BlockSize              uint32
	SectorSize             uint16
	InodeSize              uint16
	AGSize                 uint32 // in blocks
	NumberOfAGs            uint32
	RootInode              uint64
	FormatVersion          uint8 // 4 or 5
	FeatureFlags           uint16
	Label                  string
}

// log2 returns log2(v) for a power of two, or 0.
func log2(v uint32) uint8 {
	var n uint8
	for v > 1 {
		v >>= 1
		n++
	}
	return n
}

// PutSuperblock writes a valid 512-byte primary superblock at offset 0.
func (im *Image) PutSuperblock(sb Superblock) {
	if sb.BlockSize == 0 {
		sb.BlockSize = 4096
	}
	if sb.SectorSize == 0 {
		sb.SectorSize = 512
	}
	if sb.InodeSize == 0 {
		sb.InodeSize = 256
	}
	if sb.AGSize == 0 {
		sb.AGSize = 16
	}
	if sb.NumberOfAGs == 0 {
		sb.NumberOfAGs = 1
	}
	if sb.FormatVersion == 0 {
		sb.FormatVersion = 4
	}
	inodesPerBlock := sb.BlockSize / uint32(sb.InodeSize)

	im.put(0, []byte("XFSB"))
	im.put(4, be32(sb.BlockSize))
	im.put(8, be64(uint64(sb.AGSize)*uint64(sb.NumberOfAGs)))
	im.put(56, be64(sb.RootInode))
	im.put(84, be32(sb.AGSize))
	im.put(88, be32(sb.NumberOfAGs))

	versionAndFlags := uint16(sb.FormatVersion) | (sb.FeatureFlags &^ 0xf)
	im.put(100, be16(versionAndFlags))
	im.put(102, be16(sb.SectorSize))
	im.put(104, be16(sb.InodeSize))
	im.put(106, be16(uint16(inodesPerBlock)))

	label := sb.Label
	if len(label) > 12 {
		label = label[:12]
	}
	labelBuf := make([]byte, 12)
	copy(labelBuf, label)
	im.put(108, labelBuf)

	im.buf[120] = log2(sb.BlockSize)
	im.buf[121] = log2(uint32(sb.SectorSize))
	im.buf[122] = log2(uint32(sb.InodeSize))
	im.buf[123] = log2(inodesPerBlock)
	im.buf[124] = log2(sb.AGSize)
	im.buf[129] = 0 // directory_block_size_log2 == 0: one block per directory block
}

// AGI describes the fields a test fixture needs to control for the
// per-AG inode-information record.
type AGI struct {
	SequenceNumber  uint32
	NumberOfInodes  uint32
	BTreeRootBlock  uint32
	BTreeDepth      uint32
}

// PutAGI writes an AGI record at the given absolute byte offset
// (ordinarily agBase + 2*sectorSize).
func (im *Image) PutAGI(off int, agi AGI) {
	im.put(off+0, []byte("XAGI"))
	im.put(off+4, be32(1)) // format_version
	im.put(off+8, be32(agi.SequenceNumber))
	im.put(off+16, be32(agi.NumberOfInodes))
	im.put(off+20, be32(agi.BTreeRootBlock))
	im.put(off+24, be32(agi.BTreeDepth))
}

// PutInodeBTreeLeaf writes a single-leaf (depth 0) inode B+ tree block at
// the given absolute byte offset, holding exactly one leaf record. v5
// selects the 56-byte v5 leaf header; otherwise the 16-byte v1 header is
// used. This only ever builds a one-block, one-record tree — sufficient
// for decoder unit tests that exercise findInodeBTreeLeaf's leaf-hit path
// without needing a multi-level descent fixture.
func (im *Image) PutInodeBTreeLeaf(off int, v5 bool, firstInode uint32, freeCount uint32, allocBitmap uint64) {
	signature := "IABT"
	if v5 {
		signature = "IAB3"
	}
	im.put(off+0, []byte(signature))
	im.put(off+4, be16(0)) // level 0: leaf
	im.put(off+6, be16(1)) // one record

	headerSize := 16
	if v5 {
		headerSize = 56
		// previous/next block, block number, log sequence, block type
		// GUID, owner AG are left zeroed; nothing in this package
		// validates them against a volume UUID.
	}
	recOff := off + headerSize
	im.put(recOff+0, be32(firstInode))
	im.put(recOff+4, be32(freeCount))
	im.put(recOff+8, be64(allocBitmap))
}

// InodeHeader describes the fields a v3 inode fixture needs; this builder
// only targets v3 (the 176-byte header), since it is a superset of what
// v1/v2 exercise and is what production v5 volumes use.
type InodeHeader struct {
	FileMode          uint16
	OwnerID           uint32
	GroupID           uint32
	NumberOfLinks     uint32
	ForkType          uint8 // data fork type: device/local/extents/btree
	AttrForkType      uint8 // 0 if no attribute fork
	AttrForkOffsetRaw uint8 // in 8-byte units, relative to header end
	DataSize          uint64
	NumberOfBlocks    uint64
	NumberOfExtents   uint32
}

// PutInodeV3 writes a 176-byte v3 inode header at off, followed by
// whatever raw fork bytes the caller supplies (data fork first, then, if
// attrForkOffsetRaw is nonzero, the attribute fork at that offset). Field
// offsets mirror decodeInode's v2/v3 layout exactly: signature(0,2),
// file_mode(2,2), format_version(4,1), fork_type(5,1), number_of_links
// (16,4), access/modification/change timestamps at 32/40/48 (8 bytes
// each), then a tail block starting at 56: data_size(+0,8),
// number_of_blocks(+8,8), number_of_data_extents(+20,4),
// attr_fork_offset(+26,1), attr_fork_type(+27,1); the v3 trailer
// (creation time, etc.) begins at the v2-shaped header end, byte 100.
func (im *Image) PutInodeV3(off int, h InodeHeader, dataFork, attrFork []byte) {
	im.put(off+0, []byte("IN"))
	im.put(off+2, be16(h.FileMode))
	im.buf[off+4] = 3 // format_version
	im.buf[off+5] = h.ForkType
	im.put(off+8, be32(h.OwnerID))
	im.put(off+12, be32(h.GroupID))
	im.put(off+16, be32(h.NumberOfLinks))

	const accessTimeOff = 32
	tailOff := off + accessTimeOff + 24 // past access/modification/change timestamps
	im.put(tailOff+0, be64(h.DataSize))
	im.put(tailOff+8, be64(h.NumberOfBlocks))
	im.put(tailOff+20, be32(h.NumberOfExtents))
	im.buf[tailOff+26] = h.AttrForkOffsetRaw
	im.buf[tailOff+27] = h.AttrForkType

	const headerSize = 176
	copy(im.buf[off+headerSize:], dataFork)
	if h.AttrForkOffsetRaw != 0 {
		attrOff := off + 8*int(h.AttrForkOffsetRaw) + headerSize
		copy(im.buf[attrOff:], attrFork)
	}
}

// PackedExtent returns one 16-byte packed extent record in the on-disk
// 128-bit format: hi holds the flag bit (63), a 54-bit logical block
// number (62..9), and the top 9 bits of the 52-bit physical block number
// (8..0); lo holds the low 43 bits of the physical block number
// (63..21) and a 21-bit block count (20..0). This is the exact inverse
// of decodePackedExtent.
func PackedExtent(logical, physical, blockCount uint64, unwritten bool) []byte {
	var flag uint64
	if unwritten {
		flag = 1
	}
	hi := (flag << 63) | ((logical & 0x3FFFFFFFFFFFFF) << 9) | ((physical >> 43) & 0x1FF)
	lo := ((physical & 0x7FFFFFFFFFF) << 21) | (blockCount & 0x1FFFFF)

	b := make([]byte, 16)
	binary.BigEndian.PutUint64(b[0:8], hi)
	binary.BigEndian.PutUint64(b[8:16], lo)
	return b
}
