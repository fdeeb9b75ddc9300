package xfs

import "fmt"

// Byte offsets within the 512-byte primary superblock record. Layout is
// shared by format_version 4 and 5; v5's extra CRC/LSN/metadata-UUID fields
// exist on real media but are not modeled here (see DESIGN.md) since nothing
// in this package verifies them.
const (
	sbOffSignature                = 0
	sbOffBlockSize                = 4
	sbOffNumberOfBlocks           = 8
	sbOffAllocationGroupSize      = 84
	sbOffNumberOfAllocationGroups = 88
	sbOffRootDirInode             = 56
	sbOffVersionAndFeatureFlags   = 100
	sbOffSectorSize               = 102
	sbOffInodeSize                = 104
	sbOffInodesPerBlock           = 106
	sbOffVolumeLabel              = 108
	sbOffVolumeLabelSize          = 12
	sbOffBlockSizeLog2            = 120
	sbOffSectorSizeLog2           = 121
	sbOffInodeSizeLog2            = 122
	sbOffInodesPerBlockLog2       = 123
	sbOffAllocationGroupSizeLog2  = 124
	sbOffDirBlockSizeLog2         = 129
	sbOffSecondaryFeatureFlags    = 200

	superblockRecordSize = 512
)

const sbSignature = "XFSB"

// supportedFeatureFlags mirrors the whitelist the source validates the
// primary version_and_feature_flags bits against; any bit outside this set
// is rejected as ErrUnsupportedFormat. secondary_feature_flags is decoded
// but retained verbatim, unchecked.
const supportedFeatureFlags uint32 = 0x0010 | 0x0020 | 0x0080 |
	0x0400 | 0x0800 | 0x1000 | 0x2000 | 0x4000 | 0x8000

// Superblock is the immutable geometry descriptor decoded from a volume's
// primary (or mirror) superblock record.
type Superblock struct {
	FormatVersion            uint8
	FeatureFlags             uint16
	SecondaryFeatureFlags    uint32
	BlockSize                uint32
	SectorSize               uint16
	InodeSize                uint16
	InodesPerBlock           uint16
	DirBlockSize             uint32
	NumberOfBlocks           uint64
	AllocationGroupSize      uint32
	NumberOfAllocationGroups uint32
	RootDirectoryInodeNumber uint64
	VolumeLabel              string

	// RelativeBlockBits is allocation_group_size_log2: the number of bits
	// of a relative block number within one AG.
	RelativeBlockBits uint8
	// RelativeInodeBits is RelativeBlockBits + inodes_per_block_log2: the
	// number of bits of a relative inode number within one AG.
	RelativeInodeBits uint8
}

// decodeSuperblock parses a 512-byte superblock record. It validates the
// invariants spec'd for the format: signature, format version, the three
// power-of-two fields, the linear/log2 inodes-per-block consistency, AG
// geometry bit widths, and the primary feature-flag whitelist.
func decodeSuperblock(b []byte) (*Superblock, error) {
	if err := need(b, superblockRecordSize); err != nil {
		return nil, err
	}

	sig, err := slice(b, sbOffSignature, 4)
	if err != nil {
		return nil, err
	}
	if string(sig) != sbSignature {
		return nil, fmt.Errorf("%w: bad superblock signature %q", ErrUnsupportedFormat, sig)
	}

	verAndFlags, err := beUint16(b, sbOffVersionAndFeatureFlags)
	if err != nil {
		return nil, err
	}
	formatVersion := uint8(verAndFlags & 0x000f)
	featureFlags := verAndFlags &^ 0x000f
	if formatVersion != 4 && formatVersion != 5 {
		return nil, fmt.Errorf("%w: format version %d", ErrUnsupportedFormat, formatVersion)
	}
	if uint32(featureFlags)&^supportedFeatureFlags != 0 {
		return nil, fmt.Errorf("%w: feature flags %#x", ErrUnsupportedFormat, featureFlags)
	}

	// secondary_feature_flags is retained verbatim for capability checks;
	// unlike feature_flags it is not validated against a whitelist here.
	secondaryFlags, err := beUint32(b, sbOffSecondaryFeatureFlags)
	if err != nil {
		return nil, err
	}

	blockSize, err := beUint32(b, sbOffBlockSize)
	if err != nil {
		return nil, err
	}
	if !isPow2InRange(uint64(blockSize), 512, 65536) {
		return nil, fmt.Errorf("%w: block size %d", ErrCorruptedMetadata, blockSize)
	}

	sectorSize, err := beUint16(b, sbOffSectorSize)
	if err != nil {
		return nil, err
	}
	if !isPow2InRange(uint64(sectorSize), 512, 16384) {
		return nil, fmt.Errorf("%w: sector size %d", ErrCorruptedMetadata, sectorSize)
	}

	inodeSize, err := beUint16(b, sbOffInodeSize)
	if err != nil {
		return nil, err
	}
	if !isPow2InRange(uint64(inodeSize), 256, 2048) {
		return nil, fmt.Errorf("%w: inode size %d", ErrCorruptedMetadata, inodeSize)
	}

	inodesPerBlock, err := beUint16(b, sbOffInodesPerBlock)
	if err != nil {
		return nil, err
	}
	inodesPerBlockLog2 := b[sbOffInodesPerBlockLog2]
	if uint16(1)<<inodesPerBlockLog2 != inodesPerBlock {
		return nil, fmt.Errorf("%w: inodes per block %d does not match log2 %d",
			ErrCorruptedMetadata, inodesPerBlock, inodesPerBlockLog2)
	}

	blockSizeLog2 := b[sbOffBlockSizeLog2]
	if uint32(1)<<blockSizeLog2 != blockSize {
		return nil, fmt.Errorf("%w: block size %d does not match log2 %d",
			ErrCorruptedMetadata, blockSize, blockSizeLog2)
	}

	sectorSizeLog2 := b[sbOffSectorSizeLog2]
	if uint16(1)<<sectorSizeLog2 != sectorSize {
		return nil, fmt.Errorf("%w: sector size %d does not match log2 %d",
			ErrCorruptedMetadata, sectorSize, sectorSizeLog2)
	}

	inodeSizeLog2 := b[sbOffInodeSizeLog2]
	if uint16(1)<<inodeSizeLog2 != inodeSize {
		return nil, fmt.Errorf("%w: inode size %d does not match log2 %d",
			ErrCorruptedMetadata, inodeSize, inodeSizeLog2)
	}

	dirBlockSizeLog2 := b[sbOffDirBlockSizeLog2]
	dirBlockSize := uint64(blockSize)
	if dirBlockSizeLog2 != 0 {
		dirBlockSize = uint64(1) << dirBlockSizeLog2 * uint64(blockSize)
	}
	if dirBlockSize > 0xffffffff {
		return nil, fmt.Errorf("%w: directory block size overflow", ErrCorruptedMetadata)
	}

	agSizeLog2 := b[sbOffAllocationGroupSizeLog2]
	if agSizeLog2 < 1 || agSizeLog2 > 31 {
		return nil, fmt.Errorf("%w: allocation group size log2 %d", ErrCorruptedMetadata, agSizeLog2)
	}
	relativeInodeBits := agSizeLog2 + uint8(inodesPerBlockLog2)
	if inodesPerBlockLog2 == 0 || inodesPerBlockLog2 > 32-agSizeLog2 {
		return nil, fmt.Errorf("%w: inodes per block log2 %d incompatible with AG size log2 %d",
			ErrCorruptedMetadata, inodesPerBlockLog2, agSizeLog2)
	}
	if relativeInodeBits == 0 || relativeInodeBits >= 32 {
		return nil, fmt.Errorf("%w: relative inode bits %d out of range", ErrCorruptedMetadata, relativeInodeBits)
	}

	agSize, err := beUint32(b, sbOffAllocationGroupSize)
	if err != nil {
		return nil, err
	}
	if agSize < 5 {
		return nil, fmt.Errorf("%w: allocation group size %d", ErrCorruptedMetadata, agSize)
	}

	numAGs, err := beUint32(b, sbOffNumberOfAllocationGroups)
	if err != nil {
		return nil, err
	}

	numBlocks, err := beUint64(b, sbOffNumberOfBlocks)
	if err != nil {
		return nil, err
	}

	rootIno, err := beUint64(b, sbOffRootDirInode)
	if err != nil {
		return nil, err
	}

	label, err := slice(b, sbOffVolumeLabel, sbOffVolumeLabelSize)
	if err != nil {
		return nil, err
	}

	return &Superblock{
		FormatVersion:            formatVersion,
		FeatureFlags:             featureFlags,
		SecondaryFeatureFlags:    secondaryFlags,
		BlockSize:                blockSize,
		SectorSize:               sectorSize,
		InodeSize:                inodeSize,
		InodesPerBlock:           inodesPerBlock,
		DirBlockSize:             uint32(dirBlockSize),
		NumberOfBlocks:           numBlocks,
		AllocationGroupSize:      agSize,
		NumberOfAllocationGroups: numAGs,
		RootDirectoryInodeNumber: rootIno,
		VolumeLabel:              cStringTrim(label),
		RelativeBlockBits:        agSizeLog2,
		RelativeInodeBits:        relativeInodeBits,
	}, nil
}

// isPow2InRange reports whether v is a power of two within [lo, hi].
func isPow2InRange(v, lo, hi uint64) bool {
	if v < lo || v > hi {
		return false
	}
	return v&(v-1) == 0
}

// cStringTrim trims a fixed-width NUL-padded field to its logical content.
func cStringTrim(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
