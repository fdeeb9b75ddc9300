package xfs

import (
	"fmt"

	"github.com/google/uuid"
)

const inodeSignature = "IN"

// Fork-type discriminants, shared by the data and attribute fork bytes.
const (
	forkTypeDevice  uint8 = 0
	forkTypeLocal   uint8 = 1
	forkTypeExtents uint8 = 2
	forkTypeBTree   uint8 = 3
)

// Common header offsets shared by v1 and v2/v3 (v2/v3 differ only in the
// placement/width of number_of_links and the addition of project_identifier).
const (
	inoOffSignature     = 0
	inoOffFileMode      = 2
	inoOffFormatVersion = 4
	inoOffForkType      = 5
	inoV1OffNumLinks    = 6
	inoOffOwnerID       = 8
	inoOffGroupID       = 12

	inoV1HeaderSize = 100
	inoV2HeaderSize = 100
	inoV3HeaderSize = 176
)

// v1-only tail offsets (number_of_links occupies 6, pushing the timestamp
// block to 30/32 after a 14-byte reserved gap and 2-byte flush counter).
const (
	inoV1OffFlushCounter = 30
	inoV1OffAccessTime   = 32
)

// v2/v3 tail offsets (number_of_links is 4 bytes at 16; project_identifier
// follows; padding then timestamps start at the same relative position).
const (
	inoV2OffNumLinks    = 16
	inoV2OffProjectID   = 20
	inoV2OffFlushCnt    = 30
	inoV2OffAccessTime  = 32
)

// Fields at a fixed distance past access_time for both header widths: three
// timestamp pairs, then size/blocks/extents/fork descriptors.
const (
	tsAccessOffset       = 0
	tsModificationOffset = 8
	tsChangeOffset       = 16
	inoTailAfterTime     = 24 // offset of data_size relative to access_time
)

// Tail-field offsets relative to the start of data_size (common to v1/v2/v3).
const (
	inoRelDataSize          = 0
	inoRelNumberOfBlocks    = 8
	inoRelExtentSize        = 16
	inoRelNumDataExtents    = 20
	inoRelNumAttrExtents    = 24
	inoRelAttrForkOffset    = 26
	inoRelAttrForkType      = 27
	inoRelInodeFlags        = 34
	inoRelGenerationNumber  = 36
)

// v3-only trailer, relative to the end of the v2-shaped 100-byte header.
const (
	inoV3RelChangeCount      = 4
	inoV3RelLogSequence      = 12
	inoV3RelExtendedFlags    = 20
	inoV3RelCowExtentSize    = 28
	inoV3RelCreationTime     = 44
	inoV3RelInodeNumber      = 52
	inoV3RelInodeTypeGUID    = 60
)

// Timestamp is a decoded {seconds, nanoseconds} pair normalized to signed
// nanoseconds since the epoch.
type Timestamp struct {
	Seconds     int32
	Nanoseconds uint32
}

// Nanos normalizes the pair to signed nanoseconds since epoch.
func (t Timestamp) Nanos() int64 {
	ns := int64(t.Seconds) * 1_000_000_000
	if t.Seconds >= 0 {
		return ns + int64(t.Nanoseconds)
	}
	return ns - int64(t.Nanoseconds)
}

// Inode is the decoded in-memory representation of an on-disk inode image.
type Inode struct {
	FormatVersion uint8
	FileMode      uint16
	ForkType      uint8

	NumberOfLinks    uint32
	OwnerID          uint32
	GroupID          uint32
	ProjectID        uint16 // v2/v3 only

	AccessTime       Timestamp
	ModificationTime Timestamp
	ChangeTime       Timestamp
	CreationTime     Timestamp // v3 only; zero value otherwise

	DataSize            uint64
	NumberOfBlocks       uint64
	ExtentSize          uint32
	NumberOfDataExtents  uint32
	NumberOfAttrExtents  uint16
	AttrForkOffsetRaw    uint8
	AttrForkType         uint8
	InodeFlags           uint16
	GenerationNumber     uint32

	ChangeCount        uint64 // v3 only
	LogSequence        uint64 // v3 only
	ExtendedFlags      uint64 // v3 only
	CowExtentSize      uint32 // v3 only
	SelfInodeNumber    uint64 // v3 only
	InodeTypeGUID      uuid.UUID

	headerSize int
	image      []byte
}

// HasAttrFork reports whether the inode carries a non-empty attribute fork.
func (ino *Inode) HasAttrFork() bool {
	return ino.AttrForkOffsetRaw != 0
}

// AttrForkOffset is the byte offset of the attribute fork within the inode
// image, valid only when HasAttrFork is true.
func (ino *Inode) AttrForkOffset() int {
	return 8*int(ino.AttrForkOffsetRaw) + ino.headerSize
}

// DataFork returns the data fork region: from the end of the header to the
// attribute fork offset (if present) or the end of the inode image.
func (ino *Inode) DataFork() []byte {
	end := len(ino.image)
	if ino.HasAttrFork() {
		end = ino.AttrForkOffset()
	}
	return ino.image[ino.headerSize:end]
}

// AttrFork returns the attribute fork region, or nil if absent.
func (ino *Inode) AttrFork() []byte {
	if !ino.HasAttrFork() {
		return nil
	}
	return ino.image[ino.AttrForkOffset():]
}

// decodeInode parses a raw inode image, exactly inode_size bytes.
func decodeInode(image []byte) (*Inode, error) {
	if err := need(image, 6); err != nil {
		return nil, err
	}
	sig, err := slice(image, inoOffSignature, 2)
	if err != nil {
		return nil, err
	}
	if string(sig) != inodeSignature {
		return nil, fmt.Errorf("%w: bad inode signature %q", ErrUnsupportedFormat, sig)
	}

	fileMode, err := beUint16(image, inoOffFileMode)
	if err != nil {
		return nil, err
	}
	formatVersion := image[inoOffFormatVersion]
	forkType := image[inoOffForkType]
	if formatVersion < 1 || formatVersion > 3 {
		return nil, fmt.Errorf("%w: inode format version %d", ErrUnsupportedFormat, formatVersion)
	}

	ino := &Inode{
		FormatVersion: formatVersion,
		FileMode:      fileMode,
		ForkType:      forkType,
		image:         image,
	}

	var accessTimeOff int
	switch formatVersion {
	case 1:
		ino.headerSize = inoV1HeaderSize
		links, err := beUint16(image, inoV1OffNumLinks)
		if err != nil {
			return nil, err
		}
		ino.NumberOfLinks = uint32(links)
		accessTimeOff = inoV1OffAccessTime
	case 2, 3:
		if formatVersion == 3 {
			ino.headerSize = inoV3HeaderSize
		} else {
			ino.headerSize = inoV2HeaderSize
		}
		links, err := beUint32(image, inoV2OffNumLinks)
		if err != nil {
			return nil, err
		}
		ino.NumberOfLinks = links
		projectID, err := beUint16(image, inoV2OffProjectID)
		if err != nil {
			return nil, err
		}
		ino.ProjectID = projectID
		accessTimeOff = inoV2OffAccessTime
	}

	ownerID, err := beUint32(image, inoOffOwnerID)
	if err != nil {
		return nil, err
	}
	groupID, err := beUint32(image, inoOffGroupID)
	if err != nil {
		return nil, err
	}
	ino.OwnerID = ownerID
	ino.GroupID = groupID

	ino.AccessTime, err = decodeTimestamp(image, accessTimeOff+tsAccessOffset)
	if err != nil {
		return nil, err
	}
	ino.ModificationTime, err = decodeTimestamp(image, accessTimeOff+tsModificationOffset)
	if err != nil {
		return nil, err
	}
	ino.ChangeTime, err = decodeTimestamp(image, accessTimeOff+tsChangeOffset)
	if err != nil {
		return nil, err
	}

	tailOff := accessTimeOff + inoTailAfterTime

	dataSize, err := beUint64(image, tailOff+inoRelDataSize)
	if err != nil {
		return nil, err
	}
	numBlocks, err := beUint64(image, tailOff+inoRelNumberOfBlocks)
	if err != nil {
		return nil, err
	}
	extentSize, err := beUint32(image, tailOff+inoRelExtentSize)
	if err != nil {
		return nil, err
	}
	numDataExtents, err := beUint32(image, tailOff+inoRelNumDataExtents)
	if err != nil {
		return nil, err
	}
	numAttrExtents, err := beUint16(image, tailOff+inoRelNumAttrExtents)
	if err != nil {
		return nil, err
	}
	if err := need(image, tailOff+inoRelAttrForkType+1); err != nil {
		return nil, err
	}
	attrForkOffsetRaw := image[tailOff+inoRelAttrForkOffset]
	attrForkType := image[tailOff+inoRelAttrForkType]
	inodeFlags, err := beUint16(image, tailOff+inoRelInodeFlags)
	if err != nil {
		return nil, err
	}
	generationNumber, err := beUint32(image, tailOff+inoRelGenerationNumber)
	if err != nil {
		return nil, err
	}

	ino.DataSize = dataSize
	ino.NumberOfBlocks = numBlocks
	ino.ExtentSize = extentSize
	ino.NumberOfDataExtents = numDataExtents
	ino.NumberOfAttrExtents = numAttrExtents
	ino.AttrForkOffsetRaw = attrForkOffsetRaw
	ino.AttrForkType = attrForkType
	ino.InodeFlags = inodeFlags
	ino.GenerationNumber = generationNumber

	if formatVersion == 3 {
		v3Base := inoV2HeaderSize // the v3 trailer is appended after the v2-shaped 100-byte prefix
		changeCount, err := beUint64(image, v3Base+inoV3RelChangeCount)
		if err != nil {
			return nil, err
		}
		logSeq, err := beUint64(image, v3Base+inoV3RelLogSequence)
		if err != nil {
			return nil, err
		}
		extFlags, err := beUint64(image, v3Base+inoV3RelExtendedFlags)
		if err != nil {
			return nil, err
		}
		cowExtentSize, err := beUint32(image, v3Base+inoV3RelCowExtentSize)
		if err != nil {
			return nil, err
		}
		creationTime, err := decodeTimestamp(image, v3Base+inoV3RelCreationTime)
		if err != nil {
			return nil, err
		}
		selfIno, err := beUint64(image, v3Base+inoV3RelInodeNumber)
		if err != nil {
			return nil, err
		}
		typeGUID, err := beGUID(image, v3Base+inoV3RelInodeTypeGUID)
		if err != nil {
			return nil, err
		}

		ino.ChangeCount = changeCount
		ino.LogSequence = logSeq
		ino.ExtendedFlags = extFlags
		ino.CowExtentSize = cowExtentSize
		ino.CreationTime = creationTime
		ino.SelfInodeNumber = selfIno
		ino.InodeTypeGUID = typeGUID
	}

	return ino, nil
}

// decodeTimestamp decodes a {seconds: i32, nanoseconds: u32} pair.
func decodeTimestamp(b []byte, off int) (Timestamp, error) {
	secs, err := beInt32(b, off)
	if err != nil {
		return Timestamp{}, err
	}
	nanos, err := beUint32(b, off+4)
	if err != nil {
		return Timestamp{}, err
	}
	return Timestamp{Seconds: secs, Nanoseconds: nanos}, nil
}

// DeviceMajorMinor decodes a device-fork identifier into (major, minor).
func DeviceMajorMinor(dev uint32) (major, minor uint32) {
	return dev >> 18, dev & 0x3FFFF
}
