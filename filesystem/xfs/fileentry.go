package xfs

import "fmt"

// File mode bits this package interprets (the data-fork device/directory
// distinction); the rest of the POSIX mode word is returned verbatim for
// the caller to interpret.
const (
	ModeFormatMask = 0xF000
	ModeDirectory  = 0x4000
	ModeRegular    = 0x8000
	ModeSymlink    = 0xA000
)

// FileEntry is a resolved, decoded inode together with the inode number
// that addressed it. It exposes the accessors the façade contract lists:
// timestamps, ownership, size, device numbers, children, attributes,
// extents, and byte-range reads.
type FileEntry struct {
	vol         *Volume
	inodeNumber uint64
	inode       *Inode
}

func (e *FileEntry) InodeNumber() uint64 { return e.inodeNumber }
func (e *FileEntry) FileMode() uint16    { return e.inode.FileMode }
func (e *FileEntry) OwnerID() uint32     { return e.inode.OwnerID }
func (e *FileEntry) GroupID() uint32     { return e.inode.GroupID }
func (e *FileEntry) LinkCount() uint32   { return e.inode.NumberOfLinks }
func (e *FileEntry) Size() uint64        { return e.inode.DataSize }

func (e *FileEntry) AccessTime() Timestamp       { return e.inode.AccessTime }
func (e *FileEntry) ModificationTime() Timestamp { return e.inode.ModificationTime }
func (e *FileEntry) ChangeTime() Timestamp       { return e.inode.ChangeTime }
func (e *FileEntry) CreationTime() Timestamp     { return e.inode.CreationTime }

func (e *FileEntry) IsDirectory() bool {
	return e.inode.FileMode&ModeFormatMask == ModeDirectory
}

func (e *FileEntry) IsSymlink() bool {
	return e.inode.FileMode&ModeFormatMask == ModeSymlink
}

// DeviceNumbers returns (major, minor) for a device-fork inode, or
// (0, 0, false) otherwise.
func (e *FileEntry) DeviceNumbers() (major, minor uint32, ok bool) {
	if e.inode.ForkType != forkTypeDevice {
		return 0, 0, false
	}
	region := e.inode.DataFork()
	dev, err := beUint32(region, 0)
	if err != nil {
		return 0, 0, false
	}
	major, minor = DeviceMajorMinor(dev)
	return major, minor, true
}

// dataStream builds the DataStream for this inode's data fork.
func (e *FileEntry) dataStream() (*DataStream, []byte, error) {
	region := e.inode.DataFork()
	sparse := !e.IsDirectory()
	return e.vol.dataStreamFor(e.inode.ForkType, region, e.inode.DataSize, sparse)
}

// ReadAt reads len(p) bytes starting at logical offset off from the data
// fork, following extents and zero-filling sparse runs.
func (e *FileEntry) ReadAt(p []byte, off int64) (int, error) {
	ds, inline, err := e.dataStream()
	if err != nil {
		return 0, err
	}
	if inline != nil {
		o := int(off)
		if o < 0 || o > len(inline) {
			return 0, fmt.Errorf("%w: offset %d out of range", ErrCorruptedMetadata, off)
		}
		n := copy(p, inline[o:])
		return n, nil
	}
	if ds == nil {
		return 0, fmt.Errorf("%w: no readable data fork", ErrUnsupportedFormat)
	}
	return ds.ReadAt(e.vol.io, p, off)
}

// ReadLink returns the raw symlink target bytes, read through the data
// stream like a regular file.
func (e *FileEntry) ReadLink() ([]byte, error) {
	if !e.IsSymlink() {
		return nil, fmt.Errorf("%w: not a symlink", ErrUnsupportedFormat)
	}
	buf := make([]byte, e.inode.DataSize)
	n, err := e.ReadAt(buf, 0)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

// Extents enumerates (device_offset, length, sparse) for each resolved run
// across the whole data fork, in logical order.
func (e *FileEntry) Extents() ([]Run, error) {
	ds, _, err := e.dataStream()
	if err != nil {
		return nil, err
	}
	if ds == nil {
		return nil, nil
	}
	var runs []Run
	var o uint64
	for o < ds.size {
		run, err := ds.resolve(o)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
		o += run.Length
	}
	return runs, nil
}

// directoryDataBlocks reads every directory_block_size-sized block of a
// block-form directory's data fork, in logical order.
func (e *FileEntry) directoryDataBlocks() ([][]byte, error) {
	ds, _, err := e.dataStream()
	if err != nil {
		return nil, err
	}
	if ds == nil {
		return nil, nil
	}
	dirBlockSize := uint64(e.vol.sb.DirBlockSize)
	var blocks [][]byte
	for o := uint64(0); o < ds.size; o += dirBlockSize {
		buf := make([]byte, dirBlockSize)
		n, err := ds.ReadAt(e.vol.io, buf, int64(o))
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, buf[:n])
	}
	return blocks, nil
}

// Children decodes this entry's directory fork and returns its entries,
// "." and ".." included. Non-directories return ErrUnsupportedFormat.
func (e *FileEntry) Children() ([]DirEntry, error) {
	if !e.IsDirectory() {
		return nil, fmt.Errorf("%w: not a directory", ErrUnsupportedFormat)
	}
	if e.vol.opt.cancelled() {
		return nil, ErrCancelled
	}

	switch e.inode.ForkType {
	case forkTypeLocal:
		return decodeShortFormDirectory(e.inode.DataFork(), e.vol.sb, e.inodeNumber)
	case forkTypeExtents, forkTypeBTree:
		blocks, err := e.directoryDataBlocks()
		if err != nil {
			return nil, err
		}
		return decodeBlockFormDirectory(blocks, e.vol.sb)
	default:
		return nil, fmt.Errorf("%w: directory fork type %d", ErrUnsupportedFormat, e.inode.ForkType)
	}
}

// Child resolves a single named entry among this directory's children.
func (e *FileEntry) Child(name string) (*FileEntry, bool, error) {
	entries, err := e.Children()
	if err != nil {
		return nil, false, err
	}
	entry, ok := FindEntry(entries, name)
	if !ok {
		return nil, false, nil
	}
	fe, err := e.vol.FileEntryByInode(entry.InodeNumber)
	if err != nil {
		return nil, false, err
	}
	return fe, true, nil
}

// attributeExtents decodes the attribute fork's extent list or B+ tree,
// without sparse synthesis (the attribute fork is always densely packed).
func (e *FileEntry) attributeExtents() ([]Extent, error) {
	region := e.inode.AttrFork()
	if region == nil {
		return nil, nil
	}
	switch e.inode.AttrForkType {
	case forkTypeExtents:
		count := uint32(len(region) / packedExtentSize)
		return decodeExtentList(region, count)
	case forkTypeBTree:
		return collectExtentBTree(volumeBlockReader{e.vol}, region, e.vol.isV5(), e.vol.opt.maxDepth())
	default:
		return nil, nil
	}
}

// attributeExtentBlocks materializes every block_size-sized block of the
// attribute fork's extent list, in logical order, for the leaf/branch
// walker.
func (e *FileEntry) attributeExtentBlocks() ([][]byte, error) {
	extents, err := e.attributeExtents()
	if err != nil {
		return nil, err
	}
	var totalBlocks uint64
	for _, ex := range extents {
		totalBlocks += ex.BlockCount
	}
	ds := newDataStream(e.vol.sb, extents, totalBlocks*uint64(e.vol.sb.BlockSize))

	blockSize := uint64(e.vol.sb.BlockSize)
	var blocks [][]byte
	for o := uint64(0); o < ds.size; o += blockSize {
		buf := make([]byte, blockSize)
		n, err := ds.ReadAt(e.vol.io, buf, int64(o))
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, buf[:n])
	}
	return blocks, nil
}

// RemoteAttributeValue reads a remote attribute's value bytes from the
// attribute fork's extent list, by logical block number. v5 volumes store
// an additional per-remote-block header (checksum, owner) ahead of the
// value bytes that this function does not parse (see DESIGN.md); the
// bytes returned are the first ValueSize raw bytes starting at value_block.
func (e *FileEntry) RemoteAttributeValue(a Attribute) ([]byte, error) {
	if !a.Remote {
		return a.Value, nil
	}
	extents, err := e.attributeExtents()
	if err != nil {
		return nil, err
	}
	var totalBlocks uint64
	for _, ex := range extents {
		totalBlocks += ex.BlockCount
	}
	ds := newDataStream(e.vol.sb, extents, totalBlocks*uint64(e.vol.sb.BlockSize))

	off := int64(a.ValueBlock) * int64(e.vol.sb.BlockSize)
	buf := make([]byte, a.ValueSize)
	n, err := ds.ReadAt(e.vol.io, buf, off)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

// Attributes decodes the extended attribute fork: inline short-form
// attributes directly, or a leaf/branch block walk starting at block 0 of
// the attribute fork's extent list.
func (e *FileEntry) Attributes() ([]Attribute, error) {
	if e.vol.opt.cancelled() {
		return nil, ErrCancelled
	}
	region := e.inode.AttrFork()
	if region == nil {
		return nil, nil
	}

	if e.inode.AttrForkType == forkTypeLocal {
		return decodeInlineAttributes(region)
	}

	blocks, err := e.attributeExtentBlocks()
	if err != nil {
		return nil, err
	}
	if len(blocks) == 0 {
		return nil, nil
	}
	return walkAttrBlock(blocks, 0, 0, e.vol.opt.maxDepth())
}

// Attribute looks up a single attribute by exact name match.
func (e *FileEntry) Attribute(name []byte) (Attribute, bool, error) {
	attrs, err := e.Attributes()
	if err != nil {
		return Attribute{}, false, err
	}
	for _, a := range attrs {
		if string(a.Name) == string(name) {
			return a, true, nil
		}
	}
	return Attribute{}, false, nil
}
