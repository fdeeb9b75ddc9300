package xfs

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"time"

	"github.com/xfsforensics/xfsro/backend"
	"github.com/xfsforensics/xfsro/filesystem"
)

// FileSystem adapts a mounted XFS volume to the generic read-only half of
// filesystem.FileSystem, the interface disk.Disk.GetFilesystem returns
// alongside fat32/iso9660/squashfs/ext4. Every mutating method returns
// filesystem.ErrReadonlyFilesystem or filesystem.ErrNotSupported; spec.md's
// Non-goals exclude a write path entirely.
type FileSystem struct {
	safe *SafeVolume
}

var _ filesystem.FileSystem = (*FileSystem)(nil)

// Read mounts the XFS volume occupying [start, start+size) of b and wraps
// it for concurrent access. blocksize is accepted for symmetry with the
// teacher's fat32.Read/iso9660.Read signature but unused: XFS carries its
// own block size in the superblock.
func Read(b backend.Storage, size, start, blocksize int64) (*FileSystem, error) {
	_ = blocksize
	sub := backend.Sub(b, start, size)
	vol, err := Open(sub, nil)
	if err != nil {
		return nil, err
	}
	return &FileSystem{safe: NewSafeVolume(vol)}, nil
}

// Type returns filesystem.TypeXFS.
func (fsm *FileSystem) Type() filesystem.Type { return filesystem.TypeXFS }

func (fsm *FileSystem) Mkdir(string) error { return filesystem.ErrReadonlyFilesystem }

//nolint:revive // signature fixed by the filesystem.FileSystem interface
func (fsm *FileSystem) Mknod(pathname string, mode uint32, dev int) error {
	return filesystem.ErrReadonlyFilesystem
}

func (fsm *FileSystem) Link(_, _ string) error { return filesystem.ErrNotSupported }

func (fsm *FileSystem) Symlink(_, _ string) error { return filesystem.ErrReadonlyFilesystem }

//nolint:revive // signature fixed by the filesystem.FileSystem interface
func (fsm *FileSystem) Chmod(name string, mode os.FileMode) error {
	return filesystem.ErrReadonlyFilesystem
}

func (fsm *FileSystem) Chown(_ string, _, _ int) error { return filesystem.ErrReadonlyFilesystem }

func (fsm *FileSystem) Rename(_, _ string) error { return filesystem.ErrReadonlyFilesystem }

func (fsm *FileSystem) Remove(string) error { return filesystem.ErrReadonlyFilesystem }

// Label returns the trimmed volume label.
func (fsm *FileSystem) Label() string { return fsm.safe.Label() }

func (fsm *FileSystem) SetLabel(string) error { return filesystem.ErrReadonlyFilesystem }

// ReadDir returns the entries of the directory at pathname, "." and ".."
// excluded, each stat'd against its own inode.
func (fsm *FileSystem) ReadDir(pathname string) ([]os.FileInfo, error) {
	dir, err := fsm.safe.FileEntryByPath(pathname)
	if err != nil {
		return nil, fmt.Errorf("could not read directory %s: %w", pathname, err)
	}
	if dir == nil {
		return nil, fmt.Errorf("directory %s does not exist", pathname)
	}
	if !dir.IsDirectory() {
		return nil, fmt.Errorf("%s is not a directory", pathname)
	}

	entries, err := dir.Children()
	if err != nil {
		return nil, fmt.Errorf("could not read directory %s: %w", pathname, err)
	}

	fi := make([]os.FileInfo, 0, len(entries))
	for _, e := range entries {
		if e.Name == "." || e.Name == ".." {
			continue
		}
		child, err := fsm.safe.FileEntryByInode(e.InodeNumber)
		if err != nil {
			return nil, fmt.Errorf("could not stat %s/%s: %w", pathname, e.Name, err)
		}
		fi = append(fi, &fileInfo{name: e.Name, fe: child})
	}
	return fi, nil
}

// OpenFile opens pathname for reading. Any write-intent flag is rejected
// with filesystem.ErrReadonlyFilesystem.
func (fsm *FileSystem) OpenFile(pathname string, flag int) (filesystem.File, error) {
	writeMode := flag&os.O_WRONLY != 0 || flag&os.O_RDWR != 0 || flag&os.O_APPEND != 0 ||
		flag&os.O_CREATE != 0 || flag&os.O_TRUNC != 0 || flag&os.O_EXCL != 0
	if writeMode {
		return nil, filesystem.ErrReadonlyFilesystem
	}

	fe, err := fsm.safe.FileEntryByPath(pathname)
	if err != nil {
		return nil, fmt.Errorf("could not open %s: %w", pathname, err)
	}
	if fe == nil {
		return nil, fmt.Errorf("target file %s does not exist", pathname)
	}
	if fe.IsDirectory() {
		return nil, fmt.Errorf("cannot open directory %s as file", pathname)
	}
	return &file{fe: fe, name: path.Base(pathname)}, nil
}

// fileInfo adapts a SafeFileEntry to fs.FileInfo for ReadDir.
type fileInfo struct {
	name string
	fe   *SafeFileEntry
}

func (fi *fileInfo) Name() string { return fi.name }
func (fi *fileInfo) Size() int64  { return int64(fi.fe.Size()) }
func (fi *fileInfo) Mode() os.FileMode {
	perm := os.FileMode(fi.fe.FileMode() & 0o777)
	switch fi.fe.FileMode() & ModeFormatMask {
	case ModeDirectory:
		perm |= os.ModeDir
	case ModeSymlink:
		perm |= os.ModeSymlink
	}
	return perm
}
func (fi *fileInfo) ModTime() time.Time { return time.Unix(0, fi.fe.ModificationTime().Nanos()) }
func (fi *fileInfo) IsDir() bool        { return fi.fe.IsDirectory() }
func (fi *fileInfo) Sys() interface{}   { return fi.fe }

// file adapts a SafeFileEntry to filesystem.File (fs.ReadDirFile + Writer +
// Seeker) for OpenFile, tracking a read cursor the underlying ReadAt-based
// FileEntry does not carry itself.
type file struct {
	fe     *SafeFileEntry
	name   string
	offset int64
}

func (f *file) Stat() (fs.FileInfo, error) {
	return &fileInfo{name: f.name, fe: f.fe}, nil
}

func (f *file) Read(p []byte) (int, error) {
	if uint64(f.offset) >= f.fe.Size() {
		return 0, io.EOF
	}
	n, err := f.fe.ReadAt(p, f.offset)
	f.offset += int64(n)
	return n, err
}

func (f *file) ReadDir(int) ([]fs.DirEntry, error) {
	return nil, fmt.Errorf("%s is a file, not a directory", f.name)
}

func (f *file) Close() error { return nil }

func (f *file) Write([]byte) (int, error) { return 0, filesystem.ErrReadonlyFilesystem }

func (f *file) Seek(offset int64, whence int) (int64, error) {
	var pos int64
	switch whence {
	case io.SeekStart:
		pos = offset
	case io.SeekCurrent:
		pos = f.offset + offset
	case io.SeekEnd:
		pos = int64(f.fe.Size()) + offset
	default:
		return -1, fmt.Errorf("invalid whence %d", whence)
	}
	if pos < 0 {
		return -1, fmt.Errorf("negative seek position")
	}
	f.offset = pos
	return pos, nil
}
