package xfs

import "sync"

// SafeVolume serializes concurrent access to a *Volume. The core (Volume,
// FileEntry) is single-threaded per call; this wrapper is the external
// readers-writer lock for concurrent callers: cache-materializing calls
// (directory enumeration, attribute listing, symlink resolution) take the
// write lock, pure getters take the read lock. Modeled on the
// metadataCache RWMutex pattern used for concurrent repository access
// elsewhere in this codebase's lineage.
type SafeVolume struct {
	mu  sync.RWMutex
	vol *Volume
}

// NewSafeVolume wraps an already-open Volume.
func NewSafeVolume(vol *Volume) *SafeVolume {
	return &SafeVolume{vol: vol}
}

func (s *SafeVolume) FormatVersion() uint8 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.vol.FormatVersion()
}

func (s *SafeVolume) Label() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.vol.Label()
}

func (s *SafeVolume) Superblock() *Superblock {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.vol.Superblock()
}

// Root resolves the root directory entry. It does not itself enumerate
// children, so a read lock suffices.
func (s *SafeVolume) Root() (*SafeFileEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fe, err := s.vol.Root()
	if err != nil {
		return nil, err
	}
	return &SafeFileEntry{safe: s, fe: fe}, nil
}

// FileEntryByInode resolves an inode number. A read lock suffices: it
// descends the inode B+ tree and decodes one inode, materializing nothing
// cache-shaped.
func (s *SafeVolume) FileEntryByInode(inodeNumber uint64) (*SafeFileEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fe, err := s.vol.FileEntryByInode(inodeNumber)
	if err != nil {
		return nil, err
	}
	return &SafeFileEntry{safe: s, fe: fe}, nil
}

// FileEntryByPath resolves a path. Path resolution enumerates directory
// children at every segment, so it takes the write lock.
func (s *SafeVolume) FileEntryByPath(path string) (*SafeFileEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fe, err := s.vol.FileEntryByPath(path)
	if err != nil || fe == nil {
		return nil, err
	}
	return &SafeFileEntry{safe: s, fe: fe}, nil
}

// SafeFileEntry is a FileEntry accessed only through its owning
// SafeVolume's lock.
type SafeFileEntry struct {
	safe *SafeVolume
	fe   *FileEntry
}

func (e *SafeFileEntry) InodeNumber() uint64 { return e.fe.InodeNumber() }
func (e *SafeFileEntry) FileMode() uint16    { return e.fe.FileMode() }
func (e *SafeFileEntry) IsDirectory() bool   { return e.fe.IsDirectory() }
func (e *SafeFileEntry) IsSymlink() bool     { return e.fe.IsSymlink() }
func (e *SafeFileEntry) Size() uint64        { return e.fe.Size() }

// ModificationTime is a pure getter over already-decoded inode metadata; a
// read lock suffices.
func (e *SafeFileEntry) ModificationTime() Timestamp {
	e.safe.mu.RLock()
	defer e.safe.mu.RUnlock()
	return e.fe.ModificationTime()
}

// ReadAt is a pure positioned read against already-decoded fork metadata;
// a read lock suffices.
func (e *SafeFileEntry) ReadAt(p []byte, off int64) (int, error) {
	e.safe.mu.RLock()
	defer e.safe.mu.RUnlock()
	return e.fe.ReadAt(p, off)
}

// Children materializes the directory's entry list; takes the write lock.
func (e *SafeFileEntry) Children() ([]DirEntry, error) {
	e.safe.mu.Lock()
	defer e.safe.mu.Unlock()
	return e.fe.Children()
}

// Attributes materializes the extended-attribute list; takes the write
// lock.
func (e *SafeFileEntry) Attributes() ([]Attribute, error) {
	e.safe.mu.Lock()
	defer e.safe.mu.Unlock()
	return e.fe.Attributes()
}

// ReadLink resolves a symlink target; takes the write lock (it reads
// through the data stream and is grouped with the other cache-materializing
// calls).
func (e *SafeFileEntry) ReadLink() ([]byte, error) {
	e.safe.mu.Lock()
	defer e.safe.mu.Unlock()
	return e.fe.ReadLink()
}

// Extents is a pure getter over already-decoded fork metadata; a read lock
// suffices.
func (e *SafeFileEntry) Extents() ([]Run, error) {
	e.safe.mu.RLock()
	defer e.safe.mu.RUnlock()
	return e.fe.Extents()
}
