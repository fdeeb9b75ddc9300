package diskfs

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"github.com/xfsforensics/xfsro/backend"
	"github.com/xfsforensics/xfsro/backend/file"
	"github.com/xfsforensics/xfsro/filesystem/xfs"
)

// blksszGet is the BLKSSZGET ioctl request number, the same request
// initDisk's getSectorSizes uses to read a block device's logical sector
// size. OpenXFS issues it only for a block device, never for a regular file.
const blksszGet = 0x1268

// OpenXFS opens pathName read-only and mounts it as an XFS volume. pathName
// may be a regular file (a disk image) or a block device; for a block
// device, the kernel's reported logical sector size is passed to opt.Trace
// (when set) before the superblock is decoded. That value is not compared
// with the superblock's sector size, and a failed ioctl is ignored, so the
// device geometry never fails the mount.
func OpenXFS(pathName string, opt *xfs.OpenOptions) (*xfs.Volume, backend.Storage, error) {
	if pathName == "" {
		return nil, nil, fmt.Errorf("must pass a path to a device or image file")
	}

	storage, err := file.OpenFromPath(pathName, true)
	if err != nil {
		return nil, nil, err
	}

	if f, sysErr := storage.Sys(); sysErr == nil {
		if info, statErr := f.Stat(); statErr == nil && info.Mode()&os.ModeDevice != 0 {
			if sectorSize, ioctlErr := unix.IoctlGetInt(int(f.Fd()), blksszGet); ioctlErr == nil && opt != nil && opt.Trace != nil {
				opt.Trace("open", fmt.Sprintf("device reports logical sector size %d", sectorSize))
			}
		}
	}

	vol, err := xfs.Open(storage, opt)
	if err != nil {
		_ = storage.Close()
		return nil, nil, err
	}
	return vol, storage, nil
}
