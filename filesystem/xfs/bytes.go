package xfs

import (
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"
)

// All multi-byte integers on an XFS volume are big-endian. These helpers
// bounds-check every access against the slice they are given; nothing in
// this package reads past the bytes handed to it.

func need(b []byte, n int) error {
	if len(b) < n {
		return fmt.Errorf("%w: need %d bytes, have %d", ErrCorruptedMetadata, n, len(b))
	}
	return nil
}

func beUint16(b []byte, off int) (uint16, error) {
	if err := need(b, off+2); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b[off : off+2]), nil
}

func beUint32(b []byte, off int) (uint32, error) {
	if err := need(b, off+4); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b[off : off+4]), nil
}

func beUint64(b []byte, off int) (uint64, error) {
	if err := need(b, off+8); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b[off : off+8]), nil
}

func beInt32(b []byte, off int) (int32, error) {
	v, err := beUint32(b, off)
	return int32(v), err
}

// beGUID parses a 16-byte big-endian-encoded GUID, the layout XFS v5 uses
// for metadata UUIDs and B+ tree block-type identifiers.
func beGUID(b []byte, off int) (uuid.UUID, error) {
	if err := need(b, off+16); err != nil {
		return uuid.UUID{}, err
	}
	var u uuid.UUID
	copy(u[:], b[off:off+16])
	return u, nil
}

// slice returns b[off:off+n], bounds-checked against the length of b (the
// caller passes the container, e.g. the inode image or the fork region) so
// that an offset computed from an untrusted on-disk field can never walk
// outside it.
func slice(b []byte, off, n int) ([]byte, error) {
	if off < 0 || n < 0 {
		return nil, fmt.Errorf("%w: negative offset or length", ErrCorruptedMetadata)
	}
	if err := need(b, off+n); err != nil {
		return nil, err
	}
	return b[off : off+n], nil
}
