package xfs

import "errors"

// Sentinel error kinds returned (possibly wrapped with additional context
// via fmt.Errorf("...: %w", ...)) by every decoder in this package. Callers
// should use errors.Is to classify a failure rather than string-matching.
var (
	// ErrUnsupportedFormat indicates a bad signature, an out-of-range
	// format version, or a feature flag outside the supported whitelist.
	ErrUnsupportedFormat = errors.New("xfs: unsupported format")

	// ErrCorruptedMetadata indicates a value decoded from disk is out of
	// bounds for its container or inconsistent with volume geometry.
	ErrCorruptedMetadata = errors.New("xfs: corrupted metadata")

	// ErrInconsistentExtents indicates an extent sequence that is
	// unordered, overlapping, or longer than the owning fork permits.
	ErrInconsistentExtents = errors.New("xfs: inconsistent extents")

	// ErrRecursionLimit indicates a B+ tree descent exceeded the
	// configured depth bound.
	ErrRecursionLimit = errors.New("xfs: recursion limit exceeded")

	// ErrNotFound indicates a path segment, inode, or attribute name is
	// absent. Lookups that use this error return it only internally;
	// public accessors prefer (value, false) or (nil, nil) idioms where
	// "not found" is not exceptional.
	ErrNotFound = errors.New("xfs: not found")

	// ErrCancelled indicates the caller's abort flag was observed at a
	// loop head during a long-running traversal.
	ErrCancelled = errors.New("xfs: operation cancelled")

	// ErrIo indicates the underlying IOHandle returned an error or a
	// short read/write that decoding cannot proceed past.
	ErrIo = errors.New("xfs: io error")
)
