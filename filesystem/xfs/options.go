package xfs

import "sync/atomic"

// defaultMaxDepth bounds every B+ tree descent (inode tree, extent tree,
// attribute branch walk). Corrupted media can make sibling/child pointers
// cyclic; this bound turns a would-be infinite descent into an error.
const defaultMaxDepth = 256

// Trace is an optional diagnostic hook invoked at decode sites (AG mount
// walk, B+ tree descent, directory/attribute traversal). It carries no
// state of its own, so a Volume stays safe to use without coupling
// decoders to any particular logging sink.
type Trace func(area, msg string)

// OpenOptions configures a Volume at open time. A nil *OpenOptions is
// equivalent to the zero value, matching how ext4.Create treats a nil
// *Params.
type OpenOptions struct {
	// Trace receives diagnostic messages during mount and traversal, if
	// non-nil.
	Trace Trace

	// Abort, if non-nil, is polled with atomic.LoadInt32 at the loop
	// heads of the AG mount walk, directory enumeration, and attribute
	// tree traversal. A non-zero value aborts the current call with
	// ErrCancelled.
	Abort *int32

	// MaxDepth overrides the B+ tree descent recursion bound. Zero
	// selects defaultMaxDepth.
	MaxDepth int
}

func (o *OpenOptions) maxDepth() int {
	if o == nil || o.MaxDepth <= 0 {
		return defaultMaxDepth
	}
	return o.MaxDepth
}

func (o *OpenOptions) trace(area, msg string) {
	if o == nil || o.Trace == nil {
		return
	}
	o.Trace(area, msg)
}

func (o *OpenOptions) cancelled() bool {
	if o == nil || o.Abort == nil {
		return false
	}
	return atomic.LoadInt32(o.Abort) != 0
}
