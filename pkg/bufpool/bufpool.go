// Package bufpool provides reusable byte slices for the hot I/O paths:
// digest streaming, chunk merging, and temp-file copies all run through
// 64 KiB buffers, and pooling them keeps a many-chunk transfer from
// churning the allocator.
//
// Two size classes are enough here: the standard 64 KiB copy buffer and a
// 1 MiB class for bulk moves. Requests above the large class fall back to
// plain allocation so oversized buffers never linger in the pool.
package bufpool

import "sync"

// Size classes.
const (
	CopySize  = 64 << 10 // the engine's streaming buffer size
	LargeSize = 1 << 20
)

var (
	copyPool = sync.Pool{
		New: func() any {
			b := make([]byte, CopySize)
			return &b
		},
	}
	largePool = sync.Pool{
		New: func() any {
			b := make([]byte, LargeSize)
			return &b
		},
	}
)

// Get returns a buffer of at least size bytes, sliced to size.
func Get(size int) []byte {
	switch {
	case size <= CopySize:
		return (*copyPool.Get().(*[]byte))[:size]
	case size <= LargeSize:
		return (*largePool.Get().(*[]byte))[:size]
	default:
		return make([]byte, size)
	}
}

// Put returns a buffer obtained from Get to its pool. Oversized buffers
// are dropped.
func Put(buf []byte) {
	c := cap(buf)
	switch {
	case c == CopySize:
		buf = buf[:c]
		copyPool.Put(&buf)
	case c == LargeSize:
		buf = buf[:c]
		largePool.Put(&buf)
	}
}
