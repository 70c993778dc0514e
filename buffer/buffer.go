// Package buffer implements the dynamic-buffer abstraction consumed by the
// websocket connection's fragment reassembly and permessage-deflate
// staging.
//
// A Buffer separates a "written" region, visible through Data, from a
// "writable" region obtained by reserving capacity with Prepare and
// promoting it with Commit. This lets a parser resolve a structural unit
// (a header block, a chunk-size line) against a single contiguous view
// without copying the bytes it has already consumed.
package buffer

import "errors"

// ErrTooLarge is returned by Prepare when the requested reservation would
// exceed the buffer's capacity or configured maximum size.
var ErrTooLarge = errors.New("buffer: requested size exceeds capacity")

// Buffer is the dynamic-buffer contract of spec §4.1. Every concrete
// buffer in this package implements it; parsers and codecs are written
// against the interface, not against a specific layout.
type Buffer interface {
	// Size returns the number of readable bytes currently held.
	Size() int

	// MaxSize returns the largest Size this buffer will ever grow to.
	// A value of 0 means unbounded.
	MaxSize() int

	// Capacity returns the number of bytes currently allocated for storage,
	// written and writable combined.
	Capacity() int

	// Data returns the current readable view. The returned slice is only
	// valid until the next call to Prepare or Consume.
	Data() []byte

	// MutableData returns a mutable alias of the current readable view.
	MutableData() []byte

	// Prepare reserves a writable area of at least n bytes and returns it.
	// Implementations that guarantee contiguity may shift already-written
	// bytes to make room. Prepare fails with ErrTooLarge when n exceeds the
	// remaining capacity (FlatStatic) or MaxSize (all buffers); Flat and
	// Multi allocate more storage instead of failing on capacity.
	Prepare(n int) ([]byte, error)

	// Commit promotes up to n bytes of the most recent Prepare reservation
	// to the readable region. n is saturated to the size of that
	// reservation.
	Commit(n int)

	// Consume drops up to n bytes from the front of the readable region.
	// n is saturated to Size().
	Consume(n int)
}

// ReadSize returns a sensible read request size for b: the largest amount
// of data that can usefully be read into b in one call, bounded by hint,
// by the remaining room under MaxSize, and by the remaining room under
// Capacity. A result of 0 means the buffer cannot accept more data right
// now (the caller should Consume first).
func ReadSize(b Buffer, hint int) int {
	if hint <= 0 {
		return 0
	}

	n := hint

	if max := b.MaxSize(); max > 0 {
		if room := max - b.Size(); room < n {
			n = room
		}
	}

	if room := b.Capacity() - b.Size(); room < n {
		n = room
	}

	if n < 0 {
		return 0
	}
	return n
}
