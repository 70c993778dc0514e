// Package flate implements a streaming, symmetric RFC 1951 DEFLATE codec
// behind a zlib-style process(input, output, flush) contract, the shape
// permessage-deflate (RFC 7692) needs from the WebSocket layer: no
// internal buffering of the whole stream, explicit flush semantics, and
// a sync-flush tail the caller can strip or expect.
package flate

import "fmt"

// Kind enumerates the DEFLATE error taxonomy of spec §7.
type Kind int

const (
	KindNeedBuffers Kind = iota + 1
	KindNeedDict
	KindStreamError
	KindDataError
	KindMemError
	KindBufError
	KindVersionError
	KindEndOfStream
)

var kindNames = map[Kind]string{
	KindNeedBuffers: "need-buffers",
	KindNeedDict:    "need-dict",
	KindStreamError: "stream-error",
	KindDataError:   "data-error",
	KindMemError:    "mem-error",
	KindBufError:    "buf-error",
	KindVersionError: "version-error",
	KindEndOfStream: "end-of-stream",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// Error is a latched codec failure. Once returned, the Reader or Writer
// that produced it is permanently failed and must be discarded.
type Error struct {
	Kind   Kind
	Detail string
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return "flate: " + e.Kind.String()
	}
	return fmt.Sprintf("flate: %s: %s", e.Kind, e.Detail)
}

func newError(k Kind, detail string) error {
	return &Error{Kind: k, Detail: detail}
}

// Status reports the outcome of a single Process call.
type Status int

const (
	StatusOK Status = iota
	StatusStreamEnd
	StatusNeedMoreInput
	StatusNeedMoreOutput
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusStreamEnd:
		return "stream-end"
	case StatusNeedMoreInput:
		return "need-more-input"
	case StatusNeedMoreOutput:
		return "need-more-output"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// FlushMode selects how Writer.Process should terminate the bytes it has
// been given. Partial, Block, and Trees degrade to Sync: this codec
// does not track enough of the RFC 1951 block-boundary bookkeeping to
// distinguish them, so it honors the byte-alignment guarantee common to
// all four and documents the narrowing rather than silently ignoring it.
type FlushMode int

const (
	FlushNone FlushMode = iota
	FlushSync
	FlushPartial
	FlushFull
	FlushFinish
	FlushBlock
	FlushTrees
)

// normalize maps the degrading flush modes onto the one this codec
// actually implements distinctly.
func (f FlushMode) normalize() FlushMode {
	switch f {
	case FlushPartial, FlushBlock, FlushTrees:
		return FlushSync
	default:
		return f
	}
}
