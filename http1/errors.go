package http1

import (
	"errors"
	"fmt"
)

// Kind enumerates the error taxonomy of spec §7, restricted to the HTTP/1
// grammar and framing violations this package can raise. need-more is
// handled separately (see ErrNeedMore below): it is a soft status, never
// a latched Kind.
type Kind int

const (
	KindBadMethod Kind = iota + 1
	KindBadTarget
	KindBadVersion
	KindBadStatus
	KindBadReason
	KindBadField
	KindBadValue
	KindBadLineEnding
	KindBadContentLength
	KindBadTransferEncoding
	KindBadChunk
	KindBadChunkExtension
	KindBadObsFold
	KindBodyLimit
	KindHeaderLimit
)

var kindNames = map[Kind]string{
	KindBadMethod:           "bad-method",
	KindBadTarget:           "bad-target",
	KindBadVersion:          "bad-version",
	KindBadStatus:           "bad-status",
	KindBadReason:           "bad-reason",
	KindBadField:            "bad-field",
	KindBadValue:            "bad-value",
	KindBadLineEnding:       "bad-line-ending",
	KindBadContentLength:    "bad-content-length",
	KindBadTransferEncoding: "bad-transfer-encoding",
	KindBadChunk:            "bad-chunk",
	KindBadChunkExtension:   "bad-chunk-extension",
	KindBadObsFold:          "bad-obs-fold",
	KindBodyLimit:           "body-limit",
	KindHeaderLimit:         "header-limit",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// Error is a latched grammar or framing violation. Once a Parser returns
// an Error, it is permanently failed: the caller must discard it.
type Error struct {
	Kind   Kind
	Detail string
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return "http1: " + e.Kind.String()
	}
	return fmt.Sprintf("http1: %s: %s", e.Kind, e.Detail)
}

func newError(k Kind, detail string) error {
	return &Error{Kind: k, Detail: detail}
}

// ErrNeedMore is the soft status returned by Put when the accumulated
// input does not yet contain a complete structural unit. It never
// latches: the parser's position is preserved and the next Put call
// resumes where this one left off.
var ErrNeedMore = errors.New("http1: need more data")

// ErrEndOfStream is returned by PutEOF when the stream ended before the
// message was complete and its framing is not terminated by
// end-of-stream (the stream stopped mid-header, mid identity body, or
// mid chunked body).
var ErrEndOfStream = errors.New("http1: end of stream mid-message")

// ErrNeedEOF names the condition of a message whose body framing
// requires end-of-stream to complete. Neither Put nor PutEOF returns it;
// the Parser reports that condition through NeedEOF.
var ErrNeedEOF = errors.New("http1: message requires end-of-stream to complete")
