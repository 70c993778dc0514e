package http1

import "io"

// Header is the start-line portion of a message (spec §3). Exactly one
// of the request or response fields is meaningful, selected by IsRequest.
type Header struct {
	IsRequest bool

	// Version is major*10 + minor, e.g. 11 for HTTP/1.1.
	Version int

	// Request variant.
	Method       Method
	MethodString string // raw token, populated even for recognized methods
	Target       []byte // opaque request-target bytes, passthrough only

	// Response variant.
	StatusCode int // 0..999
	Reason     string
}

// Body is the capability interface a message's payload implements (spec
// §9 "template-heavy body traits become a small capability interface").
// A body need not support every method meaningfully: Size may always
// return (0, false) for a body whose length is not known in advance.
type Body interface {
	// Size reports the body's length in bytes, if known without reading
	// it. ok is false for bodies framed as chunked or close-delimited.
	Size() (n uint64, ok bool)

	// Reader returns a reader over the body's bytes, for serialization.
	Reader() io.Reader
}

// EmptyBody is a Body with no content. Its Size is always (0, true).
type EmptyBody struct{}

func (EmptyBody) Size() (uint64, bool) { return 0, true }
func (EmptyBody) Reader() io.Reader    { return io.LimitReader(nil, 0) }

// BytesBody is a Body owning a copy of its content.
type BytesBody struct{ Data []byte }

func (b BytesBody) Size() (uint64, bool) { return uint64(len(b.Data)), true }
func (b BytesBody) Reader() io.Reader    { return byteSliceReader(b.Data) }

// SpanBody is a Body borrowing a caller-owned byte span. The caller must
// keep the underlying array alive for as long as the Body is in use.
type SpanBody struct{ Data []byte }

func (b SpanBody) Size() (uint64, bool) { return uint64(len(b.Data)), true }
func (b SpanBody) Reader() io.Reader    { return byteSliceReader(b.Data) }

func byteSliceReader(b []byte) io.Reader {
	return &sliceReader{b: b}
}

// sliceReader is a minimal io.Reader over a byte slice, used instead of
// bytes.NewReader to avoid implying ReaderAt/Seeker support the spec's
// Body capability set does not promise.
type sliceReader struct {
	b []byte
}

func (r *sliceReader) Read(p []byte) (int, error) {
	if len(r.b) == 0 {
		return 0, io.EOF
	}
	n := copy(p, r.b)
	r.b = r.b[n:]
	return n, nil
}

// FileBody is a Body backed by an open file, modeling spec §9's "scoped
// resource release" design note: the handle is owned by FileBody and
// must be released with Close, including on error paths that never reach
// a successful Reader drain.
type FileBody struct {
	f    fileHandle
	size uint64
}

// fileHandle is the minimal surface FileBody needs from *os.File,
// expressed as an interface so tests can substitute an in-memory
// implementation without touching the filesystem.
type fileHandle interface {
	io.ReadCloser
}

// NewFileBody wraps an already-open file handle whose content length is
// known (e.g. from a prior Stat call).
func NewFileBody(f fileHandle, size uint64) *FileBody {
	return &FileBody{f: f, size: size}
}

func (b *FileBody) Size() (uint64, bool) { return b.size, true }
func (b *FileBody) Reader() io.Reader    { return b.f }

// Close releases the underlying file handle. Callers on an error path
// that never drains Reader to EOF must call Close explicitly; a
// successful full read does not close the handle implicitly, matching
// the explicit-ownership contract of spec §9.
func (b *FileBody) Close() error { return b.f.Close() }

// Message pairs a Header with a Body and the Fields accumulated for it
// (headers and, once parsing chunked trailers, trailer fields too).
type Message struct {
	Header Header
	Fields Fields
	Body   Body

	// SkipBody marks a message that is complete immediately after
	// headers regardless of framing (e.g. a HEAD response, or an
	// application-level directive not to read a body it knows to
	// discard).
	SkipBody bool
}

// IsChunked reports whether the message's Transfer-Encoding ends in
// "chunked" per the last occurrence rule of spec §4.2.
func (m *Message) IsChunked() bool {
	return lastTransferCoding(&m.Fields) == "chunked"
}

// lastTransferCoding concatenates every Transfer-Encoding field's tokens
// in order (spec §4.2: "If multiple Transfer-Encoding fields appear they
// are concatenated in order") and returns the last token, or "" if there
// is none.
func lastTransferCoding(f *Fields) string {
	var last string
	for _, v := range f.GetAll("Transfer-Encoding") {
		for _, tok := range commaTokens(v) {
			last = tok
		}
	}
	return last
}

// IsKeepAlive reports whether the Connection header's tokens keep the
// connection open for the message's HTTP version (spec §4.3's
// keep-alive-rewrite invariant is defined in terms of this derivation).
func (m *Message) IsKeepAlive() bool {
	tokens := connectionTokens(&m.Fields)
	switch {
	case tokens["close"]:
		return false
	case tokens["keep-alive"]:
		return true
	default:
		return m.Header.Version >= 11
	}
}

func connectionTokens(f *Fields) map[string]bool {
	out := map[string]bool{}
	for _, v := range f.GetAll("Connection") {
		for _, tok := range commaTokens(v) {
			out[toLowerASCII(tok)] = true
		}
	}
	return out
}

func toLowerASCII(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
