package http1

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
)

// Serializer lazily renders a Header, Fields, and Body into wire bytes.
// It is itself an io.Reader: nothing is rendered until the first Read,
// and the body is pulled through rather than buffered, so a Serializer
// composes directly with bufio.Writer or io.Copy.
type Serializer struct {
	isRequest bool
	header    Header
	fields    Fields
	body      Body
	trailer   *Fields
	chunked   bool
	bufSize   int

	r io.Reader
}

// NewSerializer returns a Serializer for requests (isRequest=true) or
// responses.
func NewSerializer(isRequest bool) *Serializer {
	return &Serializer{isRequest: isRequest, bufSize: 4096}
}

// SetHeader sets the start line to render.
func (s *Serializer) SetHeader(h Header) { s.header = h }

// Fields returns the header fields to render, for the caller to
// populate before PreparePayload derives framing.
func (s *Serializer) Fields() *Fields { return &s.fields }

// SetBody sets the payload. A nil body serializes as empty.
func (s *Serializer) SetBody(b Body) { s.body = b }

// SetTrailer sets the trailer fields emitted after a chunked body's
// terminal chunk. Ignored for non-chunked output.
func (s *Serializer) SetTrailer(f *Fields) { s.trailer = f }

// SetChunkBufferSize overrides the read size used to carve the body into
// chunks when chunked encoding is selected. The default is 4096.
func (s *Serializer) SetChunkBufferSize(n int) {
	if n > 0 {
		s.bufSize = n
	}
}

// PreparePayload derives Content-Length or chunked framing from the
// body's declared size and the message's HTTP version (spec §4.3),
// replacing any stale Content-Length/Transfer-Encoding fields the caller
// left set. A body of unknown size on an HTTP/1.0 message cannot be
// framed and is reported as an error: the caller must either know the
// size in advance or upgrade the message to HTTP/1.1.
func (s *Serializer) PreparePayload() error {
	s.fields.Del("Content-Length")
	s.fields.Del("Transfer-Encoding")

	if s.body == nil {
		s.body = EmptyBody{}
	}

	size, known := s.body.Size()
	switch {
	case known:
		s.chunked = false
		s.fields.Set("Content-Length", strconv.FormatUint(size, 10))
	case s.header.Version >= 11:
		s.chunked = true
		s.fields.Set("Transfer-Encoding", "chunked")
	default:
		return newError(KindBadTransferEncoding, "a body of unknown length requires HTTP/1.1 chunked encoding")
	}
	return nil
}

// ContentLength explicitly selects identity framing with the given
// length, overriding whatever PreparePayload or a prior call derived.
func (s *Serializer) ContentLength(n uint64) {
	s.chunked = false
	s.fields.Del("Transfer-Encoding")
	s.fields.Set("Content-Length", strconv.FormatUint(n, 10))
}

// Chunked explicitly selects (or deselects) chunked framing, overriding
// whatever PreparePayload or a prior call derived.
func (s *Serializer) Chunked(v bool) {
	s.chunked = v
	if v {
		s.fields.Del("Content-Length")
		s.fields.Set("Transfer-Encoding", "chunked")
	} else {
		s.fields.Del("Transfer-Encoding")
	}
}

// KeepAlive rewrites the Connection field to reflect keep, idempotently:
// calling it repeatedly with different values always leaves exactly the
// field the latest call asked for, regardless of what earlier calls (or
// the caller) left in place (spec §4.3).
func (s *Serializer) KeepAlive(keep bool) {
	s.fields.Del("Connection")
	switch {
	case !keep:
		s.fields.Set("Connection", "close")
	case s.header.Version < 11:
		// HTTP/1.0 defaults to close; say so explicitly to keep the
		// connection open.
		s.fields.Set("Connection", "keep-alive")
	}
}

// Read renders the message lazily: the start line and fields on the
// first call, then the body (chunk-encoded if Chunked framing was
// selected) pulled through as subsequent calls drain it.
func (s *Serializer) Read(p []byte) (int, error) {
	if s.r == nil {
		s.r = s.build()
	}
	return s.r.Read(p)
}

func (s *Serializer) build() io.Reader {
	var head bytes.Buffer
	s.writeStartLine(&head)
	s.fields.All(func(f Field) bool {
		fmt.Fprintf(&head, "%s: %s\r\n", f.Name, f.Value)
		return true
	})
	head.WriteString("\r\n")

	body := s.body
	if body == nil {
		body = EmptyBody{}
	}

	if s.chunked {
		return io.MultiReader(&head, newChunkReader(body.Reader(), s.trailer, s.bufSize))
	}
	return io.MultiReader(&head, body.Reader())
}

func (s *Serializer) writeStartLine(buf *bytes.Buffer) {
	major, minor := s.header.Version/10, s.header.Version%10

	if s.isRequest {
		method := s.header.MethodString
		if method == "" {
			method = s.header.Method.String()
		}
		target := s.header.Target
		if len(target) == 0 {
			target = []byte("/")
		}
		fmt.Fprintf(buf, "%s %s HTTP/%d.%d\r\n", method, target, major, minor)
		return
	}

	fmt.Fprintf(buf, "HTTP/%d.%d %d %s\r\n", major, minor, s.header.StatusCode, s.header.Reason)
}

// chunkReader wraps a body reader, emitting RFC 7230 §4.1 chunked
// framing: a hex size line, the chunk bytes, a trailing CRLF, repeated
// until src is drained, then the terminal zero chunk, any trailer
// fields, and the final blank line.
type chunkReader struct {
	src     io.Reader
	trailer *Fields
	buf     []byte
	out     bytes.Buffer
	eof     bool
	done    bool
}

func newChunkReader(src io.Reader, trailer *Fields, bufSize int) *chunkReader {
	if bufSize <= 0 {
		bufSize = 4096
	}
	return &chunkReader{src: src, trailer: trailer, buf: make([]byte, bufSize)}
}

func (c *chunkReader) Read(p []byte) (int, error) {
	for c.out.Len() == 0 {
		if c.done {
			return 0, io.EOF
		}
		if c.eof {
			c.writeTrailer()
			c.done = true
			continue
		}

		n, err := c.src.Read(c.buf)
		if n > 0 {
			fmt.Fprintf(&c.out, "%x\r\n", n)
			c.out.Write(c.buf[:n])
			c.out.WriteString("\r\n")
		}
		switch {
		case err == io.EOF:
			c.eof = true
		case err != nil:
			return 0, err
		}
	}
	return c.out.Read(p)
}

func (c *chunkReader) writeTrailer() {
	c.out.WriteString("0\r\n")
	if c.trailer != nil {
		c.trailer.All(func(f Field) bool {
			fmt.Fprintf(&c.out, "%s: %s\r\n", f.Name, f.Value)
			return true
		})
	}
	c.out.WriteString("\r\n")
}
