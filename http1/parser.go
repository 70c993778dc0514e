// Package http1 implements an incremental push parser and lazy serializer
// for the HTTP/1.x wire format (RFC 7230), including chunked transfer
// coding and trailers.
//
// The parser is a pure state machine: it never performs I/O. A host
// repeatedly presents bytes with Put; the parser reports how many of
// those bytes it incorporated and drives a Handler with structured
// callbacks as it resolves each structural unit (start line, each
// field, body bytes, each chunk header). ErrNeedMore is a soft status —
// it means "not enough bytes yet", not failure — and never latches. Any
// other error permanently fails the parser; it must be discarded.
package http1

import (
	"bytes"
	"strconv"
	"strings"
)

// State is the parser's position in spec §3's state machine.
type State int

const (
	StateNothingYet State = iota
	StateHeader
	StateBodyIdentity
	StateBodyChunkHeader
	StateBodyChunk
	StateBodyToEOF
	StateTrailer
	StateComplete
)

// Handler receives the parser's callbacks. Every method may return an
// error to abort parsing (e.g. a body sink that ran out of room reports
// KindBodyLimit itself, or a wrapping error).
type Handler interface {
	// OnStart is called once, after the start line.
	OnStart(h Header) error

	// OnField is called once per raw header or trailer field, after OWS
	// trimming. trailer is true for fields parsed from a chunked
	// message's trailer section; both header and trailer fields are
	// presented through this single callback (spec §9 Open Question #2).
	OnField(name, value string, trailer bool) error

	// OnHeaderComplete is called once, after the blank line ending the
	// header block.
	OnHeaderComplete() error

	// OnBody is called once, before any body bytes, even when the body
	// is empty and hasBody is true. hasLength is false for chunked or
	// close-delimited bodies.
	OnBody(contentLength uint64, hasLength bool) error

	// OnData is called zero or more times with body bytes: identity body
	// bytes, de-chunked chunk data, or close-delimited bytes.
	OnData(p []byte) error

	// OnChunk is called once per chunk header, including the terminal
	// zero-length chunk, only for chunked bodies.
	OnChunk(length uint64, extensions string) error

	// OnComplete is called once at the end of the message, always.
	OnComplete() error
}

// Options configures a Parser.
type Options struct {
	// Eager, when true, makes Put consume as much as possible per call
	// instead of returning control at each structural boundary.
	Eager bool

	// MaxHeaderSize bounds the header block (start line + fields),
	// excluding the terminating blank line. 0 means unbounded.
	MaxHeaderSize uint64

	// MaxBodySize bounds total body bytes delivered via OnData. 0 means
	// unbounded.
	MaxBodySize uint64

	// SkipBody forces the message to be treated as complete immediately
	// after headers, regardless of framing (spec §3: "a message with
	// skip-body set").
	SkipBody bool

	// ResponseToHEAD marks a response parser as reading the response to a
	// request whose method was HEAD: such responses carry framing headers
	// describing a body that will never actually follow on the wire. The
	// parser has no other way to know the originating request's method.
	ResponseToHEAD bool
}

// Parser is an incremental HTTP/1 message parser. The zero value is not
// usable; construct with NewParser.
type Parser struct {
	isRequest bool
	handler   Handler
	opts      Options

	state State

	gotSome bool
	hasBody bool
	needEOF bool
	chunked bool

	hasContentLength bool
	remain           uint64 // bytes left in current identity body or chunk
	bodyRead         uint64
}

// NewParser returns a Parser for requests (isRequest=true) or responses.
func NewParser(isRequest bool, handler Handler, opts Options) *Parser {
	return &Parser{isRequest: isRequest, handler: handler, opts: opts}
}

// GotSome reports whether the parser has received at least one byte.
func (p *Parser) GotSome() bool { return p.gotSome }

// IsDone reports whether the message is complete.
func (p *Parser) IsDone() bool { return p.state == StateComplete }

// NeedEOF reports whether the message's body framing requires the host
// to signal end-of-stream via PutEOF for the message to complete.
func (p *Parser) NeedEOF() bool { return p.needEOF }

// Put presents data to the parser and returns how many leading bytes
// were incorporated. A return of (n, ErrNeedMore) means the first n
// bytes were consumed (always 0 unless Eager let a prior structural unit
// complete within this call) and the remainder does not yet contain a
// complete structural unit; the caller must call Put again with this
// data still included, followed by more.
func (p *Parser) Put(data []byte) (int, error) {
	total := 0
	for {
		if p.state == StateComplete {
			return total, nil
		}

		n, err := p.putOnce(data[total:])
		total += n
		if err != nil {
			return total, err
		}
		if n == 0 || !p.opts.Eager || total >= len(data) {
			return total, nil
		}
	}
}

// PutEOF signals end-of-stream to a parser whose current message has no
// declared length (NeedEOF true). It finalizes a close-delimited body.
func (p *Parser) PutEOF() error {
	if p.state != StateBodyToEOF {
		if p.state == StateComplete {
			return nil
		}
		return ErrEndOfStream
	}
	p.state = StateComplete
	return p.handler.OnComplete()
}

func (p *Parser) putOnce(data []byte) (int, error) {
	switch p.state {
	case StateNothingYet, StateHeader:
		return p.parseHeaderBlock(data)
	case StateBodyIdentity:
		return p.parseBodyIdentity(data)
	case StateBodyChunkHeader:
		return p.parseChunkHeader(data)
	case StateBodyChunk:
		return p.parseChunkData(data)
	case StateBodyToEOF:
		return p.parseBodyToEOF(data)
	case StateTrailer:
		return p.parseTrailer(data)
	default:
		return 0, nil
	}
}

var crlfcrlf = []byte("\r\n\r\n")

func (p *Parser) parseHeaderBlock(data []byte) (int, error) {
	if len(data) > 0 {
		p.gotSome = true
	}

	idx := bytes.Index(data, crlfcrlf)
	if idx < 0 {
		if p.opts.MaxHeaderSize > 0 && uint64(len(data)) > p.opts.MaxHeaderSize {
			return 0, newError(KindHeaderLimit, "header block exceeds configured maximum")
		}
		return 0, ErrNeedMore
	}
	if p.opts.MaxHeaderSize > 0 && uint64(idx) > p.opts.MaxHeaderSize {
		return 0, newError(KindHeaderLimit, "header block exceeds configured maximum")
	}

	block := data[:idx]
	consumed := idx + len(crlfcrlf)

	if err := validateCRLF(block); err != nil {
		return 0, err
	}

	lines := bytes.Split(block, []byte("\r\n"))
	header, err := p.parseStartLine(string(lines[0]))
	if err != nil {
		return 0, err
	}

	if err := p.handler.OnStart(header); err != nil {
		return 0, err
	}

	var contentLengths []string
	var transferEncodings []string

	for _, raw := range lines[1:] {
		if len(raw) > 0 && (raw[0] == ' ' || raw[0] == '\t') {
			return 0, newError(KindBadObsFold, "obsolete line folding is not supported")
		}

		name, value, err := parseFieldLine(string(raw))
		if err != nil {
			return 0, err
		}

		switch strings.ToLower(name) {
		case "content-length":
			contentLengths = append(contentLengths, value)
		case "transfer-encoding":
			transferEncodings = append(transferEncodings, value)
		}

		if err := p.handler.OnField(name, value, false); err != nil {
			return 0, err
		}
	}

	if err := p.deriveFraming(header, contentLengths, transferEncodings); err != nil {
		return 0, err
	}

	if err := p.handler.OnHeaderComplete(); err != nil {
		return 0, err
	}

	return consumed, p.enterBody(header)
}

// deriveFraming applies spec §4.2's semantic derivations from headers.
// Connection-header semantics (keep-alive) are derived later, at the
// Message level, from the same Fields the caller's Handler accumulates;
// the Parser itself only needs chunked/Content-Length framing.
func (p *Parser) deriveFraming(h Header, contentLengths, transferEncodings []string) error {
	lastCoding := ""
	for _, v := range transferEncodings {
		for _, tok := range commaTokens(v) {
			lastCoding = strings.ToLower(tok)
		}
	}
	p.chunked = lastCoding == "chunked"

	if len(contentLengths) > 1 {
		return newError(KindBadContentLength, "multiple Content-Length fields are not permitted")
	}
	if p.chunked && len(contentLengths) > 0 {
		return newError(KindBadContentLength, "Content-Length must not coexist with chunked Transfer-Encoding")
	}

	if len(transferEncodings) > 0 && !p.chunked {
		// Transfer-Encoding present but chunked is not the final coding:
		// the message's length cannot be determined from framing, so it
		// must run to end-of-stream (spec §4.2).
		p.needEOF = true
	}

	if len(contentLengths) == 1 {
		n, err := strconv.ParseUint(contentLengths[0], 10, 64)
		if err != nil {
			return newError(KindBadContentLength, "Content-Length is not a valid decimal integer")
		}
		p.hasContentLength = true
		p.remain = n
	}

	hasBody := true
	switch {
	case p.opts.SkipBody:
		hasBody = false
	case p.isRequest:
		// A request's body is signaled only by framing headers, never by
		// method (spec §4.2).
		hasBody = p.chunked || p.hasContentLength
	default:
		if p.opts.ResponseToHEAD || h.StatusCode/100 == 1 || h.StatusCode == 204 || h.StatusCode == 304 {
			hasBody = false
		}
	}
	p.hasBody = hasBody

	if hasBody && !p.chunked && !p.hasContentLength && !p.isRequest {
		// Response with no declared length: close on EOF.
		p.needEOF = true
	}

	return nil
}

func (p *Parser) enterBody(h Header) error {
	switch {
	case !p.hasBody:
		p.state = StateComplete
		if err := p.handler.OnBody(0, true); err != nil {
			return err
		}
		return p.handler.OnComplete()

	case p.chunked:
		p.state = StateBodyChunkHeader
		return p.handler.OnBody(0, false)

	case p.hasContentLength:
		if p.remain == 0 {
			p.state = StateComplete
			if err := p.handler.OnBody(0, true); err != nil {
				return err
			}
			return p.handler.OnComplete()
		}
		p.state = StateBodyIdentity
		return p.handler.OnBody(p.remain, true)

	case p.needEOF:
		p.state = StateBodyToEOF
		return p.handler.OnBody(0, false)

	default:
		p.state = StateComplete
		if err := p.handler.OnBody(0, true); err != nil {
			return err
		}
		return p.handler.OnComplete()
	}
}

func (p *Parser) parseBodyIdentity(data []byte) (int, error) {
	n := len(data)
	if uint64(n) > p.remain {
		n = int(p.remain)
	}
	if n == 0 && p.remain > 0 {
		return 0, ErrNeedMore
	}

	if n > 0 {
		if err := p.countBody(uint64(n)); err != nil {
			return 0, err
		}
		if err := p.handler.OnData(data[:n]); err != nil {
			return 0, err
		}
	}
	p.remain -= uint64(n)

	if p.remain == 0 {
		p.state = StateComplete
		return n, p.handler.OnComplete()
	}
	return n, nil
}

func (p *Parser) parseBodyToEOF(data []byte) (int, error) {
	if len(data) == 0 {
		return 0, ErrNeedMore
	}
	if err := p.countBody(uint64(len(data))); err != nil {
		return 0, err
	}
	if err := p.handler.OnData(data); err != nil {
		return 0, err
	}
	return len(data), nil
}

func (p *Parser) countBody(n uint64) error {
	p.bodyRead += n
	if p.opts.MaxBodySize > 0 && p.bodyRead > p.opts.MaxBodySize {
		return newError(KindBodyLimit, "body exceeds configured maximum")
	}
	return nil
}

var crlf = []byte("\r\n")

func (p *Parser) parseChunkHeader(data []byte) (int, error) {
	idx := bytes.Index(data, crlf)
	if idx < 0 {
		if len(data) > 0 {
			p.gotSome = true
		}
		return 0, ErrNeedMore
	}

	line := string(data[:idx])
	consumed := idx + 2

	sizeTok := line
	ext := ""
	if semi := strings.IndexByte(line, ';'); semi >= 0 {
		sizeTok = line[:semi]
		ext = line[semi+1:]
	}

	size, err := strconv.ParseUint(strings.TrimSpace(sizeTok), 16, 64)
	if err != nil {
		return 0, newError(KindBadChunk, "chunk size is not a valid hex integer")
	}

	if err := p.handler.OnChunk(size, ext); err != nil {
		return 0, err
	}

	if size == 0 {
		p.state = StateTrailer
		return consumed, nil
	}

	p.remain = size
	p.state = StateBodyChunk
	return consumed, nil
}

func (p *Parser) parseChunkData(data []byte) (int, error) {
	need := p.remain + 2 // chunk data plus terminating CRLF
	if uint64(len(data)) < need {
		if len(data) > 0 {
			p.gotSome = true
		}
		return 0, ErrNeedMore
	}

	chunkData := data[:p.remain]
	trailer := data[p.remain : p.remain+2]
	if trailer[0] != '\r' || trailer[1] != '\n' {
		return 0, newError(KindBadChunk, "chunk data not terminated by CRLF")
	}

	if err := p.countBody(p.remain); err != nil {
		return 0, err
	}
	if len(chunkData) > 0 {
		if err := p.handler.OnData(chunkData); err != nil {
			return 0, err
		}
	}

	p.state = StateBodyChunkHeader
	return int(need), nil
}

func (p *Parser) parseTrailer(data []byte) (int, error) {
	if len(data) >= 2 && data[0] == '\r' && data[1] == '\n' {
		p.state = StateComplete
		return 2, p.handler.OnComplete()
	}

	idx := bytes.Index(data, crlfcrlf)
	if idx < 0 {
		if len(data) > 0 {
			p.gotSome = true
		}
		return 0, ErrNeedMore
	}

	block := data[:idx]
	consumed := idx + len(crlfcrlf)

	if err := validateCRLF(block); err != nil {
		return 0, err
	}

	for _, raw := range bytes.Split(block, []byte("\r\n")) {
		if len(raw) > 0 && (raw[0] == ' ' || raw[0] == '\t') {
			return 0, newError(KindBadObsFold, "obsolete line folding is not supported")
		}
		name, value, err := parseFieldLine(string(raw))
		if err != nil {
			return 0, err
		}
		if err := p.handler.OnField(name, value, true); err != nil {
			return 0, err
		}
	}

	p.state = StateComplete
	return consumed, p.handler.OnComplete()
}

// parseStartLine parses a request line or status line per spec §4.2.
func (p *Parser) parseStartLine(line string) (Header, error) {
	if p.isRequest {
		return parseRequestLine(line)
	}
	return parseStatusLine(line)
}

func parseRequestLine(line string) (Header, error) {
	parts := strings.SplitN(line, " ", 3)
	if len(parts) != 3 {
		return Header{}, newError(KindBadMethod, "malformed request line")
	}

	method, target, version := parts[0], parts[1], parts[2]
	if method == "" {
		return Header{}, newError(KindBadMethod, "empty method token")
	}
	if target == "" {
		return Header{}, newError(KindBadTarget, "empty request-target")
	}

	v, err := parseHTTPVersion(version)
	if err != nil {
		return Header{}, err
	}

	return Header{
		IsRequest:    true,
		Version:      v,
		Method:       parseMethod(method),
		MethodString: method,
		Target:       []byte(target),
	}, nil
}

func parseStatusLine(line string) (Header, error) {
	parts := strings.SplitN(line, " ", 3)
	if len(parts) < 2 {
		return Header{}, newError(KindBadStatus, "malformed status line")
	}

	v, err := parseHTTPVersion(parts[0])
	if err != nil {
		return Header{}, err
	}

	if len(parts[1]) != 3 {
		return Header{}, newError(KindBadStatus, "status code must be exactly 3 digits")
	}
	code, err := strconv.Atoi(parts[1])
	if err != nil || code < 0 || code > 999 {
		return Header{}, newError(KindBadStatus, "status code must be numeric")
	}

	reason := ""
	if len(parts) == 3 {
		reason = parts[2]
	}

	return Header{
		IsRequest:  false,
		Version:    v,
		StatusCode: code,
		Reason:     reason,
	}, nil
}

func parseHTTPVersion(tok string) (int, error) {
	if len(tok) != 8 || !strings.HasPrefix(tok, "HTTP/") {
		return 0, newError(KindBadVersion, "malformed HTTP version token")
	}
	major, minor := tok[5], tok[7]
	if tok[6] != '.' || major < '0' || major > '9' || minor < '0' || minor > '9' {
		return 0, newError(KindBadVersion, "malformed HTTP version token")
	}
	return int(major-'0')*10 + int(minor-'0'), nil
}

func parseFieldLine(line string) (name, value string, err error) {
	idx := strings.IndexByte(line, ':')
	if idx <= 0 {
		return "", "", newError(KindBadField, "field line missing ':' separator")
	}

	name = line[:idx]
	for _, c := range name {
		if c <= ' ' || c == 0x7f {
			return "", "", newError(KindBadField, "field name contains invalid characters")
		}
	}

	value = strings.Trim(line[idx+1:], " \t")
	return name, value, nil
}

// validateCRLF ensures every line terminator in block is a proper CRLF
// pair: no bare CR or LF. block must not include the terminating blank
// line (already split off by the caller).
func validateCRLF(block []byte) error {
	for i := 0; i < len(block); i++ {
		switch block[i] {
		case '\r':
			if i+1 >= len(block) || block[i+1] != '\n' {
				return newError(KindBadLineEnding, "bare CR in header block")
			}
		case '\n':
			if i == 0 || block[i-1] != '\r' {
				return newError(KindBadLineEnding, "bare LF in header block")
			}
		}
	}
	return nil
}
