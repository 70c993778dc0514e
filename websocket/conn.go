package websocket

import (
	"bufio"
	"crypto/rand"
	"encoding/json/v2"
	"net"
	"sync"

	"github.com/coregx/wire/buffer"
	"github.com/coregx/wire/internal/utf8scan"
)

// closeState tracks progress through the close handshake (RFC 6455 Section 7.1.2).
type closeState int32

const (
	stateOpen closeState = iota
	stateCloseSent
	stateCloseReceived
	stateClosed
)

// defaultMaxMessageSize is applied by newConn when UpgradeOptions does not
// set one explicitly.
const defaultMaxMessageSize = 32 << 20 // 32 MB

// Conn represents a WebSocket connection (RFC 6455).
//
// Conn provides high-level methods for reading and writing messages,
// automatically handling:
//   - Message fragmentation (reassembly of multi-frame messages)
//   - Control frames (Ping, Pong, Close)
//   - UTF-8 validation for text messages
//   - permessage-deflate compression (RFC 7692), when negotiated
//   - Thread-safe writes
//
// Example Usage:
//
//	conn, err := websocket.Upgrade(w, r, nil)
//	if err != nil {
//	    return err
//	}
//	defer conn.Close()
//
//	// Read message
//	msgType, data, err := conn.Read()
//
//	// Write text message
//	conn.WriteText("Hello, WebSocket!")
//
//	// Write JSON
//	conn.WriteJSON(map[string]string{"status": "ok"})
type Conn struct {
	conn   net.Conn      // Underlying TCP connection
	reader *bufio.Reader // Buffered reader for frame parsing
	writer *bufio.Writer // Buffered writer for frame writing

	isServer bool // Server-side connection (affects masking rules)

	// Write synchronization (RFC 6455 Section 5.1)
	// "An endpoint MUST NOT send a data frame while a fragmented message is being transmitted"
	writeMu sync.Mutex

	// Close synchronization
	closeOnce  sync.Once
	closed     bool
	closeMu    sync.RWMutex
	closeState closeState
	peerCode   CloseCode
	peerReason string

	maxMessageSize  int64 // 0 = unbounded
	writeBufferSize int   // 0 = never auto-fragment outbound messages

	pmd *permessageDeflate // nil when permessage-deflate was not negotiated

	// Fragment reassembly state (RFC 6455 Section 5.4)
	fragmentBuf        *buffer.Flat
	fragmentType       byte
	fragmentCompressed bool
	inFragment         bool
	utf8               utf8scan.Scanner
}

// newConn creates a new WebSocket connection (internal constructor).
//
// Called by Upgrade()/Dial() after successful handshake.
// Not exported - users should call Upgrade() or Dial() to create connections.
func newConn(netConn net.Conn, reader *bufio.Reader, writer *bufio.Writer, isServer bool) *Conn {
	return &Conn{
		conn:           netConn,
		reader:         reader,
		writer:         writer,
		isServer:       isServer,
		maxMessageSize: defaultMaxMessageSize,
	}
}

// ensureFragmentBuf lazily creates the reassembly buffer.
//
// Conns built directly in tests (see NewConnForTest) skip newConn and so
// never get one through the constructor.
func (c *Conn) ensureFragmentBuf() {
	if c.fragmentBuf == nil {
		if c.maxMessageSize > 0 {
			c.fragmentBuf = buffer.NewFlatMax(int(c.maxMessageSize))
		} else {
			c.fragmentBuf = buffer.NewFlat()
		}
	}
}

// appendFragment appends a single frame's raw payload to the in-progress
// message buffer, translating buffer.ErrTooLarge into the WebSocket-level
// size error.
func (c *Conn) appendFragment(payload []byte) error {
	c.ensureFragmentBuf()
	dst, err := c.fragmentBuf.Prepare(len(payload))
	if err != nil {
		return ErrMessageTooLarge
	}
	copy(dst, payload)
	c.fragmentBuf.Commit(len(payload))
	return nil
}

// finishMessagePayload decompresses (if rsv1 marks the message as
// permessage-deflate compressed) and UTF-8 validates a complete message
// payload, returning the bytes ready to hand back to the caller.
func (c *Conn) finishMessagePayload(opcode byte, compressed bool, raw []byte) ([]byte, error) {
	payload := raw
	if compressed {
		if c.pmd == nil {
			return nil, ErrExtensionNotNegotiated
		}
		decoded, err := c.pmd.decompressChunk(raw, true)
		if err != nil {
			return nil, err
		}
		payload = decoded
	}

	if opcode == opcodeText {
		c.utf8.Reset()
		if !c.utf8.Write(payload) || !c.utf8.Complete() {
			_ = c.CloseWithCode(CloseInvalidFramePayloadData, "invalid UTF-8")
			return nil, ErrInvalidUTF8
		}
	}

	return payload, nil
}

// Read reads the next complete message from the connection.
//
// Automatically handles:
//   - Fragmentation: Reassembles multi-frame messages (FIN=0 -> FIN=1)
//   - Control frames: Processes Ping/Pong/Close during message reading
//   - UTF-8 validation: For text messages (RFC 6455 Section 8.1)
//   - permessage-deflate decompression, when negotiated
//
// Returns:
//   - MessageType: TextMessage or BinaryMessage
//   - []byte: Complete message payload
//   - error: ErrClosed if connection closed, protocol errors, network errors
//
// Thread-Safety: Read takes no lock; concurrent Read calls share the
// underlying reader and the fragment reassembly state, and are not safe.
//
// RFC 6455 Section 5.4: "A fragmented message consists of a single frame with
// the FIN bit clear and an opcode other than 0, followed by zero or more frames
// with the FIN bit clear and the opcode set to 0, and terminated by a single
// frame with the FIN bit set and an opcode of 0."
//
//nolint:gocyclo,cyclop,gocognit // Complex fragmentation+control frame handling per RFC 6455
func (c *Conn) Read() (MessageType, []byte, error) {
	c.closeMu.RLock()
	if c.closed {
		c.closeMu.RUnlock()
		return 0, nil, ErrClosed
	}
	c.closeMu.RUnlock()

	for {
		// RSV1 is allowed through at the frame level; whether it is
		// actually meaningful here depends on negotiated extensions,
		// checked below.
		f, err := readFrameOpts(c.reader, true)
		if err != nil {
			return 0, nil, err
		}

		// Handle control frames (RFC 6455 Section 5.5)
		// Control frames MAY be injected in the middle of a fragmented message
		switch f.opcode {
		case opcodePing:
			if err := c.Pong(f.payload); err != nil {
				return 0, nil, err
			}
			continue

		case opcodePong:
			continue

		case opcodeClose:
			c.handleCloseFrame(f.payload)
			return 0, nil, ErrClosed
		}

		if f.rsv1 && c.pmd == nil {
			return 0, nil, ErrExtensionNotNegotiated
		}

		// Data frames: Text, Binary, Continuation
		switch f.opcode {
		case opcodeText, opcodeBinary:
			if c.inFragment {
				// RFC 6455 Section 5.4: only continuation frames may
				// follow an open fragmented message.
				_ = c.CloseWithCode(CloseProtocolError, "data frame while message open")
				return 0, nil, ErrUnexpectedDataFrame
			}

			if f.fin {
				if c.maxMessageSize > 0 && int64(len(f.payload)) > c.maxMessageSize {
					return 0, nil, ErrMessageTooLarge
				}
				payload, err := c.finishMessagePayload(f.opcode, f.rsv1, f.payload)
				if err != nil {
					return 0, nil, err
				}
				return MessageType(f.opcode), payload, nil
			}

			c.inFragment = true
			c.fragmentType = f.opcode
			c.fragmentCompressed = f.rsv1
			c.ensureFragmentBuf()
			c.fragmentBuf.Consume(c.fragmentBuf.Size())
			if err := c.appendFragment(f.payload); err != nil {
				return 0, nil, err
			}

		case opcodeContinuation:
			if !c.inFragment {
				_ = c.CloseWithCode(CloseProtocolError, "unexpected continuation")
				return 0, nil, ErrUnexpectedContinuation
			}

			if err := c.appendFragment(f.payload); err != nil {
				return 0, nil, err
			}

			if f.fin {
				c.inFragment = false
				raw := append([]byte(nil), c.fragmentBuf.Data()...)
				c.fragmentBuf.Consume(c.fragmentBuf.Size())

				payload, err := c.finishMessagePayload(c.fragmentType, c.fragmentCompressed, raw)
				if err != nil {
					return 0, nil, err
				}
				return MessageType(c.fragmentType), payload, nil
			}
		}

		// Loop continues for:
		// - Control frames (already handled and continued)
		// - Non-final fragments (FIN=0, continue accumulating)
	}
}

// ReadText reads the next text message.
//
// Convenience wrapper around Read() that:
//   - Ensures message is TextMessage (returns error otherwise)
//   - Returns string directly
//
// Returns ErrInvalidMessageType if message is not text.
func (c *Conn) ReadText() (string, error) {
	msgType, data, err := c.Read()
	if err != nil {
		return "", err
	}

	if msgType != TextMessage {
		return "", ErrInvalidMessageType
	}

	return string(data), nil
}

// ReadJSON reads the next message as JSON.
//
// Convenience wrapper around Read() that:
//   - Ensures message is TextMessage
//   - Unmarshals JSON into v
//
// Returns ErrInvalidMessageType if message is not text.
// Returns the json.Unmarshal error if JSON is malformed.
func (c *Conn) ReadJSON(v any) error {
	msgType, data, err := c.Read()
	if err != nil {
		return err
	}

	if msgType != TextMessage {
		return ErrInvalidMessageType
	}

	return json.Unmarshal(data, v)
}

// Write writes a message to the connection.
//
// Automatically handles:
//   - Masking: Server frames NOT masked, client frames masked with a
//     fresh crypto/rand key per frame (RFC 6455 Section 5.1, 5.3)
//   - permessage-deflate compression, when negotiated
//   - Auto-fragmentation of messages larger than WriteBufferSize
//   - Flushing: Ensures data sent immediately
//
// Thread-Safety: Safe for concurrent writes (serialized by mutex).
func (c *Conn) Write(messageType MessageType, data []byte) error {
	c.closeMu.RLock()
	if c.closed {
		c.closeMu.RUnlock()
		return ErrClosed
	}
	c.closeMu.RUnlock()

	var opcode byte
	switch messageType {
	case TextMessage:
		opcode = opcodeText
		if !utf8scan.Valid(data) {
			return ErrInvalidUTF8
		}

	case BinaryMessage:
		opcode = opcodeBinary

	default:
		return ErrInvalidMessageType
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	payload := data
	rsv1 := false
	if c.pmd != nil {
		compressed, err := c.pmd.compressMessage(data)
		if err != nil {
			return err
		}
		payload = compressed
		rsv1 = true
	}

	return c.writeMessageFrames(opcode, rsv1, payload)
}

// writeMessageFrames splits payload into one or more frames, honoring
// writeBufferSize (RFC 6455 Section 5.4 allows fragmenting any data
// message). rsv1 is set only on the first frame, per RFC 7692 Section 8.1.
func (c *Conn) writeMessageFrames(opcode byte, rsv1 bool, payload []byte) error {
	chunkSize := c.writeBufferSize
	if chunkSize <= 0 || chunkSize >= len(payload) {
		f := &frame{
			fin:     true,
			rsv1:    rsv1,
			opcode:  opcode,
			masked:  !c.isServer,
			payload: payload,
		}
		if f.masked {
			f.mask = newMaskKey()
		}
		return writeFrame(c.writer, f)
	}

	for offset := 0; offset < len(payload); offset += chunkSize {
		end := offset + chunkSize
		if end > len(payload) {
			end = len(payload)
		}

		frameOpcode := opcode
		if offset > 0 {
			frameOpcode = opcodeContinuation
		}

		f := &frame{
			fin:     end == len(payload),
			rsv1:    rsv1 && offset == 0,
			opcode:  frameOpcode,
			masked:  !c.isServer,
			payload: payload[offset:end],
		}
		if f.masked {
			f.mask = newMaskKey()
		}
		if err := writeFrame(c.writer, f); err != nil {
			return err
		}

		if end == len(payload) {
			break
		}
	}

	return nil
}

// newMaskKey generates a fresh client-side masking key (RFC 6455 Section 5.3).
func newMaskKey() [4]byte {
	var m [4]byte
	_, _ = rand.Read(m[:])
	return m
}

// WriteText writes a text message.
//
// Convenience wrapper around Write() for text messages.
//
// Returns ErrInvalidUTF8 if text contains invalid UTF-8.
func (c *Conn) WriteText(text string) error {
	return c.Write(TextMessage, []byte(text))
}

// WriteJSON writes a value as JSON text message.
//
// Convenience wrapper that:
//   - Marshals v to JSON
//   - Sends as TextMessage
//
// Returns the json.Marshal error if marshaling fails.
func (c *Conn) WriteJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	return c.Write(TextMessage, data)
}

// Ping sends a ping frame (for keep-alive).
//
// Application data is optional (max 125 bytes per RFC 6455 Section 5.5).
// Peer should respond with Pong containing same application data.
//
// Use case: Heartbeat to detect dead connections.
//
//	ticker := time.NewTicker(30 * time.Second)
//	go func() {
//	    for range ticker.C {
//	        conn.Ping(nil)
//	    }
//	}()
func (c *Conn) Ping(data []byte) error {
	c.closeMu.RLock()
	if c.closed {
		c.closeMu.RUnlock()
		return ErrClosed
	}
	c.closeMu.RUnlock()

	// RFC 6455 Section 5.5: Control frame payload max 125 bytes
	if len(data) > 125 {
		return ErrControlTooLarge
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	f := &frame{
		fin:     true, // Control frames must have FIN=1
		opcode:  opcodePing,
		masked:  !c.isServer,
		payload: data,
	}

	if f.masked {
		f.mask = newMaskKey()
	}

	return writeFrame(c.writer, f)
}

// Pong sends a pong frame (response to ping or unsolicited).
//
// Application data should echo ping data (RFC 6455 Section 5.5.3).
// Max 125 bytes.
//
// Note: Read() automatically responds to Ping frames, so manual Pong usually not needed.
func (c *Conn) Pong(data []byte) error {
	c.closeMu.RLock()
	if c.closed {
		c.closeMu.RUnlock()
		return ErrClosed
	}
	c.closeMu.RUnlock()

	if len(data) > 125 {
		return ErrControlTooLarge
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	f := &frame{
		fin:     true,
		opcode:  opcodePong,
		masked:  !c.isServer,
		payload: data,
	}

	if f.masked {
		f.mask = newMaskKey()
	}

	return writeFrame(c.writer, f)
}

// Close sends close frame and closes connection.
//
// Uses CloseNormalClosure (1000) status code.
// Idempotent - safe to call multiple times.
//
// RFC 6455 Section 7.1.1: "The Close frame MAY contain a body that indicates
// a reason for closing.".
func (c *Conn) Close() error {
	return c.CloseWithCode(CloseNormalClosure, "")
}

// CloseWithCode sends close frame with specific status code and reason.
//
// Status codes defined in RFC 6455 Section 7.4.
// Reason is optional UTF-8 text (max ~123 bytes to fit in 125 byte frame).
//
// Close handshake (RFC 6455 Section 7.1.2):
//  1. Send Close frame
//  2. Peer responds with Close frame
//  3. Close TCP connection
//
// Idempotent - safe to call multiple times.
func (c *Conn) CloseWithCode(code CloseCode, reason string) error {
	var err error

	c.closeOnce.Do(func() {
		c.closeMu.Lock()
		c.closed = true
		if c.closeState == stateOpen {
			c.closeState = stateCloseSent
		} else if c.closeState == stateCloseReceived {
			c.closeState = stateClosed
		}
		c.closeMu.Unlock()

		if reason != "" && !utf8scan.ValidString(reason) {
			err = ErrInvalidUTF8
			return
		}

		payload := make([]byte, 2+len(reason))
		payload[0] = byte(code >> 8)
		payload[1] = byte(code & 0xFF)
		copy(payload[2:], reason)

		c.writeMu.Lock()
		f := &frame{
			fin:     true,
			opcode:  opcodeClose,
			masked:  !c.isServer,
			payload: payload,
		}

		if f.masked {
			f.mask = newMaskKey()
		}

		writeErr := writeFrame(c.writer, f)
		c.writeMu.Unlock()

		if writeErr != nil {
			err = writeErr
			return
		}

		// Note: Per RFC, an initiator should keep reading until the
		// peer's close frame or a timeout, but this library closes the
		// transport immediately after sending/echoing a close frame for
		// simplicity.
		if c.conn != nil {
			err = c.conn.Close()
		}
	})

	return err
}

// handleCloseFrame processes a received close frame.
//
// RFC 6455 Section 5.5.1:
//   - Close frame MAY contain status code (2 bytes) + reason
//   - Peer should respond with Close frame
//
// A close frame with no status code surfaces internally as
// CloseNoStatusReceived (1005), but 1005 is never a valid value to place on
// the wire (RFC 6455 Section 7.4.1), so the echoed close uses
// CloseNormalClosure instead.
func (c *Conn) handleCloseFrame(payload []byte) {
	c.closeMu.Lock()
	c.closed = true
	if c.closeState == stateOpen {
		c.closeState = stateCloseReceived
	} else if c.closeState == stateCloseSent {
		c.closeState = stateClosed
	}
	c.closeMu.Unlock()

	var code CloseCode
	var reason string
	if len(payload) >= 2 {
		code = CloseCode(uint16(payload[0])<<8 | uint16(payload[1]))
		reason = string(payload[2:])
	} else {
		code = CloseNoStatusReceived
	}

	c.closeMu.Lock()
	c.peerCode = code
	c.peerReason = reason
	c.closeMu.Unlock()

	echoCode := code
	if code == CloseNoStatusReceived {
		echoCode = CloseNormalClosure
	}

	// Ignore error - connection closing anyway.
	_ = c.CloseWithCode(echoCode, "")
}

// PeerCloseCode returns the status code and reason from the peer's close
// frame, once one has been received. Before that, it returns
// (CloseNoStatusReceived, "").
func (c *Conn) PeerCloseCode() (CloseCode, string) {
	c.closeMu.RLock()
	defer c.closeMu.RUnlock()
	if c.peerCode == 0 {
		return CloseNoStatusReceived, ""
	}
	return c.peerCode, c.peerReason
}
