package websocket

import (
	"bytes"

	"github.com/coregx/wire/buffer"
	"github.com/coregx/wire/flate"
)

// deflateTail is the 4-byte empty, non-final stored block that a sync flush
// leaves at the end of its output. permessage-deflate strips it from the
// wire and the receiver re-appends it before decompressing (RFC 7692
// Section 7.2.1).
var deflateTail = []byte{0x00, 0x00, 0xff, 0xff}

// permessageDeflate holds the negotiated permessage-deflate (RFC 7692)
// state for one connection: a pair of flate streams plus the
// no-context-takeover flags that say whether each stream resets between
// messages.
type permessageDeflate struct {
	writer *flate.Writer
	reader *flate.Reader

	resetWriterPerMessage bool
	resetReaderPerMessage bool
}

// newPermessageDeflate builds the compression state for a negotiated
// extension. resetWriterPerMessage/resetReaderPerMessage are derived from
// the negotiated no_context_takeover parameters, adjusted for which side of
// the connection this Conn is (server vs client).
func newPermessageDeflate(resetWriterPerMessage, resetReaderPerMessage bool) *permessageDeflate {
	return &permessageDeflate{
		writer:                flate.NewWriter(),
		reader:                flate.NewReader(),
		resetWriterPerMessage: resetWriterPerMessage,
		resetReaderPerMessage: resetReaderPerMessage,
	}
}

// compressMessage deflates an entire outbound message with a trailing sync
// flush, then strips the resulting empty stored block per RFC 7692 Section
// 7.2.1. The returned slice is independent of pd's internal buffers.
func (pd *permessageDeflate) compressMessage(payload []byte) ([]byte, error) {
	out := buffer.NewFlat()
	scratch := make([]byte, 4096)

	in := payload
	for {
		n, o, status := pd.writer.Process(in, scratch, flate.FlushSync)
		in = in[n:]

		if o > 0 {
			dst, err := out.Prepare(o)
			if err != nil {
				return nil, err
			}
			copy(dst, scratch[:o])
			out.Commit(o)
		}

		if status == flate.StatusError {
			return nil, ErrProtocolError
		}
		if status != flate.StatusNeedMoreOutput {
			break
		}
	}

	compressed := out.Data()
	if len(compressed) >= len(deflateTail) && bytes.Equal(compressed[len(compressed)-len(deflateTail):], deflateTail) {
		compressed = compressed[:len(compressed)-len(deflateTail)]
	}

	result := make([]byte, len(compressed))
	copy(result, compressed)

	if pd.resetWriterPerMessage {
		pd.writer.Reset()
	}

	return result, nil
}

// decompressChunk inflates one frame's worth of raw (still-masked-removed)
// compressed bytes belonging to a message. Call it once per frame in order;
// pass final=true for the frame that carries FIN=1, which re-appends
// deflateTail so the stream's sync-flush boundary can be consumed.
func (pd *permessageDeflate) decompressChunk(data []byte, final bool) ([]byte, error) {
	in := data
	if final {
		in = append(append([]byte(nil), data...), deflateTail...)
	}

	out := buffer.NewFlat()
	scratch := make([]byte, 4096)

	for {
		ni, no, status := pd.reader.Process(in, scratch)
		in = in[ni:]

		if no > 0 {
			dst, err := out.Prepare(no)
			if err != nil {
				return nil, err
			}
			copy(dst, scratch[:no])
			out.Commit(no)
		}

		if status == flate.StatusError {
			return nil, ErrProtocolError
		}
		if ni == 0 && no == 0 {
			break
		}
		if len(in) == 0 && status != flate.StatusNeedMoreOutput {
			break
		}
	}

	result := make([]byte, out.Size())
	copy(result, out.Data())

	if final && pd.resetReaderPerMessage {
		pd.reader.Reset()
	}

	return result, nil
}
