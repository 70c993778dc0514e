package flate_test

import (
	"bytes"
	"testing"

	"github.com/coregx/wire/flate"
)

func compressAll(t *testing.T, data []byte, mode flate.FlushMode) []byte {
	t.Helper()
	w := flate.NewWriter()
	var out bytes.Buffer
	buf := make([]byte, 16)
	in := data
	for {
		n, o, status := w.Process(in, buf, mode)
		in = in[n:]
		out.Write(buf[:o])
		switch status {
		case flate.StatusError:
			t.Fatalf("compress: unexpected error status")
		case flate.StatusNeedMoreOutput:
			continue
		default:
			return out.Bytes()
		}
	}
}

func decompressAll(t *testing.T, data []byte) []byte {
	t.Helper()
	r := flate.NewReader()
	var out bytes.Buffer
	buf := make([]byte, 16)
	in := data
	for {
		ni, no, status := r.Process(in, buf)
		in = in[ni:]
		out.Write(buf[:no])
		switch status {
		case flate.StatusStreamEnd:
			return out.Bytes()
		case flate.StatusError:
			t.Fatalf("decompress: unexpected error status")
		case flate.StatusNeedMoreInput:
			if len(in) == 0 {
				t.Fatalf("decoder requested more input but none remains")
			}
		}
	}
}

func TestRoundTripSmallPayload(t *testing.T) {
	data := []byte("hello, websocket world")
	compressed := compressAll(t, data, flate.FlushFinish)
	got := decompressAll(t, compressed)
	if !bytes.Equal(got, data) {
		t.Fatalf("round trip mismatch: got %q want %q", got, data)
	}
}

func TestRoundTripRepetitiveData(t *testing.T) {
	data := bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog. "), 200)
	compressed := compressAll(t, data, flate.FlushFinish)
	if len(compressed) >= len(data) {
		t.Fatalf("expected compression to shrink highly repetitive data: %d >= %d", len(compressed), len(data))
	}
	got := decompressAll(t, compressed)
	if !bytes.Equal(got, data) {
		t.Fatalf("round trip mismatch on repetitive data")
	}
}

func TestRoundTripEmptyPayload(t *testing.T) {
	compressed := compressAll(t, nil, flate.FlushFinish)
	got := decompressAll(t, compressed)
	if len(got) != 0 {
		t.Fatalf("expected empty round trip, got %d bytes", len(got))
	}
}

func TestRoundTripIncompressibleData(t *testing.T) {
	data := make([]byte, 64)
	for i := range data {
		data[i] = byte(i*97 + 31)
	}
	compressed := compressAll(t, data, flate.FlushFinish)
	got := decompressAll(t, compressed)
	if !bytes.Equal(got, data) {
		t.Fatalf("round trip mismatch on incompressible data")
	}
}

func TestSyncFlushEndsInEmptyStoredBlockMarker(t *testing.T) {
	w := flate.NewWriter()
	var out bytes.Buffer
	buf := make([]byte, 256)
	in := []byte("permessage-deflate payload")
	for {
		n, o, status := w.Process(in, buf, flate.FlushSync)
		in = in[n:]
		out.Write(buf[:o])
		if status != flate.StatusNeedMoreOutput {
			break
		}
	}

	tail := out.Bytes()
	if len(tail) < 4 {
		t.Fatalf("sync-flushed output too short: %d bytes", len(tail))
	}
	marker := tail[len(tail)-4:]
	if !bytes.Equal(marker, []byte{0x00, 0x00, 0xff, 0xff}) {
		t.Fatalf("expected sync-flush tail 00 00 ff ff, got % x", marker)
	}
}

func TestSyncFlushPreservesStreamForFurtherWrites(t *testing.T) {
	w := flate.NewWriter()
	var out bytes.Buffer
	buf := make([]byte, 256)

	n, o, status := w.Process([]byte("first message"), buf, flate.FlushSync)
	if status != flate.StatusOK {
		t.Fatalf("unexpected status after first sync flush: %v", status)
	}
	if n != len("first message") {
		t.Fatalf("expected all input consumed, got %d", n)
	}
	out.Write(buf[:o])

	n, o, status = w.Process([]byte("second message"), buf, flate.FlushFinish)
	out.Write(buf[:o])
	for status == flate.StatusNeedMoreOutput {
		_, o, status = w.Process(nil, buf, flate.FlushFinish)
		out.Write(buf[:o])
	}
	if status != flate.StatusStreamEnd {
		t.Fatalf("expected stream end after finish, got %v", status)
	}
	_ = n

	got := decompressAll(t, out.Bytes())
	if !bytes.Equal(got, []byte("first messagesecond message")) {
		t.Fatalf("unexpected decoded stream: %q", got)
	}
}

func TestProcessOneByteAtATime(t *testing.T) {
	data := bytes.Repeat([]byte("abcabcabcabc"), 40)
	compressed := compressAll(t, data, flate.FlushFinish)

	r := flate.NewReader()
	var out bytes.Buffer
	obuf := make([]byte, 1)
	ibuf := make([]byte, 0, 1)
	streamEnded := false
outer:
	for _, b := range compressed {
		ibuf = append(ibuf[:0], b)
		in := []byte(ibuf)
		for {
			ni, no, status := r.Process(in, obuf)
			in = in[ni:]
			out.Write(obuf[:no])
			if status == flate.StatusStreamEnd {
				streamEnded = true
				break outer
			}
			if status == flate.StatusError {
				t.Fatalf("unexpected decode error")
			}
			if len(in) == 0 {
				break
			}
		}
	}
	if !streamEnded {
		t.Fatalf("stream did not signal completion")
	}
	if !bytes.Equal(out.Bytes(), data) {
		t.Fatalf("byte-at-a-time decode mismatch")
	}
}

func TestWriterResetDiscardsBufferedInput(t *testing.T) {
	w := flate.NewWriter()
	buf := make([]byte, 256)
	w.Process([]byte("will be discarded"), buf, flate.FlushNone)
	w.Reset()

	compressed := compressAll(t, []byte("fresh"), flate.FlushFinish)
	got := decompressAll(t, compressed)
	if string(got) != "fresh" {
		t.Fatalf("expected reset to discard prior input, got %q", got)
	}
}
