package http1

import "bytes"

// MessageBuilder is a Handler that assembles a Message from a Parser's
// callbacks, buffering body bytes in memory. It is the convenience path
// for callers that want a complete Message rather than streaming
// callbacks (spec §9: "a message parser built from the same callback
// interface as the primitive parser").
type MessageBuilder struct {
	Message Message

	bodyBuf bytes.Buffer
}

// NewMessageBuilder returns a MessageBuilder ready to back a Parser.
func NewMessageBuilder() *MessageBuilder {
	return &MessageBuilder{}
}

func (b *MessageBuilder) OnStart(h Header) error {
	b.Message.Header = h
	return nil
}

func (b *MessageBuilder) OnField(name, value string, trailer bool) error {
	if trailer {
		b.Message.Fields.AddTrailer(name, value)
	} else {
		b.Message.Fields.Add(name, value)
	}
	return nil
}

func (b *MessageBuilder) OnHeaderComplete() error {
	return nil
}

func (b *MessageBuilder) OnBody(contentLength uint64, hasLength bool) error {
	if hasLength && contentLength > 0 {
		b.bodyBuf.Grow(int(contentLength))
	}
	return nil
}

func (b *MessageBuilder) OnData(p []byte) error {
	b.bodyBuf.Write(p)
	return nil
}

func (b *MessageBuilder) OnChunk(length uint64, extensions string) error {
	return nil
}

func (b *MessageBuilder) OnComplete() error {
	b.Message.Body = BytesBody{Data: append([]byte(nil), b.bodyBuf.Bytes()...)}
	return nil
}
