/*
Copyright 2024 The Vexel Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package wire implements the byte-level framing of the Vexel binary
// protocol: length-prefixed read and write cursors and the message tag,
// cardinality, capability and output-format constants. It has no knowledge
// of message semantics beyond the shared [1-byte tag][4-byte length][payload]
// envelope.
package wire

import (
	"encoding/binary"

	"github.com/google/uuid"

	"github.com/vexeldb/vexel-go/go/vexelerrors"
)

// headerSize is the tag byte plus the 4-byte length prefix.
const headerSize = 5

func framingError(format string, args ...any) error {
	return vexelerrors.New(vexelerrors.CodeBinaryProtocol, format, args...)
}

// Reader is a bounds-checked cursor over a byte slice. Codecs decode
// recursively through Readers: a child value is always handed a sub-slice
// of exactly the length its prefix declared, so a Reader can never read
// past the end of the value it was created for.
type Reader struct {
	buf []byte
	pos int
}

// NewReader returns a Reader over buf.
func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// Len returns the number of unread bytes.
func (r *Reader) Len() int {
	return len(r.buf) - r.pos
}

// ReadUint8 reads one byte.
func (r *Reader) ReadUint8() (uint8, error) {
	if r.Len() < 1 {
		return 0, framingError("unexpected end of message while reading 1 byte")
	}
	b := r.buf[r.pos]
	r.pos++
	return b, nil
}

// ReadUint16 reads a big-endian uint16.
func (r *Reader) ReadUint16() (uint16, error) {
	if r.Len() < 2 {
		return 0, framingError("unexpected end of message while reading 2 bytes")
	}
	v := binary.BigEndian.Uint16(r.buf[r.pos:])
	r.pos += 2
	return v, nil
}

// ReadInt16 reads a big-endian int16.
func (r *Reader) ReadInt16() (int16, error) {
	v, err := r.ReadUint16()
	return int16(v), err
}

// ReadUint32 reads a big-endian uint32.
func (r *Reader) ReadUint32() (uint32, error) {
	if r.Len() < 4 {
		return 0, framingError("unexpected end of message while reading 4 bytes")
	}
	v := binary.BigEndian.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v, nil
}

// ReadInt32 reads a big-endian int32.
func (r *Reader) ReadInt32() (int32, error) {
	v, err := r.ReadUint32()
	return int32(v), err
}

// ReadUint64 reads a big-endian uint64.
func (r *Reader) ReadUint64() (uint64, error) {
	if r.Len() < 8 {
		return 0, framingError("unexpected end of message while reading 8 bytes")
	}
	v := binary.BigEndian.Uint64(r.buf[r.pos:])
	r.pos += 8
	return v, nil
}

// ReadInt64 reads a big-endian int64.
func (r *Reader) ReadInt64() (int64, error) {
	v, err := r.ReadUint64()
	return int64(v), err
}

// ReadBytes returns the next n bytes without copying.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	if n < 0 || r.Len() < n {
		return nil, framingError("unexpected end of message while reading %d bytes", n)
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// ReadUUID reads a 16-byte id.
func (r *Reader) ReadUUID() (uuid.UUID, error) {
	b, err := r.ReadBytes(16)
	if err != nil {
		return uuid.Nil, err
	}
	var id uuid.UUID
	copy(id[:], b)
	return id, nil
}

// ReadString reads a 4-byte length-prefixed UTF-8 string.
func (r *Reader) ReadString() (string, error) {
	b, err := r.ReadLenBytes()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ReadLenBytes reads a 4-byte length-prefixed byte string without copying.
func (r *Reader) ReadLenBytes() ([]byte, error) {
	n, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	return r.ReadBytes(int(n))
}

// Rest returns all unread bytes, consuming them.
func (r *Reader) Rest() []byte {
	b := r.buf[r.pos:]
	r.pos = len(r.buf)
	return b
}

// ReadBuffer accumulates transport bytes and frames them into messages.
// Feed appends raw bytes; TakeMessage reports once a complete tagged,
// length-prefixed message is available, after which the typed readers
// operate on that message only, up to FinishMessage or DiscardMessage.
type ReadBuffer struct {
	Reader

	incoming  []byte
	msgType   MessageType
	inMessage bool
}

// Feed appends bytes received from the transport.
func (b *ReadBuffer) Feed(data []byte) {
	if len(b.incoming) == 0 {
		// Common case: the previous message consumed everything.
		b.incoming = append(b.incoming[:0], data...)
		return
	}
	b.incoming = append(b.incoming, data...)
}

// Buffered returns the number of raw bytes not yet framed into a message.
func (b *ReadBuffer) Buffered() int {
	return len(b.incoming)
}

// TakeMessage reports whether a complete message is buffered. On true the
// message becomes current: MessageType returns its tag and the Reader
// methods read its payload.
func (b *ReadBuffer) TakeMessage() (bool, error) {
	if b.inMessage {
		return true, nil
	}
	if len(b.incoming) < headerSize {
		return false, nil
	}
	size := binary.BigEndian.Uint32(b.incoming[1:headerSize])
	if size < 4 {
		return false, framingError("message length %d is shorter than its own prefix", size)
	}
	total := 1 + int(size)
	if len(b.incoming) < total {
		return false, nil
	}
	b.msgType = MessageType(b.incoming[0])
	b.Reader = Reader{buf: b.incoming[headerSize:total]}
	b.incoming = b.incoming[total:]
	b.inMessage = true
	return true, nil
}

// MessageType returns the tag of the current message.
func (b *ReadBuffer) MessageType() MessageType {
	return b.msgType
}

// FinishMessage completes the current message. It is a protocol error for
// payload bytes to remain unread.
func (b *ReadBuffer) FinishMessage() error {
	if !b.inMessage {
		return nil
	}
	n := b.Len()
	b.discard()
	if n != 0 {
		return framingError("message %v has %d unconsumed bytes", b.msgType, n)
	}
	return nil
}

// DiscardMessage drops whatever remains of the current message.
func (b *ReadBuffer) DiscardMessage() {
	b.discard()
}

func (b *ReadBuffer) discard() {
	b.Reader = Reader{}
	b.inMessage = false
}

// WriteBuffer builds outgoing messages. BeginMessage opens a tagged
// message whose 4-byte length prefix is backpatched by EndMessage; the
// typed writers append payload fields in between. Misuse (ending a
// message that was never begun, fetching bytes with a message still open)
// is a programming error and panics.
type WriteBuffer struct {
	buf      []byte
	msgStart int
	blocks   []int
}

// NewWriteBuffer returns an empty WriteBuffer.
func NewWriteBuffer() *WriteBuffer {
	return &WriteBuffer{msgStart: -1}
}

// BeginMessage opens a message with the given tag.
func (w *WriteBuffer) BeginMessage(t MessageType) *WriteBuffer {
	if w.msgStart >= 0 {
		panic("wire: BeginMessage with a message still open")
	}
	w.msgStart = len(w.buf) + 1
	w.buf = append(w.buf, byte(t), 0, 0, 0, 0)
	return w
}

// EndMessage backpatches the length prefix of the open message.
func (w *WriteBuffer) EndMessage() *WriteBuffer {
	if w.msgStart < 0 {
		panic("wire: EndMessage without BeginMessage")
	}
	binary.BigEndian.PutUint32(w.buf[w.msgStart:], uint32(len(w.buf)-w.msgStart))
	w.msgStart = -1
	return w
}

// WriteUint8 appends one byte.
func (w *WriteBuffer) WriteUint8(v uint8) *WriteBuffer {
	w.buf = append(w.buf, v)
	return w
}

// WriteUint16 appends a big-endian uint16.
func (w *WriteBuffer) WriteUint16(v uint16) *WriteBuffer {
	w.buf = binary.BigEndian.AppendUint16(w.buf, v)
	return w
}

// WriteUint32 appends a big-endian uint32.
func (w *WriteBuffer) WriteUint32(v uint32) *WriteBuffer {
	w.buf = binary.BigEndian.AppendUint32(w.buf, v)
	return w
}

// WriteInt32 appends a big-endian int32.
func (w *WriteBuffer) WriteInt32(v int32) *WriteBuffer {
	return w.WriteUint32(uint32(v))
}

// WriteUint64 appends a big-endian uint64.
func (w *WriteBuffer) WriteUint64(v uint64) *WriteBuffer {
	w.buf = binary.BigEndian.AppendUint64(w.buf, v)
	return w
}

// WriteInt64 appends a big-endian int64.
func (w *WriteBuffer) WriteInt64(v int64) *WriteBuffer {
	return w.WriteUint64(uint64(v))
}

// WriteUUID appends a 16-byte id.
func (w *WriteBuffer) WriteUUID(id uuid.UUID) *WriteBuffer {
	w.buf = append(w.buf, id[:]...)
	return w
}

// WriteString appends a 4-byte length-prefixed UTF-8 string.
func (w *WriteBuffer) WriteString(s string) *WriteBuffer {
	w.WriteUint32(uint32(len(s)))
	w.buf = append(w.buf, s...)
	return w
}

// WriteLenBytes appends a 4-byte length-prefixed byte string.
func (w *WriteBuffer) WriteLenBytes(b []byte) *WriteBuffer {
	w.WriteUint32(uint32(len(b)))
	w.buf = append(w.buf, b...)
	return w
}

// WriteRaw appends bytes verbatim, with no prefix.
func (w *WriteBuffer) WriteRaw(b []byte) *WriteBuffer {
	w.buf = append(w.buf, b...)
	return w
}

// BeginBlock opens a 4-byte length-prefixed value whose length is not yet
// known; EndBlock backpatches it. Blocks nest, which is how composite
// codecs emit child values inside their own length prefix.
func (w *WriteBuffer) BeginBlock() *WriteBuffer {
	w.blocks = append(w.blocks, len(w.buf))
	w.buf = append(w.buf, 0, 0, 0, 0)
	return w
}

// EndBlock backpatches the innermost open block's length prefix. The
// prefix does not include its own four bytes.
func (w *WriteBuffer) EndBlock() *WriteBuffer {
	if len(w.blocks) == 0 {
		panic("wire: EndBlock without BeginBlock")
	}
	start := w.blocks[len(w.blocks)-1]
	w.blocks = w.blocks[:len(w.blocks)-1]
	binary.BigEndian.PutUint32(w.buf[start:], uint32(len(w.buf)-start-4))
	return w
}

// Unwrap returns the accumulated bytes. All messages must be ended.
func (w *WriteBuffer) Unwrap() []byte {
	if w.msgStart >= 0 || len(w.blocks) > 0 {
		panic("wire: Unwrap with a message or block still open")
	}
	return w.buf
}

// Reset empties the buffer for reuse.
func (w *WriteBuffer) Reset() {
	w.buf = w.buf[:0]
	w.msgStart = -1
	w.blocks = w.blocks[:0]
}
