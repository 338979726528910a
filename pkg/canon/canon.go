// Copyright 2025 Tradeledger Authors
//
// Canonical serialization for wire transactions. The encoding
// is deterministic and platform-independent: field order is fixed by the
// writer calls below, integers are written big-endian, byte strings are
// length-prefixed, and no floating point value is ever encoded. Any
// consumer that needs a transaction's identity MUST serialize through
// this package — two implementations that encode the same logical value
// differently would disagree about that transaction's id.
package canon

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// Writer accumulates a canonical byte stream. The zero value is ready to
// use.
type Writer struct {
	buf bytes.Buffer
}

// NewWriter returns an empty Writer.
func NewWriter() *Writer {
	return &Writer{}
}

// Bytes returns the accumulated canonical encoding.
func (w *Writer) Bytes() []byte {
	return w.buf.Bytes()
}

// WriteUint8 appends a single byte.
func (w *Writer) WriteUint8(v uint8) {
	w.buf.WriteByte(v)
}

// WriteUint32 appends a big-endian uint32.
func (w *Writer) WriteUint32(v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	w.buf.Write(b[:])
}

// WriteUint64 appends a big-endian uint64.
func (w *Writer) WriteUint64(v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	w.buf.Write(b[:])
}

// WriteInt64 appends a big-endian two's-complement int64. Used for
// optional Unix timestamps (seconds), never for contract-visible
// floating point.
func (w *Writer) WriteInt64(v int64) {
	w.WriteUint64(uint64(v))
}

// WriteBytes appends a length-prefixed byte string.
func (w *Writer) WriteBytes(b []byte) {
	w.WriteUint32(uint32(len(b)))
	w.buf.Write(b)
}

// WriteString appends a length-prefixed UTF-8 string.
func (w *Writer) WriteString(s string) {
	w.WriteBytes([]byte(s))
}

// WriteBool appends a single boolean byte.
func (w *Writer) WriteBool(b bool) {
	if b {
		w.WriteUint8(1)
	} else {
		w.WriteUint8(0)
	}
}

// WriteTag appends a short fixed string identifying a tagged sum type's
// concrete variant.
func (w *Writer) WriteTag(tag string) {
	w.WriteString(tag)
}

// Reader consumes a canonical byte stream produced by Writer.
type Reader struct {
	r   *bytes.Reader
	err error
}

// NewReader wraps b for canonical decoding.
func NewReader(b []byte) *Reader {
	return &Reader{r: bytes.NewReader(b)}
}

// Err returns the first error encountered by any Read call.
func (r *Reader) Err() error {
	return r.err
}

func (r *Reader) fail(err error) {
	if r.err == nil {
		r.err = err
	}
}

// ReadUint8 reads a single byte.
func (r *Reader) ReadUint8() uint8 {
	if r.err != nil {
		return 0
	}
	b, err := r.r.ReadByte()
	if err != nil {
		r.fail(fmt.Errorf("canon: read uint8: %w", err))
		return 0
	}
	return b
}

// ReadUint32 reads a big-endian uint32.
func (r *Reader) ReadUint32() uint32 {
	if r.err != nil {
		return 0
	}
	var b [4]byte
	if _, err := io.ReadFull(r.r, b[:]); err != nil {
		r.fail(fmt.Errorf("canon: read uint32: %w", err))
		return 0
	}
	return binary.BigEndian.Uint32(b[:])
}

// ReadUint64 reads a big-endian uint64.
func (r *Reader) ReadUint64() uint64 {
	if r.err != nil {
		return 0
	}
	var b [8]byte
	if _, err := io.ReadFull(r.r, b[:]); err != nil {
		r.fail(fmt.Errorf("canon: read uint64: %w", err))
		return 0
	}
	return binary.BigEndian.Uint64(b[:])
}

// ReadInt64 reads a big-endian two's-complement int64.
func (r *Reader) ReadInt64() int64 {
	return int64(r.ReadUint64())
}

// ReadBytes reads a length-prefixed byte string.
func (r *Reader) ReadBytes() []byte {
	if r.err != nil {
		return nil
	}
	n := r.ReadUint32()
	if r.err != nil {
		return nil
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r.r, b); err != nil {
		r.fail(fmt.Errorf("canon: read bytes: %w", err))
		return nil
	}
	return b
}

// ReadString reads a length-prefixed UTF-8 string.
func (r *Reader) ReadString() string {
	return string(r.ReadBytes())
}

// ReadBool reads a single boolean byte.
func (r *Reader) ReadBool() bool {
	return r.ReadUint8() != 0
}

// ReadTag reads a tagged sum type's variant tag.
func (r *Reader) ReadTag() string {
	return r.ReadString()
}
