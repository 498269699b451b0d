// Package packet implements the fixed-layout binary codec shared by every
// opcode handler. All integers are little-endian; every frame begins with a
// 2-byte opcode. Fields are not self-describing: each handler reads and writes
// them in the order its opcode declares.
package packet

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// ErrFieldOverflow is recorded when a string does not fit its fixed-width field.
var ErrFieldOverflow = errors.New("string exceeds field width")

const defaultCapacity = 128

// Writer appends typed fields to a growable buffer that starts with an opcode header.
// The zero value is not usable; construct with NewWriter.
type Writer struct {
	buf []byte
	err error
}

// NewWriter starts a frame for op.
//
// Postcondition: Len() == 2 and the first two bytes hold op.
func NewWriter(op Opcode) *Writer {
	w := &Writer{buf: make([]byte, 0, defaultCapacity)}
	w.WriteU16(uint16(op))
	return w
}

// WriteU8 appends one byte.
func (w *Writer) WriteU8(v uint8) { w.buf = append(w.buf, v) }

// WriteBool appends 1 for true and 0 for false.
func (w *Writer) WriteBool(v bool) {
	if v {
		w.WriteU8(1)
		return
	}
	w.WriteU8(0)
}

// WriteU16 appends a little-endian uint16.
func (w *Writer) WriteU16(v uint16) { w.buf = binary.LittleEndian.AppendUint16(w.buf, v) }

// WriteI16 appends a little-endian int16 in two's complement.
func (w *Writer) WriteI16(v int16) { w.WriteU16(uint16(v)) }

// WriteU32 appends a little-endian uint32.
func (w *Writer) WriteU32(v uint32) { w.buf = binary.LittleEndian.AppendUint32(w.buf, v) }

// WriteU64 appends a little-endian uint64.
func (w *Writer) WriteU64(v uint64) { w.buf = binary.LittleEndian.AppendUint64(w.buf, v) }

// WriteF32 appends an IEEE-754 single-precision float.
func (w *Writer) WriteF32(v float32) { w.WriteU32(math.Float32bits(v)) }

// WriteZero appends n zero bytes.
//
// Precondition: n >= 0.
func (w *Writer) WriteZero(n int) {
	for i := 0; i < n; i++ {
		w.buf = append(w.buf, 0)
	}
}

// WriteFixed appends s as a zero-padded field of exactly width bytes.
// A longer s is truncated to width bytes and ErrFieldOverflow is recorded on the writer.
//
// Precondition: width > 0.
// Postcondition: Len() grows by exactly width.
func (w *Writer) WriteFixed(s string, width int) {
	if len(s) > width {
		if w.err == nil {
			w.err = fmt.Errorf("%w: %d > %d", ErrFieldOverflow, len(s), width)
		}
		s = s[:width]
	}
	w.buf = append(w.buf, s...)
	w.WriteZero(width - len(s))
}

// WritePString appends a u16 length prefix followed by the bytes of s.
// Strings longer than 65535 bytes are truncated and ErrFieldOverflow is recorded.
func (w *Writer) WritePString(s string) {
	if len(s) > math.MaxUint16 {
		if w.err == nil {
			w.err = fmt.Errorf("%w: %d > %d", ErrFieldOverflow, len(s), math.MaxUint16)
		}
		s = s[:math.MaxUint16]
	}
	w.WriteU16(uint16(len(s)))
	w.buf = append(w.buf, s...)
}

// WriteBytes appends raw bytes without a prefix.
func (w *Writer) WriteBytes(b []byte) { w.buf = append(w.buf, b...) }

// Len returns the number of bytes written including the opcode header.
func (w *Writer) Len() int { return len(w.buf) }

// Err returns the first field overflow recorded, if any.
func (w *Writer) Err() error { return w.err }

// Bytes returns the encoded frame. The slice aliases the writer's buffer.
func (w *Writer) Bytes() []byte { return w.buf }
