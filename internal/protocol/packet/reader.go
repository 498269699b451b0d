package packet

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// ErrFrameTruncated is returned when a read would run past the end of the frame.
var ErrFrameTruncated = errors.New("frame truncated")

// Reader consumes fields from a single inbound frame in declared order.
// Reads past the frame length fail with ErrFrameTruncated and leave the
// offset unchanged.
type Reader struct {
	buf []byte
	pos int
}

// NewReader returns a Reader positioned at the start of frame.
func NewReader(frame []byte) *Reader {
	return &Reader{buf: frame}
}

// Reset points the reader at a new frame and rewinds the offset to zero.
func (r *Reader) Reset(frame []byte) {
	r.buf = frame
	r.pos = 0
}

// Len returns the frame length.
func (r *Reader) Len() int { return len(r.buf) }

// Pos returns the current read offset.
func (r *Reader) Pos() int { return r.pos }

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int { return len(r.buf) - r.pos }

// Skip advances the offset by n bytes. A negative n moves backwards.
//
// Postcondition: on error the offset is unchanged.
func (r *Reader) Skip(n int) error {
	return r.SetPos(r.pos + n)
}

// SetPos moves the offset to pos.
//
// Precondition: 0 <= pos <= Len().
func (r *Reader) SetPos(pos int) error {
	if pos < 0 || pos > len(r.buf) {
		return fmt.Errorf("%w: seek to %d of %d", ErrFrameTruncated, pos, len(r.buf))
	}
	r.pos = pos
	return nil
}

func (r *Reader) take(n int) ([]byte, error) {
	if n < 0 || r.Remaining() < n {
		return nil, fmt.Errorf("%w: need %d bytes at offset %d of %d", ErrFrameTruncated, n, r.pos, len(r.buf))
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// Opcode reads the 2-byte opcode header.
func (r *Reader) Opcode() (Opcode, error) {
	v, err := r.U16()
	return Opcode(v), err
}

// U8 reads one byte.
func (r *Reader) U8() (uint8, error) {
	b, err := r.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// Bool reads one byte and reports whether it is non-zero.
func (r *Reader) Bool() (bool, error) {
	v, err := r.U8()
	return v != 0, err
}

// U16 reads a little-endian uint16.
func (r *Reader) U16() (uint16, error) {
	b, err := r.take(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

// I16 reads a little-endian int16.
func (r *Reader) I16() (int16, error) {
	v, err := r.U16()
	return int16(v), err
}

// U32 reads a little-endian uint32.
func (r *Reader) U32() (uint32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// U64 reads a little-endian uint64.
func (r *Reader) U64() (uint64, error) {
	b, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// F32 reads an IEEE-754 single-precision float.
func (r *Reader) F32() (float32, error) {
	v, err := r.U32()
	return math.Float32frombits(v), err
}

// Fixed reads a width-byte field and returns its contents up to the first zero byte.
func (r *Reader) Fixed(width int) (string, error) {
	b, err := r.take(width)
	if err != nil {
		return "", err
	}
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b), nil
}

// PString reads a u16 length prefix and that many bytes.
//
// Postcondition: on error the offset is unchanged.
func (r *Reader) PString() (string, error) {
	start := r.pos
	n, err := r.U16()
	if err != nil {
		return "", err
	}
	b, err := r.take(int(n))
	if err != nil {
		r.pos = start
		return "", err
	}
	return string(b), nil
}
