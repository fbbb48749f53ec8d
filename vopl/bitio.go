package vopl

import (
	"errors"
	"fmt"
	"io"
)

// Payload fields are packed LSB first: field k starts at bit offset sum of
// the widths before it, and the last byte is zero padded.

// maxFieldWidth is the widest field the codec writes: the sparse entry count
// and cell indices of volumes up to 2^32 cells.
const maxFieldWidth = 32

var errFieldWidth = errors.New("vopl: field width out of range")

// packedLen is the number of bytes n fields of the given width occupy.
func packedLen(n int, width uint8) int {
	return int((uint64(n)*uint64(width) + 7) / 8)
}

type bitWriter struct {
	buf []byte
	acc uint64
	n   uint
}

// newBitWriter sizes the buffer for fields fields of width bits.
func newBitWriter(fields int, width uint8) *bitWriter {
	return &bitWriter{buf: make([]byte, 0, packedLen(fields, width))}
}

// put appends the low width bits of v. width must be in [1, maxFieldWidth].
func (w *bitWriter) put(v uint32, width uint8) {
	w.acc |= (uint64(v) & (1<<width - 1)) << w.n
	w.n += uint(width)
	for w.n >= 8 {
		w.buf = append(w.buf, byte(w.acc))
		w.acc >>= 8
		w.n -= 8
	}
}

// bytes flushes a partial byte and returns the packed fields.
func (w *bitWriter) bytes() []byte {
	if w.n > 0 {
		w.buf = append(w.buf, byte(w.acc))
		w.acc, w.n = 0, 0
	}
	return w.buf
}

type bitReader struct {
	data []byte
	pos  int
	acc  uint64
	n    uint
}

func newBitReader(b []byte) *bitReader { return &bitReader{data: b} }

// field reads the next width-bit value. A width outside [1, maxFieldWidth]
// comes from a corrupt header and is reported, not masked.
func (r *bitReader) field(width uint8) (uint32, error) {
	if width == 0 || width > maxFieldWidth {
		return 0, fmt.Errorf("%w: %d bits", errFieldWidth, width)
	}
	for r.n < uint(width) {
		if r.pos >= len(r.data) {
			return 0, io.ErrUnexpectedEOF
		}
		r.acc |= uint64(r.data[r.pos]) << r.n
		r.n += 8
		r.pos++
	}
	v := uint32(r.acc & (1<<width - 1))
	r.acc >>= width
	r.n -= uint(width)
	return v, nil
}
