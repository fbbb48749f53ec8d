package vopl

import (
	"bytes"
	"fmt"
	"io"
	"math/bits"

	"github.com/klauspost/compress/zlib"
)

// Encoding identifies the payload layout of a .vopl file. The high bit marks
// a zlib-compressed payload.
type Encoding uint8

const (
	EncDense  Encoding = 0
	EncSparse Encoding = 1
	// 2 was run-length, no longer written or read
	EncBitmap Encoding = 3 // occupancy bitmap + non-empty values

	encZlib Encoding = 0x80
)

func (e Encoding) Compressed() bool { return e&encZlib != 0 }

func (e Encoding) Base() Encoding { return e &^ encZlib }

// ParseEncoding maps a name as printed by String, without the zlib
// suffix, back to its Encoding.
func ParseEncoding(s string) (Encoding, error) {
	for _, e := range allEncodings {
		if e.String() == s {
			return e, nil
		}
	}
	return 0, fmt.Errorf("vopl: unknown encoding %q", s)
}

func (e Encoding) String() string {
	var s string
	switch e.Base() {
	case EncDense:
		s = "dense"
	case EncSparse:
		s = "sparse"
	case EncBitmap:
		s = "bitmap"
	default:
		s = fmt.Sprintf("encoding(%d)", uint8(e.Base()))
	}
	if e.Compressed() {
		s += "+zlib"
	}
	return s
}

// EncodeOptions restricts the candidates tried by Encode. The zero value
// tries every encoding, raw and compressed, and keeps the smallest.
type EncodeOptions struct {
	Encodings     []Encoding
	NoCompression bool
}

var allEncodings = []Encoding{EncDense, EncSparse, EncBitmap}

type encoded struct {
	encoding Encoding
	payload  []byte
}

// indexBits is the width needed to store values in [0, n).
func indexBits(n int) uint8 {
	if n <= 1 {
		return 1
	}
	return uint8(bits.Len(uint(n - 1)))
}

// The encoders below take the palette indices of every cell already laid
// out in Morton order.

func encodeDense(stream []uint32, bpp uint8) []byte {
	bw := newBitWriter(len(stream), bpp)
	for _, c := range stream {
		bw.put(c, bpp)
	}
	return bw.bytes()
}

func encodeSparse(stream []uint32, bpp uint8) []byte {
	count := 0
	for _, c := range stream {
		if c != 0 {
			count++
		}
	}
	ib := indexBits(len(stream))
	bw := newBitWriter(count, ib+bpp)
	bw.put(uint32(count), 32)
	for i, c := range stream {
		if c == 0 {
			continue
		}
		bw.put(uint32(i), ib)
		bw.put(c, bpp)
	}
	return bw.bytes()
}

func encodeBitmap(stream []uint32, bpp uint8) []byte {
	bitmap := make([]byte, (len(stream)+7)/8)
	bw := newBitWriter(len(stream)/4, bpp)
	for i, c := range stream {
		if c != 0 {
			bitmap[i>>3] |= 1 << (uint(i) & 7)
			bw.put(c, bpp)
		}
	}
	return append(bitmap, bw.bytes()...)
}

// payloadBounds is the smallest and largest uncompressed payload the
// encoders can produce for total cells at bpp bits.
func payloadBounds(enc Encoding, total int, bpp uint8) (lo, hi int, err error) {
	switch enc.Base() {
	case EncDense:
		n := packedLen(total, bpp)
		return n, n, nil
	case EncSparse:
		return 4, 4 + packedLen(total, indexBits(total)+bpp), nil
	case EncBitmap:
		n := (total + 7) / 8
		return n, n + packedLen(total, bpp), nil
	}
	return 0, 0, fmt.Errorf("unknown encoding: %d", uint8(enc.Base()))
}

func decodeDense(payload []byte, total int, bpp uint8) ([]uint32, error) {
	br := newBitReader(payload)
	stream := make([]uint32, total)
	for i := range stream {
		v, err := br.field(bpp)
		if err != nil {
			return nil, fmt.Errorf("dense cell %d: %w", i, err)
		}
		stream[i] = v
	}
	return stream, nil
}

func decodeSparse(payload []byte, total int, bpp uint8) ([]uint32, error) {
	br := newBitReader(payload)
	cnt, err := br.field(32)
	if err != nil {
		return nil, fmt.Errorf("sparse count: %w", err)
	}
	if uint64(cnt) > uint64(total) {
		return nil, fmt.Errorf("sparse count %d exceeds %d cells", cnt, total)
	}
	stream := make([]uint32, total)
	ib := indexBits(total)
	for n := uint32(0); n < cnt; n++ {
		idx, err := br.field(ib)
		if err != nil {
			return nil, fmt.Errorf("sparse entry %d: %w", n, err)
		}
		col, err := br.field(bpp)
		if err != nil {
			return nil, fmt.Errorf("sparse entry %d: %w", n, err)
		}
		if uint64(idx) >= uint64(total) {
			return nil, fmt.Errorf("sparse index out of range: %d", idx)
		}
		stream[idx] = col
	}
	return stream, nil
}

func decodeBitmap(payload []byte, total int, bpp uint8) ([]uint32, error) {
	n := (total + 7) / 8
	if len(payload) < n {
		return nil, fmt.Errorf("bitmap payload too short: %d < %d", len(payload), n)
	}
	bitmap := payload[:n]
	br := newBitReader(payload[n:])
	stream := make([]uint32, total)
	for i := range stream {
		if (bitmap[i>>3]>>(uint(i)&7))&1 == 0 {
			continue
		}
		v, err := br.field(bpp)
		if err != nil {
			return nil, fmt.Errorf("bitmap cell %d: %w", i, err)
		}
		stream[i] = v
	}
	return stream, nil
}

// decodePayload inflates and unpacks a payload into the Morton-ordered
// palette index stream. The payload size is checked against what total
// cells can need before anything proportional to total is allocated.
func decodePayload(enc Encoding, payload []byte, total int, bpp uint8) ([]uint32, error) {
	lo, hi, err := payloadBounds(enc, total, bpp)
	if err != nil {
		return nil, err
	}
	if enc.Compressed() {
		payload, err = zlibDecompress(payload, hi)
		if err != nil {
			return nil, fmt.Errorf("inflate payload: %w", err)
		}
	}
	if len(payload) < lo || len(payload) > hi {
		return nil, fmt.Errorf("%s payload of %d bytes, want %d..%d for %d cells", enc.Base(), len(payload), lo, hi, total)
	}
	switch enc.Base() {
	case EncDense:
		return decodeDense(payload, total, bpp)
	case EncSparse:
		return decodeSparse(payload, total, bpp)
	default:
		return decodeBitmap(payload, total, bpp)
	}
}

func zlibCompress(b []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw, err := zlib.NewWriterLevel(&buf, zlib.BestCompression)
	if err != nil {
		return nil, err
	}
	if _, err := zw.Write(b); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// zlibDecompress inflates b and fails once the output passes limit bytes.
func zlibDecompress(b []byte, limit int) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	out, err := io.ReadAll(io.LimitReader(zr, int64(limit)+1))
	if err != nil {
		return nil, err
	}
	if len(out) > limit {
		return nil, fmt.Errorf("inflated size exceeds %d bytes", limit)
	}
	return out, nil
}

func encodeWith(enc Encoding, stream []uint32, bpp uint8) ([]byte, error) {
	switch enc {
	case EncDense:
		return encodeDense(stream, bpp), nil
	case EncSparse:
		return encodeSparse(stream, bpp), nil
	case EncBitmap:
		return encodeBitmap(stream, bpp), nil
	default:
		return nil, fmt.Errorf("unknown encoding: %d", uint8(enc))
	}
}

// bestEncoding tries each allowed encoding, raw and deflated, and keeps the
// smallest payload. Ties keep the earlier candidate so output is stable.
func bestEncoding(stream []uint32, bpp uint8, opts EncodeOptions) (encoded, error) {
	encs := opts.Encodings
	if len(encs) == 0 {
		encs = allEncodings
	}
	var best encoded
	found := false
	for _, e := range encs {
		if e.Compressed() {
			return encoded{}, fmt.Errorf("encoding %s: pass base encodings only", e)
		}
		raw, err := encodeWith(e, stream, bpp)
		if err != nil {
			return encoded{}, err
		}
		if !found || len(raw) < len(best.payload) {
			best, found = encoded{encoding: e, payload: raw}, true
		}
		if opts.NoCompression {
			continue
		}
		zb, err := zlibCompress(raw)
		if err != nil {
			return encoded{}, fmt.Errorf("deflate %s payload: %w", e, err)
		}
		if len(zb) < len(best.payload) {
			best = encoded{encoding: e | encZlib, payload: zb}
		}
	}
	return best, nil
}
