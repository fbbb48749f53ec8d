package vopl

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	xxhash "github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/zstd"

	"github.com/voxelsplace/voxmesh/voxel"
)

// PackCompression indicates the compression used for the pack content section.
type PackCompression uint8

const (
	PackCompNone PackCompression = 0
	PackCompZlib PackCompression = 1
	PackCompZstd PackCompression = 2
)

func (c PackCompression) String() string {
	switch c {
	case PackCompNone:
		return "none"
	case PackCompZlib:
		return "zlib"
	case PackCompZstd:
		return "zstd"
	}
	return fmt.Sprintf("compression(%d)", uint8(c))
}

// ParsePackCompression maps a config or flag value to a PackCompression.
func ParsePackCompression(s string) (PackCompression, error) {
	switch s {
	case "", "none":
		return PackCompNone, nil
	case "zlib":
		return PackCompZlib, nil
	case "zstd":
		return PackCompZstd, nil
	}
	return 0, fmt.Errorf("vopl: unknown pack compression %q", s)
}

const (
	packMagicStr = "VOPLPACK"
	packVersion  = 3
)

// PackLayout specifies how the content section encodes entries.
type PackLayout uint8

const (
	// LayoutRaw stores entries as independent blobs.
	LayoutRaw PackLayout = 0
	// LayoutCDC stores a content-defined chunk dictionary and entries as sequences of chunk refs.
	LayoutCDC PackLayout = 1
)

func (l PackLayout) String() string {
	switch l {
	case LayoutRaw:
		return "raw"
	case LayoutCDC:
		return "cdc"
	}
	return fmt.Sprintf("layout(%d)", uint8(l))
}

func ParsePackLayout(s string) (PackLayout, error) {
	switch s {
	case "", "raw":
		return LayoutRaw, nil
	case "cdc":
		return LayoutCDC, nil
	}
	return 0, fmt.Errorf("vopl: unknown pack layout %q", s)
}

// CDC chunking parameters; written into the pack so readers can validate.
const (
	cdcTarget = 4096
	cdcMin    = 2048
	cdcMax    = 16384
)

// PackEntry is one named .vopl file inside a pack.
type PackEntry struct {
	Name string
	Data []byte
}

// Volume decodes the entry.
func (e PackEntry) Volume() (*voxel.Volume, error) {
	vol, err := Decode(e.Data)
	if err != nil {
		return nil, fmt.Errorf("entry %q: %w", e.Name, err)
	}
	return vol, nil
}

// Pack is an ordered collection of named volumes. Volumes in one pack may
// have different shapes, origins and palettes.
type Pack struct {
	Entries []PackEntry
}

// Add encodes vol and appends it under name.
func (p *Pack) Add(name string, vol *voxel.Volume, opts EncodeOptions) error {
	data, err := Encode(vol, opts)
	if err != nil {
		return fmt.Errorf("entry %q: %w", name, err)
	}
	p.Entries = append(p.Entries, PackEntry{Name: name, Data: data})
	return nil
}

// Marshal encodes using the raw layout.
func (p *Pack) Marshal(comp PackCompression) ([]byte, error) {
	return p.MarshalEx(LayoutRaw, comp)
}

// MarshalEx encodes the pack with the given layout and compression codec.
// LayoutCDC builds a chunk dictionary shared by all entries, so volumes
// that repeat content are stored once.
func (p *Pack) MarshalEx(layout PackLayout, comp PackCompression) ([]byte, error) {
	for _, e := range p.Entries {
		if len(e.Name) > math.MaxUint16 {
			return nil, fmt.Errorf("vopl: entry name too long: %d bytes", len(e.Name))
		}
		if int64(len(e.Data)) > math.MaxUint32 {
			return nil, fmt.Errorf("vopl: entry %q too large", e.Name)
		}
	}

	var content bytes.Buffer
	w := func(v any) { _ = binary.Write(&content, binary.LittleEndian, v) }
	writeName := func(name string) {
		w(uint16(len(name)))
		content.WriteString(name)
	}

	w(uint8(layout))
	switch layout {
	case LayoutRaw:
		w(uint32(len(p.Entries)))
		for _, e := range p.Entries {
			writeName(e.Name)
			w(uint32(len(e.Data)))
			content.Write(e.Data)
		}
	case LayoutCDC:
		w([3]uint32{cdcTarget, cdcMin, cdcMax})
		dict, sequences := buildCDCIndex(p.Entries, cdcTarget, cdcMin, cdcMax)
		w(uint32(len(dict)))
		for _, blk := range dict {
			w(uint32(len(blk)))
			content.Write(blk)
		}
		w(uint32(len(p.Entries)))
		for i, e := range p.Entries {
			writeName(e.Name)
			w(uint32(len(e.Data)))
			w(uint32(len(sequences[i])))
			for _, idx := range sequences[i] {
				w(uint32(idx))
			}
		}
	default:
		return nil, fmt.Errorf("vopl: unsupported pack layout: %d", layout)
	}

	finalContent, err := compressPack(content.Bytes(), comp)
	if err != nil {
		return nil, err
	}
	var out bytes.Buffer
	out.Grow(len(packMagicStr) + 2 + len(finalContent))
	out.WriteString(packMagicStr)
	out.WriteByte(packVersion)
	out.WriteByte(uint8(comp))
	out.Write(finalContent)
	return out.Bytes(), nil
}

func compressPack(b []byte, comp PackCompression) ([]byte, error) {
	switch comp {
	case PackCompNone:
		return b, nil
	case PackCompZlib:
		zb, err := zlibCompress(b)
		if err != nil {
			return nil, fmt.Errorf("vopl: deflate pack: %w", err)
		}
		return zb, nil
	case PackCompZstd:
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return nil, err
		}
		defer enc.Close()
		return enc.EncodeAll(b, nil), nil
	}
	return nil, fmt.Errorf("vopl: unsupported pack compression: %d", comp)
}

// maxPackContent bounds the inflated content section of a pack.
var maxPackContent = 1 << 30

func decompressPack(b []byte, comp PackCompression) ([]byte, error) {
	switch comp {
	case PackCompNone:
		return b, nil
	case PackCompZlib:
		return zlibDecompress(b, maxPackContent)
	case PackCompZstd:
		dec, err := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(uint64(maxPackContent)))
		if err != nil {
			return nil, err
		}
		defer dec.Close()
		out, err := dec.DecodeAll(b, nil)
		if err != nil {
			return nil, err
		}
		if len(out) > maxPackContent {
			return nil, fmt.Errorf("inflated size exceeds %d bytes", maxPackContent)
		}
		return out, nil
	}
	return nil, fmt.Errorf("vopl: unsupported pack compression: %d", comp)
}

// packReader reads little-endian fields and keeps the first error.
type packReader struct {
	r   *bytes.Reader
	err error
}

func (pr *packReader) read(v any) {
	if pr.err != nil {
		return
	}
	pr.err = binary.Read(pr.r, binary.LittleEndian, v)
}

func (pr *packReader) u32() uint32 {
	var v uint32
	pr.read(&v)
	return v
}

func (pr *packReader) bytes(n uint32) []byte {
	if pr.err != nil {
		return nil
	}
	if int64(n) > int64(pr.r.Len()) {
		pr.err = io.ErrUnexpectedEOF
		return nil
	}
	b := make([]byte, n)
	_, pr.err = io.ReadFull(pr.r, b)
	return b
}

func (pr *packReader) name() string {
	var n uint16
	pr.read(&n)
	return string(pr.bytes(uint32(n)))
}

// UnmarshalPack parses a .voplpack from bytes and returns the pack and the
// compression and layout it was written with.
func UnmarshalPack(data []byte) (*Pack, PackCompression, PackLayout, error) {
	if len(data) < len(packMagicStr)+2 || string(data[:len(packMagicStr)]) != packMagicStr {
		return nil, 0, 0, fmt.Errorf("vopl: not a valid .voplpack")
	}
	ver := data[len(packMagicStr)]
	if ver != packVersion {
		return nil, 0, 0, fmt.Errorf("vopl: unsupported pack version: %d", ver)
	}
	comp := PackCompression(data[len(packMagicStr)+1])
	content, err := decompressPack(data[len(packMagicStr)+2:], comp)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("vopl: pack content: %w", err)
	}

	pr := &packReader{r: bytes.NewReader(content)}
	var lb uint8
	pr.read(&lb)
	layout := PackLayout(lb)
	pack := new(Pack)

	switch layout {
	case LayoutRaw:
		n := pr.u32()
		for i := uint32(0); i < n && pr.err == nil; i++ {
			name := pr.name()
			blob := pr.bytes(pr.u32())
			pack.Entries = append(pack.Entries, PackEntry{Name: name, Data: blob})
		}
	case LayoutCDC:
		var params [3]uint32
		pr.read(&params)
		maxSz := params[2]
		nBlocks := pr.u32()
		var blocks [][]byte
		for i := uint32(0); i < nBlocks && pr.err == nil; i++ {
			blocks = append(blocks, pr.bytes(pr.u32()))
		}
		n := pr.u32()
		for i := uint32(0); i < n && pr.err == nil; i++ {
			name := pr.name()
			rawLen := pr.u32()
			seqLen := pr.u32()
			if pr.err != nil {
				break
			}
			blob := make([]byte, 0, rawLen)
			for j := uint32(0); j < seqLen; j++ {
				idx := pr.u32()
				if pr.err != nil {
					break
				}
				if idx >= uint32(len(blocks)) {
					return nil, 0, 0, fmt.Errorf("vopl: entry %q: invalid block index %d", name, idx)
				}
				if uint64(len(blob))+uint64(len(blocks[idx])) > uint64(rawLen)+uint64(maxSz) {
					return nil, 0, 0, fmt.Errorf("vopl: entry %q: inconsistent CDC sequence", name)
				}
				blob = append(blob, blocks[idx]...)
			}
			if pr.err == nil && uint32(len(blob)) != rawLen {
				return nil, 0, 0, fmt.Errorf("vopl: entry %q: rebuilt %d bytes, want %d", name, len(blob), rawLen)
			}
			pack.Entries = append(pack.Entries, PackEntry{Name: name, Data: blob})
		}
	default:
		return nil, 0, 0, fmt.Errorf("vopl: unknown pack layout: %d", layout)
	}
	if pr.err != nil {
		return nil, 0, 0, fmt.Errorf("vopl: truncated pack: %w", pr.err)
	}
	return pack, comp, layout, nil
}

// cdcGear is the rolling-hash table for content-defined chunking, derived
// deterministically from xxhash so every writer cuts at the same offsets.
var cdcGear = func() [256]uint64 {
	var gear [256]uint64
	seed := xxhash.Sum64String("vopl-cdc-gear-seed")
	for i := range gear {
		var b [16]byte
		binary.LittleEndian.PutUint64(b[:8], seed+uint64(i)*0x9E3779B185EBCA87)
		binary.LittleEndian.PutUint64(b[8:], ^(seed + uint64(i)*0xC2B2AE3D27D4EB4F))
		v := xxhash.Sum64(b[:])
		if v == 0 {
			v = 0x9E3779B185EBCA87
		}
		gear[i] = v
	}
	return gear
}()

// buildCDCIndex chunks every entry on content-defined boundaries, returning
// the unique chunks and, per entry, the chunk indices that rebuild it.
func buildCDCIndex(entries []PackEntry, target, minSz, maxSz int) ([][]byte, [][]int) {
	blocks := make([][]byte, 0, 256)
	index := make(map[uint64][]int, 1024)
	seqs := make([][]int, len(entries))

	pow := 1 << int(math.Round(math.Log2(float64(target))))
	mask := uint64(pow - 1)

	addBlock := func(b []byte) int {
		h := xxhash.Sum64(b)
		for _, idx := range index[h] {
			if bytes.Equal(blocks[idx], b) {
				return idx
			}
		}
		idx := len(blocks)
		blocks = append(blocks, append([]byte(nil), b...))
		index[h] = append(index[h], idx)
		return idx
	}

	for i, e := range entries {
		data := e.Data
		var seq []int
		start := 0
		var h uint64
		for pos := 0; pos < len(data); pos++ {
			h = h<<1 + cdcGear[data[pos]]
			size := pos - start + 1
			if size < minSz {
				continue
			}
			if h&mask == 0 || size >= maxSz {
				seq = append(seq, addBlock(data[start:pos+1]))
				start = pos + 1
				h = 0
			}
		}
		if start < len(data) {
			seq = append(seq, addBlock(data[start:]))
		}
		seqs[i] = seq
	}
	return blocks, seqs
}
