package vopl

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"slices"

	"github.com/voxelsplace/voxmesh/voxel"
)

// Encode serialises vol as a complete .vopl file. Cell codes are mapped
// through a palette whose entry 0 is air, so bpp only grows with the number
// of distinct materials, not with the width of a voxel code.
func Encode(vol *voxel.Volume, opts EncodeOptions) ([]byte, error) {
	if vol == nil {
		return nil, fmt.Errorf("vopl: nil volume")
	}
	if err := vol.Validate(); err != nil {
		return nil, fmt.Errorf("vopl: %w", err)
	}
	if vol.Width > MaxDim || vol.Height > MaxDim || vol.Depth > MaxDim {
		return nil, fmt.Errorf("vopl: dims %v exceed %d", vol.Dims(), MaxDim)
	}
	if int64(vol.Len()) > math.MaxUint32 {
		return nil, fmt.Errorf("vopl: %d cells exceed format limit", vol.Len())
	}
	if !fitsInt32(vol.X) || !fitsInt32(vol.Y) || !fitsInt32(vol.Z) {
		return nil, fmt.Errorf("vopl: origin (%d,%d,%d) out of int32 range", vol.X, vol.Y, vol.Z)
	}

	palette, lookup, err := buildPalette(vol)
	if err != nil {
		return nil, err
	}
	bpp := indexBits(len(palette))

	order := mortonOrder(vol.Width, vol.Height, vol.Depth)
	stream := make([]uint32, len(order))
	for r, i := range order {
		stream[r] = lookup[vol.Voxels[i]]
	}

	enc, err := bestEncoding(stream, bpp, opts)
	if err != nil {
		return nil, fmt.Errorf("vopl: %w", err)
	}
	hdr := Header{
		Ver:     version,
		BPP:     bpp,
		W:       uint16(vol.Width),
		H:       uint16(vol.Height),
		D:       uint16(vol.Depth),
		X:       int32(vol.X),
		Y:       int32(vol.Y),
		Z:       int32(vol.Z),
		Palette: palette,
	}
	return BuildFromHeaderAndPayload(hdr, enc.encoding, enc.payload), nil
}

func fitsInt32(v int) bool { return v >= math.MinInt32 && v <= math.MaxInt32 }

// buildPalette collects the distinct codes of vol in ascending order behind
// the reserved air entry.
func buildPalette(vol *voxel.Volume) ([]uint32, map[voxel.Voxel]uint32, error) {
	lookup := map[voxel.Voxel]uint32{voxel.Air: 0}
	codes := make([]uint32, 0, 16)
	for _, c := range vol.Voxels {
		if _, ok := lookup[c]; ok {
			continue
		}
		lookup[c] = 0
		codes = append(codes, uint32(c))
	}
	if len(codes)+1 > math.MaxUint16 {
		return nil, nil, fmt.Errorf("vopl: %d distinct materials exceed palette limit %d", len(codes), math.MaxUint16-1)
	}
	slices.Sort(codes)
	palette := make([]uint32, 0, len(codes)+1)
	palette = append(palette, 0)
	palette = append(palette, codes...)
	for i, c := range codes {
		lookup[voxel.Voxel(c)] = uint32(i + 1)
	}
	return palette, lookup, nil
}

// BuildFromHeaderAndPayload writes a full .vopl file around an already
// encoded payload. h.PLen is ignored; the payload length is written.
func BuildFromHeaderAndPayload(h Header, enc Encoding, payload []byte) []byte {
	var buf bytes.Buffer
	buf.Grow(fixedHeaderLen + 4*len(h.Palette) + 4 + len(payload))
	buf.WriteString(magic)
	_ = binary.Write(&buf, binary.LittleEndian, h.Ver)
	_ = binary.Write(&buf, binary.LittleEndian, uint8(enc))
	_ = binary.Write(&buf, binary.LittleEndian, h.BPP)
	_ = binary.Write(&buf, binary.LittleEndian, [3]uint16{h.W, h.H, h.D})
	_ = binary.Write(&buf, binary.LittleEndian, [3]int32{h.X, h.Y, h.Z})
	_ = binary.Write(&buf, binary.LittleEndian, uint16(len(h.Palette)))
	_ = binary.Write(&buf, binary.LittleEndian, h.Palette)
	_ = binary.Write(&buf, binary.LittleEndian, uint32(len(payload)))
	_, _ = buf.Write(payload)
	return buf.Bytes()
}

// ParseHeader splits a .vopl file into its header, payload encoding and
// payload bytes without decoding the payload.
func ParseHeader(data []byte) (Header, Encoding, []byte, error) {
	var hdr Header
	if len(data) < fixedHeaderLen || string(data[:4]) != magic {
		return hdr, 0, nil, fmt.Errorf("vopl: invalid format or not VOPL")
	}
	r := bytes.NewReader(data[4:])
	var enc uint8
	var dims [3]uint16
	var origin [3]int32
	var palLen uint16
	for _, f := range []any{&hdr.Ver, &enc, &hdr.BPP, &dims, &origin, &palLen} {
		if err := binary.Read(r, binary.LittleEndian, f); err != nil {
			return hdr, 0, nil, fmt.Errorf("vopl: header: %w", err)
		}
	}
	if hdr.Ver != version {
		return hdr, 0, nil, fmt.Errorf("vopl: unsupported version %d", hdr.Ver)
	}
	if palLen == 0 {
		return hdr, 0, nil, fmt.Errorf("vopl: empty palette")
	}
	hdr.W, hdr.H, hdr.D = dims[0], dims[1], dims[2]
	hdr.X, hdr.Y, hdr.Z = origin[0], origin[1], origin[2]
	hdr.Palette = make([]uint32, palLen)
	if err := binary.Read(r, binary.LittleEndian, hdr.Palette); err != nil {
		return hdr, 0, nil, fmt.Errorf("vopl: palette: %w", err)
	}
	if hdr.Palette[0] != 0 {
		return hdr, 0, nil, fmt.Errorf("vopl: palette entry 0 must be air, got %#x", hdr.Palette[0])
	}
	if err := binary.Read(r, binary.LittleEndian, &hdr.PLen); err != nil {
		return hdr, 0, nil, fmt.Errorf("vopl: payload length: %w", err)
	}
	if uint32(r.Len()) != hdr.PLen {
		return hdr, 0, nil, fmt.Errorf("vopl: payload length %d, have %d bytes", hdr.PLen, r.Len())
	}
	payload := data[len(data)-r.Len():]
	return hdr, Encoding(enc), payload, nil
}

// MaxDecodeCells caps the volume size Decode will allocate. A header alone
// can claim up to 65535³ cells, so the claim is checked before the payload
// is unpacked.
const MaxDecodeCells = 1 << 26

// Decode parses a complete .vopl file.
func Decode(data []byte) (*voxel.Volume, error) {
	hdr, enc, payload, err := ParseHeader(data)
	if err != nil {
		return nil, err
	}
	if hdr.BPP < 1 || hdr.BPP > 16 {
		return nil, fmt.Errorf("vopl: invalid bpp %d", hdr.BPP)
	}
	cells := uint64(hdr.W) * uint64(hdr.H) * uint64(hdr.D)
	if cells > MaxDecodeCells {
		return nil, fmt.Errorf("vopl: %dx%dx%d volume exceeds %d cells", hdr.W, hdr.H, hdr.D, MaxDecodeCells)
	}
	total := int(cells)

	stream, err := decodePayload(enc, payload, total, hdr.BPP)
	if err != nil {
		return nil, fmt.Errorf("vopl: %w", err)
	}
	vol, err := voxel.NewVolume(int(hdr.W), int(hdr.H), int(hdr.D))
	if err != nil {
		return nil, fmt.Errorf("vopl: %w", err)
	}
	vol.X, vol.Y, vol.Z = int(hdr.X), int(hdr.Y), int(hdr.Z)

	order := mortonOrder(vol.Width, vol.Height, vol.Depth)
	for r, i := range order {
		p := stream[r]
		if int(p) >= len(hdr.Palette) {
			return nil, fmt.Errorf("vopl: palette index %d out of range (%d entries)", p, len(hdr.Palette))
		}
		vol.Voxels[i] = voxel.Voxel(hdr.Palette[p])
	}
	return vol, nil
}

// Save writes vol to filename as a .vopl file.
func Save(vol *voxel.Volume, filename string, opts EncodeOptions) error {
	data, err := Encode(vol, opts)
	if err != nil {
		return err
	}
	return os.WriteFile(filename, data, 0644)
}

func Load(filename string) (*voxel.Volume, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	return Decode(data)
}

// ReadFrom decodes a .vopl file from r.
func ReadFrom(r io.Reader) (*voxel.Volume, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return Decode(data)
}
