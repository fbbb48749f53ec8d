package vopl

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/voxelsplace/voxmesh/voxel"
)

// An update stream (.vpd) is a flat sequence of uvarint(index), uvarint(code)
// pairs. Index is the volume's linear cell index; Code 0 clears the cell.
// The stream carries no header, so streams can be concatenated.

var ErrDimsMismatch = errors.New("vopl: volumes have different dimensions")

// UpdateEntry is a single cell write.
type UpdateEntry struct {
	Index uint32
	Code  voxel.Voxel
}

// EncodeUpdates writes entries exactly as given, including clears.
func EncodeUpdates(entries []UpdateEntry) []byte {
	if len(entries) == 0 {
		return nil
	}
	out := make([]byte, 0, len(entries)*5)
	for _, e := range entries {
		out = appendEntry(out, e)
	}
	return out
}

func appendEntry(dst []byte, e UpdateEntry) []byte {
	dst = binary.AppendUvarint(dst, uint64(e.Index))
	return binary.AppendUvarint(dst, uint64(e.Code))
}

// readField decodes one uvarint from src and checks it fits in 32 bits.
func readField(src []byte) (uint32, int, error) {
	v, n := binary.Uvarint(src)
	switch {
	case n == 0:
		return 0, 0, io.ErrUnexpectedEOF
	case n < 0 || v > math.MaxUint32:
		return 0, 0, fmt.Errorf("value overflows 32 bits")
	}
	return uint32(v), n, nil
}

// readEntry decodes the entry at the start of src and returns its length.
func readEntry(src []byte) (UpdateEntry, int, error) {
	idx, n, err := readField(src)
	if err != nil {
		return UpdateEntry{}, 0, fmt.Errorf("index: %w", err)
	}
	code, m, err := readField(src[n:])
	if err != nil {
		return UpdateEntry{}, 0, fmt.Errorf("code: %w", err)
	}
	return UpdateEntry{Index: idx, Code: voxel.Voxel(code)}, n + m, nil
}

// EncodeVolume encodes every non-empty cell of vol, i.e. the diff that
// builds vol from an empty volume of the same shape.
func EncodeVolume(vol *voxel.Volume) []byte {
	var entries []UpdateEntry
	for i, c := range vol.Voxels {
		if c != voxel.Air {
			entries = append(entries, UpdateEntry{Index: uint32(i), Code: c})
		}
	}
	return EncodeUpdates(entries)
}

func DecodeUpdates(data []byte) ([]UpdateEntry, error) {
	var entries []UpdateEntry
	for pos := 0; pos < len(data); {
		e, n, err := readEntry(data[pos:])
		if err != nil {
			return nil, fmt.Errorf("vopl: update %d %w", len(entries), err)
		}
		entries = append(entries, e)
		pos += n
	}
	return entries, nil
}

// ApplyUpdates decodes data and writes it into vol in stream order, so a
// later entry for the same cell wins. It returns the number of cells whose
// value changed. The stream is validated before vol is touched.
func ApplyUpdates(vol *voxel.Volume, data []byte) (int, error) {
	if vol == nil {
		return 0, fmt.Errorf("vopl: nil volume")
	}
	entries, err := DecodeUpdates(data)
	if err != nil {
		return 0, err
	}
	n := vol.Len()
	for _, e := range entries {
		if int64(e.Index) >= int64(n) {
			return 0, fmt.Errorf("vopl: update index %d out of range (%d cells)", e.Index, n)
		}
	}
	changed := 0
	for _, e := range entries {
		if vol.Voxels[e.Index] != e.Code {
			vol.Voxels[e.Index] = e.Code
			changed++
		}
	}
	return changed, nil
}

// DiffVolumes returns the updates that turn from into to, in index order.
func DiffVolumes(from, to *voxel.Volume) ([]UpdateEntry, error) {
	if from == nil || to == nil {
		return nil, fmt.Errorf("vopl: nil volume")
	}
	if from.Dims() != to.Dims() {
		return nil, fmt.Errorf("%w: %v vs %v", ErrDimsMismatch, from.Dims(), to.Dims())
	}
	if err := from.Validate(); err != nil {
		return nil, fmt.Errorf("vopl: %w", err)
	}
	if err := to.Validate(); err != nil {
		return nil, fmt.Errorf("vopl: %w", err)
	}
	var out []UpdateEntry
	for i := range to.Voxels {
		if from.Voxels[i] != to.Voxels[i] {
			out = append(out, UpdateEntry{Index: uint32(i), Code: to.Voxels[i]})
		}
	}
	return out, nil
}
